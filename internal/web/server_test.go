package web

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formworks-hq/formworks/internal/database"
	"github.com/formworks-hq/formworks/internal/fieldtypes"
	"github.com/formworks-hq/formworks/internal/forms"
	"github.com/formworks-hq/formworks/internal/hooks"
	"github.com/formworks-hq/formworks/internal/metadata"
	"github.com/formworks-hq/formworks/internal/provision"
	"github.com/formworks-hq/formworks/internal/submission"
	"github.com/formworks-hq/formworks/internal/transaction"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	dialect, err := database.DialectFor("sqlite3")
	require.NoError(t, err)
	require.NoError(t, metadata.Bootstrap(context.Background(), db, dialect))

	store := metadata.NewStore(db, dialect)
	registry := fieldtypes.DefaultRegistry()
	dispatch := hooks.NewDispatcher()
	orch := forms.New(transaction.NewManager(db), dialect, store,
		provision.New(db, dialect), registry, dispatch, nil)
	pipeline := submission.NewPipeline(db, dialect, store, registry, dispatch,
		nil, nil, nil, submission.DefaultConfig(), nil)
	lister := submission.NewLister(db, dialect, store)

	return NewServer(":0", pipeline, lister, orch, store, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doForm(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "203.0.113.9:53211"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// createLiveForm walks a form through the API to the finalized state.
func createLiveForm(t *testing.T, h http.Handler) int64 {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/forms", map[string]interface{}{
		"name":         "contact",
		"url":          "http://example.com/contact.html",
		"redirect_url": "http://example.com/thanks",
		"strip_tags":   true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	formID := int64(decodeBody(t, rec)["form_id"].(float64))

	rec = doForm(t, h, fmt.Sprintf("/forms/%d/initialize", formID),
		"form_tools_form_id=1&name=Joe&email=j%40example.com&likes[]=go&likes[]=sql")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/forms/%d/finalize", formID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return formID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestInitializePreservesPostOrder(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/forms", map[string]interface{}{"name": "ordered"})
	require.Equal(t, http.StatusCreated, rec.Code)
	formID := int64(decodeBody(t, rec)["form_id"].(float64))

	rec = doForm(t, h, fmt.Sprintf("/forms/%d/initialize", formID),
		"zeta=1&form_tools_form_id=9&alpha=2&middle=3&alpha=duplicate")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	fields, ok := body["fields"].([]interface{})
	require.True(t, ok)
	// Reserved keys and duplicates drop out; post order survives.
	assert.Equal(t, []interface{}{"zeta", "alpha", "middle"}, fields)
}

func TestInitializeMultipartRecordsFileFields(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/forms", map[string]interface{}{"name": "uploads"})
	require.Equal(t, http.StatusCreated, rec.Code)
	formID := int64(decodeBody(t, rec)["form_id"].(float64))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_, err := mw.CreateFormField("name")
	require.NoError(t, err)
	fw, err := mw.CreateFormFile("resume", "resume.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	_, err = mw.CreateFormField("form_tools_form_id")
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/forms/%d/initialize", formID), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	out := httptest.NewRecorder()
	h.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code, out.Body.String())

	body := decodeBody(t, out)
	assert.Equal(t, []interface{}{"name", "resume"}, body["fields"])

	// The file input landed as a file-typed field ahead of the
	// trailing bookkeeping fields.
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/forms/%d", formID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fields := decodeBody(t, rec)["fields"].([]interface{})
	require.Len(t, fields, 6)
	resume := fields[2].(map[string]interface{})
	assert.Equal(t, "resume", resume["Name"])
	assert.Equal(t, float64(8), resume["TypeID"])
}

func TestInitializeEmptyBody(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/forms", map[string]interface{}{"name": "empty"})
	require.Equal(t, http.StatusCreated, rec.Code)
	formID := int64(decodeBody(t, rec)["form_id"].(float64))

	rec = doForm(t, h, fmt.Sprintf("/forms/%d/initialize", formID), "form_tools_form_id=1")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateFormRequiresName(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/forms", map[string]interface{}{"name": "  "})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestProcessSubmission(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	formID := createLiveForm(t, h)

	form := url.Values{
		"form_tools_form_id": {fmt.Sprint(formID)},
		"name":               {"Joe Smith"},
		"likes":              {"go", "sql"},
	}
	rec := doForm(t, h, "/process", form.Encode())
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "http://example.com/thanks"))

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["stored"])
	assert.NotZero(t, body["submission_id"])

	// The stored row comes back through the listing API.
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/forms/%d/submissions", formID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listBody := decodeBody(t, rec)
	assert.Equal(t, float64(1), listBody["total"])
	subs := listBody["submissions"].([]interface{})
	require.Len(t, subs, 1)
	record := subs[0].(map[string]interface{})
	assert.Equal(t, "Joe Smith", record["name"])
	assert.Equal(t, "go, sql", record["likes"])
	assert.Equal(t, "203.0.113.9", record["ip_address"])
}

func TestProcessErrorMapping(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	// No form ID at all.
	rec := doForm(t, h, "/process", "name=Joe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_form", decodeBody(t, rec)["code"])

	// A form that exists but was never finalized.
	rec = doJSON(t, h, http.MethodPost, "/forms", map[string]interface{}{"name": "draft"})
	require.Equal(t, http.StatusCreated, rec.Code)
	draftID := int64(decodeBody(t, rec)["form_id"].(float64))

	rec = doForm(t, h, "/process", fmt.Sprintf("form_tools_form_id=%d", draftID))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "form_incomplete", decodeBody(t, rec)["code"])
}

func TestFinalizeTwice(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	formID := createLiveForm(t, h)

	rec := doJSON(t, h, http.MethodPost, fmt.Sprintf("/forms/%d/finalize", formID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_finalized", decodeBody(t, rec)["code"])
}

func TestFinalizeUninitialized(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/forms", map[string]interface{}{"name": "raw"})
	require.Equal(t, http.StatusCreated, rec.Code)
	formID := int64(decodeBody(t, rec)["form_id"].(float64))

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/forms/%d/finalize", formID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_initialized", decodeBody(t, rec)["code"])
}

func TestGetFormNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/forms/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetFormInvalidID(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/forms/banana", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetForm(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	formID := createLiveForm(t, h)

	rec := doJSON(t, h, http.MethodGet, fmt.Sprintf("/forms/%d", formID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.NotNil(t, body["form"])
	fields := body["fields"].([]interface{})
	assert.Len(t, fields, 7)
}

func TestDeleteForm(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	formID := createLiveForm(t, h)

	rec := doJSON(t, h, http.MethodDelete, fmt.Sprintf("/forms/%d", formID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/forms/%d", formID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmissionCRUD(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	formID := createLiveForm(t, h)

	form := url.Values{
		"form_tools_form_id": {fmt.Sprint(formID)},
		"name":               {"Alice"},
	}
	rec := doForm(t, h, "/process", form.Encode())
	require.Equal(t, http.StatusFound, rec.Code)
	subID := int64(decodeBody(t, rec)["submission_id"].(float64))

	rec = doJSON(t, h, http.MethodGet,
		fmt.Sprintf("/forms/%d/submissions/%d", formID, subID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", decodeBody(t, rec)["name"])

	rec = doJSON(t, h, http.MethodDelete,
		fmt.Sprintf("/forms/%d/submissions/%d", formID, subID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet,
		fmt.Sprintf("/forms/%d/submissions/%d", formID, subID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEditFieldsEndpoint(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	formID := createLiveForm(t, h)

	rec := doJSON(t, h, http.MethodGet, fmt.Sprintf("/forms/%d", formID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var nameFieldID int64
	for _, raw := range decodeBody(t, rec)["fields"].([]interface{}) {
		field := raw.(map[string]interface{})
		if field["Name"] == "name" {
			nameFieldID = int64(field["ID"].(float64))
		}
	}
	require.NotZero(t, nameFieldID)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/forms/%d/fields/edit", formID),
		map[string]interface{}{
			"changes": []map[string]interface{}{
				{"field_id": nameFieldID, "name": "full_name", "title": "Full Name",
					"type_id": 1, "size": "medium", "list_order": 5},
				{"field_id": 99999, "name": "ghost"},
			},
		})
	require.Equal(t, http.StatusOK, rec.Code)

	results := decodeBody(t, rec)["results"].([]interface{})
	require.Len(t, results, 2)
	first := results[0].(map[string]interface{})
	second := results[1].(map[string]interface{})
	assert.Equal(t, true, first["ok"])
	assert.Equal(t, false, second["ok"])
	assert.NotEmpty(t, second["error"])
}

func TestSetClientsEndpoint(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	formID := createLiveForm(t, h)

	rec := doJSON(t, h, http.MethodPut, fmt.Sprintf("/forms/%d/clients", formID),
		map[string]interface{}{"account_ids": []int64{4, 9}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/forms/?account_id=9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)["forms"].([]interface{})
	assert.Len(t, list, 1)
}

func TestOrderedFieldNames(t *testing.T) {
	names := orderedFieldNames("b=1&a=2&b=3&form_tools_redirect_url=x&c%20d=4&tags[]=go")
	assert.Equal(t, []string{"b", "a", "c d", "tags"}, names)

	assert.Empty(t, orderedFieldNames(""))
	assert.Empty(t, orderedFieldNames("form_tools_form_id=1"))
}
