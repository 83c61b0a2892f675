package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/formworks-hq/formworks/internal/database"
	"github.com/formworks-hq/formworks/internal/forms"
	"github.com/formworks-hq/formworks/internal/metadata"
	"github.com/formworks-hq/formworks/internal/query"
	"github.com/formworks-hq/formworks/internal/session"
	"github.com/formworks-hq/formworks/internal/submission"
	"github.com/formworks-hq/formworks/internal/web/response"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.RenderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProcess is the public submission endpoint. On success the
// submitter is redirected; pipeline errors map to distinct statuses.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.pipeline.Process(r.Context(), submission.Payload(r.PostForm), remoteIP(r))
	if err != nil {
		s.renderPipelineError(w, err)
		return
	}
	s.renderResult(w, r, result)
}

// handleResume replays a submission parked by a failed CAPTCHA.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		response.RenderError(w, http.StatusBadRequest, errors.New("missing session key"))
		return
	}

	result, err := s.pipeline.Resume(r.Context(), key)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			response.RenderError(w, http.StatusNotFound, err)
			return
		}
		s.renderPipelineError(w, err)
		return
	}
	s.renderResult(w, r, result)
}

func (s *Server) renderResult(w http.ResponseWriter, r *http.Request, result *submission.Result) {
	w.Header().Set("Location", result.RedirectURL)
	response.RenderJSON(w, http.StatusFound, map[string]interface{}{
		"redirect_url":  result.RedirectURL,
		"submission_id": result.SubmissionID,
		"stored":        result.Stored,
		"session_key":   result.SessionKey,
	})
}

func (s *Server) renderPipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, submission.ErrInvalidForm):
		response.RenderErrorWithCode(w, http.StatusBadRequest, err, "invalid_form")
	case errors.Is(err, submission.ErrFormIncomplete):
		response.RenderErrorWithCode(w, http.StatusConflict, err, "form_incomplete")
	case errors.Is(err, submission.ErrFormDisabled):
		response.RenderErrorWithCode(w, http.StatusForbidden, err, "form_disabled")
	case errors.Is(err, submission.ErrNoRedirectConfigured):
		response.RenderErrorWithCode(w, http.StatusInternalServerError, err, "no_redirect_configured")
	default:
		s.logger.Error("submission failed", zap.Error(err))
		response.RenderError(w, http.StatusInternalServerError, errors.New("submission failed"))
	}
}

type createFormRequest struct {
	Name           string   `json:"name"`
	URL            string   `json:"url"`
	AccessType     string   `json:"access_type"`
	SubmissionType string   `json:"submission_type"`
	RedirectURL    string   `json:"redirect_url"`
	MultiPage      bool     `json:"multi_page"`
	PageURLs       []string `json:"page_urls"`
	StripTags      bool     `json:"strip_tags"`
	ClientIDs      []int64  `json:"client_ids"`
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	var req createFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		response.RenderError(w, http.StatusUnprocessableEntity, errors.New("form name is required"))
		return
	}

	form := &metadata.Form{
		Name:           req.Name,
		URL:            req.URL,
		AccessType:     metadata.AccessType(req.AccessType),
		SubmissionType: metadata.SubmissionType(req.SubmissionType),
		RedirectURL:    req.RedirectURL,
		MultiPage:      req.MultiPage,
		PageURLs:       req.PageURLs,
		StripTags:      req.StripTags,
		ClientIDs:      req.ClientIDs,
	}
	id, err := s.orch.Setup(r.Context(), form)
	if err != nil {
		s.renderStoreError(w, err)
		return
	}
	response.RenderJSON(w, http.StatusCreated, map[string]int64{"form_id": id})
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := &query.FormSearch{
		Status:  q.Get("status"),
		Keyword: q.Get("keyword"),
		OrderBy: q.Get("order"),
		IsAdmin: q.Get("is_admin") == "true",
	}
	if v := q.Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.RenderError(w, http.StatusBadRequest, errors.New("invalid account_id"))
			return
		}
		criteria.AccountID = id
	}

	list, err := s.orch.SearchForms(r.Context(), criteria)
	if err != nil {
		s.renderStoreError(w, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]interface{}{"forms": list})
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	form, err := s.store.GetForm(r.Context(), formID)
	if err != nil {
		s.renderStoreError(w, err)
		return
	}
	fields, err := s.store.FormFields(r.Context(), formID)
	if err != nil {
		s.renderStoreError(w, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]interface{}{
		"form":   form,
		"fields": fields,
	})
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	form, err := s.store.GetForm(r.Context(), formID)
	if err != nil {
		s.renderStoreError(w, err)
		return
	}

	var req createFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name != "" {
		form.Name = req.Name
	}
	if req.URL != "" {
		form.URL = req.URL
	}
	if req.AccessType != "" {
		form.AccessType = metadata.AccessType(req.AccessType)
	}
	if req.SubmissionType != "" {
		form.SubmissionType = metadata.SubmissionType(req.SubmissionType)
	}
	form.RedirectURL = req.RedirectURL
	form.MultiPage = req.MultiPage
	form.PageURLs = req.PageURLs
	form.StripTags = req.StripTags

	if err := s.orch.UpdateMainSettings(r.Context(), form); err != nil {
		s.renderStoreError(w, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	if err := s.orch.Delete(r.Context(), formID); err != nil {
		s.renderStoreError(w, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleInitialize records the form's field list from a test
// submission. The body is parsed by hand because field order in the
// post body determines field order in the form; multipart bodies also
// carry file inputs, which become file-typed fields.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}

	var names, fileNames []string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var err error
		names, fileNames, err = multipartFieldNames(r)
		if err != nil {
			response.RenderError(w, http.StatusBadRequest, err)
			return
		}
	} else {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			response.RenderError(w, http.StatusBadRequest, err)
			return
		}
		names = orderedFieldNames(string(body))
	}
	if len(names)+len(fileNames) == 0 {
		response.RenderError(w, http.StatusUnprocessableEntity,
			errors.New("test submission contains no fields"))
		return
	}

	if err := s.orch.Initialize(r.Context(), formID, names, fileNames); err != nil {
		s.renderLifecycleError(w, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]interface{}{
		"status": "initialized",
		"fields": append(names, fileNames...),
	})
}

func (s *Server) handleUninitialize(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	if err := s.orch.Uninitialize(r.Context(), formID); err != nil {
		s.renderStoreError(w, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]string{"status": "uninitialized"})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	if err := s.orch.Finalize(r.Context(), formID); err != nil {
		s.renderLifecycleError(w, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]string{"status": "finalized"})
}

type fieldAssignmentRequest struct {
	FieldID int64             `json:"field_id"`
	TypeID  int               `json:"type_id"`
	Size    string            `json:"size"`
	Options []metadata.Option `json:"options,omitempty"`
}

func (s *Server) handleSetFieldTypes(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}

	var reqs []fieldAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}

	assignments := make([]forms.FieldAssignment, len(reqs))
	for i, req := range reqs {
		assignments[i] = forms.FieldAssignment{
			FieldID: req.FieldID,
			TypeID:  req.TypeID,
			Size:    metadata.FieldSize(req.Size),
			Options: req.Options,
		}
	}
	if err := s.orch.SetFieldTypesAndSizes(r.Context(), formID, assignments); err != nil {
		s.renderStoreError(w, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type editFieldsRequest struct {
	Changes []fieldChangeRequest `json:"changes"`
	Deleted []int64              `json:"deleted"`
}

type fieldChangeRequest struct {
	FieldID           int64  `json:"field_id"`
	Name              string `json:"name"`
	Title             string `json:"title"`
	TypeID            int    `json:"type_id"`
	Size              string `json:"size"`
	IncludeOnRedirect bool   `json:"include_on_redirect"`
	ListOrder         int    `json:"list_order"`
}

func (s *Server) handleEditFields(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}

	var req editFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}

	changes := make([]forms.FieldChange, len(req.Changes))
	for i, c := range req.Changes {
		changes[i] = forms.FieldChange{
			FieldID:           c.FieldID,
			Name:              c.Name,
			Title:             c.Title,
			TypeID:            c.TypeID,
			Size:              metadata.FieldSize(c.Size),
			IncludeOnRedirect: c.IncludeOnRedirect,
			ListOrder:         c.ListOrder,
		}
	}

	results, err := s.orch.EditFields(r.Context(), formID, changes, req.Deleted)
	if err != nil {
		s.renderStoreError(w, err)
		return
	}

	type fieldOutcome struct {
		FieldID int64  `json:"field_id"`
		OK      bool   `json:"ok"`
		Error   string `json:"error,omitempty"`
	}
	outcomes := make([]fieldOutcome, len(results))
	for i, res := range results {
		outcomes[i] = fieldOutcome{FieldID: res.FieldID, OK: res.Err == nil}
		if res.Err != nil {
			outcomes[i].Error = res.Err.Error()
		}
	}
	response.RenderJSON(w, http.StatusOK, map[string]interface{}{"results": outcomes})
}

type accountListRequest struct {
	AccountIDs []int64 `json:"account_ids"`
}

func (s *Server) handleSetClients(w http.ResponseWriter, r *http.Request) {
	s.handleAccountList(w, r, s.orch.SetClients)
}

func (s *Server) handleSetOmitList(w http.ResponseWriter, r *http.Request) {
	s.handleAccountList(w, r, s.orch.SetOmitList)
}

func (s *Server) handleAccountList(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, formID int64, ids []int64) error) {

	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	var req accountListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	if err := apply(r.Context(), formID, req.AccountIDs); err != nil {
		s.renderStoreError(w, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) formID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "formID"), 10, 64)
	if err != nil || id <= 0 {
		response.RenderError(w, http.StatusBadRequest, errors.New("invalid form ID"))
		return 0, false
	}
	return id, true
}

func (s *Server) renderStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		response.RenderError(w, http.StatusNotFound, errors.New("form not found"))
	case database.IsSchemaError(err):
		s.logger.Error("schema change rejected", zap.Error(err))
		response.RenderErrorWithCode(w, http.StatusConflict, errors.New("schema change rejected"), "schema_error")
	case database.IsStorageError(err):
		s.logger.Error("storage failure", zap.Error(err))
		response.RenderErrorWithCode(w, http.StatusServiceUnavailable,
			errors.New("storage temporarily unavailable"), "storage_error")
	default:
		s.logger.Error("request failed", zap.Error(err))
		response.RenderError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func (s *Server) renderLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, forms.ErrAlreadyFinalized):
		response.RenderErrorWithCode(w, http.StatusConflict, err, "already_finalized")
	case errors.Is(err, forms.ErrNotInitialized):
		response.RenderErrorWithCode(w, http.StatusConflict, err, "not_initialized")
	default:
		s.renderStoreError(w, err)
	}
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	var viewID int64
	if v := q.Get("view_id"); v != "" {
		viewID, _ = strconv.ParseInt(v, 10, 64)
	}
	search := &query.SubmissionSearch{
		Keyword:       q.Get("keyword"),
		FinalizedOnly: q.Get("finalized") != "no",
	}

	limit := 25
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	records, err := s.lister.List(r.Context(), formID, viewID, search, limit, offset)
	if err != nil {
		s.renderStoreError(w, err)
		return
	}
	total, err := s.lister.Count(r.Context(), formID, search)
	if err != nil {
		s.renderStoreError(w, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]interface{}{
		"submissions": records,
		"total":       total,
	})
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	submissionID, err := strconv.ParseInt(chi.URLParam(r, "submissionID"), 10, 64)
	if err != nil || submissionID <= 0 {
		response.RenderError(w, http.StatusBadRequest, errors.New("invalid submission ID"))
		return
	}

	record, err := s.lister.Get(r.Context(), formID, submissionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.RenderError(w, http.StatusNotFound, errors.New("submission not found"))
			return
		}
		s.renderStoreError(w, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteSubmission(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	submissionID, err := strconv.ParseInt(chi.URLParam(r, "submissionID"), 10, 64)
	if err != nil || submissionID <= 0 {
		response.RenderError(w, http.StatusBadRequest, errors.New("invalid submission ID"))
		return
	}

	if err := s.lister.Delete(r.Context(), formID, submissionID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.RenderError(w, http.StatusNotFound, errors.New("submission not found"))
			return
		}
		s.renderStoreError(w, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// multipartFieldNames walks a multipart test submission in post
// order, separating plain inputs from file inputs.
func multipartFieldNames(r *http.Request) (names, fileNames []string, err error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]bool)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return names, fileNames, nil
		}
		if err != nil {
			return nil, nil, err
		}
		name := strings.TrimSuffix(strings.TrimSpace(part.FormName()), "[]")
		isFile := part.FileName() != ""
		part.Close()
		if name == "" || seen[name] || submission.IsReservedKey(name) {
			continue
		}
		seen[name] = true
		if isFile {
			fileNames = append(fileNames, name)
		} else {
			names = append(names, name)
		}
	}
}

// orderedFieldNames extracts distinct custom field names from a raw
// url-encoded body, preserving post order. Go's form parser stores
// values in a map and loses the order the browser posted fields in,
// and that order determines field order on the form.
func orderedFieldNames(body string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, pair := range strings.Split(body, "&") {
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		decoded, err := url.QueryUnescape(key)
		if err != nil {
			continue
		}
		name := strings.TrimSuffix(strings.TrimSpace(decoded), "[]")
		if name == "" || seen[name] || submission.IsReservedKey(name) {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
