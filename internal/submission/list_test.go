package submission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formworks-hq/formworks/internal/database"
	"github.com/formworks-hq/formworks/internal/query"
)

func (f *fixture) lister() *Lister {
	return NewLister(f.db, f.dialect, f.store)
}

func (f *fixture) submit(t *testing.T, name string, likes ...string) int64 {
	t.Helper()
	result, err := f.pipeline().Process(context.Background(), f.payload(map[string][]string{
		"name":  {name},
		"likes": likes,
	}), "1.2.3.4")
	require.NoError(t, err)
	require.True(t, result.Stored)
	return result.SubmissionID
}

func TestListerList(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.submit(t, "Alice", "go")
	fx.submit(t, "Bob", "sql")
	fx.submit(t, "Carol", "go", "sql")

	records, err := fx.lister().List(ctx, fx.formID, 0, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first by default.
	assert.Equal(t, "Carol", records[0]["name"])
	assert.Equal(t, "Alice", records[2]["name"])
	assert.Equal(t, "yes", records[0]["is_finalized"])

	// Paging.
	records, err = fx.lister().List(ctx, fx.formID, 0, nil, 1, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Bob", records[0]["name"])
}

func TestListerKeywordSearch(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.submit(t, "Alice Adams", "go")
	fx.submit(t, "Bob Brown", "sql")

	search := &query.SubmissionSearch{Keyword: "adams", SearchColumns: []string{"name"}}
	records, err := fx.lister().List(ctx, fx.formID, 0, search, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Alice Adams", records[0]["name"])

	n, err := fx.lister().Count(ctx, fx.formID, search)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestListerKeywordWithLikeMetacharacters(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.submit(t, "progress 100% done", "go")
	fx.submit(t, "progress 100 of 200", "sql")
	fx.submit(t, "under_score", "go")

	// A literal percent sign must not act as a wildcard.
	search := &query.SubmissionSearch{Keyword: "100%", SearchColumns: []string{"name"}}
	records, err := fx.lister().List(ctx, fx.formID, 0, search, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "progress 100% done", records[0]["name"])

	// Same for underscore.
	search = &query.SubmissionSearch{Keyword: "under_s", SearchColumns: []string{"name"}}
	records, err = fx.lister().List(ctx, fx.formID, 0, search, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "under_score", records[0]["name"])
}

func TestListerKeywordUsesViewColumns(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fields, err := fx.store.FormFields(ctx, fx.formID)
	require.NoError(t, err)
	viewID, err := fx.store.CreateDefaultView(ctx, fx.formID, fields)
	require.NoError(t, err)

	fx.submit(t, "Alice", "go")
	fx.submit(t, "Bob", "sql")

	records, err := fx.lister().List(ctx, fx.formID, viewID,
		&query.SubmissionSearch{Keyword: "alice"}, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Alice", records[0]["name"])
}

func TestListerGet(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id := fx.submit(t, "Alice", "go")

	record, err := fx.lister().Get(ctx, fx.formID, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", record["name"])
	assert.Equal(t, id, record["submission_id"])

	_, err = fx.lister().Get(ctx, fx.formID, 999)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestListerCount(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	n, err := fx.lister().Count(ctx, fx.formID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	fx.submit(t, "Alice")
	fx.submit(t, "Bob")

	n, err = fx.lister().Count(ctx, fx.formID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = fx.lister().Count(ctx, fx.formID, &query.SubmissionSearch{FinalizedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestListerDelete(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id := fx.submit(t, "Alice")
	require.NoError(t, fx.lister().Delete(ctx, fx.formID, id))
	assert.Equal(t, 0, fx.rowCount(t))

	assert.ErrorIs(t, fx.lister().Delete(ctx, fx.formID, id), database.ErrNotFound)
}
