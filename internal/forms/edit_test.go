package forms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formworks-hq/formworks/internal/hooks"
	"github.com/formworks-hq/formworks/internal/metadata"
)

func fieldByName(t *testing.T, fx *fixture, formID int64, name string) *metadata.FormField {
	t.Helper()
	fields, err := fx.store.FormFields(context.Background(), formID)
	require.NoError(t, err)
	for _, f := range fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("field %q not found", name)
	return nil
}

func TestEditFieldsRename(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	formID := fx.setupForm(t, []string{"name", "comments"}, true)
	field := fieldByName(t, fx, formID, "name")

	results, err := fx.orch.EditFields(ctx, formID, []FieldChange{
		{FieldID: field.ID, Name: "full_name", Title: "Full Name",
			TypeID: field.TypeID, Size: field.Size, ListOrder: field.ListOrder},
	}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	// Metadata and the physical column moved together.
	got, err := fx.store.GetField(ctx, field.ID)
	require.NoError(t, err)
	assert.Equal(t, "full_name", got.Name)
	assert.Equal(t, "full_name", got.ColName)
	assert.Equal(t, "Full Name", got.Title)

	cols, err := fx.prov.TableColumns(ctx, formID)
	require.NoError(t, err)
	assert.Contains(t, cols, "full_name")
	assert.NotContains(t, cols, "name")
}

func TestEditFieldsRenameCollision(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	formID := fx.setupForm(t, []string{"name", "comments"}, true)
	field := fieldByName(t, fx, formID, "name")

	// Renaming onto a sibling's name lands on a deduplicated column.
	results, err := fx.orch.EditFields(ctx, formID, []FieldChange{
		{FieldID: field.ID, Name: "comments",
			TypeID: field.TypeID, Size: field.Size, ListOrder: field.ListOrder},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, results[0].Err)

	got, err := fx.store.GetField(ctx, field.ID)
	require.NoError(t, err)
	assert.Equal(t, "comments_2", got.ColName)

	cols, err := fx.prov.TableColumns(ctx, formID)
	require.NoError(t, err)
	assert.Contains(t, cols, "comments")
	assert.Contains(t, cols, "comments_2")
}

func TestEditFieldsFailureIsolatedPerField(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	formID := fx.setupForm(t, []string{"name", "comments"}, true)
	name := fieldByName(t, fx, formID, "name")
	comments := fieldByName(t, fx, formID, "comments")

	results, err := fx.orch.EditFields(ctx, formID, []FieldChange{
		{FieldID: 9999, Name: "ghost"},
		{FieldID: name.ID, Name: "renamed",
			TypeID: name.TypeID, Size: name.Size, ListOrder: name.ListOrder},
		{FieldID: comments.ID, Name: "notes",
			TypeID: comments.TypeID, Size: comments.Size, ListOrder: comments.ListOrder},
	}, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Error(t, results[0].Err, "the unknown field fails alone")
	assert.NoError(t, results[1].Err)
	assert.NoError(t, results[2].Err)

	cols, err := fx.prov.TableColumns(ctx, formID)
	require.NoError(t, err)
	assert.Contains(t, cols, "renamed")
	assert.Contains(t, cols, "notes")
}

func TestEditFieldsSystemFieldDisplayOnly(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	formID := fx.setupForm(t, []string{"name"}, true)
	dateField := fieldByName(t, fx, formID, metadata.ColSubmissionDate)

	results, err := fx.orch.EditFields(ctx, formID, []FieldChange{
		{FieldID: dateField.ID, Name: "hijacked", Title: "Received",
			TypeID: 1, IncludeOnRedirect: true},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, results[0].Err)

	got, err := fx.store.GetField(ctx, dateField.ID)
	require.NoError(t, err)
	assert.Equal(t, "Received", got.Title)
	assert.True(t, got.IncludeOnRedirect)
	assert.Equal(t, metadata.ColSubmissionDate, got.Name, "name and column never change")
	assert.Equal(t, metadata.ColSubmissionDate, got.ColName)
	assert.Equal(t, dateField.TypeID, got.TypeID)
}

func TestEditFieldsFileTransition(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	formID := fx.setupForm(t, []string{"attachment", "name"}, true)
	field := fieldByName(t, fx, formID, "attachment")

	// Becoming a file field drops the storage column.
	results, err := fx.orch.EditFields(ctx, formID, []FieldChange{
		{FieldID: field.ID, TypeID: 8, Size: field.Size, ListOrder: field.ListOrder},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, results[0].Err)

	cols, err := fx.prov.TableColumns(ctx, formID)
	require.NoError(t, err)
	assert.NotContains(t, cols, "attachment")

	// Turning it back adds one.
	results, err = fx.orch.EditFields(ctx, formID, []FieldChange{
		{FieldID: field.ID, TypeID: 1, Size: metadata.SizeMedium, ListOrder: field.ListOrder},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, results[0].Err)

	cols, err = fx.prov.TableColumns(ctx, formID)
	require.NoError(t, err)
	assert.Contains(t, cols, "attachment")
}

func TestEditFieldsTypeChangeMigratesSettings(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	formID := fx.setupForm(t, []string{"color"}, false)
	field := fieldByName(t, fx, formID, "color")

	// A dropdown whose contents setting should follow it to multi-select.
	require.NoError(t, fx.orch.SetFieldTypesAndSizes(ctx, formID, []FieldAssignment{
		{FieldID: field.ID, TypeID: 4, Size: metadata.SizeSmall,
			Options: []metadata.Option{{Value: "r", Text: "Red"}}},
	}))
	before, err := fx.store.FieldSettings(ctx, field.ID)
	require.NoError(t, err)
	require.NotEmpty(t, before[11])

	results, err := fx.orch.EditFields(ctx, formID, []FieldChange{
		{FieldID: field.ID, TypeID: 5, Size: metadata.SizeSmall, ListOrder: field.ListOrder},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, results[0].Err)

	after, err := fx.store.FieldSettings(ctx, field.ID)
	require.NoError(t, err)
	assert.Equal(t, before[11], after[16], "the contents setting moved to its multi-select slot")
	assert.Empty(t, after[11])
}

func TestEditFieldsDelete(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	formID := fx.setupForm(t, []string{"name", "extra"}, true)
	extra := fieldByName(t, fx, formID, "extra")

	results, err := fx.orch.EditFields(ctx, formID, nil, []int64{extra.ID})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	_, err = fx.store.GetField(ctx, extra.ID)
	assert.Error(t, err)

	cols, err := fx.prov.TableColumns(ctx, formID)
	require.NoError(t, err)
	assert.NotContains(t, cols, "extra")

	// Views no longer reference the field.
	viewIDs, err := fx.store.FormViewIDs(ctx, formID)
	require.NoError(t, err)
	view, err := fx.store.GetView(ctx, viewIDs[0])
	require.NoError(t, err)
	for _, vf := range view.Fields {
		assert.NotEqual(t, extra.ID, vf.FieldID)
	}
}

func TestEditFieldsDeleteSystemFieldRejected(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	formID := fx.setupForm(t, []string{"name"}, true)
	idField := fieldByName(t, fx, formID, metadata.ColSubmissionID)

	results, err := fx.orch.EditFields(ctx, formID, nil, []int64{idField.ID})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)

	_, err = fx.store.GetField(ctx, idField.ID)
	assert.NoError(t, err, "the system field survives")
}

func TestEditFieldsDeleteHookAbortsBatch(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	formID := fx.setupForm(t, []string{"name", "extra"}, true)
	extra := fieldByName(t, fx, formID, "extra")

	boom := errors.New("handler says no")
	fx.dispatch.Register(hooks.StageDeleteFields, func(ctx context.Context, event interface{}) error {
		deleting := event.(*hooks.FieldsDeleting)
		assert.Equal(t, formID, deleting.FormID)
		return boom
	})

	_, err := fx.orch.EditFields(ctx, formID, nil, []int64{extra.ID})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	_, err = fx.store.GetField(ctx, extra.ID)
	assert.NoError(t, err, "nothing was deleted")
	cols, err := fx.prov.TableColumns(ctx, formID)
	require.NoError(t, err)
	assert.Contains(t, cols, "extra")
}
