package metadata

import (
	"context"
	"fmt"

	"github.com/formworks-hq/formworks/internal/database"
)

// CreateView inserts a view with its fields, tabs, and filters.
func (s *Store) CreateView(ctx context.Context, v *View) (int64, error) {
	id, err := s.insertID(ctx, `
		INSERT INTO views (form_id, view_name, view_order, is_default, access_type,
			num_submissions_per_page, default_sort_field, default_sort_field_order,
			may_add_submissions, may_edit_submissions, may_delete_submissions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"view_id",
		v.FormID, v.Name, v.Order, yesNo(v.Default), string(v.AccessType),
		v.SubmissionsPerPage, v.DefaultSortField, v.DefaultSortOrder,
		yesNo(v.MayAdd), yesNo(v.MayEdit), yesNo(v.MayDelete))
	if err != nil {
		return 0, fmt.Errorf("creating view %q: %w", v.Name, err)
	}
	v.ID = id

	for i := range v.Tabs {
		v.Tabs[i].ViewID = id
		if _, err := s.exec(ctx,
			`INSERT INTO view_tabs (view_id, tab_number, tab_label) VALUES (?, ?, ?)`,
			id, v.Tabs[i].Number, v.Tabs[i].Label); err != nil {
			return 0, err
		}
	}
	for i := range v.Fields {
		v.Fields[i].ViewID = id
		vf := &v.Fields[i]
		if _, err := s.exec(ctx, `
			INSERT INTO view_fields (view_id, field_id, tab_number, is_searchable,
				is_sortable, is_column, is_editable, list_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, vf.FieldID, vf.TabNumber, yesNo(vf.Searchable),
			yesNo(vf.Sortable), yesNo(vf.Column), yesNo(vf.Editable), vf.ListOrder); err != nil {
			return 0, err
		}
	}
	for i := range v.Filters {
		v.Filters[i].ViewID = id
		vf := &v.Filters[i]
		if _, err := s.exec(ctx, `
			INSERT INTO view_filters (view_id, field_id, filter_type, operator, filter_values, filter_sql)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, vf.FieldID, vf.FilterType, vf.Operator, vf.Values, vf.SQL); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// CreateDefaultView builds the "All Submissions" view a finalized form
// starts with. Every field is searchable and editable; the first few
// non-system fields become list columns alongside the submission date.
func (s *Store) CreateDefaultView(ctx context.Context, formID int64, fields []*FormField) (int64, error) {
	v := &View{
		FormID:             formID,
		Name:               "All Submissions",
		Order:              1,
		Default:            true,
		AccessType:         AccessPublic,
		SubmissionsPerPage: 10,
		DefaultSortField:   ColSubmissionDate,
		DefaultSortOrder:   "desc",
		MayAdd:             true,
		MayEdit:            true,
		MayDelete:          true,
	}

	columns := 0
	for i, f := range fields {
		col := f.ColName == ColSubmissionDate
		if !f.System && columns < 5 {
			col = true
			columns++
		}
		v.Fields = append(v.Fields, ViewField{
			FieldID:    f.ID,
			TabNumber:  1,
			Searchable: true,
			Sortable:   true,
			Column:     col,
			Editable:   true,
			ListOrder:  i + 1,
		})
	}
	return s.CreateView(ctx, v)
}

// FormViewIDs returns the IDs of a form's views.
func (s *Store) FormViewIDs(ctx context.Context, formID int64) ([]int64, error) {
	return s.idList(ctx,
		`SELECT view_id FROM views WHERE form_id = ? ORDER BY view_order`, formID)
}

// GetView loads a view with its fields, tabs, and filters.
func (s *Store) GetView(ctx context.Context, viewID int64) (*View, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`
		SELECT view_id, form_id, view_name, view_order, is_default, access_type,
			num_submissions_per_page, default_sort_field, default_sort_field_order,
			may_add_submissions, may_edit_submissions, may_delete_submissions
		FROM views WHERE view_id = ?`), viewID)

	var (
		v                        View
		isDefault, access        string
		mayAdd, mayEdit, mayDel  string
	)
	err := row.Scan(&v.ID, &v.FormID, &v.Name, &v.Order, &isDefault, &access,
		&v.SubmissionsPerPage, &v.DefaultSortField, &v.DefaultSortOrder,
		&mayAdd, &mayEdit, &mayDel)
	if err != nil {
		return nil, database.ConvertError(err)
	}
	v.Default = isYes(isDefault)
	v.AccessType = AccessType(access)
	v.MayAdd = isYes(mayAdd)
	v.MayEdit = isYes(mayEdit)
	v.MayDelete = isYes(mayDel)

	if err := s.loadViewChildren(ctx, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) loadViewChildren(ctx context.Context, v *View) error {
	rows, err := s.query(ctx,
		`SELECT tab_number, tab_label FROM view_tabs WHERE view_id = ? ORDER BY tab_number`, v.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		t := ViewTab{ViewID: v.ID}
		if err := rows.Scan(&t.Number, &t.Label); err != nil {
			rows.Close()
			return database.ConvertError(err)
		}
		v.Tabs = append(v.Tabs, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return database.ConvertError(err)
	}

	rows, err = s.query(ctx, `
		SELECT field_id, tab_number, is_searchable, is_sortable, is_column, is_editable, list_order
		FROM view_fields WHERE view_id = ? ORDER BY list_order`, v.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		vf := ViewField{ViewID: v.ID}
		var searchable, sortable, column, editable string
		if err := rows.Scan(&vf.FieldID, &vf.TabNumber, &searchable, &sortable,
			&column, &editable, &vf.ListOrder); err != nil {
			rows.Close()
			return database.ConvertError(err)
		}
		vf.Searchable = isYes(searchable)
		vf.Sortable = isYes(sortable)
		vf.Column = isYes(column)
		vf.Editable = isYes(editable)
		v.Fields = append(v.Fields, vf)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return database.ConvertError(err)
	}

	rows, err = s.query(ctx, `
		SELECT field_id, filter_type, operator, filter_values, filter_sql
		FROM view_filters WHERE view_id = ?`, v.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		vf := ViewFilter{ViewID: v.ID}
		if err := rows.Scan(&vf.FieldID, &vf.FilterType, &vf.Operator,
			&vf.Values, &vf.SQL); err != nil {
			return database.ConvertError(err)
		}
		v.Filters = append(v.Filters, vf)
	}
	return database.ConvertError(rows.Err())
}

// SearchableColumns returns the storage columns a view permits keyword
// search over.
func (s *Store) SearchableColumns(ctx context.Context, viewID int64) ([]string, error) {
	rows, err := s.query(ctx, `
		SELECT ff.col_name
		FROM view_fields vf
		JOIN form_fields ff ON ff.field_id = vf.field_id
		WHERE vf.view_id = ? AND vf.is_searchable = 'yes'
		ORDER BY vf.list_order`, viewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, database.ConvertError(err)
		}
		cols = append(cols, c)
	}
	return cols, database.ConvertError(rows.Err())
}

// DeleteView removes a view and its child rows.
func (s *Store) DeleteView(ctx context.Context, viewID int64) error {
	for _, q := range []string{
		`DELETE FROM view_filters WHERE view_id = ?`,
		`DELETE FROM view_fields WHERE view_id = ?`,
		`DELETE FROM view_tabs WHERE view_id = ?`,
		`DELETE FROM views WHERE view_id = ?`,
	} {
		if _, err := s.exec(ctx, q, viewID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFormViews removes all views for a form.
func (s *Store) DeleteFormViews(ctx context.Context, formID int64) error {
	ids, err := s.FormViewIDs(ctx, formID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.DeleteView(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFieldFromViews scrubs a deleted field out of every view that
// references it.
func (s *Store) RemoveFieldFromViews(ctx context.Context, fieldID int64) error {
	if _, err := s.exec(ctx, `DELETE FROM view_fields WHERE field_id = ?`, fieldID); err != nil {
		return err
	}
	_, err := s.exec(ctx, `DELETE FROM view_filters WHERE field_id = ?`, fieldID)
	return err
}
