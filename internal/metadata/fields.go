package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/formworks-hq/formworks/internal/database"
)

// CreateField inserts a field row and returns its ID.
func (s *Store) CreateField(ctx context.Context, f *FormField) (int64, error) {
	id, err := s.insertID(ctx, `
		INSERT INTO form_fields (form_id, field_name, field_title, field_type_id,
			field_size, col_name, is_system_field, include_on_redirect, list_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"field_id",
		f.FormID, f.Name, f.Title, f.TypeID, string(f.Size), f.ColName,
		yesNo(f.System), yesNo(f.IncludeOnRedirect), f.ListOrder)
	if err != nil {
		return 0, fmt.Errorf("creating field %q: %w", f.Name, err)
	}
	f.ID = id
	return id, nil
}

// FormFields returns the form's fields ordered by list_order.
func (s *Store) FormFields(ctx context.Context, formID int64) ([]*FormField, error) {
	rows, err := s.query(ctx, `
		SELECT field_id, form_id, field_name, field_title, field_type_id,
			field_size, col_name, is_system_field, include_on_redirect, list_order
		FROM form_fields WHERE form_id = ? ORDER BY list_order`, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []*FormField
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, database.ConvertError(rows.Err())
}

// FormColumnNames lists the column names of a form's fields in
// display order. System fields are skipped unless includeSystem is
// set.
func (s *Store) FormColumnNames(ctx context.Context, formID int64, includeSystem bool) ([]string, error) {
	q := `SELECT col_name FROM form_fields WHERE form_id = ? AND col_name <> ''`
	if !includeSystem {
		q += ` AND is_system_field = 'no'`
	}
	q += ` ORDER BY list_order`

	rows, err := s.query(ctx, q, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, database.ConvertError(err)
		}
		cols = append(cols, col)
	}
	return cols, database.ConvertError(rows.Err())
}

// GetField loads a single field by ID.
func (s *Store) GetField(ctx context.Context, fieldID int64) (*FormField, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`
		SELECT field_id, form_id, field_name, field_title, field_type_id,
			field_size, col_name, is_system_field, include_on_redirect, list_order
		FROM form_fields WHERE field_id = ?`), fieldID)
	return scanField(row)
}

func scanField(row rowScanner) (*FormField, error) {
	var (
		f               FormField
		size            string
		system, onRedir string
	)
	err := row.Scan(&f.ID, &f.FormID, &f.Name, &f.Title, &f.TypeID,
		&size, &f.ColName, &system, &onRedir, &f.ListOrder)
	if err != nil {
		return nil, database.ConvertError(err)
	}
	f.Size = FieldSize(size)
	f.System = isYes(system)
	f.IncludeOnRedirect = isYes(onRedir)
	return &f, nil
}

// UpdateField rewrites a field's mutable attributes.
func (s *Store) UpdateField(ctx context.Context, f *FormField) error {
	_, err := s.exec(ctx, `
		UPDATE form_fields
		SET field_name = ?, field_title = ?, field_type_id = ?, field_size = ?,
			col_name = ?, include_on_redirect = ?, list_order = ?
		WHERE field_id = ?`,
		f.Name, f.Title, f.TypeID, string(f.Size), f.ColName,
		yesNo(f.IncludeOnRedirect), f.ListOrder, f.ID)
	if err != nil {
		return fmt.Errorf("updating field %d: %w", f.ID, err)
	}
	return nil
}

// UpdateFieldTypeAndSize rewrites just a field's type and storage size.
func (s *Store) UpdateFieldTypeAndSize(ctx context.Context, fieldID int64, typeID int, size FieldSize) error {
	_, err := s.exec(ctx,
		`UPDATE form_fields SET field_type_id = ?, field_size = ? WHERE field_id = ?`,
		typeID, string(size), fieldID)
	return err
}

// DeleteField removes a field row and its settings.
func (s *Store) DeleteField(ctx context.Context, fieldID int64) error {
	if err := s.DeleteFieldSettings(ctx, fieldID); err != nil {
		return err
	}
	_, err := s.exec(ctx, `DELETE FROM form_fields WHERE field_id = ?`, fieldID)
	return err
}

// DeleteFormFields removes all field rows and settings for a form.
func (s *Store) DeleteFormFields(ctx context.Context, formID int64) error {
	if _, err := s.exec(ctx, `
		DELETE FROM field_settings WHERE field_id IN
			(SELECT field_id FROM form_fields WHERE form_id = ?)`, formID); err != nil {
		return err
	}
	_, err := s.exec(ctx, `DELETE FROM form_fields WHERE form_id = ?`, formID)
	return err
}

// FieldSettings returns a field's settings keyed by setting ID.
func (s *Store) FieldSettings(ctx context.Context, fieldID int64) (map[int]string, error) {
	rows, err := s.query(ctx,
		`SELECT setting_id, setting_value FROM field_settings WHERE field_id = ?`, fieldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[int]string)
	for rows.Next() {
		var (
			id    int
			value string
		)
		if err := rows.Scan(&id, &value); err != nil {
			return nil, database.ConvertError(err)
		}
		settings[id] = value
	}
	return settings, database.ConvertError(rows.Err())
}

// ReplaceFieldSettings rewrites a field's settings wholesale.
func (s *Store) ReplaceFieldSettings(ctx context.Context, fieldID int64, settings map[int]string) error {
	if err := s.DeleteFieldSettings(ctx, fieldID); err != nil {
		return err
	}
	for settingID, value := range settings {
		if _, err := s.exec(ctx,
			`INSERT INTO field_settings (field_id, setting_id, setting_value) VALUES (?, ?, ?)`,
			fieldID, settingID, value); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFieldSettings removes all settings for a field.
func (s *Store) DeleteFieldSettings(ctx context.Context, fieldID int64) error {
	_, err := s.exec(ctx, `DELETE FROM field_settings WHERE field_id = ?`, fieldID)
	return err
}

// FieldColumnMap returns field name to storage column for the form's
// non-system fields.
func (s *Store) FieldColumnMap(ctx context.Context, formID int64) (map[string]string, error) {
	rows, err := s.query(ctx, `
		SELECT field_name, col_name FROM form_fields
		WHERE form_id = ? AND is_system_field = 'no'`, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var name, col string
		if err := rows.Scan(&name, &col); err != nil {
			return nil, database.ConvertError(err)
		}
		m[name] = col
	}
	return m, database.ConvertError(rows.Err())
}

// NextListOrder returns the list order for a field appended to the
// form.
func (s *Store) NextListOrder(ctx context.Context, formID int64) (int, error) {
	var max int
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT COALESCE(MAX(list_order), 0) FROM form_fields WHERE form_id = ?`), formID).Scan(&max)
	if err != nil {
		return 0, database.ConvertError(err)
	}
	return max + 1, nil
}

// UniqueColumnName derives a storage column name from a raw field name:
// lowercased, non-alphanumerics collapsed to underscores, deduplicated
// against taken with a numeric suffix, and never colliding with a
// reserved system column.
func UniqueColumnName(raw string, taken map[string]bool) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	col := strings.Trim(b.String(), "_")
	if col == "" {
		col = "col"
	}
	if col[0] >= '0' && col[0] <= '9' {
		col = "col_" + col
	}
	if len(col) > 60 {
		col = col[:60]
	}

	candidate := col
	for i := 2; taken[candidate] || IsSystemColumn(candidate); i++ {
		candidate = fmt.Sprintf("%s_%d", col, i)
	}
	return candidate
}
