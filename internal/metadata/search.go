package metadata

import (
	"context"

	"github.com/formworks-hq/formworks/internal/database"
	"github.com/formworks-hq/formworks/internal/query"
)

// SearchForms lists forms matching the criteria. Client and omit-list
// assignments are not loaded; fetch a full record with GetForm.
func (s *Store) SearchForms(ctx context.Context, criteria *query.FormSearch) ([]*Form, error) {
	where, orderBy, args, err := criteria.ToSQL()
	if err != nil {
		return nil, err
	}

	q := `
		SELECT form_id, form_type, access_type, submission_type, date_created,
			is_active, is_complete, is_initialized, is_multi_page_form, form_name,
			form_url, redirect_url, submission_strip_tags, edit_submission_page_label,
			add_submission_button_label, auto_delete_submission_files
		FROM forms`
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY " + orderBy

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forms []*Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, database.ConvertError(err)
		}
		forms = append(forms, f)
	}
	return forms, database.ConvertError(rows.Err())
}
