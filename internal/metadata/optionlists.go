package metadata

import (
	"context"
	"fmt"

	"github.com/formworks-hq/formworks/internal/database"
)

// CreateOptionList inserts an option list and its options, returning
// the list ID.
func (s *Store) CreateOptionList(ctx context.Context, l *OptionList) (int64, error) {
	id, err := s.insertID(ctx,
		`INSERT INTO option_lists (form_id, list_name) VALUES (?, ?)`,
		"list_id", l.FormID, l.Name)
	if err != nil {
		return 0, fmt.Errorf("creating option list %q: %w", l.Name, err)
	}
	l.ID = id

	for i := range l.Options {
		o := &l.Options[i]
		if o.Order == 0 {
			o.Order = i + 1
		}
		if _, err := s.exec(ctx, `
			INSERT INTO field_options (list_id, option_order, option_value, option_name)
			VALUES (?, ?, ?, ?)`,
			id, o.Order, o.Value, o.Text); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// GetOptionList loads an option list with its options in order.
func (s *Store) GetOptionList(ctx context.Context, listID int64) (*OptionList, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT list_id, form_id, list_name FROM option_lists WHERE list_id = ?`), listID)

	var l OptionList
	if err := row.Scan(&l.ID, &l.FormID, &l.Name); err != nil {
		return nil, database.ConvertError(err)
	}

	rows, err := s.query(ctx, `
		SELECT option_order, option_value, option_name
		FROM field_options WHERE list_id = ? ORDER BY option_order`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.Order, &o.Value, &o.Text); err != nil {
			return nil, database.ConvertError(err)
		}
		l.Options = append(l.Options, o)
	}
	return &l, database.ConvertError(rows.Err())
}

// FormOptionListIDs returns the option lists owned by a form.
func (s *Store) FormOptionListIDs(ctx context.Context, formID int64) ([]int64, error) {
	return s.idList(ctx,
		`SELECT list_id FROM option_lists WHERE form_id = ? ORDER BY list_id`, formID)
}

// DeleteOptionList removes a list and its options.
func (s *Store) DeleteOptionList(ctx context.Context, listID int64) error {
	if _, err := s.exec(ctx, `DELETE FROM field_options WHERE list_id = ?`, listID); err != nil {
		return err
	}
	_, err := s.exec(ctx, `DELETE FROM option_lists WHERE list_id = ?`, listID)
	return err
}

// DeleteFormOptionLists removes every option list owned by a form.
func (s *Store) DeleteFormOptionLists(ctx context.Context, formID int64) error {
	ids, err := s.FormOptionListIDs(ctx, formID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.DeleteOptionList(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
