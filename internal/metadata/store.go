package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/formworks-hq/formworks/internal/database"
)

// Store provides CRUD over the metadata entities. Methods run against
// the handle the store was built with; WithTx rebinds the store to a
// transaction so a logical operation spans one commit.
type Store struct {
	db      database.DBTX
	dialect database.Dialect
}

// NewStore creates a metadata store on the given database handle.
func NewStore(db database.DBTX, dialect database.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// WithTx returns a store bound to the given transaction.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx, dialect: s.dialect}
}

// Dialect returns the store's SQL dialect.
func (s *Store) Dialect() database.Dialect { return s.dialect }

// Lifecycle flags are persisted as yes/no strings.
func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func isYes(s string) bool { return s == "yes" }

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, database.ConvertError(err)
	}
	return res, nil
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, database.ConvertError(err)
	}
	return rows, nil
}

// insertID executes an INSERT and returns the generated key named by
// idColumn.
func (s *Store) insertID(ctx context.Context, query, idColumn string, args ...interface{}) (int64, error) {
	if s.dialect.InsertReturning() {
		query += " RETURNING " + idColumn
		var id int64
		if err := s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...).Scan(&id); err != nil {
			return 0, database.ConvertError(err)
		}
		return id, nil
	}

	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, database.ConvertError(err)
	}
	return id, nil
}

// CreateForm inserts a new form row and its client assignments and page
// URLs, returning the new form ID. New forms always start inactive and
// incomplete.
func (s *Store) CreateForm(ctx context.Context, f *Form) (int64, error) {
	if f.DateCreated.IsZero() {
		f.DateCreated = time.Now().UTC()
	}

	id, err := s.insertID(ctx, `
		INSERT INTO forms (form_type, access_type, submission_type, date_created,
			is_active, is_complete, is_initialized, is_multi_page_form, form_name,
			form_url, redirect_url, submission_strip_tags, edit_submission_page_label,
			add_submission_button_label, auto_delete_submission_files)
		VALUES (?, ?, ?, ?, 'no', 'no', 'no', ?, ?, ?, ?, ?, ?, ?, ?)`,
		"form_id",
		string(f.Type), string(f.AccessType), string(f.SubmissionType), f.DateCreated,
		yesNo(f.MultiPage), f.Name, f.URL, f.RedirectURL, yesNo(f.StripTags),
		f.EditSubmissionPageLabel, f.AddSubmissionButtonLabel, yesNo(f.AutoDeleteFiles))
	if err != nil {
		return 0, fmt.Errorf("creating form: %w", err)
	}
	f.ID = id

	if err := s.SetFormClients(ctx, id, f.ClientIDs); err != nil {
		return 0, err
	}
	if err := s.SetMultiPageURLs(ctx, id, f.PageURLs); err != nil {
		return 0, err
	}
	return id, nil
}

// GetForm loads a form with its client assignments, omit list, and page
// URLs. Returns database.ErrNotFound when the form does not exist.
func (s *Store) GetForm(ctx context.Context, formID int64) (*Form, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`
		SELECT form_id, form_type, access_type, submission_type, date_created,
			is_active, is_complete, is_initialized, is_multi_page_form, form_name,
			form_url, redirect_url, submission_strip_tags, edit_submission_page_label,
			add_submission_button_label, auto_delete_submission_files
		FROM forms WHERE form_id = ?`), formID)

	f, err := scanForm(row)
	if err != nil {
		return nil, database.ConvertError(err)
	}

	if f.ClientIDs, err = s.FormClients(ctx, formID); err != nil {
		return nil, err
	}
	if f.AccessType == AccessPublic {
		if f.OmitList, err = s.FormOmitList(ctx, formID); err != nil {
			return nil, err
		}
	}
	if f.PageURLs, err = s.MultiPageURLs(ctx, formID); err != nil {
		return nil, err
	}
	return f, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanForm(row rowScanner) (*Form, error) {
	var (
		f                                    Form
		formType, accessType, submissionType string
		active, complete, initialized, multi string
		stripTags, autoDelete                string
	)
	err := row.Scan(&f.ID, &formType, &accessType, &submissionType, &f.DateCreated,
		&active, &complete, &initialized, &multi, &f.Name,
		&f.URL, &f.RedirectURL, &stripTags, &f.EditSubmissionPageLabel,
		&f.AddSubmissionButtonLabel, &autoDelete)
	if err != nil {
		return nil, err
	}
	f.Type = FormType(formType)
	f.AccessType = AccessType(accessType)
	f.SubmissionType = SubmissionType(submissionType)
	f.Active = isYes(active)
	f.Complete = isYes(complete)
	f.Initialized = isYes(initialized)
	f.MultiPage = isYes(multi)
	f.StripTags = isYes(stripTags)
	f.AutoDeleteFiles = isYes(autoDelete)
	return &f, nil
}

// FormExists reports whether the form ID is valid. Unless
// allowIncomplete is set, only initialized and complete forms count.
func (s *Store) FormExists(ctx context.Context, formID int64, allowIncomplete bool) (bool, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT is_initialized, is_complete FROM forms WHERE form_id = ?`), formID)

	var initialized, complete string
	if err := row.Scan(&initialized, &complete); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, database.ConvertError(err)
	}
	if allowIncomplete {
		return true, nil
	}
	return isYes(initialized) && isYes(complete), nil
}

// FormName returns a form's display name.
func (s *Store) FormName(ctx context.Context, formID int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT form_name FROM forms WHERE form_id = ?`), formID).Scan(&name)
	if err != nil {
		return "", database.ConvertError(err)
	}
	return name, nil
}

// FormList returns every completed, initialized form ordered by name.
// Lighter than SearchForms when a caller just needs the choosable set.
func (s *Store) FormList(ctx context.Context) ([]*Form, error) {
	rows, err := s.query(ctx, `
		SELECT form_id, form_type, access_type, submission_type, date_created,
			is_active, is_complete, is_initialized, is_multi_page_form, form_name,
			form_url, redirect_url, submission_strip_tags, edit_submission_page_label,
			add_submission_button_label, auto_delete_submission_files
		FROM forms
		WHERE is_complete = 'yes' AND is_initialized = 'yes'
		ORDER BY form_name`)
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

// UpdateFormAccess changes who may see the form. Leaving the public
// access type clears the omit list, which only applies to public
// forms.
func (s *Store) UpdateFormAccess(ctx context.Context, formID int64, access AccessType) error {
	res, err := s.exec(ctx,
		`UPDATE forms SET access_type = ? WHERE form_id = ?`, string(access), formID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return database.ConvertError(err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	if access != AccessPublic {
		return s.SetFormOmitList(ctx, formID, nil)
	}
	return nil
}

// UpdateFormMain updates the form's main settings row: name, URLs,
// access and submission types, lifecycle and policy flags.
func (s *Store) UpdateFormMain(ctx context.Context, f *Form) error {
	_, err := s.exec(ctx, `
		UPDATE forms
		SET form_type = ?, access_type = ?, submission_type = ?, is_active = ?,
			is_multi_page_form = ?, form_name = ?, form_url = ?, redirect_url = ?,
			submission_strip_tags = ?, edit_submission_page_label = ?,
			add_submission_button_label = ?, auto_delete_submission_files = ?
		WHERE form_id = ?`,
		string(f.Type), string(f.AccessType), string(f.SubmissionType), yesNo(f.Active),
		yesNo(f.MultiPage), f.Name, f.URL, f.RedirectURL,
		yesNo(f.StripTags), f.EditSubmissionPageLabel,
		f.AddSubmissionButtonLabel, yesNo(f.AutoDeleteFiles), f.ID)
	if err != nil {
		return fmt.Errorf("updating form %d: %w", f.ID, err)
	}
	return nil
}

// SetFormInitialized flips the form's is_initialized flag.
func (s *Store) SetFormInitialized(ctx context.Context, formID int64, initialized bool) error {
	_, err := s.exec(ctx,
		`UPDATE forms SET is_initialized = ? WHERE form_id = ?`, yesNo(initialized), formID)
	return err
}

// MarkFormComplete marks the form finalized: initialized, complete, and
// active, stamping date_created.
func (s *Store) MarkFormComplete(ctx context.Context, formID int64) error {
	_, err := s.exec(ctx, `
		UPDATE forms
		SET is_initialized = 'yes', is_complete = 'yes', is_active = 'yes', date_created = ?
		WHERE form_id = ?`, time.Now().UTC(), formID)
	return err
}

// SetSubmissionType updates the form's submission type.
func (s *Store) SetSubmissionType(ctx context.Context, formID int64, st SubmissionType) error {
	_, err := s.exec(ctx,
		`UPDATE forms SET submission_type = ? WHERE form_id = ?`, string(st), formID)
	return err
}

// DeleteFormRow removes the form's own row.
func (s *Store) DeleteFormRow(ctx context.Context, formID int64) error {
	_, err := s.exec(ctx, `DELETE FROM forms WHERE form_id = ?`, formID)
	return err
}

// FormClients returns the account IDs assigned to a form.
func (s *Store) FormClients(ctx context.Context, formID int64) ([]int64, error) {
	return s.idList(ctx,
		`SELECT account_id FROM client_forms WHERE form_id = ? ORDER BY account_id`, formID)
}

// SetFormClients replaces the form's client assignments.
// Delete-then-insert keeps the operation idempotent.
func (s *Store) SetFormClients(ctx context.Context, formID int64, accountIDs []int64) error {
	if _, err := s.exec(ctx, `DELETE FROM client_forms WHERE form_id = ?`, formID); err != nil {
		return err
	}
	for _, accountID := range accountIDs {
		if _, err := s.exec(ctx,
			`INSERT INTO client_forms (account_id, form_id) VALUES (?, ?)`,
			accountID, formID); err != nil {
			return err
		}
	}
	return nil
}

// ClientFormIDs returns the IDs of forms explicitly assigned to an
// account.
func (s *Store) ClientFormIDs(ctx context.Context, accountID int64) ([]int64, error) {
	return s.idList(ctx,
		`SELECT form_id FROM client_forms WHERE account_id = ? ORDER BY form_id`, accountID)
}

// FormOmitList returns the accounts excluded from a public form.
func (s *Store) FormOmitList(ctx context.Context, formID int64) ([]int64, error) {
	return s.idList(ctx,
		`SELECT account_id FROM public_form_omit_list WHERE form_id = ? ORDER BY account_id`, formID)
}

// SetFormOmitList replaces the form's public omit list.
func (s *Store) SetFormOmitList(ctx context.Context, formID int64, accountIDs []int64) error {
	if _, err := s.exec(ctx,
		`DELETE FROM public_form_omit_list WHERE form_id = ?`, formID); err != nil {
		return err
	}
	for _, accountID := range accountIDs {
		if _, err := s.exec(ctx,
			`INSERT INTO public_form_omit_list (form_id, account_id) VALUES (?, ?)`,
			formID, accountID); err != nil {
			return err
		}
	}
	return nil
}

// OmittedFormIDs returns the public forms whose omit list contains the
// account.
func (s *Store) OmittedFormIDs(ctx context.Context, accountID int64) ([]int64, error) {
	return s.idList(ctx,
		`SELECT form_id FROM public_form_omit_list WHERE account_id = ? ORDER BY form_id`, accountID)
}

// MultiPageURLs returns the form's page URLs in page order.
func (s *Store) MultiPageURLs(ctx context.Context, formID int64) ([]string, error) {
	rows, err := s.query(ctx,
		`SELECT form_url FROM multi_page_form_urls WHERE form_id = ? ORDER BY page_num`, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, database.ConvertError(err)
		}
		urls = append(urls, u)
	}
	return urls, database.ConvertError(rows.Err())
}

// SetMultiPageURLs replaces the form's page URL list. Empty entries are
// skipped; page numbers are assigned from position.
func (s *Store) SetMultiPageURLs(ctx context.Context, formID int64, urls []string) error {
	if _, err := s.exec(ctx,
		`DELETE FROM multi_page_form_urls WHERE form_id = ?`, formID); err != nil {
		return err
	}
	pageNum := 1
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, err := s.exec(ctx,
			`INSERT INTO multi_page_form_urls (form_id, form_url, page_num) VALUES (?, ?, ?)`,
			formID, u, pageNum); err != nil {
			return err
		}
		pageNum++
	}
	return nil
}

func (s *Store) idList(ctx context.Context, query string, arg interface{}) ([]int64, error) {
	rows, err := s.query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, database.ConvertError(err)
		}
		ids = append(ids, id)
	}
	return ids, database.ConvertError(rows.Err())
}
