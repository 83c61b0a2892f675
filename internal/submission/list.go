package submission

import (
	"context"
	"fmt"

	"github.com/formworks-hq/formworks/internal/database"
	"github.com/formworks-hq/formworks/internal/metadata"
	"github.com/formworks-hq/formworks/internal/provision"
	"github.com/formworks-hq/formworks/internal/query"
)

// Lister reads stored submissions back out of form tables. Rows come
// back as column-keyed maps since each form's column set is only known
// at runtime.
type Lister struct {
	db      database.DBTX
	dialect database.Dialect
	store   *metadata.Store
}

// NewLister creates a lister on the given handle.
func NewLister(db database.DBTX, dialect database.Dialect, store *metadata.Store) *Lister {
	return &Lister{db: db, dialect: dialect, store: store}
}

// List returns submissions for a form matching the search, scoped to
// the view: keyword matching runs only over the view's searchable
// columns. limit 0 means no limit.
func (l *Lister) List(ctx context.Context, formID, viewID int64, search *query.SubmissionSearch, limit, offset int) ([]map[string]interface{}, error) {
	if search == nil {
		search = &query.SubmissionSearch{}
	}
	if search.Keyword != "" && len(search.SearchColumns) == 0 {
		cols, err := l.store.SearchableColumns(ctx, viewID)
		if err != nil {
			return nil, err
		}
		search.SearchColumns = quoteAll(l.dialect, cols)
	}

	where, orderBy, args, err := search.ToSQL()
	if err != nil {
		return nil, err
	}

	q := "SELECT * FROM " + l.dialect.QuoteIdentifier(provision.TableName(formID))
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY " + orderBy
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}

	rows, err := l.db.QueryContext(ctx, l.dialect.Rebind(q), args...)
	if err != nil {
		return nil, database.ConvertError(err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Get returns a single submission row, or database.ErrNotFound.
func (l *Lister) Get(ctx context.Context, formID, submissionID int64) (map[string]interface{}, error) {
	q := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?",
		l.dialect.QuoteIdentifier(provision.TableName(formID)),
		l.dialect.QuoteIdentifier(metadata.ColSubmissionID))

	rows, err := l.db.QueryContext(ctx, l.dialect.Rebind(q), submissionID)
	if err != nil {
		return nil, database.ConvertError(err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, database.ErrNotFound
	}
	return records[0], nil
}

// Count returns the number of submissions matching the search.
func (l *Lister) Count(ctx context.Context, formID int64, search *query.SubmissionSearch) (int64, error) {
	if search == nil {
		search = &query.SubmissionSearch{}
	}
	where, _, args, err := search.ToSQL()
	if err != nil {
		return 0, err
	}

	q := "SELECT COUNT(*) FROM " + l.dialect.QuoteIdentifier(provision.TableName(formID))
	if where != "" {
		q += " WHERE " + where
	}

	var n int64
	if err := l.db.QueryRowContext(ctx, l.dialect.Rebind(q), args...).Scan(&n); err != nil {
		return 0, database.ConvertError(err)
	}
	return n, nil
}

// Delete removes a submission row.
func (l *Lister) Delete(ctx context.Context, formID, submissionID int64) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
		l.dialect.QuoteIdentifier(provision.TableName(formID)),
		l.dialect.QuoteIdentifier(metadata.ColSubmissionID))
	res, err := l.db.ExecContext(ctx, l.dialect.Rebind(q), submissionID)
	if err != nil {
		return database.ConvertError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return database.ErrNotFound
	}
	return nil
}

// scanRecords reads all rows into column-keyed maps. Byte slices are
// normalized to strings so callers see text, not driver internals.
func scanRecords(rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, database.ConvertError(err)
	}

	var records []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, database.ConvertError(err)
		}

		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}
		records = append(records, record)
	}
	return records, database.ConvertError(rows.Err())
}

func quoteAll(d database.Dialect, names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdentifier(n)
	}
	return quoted
}
