// Package database provides the storage-access boundary shared by the
// metadata store and the schema provisioner: connection setup, SQL
// dialects, and conversion of driver errors into the engine's taxonomy.
package database

import (
	"fmt"
	"strings"
)

// Dialect abstracts the differences between the supported SQL backends.
// Queries throughout the codebase are written with ? placeholders and
// rebound through the dialect before execution.
type Dialect interface {
	// Name returns the dialect identifier ("postgres" or "sqlite").
	Name() string

	// Rebind converts ? placeholders to the dialect's native form.
	Rebind(query string) string

	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(name string) string

	// AutoIncrementPK returns the column definition for an
	// auto-incrementing integer primary key.
	AutoIncrementPK(column string) string

	// InsertReturning reports whether INSERT ... RETURNING must be used
	// to obtain the generated key instead of LastInsertId.
	InsertReturning() bool

	// RenameColumnSQL returns the statement renaming a column.
	RenameColumnSQL(table, oldName, newName string) string

	// AlterColumnTypeSQL returns the statement changing a column's type,
	// or ok=false when the backend cannot alter column types in place.
	AlterColumnTypeSQL(table, column, sqlType string) (stmt string, ok bool)

	// TableColumnsSQL returns the query listing a table's column names,
	// one per row, in definition order.
	TableColumnsSQL(table string) string

	// TableExistsSQL returns a query yielding one row iff the table exists.
	TableExistsSQL(table string) string
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres{}, nil
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Postgres implements Dialect for PostgreSQL.
type Postgres struct{}

// Name returns "postgres".
func (Postgres) Name() string { return "postgres" }

// Rebind converts ? placeholders to $1, $2, ...
func (Postgres) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

// QuoteIdentifier quotes an identifier with double quotes.
func (Postgres) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// AutoIncrementPK returns a SERIAL primary key definition.
func (d Postgres) AutoIncrementPK(column string) string {
	return d.QuoteIdentifier(column) + " SERIAL PRIMARY KEY"
}

// InsertReturning reports true: lib/pq does not support LastInsertId.
func (Postgres) InsertReturning() bool { return true }

// RenameColumnSQL returns an ALTER TABLE ... RENAME COLUMN statement.
func (d Postgres) RenameColumnSQL(table, oldName, newName string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		d.QuoteIdentifier(table), d.QuoteIdentifier(oldName), d.QuoteIdentifier(newName))
}

// AlterColumnTypeSQL returns an ALTER COLUMN ... TYPE statement.
func (d Postgres) AlterColumnTypeSQL(table, column, sqlType string) (string, bool) {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s",
		d.QuoteIdentifier(table), d.QuoteIdentifier(column), sqlType), true
}

// TableColumnsSQL queries information_schema for the table's columns.
func (Postgres) TableColumnsSQL(table string) string {
	return fmt.Sprintf(
		"SELECT column_name FROM information_schema.columns WHERE table_name = '%s' ORDER BY ordinal_position",
		strings.ReplaceAll(table, "'", "''"))
}

// TableExistsSQL queries information_schema for the table.
func (Postgres) TableExistsSQL(table string) string {
	return fmt.Sprintf(
		"SELECT 1 FROM information_schema.tables WHERE table_name = '%s'",
		strings.ReplaceAll(table, "'", "''"))
}

// SQLite implements Dialect for SQLite.
type SQLite struct{}

// Name returns "sqlite".
func (SQLite) Name() string { return "sqlite" }

// Rebind is a no-op: SQLite uses ? placeholders natively.
func (SQLite) Rebind(query string) string { return query }

// QuoteIdentifier quotes an identifier with double quotes.
func (SQLite) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// AutoIncrementPK returns an INTEGER PRIMARY KEY AUTOINCREMENT definition.
func (d SQLite) AutoIncrementPK(column string) string {
	return d.QuoteIdentifier(column) + " INTEGER PRIMARY KEY AUTOINCREMENT"
}

// InsertReturning reports false: the driver supports LastInsertId.
func (SQLite) InsertReturning() bool { return false }

// RenameColumnSQL returns an ALTER TABLE ... RENAME COLUMN statement.
// Supported by SQLite 3.25 and later.
func (d SQLite) RenameColumnSQL(table, oldName, newName string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		d.QuoteIdentifier(table), d.QuoteIdentifier(oldName), d.QuoteIdentifier(newName))
}

// AlterColumnTypeSQL reports false: SQLite cannot change a column's
// declared type in place. Declared types are advisory there, so a size
// class change is a metadata-only update.
func (SQLite) AlterColumnTypeSQL(table, column, sqlType string) (string, bool) {
	return "", false
}

// TableColumnsSQL queries pragma_table_info for the table's columns.
func (SQLite) TableColumnsSQL(table string) string {
	return fmt.Sprintf("SELECT name FROM pragma_table_info('%s') ORDER BY cid",
		strings.ReplaceAll(table, "'", "''"))
}

// TableExistsSQL queries sqlite_master for the table.
func (SQLite) TableExistsSQL(table string) string {
	return fmt.Sprintf(
		"SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = '%s'",
		strings.ReplaceAll(table, "'", "''"))
}
