// Package provision manages the physical storage table behind each
// form. Every form owns one table whose columns mirror its field
// metadata; this package issues the DDL that keeps the two in step.
package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/formworks-hq/formworks/internal/database"
	"github.com/formworks-hq/formworks/internal/metadata"
)

// TableName returns the storage table name for a form.
func TableName(formID int64) string {
	return fmt.Sprintf("form_%d", formID)
}

// ColumnType maps a field size class to its SQL column type.
func ColumnType(size metadata.FieldSize) string {
	switch size {
	case metadata.SizeTiny:
		return "VARCHAR(5)"
	case metadata.SizeSmall:
		return "VARCHAR(20)"
	case metadata.SizeMedium:
		return "VARCHAR(255)"
	case metadata.SizeLarge, metadata.SizeVeryLarge:
		return "TEXT"
	default:
		return "VARCHAR(255)"
	}
}

// Column is one custom column in a form's storage table.
type Column struct {
	Name string
	Size metadata.FieldSize
}

// Provisioner issues DDL against form storage tables.
type Provisioner struct {
	db      database.DBTX
	dialect database.Dialect
}

// New creates a provisioner on the given handle.
func New(db database.DBTX, dialect database.Dialect) *Provisioner {
	return &Provisioner{db: db, dialect: dialect}
}

// WithTx returns a provisioner bound to a transaction. DDL is
// transactional on both supported dialects.
func (p *Provisioner) WithTx(db database.DBTX) *Provisioner {
	return &Provisioner{db: db, dialect: p.dialect}
}

// CreateTable creates the form's storage table: the auto-increment
// submission key, one column per custom field, then the bookkeeping
// columns every form shares.
func (p *Provisioner) CreateTable(ctx context.Context, formID int64, columns []Column) error {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(p.dialect.QuoteIdentifier(TableName(formID)))
	b.WriteString(" (\n  ")
	b.WriteString(p.dialect.AutoIncrementPK(metadata.ColSubmissionID))
	for _, col := range columns {
		b.WriteString(",\n  ")
		b.WriteString(p.dialect.QuoteIdentifier(col.Name))
		b.WriteString(" ")
		b.WriteString(ColumnType(col.Size))
	}
	b.WriteString(",\n  ")
	b.WriteString(p.dialect.QuoteIdentifier(metadata.ColSubmissionDate))
	b.WriteString(" TIMESTAMP,\n  ")
	b.WriteString(p.dialect.QuoteIdentifier(metadata.ColLastModifiedDate))
	b.WriteString(" TIMESTAMP,\n  ")
	b.WriteString(p.dialect.QuoteIdentifier(metadata.ColIPAddress))
	b.WriteString(" VARCHAR(15),\n  ")
	b.WriteString(p.dialect.QuoteIdentifier(metadata.ColIsFinalized))
	b.WriteString(" VARCHAR(3) NOT NULL DEFAULT 'no'\n)")

	stmt := b.String()
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return database.NewSchemaError(stmt, err)
	}
	return nil
}

// AddColumn appends a custom column to the form's table.
func (p *Provisioner) AddColumn(ctx context.Context, formID int64, col Column) error {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		p.dialect.QuoteIdentifier(TableName(formID)),
		p.dialect.QuoteIdentifier(col.Name),
		ColumnType(col.Size))
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return database.NewSchemaError(stmt, err)
	}
	return nil
}

// RenameColumn renames a custom column.
func (p *Provisioner) RenameColumn(ctx context.Context, formID int64, oldName, newName string) error {
	stmt := p.dialect.RenameColumnSQL(TableName(formID), oldName, newName)
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return database.NewSchemaError(stmt, err)
	}
	return nil
}

// ResizeColumn changes a custom column's type to match a new size
// class. Reports false without error when the dialect cannot alter
// column types in place; the caller records the new size as metadata
// only.
func (p *Provisioner) ResizeColumn(ctx context.Context, formID int64, name string, size metadata.FieldSize) (bool, error) {
	stmt, ok := p.dialect.AlterColumnTypeSQL(TableName(formID), name, ColumnType(size))
	if !ok {
		return false, nil
	}
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return false, database.NewSchemaError(stmt, err)
	}
	return true, nil
}

// DropColumn removes a custom column. System columns are never
// droppable.
func (p *Provisioner) DropColumn(ctx context.Context, formID int64, name string) error {
	if metadata.IsSystemColumn(name) {
		return fmt.Errorf("column %q is a system column", name)
	}
	stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
		p.dialect.QuoteIdentifier(TableName(formID)),
		p.dialect.QuoteIdentifier(name))
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return database.NewSchemaError(stmt, err)
	}
	return nil
}

// DropTable removes the form's storage table. Dropping a table that
// never got created is not an error, so teardown can always run.
func (p *Provisioner) DropTable(ctx context.Context, formID int64) error {
	stmt := "DROP TABLE IF EXISTS " + p.dialect.QuoteIdentifier(TableName(formID))
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return database.NewSchemaError(stmt, err)
	}
	return nil
}

// TableExists reports whether the form's storage table is present.
func (p *Provisioner) TableExists(ctx context.Context, formID int64) (bool, error) {
	rows, err := p.db.QueryContext(ctx, p.dialect.TableExistsSQL(TableName(formID)))
	if err != nil {
		return false, database.ConvertError(err)
	}
	defer rows.Close()
	return rows.Next(), database.ConvertError(rows.Err())
}

// TableColumns returns the names of the table's columns in definition
// order.
func (p *Provisioner) TableColumns(ctx context.Context, formID int64) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, p.dialect.TableColumnsSQL(TableName(formID)))
	if err != nil {
		return nil, database.ConvertError(err)
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
