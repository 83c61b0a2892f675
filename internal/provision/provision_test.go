package provision

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formworks-hq/formworks/internal/database"
	"github.com/formworks-hq/formworks/internal/metadata"
)

func newTestProvisioner(t *testing.T) *Provisioner {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	dialect, err := database.DialectFor("sqlite3")
	require.NoError(t, err)
	return New(db, dialect)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "form_1", TableName(1))
	assert.Equal(t, "form_42", TableName(42))
}

func TestColumnType(t *testing.T) {
	assert.Equal(t, "VARCHAR(5)", ColumnType(metadata.SizeTiny))
	assert.Equal(t, "VARCHAR(20)", ColumnType(metadata.SizeSmall))
	assert.Equal(t, "VARCHAR(255)", ColumnType(metadata.SizeMedium))
	assert.Equal(t, "TEXT", ColumnType(metadata.SizeLarge))
	assert.Equal(t, "TEXT", ColumnType(metadata.SizeVeryLarge))
	assert.Equal(t, "VARCHAR(255)", ColumnType(metadata.FieldSize("bogus")))
}

func TestCreateTableLayout(t *testing.T) {
	p := newTestProvisioner(t)
	ctx := context.Background()

	err := p.CreateTable(ctx, 5, []Column{
		{Name: "full_name", Size: metadata.SizeMedium},
		{Name: "comments", Size: metadata.SizeLarge},
	})
	require.NoError(t, err)

	ok, err := p.TableExists(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	// Submission key leads, bookkeeping columns trail the custom ones.
	cols, err := p.TableColumns(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"submission_id", "full_name", "comments",
		"submission_date", "last_modified_date", "ip_address", "is_finalized",
	}, cols)
}

func TestCreateTableTwiceFails(t *testing.T) {
	p := newTestProvisioner(t)
	ctx := context.Background()

	require.NoError(t, p.CreateTable(ctx, 1, nil))
	err := p.CreateTable(ctx, 1, nil)
	require.Error(t, err)
	assert.True(t, database.IsSchemaError(err))
}

func TestAddRenameDropColumn(t *testing.T) {
	p := newTestProvisioner(t)
	ctx := context.Background()

	require.NoError(t, p.CreateTable(ctx, 2, []Column{{Name: "email", Size: metadata.SizeMedium}}))

	require.NoError(t, p.AddColumn(ctx, 2, Column{Name: "phone", Size: metadata.SizeSmall}))
	cols, err := p.TableColumns(ctx, 2)
	require.NoError(t, err)
	assert.Contains(t, cols, "phone")

	require.NoError(t, p.RenameColumn(ctx, 2, "phone", "mobile"))
	cols, err = p.TableColumns(ctx, 2)
	require.NoError(t, err)
	assert.Contains(t, cols, "mobile")
	assert.NotContains(t, cols, "phone")

	require.NoError(t, p.DropColumn(ctx, 2, "mobile"))
	cols, err = p.TableColumns(ctx, 2)
	require.NoError(t, err)
	assert.NotContains(t, cols, "mobile")
}

func TestDropColumnRejectsSystemColumns(t *testing.T) {
	p := newTestProvisioner(t)
	ctx := context.Background()

	require.NoError(t, p.CreateTable(ctx, 3, nil))
	for _, col := range metadata.SystemColumns {
		assert.Error(t, p.DropColumn(ctx, 3, col))
	}
}

func TestResizeColumnOnSQLite(t *testing.T) {
	p := newTestProvisioner(t)
	ctx := context.Background()

	require.NoError(t, p.CreateTable(ctx, 4, []Column{{Name: "note", Size: metadata.SizeSmall}}))

	// SQLite cannot alter a declared type; the caller keeps the new size
	// in metadata only.
	altered, err := p.ResizeColumn(ctx, 4, "note", metadata.SizeLarge)
	require.NoError(t, err)
	assert.False(t, altered)
}

func TestDropTableIdempotent(t *testing.T) {
	p := newTestProvisioner(t)
	ctx := context.Background()

	require.NoError(t, p.CreateTable(ctx, 6, nil))
	require.NoError(t, p.DropTable(ctx, 6))

	ok, err := p.TableExists(ctx, 6)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.DropTable(ctx, 6), "dropping a missing table is not an error")
}

func TestRenameMissingColumn(t *testing.T) {
	p := newTestProvisioner(t)
	ctx := context.Background()

	require.NoError(t, p.CreateTable(ctx, 7, nil))
	err := p.RenameColumn(ctx, 7, "nope", "still_nope")
	require.Error(t, err)
	assert.True(t, database.IsSchemaError(err))
}

func TestWithTxRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	dialect, err := database.DialectFor("sqlite3")
	require.NoError(t, err)
	p := New(db, dialect)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, p.WithTx(tx).CreateTable(ctx, 8, nil))
	require.NoError(t, tx.Rollback())

	ok, err := p.TableExists(ctx, 8)
	require.NoError(t, err)
	assert.False(t, ok, "rollback discards the table")
}
