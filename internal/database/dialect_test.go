package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	for _, driver := range []string{"postgres", "pgx"} {
		d, err := DialectFor(driver)
		require.NoError(t, err)
		assert.Equal(t, "postgres", d.Name())
	}
	for _, driver := range []string{"sqlite3", "sqlite"} {
		d, err := DialectFor(driver)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", d.Name())
	}

	_, err := DialectFor("mysql")
	assert.Error(t, err)
}

func TestPostgresRebind(t *testing.T) {
	d := Postgres{}
	assert.Equal(t, "SELECT 1", d.Rebind("SELECT 1"))
	assert.Equal(t,
		"INSERT INTO t (a, b, c) VALUES ($1, $2, $3)",
		d.Rebind("INSERT INTO t (a, b, c) VALUES (?, ?, ?)"))
}

func TestSQLiteRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, q, SQLite{}.Rebind(q))
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"form_1"`, Postgres{}.QuoteIdentifier("form_1"))
	assert.Equal(t, `"od""d"`, Postgres{}.QuoteIdentifier(`od"d`))
	assert.Equal(t, `"form_1"`, SQLite{}.QuoteIdentifier("form_1"))
}

func TestAutoIncrementPK(t *testing.T) {
	assert.Equal(t, `"submission_id" SERIAL PRIMARY KEY`,
		Postgres{}.AutoIncrementPK("submission_id"))
	assert.Equal(t, `"submission_id" INTEGER PRIMARY KEY AUTOINCREMENT`,
		SQLite{}.AutoIncrementPK("submission_id"))
}

func TestInsertReturning(t *testing.T) {
	assert.True(t, Postgres{}.InsertReturning())
	assert.False(t, SQLite{}.InsertReturning())
}

func TestAlterColumnTypeSQL(t *testing.T) {
	stmt, ok := Postgres{}.AlterColumnTypeSQL("form_1", "note", "TEXT")
	require.True(t, ok)
	assert.Equal(t, `ALTER TABLE "form_1" ALTER COLUMN "note" TYPE TEXT`, stmt)

	_, ok = SQLite{}.AlterColumnTypeSQL("form_1", "note", "TEXT")
	assert.False(t, ok)
}

func TestRenameColumnSQL(t *testing.T) {
	assert.Equal(t, `ALTER TABLE "form_1" RENAME COLUMN "old" TO "new"`,
		SQLite{}.RenameColumnSQL("form_1", "old", "new"))
}

func TestTableIntrospectionSQLEscapesQuotes(t *testing.T) {
	assert.Contains(t, Postgres{}.TableExistsSQL("we''ird"), "we''''ird")
	assert.Contains(t, SQLite{}.TableColumnsSQL("we'ird"), "we''ird")
}
