package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormSearchEmpty(t *testing.T) {
	where, orderBy, args, err := (&FormSearch{}).ToSQL()
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Equal(t, "form_id DESC", orderBy)
	assert.Empty(t, args)
}

func TestFormSearchStatus(t *testing.T) {
	where, _, args, err := (&FormSearch{Status: StatusOnline}).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "is_active = ? AND is_complete = ?", where)
	assert.Equal(t, []interface{}{"yes", "yes"}, args)

	where, _, args, err = (&FormSearch{Status: StatusOffline}).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "is_active = ? AND is_complete = ?", where)
	assert.Equal(t, []interface{}{"no", "yes"}, args)

	where, _, args, err = (&FormSearch{Status: StatusIncomplete}).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "(is_initialized = ? OR is_complete = ?)", where)
	assert.Equal(t, []interface{}{"no", "no"}, args)
}

func TestFormSearchKeyword(t *testing.T) {
	where, _, args, err := (&FormSearch{Keyword: "contact"}).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "(form_name LIKE ? ESCAPE '\\' OR form_url LIKE ? ESCAPE '\\' OR redirect_url LIKE ? ESCAPE '\\')", where)
	assert.Equal(t, []interface{}{"%contact%", "%contact%", "%contact%"}, args)
}

func TestFormSearchNumericKeywordMatchesID(t *testing.T) {
	where, _, args, err := (&FormSearch{Keyword: "42"}).ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"(form_name LIKE ? ESCAPE '\\' OR form_url LIKE ? ESCAPE '\\' OR redirect_url LIKE ? ESCAPE '\\' OR form_id = ?)",
		where)
	assert.Equal(t, []interface{}{"%42%", "%42%", "%42%", int64(42)}, args)
}

func TestFormSearchKeywordEscapesLike(t *testing.T) {
	_, _, args, err := (&FormSearch{Keyword: "100%_done"}).ToSQL()
	require.NoError(t, err)
	require.Len(t, args, 3)
	assert.Equal(t, `%100\%\_done%`, args[0])
}

func TestFormSearchAccountScope(t *testing.T) {
	where, _, args, err := (&FormSearch{AccountID: 7}).ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"(form_id IN (SELECT form_id FROM client_forms WHERE account_id = ?) OR "+
			"(access_type = ? AND form_id NOT IN (SELECT form_id FROM public_form_omit_list WHERE account_id = ?))) "+
			"AND is_complete = ? AND is_initialized = ?",
		where)
	assert.Equal(t, []interface{}{int64(7), "public", int64(7), "yes", "yes"}, args)
}

func TestFormSearchAdminSkipsAccountScope(t *testing.T) {
	where, _, args, err := (&FormSearch{AccountID: 7, IsAdmin: true}).ToSQL()
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestFormSearchOrderBy(t *testing.T) {
	_, orderBy, _, err := (&FormSearch{OrderBy: "form_name_asc"}).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "form_name ASC", orderBy)

	_, orderBy, _, err = (&FormSearch{OrderBy: "status_desc"}).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "is_active DESC, form_name ASC", orderBy)

	// Unknown keys fall back to newest first rather than erroring.
	_, orderBy, _, err = (&FormSearch{OrderBy: "form_name; DROP TABLE forms"}).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "form_id DESC", orderBy)
}
