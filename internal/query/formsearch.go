package query

import (
	"strconv"
	"strings"
)

// Form listing status filters.
const (
	StatusOnline     = "online"
	StatusOffline    = "offline"
	StatusIncomplete = "incomplete"
)

// FormSearch holds the criteria for a form listing query.
type FormSearch struct {
	// Status is "", "online", "offline", or "incomplete".
	Status string

	// Keyword matches against form name, form URL and redirect URL,
	// or the form ID when it is numeric.
	Keyword string

	// AccountID, when nonzero, scopes results to forms the account may
	// see: forms assigned to it, plus public forms not omitting it,
	// restricted to complete and initialized forms.
	AccountID int64

	// IsAdmin lifts the account scope; administrators see every form
	// regardless of assignment or setup state.
	IsAdmin bool

	// OrderBy is one of the whitelisted sort keys; anything else falls
	// back to newest first.
	OrderBy string
}

// formOrderKeys whitelists caller-supplied sort keys. Everything else
// sorts newest first.
var formOrderKeys = map[string]string{
	"form_id_asc":    "form_id ASC",
	"form_id_desc":   "form_id DESC",
	"form_name_asc":  "form_name ASC",
	"form_name_desc": "form_name DESC",
	"status_asc":     "is_active ASC, form_name ASC",
	"status_desc":    "is_active DESC, form_name ASC",
}

// ToSQL renders the search as a WHERE clause body and ORDER BY
// expression with bind values. The WHERE body is empty when no
// criteria apply.
func (fs *FormSearch) ToSQL() (where string, orderBy string, args []interface{}, err error) {
	pb := NewPredicateBuilder()

	switch fs.Status {
	case StatusOnline:
		pb.Where("is_active", OpEqual, "yes").
			Where("is_complete", OpEqual, "yes")
	case StatusOffline:
		pb.Where("is_active", OpEqual, "no").
			Where("is_complete", OpEqual, "yes")
	case StatusIncomplete:
		pb.OrGroup(func(g *PredicateBuilder) {
			g.Where("is_initialized", OpEqual, "no").
				Where("is_complete", OpEqual, "no")
		})
	}

	if kw := strings.TrimSpace(fs.Keyword); kw != "" {
		pattern := "%" + escapeLike(kw) + "%"
		pb.OrGroup(func(g *PredicateBuilder) {
			g.Where("form_name", OpLike, pattern).
				Where("form_url", OpLike, pattern).
				Where("redirect_url", OpLike, pattern)
			if id, err := strconv.ParseInt(kw, 10, 64); err == nil {
				g.Where("form_id", OpEqual, id)
			}
		})
	}

	if fs.AccountID != 0 && !fs.IsAdmin {
		accountID := fs.AccountID
		pb.OrGroup(func(g *PredicateBuilder) {
			g.Raw("form_id IN (SELECT form_id FROM client_forms WHERE account_id = ?)", accountID)
			g.AndGroup(func(inner *PredicateBuilder) {
				inner.Where("access_type", OpEqual, "public").
					Raw("form_id NOT IN (SELECT form_id FROM public_form_omit_list WHERE account_id = ?)",
						accountID)
			})
		})
		// Half-built forms never surface in a client listing.
		pb.Where("is_complete", OpEqual, "yes").
			Where("is_initialized", OpEqual, "yes")
	}

	where, err = pb.ToSQL(&args)
	if err != nil {
		return "", "", nil, err
	}

	orderBy, ok := formOrderKeys[fs.OrderBy]
	if !ok {
		orderBy = "form_id DESC"
	}
	return where, orderBy, args, nil
}

// escapeLike escapes LIKE metacharacters in a user keyword.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
