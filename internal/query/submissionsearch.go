package query

import (
	"strings"
	"time"
)

// SubmissionSearch holds criteria for listing a form's submissions.
type SubmissionSearch struct {
	// Keyword matches against SearchColumns. No columns means a
	// keyword cannot match anything.
	Keyword       string
	SearchColumns []string

	// FinalizedOnly restricts results to finalized submissions.
	FinalizedOnly bool

	// After and Before bound submission_date when nonzero.
	After  time.Time
	Before time.Time

	// SortColumn must be vetted against the view's sortable fields by
	// the caller; empty falls back to newest first.
	SortColumn string
	SortDesc   bool
}

// ToSQL renders the search as a WHERE clause body and ORDER BY
// expression with bind values.
func (ss *SubmissionSearch) ToSQL() (where string, orderBy string, args []interface{}, err error) {
	pb := NewPredicateBuilder()

	if ss.FinalizedOnly {
		pb.Where("is_finalized", OpEqual, "yes")
	}
	if !ss.After.IsZero() {
		pb.Where("submission_date", OpGreaterThanOrEqual, ss.After)
	}
	if !ss.Before.IsZero() {
		pb.Where("submission_date", OpLessThan, ss.Before)
	}

	if kw := strings.TrimSpace(ss.Keyword); kw != "" {
		pattern := "%" + escapeLike(kw) + "%"
		pb.OrGroup(func(g *PredicateBuilder) {
			if len(ss.SearchColumns) == 0 {
				g.Raw("1 = 0")
				return
			}
			for _, col := range ss.SearchColumns {
				g.Where(col, OpLike, pattern)
			}
		})
	}

	where, err = pb.ToSQL(&args)
	if err != nil {
		return "", "", nil, err
	}

	orderBy = "submission_id DESC"
	if ss.SortColumn != "" {
		dir := "ASC"
		if ss.SortDesc {
			dir = "DESC"
		}
		orderBy = ss.SortColumn + " " + dir
	}
	return where, orderBy, args, nil
}
