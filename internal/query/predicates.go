// Package query builds parameterized WHERE clauses for form listings
// and submission searches.
package query

import (
	"fmt"
	"strings"
)

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpIn
	OpNotIn
	OpLike
	OpIsNull
	OpIsNotNull
	OpBetween

	// opRaw carries a prebuilt SQL fragment in Field with bind values
	// in Value. Constructed only through Raw.
	opRaw
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	case OpLike:
		return "LIKE"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	case OpBetween:
		return "BETWEEN"
	default:
		return "UNKNOWN"
	}
}

// Condition represents a single WHERE condition. Field names are
// emitted verbatim, so they must come from trusted metadata, never
// from user input. Values always travel as placeholders.
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
}

// PredicateGroup represents conditions and nested groups combined with
// AND or OR.
type PredicateGroup struct {
	Conditions []*Condition
	Groups     []*PredicateGroup
	Or         bool // true for OR, false for AND
}

// NewPredicateGroup creates a new predicate group
func NewPredicateGroup(or bool) *PredicateGroup {
	return &PredicateGroup{Or: or}
}

// AddCondition adds a condition to the group
func (pg *PredicateGroup) AddCondition(cond *Condition) {
	pg.Conditions = append(pg.Conditions, cond)
}

// AddGroup adds a nested group
func (pg *PredicateGroup) AddGroup(group *PredicateGroup) {
	pg.Groups = append(pg.Groups, group)
}

// ToSQL converts the predicate group to SQL with ? placeholders,
// appending bind values to args.
func (pg *PredicateGroup) ToSQL(args *[]interface{}) (string, error) {
	if len(pg.Conditions) == 0 && len(pg.Groups) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(pg.Conditions)+len(pg.Groups))
	for _, cond := range pg.Conditions {
		sql, err := conditionToSQL(cond, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	for _, group := range pg.Groups {
		sql, err := group.ToSQL(args)
		if err != nil {
			return "", err
		}
		if sql != "" {
			parts = append(parts, fmt.Sprintf("(%s)", sql))
		}
	}

	if len(parts) == 0 {
		return "", nil
	}

	connector := " AND "
	if pg.Or {
		connector = " OR "
	}
	return strings.Join(parts, connector), nil
}

// conditionToSQL converts a condition to SQL with parameterized values
func conditionToSQL(cond *Condition, args *[]interface{}) (string, error) {
	switch cond.Operator {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual,
		OpLessThan, OpLessThanOrEqual:
		*args = append(*args, cond.Value)
		return fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), nil

	case OpLike:
		// SQLite's LIKE has no default escape character, so the
		// backslash escaping applied to keywords must be declared.
		*args = append(*args, cond.Value)
		return fmt.Sprintf(`%s LIKE ? ESCAPE '\'`, cond.Field), nil

	case OpIn, OpNotIn:
		values, ok := cond.Value.([]interface{})
		if !ok {
			return "", fmt.Errorf("%s operator requires []interface{} value", cond.Operator)
		}
		if len(values) == 0 {
			// IN () is a syntax error; match its logical meaning.
			if cond.Operator == OpIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			*args = append(*args, v)
			placeholders[i] = "?"
		}
		return fmt.Sprintf("%s %s (%s)", cond.Field, cond.Operator,
			strings.Join(placeholders, ", ")), nil

	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", cond.Field, cond.Operator), nil

	case OpBetween:
		values, ok := cond.Value.([]interface{})
		if !ok || len(values) != 2 {
			return "", fmt.Errorf("BETWEEN operator requires [min, max] values")
		}
		*args = append(*args, values[0], values[1])
		return fmt.Sprintf("%s BETWEEN ? AND ?", cond.Field), nil

	case opRaw:
		if values, ok := cond.Value.([]interface{}); ok {
			*args = append(*args, values...)
		}
		return cond.Field, nil

	default:
		return "", fmt.Errorf("unsupported operator: %v", cond.Operator)
	}
}

// PredicateBuilder provides a fluent API for building predicates
type PredicateBuilder struct {
	root *PredicateGroup
}

// NewPredicateBuilder creates a builder whose root group ANDs its
// members.
func NewPredicateBuilder() *PredicateBuilder {
	return &PredicateBuilder{root: NewPredicateGroup(false)}
}

// Where adds a condition to the root group
func (pb *PredicateBuilder) Where(field string, op Operator, value interface{}) *PredicateBuilder {
	pb.root.AddCondition(&Condition{Field: field, Operator: op, Value: value})
	return pb
}

// Raw adds a prebuilt SQL fragment with its bind values. The fragment
// must use ? placeholders and never interpolate user input.
func (pb *PredicateBuilder) Raw(sql string, args ...interface{}) *PredicateBuilder {
	pb.root.AddCondition(&Condition{Field: sql, Operator: opRaw, Value: args})
	return pb
}

// AndGroup adds a nested AND group populated by fn
func (pb *PredicateBuilder) AndGroup(fn func(*PredicateBuilder)) *PredicateBuilder {
	group := NewPredicateGroup(false)
	fn(&PredicateBuilder{root: group})
	pb.root.AddGroup(group)
	return pb
}

// OrGroup adds a nested OR group populated by fn
func (pb *PredicateBuilder) OrGroup(fn func(*PredicateBuilder)) *PredicateBuilder {
	group := NewPredicateGroup(true)
	fn(&PredicateBuilder{root: group})
	pb.root.AddGroup(group)
	return pb
}

// ToSQL renders the accumulated predicates
func (pb *PredicateBuilder) ToSQL(args *[]interface{}) (string, error) {
	return pb.root.ToSQL(args)
}

// Empty reports whether no predicates were added
func (pb *PredicateBuilder) Empty() bool {
	return len(pb.root.Conditions) == 0 && len(pb.root.Groups) == 0
}
