package cedrus

import (
	domfilter "github.com/cedrus-db/cedrus/internal/domain/filter"
)

// Filter restricts search to documents matching a metadata predicate.
// The zero value matches everything. Build leaves with the comparison
// constructors and combine them with And / Or.
type Filter struct {
	expr domfilter.Expression
}

// Eq matches documents whose field equals value.
func Eq(field string, value any) (Filter, error) { return wrap(domfilter.Eq(field, value)) }

// Ne matches documents whose field does not equal value.
func Ne(field string, value any) (Filter, error) { return wrap(domfilter.Ne(field, value)) }

// Lt matches documents whose field is less than value.
func Lt(field string, value any) (Filter, error) { return wrap(domfilter.Lt(field, value)) }

// Lte matches documents whose field is less than or equal to value.
func Lte(field string, value any) (Filter, error) { return wrap(domfilter.Lte(field, value)) }

// Gt matches documents whose field is greater than value.
func Gt(field string, value any) (Filter, error) { return wrap(domfilter.Gt(field, value)) }

// Gte matches documents whose field is greater than or equal to value.
func Gte(field string, value any) (Filter, error) { return wrap(domfilter.Gte(field, value)) }

// In matches documents whose field equals any of the given values.
func In(field string, values ...any) (Filter, error) {
	return wrap(domfilter.In(field, values...))
}

// Nin matches documents whose field equals none of the given values.
func Nin(field string, values ...any) (Filter, error) {
	return wrap(domfilter.Nin(field, values...))
}

// And combines filters conjunctively.
func And(filters ...Filter) (Filter, error) { return combine(domfilter.And, filters) }

// Or combines filters disjunctively.
func Or(filters ...Filter) (Filter, error) { return combine(domfilter.Or, filters) }

func wrap(expr domfilter.Expression, err error) (Filter, error) {
	if err != nil {
		return Filter{}, err
	}
	return Filter{expr: expr}, nil
}

func combine(
	op func(...domfilter.Expression) (domfilter.Expression, error),
	filters []Filter,
) (Filter, error) {
	operands := make([]domfilter.Expression, len(filters))
	for i, f := range filters {
		operands[i] = f.expr
	}
	return wrap(op(operands...))
}
