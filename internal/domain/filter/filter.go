// Package filter defines the backend-agnostic metadata predicate tree.
// Expressions are pure immutable data; translation to a backend query
// happens in the repository layer.
package filter

import (
	"fmt"

	"github.com/cedrus-db/cedrus/internal/domain/document"
)

// Op is a comparison operator.
type Op string

// Comparison operators.
const (
	OpEQ  Op = "EQ"
	OpNE  Op = "NE"
	OpLT  Op = "LT"
	OpLTE Op = "LTE"
	OpGT  Op = "GT"
	OpGTE Op = "GTE"
	OpIN  Op = "IN"
	OpNIN Op = "NIN"
)

// LogicalOp combines sub-expressions.
type LogicalOp string

// Logical operators.
const (
	OpAND LogicalOp = "AND"
	OpOR  LogicalOp = "OR"
)

// Expression is a node in a filter tree: either a Comparison leaf or a
// Logical combination. Construction never touches storage or network.
type Expression interface {
	sealed()
}

// Comparison is a single field predicate.
type Comparison struct {
	field  string
	op     Op
	value  any   // EQ/NE/LT/LTE/GT/GTE
	values []any // IN/NIN
}

func (Comparison) sealed() {}

// Field returns the metadata field name.
func (c Comparison) Field() string { return c.field }

// Operator returns the comparison operator.
func (c Comparison) Operator() Op { return c.op }

// Value returns the scalar operand (nil for IN/NIN).
func (c Comparison) Value() any { return c.value }

// Values returns the set operand (nil for scalar operators).
func (c Comparison) Values() []any { return c.values }

// Logical is an ordered AND/OR combination. Operand order is preserved
// through translation so identical filters always compile identically.
type Logical struct {
	op       LogicalOp
	operands []Expression
}

func (Logical) sealed() {}

// Operator returns the logical operator.
func (l Logical) Operator() LogicalOp { return l.op }

// Operands returns the sub-expressions in construction order.
func (l Logical) Operands() []Expression { return l.operands }

// Eq matches documents whose field equals value.
func Eq(field string, value any) (Expression, error) { return newComparison(field, OpEQ, value) }

// Ne matches documents whose field does not equal value.
func Ne(field string, value any) (Expression, error) { return newComparison(field, OpNE, value) }

// Lt matches documents whose field is less than value.
func Lt(field string, value any) (Expression, error) { return newComparison(field, OpLT, value) }

// Lte matches documents whose field is less than or equal to value.
func Lte(field string, value any) (Expression, error) { return newComparison(field, OpLTE, value) }

// Gt matches documents whose field is greater than value.
func Gt(field string, value any) (Expression, error) { return newComparison(field, OpGT, value) }

// Gte matches documents whose field is greater than or equal to value.
func Gte(field string, value any) (Expression, error) { return newComparison(field, OpGTE, value) }

// In matches documents whose field equals any of the given values.
func In(field string, values ...any) (Expression, error) {
	return newMembership(field, OpIN, values)
}

// Nin matches documents whose field equals none of the given values.
func Nin(field string, values ...any) (Expression, error) {
	return newMembership(field, OpNIN, values)
}

// And combines expressions conjunctively. At least one operand is required.
func And(operands ...Expression) (Expression, error) { return newLogical(OpAND, operands) }

// Or combines expressions disjunctively. At least one operand is required.
func Or(operands ...Expression) (Expression, error) { return newLogical(OpOR, operands) }

func newComparison(field string, op Op, value any) (Expression, error) {
	if field == "" {
		return nil, fmt.Errorf("filter field is required")
	}
	v, ok := document.NormalizeScalar(value)
	if !ok {
		return nil, fmt.Errorf("filter %s on %q: unsupported value type %T", op, field, value)
	}
	return Comparison{field: field, op: op, value: v}, nil
}

func newMembership(field string, op Op, values []any) (Expression, error) {
	if field == "" {
		return nil, fmt.Errorf("filter field is required")
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("filter %s on %q requires at least one value", op, field)
	}
	normalized := make([]any, len(values))
	for i, raw := range values {
		v, ok := document.NormalizeScalar(raw)
		if !ok {
			return nil, fmt.Errorf("filter %s on %q: unsupported value type %T", op, field, raw)
		}
		normalized[i] = v
	}
	return Comparison{field: field, op: op, values: normalized}, nil
}

func newLogical(op LogicalOp, operands []Expression) (Expression, error) {
	if len(operands) == 0 {
		return nil, fmt.Errorf("%s requires at least one operand", op)
	}
	ops := make([]Expression, len(operands))
	for i, o := range operands {
		if o == nil {
			return nil, fmt.Errorf("%s operand %d is nil", op, i)
		}
		ops[i] = o
	}
	return Logical{op: op, operands: ops}, nil
}
