// Package filter translates the domain filter expression tree into the
// backend-neutral predicate consumed by db implementations.
package filter

import (
	"fmt"

	"github.com/cedrus-db/cedrus/internal/db"
	"github.com/cedrus-db/cedrus/internal/domain"
	domfilter "github.com/cedrus-db/cedrus/internal/domain/filter"
	"github.com/cedrus-db/cedrus/internal/domain/schema"
)

// Converter compiles filter expressions against a fixed collection schema.
// It is a pure transform with no mutable state and is safe for concurrent
// use; compiling the same expression twice yields identical predicates.
type Converter struct {
	fields map[string]schema.Field
}

// New creates a converter for the given collection schema.
func New(col schema.Collection) *Converter {
	fields := make(map[string]schema.Field, len(col.Fields()))
	for _, f := range col.Fields() {
		fields[f.Name()] = f
	}
	return &Converter{fields: fields}
}

// Compile translates an expression into a db.Predicate.
// Fields outside the declared filterable set fail with ErrUnsupportedField;
// operator/value/field-kind mismatches fail with ErrInvalidOperator.
func (c *Converter) Compile(expr domfilter.Expression) (db.Predicate, error) {
	switch node := expr.(type) {
	case domfilter.Comparison:
		return c.compileComparison(node)
	case domfilter.Logical:
		return c.compileLogical(node)
	default:
		return nil, fmt.Errorf("%w: unknown expression node %T", domain.ErrInvalidOperator, expr)
	}
}

func (c *Converter) compileComparison(node domfilter.Comparison) (db.Predicate, error) {
	field, ok := c.fields[node.Field()]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not declared filterable", domain.ErrUnsupportedField, node.Field())
	}

	switch node.Operator() {
	case domfilter.OpEQ, domfilter.OpNE:
		value, err := scalarForField(field, node.Value())
		if err != nil {
			return nil, err
		}
		return db.Equality{
			Field:   field.Name(),
			Value:   value,
			Negated: node.Operator() == domfilter.OpNE,
		}, nil

	case domfilter.OpLT, domfilter.OpLTE, domfilter.OpGT, domfilter.OpGTE:
		return c.compileRange(field, node)

	case domfilter.OpIN, domfilter.OpNIN:
		return c.compileMembership(field, node)

	default:
		return nil, fmt.Errorf("%w: unknown operator %q on %q", domain.ErrInvalidOperator, node.Operator(), field.Name())
	}
}

func (c *Converter) compileRange(field schema.Field, node domfilter.Comparison) (db.Predicate, error) {
	if field.Kind() != schema.KindNumeric {
		return nil, fmt.Errorf(
			"%w: %s requires a numeric field, %q is %s",
			domain.ErrInvalidOperator, node.Operator(), field.Name(), field.Kind(),
		)
	}
	num, ok := node.Value().(float64)
	if !ok {
		return nil, fmt.Errorf(
			"%w: %s on %q requires a numeric value, got %T",
			domain.ErrInvalidOperator, node.Operator(), field.Name(), node.Value(),
		)
	}

	r := db.NumericRange{Field: field.Name()}
	switch node.Operator() {
	case domfilter.OpLT:
		r.Upper = db.Bound{Value: num, Set: true}
	case domfilter.OpLTE:
		r.Upper = db.Bound{Value: num, Inclusive: true, Set: true}
	case domfilter.OpGT:
		r.Lower = db.Bound{Value: num, Set: true}
	case domfilter.OpGTE:
		r.Lower = db.Bound{Value: num, Inclusive: true, Set: true}
	}
	return r, nil
}

func (c *Converter) compileMembership(field schema.Field, node domfilter.Comparison) (db.Predicate, error) {
	raw := node.Values()
	if len(raw) == 0 {
		return nil, fmt.Errorf(
			"%w: %s on %q requires a non-empty value set",
			domain.ErrInvalidOperator, node.Operator(), field.Name(),
		)
	}

	values := make([]db.Scalar, len(raw))
	for i, v := range raw {
		scalar, err := scalarForField(field, v)
		if err != nil {
			return nil, err
		}
		values[i] = scalar
	}

	return db.Membership{
		Field:   field.Name(),
		Values:  values,
		Negated: node.Operator() == domfilter.OpNIN,
	}, nil
}

// scalarForField types a raw operand against the field kind: numeric fields
// take numbers, tag fields take strings and booleans.
func scalarForField(field schema.Field, value any) (db.Scalar, error) {
	switch v := value.(type) {
	case float64:
		if field.Kind() != schema.KindNumeric {
			return db.Scalar{}, fmt.Errorf(
				"%w: numeric value on tag field %q", domain.ErrInvalidOperator, field.Name(),
			)
		}
		return db.NumberScalar(v), nil
	case string:
		if field.Kind() != schema.KindTag {
			return db.Scalar{}, fmt.Errorf(
				"%w: string value on numeric field %q", domain.ErrInvalidOperator, field.Name(),
			)
		}
		return db.StringScalar(v), nil
	case bool:
		if field.Kind() != schema.KindTag {
			return db.Scalar{}, fmt.Errorf(
				"%w: boolean value on numeric field %q", domain.ErrInvalidOperator, field.Name(),
			)
		}
		return db.BoolScalar(v), nil
	default:
		return db.Scalar{}, fmt.Errorf(
			"%w: unsupported value type %T on %q", domain.ErrInvalidOperator, value, field.Name(),
		)
	}
}

func (c *Converter) compileLogical(node domfilter.Logical) (db.Predicate, error) {
	operands := node.Operands()
	if len(operands) == 0 {
		return nil, fmt.Errorf("%w: %s with no operands", domain.ErrInvalidOperator, node.Operator())
	}

	compiled := make([]db.Predicate, len(operands))
	for i, op := range operands {
		p, err := c.Compile(op)
		if err != nil {
			return nil, err
		}
		compiled[i] = p
	}

	if node.Operator() == domfilter.OpOR {
		return db.Disjunction{Operands: compiled}, nil
	}
	return db.Conjunction{Operands: compiled}, nil
}
