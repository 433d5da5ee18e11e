package db

// Predicate is the compiled, backend-neutral form of a filter expression.
// The converter emits this structured value; the active backend renders it
// into its own query dialect. Operand order is always preserved.
type Predicate interface {
	isPredicate()
}

// ScalarKind discriminates Scalar variants.
type ScalarKind int

// Scalar kinds.
const (
	ScalarString ScalarKind = iota
	ScalarNumber
	ScalarBool
)

// Scalar is a typed filter operand.
type Scalar struct {
	Kind ScalarKind
	Str  string
	Num  float64
	Bool bool
}

// StringScalar wraps a string operand.
func StringScalar(s string) Scalar { return Scalar{Kind: ScalarString, Str: s} }

// NumberScalar wraps a numeric operand.
func NumberScalar(f float64) Scalar { return Scalar{Kind: ScalarNumber, Num: f} }

// BoolScalar wraps a boolean operand.
func BoolScalar(b bool) Scalar { return Scalar{Kind: ScalarBool, Bool: b} }

// Equality restricts a field to (not) equal a scalar.
type Equality struct {
	Field   string
	Value   Scalar
	Negated bool
}

// Bound is one end of a numeric range. Set=false means unbounded.
type Bound struct {
	Value     float64
	Inclusive bool
	Set       bool
}

// NumericRange restricts a numeric field to an interval.
type NumericRange struct {
	Field string
	Lower Bound
	Upper Bound
}

// Membership restricts a field to (not) equal any of an ordered value set.
type Membership struct {
	Field   string
	Values  []Scalar
	Negated bool
}

// Conjunction ANDs its operands in order.
type Conjunction struct {
	Operands []Predicate
}

// Disjunction ORs its operands in order.
type Disjunction struct {
	Operands []Predicate
}

func (Equality) isPredicate()     {}
func (NumericRange) isPredicate() {}
func (Membership) isPredicate()   {}
func (Conjunction) isPredicate()  {}
func (Disjunction) isPredicate()  {}
