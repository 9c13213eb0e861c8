package storage

// Predicate is the closed tree of boolean conditions produced by lowering a
// filter expression. Executors compile it to their native query form.
type Predicate interface {
	isPredicate()
}

// And is the conjunction of two or more predicates.
type And struct {
	Preds []Predicate
}

// Or is the disjunction of two or more predicates.
type Or struct {
	Preds []Predicate
}

// Not negates a predicate.
type Not struct {
	Pred Predicate
}

// Compare is a binary comparison. Op is one of the canonical comparison
// spellings: "=", "<>", "<", "<=", ">", ">=", "like".
type Compare struct {
	Op    string
	Left  Value
	Right Value
}

// Between matches Arg within the closed interval [Lo, Hi].
type Between struct {
	Arg Value
	Lo  Value
	Hi  Value
}

// In matches Arg against a list of values.
type In struct {
	Arg  Value
	List []Value
}

// IsNull matches rows where Arg has no value.
type IsNull struct {
	Arg Value
}

// Spatial is a spatial relation between a geometry column and a lowered
// geometry literal. Op uses the CQL spelling ("intersects", "within", ...).
type Spatial struct {
	Op       string
	Column   string
	Geometry GeometryExpr
}

func (And) isPredicate()     {}
func (Or) isPredicate()      {}
func (Not) isPredicate()     {}
func (Compare) isPredicate() {}
func (Between) isPredicate() {}
func (In) isPredicate()      {}
func (IsNull) isPredicate()  {}
func (Spatial) isPredicate() {}

// Value is an operand inside a comparison.
type Value interface {
	isValue()
}

// Column references a storage column by its accessor expression.
type Column struct {
	Accessor string
}

// Lit is a literal scalar value.
type Lit struct {
	V any
}

// Arith is an arithmetic combination of two operands.
// Op is one of "+", "-", "*", "/".
type Arith struct {
	Op    string
	Left  Value
	Right Value
}

func (Column) isValue() {}
func (Lit) isValue()    {}
func (Arith) isValue()  {}
