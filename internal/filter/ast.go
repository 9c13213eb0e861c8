// Package filter parses the CQL2-JSON filter grammar into an abstract
// syntax tree, validates field and operator usage against the queryable
// registry, and lowers the tree into a backend predicate.
package filter

import (
	"time"

	"github.com/paulmach/orb"
)

// Expression is the closed set of filter AST nodes. A tree is built once
// per request, walked read-only for validation, then lowered and discarded.
type Expression interface {
	isExpr()
}

// Property references a queryable field by name.
type Property struct {
	Name string
}

// Literal is a scalar literal (string, number, bool).
type Literal struct {
	Value any
}

// TimeLiteral is an instant literal from a temporal predicate.
type TimeLiteral struct {
	Value time.Time
}

// IntervalLiteral is a temporal interval literal. Either bound may be nil
// for an open end.
type IntervalLiteral struct {
	Start *time.Time
	End   *time.Time
}

// GeometryLiteral is an embedded GeoJSON geometry. SRID records the CRS the
// coordinates are expressed in; the lowering step reprojects when it
// differs from the storage CRS.
type GeometryLiteral struct {
	Geometry orb.Geometry
	SRID     int
}

// ListLiteral is an ordered sequence of expressions, as used by the
// "in" and "between" operators.
type ListLiteral struct {
	Items []Expression
}

// Comparison is a binary (or, for isnull, unary) predicate or arithmetic
// node. Op is always in canonical spelling after parsing.
type Comparison struct {
	Op    string
	Left  Expression
	Right Expression
}

// LogicalOperator combines two subexpressions with "and" or "or".
// N-ary input forms are folded to binary during parsing.
type LogicalOperator struct {
	Op    string
	Left  Expression
	Right Expression
}

// Not negates a single subexpression.
type Not struct {
	Expression Expression
}

func (*Property) isExpr()        {}
func (*Literal) isExpr()         {}
func (*TimeLiteral) isExpr()     {}
func (*IntervalLiteral) isExpr() {}
func (*GeometryLiteral) isExpr() {}
func (*ListLiteral) isExpr()     {}
func (*Comparison) isExpr()      {}
func (*LogicalOperator) isExpr() {}
func (*Not) isExpr()             {}

// Walk visits every node of the tree depth-first, recursing through NOT's
// single operand, both operands of binary nodes and every element of list
// literals. All traversal passes are built on this one fold.
func Walk(expr Expression, visit func(Expression)) {
	if expr == nil {
		return
	}
	visit(expr)
	switch e := expr.(type) {
	case *LogicalOperator:
		Walk(e.Left, visit)
		Walk(e.Right, visit)
	case *Comparison:
		Walk(e.Left, visit)
		Walk(e.Right, visit)
	case *Not:
		Walk(e.Expression, visit)
	case *ListLiteral:
		for _, item := range e.Items {
			Walk(item, visit)
		}
	}
}

// CollectFields returns the name of every property referenced anywhere in
// the expression, in first-seen order.
func CollectFields(expr Expression) []string {
	seen := make(map[string]bool)
	var fields []string
	Walk(expr, func(node Expression) {
		if p, ok := node.(*Property); ok && !seen[p.Name] {
			seen[p.Name] = true
			fields = append(fields, p.Name)
		}
	})
	return fields
}

// CollectOperators returns every operator used in the expression, in
// canonical spelling and first-seen order. Logical connectives are not
// operators in the validated vocabulary.
func CollectOperators(expr Expression) []string {
	seen := make(map[string]bool)
	var ops []string
	Walk(expr, func(node Expression) {
		if c, ok := node.(*Comparison); ok && !seen[c.Op] {
			seen[c.Op] = true
			ops = append(ops, c.Op)
		}
	})
	return ops
}

// RewriteGeometryCRS tags every geometry literal in the expression with the
// given SRID. Called when the filter CRS differs from the storage CRS so
// the lowering step reprojects the literals correctly.
func RewriteGeometryCRS(expr Expression, srid int) {
	Walk(expr, func(node Expression) {
		if g, ok := node.(*GeometryLiteral); ok {
			g.SRID = srid
		}
	})
}
