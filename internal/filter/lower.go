package filter

import (
	"time"

	"github.com/rkm/skyfoto-stac-api/internal/queryable"
	"github.com/rkm/skyfoto-stac-api/internal/storage"
)

// compareOps maps canonical comparison operators onto the predicate tree's
// comparison spellings.
var compareOps = map[string]string{
	"eq":   "=",
	"ne":   "<>",
	"lt":   "<",
	"lte":  "<=",
	"gt":   ">",
	"gte":  ">=",
	"like": "like",
}

// Lower converts a validated expression tree into a backend predicate.
// Property names resolve through fieldMapping to storage-column accessors;
// geometry literals pass through the injected lowering strategy, which
// reprojects them into the storage CRS when their tagged SRID differs.
func Lower(expr Expression, fieldMapping map[string]string, lowerGeom storage.GeometryLowering) (storage.Predicate, error) {
	return lowerPredicate(expr, fieldMapping, lowerGeom)
}

func lowerPredicate(expr Expression, mapping map[string]string, lowerGeom storage.GeometryLowering) (storage.Predicate, error) {
	switch e := expr.(type) {
	case *LogicalOperator:
		left, err := lowerPredicate(e.Left, mapping, lowerGeom)
		if err != nil {
			return nil, err
		}
		right, err := lowerPredicate(e.Right, mapping, lowerGeom)
		if err != nil {
			return nil, err
		}
		if e.Op == "and" {
			return storage.And{Preds: []storage.Predicate{left, right}}, nil
		}
		return storage.Or{Preds: []storage.Predicate{left, right}}, nil

	case *Not:
		inner, err := lowerPredicate(e.Expression, mapping, lowerGeom)
		if err != nil {
			return nil, err
		}
		return storage.Not{Pred: inner}, nil

	case *Comparison:
		return lowerComparison(e, mapping, lowerGeom)

	default:
		return nil, syntaxErrorf("expression %T cannot stand alone as a predicate", expr)
	}
}

func lowerComparison(c *Comparison, mapping map[string]string, lowerGeom storage.GeometryLowering) (storage.Predicate, error) {
	if sqlOp, ok := compareOps[c.Op]; ok {
		left, err := lowerValue(c.Left, mapping)
		if err != nil {
			return nil, err
		}
		right, err := lowerValue(c.Right, mapping)
		if err != nil {
			return nil, err
		}
		return storage.Compare{Op: sqlOp, Left: left, Right: right}, nil
	}

	switch c.Op {
	case "isnull":
		arg, err := lowerValue(c.Left, mapping)
		if err != nil {
			return nil, err
		}
		return storage.IsNull{Arg: arg}, nil

	case "between":
		arg, err := lowerValue(c.Left, mapping)
		if err != nil {
			return nil, err
		}
		list, ok := c.Right.(*ListLiteral)
		if !ok || len(list.Items) != 2 {
			return nil, syntaxErrorf("'between' bounds are malformed")
		}
		lo, err := lowerValue(list.Items[0], mapping)
		if err != nil {
			return nil, err
		}
		hi, err := lowerValue(list.Items[1], mapping)
		if err != nil {
			return nil, err
		}
		return storage.Between{Arg: arg, Lo: lo, Hi: hi}, nil

	case "in":
		arg, err := lowerValue(c.Left, mapping)
		if err != nil {
			return nil, err
		}
		list, ok := c.Right.(*ListLiteral)
		if !ok {
			return nil, syntaxErrorf("'in' requires a list of values")
		}
		values := make([]storage.Value, 0, len(list.Items))
		for _, item := range list.Items {
			v, err := lowerValue(item, mapping)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return storage.In{Arg: arg, List: values}, nil

	case "intersects", "within", "contains", "disjoint":
		return lowerSpatial(c, mapping, lowerGeom)

	case "after", "before", "during", "anyinteracts", "meets", "metby":
		return lowerTemporal(c, mapping)
	}

	return nil, &UnsupportedOperatorError{Op: c.Op}
}

// lowerSpatial lowers a spatial predicate. The left operand must be a
// geometry column; the right operand's geometry is converted through the
// storage collaborator's lowering strategy.
func lowerSpatial(c *Comparison, mapping map[string]string, lowerGeom storage.GeometryLowering) (storage.Predicate, error) {
	prop, ok := c.Left.(*Property)
	if !ok {
		return nil, syntaxErrorf("spatial operator %q requires a property on the left", c.Op)
	}
	column, ok := mapping[prop.Name]
	if !ok {
		return nil, &queryable.UnknownFieldError{Name: prop.Name}
	}
	lit, ok := c.Right.(*GeometryLiteral)
	if !ok {
		return nil, syntaxErrorf("spatial operator %q requires a geometry literal on the right", c.Op)
	}
	geomExpr, err := lowerGeom(lit.Geometry, lit.SRID)
	if err != nil {
		return nil, err
	}
	return storage.Spatial{Op: c.Op, Column: column, Geometry: geomExpr}, nil
}

// lowerTemporal lowers temporal predicates onto plain comparisons over the
// RFC 3339 column encoding, which orders lexicographically.
func lowerTemporal(c *Comparison, mapping map[string]string) (storage.Predicate, error) {
	arg, err := lowerValue(c.Left, mapping)
	if err != nil {
		return nil, err
	}

	switch c.Op {
	case "after", "before":
		instant, err := temporalInstant(c.Right)
		if err != nil {
			return nil, err
		}
		op := ">"
		if c.Op == "before" {
			op = "<"
		}
		return storage.Compare{Op: op, Left: arg, Right: storage.Lit{V: instant.Format(time.RFC3339)}}, nil

	case "during", "anyinteracts":
		iv, ok := c.Right.(*IntervalLiteral)
		if !ok {
			return nil, syntaxErrorf("%q requires an interval literal", c.Op)
		}
		switch {
		case iv.Start != nil && iv.End != nil:
			return storage.Between{
				Arg: arg,
				Lo:  storage.Lit{V: iv.Start.Format(time.RFC3339)},
				Hi:  storage.Lit{V: iv.End.Format(time.RFC3339)},
			}, nil
		case iv.Start != nil:
			return storage.Compare{Op: ">=", Left: arg, Right: storage.Lit{V: iv.Start.Format(time.RFC3339)}}, nil
		case iv.End != nil:
			return storage.Compare{Op: "<=", Left: arg, Right: storage.Lit{V: iv.End.Format(time.RFC3339)}}, nil
		default:
			return nil, syntaxErrorf("%q interval must have at least one bound", c.Op)
		}

	case "meets", "metby":
		// Parseable but withdrawn from the allowed vocabulary; a filter
		// using them is rejected during validation before lowering runs.
		return nil, &UnsupportedOperatorError{Op: c.Op}
	}

	return nil, &UnsupportedOperatorError{Op: c.Op}
}

func temporalInstant(expr Expression) (time.Time, error) {
	switch v := expr.(type) {
	case *TimeLiteral:
		return v.Value, nil
	case *Literal:
		if s, ok := v.Value.(string); ok {
			t, err := time.Parse(time.RFC3339, s)
			if err == nil {
				return t, nil
			}
			return time.Time{}, syntaxErrorf("invalid timestamp %q: %w", s, err)
		}
	}
	return time.Time{}, syntaxErrorf("temporal operator requires a timestamp literal")
}

func lowerValue(expr Expression, mapping map[string]string) (storage.Value, error) {
	switch v := expr.(type) {
	case *Property:
		column, ok := mapping[v.Name]
		if !ok {
			return nil, &queryable.UnknownFieldError{Name: v.Name}
		}
		return storage.Column{Accessor: column}, nil
	case *Literal:
		return storage.Lit{V: v.Value}, nil
	case *TimeLiteral:
		return storage.Lit{V: v.Value.Format(time.RFC3339)}, nil
	case *Comparison:
		if arith, ok := arithmeticOp(v.Op); ok {
			left, err := lowerValue(v.Left, mapping)
			if err != nil {
				return nil, err
			}
			right, err := lowerValue(v.Right, mapping)
			if err != nil {
				return nil, err
			}
			return storage.Arith{Op: arith, Left: left, Right: right}, nil
		}
		return nil, syntaxErrorf("operator %q cannot be used as a value", v.Op)
	case nil:
		return nil, syntaxErrorf("missing operand")
	default:
		return nil, syntaxErrorf("expression %T cannot be used as a value", expr)
	}
}

func arithmeticOp(op string) (string, bool) {
	switch op {
	case "+", "-", "*", "/":
		return op, true
	}
	return "", false
}
