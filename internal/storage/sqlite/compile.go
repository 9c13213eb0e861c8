package sqlite

import (
	"fmt"
	"strings"

	"github.com/rkm/skyfoto-stac-api/internal/storage"
)

// compilePredicate renders a predicate tree as a SQL condition with
// placeholder args. The tree was validated before it reached the store,
// so an unknown node is an internal error, not a client error.
func compilePredicate(pred storage.Predicate) (string, []any, error) {
	switch p := pred.(type) {
	case storage.And:
		return compileJunction(p.Preds, "AND")
	case storage.Or:
		return compileJunction(p.Preds, "OR")
	case storage.Not:
		inner, args, err := compilePredicate(p.Pred)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + inner + ")", args, nil

	case storage.Compare:
		left, largs, err := compileValue(p.Left)
		if err != nil {
			return "", nil, err
		}
		right, rargs, err := compileValue(p.Right)
		if err != nil {
			return "", nil, err
		}
		op := p.Op
		if op == "like" {
			op = "LIKE"
		}
		return fmt.Sprintf("%s %s %s", left, op, right), append(largs, rargs...), nil

	case storage.Between:
		arg, args, err := compileValue(p.Arg)
		if err != nil {
			return "", nil, err
		}
		lo, loArgs, err := compileValue(p.Lo)
		if err != nil {
			return "", nil, err
		}
		hi, hiArgs, err := compileValue(p.Hi)
		if err != nil {
			return "", nil, err
		}
		args = append(args, loArgs...)
		args = append(args, hiArgs...)
		return fmt.Sprintf("%s BETWEEN %s AND %s", arg, lo, hi), args, nil

	case storage.In:
		arg, args, err := compileValue(p.Arg)
		if err != nil {
			return "", nil, err
		}
		if len(p.List) == 0 {
			// Empty list matches nothing.
			return "1 = 0", nil, nil
		}
		placeholders := make([]string, 0, len(p.List))
		for _, v := range p.List {
			sql, vargs, err := compileValue(v)
			if err != nil {
				return "", nil, err
			}
			placeholders = append(placeholders, sql)
			args = append(args, vargs...)
		}
		return fmt.Sprintf("%s IN (%s)", arg, strings.Join(placeholders, ", ")), args, nil

	case storage.IsNull:
		arg, args, err := compileValue(p.Arg)
		if err != nil {
			return "", nil, err
		}
		return arg + " IS NULL", args, nil

	case storage.Spatial:
		return compileSpatial(p)
	}

	return "", nil, fmt.Errorf("unsupported predicate node %T", pred)
}

func compileJunction(preds []storage.Predicate, op string) (string, []any, error) {
	if len(preds) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(preds))
	var args []any
	for _, pred := range preds {
		sql, pargs, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		args = append(args, pargs...)
	}
	return strings.Join(parts, " "+op+" "), args, nil
}

func compileValue(val storage.Value) (string, []any, error) {
	switch v := val.(type) {
	case storage.Column:
		return v.Accessor, nil, nil
	case storage.Lit:
		return "?", []any{v.V}, nil
	case storage.Arith:
		left, largs, err := compileValue(v.Left)
		if err != nil {
			return "", nil, err
		}
		right, rargs, err := compileValue(v.Right)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s %s %s)", left, v.Op, right), append(largs, rargs...), nil
	}
	return "", nil, fmt.Errorf("unsupported value node %T", val)
}

// compileSpatial evaluates spatial predicates against the item bbox
// columns. SQLite has no native geometry type; the footprint bound is the
// stored spatial index, so the predicates resolve on bounds.
func compileSpatial(p storage.Spatial) (string, []any, error) {
	b := p.Geometry.Bound
	if p.Geometry.Geometry != nil {
		b = p.Geometry.Geometry.Bound()
	}
	xmin, ymin := b.Min[0], b.Min[1]
	xmax, ymax := b.Max[0], b.Max[1]

	overlap := "bbox_xmax >= ? AND bbox_xmin <= ? AND bbox_ymax >= ? AND bbox_ymin <= ?"
	overlapArgs := []any{xmin, xmax, ymin, ymax}

	switch p.Op {
	case "intersects":
		return overlap, overlapArgs, nil
	case "disjoint":
		return "NOT (" + overlap + ")", overlapArgs, nil
	case "within":
		// Item footprint entirely inside the query bound.
		return "bbox_xmin >= ? AND bbox_ymin >= ? AND bbox_xmax <= ? AND bbox_ymax <= ?",
			[]any{xmin, ymin, xmax, ymax}, nil
	case "contains":
		// Item footprint entirely covers the query bound.
		return "bbox_xmin <= ? AND bbox_ymin <= ? AND bbox_xmax >= ? AND bbox_ymax >= ?",
			[]any{xmin, ymin, xmax, ymax}, nil
	}

	return "", nil, fmt.Errorf("unsupported spatial operator %q", p.Op)
}

// compileBoundary renders the keyset row-comparison for a page boundary:
// strictly past the boundary tuple in sort order. Mixed sort directions
// are handled by expanding the tuple comparison.
//
//	(k0 > v0) OR (k0 = v0 AND k1 > v1) OR ...
//
// with the comparison flipped per key for descending order, and flipped
// again wholesale when paging backward.
func compileBoundary(sort []storage.SortKey, values []any, backward bool) (string, []any) {
	terms := make([]string, 0, len(sort))
	var args []any

	for i, key := range sort {
		var conds []string
		for j := 0; j < i; j++ {
			conds = append(conds, sort[j].Column+" = ?")
			args = append(args, values[j])
		}
		op := ">"
		if key.Descending {
			op = "<"
		}
		if backward {
			if op == ">" {
				op = "<"
			} else {
				op = ">"
			}
		}
		conds = append(conds, key.Column+" "+op+" ?")
		args = append(args, values[i])
		terms = append(terms, "("+strings.Join(conds, " AND ")+")")
	}

	return "(" + strings.Join(terms, " OR ") + ")", args
}

// orderBy renders the ORDER BY clause for the sort keys, inverted when
// paging backward (rows are re-reversed in memory afterwards).
func orderBy(sort []storage.SortKey, backward bool) string {
	parts := make([]string, 0, len(sort))
	for _, key := range sort {
		desc := key.Descending
		if backward {
			desc = !desc
		}
		dir := "ASC"
		if desc {
			dir = "DESC"
		}
		parts = append(parts, key.Column+" "+dir)
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}
