package filter

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rkm/skyfoto-stac-api/internal/crs"
	"github.com/rkm/skyfoto-stac-api/internal/geo"
)

// Lang is the only supported filter grammar.
const Lang = "cql2-json"

// operator kinds making up the canonical vocabulary.
const (
	kindComparison = "comparison"
	kindSpatial    = "spatial"
	kindTemporal   = "temporal"
	kindArithmetic = "arithmetic"
)

// canonicalOps maps every canonical operator to its kind.
var canonicalOps = map[string]string{
	"eq": kindComparison, "ne": kindComparison,
	"lt": kindComparison, "lte": kindComparison,
	"gt": kindComparison, "gte": kindComparison,
	"like": kindComparison, "between": kindComparison,
	"in": kindComparison, "isnull": kindComparison,

	"intersects": kindSpatial, "within": kindSpatial,
	"contains": kindSpatial, "disjoint": kindSpatial,

	"after": kindTemporal, "before": kindTemporal,
	"during": kindTemporal, "anyinteracts": kindTemporal,
	"meets": kindTemporal, "metby": kindTemporal,

	"+": kindArithmetic, "-": kindArithmetic,
	"*": kindArithmetic, "/": kindArithmetic,
}

// opAliases maps accepted alternate spellings onto the canonical
// vocabulary. The grammar and older clients disagree on several names
// (ge vs gte, symbol vs word), so everything is normalized here before
// any validation sees it.
var opAliases = map[string]string{
	"=": "eq", "==": "eq",
	"<>": "ne", "!=": "ne",
	"<": "lt", "<=": "lte",
	">": "gt", ">=": "gte",
	"ge": "gte", "le": "lte",
	"s_intersects": "intersects",
	"s_within":     "within",
	"s_contains":   "contains",
	"s_disjoint":   "disjoint",
	"t_after":      "after",
	"t_before":     "before",
	"t_during":     "during",
	"t_meets":      "meets",
	"t_metby":      "metby",
}

// normalizeOp resolves aliases to the canonical spelling.
func normalizeOp(op string) string {
	op = strings.ToLower(op)
	if canonical, ok := opAliases[op]; ok {
		return canonical
	}
	return op
}

// AllowedOperators returns the full canonical vocabulary minus the removed
// names. This is the operator set filters are validated against.
func AllowedOperators(removed []string) map[string]bool {
	allowed := make(map[string]bool, len(canonicalOps))
	for op := range canonicalOps {
		allowed[op] = true
	}
	for _, op := range removed {
		delete(allowed, normalizeOp(op))
	}
	return allowed
}

// Parse converts a raw filter into an expression tree. The input is either
// the already-unmarshaled JSON value (from a POST body) or a JSON string
// (from a GET query parameter). Geometry literals are tagged with the
// storage SRID; RewriteGeometryCRS retags them when the filter CRS differs.
func Parse(raw any) (Expression, error) {
	if raw == nil {
		return nil, syntaxErrorf("empty filter")
	}

	if text, ok := raw.(string); ok {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, syntaxErrorf("empty filter")
		}
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
			return nil, syntaxErrorf("invalid JSON: %w", err)
		}
		raw = decoded
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, syntaxErrorf("filter must be a JSON object")
	}

	expr, err := parseNode(obj)
	if err != nil {
		return nil, err
	}
	if expr == nil {
		return nil, syntaxErrorf("empty filter")
	}
	return expr, nil
}

// parseNode parses one {"op": ..., "args": [...]} node.
func parseNode(obj map[string]any) (Expression, error) {
	opVal, ok := obj["op"]
	if !ok {
		return nil, syntaxErrorf("missing 'op' field")
	}
	opName, ok := opVal.(string)
	if !ok {
		return nil, syntaxErrorf("'op' must be a string")
	}
	op := normalizeOp(opName)

	argsVal, ok := obj["args"]
	if !ok {
		return nil, syntaxErrorf("operator %q is missing 'args'", opName)
	}
	args, ok := argsVal.([]any)
	if !ok {
		return nil, syntaxErrorf("'args' of %q must be an array", opName)
	}

	switch op {
	case "and", "or":
		return parseLogical(op, args)
	case "not":
		if len(args) != 1 {
			return nil, syntaxErrorf("'not' requires exactly 1 argument, got %d", len(args))
		}
		sub, err := parseOperand(args[0])
		if err != nil {
			return nil, err
		}
		return &Not{Expression: sub}, nil
	case "isnull":
		if len(args) != 1 {
			return nil, syntaxErrorf("'isNull' requires exactly 1 argument, got %d", len(args))
		}
		arg, err := parseOperand(args[0])
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: op, Left: arg}, nil
	case "between":
		if len(args) != 3 {
			return nil, syntaxErrorf("'between' requires exactly 3 arguments, got %d", len(args))
		}
		arg, err := parseOperand(args[0])
		if err != nil {
			return nil, err
		}
		lo, err := parseOperand(args[1])
		if err != nil {
			return nil, err
		}
		hi, err := parseOperand(args[2])
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: op, Left: arg, Right: &ListLiteral{Items: []Expression{lo, hi}}}, nil
	default:
		if len(args) != 2 {
			return nil, syntaxErrorf("operator %q requires exactly 2 arguments, got %d", opName, len(args))
		}
		left, err := parseOperand(args[0])
		if err != nil {
			return nil, err
		}
		right, err := parseOperand(args[1])
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: op, Left: left, Right: right}, nil
	}
}

// parseLogical folds an n-ary and/or argument list into binary nodes.
func parseLogical(op string, args []any) (Expression, error) {
	if len(args) < 2 {
		return nil, syntaxErrorf("'%s' requires at least 2 arguments, got %d", op, len(args))
	}
	exprs := make([]Expression, 0, len(args))
	for _, arg := range args {
		sub, err := parseOperand(arg)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, sub)
	}
	node := exprs[0]
	for _, next := range exprs[1:] {
		node = &LogicalOperator{Op: op, Left: node, Right: next}
	}
	return node, nil
}

// parseOperand parses one argument position: nested expressions, property
// references, geometry/temporal literals, lists and scalars.
func parseOperand(arg any) (Expression, error) {
	switch v := arg.(type) {
	case map[string]any:
		if name, ok := v["property"]; ok {
			s, ok := name.(string)
			if !ok {
				return nil, syntaxErrorf("'property' must be a string")
			}
			return &Property{Name: s}, nil
		}
		if ts, ok := v["timestamp"]; ok {
			return parseTimestamp(ts)
		}
		if iv, ok := v["interval"]; ok {
			return parseInterval(iv)
		}
		if typ, ok := v["type"].(string); ok && geo.GeometryTypes[typ] {
			g, err := geo.DecodeGeometryMap(v)
			if err != nil {
				return nil, &FilterSyntaxError{Err: err}
			}
			return &GeometryLiteral{Geometry: g, SRID: crs.StorageSRID}, nil
		}
		if _, ok := v["op"]; ok {
			return parseNode(v)
		}
		return nil, syntaxErrorf("unrecognized argument object")
	case []any:
		items := make([]Expression, 0, len(v))
		for _, elem := range v {
			sub, err := parseOperand(elem)
			if err != nil {
				return nil, err
			}
			items = append(items, sub)
		}
		return &ListLiteral{Items: items}, nil
	case string, float64, bool, json.Number:
		return &Literal{Value: v}, nil
	case nil:
		return nil, syntaxErrorf("null is not a valid operand")
	default:
		return nil, syntaxErrorf("unsupported operand type %T", arg)
	}
}

func parseTimestamp(v any) (Expression, error) {
	s, ok := v.(string)
	if !ok {
		return nil, syntaxErrorf("'timestamp' must be a string")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, syntaxErrorf("invalid timestamp %q: %w", s, err)
	}
	return &TimeLiteral{Value: t}, nil
}

func parseInterval(v any) (Expression, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return nil, syntaxErrorf("'interval' must be a 2-element array")
	}
	bounds := make([]*time.Time, 2)
	for i, elem := range arr {
		s, ok := elem.(string)
		if !ok {
			return nil, syntaxErrorf("interval bounds must be strings")
		}
		if s == ".." {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, syntaxErrorf("invalid interval bound %q: %w", s, err)
		}
		bounds[i] = &t
	}
	if bounds[0] != nil && bounds[1] != nil && bounds[0].After(*bounds[1]) {
		return nil, syntaxErrorf("interval start must not be after interval end")
	}
	return &IntervalLiteral{Start: bounds[0], End: bounds[1]}, nil
}
