package condition

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Leaf operators.
const (
	OpEq         = "=="
	OpEqAlias    = "="
	OpNeq        = "!="
	OpGt         = ">"
	OpLt         = "<"
	OpGte        = ">="
	OpLte        = "<="
	OpContains   = "contains"
	OpStartsWith = "startsWith"
	OpEndsWith   = "endsWith"
)

// KnownOperator reports whether op is part of the supported operator table.
func KnownOperator(op string) bool {
	switch op {
	case OpEq, OpEqAlias, OpNeq, OpGt, OpLt, OpGte, OpLte,
		OpContains, OpStartsWith, OpEndsWith:
		return true
	}
	return false
}

// compare applies a leaf operator. Unrecognized operators fail closed (false,
// never an error) so one malformed condition cannot abort a whole run.
func compare(op string, left, right any, opts Options) bool {
	switch op {
	case OpEq, OpEqAlias:
		return looseEqual(left, right, opts)
	case OpNeq:
		return !looseEqual(left, right, opts)
	case OpGt:
		ord, ok := order(left, right, opts)
		return ok && ord > 0
	case OpLt:
		ord, ok := order(left, right, opts)
		return ok && ord < 0
	case OpGte:
		ord, ok := order(left, right, opts)
		return ok && ord >= 0
	case OpLte:
		ord, ok := order(left, right, opts)
		return ok && ord <= 0
	case OpContains:
		return strings.Contains(stringify(left), stringify(right))
	case OpStartsWith:
		return strings.HasPrefix(stringify(left), stringify(right))
	case OpEndsWith:
		return strings.HasSuffix(stringify(left), stringify(right))
	default:
		return false
	}
}

// looseEqual mirrors the permissive equality the stored rules were written
// against: operands that both coerce to numbers compare numerically
// ("5" == 5, true == 1), everything else compares by string form. Strict
// mode only compares operands of the same kind.
func looseEqual(a, b any, opts Options) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if opts.Strict {
		switch av := a.(type) {
		case bool:
			bv, ok := b.(bool)
			return ok && av == bv
		case string:
			bv, ok := b.(string)
			return ok && av == bv
		default:
			fa, aok := toFloat64(a)
			fb, bok := toFloat64(b)
			return aok && bok && fa == fb
		}
	}
	if fa, aok := toNumber(a); aok {
		if fb, bok := toNumber(b); bok {
			return fa == fb
		}
	}
	return stringify(a) == stringify(b)
}

// order performs a three-way comparison. Two strings compare
// lexicographically (ISO date strings order correctly this way); otherwise
// both sides must coerce to numbers. Incomparable operands, including a
// missing field, report not-ok so every ordering operator yields false.
func order(a, b any, opts Options) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return strings.Compare(as, bs), true
	}
	if opts.Strict && (aIsStr || bIsStr) {
		return 0, false
	}
	fa, aok := toNumber(a)
	fb, bok := toNumber(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case fa < fb:
		return -1, true
	case fa > fb:
		return 1, true
	default:
		return 0, true
	}
}

// toFloat64 converts native numeric types only.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// toNumber additionally coerces numeric strings and booleans, the loose-mode
// coercions ordering and equality rely on.
func toNumber(v any) (float64, bool) {
	if f, ok := toFloat64(v); ok {
		return f, true
	}
	switch n := v.(type) {
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// stringify renders a value for the string-coercing operators. nil renders
// empty so comparisons against missing fields stay false rather than
// matching the literal "<nil>".
func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := toFloat64(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}
