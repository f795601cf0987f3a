package condition

import (
	"strings"

	"github.com/paperledger/workflow/internal/fieldpath"
)

// Options tunes evaluation semantics.
type Options struct {
	// Strict disables cross-type coercion: numbers only compare to numbers,
	// strings to strings. The default (false) keeps the permissive loose
	// comparison stored rules were written against.
	Strict bool
}

// Evaluate runs a tree against data with default (loose) options.
func Evaluate(n *Node, data map[string]any) bool {
	return EvaluateWith(n, data, Options{})
}

// EvaluateWith runs a tree against data. A nil or vacuous tree is true.
// Group children short-circuit: AND stops at the first false child, OR at
// the first true one. Evaluation is side-effect free and never errors.
func EvaluateWith(n *Node, data map[string]any, opts Options) bool {
	switch {
	case n == nil:
		return true
	case n.Group != nil:
		return evalGroup(n.Group, data, opts)
	case n.Leaf != nil:
		return evalLeaf(n.Leaf, data, opts)
	default:
		return true
	}
}

func evalGroup(g *Group, data map[string]any, opts Options) bool {
	if strings.EqualFold(g.Operator, GroupOr) {
		for i := range g.Conditions {
			if EvaluateWith(&g.Conditions[i], data, opts) {
				return true
			}
		}
		return len(g.Conditions) == 0
	}
	// Any other operator, including absent, combines with AND.
	for i := range g.Conditions {
		if !EvaluateWith(&g.Conditions[i], data, opts) {
			return false
		}
	}
	return true
}

func evalLeaf(l *Leaf, data map[string]any, opts Options) bool {
	val, _ := fieldpath.Resolve(data, l.Field)
	return compare(l.Operator, val, l.Value, opts)
}
