// Package condition implements the recursive boolean-expression trees stored
// on workflow rules, and their evaluation against entity data.
package condition

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Group operators.
const (
	GroupAnd = "AND"
	GroupOr  = "OR"
)

// MaxDepth caps condition tree nesting to keep recursive evaluation bounded.
const MaxDepth = 16

// Node is one vertex of a condition tree: either a leaf comparison or a
// boolean group. At most one of Leaf/Group is set; a zero Node (and a nil
// *Node) is vacuously true.
type Node struct {
	Leaf  *Leaf
	Group *Group
}

// Leaf compares a resolved field value against a literal.
type Leaf struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Group combines child nodes with AND/OR. Any operator other than "OR"
// (including absent) combines with AND.
type Group struct {
	Operator   string `json:"operator,omitempty"`
	Conditions []Node `json:"conditions"`
}

// nodeWire is the flat JSON shape shared by leaves and groups. The presence
// of "conditions" discriminates a group from a leaf.
type nodeWire struct {
	Field      string          `json:"field,omitempty"`
	Operator   string          `json:"operator,omitempty"`
	Value      any             `json:"value,omitempty"`
	Conditions json.RawMessage `json:"conditions,omitempty"`
}

// UnmarshalJSON decodes either leaf or group shape. null and {} decode to a
// vacuous node.
func (n *Node) UnmarshalJSON(data []byte) error {
	*n = Node{}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	var w nodeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("condition node: %w", err)
	}
	if w.Conditions != nil {
		var children []Node
		if err := json.Unmarshal(w.Conditions, &children); err != nil {
			return fmt.Errorf("condition group children: %w", err)
		}
		n.Group = &Group{Operator: w.Operator, Conditions: children}
		return nil
	}
	if w.Field != "" || w.Operator != "" {
		n.Leaf = &Leaf{Field: w.Field, Operator: w.Operator, Value: w.Value}
	}
	return nil
}

// MarshalJSON emits the flat wire shape; a vacuous node marshals to null.
func (n Node) MarshalJSON() ([]byte, error) {
	switch {
	case n.Group != nil:
		return json.Marshal(struct {
			Operator   string `json:"operator,omitempty"`
			Conditions []Node `json:"conditions"`
		}{n.Group.Operator, n.Group.Conditions})
	case n.Leaf != nil:
		return json.Marshal(n.Leaf)
	default:
		return []byte("null"), nil
	}
}

// Validate checks the structural shape of a tree: leaves need a field and a
// known operator, groups may only use AND/OR, and nesting is depth-capped.
// Evaluation itself stays permissive (unknown operators fail closed) so that
// rules stored before an operator was retired still execute.
func Validate(n *Node) error {
	return validate(n, 0)
}

func validate(n *Node, depth int) error {
	if n == nil {
		return nil
	}
	if depth > MaxDepth {
		return fmt.Errorf("condition tree exceeds maximum depth %d", MaxDepth)
	}
	if n.Leaf != nil && n.Group != nil {
		return fmt.Errorf("condition node cannot be both leaf and group")
	}
	switch {
	case n.Group != nil:
		op := strings.ToUpper(n.Group.Operator)
		if op != "" && op != GroupAnd && op != GroupOr {
			return fmt.Errorf("unknown group operator %q", n.Group.Operator)
		}
		for i := range n.Group.Conditions {
			if err := validate(&n.Group.Conditions[i], depth+1); err != nil {
				return err
			}
		}
	case n.Leaf != nil:
		if n.Leaf.Field == "" {
			return fmt.Errorf("condition field is required")
		}
		if !KnownOperator(n.Leaf.Operator) {
			return fmt.Errorf("unknown operator %q for field %q", n.Leaf.Operator, n.Leaf.Field)
		}
	}
	return nil
}
