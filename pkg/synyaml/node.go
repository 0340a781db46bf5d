// Copyright 2026, the declstack authors. All rights reserved.

// Package synyaml parses YAML documents into a source-preserving syntax
// tree: a thin sum type over null/bool/number/string/list/object where every
// node carries the span it was parsed from. ast.ParseExpr (pkg/ast) consumes
// this tree; synyaml itself knows nothing about the expression language.
package synyaml

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/declstack/declstack/pkg/source"
)

// Node is a single node in the parsed YAML tree.
type Node interface {
	fmt.Stringer
	Span() source.Span
	isNode()
}

type node struct{ span source.Span }

func (n node) Span() source.Span { return n.span }
func (node) isNode()             {}

// NullNode represents a YAML null/~ scalar.
type NullNode struct{ node }

func Null(sp source.Span) *NullNode { return &NullNode{node{sp}} }
func (*NullNode) String() string    { return "null" }

// BooleanNode represents a YAML boolean scalar.
type BooleanNode struct {
	node
	Val bool
}

func Boolean(sp source.Span, v bool) *BooleanNode { return &BooleanNode{node{sp}, v} }
func (n *BooleanNode) String() string {
	if n.Val {
		return "true"
	}
	return "false"
}

// NumberNode represents a YAML number scalar.
type NumberNode struct {
	node
	Val float64
}

func Number(sp source.Span, v float64) *NumberNode { return &NumberNode{node{sp}, v} }
func (n *NumberNode) String() string                { return strconv.FormatFloat(n.Val, 'f', -1, 64) }

// StringNode represents a YAML string scalar.
type StringNode struct {
	node
	Val string
}

func String(sp source.Span, v string) *StringNode { return &StringNode{node{sp}, v} }
func (n *StringNode) String() string               { return n.Val }

// ListNode represents a YAML sequence.
type ListNode struct {
	node
	Elements []Node
}

func List(sp source.Span, elems ...Node) *ListNode { return &ListNode{node{sp}, elems} }
func (n *ListNode) Len() int                        { return len(n.Elements) }
func (n *ListNode) Index(i int) Node                { return n.Elements[i] }
func (n *ListNode) String() string {
	parts := make([]string, len(n.Elements))
	for i, e := range n.Elements {
		parts[i] = e.String()
	}
	return "[ " + strings.Join(parts, ", ") + " ]"
}

// ObjectProperty is one key/value pair in an ObjectNode.
type ObjectProperty struct {
	Span  source.Span
	Key   *StringNode
	Value Node
}

// ObjectNode represents a YAML mapping. Entry order mirrors source order.
type ObjectNode struct {
	node
	Entries []ObjectProperty
}

func Object(sp source.Span, entries ...ObjectProperty) *ObjectNode {
	return &ObjectNode{node{sp}, entries}
}
func (n *ObjectNode) Len() int                  { return len(n.Entries) }
func (n *ObjectNode) Index(i int) ObjectProperty { return n.Entries[i] }
func (n *ObjectNode) String() string {
	parts := make([]string, len(n.Entries))
	for i, e := range n.Entries {
		parts[i] = e.Key.String() + ": " + e.Value.String()
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// Get returns the value for key, or nil if absent.
func (n *ObjectNode) Get(key string) Node {
	for _, e := range n.Entries {
		if e.Key.Val == key {
			return e.Value
		}
	}
	return nil
}
