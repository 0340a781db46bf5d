// Copyright 2026, the declstack authors. All rights reserved.

package synyaml_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declstack/declstack/pkg/source"
	"github.com/declstack/declstack/pkg/synyaml"
)

func decode(t *testing.T, text string) synyaml.Node {
	t.Helper()
	arena := source.NewArena()
	id := arena.AddFile("doc.yaml", text)
	node, diags := synyaml.Decode(arena, id)
	require.False(t, diags.HasErrors(), "%v", diags.All())
	return node
}

func TestDecode_ScalarKinds(t *testing.T) {
	obj := decode(t, `
nullv: null
boolv: true
numv: 3.5
strv: hello
`).(*synyaml.ObjectNode)

	_, isNull := obj.Get("nullv").(*synyaml.NullNode)
	assert.True(t, isNull)

	b := obj.Get("boolv").(*synyaml.BooleanNode)
	assert.True(t, b.Val)

	n := obj.Get("numv").(*synyaml.NumberNode)
	assert.Equal(t, 3.5, n.Val)

	s := obj.Get("strv").(*synyaml.StringNode)
	assert.Equal(t, "hello", s.Val)
}

func TestDecode_SequencePreservesOrder(t *testing.T) {
	list := decode(t, "- a\n- b\n- c\n").(*synyaml.ListNode)
	require.Equal(t, 3, list.Len())
	assert.Equal(t, "a", list.Index(0).(*synyaml.StringNode).Val)
	assert.Equal(t, "c", list.Index(2).(*synyaml.StringNode).Val)
}

func TestDecode_MappingPreservesEntryOrder(t *testing.T) {
	obj := decode(t, "zeta: 1\nalpha: 2\n").(*synyaml.ObjectNode)
	require.Equal(t, 2, obj.Len())
	assert.Equal(t, "zeta", obj.Index(0).Key.Val)
	assert.Equal(t, "alpha", obj.Index(1).Key.Val)
}

func TestDecode_NonStringKeyIsError(t *testing.T) {
	arena := source.NewArena()
	id := arena.AddFile("doc.yaml", "? [1, 2]\n: value\n")
	_, diags := synyaml.Decode(arena, id)
	assert.True(t, diags.HasErrors())
}

func TestDecode_InvalidYAMLReportsError(t *testing.T) {
	arena := source.NewArena()
	id := arena.AddFile("doc.yaml", "key: [unterminated\n")
	node, diags := synyaml.Decode(arena, id)
	assert.Nil(t, node)
	assert.True(t, diags.HasErrors())
}

func TestDecode_EmptyDocumentIsNull(t *testing.T) {
	arena := source.NewArena()
	id := arena.AddFile("doc.yaml", "")
	node, diags := synyaml.Decode(arena, id)
	require.False(t, diags.HasErrors())
	_, isNull := node.(*synyaml.NullNode)
	assert.True(t, isNull)
}

func TestObjectNode_GetReturnsNilForMissingKey(t *testing.T) {
	obj := decode(t, "a: 1\n").(*synyaml.ObjectNode)
	assert.Nil(t, obj.Get("missing"))
}
