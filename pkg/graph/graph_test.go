// Copyright 2026, the declstack authors. All rights reserved.

package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declstack/declstack/pkg/ast"
	"github.com/declstack/declstack/pkg/graph"
	"github.com/declstack/declstack/pkg/source"
	"github.com/declstack/declstack/pkg/synyaml"
)

func parseTemplate(t *testing.T, yamlSrc string) *ast.Template {
	t.Helper()
	arena := source.NewArena()
	id := arena.AddFile("Pulumi.yaml", yamlSrc)
	node, diags := synyaml.Decode(arena, id)
	require.False(t, diags.HasErrors(), "yaml decode: %v", diags.All())
	tpl, tplDiags := ast.ParseTemplate(node)
	require.False(t, tplDiags.HasErrors(), "template parse: %v", tplDiags.All())
	return tpl
}

func TestGraph_LevelsReflectDependencyDepth(t *testing.T) {
	tpl := parseTemplate(t, `
name: demo
runtime: yaml
resources:
  network:
    type: cloud:network:Vpc
    properties: {}
  subnet:
    type: cloud:network:Subnet
    properties:
      vpcId: ${network.id}
  instance:
    type: cloud:compute:Instance
    properties:
      subnetId: ${subnet.id}
`)
	g, bag := graph.Build(tpl)
	require.False(t, bag.HasErrors(), "build: %v", bag.All())

	order, bag := g.TopoSort()
	require.False(t, bag.HasErrors(), "toposort: %v", bag.All())
	require.Len(t, order, 3)

	assert.Equal(t, 1, g.Nodes["network"].Level)
	assert.Equal(t, 2, g.Nodes["subnet"].Level)
	assert.Equal(t, 3, g.Nodes["instance"].Level)

	assert.ElementsMatch(t, []string{"network"}, g.Dependencies("subnet"))
	assert.ElementsMatch(t, []string{"subnet"}, g.Dependencies("instance"))
}

func TestGraph_DetectsCycle(t *testing.T) {
	tpl := parseTemplate(t, `
name: demo
runtime: yaml
variables:
  a: ${b}
  b: ${a}
`)
	g, bag := graph.Build(tpl)
	require.False(t, bag.HasErrors())

	_, bag = g.TopoSort()
	assert.True(t, bag.HasErrors())
}

func TestGraph_DuplicateNameIsFatal(t *testing.T) {
	tpl := parseTemplate(t, `
name: demo
runtime: yaml
variables:
  thing: "a"
resources:
  thing:
    type: cloud:storage:Bucket
    properties: {}
`)
	_, bag := graph.Build(tpl)
	assert.True(t, bag.HasErrors())
}

func TestGraph_IndependentNodesShareALevel(t *testing.T) {
	tpl := parseTemplate(t, `
name: demo
runtime: yaml
resources:
  bucketA:
    type: cloud:storage:Bucket
    properties: {}
  bucketB:
    type: cloud:storage:Bucket
    properties: {}
`)
	g, bag := graph.Build(tpl)
	require.False(t, bag.HasErrors())
	_, bag = g.TopoSort()
	require.False(t, bag.HasErrors())

	assert.Equal(t, 1, g.Nodes["bucketA"].Level)
	assert.Equal(t, 1, g.Nodes["bucketB"].Level)
}

func TestGraph_TopoSortIsStableAcrossRuns(t *testing.T) {
	src := `
name: demo
runtime: yaml
resources:
  zeta:
    type: cloud:storage:Bucket
    properties: {}
  alpha:
    type: cloud:storage:Bucket
    properties:
      peer: ${zeta.id}
  middle:
    type: cloud:storage:Bucket
    properties:
      peer: ${zeta.id}
`
	tpl1 := parseTemplate(t, src)
	g1, bag := graph.Build(tpl1)
	require.False(t, bag.HasErrors())
	order1, bag := g1.TopoSort()
	require.False(t, bag.HasErrors())

	tpl2 := parseTemplate(t, src)
	g2, bag := graph.Build(tpl2)
	require.False(t, bag.HasErrors())
	order2, bag := g2.TopoSort()
	require.False(t, bag.HasErrors())

	assert.Equal(t, order1, order2)
}
