// Copyright 2026, the declstack authors. All rights reserved.

package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declstack/declstack/pkg/ast"
	"github.com/declstack/declstack/pkg/source"
	"github.com/declstack/declstack/pkg/synyaml"
)

func parse(t *testing.T, yamlSrc string) *ast.Template {
	t.Helper()
	arena := source.NewArena()
	id := arena.AddFile("Pulumi.yaml", yamlSrc)
	node, diags := synyaml.Decode(arena, id)
	require.False(t, diags.HasErrors(), "yaml decode: %v", diags.All())
	tpl, tplDiags := ast.ParseTemplate(node)
	require.False(t, tplDiags.HasErrors(), "template parse: %v", tplDiags.All())
	return tpl
}

func TestParseTemplate_PreservesDeclaredPropertyOrder(t *testing.T) {
	tpl := parse(t, `
name: demo
runtime: yaml
resources:
  bucket:
    type: cloud:storage:Bucket
    properties:
      zeta: 1
      alpha: 2
      middle: 3
`)
	require.Len(t, tpl.Resources, 1)
	assert.Equal(t, []string{"zeta", "alpha", "middle"}, tpl.Resources[0].PropertyOrder)
}

func TestParseTemplate_PropertiesSpreadForm(t *testing.T) {
	tpl := parse(t, `
name: demo
runtime: yaml
variables:
  base:
    region: us-west-2
resources:
  bucket:
    type: cloud:storage:Bucket
    properties: ${base}
`)
	require.Len(t, tpl.Resources, 1)
	assert.NotNil(t, tpl.Resources[0].PropertiesSpread)
	assert.Nil(t, tpl.Resources[0].Properties)
}

func TestParseTemplate_GetResourceForm(t *testing.T) {
	tpl := parse(t, `
name: demo
runtime: yaml
resources:
  existing:
    type: cloud:storage:Bucket
    get:
      id: my-bucket-id
`)
	require.Len(t, tpl.Resources, 1)
	require.NotNil(t, tpl.Resources[0].Get)
}

func TestParseTemplate_ResourceOptionsParsed(t *testing.T) {
	tpl := parse(t, `
name: demo
runtime: yaml
resources:
  bucket:
    type: cloud:storage:Bucket
    properties: {}
    options:
      protect: true
      dependsOn:
        - ${otherThing}
  otherThing:
    type: cloud:storage:Bucket
    properties: {}
`)
	require.Len(t, tpl.Resources, 2)
	var bucket *ast.ResourceEntry
	for i := range tpl.Resources {
		if tpl.Resources[i].LogicalName == "bucket" {
			bucket = &tpl.Resources[i]
		}
	}
	require.NotNil(t, bucket)
	require.NotNil(t, bucket.Options.Protect)
	require.Len(t, bucket.Options.DependsOn, 1)
}

func TestParseTemplate_ComponentDeclaration(t *testing.T) {
	tpl := parse(t, `
name: demo
runtime: yaml
components:
  network:
    inputs:
      cidr:
        type: String
        default: 10.0.0.0/16
    resources:
      vpc:
        type: cloud:network:Vpc
        properties:
          cidrBlock: ${cidr}
    outputs:
      vpcId: ${vpc.id}
`)
	require.Len(t, tpl.Components, 1)
	assert.Equal(t, "network", tpl.Components[0].Key)
	assert.Contains(t, tpl.Components[0].Inputs, "cidr")
	require.Len(t, tpl.Components[0].Resources, 1)
	require.Len(t, tpl.Components[0].Outputs, 1)
}
