// Copyright 2026, the declstack authors. All rights reserved.

package preprocess_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declstack/declstack/pkg/preprocess"
)

func TestHasTemplateSyntax(t *testing.T) {
	assert.True(t, preprocess.HasTemplateSyntax("{{ name }}"))
	assert.True(t, preprocess.HasTemplateSyntax("{% if x %}"))
	assert.False(t, preprocess.HasTemplateSyntax("plain: yaml"))
}

func TestNoOp_NeverRewrites(t *testing.T) {
	src := "name: demo\nresources: {}\n"
	out, err := preprocess.NoOp{}.Preprocess(src, "Pulumi.yaml", preprocess.Context{})
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestGonja_FastPathSkipsSourcesWithNoTemplateSyntax(t *testing.T) {
	src := "name: demo\nresources: {}\n"
	out, err := preprocess.Gonja{}.Preprocess(src, "Pulumi.yaml", preprocess.Context{})
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestGonja_RendersKnownContextVariable(t *testing.T) {
	src := "name: {{ project_name }}\n"
	out, err := preprocess.Gonja{}.Preprocess(src, "Pulumi.yaml", preprocess.Context{ProjectName: "demo-project"})
	require.NoError(t, err)
	assert.Equal(t, "name: demo-project\n", out)
}

func TestGonja_StrictUndefinedVariableErrors(t *testing.T) {
	src := "name: {{ nonexistent }}\n"
	_, err := preprocess.Gonja{Policy: preprocess.Strict}.Preprocess(src, "Pulumi.yaml", preprocess.Context{})
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, preprocess.Passthrough, preprocess.ParsePolicy("passthrough"))
	assert.Equal(t, preprocess.Strict, preprocess.ParsePolicy(""))
	assert.Equal(t, preprocess.Strict, preprocess.ParsePolicy("bogus"))
}
