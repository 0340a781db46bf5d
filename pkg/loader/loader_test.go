// Copyright 2026, the declstack authors. All rights reserved.

package loader_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declstack/declstack/pkg/loader"
	"github.com/declstack/declstack/pkg/preprocess"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestLoad_MergesMainAndSuffixedFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/Pulumi.yaml", `
name: demo
runtime: yaml
resources:
  bucket:
    type: cloud:storage:Bucket
    properties: {}
`)
	writeFile(t, fs, "/proj/Pulumi.extra.yaml", `
resources:
  table:
    type: cloud:db:Table
    properties: {}
`)

	result := loader.Load(fs, "/proj", preprocess.NoOp{}, preprocess.Context{})
	require.False(t, result.Diags.HasErrors(), "%v", result.Diags.All())

	names := map[string]bool{}
	for _, r := range result.Template.Resources {
		names[r.LogicalName] = true
	}
	assert.True(t, names["bucket"])
	assert.True(t, names["table"])
	assert.Equal(t, "demo", result.Template.Name)

	assert.Equal(t, "/proj/Pulumi.extra.yaml", result.SourceMap["table"])
	assert.Equal(t, "/proj/Pulumi.yaml", result.SourceMap["bucket"])
}

func TestLoad_DuplicateResourceNameAcrossFilesIsFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/Pulumi.yaml", `
name: demo
runtime: yaml
resources:
  bucket:
    type: cloud:storage:Bucket
    properties: {}
`)
	writeFile(t, fs, "/proj/Pulumi.extra.yaml", `
resources:
  bucket:
    type: cloud:storage:Bucket
    properties: {}
`)

	result := loader.Load(fs, "/proj", preprocess.NoOp{}, preprocess.Context{})
	assert.True(t, result.Diags.HasErrors())
}

func TestLoad_MissingMainFileIsFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	result := loader.Load(fs, "/empty", preprocess.NoOp{}, preprocess.Context{})
	assert.True(t, result.Diags.HasErrors())
}

func TestLoad_ConfigOutsideMainFileIsRejected(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/Pulumi.yaml", `
name: demo
runtime: yaml
`)
	writeFile(t, fs, "/proj/Pulumi.extra.yaml", `
config:
  region:
    type: String
resources:
  bucket:
    type: cloud:storage:Bucket
    properties: {}
`)

	result := loader.Load(fs, "/proj", preprocess.NoOp{}, preprocess.Context{})
	assert.True(t, result.Diags.HasErrors())
}
