// Copyright 2026, the declstack authors. All rights reserved.

package interp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declstack/declstack/pkg/interp"
)

func TestParsePathAccess_NameChain(t *testing.T) {
	p, err := interp.ParsePathAccess("bucket.region")
	require.NoError(t, err)
	require.Len(t, p.Accessors, 2)
	assert.Equal(t, "bucket", p.RootName())
	assert.Equal(t, interp.Name{Value: "region"}, p.Accessors[1])
}

func TestParsePathAccess_StringAndIntSubscripts(t *testing.T) {
	p, err := interp.ParsePathAccess(`tags["env"][0]`)
	require.NoError(t, err)
	require.Len(t, p.Accessors, 3)
	assert.Equal(t, interp.Name{Value: "tags"}, p.Accessors[0])
	assert.Equal(t, interp.StringSubscript{Value: "env"}, p.Accessors[1])
	assert.Equal(t, interp.IntSubscript{Value: 0}, p.Accessors[2])
}

func TestParsePathAccess_RootMustNotBeIntSubscript(t *testing.T) {
	_, err := interp.ParsePathAccess("[0]")
	assert.Error(t, err)
}

func TestParsePathAccess_RejectsTrailingGarbage(t *testing.T) {
	_, err := interp.ParsePathAccess("a.b}")
	assert.Error(t, err)
}

func TestParsePathAccess_EmptyPathIsInvalid(t *testing.T) {
	_, err := interp.ParsePathAccess("")
	assert.Error(t, err)
}
