// Copyright 2026, the declstack authors. All rights reserved.

package interp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declstack/declstack/pkg/interp"
)

func TestHasInterpolations(t *testing.T) {
	assert.True(t, interp.HasInterpolations("hello ${name}"))
	assert.False(t, interp.HasInterpolations("hello $$name"))
	assert.False(t, interp.HasInterpolations("plain text"))
}

func TestParseInterpolation_LiteralAndPathParts(t *testing.T) {
	parts, err := interp.ParseInterpolation("prefix-${bucket.id}-suffix")
	require.NoError(t, err)
	require.Len(t, parts, 2)

	assert.Equal(t, "prefix-", parts[0].Text)
	require.NotNil(t, parts[0].Path)
	assert.Equal(t, "bucket", parts[0].Path.RootName())

	assert.Equal(t, "-suffix", parts[1].Text)
	assert.Nil(t, parts[1].Path)
}

func TestParseInterpolation_EscapedDollarIsLiteral(t *testing.T) {
	parts, err := interp.ParseInterpolation("cost is $$5")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "cost is $5", parts[0].Text)
	assert.Nil(t, parts[0].Path)
}

func TestParseInterpolation_UnterminatedInterpolationErrors(t *testing.T) {
	_, err := interp.ParseInterpolation("broken ${bucket.id")
	assert.Error(t, err)
}

func TestParseInterpolation_EmptyAccessErrors(t *testing.T) {
	_, err := interp.ParseInterpolation("${}")
	assert.Error(t, err)
}
