// Copyright 2026, the declstack authors. All rights reserved.

package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declstack/declstack/pkg/value"
)

func TestSecret_NeverNests(t *testing.T) {
	inner := value.Secret(value.String("a"))
	outer := value.Secret(inner)

	assert.True(t, outer.IsSecret())
	s, ok := outer.Unwrap().AsString()
	require.True(t, ok)
	assert.Equal(t, "a", s)
}

func TestContainsSecret_PropagatesThroughComposites(t *testing.T) {
	list := value.List(value.String("a"), value.Secret(value.String("b")))
	assert.True(t, list.ContainsSecret())

	obj := value.Object([]string{"x"}, map[string]value.Value{"x": value.Secret(value.Number(1))})
	assert.True(t, obj.ContainsSecret())

	assert.False(t, value.List(value.String("a"), value.Number(2)).ContainsSecret())
}

func TestContainsUnknown_PropagatesThroughSecretAndComposites(t *testing.T) {
	assert.True(t, value.Secret(value.Unknown()).ContainsUnknown())
	assert.True(t, value.List(value.Unknown()).ContainsUnknown())
	assert.True(t, value.Object([]string{"a"}, map[string]value.Value{"a": value.Unknown()}).ContainsUnknown())
	assert.False(t, value.String("known").ContainsUnknown())
}

func TestString_RedactsSecrets(t *testing.T) {
	s := value.Secret(value.String("hunter2"))
	assert.Equal(t, "[secret]", s.String())
	assert.NotContains(t, s.String(), "hunter2")
}

func TestWithDependencies_DedupesAndUnions(t *testing.T) {
	v := value.String("x").WithDependencies("urn:a", "urn:b")
	v = v.WithDependencies("urn:b", "urn:c")
	assert.ElementsMatch(t, []string{"urn:a", "urn:b", "urn:c"}, v.Dependencies)
}

func TestObject_PreservesInsertionOrderAndFieldLookup(t *testing.T) {
	obj := value.Object([]string{"b", "a"}, map[string]value.Value{
		"a": value.Number(1),
		"b": value.Number(2),
	})
	assert.Equal(t, []string{"b", "a"}, obj.ObjectKeys())

	f, ok := obj.Field("a")
	require.True(t, ok)
	n, _ := f.AsNumber()
	assert.Equal(t, float64(1), n)

	_, ok = obj.Field("missing")
	assert.False(t, ok)
}

func TestUnwrap_NonSecretIsIdentity(t *testing.T) {
	v := value.Number(42)
	assert.Equal(t, v, v.Unwrap())
}
