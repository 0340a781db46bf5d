// Copyright 2026, the declstack authors. All rights reserved.

package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declstack/declstack/pkg/value"
)

func TestCodec_RoundTripsScalars(t *testing.T) {
	cases := []value.Value{
		value.Null(),
		value.Bool(true),
		value.Number(3.5),
		value.String("hello"),
		value.Unknown(),
	}
	for _, v := range cases {
		got := value.Decode(value.Encode(v))
		assert.Equal(t, v.Kind(), got.Kind())
		assert.Equal(t, v.String(), got.String())
	}
}

func TestCodec_RoundTripsSecretOfListOfUnknown(t *testing.T) {
	v := value.Secret(value.List(value.String("a"), value.Unknown()))
	got := value.Decode(value.Encode(v))

	require.True(t, got.IsSecret())
	items, ok := got.Unwrap().AsList()
	require.True(t, ok)
	require.Len(t, items, 2)
	s, _ := items[0].AsString()
	assert.Equal(t, "a", s)
	assert.True(t, items[1].IsUnknown())
}

func TestCodec_RoundTripsResourceRef(t *testing.T) {
	ref := value.ResourceRef{URN: "urn:declstack:demo::demo::cloud:storage:Bucket::bucket", ID: "bucket-1"}
	v := value.Resource(ref)
	got := value.Decode(value.Encode(v))

	gotRef, ok := got.AsResource()
	require.True(t, ok)
	assert.Equal(t, ref, gotRef)
}

func TestCodec_EncodeOutput_UnknownOmitsValue(t *testing.T) {
	pv := value.EncodeOutput(value.Unknown())
	got := value.Decode(pv)
	assert.True(t, got.IsUnknown())
}

func TestCodec_EncodeOutput_SecretRoundTrips(t *testing.T) {
	pv := value.EncodeOutput(value.Secret(value.String("shh")))
	got := value.Decode(pv)
	assert.True(t, got.IsSecret())
	s, _ := got.Unwrap().AsString()
	assert.Equal(t, "shh", s)
}

func TestCodec_RoundTripsObjectFields(t *testing.T) {
	v := value.Object([]string{"a", "b"}, map[string]value.Value{
		"a": value.Number(1),
		"b": value.String("x"),
	})
	got := value.Decode(value.Encode(v))
	assert.ElementsMatch(t, []string{"a", "b"}, got.ObjectKeys())
	f, ok := got.Field("a")
	require.True(t, ok)
	n, _ := f.AsNumber()
	assert.Equal(t, float64(1), n)
}
