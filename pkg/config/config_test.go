// Copyright 2026, the declstack authors. All rights reserved.

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declstack/declstack/pkg/config"
	"github.com/declstack/declstack/pkg/value"
)

func TestParseType_CaseInsensitiveScalarsAndLists(t *testing.T) {
	cases := map[string]config.Type{
		"string":        config.TypeString,
		"Number":        config.TypeNumber,
		"INT":           config.TypeInt,
		"integer":       config.TypeInt,
		"Boolean":       config.TypeBoolean,
		"bool":          config.TypeBoolean,
		"Object":        config.TypeObject,
		"List<String>":  config.TypeStringList,
		"list<number>":  config.TypeNumberList,
		"List<Boolean>": config.TypeBooleanList,
	}
	for raw, want := range cases {
		got, ok := config.ParseType(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := config.ParseType("not-a-type")
	assert.False(t, ok)
}

func TestCoerce_ScalarTypes(t *testing.T) {
	v, err := config.Coerce(config.TypeNumber, "3.14")
	require.NoError(t, err)
	n, ok := v.AsNumber()
	require.True(t, ok)
	assert.Equal(t, 3.14, n)

	v, err = config.Coerce(config.TypeBoolean, "true")
	require.NoError(t, err)
	b, _ := v.AsBool()
	assert.True(t, b)

	_, err = config.Coerce(config.TypeInt, "not-an-int")
	assert.Error(t, err)
}

func TestCoerce_StringListType(t *testing.T) {
	v, err := config.Coerce(config.TypeStringList, `["a", "b", "c"]`)
	require.NoError(t, err)
	items, ok := v.AsList()
	require.True(t, ok)
	require.Len(t, items, 3)
	s, _ := items[1].AsString()
	assert.Equal(t, "b", s)
}

func TestInferType_FromDecodedValues(t *testing.T) {
	tests := []struct {
		v    value.Value
		want config.Type
	}{
		{value.Bool(true), config.TypeBoolean},
		{value.Number(3), config.TypeInt},
		{value.Number(3.5), config.TypeNumber},
		{value.String("x"), config.TypeString},
		{value.List(value.String("a"), value.String("b")), config.TypeStringList},
	}
	for _, tt := range tests {
		got, err := config.InferType(tt.v)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := config.InferType(value.List())
	assert.Error(t, err)

	_, err = config.InferType(value.List(value.String("a"), value.Number(1)))
	assert.Error(t, err)
}

func TestElementTypeAndAsList_RoundTrip(t *testing.T) {
	listType, ok := config.TypeInt.AsList()
	require.True(t, ok)
	assert.Equal(t, config.TypeIntList, listType)

	elem, ok := listType.ElementType()
	require.True(t, ok)
	assert.Equal(t, config.TypeInt, elem)

	_, ok = config.TypeString.ElementType()
	assert.False(t, ok)
}
