// Copyright 2026, the declstack authors. All rights reserved.

package config

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/declstack/declstack/pkg/value"
)

func parseJSONObject(raw string) (value.Value, error) {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return value.Value{}, fmt.Errorf("expected a JSON object, got %q: %w", raw, err)
	}
	return fromJSONObject(m), nil
}

func parseJSONList(elemType Type, raw string) (value.Value, error) {
	var items []interface{}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return value.Value{}, fmt.Errorf("expected a JSON array, got %q: %w", raw, err)
	}
	out := make([]value.Value, len(items))
	for i, it := range items {
		v, err := coerceJSONScalar(elemType, it)
		if err != nil {
			return value.Value{}, err
		}
		out[i] = v
	}
	return value.List(out...), nil
}

func coerceJSONScalar(t Type, v interface{}) (value.Value, error) {
	switch t {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return value.Value{}, fmt.Errorf("expected a string element, got %v", v)
		}
		return value.String(s), nil
	case TypeNumber, TypeInt:
		n, ok := v.(float64)
		if !ok {
			return value.Value{}, fmt.Errorf("expected a numeric element, got %v", v)
		}
		return value.Number(n), nil
	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return value.Value{}, fmt.Errorf("expected a boolean element, got %v", v)
		}
		return value.Bool(b), nil
	case TypeObject:
		m, ok := v.(map[string]interface{})
		if !ok {
			return value.Value{}, fmt.Errorf("expected an object element, got %v", v)
		}
		return fromJSONObject(m), nil
	default:
		return value.Value{}, fmt.Errorf("unsupported list element type %v", t)
	}
}

func fromJSONObject(m map[string]interface{}) value.Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make(map[string]value.Value, len(m))
	for _, k := range keys {
		fields[k] = fromJSONAny(m[k])
	}
	return value.Object(keys, fields)
}

func fromJSONAny(v interface{}) value.Value {
	switch x := v.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(x)
	case float64:
		return value.Number(x)
	case string:
		return value.String(x)
	case []interface{}:
		items := make([]value.Value, len(x))
		for i, e := range x {
			items[i] = fromJSONAny(e)
		}
		return value.List(items...)
	case map[string]interface{}:
		return fromJSONObject(x)
	default:
		return value.Null()
	}
}

// InferType guesses a config type from an already-decoded Value, used when a
// config entry's `default`/`value` is given inline in the template rather
// than via a `type:` declaration. Mirrors the original core's infer_type,
// including its heterogeneous/empty-list error cases.
func InferType(v value.Value) (Type, error) {
	switch v.Kind() {
	case value.KindNull:
		return TypeString, nil
	case value.KindBool:
		return TypeBoolean, nil
	case value.KindNumber:
		n, _ := v.AsNumber()
		if n == float64(int64(n)) {
			return TypeInt, nil
		}
		return TypeNumber, nil
	case value.KindString:
		return TypeString, nil
	case value.KindObject:
		return TypeObject, nil
	case value.KindList:
		items, _ := v.AsList()
		if len(items) == 0 {
			return 0, fmt.Errorf("cannot infer type of empty list")
		}
		first, err := InferType(items[0])
		if err != nil {
			return 0, err
		}
		for _, it := range items[1:] {
			t, err := InferType(it)
			if err != nil {
				return 0, err
			}
			if t != first {
				return 0, fmt.Errorf("list contains elements of different types")
			}
		}
		listType, ok := first.AsList()
		if !ok {
			return 0, fmt.Errorf("unexpected type: %v", first)
		}
		return listType, nil
	default:
		return 0, fmt.Errorf("unexpected type: %v", v.Kind())
	}
}
