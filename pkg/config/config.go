// Copyright 2026, the declstack authors. All rights reserved.

// Package config implements configuration parameter types and the
// wire-string -> typed-Value coercion rules for the `config:` section
// (§3; supplemented from the original Rust core's config_types.rs, which
// this package's Type enum and Parse grammar are grounded on).
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/declstack/declstack/pkg/value"
)

// Type is a configuration parameter's declared type.
type Type int

const (
	TypeString Type = iota
	TypeNumber
	TypeInt
	TypeBoolean
	TypeObject
	TypeStringList
	TypeNumberList
	TypeIntList
	TypeBooleanList
	TypeObjectList
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "String"
	case TypeNumber:
		return "Number"
	case TypeInt:
		return "Int"
	case TypeBoolean:
		return "Boolean"
	case TypeObject:
		return "Object"
	case TypeStringList:
		return "List<String>"
	case TypeNumberList:
		return "List<Number>"
	case TypeIntList:
		return "List<Int>"
	case TypeBooleanList:
		return "List<Boolean>"
	case TypeObjectList:
		return "List<Object>"
	default:
		return "Unknown"
	}
}

// IsPrimitive reports whether t is a scalar/object type rather than a list.
func (t Type) IsPrimitive() bool { return t <= TypeObject }

// ElementType returns the element type of a list type, and false for
// primitives.
func (t Type) ElementType() (Type, bool) {
	switch t {
	case TypeStringList:
		return TypeString, true
	case TypeNumberList:
		return TypeNumber, true
	case TypeIntList:
		return TypeInt, true
	case TypeBooleanList:
		return TypeBoolean, true
	case TypeObjectList:
		return TypeObject, true
	default:
		return 0, false
	}
}

// AsList returns the list type over a primitive type.
func (t Type) AsList() (Type, bool) {
	switch t {
	case TypeString:
		return TypeStringList, true
	case TypeNumber:
		return TypeNumberList, true
	case TypeInt:
		return TypeIntList, true
	case TypeBoolean:
		return TypeBooleanList, true
	case TypeObject:
		return TypeObjectList, true
	default:
		return 0, false
	}
}

// ParseType parses a config type string like "string", "Int", "List<Boolean>"
// case-insensitively. The zero Type and false are returned for unrecognized
// input.
func ParseType(s string) (Type, bool) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "list<") && strings.HasSuffix(s, ">") {
		inner := strings.ToLower(strings.TrimSpace(s[len("list<") : len(s)-1]))
		switch inner {
		case "string":
			return TypeStringList, true
		case "number":
			return TypeNumberList, true
		case "int", "integer":
			return TypeIntList, true
		case "boolean", "bool":
			return TypeBooleanList, true
		case "object":
			return TypeObjectList, true
		default:
			return 0, false
		}
	}
	switch lower {
	case "string":
		return TypeString, true
	case "number":
		return TypeNumber, true
	case "int", "integer":
		return TypeInt, true
	case "boolean", "bool":
		return TypeBoolean, true
	case "object":
		return TypeObject, true
	default:
		return 0, false
	}
}

// Coerce converts a raw wire string into a Value of type t. Config always
// arrives at the process boundary as a string (§3); this performs the
// type-directed parse. List and Object types expect raw to be a JSON array/
// object literal. On failure it returns an error describing the mismatch;
// callers typically downgrade this to a warning and fall back to a plain
// string value (the "loose typing" rule), per SPEC_FULL.md's config coercion
// section.
func Coerce(t Type, raw string) (value.Value, error) {
	switch t {
	case TypeString:
		return value.String(raw), nil
	case TypeNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return value.Value{}, fmt.Errorf("expected a number, got %q", raw)
		}
		return value.Number(n), nil
	case TypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return value.Value{}, fmt.Errorf("expected an integer, got %q", raw)
		}
		return value.Number(float64(n)), nil
	case TypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return value.Value{}, fmt.Errorf("expected a boolean, got %q", raw)
		}
		return value.Bool(b), nil
	case TypeObject:
		return parseJSONObject(raw)
	case TypeStringList, TypeNumberList, TypeIntList, TypeBooleanList, TypeObjectList:
		elemType, _ := t.ElementType()
		return parseJSONList(elemType, raw)
	default:
		return value.Value{}, fmt.Errorf("unknown config type")
	}
}
