// Copyright 2026, the declstack authors. All rights reserved.

// Package value implements the runtime value model produced by evaluation
// (§3, §4.7): a small JSON-like algebra extended with the taint markers
// (secret, unknown) and resource-reference/asset/archive variants the
// template language needs to describe infrastructure outputs.
package value

import "fmt"

// Kind discriminates a Value's underlying representation.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindObject
	KindSecret
	KindUnknown
	KindResourceRef
	KindAsset
	KindArchive
)

// ResourceRef is a reference to a registered resource's identity, used as the
// value of `${res}` before any specific output is projected onto it.
type ResourceRef struct {
	URN string
	ID  string
}

// Asset is a blob of text/bytes sourced from a literal, a file, or a URL.
type Asset struct {
	Text string
	Path string
	URI  string
}

// Archive is a collection of named assets/archives, or a single file/URL
// archive.
type Archive struct {
	Path string
	URI  string

	Assets     map[string]Value
	AssetOrder []string // insertion order, parallel to Assets' key set
}

// Value is the result of evaluating an expression. The zero Value is null.
//
// Secrets never nest: wrapping a Value that is already (or contains, for
// List/Object) a secret collapses to a single outer secret, per the
// "secrets never nest" invariant.
type Value struct {
	kind    Kind
	boolean bool
	number  float64
	str     string
	list    []Value
	object  map[string]Value
	keys    []string // object insertion order, parallel to object's key set
	inner   *Value   // for KindSecret
	ref     *ResourceRef
	asset   *Asset
	archive *Archive

	// Dependencies is the set of resource URNs this value was computed
	// from, used to build `dependsOn` closures for resources built from
	// interpolated properties.
	Dependencies []string
}

func Null() Value { return Value{kind: KindNull} }

func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

func Number(n float64) Value { return Value{kind: KindNumber, number: n} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Object builds an object value, preserving the given key order.
func Object(keys []string, fields map[string]Value) Value {
	return Value{kind: KindObject, keys: append([]string(nil), keys...), object: fields}
}

// Unknown is the value of an expression that cannot be computed at
// preview/plan time (an unresolved resource output during a dry run).
func Unknown() Value { return Value{kind: KindUnknown} }

// Resource wraps a resource reference.
func Resource(ref ResourceRef) Value { return Value{kind: KindResourceRef, ref: &ref} }

func AssetValue(a Asset) Value     { return Value{kind: KindAsset, asset: &a} }
func ArchiveValue(a Archive) Value { return Value{kind: KindArchive, archive: &a} }

// Secret marks v as sensitive. Secrets never nest: if v is already secret,
// Secret(v) returns v unchanged rather than double-wrapping.
func Secret(v Value) Value {
	if v.kind == KindSecret {
		return v
	}
	inner := v
	return Value{kind: KindSecret, inner: &inner}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) IsSecret() bool    { return v.kind == KindSecret }
func (v Value) IsUnknown() bool   { return v.kind == KindUnknown }
func (v Value) IsResource() bool  { return v.kind == KindResourceRef }

// ContainsSecret reports whether v or any value nested inside it (through
// lists/objects) is secret. Taint propagation rules (§4.6.8) use this to
// decide whether a composite built from v must itself become secret.
func (v Value) ContainsSecret() bool {
	switch v.kind {
	case KindSecret:
		return true
	case KindList:
		for _, e := range v.list {
			if e.ContainsSecret() {
				return true
			}
		}
	case KindObject:
		for _, e := range v.object {
			if e.ContainsSecret() {
				return true
			}
		}
	}
	return false
}

// ContainsUnknown reports whether v or anything nested inside it is unknown.
func (v Value) ContainsUnknown() bool {
	switch v.kind {
	case KindUnknown:
		return true
	case KindSecret:
		return v.inner.ContainsUnknown()
	case KindList:
		for _, e := range v.list {
			if e.ContainsUnknown() {
				return true
			}
		}
	case KindObject:
		for _, e := range v.object {
			if e.ContainsUnknown() {
				return true
			}
		}
	}
	return false
}

// Unwrap returns the value underneath a secret wrapper, or v itself if v is
// not secret. Callers that unwrap to inspect a value must re-wrap the result
// in Secret before it can escape into a resource property or output (the
// "unwrap-rewrap" rule).
func (v Value) Unwrap() Value {
	if v.kind == KindSecret {
		return *v.inner
	}
	return v
}

func (v Value) AsBool() (bool, bool)       { return v.boolean, v.kind == KindBool }
func (v Value) AsNumber() (float64, bool)  { return v.number, v.kind == KindNumber }
func (v Value) AsString() (string, bool)   { return v.str, v.kind == KindString }
func (v Value) AsList() ([]Value, bool)    { return v.list, v.kind == KindList }
func (v Value) AsResource() (ResourceRef, bool) {
	if v.kind != KindResourceRef {
		return ResourceRef{}, false
	}
	return *v.ref, true
}
func (v Value) AsAsset() (Asset, bool) {
	if v.kind != KindAsset {
		return Asset{}, false
	}
	return *v.asset, true
}
func (v Value) AsArchive() (Archive, bool) {
	if v.kind != KindArchive {
		return Archive{}, false
	}
	return *v.archive, true
}

// ObjectKeys returns the object's keys in insertion order, or nil if v is
// not an object.
func (v Value) ObjectKeys() []string {
	if v.kind != KindObject {
		return nil
	}
	return v.keys
}

// Field looks up a key in an object value.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	f, ok := v.object[key]
	return f, ok
}

// WithDependencies returns a copy of v tagged with the union of its existing
// dependency set and deps.
func (v Value) WithDependencies(deps ...string) Value {
	if len(deps) == 0 {
		return v
	}
	seen := make(map[string]bool, len(v.Dependencies)+len(deps))
	out := append([]string(nil), v.Dependencies...)
	for _, d := range out {
		seen[d] = true
	}
	for _, d := range deps {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	v.Dependencies = out
	return v
}

// String implements fmt.Stringer. Secret values never reveal their contents,
// satisfying the "secret never printed" invariant even under %v/%+v.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%v", v.boolean)
	case KindNumber:
		return fmt.Sprintf("%v", v.number)
	case KindString:
		return v.str
	case KindList:
		return fmt.Sprintf("%v", v.list)
	case KindObject:
		return fmt.Sprintf("%v", v.object)
	case KindSecret:
		return "[secret]"
	case KindUnknown:
		return "[unknown]"
	case KindResourceRef:
		return fmt.Sprintf("resource(%s)", v.ref.URN)
	case KindAsset:
		return "[asset]"
	case KindArchive:
		return "[archive]"
	default:
		return "<invalid value>"
	}
}

// GoString implements fmt.GoStringer so that %#v also redacts secrets.
func (v Value) GoString() string { return v.String() }
