// Copyright 2026, the declstack authors. All rights reserved.

// Package ast defines the expression sum type parsed from template YAML:
// literals, interpolated strings, symbols, lists/objects, and the builtin
// `fn::*` function nodes (§3, §4.2 of the specification).
package ast

import (
	"fmt"
	"strings"

	"github.com/declstack/declstack/pkg/interp"
	"github.com/declstack/declstack/pkg/source"
	"github.com/declstack/declstack/pkg/synyaml"
)

// Expr is any node in the expression AST.
type Expr interface {
	fmt.Stringer
	Span() source.Span
	isExpr()
}

type exprNode struct{ span source.Span }

func (e exprNode) Span() source.Span { return e.span }
func (exprNode) isExpr()             {}

func spanOf(n synyaml.Node) source.Span {
	if n == nil {
		return source.Span{}
	}
	return n.Span()
}

// NullExpr is a null literal.
type NullExpr struct{ exprNode }

func Null(sp source.Span) *NullExpr  { return &NullExpr{exprNode{sp}} }
func (*NullExpr) String() string     { return "null" }

// BooleanExpr is a boolean literal.
type BooleanExpr struct {
	exprNode
	Value bool
}

func Boolean(sp source.Span, v bool) *BooleanExpr { return &BooleanExpr{exprNode{sp}, v} }
func (e *BooleanExpr) String() string             { return fmt.Sprintf("%v", e.Value) }

// NumberExpr is a number literal (IEEE-754 double).
type NumberExpr struct {
	exprNode
	Value float64
}

func Number(sp source.Span, v float64) *NumberExpr { return &NumberExpr{exprNode{sp}, v} }
func (e *NumberExpr) String() string               { return fmt.Sprintf("%v", e.Value) }

// StringExpr is a string literal. Value is copy-on-write in spirit: it is
// sliced directly from arena text for unquoted scalars and only allocates
// when synyaml has already unescaped it.
type StringExpr struct {
	exprNode
	Value string
}

func String(sp source.Span, v string) *StringExpr { return &StringExpr{exprNode{sp}, v} }
func (e *StringExpr) String() string               { return e.Value }

// GetValue returns the value, or "" if the receiver is nil.
func (e *StringExpr) GetValue() string {
	if e == nil {
		return ""
	}
	return e.Value
}

// Interpolation is one part of an InterpolateExpr: literal prefix text plus
// an optional path access.
type Interpolation struct {
	Text  string
	Value *PropertyAccess
}

// InterpolateExpr is a string containing one or more "${...}" accesses mixed
// with literal text.
type InterpolateExpr struct {
	exprNode
	Parts []Interpolation
}

func (e *InterpolateExpr) String() string {
	var sb strings.Builder
	for _, p := range e.Parts {
		sb.WriteString(strings.ReplaceAll(p.Text, "$", "$$"))
		if p.Value != nil {
			fmt.Fprintf(&sb, "${%v}", p.Value)
		}
	}
	return sb.String()
}

// SymbolExpr is a standalone "${a.b.c}" expression with no surrounding text.
type SymbolExpr struct {
	exprNode
	Property *PropertyAccess
}

func (e *SymbolExpr) String() string { return fmt.Sprintf("${%v}", e.Property) }

// ListExpr is a sequence of expressions.
type ListExpr struct {
	exprNode
	Elements []Expr
}

func (e *ListExpr) String() string {
	parts := make([]string, len(e.Elements))
	for i, el := range e.Elements {
		parts[i] = el.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ObjectProperty is a key/value pair of an ObjectExpr. Key must evaluate to a
// string.
type ObjectProperty struct {
	Span  source.Span
	Key   Expr
	Value Expr
}

// ObjectExpr is a mapping of string keys to expressions.
type ObjectExpr struct {
	exprNode
	Entries []ObjectProperty
}

func (e *ObjectExpr) String() string {
	parts := make([]string, len(e.Entries))
	for i, kv := range e.Entries {
		parts[i] = kv.Key.String() + ": " + kv.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Get returns the first entry's value with the given literal string key, or
// nil.
func (e *ObjectExpr) Get(key string) Expr {
	for _, kv := range e.Entries {
		if s, ok := kv.Key.(*StringExpr); ok && s.Value == key {
			return kv.Value
		}
	}
	return nil
}

// BuiltinExpr is any `fn::*` call node.
type BuiltinExpr interface {
	Expr
	FnName() string
	isBuiltin()
}

type builtinNode struct {
	exprNode
	name string
}

func (b builtinNode) FnName() string { return b.name }
func (builtinNode) isBuiltin()       {}

func builtin(sp source.Span, name string) builtinNode {
	return builtinNode{exprNode{sp}, name}
}

// InvokeOptions mirrors the `options:` block of an fn::invoke call.
type InvokeOptions struct {
	Provider     Expr
	Parent       Expr
	Version      Expr
	PluginDLURL  Expr
	DependsOn    []Expr
}

// InvokeExpr calls a provider function by type token.
type InvokeExpr struct {
	builtinNode
	Token     *StringExpr
	CallArgs  *ObjectExpr
	CallOpts  InvokeOptions
	Return    *StringExpr
}

func (e *InvokeExpr) String() string { return fmt.Sprintf("fn::invoke(%s)", e.Token) }

// ToJSONExpr serializes its argument to a JSON string.
type ToJSONExpr struct {
	builtinNode
	Value Expr
}

func (e *ToJSONExpr) String() string { return fmt.Sprintf("fn::toJSON(%v)", e.Value) }

// JoinExpr concatenates a list of strings with a delimiter.
type JoinExpr struct {
	builtinNode
	Delimiter Expr
	Values    Expr
}

func (e *JoinExpr) String() string { return fmt.Sprintf("fn::join(%v, %v)", e.Delimiter, e.Values) }

// SplitExpr splits a string by a delimiter into a list.
type SplitExpr struct {
	builtinNode
	Delimiter Expr
	Source    Expr
}

func (e *SplitExpr) String() string { return fmt.Sprintf("fn::split(%v, %v)", e.Delimiter, e.Source) }

// SelectExpr indexes into a list.
type SelectExpr struct {
	builtinNode
	Index  Expr
	Values Expr
}

func (e *SelectExpr) String() string { return fmt.Sprintf("fn::select(%v, %v)", e.Index, e.Values) }

// ToBase64Expr / FromBase64Expr encode / decode base64 strings.
type ToBase64Expr struct {
	builtinNode
	Value Expr
}

func (e *ToBase64Expr) String() string { return fmt.Sprintf("fn::toBase64(%v)", e.Value) }

type FromBase64Expr struct {
	builtinNode
	Value Expr
}

func (e *FromBase64Expr) String() string { return fmt.Sprintf("fn::fromBase64(%v)", e.Value) }

// SecretExpr marks its argument as sensitive.
type SecretExpr struct {
	builtinNode
	Value Expr
}

func (e *SecretExpr) String() string { return fmt.Sprintf("fn::secret(%v)", e.Value) }

// ReadFileExpr reads a file (relative to cwd) as UTF-8 text.
type ReadFileExpr struct {
	builtinNode
	Path Expr
}

func (e *ReadFileExpr) String() string { return fmt.Sprintf("fn::readFile(%v)", e.Path) }

// Numeric/string/time/random builtins supplementing the original Rust core's
// builtin set (see SPEC_FULL.md §4); the real product's YAML dialect doesn't
// carry these, but the spec calls for them and original_source does too.

type AbsExpr struct {
	builtinNode
	Value Expr
}

func (e *AbsExpr) String() string { return fmt.Sprintf("fn::abs(%v)", e.Value) }

type FloorExpr struct {
	builtinNode
	Value Expr
}

func (e *FloorExpr) String() string { return fmt.Sprintf("fn::floor(%v)", e.Value) }

type CeilExpr struct {
	builtinNode
	Value Expr
}

func (e *CeilExpr) String() string { return fmt.Sprintf("fn::ceil(%v)", e.Value) }

type MaxExpr struct {
	builtinNode
	Values Expr
}

func (e *MaxExpr) String() string { return fmt.Sprintf("fn::max(%v)", e.Values) }

type MinExpr struct {
	builtinNode
	Values Expr
}

func (e *MinExpr) String() string { return fmt.Sprintf("fn::min(%v)", e.Values) }

type StringLenExpr struct {
	builtinNode
	Value Expr
}

func (e *StringLenExpr) String() string { return fmt.Sprintf("fn::stringLen(%v)", e.Value) }

type SubstringExpr struct {
	builtinNode
	Source Expr
	Start  Expr
	Length Expr
}

func (e *SubstringExpr) String() string {
	return fmt.Sprintf("fn::substring(%v, %v, %v)", e.Source, e.Start, e.Length)
}

type TimeUTCExpr struct{ builtinNode }

func (e *TimeUTCExpr) String() string { return "fn::timeUtc()" }

type TimeUnixExpr struct{ builtinNode }

func (e *TimeUnixExpr) String() string { return "fn::timeUnix()" }

type UUIDExpr struct{ builtinNode }

func (e *UUIDExpr) String() string { return "fn::uuid()" }

type RandomStringExpr struct {
	builtinNode
	Length Expr
}

func (e *RandomStringExpr) String() string { return fmt.Sprintf("fn::randomString(%v)", e.Length) }

type DateFormatExpr struct {
	builtinNode
	Value  Expr
	Layout Expr
}

func (e *DateFormatExpr) String() string {
	return fmt.Sprintf("fn::dateFormat(%v, %v)", e.Value, e.Layout)
}

// AssetOrArchiveExpr is implemented by every asset/archive literal builtin.
type AssetOrArchiveExpr interface {
	Expr
	isAssetOrArchive()
}

type StringAssetExpr struct {
	builtinNode
	Source Expr
}

func (*StringAssetExpr) isAssetOrArchive() {}
func (e *StringAssetExpr) String() string  { return fmt.Sprintf("fn::stringAsset(%v)", e.Source) }

type FileAssetExpr struct {
	builtinNode
	Source Expr
}

func (*FileAssetExpr) isAssetOrArchive() {}
func (e *FileAssetExpr) String() string  { return fmt.Sprintf("fn::fileAsset(%v)", e.Source) }

type RemoteAssetExpr struct {
	builtinNode
	Source Expr
}

func (*RemoteAssetExpr) isAssetOrArchive() {}
func (e *RemoteAssetExpr) String() string  { return fmt.Sprintf("fn::remoteAsset(%v)", e.Source) }

type FileArchiveExpr struct {
	builtinNode
	Source Expr
}

func (*FileArchiveExpr) isAssetOrArchive() {}
func (e *FileArchiveExpr) String() string  { return fmt.Sprintf("fn::fileArchive(%v)", e.Source) }

type RemoteArchiveExpr struct {
	builtinNode
	Source Expr
}

func (*RemoteArchiveExpr) isAssetOrArchive() {}
func (e *RemoteArchiveExpr) String() string  { return fmt.Sprintf("fn::remoteArchive(%v)", e.Source) }

type AssetArchiveExpr struct {
	builtinNode
	Entries    map[string]Expr
	EntryOrder []string // declaration order, parallel to Entries' key set
}

func (*AssetArchiveExpr) isAssetOrArchive() {}
func (e *AssetArchiveExpr) String() string  { return "fn::assetArchive(...)" }

// UnknownFnExpr is the lowering of an unrecognized `fn::X` node: a warning is
// emitted by the parser and evaluation treats this as Unknown (§4.2).
type UnknownFnExpr struct {
	builtinNode
}

func (e *UnknownFnExpr) String() string { return fmt.Sprintf("fn::%s(?)", e.name) }
