// Copyright 2026, the declstack authors. All rights reserved.

package ast

import (
	"fmt"
	"strings"

	"github.com/declstack/declstack/pkg/diag"
	"github.com/declstack/declstack/pkg/interp"
	"github.com/declstack/declstack/pkg/source"
	"github.com/declstack/declstack/pkg/synyaml"
)

// ParseExpr parses an expression from a synyaml node (§4.2). Scalars become
// literals or interpolate/symbol nodes; sequences become ListExpr; mappings
// either become ObjectExpr or, when their sole key names a known `fn::*`
// builtin, the corresponding BuiltinExpr.
func ParseExpr(n synyaml.Node) (Expr, *diag.Bag) {
	bag := &diag.Bag{}
	e := parseExpr(n, bag)
	return e, bag
}

func parseExpr(n synyaml.Node, bag *diag.Bag) Expr {
	switch n := n.(type) {
	case *synyaml.NullNode:
		return Null(n.Span())
	case *synyaml.BooleanNode:
		return &BooleanExpr{exprNode{n.Span()}, n.Val}
	case *synyaml.NumberNode:
		return &NumberExpr{exprNode{n.Span()}, n.Val}
	case *synyaml.StringNode:
		return parseStringExpr(n, bag)
	case *synyaml.ListNode:
		elems := make([]Expr, n.Len())
		for i := 0; i < n.Len(); i++ {
			elems[i] = parseExpr(n.Index(i), bag)
		}
		return &ListExpr{exprNode{n.Span()}, elems}
	case *synyaml.ObjectNode:
		return parseObjectOrBuiltin(n, bag)
	default:
		bag.Append(diag.At(diag.Error, n.Span(), fmt.Sprintf("unexpected syntax node of type %T", n), ""))
		return Null(n.Span())
	}
}

func parseStringExpr(n *synyaml.StringNode, bag *diag.Bag) Expr {
	if !interp.HasInterpolations(n.Val) {
		return String(n.Span(), n.Val)
	}
	parts, err := interp.ParseInterpolation(n.Val)
	if err != nil {
		bag.Append(diag.At(diag.Error, n.Span(), "invalid interpolation", err.Error()))
		return String(n.Span(), n.Val)
	}
	switch len(parts) {
	case 0:
		return String(n.Span(), "")
	case 1:
		if parts[0].Path == nil {
			return String(n.Span(), parts[0].Text)
		}
		if parts[0].Text == "" {
			return &SymbolExpr{exprNode{n.Span()}, parts[0].Path}
		}
	}
	astParts := make([]Interpolation, len(parts))
	for i, p := range parts {
		astParts[i] = Interpolation{Text: p.Text, Value: p.Path}
	}
	return &InterpolateExpr{exprNode{n.Span()}, astParts}
}

// assetOrArchiveCtors maps the lowercased fn name to a constructor; these
// builtins are parsed specially because they appear as a lone key of a
// surrounding object property rather than as a standalone mapping (they
// carry no argument list of their own, just the single value).
var assetOrArchiveCtors = map[string]func(sp source.Span, args Expr) Expr{
	"fn::stringasset":  func(sp source.Span, args Expr) Expr { return &StringAssetExpr{builtin(sp, "fn::stringAsset"), args} },
	"fn::fileasset":    func(sp source.Span, args Expr) Expr { return &FileAssetExpr{builtin(sp, "fn::fileAsset"), args} },
	"fn::remoteasset":  func(sp source.Span, args Expr) Expr { return &RemoteAssetExpr{builtin(sp, "fn::remoteAsset"), args} },
	"fn::filearchive":  func(sp source.Span, args Expr) Expr { return &FileArchiveExpr{builtin(sp, "fn::fileArchive"), args} },
	"fn::remotearchive": func(sp source.Span, args Expr) Expr {
		return &RemoteArchiveExpr{builtin(sp, "fn::remoteArchive"), args}
	},
}

func parseObjectOrBuiltin(n *synyaml.ObjectNode, bag *diag.Bag) Expr {
	if n.Len() == 1 {
		kvp := n.Index(0)
		lower := strings.ToLower(kvp.Key.Val)
		if ctor, ok := assetOrArchiveCtors[lower]; ok {
			args := parseExpr(kvp.Value, bag)
			return ctor(kvp.Key.Span(), args)
		}
		if expr, ok := tryParseFnBuiltin(n, kvp, lower, bag); ok {
			return expr
		}
	}

	entries := make([]ObjectProperty, n.Len())
	for i := 0; i < n.Len(); i++ {
		kvp := n.Index(i)
		k := String(kvp.Key.Span(), kvp.Key.Val)
		v := parseExpr(kvp.Value, bag)
		entries[i] = ObjectProperty{Span: kvp.Span, Key: k, Value: v}
	}
	return &ObjectExpr{exprNode{n.Span()}, entries}
}

func twoArgList(fnName string, args synyaml.Node, bag *diag.Bag) (Expr, Expr, bool) {
	list, ok := parseExpr(args, bag).(*ListExpr)
	if !ok || len(list.Elements) != 2 {
		bag.Append(diag.At(diag.Error, args.Span(), fmt.Sprintf("the argument to %s must be a two-valued list", fnName), ""))
		return nil, nil, false
	}
	return list.Elements[0], list.Elements[1], true
}

func tryParseFnBuiltin(n *synyaml.ObjectNode, kvp synyaml.ObjectProperty, lower string, bag *diag.Bag) (Expr, bool) {
	if !strings.HasPrefix(lower, "fn::") {
		return nil, false
	}
	sp := n.Span()

	warnCase := func(expected string) {
		if expected != kvp.Key.Val {
			bag.Append(diag.At(diag.Warning, kvp.Key.Span(),
				fmt.Sprintf("'%s' looks like a miscapitalization of '%s'", kvp.Key.Val, expected), ""))
		}
	}

	switch lower {
	case "fn::invoke":
		warnCase("fn::invoke")
		return parseInvoke(sp, kvp.Value, bag), true
	case "fn::join":
		warnCase("fn::join")
		a, b, ok := twoArgList("fn::join", kvp.Value, bag)
		if !ok {
			return Null(sp), true
		}
		return &JoinExpr{builtin(sp, "fn::join"), a, b}, true
	case "fn::split":
		warnCase("fn::split")
		a, b, ok := twoArgList("fn::split", kvp.Value, bag)
		if !ok {
			return Null(sp), true
		}
		return &SplitExpr{builtin(sp, "fn::split"), a, b}, true
	case "fn::select":
		warnCase("fn::select")
		a, b, ok := twoArgList("fn::select", kvp.Value, bag)
		if !ok {
			return Null(sp), true
		}
		return &SelectExpr{builtin(sp, "fn::select"), a, b}, true
	case "fn::tojson":
		warnCase("fn::toJSON")
		return &ToJSONExpr{builtin(sp, "fn::toJSON"), parseExpr(kvp.Value, bag)}, true
	case "fn::tobase64":
		warnCase("fn::toBase64")
		return &ToBase64Expr{builtin(sp, "fn::toBase64"), parseExpr(kvp.Value, bag)}, true
	case "fn::frombase64":
		warnCase("fn::fromBase64")
		return &FromBase64Expr{builtin(sp, "fn::fromBase64"), parseExpr(kvp.Value, bag)}, true
	case "fn::secret":
		warnCase("fn::secret")
		return &SecretExpr{builtin(sp, "fn::secret"), parseExpr(kvp.Value, bag)}, true
	case "fn::readfile":
		warnCase("fn::readFile")
		return &ReadFileExpr{builtin(sp, "fn::readFile"), parseExpr(kvp.Value, bag)}, true
	case "fn::abs":
		return &AbsExpr{builtin(sp, "fn::abs"), parseExpr(kvp.Value, bag)}, true
	case "fn::floor":
		return &FloorExpr{builtin(sp, "fn::floor"), parseExpr(kvp.Value, bag)}, true
	case "fn::ceil":
		return &CeilExpr{builtin(sp, "fn::ceil"), parseExpr(kvp.Value, bag)}, true
	case "fn::max":
		return &MaxExpr{builtin(sp, "fn::max"), parseExpr(kvp.Value, bag)}, true
	case "fn::min":
		return &MinExpr{builtin(sp, "fn::min"), parseExpr(kvp.Value, bag)}, true
	case "fn::stringlen":
		warnCase("fn::stringLen")
		return &StringLenExpr{builtin(sp, "fn::stringLen"), parseExpr(kvp.Value, bag)}, true
	case "fn::substring":
		warnCase("fn::substring")
		list, ok := parseExpr(kvp.Value, bag).(*ListExpr)
		if !ok || len(list.Elements) != 3 {
			bag.Append(diag.At(diag.Error, kvp.Value.Span(), "the argument to fn::substring must be a three-valued list", ""))
			return Null(sp), true
		}
		return &SubstringExpr{builtin(sp, "fn::substring"), list.Elements[0], list.Elements[1], list.Elements[2]}, true
	case "fn::timeutc":
		warnCase("fn::timeUtc")
		return &TimeUTCExpr{builtin(sp, "fn::timeUtc")}, true
	case "fn::timeunix":
		warnCase("fn::timeUnix")
		return &TimeUnixExpr{builtin(sp, "fn::timeUnix")}, true
	case "fn::uuid":
		return &UUIDExpr{builtin(sp, "fn::uuid")}, true
	case "fn::randomstring":
		warnCase("fn::randomString")
		return &RandomStringExpr{builtin(sp, "fn::randomString"), parseExpr(kvp.Value, bag)}, true
	case "fn::dateformat":
		warnCase("fn::dateFormat")
		a, b, ok := twoArgList("fn::dateFormat", kvp.Value, bag)
		if !ok {
			return Null(sp), true
		}
		return &DateFormatExpr{builtin(sp, "fn::dateFormat"), a, b}, true
	case "fn::assetarchive":
		warnCase("fn::assetArchive")
		return parseAssetArchive(sp, kvp.Value, bag), true
	default:
		bag.Append(diag.At(diag.Warning, kvp.Key.Span(),
			fmt.Sprintf("unknown builtin function '%s'", kvp.Key.Val),
			"lowering to an unknown-function marker; this template cannot be fully evaluated"))
		return &UnknownFnExpr{builtin(sp, kvp.Key.Val)}, true
	}
}

func parseInvoke(sp source.Span, args synyaml.Node, bag *diag.Bag) Expr {
	obj, ok := parseExpr(args, bag).(*ObjectExpr)
	if !ok {
		bag.Append(diag.At(diag.Error, args.Span(), "the argument to fn::invoke must be an object with 'function', 'arguments', 'options', 'return'", ""))
		return Null(sp)
	}

	var fn *StringExpr
	var callArgs *ObjectExpr
	var ret *StringExpr
	var opts InvokeOptions

	for _, e := range obj.Entries {
		key, ok := e.Key.(*StringExpr)
		if !ok {
			continue
		}
		switch strings.ToLower(key.Value) {
		case "function":
			fn, _ = e.Value.(*StringExpr)
		case "arguments":
			callArgs, _ = e.Value.(*ObjectExpr)
		case "return":
			ret, _ = e.Value.(*StringExpr)
		case "options":
			if optsObj, ok := e.Value.(*ObjectExpr); ok {
				opts = parseInvokeOptions(optsObj)
			}
		}
	}

	if fn == nil {
		bag.Append(diag.At(diag.Error, args.Span(), "missing function name ('function')", ""))
	}

	return &InvokeExpr{builtin(sp, "fn::invoke"), fn, callArgs, opts, ret}
}

func parseInvokeOptions(obj *ObjectExpr) InvokeOptions {
	var opts InvokeOptions
	for _, e := range obj.Entries {
		key, ok := e.Key.(*StringExpr)
		if !ok {
			continue
		}
		switch strings.ToLower(key.Value) {
		case "provider":
			opts.Provider = e.Value
		case "parent":
			opts.Parent = e.Value
		case "version":
			opts.Version = e.Value
		case "plugindownloadurl":
			opts.PluginDLURL = e.Value
		case "dependson":
			if list, ok := e.Value.(*ListExpr); ok {
				opts.DependsOn = list.Elements
			}
		}
	}
	return opts
}

func parseAssetArchive(sp source.Span, args synyaml.Node, bag *diag.Bag) Expr {
	obj, ok := parseExpr(args, bag).(*ObjectExpr)
	if !ok {
		bag.Append(diag.At(diag.Error, args.Span(), "the argument to fn::assetArchive must be an object", ""))
		return Null(sp)
	}
	entries := map[string]Expr{}
	var order []string
	for _, e := range obj.Entries {
		key, ok := e.Key.(*StringExpr)
		if !ok {
			bag.Append(diag.At(diag.Error, e.Key.Span(), "keys in fn::assetArchive must be string literals", ""))
			continue
		}
		aa, ok := e.Value.(AssetOrArchiveExpr)
		if !ok {
			bag.Append(diag.At(diag.Error, e.Value.Span(), fmt.Sprintf("value of '%s' must be an asset or archive", key.Value), ""))
			continue
		}
		if _, exists := entries[key.Value]; !exists {
			order = append(order, key.Value)
		}
		entries[key.Value] = aa
	}
	return &AssetArchiveExpr{builtin(sp, "fn::assetArchive"), entries, order}
}
