// Copyright 2026, the declstack authors. All rights reserved.

package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/declstack/declstack/pkg/ast"
	"github.com/declstack/declstack/pkg/value"
)

// maxRandomStringLength bounds fn::randomString's requested length so an
// evaluated template cannot force an unbounded allocation.
const maxRandomStringLength = 1 << 16

func (ev *Evaluator) evalBuiltin(ctx context.Context, e ast.BuiltinExpr) (value.Value, error) {
	switch e := e.(type) {
	case *ast.InvokeExpr:
		return ev.evalInvoke(ctx, e)
	case *ast.ToJSONExpr:
		return ev.evalToJSON(ctx, e)
	case *ast.JoinExpr:
		return ev.evalJoin(ctx, e)
	case *ast.SplitExpr:
		return ev.evalSplit(ctx, e)
	case *ast.SelectExpr:
		return ev.evalSelect(ctx, e)
	case *ast.ToBase64Expr:
		return ev.evalUnaryString(ctx, e.Value, base64Encode)
	case *ast.FromBase64Expr:
		return ev.evalUnaryStringErr(ctx, e.Value, base64Decode)
	case *ast.SecretExpr:
		v, err := ev.Eval(ctx, e.Value)
		if err != nil {
			return value.Null(), err
		}
		return value.Secret(v), nil
	case *ast.ReadFileExpr:
		return ev.evalReadFile(ctx, e)
	case *ast.AbsExpr:
		return ev.evalUnaryNumber(ctx, e.Value, math.Abs)
	case *ast.FloorExpr:
		return ev.evalUnaryNumber(ctx, e.Value, math.Floor)
	case *ast.CeilExpr:
		return ev.evalUnaryNumber(ctx, e.Value, math.Ceil)
	case *ast.MaxExpr:
		return ev.evalAggregate(ctx, e.Values, math.Inf(-1), math.Max)
	case *ast.MinExpr:
		return ev.evalAggregate(ctx, e.Values, math.Inf(1), math.Min)
	case *ast.StringLenExpr:
		return ev.evalStringLen(ctx, e)
	case *ast.SubstringExpr:
		return ev.evalSubstring(ctx, e)
	case *ast.TimeUTCExpr:
		return value.String(time.Now().UTC().Format(time.RFC3339)), nil
	case *ast.TimeUnixExpr:
		return value.Number(float64(time.Now().Unix())), nil
	case *ast.UUIDExpr:
		return value.String(uuid.NewString()), nil
	case *ast.RandomStringExpr:
		return ev.evalRandomString(ctx, e)
	case *ast.DateFormatExpr:
		return ev.evalDateFormat(ctx, e)
	case *ast.StringAssetExpr:
		return ev.evalStringAsset(ctx, e)
	case *ast.FileAssetExpr:
		return ev.evalFileAsset(ctx, e)
	case *ast.RemoteAssetExpr:
		return ev.evalRemoteAsset(ctx, e)
	case *ast.FileArchiveExpr:
		return ev.evalFileArchive(ctx, e)
	case *ast.RemoteArchiveExpr:
		return ev.evalRemoteArchive(ctx, e)
	case *ast.AssetArchiveExpr:
		return ev.evalAssetArchive(ctx, e)
	case *ast.UnknownFnExpr:
		return value.Unknown(), nil
	default:
		return value.Null(), fmt.Errorf("unsupported builtin %s", e.FnName())
	}
}

// unwrapTainted evaluates e and, if it is (or contains) unknown, reports that
// the caller should short-circuit to Unknown; otherwise it reports the
// unwrapped value and whether it was secret, so the caller can compute on the
// plain value and re-wrap the result with rewrap.
func (ev *Evaluator) unwrapTainted(ctx context.Context, e ast.Expr) (v value.Value, secret, unknown bool, err error) {
	v, err = ev.Eval(ctx, e)
	if err != nil {
		return value.Null(), false, false, err
	}
	if v.ContainsUnknown() {
		return v, false, true, nil
	}
	secret = v.IsSecret()
	return v.Unwrap(), secret, false, nil
}

func rewrap(v value.Value, secret bool, deps []string) value.Value {
	v = v.WithDependencies(deps...)
	if secret {
		v = value.Secret(v)
	}
	return v
}

func (ev *Evaluator) evalUnaryNumber(ctx context.Context, e ast.Expr, fn func(float64) float64) (value.Value, error) {
	v, secret, unknown, err := ev.unwrapTainted(ctx, e)
	if err != nil {
		return value.Null(), err
	}
	if unknown {
		return value.Unknown(), nil
	}
	n, ok := v.AsNumber()
	if !ok {
		return ev.typeMismatch(e.Span(), fmt.Sprintf("expected a number, got %s", kindName(v.Kind())), ""), nil
	}
	return rewrap(value.Number(fn(n)), secret, v.Dependencies), nil
}

func (ev *Evaluator) evalUnaryString(ctx context.Context, e ast.Expr, fn func(string) string) (value.Value, error) {
	v, secret, unknown, err := ev.unwrapTainted(ctx, e)
	if err != nil {
		return value.Null(), err
	}
	if unknown {
		return value.Unknown(), nil
	}
	s, ok := v.AsString()
	if !ok {
		return ev.typeMismatch(e.Span(), fmt.Sprintf("expected a string, got %s", kindName(v.Kind())), ""), nil
	}
	return rewrap(value.String(fn(s)), secret, v.Dependencies), nil
}

func (ev *Evaluator) evalUnaryStringErr(ctx context.Context, e ast.Expr, fn func(string) (string, error)) (value.Value, error) {
	v, secret, unknown, err := ev.unwrapTainted(ctx, e)
	if err != nil {
		return value.Null(), err
	}
	if unknown {
		return value.Unknown(), nil
	}
	s, ok := v.AsString()
	if !ok {
		return ev.typeMismatch(e.Span(), fmt.Sprintf("expected a string, got %s", kindName(v.Kind())), ""), nil
	}
	out, fnErr := fn(s)
	if fnErr != nil {
		return ev.typeMismatch(e.Span(), fnErr.Error(), ""), nil
	}
	return rewrap(value.String(out), secret, v.Dependencies), nil
}

// requireIndex validates a number intended for use as a list/string index:
// it must be finite and an exact integer (§4.6.6's rejection of NaN,
// infinity, and non-integer indices for fn::select/fn::substring).
func requireIndex(v value.Value) (int, error) {
	n, ok := v.AsNumber()
	if !ok {
		return 0, fmt.Errorf("expected an integer index, got %s", v)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("index must be a finite number, got %v", n)
	}
	if n != math.Trunc(n) {
		return 0, fmt.Errorf("index must be an integer, got %v", n)
	}
	return int(n), nil
}

func (ev *Evaluator) evalAggregate(ctx context.Context, e ast.Expr, seed float64, fold func(a, b float64) float64) (value.Value, error) {
	v, secret, unknown, err := ev.unwrapTainted(ctx, e)
	if err != nil {
		return value.Null(), err
	}
	if unknown {
		return value.Unknown(), nil
	}
	items, ok := v.AsList()
	if !ok {
		return ev.typeMismatch(e.Span(), fmt.Sprintf("expected a list, got %s", kindName(v.Kind())), ""), nil
	}
	if len(items) == 0 {
		return ev.typeMismatch(e.Span(), "cannot aggregate an empty list", ""), nil
	}
	acc := seed
	anySecret := secret
	anyUnknown := false
	for _, it := range items {
		if it.ContainsUnknown() {
			anyUnknown = true
			continue
		}
		if it.IsSecret() {
			anySecret = true
		}
		n, ok := it.Unwrap().AsNumber()
		if !ok {
			return ev.typeMismatch(e.Span(), fmt.Sprintf("expected a number element, got %s", kindName(it.Kind())), ""), nil
		}
		acc = fold(acc, n)
	}
	if anyUnknown {
		return value.Unknown(), nil
	}
	return rewrap(value.Number(acc), anySecret, v.Dependencies), nil
}

func (ev *Evaluator) evalStringLen(ctx context.Context, e *ast.StringLenExpr) (value.Value, error) {
	v, secret, unknown, err := ev.unwrapTainted(ctx, e.Value)
	if err != nil {
		return value.Null(), err
	}
	if unknown {
		return value.Unknown(), nil
	}
	s, ok := v.AsString()
	if !ok {
		return ev.typeMismatch(e.Value.Span(), fmt.Sprintf("expected a string, got %s", kindName(v.Kind())), ""), nil
	}
	return rewrap(value.Number(float64(len([]rune(s)))), secret, v.Dependencies), nil
}

func (ev *Evaluator) evalSubstring(ctx context.Context, e *ast.SubstringExpr) (value.Value, error) {
	src, srcSecret, srcUnknown, err := ev.unwrapTainted(ctx, e.Source)
	if err != nil {
		return value.Null(), err
	}
	start, startSecret, startUnknown, err := ev.unwrapTainted(ctx, e.Start)
	if err != nil {
		return value.Null(), err
	}
	length, lenSecret, lenUnknown, err := ev.unwrapTainted(ctx, e.Length)
	if err != nil {
		return value.Null(), err
	}
	if srcUnknown || startUnknown || lenUnknown {
		return value.Unknown(), nil
	}

	s, ok := src.AsString()
	if !ok {
		return ev.typeMismatch(e.Source.Span(), fmt.Sprintf("expected a string, got %s", kindName(src.Kind())), ""), nil
	}
	startIdx, idxErr := requireIndex(start)
	if idxErr != nil {
		return ev.typeMismatch(e.Start.Span(), fmt.Sprintf("substring start: %s", idxErr.Error()), ""), nil
	}
	n, idxErr := requireIndex(length)
	if idxErr != nil {
		return ev.typeMismatch(e.Length.Span(), fmt.Sprintf("substring length: %s", idxErr.Error()), ""), nil
	}

	runes := []rune(s)
	if startIdx < 0 || startIdx > len(runes) {
		return ev.typeMismatch(e.Start.Span(), fmt.Sprintf("substring start %d out of range (length %d)", startIdx, len(runes)), ""), nil
	}
	end := startIdx + n
	if n < 0 || end > len(runes) {
		return ev.typeMismatch(e.Length.Span(), fmt.Sprintf("substring length %d out of range at start %d (length %d)", n, startIdx, len(runes)), ""), nil
	}

	secret := srcSecret || startSecret || lenSecret
	return rewrap(value.String(string(runes[startIdx:end])), secret, src.Dependencies), nil
}

func (ev *Evaluator) evalJoin(ctx context.Context, e *ast.JoinExpr) (value.Value, error) {
	delim, delimSecret, delimUnknown, err := ev.unwrapTainted(ctx, e.Delimiter)
	if err != nil {
		return value.Null(), err
	}
	values, valuesSecret, valuesUnknown, err := ev.unwrapTainted(ctx, e.Values)
	if err != nil {
		return value.Null(), err
	}
	if delimUnknown || valuesUnknown {
		return value.Unknown(), nil
	}

	sep, ok := delim.AsString()
	if !ok {
		return ev.typeMismatch(e.Delimiter.Span(), fmt.Sprintf("join delimiter must be a string, got %s", kindName(delim.Kind())), ""), nil
	}
	items, ok := values.AsList()
	if !ok {
		return ev.typeMismatch(e.Values.Span(), fmt.Sprintf("join values must be a list, got %s", kindName(values.Kind())), ""), nil
	}

	parts := make([]string, len(items))
	anySecret := delimSecret || valuesSecret
	for i, it := range items {
		if it.ContainsUnknown() {
			return value.Unknown(), nil
		}
		if it.IsSecret() {
			anySecret = true
		}
		s, ok := it.Unwrap().AsString()
		if !ok {
			return ev.typeMismatch(e.Values.Span(), fmt.Sprintf("join element %d must be a string, got %s", i, kindName(it.Kind())), ""), nil
		}
		parts[i] = s
	}
	return rewrap(value.String(strings.Join(parts, sep)), anySecret, values.Dependencies), nil
}

func (ev *Evaluator) evalSplit(ctx context.Context, e *ast.SplitExpr) (value.Value, error) {
	delim, delimSecret, delimUnknown, err := ev.unwrapTainted(ctx, e.Delimiter)
	if err != nil {
		return value.Null(), err
	}
	src, srcSecret, srcUnknown, err := ev.unwrapTainted(ctx, e.Source)
	if err != nil {
		return value.Null(), err
	}
	if delimUnknown || srcUnknown {
		return value.Unknown(), nil
	}

	sep, ok := delim.AsString()
	if !ok {
		return ev.typeMismatch(e.Delimiter.Span(), fmt.Sprintf("split delimiter must be a string, got %s", kindName(delim.Kind())), ""), nil
	}
	s, ok := src.AsString()
	if !ok {
		return ev.typeMismatch(e.Source.Span(), fmt.Sprintf("split source must be a string, got %s", kindName(src.Kind())), ""), nil
	}

	var parts []string
	if sep == "" {
		// An empty separator splits into individual runes, matching the
		// original core's behavior rather than Go's strings.Split("", "")
		// single-element result.
		for _, r := range s {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(s, sep)
	}

	secret := delimSecret || srcSecret
	items := make([]value.Value, len(parts))
	for i, p := range parts {
		items[i] = value.String(p)
	}
	return rewrap(value.List(items...), secret, src.Dependencies), nil
}

func (ev *Evaluator) evalSelect(ctx context.Context, e *ast.SelectExpr) (value.Value, error) {
	idx, idxSecret, idxUnknown, err := ev.unwrapTainted(ctx, e.Index)
	if err != nil {
		return value.Null(), err
	}
	values, valuesSecret, valuesUnknown, err := ev.unwrapTainted(ctx, e.Values)
	if err != nil {
		return value.Null(), err
	}
	if idxUnknown || valuesUnknown {
		return value.Unknown(), nil
	}

	i, idxErr := requireIndex(idx)
	if idxErr != nil {
		return ev.typeMismatch(e.Index.Span(), fmt.Sprintf("select index: %s", idxErr.Error()), ""), nil
	}
	items, ok := values.AsList()
	if !ok {
		return ev.typeMismatch(e.Values.Span(), fmt.Sprintf("select values must be a list, got %s", kindName(values.Kind())), ""), nil
	}
	if i < 0 || i >= len(items) {
		return ev.typeMismatch(e.Index.Span(), fmt.Sprintf("select index %d out of range (length %d)", i, len(items)), ""), nil
	}

	secret := idxSecret || valuesSecret || items[i].IsSecret()
	return rewrap(items[i].Unwrap(), secret, append(append([]string(nil), values.Dependencies...), items[i].Dependencies...)), nil
}

// evalToJSON serializes its argument to a JSON string. Rather than being a
// de-tainting escape hatch, the result keeps the same taint its input
// carried: a secret value serializes to a secret JSON string, and a value
// containing an unknown serializes to Unknown, consistent with every other
// composite builtin in this file.
func (ev *Evaluator) evalToJSON(ctx context.Context, e *ast.ToJSONExpr) (value.Value, error) {
	v, err := ev.Eval(ctx, e.Value)
	if err != nil {
		return value.Null(), err
	}
	if v.ContainsUnknown() {
		return value.Unknown(), nil
	}
	secret := v.ContainsSecret()

	raw, jsonErr := toJSONInterface(v)
	if jsonErr != nil {
		return ev.typeMismatch(e.Value.Span(), jsonErr.Error(), ""), nil
	}
	encoded, encErr := json.Marshal(raw)
	if encErr != nil {
		return ev.typeMismatch(e.Value.Span(), fmt.Sprintf("fn::toJSON: %s", encErr.Error()), ""), nil
	}
	return rewrap(value.String(string(encoded)), secret, v.Dependencies), nil
}

func toJSONInterface(v value.Value) (interface{}, error) {
	switch v.Kind() {
	case value.KindNull:
		return nil, nil
	case value.KindBool:
		b, _ := v.AsBool()
		return b, nil
	case value.KindNumber:
		n, _ := v.AsNumber()
		return n, nil
	case value.KindString:
		s, _ := v.AsString()
		return s, nil
	case value.KindSecret:
		return toJSONInterface(v.Unwrap())
	case value.KindList:
		items, _ := v.AsList()
		out := make([]interface{}, len(items))
		for i, it := range items {
			conv, err := toJSONInterface(it)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	case value.KindObject:
		out := map[string]interface{}{}
		for _, k := range v.ObjectKeys() {
			f, _ := v.Field(k)
			conv, err := toJSONInterface(f)
			if err != nil {
				return nil, err
			}
			out[k] = conv
		}
		return out, nil
	case value.KindResourceRef:
		ref, _ := v.AsResource()
		return map[string]interface{}{"urn": ref.URN, "id": ref.ID}, nil
	default:
		return nil, fmt.Errorf("fn::toJSON: cannot serialize a %s value", kindName(v.Kind()))
	}
}

func (ev *Evaluator) evalReadFile(ctx context.Context, e *ast.ReadFileExpr) (value.Value, error) {
	v, secret, unknown, err := ev.unwrapTainted(ctx, e.Path)
	if err != nil {
		return value.Null(), err
	}
	if unknown {
		return value.Unknown(), nil
	}
	path, ok := v.AsString()
	if !ok {
		return ev.typeMismatch(e.Path.Span(), fmt.Sprintf("fn::readFile path must be a string, got %s", kindName(v.Kind())), ""), nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(ev.opts.Cwd, path)
	}
	contents, ioErr := os.ReadFile(path)
	if ioErr != nil {
		return ev.typeMismatch(e.Path.Span(), fmt.Sprintf("fn::readFile: %s", ioErr.Error()), ""), nil
	}
	return rewrap(value.String(string(contents)), secret, v.Dependencies), nil
}

func (ev *Evaluator) evalRandomString(ctx context.Context, e *ast.RandomStringExpr) (value.Value, error) {
	v, secret, unknown, err := ev.unwrapTainted(ctx, e.Length)
	if err != nil {
		return value.Null(), err
	}
	if unknown {
		return value.Unknown(), nil
	}
	n, idxErr := requireIndex(v)
	if idxErr != nil {
		return ev.typeMismatch(e.Length.Span(), fmt.Sprintf("fn::randomString length: %s", idxErr.Error()), ""), nil
	}
	if n < 0 || n > maxRandomStringLength {
		return ev.typeMismatch(e.Length.Span(), fmt.Sprintf("fn::randomString length %d exceeds the maximum of %d", n, maxRandomStringLength), ""), nil
	}
	s, err := randomAlphanumeric(n)
	if err != nil {
		return value.Null(), err
	}
	return rewrap(value.String(s), secret, v.Dependencies), nil
}

func (ev *Evaluator) evalDateFormat(ctx context.Context, e *ast.DateFormatExpr) (value.Value, error) {
	v, vSecret, vUnknown, err := ev.unwrapTainted(ctx, e.Value)
	if err != nil {
		return value.Null(), err
	}
	layout, lSecret, lUnknown, err := ev.unwrapTainted(ctx, e.Layout)
	if err != nil {
		return value.Null(), err
	}
	if vUnknown || lUnknown {
		return value.Unknown(), nil
	}

	layoutStr, ok := layout.AsString()
	if !ok {
		return ev.typeMismatch(e.Layout.Span(), fmt.Sprintf("fn::dateFormat layout must be a string, got %s", kindName(layout.Kind())), ""), nil
	}

	var t time.Time
	switch v.Kind() {
	case value.KindNumber:
		n, _ := v.AsNumber()
		t = time.Unix(int64(n), 0).UTC()
	case value.KindString:
		s, _ := v.AsString()
		parsed, parseErr := time.Parse(time.RFC3339, s)
		if parseErr != nil {
			return ev.typeMismatch(e.Value.Span(), fmt.Sprintf("fn::dateFormat: %s", parseErr.Error()), ""), nil
		}
		t = parsed.UTC()
	default:
		return ev.typeMismatch(e.Value.Span(), fmt.Sprintf("fn::dateFormat value must be a number (unix seconds) or an RFC3339 string, got %s", kindName(v.Kind())), ""), nil
	}

	return rewrap(value.String(t.Format(layoutStr)), vSecret || lSecret, v.Dependencies), nil
}

func (ev *Evaluator) evalStringAsset(ctx context.Context, e *ast.StringAssetExpr) (value.Value, error) {
	v, secret, unknown, err := ev.unwrapTainted(ctx, e.Source)
	if err != nil {
		return value.Null(), err
	}
	if unknown {
		return value.Unknown(), nil
	}
	s, ok := v.AsString()
	if !ok {
		return ev.typeMismatch(e.Source.Span(), fmt.Sprintf("fn::stringAsset source must be a string, got %s", kindName(v.Kind())), ""), nil
	}
	return rewrap(value.AssetValue(value.Asset{Text: s}), secret, v.Dependencies), nil
}

func (ev *Evaluator) evalFileAsset(ctx context.Context, e *ast.FileAssetExpr) (value.Value, error) {
	v, secret, unknown, err := ev.unwrapTainted(ctx, e.Source)
	if err != nil {
		return value.Null(), err
	}
	if unknown {
		return value.Unknown(), nil
	}
	s, ok := v.AsString()
	if !ok {
		return ev.typeMismatch(e.Source.Span(), fmt.Sprintf("fn::fileAsset source must be a string, got %s", kindName(v.Kind())), ""), nil
	}
	return rewrap(value.AssetValue(value.Asset{Path: s}), secret, v.Dependencies), nil
}

func (ev *Evaluator) evalRemoteAsset(ctx context.Context, e *ast.RemoteAssetExpr) (value.Value, error) {
	v, secret, unknown, err := ev.unwrapTainted(ctx, e.Source)
	if err != nil {
		return value.Null(), err
	}
	if unknown {
		return value.Unknown(), nil
	}
	s, ok := v.AsString()
	if !ok {
		return ev.typeMismatch(e.Source.Span(), fmt.Sprintf("fn::remoteAsset source must be a string, got %s", kindName(v.Kind())), ""), nil
	}
	return rewrap(value.AssetValue(value.Asset{URI: s}), secret, v.Dependencies), nil
}

func (ev *Evaluator) evalFileArchive(ctx context.Context, e *ast.FileArchiveExpr) (value.Value, error) {
	v, secret, unknown, err := ev.unwrapTainted(ctx, e.Source)
	if err != nil {
		return value.Null(), err
	}
	if unknown {
		return value.Unknown(), nil
	}
	s, ok := v.AsString()
	if !ok {
		return ev.typeMismatch(e.Source.Span(), fmt.Sprintf("fn::fileArchive source must be a string, got %s", kindName(v.Kind())), ""), nil
	}
	return rewrap(value.ArchiveValue(value.Archive{Path: s}), secret, v.Dependencies), nil
}

func (ev *Evaluator) evalRemoteArchive(ctx context.Context, e *ast.RemoteArchiveExpr) (value.Value, error) {
	v, secret, unknown, err := ev.unwrapTainted(ctx, e.Source)
	if err != nil {
		return value.Null(), err
	}
	if unknown {
		return value.Unknown(), nil
	}
	s, ok := v.AsString()
	if !ok {
		return ev.typeMismatch(e.Source.Span(), fmt.Sprintf("fn::remoteArchive source must be a string, got %s", kindName(v.Kind())), ""), nil
	}
	return rewrap(value.ArchiveValue(value.Archive{URI: s}), secret, v.Dependencies), nil
}

func (ev *Evaluator) evalAssetArchive(ctx context.Context, e *ast.AssetArchiveExpr) (value.Value, error) {
	assets := make(map[string]value.Value, len(e.Entries))
	order := make([]string, 0, len(e.Entries))
	var deps []string
	anySecret := false
	for _, name := range e.EntryOrder {
		v, err := ev.Eval(ctx, e.Entries[name])
		if err != nil {
			return value.Null(), err
		}
		if v.ContainsUnknown() {
			return value.Unknown(), nil
		}
		if v.IsSecret() {
			anySecret = true
		}
		assets[name] = v
		order = append(order, name)
		deps = append(deps, v.Dependencies...)
	}
	return rewrap(value.ArchiveValue(value.Archive{Assets: assets, AssetOrder: order}), anySecret, deps), nil
}
