// Copyright 2026, the declstack authors. All rights reserved.

package eval

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/declstack/declstack/pkg/ast"
	"github.com/declstack/declstack/pkg/interp"
	"github.com/declstack/declstack/pkg/source"
	"github.com/declstack/declstack/pkg/value"
)

// Eval evaluates e against the current scope, applying the taint-propagation
// rules of §4.6.3: any unknown input makes the result unknown (secret(x) is
// the one exception — it stays a valid, still-secret unknown); any secret
// input is transparently unwrapped for the computation and the result is
// re-wrapped as secret afterward.
func (ev *Evaluator) Eval(ctx context.Context, e ast.Expr) (value.Value, error) {
	switch e := e.(type) {
	case nil:
		return value.Null(), nil
	case *ast.NullExpr:
		return value.Null(), nil
	case *ast.BooleanExpr:
		return value.Bool(e.Value), nil
	case *ast.NumberExpr:
		return value.Number(e.Value), nil
	case *ast.StringExpr:
		return value.String(e.Value), nil
	case *ast.SymbolExpr:
		return ev.evalSymbol(e.Span(), e.Property)
	case *ast.InterpolateExpr:
		return ev.evalInterpolate(ctx, e)
	case *ast.ListExpr:
		return ev.evalList(ctx, e)
	case *ast.ObjectExpr:
		return ev.evalObject(ctx, e)
	case ast.BuiltinExpr:
		return ev.evalBuiltin(ctx, e)
	default:
		return value.Null(), fmt.Errorf("unsupported expression %T", e)
	}
}

// evalMany evaluates a slice of expressions in order, returning an error on
// the first failure.
func (ev *Evaluator) evalMany(ctx context.Context, exprs []ast.Expr) ([]value.Value, error) {
	out := make([]value.Value, len(exprs))
	for i, e := range exprs {
		v, err := ev.Eval(ctx, e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (ev *Evaluator) evalList(ctx context.Context, e *ast.ListExpr) (value.Value, error) {
	items, err := ev.evalMany(ctx, e.Elements)
	if err != nil {
		return value.Null(), err
	}
	var deps []string
	for _, it := range items {
		deps = append(deps, it.Dependencies...)
	}
	return value.List(items...).WithDependencies(deps...), nil
}

func (ev *Evaluator) evalObject(ctx context.Context, e *ast.ObjectExpr) (value.Value, error) {
	keys := make([]string, 0, len(e.Entries))
	fields := make(map[string]value.Value, len(e.Entries))
	var deps []string
	for _, kv := range e.Entries {
		kVal, err := ev.Eval(ctx, kv.Key)
		if err != nil {
			return value.Null(), err
		}
		key, ok := kVal.AsString()
		if !ok {
			return ev.typeMismatch(kv.Key.Span(), fmt.Sprintf("object key %s must evaluate to a string, got %s", kv.Key, kindName(kVal.Kind())), ""), nil
		}
		vVal, err := ev.Eval(ctx, kv.Value)
		if err != nil {
			return value.Null(), err
		}
		if _, exists := fields[key]; !exists {
			keys = append(keys, key)
		}
		fields[key] = vVal
		deps = append(deps, vVal.Dependencies...)
	}
	return value.Object(keys, fields).WithDependencies(deps...), nil
}

// evalSymbol resolves a "${a.b[0]}" path: the root identifier is looked up in
// (in order) resource outputs, variables, config, then the `pulumi.*`
// virtual namespace, and every remaining accessor is applied via traverse.
func (ev *Evaluator) evalSymbol(span source.Span, p *interp.PathAccess) (value.Value, error) {
	root := p.RootName()
	rootValue := ev.lookupRoot(span, root)
	return ev.traverse(span, rootValue, p.Accessors[1:]), nil
}

// lookupRoot resolves a path's root identifier. An identifier that names no
// resource, variable, or config entry is a reference error (§7's
// taxonomy), not a fatal one: it becomes a diagnostic and Unknown rather
// than aborting whoever is evaluating it.
func (ev *Evaluator) lookupRoot(span source.Span, root string) value.Value {
	if root == pulumiNamespace {
		return ev.pulumiNamespaceValue()
	}

	ev.mu.Lock()
	rec, hasRec := ev.scope.resources[root]
	v, hasVar := ev.scope.variables[root]
	cv, hasCfg := ev.scope.config[root]
	ev.mu.Unlock()

	if hasRec {
		return ev.resourceValue(rec)
	}
	if hasVar {
		return v
	}
	if hasCfg {
		return cv
	}
	return ev.typeMismatch(span, fmt.Sprintf("unknown identifier '%s'", root), "")
}

const pulumiNamespace = "pulumi"

// pulumiNamespaceValue builds the synthetic `pulumi.*` object exposing stack
// identity fields (§4.6.2).
func (ev *Evaluator) pulumiNamespaceValue() value.Value {
	keys := []string{"organization", "project", "stack", "cwd", "rootDirectory"}
	fields := map[string]value.Value{
		"organization":  value.String(ev.opts.Organization),
		"project":       value.String(ev.opts.ProjectName),
		"stack":         value.String(ev.opts.StackName),
		"cwd":           value.String(ev.opts.Cwd),
		"rootDirectory": value.String(ev.opts.RootDirectory),
	}
	return value.Object(keys, fields)
}

// resourceValue projects a registered resource's outputs plus its synthetic
// `id`/`urn` fields into a single object value tagged with the resource's
// URN as a dependency (§4.6.4).
func (ev *Evaluator) resourceValue(rec ResourceRecord) value.Value {
	outKeys := rec.Outputs.ObjectKeys()
	keys := make([]string, 0, len(outKeys)+2)
	fields := make(map[string]value.Value, len(outKeys)+2)
	for _, k := range outKeys {
		f, _ := rec.Outputs.Field(k)
		keys = append(keys, k)
		fields[k] = f
	}
	keys = append(keys, "id", "urn")
	fields["id"] = value.String(rec.ID)
	fields["urn"] = value.String(rec.URN)
	return value.Object(keys, fields).WithDependencies(rec.URN)
}

// traverse applies a sequence of path accessors to v, transparently unwrapping
// and re-wrapping secrets and short-circuiting to Unknown the moment an
// unknown value is traversed into (§4.6.3).
func (ev *Evaluator) traverse(span source.Span, v value.Value, accessors []interp.Accessor) value.Value {
	cur := v
	for _, acc := range accessors {
		if cur.IsUnknown() {
			return value.Unknown()
		}

		wasSecret := cur.IsSecret()
		inner := cur.Unwrap()

		next := ev.stepInto(span, inner, acc)

		if wasSecret {
			next = value.Secret(next)
		}
		cur = next
	}
	return cur
}

func (ev *Evaluator) stepInto(span source.Span, v value.Value, acc interp.Accessor) value.Value {
	switch a := acc.(type) {
	case interp.Name:
		return ev.fieldOf(span, v, a.Value)
	case interp.StringSubscript:
		return ev.fieldOf(span, v, a.Value)
	case interp.IntSubscript:
		items, ok := v.AsList()
		if !ok {
			return ev.typeMismatch(span, fmt.Sprintf("cannot index non-list value with [%d]", a.Value), "")
		}
		if a.Value < 0 || int(a.Value) >= len(items) {
			return ev.typeMismatch(span, fmt.Sprintf("list index %d out of range (length %d)", a.Value, len(items)), "")
		}
		return items[a.Value]
	default:
		return ev.typeMismatch(span, fmt.Sprintf("unsupported path accessor %T", acc), "")
	}
}

func (ev *Evaluator) fieldOf(span source.Span, v value.Value, key string) value.Value {
	f, ok := v.Field(key)
	if !ok {
		return ev.typeMismatch(span, fmt.Sprintf("no field '%s' on value", key), "")
	}
	return f
}

// evalInterpolate evaluates each "${...}" part of an interpolated string and
// concatenates them with the literal text, applying the scalar coercion
// rules of §4.6.2: bool/number coerce to their textual form, null coerces to
// the empty string, and list/object values are rejected.
func (ev *Evaluator) evalInterpolate(ctx context.Context, e *ast.InterpolateExpr) (value.Value, error) {
	var out string
	var secret, unknown bool
	var deps []string

	for _, part := range e.Parts {
		out += part.Text
		if part.Value == nil {
			continue
		}
		v, err := ev.evalSymbol(e.Span(), part.Value)
		if err != nil {
			return value.Null(), err
		}
		deps = append(deps, v.Dependencies...)
		if v.ContainsUnknown() {
			unknown = true
			continue
		}
		if v.IsSecret() {
			secret = true
		}
		text, textErr := scalarText(v.Unwrap())
		if textErr != nil {
			return ev.typeMismatch(e.Span(), fmt.Sprintf("in interpolation %s: %s", part.Value, textErr.Error()), ""), nil
		}
		out += text
	}

	if unknown {
		return value.Unknown().WithDependencies(deps...), nil
	}
	result := value.String(out).WithDependencies(deps...)
	if secret {
		result = value.Secret(result)
	}
	return result, nil
}

// scalarText renders a non-composite value as interpolation text.
func scalarText(v value.Value) (string, error) {
	switch v.Kind() {
	case value.KindNull:
		return "", nil
	case value.KindString:
		s, _ := v.AsString()
		return s, nil
	case value.KindBool:
		b, _ := v.AsBool()
		return strconv.FormatBool(b), nil
	case value.KindNumber:
		n, _ := v.AsNumber()
		return formatNumber(n), nil
	default:
		return "", fmt.Errorf("cannot interpolate a %s value", kindName(v.Kind()))
	}
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func kindName(k value.Kind) string {
	switch k {
	case value.KindList:
		return "list"
	case value.KindObject:
		return "object"
	case value.KindResourceRef:
		return "resource reference"
	case value.KindAsset:
		return "asset"
	case value.KindArchive:
		return "archive"
	default:
		return "value"
	}
}

// base64Encode/base64Decode are shared by the fn::toBase64/fn::fromBase64
// builtins in builtins.go.
func base64Encode(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func base64Decode(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid base64: %w", err)
	}
	return string(b), nil
}
