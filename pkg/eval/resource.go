// Copyright 2026, the declstack authors. All rights reserved.

package eval

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/blang/semver"

	"github.com/declstack/declstack/pkg/ast"
	"github.com/declstack/declstack/pkg/diag"
	"github.com/declstack/declstack/pkg/value"
)

const providerTypePrefix = "pulumi:providers:"

const randomStringAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomAlphanumeric draws n characters from randomStringAlphabet using
// crypto/rand, matching the teacher corpus's preference for crypto/rand over
// math/rand wherever a generated value crosses into generated infrastructure
// state (e.g. this becomes a resource input, not just test fixture noise).
func randomAlphanumeric(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(randomStringAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("fn::randomString: %w", err)
		}
		out[i] = randomStringAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// evalInvoke evaluates an fn::invoke node: resolve call arguments and
// options, dispatch through the Callback, then optionally project a single
// named field from the return values (§4.6.6).
func (ev *Evaluator) evalInvoke(ctx context.Context, e *ast.InvokeExpr) (value.Value, error) {
	var args map[string]value.Value
	var deps []string
	if e.CallArgs != nil {
		argsVal, err := ev.evalObject(ctx, e.CallArgs)
		if err != nil {
			return value.Null(), err
		}
		if argsVal.ContainsUnknown() {
			return value.Unknown(), nil
		}
		keys := argsVal.ObjectKeys()
		args = make(map[string]value.Value, len(keys))
		for _, k := range keys {
			f, _ := argsVal.Field(k)
			args[k] = f
		}
		deps = argsVal.Dependencies
	}

	providerRef, provErr := ev.evalProviderRef(ctx, e.CallOpts.Provider)
	if provErr != nil {
		return value.Null(), provErr
	}
	version, err := ev.evalOptionalString(ctx, e.CallOpts.Version)
	if err != nil {
		return value.Null(), err
	}
	parentURN, err := ev.evalOptionalURN(ctx, e.CallOpts.Parent)
	if err != nil {
		return value.Null(), err
	}
	dependsOn, err := ev.evalDependsOn(ctx, e.CallOpts.DependsOn)
	if err != nil {
		return value.Null(), err
	}

	resp, err := ev.opts.Callback.Invoke(ctx, e.Token.Value, args, providerRef, version, parentURN, dependsOn)
	if err != nil {
		return value.Null(), fmt.Errorf("fn::invoke %s: %w", e.Token.Value, err)
	}
	if len(resp.Failures) > 0 {
		return ev.typeMismatch(e.Span(),
			fmt.Sprintf("fn::invoke %s failed", e.Token.Value),
			strings.Join(resp.Failures, "; ")), nil
	}

	keys := make([]string, 0, len(resp.ReturnValues))
	for k := range resp.ReturnValues {
		keys = append(keys, k)
	}
	result := value.Object(keys, resp.ReturnValues).WithDependencies(deps...)

	if e.Return != nil {
		field, ok := result.Field(e.Return.Value)
		if !ok {
			return ev.typeMismatch(e.Span(), fmt.Sprintf("fn::invoke %s has no return value '%s'", e.Token.Value, e.Return.Value), ""), nil
		}
		return field, nil
	}
	return result, nil
}

func (ev *Evaluator) evalOptionalString(ctx context.Context, e ast.Expr) (string, error) {
	if e == nil {
		return "", nil
	}
	v, err := ev.Eval(ctx, e)
	if err != nil {
		return "", err
	}
	if v.ContainsUnknown() {
		return "", nil
	}
	s, ok := v.Unwrap().AsString()
	if !ok {
		ev.typeMismatch(e.Span(), fmt.Sprintf("expected a string, got %s", kindName(v.Kind())), "")
		return "", nil
	}
	return s, nil
}

// evalOptionalURN evaluates an expression expected to name a resource
// (e.g. `parent:`), returning its URN.
func (ev *Evaluator) evalOptionalURN(ctx context.Context, e ast.Expr) (string, error) {
	if e == nil {
		return "", nil
	}
	v, err := ev.Eval(ctx, e)
	if err != nil {
		return "", err
	}
	return resourceURNOf(v), nil
}

// resourceURNOf extracts a URN from a resource-shaped object value (one
// produced by resourceValue), falling back to a bare string if that's what
// was given.
func resourceURNOf(v value.Value) string {
	v = v.Unwrap()
	if urn, ok := v.Field("urn"); ok {
		if s, ok := urn.Unwrap().AsString(); ok {
			return s
		}
	}
	if s, ok := v.AsString(); ok {
		return s
	}
	return ""
}

// evalProviderRef evaluates an expression naming a provider resource,
// returning the "<urn>::<id>" provider reference string the orchestrator
// expects.
func (ev *Evaluator) evalProviderRef(ctx context.Context, e ast.Expr) (string, error) {
	if e == nil {
		return "", nil
	}
	v, err := ev.Eval(ctx, e)
	if err != nil {
		return "", err
	}
	if v.ContainsUnknown() {
		return "", nil
	}
	v = v.Unwrap()
	urn, hasURN := v.Field("urn")
	id, hasID := v.Field("id")
	if hasURN && hasID {
		u, _ := urn.Unwrap().AsString()
		i, _ := id.Unwrap().AsString()
		return u + "::" + i, nil
	}
	if s, ok := v.AsString(); ok {
		return s, nil
	}
	ev.typeMismatch(e.Span(), fmt.Sprintf("expected a resource reference, got %s", kindName(v.Kind())), "")
	return "", nil
}

func (ev *Evaluator) evalDependsOn(ctx context.Context, exprs []ast.Expr) ([]string, error) {
	var urns []string
	for _, e := range exprs {
		v, err := ev.Eval(ctx, e)
		if err != nil {
			return nil, err
		}
		if urn := resourceURNOf(v); urn != "" {
			urns = append(urns, urn)
		}
		urns = append(urns, v.Dependencies...)
	}
	return dedupeStrings(urns), nil
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// skipResource records why a resource could not even be attempted: its
// properties or options failed to evaluate before any Callback call was
// made. The resource is left out of scope entirely (rather than registered
// with degraded/unknown inputs), so anything referencing it by name falls
// through lookupRoot's "unknown identifier" path and degrades the same way
// any other reference error would.
func (ev *Evaluator) skipResource(r *ast.ResourceEntry, err error) {
	ev.mu.Lock()
	ev.diags.Append(diag.At(diag.Error, r.KeySpan, fmt.Sprintf("resource '%s': %s", r.LogicalName, err.Error()), ""))
	ev.mu.Unlock()
}

// registerResourceNode implements the 5-step resource lifecycle of §4.6.5:
// evaluate properties, resolve options, classify custom/remote/provider,
// dispatch get-vs-register, and store the result in scope under the
// resource's logical name.
func (ev *Evaluator) registerResourceNode(ctx context.Context, r *ast.ResourceEntry) error {
	inputs, deps, err := ev.evalResourceInputs(ctx, r)
	if err != nil {
		ev.skipResource(r, err)
		return nil
	}

	opts, err := ev.resolveResourceOptions(ctx, r.Options)
	if err != nil {
		ev.skipResource(r, err)
		return nil
	}
	opts.DependsOn = dedupeStrings(append(opts.DependsOn, deps...))

	typeToken := ""
	if r.Type != nil {
		typeToken = r.Type.Value
	}
	custom := !strings.Contains(typeToken, ":index:") // component resources conventionally live in the `:index:` module
	remote := isComponentType(typeToken)

	var resp RegisterResponse
	if r.Get != nil {
		id, idErr := ev.evalOptionalString(ctx, r.Get.ID)
		if idErr != nil {
			ev.skipResource(r, idErr)
			return nil
		}
		getInputs, _, getErr := ev.evalPropertyMap(ctx, r.Get.Properties)
		if getErr != nil {
			ev.skipResource(r, getErr)
			return nil
		}
		resp, err = ev.opts.Callback.ReadResource(ctx, typeToken, r.LogicalName, id, opts.Parent, getInputs, opts.Provider, opts.Version)
	} else {
		resp, err = ev.opts.Callback.RegisterResource(ctx, typeToken, r.LogicalName, custom, remote, inputs, opts)
	}
	if err != nil {
		// The actual register/read call is the one step of the resource
		// lifecycle that is fatal to this evaluation (§4.6.5 step 6):
		// everything upstream of it (property/option evaluation) only ever
		// degrades to a diagnostic via skipResource.
		return fmt.Errorf("resource '%s': %w", r.LogicalName, err)
	}

	outKeys := make([]string, 0, len(resp.Outputs))
	for k := range resp.Outputs {
		outKeys = append(outKeys, k)
	}
	outputs := value.Object(outKeys, resp.Outputs)
	outputs = ev.applySchemaSecrets(typeToken, outputs)

	ev.mu.Lock()
	ev.scope.resources[r.LogicalName] = ResourceRecord{URN: resp.URN, ID: resp.ID, Outputs: outputs, Custom: custom}
	ev.mu.Unlock()
	return nil
}

func isComponentType(typeToken string) bool {
	return strings.Contains(typeToken, ":index:") && !strings.HasPrefix(typeToken, providerTypePrefix)
}

// applySchemaSecrets wraps any output the schema store names as secret for
// typeToken, provided it isn't already secret (§3's schema-driven secret
// outputs).
func (ev *Evaluator) applySchemaSecrets(typeToken string, outputs value.Value) value.Value {
	secretFields := ev.opts.SchemaStore.SecretOutputs(typeToken)
	if len(secretFields) == 0 {
		return outputs
	}
	keys := outputs.ObjectKeys()
	fields := make(map[string]value.Value, len(keys))
	secretSet := map[string]bool{}
	for _, f := range secretFields {
		secretSet[f] = true
	}
	for _, k := range keys {
		f, _ := outputs.Field(k)
		if secretSet[k] && !f.IsSecret() {
			f = value.Secret(f)
		}
		fields[k] = f
	}
	return value.Object(keys, fields)
}

// evalResourceInputs evaluates either the map form or the spread form of a
// resource's properties, in the order they were declared.
func (ev *Evaluator) evalResourceInputs(ctx context.Context, r *ast.ResourceEntry) (map[string]value.Value, []string, error) {
	if r.PropertiesSpread != nil {
		v, err := ev.Eval(ctx, r.PropertiesSpread)
		if err != nil {
			return nil, nil, err
		}
		if v.ContainsUnknown() {
			return map[string]value.Value{}, v.Dependencies, nil
		}
		if v.Kind() != value.KindObject {
			ev.typeMismatch(r.PropertiesSpread.Span(),
				fmt.Sprintf("resource '%s': properties spread must evaluate to an object, got %s", r.LogicalName, kindName(v.Kind())), "")
			return map[string]value.Value{}, nil, nil
		}
		out := map[string]value.Value{}
		for _, k := range v.ObjectKeys() {
			f, _ := v.Field(k)
			out[k] = f
		}
		return out, v.Dependencies, nil
	}

	ordered := r.PropertyOrder
	if len(ordered) == 0 {
		for k := range r.Properties {
			ordered = append(ordered, k)
		}
	}
	props := make(map[string]ast.Expr, len(ordered))
	for _, k := range ordered {
		props[k] = r.Properties[k]
	}
	return ev.evalPropertyMapOrdered(ctx, ordered, props)
}

func (ev *Evaluator) evalPropertyMap(ctx context.Context, props map[string]ast.Expr) (map[string]value.Value, []string, error) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	return ev.evalPropertyMapOrdered(ctx, keys, props)
}

// evalPropertyMapOrdered evaluates each property expression in declaration
// order. A single bad property degrades to Unknown plus a diagnostic rather
// than discarding the rest of the resource's properties.
func (ev *Evaluator) evalPropertyMapOrdered(ctx context.Context, order []string, props map[string]ast.Expr) (map[string]value.Value, []string, error) {
	out := make(map[string]value.Value, len(props))
	var deps []string
	for _, k := range order {
		v, err := ev.Eval(ctx, props[k])
		if err != nil {
			v = ev.typeMismatch(props[k].Span(), fmt.Sprintf("property '%s': %s", k, err.Error()), "")
		}
		out[k] = v
		deps = append(deps, v.Dependencies...)
	}
	return out, deps, nil
}

// resolveResourceOptions evaluates every option expression down to the
// concrete strings/bools the Callback interface expects (§4.6.5 step 2).
func (ev *Evaluator) resolveResourceOptions(ctx context.Context, o ast.ResourceOptions) (ResolvedResourceOptions, error) {
	var out ResolvedResourceOptions
	var err error

	if out.Aliases, err = ev.evalStringList(ctx, o.Aliases); err != nil {
		return out, err
	}
	if o.CustomTimeouts != nil {
		if out.CreateTimeout, err = ev.evalOptionalString(ctx, o.CustomTimeouts.Create); err != nil {
			return out, err
		}
		if out.UpdateTimeout, err = ev.evalOptionalString(ctx, o.CustomTimeouts.Update); err != nil {
			return out, err
		}
		if out.DeleteTimeout, err = ev.evalOptionalString(ctx, o.CustomTimeouts.Delete); err != nil {
			return out, err
		}
	}
	if out.DeleteBeforeReplace, err = ev.evalOptionalBool(ctx, o.DeleteBeforeReplace); err != nil {
		return out, err
	}
	if out.DependsOn, err = ev.evalDependsOn(ctx, o.DependsOn); err != nil {
		return out, err
	}
	if out.IgnoreChanges, err = ev.evalStringList(ctx, o.IgnoreChanges); err != nil {
		return out, err
	}
	if out.Import, err = ev.evalOptionalString(ctx, o.Import); err != nil {
		return out, err
	}
	if out.Parent, err = ev.evalOptionalURN(ctx, o.Parent); err != nil {
		return out, err
	}
	if out.Parent == "" {
		out.Parent = ev.componentParentURN
	}
	if out.Protect, err = ev.evalOptionalBool(ctx, o.Protect); err != nil {
		return out, err
	}
	if out.Provider, err = ev.evalProviderRef(ctx, o.Provider); err != nil {
		return out, err
	}
	if len(o.Providers) > 0 {
		out.Providers = map[string]string{}
		for pkg, e := range o.Providers {
			ref, err := ev.evalProviderRef(ctx, e)
			if err != nil {
				return out, err
			}
			out.Providers[pkg] = ref
		}
	}
	if out.Version, err = ev.evalOptionalString(ctx, o.Version); err != nil {
		return out, err
	}
	if out.Version != "" {
		if _, verErr := semver.ParseTolerant(out.Version); verErr != nil {
			ev.mu.Lock()
			ev.diags.Append(diag.At(diag.Warning, o.Version.Span(),
				fmt.Sprintf("'%s' is not a valid semantic version", out.Version), verErr.Error()))
			ev.mu.Unlock()
		}
	}
	if out.PluginDownloadURL, err = ev.evalOptionalString(ctx, o.PluginDownloadURL); err != nil {
		return out, err
	}
	if out.ReplaceOnChanges, err = ev.evalStringList(ctx, o.ReplaceOnChanges); err != nil {
		return out, err
	}
	if out.RetainOnDelete, err = ev.evalOptionalBool(ctx, o.RetainOnDelete); err != nil {
		return out, err
	}
	if out.ReplaceWith, err = ev.evalOptionalString(ctx, o.ReplaceWith); err != nil {
		return out, err
	}
	if out.DeletedWith, err = ev.evalOptionalURN(ctx, o.DeletedWith); err != nil {
		return out, err
	}
	if out.AdditionalSecretOutputs, err = ev.evalStringList(ctx, o.AdditionalSecretOutputs); err != nil {
		return out, err
	}
	if out.HideDiffs, err = ev.evalStringList(ctx, o.HideDiffs); err != nil {
		return out, err
	}
	return out, nil
}

func (ev *Evaluator) evalStringList(ctx context.Context, exprs []ast.Expr) ([]string, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	out := make([]string, len(exprs))
	for i, e := range exprs {
		s, err := ev.evalOptionalString(ctx, e)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (ev *Evaluator) evalOptionalBool(ctx context.Context, e ast.Expr) (bool, error) {
	if e == nil {
		return false, nil
	}
	v, err := ev.Eval(ctx, e)
	if err != nil {
		return false, err
	}
	if v.ContainsUnknown() {
		return false, nil
	}
	b, ok := v.Unwrap().AsBool()
	if !ok {
		ev.typeMismatch(e.Span(), fmt.Sprintf("expected a boolean, got %s", kindName(v.Kind())), "")
		return false, nil
	}
	return b, nil
}
