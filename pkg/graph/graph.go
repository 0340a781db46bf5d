// Copyright 2026, the declstack authors. All rights reserved.

// Package graph builds the dependency graph over a merged template's config,
// variable, and resource nodes and produces a deterministic topological
// order (§4.5). The DFS-with-cycle-detection shape is grounded on the
// teacher's sort.go; this package generalizes it away from the teacher's
// Pulumi-SDK-typed resource records to the declstack ast/value types and
// adds alphabetical tie-breaking and level computation for parallel
// scheduling (§5).
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/declstack/declstack/pkg/ast"
	"github.com/declstack/declstack/pkg/diag"
	"github.com/declstack/declstack/pkg/source"
)

// Kind discriminates the three declared node kinds plus the synthetic
// `pulumi` virtual-namespace node.
type Kind int

const (
	KindConfig Kind = iota
	KindVariable
	KindResource
	KindPulumiNamespace
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindVariable:
		return "variable"
	case KindResource:
		return "resource"
	default:
		return "pulumi"
	}
}

// PulumiNodeName is the reserved name of the synthetic `pulumi.*` namespace
// node; no user-declared node may use it.
const PulumiNodeName = "pulumi"

// Node is one vertex of the dependency graph.
type Node struct {
	Kind     Kind
	Name     string
	KeySpan  source.Span
	Config   *ast.ConfigEntry
	Variable *ast.VariableEntry
	Resource *ast.ResourceEntry

	Level int // 1 + max(level(deps)); leaves are level 1
}

// Graph is the built dependency graph: nodes plus their forward edges
// (dependency -> dependents is not tracked; only name -> its dependencies).
type Graph struct {
	Nodes map[string]*Node
	Order []string // declaration order, for deterministic iteration pre-sort
	deps  map[string][]string
}

// Build constructs the graph from a merged template, recording a fatal
// diagnostic for duplicate or reserved node names (§4.5).
func Build(t *ast.Template) (*Graph, *diag.Bag) {
	bag := &diag.Bag{}
	g := &Graph{Nodes: map[string]*Node{}, deps: map[string][]string{}}

	addNode := func(n *Node) {
		if n.Name == PulumiNodeName {
			bag.Append(diag.At(diag.Error, n.KeySpan,
				fmt.Sprintf("%s %s uses the reserved name '%s'", n.Kind, n.Name, PulumiNodeName), ""))
			return
		}
		if other, exists := g.Nodes[n.Name]; exists {
			if other.Kind == n.Kind {
				bag.Append(diag.At(diag.Error, n.KeySpan, fmt.Sprintf("found duplicate %s '%s'", n.Kind, n.Name), ""))
			} else {
				bag.Append(diag.At(diag.Error, n.KeySpan,
					fmt.Sprintf("%s '%s' cannot have the same name as %s '%s'", n.Kind, n.Name, other.Kind, n.Name), ""))
			}
			return
		}
		g.Nodes[n.Name] = n
		g.Order = append(g.Order, n.Name)
	}

	for i := range t.Config {
		c := &t.Config[i]
		addNode(&Node{Kind: KindConfig, Name: c.Key, KeySpan: c.KeySpan, Config: c})
	}
	for i := range t.Variables {
		v := &t.Variables[i]
		addNode(&Node{Kind: KindVariable, Name: v.Key, KeySpan: v.KeySpan, Variable: v})
	}
	for i := range t.Resources {
		r := &t.Resources[i]
		addNode(&Node{Kind: KindResource, Name: r.LogicalName, KeySpan: r.KeySpan, Resource: r})
	}

	if bag.HasErrors() {
		return g, bag
	}

	// Default-provider edges: a resource with no explicit provider implicitly
	// depends on its package's default-provider resource, if one exists.
	defaultProviders := map[string]string{}
	for _, name := range g.Order {
		n := g.Nodes[name]
		if n.Kind != KindResource || n.Resource.Type == nil {
			continue
		}
		if isDefaultProvider(n.Resource) {
			pkg := providerPackage(n.Resource.Type.Value)
			defaultProviders[pkg] = name
		}
	}

	for _, name := range g.Order {
		n := g.Nodes[name]
		var deps []dep
		switch n.Kind {
		case KindConfig:
			if n.Config.Default != nil {
				collectDeps(n.Config.Default, &deps)
			}
			if n.Config.Value != nil {
				collectDeps(n.Config.Value, &deps)
			}
		case KindVariable:
			collectDeps(n.Variable.Value, &deps)
		case KindResource:
			collectResourceDeps(n.Resource, &deps)
			if n.Resource.Options.Provider == nil && !isDefaultProvider(n.Resource) && n.Resource.Type != nil {
				if provider, ok := defaultProviders[providerPackage(n.Resource.Type.Value)]; ok {
					deps = append(deps, dep{name: provider})
				}
			}
		}

		names := make([]string, 0, len(deps))
		for _, d := range deps {
			if d.name == PulumiNodeName {
				continue
			}
			if _, ok := g.Nodes[d.name]; !ok {
				bag.Append(diag.At(diag.Error, d.span,
					fmt.Sprintf("unknown identifier '%s'", d.name), diag.DidYouMeanHintN(d.name, g.Order, 3)))
				continue
			}
			names = append(names, d.name)
		}
		g.deps[name] = dedupe(names)
	}

	return g, bag
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func isDefaultProvider(r *ast.ResourceEntry) bool {
	b, ok := r.DefaultProvider.(*ast.BooleanExpr)
	return ok && b.Value
}

func providerPackage(typeToken string) string {
	parts := strings.SplitN(typeToken, ":", 3)
	if len(parts) > 0 {
		return parts[0]
	}
	return typeToken
}

type dep struct {
	name string
	span source.Span
}

// collectDeps walks an expression tree collecting the root identifiers of
// every `${...}` symbol/interpolation it contains.
func collectDeps(e ast.Expr, out *[]dep) {
	if e == nil {
		return
	}
	switch e := e.(type) {
	case *ast.SymbolExpr:
		*out = append(*out, dep{name: e.Property.RootName(), span: e.Span()})
	case *ast.InterpolateExpr:
		for _, p := range e.Parts {
			if p.Value != nil {
				*out = append(*out, dep{name: p.Value.RootName(), span: e.Span()})
			}
		}
	case *ast.ListExpr:
		for _, el := range e.Elements {
			collectDeps(el, out)
		}
	case *ast.ObjectExpr:
		for _, kv := range e.Entries {
			collectDeps(kv.Key, out)
			collectDeps(kv.Value, out)
		}
	case *ast.InvokeExpr:
		if e.CallArgs != nil {
			collectDeps(e.CallArgs, out)
		}
		collectDeps(e.CallOpts.Provider, out)
		collectDeps(e.CallOpts.Parent, out)
		for _, d := range e.CallOpts.DependsOn {
			collectDeps(d, out)
		}
	case *ast.ToJSONExpr:
		collectDeps(e.Value, out)
	case *ast.JoinExpr:
		collectDeps(e.Delimiter, out)
		collectDeps(e.Values, out)
	case *ast.SplitExpr:
		collectDeps(e.Delimiter, out)
		collectDeps(e.Source, out)
	case *ast.SelectExpr:
		collectDeps(e.Index, out)
		collectDeps(e.Values, out)
	case *ast.ToBase64Expr:
		collectDeps(e.Value, out)
	case *ast.FromBase64Expr:
		collectDeps(e.Value, out)
	case *ast.SecretExpr:
		collectDeps(e.Value, out)
	case *ast.ReadFileExpr:
		collectDeps(e.Path, out)
	case *ast.AbsExpr:
		collectDeps(e.Value, out)
	case *ast.FloorExpr:
		collectDeps(e.Value, out)
	case *ast.CeilExpr:
		collectDeps(e.Value, out)
	case *ast.MaxExpr:
		collectDeps(e.Values, out)
	case *ast.MinExpr:
		collectDeps(e.Values, out)
	case *ast.StringLenExpr:
		collectDeps(e.Value, out)
	case *ast.SubstringExpr:
		collectDeps(e.Source, out)
		collectDeps(e.Start, out)
		collectDeps(e.Length, out)
	case *ast.RandomStringExpr:
		collectDeps(e.Length, out)
	case *ast.DateFormatExpr:
		collectDeps(e.Value, out)
		collectDeps(e.Layout, out)
	case *ast.StringAssetExpr:
		collectDeps(e.Source, out)
	case *ast.FileAssetExpr:
		collectDeps(e.Source, out)
	case *ast.RemoteAssetExpr:
		collectDeps(e.Source, out)
	case *ast.FileArchiveExpr:
		collectDeps(e.Source, out)
	case *ast.RemoteArchiveExpr:
		collectDeps(e.Source, out)
	case *ast.AssetArchiveExpr:
		for _, v := range e.Entries {
			collectDeps(v, out)
		}
	}
}

func collectResourceDeps(r *ast.ResourceEntry, out *[]dep) {
	if r.ExplicitName != nil {
		collectDeps(r.ExplicitName, out)
	}
	for _, v := range r.Properties {
		collectDeps(v, out)
	}
	collectDeps(r.PropertiesSpread, out)
	if r.Get != nil {
		collectDeps(r.Get.ID, out)
		for _, v := range r.Get.Properties {
			collectDeps(v, out)
		}
	}
	o := r.Options
	for _, a := range o.Aliases {
		collectDeps(a, out)
	}
	if o.CustomTimeouts != nil {
		collectDeps(o.CustomTimeouts.Create, out)
		collectDeps(o.CustomTimeouts.Update, out)
		collectDeps(o.CustomTimeouts.Delete, out)
	}
	collectDeps(o.DeleteBeforeReplace, out)
	for _, d := range o.DependsOn {
		collectDeps(d, out)
	}
	for _, d := range o.IgnoreChanges {
		collectDeps(d, out)
	}
	collectDeps(o.Import, out)
	collectDeps(o.Parent, out)
	collectDeps(o.Protect, out)
	collectDeps(o.Provider, out)
	for _, p := range o.Providers {
		collectDeps(p, out)
	}
	collectDeps(o.Version, out)
	collectDeps(o.PluginDownloadURL, out)
	for _, d := range o.ReplaceOnChanges {
		collectDeps(d, out)
	}
	collectDeps(o.RetainOnDelete, out)
	collectDeps(o.ReplaceWith, out)
	collectDeps(o.DeletedWith, out)
	for _, d := range o.AdditionalSecretOutputs {
		collectDeps(d, out)
	}
	for _, d := range o.HideDiffs {
		collectDeps(d, out)
	}
}

// TopoSort returns nodes in dependency order: every node appears after all
// of its dependencies. Ties (nodes with no ordering constraint between them)
// are broken alphabetically by name so the result is stable run-to-run.
// Cycles produce a diagnostic naming the full cycle and a nil order.
func (g *Graph) TopoSort() ([]string, *diag.Bag) {
	bag := &diag.Bag{}

	names := make([]string, 0, len(g.Nodes))
	for n := range g.Nodes {
		names = append(names, n)
	}
	sort.Strings(names)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var order []string
	var stack []string

	var visit func(name string) bool
	visit = func(name string) bool {
		switch color[name] {
		case black:
			return true
		case gray:
			cycle := append(append([]string(nil), stack...), name)
			bag.Append(diag.At(diag.Error, g.Nodes[name].KeySpan,
				fmt.Sprintf("circular dependency: %s", strings.Join(cycle, " -> ")), ""))
			return false
		}
		color[name] = gray
		stack = append(stack, name)

		deps := append([]string(nil), g.deps[name]...)
		sort.Strings(deps)
		for _, d := range deps {
			if !visit(d) {
				return false
			}
		}

		stack = stack[:len(stack)-1]
		color[name] = black
		order = append(order, name)
		return true
	}

	for _, n := range names {
		if !visit(n) {
			return nil, bag
		}
	}

	for _, name := range order {
		g.Nodes[name].Level = g.level(name)
	}

	return order, bag
}

func (g *Graph) level(name string) int {
	deps := g.deps[name]
	if len(deps) == 0 {
		return 1
	}
	max := 0
	for _, d := range deps {
		if l := g.Nodes[d].Level; l > max {
			max = l
		}
	}
	return max + 1
}

// Dependencies returns name's direct dependency set.
func (g *Graph) Dependencies(name string) []string { return g.deps[name] }
