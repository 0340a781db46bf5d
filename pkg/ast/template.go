// Copyright 2026, the declstack authors. All rights reserved.

package ast

import (
	"strings"

	"github.com/declstack/declstack/pkg/diag"
	"github.com/declstack/declstack/pkg/source"
	"github.com/declstack/declstack/pkg/synyaml"
)

// ConfigEntry is one entry of a template's `config:` section (§3).
type ConfigEntry struct {
	Key     string
	KeySpan source.Span
	Type    string // raw, case-preserved as written; config.ParseType normalizes it
	Secret  bool
	Default Expr
	Value   Expr
	Items   *ConfigEntry // element shape for List<T>/object types
}

// VariableEntry is one entry of a template's `variables:` section.
type VariableEntry struct {
	Key     string
	KeySpan source.Span
	Value   Expr
}

// OutputEntry is one entry of a template's `outputs:` section.
type OutputEntry struct {
	Key     string
	KeySpan source.Span
	Value   Expr
}

// CustomTimeouts holds the optional create/update/delete duration overrides.
type CustomTimeouts struct {
	Create Expr
	Update Expr
	Delete Expr
}

// ResourceOptions is the parsed `options:` block of a resource (§3).
type ResourceOptions struct {
	Aliases                 []Expr
	CustomTimeouts          *CustomTimeouts
	DeleteBeforeReplace     Expr
	DependsOn               []Expr
	IgnoreChanges           []Expr
	Import                  Expr
	Parent                  Expr
	Protect                 Expr
	Provider                Expr
	Providers               map[string]Expr
	Version                 Expr
	PluginDownloadURL       Expr
	ReplaceOnChanges        []Expr
	RetainOnDelete          Expr
	ReplaceWith             Expr
	DeletedWith             Expr
	AdditionalSecretOutputs []Expr
	HideDiffs               []Expr
}

// ResourceEntry is one entry of a template's `resources:` section.
type ResourceEntry struct {
	LogicalName     string
	KeySpan         source.Span
	Type            *StringExpr
	ExplicitName    Expr
	DefaultProvider Expr
	// Properties holds the map form; PropertiesSpread holds the single-expr
	// spread form. Exactly one is non-nil/non-empty.
	Properties       map[string]Expr
	PropertyOrder    []string
	PropertiesSpread Expr
	Options          ResourceOptions
	Get              *GetResource
}

// GetResource describes a resource's `get:` directive: read instead of
// register (§4.6.5).
type GetResource struct {
	ID         Expr
	Properties map[string]Expr
}

// ComponentDecl is one entry of a template's `components:` section. Its body
// mirrors a nested template sharing every rule except further component
// nesting (§3).
type ComponentDecl struct {
	Key       string
	KeySpan   source.Span
	Inputs    map[string]*ConfigEntry
	Variables []VariableEntry
	Resources []ResourceEntry
	Outputs   []OutputEntry
}

// Template is the parsed form of a single (pre-merge) template document.
type Template struct {
	Name        string
	Namespace   string
	Description string
	Runtime     string
	Main        string
	Settings    map[string]Expr

	Config     []ConfigEntry
	Variables  []VariableEntry
	Resources  []ResourceEntry
	Outputs    []OutputEntry
	Components []ComponentDecl
}

var topLevelKeys = []string{
	"name", "namespace", "description", "pulumi", "config", "configuration",
	"variables", "resources", "outputs", "components", "runtime", "main",
}

var resourceKeys = []string{"type", "name", "defaultProvider", "properties", "options", "get"}

var optionKeys = []string{
	"aliases", "customTimeouts", "deleteBeforeReplace", "dependsOn", "ignoreChanges",
	"import", "parent", "protect", "provider", "providers", "version",
	"pluginDownloadURL", "replaceOnChanges", "retainOnDelete", "replaceWith",
	"deletedWith", "additionalSecretOutputs", "hideDiffs",
}

// ParseTemplate parses a full template document (§4.2).
func ParseTemplate(n synyaml.Node) (*Template, *diag.Bag) {
	bag := &diag.Bag{}
	obj, ok := n.(*synyaml.ObjectNode)
	if !ok {
		bag.Append(diag.At(diag.Error, n.Span(), "template must be an object", ""))
		return &Template{}, bag
	}

	t := &Template{Settings: map[string]Expr{}}
	for i := 0; i < obj.Len(); i++ {
		kvp := obj.Index(i)
		switch kvp.Key.Val {
		case "name":
			t.Name = scalarString(kvp.Value, bag)
		case "namespace":
			t.Namespace = scalarString(kvp.Value, bag)
		case "description":
			t.Description = scalarString(kvp.Value, bag)
		case "runtime":
			t.Runtime = scalarString(kvp.Value, bag)
		case "main":
			t.Main = scalarString(kvp.Value, bag)
		case "pulumi":
			if settingsObj, ok := kvp.Value.(*synyaml.ObjectNode); ok {
				for j := 0; j < settingsObj.Len(); j++ {
					s := settingsObj.Index(j)
					v, vdiags := ParseExpr(s.Value)
					bag.AppendBag(vdiags)
					t.Settings[s.Key.Val] = v
				}
			}
		case "config", "configuration":
			t.Config = append(t.Config, parseConfigMap(kvp.Value, bag)...)
		case "variables":
			t.Variables = append(t.Variables, parseVariablesMap(kvp.Value, bag)...)
		case "resources":
			t.Resources = append(t.Resources, parseResourcesMap(kvp.Value, bag)...)
		case "outputs":
			t.Outputs = append(t.Outputs, parsePropertyMapAsOutputs(kvp.Value, bag)...)
		case "components":
			t.Components = append(t.Components, parseComponentsMap(kvp.Value, bag)...)
		default:
			bag.Append(diag.At(diag.Warning, kvp.Key.Span(),
				"unknown template key '"+kvp.Key.Val+"'", diag.DidYouMeanHint(kvp.Key.Val, topLevelKeys)))
		}
	}
	return t, bag
}

func scalarString(n synyaml.Node, bag *diag.Bag) string {
	s, ok := n.(*synyaml.StringNode)
	if !ok {
		bag.Append(diag.At(diag.Error, n.Span(), "expected a string", ""))
		return ""
	}
	return s.Val
}

func parseConfigMap(n synyaml.Node, bag *diag.Bag) []ConfigEntry {
	obj, ok := n.(*synyaml.ObjectNode)
	if !ok {
		bag.Append(diag.At(diag.Error, n.Span(), "config must be an object", ""))
		return nil
	}
	entries := make([]ConfigEntry, 0, obj.Len())
	for i := 0; i < obj.Len(); i++ {
		kvp := obj.Index(i)
		entries = append(entries, parseConfigEntry(kvp.Key.Val, kvp.Key.Span(), kvp.Value, bag))
	}
	return entries
}

func parseConfigEntry(key string, keySpan source.Span, n synyaml.Node, bag *diag.Bag) ConfigEntry {
	e := ConfigEntry{Key: key, KeySpan: keySpan}

	// A bare scalar/expression config entry is shorthand for `{ default: <expr> }`.
	obj, ok := n.(*synyaml.ObjectNode)
	if !ok {
		v, vdiags := ParseExpr(n)
		bag.AppendBag(vdiags)
		e.Default = v
		return e
	}

	for i := 0; i < obj.Len(); i++ {
		kvp := obj.Index(i)
		switch kvp.Key.Val {
		case "type":
			e.Type = scalarString(kvp.Value, bag)
		case "secret":
			b, ok := kvp.Value.(*synyaml.BooleanNode)
			if ok {
				e.Secret = b.Val
			}
		case "default":
			v, vdiags := ParseExpr(kvp.Value)
			bag.AppendBag(vdiags)
			e.Default = v
		case "value":
			v, vdiags := ParseExpr(kvp.Value)
			bag.AppendBag(vdiags)
			e.Value = v
		case "items":
			sub := parseConfigEntry("items", kvp.Key.Span(), kvp.Value, bag)
			e.Items = &sub
		default:
			bag.Append(diag.At(diag.Warning, kvp.Key.Span(), "unknown config field '"+kvp.Key.Val+"'", ""))
		}
	}
	return e
}

func parseVariablesMap(n synyaml.Node, bag *diag.Bag) []VariableEntry {
	obj, ok := n.(*synyaml.ObjectNode)
	if !ok {
		bag.Append(diag.At(diag.Error, n.Span(), "variables must be an object", ""))
		return nil
	}
	entries := make([]VariableEntry, 0, obj.Len())
	for i := 0; i < obj.Len(); i++ {
		kvp := obj.Index(i)
		v, vdiags := ParseExpr(kvp.Value)
		bag.AppendBag(vdiags)
		entries = append(entries, VariableEntry{Key: kvp.Key.Val, KeySpan: kvp.Key.Span(), Value: v})
	}
	return entries
}

func parsePropertyMapAsOutputs(n synyaml.Node, bag *diag.Bag) []OutputEntry {
	obj, ok := n.(*synyaml.ObjectNode)
	if !ok {
		bag.Append(diag.At(diag.Error, n.Span(), "outputs must be an object", ""))
		return nil
	}
	entries := make([]OutputEntry, 0, obj.Len())
	for i := 0; i < obj.Len(); i++ {
		kvp := obj.Index(i)
		v, vdiags := ParseExpr(kvp.Value)
		bag.AppendBag(vdiags)
		entries = append(entries, OutputEntry{Key: kvp.Key.Val, KeySpan: kvp.Key.Span(), Value: v})
	}
	return entries
}

func parseResourcesMap(n synyaml.Node, bag *diag.Bag) []ResourceEntry {
	obj, ok := n.(*synyaml.ObjectNode)
	if !ok {
		bag.Append(diag.At(diag.Error, n.Span(), "resources must be an object", ""))
		return nil
	}
	entries := make([]ResourceEntry, 0, obj.Len())
	for i := 0; i < obj.Len(); i++ {
		kvp := obj.Index(i)
		entries = append(entries, parseResourceEntry(kvp.Key.Val, kvp.Key.Span(), kvp.Value, bag))
	}
	return entries
}

func parseResourceEntry(key string, keySpan source.Span, n synyaml.Node, bag *diag.Bag) ResourceEntry {
	r := ResourceEntry{LogicalName: key, KeySpan: keySpan}
	obj, ok := n.(*synyaml.ObjectNode)
	if !ok {
		bag.Append(diag.At(diag.Error, n.Span(), "resource '"+key+"' must be an object", ""))
		return r
	}
	for i := 0; i < obj.Len(); i++ {
		kvp := obj.Index(i)
		switch kvp.Key.Val {
		case "type":
			s, ok := kvp.Value.(*synyaml.StringNode)
			if !ok {
				bag.Append(diag.At(diag.Error, kvp.Value.Span(), "resource type must be a string", ""))
				continue
			}
			r.Type = String(s.Span(), s.Val)
		case "name":
			v, vdiags := ParseExpr(kvp.Value)
			bag.AppendBag(vdiags)
			r.ExplicitName = v
		case "defaultProvider":
			v, vdiags := ParseExpr(kvp.Value)
			bag.AppendBag(vdiags)
			r.DefaultProvider = v
		case "properties":
			switch pv := kvp.Value.(type) {
			case *synyaml.ObjectNode:
				r.Properties = map[string]Expr{}
				for j := 0; j < pv.Len(); j++ {
					p := pv.Index(j)
					v, vdiags := ParseExpr(p.Value)
					bag.AppendBag(vdiags)
					r.Properties[p.Key.Val] = v
					r.PropertyOrder = append(r.PropertyOrder, p.Key.Val)
				}
			default:
				v, vdiags := ParseExpr(kvp.Value)
				bag.AppendBag(vdiags)
				r.PropertiesSpread = v
			}
		case "options":
			r.Options = parseResourceOptions(kvp.Value, bag)
		case "get":
			r.Get = parseGetResource(kvp.Value, bag)
		default:
			bag.Append(diag.At(diag.Warning, kvp.Key.Span(),
				"unknown resource field '"+kvp.Key.Val+"'", diag.DidYouMeanHint(kvp.Key.Val, resourceKeys)))
		}
	}
	return r
}

func parseGetResource(n synyaml.Node, bag *diag.Bag) *GetResource {
	obj, ok := n.(*synyaml.ObjectNode)
	if !ok {
		bag.Append(diag.At(diag.Error, n.Span(), "get must be an object", ""))
		return nil
	}
	g := &GetResource{}
	for i := 0; i < obj.Len(); i++ {
		kvp := obj.Index(i)
		switch kvp.Key.Val {
		case "id":
			v, vdiags := ParseExpr(kvp.Value)
			bag.AppendBag(vdiags)
			g.ID = v
		case "state":
			if props, ok := kvp.Value.(*synyaml.ObjectNode); ok {
				g.Properties = map[string]Expr{}
				for j := 0; j < props.Len(); j++ {
					p := props.Index(j)
					v, vdiags := ParseExpr(p.Value)
					bag.AppendBag(vdiags)
					g.Properties[p.Key.Val] = v
				}
			}
		}
	}
	return g
}

func exprList(n synyaml.Node, bag *diag.Bag) []Expr {
	list, ok := n.(*synyaml.ListNode)
	if !ok {
		bag.Append(diag.At(diag.Error, n.Span(), "expected a list", ""))
		return nil
	}
	out := make([]Expr, list.Len())
	for i := 0; i < list.Len(); i++ {
		v, vdiags := ParseExpr(list.Index(i))
		bag.AppendBag(vdiags)
		out[i] = v
	}
	return out
}

func parseResourceOptions(n synyaml.Node, bag *diag.Bag) ResourceOptions {
	var o ResourceOptions
	obj, ok := n.(*synyaml.ObjectNode)
	if !ok {
		bag.Append(diag.At(diag.Error, n.Span(), "options must be an object", ""))
		return o
	}
	parseExprField := func(n synyaml.Node) Expr {
		v, vdiags := ParseExpr(n)
		bag.AppendBag(vdiags)
		return v
	}
	for i := 0; i < obj.Len(); i++ {
		kvp := obj.Index(i)
		lowerKey := strings.ToLower(kvp.Key.Val)
		canonical, known := optionCanonicalName(lowerKey)
		if known && canonical != kvp.Key.Val {
			bag.Append(diag.At(diag.Warning, kvp.Key.Span(),
				"'"+kvp.Key.Val+"' looks like a miscapitalization of '"+canonical+"'", ""))
		}
		switch lowerKey {
		case "aliases":
			o.Aliases = exprList(kvp.Value, bag)
		case "customtimeouts":
			o.CustomTimeouts = parseCustomTimeouts(kvp.Value, bag)
		case "deletebeforereplace":
			o.DeleteBeforeReplace = parseExprField(kvp.Value)
		case "dependson":
			o.DependsOn = exprList(kvp.Value, bag)
		case "ignorechanges":
			o.IgnoreChanges = exprList(kvp.Value, bag)
		case "import":
			o.Import = parseExprField(kvp.Value)
		case "parent":
			o.Parent = parseExprField(kvp.Value)
		case "protect":
			o.Protect = parseExprField(kvp.Value)
		case "provider":
			o.Provider = parseExprField(kvp.Value)
		case "providers":
			if providersObj, ok := kvp.Value.(*synyaml.ObjectNode); ok {
				o.Providers = map[string]Expr{}
				for j := 0; j < providersObj.Len(); j++ {
					p := providersObj.Index(j)
					o.Providers[p.Key.Val] = parseExprField(p.Value)
				}
			}
		case "version":
			o.Version = parseExprField(kvp.Value)
		case "plugindownloadurl":
			o.PluginDownloadURL = parseExprField(kvp.Value)
		case "replaceonchanges":
			o.ReplaceOnChanges = exprList(kvp.Value, bag)
		case "retainondelete":
			o.RetainOnDelete = parseExprField(kvp.Value)
		case "replacewith":
			o.ReplaceWith = parseExprField(kvp.Value)
		case "deletedwith":
			o.DeletedWith = parseExprField(kvp.Value)
		case "additionalsecretoutputs":
			o.AdditionalSecretOutputs = exprList(kvp.Value, bag)
		case "hidediffs":
			o.HideDiffs = exprList(kvp.Value, bag)
		default:
			bag.Append(diag.At(diag.Warning, kvp.Key.Span(),
				"unknown resource option '"+kvp.Key.Val+"'", diag.DidYouMeanHint(kvp.Key.Val, optionKeys)))
		}
	}
	return o
}

func optionCanonicalName(lower string) (string, bool) {
	for _, k := range optionKeys {
		if strings.ToLower(k) == lower {
			return k, true
		}
	}
	return "", false
}

func parseCustomTimeouts(n synyaml.Node, bag *diag.Bag) *CustomTimeouts {
	obj, ok := n.(*synyaml.ObjectNode)
	if !ok {
		bag.Append(diag.At(diag.Error, n.Span(), "customTimeouts must be an object", ""))
		return nil
	}
	ct := &CustomTimeouts{}
	for i := 0; i < obj.Len(); i++ {
		kvp := obj.Index(i)
		v, vdiags := ParseExpr(kvp.Value)
		bag.AppendBag(vdiags)
		switch kvp.Key.Val {
		case "create":
			ct.Create = v
		case "update":
			ct.Update = v
		case "delete":
			ct.Delete = v
		}
	}
	return ct
}

func parseComponentsMap(n synyaml.Node, bag *diag.Bag) []ComponentDecl {
	obj, ok := n.(*synyaml.ObjectNode)
	if !ok {
		bag.Append(diag.At(diag.Error, n.Span(), "components must be an object", ""))
		return nil
	}
	out := make([]ComponentDecl, 0, obj.Len())
	for i := 0; i < obj.Len(); i++ {
		kvp := obj.Index(i)
		out = append(out, parseComponentDecl(kvp.Key.Val, kvp.Key.Span(), kvp.Value, bag))
	}
	return out
}

func parseComponentDecl(key string, keySpan source.Span, n synyaml.Node, bag *diag.Bag) ComponentDecl {
	c := ComponentDecl{Key: key, KeySpan: keySpan}
	obj, ok := n.(*synyaml.ObjectNode)
	if !ok {
		bag.Append(diag.At(diag.Error, n.Span(), "component '"+key+"' must be an object", ""))
		return c
	}
	for i := 0; i < obj.Len(); i++ {
		kvp := obj.Index(i)
		switch kvp.Key.Val {
		case "inputs":
			if inputsObj, ok := kvp.Value.(*synyaml.ObjectNode); ok {
				c.Inputs = map[string]*ConfigEntry{}
				for j := 0; j < inputsObj.Len(); j++ {
					p := inputsObj.Index(j)
					entry := parseConfigEntry(p.Key.Val, p.Key.Span(), p.Value, bag)
					c.Inputs[p.Key.Val] = &entry
				}
			}
		case "variables":
			c.Variables = parseVariablesMap(kvp.Value, bag)
		case "resources":
			c.Resources = parseResourcesMap(kvp.Value, bag)
		case "outputs":
			c.Outputs = parsePropertyMapAsOutputs(kvp.Value, bag)
		default:
			bag.Append(diag.At(diag.Warning, kvp.Key.Span(), "unknown component field '"+kvp.Key.Val+"'", ""))
		}
	}
	return c
}
