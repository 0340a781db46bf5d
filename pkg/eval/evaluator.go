// Copyright 2026, the declstack authors. All rights reserved.

// Package eval implements the taint-propagating template evaluator (§4.6):
// it walks a merged template's dependency graph in topological (and, within
// a level, concurrent) order, resolving every config/variable/resource/
// output node to a value.Value and dispatching resource side effects through
// a Callback. The node-walking driver is grounded on the teacher's
// pulumiyaml.Evaluate (eval_exprs.go/analyser.go), generalized to the
// declstack value model and to level-parallel scheduling; level-parallel
// error aggregation reuses hashicorp/go-multierror exactly as the teacher's
// diagnostics collection does elsewhere in the corpus.
package eval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/declstack/declstack/pkg/ast"
	"github.com/declstack/declstack/pkg/config"
	"github.com/declstack/declstack/pkg/diag"
	"github.com/declstack/declstack/pkg/graph"
	"github.com/declstack/declstack/pkg/source"
	"github.com/declstack/declstack/pkg/value"
)

// ResourceRecord is the registered state of one resource node: its identity
// plus the outputs the orchestrator (or mock) returned for it.
type ResourceRecord struct {
	URN     string
	ID      string
	Outputs value.Value // always a KindObject value
	Custom  bool
}

// scope is the set of named bindings visible to expression evaluation within
// one template (the root template, or one component's nested template).
type scope struct {
	config    map[string]value.Value
	variables map[string]value.Value
	resources map[string]ResourceRecord
}

func newScope() *scope {
	return &scope{
		config:    map[string]value.Value{},
		variables: map[string]value.Value{},
		resources: map[string]ResourceRecord{},
	}
}

// Options configures one evaluation run (§6's engine-facing settings plus
// §4.6's stack identity fields).
type Options struct {
	Callback      Callback
	DryRun        bool
	Organization  string
	ProjectName   string
	StackName     string
	Cwd           string
	RootDirectory string
	StackURN      string
	Parallel      int // max goroutines per dependency level; 0 means unbounded
	SchemaStore   SchemaStore
}

// SchemaStore resolves a type token to the input/output property shape a
// provider package declares for it (§3's read-only schema lookup). Resource
// and invoke evaluation consult it only to decide which additional outputs
// must be treated as secret; a nil store (or one that always misses) simply
// disables that enrichment.
type SchemaStore interface {
	SecretOutputs(typeToken string) []string
}

// NoSchemaStore never has answers; evaluation proceeds with no
// schema-derived secret outputs.
type NoSchemaStore struct{}

func (NoSchemaStore) SecretOutputs(string) []string { return nil }

// Evaluator walks one template's dependency graph to completion.
type Evaluator struct {
	opts     Options
	template *ast.Template
	graph    *graph.Graph
	order    []string

	scope              *scope
	componentParentURN string

	outputs map[string]value.Value

	packageRefsMu sync.Mutex
	packageRefs   map[string]PackageRef

	mu    sync.Mutex
	diags *diag.Bag
}

// New builds an Evaluator for template t, whose dependency graph must already
// be built and topologically ordered (ordering errors should have already
// stopped the pipeline before an Evaluator is constructed).
func New(t *ast.Template, g *graph.Graph, order []string, opts Options) *Evaluator {
	if opts.Callback == nil {
		opts.Callback = &NoopCallback{}
	}
	if opts.SchemaStore == nil {
		opts.SchemaStore = NoSchemaStore{}
	}
	return &Evaluator{
		opts:        opts,
		template:    t,
		graph:       g,
		order:       order,
		scope:       newScope(),
		outputs:     map[string]value.Value{},
		packageRefs: map[string]PackageRef{},
		diags:       &diag.Bag{},
	}
}

// RegisterPackage resolves a parameterized provider package to a PackageRef,
// memoizing by name+version+downloadURL so a package referenced by several
// resources' `options.version`/`options.pluginDownloadURL` is only
// registered with the orchestrator once (§4.6.1).
func (ev *Evaluator) RegisterPackage(ctx context.Context, name, version, downloadURL string, parameterization map[string]string) (PackageRef, error) {
	key := name + "@" + version + "@" + downloadURL
	ev.packageRefsMu.Lock()
	if ref, ok := ev.packageRefs[key]; ok {
		ev.packageRefsMu.Unlock()
		return ref, nil
	}
	ev.packageRefsMu.Unlock()

	ref, err := ev.opts.Callback.RegisterPackage(ctx, name, version, downloadURL, parameterization)
	if err != nil {
		return "", err
	}

	ev.packageRefsMu.Lock()
	ev.packageRefs[key] = ref
	ev.packageRefsMu.Unlock()
	return ref, nil
}

// typeMismatch records an evaluation-time diagnostic (a type mismatch, an
// unknown identifier, a missing field, an out-of-bounds index, ...) and
// returns the Unknown value the caller should substitute in its place.
// Per §7's propagation policy, expression-evaluation errors taint their
// result and let the rest of the graph keep evaluating; they never abort
// Run the way a resource registration's callback failure does.
func (ev *Evaluator) typeMismatch(span source.Span, summary, detail string) value.Value {
	ev.mu.Lock()
	ev.diags.Append(diag.At(diag.Error, span, summary, detail))
	ev.mu.Unlock()
	return value.Unknown()
}

// Diagnostics returns every diagnostic accumulated during Run.
func (ev *Evaluator) Diagnostics() *diag.Bag { return ev.diags }

// Outputs returns the evaluated `outputs:` block after Run completes.
func (ev *Evaluator) Outputs() map[string]value.Value { return ev.outputs }

// Resources returns every resource record registered during Run, keyed by
// logical name.
func (ev *Evaluator) Resources() map[string]ResourceRecord { return ev.scope.resources }

// Run evaluates every node in dependency order, grouping same-level nodes so
// they run concurrently (§5), then evaluates the `outputs:` block.
func (ev *Evaluator) Run(ctx context.Context) error {
	byLevel := map[int][]string{}
	maxLevel := 0
	for _, name := range ev.order {
		n := ev.graph.Nodes[name]
		byLevel[n.Level] = append(byLevel[n.Level], name)
		if n.Level > maxLevel {
			maxLevel = n.Level
		}
	}

	// Every level runs regardless of whether an earlier one produced a hard
	// error: a failed resource registration only ever removes that one
	// resource (and its dependents, which degrade to unknown identifiers)
	// from the graph, it never stops unrelated subgraphs from evaluating or
	// the outputs block from being attempted (§7's propagation policy, the
	// Reference-errors taxonomy's "evaluation of unrelated subgraphs may
	// still proceed... but the final result is failed").
	var errs *multierror.Error
	for level := 1; level <= maxLevel; level++ {
		names := byLevel[level]
		sort.Strings(names)
		if err := ev.runLevel(ctx, names); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := ev.runComponents(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}

	for _, o := range ev.template.Outputs {
		v, err := ev.Eval(ctx, o.Value)
		if err != nil {
			ev.diags.Append(diag.At(diag.Error, o.KeySpan, fmt.Sprintf("output '%s': %s", o.Key, err.Error()), ""))
			continue
		}
		ev.outputs[o.Key] = v
	}

	if ev.diags.HasErrors() {
		n := 0
		for _, d := range ev.diags.All() {
			if d.Severity == diag.Error {
				n++
			}
		}
		errs = multierror.Append(errs, fmt.Errorf("evaluation failed with %d error(s)", n))
	}
	return errs.ErrorOrNil()
}

func (ev *Evaluator) runLevel(ctx context.Context, names []string) error {
	limit := ev.opts.Parallel
	if limit <= 0 {
		limit = len(names)
		if limit == 0 {
			limit = 1
		}
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	var errs *multierror.Error
	var errsMu sync.Mutex

	for _, name := range names {
		name := name
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := ev.runNode(ctx, name); err != nil {
				errsMu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
				errsMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if errs != nil {
		return errs.ErrorOrNil()
	}
	return nil
}

// runNode evaluates one graph node. Only graph.KindResource can return a
// hard error: registering or reading a resource makes a real Callback call,
// and a failure there is fatal to that node (§4.6.5 step 6). Config and
// variable evaluation never reach an external system, so their failures are
// ordinary expression-evaluation errors that become diagnostics instead.
func (ev *Evaluator) runNode(ctx context.Context, name string) error {
	n := ev.graph.Nodes[name]
	switch n.Kind {
	case graph.KindConfig:
		ev.runConfig(ctx, n.Config)
		return nil
	case graph.KindVariable:
		v, err := ev.Eval(ctx, n.Variable.Value)
		if err != nil {
			v = ev.typeMismatch(n.Variable.KeySpan, fmt.Sprintf("variable '%s': %s", n.Name, err.Error()), "")
		}
		ev.mu.Lock()
		ev.scope.variables[n.Name] = v
		ev.mu.Unlock()
		return nil
	case graph.KindResource:
		return ev.registerResourceNode(ctx, n.Resource)
	}
	return nil
}

func (ev *Evaluator) runConfig(ctx context.Context, c *ast.ConfigEntry) {
	if c.Value != nil {
		v, err := ev.Eval(ctx, c.Value)
		if err != nil {
			v = ev.typeMismatch(c.KeySpan, fmt.Sprintf("config '%s': %s", c.Key, err.Error()), "")
		}
		ev.mu.Lock()
		ev.scope.config[c.Key] = v
		ev.mu.Unlock()
		return
	}

	if c.Type != "" {
		if _, ok := config.ParseType(c.Type); !ok {
			ev.mu.Lock()
			ev.diags.Append(diag.At(diag.Error, c.KeySpan, fmt.Sprintf("config '%s': unknown type '%s'", c.Key, c.Type), ""))
			ev.mu.Unlock()
		}
	}

	var v value.Value
	if c.Default != nil {
		dv, err := ev.Eval(ctx, c.Default)
		if err != nil {
			dv = ev.typeMismatch(c.KeySpan, fmt.Sprintf("config '%s' default: %s", c.Key, err.Error()), "")
		}
		v = dv
	} else {
		v = value.Null()
	}

	if c.Secret {
		v = value.Secret(v)
	}

	ev.mu.Lock()
	ev.scope.config[c.Key] = v
	ev.mu.Unlock()
}
