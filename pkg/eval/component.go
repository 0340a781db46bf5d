// Copyright 2026, the declstack authors. All rights reserved.

package eval

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/declstack/declstack/pkg/ast"
	"github.com/declstack/declstack/pkg/diag"
	"github.com/declstack/declstack/pkg/graph"
	"github.com/declstack/declstack/pkg/value"
)

// runComponents expands every `components:` entry after the root template's
// own config/variable/resource nodes have settled (§4.6.7): component inputs
// are evaluated against the root scope, the component's nested template gets
// its own dependency graph and its own child Evaluator, and the component's
// declared outputs are exposed back to the root template as if it were a
// single (remote) resource.
//
// Components may not reference one another; only config/variables/resources
// already resolved in the root scope are visible to a component's inputs.
func (ev *Evaluator) runComponents(ctx context.Context) error {
	var errs *multierror.Error
	for i := range ev.template.Components {
		c := &ev.template.Components[i]
		if err := ev.runComponent(ctx, c); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("component '%s': %w", c.Key, err))
		}
	}
	return errs.ErrorOrNil()
}

func (ev *Evaluator) runComponent(ctx context.Context, c *ast.ComponentDecl) error {
	nested := &ast.Template{
		Name:      c.Key,
		Variables: c.Variables,
		Resources: c.Resources,
		Outputs:   c.Outputs,
	}

	childScope := newScope()
	for name, input := range c.Inputs {
		var v value.Value
		var err error
		switch {
		case input.Value != nil:
			v, err = ev.Eval(ctx, input.Value)
		case input.Default != nil:
			v, err = ev.Eval(ctx, input.Default)
		default:
			v = value.Null()
		}
		if err != nil {
			// An input expression is an ordinary expression-evaluation
			// failure, not a structural defect in the component: it
			// degrades to a diagnostic and an unknown input rather than
			// aborting the whole component (§7's propagation policy).
			v = ev.typeMismatch(c.KeySpan, fmt.Sprintf("component '%s' input '%s': %s", c.Key, name, err.Error()), "")
		}
		if input.Secret {
			v = value.Secret(v)
		}
		childScope.config[name] = v
	}

	g, bag := graph.Build(nested)
	if bag.HasErrors() {
		return fmt.Errorf("invalid dependency graph: %s", bag.All()[0].Error())
	}
	order, bag := g.TopoSort()
	if bag.HasErrors() {
		return fmt.Errorf("dependency cycle: %s", bag.All()[0].Error())
	}

	urn := fmt.Sprintf("urn:declstack:component::%s::%s", ev.opts.StackName, c.Key)

	child := &Evaluator{
		opts:               ev.opts,
		template:           nested,
		graph:              g,
		order:              order,
		scope:              childScope,
		componentParentURN: urn,
		outputs:            map[string]value.Value{},
		packageRefs:        ev.packageRefs,
		diags:              &diag.Bag{},
	}
	// Run the child regardless of whether it returns an error: its partial
	// diagnostics and whatever outputs it did manage to produce are still
	// valuable to the parent and must not be silently dropped (§7's
	// propagation policy).
	runErr := child.Run(ctx)

	ev.mu.Lock()
	ev.diags.AppendBag(child.diags)

	keys := make([]string, 0, len(child.outputs))
	fields := make(map[string]value.Value, len(child.outputs))
	for k, v := range child.outputs {
		keys = append(keys, k)
		fields[k] = v
	}
	outputs := value.Object(keys, fields)
	ev.scope.resources[c.Key] = ResourceRecord{URN: urn, Outputs: outputs, Custom: false}
	ev.mu.Unlock()

	return runErr
}
