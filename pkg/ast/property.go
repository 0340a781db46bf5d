// Copyright 2026, the declstack authors. All rights reserved.

package ast

import "github.com/declstack/declstack/pkg/interp"

// PropertyAccess is the parsed form of a "${a.b[0]}" path. It is a thin
// alias over interp.PathAccess so the AST doesn't need its own copy of the
// accessor grammar.
type PropertyAccess = interp.PathAccess

// PropertyName, PropertySubscript re-export interp's accessor variants under
// the names used throughout the AST and evaluator packages.
type (
	PropertyName      = interp.Name
	PropertyStringKey = interp.StringSubscript
	PropertyIndex     = interp.IntSubscript
)
