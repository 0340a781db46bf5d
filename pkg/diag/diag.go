// Copyright 2026, the declstack authors. All rights reserved.

// Package diag implements the severity-tagged diagnostics collection shared
// by every phase of the pipeline: parsing, preprocessing, merging, graph
// construction, and evaluation. Diagnostics are appended to, never
// reordered; only Sort (called for display) orders them by severity.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/declstack/declstack/pkg/source"
)

// Severity of a diagnostic.
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Diagnostic is a single warning or error, optionally anchored to a span in
// the source arena.
type Diagnostic struct {
	Severity Severity
	Span     source.Span
	HasSpan  bool
	Summary  string
	Detail   string
	Shown    bool
}

func (d *Diagnostic) Error() string {
	if d.Detail == "" {
		return d.Summary
	}
	return d.Summary + "; " + d.Detail
}

// New creates a diagnostic with the given severity and no span.
func New(sev Severity, summary, detail string) *Diagnostic {
	return &Diagnostic{Severity: sev, Summary: summary, Detail: detail}
}

// At creates a diagnostic anchored to a span.
func At(sev Severity, sp source.Span, summary, detail string) *Diagnostic {
	return &Diagnostic{Severity: sev, Span: sp, HasSpan: true, Summary: summary, Detail: detail}
}

// Errorf and Warningf are convenience constructors without a span.
func Errorf(format string, args ...interface{}) *Diagnostic {
	return New(Error, fmt.Sprintf(format, args...), "")
}

func Warningf(format string, args ...interface{}) *Diagnostic {
	return New(Warning, fmt.Sprintf(format, args...), "")
}

// Bag is an append-only collection of diagnostics. The zero value is usable.
type Bag struct {
	items []*Diagnostic
}

// Append adds diagnostics to the bag, skipping nils so callers can pass
// through optional diagnostics without checking first.
func (b *Bag) Append(ds ...*Diagnostic) {
	for _, d := range ds {
		if d != nil {
			b.items = append(b.items, d)
		}
	}
}

// AppendBag merges another bag's contents in without reordering either.
func (b *Bag) AppendBag(other *Bag) {
	if other == nil {
		return
	}
	b.items = append(b.items, other.items...)
}

// HasErrors reports whether any diagnostic in the bag is an error.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// All returns the diagnostics in insertion order.
func (b *Bag) All() []*Diagnostic {
	return b.items
}

// Sorted returns a severity-ascending (warnings first) copy for display; ties
// preserve insertion order.
func (b *Bag) Sorted() []*Diagnostic {
	out := make([]*Diagnostic, len(b.items))
	copy(out, b.items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity < out[j].Severity })
	return out
}

// Render formats a diagnostic as "<file>:<line>:<col>: <severity>: <summary>; <detail>".
// If the diagnostic has no span or the arena is nil, the file:line:col prefix is omitted.
func Render(arena *source.Arena, d *Diagnostic) string {
	var sb strings.Builder
	if d.HasSpan && arena != nil {
		f := arena.File(d.Span.File)
		line, col := arena.Pos(d.Span.File, d.Span.Start)
		fmt.Fprintf(&sb, "%s:%d:%d: ", f.Name, line, col)
	}
	fmt.Fprintf(&sb, "%s: %s", d.Severity, d.Summary)
	if d.Detail != "" {
		fmt.Fprintf(&sb, "; %s", d.Detail)
	}
	return sb.String()
}
