// Copyright 2026, the declstack authors. All rights reserved.

// Package names implements the identifier legalization and collision
// resolution used to assign a legal target-language name to every
// config/output/variable/resource/component declared in a merged template
// (§4.8). The lower-camel-case conversion step is grounded on the teacher's
// codegen package, which performs the analogous Pascal-case conversion when
// emitting generated programs (gen_program.go), generalized here to
// lower-camel-case and wired to a different collision-resolution scheme.
package names

import (
	"sort"
	"strconv"
	"unicode"

	"github.com/iancoleman/strcase"
)

// Category groups the kind of declaration a name belongs to, selecting the
// collision-resolution suffix tried before falling back to numeric suffixes.
type Category int

const (
	CategoryConfig Category = iota
	CategoryOutput
	CategoryVariable
	CategoryResource
	CategoryComponent
)

func (c Category) suffix() string {
	switch c {
	case CategoryVariable:
		return "Var"
	case CategoryResource:
		return "Resource"
	case CategoryComponent:
		return "Component"
	default:
		return ""
	}
}

// Entry is one name to assign, grouped by category.
type Entry struct {
	SourceName string
	Category   Category
}

// Assigner assigns collision-free legal identifiers given a reserved-word
// seed set.
type Assigner struct {
	seed     map[string]bool
	assigned map[string]bool
}

// New creates an Assigner seeded with the target language's reserved words.
func New(reserved []string) *Assigner {
	a := &Assigner{seed: map[string]bool{}, assigned: map[string]bool{}}
	for _, w := range reserved {
		a.seed[w] = true
	}
	return a
}

// Assign processes entries grouped by category, sorted alphabetically by
// source name within each category (the spec's mandated sort), and returns
// the source-name -> assigned-name mapping. Calling Assign more than once on
// the same Assigner accumulates into the same collision set, matching the
// "assign across every category" description in §4.8.
func (a *Assigner) Assign(entries []Entry) map[string]string {
	byCategory := map[Category][]string{}
	for _, e := range entries {
		byCategory[e.Category] = append(byCategory[e.Category], e.SourceName)
	}

	result := make(map[string]string, len(entries))
	for _, cat := range []Category{CategoryConfig, CategoryOutput, CategoryVariable, CategoryResource, CategoryComponent} {
		names := byCategory[cat]
		sort.Strings(names)
		for _, source := range names {
			result[source] = a.assignOne(source, cat)
		}
	}
	return result
}

func (a *Assigner) assignOne(source string, cat Category) string {
	base := strcase.ToLowerCamel(legalize(source))
	if base == "" {
		base = "_"
	}

	candidate := base
	if a.isTaken(candidate) {
		if s := cat.suffix(); s != "" {
			candidate = base + s
		}
	}
	if a.isTaken(candidate) {
		for i := 0; ; i++ {
			candidate = base + cat.suffix() + strconv.Itoa(i)
			if !a.isTaken(candidate) {
				break
			}
		}
	}

	a.assigned[candidate] = true
	return candidate
}

func (a *Assigner) isTaken(name string) bool {
	return a.seed[name] || a.assigned[name]
}

// legalize rewrites source into a string containing only ASCII
// letters/digits/underscore/dollar, with a non-digit leading character
// (prepending "_" if the source starts with a digit). This runs before
// case conversion so strcase only ever sees clean identifier characters.
func legalize(source string) string {
	if source == "" {
		return "_"
	}
	runes := []rune(source)
	out := make([]rune, 0, len(runes)+1)

	first := runes[0]
	if unicode.IsDigit(first) {
		out = append(out, '_')
	}
	for _, r := range runes {
		if isIdentChar(r) {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

func isIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$'
}
