// Copyright 2026, the declstack authors. All rights reserved.

// Package loader discovers and merges the YAML files making up a project
// (§4.4): the required `Pulumi.yaml` plus any optional `Pulumi.<suffix>.yaml`
// siblings, each independently preprocessed, parsed, and then unioned into a
// single template sharing one namespace. Directory listing goes through
// afero so the whole pipeline stays testable against an in-memory
// filesystem, matching the teacher's own packages/file.go approach.
package loader

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/declstack/declstack/pkg/ast"
	"github.com/declstack/declstack/pkg/diag"
	"github.com/declstack/declstack/pkg/preprocess"
	"github.com/declstack/declstack/pkg/source"
	"github.com/declstack/declstack/pkg/synyaml"
)

const mainFileName = "Pulumi.yaml"

// SourceMap records which file declared each merged name, so downstream
// diagnostics can name the originating file (§4.4).
type SourceMap map[string]string

// Result is the outcome of loading and merging a project directory.
type Result struct {
	Template  *ast.Template
	SourceMap SourceMap
	Diags     *diag.Bag
	Arena     *source.Arena
}

// DiscoverFiles lists the main file plus every `Pulumi.<suffix>.yaml`
// sibling in dir, main file first, the rest sorted alphabetically by suffix.
func DiscoverFiles(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading project directory %s", dir)
	}

	var mainPath string
	var suffixed []string
	for _, e := range entries {
		name := e.Name()
		if name == mainFileName || name == "Pulumi.yml" {
			mainPath = filepath.Join(dir, name)
			continue
		}
		if strings.HasPrefix(name, "Pulumi.") && strings.HasSuffix(name, ".yaml") {
			suffixed = append(suffixed, name)
		}
	}
	if mainPath == "" {
		return nil, fmt.Errorf("no Pulumi.yaml in %s", dir)
	}
	sort.Strings(suffixed)

	files := make([]string, 0, 1+len(suffixed))
	files = append(files, mainPath)
	for _, s := range suffixed {
		files = append(files, filepath.Join(dir, s))
	}
	return files, nil
}

// Load discovers, preprocesses, parses, and merges every file in dir.
func Load(fs afero.Fs, dir string, pp preprocess.Preprocessor, ctx preprocess.Context) *Result {
	bag := &diag.Bag{}
	files, err := DiscoverFiles(fs, dir)
	if err != nil {
		bag.Append(diag.Errorf("%s", err.Error()))
		return &Result{Diags: bag}
	}

	arena := source.NewArena()

	sourceMap := SourceMap{}
	merged := &ast.Template{Settings: map[string]ast.Expr{}}

	for i, path := range files {
		isMain := i == 0
		raw, err := afero.ReadFile(fs, path)
		if err != nil {
			bag.Append(diag.Errorf("%s", errors.Wrapf(err, "reading %s", path).Error()))
			continue
		}

		rendered, err := pp.Preprocess(string(raw), path, ctx)
		if err != nil {
			bag.Append(diag.Errorf("%s", errors.Wrapf(err, "preprocessing %s", path).Error()))
			continue
		}

		fileID := arena.AddFile(path, rendered)
		node, parseDiags := synyaml.Decode(arena, fileID)
		bag.AppendBag(parseDiags)
		if parseDiags.HasErrors() {
			continue
		}

		tpl, tplDiags := ast.ParseTemplate(node)
		bag.AppendBag(tplDiags)

		if !isMain && hasMainOnlyFields(tpl) {
			bag.Append(diag.Errorf(
				"%s: %s is not the main project file and must not declare 'config' together with resource/variable declarations", path, filepath.Base(path)))
			continue
		}

		mergeInto(merged, tpl, path, isMain, sourceMap, bag)
	}

	return &Result{Template: merged, SourceMap: sourceMap, Diags: bag, Arena: arena}
}

// hasMainOnlyFields reports whether tpl declares config alongside
// variables/resources/outputs/components, which is only legal in the main
// file (§4.4).
func hasMainOnlyFields(tpl *ast.Template) bool {
	return len(tpl.Config) > 0 && (len(tpl.Variables) > 0 || len(tpl.Resources) > 0 ||
		len(tpl.Outputs) > 0 || len(tpl.Components) > 0)
}

func mergeInto(merged, tpl *ast.Template, path string, isMain bool, sm SourceMap, bag *diag.Bag) {
	if isMain {
		merged.Name = tpl.Name
		merged.Namespace = tpl.Namespace
		merged.Description = tpl.Description
		merged.Runtime = tpl.Runtime
		merged.Main = tpl.Main
		merged.Settings = tpl.Settings
		merged.Config = tpl.Config
		for _, c := range tpl.Config {
			sm[c.Key] = path
		}
	}

	for _, v := range tpl.Variables {
		if existing, ok := sm[v.Key]; ok {
			bag.Append(diag.At(diag.Error, v.KeySpan,
				fmt.Sprintf("duplicate variable '%s'", v.Key),
				fmt.Sprintf("also declared in %s", existing)))
			continue
		}
		sm[v.Key] = path
		merged.Variables = append(merged.Variables, v)
	}
	for _, r := range tpl.Resources {
		if existing, ok := sm[r.LogicalName]; ok {
			bag.Append(diag.At(diag.Error, r.KeySpan,
				fmt.Sprintf("duplicate resource '%s'", r.LogicalName),
				fmt.Sprintf("also declared in %s", existing)))
			continue
		}
		sm[r.LogicalName] = path
		merged.Resources = append(merged.Resources, r)
	}
	for _, o := range tpl.Outputs {
		if existing, ok := sm[o.Key]; ok {
			bag.Append(diag.At(diag.Error, o.KeySpan,
				fmt.Sprintf("duplicate output '%s'", o.Key),
				fmt.Sprintf("also declared in %s", existing)))
			continue
		}
		sm[o.Key] = path
		merged.Outputs = append(merged.Outputs, o)
	}
	for _, c := range tpl.Components {
		if existing, ok := sm[c.Key]; ok {
			bag.Append(diag.At(diag.Error, c.KeySpan,
				fmt.Sprintf("duplicate component '%s'", c.Key),
				fmt.Sprintf("also declared in %s", existing)))
			continue
		}
		sm[c.Key] = path
		merged.Components = append(merged.Components, c)
	}
}
