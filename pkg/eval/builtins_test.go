// Copyright 2026, the declstack authors. All rights reserved.

package eval_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declstack/declstack/pkg/ast"
	"github.com/declstack/declstack/pkg/eval"
	"github.com/declstack/declstack/pkg/graph"
	"github.com/declstack/declstack/pkg/source"
	"github.com/declstack/declstack/pkg/synyaml"
	"github.com/declstack/declstack/pkg/value"
)

// evalOne parses a single-variable template, runs it, and returns the
// evaluator regardless of whether Run reported an error, so error-path
// tests can inspect diagnostics and the Unknown substitution directly.
func evalOne(t *testing.T, yamlSrc string, opts eval.Options) *eval.Evaluator {
	t.Helper()
	tpl := mustParse(t, yamlSrc)
	g, bag := graph.Build(tpl)
	require.False(t, bag.HasErrors(), "graph build: %v", bag.All())
	order, bag := g.TopoSort()
	require.False(t, bag.HasErrors(), "toposort: %v", bag.All())
	ev := eval.New(tpl, g, order, opts)
	_ = ev.Run(context.Background())
	return ev
}

func assertUnknownWithDiagnostic(t *testing.T, ev *eval.Evaluator, output string) {
	t.Helper()
	assert.True(t, ev.Outputs()[output].IsUnknown(), "expected output %q to be unknown", output)
	assert.NotEmpty(t, ev.Diagnostics().All(), "expected a diagnostic to be recorded")
}

func TestBuiltins_Join(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::join: [", ", ["a", "b", "c"]]
outputs:
  out: ${v}
`), eval.Options{})
		s, _ := ev.Outputs()["out"].AsString()
		assert.Equal(t, "a, b, c", s)
	})
	t.Run("type error - values not a list", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::join: [", ", "not-a-list"]
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_Split(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::split: ["/", "a/b/c"]
outputs:
  out: ${v[1]}
`), eval.Options{})
		s, _ := ev.Outputs()["out"].AsString()
		assert.Equal(t, "b", s)
	})
	t.Run("type error - source not a string", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::split: ["/", [1, 2]]
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_Select(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::select: [1, ["x", "y", "z"]]
outputs:
  out: ${v}
`), eval.Options{})
		s, _ := ev.Outputs()["out"].AsString()
		assert.Equal(t, "y", s)
	})
	t.Run("type error - index out of range", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::select: [5, ["x", "y", "z"]]
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})

	overflow := []struct {
		name  string
		index string
	}{
		{"nan", ".nan"},
		{"positive infinity", ".inf"},
		{"negative index", "-1"},
		{"huge exponent", "1e300"},
	}
	for _, tc := range overflow {
		t.Run("overflow index "+tc.name, func(t *testing.T) {
			ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::select: [`+tc.index+`, ["x", "y", "z"]]
outputs:
  out: ${v}
`, eval.Options{})
			assertUnknownWithDiagnostic(t, ev, "out")
		})
	}
}

func TestBuiltins_ToBase64(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::toBase64: "hi"
outputs:
  out: ${v}
`), eval.Options{})
		s, _ := ev.Outputs()["out"].AsString()
		assert.Equal(t, "aGk=", s)
	})
	t.Run("type error - not a string", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::toBase64: [1, 2]
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_FromBase64(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::fromBase64: "aGk="
outputs:
  out: ${v}
`), eval.Options{})
		s, _ := ev.Outputs()["out"].AsString()
		assert.Equal(t, "hi", s)
	})
	t.Run("type error - invalid base64", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::fromBase64: "not valid base64!!"
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_Secret(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::secret: "classified"
outputs:
  out: ${v}
`), eval.Options{})
		out := ev.Outputs()["out"]
		assert.True(t, out.IsSecret())
		s, _ := out.Unwrap().AsString()
		assert.Equal(t, "classified", s)
	})
}

func TestBuiltins_ReadFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "greeting.txt", "hello from disk")

	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::readFile: greeting.txt
outputs:
  out: ${v}
`), eval.Options{Cwd: dir})
		s, _ := ev.Outputs()["out"].AsString()
		assert.Equal(t, "hello from disk", s)
	})
	t.Run("type error - path not a string", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::readFile: [1, 2]
outputs:
  out: ${v}
`, eval.Options{Cwd: dir})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
	t.Run("type error - file does not exist", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::readFile: does-not-exist.txt
outputs:
  out: ${v}
`, eval.Options{Cwd: dir})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_Abs(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::abs: -4
outputs:
  out: ${v}
`), eval.Options{})
		n, _ := ev.Outputs()["out"].AsNumber()
		assert.Equal(t, 4.0, n)
	})
	t.Run("type error - not a number", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::abs: "nope"
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_Floor(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::floor: 4.7
outputs:
  out: ${v}
`), eval.Options{})
		n, _ := ev.Outputs()["out"].AsNumber()
		assert.Equal(t, 4.0, n)
	})
	t.Run("type error - not a number", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::floor: "nope"
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_Ceil(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::ceil: 4.2
outputs:
  out: ${v}
`), eval.Options{})
		n, _ := ev.Outputs()["out"].AsNumber()
		assert.Equal(t, 5.0, n)
	})
	t.Run("type error - not a number", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::ceil: "nope"
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_Max(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::max: [1, 9, 3]
outputs:
  out: ${v}
`), eval.Options{})
		n, _ := ev.Outputs()["out"].AsNumber()
		assert.Equal(t, 9.0, n)
	})
	t.Run("type error - element not a number", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::max: [1, "nope", 3]
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_Min(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::min: [5, 1, 3]
outputs:
  out: ${v}
`), eval.Options{})
		n, _ := ev.Outputs()["out"].AsNumber()
		assert.Equal(t, 1.0, n)
	})
	t.Run("type error - empty list", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::min: []
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_StringLen(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::stringLen: "hello"
outputs:
  out: ${v}
`), eval.Options{})
		n, _ := ev.Outputs()["out"].AsNumber()
		assert.Equal(t, 5.0, n)
	})
	t.Run("type error - not a string", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::stringLen: [1, 2]
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_Substring(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::substring: ["hello world", 6, 5]
outputs:
  out: ${v}
`), eval.Options{})
		s, _ := ev.Outputs()["out"].AsString()
		assert.Equal(t, "world", s)
	})
	t.Run("type error - out of range", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::substring: ["hi", 0, 50]
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})

	overflow := []struct {
		name  string
		field string
		value string
	}{
		{"start nan", "start", ".nan"},
		{"start +inf", "start", ".inf"},
		{"start negative", "start", "-1"},
		{"start huge exponent", "start", "1e300"},
	}
	for _, tc := range overflow {
		t.Run("overflow "+tc.name, func(t *testing.T) {
			ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::substring: ["hello world", `+tc.value+`, 1]
outputs:
  out: ${v}
`, eval.Options{})
			assertUnknownWithDiagnostic(t, ev, "out")
		})
	}
}

func TestBuiltins_TimeUTC(t *testing.T) {
	ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::timeUtc: {}
outputs:
  out: ${v}
`), eval.Options{})
	_, ok := ev.Outputs()["out"].AsString()
	assert.True(t, ok)
}

func TestBuiltins_TimeUnix(t *testing.T) {
	ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::timeUnix: {}
outputs:
  out: ${v}
`), eval.Options{})
	_, ok := ev.Outputs()["out"].AsNumber()
	assert.True(t, ok)
}

func TestBuiltins_UUID(t *testing.T) {
	ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::uuid: {}
outputs:
  out: ${v}
`), eval.Options{})
	s, ok := ev.Outputs()["out"].AsString()
	assert.True(t, ok)
	assert.Len(t, s, 36)
}

func TestBuiltins_RandomString(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::randomString: 12
outputs:
  out: ${v}
`), eval.Options{})
		s, _ := ev.Outputs()["out"].AsString()
		assert.Len(t, s, 12)
	})
	t.Run("type error - length exceeds maximum", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::randomString: 100000000
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})

	overflow := []struct {
		name   string
		length string
	}{
		{"nan", ".nan"},
		{"positive infinity", ".inf"},
		{"negative", "-1"},
		{"huge exponent", "1e300"},
	}
	for _, tc := range overflow {
		t.Run("overflow "+tc.name, func(t *testing.T) {
			ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::randomString: `+tc.length+`
outputs:
  out: ${v}
`, eval.Options{})
			assertUnknownWithDiagnostic(t, ev, "out")
		})
	}
}

func TestBuiltins_DateFormat(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::dateFormat: ["2024-01-02T15:04:05Z", "2006-01-02"]
outputs:
  out: ${v}
`), eval.Options{})
		s, _ := ev.Outputs()["out"].AsString()
		assert.Equal(t, "2024-01-02", s)
	})
	t.Run("type error - unparseable timestamp", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::dateFormat: ["not a date", "2006-01-02"]
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_StringAsset(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::stringAsset: "asset text"
outputs:
  out: ${v}
`), eval.Options{})
		_, ok := ev.Outputs()["out"].AsAsset()
		assert.True(t, ok)
	})
	t.Run("type error - source not a string", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::stringAsset: [1, 2]
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_FileAsset(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::fileAsset: "./index.html"
outputs:
  out: ${v}
`), eval.Options{})
		a, ok := ev.Outputs()["out"].AsAsset()
		require.True(t, ok)
		assert.Equal(t, "./index.html", a.Path)
	})
	t.Run("type error - source not a string", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::fileAsset: [1, 2]
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_RemoteAsset(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::remoteAsset: "https://example.com/a.txt"
outputs:
  out: ${v}
`), eval.Options{})
		a, ok := ev.Outputs()["out"].AsAsset()
		require.True(t, ok)
		assert.Equal(t, "https://example.com/a.txt", a.URI)
	})
	t.Run("type error - source not a string", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::remoteAsset: [1, 2]
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_FileArchive(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::fileArchive: "./site.zip"
outputs:
  out: ${v}
`), eval.Options{})
		a, ok := ev.Outputs()["out"].AsArchive()
		require.True(t, ok)
		assert.Equal(t, "./site.zip", a.Path)
	})
	t.Run("type error - source not a string", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::fileArchive: [1, 2]
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_RemoteArchive(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::remoteArchive: "https://example.com/a.zip"
outputs:
  out: ${v}
`), eval.Options{})
		a, ok := ev.Outputs()["out"].AsArchive()
		require.True(t, ok)
		assert.Equal(t, "https://example.com/a.zip", a.URI)
	})
	t.Run("type error - source not a string", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::remoteArchive: [1, 2]
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_ToJSON(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::toJSON:
      a: 1
      b: [true, null]
outputs:
  out: ${v}
`), eval.Options{})
		s, _ := ev.Outputs()["out"].AsString()
		assert.JSONEq(t, `{"a":1,"b":[true,null]}`, s)
	})
	t.Run("type error - cannot serialize an asset", func(t *testing.T) {
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::toJSON:
      fn::stringAsset: "text"
outputs:
  out: ${v}
`, eval.Options{})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_Invoke(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mock := eval.NewMockCallback().WithInvokeResponses(eval.InvokeResponse{
			ReturnValues: map[string]value.Value{"result": value.String("ok")},
		})
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::invoke:
      function: cloud:storage:getBucket
      arguments:
        name: my-bucket
      return: result
outputs:
  out: ${v}
`), eval.Options{Callback: mock})
		s, _ := ev.Outputs()["out"].AsString()
		assert.Equal(t, "ok", s)
		require.Len(t, mock.Invocations, 1)
		assert.Equal(t, "cloud:storage:getBucket", mock.Invocations[0].Token)
	})
	t.Run("type error - response failures", func(t *testing.T) {
		mock := eval.NewMockCallback().WithInvokeResponses(eval.InvokeResponse{
			Failures: []string{"boom"},
		})
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::invoke:
      function: cloud:storage:getBucket
outputs:
  out: ${v}
`, eval.Options{Callback: mock})
		assertUnknownWithDiagnostic(t, ev, "out")
	})
}

func TestBuiltins_AssetArchive(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev := mustEvaluate(t, mustParse(t, `
name: demo
runtime: yaml
variables:
  v:
    fn::assetArchive:
      first:
        fn::stringAsset: "one"
      second:
        fn::stringAsset: "two"
outputs:
  out: ${v}
`), eval.Options{})
		a, ok := ev.Outputs()["out"].AsArchive()
		require.True(t, ok)
		assert.Equal(t, []string{"first", "second"}, a.AssetOrder)
		assert.Len(t, a.Assets, 2)
	})
	t.Run("type error - entry not an asset or archive", func(t *testing.T) {
		// A non-asset/archive entry is rejected by the parser before an
		// AssetArchiveExpr node is even built, so the diagnostic surfaces at
		// parse time rather than through evalAssetArchive's runtime path.
		arena := source.NewArena()
		id := arena.AddFile("Pulumi.yaml", `
name: demo
runtime: yaml
variables:
  v:
    fn::assetArchive:
      bad:
        fn::abs: -1
outputs:
  out: ${v}
`)
		node, diags := synyaml.Decode(arena, id)
		require.False(t, diags.HasErrors(), "yaml decode: %v", diags.All())
		_, tplDiags := ast.ParseTemplate(node)
		require.True(t, tplDiags.HasErrors(), "expected a parse-time diagnostic for a non-asset/archive entry")
	})

	t.Run("runtime - unknown-containing entry collapses to unknown without a diagnostic", func(t *testing.T) {
		mock := eval.NewMockCallback().WithInvokeResponses(eval.InvokeResponse{
			Failures: []string{"boom"},
		})
		ev := evalOne(t, `
name: demo
runtime: yaml
variables:
  dep:
    fn::invoke:
      function: cloud:storage:getBucket
  v:
    fn::assetArchive:
      first:
        fn::stringAsset: ${dep}
outputs:
  out: ${v}
`, eval.Options{Callback: mock})
		assert.True(t, ev.Outputs()["out"].IsUnknown(), "expected output to be unknown")
	})
}

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}
