// Copyright 2026, the declstack authors. All rights reserved.

// declstack-language is the host process that evaluates a declstack project
// against an orchestrator reachable over gRPC (§6): it loads the project
// directory, preprocesses and merges its YAML files, builds the dependency
// graph, runs the evaluator with a transport-backed Callback, and reports
// diagnostics and outputs. Flag and bootstrap shape follows the teacher's
// cmd/pulumi-language-yaml/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/spf13/afero"

	"github.com/declstack/declstack/pkg/diag"
	"github.com/declstack/declstack/pkg/eval"
	"github.com/declstack/declstack/pkg/graph"
	"github.com/declstack/declstack/pkg/loader"
	"github.com/declstack/declstack/pkg/preprocess"
	"github.com/declstack/declstack/pkg/source"
	"github.com/declstack/declstack/pkg/value"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "exec" {
		os.Exit(runExec(os.Args[2:]))
	}

	var (
		tracing  string
		root     string
		parallel int
	)
	flag.StringVar(&tracing, "tracing", "", "Emit tracing to a Zipkin-compatible tracing endpoint")
	flag.StringVar(&root, "root", "", "Root of the project to evaluate")
	flag.IntVar(&parallel, "parallel", 0, "Max concurrent resource registrations per dependency level (0 = unbounded)")
	flag.Parse()
	args := flag.Args()

	if tracing != "" {
		log.Printf("tracing requested at %s; this host does not export spans, logging the endpoint only", tracing)
	}

	var engineAddress string
	if len(args) > 0 {
		engineAddress = args[0]
	}
	if engineAddress == "" {
		log.Println("no engine address supplied")
		os.Exit(1)
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Printf("getwd: %v", err)
			os.Exit(1)
		}
		root = wd
	}

	os.Exit(run(engineAddress, root, parallel))
}

// runExec runs a wrapped process (`exec -- <argv...>`), inheriting this
// process's standard streams, and returns its exit code.
func runExec(argv []string) int {
	if len(argv) > 0 && argv[0] == "--" {
		argv = argv[1:]
	}
	if len(argv) == 0 {
		log.Println("exec: missing command")
		return 1
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		log.Printf("exec: %v", err)
		return 1
	}
	return 0
}

func run(engineAddress, root string, parallel int) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	conn, err := grpc.NewClient(engineAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Printf("dialing engine at %s: %v", engineAddress, err)
		return 1
	}
	defer conn.Close()
	callback := eval.NewGRPCCallback(conn)

	fs := afero.NewOsFs()
	pp := preprocessorFor()
	ppCtx := preprocess.Context{
		ProjectDir: root,
		RootDir:    root,
	}
	ppCtx.Organization = os.Getenv("PULUMI_ORGANIZATION")

	result := loader.Load(fs, root, pp, ppCtx)
	if printDiags(result.Arena, result.Diags) || result.Diags.HasErrors() {
		return 1
	}

	g, bag := graph.Build(result.Template)
	if printDiags(result.Arena, bag) || bag.HasErrors() {
		return 1
	}

	order, bag := g.TopoSort()
	if printDiags(result.Arena, bag) || bag.HasErrors() {
		return 1
	}

	ev := eval.New(result.Template, g, order, eval.Options{
		Callback:      callback,
		Organization:  ppCtx.Organization,
		ProjectName:   result.Template.Name,
		Cwd:           root,
		RootDirectory: root,
		Parallel:      parallel,
	})

	if err := ev.Run(ctx); err != nil {
		printDiags(result.Arena, ev.Diagnostics())
		log.Printf("evaluation failed: %v", err)
		return 1
	}
	printDiags(result.Arena, ev.Diagnostics())

	for _, name := range sortedKeys(ev.Outputs()) {
		fmt.Printf("%s: %s\n", name, ev.Outputs()[name].String())
	}
	return 0
}

func preprocessorFor() preprocess.Preprocessor {
	return preprocess.Gonja{Policy: preprocess.ParsePolicy(os.Getenv("PULUMI_YAML_JINJA_UNDEFINED"))}
}

func printDiags(arena *source.Arena, bag *diag.Bag) bool {
	any := false
	for _, d := range bag.Sorted() {
		fmt.Fprintln(os.Stderr, diag.Render(arena, d))
		any = true
	}
	return any
}

func sortedKeys(m map[string]value.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
