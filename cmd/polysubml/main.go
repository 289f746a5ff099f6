// Command polysubml is the CLI front end over internal/compiler: it
// reads a single source file, compiles it, and prints either the
// lowered target program or colorized diagnostics — grounded on
// funvibe/funxy's pkg/cli entry point (source-extension dispatch, single
// evaluated module) plus its go-isatty-gated coloring in
// internal/evaluator/builtins_term.go.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/polysubml/polysubml/internal/cache"
	"github.com/polysubml/polysubml/internal/compiler"
	"github.com/polysubml/polysubml/internal/config"
	"github.com/polysubml/polysubml/internal/diagnostics"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("polysubml", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to polysubml.yaml")
	showStats := fs.Bool("stats", false, "print checker stats after a successful compile")
	cachePath := fs.String("cache", "", "override the cache_path from config")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 || fs.Arg(0) != "run" {
		fmt.Fprintln(os.Stderr, "usage: polysubml run <file>")
		return 2
	}
	path := fs.Arg(1)

	settings, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "polysubml: loading config: %v\n", err)
		return 2
	}
	if *cachePath != "" {
		settings.CachePath = *cachePath
	}

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "polysubml: %v\n", err)
		return 2
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	state := compiler.New(log)

	if settings.CachePath != "" {
		store, err := cache.Open(settings.CachePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "polysubml: opening cache: %v\n", err)
			return 2
		}
		defer store.Close()
		state.SetCache(store)
	}

	result := state.Process(path, string(source))
	color := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	if !result.OK() {
		for _, e := range result.Errors {
			fmt.Fprintln(os.Stderr, renderError(e, color))
		}
		return 1
	}

	fmt.Println(result.Target)
	if *showStats {
		st := state.Stats()
		fmt.Fprintf(os.Stderr, "nodes=%d flows=%d vars=%d\n", st.NodeCount, st.FlowCount, st.VarCount)
	}
	return 0
}

func renderError(e *diagnostics.DiagnosticError, color bool) string {
	if !color {
		return e.Error()
	}
	const (
		red   = "\x1b[31m"
		reset = "\x1b[0m"
	)
	return red + e.Error() + reset
}
