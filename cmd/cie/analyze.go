// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/bootstrap"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/errors"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/output"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/ui"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/graphstore"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/impact"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/llm"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/reportctx"
)

// withAnalyzer loads config, opens the store read path, and builds the
// impact analyzer.
func withAnalyzer(configPath string, globals GlobalFlags, fn func(ctx context.Context, a *impact.Analyzer, store *graphstore.Store, depth int) error) {
	cfg := loadConfig(configPath, globals)
	store, err := bootstrap.OpenStore(cfg, nil, nil)
	if err != nil {
		errors.FatalError(errors.FromCore(err), globals.JSON)
	}
	defer func() { _ = store.Close() }()

	analyzer := bootstrap.BuildAnalyzer(cfg, store, nil)

	ctx, cancel := signalContext()
	defer cancel()

	if err := fn(ctx, analyzer, store, cfg.Analysis.MaxDepth); err != nil {
		errors.FatalError(errors.FromCore(err), globals.JSON)
	}
}

// runAnalyze executes the 'analyze' command.
func runAnalyze(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	filePath := fs.String("file", "", "Disambiguate by defining file path")
	depth := fs.Int("depth", 0, "Traversal depth (default from config, max 10)")
	render := fs.Bool("render", false, "Print the LLM reporter context instead of the summary")
	report := fs.Bool("report", false, "Send the rendered context to the configured LLM and print its report")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie analyze <name> [options]

Description:
  Resolve <name> to a function and report its callers, callees, syscall
  reachability, test coverage, and risk level. Ambiguous names need --file.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  cie analyze vfs_read
  cie analyze vfs_read --depth 5 --json
  cie analyze dup --file fs/file.c
  cie analyze vfs_read --render
`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(errors.ExitUser)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(errors.ExitUser)
	}
	name := fs.Arg(0)

	withAnalyzer(configPath, globals, func(ctx context.Context, a *impact.Analyzer, _ *graphstore.Store, defaultDepth int) error {
		d := *depth
		if d == 0 {
			d = defaultDepth
		}
		im, err := a.AnalyzeFunctionImpact(ctx, name, *filePath, d)
		if err != nil {
			return err
		}

		switch {
		case *report:
			return printLLMReport(ctx, im)
		case *render:
			fmt.Print(reportctx.Render(im, nil))
			return nil
		case globals.JSON:
			return output.JSON(im)
		default:
			printImpact(im)
			return nil
		}
	})
}

// printImpact renders the human-readable analyze output.
func printImpact(im *impact.FunctionImpact) {
	ui.Header(fmt.Sprintf("Impact: %s", im.Function.Name))
	ui.Infof("%s:%d-%d (subsystem %s)", im.Function.FilePath, im.Function.LineStart, im.Function.LineEnd, im.Function.Subsystem)

	switch im.RiskLevel {
	case impact.RiskLow:
		ui.Successf("Risk: %s", im.RiskLevel)
	case impact.RiskMedium:
		ui.Infof("Risk: %s", im.RiskLevel)
	default:
		ui.Warningf("Risk: %s", im.RiskLevel)
	}

	ui.SubHeader(fmt.Sprintf("Callers (%d direct, %d indirect)", len(im.DirectCallers), len(im.IndirectCallers)))
	for _, fn := range im.DirectCallers {
		fmt.Printf("  %s  %s\n", fn.Name, ui.DimText(fmt.Sprintf("%s:%d", fn.FilePath, fn.LineStart)))
	}
	for _, p := range im.IndirectCallers {
		fmt.Printf("  %s  %s\n", p.Function.Name, ui.DimText(fmt.Sprintf("depth %d", p.Depth)))
	}

	ui.SubHeader(fmt.Sprintf("Callees (%d direct, %d indirect)", len(im.DirectCallees), len(im.IndirectCallees)))
	for _, fn := range im.DirectCallees {
		suffix := ""
		if fn.IsPlaceholder {
			suffix = "  " + ui.DimText("(unresolved)")
		}
		fmt.Printf("  %s%s\n", fn.Name, suffix)
	}
	for _, p := range im.IndirectCallees {
		fmt.Printf("  %s  %s\n", p.Function.Name, ui.DimText(fmt.Sprintf("depth %d", p.Depth)))
	}

	if len(im.SyscallEntryPoints) > 0 {
		ui.SubHeader("Syscall entry points")
		for _, e := range im.SyscallEntryPoints {
			fmt.Printf("  %s  %s\n", e.EntryPoint.Name, ui.DimText(fmt.Sprintf("%d hops", e.ShortestPath)))
		}
	}

	ui.SubHeader(fmt.Sprintf("Coverage (%d direct, %d indirect)", len(im.CoveringTestsDirect), len(im.CoveringTestsIndirect)))
	for _, tc := range im.CoveringTestsDirect {
		fmt.Printf("  %s  %s\n", tc.Name, ui.DimText(tc.Framework))
	}
	for _, tc := range im.CoveringTestsIndirect {
		fmt.Printf("  %s  %s\n", tc.Name, ui.DimText(tc.Framework+", indirect"))
	}

	if im.Truncated {
		ui.Warningf("Traversal truncated at depth %d; deeper callers/callees exist", im.MaxDepth)
	}
}

// printLLMReport renders the impact context and hands it to the configured
// LLM provider. The provider is resolved from the environment; the core
// never depends on it.
func printLLMReport(ctx context.Context, im *impact.FunctionImpact) error {
	provider, err := llm.DefaultProvider()
	if err != nil {
		return errors.NewUserError(
			"No LLM provider configured",
			err.Error(),
			"Set OLLAMA_HOST, OPENAI_API_KEY, or ANTHROPIC_API_KEY",
			err,
		)
	}

	rendered := reportctx.Render(im, nil)
	report, err := llm.GenerateImpactReport(ctx, provider, rendered)
	if err != nil {
		return errors.NewTransientError(
			"LLM report generation failed",
			err.Error(),
			"Check the provider endpoint and re-run",
			err,
		)
	}
	fmt.Println(report)
	return nil
}

// runExportGraph executes the 'export-graph' command.
func runExportGraph(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("export-graph", flag.ExitOnError)
	filePath := fs.String("file", "", "Disambiguate by defining file path")
	depth := fs.Int("depth", 0, "Traversal depth (default from config, max 10)")
	direction := fs.String("direction", "both", "Expansion direction: callers, callees, both")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie export-graph <name> [options]

Description:
  Export a deterministic node/edge slice around a function, as JSON, for
  external renderers (Mermaid, DOT).

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(errors.ExitUser)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(errors.ExitUser)
	}
	name := fs.Arg(0)

	dir := impact.Direction(*direction)
	switch dir {
	case impact.DirectionCallers, impact.DirectionCallees, impact.DirectionBoth:
	default:
		errors.FatalError(errors.NewUserError(
			"Invalid direction: "+*direction,
			"",
			"Use callers, callees, or both",
			nil,
		), globals.JSON)
	}

	withAnalyzer(configPath, globals, func(ctx context.Context, a *impact.Analyzer, store *graphstore.Store, defaultDepth int) error {
		d := *depth
		if d == 0 {
			d = defaultDepth
		}
		origin, err := store.FindFunction(ctx, name, *filePath)
		if err != nil {
			return err
		}
		slice, err := a.ExportGraphSlice(ctx, *origin, d, dir)
		if err != nil {
			return err
		}
		return output.JSON(slice)
	})
}
