// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/bootstrap"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/errors"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/output"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/ui"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/graphstore"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/pipeline"
)

// signalContext returns a context cancelled on SIGINT/SIGTERM so the
// pipeline's cooperative cancellation gets a chance to drain and leave the
// graph consistent.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withPipeline loads config, opens the store, builds the pipeline, and
// hands them to fn, closing the store afterwards.
func withPipeline(configPath string, globals GlobalFlags, fn func(ctx context.Context, p *pipeline.Pipeline, store *graphstore.Store) error) {
	cfg := loadConfig(configPath, globals)
	store, err := bootstrap.OpenStore(cfg, nil, nil)
	if err != nil {
		errors.FatalError(errors.FromCore(err), globals.JSON)
	}
	defer func() { _ = store.Close() }()

	pipe := bootstrap.BuildPipeline(cfg, store, nil, nil)

	ctx, cancel := signalContext()
	defer cancel()

	if err := fn(ctx, pipe, store); err != nil {
		errors.FatalError(errors.FromCore(err), globals.JSON)
	}
}

// printSummary renders the end-of-run counts in the selected output mode.
func printSummary(summary *pipeline.Summary, globals GlobalFlags) {
	if globals.JSON {
		if err := output.JSON(summary); err != nil {
			errors.FatalError(err, true)
		}
		return
	}
	ui.Successf("Subsystem %s: %d files, %d functions, %d calls (%d resolved), %d variables, %d flows",
		summary.Subsystem, summary.FilesParsed, summary.Functions,
		summary.Calls, summary.CallsResolved, summary.Variables, summary.Flows)
	if summary.TestCases > 0 || summary.Covers > 0 {
		ui.Infof("Tests: %d cases, %d coverage edges", summary.TestCases, summary.Covers)
	}
	if summary.Warnings > 0 {
		ui.Warningf("%d parse warnings (run with --verbose for details)", summary.Warnings)
	}
	if summary.Cancelled {
		ui.Warning("Run cancelled; subsystem is partially ingested and will be purged on the next run")
	}
}

// runIngest executes the 'ingest' command: Modules A and D over one
// subsystem, persisted through the graph store.
func runIngest(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie ingest <path> [options]

Description:
  Parse every .c file below <path>, extract functions, call sites,
  variables, and intra-procedural data flows, and persist them into the
  graph store. Re-ingesting the same subsystem is idempotent.

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
	root := fs.Arg(0)

	withPipeline(configPath, globals, func(ctx context.Context, p *pipeline.Pipeline, _ *graphstore.Store) error {
		spinner := NewSpinner(NewProgressConfig(globals), "Ingesting "+p.SubsystemOf(root))
		summary, err := p.Ingest(ctx, root)
		finishSpinner(spinner)
		if err != nil {
			return err
		}
		printSummary(summary, globals)
		return nil
	})
}

// runMapTests executes the 'map-tests' command: the test mapper over one
// subsystem.
func runMapTests(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("map-tests", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie map-tests <path> [options]

Description:
  Identify test files (kunit, selftest, kselftest) below <path> and record
  TestCase nodes plus direct COVERS edges to the functions they call.

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
	root := fs.Arg(0)

	withPipeline(configPath, globals, func(ctx context.Context, p *pipeline.Pipeline, _ *graphstore.Store) error {
		spinner := NewSpinner(NewProgressConfig(globals), "Mapping tests under "+root)
		summary, err := p.MapTests(ctx, root)
		finishSpinner(spinner)
		if err != nil {
			return err
		}
		printSummary(summary, globals)
		return nil
	})
}

// runPipeline executes the 'pipeline' command: ingest, then map-tests,
// then stats.
func runPipeline(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("pipeline", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie pipeline <path> [options]

Description:
  Full run over one subsystem: ingest sources, map tests, then print
  aggregate graph statistics.

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
	root := fs.Arg(0)

	withPipeline(configPath, globals, func(ctx context.Context, p *pipeline.Pipeline, store *graphstore.Store) error {
		spinner := NewSpinner(NewProgressConfig(globals), "Running pipeline for "+p.SubsystemOf(root))
		summary, err := p.Run(ctx, root)
		finishSpinner(spinner)
		if err != nil {
			return err
		}
		printSummary(summary, globals)
		if globals.JSON {
			return nil
		}
		stats, err := store.GetStats(ctx)
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	})
}
