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
)

// withStore loads config and opens the store for read-only commands.
func withStore(configPath string, globals GlobalFlags, fn func(ctx context.Context, store *graphstore.Store) error) {
	cfg := loadConfig(configPath, globals)
	store, err := bootstrap.OpenStore(cfg, nil, nil)
	if err != nil {
		errors.FatalError(errors.FromCore(err), globals.JSON)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	if err := fn(ctx, store); err != nil {
		errors.FatalError(errors.FromCore(err), globals.JSON)
	}
}

// runStats executes the 'stats' command.
func runStats(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie stats [options]

Description:
  Print aggregate node and edge counts for the whole graph.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(errors.ExitUser)
	}

	withStore(configPath, globals, func(ctx context.Context, store *graphstore.Store) error {
		stats, err := store.GetStats(ctx)
		if err != nil {
			return err
		}
		if globals.JSON {
			return output.JSON(stats)
		}
		printStats(stats)
		return nil
	})
}

func printStats(stats *graphstore.Stats) {
	ui.Header("Graph statistics")
	fmt.Printf("  Functions:    %s  (+ %s placeholders)\n", ui.CountText(stats.Functions), ui.CountText(stats.Placeholders))
	fmt.Printf("  Variables:    %s\n", ui.CountText(stats.Variables))
	fmt.Printf("  Data flows:   %s\n", ui.CountText(stats.Flows))
	fmt.Printf("  Call edges:   %s  (%s resolved)\n", ui.CountText(stats.Calls), ui.CountText(stats.CallsResolved))
	fmt.Printf("  Test cases:   %s\n", ui.CountText(stats.TestCases))
	fmt.Printf("  Covers edges: %s\n", ui.CountText(stats.Covers))
	fmt.Printf("  Subsystems:   %s\n", ui.CountText(stats.Subsystems))
}

// runTopFunctions executes the 'top-functions' command.
func runTopFunctions(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("top-functions", flag.ExitOnError)
	subsystem := fs.String("subsystem", "", "Restrict ranking to one subsystem")
	minCallers := fs.Int("min-callers", 1, "Minimum incoming-call count")
	limit := fs.Int("limit", 20, "Maximum rows")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie top-functions [options]

Description:
  Rank functions by the number of distinct incoming call edges.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(errors.ExitUser)
	}

	withStore(configPath, globals, func(ctx context.Context, store *graphstore.Store) error {
		top, err := store.TopFunctions(ctx, *subsystem, *minCallers, *limit)
		if err != nil {
			return err
		}
		if globals.JSON {
			return output.JSON(top)
		}
		ui.Header("Most-called functions")
		for i, row := range top {
			fmt.Printf("  %2d. %-40s %s  %s\n", i+1, row.Function.Name,
				ui.CountText(row.CallerCount),
				ui.DimText(fmt.Sprintf("%s:%d", row.Function.FilePath, row.Function.LineStart)))
		}
		if len(top) == 0 {
			ui.Info("No functions matched; lower --min-callers or ingest a subsystem first")
		}
		return nil
	})
}
