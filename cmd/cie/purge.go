// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/errors"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/ui"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/graphstore"
)

// runPurge executes the 'purge' command: delete one subsystem's functions,
// variables, flows, and outgoing edges. Incoming calls from other
// subsystems are repointed to placeholders.
func runPurge(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	yes := fs.BoolP("yes", "y", false, "Skip the confirmation prompt")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie purge <subsystem> [options]

Description:
  Delete every function of <subsystem> with its owned variables, data
  flows, and outgoing call edges. Destructive; prompts unless --yes.

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
	subsystem := fs.Arg(0)

	if !*yes && !globals.JSON {
		fmt.Printf("Delete subsystem %q from the graph? [y/N] ", subsystem)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			ui.Info("Aborted")
			return
		}
	}

	withStore(configPath, globals, func(ctx context.Context, store *graphstore.Store) error {
		if err := store.InstallSchema(ctx); err != nil {
			return err
		}
		if err := store.PurgeSubsystem(ctx, subsystem); err != nil {
			return err
		}
		ui.Successf("Purged subsystem %s", subsystem)
		return nil
	})
}
