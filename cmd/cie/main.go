// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package main implements the Kernel-GraphRAG Sentinel CLI: an offline
// static-analysis pipeline that ingests a kernel subsystem into a property
// graph and answers impact queries against it.
//
// Usage:
//
//	cie ingest <path>           Parse a subsystem and persist its graph
//	cie map-tests <path>        Associate unit tests with covered functions
//	cie pipeline <path>         ingest, then map-tests, then stats
//	cie analyze <name>          Impact analysis for a function
//	cie export-graph <name>     Deterministic graph slice for rendering
//	cie top-functions           Most-called functions by in-degree
//	cie stats                   Aggregate graph counts
//	cie purge <subsystem>       Delete a subsystem and its owned records
//
// Exit codes: 0 success (warnings included), 1 user error, 2 transient
// infrastructure failure, 3 fatal infrastructure failure.
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/config"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/errors"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags carries the options every command honors. Verbose counts
// -v occurrences: 0 warnings-and-up, 1 info, 2+ debug.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
}

func main() {
	globalFS := flag.NewFlagSet("cie", flag.ExitOnError)
	var (
		showVersion = globalFS.Bool("version", false, "Show version and exit")
		configPath  = globalFS.String("config", defaultConfigPath(), "Path to sentinel.yaml")
		jsonOut     = globalFS.Bool("json", false, "Machine-readable JSON output")
		quiet       = globalFS.BoolP("quiet", "q", false, "Suppress progress output")
		noColor     = globalFS.Bool("no-color", false, "Disable colored output")
		verbose     = globalFS.CountP("verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	)
	globalFS.SetInterspersed(false)

	globalFS.Usage = func() {
		fmt.Fprintf(os.Stderr, `Kernel-GraphRAG Sentinel - static impact analysis for C code bases

Usage:
  cie <command> [options]

Commands:
  ingest <path>         Parse a subsystem (functions, calls, variables, flows)
  map-tests <path>      Parse test files and record coverage edges
  pipeline <path>       ingest + map-tests + stats in one run
  analyze <name>        Impact analysis for a named function
  export-graph <name>   Node/edge slice around a function
  top-functions         Rank functions by incoming-call count
  stats                 Aggregate graph counts
  purge <subsystem>     Delete a subsystem from the graph

Global Options:
  --config <path>       Path to sentinel.yaml (default: ./sentinel.yaml)
  --json                Machine-readable output
  -q, --quiet           No progress bars
  --no-color            Plain output
  -v, --verbose         Increase log verbosity (repeatable)
  --version             Show version and exit

Examples:
  cie ingest /usr/src/linux/fs
  cie pipeline /usr/src/linux/fs
  cie analyze vfs_read --depth 3
  cie analyze vfs_read --file fs/read_write.c --render
  cie top-functions --subsystem fs --min-callers 5
  cie purge fs

Exit Codes:
  0  success (a run with warnings is a success)
  1  user error (unknown function, bad arguments)
  2  transient infrastructure failure (retry may succeed)
  3  fatal infrastructure failure (schema corruption, unrecoverable store)
`)
	}

	if err := globalFS.Parse(os.Args[1:]); err != nil {
		os.Exit(errors.ExitUser)
	}

	if *showVersion {
		fmt.Printf("cie version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(errors.ExitSuccess)
	}

	globals := GlobalFlags{
		JSON:    *jsonOut,
		Quiet:   *quiet || *jsonOut,
		NoColor: *noColor,
		Verbose: *verbose,
	}
	ui.InitColors(globals.NoColor)
	initLogging(globals)

	args := globalFS.Args()
	if len(args) == 0 {
		globalFS.Usage()
		os.Exit(errors.ExitUser)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "ingest":
		runIngest(cmdArgs, *configPath, globals)
	case "map-tests":
		runMapTests(cmdArgs, *configPath, globals)
	case "pipeline":
		runPipeline(cmdArgs, *configPath, globals)
	case "analyze":
		runAnalyze(cmdArgs, *configPath, globals)
	case "export-graph":
		runExportGraph(cmdArgs, *configPath, globals)
	case "top-functions":
		runTopFunctions(cmdArgs, *configPath, globals)
	case "stats":
		runStats(cmdArgs, *configPath, globals)
	case "purge":
		runPurge(cmdArgs, *configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		globalFS.Usage()
		os.Exit(errors.ExitUser)
	}
}

func defaultConfigPath() string {
	return "sentinel.yaml"
}

// loadConfig loads the YAML configuration or exits with a user error.
func loadConfig(configPath string, globals GlobalFlags) *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		errors.FatalError(errors.NewUserError(
			"Cannot load configuration",
			err.Error(),
			"Fix the file at "+configPath+" or pass --config",
			err,
		), globals.JSON)
	}
	return cfg
}
