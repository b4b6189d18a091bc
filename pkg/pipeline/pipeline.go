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

// Package pipeline orchestrates the ingest flow: a fixed-size worker pool
// parses files (Modules A and D together, per file), a bounded channel
// carries the per-file records, and a single-threaded ingester drains it
// into batched graph-store writes. CALLS edges are staged until every
// function of the subsystem is upserted, which resolves forward references
// without ordering constraints between files.
package pipeline

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/cparse"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/dataflow"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/ingestion"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/testmap"
)

const (
	// DefaultChannelCapacity bounds the records channel so a fast parser
	// cannot hold a subsystem's worth of nodes in memory.
	DefaultChannelCapacity = 10_000

	// DefaultBatchSize is the flush threshold for accumulated records.
	DefaultBatchSize = 500
)

// GraphWriter is the write surface the ingester needs; implemented by
// graphstore.Store.
type GraphWriter interface {
	InstallSchema(ctx context.Context) error
	UpsertFunctions(ctx context.Context, batch []model.FunctionNode) error
	UpsertVariables(ctx context.Context, batch []model.VariableNode) error
	UpsertFlows(ctx context.Context, batch []model.DataFlowEdge) error
	UpsertCalls(ctx context.Context, batch []model.CallSiteEdge) error
	UpsertTests(ctx context.Context, batch []model.TestCaseNode) error
	UpsertCovers(ctx context.Context, batch []model.CoversEdge) error
	UpsertFiles(ctx context.Context, batch []model.FileNode) error
	UpsertContains(ctx context.Context, batch []model.ContainsEdge) error
	UpsertSubsystems(ctx context.Context, batch []model.SubsystemNode) error
	PurgeSubsystem(ctx context.Context, name string) error
}

// Config tunes the pipeline.
type Config struct {
	// KernelRoot anchors subsystem labels; "" uses the ingest root's base
	// name as the subsystem.
	KernelRoot string

	// Workers is the parser pool size; 0 means runtime.NumCPU().
	Workers int

	// ChannelCapacity bounds the records channel; 0 means the default.
	ChannelCapacity int

	// BatchSize is the store flush threshold; 0 means the default.
	BatchSize int

	// CheckpointDir holds partial-ingest markers; "" disables them.
	CheckpointDir string
}

// Summary is the end-of-run report. A run with warnings but no errors is a
// success.
type Summary struct {
	Subsystem     string `json:"subsystem"`
	FilesParsed   int    `json:"files_parsed"`
	Functions     int    `json:"functions"`
	Placeholders  int    `json:"placeholders"`
	Calls         int    `json:"calls"`
	CallsResolved int    `json:"calls_resolved"`
	Variables     int    `json:"variables"`
	Flows         int    `json:"flows"`
	TestCases     int    `json:"test_cases"`
	Covers        int    `json:"covers"`
	Warnings      int64  `json:"warnings"`
	Cancelled     bool   `json:"cancelled"`
	DurationMS    int64  `json:"duration_ms"`
}

// Pipeline wires parser, data-flow extractor, test mapper, and graph store.
type Pipeline struct {
	parser      *cparse.Parser
	mapper      *testmap.Mapper
	store       GraphWriter
	cfg         Config
	logger      *slog.Logger
	metrics     *ingestion.Metrics
	checkpoints *ingestion.CheckpointManager
}

// New creates a Pipeline. metrics may be nil.
func New(parser *cparse.Parser, mapper *testmap.Mapper, store GraphWriter, cfg Config, logger *slog.Logger, metrics *ingestion.Metrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ChannelCapacity <= 0 {
		cfg.ChannelCapacity = DefaultChannelCapacity
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	p := &Pipeline{
		parser:  parser,
		mapper:  mapper,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
	if cfg.CheckpointDir != "" {
		p.checkpoints = ingestion.NewCheckpointManager(cfg.CheckpointDir)
	}
	return p
}

// SubsystemOf labels the subsystem for an ingest root.
func (p *Pipeline) SubsystemOf(root string) string {
	if p.cfg.KernelRoot != "" {
		if sub := model.Subsystem(p.cfg.KernelRoot, root); sub != "" {
			return sub
		}
	}
	return filepath.Base(filepath.Clean(root))
}

// NeedsPurge reports whether a prior run left the subsystem half-ingested.
func (p *Pipeline) NeedsPurge(subsystem string) bool {
	if p.checkpoints == nil {
		return false
	}
	cp, err := p.checkpoints.Load(subsystem)
	return err == nil && cp != nil && !cp.Completed
}

// fileRecords is everything the workers extract from one translation unit.
// Variables always precede the flows that reference them, and the ingester
// preserves that order within a file.
type fileRecords struct {
	functions []model.FunctionNode
	variables []model.VariableNode
	flows     []model.DataFlowEdge
	calls     []model.CallSiteEdge
	file      model.FileNode
	contains  []model.ContainsEdge
}

// Ingest runs Modules A and D over the subsystem rooted at root and writes
// the results through the graph store. Cancellation is cooperative: on
// ctx.Done in-flight batches finish, the pool drains, and a partial-ingest
// marker is left so the next run purges before re-ingesting.
func (p *Pipeline) Ingest(ctx context.Context, root string) (*Summary, error) {
	start := time.Now()
	subsystem := p.SubsystemOf(root)
	summary := &Summary{Subsystem: subsystem}

	if err := p.store.InstallSchema(ctx); err != nil {
		return summary, err
	}
	if p.NeedsPurge(subsystem) {
		p.logger.Warn("pipeline.partial_ingest_detected", "subsystem", subsystem)
		if err := p.store.PurgeSubsystem(ctx, subsystem); err != nil {
			return summary, err
		}
	}
	p.saveCheckpoint(subsystem, root, summary, false)

	warningsBefore := p.parser.Warnings()

	files, err := listSourceFiles(root)
	if err != nil {
		return summary, err
	}

	jobs := make(chan string, len(files))
	for _, f := range files {
		jobs <- f
	}
	close(jobs)

	records := make(chan fileRecords, p.cfg.ChannelCapacity)

	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				rec, ok := p.extractFile(ctx, root, subsystem, path)
				if !ok {
					continue
				}
				select {
				case records <- rec:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(records)
	}()

	ingestErr := p.drain(ctx, subsystem, records, summary)

	summary.Warnings = p.parser.Warnings() - warningsBefore
	summary.Cancelled = ctx.Err() != nil
	summary.DurationMS = time.Since(start).Milliseconds()
	if p.metrics != nil && summary.Warnings > 0 {
		p.metrics.ParseWarnings.Add(float64(summary.Warnings))
	}

	if ingestErr != nil {
		p.saveCheckpoint(subsystem, root, summary, false)
		return summary, ingestErr
	}
	if summary.Cancelled {
		p.saveCheckpoint(subsystem, root, summary, false)
		return summary, nil
	}
	p.clearCheckpoint(subsystem)
	p.logger.Info("pipeline.ingest.done",
		"subsystem", subsystem,
		"files", summary.FilesParsed,
		"functions", summary.Functions,
		"calls", summary.Calls,
		"flows", summary.Flows,
		"warnings", summary.Warnings,
	)
	return summary, nil
}

// extractFile runs the parser and the flow extractor over one file.
func (p *Pipeline) extractFile(ctx context.Context, root, subsystem, path string) (fileRecords, bool) {
	res, err := p.parser.ExtractFromFile(ctx, root, path)
	if err != nil || res == nil {
		if p.metrics != nil {
			p.metrics.FilesFailed.Inc()
		}
		return fileRecords{}, false
	}
	defer res.Close()

	rec := fileRecords{
		calls: res.Calls,
		file:  model.FileNode{ID: path, Path: path, Subsystem: subsystem},
	}
	globals := dataflow.ExtractGlobals(res.Root, res.Content)
	for _, pf := range res.Functions {
		rec.functions = append(rec.functions, pf.Function)
		rec.contains = append(rec.contains, model.ContainsEdge{FileID: path, FunctionID: pf.Function.ID})

		flow := dataflow.Extract(pf.Node, pf.Content, pf.Function.ID, globals)
		rec.variables = append(rec.variables, flow.Variables...)
		rec.flows = append(rec.flows, flow.Flows...)
	}
	if p.metrics != nil {
		p.metrics.FilesParsed.Inc()
		p.metrics.Functions.Add(float64(len(rec.functions)))
		p.metrics.Variables.Add(float64(len(rec.variables)))
		p.metrics.Flows.Add(float64(len(rec.flows)))
		p.metrics.Calls.Add(float64(len(rec.calls)))
	}
	return rec, true
}

// drain is the single-threaded ingester: it flushes functions, variables,
// and flows in batches as records arrive, and stages CALLS edges plus the
// subsystem's function-name index until the channel closes.
func (p *Pipeline) drain(ctx context.Context, subsystem string, records <-chan fileRecords, summary *Summary) error {
	var (
		functions []model.FunctionNode
		variables []model.VariableNode
		flows     []model.DataFlowEdge
		files     []model.FileNode
		contains  []model.ContainsEdge

		stagedCalls []model.CallSiteEdge
		// nameToIDs resolves CALLS edges; cleared implicitly when the
		// pipeline run ends, so it never outlives its subsystem.
		nameToIDs = make(map[string][]string)
	)

	flush := func() error {
		if err := p.store.UpsertFunctions(ctx, functions); err != nil {
			return err
		}
		// Variables flush before flows so the foreign-key-like lookups in
		// downstream queries always land.
		if err := p.store.UpsertVariables(ctx, variables); err != nil {
			return err
		}
		if err := p.store.UpsertFlows(ctx, flows); err != nil {
			return err
		}
		if err := p.store.UpsertFiles(ctx, files); err != nil {
			return err
		}
		if err := p.store.UpsertContains(ctx, contains); err != nil {
			return err
		}
		functions, variables, flows, files, contains = nil, nil, nil, nil, nil
		return nil
	}

	for rec := range records {
		functions = append(functions, rec.functions...)
		variables = append(variables, rec.variables...)
		flows = append(flows, rec.flows...)
		files = append(files, rec.file)
		contains = append(contains, rec.contains...)
		stagedCalls = append(stagedCalls, rec.calls...)

		for _, fn := range rec.functions {
			nameToIDs[fn.Name] = append(nameToIDs[fn.Name], fn.ID)
		}

		summary.FilesParsed++
		summary.Functions += len(rec.functions)
		summary.Variables += len(rec.variables)
		summary.Flows += len(rec.flows)

		if len(functions)+len(variables)+len(flows) >= p.cfg.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	// All functions of the subsystem are now upserted; resolve and flush
	// the staged CALLS edges.
	resolved, placeholders := resolveCalls(stagedCalls, nameToIDs)
	if err := p.store.UpsertFunctions(ctx, placeholders); err != nil {
		return err
	}
	if err := p.store.UpsertCalls(ctx, resolved); err != nil {
		return err
	}
	summary.Calls = len(resolved)
	summary.Placeholders = len(placeholders)
	for _, c := range resolved {
		if c.IsResolved {
			summary.CallsResolved++
		}
	}
	if unresolved := summary.Calls - summary.CallsResolved; unresolved > 0 && p.metrics != nil {
		p.metrics.ResolveWarns.Add(float64(unresolved))
	}

	return p.store.UpsertSubsystems(ctx, []model.SubsystemNode{{Name: subsystem}})
}

// resolveCalls binds each staged edge to its callee: a name defined exactly
// once in the subsystem resolves to that FunctionNode; ambiguous or absent
// names terminate on a placeholder named after the callee, so macros,
// function pointers, and cross-subsystem calls stay queryable instead of
// being dropped.
func resolveCalls(calls []model.CallSiteEdge, nameToIDs map[string][]string) ([]model.CallSiteEdge, []model.FunctionNode) {
	var placeholders []model.FunctionNode
	seenPlaceholder := make(map[string]bool)

	out := make([]model.CallSiteEdge, 0, len(calls))
	for _, c := range calls {
		ids := nameToIDs[c.CalleeName]
		if len(ids) == 1 {
			c.CalleeID = ids[0]
			c.IsResolved = true
		} else {
			pid := model.PlaceholderFunctionID(c.CalleeName)
			c.CalleeID = pid
			c.IsResolved = false
			if !seenPlaceholder[pid] {
				seenPlaceholder[pid] = true
				placeholders = append(placeholders, model.FunctionNode{
					ID:            pid,
					Name:          c.CalleeName,
					IsPlaceholder: true,
				})
			}
		}
		out = append(out, c)
	}
	return out, placeholders
}

// MapTests runs the test mapper over root and writes TestCase nodes and direct
// COVERS edges.
func (p *Pipeline) MapTests(ctx context.Context, root string) (*Summary, error) {
	subsystem := p.SubsystemOf(root)
	summary := &Summary{Subsystem: subsystem}

	if err := p.store.InstallSchema(ctx); err != nil {
		return summary, err
	}
	res, err := p.mapper.MapTests(ctx, root)
	if err != nil {
		return summary, err
	}
	if err := p.store.UpsertTests(ctx, res.TestCases); err != nil {
		return summary, err
	}
	if err := p.store.UpsertCovers(ctx, res.Covers); err != nil {
		return summary, err
	}
	summary.TestCases = len(res.TestCases)
	summary.Covers = len(res.Covers)
	summary.Warnings = int64(res.Warnings)
	if p.metrics != nil {
		p.metrics.TestCases.Add(float64(summary.TestCases))
		p.metrics.CoversEdges.Add(float64(summary.Covers))
		if res.Warnings > 0 {
			p.metrics.ParseWarnings.Add(float64(res.Warnings))
		}
	}
	return summary, nil
}

// Run is the full pipeline command: ingest, then map tests, then merge the
// two summaries.
func (p *Pipeline) Run(ctx context.Context, root string) (*Summary, error) {
	ingested, err := p.Ingest(ctx, root)
	if err != nil {
		return ingested, err
	}
	mapped, err := p.MapTests(ctx, root)
	if err != nil {
		return ingested, err
	}
	ingested.TestCases = mapped.TestCases
	ingested.Covers = mapped.Covers
	ingested.Warnings += mapped.Warnings
	return ingested, nil
}

func (p *Pipeline) saveCheckpoint(subsystem, root string, summary *Summary, completed bool) {
	if p.checkpoints == nil {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	err := p.checkpoints.Save(&ingestion.Checkpoint{
		Subsystem:          subsystem,
		Root:               root,
		FilesProcessed:     summary.FilesParsed,
		FunctionsExtracted: summary.Functions,
		FlowsExtracted:     summary.Flows,
		Warnings:           int(summary.Warnings),
		Completed:          completed,
		StartTime:          now,
		LastUpdateTime:     now,
	})
	if err != nil {
		p.logger.Warn("pipeline.checkpoint.save_failed", "err", err)
	}
}

func (p *Pipeline) clearCheckpoint(subsystem string) {
	if p.checkpoints == nil {
		return
	}
	if err := p.checkpoints.Clear(subsystem); err != nil {
		p.logger.Warn("pipeline.checkpoint.clear_failed", "err", err)
	}
}

// listSourceFiles walks root for ".c" files, skipping hidden directories
// and never following symlinks, mirroring the per-file walk in pkg/cparse.
func listSourceFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if strings.HasSuffix(path, ".c") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
