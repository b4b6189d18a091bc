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

// Package impact answers structured questions about a named function:
// bounded multi-hop caller/callee traversal, syscall reachability, test
// coverage joins, and risk scoring. All traversals are read-only and
// deterministic - equal-length paths tie-break on the lexicographically
// smaller caller name so rendered reports are byte-stable.
package impact

import (
	"context"
	"log/slog"
	"regexp"
	"sort"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
)

const (
	// DefaultMaxDepth is used when the caller passes a depth of 0.
	DefaultMaxDepth = 3

	// HardMaxDepth is the traversal ceiling; deeper requests are clamped.
	HardMaxDepth = 10
)

// DefaultSyscallPattern recognizes syscall entry points by name.
const DefaultSyscallPattern = `^(sys_|__x64_sys_)`

// Reader is the read-only store surface the analyzer traverses. Implemented
// by graphstore.Store; tests substitute an in-memory graph.
type Reader interface {
	FindFunction(ctx context.Context, name, filePath string) (*model.FunctionNode, error)
	CallersOf(ctx context.Context, functionID string) ([]model.FunctionNode, error)
	CalleesOf(ctx context.Context, functionID string) ([]model.FunctionNode, error)
	TestsCovering(ctx context.Context, functionID string) ([]model.TestCaseNode, error)
	HasTests(ctx context.Context) (bool, error)
}

// CallerPath is one function reached by the multi-hop traversal, with the
// shortest path that reached it. Path runs from the traversal origin to the
// function, origin excluded, as function names.
type CallerPath struct {
	Function model.FunctionNode `json:"function"`
	Depth    int                `json:"depth"`
	Path     []string           `json:"path"`
}

// SyscallEntry is a syscall entry point that can reach the analyzed
// function, with its shortest path length.
type SyscallEntry struct {
	EntryPoint   model.FunctionNode `json:"entry_point"`
	ShortestPath int                `json:"shortest_path"`
}

// FunctionImpact is the full answer to analyze_function_impact.
type FunctionImpact struct {
	Function model.FunctionNode `json:"function"`

	DirectCallers   []model.FunctionNode `json:"direct_callers"`
	IndirectCallers []CallerPath         `json:"indirect_callers"`
	DirectCallees   []model.FunctionNode `json:"direct_callees"`
	IndirectCallees []CallerPath         `json:"indirect_callees"`

	SyscallEntryPoints []SyscallEntry `json:"syscall_entry_points"`

	CoveringTestsDirect   []model.TestCaseNode `json:"covering_tests_direct"`
	CoveringTestsIndirect []model.TestCaseNode `json:"covering_tests_indirect"`

	RiskLevel RiskLevel `json:"risk_level"`

	// MaxDepth is the clamped depth the traversal actually used.
	MaxDepth int `json:"max_depth"`

	// Truncated reports that the caller or callee frontier was still
	// growing when MaxDepth was hit.
	Truncated bool `json:"truncated"`
}

// Analyzer runs impact queries against a Reader.
type Analyzer struct {
	store     Reader
	syscallRe *regexp.Regexp
	logger    *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSyscallPattern overrides DefaultSyscallPattern. An invalid pattern is
// ignored and the default kept.
func WithSyscallPattern(pattern string) Option {
	return func(a *Analyzer) {
		if re, err := regexp.Compile(pattern); err == nil {
			a.syscallRe = re
		}
	}
}

// New creates an Analyzer over store.
func New(store Reader, logger *slog.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Analyzer{
		store:     store,
		syscallRe: regexp.MustCompile(DefaultSyscallPattern),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ClampDepth normalizes a requested traversal depth: 0 means
// DefaultMaxDepth, negatives become 1, and anything above HardMaxDepth is
// capped.
func ClampDepth(d int) int {
	switch {
	case d == 0:
		return DefaultMaxDepth
	case d < 1:
		return 1
	case d > HardMaxDepth:
		return HardMaxDepth
	default:
		return d
	}
}

// AnalyzeFunctionImpact resolves name (narrowed by filePath when the name
// is ambiguous) and computes the full impact record. Returns
// FunctionNotFound / AmbiguousFunction from the resolution step unchanged.
func (a *Analyzer) AnalyzeFunctionImpact(ctx context.Context, name, filePath string, maxDepth int) (*FunctionImpact, error) {
	depth := ClampDepth(maxDepth)

	fn, err := a.store.FindFunction(ctx, name, filePath)
	if err != nil {
		return nil, err
	}

	callers, callersTruncated, err := a.traverse(ctx, fn.ID, depth, a.store.CallersOf)
	if err != nil {
		return nil, err
	}
	callees, calleesTruncated, err := a.traverse(ctx, fn.ID, depth, a.store.CalleesOf)
	if err != nil {
		return nil, err
	}

	impact := &FunctionImpact{
		Function:  *fn,
		MaxDepth:  depth,
		Truncated: callersTruncated || calleesTruncated,
	}
	impact.DirectCallers, impact.IndirectCallers = splitByDepth(callers)
	impact.DirectCallees, impact.IndirectCallees = splitByDepth(callees)
	impact.SyscallEntryPoints = a.syscallEntries(callers)

	impact.CoveringTestsDirect, err = a.store.TestsCovering(ctx, fn.ID)
	if err != nil {
		return nil, err
	}
	impact.CoveringTestsIndirect, err = a.indirectCoverage(ctx, callers, impact.CoveringTestsDirect)
	if err != nil {
		return nil, err
	}

	hasTests, err := a.store.HasTests(ctx)
	if err != nil {
		return nil, err
	}
	impact.RiskLevel = scoreRisk(riskInputs{
		callerCount:   len(callers),
		syscallReach:  len(impact.SyscallEntryPoints) > 0,
		graphHasTests: hasTests,
		directTests:   len(impact.CoveringTestsDirect),
		indirectTests: len(impact.CoveringTestsIndirect),
	})

	a.logger.Debug("impact.analyzed",
		"function", fn.Name,
		"callers", len(callers),
		"callees", len(callees),
		"risk", impact.RiskLevel,
	)
	return impact, nil
}

// GetCallersMultiHop returns every function with a directed CALLS path of
// length 1..maxDepth terminating at functionID, each with its shortest
// path. Exposed so downstream analyzers reuse the traversal instead of
// duplicating queries.
func (a *Analyzer) GetCallersMultiHop(ctx context.Context, functionID string, maxDepth int) ([]CallerPath, error) {
	paths, _, err := a.traverse(ctx, functionID, ClampDepth(maxDepth), a.store.CallersOf)
	return paths, err
}

// GetCalleesMultiHop is the symmetric callee-direction traversal.
func (a *Analyzer) GetCalleesMultiHop(ctx context.Context, functionID string, maxDepth int) ([]CallerPath, error) {
	paths, _, err := a.traverse(ctx, functionID, ClampDepth(maxDepth), a.store.CalleesOf)
	return paths, err
}

// traverse runs one bounded breadth-first expansion from origin using next
// as the adjacency function. The frontier expands in (name, id) order so
// equal-length paths resolve to the lexicographically smaller parent,
// making retained shortest paths deterministic. Results are sorted by
// (depth, name, id).
func (a *Analyzer) traverse(ctx context.Context, origin string, maxDepth int, next func(context.Context, string) ([]model.FunctionNode, error)) ([]CallerPath, bool, error) {
	type frontierNode struct {
		fn   model.FunctionNode
		path []string
	}

	visited := map[string]bool{origin: true}
	var results []CallerPath
	truncated := false

	frontier := []frontierNode{{fn: model.FunctionNode{ID: origin}}}
	for depth := 1; depth <= maxDepth; depth++ {
		var nextFrontier []frontierNode
		for _, node := range frontier {
			if err := ctx.Err(); err != nil {
				return nil, false, &model.FatalStoreError{Op: "traverse", Err: err}
			}
			neighbors, err := next(ctx, node.fn.ID)
			if err != nil {
				return nil, false, err
			}
			sort.Slice(neighbors, func(i, j int) bool {
				if neighbors[i].Name != neighbors[j].Name {
					return neighbors[i].Name < neighbors[j].Name
				}
				return neighbors[i].ID < neighbors[j].ID
			})
			for _, nb := range neighbors {
				if visited[nb.ID] {
					continue
				}
				visited[nb.ID] = true
				path := append(append([]string(nil), node.path...), nb.Name)
				results = append(results, CallerPath{Function: nb, Depth: depth, Path: path})
				nextFrontier = append(nextFrontier, frontierNode{fn: nb, path: path})
			}
		}
		frontier = nextFrontier
		if len(frontier) == 0 {
			break
		}
	}

	// The traversal stopped with live nodes still in the frontier; check
	// whether any of them has unvisited neighbors.
	if len(frontier) > 0 {
		for _, node := range frontier {
			neighbors, err := next(ctx, node.fn.ID)
			if err != nil {
				return nil, false, err
			}
			for _, nb := range neighbors {
				if !visited[nb.ID] {
					truncated = true
					break
				}
			}
			if truncated {
				break
			}
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Depth != results[j].Depth {
			return results[i].Depth < results[j].Depth
		}
		if results[i].Function.Name != results[j].Function.Name {
			return results[i].Function.Name < results[j].Function.Name
		}
		return results[i].Function.ID < results[j].Function.ID
	})
	return results, truncated, nil
}

// splitByDepth separates depth-1 hits (direct) from deeper ones.
func splitByDepth(paths []CallerPath) ([]model.FunctionNode, []CallerPath) {
	var direct []model.FunctionNode
	var indirect []CallerPath
	for _, p := range paths {
		if p.Depth == 1 {
			direct = append(direct, p.Function)
		} else {
			indirect = append(indirect, p)
		}
	}
	return direct, indirect
}

// syscallEntries filters the caller set for syscall entry points.
func (a *Analyzer) syscallEntries(callers []CallerPath) []SyscallEntry {
	var entries []SyscallEntry
	for _, c := range callers {
		if a.syscallRe.MatchString(c.Function.Name) {
			entries = append(entries, SyscallEntry{EntryPoint: c.Function, ShortestPath: c.Depth})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ShortestPath != entries[j].ShortestPath {
			return entries[i].ShortestPath < entries[j].ShortestPath
		}
		return entries[i].EntryPoint.Name < entries[j].EntryPoint.Name
	})
	return entries
}

// indirectCoverage unions the tests covering any caller within the
// traversal, excluding tests already counted as direct coverage.
func (a *Analyzer) indirectCoverage(ctx context.Context, callers []CallerPath, direct []model.TestCaseNode) ([]model.TestCaseNode, error) {
	directIDs := make(map[string]bool, len(direct))
	for _, t := range direct {
		directIDs[t.ID] = true
	}

	seen := make(map[string]bool)
	var tests []model.TestCaseNode
	for _, c := range callers {
		covering, err := a.store.TestsCovering(ctx, c.Function.ID)
		if err != nil {
			return nil, err
		}
		for _, t := range covering {
			if directIDs[t.ID] || seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			tests = append(tests, t)
		}
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].ID < tests[j].ID })
	return tests, nil
}
