// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package testmap identifies kernel test functions
// by framework-specific syntactic markers (kunit, selftest, kselftest) and
// emits TestCaseNode records plus direct COVERS edges to every callee that
// resolves unambiguously to a known FunctionNode in the same subsystem.
package testmap

import (
	"context"
	"log/slog"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/cparse"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
)

// Result is everything the mapper extracts from one subsystem.
type Result struct {
	TestCases []model.TestCaseNode
	Covers    []model.CoversEdge

	// Warnings counts files that define test-shaped functions but match no
	// known framework; such files are skipped, never fatal.
	Warnings int
}

// Mapper maps test files under a subsystem root to the functions they
// cover. It reuses pkg/cparse's AST extraction rather than re-parsing with
// a separate grammar pass - a test file is still a C translation unit.
type Mapper struct {
	parser *cparse.Parser
	logger *slog.Logger
}

// New creates a Mapper. parser must not be nil.
func New(parser *cparse.Parser, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{parser: parser, logger: logger}
}

// MapTests parses every ".c" file under root once, builds a name->id index
// of every function defined anywhere in the subsystem (ambiguous names
// excluded), then walks the subset of files recognized as test files and
// emits a TestCaseNode for each function matching its framework's naming
// convention, with one COVERS(direct) edge per unique callee that resolves
// in the index.
func (m *Mapper) MapTests(ctx context.Context, root string) (*Result, error) {
	all, err := m.parser.ExtractFromSubsystem(ctx, root)
	if err != nil {
		return &Result{}, err
	}
	defer all.Close()

	index := buildFunctionIndex(all.Functions)

	callsByCaller := make(map[string][]model.CallSiteEdge, len(all.Calls))
	for _, c := range all.Calls {
		callsByCaller[c.CallerID] = append(callsByCaller[c.CallerID], c)
	}

	var result Result

	unknownWarned := make(map[string]bool)
	for _, pf := range all.Functions {
		filePath := pf.Function.FilePath
		fw, ok := detectFramework(filePath)
		if !ok {
			// A test-shaped function in a file no framework matcher
			// recognizes means an unknown framework: skip it with a
			// warning, once per file.
			if looksLikeTestFunction(pf.Function.Name) && !unknownWarned[filePath] {
				unknownWarned[filePath] = true
				result.Warnings++
				m.logger.Warn("testmap.unknown_framework",
					"file", filePath,
					"function", pf.Function.Name,
				)
			}
			continue
		}
		if !isTestFunction(fw, pf.Function.Name) {
			continue
		}

		tc := model.TestCaseNode{
			ID:        model.TestCaseID(filePath, pf.Function.Name),
			Name:      pf.Function.Name,
			FilePath:  filePath,
			Framework: string(fw),
		}

		assertions := 0
		seenCallee := make(map[string]bool)
		for _, call := range callsByCaller[pf.Function.ID] {
			if isAssertionCall(call.CalleeName) {
				assertions++
				continue
			}
			if seenCallee[call.CalleeName] {
				continue
			}
			calleeID, ok := index[call.CalleeName]
			if !ok {
				continue
			}
			seenCallee[call.CalleeName] = true
			result.Covers = append(result.Covers, model.CoversEdge{
				TestCaseID:   tc.ID,
				FunctionID:   calleeID,
				CoverageKind: model.CoverageDirect,
				Confidence:   1.0,
			})
		}
		tc.AssertionsCount = assertions

		result.TestCases = append(result.TestCases, tc)
	}

	m.logger.Info("testmap.summary",
		"root", root,
		"test_cases", len(result.TestCases),
		"covers_edges", len(result.Covers),
		"warnings", result.Warnings,
	)

	return &result, nil
}

// buildFunctionIndex maps function name to id, excluding names that are
// ambiguous within the subsystem - an unresolved callee name in a COVERS
// edge is simply dropped rather than guessed at, consistent with the CALLS
// placeholder policy being the ingester's job, not the test mapper's.
func buildFunctionIndex(functions []cparse.ParsedFunction) map[string]string {
	counts := make(map[string]int, len(functions))
	ids := make(map[string]string, len(functions))
	for _, pf := range functions {
		counts[pf.Function.Name]++
		ids[pf.Function.Name] = pf.Function.ID
	}
	index := make(map[string]string, len(ids))
	for name, id := range ids {
		if counts[name] == 1 {
			index[name] = id
		}
	}
	return index
}
