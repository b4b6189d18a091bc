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

package graphstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/storage"
)

const functionProjection = "id, name, file_path, line_start, line_end, is_static, is_inline, subsystem, return_type, is_placeholder"

// queryWithRetry runs a read-only query, retrying transient failures with
// the same budget the write path uses. Traversals are read-only, so a
// retried read never observes partial writes from its own run.
func (s *Store) queryWithRetry(ctx context.Context, op, script string) (*storage.QueryResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &model.FatalStoreError{Op: op, Err: err}
		}
		res, err := s.backend.Query(ctx, script)
		if err == nil {
			return res, nil
		}
		lastErr = &model.TransientStoreError{Op: op, Attempt: attempt, Err: err}
		if attempt < maxRetries {
			s.sleep(retryBaseDelay << (attempt - 1))
		}
	}
	return nil, &model.FatalStoreError{Op: op, Err: lastErr}
}

// FindFunction resolves a function by name. filePath narrows the search
// when the name is ambiguous across files; pass "" to match any file.
// Returns FunctionNotFound on zero matches and AmbiguousFunction when more
// than one node matches.
func (s *Store) FindFunction(ctx context.Context, name, filePath string) (*model.FunctionNode, error) {
	script := fmt.Sprintf(
		"?[%s] := *function{%s}, name == %s, is_placeholder == false",
		functionProjection, functionProjection, queryLit(name),
	)
	if filePath != "" {
		script = fmt.Sprintf(
			"?[%s] := *function{%s}, name == %s, file_path == %s, is_placeholder == false",
			functionProjection, functionProjection, queryLit(name), queryLit(filePath),
		)
	}
	res, err := s.queryWithRetry(ctx, "find function", script)
	if err != nil {
		return nil, err
	}
	fns := functionsFromRows(res.Rows)
	switch len(fns) {
	case 0:
		return nil, &model.FunctionNotFound{Name: name}
	case 1:
		return &fns[0], nil
	default:
		candidates := make([]string, 0, len(fns))
		for _, f := range fns {
			candidates = append(candidates, f.ID)
		}
		sort.Strings(candidates)
		return nil, &model.AmbiguousFunction{Name: name, Candidates: candidates}
	}
}

// FunctionByID fetches one FunctionNode, placeholders included.
func (s *Store) FunctionByID(ctx context.Context, id string) (*model.FunctionNode, error) {
	script := fmt.Sprintf(
		"?[%s] := *function{%s}, id == %s",
		functionProjection, functionProjection, queryLit(id),
	)
	res, err := s.queryWithRetry(ctx, "function by id", script)
	if err != nil {
		return nil, err
	}
	fns := functionsFromRows(res.Rows)
	if len(fns) == 0 {
		return nil, &model.FunctionNotFound{Name: id}
	}
	return &fns[0], nil
}

// CallersOf returns every function with a CALLS edge into functionID.
func (s *Store) CallersOf(ctx context.Context, functionID string) ([]model.FunctionNode, error) {
	script := fmt.Sprintf(
		"?[%s] := *calls{caller_id, callee_id}, callee_id == %s, *function{id: caller_id, %s}",
		functionProjection, queryLit(functionID), functionProjection,
	)
	res, err := s.queryWithRetry(ctx, "callers of", script)
	if err != nil {
		return nil, err
	}
	return sortedFunctions(functionsFromRows(res.Rows)), nil
}

// CalleesOf returns every function (resolved or placeholder) that
// functionID has a CALLS edge to.
func (s *Store) CalleesOf(ctx context.Context, functionID string) ([]model.FunctionNode, error) {
	script := fmt.Sprintf(
		"?[%s] := *calls{caller_id, callee_id}, caller_id == %s, *function{id: callee_id, %s}",
		functionProjection, queryLit(functionID), functionProjection,
	)
	res, err := s.queryWithRetry(ctx, "callees of", script)
	if err != nil {
		return nil, err
	}
	return sortedFunctions(functionsFromRows(res.Rows)), nil
}

// TestsCovering returns the TestCase nodes with a direct COVERS edge to
// functionID.
func (s *Store) TestsCovering(ctx context.Context, functionID string) ([]model.TestCaseNode, error) {
	script := fmt.Sprintf(
		"?[test_case_id, name, file_path, framework, assertions_count] := *covers{test_case_id, function_id}, function_id == %s, *test_case{id: test_case_id, name, file_path, framework, assertions_count}",
		queryLit(functionID),
	)
	res, err := s.queryWithRetry(ctx, "tests covering", script)
	if err != nil {
		return nil, err
	}
	tests := make([]model.TestCaseNode, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) < 5 {
			continue
		}
		tests = append(tests, model.TestCaseNode{
			ID:              asString(row[0]),
			Name:            asString(row[1]),
			FilePath:        asString(row[2]),
			Framework:       asString(row[3]),
			AssertionsCount: asInt(row[4]),
		})
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].ID < tests[j].ID })
	return tests, nil
}

// TopFunction is one row of the most-called ranking.
type TopFunction struct {
	Function    model.FunctionNode `json:"function"`
	CallerCount int                `json:"caller_count"`
}

// TopFunctions ranks functions in a subsystem by distinct incoming caller
// count. Pass subsystem "" to rank globally. Ties break by name so the
// ranking is deterministic.
func (s *Store) TopFunctions(ctx context.Context, subsystem string, minCallers, limit int) ([]TopFunction, error) {
	script := "?[callee_id, count(caller_id)] := *calls{caller_id, callee_id}"
	res, err := s.queryWithRetry(ctx, "top functions", script)
	if err != nil {
		return nil, err
	}

	type counted struct {
		id    string
		count int
	}
	var ranked []counted
	for _, row := range res.Rows {
		if len(row) < 2 {
			continue
		}
		c := counted{id: asString(row[0]), count: asInt(row[1])}
		if c.count >= minCallers {
			ranked = append(ranked, c)
		}
	}

	out := make([]TopFunction, 0, len(ranked))
	for _, c := range ranked {
		fn, err := s.FunctionByID(ctx, c.id)
		if err != nil {
			continue // placeholder repointed or purged mid-query
		}
		if subsystem != "" && fn.Subsystem != subsystem {
			continue
		}
		out = append(out, TopFunction{Function: *fn, CallerCount: c.count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CallerCount != out[j].CallerCount {
			return out[i].CallerCount > out[j].CallerCount
		}
		return out[i].Function.Name < out[j].Function.Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats aggregates graph-wide counts for the stats command.
type Stats struct {
	Functions     int `json:"functions"`
	Placeholders  int `json:"placeholders"`
	Variables     int `json:"variables"`
	Flows         int `json:"flows"`
	Calls         int `json:"calls"`
	CallsResolved int `json:"calls_resolved"`
	TestCases     int `json:"test_cases"`
	Covers        int `json:"covers"`
	Subsystems    int `json:"subsystems"`
}

// GetStats counts nodes and edges across the whole graph.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	counts := []struct {
		script string
		target *int
	}{
		{"?[count(id)] := *function{id, is_placeholder}, is_placeholder == false", &st.Functions},
		{"?[count(id)] := *function{id, is_placeholder}, is_placeholder == true", &st.Placeholders},
		{"?[count(id)] := *variable{id}", &st.Variables},
		{"?[count(function_id)] := *flows_to{function_id, source_variable_id, target_variable_id, flow_kind, line_number}", &st.Flows},
		{"?[count(caller_id)] := *calls{caller_id, callee_id, line_number}", &st.Calls},
		{"?[count(caller_id)] := *calls{caller_id, callee_id, line_number, is_resolved}, is_resolved == true", &st.CallsResolved},
		{"?[count(id)] := *test_case{id}", &st.TestCases},
		{"?[count(test_case_id)] := *covers{test_case_id, function_id}", &st.Covers},
		{"?[count(name)] := *subsystem{name}", &st.Subsystems},
	}
	for _, c := range counts {
		res, err := s.queryWithRetry(ctx, "stats", c.script)
		if err != nil {
			return nil, err
		}
		if len(res.Rows) > 0 && len(res.Rows[0]) > 0 {
			*c.target = asInt(res.Rows[0][0])
		}
	}
	return st, nil
}

// HasTests reports whether any TestCase node exists at all. The risk
// scorer uses this to tell "untested function" apart from "coverage never
// mapped".
func (s *Store) HasTests(ctx context.Context) (bool, error) {
	res, err := s.queryWithRetry(ctx, "has tests", "?[count(id)] := *test_case{id}")
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0 && len(res.Rows[0]) > 0 && asInt(res.Rows[0][0]) > 0, nil
}

// FunctionsInSubsystem lists every non-placeholder function of a subsystem.
func (s *Store) FunctionsInSubsystem(ctx context.Context, subsystem string) ([]model.FunctionNode, error) {
	script := fmt.Sprintf(
		"?[%s] := *function{%s}, subsystem == %s, is_placeholder == false",
		functionProjection, functionProjection, queryLit(subsystem),
	)
	res, err := s.queryWithRetry(ctx, "functions in subsystem", script)
	if err != nil {
		return nil, err
	}
	return sortedFunctions(functionsFromRows(res.Rows)), nil
}

func functionsFromRows(rows [][]any) []model.FunctionNode {
	fns := make([]model.FunctionNode, 0, len(rows))
	for _, row := range rows {
		if len(row) < 10 {
			continue
		}
		fns = append(fns, model.FunctionNode{
			ID:            asString(row[0]),
			Name:          asString(row[1]),
			FilePath:      asString(row[2]),
			LineStart:     asInt(row[3]),
			LineEnd:       asInt(row[4]),
			IsStatic:      asBool(row[5]),
			IsInline:      asBool(row[6]),
			Subsystem:     asString(row[7]),
			ReturnType:    asString(row[8]),
			IsPlaceholder: asBool(row[9]),
		})
	}
	return fns
}

func sortedFunctions(fns []model.FunctionNode) []model.FunctionNode {
	sort.Slice(fns, func(i, j int) bool { return fns[i].ID < fns[j].ID })
	return fns
}

// asString / asInt / asBool tolerate the any-typed cells CozoDB rows carry:
// numbers arrive as float64 through the JSON layer, booleans as bool, and
// everything else stringifies.
func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asBool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
