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
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/storage"
)

// fakeBackend records executed scripts and serves canned query results.
type fakeBackend struct {
	executed []string
	execErrs []error // popped per Execute call; nil entries succeed
	queryFn  func(script string) (*storage.QueryResult, error)
}

func (f *fakeBackend) Query(_ context.Context, script string) (*storage.QueryResult, error) {
	if f.queryFn != nil {
		return f.queryFn(script)
	}
	return &storage.QueryResult{}, nil
}

func (f *fakeBackend) Execute(_ context.Context, script string) error {
	f.executed = append(f.executed, script)
	if len(f.execErrs) > 0 {
		err := f.execErrs[0]
		f.execErrs = f.execErrs[1:]
		return err
	}
	return nil
}

func (f *fakeBackend) Close() error { return nil }

func newTestStore(backend storage.Backend, opts ...Option) *Store {
	s := New(backend, nil, opts...)
	s.sleep = func(time.Duration) {}
	return s
}

func TestBuildPutScript_ChunksRows(t *testing.T) {
	rows := make([][]any, 0, rowsPerStatement+1)
	for i := 0; i < rowsPerStatement+1; i++ {
		rows = append(rows, []any{fmt.Sprintf("id%d", i), "f"})
	}
	script, err := buildPutScript("contains", rows)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(script, ":put contains"),
		"rows beyond rowsPerStatement must spill into a second statement")
	assert.True(t, strings.HasPrefix(script, "{?[file_id, function_id] <- "))
}

func TestBuildPutScript_UnknownRelation(t *testing.T) {
	_, err := buildPutScript("nope", [][]any{{"x"}})
	require.Error(t, err)
}

func TestPutSpec(t *testing.T) {
	assert.Equal(t, ":put calls {caller_id, callee_id, line_number => callee_name, is_resolved}", putSpec("calls"))
	assert.Equal(t, ":put subsystem {name}", putSpec("subsystem"))
	assert.Equal(t, ":put contains {file_id, function_id}", putSpec("contains"))
}

func TestUpsertFunctions_EscapesStrings(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestStore(backend)

	err := s.UpsertFunctions(context.Background(), []model.FunctionNode{{
		ID:   `fs/read.c::weird"name::3`,
		Name: `weird"name`,
	}})
	require.NoError(t, err)
	require.Len(t, backend.executed, 1)
	assert.Contains(t, backend.executed[0], `\"name`, "quotes must be JSON-escaped in the script literal")
}

func TestUpsertEmptyBatchIsNoop(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestStore(backend)
	require.NoError(t, s.UpsertCalls(context.Background(), nil))
	assert.Empty(t, backend.executed)
}

func TestExecuteWithRetry_TransientThenSuccess(t *testing.T) {
	backend := &fakeBackend{execErrs: []error{errors.New("busy"), errors.New("busy"), nil}}
	s := newTestStore(backend)

	err := s.executeWithRetry(context.Background(), "upsert function", "{}")
	require.NoError(t, err)
	assert.Len(t, backend.executed, 3, "two transient failures then success")
}

func TestExecuteWithRetry_ExhaustionIsFatal(t *testing.T) {
	backend := &fakeBackend{execErrs: []error{errors.New("busy"), errors.New("busy"), errors.New("busy")}}
	s := newTestStore(backend)

	err := s.executeWithRetry(context.Background(), "upsert function", "{}")
	require.Error(t, err)

	var fatal *model.FatalStoreError
	require.ErrorAs(t, err, &fatal)
	var transient *model.TransientStoreError
	require.ErrorAs(t, err, &transient, "fatal error must wrap the last transient attempt")
	assert.Equal(t, maxRetries, transient.Attempt)
}

func TestExecuteWithRetry_CancelledContext(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestStore(backend)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.executeWithRetry(ctx, "upsert function", "{}")
	require.Error(t, err)
	assert.Empty(t, backend.executed, "no batch may start after cancellation")
}

func functionRow(fn model.FunctionNode) []any {
	return []any{fn.ID, fn.Name, fn.FilePath, float64(fn.LineStart), float64(fn.LineEnd),
		fn.IsStatic, fn.IsInline, fn.Subsystem, fn.ReturnType, fn.IsPlaceholder}
}

func TestFindFunction_NotFound(t *testing.T) {
	backend := &fakeBackend{queryFn: func(string) (*storage.QueryResult, error) {
		return &storage.QueryResult{}, nil
	}}
	s := newTestStore(backend)

	_, err := s.FindFunction(context.Background(), "missing", "")
	var notFound *model.FunctionNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
}

func TestFindFunction_Ambiguous(t *testing.T) {
	a := model.FunctionNode{ID: "a.c::dup::1", Name: "dup"}
	b := model.FunctionNode{ID: "b.c::dup::9", Name: "dup"}
	backend := &fakeBackend{queryFn: func(string) (*storage.QueryResult, error) {
		return &storage.QueryResult{Rows: [][]any{functionRow(a), functionRow(b)}}, nil
	}}
	s := newTestStore(backend)

	_, err := s.FindFunction(context.Background(), "dup", "")
	var ambiguous *model.AmbiguousFunction
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, []string{"a.c::dup::1", "b.c::dup::9"}, ambiguous.Candidates)
}

func TestFindFunction_FilePathDisambiguates(t *testing.T) {
	a := model.FunctionNode{ID: "a.c::dup::1", Name: "dup", FilePath: "a.c"}
	backend := &fakeBackend{queryFn: func(script string) (*storage.QueryResult, error) {
		if strings.Contains(script, `file_path == "a.c"`) {
			return &storage.QueryResult{Rows: [][]any{functionRow(a)}}, nil
		}
		return &storage.QueryResult{Rows: [][]any{functionRow(a), functionRow(a)}}, nil
	}}
	s := newTestStore(backend)

	fn, err := s.FindFunction(context.Background(), "dup", "a.c")
	require.NoError(t, err)
	assert.Equal(t, "a.c::dup::1", fn.ID)
}

func TestQueryWithRetry_TransientReads(t *testing.T) {
	calls := 0
	backend := &fakeBackend{queryFn: func(string) (*storage.QueryResult, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("io timeout")
		}
		return &storage.QueryResult{}, nil
	}}
	s := newTestStore(backend)

	_, err := s.queryWithRetry(context.Background(), "read", "?[x] := x = 1")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestInstallSchema_IdempotentOnExisting(t *testing.T) {
	backend := &fakeBackend{}
	for range schemaStatements {
		backend.execErrs = append(backend.execErrs, errors.New("stored relation function already exists"))
	}
	s := newTestStore(backend)

	require.NoError(t, s.InstallSchema(context.Background()),
		"re-installing an existing schema must not fail")
}

func TestInstallSchema_SurfacesSchemaError(t *testing.T) {
	backend := &fakeBackend{execErrs: []error{errors.New("parse error")}}
	s := newTestStore(backend)

	err := s.InstallSchema(context.Background())
	var schemaErr *model.SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestTopFunctions_SortAndLimit(t *testing.T) {
	fns := map[string]model.FunctionNode{
		"a": {ID: "a", Name: "alpha", Subsystem: "fs"},
		"b": {ID: "b", Name: "beta", Subsystem: "fs"},
		"c": {ID: "c", Name: "gamma", Subsystem: "mm"},
	}
	backend := &fakeBackend{queryFn: func(script string) (*storage.QueryResult, error) {
		if strings.Contains(script, "count(caller_id)") && !strings.Contains(script, "is_resolved") {
			return &storage.QueryResult{Rows: [][]any{
				{"a", float64(5)},
				{"b", float64(5)},
				{"c", float64(9)},
			}}, nil
		}
		for id, fn := range fns {
			if strings.Contains(script, fmt.Sprintf("id == %q", id)) {
				return &storage.QueryResult{Rows: [][]any{functionRow(fn)}}, nil
			}
		}
		return &storage.QueryResult{}, nil
	}}
	s := newTestStore(backend)

	top, err := s.TopFunctions(context.Background(), "", 0, 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "gamma", top[0].Function.Name, "highest in-degree first")
	assert.Equal(t, "alpha", top[1].Function.Name, "ties break lexicographically")
	assert.Equal(t, "beta", top[2].Function.Name)

	scoped, err := s.TopFunctions(context.Background(), "fs", 0, 1)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "alpha", scoped[0].Function.Name)
}

func TestPurgeSubsystem_RepointsIncomingCalls(t *testing.T) {
	backend := &fakeBackend{queryFn: func(script string) (*storage.QueryResult, error) {
		if strings.Contains(script, "caller_sub !=") {
			return &storage.QueryResult{Rows: [][]any{
				{"net/dev.c::ext_caller::10", "fs/read.c::vfs_read::5", float64(12), "vfs_read"},
			}}, nil
		}
		return &storage.QueryResult{}, nil
	}}
	s := newTestStore(backend)

	require.NoError(t, s.PurgeSubsystem(context.Background(), "fs"))

	joined := strings.Join(backend.executed, "\n---\n")
	assert.Contains(t, joined, model.PlaceholderFunctionID("vfs_read"),
		"incoming edge must be repointed to a placeholder node")
	assert.Contains(t, joined, ":rm calls", "the original edge must be removed")
	assert.Contains(t, joined, ":rm variable", "variables cascade")
	assert.Contains(t, joined, ":rm flows_to", "flows cascade")
	assert.Contains(t, joined, ":rm function", "functions are deleted last")
}
