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

package testing

import (
	"context"
	"testing"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/graphstore"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/storage"
)

// SetupTestStore creates an in-memory graph store with the sentinel schema
// installed. The store is automatically closed when the test finishes.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    store := testing.SetupTestStore(t)
//	    testing.InsertTestFunction(t, store, "fs/read.c::vfs_read::10", "vfs_read", "fs/read.c", "fs", 10, 30)
//	    // Run your tests...
//	}
func SetupTestStore(t *testing.T) *graphstore.Store {
	t.Helper()

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
		Engine:  "mem",
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create test backend: %v", err)
	}

	store := graphstore.New(backend, nil)
	if err := store.InstallSchema(context.Background()); err != nil {
		t.Fatalf("failed to install schema: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// InsertTestFunction seeds one FunctionNode.
//
// Example:
//
//	testing.InsertTestFunction(t, store, "fs/read.c::vfs_read::10", "vfs_read", "fs/read.c", "fs", 10, 30)
func InsertTestFunction(t *testing.T, store *graphstore.Store, id, name, filePath, subsystem string, lineStart, lineEnd int) {
	t.Helper()

	err := store.UpsertFunctions(context.Background(), []model.FunctionNode{{
		ID:        id,
		Name:      name,
		FilePath:  filePath,
		Subsystem: subsystem,
		LineStart: lineStart,
		LineEnd:   lineEnd,
	}})
	if err != nil {
		t.Fatalf("failed to insert test function: %v", err)
	}
}

// InsertTestPlaceholder seeds a placeholder FunctionNode for an unresolved
// callee name.
func InsertTestPlaceholder(t *testing.T, store *graphstore.Store, calleeName string) string {
	t.Helper()

	id := model.PlaceholderFunctionID(calleeName)
	err := store.UpsertFunctions(context.Background(), []model.FunctionNode{{
		ID:            id,
		Name:          calleeName,
		IsPlaceholder: true,
	}})
	if err != nil {
		t.Fatalf("failed to insert placeholder: %v", err)
	}
	return id
}

// InsertTestCall seeds one CALLS edge between two already-inserted
// functions.
//
// Example:
//
//	testing.InsertTestCall(t, store, callerID, calleeID, "vfs_read", 42, true)
func InsertTestCall(t *testing.T, store *graphstore.Store, callerID, calleeID, calleeName string, line int, resolved bool) {
	t.Helper()

	err := store.UpsertCalls(context.Background(), []model.CallSiteEdge{{
		CallerID:   callerID,
		CalleeID:   calleeID,
		CalleeName: calleeName,
		LineNumber: line,
		IsResolved: resolved,
	}})
	if err != nil {
		t.Fatalf("failed to insert calls edge: %v", err)
	}
}

// InsertTestVariable seeds one VariableNode owned by a function.
func InsertTestVariable(t *testing.T, store *graphstore.Store, functionID, name string, kind model.VariableKind, line int) string {
	t.Helper()

	id := model.VariableID(functionID, name, line)
	err := store.UpsertVariables(context.Background(), []model.VariableNode{{
		ID:              id,
		FunctionID:      functionID,
		Name:            name,
		Kind:            kind,
		DeclarationLine: line,
	}})
	if err != nil {
		t.Fatalf("failed to insert test variable: %v", err)
	}
	return id
}

// InsertTestFlow seeds one FLOWS_TO edge between two variables of the same
// function.
func InsertTestFlow(t *testing.T, store *graphstore.Store, functionID, sourceID, targetID string, kind model.FlowKind, line int, confidence float64) {
	t.Helper()

	err := store.UpsertFlows(context.Background(), []model.DataFlowEdge{{
		FunctionID:       functionID,
		SourceVariableID: sourceID,
		TargetVariableID: targetID,
		FlowKind:         kind,
		LineNumber:       line,
		Confidence:       confidence,
	}})
	if err != nil {
		t.Fatalf("failed to insert test flow: %v", err)
	}
}

// InsertTestCase seeds one TestCaseNode plus a direct COVERS edge to
// functionID.
//
// Example:
//
//	testing.InsertTestCase(t, store, "t.c::test_read", "test_read", targetFunctionID)
func InsertTestCase(t *testing.T, store *graphstore.Store, id, name, functionID string) {
	t.Helper()

	ctx := context.Background()
	err := store.UpsertTests(ctx, []model.TestCaseNode{{
		ID:        id,
		Name:      name,
		Framework: "kunit",
	}})
	if err != nil {
		t.Fatalf("failed to insert test case: %v", err)
	}
	err = store.UpsertCovers(ctx, []model.CoversEdge{{
		TestCaseID:   id,
		FunctionID:   functionID,
		CoverageKind: model.CoverageDirect,
		Confidence:   1.0,
	}})
	if err != nil {
		t.Fatalf("failed to insert covers edge: %v", err)
	}
}
