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

// Package testing provides test helpers for sentinel integration tests:
// an in-memory graph store with the full sentinel schema installed, plus
// seeding utilities for the node and edge kinds of the property graph.
//
// These helpers require the CozoDB C library (they exercise the real
// embedded engine, not a fake); unit tests that only need a store-shaped
// dependency should prefer a hand-rolled fake of the relevant interface.
//
// # Quick Start
//
//	func TestMyFeature(t *testing.T) {
//	    store := testing.SetupTestStore(t)
//
//	    testing.InsertTestFunction(t, store, "fs/read.c::vfs_read::10", "vfs_read", "fs/read.c", "fs", 10, 30)
//
//	    fn, err := store.FindFunction(context.Background(), "vfs_read", "")
//	    require.NoError(t, err)
//	}
//
// # Seeding Test Data
//
//   - InsertTestFunction: add a FunctionNode
//   - InsertTestPlaceholder: add a placeholder node for an unresolved callee
//   - InsertTestCall: add a CALLS edge
//   - InsertTestVariable: add a VariableNode
//   - InsertTestFlow: add a FLOWS_TO edge
//   - InsertTestCase: add a TestCaseNode plus its direct COVERS edge
package testing
