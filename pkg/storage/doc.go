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

// Package storage provides the low-level Datalog backend abstraction that
// pkg/graphstore is built on.
//
// # Available Backends
//
//   - EmbeddedBackend: a local CozoDB instance. The only backend the core
//     contract requires - a single persistent store is assumed throughout;
//     a remote, horizontally-scaled backend is an external concern.
//
// # Quick Start
//
//	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
//	    DataDir:   "/path/to/data",
//	    Engine:    "rocksdb",
//	    ProjectID: "net", // conventionally the subsystem name
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	result, err := backend.Query(ctx, `?[name] := *function{name} :limit 10`)
//
// # Schema ownership
//
// This package has no opinion on relation shapes - RunDDL is the one hook
// schema installation needs, and pkg/graphstore.InstallSchema is the only
// caller. Application code should never issue ":create"/":replace" through
// Execute directly.
//
// # Query vs Execute
//
// Query runs CozoDB's RunReadOnly, rejecting any mutation at the engine
// level; Execute runs Run, permitting mutations. pkg/graphstore's typed
// query methods use Query; its upsert/purge methods use Execute.
//
// # Thread Safety
//
// EmbeddedBackend is safe for concurrent use: reads take a read lock,
// writes take an exclusive lock, matching a single-writer-during-ingestion,
// shared-read-only-during-analysis access pattern.
package storage
