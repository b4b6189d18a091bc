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

// Package ingestion provides the shared plumbing the graph store
// (pkg/graphstore) and orchestration layer (pkg/pipeline) build on:
//
//   - Batcher regroups the store's one-statement-per-line mutation
//     scripts into transaction-sized batches, targeting a statement count
//     and keeping each transaction's script under CozoDB's size limits.
//
//   - CheckpointManager persists a restart marker across ingestion runs so
//     a cancelled subsystem ingest can be resumed by purging and
//     re-ingesting.
//
//   - The Prometheus counters in metrics.go back the pipeline's end-of-run
//     summary: parsed files, extracted functions, extracted flows, ingested
//     batches, warnings, and retries.
package ingestion
