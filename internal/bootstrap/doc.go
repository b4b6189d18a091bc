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

// Package bootstrap wires the sentinel configuration into concrete
// pipeline components: it opens the embedded graph store from
// graph_store.url, and assembles the parser, data-flow extractor, test
// mapper, ingestion pipeline, and impact analyzer around it.
//
// # Typical wiring
//
//	cfg, err := config.Load(configPath)
//	if err != nil {
//	    return err
//	}
//	store, err := bootstrap.OpenStore(cfg, logger, nil)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	pipe := bootstrap.BuildPipeline(cfg, store, logger, nil)
//	summary, err := pipe.Ingest(ctx, subsystemRoot)
//
// # Storage Engines
//
// graph_store.url selects among three CozoDB engines:
//
//   - rocksdb:<dir>: production-grade persistent storage (default)
//   - sqlite:<dir>: lightweight persistent storage for smaller graphs
//   - mem: in-memory storage for testing and one-shot analyses
//
// An omitted directory defaults to ~/.sentinel/data.
package bootstrap
