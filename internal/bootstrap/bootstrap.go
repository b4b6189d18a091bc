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

package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/config"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/cparse"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/graphstore"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/impact"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/ingestion"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/pipeline"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/preprocess"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/storage"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/testmap"
)

// ParseStoreURL splits a graph_store.url into engine and data directory.
// Recognized forms: "mem", "sqlite:<dir>", "rocksdb:<dir>". An empty
// directory falls back to ~/.sentinel/data.
func ParseStoreURL(url string) (engine, dataDir string, err error) {
	engine = "rocksdb"
	rest := url
	switch {
	case url == "" || url == "mem":
		engine = "mem"
		rest = ""
	case strings.HasPrefix(url, "sqlite:"):
		engine = "sqlite"
		rest = strings.TrimPrefix(url, "sqlite:")
	case strings.HasPrefix(url, "rocksdb:"):
		engine = "rocksdb"
		rest = strings.TrimPrefix(url, "rocksdb:")
	default:
		return "", "", fmt.Errorf("unrecognized graph_store.url %q (want mem, sqlite:<dir>, or rocksdb:<dir>)", url)
	}

	if engine == "mem" {
		return engine, "", nil
	}
	if rest == "" {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", "", fmt.Errorf("get home dir: %w", herr)
		}
		rest = filepath.Join(home, ".sentinel", "data")
	}
	return engine, rest, nil
}

// OpenStore opens the graph store described by cfg. The caller owns the
// returned Store and must Close it.
func OpenStore(cfg *config.Config, logger *slog.Logger, metrics *ingestion.Metrics) (*graphstore.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	engine, dataDir, err := ParseStoreURL(cfg.GraphStore.URL)
	if err != nil {
		return nil, err
	}
	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
		Engine:  engine,
		DataDir: dataDir,
	})
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}

	opts := []graphstore.Option{}
	if cfg.BatchSize > 0 {
		opts = append(opts, graphstore.WithBatchSize(cfg.BatchSize))
	}
	if metrics != nil {
		opts = append(opts, graphstore.WithMetrics(metrics))
	}
	logger.Debug("bootstrap.store.opened", "engine", engine, "data_dir", dataDir)
	return graphstore.New(backend, logger, opts...), nil
}

// BuildPipeline wires the parser, data-flow extractor, and test mapper
// around store according to cfg.
func BuildPipeline(cfg *config.Config, store *graphstore.Store, logger *slog.Logger, metrics *ingestion.Metrics) *pipeline.Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	var preproc *preprocess.Wrapper
	if cfg.Preprocessing.Enabled {
		preproc = preprocess.NewWrapper(preprocess.Config{
			Enabled:      true,
			Binary:       cfg.Preprocessing.Binary,
			IncludePaths: cfg.Preprocessing.IncludePaths,
			Defines:      cfg.Preprocessing.Defines,
		}, logger)
	}

	parser := cparse.New(preproc, logger)
	mapper := testmap.New(parser, logger)

	return pipeline.New(parser, mapper, store, pipeline.Config{
		KernelRoot:    cfg.KernelRoot,
		Workers:       cfg.Parallelism.Workers,
		BatchSize:     cfg.BatchSize,
		CheckpointDir: checkpointDir(),
	}, logger, metrics)
}

// BuildAnalyzer creates the impact analyzer over store with the configured
// syscall pattern.
func BuildAnalyzer(cfg *config.Config, store *graphstore.Store, logger *slog.Logger) *impact.Analyzer {
	return impact.New(store, logger, impact.WithSyscallPattern(cfg.Analysis.SyscallRegex))
}

// checkpointDir is where partial-ingest markers live. Markers carry only a
// resume hint, never graph data, so losing them costs one redundant purge
// at worst.
func checkpointDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sentinel", "checkpoints")
}
