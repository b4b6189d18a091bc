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

// Package config loads the sentinel YAML configuration. Every option is
// optional; Load on a missing file returns the defaults.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/impact"
)

// GraphStore holds store connection settings. URL selects the embedded
// engine and data directory ("mem", "sqlite:<dir>", "rocksdb:<dir>"); user
// and password are accepted for forward compatibility with remote
// deployments and ignored by the embedded engine.
type GraphStore struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Preprocessing toggles and parameterizes the external C preprocessor.
type Preprocessing struct {
	Enabled      bool     `yaml:"enabled"`
	Binary       string   `yaml:"binary"`
	IncludePaths []string `yaml:"include_paths"`
	Defines      []string `yaml:"defines"`
}

// Analysis tunes the impact analyzer.
type Analysis struct {
	MaxDepth     int    `yaml:"max_depth"`
	SyscallRegex string `yaml:"syscall_regex"`
}

// Parallelism tunes the parser/flow worker pool.
type Parallelism struct {
	Workers int `yaml:"workers"`
}

// Config is the full recognized option set.
type Config struct {
	KernelRoot    string        `yaml:"kernel_root"`
	GraphStore    GraphStore    `yaml:"graph_store"`
	Preprocessing Preprocessing `yaml:"preprocessing"`
	Analysis      Analysis      `yaml:"analysis"`
	Parallelism   Parallelism   `yaml:"parallelism"`
	BatchSize     int           `yaml:"batch_size"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		GraphStore: GraphStore{URL: "rocksdb:"},
		Analysis: Analysis{
			MaxDepth:     impact.DefaultMaxDepth,
			SyscallRegex: impact.DefaultSyscallPattern,
		},
	}
}

// Load reads path and overlays it on the defaults. A missing file is not
// an error; a malformed file or invalid option is.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.clamp()
	return cfg, nil
}

// validate rejects options that cannot be normalized away.
func (c *Config) validate() error {
	if c.Analysis.SyscallRegex != "" {
		if _, err := regexp.Compile(c.Analysis.SyscallRegex); err != nil {
			return fmt.Errorf("analysis.syscall_regex: %w", err)
		}
	}
	return nil
}

// clamp normalizes out-of-range numeric options instead of failing on
// them: max_depth clamps to 1..=10, negative counts reset to defaults.
func (c *Config) clamp() {
	c.Analysis.MaxDepth = impact.ClampDepth(c.Analysis.MaxDepth)
	if c.Parallelism.Workers < 0 {
		c.Parallelism.Workers = 0
	}
	if c.BatchSize < 0 {
		c.BatchSize = 0
	}
	if c.Analysis.SyscallRegex == "" {
		c.Analysis.SyscallRegex = impact.DefaultSyscallPattern
	}
}
