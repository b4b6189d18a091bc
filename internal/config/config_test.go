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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/impact"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, impact.DefaultMaxDepth, cfg.Analysis.MaxDepth)
	assert.Equal(t, impact.DefaultSyscallPattern, cfg.Analysis.SyscallRegex)
	assert.Equal(t, "rocksdb:", cfg.GraphStore.URL)
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
kernel_root: /usr/src/linux
graph_store:
  url: "mem"
preprocessing:
  enabled: true
  include_paths: ["include", "arch/x86/include"]
  defines: ["CONFIG_X86=1"]
analysis:
  max_depth: 5
  syscall_regex: "^(sys_|ksys_)"
parallelism:
  workers: 4
batch_size: 250
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/src/linux", cfg.KernelRoot)
	assert.Equal(t, "mem", cfg.GraphStore.URL)
	assert.True(t, cfg.Preprocessing.Enabled)
	assert.Equal(t, []string{"include", "arch/x86/include"}, cfg.Preprocessing.IncludePaths)
	assert.Equal(t, 5, cfg.Analysis.MaxDepth)
	assert.Equal(t, "^(sys_|ksys_)", cfg.Analysis.SyscallRegex)
	assert.Equal(t, 4, cfg.Parallelism.Workers)
	assert.Equal(t, 250, cfg.BatchSize)
}

func TestLoad_ClampsMaxDepth(t *testing.T) {
	cfg, err := Load(writeConfig(t, "analysis:\n  max_depth: 50\n"))
	require.NoError(t, err)
	assert.Equal(t, impact.HardMaxDepth, cfg.Analysis.MaxDepth)

	cfg, err = Load(writeConfig(t, "analysis:\n  max_depth: -2\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Analysis.MaxDepth)
}

func TestLoad_InvalidRegexFails(t *testing.T) {
	_, err := Load(writeConfig(t, "analysis:\n  syscall_regex: \"([\"\n"))
	require.Error(t, err)
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	_, err := Load(writeConfig(t, "kernel_root: [unclosed\n"))
	require.Error(t, err)
}
