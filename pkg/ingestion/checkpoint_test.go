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

package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	cm := NewCheckpointManager(t.TempDir())

	cp := &Checkpoint{
		Subsystem:          "fs",
		Root:               "/usr/src/linux/fs",
		FilesProcessed:     120,
		FunctionsExtracted: 3400,
		FlowsExtracted:     9800,
		Completed:          false,
	}
	require.NoError(t, cm.Save(cp))

	loaded, err := cm.Load("fs")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, cp.Subsystem, loaded.Subsystem)
	assert.Equal(t, cp.FilesProcessed, loaded.FilesProcessed)
	assert.False(t, loaded.Completed)
}

func TestCheckpoint_MissingIsNotAnError(t *testing.T) {
	cm := NewCheckpointManager(t.TempDir())
	loaded, err := cm.Load("never-ingested")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestCheckpoint_Clear(t *testing.T) {
	cm := NewCheckpointManager(t.TempDir())
	require.NoError(t, cm.Save(&Checkpoint{Subsystem: "mm"}))
	require.NoError(t, cm.Clear("mm"))

	loaded, err := cm.Load("mm")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Clearing again is a no-op.
	require.NoError(t, cm.Clear("mm"))
}

func TestCheckpoint_CorruptFileFails(t *testing.T) {
	dir := t.TempDir()
	cm := NewCheckpointManager(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkpoint-net.json"), []byte("{not json"), 0o644))

	_, err := cm.Load("net")
	require.Error(t, err)
}

func TestCheckpoint_SaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	cm := NewCheckpointManager(dir)
	require.NoError(t, cm.Save(&Checkpoint{Subsystem: "fs", FilesProcessed: 1}))
	require.NoError(t, cm.Save(&Checkpoint{Subsystem: "fs", FilesProcessed: 2}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	loaded, err := cm.Load("fs")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.FilesProcessed)
}
