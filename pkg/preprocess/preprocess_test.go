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

package preprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
)

func TestParseOneLineDirective(t *testing.T) {
	tests := []struct {
		line     string
		wantFile string
		wantLine int
		wantOK   bool
	}{
		{`# 12 "fs/read.c"`, "fs/read.c", 12, true},
		{`# 1 "fs/read.c" 1 3 4`, "fs/read.c", 1, true},
		{`#line 42 "include/linux/fs.h"`, "include/linux/fs.h", 42, true},
		{`int x = 1;`, "", 0, false},
		{`#define FOO 1`, "", 0, false},
		{`# notanumber "f.c"`, "", 0, false},
	}
	for _, tt := range tests {
		file, line, ok := parseOneLineDirective(tt.line)
		assert.Equal(t, tt.wantOK, ok, "line %q", tt.line)
		if ok {
			assert.Equal(t, tt.wantFile, file)
			assert.Equal(t, tt.wantLine, line)
		}
	}
}

func TestPositionMap_Original(t *testing.T) {
	expanded := []byte(
		`# 1 "fs/read.c"` + "\n" + // directive on expanded line 1
			"int a;\n" + // expanded line 2 -> fs/read.c:1
			`# 10 "include/linux/fs.h"` + "\n" + // expanded line 3
			"int b;\n" + // expanded line 4 -> fs.h:10
			"int c;\n" + // expanded line 5 -> fs.h:11
			`# 3 "fs/read.c"` + "\n" + // expanded line 6
			"int d;\n") // expanded line 7 -> fs/read.c:3

	pm := parseLineDirectives(expanded, "fs/read.c")

	file, line := pm.Original(2)
	assert.Equal(t, "fs/read.c", file)
	assert.Equal(t, 1, line)

	file, line = pm.Original(4)
	assert.Equal(t, "include/linux/fs.h", file)
	assert.Equal(t, 10, line)

	file, line = pm.Original(5)
	assert.Equal(t, "include/linux/fs.h", file)
	assert.Equal(t, 11, line)

	file, line = pm.Original(7)
	assert.Equal(t, "fs/read.c", file)
	assert.Equal(t, 3, line)
}

func TestExpand_DisabledIsIdentity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raw.c")
	require.NoError(t, os.WriteFile(path, []byte("int x;\nint y;\n"), 0o644))

	w := NewWrapper(Config{Enabled: false}, nil)
	res, err := w.Expand(path)
	require.NoError(t, err)

	assert.Equal(t, "int x;\nint y;\n", string(res.Content))
	file, line := res.Position.Original(2)
	assert.Equal(t, path, file)
	assert.Equal(t, 2, line, "identity map with preprocessing disabled")
}

func TestExpand_MissingToolFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raw.c")
	require.NoError(t, os.WriteFile(path, []byte("int x;\n"), 0o644))

	w := NewWrapper(Config{Enabled: true, Binary: "definitely-not-a-preprocessor"}, nil)
	_, err := w.Expand(path)
	require.Error(t, err)

	var perr *model.PreprocessorError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, path, perr.File)
}

func TestExpandWithFallback_RecoversRawContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raw.c")
	require.NoError(t, os.WriteFile(path, []byte("int x;\n"), 0o644))

	w := NewWrapper(Config{Enabled: true, Binary: "definitely-not-a-preprocessor"}, nil)
	res, err := w.ExpandWithFallback(path)
	require.NoError(t, err, "the pipeline must be able to fall back to the raw file")
	assert.True(t, res.Fellback)
	assert.Equal(t, "int x;\n", string(res.Content))
}

func TestExpandWithFallback_MissingFileStillFails(t *testing.T) {
	w := NewWrapper(Config{Enabled: true, Binary: "definitely-not-a-preprocessor"}, nil)
	_, err := w.ExpandWithFallback("/nonexistent/raw.c")
	require.Error(t, err)
}
