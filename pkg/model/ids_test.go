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

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFunctionID_PathNormalization(t *testing.T) {
	want := FunctionID("fs/read.c", "vfs_read", 120)
	assert.Equal(t, "fs/read.c::vfs_read::120", want)
	assert.Equal(t, want, FunctionID("./fs/read.c", "vfs_read", 120))
	assert.Equal(t, want, FunctionID("fs//read.c", "vfs_read", 120))
	assert.Equal(t, want, FunctionID("/fs/read.c", "vfs_read", 120))
}

func TestFunctionID_DistinctLines(t *testing.T) {
	a := FunctionID("fs/read.c", "probe", 10)
	b := FunctionID("fs/read.c", "probe", 40)
	assert.NotEqual(t, a, b, "same-name definitions under #ifdef keep distinct ids")
}

func TestPlaceholderFunctionID_Stable(t *testing.T) {
	a := PlaceholderFunctionID("extern_lib_fn")
	b := PlaceholderFunctionID("extern_lib_fn")
	assert.Equal(t, a, b, "every unresolved reference to one name converges on one placeholder")
	assert.Equal(t, "placeholder::extern_lib_fn", a)
}

func TestVariableID(t *testing.T) {
	fnID := FunctionID("fs/read.c", "vfs_read", 120)
	assert.Equal(t, fnID+"::count::124", VariableID(fnID, "count", 124))
}

func TestTestCaseID(t *testing.T) {
	assert.Equal(t, "lib/test_kasan.c::test_oob", TestCaseID("./lib/test_kasan.c", "test_oob"))
}

func TestSubsystem(t *testing.T) {
	tests := []struct {
		root, path, want string
	}{
		{"/usr/src/linux", "/usr/src/linux/fs/read.c", "fs"},
		{"/usr/src/linux", "/usr/src/linux/fs", "fs"},
		{"/usr/src/linux/", "/usr/src/linux/net/core/dev.c", "net"},
		{"", "fs/read.c", "fs"},
		{"", "standalone.c", "standalone.c"},
		{"/usr/src/linux", "/elsewhere/fs/read.c", "elsewhere"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Subsystem(tt.root, tt.path), "root=%q path=%q", tt.root, tt.path)
	}
}
