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

package testmap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/cparse"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
)

func TestDetectFramework(t *testing.T) {
	tests := []struct {
		path   string
		want   Framework
		wantOK bool
	}{
		{"lib/kunit/test_list.c", FrameworkKUnit, true},
		{"mm/slub_kunit.c", FrameworkKUnit, true},
		{"tools/testing/selftests/net/tcp_test_helpers.c", FrameworkSelftest, true},
		{"fs/ext4/inode_test.c", FrameworkKSelftest, true},
		{"fs/ext4/inode.c", "", false},
	}
	for _, tt := range tests {
		fw, ok := detectFramework(tt.path)
		assert.Equal(t, tt.wantOK, ok, "path %s", tt.path)
		if ok {
			assert.Equal(t, tt.want, fw, "path %s", tt.path)
		}
	}
}

func TestIsTestFunction(t *testing.T) {
	assert.True(t, isTestFunction(FrameworkKUnit, "test_alloc_order"))
	assert.True(t, isTestFunction(FrameworkKUnit, "kunit_test_slab"))
	assert.False(t, isTestFunction(FrameworkKUnit, "helper_setup"))
	assert.True(t, isTestFunction(FrameworkKSelftest, "test_open_close"))
	assert.False(t, isTestFunction(FrameworkSelftest, "main"))
}

func TestIsAssertionCall(t *testing.T) {
	assert.True(t, isAssertionCall("KUNIT_EXPECT_EQ"))
	assert.True(t, isAssertionCall("KUNIT_ASSERT_NOT_NULL"))
	assert.True(t, isAssertionCall("ASSERT_EQ"))
	assert.True(t, isAssertionCall("EXPECT_TRUE"))
	assert.False(t, isAssertionCall("vfs_read"))
}

func writeSource(t *testing.T, dir, name, src string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
}

func mapTests(t *testing.T, dir string) *Result {
	t.Helper()
	parser := cparse.New(nil, nil)
	m := New(parser, nil)
	res, err := m.MapTests(context.Background(), dir)
	require.NoError(t, err)
	return res
}

// TestMapTests_DirectCoverage: a test function produces one TestCaseNode
// and one direct COVERS edge per unique resolvable callee.
func TestMapTests_DirectCoverage(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lib/sort.c",
		"int sort_items(int n) { return n; }\n")
	writeSource(t, dir, "lib/sort_test.c",
		"void test_sort(void) {\n"+
			"    sort_items(3);\n"+
			"    sort_items(4);\n"+
			"    ASSERT_EQ(1, 1);\n"+
			"    ASSERT_EQ(2, 2);\n"+
			"}\n")

	res := mapTests(t, dir)

	require.Len(t, res.TestCases, 1)
	tc := res.TestCases[0]
	assert.Equal(t, "test_sort", tc.Name)
	assert.Equal(t, "kselftest", tc.Framework)
	assert.Equal(t, 2, tc.AssertionsCount)

	require.Len(t, res.Covers, 1, "two calls to one callee collapse into one edge")
	cover := res.Covers[0]
	assert.Equal(t, tc.ID, cover.TestCaseID)
	assert.Equal(t, model.CoverageDirect, cover.CoverageKind)
	assert.Equal(t, 1.0, cover.Confidence)
}

// TestMapTests_UnresolvableCalleeDropped: callees with no known definition
// produce no COVERS edge (the test mapper never creates placeholders).
func TestMapTests_UnresolvableCalleeDropped(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lib/only_test.c",
		"void test_missing(void) { not_defined_here(); }\n")

	res := mapTests(t, dir)
	require.Len(t, res.TestCases, 1)
	assert.Empty(t, res.Covers)
}

// TestMapTests_AmbiguousCalleeDropped: a name defined twice in the
// subsystem is excluded from the index rather than guessed at.
func TestMapTests_AmbiguousCalleeDropped(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.c", "int dup(void) { return 1; }\n")
	writeSource(t, dir, "b.c", "int dup(void) { return 2; }\n")
	writeSource(t, dir, "dup_test.c", "void test_dup(void) { dup(); }\n")

	res := mapTests(t, dir)
	require.Len(t, res.TestCases, 1)
	assert.Empty(t, res.Covers)
}

// TestMapTests_UnknownFrameworkWarns: a file with test-shaped functions
// that matches no framework is skipped with a warning, once per file.
func TestMapTests_UnknownFrameworkWarns(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lib/homegrown_checks.c",
		"void test_alpha(void) { alpha(); }\n"+
			"void test_beta(void) { beta(); }\n")

	res := mapTests(t, dir)
	assert.Empty(t, res.TestCases, "unknown frameworks produce no test cases")
	assert.Equal(t, 1, res.Warnings, "one warning per skipped file, not per function")
}

// TestMapTests_NonTestFilesSkippedSilently: ordinary source files with no
// test-shaped functions are neither mapped nor warned about.
func TestMapTests_NonTestFilesSkippedSilently(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lib/core.c",
		"int core_init(void) { return 0; }\n")

	res := mapTests(t, dir)
	assert.Empty(t, res.TestCases)
	assert.Zero(t, res.Warnings)
}
