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

import "regexp"

// Framework identifies which kernel test harness a test file belongs to.
type Framework string

const (
	FrameworkKUnit     Framework = "kunit"
	FrameworkSelftest  Framework = "selftest"
	FrameworkKSelftest Framework = "kselftest"
)

// frameworkMatcher pairs a file-path pattern with the test-function naming
// convention used under it: a small ordered table tried in turn, first
// match wins, rather than one combined expression.
type frameworkMatcher struct {
	Framework Framework
	FilePath  *regexp.Regexp
	TestFunc  *regexp.Regexp
}

var frameworkMatchers = []frameworkMatcher{
	{
		Framework: FrameworkKUnit,
		FilePath:  regexp.MustCompile(`(^|/)kunit/|_kunit\.c$`),
		TestFunc:  regexp.MustCompile(`^(test_|kunit_test_)[A-Za-z0-9_]+$`),
	},
	{
		Framework: FrameworkSelftest,
		FilePath:  regexp.MustCompile(`(^|/)tools/testing/selftests(/|$)`),
		TestFunc:  regexp.MustCompile(`^test_[A-Za-z0-9_]+$`),
	},
	{
		Framework: FrameworkKSelftest,
		FilePath:  regexp.MustCompile(`_test\.c$`),
		TestFunc:  regexp.MustCompile(`^(test_|TEST_)[A-Za-z0-9_]+$`),
	},
}

// detectFramework returns the first framework whose file-path pattern
// matches, in table order.
func detectFramework(filePath string) (Framework, bool) {
	for _, m := range frameworkMatchers {
		if m.FilePath.MatchString(filePath) {
			return m.Framework, true
		}
	}
	return "", false
}

// genericTestName recognizes test-shaped function names independent of any
// framework. MapTests uses it to tell "ordinary source file" apart from
// "test file of an unknown framework", which is skipped with a warning.
var genericTestName = regexp.MustCompile(`^(test_|kunit_test_|TEST_)[A-Za-z0-9_]+$`)

func looksLikeTestFunction(name string) bool {
	return genericTestName.MatchString(name)
}

// isTestFunction reports whether name matches the naming convention for the
// given framework.
func isTestFunction(fw Framework, name string) bool {
	for _, m := range frameworkMatchers {
		if m.Framework == fw {
			return m.TestFunc.MatchString(name)
		}
	}
	return false
}

// assertionPatterns recognizes assertion-macro call sites used to estimate
// TestCaseNode.AssertionsCount. These never resolve to real FunctionNodes
// (no definition exists for a macro), so they are naturally excluded from
// COVERS edges by the function-index lookup without special-casing.
var assertionPatterns = regexp.MustCompile(`^(KUNIT_(ASSERT|EXPECT)_|ASSERT_|EXPECT_)[A-Za-z0-9_]*$`)

func isAssertionCall(calleeName string) bool {
	return assertionPatterns.MatchString(calleeName)
}
