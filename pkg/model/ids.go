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
	"fmt"
	"path/filepath"
)

// FunctionID builds the id = "file_path::name::line_start" identity.
// Paths are normalized first so the same function parsed from
// "./a/b.c" and "a/b.c" produces the same id.
func FunctionID(filePath, name string, lineStart int) string {
	return fmt.Sprintf("%s::%s::%d", normalizePath(filePath), name, lineStart)
}

// PlaceholderFunctionID builds the id of a synthesized FunctionNode that
// terminates an unresolved CALLS edge. It carries only a name, so the id is
// derived from the callee name alone and is stable across subsystems -
// every unresolved reference to the same name converges on one placeholder.
func PlaceholderFunctionID(calleeName string) string {
	return fmt.Sprintf("placeholder::%s", calleeName)
}

// VariableID builds the id = "function_id::variable_name::line_declared"
// identity. Shadowing is permitted because inner
// declarations have a distinct DeclarationLine (or are disambiguated by the
// caller appending a scope suffix to name for same-line redeclarations,
// which C's grammar does not otherwise allow).
func VariableID(functionID, name string, lineDeclared int) string {
	return fmt.Sprintf("%s::%s::%d", functionID, name, lineDeclared)
}

// TestCaseID builds the id = "test_file::test_name" identity.
func TestCaseID(testFile, testName string) string {
	return fmt.Sprintf("%s::%s", normalizePath(testFile), testName)
}

// normalizePath normalizes a file path for consistent identity generation:
// forward slashes, no leading "./", cleaned of redundant separators, so
// ids stay stable across platforms.
func normalizePath(path string) string {
	if len(path) >= 2 && path[0:2] == "./" {
		path = path[2:]
	}
	path = filepath.Clean(path)
	path = filepath.ToSlash(path)
	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return path
}
