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

package graphstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
)

// schemaStatements are the relation and index definitions, in dependency
// order. Keyed columns precede "=>"; CozoDB enforces uniqueness on the key,
// which is how the Function.id / Variable.id / TestCase.id constraints are
// realized.
var schemaStatements = []string{
	`:create function {
		id: String
		=>
		name: String,
		file_path: String,
		line_start: Int,
		line_end: Int,
		is_static: Bool,
		is_inline: Bool,
		subsystem: String,
		return_type: String,
		is_placeholder: Bool,
	}`,
	`:create variable {
		id: String
		=>
		function_id: String,
		name: String,
		type_string: String,
		kind: String,
		is_pointer: Bool,
		declaration_line: Int,
		initial_value_expr: String,
	}`,
	`:create test_case {
		id: String
		=>
		name: String,
		file_path: String,
		framework: String,
		assertions_count: Int,
	}`,
	`:create file {
		id: String
		=>
		path: String,
		subsystem: String,
	}`,
	`:create subsystem {
		name: String
	}`,
	`:create calls {
		caller_id: String,
		callee_id: String,
		line_number: Int
		=>
		callee_name: String,
		is_resolved: Bool,
	}`,
	`:create flows_to {
		function_id: String,
		source_variable_id: String,
		target_variable_id: String,
		flow_kind: String,
		line_number: Int
		=>
		source_expression: String,
		confidence: Float,
	}`,
	`:create covers {
		test_case_id: String,
		function_id: String
		=>
		coverage_kind: String,
		confidence: Float,
	}`,
	`:create contains {
		file_id: String,
		function_id: String
	}`,
	`:create belongs_to {
		file_id: String,
		subsystem: String
	}`,
	`::index create function:by_name {name}`,
	`::index create function:by_subsystem {subsystem}`,
	`::index create variable:by_name {name}`,
	`::index create variable:by_function {function_id}`,
	`::index create calls:by_callee {callee_id}`,
	`::index create covers:by_function {function_id}`,
}

// ddlRunner is the optional backend capability used for schema statements.
// storage.EmbeddedBackend implements it; test fakes that don't fall back to
// plain Execute.
type ddlRunner interface {
	RunDDL(stmt string) error
}

// InstallSchema creates the relations and indices of the property graph.
// Idempotent: "already exists" failures are tolerated, everything else is a
// SchemaError.
func (s *Store) InstallSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		var err error
		if ddl, ok := s.backend.(ddlRunner); ok {
			err = ddl.RunDDL(stmt)
		} else {
			err = s.backend.Execute(ctx, stmt)
			if err != nil && strings.Contains(err.Error(), "already exists") {
				err = nil
			}
		}
		if err != nil {
			return &model.SchemaError{Constraint: firstLine(stmt), Err: err}
		}
	}
	s.logger.Debug("graphstore.schema.installed", "statements", len(schemaStatements))
	return nil
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return strings.TrimSpace(stmt[:i])
	}
	return stmt
}

// relationColumns maps each relation to its column order, shared by the
// upsert script builders and by tests asserting on generated scripts.
var relationColumns = map[string][]string{
	"function":   {"id", "name", "file_path", "line_start", "line_end", "is_static", "is_inline", "subsystem", "return_type", "is_placeholder"},
	"variable":   {"id", "function_id", "name", "type_string", "kind", "is_pointer", "declaration_line", "initial_value_expr"},
	"test_case":  {"id", "name", "file_path", "framework", "assertions_count"},
	"file":       {"id", "path", "subsystem"},
	"subsystem":  {"name"},
	"calls":      {"caller_id", "callee_id", "line_number", "callee_name", "is_resolved"},
	"flows_to":   {"function_id", "source_variable_id", "target_variable_id", "flow_kind", "line_number", "source_expression", "confidence"},
	"covers":     {"test_case_id", "function_id", "coverage_kind", "confidence"},
	"contains":   {"file_id", "function_id"},
	"belongs_to": {"file_id", "subsystem"},
}

// relationKeyArity is how many leading columns form the primary key, used
// when building ":put rel {k1, k2 => v1, v2}" specs.
var relationKeyArity = map[string]int{
	"function":   1,
	"variable":   1,
	"test_case":  1,
	"file":       1,
	"subsystem":  1,
	"calls":      3,
	"flows_to":   5,
	"covers":     2,
	"contains":   2,
	"belongs_to": 2,
}

// putSpec renders the ":put rel {keys => values}" clause for a relation.
func putSpec(relation string) string {
	cols := relationColumns[relation]
	arity := relationKeyArity[relation]
	keys := strings.Join(cols[:arity], ", ")
	if arity == len(cols) {
		return fmt.Sprintf(":put %s {%s}", relation, keys)
	}
	vals := strings.Join(cols[arity:], ", ")
	return fmt.Sprintf(":put %s {%s => %s}", relation, keys, vals)
}
