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

package cparse

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
)

// extractCalls walks a function_definition's body for call_expression
// nodes and records one CallSiteEdge per textual call site. Resolution
// against other FunctionNodes in the subsystem happens later, at ingest
// (pkg/graphstore); here the edge only carries the callee's textual name.
// Duplicate call sites at the same line are merged.
func extractCalls(fnNode *sitter.Node, content []byte, callerID, filePath string) []model.CallSiteEdge {
	bodyNode := fnNode.ChildByFieldName("body")
	if bodyNode == nil {
		return nil
	}

	seen := make(map[string]bool)
	var calls []model.CallSiteEdge
	walkCallExpressions(bodyNode, content, callerID, &calls, seen)
	return calls
}

func walkCallExpressions(node *sitter.Node, content []byte, callerID string, calls *[]model.CallSiteEdge, seen map[string]bool) {
	if node == nil {
		return
	}

	if node.Type() == "call_expression" {
		if fnNode := node.ChildByFieldName("function"); fnNode != nil {
			name := calleeName(fnNode, content)
			line := int(node.StartPoint().Row) + 1
			if name != "" {
				key := fmt.Sprintf("%s|%d", name, line)
				if !seen[key] {
					seen[key] = true
					*calls = append(*calls, model.CallSiteEdge{
						CallerID:   callerID,
						LineNumber: line,
						CalleeName: name,
					})
				}
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkCallExpressions(node.Child(i), content, callerID, calls, seen)
	}
}

// calleeName extracts the textual callee identifier from a call
// expression's "function" field. Handles plain identifiers ("foo(...)"),
// function-pointer struct field calls ("ops->probe(...)", treated as a
// reference to the field name itself - field accesses lose struct
// granularity everywhere else too), and parenthesized function pointers
// ("(*fn)(...)").
func calleeName(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "identifier":
		return nodeText(node, content)
	case "field_expression":
		if field := node.ChildByFieldName("field"); field != nil {
			return nodeText(field, content)
		}
		return ""
	case "parenthesized_expression":
		inner := node.NamedChild(0)
		return calleeName(inner, content)
	case "pointer_expression":
		if arg := node.ChildByFieldName("argument"); arg != nil {
			return calleeName(arg, content)
		}
		return ""
	default:
		// Anything else (e.g. a sub-expression returning a function
		// pointer) has no stable textual name; skip it rather than
		// guess - only asks for the "textual name" of the
		// callee, and macros/function pointers without one simply
		// produce no CALLS edge from this site.
		return ""
	}
}
