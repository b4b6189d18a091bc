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

package dataflow

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
)

// collectFlowSources walks an RHS expression for referenced identifiers
// already declared in scope. A bare identifier returns exactly one source at
// confidence 1.0; a call expression returns a single synthetic source
// standing in for the callee's return value, at confidence 0.5 (the callee
// is referenced by name, never by node id, so the edge stays local);
// anything else returns up to model.MaxFlowSourcesPerExpression sources at
// confidence 0.5, taken in source order so truncation is deterministic.
func collectFlowSources(rhs *sitter.Node, content []byte, scope *scopeStack, functionID string, line int) (sources []string, confidence float64) {
	if rhs == nil {
		return nil, 0
	}
	if rhs.Type() == "identifier" {
		if id, ok := scope.resolve(nodeText(rhs, content)); ok {
			return []string{id}, 1.0
		}
		return nil, 0
	}
	if rhs.Type() == "call_expression" {
		if src, ok := callReturnSource(rhs, content, functionID, line); ok {
			return []string{src}, 0.5
		}
		return nil, 0
	}

	var found []string
	collectIdentifiers(rhs, content, scope, &found)
	if len(found) > model.MaxFlowSourcesPerExpression {
		found = found[:model.MaxFlowSourcesPerExpression]
	}
	return found, 0.5
}

// callReturnSource mints the id of the synthetic node standing in for a
// call expression's return value, keyed by the enclosing function, the
// callee's textual name, and the call site's line (so two calls to the same
// callee in one function still get distinct synthetic sources).
func callReturnSource(callExpr *sitter.Node, content []byte, functionID string, line int) (string, bool) {
	fnField := callExpr.ChildByFieldName("function")
	if fnField == nil {
		return "", false
	}
	name := simpleCalleeName(fnField, content)
	if name == "" {
		return "", false
	}
	return model.VariableID(functionID, "$call:"+name, line), true
}

// simpleCalleeName extracts a best-effort textual callee name for the
// synthetic call-return source. It only needs to be stable and readable,
// not exhaustive - pkg/cparse's calleeName is the authoritative extractor
// used for actual CALLS edges.
func simpleCalleeName(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "identifier":
		return nodeText(node, content)
	case "field_expression":
		if field := node.ChildByFieldName("field"); field != nil {
			return nodeText(field, content)
		}
	}
	return ""
}

// collectIdentifiers recursively gathers scope-resolvable identifiers
// referenced by an expression, in source order. Pointer deref / address-of
// (unary "*"/"&", pointer_expression) and struct field access
// (field_expression) are unwrapped to their base identifier; both branches
// of a ternary are walked since conditional_expression has no special
// handling here - its condition/consequence/alternative are all named
// children and fall through to the generic recursion below.
func collectIdentifiers(node *sitter.Node, content []byte, scope *scopeStack, out *[]string) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "identifier":
		if id, ok := scope.resolve(nodeText(node, content)); ok {
			*out = append(*out, id)
		}
		return
	case "field_expression":
		if base := node.ChildByFieldName("argument"); base != nil {
			collectIdentifiers(base, content, scope, out)
			return
		}
	case "pointer_expression", "unary_expression":
		if arg := node.ChildByFieldName("argument"); arg != nil {
			collectIdentifiers(arg, content, scope, out)
			return
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		collectIdentifiers(node.NamedChild(i), content, scope, out)
	}
}

// flowsForAssignment builds FLOWS_TO edges for "name = <rhs>;".
func flowsForAssignment(node *sitter.Node, content []byte, scope *scopeStack, functionID string) []model.DataFlowEdge {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" {
		return nil
	}
	targetID, ok := scope.resolve(nodeText(left, content))
	if !ok {
		return nil
	}
	line := int(node.StartPoint().Row) + 1
	sources, confidence := collectFlowSources(right, content, scope, functionID, line)
	if len(sources) == 0 {
		return nil
	}
	expr := nodeText(right, content)
	edges := make([]model.DataFlowEdge, 0, len(sources))
	for _, src := range sources {
		edges = append(edges, model.DataFlowEdge{
			SourceVariableID: src,
			TargetVariableID: targetID,
			FlowKind:         model.FlowAssignment,
			LineNumber:       line,
			SourceExpression: expr,
			Confidence:       confidence,
		})
	}
	return edges
}

// flowsForInitializer builds FLOWS_TO edges for "T name = <value>;",
// targeting the variable id the caller already minted for this declarator.
func flowsForInitializer(valueNode *sitter.Node, content []byte, scope *scopeStack, functionID, targetID string, line int) []model.DataFlowEdge {
	if valueNode == nil {
		return nil
	}
	sources, confidence := collectFlowSources(valueNode, content, scope, functionID, line)
	if len(sources) == 0 {
		return nil
	}
	expr := nodeText(valueNode, content)
	edges := make([]model.DataFlowEdge, 0, len(sources))
	for _, src := range sources {
		edges = append(edges, model.DataFlowEdge{
			SourceVariableID: src,
			TargetVariableID: targetID,
			FlowKind:         model.FlowInitialization,
			LineNumber:       line,
			SourceExpression: expr,
			Confidence:       confidence,
		})
	}
	return edges
}

// flowsForReturn builds FLOWS_TO edges from a return_statement's expression
// (its sole named child; tree-sitter-c's return_statement carries no field
// name for it) to the synthetic __return__ variable of the function.
func flowsForReturn(node *sitter.Node, content []byte, scope *scopeStack, functionID, returnVarID string) []model.DataFlowEdge {
	if node.NamedChildCount() == 0 {
		return nil
	}
	expr := node.NamedChild(0)
	line := int(node.StartPoint().Row) + 1
	sources, confidence := collectFlowSources(expr, content, scope, functionID, line)
	if len(sources) == 0 {
		return nil
	}
	text := nodeText(expr, content)
	edges := make([]model.DataFlowEdge, 0, len(sources))
	for _, src := range sources {
		edges = append(edges, model.DataFlowEdge{
			SourceVariableID: src,
			TargetVariableID: returnVarID,
			FlowKind:         model.FlowReturnValue,
			LineNumber:       line,
			SourceExpression: text,
			Confidence:       confidence,
		})
	}
	return edges
}
