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

// Package dataflow emits VariableNode records and intra-procedural
// FLOWS_TO edges from the Tree-sitter AST pkg/cparse already built. It
// performs no second parse pass - callers hand it the *sitter.Node
// alongside the file's source bytes.
package dataflow

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
)

// Result is everything the extractor yields for one function body.
type Result struct {
	Variables []model.VariableNode
	Flows     []model.DataFlowEdge
}

// GlobalVariable is a file-scope declaration visible to every function
// defined later in the same translation unit. The extractor does not track
// visibility before the point of declaration - textual order is assumed to
// match the AST's top-level declaration order, as is true for well-formed C.
type GlobalVariable struct {
	Name       string
	TypeString string
	Kind       model.VariableKind // static or global
	IsPointer  bool
	Line       int
}

// ExtractGlobals walks the direct children of a translation unit's root
// node for file-scope declarations (outside any function_definition),
// classifying "static" storage class as VarKindStatic and everything else
// as VarKindGlobal.
func ExtractGlobals(rootNode *sitter.Node, content []byte) map[string]GlobalVariable {
	globals := make(map[string]GlobalVariable)
	if rootNode == nil {
		return globals
	}
	for i := 0; i < int(rootNode.ChildCount()); i++ {
		child := rootNode.Child(i)
		if child.Type() != "declaration" {
			continue
		}
		isStatic := false
		typeText := ""
		for j := 0; j < int(child.ChildCount()); j++ {
			gc := child.Child(j)
			switch gc.Type() {
			case "storage_class_specifier":
				if nodeText(gc, content) == "static" {
					isStatic = true
				}
			case "primitive_type", "type_identifier", "sized_type_specifier", "struct_specifier", "union_specifier", "enum_specifier":
				if typeText == "" {
					typeText = nodeText(gc, content)
				}
			}
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			gc := child.Child(j)
			if !isDeclaratorChild(gc.Type()) {
				continue
			}
			declarator := gc
			if gc.Type() == "init_declarator" {
				declarator = gc.ChildByFieldName("declarator")
			}
			name, isPointer := identifierAndPointers(declarator, content)
			if name == "" {
				continue
			}
			kind := model.VarKindGlobal
			if isStatic {
				kind = model.VarKindStatic
			}
			globals[name] = GlobalVariable{
				Name:       name,
				TypeString: strings.TrimSpace(typeText),
				Kind:       kind,
				IsPointer:  isPointer,
				Line:       int(child.StartPoint().Row) + 1,
			}
		}
	}
	return globals
}

// walker carries the per-function extraction state through the recursive
// AST walk: the scope stack, the accumulated output, and a record of which
// globals have already been materialized into this function's variable set
// (emitted once per function on first reference, not once per use).
type walker struct {
	content     []byte
	functionID  string
	scope       *scopeStack
	globals     map[string]GlobalVariable
	globalsSeen map[string]bool
	returnVarID string
	result      Result

	// kindByID and paramUsed support the parameter_binding_local
	// reclassification: the first direct flow from a parameter into a
	// local is relabeled from assignment/initialization to
	// parameter_binding_local; cross-function call-argument
	// binding is excluded entirely since flows never cross function
	// boundaries here.
	kindByID  map[string]model.VariableKind
	paramUsed map[string]bool
}

// Extract emits VariableNode and FLOWS_TO records for one function body.
// fnNode is the function_definition node produced by pkg/cparse. globals is
// the translation unit's file-scope declarations, from ExtractGlobals; it
// may be nil.
func Extract(fnNode *sitter.Node, content []byte, functionID string, globals map[string]GlobalVariable) *Result {
	w := &walker{
		content:     content,
		functionID:  functionID,
		scope:       newScopeStack(),
		globals:     globals,
		globalsSeen: make(map[string]bool),
		kindByID:    make(map[string]model.VariableKind),
		paramUsed:   make(map[string]bool),
	}

	if funcDeclarator := unwrapToFunctionDeclarator(fnNode.ChildByFieldName("declarator")); funcDeclarator != nil {
		params := extractParameters(funcDeclarator, content, functionID, w.scope)
		w.result.Variables = append(w.result.Variables, params...)
		for _, v := range params {
			w.kindByID[v.ID] = v.Kind
		}
	}

	w.returnVarID = model.VariableID(functionID, model.SyntheticReturnVariable, 0)

	bodyNode := fnNode.ChildByFieldName("body")
	if bodyNode != nil {
		// The synthetic return target exists as a real VariableNode so
		// return_value flows never dangle in the graph.
		w.result.Variables = append(w.result.Variables, model.VariableNode{
			ID:         w.returnVarID,
			FunctionID: functionID,
			Name:       model.SyntheticReturnVariable,
			Kind:       model.VarKindLocal,
		})
		w.walk(bodyNode)
	}

	return &w.result
}

func (w *walker) walk(node *sitter.Node) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "compound_statement":
		w.scope.push()
		for i := 0; i < int(node.ChildCount()); i++ {
			w.walk(node.Child(i))
		}
		w.scope.pop()
		return

	case "declaration":
		vars, flows := extractLocalDeclarations(node, w.content, w.functionID, w.scope)
		w.result.Variables = append(w.result.Variables, vars...)
		for _, v := range vars {
			w.kindByID[v.ID] = v.Kind
		}
		w.reclassifyParamBinding(flows)
		w.result.Flows = append(w.result.Flows, flows...)

	case "identifier":
		w.materializeGlobalIfReferenced(node)

	case "assignment_expression":
		flows := flowsForAssignment(node, w.content, w.scope, w.functionID)
		w.reclassifyParamBinding(flows)
		w.result.Flows = append(w.result.Flows, flows...)

	case "return_statement":
		w.result.Flows = append(w.result.Flows, flowsForReturn(node, w.content, w.scope, w.functionID, w.returnVarID)...)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		w.walk(node.Child(i))
	}
}

// reclassifyParamBinding relabels a direct (confidence 1.0) flow from a
// parameter into a local as parameter_binding_local the first time that
// parameter is used this way. Only the first qualifying
// edge per parameter is relabeled; later direct assignments of the same
// parameter remain ordinary assignment/initialization flows.
func (w *walker) reclassifyParamBinding(edges []model.DataFlowEdge) {
	for i := range edges {
		e := &edges[i]
		if e.Confidence != 1.0 {
			continue
		}
		if e.FlowKind != model.FlowAssignment && e.FlowKind != model.FlowInitialization {
			continue
		}
		if w.kindByID[e.SourceVariableID] != model.VarKindParameter {
			continue
		}
		if w.kindByID[e.TargetVariableID] != model.VarKindLocal {
			continue
		}
		if w.paramUsed[e.SourceVariableID] {
			continue
		}
		w.paramUsed[e.SourceVariableID] = true
		e.FlowKind = model.FlowParameterBindingLocal
	}
}

// materializeGlobalIfReferenced records a VariableNode for a file-static or
// global identifier the first time the function body references it,
// resolving it into scope so later flow extraction treats it like any other
// in-scope variable.
func (w *walker) materializeGlobalIfReferenced(node *sitter.Node) {
	if w.globals == nil {
		return
	}
	name := nodeText(node, w.content)
	if name == "" || w.globalsSeen[name] {
		return
	}
	if _, inScope := w.scope.resolve(name); inScope {
		return
	}
	g, ok := w.globals[name]
	if !ok {
		return
	}
	w.globalsSeen[name] = true
	id := model.VariableID(w.functionID, name, g.Line)
	w.result.Variables = append(w.result.Variables, model.VariableNode{
		ID:              id,
		FunctionID:      w.functionID,
		Name:            name,
		TypeString:      g.TypeString,
		Kind:            g.Kind,
		IsPointer:       g.IsPointer,
		DeclarationLine: g.Line,
	})
	w.scope.declare(name, id)
}
