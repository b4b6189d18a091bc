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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
)

// isDeclaratorChild matches the child node types a "declaration" wraps around each
// declared name: a plain declarator (no initializer), or an init_declarator
// (declarator plus initializer). Multiple declarators share one
// declaration_specifiers prefix ("int a, b = 1;") and appear as siblings.
func isDeclaratorChild(t string) bool {
	switch t {
	case "init_declarator", "identifier", "pointer_declarator", "array_declarator",
		"function_declarator", "parenthesized_declarator":
		return true
	default:
		return false
	}
}

// extractParameters walks a function_declarator's "parameters" field
// (parameter_list -> parameter_declaration) and declares each as a
// model.VariableNode with Kind=parameter, registering it in scope.
func extractParameters(funcDeclarator *sitter.Node, content []byte, functionID string, scope *scopeStack) []model.VariableNode {
	if funcDeclarator == nil {
		return nil
	}
	paramList := funcDeclarator.ChildByFieldName("parameters")
	if paramList == nil {
		return nil
	}

	var out []model.VariableNode
	for i := 0; i < int(paramList.NamedChildCount()); i++ {
		paramDecl := paramList.NamedChild(i)
		if paramDecl == nil || paramDecl.Type() != "parameter_declaration" {
			continue
		}
		typeText := ""
		if typeNode := paramDecl.ChildByFieldName("type"); typeNode != nil {
			typeText = nodeText(typeNode, content)
		}
		declarator := paramDecl.ChildByFieldName("declarator")
		if declarator == nil {
			continue
		}
		name, isPointer := identifierAndPointers(declarator, content)
		if name == "" {
			continue
		}
		line := int(paramDecl.StartPoint().Row) + 1
		id := model.VariableID(functionID, name, line)
		out = append(out, model.VariableNode{
			ID:              id,
			FunctionID:      functionID,
			Name:            name,
			TypeString:      strings.TrimSpace(typeText),
			Kind:            model.VarKindParameter,
			IsPointer:       isPointer,
			DeclarationLine: line,
		})
		scope.declare(name, id)
	}
	return out
}

// extractLocalDeclarations walks one "declaration" node (recursion into
// nested blocks is the caller's job via walker.walk) and declares each
// name found, storage_class
// "static" mapping to Kind=static and everything else to Kind=local.
func extractLocalDeclarations(declNode *sitter.Node, content []byte, functionID string, scope *scopeStack) ([]model.VariableNode, []model.DataFlowEdge) {
	isStatic := false
	typeText := ""
	var out []model.VariableNode
	var flows []model.DataFlowEdge

	for i := 0; i < int(declNode.ChildCount()); i++ {
		child := declNode.Child(i)
		switch child.Type() {
		case "storage_class_specifier":
			if nodeText(child, content) == "static" {
				isStatic = true
			}
		case "primitive_type", "type_identifier", "sized_type_specifier", "struct_specifier", "union_specifier", "enum_specifier":
			if typeText == "" {
				typeText = nodeText(child, content)
			}
		}
	}

	for i := 0; i < int(declNode.ChildCount()); i++ {
		child := declNode.Child(i)
		if !isDeclaratorChild(child.Type()) {
			continue
		}

		var declarator, valueNode *sitter.Node
		initExpr := ""
		if child.Type() == "init_declarator" {
			declarator = child.ChildByFieldName("declarator")
			if v := child.ChildByFieldName("value"); v != nil {
				valueNode = v
				initExpr = nodeText(v, content)
			}
		} else {
			declarator = child
		}
		if declarator == nil {
			continue
		}

		name, isPointer := identifierAndPointers(declarator, content)
		if name == "" {
			continue
		}

		kind := model.VarKindLocal
		if isStatic {
			kind = model.VarKindStatic
		}

		line := int(child.StartPoint().Row) + 1
		id := model.VariableID(functionID, name, line)
		out = append(out, model.VariableNode{
			ID:               id,
			FunctionID:       functionID,
			Name:             name,
			TypeString:       strings.TrimSpace(typeText),
			Kind:             kind,
			IsPointer:        isPointer,
			DeclarationLine:  line,
			InitialValueExpr: initExpr,
		})
		scope.declare(name, id)

		if valueNode != nil {
			flows = append(flows, flowsForInitializer(valueNode, content, scope, functionID, id, line)...)
		}
	}
	return out, flows
}

// unwrapToFunctionDeclarator descends through pointer_declarator and
// parenthesized_declarator wrappers to find the innermost
// function_declarator, mirroring pkg/cparse's unwrap used for return-type
// reconstruction - here it locates the "parameters" field instead.
func unwrapToFunctionDeclarator(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Type() {
		case "function_declarator":
			return node
		case "pointer_declarator", "parenthesized_declarator":
			node = node.ChildByFieldName("declarator")
		default:
			return nil
		}
	}
	return nil
}

// identifierAndPointers unwraps pointer_declarator/array_declarator wrappers
// down to the plain identifier, counting pointer levels along the way.
func identifierAndPointers(node *sitter.Node, content []byte) (name string, isPointer bool) {
	for node != nil {
		switch node.Type() {
		case "identifier", "field_identifier":
			return nodeText(node, content), isPointer
		case "pointer_declarator":
			isPointer = true
			node = node.ChildByFieldName("declarator")
		case "array_declarator":
			node = node.ChildByFieldName("declarator")
		case "parenthesized_declarator":
			node = node.ChildByFieldName("declarator")
		default:
			return "", isPointer
		}
	}
	return "", isPointer
}

func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if int(end) > len(content) {
		end = uint32(len(content))
	}
	if int(start) > len(content) || start > end {
		return ""
	}
	return string(content[start:end])
}
