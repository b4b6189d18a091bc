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
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
)

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// walkForFunctions finds every function_definition subtree and records
// name, is_static, is_inline, return_type, and the line range. Two
// definitions of the same name in one file (valid under
// #ifdef) are both emitted with distinct ids - nothing here collapses them.
func walkForFunctions(node *sitter.Node, content []byte, filePath, subsystem string, out *[]ParsedFunction, funcNameToID map[string]string, p *Parser) {
	if node == nil {
		return
	}

	if node.Type() == "function_definition" {
		if fn := extractFunctionDefinition(node, content, filePath, subsystem); fn != nil {
			*out = append(*out, ParsedFunction{Function: *fn, Node: node, Content: content})
			funcNameToID[fn.Name] = fn.ID
		}
		// Tree-sitter-c does not nest function_definition within another
		// function_definition's body (no nested functions in C), but we
		// still recurse in case of GNU statement-expression nested
		// declarations the grammar may surface as children.
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkForFunctions(node.Child(i), content, filePath, subsystem, out, funcNameToID, p)
	}
}

// extractFunctionDefinition extracts name/is_static/is_inline/return_type
// and the declared line range from a function_definition node.
//
// tree-sitter-c shape:
//
//	function_definition
//	  (storage_class_specifier)*   e.g. "static", "inline"  -- direct children, not fields
//	  (function_specifier)?        also checked for "inline"  -- direct child, not a field
//	  type: (primitive_type | type_identifier | sized_type_specifier | struct_specifier ...)
//	  declarator: (function_declarator | pointer_declarator wrapping function_declarator)
//	  body: (compound_statement)
func extractFunctionDefinition(node *sitter.Node, content []byte, filePath, subsystem string) *model.FunctionNode {
	declarator := node.ChildByFieldName("declarator")
	if declarator == nil {
		return nil
	}

	isStatic := false
	isInline := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "storage_class_specifier":
			switch nodeText(child, content) {
			case "static":
				isStatic = true
			case "inline":
				isInline = true
			}
		case "function_specifier":
			if nodeText(child, content) == "inline" {
				isInline = true
			}
		}
	}

	returnType := ""
	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		returnType = nodeText(typeNode, content)
	}

	funcDeclarator := unwrapToFunctionDeclarator(declarator)
	if funcDeclarator == nil {
		return nil
	}
	nameNode := funcDeclarator.ChildByFieldName("declarator")
	if nameNode == nil {
		return nil
	}
	name := identifierText(nameNode, content)
	if name == "" {
		return nil
	}

	// Pointer return types: "int *foo(...)" puts the "*" inside a
	// pointer_declarator wrapping the function_declarator. Reconstruct the
	// textual return type by counting pointer_declarator wrappers.
	stars := strings.Repeat("*", countPointerWrappers(declarator))
	if stars != "" {
		if returnType != "" {
			returnType = returnType + " " + stars
		} else {
			returnType = stars
		}
	}

	bodyNode := node.ChildByFieldName("body")
	lineStart := int(node.StartPoint().Row) + 1
	lineEnd := lineStart
	if bodyNode != nil {
		lineEnd = int(bodyNode.EndPoint().Row) + 1
	} else {
		lineEnd = int(node.EndPoint().Row) + 1
	}
	if lineEnd < lineStart {
		lineEnd = lineStart
	}

	id := model.FunctionID(filePath, name, lineStart)

	return &model.FunctionNode{
		ID:         id,
		Name:       name,
		FilePath:   filePath,
		LineStart:  lineStart,
		LineEnd:    lineEnd,
		IsStatic:   isStatic,
		IsInline:   isInline,
		Subsystem:  subsystem,
		ReturnType: strings.TrimSpace(returnType),
	}
}

// unwrapToFunctionDeclarator descends through pointer_declarator and
// parenthesized_declarator wrappers (e.g. "int *foo(void)" or
// "int (*foo)(void)" used for the definition form, rare but legal) to find
// the innermost function_declarator.
func unwrapToFunctionDeclarator(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Type() {
		case "function_declarator":
			return node
		case "pointer_declarator", "parenthesized_declarator":
			inner := node.ChildByFieldName("declarator")
			if inner == nil {
				return nil
			}
			node = inner
		default:
			return nil
		}
	}
	return nil
}

// identifierText extracts the plain name from an identifier node, unwrapping
// any pointer_declarator nesting that might still remain.
func identifierText(node *sitter.Node, content []byte) string {
	for node != nil {
		switch node.Type() {
		case "identifier", "field_identifier", "type_identifier":
			return nodeText(node, content)
		case "pointer_declarator":
			node = node.ChildByFieldName("declarator")
		default:
			return nodeText(node, content)
		}
	}
	return ""
}

func countPointerWrappers(node *sitter.Node) int {
	count := 0
	for node != nil && node.Type() == "pointer_declarator" {
		count++
		node = node.ChildByFieldName("declarator")
	}
	return count
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
