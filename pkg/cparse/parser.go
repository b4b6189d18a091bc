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

// Package cparse walks a C translation unit with
// Tree-sitter and yields FunctionNode and CallSiteEdge records. It never
// fails on malformed input - partial trees are accepted, unrecognized
// subtrees are skipped, and a warning counter is incremented.
package cparse

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"
	sitterc "github.com/smacker/go-tree-sitter/c"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/preprocess"
)

// Parser walks C source with an incremental Tree-sitter grammar. It never
// fails on malformed input: partial trees are accepted, unrecognized
// subtrees are skipped, and the warning counter is incremented. Each
// ExtractFromFile call creates its own sitter.Parser and the counter is
// atomic, so one Parser can serve concurrent callers.
type Parser struct {
	logger     *slog.Logger
	preproc    *preprocess.Wrapper
	warnings   int64 // atomic
	maxCodeLen int64
}

// New creates a Parser. preproc may be nil, in which case every file is
// parsed verbatim (equivalent to preprocessing.enabled=false).
func New(preproc *preprocess.Wrapper, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger, preproc: preproc}
}

// Warnings returns the number of extractor warnings recorded so far.
func (p *Parser) Warnings() int64 { return atomic.LoadInt64(&p.warnings) }

func (p *Parser) warn(file string, line int, detail string) {
	atomic.AddInt64(&p.warnings, 1)
	p.logger.Warn("cparse.warning", "file", file, "line", line, "detail", detail)
}

// ParsedFunction pairs a resolved FunctionNode with the AST handle and
// source bytes needed to re-walk its body - pkg/dataflow
// consumes these directly so the variable/flow extractor never re-parses.
type ParsedFunction struct {
	Function model.FunctionNode
	Node     *sitter.Node
	Content  []byte
}

// FileResult is everything extracted from one translation unit. The AST
// handles in Functions stay valid until Close is called - callers that walk
// them (pkg/dataflow via pkg/pipeline) must Close the result when done.
type FileResult struct {
	Functions []ParsedFunction
	Calls     []model.CallSiteEdge

	// Root is the translation unit's root node, for file-scope walks such
	// as dataflow.ExtractGlobals. Nil when the file produced no tree.
	Root *sitter.Node

	// Content is the parsed byte content (preprocessed form when expansion
	// ran), backing the AST handles above.
	Content []byte

	trees []*sitter.Tree
}

// Close releases the Tree-sitter trees backing this result. All Node
// handles are invalid afterwards.
func (r *FileResult) Close() {
	for _, t := range r.trees {
		t.Close()
	}
	r.trees = nil
}

// ExtractFromFile parses one C source file and returns its functions and
// calls. The subsystem label comes from model.Subsystem(root, path). When
// preprocessing ran, function and call coordinates are remapped back to the
// original source through the "#line" position map.
func (p *Parser) ExtractFromFile(ctx context.Context, root, path string) (*FileResult, error) {
	var content []byte
	var posMap *preprocess.PositionMap
	var err error

	if p.preproc != nil {
		res, perr := p.preproc.ExpandWithFallback(path)
		if perr != nil {
			p.warn(path, 0, fmt.Sprintf("preprocessing failed: %v", perr))
			return &FileResult{}, nil
		}
		if res.Fellback {
			p.warn(path, 0, "preprocessor unavailable, parsed raw file")
		}
		content = res.Content
		posMap = res.Position
	} else {
		content, err = readFile(path)
		if err != nil {
			p.warn(path, 0, fmt.Sprintf("read failed: %v", err))
			return &FileResult{}, nil
		}
	}

	parser := sitter.NewParser()
	parser.SetLanguage(sitterc.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		p.warn(path, 0, fmt.Sprintf("tree-sitter parse failed: %v", err))
		return &FileResult{}, nil
	}

	rootNode := tree.RootNode()
	if rootNode == nil {
		tree.Close()
		p.warn(path, 0, "empty parse tree")
		return &FileResult{}, nil
	}
	if rootNode.HasError() {
		p.warn(path, 0, "syntax errors present, partial tree accepted")
	}

	subsystem := model.Subsystem(root, path)

	result := FileResult{Root: rootNode, Content: content, trees: []*sitter.Tree{tree}}
	funcNameToID := make(map[string]string)
	walkForFunctions(rootNode, content, path, subsystem, &result.Functions, funcNameToID, p)

	if posMap != nil {
		remapFunctions(result.Functions, posMap)
	}

	for i := range result.Functions {
		pf := &result.Functions[i]
		calls := extractCalls(pf.Node, content, pf.Function.ID, path)
		if posMap != nil {
			for j := range calls {
				_, calls[j].LineNumber = posMap.Original(calls[j].LineNumber)
			}
		}
		result.Calls = append(result.Calls, calls...)
	}

	return &result, nil
}

// remapFunctions translates expanded-form coordinates back to the original
// source: a macro-expanded definition keeps the file and line of the macro
// invocation, so FunctionNode identities never reference the preprocessed
// intermediate. Ids are re-minted from the remapped coordinates.
func remapFunctions(functions []ParsedFunction, posMap *preprocess.PositionMap) {
	for i := range functions {
		fn := &functions[i].Function
		origFile, origStart := posMap.Original(fn.LineStart)
		_, origEnd := posMap.Original(fn.LineEnd)
		if origFile != "" {
			fn.FilePath = origFile
		}
		fn.LineStart = origStart
		fn.LineEnd = origEnd
		if fn.LineEnd < fn.LineStart {
			fn.LineEnd = fn.LineStart
		}
		fn.ID = model.FunctionID(fn.FilePath, fn.Name, fn.LineStart)
	}
}

// ExtractFromSubsystem walks every ".c" file below root (symlinks never
// followed, hidden directories skipped) and concatenates per-file results.
func (p *Parser) ExtractFromSubsystem(ctx context.Context, root string) (*FileResult, error) {
	var combined FileResult

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			p.warn(path, 0, fmt.Sprintf("walk error: %v", err))
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !strings.HasSuffix(path, ".c") {
			return nil
		}

		res, ferr := p.ExtractFromFile(ctx, root, path)
		if ferr != nil {
			return ferr
		}
		combined.Functions = append(combined.Functions, res.Functions...)
		combined.Calls = append(combined.Calls, res.Calls...)
		combined.trees = append(combined.trees, res.trees...)
		return nil
	})
	if err != nil {
		return &combined, err
	}
	return &combined, nil
}
