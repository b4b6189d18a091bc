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

// Package preprocess optionally expands a C source file through an external
// preprocessor while retaining a mapping back to the file's original line
// numbers via the emitted "#line" directives.
package preprocess

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
)

// Config controls whether and how the external preprocessor is invoked.
type Config struct {
	// Enabled toggles preprocessing. When false, Wrapper.Expand returns the
	// raw file content unchanged and the position map is the identity map.
	Enabled bool

	// Binary is the preprocessor executable. Defaults to "cc".
	Binary string

	// IncludePaths are passed as "-I" arguments, in order.
	IncludePaths []string

	// Defines are passed as "-D" arguments, in order.
	Defines []string
}

// Wrapper invokes the configured C preprocessor out of process. It holds no
// shared in-process state and performs no caching.
type Wrapper struct {
	cfg    Config
	logger *slog.Logger
}

// NewWrapper creates a preprocessor wrapper. A nil logger falls back to
// slog.Default().
func NewWrapper(cfg Config, logger *slog.Logger) *Wrapper {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "cc"
	}
	return &Wrapper{cfg: cfg, logger: logger}
}

// PositionMap recovers, for any line in the expanded output, the
// (original_file, original_line) coordinate carried by the most recent
// preceding "#line" directive.
type PositionMap struct {
	// entries is sorted by ExpandedLine ascending.
	entries []lineMarker
}

type lineMarker struct {
	ExpandedLine int
	OriginalFile string
	OriginalLine int
}

// Original returns the original (file, line) for a 1-based line number in
// the expanded output. For the identity map of an unexpanded file the line
// is returned unchanged with that file's path; a nil or empty map returns
// "" and the line unchanged.
func (m *PositionMap) Original(expandedLine int) (file string, line int) {
	if m == nil || len(m.entries) == 0 {
		return "", expandedLine
	}
	best := m.entries[0]
	for _, e := range m.entries {
		if e.ExpandedLine > expandedLine {
			break
		}
		best = e
	}
	delta := expandedLine - best.ExpandedLine
	return best.OriginalFile, best.OriginalLine + delta
}

// Result is the output of Expand: the expanded bytes plus the position map
// needed to translate AST coordinates back to the original source.
type Result struct {
	Content  []byte
	Position *PositionMap
	Fellback bool // true if preprocessing failed and raw content was used
}

// Expand transforms path into its expanded form, tracking #line directives.
// On a missing tool or non-zero exit it returns a *model.PreprocessorError;
// callers are expected to fall back to the raw content and emit a
// ParseWarning instead of aborting.
func (w *Wrapper) Expand(path string) (*Result, error) {
	if !w.cfg.Enabled {
		return w.expandRaw(path)
	}

	// "-E" expands macros and stops before compilation. We deliberately
	// omit "-P" (which would strip #line markers): the markers are what
	// let us remap AST positions back to the original file.
	args := []string{"-E"}
	for _, inc := range w.cfg.IncludePaths {
		args = append(args, "-I", inc)
	}
	for _, def := range w.cfg.Defines {
		args = append(args, "-D", def)
	}
	args = append(args, path)

	// #nosec G204 - Binary/IncludePaths/Defines come from the caller's own
	// configuration file, not from untrusted input embedded in source.
	cmd := exec.Command(w.cfg.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		w.logger.Warn("preprocess.expand.failed", "path", path, "err", err, "stderr", stderr.String())
		return nil, &model.PreprocessorError{File: path, Err: err}
	}

	posMap := parseLineDirectives(stdout.Bytes(), path)
	return &Result{Content: stdout.Bytes(), Position: posMap}, nil
}

// expandRaw returns the file content unchanged with an identity position
// map, used both when preprocessing is disabled and as the fallback path.
func (w *Wrapper) expandRaw(path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Result{
		Content:  content,
		Position: &PositionMap{entries: []lineMarker{{ExpandedLine: 1, OriginalFile: path, OriginalLine: 1}}},
	}, nil
}

// ExpandWithFallback calls Expand and, on failure, falls back to the raw
// file content, returning Fellback=true so the caller can emit a
// ParseWarning rather than aborting the subsystem ingest.
func (w *Wrapper) ExpandWithFallback(path string) (*Result, error) {
	res, err := w.Expand(path)
	if err == nil {
		return res, nil
	}
	raw, rawErr := w.expandRaw(path)
	if rawErr != nil {
		return nil, rawErr
	}
	raw.Fellback = true
	return raw, nil
}

// parseLineDirectives scans preprocessed output for GNU-style "# <line>
// "<file>"" and standard "#line <line> "<file>"" directives, building a
// PositionMap. originalPath seeds the map so content preceding the first
// directive still maps back to the source file being expanded.
func parseLineDirectives(expanded []byte, originalPath string) *PositionMap {
	pm := &PositionMap{entries: []lineMarker{{ExpandedLine: 1, OriginalFile: originalPath, OriginalLine: 1}}}

	scanner := bufio.NewScanner(bytes.NewReader(expanded))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	expandedLine := 0
	for scanner.Scan() {
		expandedLine++
		line := scanner.Text()
		file, origLine, ok := parseOneLineDirective(line)
		if !ok {
			continue
		}
		pm.entries = append(pm.entries, lineMarker{
			ExpandedLine: expandedLine + 1, // directive describes the NEXT line
			OriginalFile: file,
			OriginalLine: origLine,
		})
	}
	return pm
}

// parseOneLineDirective recognizes "# 12 \"file.c\" [flags]" and
// "#line 12 \"file.c\"" forms.
func parseOneLineDirective(line string) (file string, origLine int, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", 0, false
	}
	rest := strings.TrimPrefix(trimmed, "#")
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "line"))
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return "", 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return "", 0, false
	}
	name := strings.Trim(fields[1], `"`)
	return name, n, true
}
