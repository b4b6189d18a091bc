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

package ingestion

import (
	"fmt"
	"strings"
)

// Batcher groups the graph store's mutation statements into
// transaction-sized scripts. The store renders exactly one brace-wrapped
// ":put" statement per line, with row literals JSON-encoded so a statement
// never spans lines; Batch regroups those lines into scripts that respect
// both a statement-count target and a byte-size ceiling. Each returned
// script commits as its own transaction.
type Batcher struct {
	targetStatements int
	maxScriptSize    int
}

// NewBatcher creates a batcher targeting targetStatements statements per
// script, never exceeding maxScriptSize bytes.
func NewBatcher(targetStatements int, maxScriptSize int) *Batcher {
	return &Batcher{
		targetStatements: targetStatements,
		maxScriptSize:    maxScriptSize,
	}
}

// separator keeps a blank line between statements so CozoDB's batch parser
// sees them as distinct queries.
const separator = "\n\n"

// Batch splits a mutation script into transaction-sized scripts.
func (b *Batcher) Batch(script string) ([]string, error) {
	statements := b.splitStatements(script)
	if len(statements) == 0 {
		return nil, nil
	}

	var batches []string
	var current []string
	currentSize := 0

	finish := func() {
		if len(current) == 0 {
			return
		}
		batch := strings.Join(current, separator)
		if !strings.HasSuffix(batch, "\n") {
			batch += "\n"
		}
		batches = append(batches, batch)
		current = nil
		currentSize = 0
	}

	for _, stmt := range statements {
		if len(stmt) > b.maxScriptSize {
			preview := stmt
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			return nil, fmt.Errorf("mutation statement exceeds max size: %d bytes (limit: %d). Statement preview: %s", len(stmt), b.maxScriptSize, preview)
		}

		added := len(stmt)
		if len(current) > 0 {
			added += len(separator)
		}
		if len(current) > 0 && (currentSize+added > b.maxScriptSize || len(current) >= b.targetStatements) {
			finish()
			added = len(stmt)
		}
		current = append(current, stmt)
		currentSize += added
	}
	finish()

	return batches, nil
}

// splitStatements treats every non-blank, non-comment line as one complete
// statement. String literals inside a statement are JSON-escaped by the
// script builder, so braces or quotes within them can never leak a
// statement across lines.
func (b *Batcher) splitStatements(script string) []string {
	var statements []string
	for _, line := range strings.Split(script, "\n") {
		stmt := strings.TrimSpace(line)
		if stmt == "" || strings.HasPrefix(stmt, "//") {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}
