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
	"testing"
)

// putStatement renders one flat statement of the shape the graph store's
// script builder emits: brace-wrapped, single line, JSON row literals.
func putStatement(id, name string) string {
	return fmt.Sprintf(`{?[id, name] <- [[%q, %q]] :put function {id => name}}`, id, name)
}

func TestBatch_EmptyScript(t *testing.T) {
	b := NewBatcher(10, 1<<20)
	batches, err := b.Batch("")
	if err != nil {
		t.Fatalf("Batch error = %v", err)
	}
	if batches != nil {
		t.Errorf("expected nil batches for empty script, got %v", batches)
	}
}

func TestBatch_SingleStatement(t *testing.T) {
	b := NewBatcher(10, 1<<20)
	stmt := putStatement("fs/read.c::vfs_read::120", "vfs_read")

	batches, err := b.Batch(stmt)
	if err != nil {
		t.Fatalf("Batch error = %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	if !strings.HasSuffix(batches[0], "\n") {
		t.Error("batch must end with a newline")
	}
	if !strings.Contains(batches[0], "vfs_read") {
		t.Errorf("statement lost: %q", batches[0])
	}
}

func TestBatch_GroupsByStatementCount(t *testing.T) {
	b := NewBatcher(2, 1<<20)
	script := strings.Join([]string{
		putStatement("a.c::f1::1", "f1"),
		putStatement("a.c::f2::2", "f2"),
		putStatement("a.c::f3::3", "f3"),
	}, "\n")

	batches, err := b.Batch(script)
	if err != nil {
		t.Fatalf("Batch error = %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches (2+1 statements), got %d", len(batches))
	}
	if strings.Count(batches[0], ":put") != 2 {
		t.Errorf("first batch should hold 2 statements, got: %q", batches[0])
	}
	if strings.Count(batches[1], ":put") != 1 {
		t.Errorf("second batch should hold 1 statement, got: %q", batches[1])
	}
}

func TestBatch_StatementsSeparatedByBlankLine(t *testing.T) {
	b := NewBatcher(10, 1<<20)
	script := putStatement("a.c::f1::1", "f1") + "\n" + putStatement("a.c::f2::2", "f2")

	batches, err := b.Batch(script)
	if err != nil {
		t.Fatalf("Batch error = %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	// Cozo's batch parser needs the blank line between queries.
	if !strings.Contains(batches[0], "}\n\n{") {
		t.Errorf("statements must be separated by a blank line: %q", batches[0])
	}
}

func TestBatch_GroupsBySize(t *testing.T) {
	stmt1 := putStatement("a.c::f1::1", strings.Repeat("x", 100))
	stmt2 := putStatement("a.c::f2::2", strings.Repeat("y", 100))

	// Limit fits one padded statement but not two.
	b := NewBatcher(10, len(stmt1)+20)
	batches, err := b.Batch(stmt1 + "\n" + stmt2)
	if err != nil {
		t.Fatalf("Batch error = %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected size limit to split into 2 batches, got %d", len(batches))
	}
}

func TestBatch_OversizedStatementFails(t *testing.T) {
	b := NewBatcher(10, 64)
	stmt := putStatement("a.c::f1::1", strings.Repeat("x", 500))

	_, err := b.Batch(stmt)
	if err == nil {
		t.Fatal("expected error for statement exceeding max size")
	}
	if !strings.Contains(err.Error(), "exceeds max size") {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "...") {
		t.Errorf("error should carry a truncated statement preview: %v", err)
	}
}

func TestBatch_SkipsBlankLinesAndComments(t *testing.T) {
	b := NewBatcher(10, 1<<20)
	script := "\n// staged function upserts\n" +
		putStatement("a.c::f1::1", "f1") + "\n\n" +
		"   \n" +
		putStatement("a.c::f2::2", "f2") + "\n"

	batches, err := b.Batch(script)
	if err != nil {
		t.Fatalf("Batch error = %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	if strings.Contains(batches[0], "//") {
		t.Errorf("comments must not survive into batches: %q", batches[0])
	}
	if strings.Count(batches[0], ":put") != 2 {
		t.Errorf("expected both statements kept, got: %q", batches[0])
	}
}

// TestBatch_BracesInsideStringLiterals: the script builder JSON-encodes row
// values, so braces and quotes inside a value stay on one line and must not
// confuse the line-based split.
func TestBatch_BracesInsideStringLiterals(t *testing.T) {
	b := NewBatcher(1, 1<<20)
	script := putStatement("a.c::f1::1", `body { return map[x]{1}; }`) + "\n" +
		putStatement("a.c::f2::2", `quoted "name" with } brace`)

	batches, err := b.Batch(script)
	if err != nil {
		t.Fatalf("Batch error = %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches (target 1 statement each), got %d", len(batches))
	}
}

// TestBatch_UpsertRoundTripShape mirrors how the graph store drives the
// batcher: many statements, small target, every statement lands in exactly
// one batch.
func TestBatch_UpsertRoundTripShape(t *testing.T) {
	const statements = 25
	var sb strings.Builder
	for i := 0; i < statements; i++ {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(putStatement(fmt.Sprintf("a.c::f%d::%d", i, i+1), fmt.Sprintf("f%d", i)))
	}

	b := NewBatcher(4, 1<<20)
	batches, err := b.Batch(sb.String())
	if err != nil {
		t.Fatalf("Batch error = %v", err)
	}

	total := 0
	for _, batch := range batches {
		n := strings.Count(batch, ":put")
		if n > 4 {
			t.Errorf("batch exceeds statement target: %d", n)
		}
		total += n
	}
	if total != statements {
		t.Errorf("statements lost or duplicated: %d != %d", total, statements)
	}
	if len(batches) != 7 {
		t.Errorf("expected ceil(25/4)=7 batches, got %d", len(batches))
	}
}
