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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/internal/contract"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/ingestion"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/storage"
)

const (
	// DefaultBatchSize is the number of rows merged per transaction.
	DefaultBatchSize = 500

	// maxRetries is the retry budget per batch before the error surfaces as
	// a FatalStoreError.
	maxRetries = 3

	// retryBaseDelay seeds the exponential backoff between attempts.
	retryBaseDelay = 200 * time.Millisecond

	// rowsPerStatement bounds the rows inlined into one Datalog statement;
	// the Batcher then groups statements into transaction-sized scripts.
	rowsPerStatement = 50

	// maxScriptSize is the soft per-transaction script limit handed to the
	// Batcher, well under CozoDB's hard limit.
	maxScriptSize = 2 << 20
)

// Store is the single write and read path to the property graph.
type Store struct {
	backend   storage.Backend
	batcher   *ingestion.Batcher
	batchSize int
	logger    *slog.Logger
	metrics   *ingestion.Metrics

	// sleep is swapped out by tests to avoid real backoff delays.
	sleep func(time.Duration)
}

// Option configures a Store.
type Option func(*Store)

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithMetrics attaches ingestion counters (batches, retries).
func WithMetrics(m *ingestion.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates a Store over backend.
func New(backend storage.Backend, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		backend:   backend,
		batchSize: DefaultBatchSize,
		logger:    logger,
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.batcher = ingestion.NewBatcher(s.batchSize/rowsPerStatement+1, maxScriptSize)
	return s
}

// Close releases the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// UpsertFunctions merges FunctionNodes by id. Same id overwrites; distinct
// ids in one batch are independent.
func (s *Store) UpsertFunctions(ctx context.Context, batch []model.FunctionNode) error {
	rows := make([][]any, 0, len(batch))
	for _, f := range batch {
		rows = append(rows, []any{f.ID, f.Name, f.FilePath, f.LineStart, f.LineEnd, f.IsStatic, f.IsInline, f.Subsystem, f.ReturnType, f.IsPlaceholder})
	}
	return s.upsert(ctx, "function", rows)
}

// UpsertVariables merges VariableNodes by id.
func (s *Store) UpsertVariables(ctx context.Context, batch []model.VariableNode) error {
	rows := make([][]any, 0, len(batch))
	for _, v := range batch {
		rows = append(rows, []any{v.ID, v.FunctionID, v.Name, v.TypeString, string(v.Kind), v.IsPointer, v.DeclarationLine, v.InitialValueExpr})
	}
	return s.upsert(ctx, "variable", rows)
}

// UpsertFlows merges FLOWS_TO edges by their full identity tuple.
func (s *Store) UpsertFlows(ctx context.Context, batch []model.DataFlowEdge) error {
	rows := make([][]any, 0, len(batch))
	for _, f := range batch {
		rows = append(rows, []any{f.FunctionID, f.SourceVariableID, f.TargetVariableID, string(f.FlowKind), f.LineNumber, f.SourceExpression, f.Confidence})
	}
	return s.upsert(ctx, "flows_to", rows)
}

// UpsertCalls merges CALLS edges. CalleeID must already be resolved (a
// FunctionNode id or a placeholder id) - the edge always has a target.
func (s *Store) UpsertCalls(ctx context.Context, batch []model.CallSiteEdge) error {
	rows := make([][]any, 0, len(batch))
	for _, c := range batch {
		rows = append(rows, []any{c.CallerID, c.CalleeID, c.LineNumber, c.CalleeName, c.IsResolved})
	}
	return s.upsert(ctx, "calls", rows)
}

// UpsertTests merges TestCaseNodes by id.
func (s *Store) UpsertTests(ctx context.Context, batch []model.TestCaseNode) error {
	rows := make([][]any, 0, len(batch))
	for _, t := range batch {
		rows = append(rows, []any{t.ID, t.Name, t.FilePath, t.Framework, t.AssertionsCount})
	}
	return s.upsert(ctx, "test_case", rows)
}

// UpsertCovers merges COVERS edges.
func (s *Store) UpsertCovers(ctx context.Context, batch []model.CoversEdge) error {
	rows := make([][]any, 0, len(batch))
	for _, c := range batch {
		rows = append(rows, []any{c.TestCaseID, c.FunctionID, string(c.CoverageKind), c.Confidence})
	}
	return s.upsert(ctx, "covers", rows)
}

// UpsertFiles merges FileNode aggregation rows plus their BELONGS_TO edges.
func (s *Store) UpsertFiles(ctx context.Context, batch []model.FileNode) error {
	fileRows := make([][]any, 0, len(batch))
	belongRows := make([][]any, 0, len(batch))
	for _, f := range batch {
		fileRows = append(fileRows, []any{f.ID, f.Path, f.Subsystem})
		if f.Subsystem != "" {
			belongRows = append(belongRows, []any{f.ID, f.Subsystem})
		}
	}
	if err := s.upsert(ctx, "file", fileRows); err != nil {
		return err
	}
	return s.upsert(ctx, "belongs_to", belongRows)
}

// UpsertContains merges CONTAINS edges (File -> Function).
func (s *Store) UpsertContains(ctx context.Context, batch []model.ContainsEdge) error {
	rows := make([][]any, 0, len(batch))
	for _, c := range batch {
		rows = append(rows, []any{c.FileID, c.FunctionID})
	}
	return s.upsert(ctx, "contains", rows)
}

// UpsertSubsystems merges SubsystemNode aggregation rows.
func (s *Store) UpsertSubsystems(ctx context.Context, batch []model.SubsystemNode) error {
	rows := make([][]any, 0, len(batch))
	for _, n := range batch {
		rows = append(rows, []any{n.Name})
	}
	return s.upsert(ctx, "subsystem", rows)
}

// upsert renders rows into ":put" statements, groups them into
// transaction-sized scripts, and executes each script with retry.
func (s *Store) upsert(ctx context.Context, relation string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	script, err := buildPutScript(relation, rows)
	if err != nil {
		return &model.FatalStoreError{Op: "upsert " + relation, Err: err}
	}
	if vr := contract.ValidateBatchScript(script); !vr.OK {
		return &model.FatalStoreError{Op: "upsert " + relation, Err: fmt.Errorf("%s", vr.Message)}
	}
	batches, err := s.batcher.Batch(script)
	if err != nil {
		return &model.FatalStoreError{Op: "upsert " + relation, Err: err}
	}
	for _, b := range batches {
		if err := s.executeWithRetry(ctx, "upsert "+relation, b); err != nil {
			return err
		}
	}
	return nil
}

// executeWithRetry runs one transactional script, retrying transient
// failures up to maxRetries with exponential backoff. On exhaustion the
// last error surfaces as a FatalStoreError.
func (s *Store) executeWithRetry(ctx context.Context, op, script string) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return &model.FatalStoreError{Op: op, Err: err}
		}
		err := s.backend.Execute(ctx, script)
		if err == nil {
			if s.metrics != nil {
				s.metrics.BatchesSent.Inc()
			}
			return nil
		}
		lastErr = &model.TransientStoreError{Op: op, Attempt: attempt, Err: err}
		s.logger.Warn("graphstore.batch.retry", "op", op, "attempt", attempt, "err", err)
		if s.metrics != nil {
			s.metrics.BatchRetries.Inc()
		}
		if attempt < maxRetries {
			s.sleep(retryBaseDelay << (attempt - 1))
		}
	}
	return &model.FatalStoreError{Op: op, Err: lastErr}
}

// buildPutScript renders rows as brace-wrapped ":put" statements, one per
// rowsPerStatement chunk, in CozoDB's multi-statement batch syntax. Row
// literals are JSON-encoded, which is valid CozoScript for the string,
// number, and boolean column types the schema uses.
func buildPutScript(relation string, rows [][]any) (string, error) {
	cols, ok := relationColumns[relation]
	if !ok {
		return "", fmt.Errorf("unknown relation %q", relation)
	}
	head := strings.Join(cols, ", ")
	spec := putSpec(relation)

	var sb strings.Builder
	for start := 0; start < len(rows); start += rowsPerStatement {
		end := start + rowsPerStatement
		if end > len(rows) {
			end = len(rows)
		}
		lit, err := json.Marshal(rows[start:end])
		if err != nil {
			return "", fmt.Errorf("encode rows for %s: %w", relation, err)
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "{?[%s] <- %s %s}", head, lit, spec)
	}
	return sb.String(), nil
}

// queryLit renders a Go string as a CozoScript string literal.
func queryLit(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
