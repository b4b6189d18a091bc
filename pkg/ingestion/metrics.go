// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters backing the per-run summary:
// parsed files, extracted functions, extracted flows, ingested batches,
// warnings, and retries. A run with warnings but no
// errors is still a success, so these are plain counters, never gauges that
// could be mistaken for health signals.
type Metrics struct {
	FilesParsed   prometheus.Counter
	FilesFailed   prometheus.Counter
	Functions     prometheus.Counter
	Calls         prometheus.Counter
	Variables     prometheus.Counter
	Flows         prometheus.Counter
	TestCases     prometheus.Counter
	CoversEdges   prometheus.Counter
	BatchesSent   prometheus.Counter
	BatchRetries  prometheus.Counter
	ParseWarnings prometheus.Counter
	ResolveWarns  prometheus.Counter
}

// NewMetrics registers the ingestion counters against reg. Passing a fresh
// prometheus.Registry per test avoids the "duplicate metrics collector
// registration" panic that a shared DefaultRegisterer would trigger across
// package tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FilesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_ingestion_files_parsed_total",
			Help: "C source files successfully parsed.",
		}),
		FilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_ingestion_files_failed_total",
			Help: "C source files that produced zero records.",
		}),
		Functions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_ingestion_functions_total",
			Help: "FunctionNode records extracted.",
		}),
		Calls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_ingestion_calls_total",
			Help: "CALLS edges extracted.",
		}),
		Variables: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_ingestion_variables_total",
			Help: "VariableNode records extracted.",
		}),
		Flows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_ingestion_flows_total",
			Help: "FLOWS_TO edges extracted.",
		}),
		TestCases: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_ingestion_testcases_total",
			Help: "TestCaseNode records extracted.",
		}),
		CoversEdges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_ingestion_covers_total",
			Help: "COVERS edges extracted.",
		}),
		BatchesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_ingestion_batches_total",
			Help: "Graph store batches committed.",
		}),
		BatchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_ingestion_batch_retries_total",
			Help: "Batch retries due to TransientStoreError.",
		}),
		ParseWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_ingestion_parse_warnings_total",
			Help: "ParseWarning occurrences.",
		}),
		ResolveWarns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_ingestion_resolve_warnings_total",
			Help: "ResolveWarning occurrences.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.FilesParsed, m.FilesFailed, m.Functions, m.Calls, m.Variables,
			m.Flows, m.TestCases, m.CoversEdges, m.BatchesSent, m.BatchRetries,
			m.ParseWarnings, m.ResolveWarns,
		)
	}
	return m
}
