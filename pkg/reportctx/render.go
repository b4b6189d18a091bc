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

// Package reportctx renders a FunctionImpact (plus an optional graph
// slice) into the single deterministic text blob the external LLM reporter
// consumes. Render is a pure function of its inputs: no I/O, no clock, no
// randomness, so two runs on the same graph state are byte-identical.
package reportctx

import (
	"fmt"
	"strings"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/impact"
)

// TemplateVersion is embedded in the rendered output so consumers can
// detect format changes. Bump it whenever the layout below changes.
const TemplateVersion = "v1"

// Render produces the reporter context for one impact record. slice may be
// nil to omit the graph section.
func Render(im *impact.FunctionImpact, slice *impact.GraphSlice) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Impact Context %s\n\n", TemplateVersion)
	fmt.Fprintf(&b, "## Function\n\n")
	fmt.Fprintf(&b, "- name: %s\n", im.Function.Name)
	fmt.Fprintf(&b, "- id: %s\n", im.Function.ID)
	fmt.Fprintf(&b, "- location: %s:%d-%d\n", im.Function.FilePath, im.Function.LineStart, im.Function.LineEnd)
	fmt.Fprintf(&b, "- subsystem: %s\n", im.Function.Subsystem)
	fmt.Fprintf(&b, "- static: %t, inline: %t\n", im.Function.IsStatic, im.Function.IsInline)
	if im.Function.ReturnType != "" {
		fmt.Fprintf(&b, "- returns: %s\n", im.Function.ReturnType)
	}
	fmt.Fprintf(&b, "- risk: %s\n", im.RiskLevel)
	fmt.Fprintf(&b, "- traversal depth: %d", im.MaxDepth)
	if im.Truncated {
		b.WriteString(" (truncated)")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "\n## Callers (%d direct, %d indirect)\n\n", len(im.DirectCallers), len(im.IndirectCallers))
	if len(im.DirectCallers) == 0 && len(im.IndirectCallers) == 0 {
		b.WriteString("none\n")
	}
	for _, fn := range im.DirectCallers {
		fmt.Fprintf(&b, "- %s (%s:%d)\n", fn.Name, fn.FilePath, fn.LineStart)
	}
	for _, p := range im.IndirectCallers {
		fmt.Fprintf(&b, "- %s [depth %d via %s]\n", p.Function.Name, p.Depth, strings.Join(p.Path, " -> "))
	}

	fmt.Fprintf(&b, "\n## Callees (%d direct, %d indirect)\n\n", len(im.DirectCallees), len(im.IndirectCallees))
	if len(im.DirectCallees) == 0 && len(im.IndirectCallees) == 0 {
		b.WriteString("none\n")
	}
	for _, fn := range im.DirectCallees {
		marker := ""
		if fn.IsPlaceholder {
			marker = " [unresolved]"
		}
		fmt.Fprintf(&b, "- %s%s\n", fn.Name, marker)
	}
	for _, p := range im.IndirectCallees {
		fmt.Fprintf(&b, "- %s [depth %d]\n", p.Function.Name, p.Depth)
	}

	b.WriteString("\n## Syscall reachability\n\n")
	if len(im.SyscallEntryPoints) == 0 {
		b.WriteString("not reachable from any syscall entry point within the traversal depth\n")
	}
	for _, e := range im.SyscallEntryPoints {
		fmt.Fprintf(&b, "- %s (shortest path: %d hops)\n", e.EntryPoint.Name, e.ShortestPath)
	}

	fmt.Fprintf(&b, "\n## Test coverage (%d direct, %d indirect)\n\n", len(im.CoveringTestsDirect), len(im.CoveringTestsIndirect))
	if len(im.CoveringTestsDirect) == 0 && len(im.CoveringTestsIndirect) == 0 {
		b.WriteString("no covering tests\n")
	}
	for _, tc := range im.CoveringTestsDirect {
		fmt.Fprintf(&b, "- %s [%s, direct]\n", tc.Name, tc.Framework)
	}
	for _, tc := range im.CoveringTestsIndirect {
		fmt.Fprintf(&b, "- %s [%s, indirect]\n", tc.Name, tc.Framework)
	}

	if slice != nil {
		fmt.Fprintf(&b, "\n## Call graph slice (%d nodes, %d edges)\n\n", len(slice.Nodes), len(slice.Edges))
		for _, e := range slice.Edges {
			fmt.Fprintf(&b, "- %s -> %s\n", e.From, e.To)
		}
	}

	return b.String()
}
