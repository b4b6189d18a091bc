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

package impact

import (
	"context"
	"fmt"
	"sort"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
)

// Direction selects which way a graph slice expands from its origin.
type Direction string

const (
	DirectionCallers Direction = "callers"
	DirectionCallees Direction = "callees"
	DirectionBoth    Direction = "both"
)

// SliceEdge is one CALLS edge in an exported slice, caller to callee.
type SliceEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GraphSlice is a deterministic node/edge list for external renderers
// (Mermaid, DOT, JSON). Nodes and edges are sorted by id so two exports of
// the same graph state are identical.
type GraphSlice struct {
	Origin string               `json:"origin"`
	Nodes  []model.FunctionNode `json:"nodes"`
	Edges  []SliceEdge          `json:"edges"`
}

// ExportGraphSlice expands from functionID up to maxDepth hops in the given
// direction and returns every node reached plus every CALLS edge observed
// between reached nodes. The origin node is used as passed in, without a
// Reader lookup, so the slice carries whatever metadata the caller supplied.
func (a *Analyzer) ExportGraphSlice(ctx context.Context, origin model.FunctionNode, maxDepth int, direction Direction) (*GraphSlice, error) {
	depth := ClampDepth(maxDepth)

	nodes := map[string]model.FunctionNode{origin.ID: origin}
	edges := map[string]SliceEdge{}

	if direction == DirectionCallers || direction == DirectionBoth {
		if err := a.collectSlice(ctx, origin.ID, depth, a.store.CallersOf, nodes, edges, true); err != nil {
			return nil, err
		}
	}
	if direction == DirectionCallees || direction == DirectionBoth {
		if err := a.collectSlice(ctx, origin.ID, depth, a.store.CalleesOf, nodes, edges, false); err != nil {
			return nil, err
		}
	}

	slice := &GraphSlice{Origin: origin.ID}
	for _, n := range nodes {
		slice.Nodes = append(slice.Nodes, n)
	}
	sort.Slice(slice.Nodes, func(i, j int) bool { return slice.Nodes[i].ID < slice.Nodes[j].ID })
	for _, e := range edges {
		slice.Edges = append(slice.Edges, e)
	}
	sort.Slice(slice.Edges, func(i, j int) bool {
		if slice.Edges[i].From != slice.Edges[j].From {
			return slice.Edges[i].From < slice.Edges[j].From
		}
		return slice.Edges[i].To < slice.Edges[j].To
	})
	return slice, nil
}

// collectSlice walks one direction, accumulating nodes and the edges
// between them. inbound=true means next yields callers, so the edge runs
// neighbor -> current; otherwise current -> neighbor.
func (a *Analyzer) collectSlice(ctx context.Context, origin string, maxDepth int, next func(context.Context, string) ([]model.FunctionNode, error), nodes map[string]model.FunctionNode, edges map[string]SliceEdge, inbound bool) error {
	frontier := []string{origin}
	visited := map[string]bool{origin: true}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var nextFrontier []string
		for _, id := range frontier {
			if err := ctx.Err(); err != nil {
				return &model.FatalStoreError{Op: "export slice", Err: err}
			}
			neighbors, err := next(ctx, id)
			if err != nil {
				return err
			}
			for _, nb := range neighbors {
				nodes[nb.ID] = nb
				var e SliceEdge
				if inbound {
					e = SliceEdge{From: nb.ID, To: id}
				} else {
					e = SliceEdge{From: id, To: nb.ID}
				}
				edges[fmt.Sprintf("%s->%s", e.From, e.To)] = e
				if !visited[nb.ID] {
					visited[nb.ID] = true
					nextFrontier = append(nextFrontier, nb.ID)
				}
			}
		}
		frontier = nextFrontier
	}
	return nil
}
