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
	"fmt"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
)

// PurgeSubsystem deletes every FunctionNode whose subsystem matches name,
// cascading to its owned Variables, outgoing FLOWS_TO, and outgoing CALLS.
// Incoming CALLS from other subsystems are not deleted: they are repointed
// to placeholder nodes named after the callee, so cross-subsystem
// references stay queryable after the purge. COVERS edges terminating at
// purged functions are removed; re-running map-tests rebuilds them.
func (s *Store) PurgeSubsystem(ctx context.Context, name string) error {
	if err := s.repointIncomingCalls(ctx, name); err != nil {
		return err
	}

	sub := queryLit(name)
	cascade := []struct {
		op     string
		script string
	}{
		{
			"purge variables",
			fmt.Sprintf(`?[id] := *variable{id, function_id}, *function{id: function_id, subsystem}, subsystem == %s :rm variable {id}`, sub),
		},
		{
			"purge flows",
			fmt.Sprintf(`?[function_id, source_variable_id, target_variable_id, flow_kind, line_number] := *flows_to{function_id, source_variable_id, target_variable_id, flow_kind, line_number}, *function{id: function_id, subsystem}, subsystem == %s :rm flows_to {function_id, source_variable_id, target_variable_id, flow_kind, line_number}`, sub),
		},
		{
			"purge outgoing calls",
			fmt.Sprintf(`?[caller_id, callee_id, line_number] := *calls{caller_id, callee_id, line_number}, *function{id: caller_id, subsystem}, subsystem == %s :rm calls {caller_id, callee_id, line_number}`, sub),
		},
		{
			"purge covers",
			fmt.Sprintf(`?[test_case_id, function_id] := *covers{test_case_id, function_id}, *function{id: function_id, subsystem}, subsystem == %s :rm covers {test_case_id, function_id}`, sub),
		},
		{
			"purge contains",
			fmt.Sprintf(`?[file_id, function_id] := *contains{file_id, function_id}, *function{id: function_id, subsystem}, subsystem == %s :rm contains {file_id, function_id}`, sub),
		},
		{
			"purge belongs_to",
			fmt.Sprintf(`?[file_id, subsystem] := *belongs_to{file_id, subsystem}, subsystem == %s :rm belongs_to {file_id, subsystem}`, sub),
		},
		{
			"purge files",
			fmt.Sprintf(`?[id] := *file{id, subsystem}, subsystem == %s :rm file {id}`, sub),
		},
		{
			"purge functions",
			fmt.Sprintf(`?[id] := *function{id, subsystem, is_placeholder}, subsystem == %s, is_placeholder == false :rm function {id}`, sub),
		},
		{
			"purge subsystem node",
			fmt.Sprintf(`?[name] := *subsystem{name}, name == %s :rm subsystem {name}`, sub),
		},
	}
	for _, step := range cascade {
		if err := s.executeWithRetry(ctx, step.op, step.script); err != nil {
			return err
		}
	}
	s.logger.Info("graphstore.purge.done", "subsystem", name)
	return nil
}

// repointIncomingCalls rewrites CALLS edges from callers outside the
// subsystem being purged so they terminate at placeholder nodes instead of
// the soon-to-be-deleted FunctionNodes.
func (s *Store) repointIncomingCalls(ctx context.Context, name string) error {
	script := fmt.Sprintf(
		`?[caller_id, callee_id, line_number, callee_name] := *calls{caller_id, callee_id, line_number, callee_name}, *function{id: callee_id, subsystem}, subsystem == %s, *function{id: caller_id, subsystem: caller_sub}, caller_sub != %s`,
		queryLit(name), queryLit(name),
	)
	res, err := s.queryWithRetry(ctx, "incoming calls", script)
	if err != nil {
		return err
	}
	if len(res.Rows) == 0 {
		return nil
	}

	var placeholders []model.FunctionNode
	var repointed []model.CallSiteEdge
	seenPlaceholder := make(map[string]bool)
	for _, row := range res.Rows {
		if len(row) < 4 {
			continue
		}
		callerID := asString(row[0])
		calleeID := asString(row[1])
		line := asInt(row[2])
		calleeName := asString(row[3])

		pid := model.PlaceholderFunctionID(calleeName)
		if !seenPlaceholder[pid] {
			seenPlaceholder[pid] = true
			placeholders = append(placeholders, model.FunctionNode{
				ID:            pid,
				Name:          calleeName,
				IsPlaceholder: true,
			})
		}
		repointed = append(repointed, model.CallSiteEdge{
			CallerID:   callerID,
			CalleeID:   pid,
			LineNumber: line,
			CalleeName: calleeName,
			IsResolved: false,
		})

		rm := fmt.Sprintf(`?[caller_id, callee_id, line_number] <- [[%s, %s, %d]] :rm calls {caller_id, callee_id, line_number}`,
			queryLit(callerID), queryLit(calleeID), line)
		if err := s.executeWithRetry(ctx, "repoint calls rm", rm); err != nil {
			return err
		}
	}

	if err := s.UpsertFunctions(ctx, placeholders); err != nil {
		return err
	}
	return s.UpsertCalls(ctx, repointed)
}
