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

// Package graphstore is the sole gatekeeper to the persistent
// property graph. All writes and reads pass through Store, which sits on a
// storage.Backend (an embedded CozoDB today).
//
// Write discipline: every batch is its own transaction. A failed batch
// rolls back as a unit and is retried up to three times with exponential
// backoff; exhaustion surfaces a FatalStoreError and no further batches are
// attempted for that upsert. Writers never hold a transaction across
// external I/O. Concurrent writers are not supported - the pipeline
// serializes them.
//
// Reads return typed records (model.FunctionNode, model.TestCaseNode, ...),
// never raw query results, so callers stay insulated from the Datalog
// schema.
package graphstore
