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

package cozodb

/*
#cgo LDFLAGS: -lcozo_c
#include <stdlib.h>
#include <stdbool.h>
#include <stdint.h>

extern char *cozo_open_db(const char *engine, const char *path, const char *options, int32_t *db_id);
extern bool cozo_close_db(int32_t id);
extern char *cozo_run_query(int32_t db_id, const char *script_raw, const char *params_raw, bool immutable_query);
extern char *cozo_backup_db(int32_t db_id, const char *out_path);
extern char *cozo_restore_db(int32_t db_id, const char *in_path);
extern void cozo_free_str(char *s);
*/
import "C"

import (
	"encoding/json"
	"fmt"
	"unsafe"
)

// Map is shorthand for the JSON-object parameter maps passed to queries and
// engine options.
type Map = map[string]any

// CozoDB is a handle to an open database. The zero value is not usable; open
// with New. The handle is safe for concurrent use - CozoDB serializes
// internally - but callers that need read/write fencing on top (pkg/storage)
// add their own locking.
type CozoDB struct {
	ID int32
}

// NamedRows is the tabular result of a query.
type NamedRows struct {
	Headers []string `json:"headers"`
	Rows    [][]any  `json:"rows"`
	Took    float64  `json:"took"`
}

// queryResponse is the wire shape cozo_run_query returns: either a result
// set with ok=true or a structured error report.
type queryResponse struct {
	OK      bool     `json:"ok"`
	Headers []string `json:"headers"`
	Rows    [][]any  `json:"rows"`
	Took    float64  `json:"took"`
	Message string   `json:"message"`
	Display string   `json:"display"`
}

// New opens a database with the given storage engine ("mem", "sqlite" or
// "rocksdb") at path. options is engine-specific and may be nil.
func New(engine, path string, options Map) (CozoDB, error) {
	if options == nil {
		options = Map{}
	}
	optBytes, err := json.Marshal(options)
	if err != nil {
		return CozoDB{}, fmt.Errorf("marshal options: %w", err)
	}

	cEngine := C.CString(engine)
	defer C.free(unsafe.Pointer(cEngine))
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	cOptions := C.CString(string(optBytes))
	defer C.free(unsafe.Pointer(cOptions))

	var id C.int32_t
	errStr := C.cozo_open_db(cEngine, cPath, cOptions, &id)
	if errStr != nil {
		msg := C.GoString(errStr)
		C.cozo_free_str(errStr)
		return CozoDB{}, fmt.Errorf("open cozodb (%s at %s): %s", engine, path, msg)
	}
	return CozoDB{ID: int32(id)}, nil
}

// Run executes a CozoScript program, mutations permitted. params may be nil.
func (db CozoDB) Run(script string, params Map) (NamedRows, error) {
	return db.run(script, params, false)
}

// RunReadOnly executes a CozoScript program with immutability enforced at
// the database level: any mutation in the script fails instead of writing.
func (db CozoDB) RunReadOnly(script string, params Map) (NamedRows, error) {
	return db.run(script, params, true)
}

func (db CozoDB) run(script string, params Map, immutable bool) (NamedRows, error) {
	if params == nil {
		params = Map{}
	}
	paramBytes, err := json.Marshal(params)
	if err != nil {
		return NamedRows{}, fmt.Errorf("marshal params: %w", err)
	}

	cScript := C.CString(script)
	defer C.free(unsafe.Pointer(cScript))
	cParams := C.CString(string(paramBytes))
	defer C.free(unsafe.Pointer(cParams))

	res := C.cozo_run_query(C.int32_t(db.ID), cScript, cParams, C.bool(immutable))
	if res == nil {
		return NamedRows{}, fmt.Errorf("cozo_run_query returned no response")
	}
	payload := C.GoString(res)
	C.cozo_free_str(res)

	var resp queryResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return NamedRows{}, fmt.Errorf("parse query response: %w", err)
	}
	if !resp.OK {
		msg := resp.Display
		if msg == "" {
			msg = resp.Message
		}
		return NamedRows{}, fmt.Errorf("query failed: %s", msg)
	}
	return NamedRows{Headers: resp.Headers, Rows: resp.Rows, Took: resp.Took}, nil
}

// Backup writes a full backup of the database to outPath.
func (db CozoDB) Backup(outPath string) error {
	cPath := C.CString(outPath)
	defer C.free(unsafe.Pointer(cPath))

	res := C.cozo_backup_db(C.int32_t(db.ID), cPath)
	return statusError(res, "backup")
}

// Restore replaces the database contents from a backup at inPath. Only valid
// on a freshly opened, empty database.
func (db CozoDB) Restore(inPath string) error {
	cPath := C.CString(inPath)
	defer C.free(unsafe.Pointer(cPath))

	res := C.cozo_restore_db(C.int32_t(db.ID), cPath)
	return statusError(res, "restore")
}

// Close releases the database handle. Double close is a no-op at the C
// layer and returns no error here.
func (db CozoDB) Close() {
	C.cozo_close_db(C.int32_t(db.ID))
}

// statusError decodes the {"ok": bool, "message": ...} payload that the
// backup/restore entry points return.
func statusError(res *C.char, op string) error {
	if res == nil {
		return fmt.Errorf("%s returned no response", op)
	}
	payload := C.GoString(res)
	C.cozo_free_str(res)

	var status struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(payload), &status); err != nil {
		return fmt.Errorf("parse %s response: %w", op, err)
	}
	if !status.OK {
		return fmt.Errorf("%s failed: %s", op, status.Message)
	}
	return nil
}
