// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for the sentinel CLI.
//
// This package defines UserError, a type that carries structured error
// information including what went wrong, why it happened, and how to fix
// it, plus the exit-code taxonomy the command surface promises:
//
//   - ExitSuccess (0): successful execution; a run with warnings but no
//     errors still exits 0
//   - ExitUser (1): user error - unknown function, ambiguous name without
//     a file path, bad arguments, invalid configuration
//   - ExitTransient (2): transient infrastructure failure - the store
//     retry budget was exhausted but a later run may succeed
//   - ExitFatal (3): fatal infrastructure failure - schema corruption or
//     an unrecoverable store error
//
// FromCore translates the core's typed errors (pkg/model) into UserErrors
// carrying the right exit code; the core itself never terminates the
// process.
//
// # Usage Example
//
//	if err := run(); err != nil {
//	    errors.FatalError(errors.FromCore(err), jsonMode)
//	}
//
// # Formatted Output
//
// The Format() method provides colored terminal output:
//
//	Error: Function not found: vfs_rea
//	Cause: No FunctionNode with that name exists in the graph
//	Fix:   Check the spelling, or run 'cie ingest' on the subsystem first
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/yhsung/kernel-graphrag-sentinel-sub001/pkg/model"
)

// Exit codes for the command surface.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitUser indicates a user error: unknown function, bad arguments,
	// invalid configuration.
	ExitUser = 1

	// ExitTransient indicates a transient infrastructure failure that a
	// retry of the whole command may clear.
	ExitTransient = 2

	// ExitFatal indicates a fatal infrastructure failure: schema
	// corruption or an unrecoverable store error.
	ExitFatal = 3
)

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: what went wrong (user-facing error description)
//   - Cause: why it happened (diagnostic information)
//   - Fix: how to fix it (actionable suggestion)
//
// UserError also carries an exit code for consistent CLI exit behavior and
// optionally wraps an underlying error for error chain compatibility.
type UserError struct {
	// Message describes what went wrong in user-friendly language.
	Message string

	// Cause explains why the error occurred (diagnostic information).
	Cause string

	// Fix provides an actionable suggestion on how to resolve the error.
	Fix string

	// ExitCode is the exit code that should be used when exiting due to this error.
	ExitCode int

	// Err is the underlying error that caused this error (optional).
	// This enables error wrapping and compatibility with errors.Is/As.
	Err error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements error unwrapping for compatibility with errors.Is and
// errors.As.
func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates an error with exit code ExitUser.
//
// Use this for bad command-line arguments, unknown function names, and
// invalid configuration - anything the user can correct themselves.
func NewUserError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitUser, Err: err}
}

// NewTransientError creates an error with exit code ExitTransient.
//
// Use this when the store retry budget was exhausted on a transient
// failure; re-running the command may succeed.
func NewTransientError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitTransient, Err: err}
}

// NewFatalError creates an error with exit code ExitFatal.
//
// Use this for schema corruption and unrecoverable store failures; no
// further batches will be attempted.
func NewFatalError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitFatal, Err: err}
}

// FromCore maps the core's typed errors onto the exit-code table. Errors
// that are already UserErrors pass through unchanged; anything unrecognized
// is treated as fatal infrastructure failure.
func FromCore(err error) *UserError {
	if err == nil {
		return nil
	}

	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue
	}

	var notFound *model.FunctionNotFound
	if stderrors.As(err, &notFound) {
		return NewUserError(
			fmt.Sprintf("Function not found: %s", notFound.Name),
			"No FunctionNode with that name exists in the graph",
			"Check the spelling, or run 'cie ingest' on the subsystem first",
			err,
		)
	}

	var ambiguous *model.AmbiguousFunction
	if stderrors.As(err, &ambiguous) {
		return NewUserError(
			fmt.Sprintf("Ambiguous function name: %s", ambiguous.Name),
			fmt.Sprintf("%d definitions match: %s", len(ambiguous.Candidates), strings.Join(ambiguous.Candidates, ", ")),
			"Disambiguate with --file <path>",
			err,
		)
	}

	var schemaErr *model.SchemaError
	if stderrors.As(err, &schemaErr) {
		return NewFatalError(
			"Graph schema error",
			schemaErr.Error(),
			"The store may be corrupted; purge the affected subsystem and re-ingest",
			err,
		)
	}

	var fatal *model.FatalStoreError
	if stderrors.As(err, &fatal) {
		// A FatalStoreError wrapping an exhausted transient retry is
		// still transient from the operator's point of view: the
		// infrastructure hiccuped, the graph is consistent, re-run.
		var transient *model.TransientStoreError
		if stderrors.As(fatal.Err, &transient) {
			return NewTransientError(
				"Graph store unavailable",
				fmt.Sprintf("%s failed after %d attempts", transient.Op, transient.Attempt),
				"Check the store and re-run the command",
				err,
			)
		}
		return NewFatalError(
			"Unrecoverable graph store error",
			fatal.Error(),
			"Check the store logs; the graph may need to be purged and re-ingested",
			err,
		)
	}

	var transient *model.TransientStoreError
	if stderrors.As(err, &transient) {
		return NewTransientError(
			"Graph store unavailable",
			transient.Error(),
			"Check the store and re-run the command",
			err,
		)
	}

	return NewFatalError("Internal error", err.Error(), "Re-run with --verbose and report this", err)
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display.
//
// The output includes colored sections for Error (red/bold), Cause
// (yellow), and Fix (green). Color output respects the NO_COLOR environment
// variable and can be explicitly disabled with the noColor parameter.
// Empty Cause or Fix fields are omitted from the output.
func (e *UserError) Format(noColor bool) string {
	// Save and restore global color state to avoid side effects
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON represents error information in JSON format.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure. Empty
// Cause and Fix fields are omitted via the omitempty tags.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints the error and exits with the appropriate code.
//
// If the error is a UserError, it uses Format() for colored output or
// ToJSON() for JSON mode. For non-UserError types, it prints a simple
// error message and exits with ExitFatal.
//
// This function never returns - it always calls os.Exit().
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if ue, ok := err.(*UserError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			// Encode error is intentionally ignored since we're about to exit.
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode)
	}

	// Fallback for non-UserError
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitFatal)
}
