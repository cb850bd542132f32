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
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package errs implements the Shadow Atlas error-kind taxonomy: a small
// set of named failure categories that callers branch on (retryable vs.
// not, fatal-at-startup vs. surfaced-to-caller) instead of matching on
// error strings or concrete types.
package errs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Kind is one of the taxonomy's named failure categories.
type Kind string

const (
	// NetworkError is transient and retryable: timeouts, DNS, connection
	// reset, HTTP 429/5xx.
	NetworkError Kind = "NetworkError"

	// IntegrityError is non-retryable: a content hash mismatch or a
	// malformed archive.
	IntegrityError Kind = "IntegrityError"

	// NotFound is non-retryable: HTTP 404 or an empty result set.
	NotFound Kind = "NotFound"

	// SchemaError is non-retryable: missing GeoJSON features, an
	// unexpected geometry type, or a malformed GEOID.
	SchemaError Kind = "SchemaError"

	// ValidationError is non-retryable from the validator's point of
	// view but may resolve itself if the upstream source is fixed:
	// count mismatch, topology failure, coverage gap.
	ValidationError Kind = "ValidationError"

	// ReferenceDataInvalid is fatal at startup: the reference catalog
	// failed one of its cross-sum invariants.
	ReferenceDataInvalid Kind = "ReferenceDataInvalid"

	// ConfigError is fatal at startup: e.g. ALLOW_TEST_PARAMS set in a
	// production build.
	ConfigError Kind = "ConfigError"

	// StorageError is a database-adapter write failure; non-retryable
	// for the current operation, surfaced to the caller.
	StorageError Kind = "StorageError"

	// CircuitOpen is a soft failure returned by the batch orchestrator
	// when its circuit breaker has tripped.
	CircuitOpen Kind = "CircuitOpen"
)

// Error is a Kind-tagged error that wraps an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or anything it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err isn't a tagged *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether errors of this kind should be retried by a
// caller (DLQ enqueue, backoff loop). Only NetworkError is retryable;
// every other kind is a terminal classification for the current attempt.
func Retryable(k Kind) bool {
	return k == NetworkError
}

// exitFunc is overridden in tests so Fatal doesn't tear down the test
// binary.
var exitFunc = os.Exit

// Fatal logs err at error level and terminates the process. Reserved for
// the two startup-fatal kinds, ReferenceDataInvalid and ConfigError;
// never called mid-run.
func Fatal(kind Kind, message string, cause error) {
	e := Wrap(kind, message, cause)
	slog.Error("fatal startup error", "kind", kind, "error", e.Error())
	exitFunc(1)
}
