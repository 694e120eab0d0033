// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kberr defines the typed error taxonomy shared by the
// knowledge-base stores, the review resolver, and the HTTP surface.
package kberr

import (
	"errors"
	"fmt"
)

// Code identifies an error class. Codes are stable strings: they appear
// in API responses and log lines, so renaming one is a breaking change.
type Code string

const (
	// CodeStoreUnavailable means a corpus store I/O call failed. Transient:
	// the caller should surface a manual-escalation path, not a hard error.
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"

	// CodeUnauthorized means a review action was attempted by an identity
	// outside the configured reviewer roster. No side effect occurred.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeAlreadyResolved means a second resolution was attempted on a
	// ticket that is already Approved or Rejected. The first result stands.
	CodeAlreadyResolved Code = "ALREADY_RESOLVED"

	// CodeTicketNotFound means the review ticket id does not exist.
	CodeTicketNotFound Code = "TICKET_NOT_FOUND"

	// CodeInvalidState means a ticket transition was attempted that the
	// state machine does not permit (e.g. drafting a rejected ticket).
	CodeInvalidState Code = "INVALID_STATE"

	// CodeEmptyField means a record would violate the non-empty
	// question/answer invariant.
	CodeEmptyField Code = "EMPTY_FIELD"
)

// Error is the typed error carried across package boundaries.
//
// # Thread Safety
//
// Immutable after construction.
type Error struct {
	// Code classifies the failure for programmatic handling.
	Code Code

	// Message is the human-readable detail.
	Message string

	// Retryable indicates the same call may succeed if repeated.
	Retryable bool

	// Cause is the wrapped underlying error, if any.
	Cause error
}

// New constructs an Error with no underlying cause.
func New(code Code, message string, retryable bool) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable}
}

// Wrap constructs an Error wrapping an underlying cause.
func Wrap(code Code, message string, retryable bool, cause error) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HasCode reports whether err is (or wraps) an Error with the given code.
func HasCode(err error, code Code) bool {
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Code == code
	}
	return false
}
