// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package verify

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an engine error.
//
// Trust and binding outcomes are never errors; they are reported as
// verdicts. ErrorType only covers conditions that stop an operation.
type ErrorType int

const (
	// ErrTypeUnknown indicates an unclassified error.
	ErrTypeUnknown ErrorType = iota

	// ErrTypeNotFound indicates that an asset carries no manifest store.
	// Callers treat it as the unsigned state rather than a failure.
	ErrTypeNotFound

	// ErrTypeMalformed indicates a provenance marker was found but its
	// payload is truncated or has an invalid length prefix.
	ErrTypeMalformed

	// ErrTypeDecode indicates a structural violation while decoding a
	// manifest store or claim.
	ErrTypeDecode

	// ErrTypeCyclicReference indicates an ingredient refers back to a
	// claim already on the current resolution path.
	ErrTypeCyclicReference

	// ErrTypeCancelled indicates the session was cancelled.
	ErrTypeCancelled

	// ErrTypeDisposed indicates a query against a closed session.
	ErrTypeDisposed

	// ErrTypeConfiguration indicates a configuration error.
	ErrTypeConfiguration

	// ErrTypeIO indicates an I/O error (file read/write).
	ErrTypeIO
)

// String returns a human-readable name for the error type.
func (e ErrorType) String() string {
	switch e {
	case ErrTypeNotFound:
		return "NotFound"
	case ErrTypeMalformed:
		return "Malformed"
	case ErrTypeDecode:
		return "DecodeError"
	case ErrTypeCyclicReference:
		return "CyclicReference"
	case ErrTypeCancelled:
		return "Cancelled"
	case ErrTypeDisposed:
		return "Disposed"
	case ErrTypeConfiguration:
		return "ConfigurationError"
	case ErrTypeIO:
		return "IOError"
	default:
		return "UnknownError"
	}
}

// Sentinel errors. Any *VerificationError of the same Type matches them
// with errors.Is, regardless of message, path or cause.
var (
	ErrNotFound        = &VerificationError{Type: ErrTypeNotFound, Message: "no manifest store present"}
	ErrMalformed       = &VerificationError{Type: ErrTypeMalformed, Message: "malformed provenance container"}
	ErrDecode          = &VerificationError{Type: ErrTypeDecode, Message: "manifest decode failed"}
	ErrCyclicReference = &VerificationError{Type: ErrTypeCyclicReference, Message: "cyclic ingredient reference"}
	ErrCancelled       = &VerificationError{Type: ErrTypeCancelled, Message: "verification cancelled"}
	ErrDisposed        = &VerificationError{Type: ErrTypeDisposed, Message: "session disposed"}
)

// VerificationError is a structured error type for engine failures.
//
// It provides detailed information about what went wrong, including:
// - The type of error (malformed container, decode failure, cycle, etc.)
// - The claim label, box path or file involved (if applicable)
// - A human-readable message
// - The underlying cause (wrapped error)
//
// Example usage:
//
//	if err != nil {
//	    var verifyErr *VerificationError
//	    if errors.As(err, &verifyErr) {
//	        log.Printf("verification failed: type=%s, path=%s, msg=%s",
//	                   verifyErr.Type, verifyErr.Path, verifyErr.Message)
//	    }
//	}
type VerificationError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType

	// Path is the claim label, JUMBF path or file related to the error (optional).
	Path string

	// Message is a human-readable description of what went wrong.
	Message string

	// Cause is the underlying error that caused this verification error.
	Cause error
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	if e.Path != "" && e.Cause != nil {
		return fmt.Sprintf("%s: %s (path: %s): %v", e.Type, e.Message, e.Path, e.Cause)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path: %s)", e.Type, e.Message, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for error chain unwrapping.
func (e *VerificationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a VerificationError of the same type.
func (e *VerificationError) Is(target error) bool {
	t, ok := target.(*VerificationError)
	return ok && t.Type == e.Type
}

// NewVerificationError creates a new verification error.
func NewVerificationError(errType ErrorType, message string, cause error) *VerificationError {
	return &VerificationError{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// NewVerificationErrorWithPath creates a new verification error with a path.
func NewVerificationErrorWithPath(errType ErrorType, path, message string, cause error) *VerificationError {
	return &VerificationError{
		Type:    errType,
		Path:    path,
		Message: message,
		Cause:   cause,
	}
}

// Malformedf is shorthand for a Malformed error with a formatted message.
func Malformedf(format string, args ...interface{}) *VerificationError {
	return NewVerificationError(ErrTypeMalformed, fmt.Sprintf(format, args...), nil)
}

// Decodef is shorthand for a DecodeError about the claim or box at path.
func Decodef(path string, cause error, format string, args ...interface{}) *VerificationError {
	return NewVerificationErrorWithPath(ErrTypeDecode, path, fmt.Sprintf(format, args...), cause)
}

// IsType checks if an error is a VerificationError of a specific type.
//
// Example:
//
//	if IsType(err, ErrTypeCyclicReference) {
//	    // Report the cycle
//	}
func IsType(err error, errType ErrorType) bool {
	var verifyErr *VerificationError
	if errors.As(err, &verifyErr) {
		return verifyErr.Type == errType
	}
	return false
}
