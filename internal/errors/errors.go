// Package errors provides the structured error kinds used across the
// lfs-utils services.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the failure categories the
// services report.
type Kind int

const (
	// KindUnknown is the zero value and never constructed explicitly
	KindUnknown Kind = iota
	// KindValidation indicates malformed or out-of-range caller arguments
	KindValidation
	// KindParse indicates tool output that does not match the expected grammar
	KindParse
	// KindExternalTool indicates a nonzero exit of an external invocation
	KindExternalTool
	// KindLookup indicates a well-formed query for an absent entry
	KindLookup
)

// String returns the kind name used in log fields.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindParse:
		return "parse"
	case KindExternalTool:
		return "external_tool"
	case KindLookup:
		return "lookup"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a kind and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation creates a validation error.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Parse creates a parse error.
func Parse(format string, args ...interface{}) *Error {
	return &Error{Kind: KindParse, Message: fmt.Sprintf(format, args...)}
}

// ExternalTool creates an external tool error wrapping the invocation failure.
func ExternalTool(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindExternalTool, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Lookup creates a lookup error.
func Lookup(format string, args ...interface{}) *Error {
	return &Error{Kind: KindLookup, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsParse reports whether err is a parse error.
func IsParse(err error) bool { return KindOf(err) == KindParse }

// IsExternalTool reports whether err is an external tool error.
func IsExternalTool(err error) bool { return KindOf(err) == KindExternalTool }

// IsLookup reports whether err is a lookup error.
func IsLookup(err error) bool { return KindOf(err) == KindLookup }
