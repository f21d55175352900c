// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes provider errors for handling.
type ErrorKind int

const (
	// KindTransport covers network and service-level failures.
	KindTransport ErrorKind = iota

	// KindRateLimited means the provider rejected the request with a rate
	// limit response.
	KindRateLimited

	// KindAuthentication means credentials are missing or rejected.
	KindAuthentication

	// KindInvalidContent means a response failed to parse or decode.
	KindInvalidContent

	// KindCancelled is not a true failure: the caller cancelled the stream.
	// Suppressed from user-visible alerts.
	KindCancelled
)

// String returns the kind name for logging.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindAuthentication:
		return "authentication"
	case KindInvalidContent:
		return "invalid_content"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// UserMessage returns a human-readable description for user-facing alerts.
func (k ErrorKind) UserMessage() string {
	switch k {
	case KindRateLimited:
		return "The service is rate limiting requests. Try again in a moment."
	case KindAuthentication:
		return "Authentication failed. Check your API key."
	case KindInvalidContent:
		return "The service returned a response that could not be read."
	case KindCancelled:
		return "Request cancelled."
	default:
		return "Could not reach the service. Check your connection."
	}
}

// Error represents a categorized provider failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same kind, so sentinel comparisons work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for easy checking.
var (
	ErrRateLimited            = &Error{Kind: KindRateLimited, Message: "rate limited"}
	ErrAuthenticationRequired = &Error{Kind: KindAuthentication, Message: "authentication required"}
	ErrCancelled              = &Error{Kind: KindCancelled, Message: "stream cancelled"}
)

// Classify extracts the error kind from any error, mapping context
// cancellation to KindCancelled and unknown errors to KindTransport.
func Classify(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindTransport
}
