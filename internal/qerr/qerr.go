// Package qerr defines the error taxonomy shared by the execution core and
// both transport channels. Every failure that crosses a transport boundary is
// classified by a Kind so the channel can map it to its own envelope (HTTP
// status, MCP tool error) without string matching.
package qerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport-boundary mapping.
type Kind string

const (
	// KindValidation marks malformed input, rejected before any resource use.
	KindValidation Kind = "validation"
	// KindAuthentication marks a missing or invalid bearer credential.
	KindAuthentication Kind = "authentication"
	// KindAuthorization marks a statement kind not permitted on the active database.
	KindAuthorization Kind = "authorization"
	// KindConnectivity marks an unreachable pool, back end, or credential path.
	KindConnectivity Kind = "connectivity"
	// KindIntegrity marks an authentication-tag mismatch on decrypt.
	KindIntegrity Kind = "integrity"
	// KindUnavailable marks a request rejected because the feature switch is off.
	KindUnavailable Kind = "unavailable"
	// KindProtocol marks a malformed or out-of-order session handshake.
	KindProtocol Kind = "protocol"
	// KindInternal is the fallback for unclassified errors.
	KindInternal Kind = "internal"
)

// Error carries a Kind alongside the usual message and wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind wrapping err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, unwrapping as needed.
// Unclassified errors report KindInternal; nil reports the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
