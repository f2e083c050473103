// Package errs defines the error kinds shared by the arena packages.
//
// Every error produced by the protocol carries a Code so callers can tell a
// transient transport problem (retry available) from an integrity violation
// (abort the match) without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Code identifies an error kind.
type Code string

const (
	CodeInvalidMove         Code = "INVALID_MOVE"
	CodeWrongPhase          Code = "WRONG_PHASE"
	CodeTransportSendFailed Code = "TRANSPORT_SEND_FAILED"
	CodeVerificationFailed  Code = "VERIFICATION_FAILED"
	CodeMalformedSignal     Code = "MALFORMED_SIGNAL"
	CodeInvalidTeam         Code = "INVALID_TEAM"
	CodeStateMismatch       Code = "STATE_MISMATCH"
	CodeNotReady            Code = "NOT_READY"
	CodeUnknown             Code = "UNKNOWN"
)

// Error is a coded error. Two errors are equal under errors.Is when their
// codes match.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

var (
	ErrInvalidMove         = &Error{Code: CodeInvalidMove, Message: "invalid move"}
	ErrWrongPhase          = &Error{Code: CodeWrongPhase, Message: "operation not allowed in current phase"}
	ErrTransportSendFailed = &Error{Code: CodeTransportSendFailed, Message: "transport send failed"}
	ErrVerificationFailed  = &Error{Code: CodeVerificationFailed, Message: "reveal does not match commitment"}
	ErrMalformedSignal     = &Error{Code: CodeMalformedSignal, Message: "malformed signal"}
	ErrInvalidTeam         = &Error{Code: CodeInvalidTeam, Message: "invalid team"}
	ErrStateMismatch       = &Error{Code: CodeStateMismatch, Message: "initial state mismatch"}
	ErrNotReady            = &Error{Code: CodeNotReady, Message: "transport not ready"}
)

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf is New with a format string.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to cause. A nil cause yields nil.
func Wrap(code Code, message string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf returns the code of the outermost coded error in err's chain, or
// CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Retryable reports whether the failure is transient and the same operation
// may be attempted again.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeTransportSendFailed, CodeStateMismatch, CodeNotReady:
		return true
	}
	return false
}

// IsIntegrity reports whether err signals a protocol violation by the
// counterparty or a corrupted transport.
func IsIntegrity(err error) bool {
	switch CodeOf(err) {
	case CodeVerificationFailed, CodeInvalidMove, CodeInvalidTeam:
		return true
	}
	return false
}
