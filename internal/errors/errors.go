package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig  = "CONFIG"
	ErrAuth    = "AUTH"    // stale or invalid token, user must re-authenticate
	ErrVault   = "VAULT"   // missing vault or decryption failure
	ErrStaging = "STAGING" // ephemeral key material could not be written
	ErrConn    = "CONN"    // network/timeout talking to the API
	ErrSync    = "SYNC"    // transfer or verification failure
	ErrPlan    = "PLAN"    // plan rejected before execution
	ErrSSH     = "SSH"
	ErrExec    = "EXEC"
	ErrLock    = "LOCK" // another invocation holds the repository lock
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrExec code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrExec,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// NewAuthExpired creates the error returned when the server rejects the
// current request token. The caller must log in again; the client never
// retries on its own since a blind retry with a rotated token can race
// another process into double-rotation.
func NewAuthExpired(detail string) *Error {
	return &Error{
		Code:       ErrAuth,
		Message:    "Session token is no longer valid",
		Cause:      errors.New(detail),
		Suggestion: "Another process may have rotated the token. Log in again: rediacc login",
	}
}

// Error implements the error interface with formatted output.
func (e *Error) Error() string {
	var b strings.Builder

	// First line: failure symbol + main message
	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	// Include cause if present (why it failed)
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	// Include suggestion if present (how to fix)
	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var cliErr *Error
	if errors.As(err, &cliErr) {
		return cliErr.Code == code
	}
	return false
}
