package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure so callers can apply differentiated policy:
// surface validation immediately, retry transient connection faults, and
// log-and-continue on partial discovery.
type ErrorCode string

const (
	CodeValidation       ErrorCode = "VALIDATION"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeConnection       ErrorCode = "CONNECTION"
	CodeExecution        ErrorCode = "EXECUTION"
	CodePartialDiscovery ErrorCode = "PARTIAL_DISCOVERY"
	CodeStorage          ErrorCode = "STORAGE"
)

// Sentinel errors for conditions callers match with errors.Is.
var (
	ErrNotConnected   = errors.New("backend is not connected")
	ErrUnknownBackend = errors.New("backend is not registered")
	ErrToolNotFound   = errors.New("tool not found")
	ErrEmptyQuery     = errors.New("query must not be empty")
	ErrStoreClosed    = errors.New("registration store is closed")
)

// Error is the structured failure type carried across component boundaries.
type Error struct {
	Code      ErrorCode
	Op        string
	Message   string
	Cause     error
	Retryable bool
	Meta      map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// E builds a structured error. An empty message is filled from the cause.
func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

// Wrap attaches a code and operation to err unless it already carries one.
func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:      existing.Code,
			Op:        op,
			Message:   existing.Message,
			Cause:     existing.Cause,
			Retryable: existing.Retryable,
			Meta:      existing.Meta,
		}
	}
	return E(code, op, "", err)
}

// CodeFrom extracts the error code from err, mapping known sentinels when no
// structured error is present.
func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrEmptyQuery):
		return CodeValidation, true
	case errors.Is(err, ErrToolNotFound), errors.Is(err, ErrUnknownBackend):
		return CodeNotFound, true
	case errors.Is(err, ErrNotConnected):
		return CodeConnection, true
	case errors.Is(err, ErrStoreClosed):
		return CodeStorage, true
	default:
		return "", false
	}
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	have, ok := CodeFrom(err)
	return ok && have == code
}
