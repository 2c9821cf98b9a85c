package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeFailedPrecond    ErrorCode = "FAILED_PRECONDITION"
	CodeInternal         ErrorCode = "INTERNAL"
	CodeUnavailable      ErrorCode = "UNAVAILABLE"
	CodeNotImplemented   ErrorCode = "NOT_IMPLEMENTED"
	CodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
)

var (
	ErrInvalidCapacity  = errors.New("capacity must be positive")
	ErrUnknownLogger    = errors.New("logger does not exist")
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrDumpFailed       = errors.New("dump failed")
	ErrInvalidConfig    = errors.New("invalid config")
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
	Meta    map[string]string
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
			Code:    existing.Code,
			Op:      op,
			Message: existing.Message,
			Cause:   existing.Cause,
			Meta:    existing.Meta,
		}
	}
	return E(code, op, "", err)
}

func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrInvalidCapacity), errors.Is(err, ErrInvalidLogLevel), errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidConfig):
		return CodeInvalidArgument, true
	case errors.Is(err, ErrUnknownLogger):
		return CodeNotFound, true
	case errors.Is(err, ErrMethodNotAllowed):
		return CodeMethodNotAllowed, true
	case errors.Is(err, ErrDumpFailed):
		return CodeInternal, true
	default:
		return "", false
	}
}
