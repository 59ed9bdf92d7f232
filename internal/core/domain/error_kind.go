package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the category a failure is classified into.
type ErrorKind string

const (
	ErrorKindTask       ErrorKind = "TaskError"
	ErrorKindSystem     ErrorKind = "SystemError"
	ErrorKindValidation ErrorKind = "ValidationError"
	ErrorKindTimeout    ErrorKind = "TimeoutError"
	ErrorKindResource   ErrorKind = "ResourceError"
	ErrorKindUnknown    ErrorKind = "UnknownError"
)

// ErrorKinds lists every kind in declaration order.
var ErrorKinds = []ErrorKind{
	ErrorKindTask,
	ErrorKindSystem,
	ErrorKindValidation,
	ErrorKindTimeout,
	ErrorKindResource,
	ErrorKindUnknown,
}

// Retryable reports whether failures of this kind go through the retry controller.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindTimeout || k == ErrorKindResource
}

// Valid reports whether k is one of the declared kinds.
func (k ErrorKind) Valid() bool {
	for _, known := range ErrorKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseErrorKind accepts either the full name ("TimeoutError") or the short
// form ("timeout").
func ParseErrorKind(s string) (ErrorKind, error) {
	switch s {
	case "task":
		return ErrorKindTask, nil
	case "system":
		return ErrorKindSystem, nil
	case "validation":
		return ErrorKindValidation, nil
	case "timeout":
		return ErrorKindTimeout, nil
	case "resource":
		return ErrorKindResource, nil
	case "unknown":
		return ErrorKindUnknown, nil
	}
	if k := ErrorKind(s); k.Valid() {
		return k, nil
	}
	return "", fmt.Errorf("unknown error kind %q", s)
}

// Sentinel causes recognised by the classifier.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrTaskFailed        = errors.New("task failed")
)

// Error is a categorised engine error. Components return it at their
// boundaries so the kind survives any amount of wrapping.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError wraps err with a kind and the failing operation.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
