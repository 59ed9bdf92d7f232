package classify

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/vietddude/supervisor/internal/core/domain"
)

// Classifier maps an error to a kind. Classify is the default.
type Classifier func(err error) domain.ErrorKind

// Classify determines the kind for a given error. It is pure and total:
// every error, including nil, maps to exactly one kind.
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return domain.ErrorKindUnknown
	}

	// Engine errors carry their own category
	if kind, ok := domain.KindOf(err); ok && kind.Valid() {
		return kind
	}

	if isTimeout(err) {
		return domain.ErrorKindTimeout
	}
	if isResource(err) {
		return domain.ErrorKindResource
	}
	if isValidation(err) {
		return domain.ErrorKindValidation
	}
	if errors.Is(err, domain.ErrTaskFailed) {
		return domain.ErrorKindTask
	}
	if isSystem(err) {
		return domain.ErrorKindSystem
	}

	return classifyMessage(err.Error())
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func isResource(err error) bool {
	if errors.Is(err, domain.ErrResourceExhausted) {
		return true
	}
	for _, errno := range []syscall.Errno{
		syscall.ENOMEM,
		syscall.ENOSPC,
		syscall.EMFILE,
		syscall.ENFILE,
		syscall.EAGAIN,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func isValidation(err error) bool {
	if errors.Is(err, domain.ErrInvalidInput) {
		return true
	}
	var (
		numErr       *strconv.NumError
		syntaxErr    *json.SyntaxError
		typeErr      *json.UnmarshalTypeError
		unmarshalErr *json.InvalidUnmarshalError
	)
	return errors.As(err, &numErr) ||
		errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr) ||
		errors.As(err, &unmarshalErr)
}

func isSystem(err error) bool {
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	var (
		pathErr    *os.PathError
		linkErr    *os.LinkError
		syscallErr *os.SyscallError
		opErr      *net.OpError
	)
	return errors.As(err, &pathErr) ||
		errors.As(err, &linkErr) ||
		errors.As(err, &syscallErr) ||
		errors.As(err, &opErr)
}

// classifyMessage is the last resort for errors that only carry text.
func classifyMessage(s string) domain.ErrorKind {
	sLower := strings.ToLower(s)

	if strings.Contains(sLower, "timeout") || strings.Contains(sLower, "timed out") ||
		strings.Contains(sLower, "deadline exceeded") {
		return domain.ErrorKindTimeout
	}

	if strings.Contains(sLower, "out of memory") ||
		strings.Contains(sLower, "too many open files") ||
		strings.Contains(sLower, "quota") ||
		strings.Contains(sLower, "rate limit") ||
		strings.Contains(sLower, "resource exhausted") {
		return domain.ErrorKindResource
	}

	if strings.Contains(sLower, "invalid") || strings.Contains(sLower, "validation") ||
		strings.Contains(sLower, "malformed") {
		return domain.ErrorKindValidation
	}

	return domain.ErrorKindUnknown
}
