package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"syscall"
	"testing"

	"github.com/vietddude/supervisor/internal/core/domain"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o wait" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	_, numErr := strconv.Atoi("abc")
	var syntaxErr error = json.Unmarshal([]byte("{"), &struct{}{})
	_, pathErr := os.Open("/definitely/not/here")

	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"nil", nil, domain.ErrorKindUnknown},
		{"engine error", domain.NewError(domain.ErrorKindSystem, "snapshot.create", errors.New("disk")), domain.ErrorKindSystem},
		{"wrapped engine error", fmt.Errorf("outer: %w", domain.NewError(domain.ErrorKindValidation, "op", errors.New("x"))), domain.ErrorKindValidation},
		{"deadline", context.DeadlineExceeded, domain.ErrorKindTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), domain.ErrorKindTimeout},
		{"os deadline", os.ErrDeadlineExceeded, domain.ErrorKindTimeout},
		{"net timeout", &net.OpError{Op: "dial", Err: timeoutErr{}}, domain.ErrorKindTimeout},
		{"enomem", syscall.ENOMEM, domain.ErrorKindResource},
		{"emfile in path error", &os.PathError{Op: "open", Path: "/x", Err: syscall.EMFILE}, domain.ErrorKindResource},
		{"resource sentinel", fmt.Errorf("pool: %w", domain.ErrResourceExhausted), domain.ErrorKindResource},
		{"invalid input", domain.ErrInvalidInput, domain.ErrorKindValidation},
		{"strconv", numErr, domain.ErrorKindValidation},
		{"json syntax", syntaxErr, domain.ErrorKindValidation},
		{"task failed", fmt.Errorf("step 3: %w", domain.ErrTaskFailed), domain.ErrorKindTask},
		{"path error", pathErr, domain.ErrorKindSystem},
		{"permission", fs.ErrPermission, domain.ErrorKindSystem},
		{"net op", &net.OpError{Op: "read", Err: errors.New("connection reset")}, domain.ErrorKindSystem},
		{"message timeout", errors.New("upstream Timed Out"), domain.ErrorKindTimeout},
		{"message quota", errors.New("Quota exceeded for project"), domain.ErrorKindResource},
		{"message malformed", errors.New("malformed payload"), domain.ErrorKindValidation},
		{"unknown", errors.New("something odd"), domain.ErrorKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify_Total(t *testing.T) {
	inputs := []error{nil, errors.New(""), errors.New("x"), domain.NewError("bogus", "op", nil)}
	for _, err := range inputs {
		if got := Classify(err); !got.Valid() {
			t.Errorf("Classify(%v) returned undeclared kind %q", err, got)
		}
	}
}
