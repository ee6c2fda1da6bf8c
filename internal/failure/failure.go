// Package failure defines the error taxonomy shared by the optimization
// pipeline. Every terminal condition of a run is reported as a *Error whose
// Kind identifies the class of failure; callers test for a class with
// errors.Is against the exported sentinels.
package failure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindFileNotFound
	KindInvalidFile
	KindBinaryNotFound
	KindBinaryExecutionFailed
	KindExecutionFailed
	KindInvalidConfiguration
	KindPermissionDenied
	KindDiskFull
	KindCancelled
)

var kindNames = map[Kind]string{
	KindUnknown:               "unknown",
	KindFileNotFound:          "file_not_found",
	KindInvalidFile:           "invalid_file",
	KindBinaryNotFound:        "binary_not_found",
	KindBinaryExecutionFailed: "binary_execution_failed",
	KindExecutionFailed:       "execution_failed",
	KindInvalidConfiguration:  "invalid_configuration",
	KindPermissionDenied:      "permission_denied",
	KindDiskFull:              "disk_full",
	KindCancelled:             "cancelled",
}

// String returns a stable snake_case label, also used as a metrics label.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is a classified pipeline failure. Path is set for path-related kinds,
// Detail carries the reason or the tool report, Err the underlying cause.
type Error struct {
	Kind   Kind
	Path   string
	Detail string
	Err    error
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrFileNotFound          = &Error{Kind: KindFileNotFound}
	ErrInvalidFile           = &Error{Kind: KindInvalidFile}
	ErrBinaryNotFound        = &Error{Kind: KindBinaryNotFound}
	ErrBinaryExecutionFailed = &Error{Kind: KindBinaryExecutionFailed}
	ErrExecutionFailed       = &Error{Kind: KindExecutionFailed}
	ErrInvalidConfiguration  = &Error{Kind: KindInvalidConfiguration}
	ErrPermissionDenied      = &Error{Kind: KindPermissionDenied}
	ErrDiskFull              = &Error{Kind: KindDiskFull}
	ErrCancelled             = &Error{Kind: KindCancelled}
	ErrUnknown               = &Error{Kind: KindUnknown}
)

func (e *Error) Error() string {
	switch e.Kind {
	case KindFileNotFound:
		return "file not found: " + e.Path
	case KindInvalidFile:
		return "invalid file: " + e.Detail
	case KindBinaryNotFound:
		return "gltfpack binary not found"
	case KindBinaryExecutionFailed:
		return "gltfpack binary unusable: " + e.Detail
	case KindExecutionFailed:
		return "optimization failed: " + e.Detail
	case KindInvalidConfiguration:
		return "invalid configuration: " + e.Detail
	case KindPermissionDenied:
		return "permission denied: " + e.Path
	case KindDiskFull:
		return "not enough disk space to complete the operation"
	case KindCancelled:
		return "operation cancelled"
	default:
		if e.Detail == "" && e.Err != nil {
			return "unknown error: " + e.Err.Error()
		}
		return "unknown error: " + e.Detail
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func FileNotFound(path string) error { return &Error{Kind: KindFileNotFound, Path: path} }

func InvalidFile(reason string) error { return &Error{Kind: KindInvalidFile, Detail: reason} }

func BinaryNotFound() error { return &Error{Kind: KindBinaryNotFound} }

func BinaryExecutionFailed(report string) error {
	return &Error{Kind: KindBinaryExecutionFailed, Detail: report}
}

func ExecutionFailed(report string) error {
	return &Error{Kind: KindExecutionFailed, Detail: report}
}

func InvalidConfiguration(reason string) error {
	return &Error{Kind: KindInvalidConfiguration, Detail: reason}
}

func PermissionDenied(path string, cause error) error {
	return &Error{Kind: KindPermissionDenied, Path: path, Err: cause}
}

func DiskFull(cause error) error { return &Error{Kind: KindDiskFull, Err: cause} }

func Cancelled(cause error) error { return &Error{Kind: KindCancelled, Err: cause} }

func Unknown(message string, cause error) error {
	return &Error{Kind: KindUnknown, Detail: message, Err: cause}
}

// FromOS classifies an error surfaced by the operating system or the runtime.
// Errors that are already classified are returned unchanged. The condition is
// passed through, never guessed from tool output.
func FromOS(err error, path string) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Cancelled(err)
	case errors.Is(err, fs.ErrPermission):
		return PermissionDenied(path, err)
	case errors.Is(err, syscall.ENOSPC):
		return DiskFull(err)
	case errors.Is(err, fs.ErrNotExist):
		return &Error{Kind: KindFileNotFound, Path: path, Err: err}
	default:
		return Unknown(fmt.Sprintf("%v", err), err)
	}
}
