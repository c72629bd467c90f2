package storcli

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the closed taxonomy of call outcomes. Values are stable
// strings; callers switch on them.
type ErrorKind string

const (
	KindSuccess                ErrorKind = "Success"
	KindBinaryNotFound         ErrorKind = "BinaryNotFound"
	KindPermissionDenied       ErrorKind = "PermissionDenied"
	KindInvalidArguments       ErrorKind = "InvalidArguments"
	KindDeviceNotFound         ErrorKind = "DeviceNotFound"
	KindTimeout                ErrorKind = "Timeout"
	KindNonJSONResponse        ErrorKind = "NonJSONResponse"
	KindUnknownControllerError ErrorKind = "UnknownControllerError"
	KindBusy                   ErrorKind = "Busy"
	KindUnsupported            ErrorKind = "Unsupported"
	KindUnclassified           ErrorKind = "Unclassified"
)

var allKinds = []ErrorKind{
	KindSuccess,
	KindBinaryNotFound,
	KindPermissionDenied,
	KindInvalidArguments,
	KindDeviceNotFound,
	KindTimeout,
	KindNonJSONResponse,
	KindUnknownControllerError,
	KindBusy,
	KindUnsupported,
	KindUnclassified,
}

// Kinds returns every ErrorKind in declaration order.
func Kinds() []ErrorKind {
	out := make([]ErrorKind, len(allKinds))
	copy(out, allKinds)
	return out
}

func (k ErrorKind) String() string { return string(k) }

// Valid reports whether k is one of the declared kinds.
func (k ErrorKind) Valid() bool {
	for _, v := range allKinds {
		if v == k {
			return true
		}
	}
	return false
}

// ParseKind maps a kind name (case-insensitive) back to its ErrorKind.
func ParseKind(s string) (ErrorKind, bool) {
	for _, v := range allKinds {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, true
		}
	}
	return KindUnclassified, false
}

// Error is a classified failure. It is what Run returns in ModeError.
type Error struct {
	Kind    ErrorKind
	Code    int // vendor ErrCd or process exit code; -1 when none
	Detail  string
	Command string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("storcli")
	if e.Command != "" {
		b.WriteString(" ")
		b.WriteString(e.Command)
	}
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.Code > 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrBinaryNotFound         = &Error{Kind: KindBinaryNotFound}
	ErrPermissionDenied       = &Error{Kind: KindPermissionDenied}
	ErrInvalidArguments       = &Error{Kind: KindInvalidArguments}
	ErrDeviceNotFound         = &Error{Kind: KindDeviceNotFound}
	ErrTimeout                = &Error{Kind: KindTimeout}
	ErrNonJSONResponse        = &Error{Kind: KindNonJSONResponse}
	ErrUnknownControllerError = &Error{Kind: KindUnknownControllerError}
	ErrBusy                   = &Error{Kind: KindBusy}
	ErrUnsupported            = &Error{Kind: KindUnsupported}
	ErrUnclassified           = &Error{Kind: KindUnclassified}
)

// ErrOutputTruncated marks a RawResult whose stdout or stderr hit the
// invoker's byte limit.
var ErrOutputTruncated = errors.New("storcli: output exceeded limit")

// ProcessError reports that the binary could not be started or did not
// finish. It is never cached. Kind Timeout also covers a cancelled
// context; Err then wraps context.Canceled.
type ProcessError struct {
	Kind   ErrorKind // BinaryNotFound, PermissionDenied or Timeout
	Binary string
	Err    error
}

func (e *ProcessError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storcli: %s: %s", e.Binary, e.Kind)
	}
	return fmt.Sprintf("storcli: %s: %s: %v", e.Binary, e.Kind, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

func (e *ProcessError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf extracts the ErrorKind carried by err. A nil error is Success and
// an error without a kind is Unclassified.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindSuccess
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnclassified
}
