package storcli

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Mode selects how Run reports a classified failure.
type Mode int

const (
	// ModeError returns failures as a *Error alongside the Result.
	ModeError Mode = iota
	// ModeResult returns failures as data with a nil error.
	ModeResult
)

func (m Mode) String() string {
	switch m {
	case ModeError:
		return "error"
	case ModeResult:
		return "result"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts "error" (or "raise") and "result" (or "return").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error", "raise":
		return ModeError, nil
	case "result", "return":
		return ModeResult, nil
	}
	return ModeError, fmt.Errorf("unknown mode %q", s)
}

// Result is the classified outcome handed to callers. Every caller gets
// its own copy of Payload and the parsed Response, cached or not.
type Result struct {
	OK      bool
	Kind    ErrorKind
	Code    int // vendor or exit code; -1 when the binary produced none
	Detail  string
	Payload map[string]any

	Response Response
	Command  string

	cause error
}

// Err converts a failed Result into a *Error. It returns nil on success.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return &Error{Kind: r.Kind, Code: r.Code, Detail: r.Detail, Command: r.Command, Err: r.cause}
}

// Data returns the first controller's Response Data.
func (r Result) Data() map[string]any { return r.Response.Data() }

// Classify maps resp onto the ErrorKind taxonomy and applies mode. Return
// codes listed in allow are treated as success.
func Classify(resp Response, mode Mode, allow ...int) (Result, error) {
	return Enforce(ClassifyResponse(resp, allow...), mode)
}

// Enforce applies mode to a classified result.
func Enforce(res Result, mode Mode) (Result, error) {
	if res.OK || mode == ModeResult {
		return res, nil
	}
	return res, res.Err()
}

// ClassifyResponse maps resp onto the taxonomy without applying a mode.
func ClassifyResponse(resp Response, allow ...int) Result {
	res := Result{
		Kind:     KindSuccess,
		Code:     resp.ReturnCode,
		Detail:   resp.Detail,
		Payload:  resp.Payload,
		Response: resp,
	}
	if resp.OK() || allowed(resp.ReturnCode, allow) {
		res.OK = true
		return res
	}
	res.Kind = kindForResponse(resp)
	res.OK = res.Kind == KindSuccess
	if res.Detail == "" {
		res.Detail = resp.Status
	}
	return res
}

// ClassifyError turns an invoker or parser error into a failed Result.
func ClassifyError(err error) Result {
	res := Result{Kind: KindOf(err), Code: -1, Detail: err.Error()}
	var ce *Error
	if errors.As(err, &ce) {
		res.Code = ce.Code
		if ce.Detail != "" {
			res.Detail = ce.Detail
		}
	}
	var pe *ProcessError
	if errors.As(err, &pe) && pe.Err != nil {
		res.Detail = pe.Err.Error()
	}
	return res
}

func allowed(code int, allow []int) bool {
	for _, a := range allow {
		if a == code {
			return true
		}
	}
	return false
}

func kindForResponse(resp Response) ErrorKind {
	if resp.VendorCode && resp.ReturnCode != CodeInvalidStatus {
		if c, ok := LookupCode(resp.ReturnCode); ok {
			return c.Kind
		}
	}
	if code, ok := codeByText(strings.TrimSpace(resp.Detail)); ok && code != CodeInvalidStatus {
		return vendorCodes[code].Kind
	}
	if !resp.VendorCode {
		switch resp.ReturnCode {
		case 126:
			return KindPermissionDenied
		case 127:
			return KindBinaryNotFound
		}
	}
	for _, text := range []string{resp.Detail, resp.Stderr} {
		if k, ok := matchDetail(text); ok {
			return k
		}
	}
	if resp.VendorCode {
		return KindUnknownControllerError
	}
	return KindUnclassified
}

type detailRule struct {
	kind ErrorKind
	re   *regexp.Regexp
}

// detailRules covers messages the binary prints without a usable ErrCd.
// Order matters: the first match wins.
var detailRules = []detailRule{
	{KindDeviceNotFound, regexp.MustCompile(`(?i)not found|does ?n[o']t exist|no such (controller|device|drive|enclosure)|invalid (controller|enclosure|drive|slot|vd|virtual drive|device)|not present|no controller`)},
	{KindPermissionDenied, regexp.MustCompile(`(?i)permission denied|not permitted|access denied|root privilege|requires? root|must be root|authenticat`)},
	{KindTimeout, regexp.MustCompile(`(?i)timed? ?out`)},
	{KindBusy, regexp.MustCompile(`(?i)in progress|busy|try (again )?later|already running|resource conflict`)},
	{KindUnsupported, regexp.MustCompile(`(?i)not supported|unsupported|not possible|not allowed|not enabled|is disabled`)},
	{KindInvalidArguments, regexp.MustCompile(`(?i)invalid|syntax|unrecognized|unknown (command|option|parameter|argument)|incorrect|missing (argument|parameter|option)|bad (argument|parameter)|out of range|too many|too small`)},
}

func matchDetail(text string) (ErrorKind, bool) {
	if text == "" {
		return "", false
	}
	for _, r := range detailRules {
		if r.re.MatchString(text) {
			return r.kind, true
		}
	}
	return "", false
}
