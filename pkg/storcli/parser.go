package storcli

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Command status strings used by the vendor envelope.
const (
	StatusSuccess = "Success"
	StatusFailure = "Failure"
)

// ControllerResult is one element of the envelope's Controllers array.
type ControllerResult struct {
	Index       int // position in the array
	Controller  int // "Controller" field, -1 when absent
	Status      string
	Description string
	ReturnCode  int // ErrCd, or the code matching Description; -1 when unknown
	Details     []map[string]any
	Data        map[string]any // Response Data
}

// OK reports whether the controller reported success.
func (c ControllerResult) OK() bool { return strings.EqualFold(c.Status, StatusSuccess) }

// Response is the parsed form of one invocation. It carries failures as
// data; only the classifier turns them into errors.
type Response struct {
	ReturnCode  int  // vendor code when VendorCode, else the process exit code
	VendorCode  bool // ReturnCode came from the controller
	Status      string
	Detail      string
	Payload     map[string]any // full JSON document, or key=value pairs
	Controllers []ControllerResult
	Partial     bool // some controllers succeeded, some failed
	ExitCode    int
	Stderr      string
	Output      string // raw stdout for text commands and fallbacks
	Text        bool   // produced by a non-JSON path
	Truncated   bool
}

// OK reports whether the response carries a success status.
func (r Response) OK() bool { return strings.EqualFold(r.Status, StatusSuccess) }

// Data returns the first controller's Response Data, or nil.
func (r Response) Data() map[string]any {
	if len(r.Controllers) == 0 {
		return nil
	}
	return r.Controllers[0].Data
}

// CommandStatus returns the first controller's Command Status block as
// printed by the binary.
func (r Response) CommandStatus() map[string]any {
	ctrls, _ := r.Payload["Controllers"].([]any)
	if len(ctrls) == 0 {
		return nil
	}
	c, _ := ctrls[0].(map[string]any)
	cs, _ := c["Command Status"].(map[string]any)
	return cs
}

var bannerRe = regexp.MustCompile(`(?s)^(.*)Storage.*Command.*$`)

// Parse interprets a raw invocation. It returns an error only when JSON was
// required and no JSON or text fallback could make sense of stdout, in which
// case the error is a NonJSONResponse *Error.
func Parse(raw RawResult, requireJSON bool) (Response, error) {
	resp := Response{
		ReturnCode: raw.ExitCode,
		ExitCode:   raw.ExitCode,
		Stderr:     strings.TrimSpace(string(raw.Stderr)),
		Truncated:  raw.Truncated,
	}
	out := bytes.TrimSpace(raw.Stdout)

	if len(out) == 0 {
		if raw.ExitCode != 0 || resp.Stderr != "" {
			resp.Status = StatusFailure
			resp.Detail = firstNonEmpty(resp.Stderr, fmt.Sprintf("exit status %d", raw.ExitCode))
			resp.Text = true
			return resp, nil
		}
		if requireJSON {
			return resp, &Error{Kind: KindNonJSONResponse, Code: -1, Detail: "empty output"}
		}
		resp.Status = StatusSuccess
		resp.Text = true
		return resp, nil
	}

	if requireJSON || looksLikeJSON(out) {
		if doc, ok := decodeObject(out); ok {
			parseDocument(&resp, doc)
			if raw.ExitCode != 0 && resp.OK() {
				resp.Status = StatusFailure
				resp.ReturnCode = raw.ExitCode
				resp.VendorCode = false
				resp.Detail = firstNonEmpty(resp.Stderr, fmt.Sprintf("exit status %d", raw.ExitCode))
			}
			return resp, nil
		}
	}

	resp.Output = string(out)
	resp.Text = true
	return parseText(resp, out, requireJSON)
}

func parseText(resp Response, out []byte, requireJSON bool) (Response, error) {
	if m := bannerRe.FindSubmatch(out); m != nil {
		resp.Status = StatusFailure
		resp.Detail = firstNonEmpty(strings.TrimSpace(string(m[1])), string(out))
		return resp, nil
	}

	if kv := parseKeyValues(out); kv != nil {
		if status, ok := kv["Status"].(string); ok {
			resp.Payload = kv
			resp.Status = status
			if d, ok := kv["Description"].(string); ok && !strings.EqualFold(d, "None") {
				resp.Detail = d
			}
			if code, ok := toInt(kv["Status Code"]); ok {
				resp.ReturnCode = code
				resp.VendorCode = true
			}
			if resp.OK() && resp.ExitCode != 0 {
				resp.Status = StatusFailure
				resp.ReturnCode = resp.ExitCode
				resp.VendorCode = false
			}
			return resp, nil
		}
	}

	if resp.ExitCode != 0 {
		resp.Status = StatusFailure
		resp.Detail = firstNonEmpty(resp.Stderr, firstLine(out))
		return resp, nil
	}
	if requireJSON {
		return resp, &Error{Kind: KindNonJSONResponse, Code: -1, Detail: snippet(out)}
	}
	resp.Status = StatusSuccess
	return resp, nil
}

func looksLikeJSON(b []byte) bool {
	return len(b) > 0 && (b[0] == '{' || b[0] == '[')
}

// decodeObject decodes b as a JSON object. When b carries noise around the
// document (warnings printed before the envelope), the outermost braces are
// tried as well.
func decodeObject(b []byte) (map[string]any, bool) {
	if doc, err := decodeJSON(b); err == nil {
		m, ok := doc.(map[string]any)
		return m, ok
	}
	i := bytes.IndexByte(b, '{')
	j := bytes.LastIndexByte(b, '}')
	if i <= 0 || j <= i {
		return nil, false
	}
	doc, err := decodeJSON(b[i : j+1])
	if err != nil {
		return nil, false
	}
	m, ok := doc.(map[string]any)
	return m, ok
}

func decodeJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func parseDocument(resp *Response, doc map[string]any) {
	resp.Payload = doc
	ctrls, hasCtrls := doc["Controllers"].([]any)
	if !hasCtrls {
		resp.Status = StatusSuccess
		if s, ok := doc["Status"].(string); ok {
			resp.Status = s
		}
		return
	}

	var failed, succeeded int
	for idx, c := range ctrls {
		cr := parseController(idx, c)
		resp.Controllers = append(resp.Controllers, cr)
		if cr.OK() {
			succeeded++
			continue
		}
		if failed == 0 {
			resp.Detail = controllerDetail(cr)
			if cr.ReturnCode >= 0 {
				resp.ReturnCode = cr.ReturnCode
				resp.VendorCode = true
			}
		}
		failed++
	}

	switch {
	case failed == 0:
		resp.Status = StatusSuccess
		resp.ReturnCode = CodeSuccess
		resp.VendorCode = len(ctrls) > 0
		if len(resp.Controllers) > 0 {
			resp.Detail = resp.Controllers[0].Description
		}
	default:
		resp.Status = StatusFailure
		resp.Partial = succeeded > 0
	}
}

func parseController(idx int, raw any) ControllerResult {
	cr := ControllerResult{Index: idx, Controller: -1, ReturnCode: -1}
	m, _ := raw.(map[string]any)
	cs, _ := m["Command Status"].(map[string]any)
	cr.Data, _ = m["Response Data"].(map[string]any)
	if cs == nil {
		// A controller entry without a status block carries data only.
		cr.Status = StatusSuccess
		cr.ReturnCode = CodeSuccess
		return cr
	}
	if n, ok := toInt(cs["Controller"]); ok {
		cr.Controller = n
	}
	cr.Status, _ = cs["Status"].(string)
	cr.Description, _ = cs["Description"].(string)
	if details, ok := cs["Detailed Status"].([]any); ok {
		for _, d := range details {
			if dm, ok := d.(map[string]any); ok {
				cr.Details = append(cr.Details, dm)
			}
		}
	}

	if cr.OK() {
		cr.ReturnCode = CodeSuccess
		return cr
	}
	for _, d := range cr.Details {
		if n, ok := toInt(d["ErrCd"]); ok {
			cr.ReturnCode = n
			return cr
		}
	}
	if n, ok := codeByText(strings.TrimSpace(cr.Description)); ok {
		cr.ReturnCode = n
		return cr
	}
	for _, d := range cr.Details {
		if msg, ok := d["ErrMsg"].(string); ok {
			if n, ok := codeByText(strings.TrimSpace(msg)); ok {
				cr.ReturnCode = n
				return cr
			}
		}
	}
	return cr
}

func controllerDetail(cr ControllerResult) string {
	var msgs []string
	for _, d := range cr.Details {
		if msg, ok := d["ErrMsg"].(string); ok && msg != "" {
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) > 0 {
		return strings.Join(msgs, "; ")
	}
	if cr.Description != "" && !strings.EqualFold(cr.Description, "None") {
		return cr.Description
	}
	if len(cr.Details) > 0 {
		b, err := json.Marshal(cr.Details)
		if err == nil {
			return string(b)
		}
	}
	return cr.Status
}

// parseKeyValues reads "key = value" lines. It returns nil when no line
// has an '='.
func parseKeyValues(b []byte) map[string]any {
	var out map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64<<10), len(b)+1)
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		if out == nil {
			out = map[string]any{}
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(i), true
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstLine(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}

func snippet(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
