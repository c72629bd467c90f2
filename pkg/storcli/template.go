package storcli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

// ParseLine splits a shell-style command line ("/c0/v0 set name='db 1'")
// into a Command. A trailing J is accepted and ignored; the command always
// requires JSON.
func ParseLine(line string) (Command, error) {
	args, err := shellwords.Parse(line)
	if err != nil {
		return Command{}, fmt.Errorf("parse command line: %w", err)
	}
	cmd := NewCommand(args...)
	if cmd.IsZero() {
		return Command{}, fmt.Errorf("parse command line: empty command")
	}
	return cmd, nil
}

// Template is a named command whose tokens may contain placeholders:
//   - {name}       the template name
//   - {ctl}        shorthand for {param:ctl}
//   - {param:KEY}  the KEY parameter, empty when absent
//
// Unknown placeholders are left as-is.
type Template struct {
	Args    []string
	Text    bool          // output is not JSON
	Timeout time.Duration // zero uses the caller's default
}

// ParseTemplate builds a Template from a shell-style line.
func ParseTemplate(line string) (Template, error) {
	args, err := shellwords.Parse(line)
	if err != nil {
		return Template{}, fmt.Errorf("parse template: %w", err)
	}
	if len(args) == 0 {
		return Template{}, fmt.Errorf("parse template: empty command")
	}
	return Template{Args: args}, nil
}

// Templates maps a name to its Template.
type Templates map[string]Template

// Names returns the template names in sorted order.
func (t Templates) Names() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Render expands the named template. The returned timeout comes from the
// params ("timeout", "timeout_s", "timeout_ms") or the template, and is
// zero when neither sets one.
func (t Templates) Render(name string, params map[string]string) (Command, time.Duration, error) {
	tmpl, ok := t[name]
	if !ok {
		return Command{}, 0, fmt.Errorf("no template named %q", name)
	}
	args := make([]string, 0, len(tmpl.Args))
	for _, tok := range tmpl.Args {
		args = append(args, expandToken(tok, name, params))
	}

	var cmd Command
	if tmpl.Text {
		cmd = NewTextCommand(args...)
	} else {
		cmd = NewCommand(args...)
	}
	if cmd.IsZero() {
		return Command{}, 0, fmt.Errorf("template %q rendered an empty command", name)
	}

	timeout := tmpl.Timeout
	if d, ok := parseTimeoutParam(params); ok {
		timeout = d
	}
	return cmd, timeout, nil
}

// expandToken substitutes {name}, {ctl} and {param:KEY} in one left to
// right pass. Substituted values are never scanned again.
func expandToken(tok, name string, params map[string]string) string {
	var b strings.Builder
	for {
		i := strings.IndexByte(tok, '{')
		if i < 0 {
			b.WriteString(tok)
			return b.String()
		}
		j := strings.IndexByte(tok[i:], '}')
		if j < 0 {
			// unclosed; leave as-is
			b.WriteString(tok)
			return b.String()
		}
		j += i
		b.WriteString(tok[:i])
		switch ph := tok[i+1 : j]; {
		case ph == "name":
			b.WriteString(name)
		case ph == "ctl":
			b.WriteString(params["ctl"])
		case strings.HasPrefix(ph, "param:"):
			b.WriteString(params[strings.TrimPrefix(ph, "param:")])
		default:
			b.WriteString(tok[i : j+1])
		}
		tok = tok[j+1:]
	}
}

// parseTimeoutParam reads "timeout" (a Go duration), "timeout_s" (integer
// seconds) or "timeout_ms" (integer milliseconds), in that order.
func parseTimeoutParam(m map[string]string) (time.Duration, bool) {
	if s := m["timeout"]; s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d, true
		}
	}
	if s := m["timeout_s"]; s != "" {
		if n, err := strconv.ParseUint(s, 10, 32); err == nil && n > 0 {
			return time.Duration(n) * time.Second, true
		}
	}
	if s := m["timeout_ms"]; s != "" {
		if n, err := strconv.ParseUint(s, 10, 32); err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond, true
		}
	}
	return 0, false
}
