package storcli

import (
	"sort"
	"strings"
)

// Command is an immutable storcli invocation: ordered argument tokens plus
// whether JSON output is required. The zero value is an empty command.
type Command struct {
	args []string
	json bool
}

// NewCommand builds a command that requires JSON output. A trailing "J"
// token is dropped; Argv appends it.
func NewCommand(args ...string) Command {
	if n := len(args); n > 0 && strings.EqualFold(args[n-1], "j") {
		args = args[:n-1]
	}
	return Command{args: cloneArgs(args), json: true}
}

// NewTextCommand builds a command whose output is taken as-is.
func NewTextCommand(args ...string) Command {
	return Command{args: cloneArgs(args)}
}

func cloneArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Args returns a copy of the argument tokens, without the JSON marker.
func (c Command) Args() []string {
	out := make([]string, len(c.args))
	copy(out, c.args)
	return out
}

// JSON reports whether the command requires JSON output.
func (c Command) JSON() bool { return c.json }

// IsZero reports whether the command has no tokens.
func (c Command) IsZero() bool { return len(c.args) == 0 }

// Argv is the argument vector handed to the binary.
func (c Command) Argv() []string {
	out := c.Args()
	if c.json {
		out = append(out, "J")
	}
	return out
}

func (c Command) String() string { return strings.Join(c.Argv(), " ") }

// WithArgs returns a copy of c with extra tokens appended.
func (c Command) WithArgs(extra ...string) Command {
	return Command{args: cloneArgs(append(c.Args(), extra...)), json: c.json}
}

type tokenClass int

const (
	tokSelector tokenClass = iota
	tokVerb
	tokKeyValue
)

func classify(tok string) tokenClass {
	switch {
	case strings.HasPrefix(tok, "/"):
		return tokSelector
	case strings.Contains(tok, "="):
		return tokKeyValue
	default:
		return tokVerb
	}
}

// selectorRank orders selector components: controller, enclosure, slot,
// virtual drive, then everything else (/cv, /bbu, /fall, /dall...).
func selectorRank(comp string) int {
	if len(comp) < 2 {
		return 4
	}
	rest := comp[1:]
	if rest != "all" && !isDigits(rest) {
		return 4
	}
	switch comp[0] {
	case 'c':
		return 0
	case 'e':
		return 1
	case 's':
		return 2
	case 'v':
		return 3
	}
	return 4
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func selectorComponents(tok string) []string {
	var out []string
	for _, p := range strings.Split(strings.ToLower(tok), "/") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Key is the canonical cache key. Selector components are merged into one
// path ordered by class, verbs keep their order, key=value tokens are sorted
// by key, and " J" marks JSON commands. Selectors, verbs and keys are
// lowercased; values keep their case.
func (c Command) Key() string {
	var (
		comps []string
		verbs []string
		kvs   []string
	)
	for _, tok := range c.args {
		switch classify(tok) {
		case tokSelector:
			comps = append(comps, selectorComponents(tok)...)
		case tokKeyValue:
			k, v, _ := strings.Cut(tok, "=")
			kvs = append(kvs, strings.ToLower(k)+"="+v)
		default:
			verbs = append(verbs, strings.ToLower(tok))
		}
	}
	sort.SliceStable(comps, func(i, j int) bool { return selectorRank(comps[i]) < selectorRank(comps[j]) })
	sort.SliceStable(kvs, func(i, j int) bool {
		ki, _, _ := strings.Cut(kvs[i], "=")
		kj, _, _ := strings.Cut(kvs[j], "=")
		return ki < kj
	})

	parts := make([]string, 0, len(verbs)+len(kvs)+2)
	if len(comps) > 0 {
		parts = append(parts, "/"+strings.Join(comps, "/"))
	}
	parts = append(parts, verbs...)
	parts = append(parts, kvs...)
	if c.json {
		parts = append(parts, "J")
	}
	return strings.Join(parts, " ")
}

var readOnlyVerbs = map[string]bool{
	"show":    true,
	"version": true,
	"help":    true,
}

// Verb is the first token that is neither a selector nor key=value.
func (c Command) Verb() string {
	for _, tok := range c.args {
		if classify(tok) == tokVerb {
			return strings.ToLower(tok)
		}
	}
	return ""
}

// Mutating reports whether the command may change controller state. Only
// show, version and help are treated as read-only.
func (c Command) Mutating() bool {
	return !readOnlyVerbs[c.Verb()]
}

// Scope is the controller selector ("/c0", "/call") the command targets,
// or "" for global commands.
func (c Command) Scope() string {
	for _, tok := range c.args {
		if classify(tok) != tokSelector {
			continue
		}
		for _, comp := range selectorComponents(tok) {
			if comp[0] == 'c' && selectorRank(comp) == 0 {
				return "/" + comp
			}
		}
	}
	return ""
}
