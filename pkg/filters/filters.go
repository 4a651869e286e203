// Package filters implements text filters over device configuration:
// regex extraction, block selection by name, and CLI output pipes.
package filters

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/psaab/cfgblock/pkg/config"
)

// compile prepares pattern for line-oriented matching: ^ and $ match at
// line boundaries.
func compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?m)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}

// FindAll returns one string per match of pattern in text: the whole
// match when the pattern has no capture groups, the group when it has
// one, and the groups joined by a tab when it has several.
func FindAll(text, pattern string) ([]string, error) {
	groups, err := FindAllGroups(text, pattern)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = strings.Join(g, "\t")
	}
	return out, nil
}

// FindAllGroups returns the capture groups of every match of pattern in
// text, one slice per match. A pattern without groups yields the whole
// match as a single element. Groups that did not participate are "".
func FindAllGroups(text, pattern string) ([][]string, error) {
	re, err := compile(pattern)
	if err != nil {
		return nil, err
	}
	matches := re.FindAllStringSubmatch(text, -1)
	out := make([][]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			m = m[1:]
		}
		out = append(out, m)
	}
	return out, nil
}

// Match is the first match of a Search.
type Match struct {
	Text   string   `json:"text"`
	Groups []string `json:"groups,omitempty"`
	Start  int      `json:"start"`
	End    int      `json:"end"`
}

// Search returns the first match of pattern in text, or nil.
func Search(text, pattern string) (*Match, error) {
	re, err := compile(pattern)
	if err != nil {
		return nil, err
	}
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, nil
	}
	m := &Match{Text: text[loc[0]:loc[1]], Start: loc[0], End: loc[1]}
	for i := 2; i+1 < len(loc); i += 2 {
		if loc[i] < 0 {
			m.Groups = append(m.Groups, "")
			continue
		}
		m.Groups = append(m.Groups, text[loc[i]:loc[i+1]])
	}
	return m, nil
}

// Func is a named filter. arg is filter specific: a dotted block path for
// config_block, a regular expression for the regex filters.
// found is false when the filter produced no result (not an error).
type Func func(text, arg string, indent int) (out []string, found bool, err error)

// Registry maps filter names to implementations.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds or replaces a filter.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Lookup returns the named filter.
func (r *Registry) Lookup(name string) (Func, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered filter names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ErrUnknownFilter is returned by Apply for an unregistered name.
var ErrUnknownFilter = errors.New("unknown filter")

// Apply runs the named filter.
func (r *Registry) Apply(name, text, arg string, indent int) ([]string, bool, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, false, fmt.Errorf("%w %q", ErrUnknownFilter, name)
	}
	return fn(text, arg, indent)
}

// Default returns a registry with config_block, re_findall and re_search.
func Default() *Registry {
	r := NewRegistry()
	r.Register("config_block", func(text, arg string, indent int) ([]string, bool, error) {
		keys, ok := config.ConfigBlock(text, arg, indent)
		return keys, ok, nil
	})
	r.Register("re_findall", func(text, arg string, _ int) ([]string, bool, error) {
		out, err := FindAll(text, arg)
		if err != nil {
			return nil, false, err
		}
		return out, len(out) > 0, nil
	})
	r.Register("re_search", func(text, arg string, _ int) ([]string, bool, error) {
		m, err := Search(text, arg)
		if err != nil || m == nil {
			return nil, false, err
		}
		return append([]string{m.Text}, m.Groups...), true, nil
	})
	return r
}

// PipeKind names an output pipe filter.
type PipeKind string

const (
	PipeMatch  PipeKind = "match"
	PipeGrep   PipeKind = "grep"
	PipeExcept PipeKind = "except"
	PipeFind   PipeKind = "find"
	PipeCount  PipeKind = "count"
	PipeLast   PipeKind = "last"
	PipeNoMore PipeKind = "no-more"
)

// PipeDescs maps pipe filter names to descriptions for ? help.
var PipeDescs = map[string]string{
	string(PipeCount):  "Count occurrences",
	string(PipeExcept): "Show only text that does not match a pattern",
	string(PipeFind):   "Search for first occurrence of pattern",
	string(PipeGrep):   "Show only text that matches a pattern",
	string(PipeLast):   "Display end of output only",
	string(PipeMatch):  "Show only text that matches a pattern",
	string(PipeNoMore): "Don't paginate output",
}

// Pipe is a "| <kind> <arg>" suffix on a shell command.
type Pipe struct {
	Kind PipeKind
	Arg  string
}

// ParsePipe splits a line at the last " | <filter>" expression.
// ok is false when the line has no recognised pipe.
func ParsePipe(line string) (cmd string, p Pipe, ok bool) {
	idx := strings.LastIndex(line, " | ")
	if idx < 0 {
		return line, Pipe{}, false
	}
	parts := strings.SplitN(strings.TrimSpace(line[idx+3:]), " ", 2)
	kind := PipeKind(parts[0])
	if _, known := PipeDescs[string(kind)]; !known {
		return line, Pipe{}, false
	}
	p.Kind = kind
	if len(parts) > 1 {
		p.Arg = strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(line[:idx]), p, true
}

// Apply filters output lines. Pattern matching is a case-insensitive
// substring test.
func (p Pipe) Apply(lines []string) []string {
	lp := strings.ToLower(p.Arg)
	var out []string
	switch p.Kind {
	case PipeMatch, PipeGrep:
		for _, l := range lines {
			if strings.Contains(strings.ToLower(l), lp) {
				out = append(out, l)
			}
		}
	case PipeExcept:
		for _, l := range lines {
			if !strings.Contains(strings.ToLower(l), lp) {
				out = append(out, l)
			}
		}
	case PipeFind:
		found := false
		for _, l := range lines {
			if !found && strings.Contains(strings.ToLower(l), lp) {
				found = true
			}
			if found {
				out = append(out, l)
			}
		}
	case PipeCount:
		out = []string{fmt.Sprintf("Count: %d lines", len(lines))}
	case PipeLast:
		n := 10
		if v, err := strconv.Atoi(p.Arg); err == nil && v > 0 {
			n = v
		}
		start := len(lines) - n
		if start < 0 {
			start = 0
		}
		out = append(out, lines[start:]...)
	default:
		out = append(out, lines...)
	}
	return out
}
