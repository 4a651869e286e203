// Package config implements the indentation-structured configuration parser
// and the ordered block tree it produces.
package config

import (
	"fmt"
	"strings"
)

// LineKind classifies a scanned configuration line.
type LineKind int

const (
	LineBlank    LineKind = iota // empty or whitespace only
	LineComment                  // ! ...
	LineEnd                      // end
	LineTopLevel                 // command starting in column 0
	LineNested                   // indented command
)

func (k LineKind) String() string {
	switch k {
	case LineBlank:
		return "blank"
	case LineComment:
		return "comment"
	case LineEnd:
		return "end"
	case LineTopLevel:
		return "top-level"
	case LineNested:
		return "nested"
	default:
		return "unknown"
	}
}

// Line is a single line of configuration text.
type Line struct {
	// Number is the 1-based position of the line in its input.
	Number int
	// Raw is the line exactly as supplied (minus a trailing \r).
	Raw string
	// Text is Raw with leading and trailing whitespace removed.
	Text string
	// Indent is the zero-based column of the first non-whitespace byte.
	// Tabs count as a single column.
	Indent int
	Kind   LineKind
}

func (l Line) String() string {
	return fmt.Sprintf("%d:%d %s(%q)", l.Number, l.Indent, l.Kind, l.Text)
}

// Skipped reports whether the line contributes nothing to the tree.
func (l Line) Skipped() bool {
	return l.Kind == LineBlank || l.Kind == LineComment || l.Kind == LineEnd
}

// NewLine classifies raw as line number n.
func NewLine(n int, raw string) Line {
	raw = strings.TrimSuffix(raw, "\r")
	l := Line{Number: n, Raw: raw, Text: strings.TrimSpace(raw)}
	l.Indent = indentColumn(raw)

	switch {
	case l.Text == "":
		l.Kind = LineBlank
	case strings.HasPrefix(l.Text, "!"):
		l.Kind = LineComment
	case l.Text == "end":
		l.Kind = LineEnd
	case l.Indent == 0:
		l.Kind = LineTopLevel
	default:
		l.Kind = LineNested
	}
	return l
}

// ScanLines splits text on newlines and classifies every line.
// A trailing newline does not produce an extra blank line.
func ScanLines(text string) []Line {
	if text == "" {
		return nil
	}
	raw := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	lines := make([]Line, len(raw))
	for i, r := range raw {
		lines[i] = NewLine(i+1, r)
	}
	return lines
}

// indentColumn returns the offset of the first non-whitespace byte,
// or len(s) if there is none.
func indentColumn(s string) int {
	for i := 0; i < len(s); i++ {
		if !isSpace(s[i]) {
			return i
		}
	}
	return len(s)
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\v' || ch == '\f' || ch == '\r' || ch == '\n'
}
