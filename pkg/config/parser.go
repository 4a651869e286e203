package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIndentationAnomaly is wrapped by every ParseError.
	ErrIndentationAnomaly = errors.New("indentation anomaly")

	// ErrLevelSkipped means a nested line is more than one level deeper
	// than any open block, or has no open block to attach to.
	ErrLevelSkipped = fmt.Errorf("%w: level skipped", ErrIndentationAnomaly)

	// ErrMissingAncestor means the ancestor chain of a nested line does
	// not resolve to nodes present in the tree.
	ErrMissingAncestor = fmt.Errorf("%w: ancestor not in tree", ErrIndentationAnomaly)
)

// ParseError records a line that could not be placed in the tree.
// Parsing continues after it.
type ParseError struct {
	Line int
	// Ancestors is the ancestor stack as it stood before the line was placed.
	Ancestors []string
	Text      string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v: %q under [%s]",
		e.Line, e.Err, e.Text, strings.Join(e.Ancestors, " > "))
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseResult is the outcome of a parse: the tree built from every line
// that could be placed, plus one error per line that could not.
type ParseResult struct {
	Tree   *ConfigTree
	Errors []*ParseError
}

// Err joins all parse errors, or returns nil when there were none.
func (r *ParseResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// DefaultIndent is the number of columns per nesting level.
const DefaultIndent = 1

// Parser converts indentation-structured lines into a ConfigTree.
// A Parser holds no state between calls and is safe for concurrent use.
type Parser struct {
	indent int
}

// Option configures a Parser.
type Option func(*Parser)

// WithIndent sets the columns per nesting level. Values below 1 select
// DefaultIndent.
func WithIndent(n int) Option {
	return func(p *Parser) {
		if n >= 1 {
			p.indent = n
		}
	}
}

// NewParser creates a Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{indent: DefaultIndent}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Indent returns the columns per nesting level.
func (p *Parser) Indent() int {
	return p.indent
}

// Parse builds a tree from lines.
func (p *Parser) Parse(lines []string) *ParseResult {
	scanned := make([]Line, len(lines))
	for i, raw := range lines {
		scanned[i] = NewLine(i+1, raw)
	}
	return p.ParseLines(scanned)
}

// ParseText splits text on newlines and parses it.
func (p *Parser) ParseText(text string) *ParseResult {
	return p.ParseLines(ScanLines(text))
}

// ParseLines builds a tree from pre-scanned lines.
func (p *Parser) ParseLines(lines []Line) *ParseResult {
	st := &parseState{
		tree:   NewConfigTree(),
		indent: p.indent,
	}
	for _, l := range lines {
		st.line(l)
	}
	return &ParseResult{Tree: st.tree, Errors: st.errs}
}

// Parse is shorthand for NewParser(WithIndent(indent)).Parse(lines).
func Parse(lines []string, indent int) *ParseResult {
	return NewParser(WithIndent(indent)).Parse(lines)
}

// ParseText is shorthand for NewParser(WithIndent(indent)).ParseText(text).
func ParseText(text string, indent int) *ParseResult {
	return NewParser(WithIndent(indent)).ParseText(text)
}

type parseState struct {
	tree      *ConfigTree
	indent    int
	ancestors []string
	errs      []*ParseError
}

func (st *parseState) line(l Line) {
	switch l.Kind {
	case LineTopLevel:
		st.tree.insert(nil, l.Text, l.Number)
		st.ancestors = append(st.ancestors[:0], l.Text)
	case LineNested:
		st.nested(l)
	}
}

func (st *parseState) nested(l Line) {
	level := l.Indent / st.indent
	switch {
	case level > len(st.ancestors):
		st.fail(l, ErrLevelSkipped)
		return
	case level == 0:
		// The line still takes the top-level slot, so lines nested under
		// it fail as well instead of joining the previous block.
		st.fail(l, ErrLevelSkipped)
		st.ancestors = append(st.ancestors[:0], l.Text)
		return
	}

	snapshot := append([]string(nil), st.ancestors...)
	if level < len(st.ancestors) {
		st.ancestors[level] = l.Text
		st.ancestors = st.ancestors[:level+1]
	} else {
		st.ancestors = append(st.ancestors, l.Text)
	}

	parent := st.tree.Lookup(st.ancestors[:level])
	if parent == nil {
		st.errs = append(st.errs, &ParseError{
			Line:      l.Number,
			Ancestors: snapshot,
			Text:      l.Text,
			Err:       ErrMissingAncestor,
		})
		return
	}
	st.tree.insert(parent, l.Text, l.Number)
}

func (st *parseState) fail(l Line, err error) {
	st.errs = append(st.errs, &ParseError{
		Line:      l.Number,
		Ancestors: append([]string(nil), st.ancestors...),
		Text:      l.Text,
		Err:       err,
	})
}
