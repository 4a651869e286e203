// Package outfmt renders command results as text, JSON, YAML or tables.
package outfmt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

// Format is an output format name.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
)

// ParseFormat converts a flag value to a Format. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	case FormatTable:
		return FormatTable, nil
	default:
		return "", fmt.Errorf("invalid --output format %q (expected text|json|yaml|table)", s)
	}
}

// Table is tabular data for table and text output.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Printer writes results in one format.
type Printer struct {
	w      io.Writer
	format Format
	query  string
}

// NewPrinter returns a Printer. query is a jq expression applied to JSON
// output; it is rejected for other formats.
func NewPrinter(w io.Writer, format Format, query string) (*Printer, error) {
	if query != "" && format != FormatJSON {
		return nil, errors.New("--query requires --output json")
	}
	if query != "" {
		if _, err := compileQuery(query); err != nil {
			return nil, err
		}
	}
	return &Printer{w: w, format: format, query: query}, nil
}

// Print writes data in the printer's format.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatJSON:
		return p.printJSON(data)
	case FormatYAML:
		return p.printYAML(data)
	case FormatTable:
		return p.printTable(data)
	default:
		return p.printText(data)
	}
}

func (p *Printer) printJSON(data any) error {
	enc := json.NewEncoder(p.w)
	enc.SetEscapeHTML(false)
	if p.query == "" {
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	code, err := compileQuery(p.query)
	if err != nil {
		return err
	}
	// gojq only accepts plain JSON values.
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}

	iter := code.Run(v)
	for {
		out, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := out.(error); isErr {
			return fmt.Errorf("query error: %w", err)
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
}

func compileQuery(query string) (*gojq.Code, error) {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("invalid --query: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("invalid --query: %w", err)
	}
	return code, nil
}

// printYAML goes through JSON so custom MarshalJSON methods (and the key
// order they produce) carry over into the YAML document.
func (p *Printer) printYAML(data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	blockStyle(&doc)

	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(&doc)
}

// blockStyle clears the flow style the JSON input left on every
// collection. Empty mappings stay as {}.
func blockStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		if len(n.Content) > 0 {
			n.Style = 0
		}
	}
	if n.Kind == yaml.ScalarNode && n.Style == yaml.DoubleQuotedStyle && n.Tag == "!!str" {
		n.Style = 0
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func (p *Printer) printTable(data any) error {
	switch v := data.(type) {
	case Table:
		return p.writeTable(v)
	case *Table:
		return p.writeTable(*v)
	case []string:
		rows := make([][]string, len(v))
		for i, s := range v {
			rows[i] = []string{s}
		}
		return p.writeTable(Table{Headers: []string{"VALUE"}, Rows: rows})
	default:
		return fmt.Errorf("table output not supported for %T", data)
	}
}

func (p *Printer) writeTable(t Table) error {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	if len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// printText writes strings and string lists one per line, tables without
// headers and anything else as YAML.
func (p *Printer) printText(data any) error {
	switch v := data.(type) {
	case nil:
		return nil
	case string:
		_, err := fmt.Fprintln(p.w, v)
		return err
	case []string:
		var buf bytes.Buffer
		for _, s := range v {
			buf.WriteString(s)
			buf.WriteByte('\n')
		}
		_, err := p.w.Write(buf.Bytes())
		return err
	case Table:
		return p.writeTable(Table{Rows: v.Rows})
	case fmt.Stringer:
		_, err := io.WriteString(p.w, v.String())
		return err
	default:
		return p.printYAML(data)
	}
}
