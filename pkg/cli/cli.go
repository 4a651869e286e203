// Package cli implements the interactive cfgblock shell.
package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"

	"github.com/psaab/cfgblock/pkg/cmdtree"
	"github.com/psaab/cfgblock/pkg/config"
	"github.com/psaab/cfgblock/pkg/configstore"
	"github.com/psaab/cfgblock/pkg/filters"
)

// Options configures the shell.
type Options struct {
	Indent      int    // default indent width for "load"
	Separator   string // dotted path separator
	HistoryFile string
	Out         io.Writer
}

// CLI is the interactive command-line interface.
type CLI struct {
	rl    *readline.Instance
	store *configstore.Store
	opts  Options
	out   io.Writer
}

// New creates a new CLI.
func New(store *configstore.Store, opts Options) *CLI {
	if opts.Indent < 1 {
		opts.Indent = config.DefaultIndent
	}
	if opts.Separator == "" {
		opts.Separator = config.DefaultSeparator
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &CLI{store: store, opts: opts, out: opts.Out}
}

// Run starts the interactive CLI loop.
func (c *CLI) Run() error {
	var err error
	c.rl, err = readline.NewEx(&readline.Config{
		Prompt:          c.prompt(),
		HistoryFile:     c.opts.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    &completer{cli: c},
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer c.rl.Close()
	c.out = c.rl.Stdout()

	fmt.Fprintln(c.out, "cfgblock shell - indentation-structured configuration browser")
	fmt.Fprintln(c.out, "Type '?' for help")
	fmt.Fprintln(c.out)

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				break
			}
			return err
		}

		if err := c.Execute(line); err != nil {
			if err == errExit {
				return nil
			}
			fmt.Fprintf(c.rl.Stderr(), "error: %v\n", err)
		}
	}
	return nil
}

var errExit = errors.New("exit")

// Execute runs a single shell command line, applying any trailing pipe
// filter to its output.
func (c *CLI) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	cmd, pipe, ok := filters.ParsePipe(line)
	if !ok {
		return c.dispatch(line, c.out)
	}

	var buf bytes.Buffer
	err := c.dispatch(cmd, &buf)
	lines := strings.Split(buf.String(), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for _, l := range pipe.Apply(lines) {
		fmt.Fprintln(c.out, l)
	}
	return err
}

func (c *CLI) dispatch(line string, w io.Writer) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "load":
		return c.handleLoad(w, parts[1:])

	case "show":
		return c.handleShow(w, line, parts[1:])

	case "findall", "search":
		if len(parts) < 3 {
			return fmt.Errorf("usage: %s <device> <regex>", parts[0])
		}
		return c.handleRegex(w, parts[0], parts[1], restAfter(line, 2))

	case "clear":
		if len(parts) != 3 || parts[1] != "device" {
			return fmt.Errorf("usage: clear device <device>")
		}
		if err := c.store.Remove(parts[2]); err != nil {
			return err
		}
		fmt.Fprintf(w, "device %s cleared\n", parts[2])
		return nil

	case "quit", "exit":
		return errExit

	case "?", "help":
		if len(parts) > 1 {
			return showCommandHelp(w, parts[1:])
		}
		cmdtree.WriteHelp(w, cmdtree.HelpCandidates(cmdtree.OperationalTree))
		return nil

	default:
		if cands := cmdtree.CompleteFromTree(cmdtree.OperationalTree, nil, parts[0], nil); len(cands) > 0 {
			sort.Strings(cands)
			return fmt.Errorf("unknown command: %s (did you mean: %s)", parts[0], strings.Join(cands, ", "))
		}
		return fmt.Errorf("unknown command: %s", parts[0])
	}
}

// showCommandHelp prints the description of a command path such as
// "show block", followed by its subcommands if it has any.
func showCommandHelp(w io.Writer, words []string) error {
	last := len(words) - 1
	desc := cmdtree.LookupDesc(words[:last], words[last])
	if desc == "" {
		return fmt.Errorf("no help for %q", strings.Join(words, " "))
	}
	fmt.Fprintf(w, "%s: %s\n", strings.Join(words, " "), desc)
	if node, _, _, ok := cmdtree.Resolve(cmdtree.OperationalTree, words); ok && node.Children != nil {
		cmdtree.WriteHelp(w, cmdtree.HelpCandidates(node.Children))
	}
	return nil
}

func (c *CLI) handleLoad(w io.Writer, args []string) error {
	if len(args) != 2 && !(len(args) == 4 && args[2] == "indent") {
		return fmt.Errorf("usage: load <device> <file> [indent N]")
	}
	indent := c.opts.Indent
	if len(args) == 4 {
		n, err := strconv.Atoi(args[3])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid indent %q", args[3])
		}
		indent = n
	}
	snap, err := c.store.LoadFile(args[0], args[1], indent)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "loaded %s: %d top-level blocks, %d anomalies\n",
		snap.Device, snap.Result.Tree.Len(), len(snap.Result.Errors))
	return nil
}

func (c *CLI) handleShow(w io.Writer, line string, args []string) error {
	if len(args) == 0 {
		cmdtree.WriteTreeHelp(w, "show:", cmdtree.OperationalTree, "show")
		return nil
	}

	if args[0] == "devices" {
		return c.showDevices(w)
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: show %s <device>", args[0])
	}

	snap, err := c.store.Get(args[1])
	if err != nil {
		return err
	}
	path := restAfter(line, 3)

	switch args[0] {
	case "block":
		if path == "" {
			return fmt.Errorf("usage: show block <device> <path>")
		}
		return c.showBlock(w, snap, path)
	case "configuration":
		return c.showConfiguration(w, snap, path)
	case "errors":
		return showErrors(w, snap)
	case "history":
		return c.showHistory(w, snap.Device)
	case "paths":
		for _, p := range snap.Result.Tree.Paths(c.opts.Separator) {
			fmt.Fprintln(w, p)
		}
		return nil
	default:
		return fmt.Errorf("unknown show command: %s (valid: %s)", args[0],
			strings.Join(cmdtree.KeysFromTree(cmdtree.OperationalTree["show"].Children), ", "))
	}
}

func (c *CLI) showDevices(w io.Writer) error {
	snaps := c.store.Snapshots()
	if len(snaps) == 0 {
		fmt.Fprintln(w, "No devices loaded")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Device\tBlocks\tAnomalies\tIndent\tLoaded\tSource")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n",
			s.Device, s.Result.Tree.Len(), len(s.Result.Errors), s.Indent,
			s.LoadedAt.Format(time.DateTime), s.Source)
	}
	return tw.Flush()
}

func (c *CLI) showBlock(w io.Writer, snap *configstore.Snapshot, path string) error {
	resolved, ok := c.resolvePath(snap.Result.Tree, path)
	if !ok {
		fmt.Fprintf(w, "block not found: %s\n", path)
		return nil
	}
	keys, _ := config.Select(snap.Result.Tree, resolved)
	for _, k := range keys {
		fmt.Fprintln(w, k)
	}
	return nil
}

func (c *CLI) showConfiguration(w io.Writer, snap *configstore.Snapshot, path string) error {
	tree := snap.Result.Tree
	if path == "" {
		io.WriteString(w, tree.Format(snap.Indent))
		return nil
	}
	resolved, ok := c.resolvePath(tree, path)
	if !ok {
		fmt.Fprintf(w, "block not found: %s\n", path)
		return nil
	}
	io.WriteString(w, tree.Lookup(resolved).Format(snap.Indent))
	return nil
}

func showErrors(w io.Writer, snap *configstore.Snapshot) error {
	if len(snap.Result.Errors) == 0 {
		fmt.Fprintln(w, "No indentation anomalies")
		return nil
	}
	for _, pe := range snap.Result.Errors {
		fmt.Fprintln(w, pe.Error())
	}
	return nil
}

func (c *CLI) showHistory(w io.Writer, device string) error {
	hist, err := c.store.History(device)
	if err != nil {
		return err
	}
	if len(hist) == 0 {
		fmt.Fprintf(w, "No earlier snapshots of %s\n", device)
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tLoaded\tDigest\tBlocks\tSource")
	for i, s := range hist {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
			i, s.LoadedAt.Format(time.DateTime), s.Digest[:12], s.Result.Tree.Len(), s.Source)
	}
	return tw.Flush()
}

func (c *CLI) handleRegex(w io.Writer, cmd, device, pattern string) error {
	snap, err := c.store.Get(device)
	if err != nil {
		return err
	}
	if cmd == "findall" {
		matches, err := filters.FindAll(snap.Text, pattern)
		if err != nil {
			return err
		}
		for _, m := range matches {
			fmt.Fprintln(w, m)
		}
		return nil
	}

	m, err := filters.Search(snap.Text, pattern)
	if err != nil {
		return err
	}
	if m == nil {
		fmt.Fprintln(w, "no match")
		return nil
	}
	fmt.Fprintln(w, m.Text)
	for i, g := range m.Groups {
		fmt.Fprintf(w, "  group %d: %s\n", i+1, g)
	}
	return nil
}

func (c *CLI) prompt() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "cfgblock"
	}
	return fmt.Sprintf("cfgblock@%s> ", hostname)
}

// resolvePath turns the path argument of a show command into tree keys.
// Quoted input is taken word by word, each word one segment:
//
//	show block r1 "router bgp 65000" "neighbor 10.0.0.1"
//
// Unquoted input is a dotted path.
func (c *CLI) resolvePath(tree *config.ConfigTree, path string) ([]string, bool) {
	words, quoted := splitWords(path)
	if !quoted {
		return config.ResolvePath(tree, path, c.opts.Separator)
	}
	if tree.Lookup(words) == nil {
		return nil, false
	}
	return words, true
}

// splitWords splits s on whitespace, keeping "double" or 'single' quoted
// spans together as one word without their quotes. An unterminated quote
// runs to the end of s. quoted reports whether s contained any quote.
func splitWords(s string) (words []string, quoted bool) {
	var (
		b      strings.Builder
		inWord bool
		quote  byte
	)
	flush := func() {
		if inWord {
			words = append(words, b.String())
			b.Reset()
			inWord = false
		}
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
				continue
			}
			b.WriteByte(ch)
		case ch == '"' || ch == '\'':
			quote = ch
			quoted = true
			inWord = true
		case ch == ' ' || ch == '\t':
			flush()
		default:
			b.WriteByte(ch)
			inWord = true
		}
	}
	flush()
	return words, quoted
}

// restAfter returns line with its first n fields removed, trimmed.
func restAfter(line string, n int) string {
	return strings.TrimSpace(fieldsRest(line, n))
}
