package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psaab/cfgblock/pkg/cli"
	"github.com/psaab/cfgblock/pkg/config"
	"github.com/psaab/cfgblock/pkg/configstore"
	"github.com/psaab/cfgblock/pkg/filters"
	"github.com/psaab/cfgblock/pkg/outfmt"
)

// parse reads source and reports anomalies on stderr.
func (a *app) parse(cmd *cobra.Command, source string) (*config.ParseResult, error) {
	text, err := readInput(source, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	res := config.ParseText(text, a.indent)
	slog.Debug("parsed configuration",
		"source", source,
		"blocks", res.Tree.Len(),
		"anomalies", len(res.Errors))
	for _, perr := range res.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", perr)
	}
	return res, nil
}

func (a *app) newParseCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse a configuration and print its tree",
		Long: `Parse a configuration and print its tree.

Text output re-renders the tree with --indent columns per level. Table
output lists every block with its line number and depth. Lines that could
not be placed are reported on stderr; with --strict they fail the command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.parse(cmd, args[0])
			if err != nil {
				return err
			}
			if err := a.printTree(cmd, res.Tree); err != nil {
				return err
			}
			if strict && len(res.Errors) > 0 {
				return fmt.Errorf("%d lines could not be placed: %w", len(res.Errors), config.ErrIndentationAnomaly)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any line could not be placed")
	return cmd
}

func (a *app) printTree(cmd *cobra.Command, tree *config.ConfigTree) error {
	switch a.format {
	case outfmt.FormatText:
		_, err := fmt.Fprint(cmd.OutOrStdout(), tree.Format(a.indent))
		return err
	case outfmt.FormatTable:
		t := outfmt.Table{Headers: []string{"LINE", "DEPTH", "PATH"}}
		tree.Walk(func(path []string, n *config.Node) bool {
			t.Rows = append(t.Rows, []string{
				strconv.Itoa(n.Line),
				strconv.Itoa(len(path)),
				strings.Join(path, a.separator),
			})
			return true
		})
		return a.printer.Print(t)
	default:
		return a.printer.Print(tree)
	}
}

func (a *app) newSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select FILE PATH [SEGMENT...]",
		Short: "Print the child keys of a block",
		Long: `Print the child keys of the block at PATH.

A single PATH is split on --separator; segments that contain the
separator themselves (IP addresses, for example) are still resolved.
With more than one argument after FILE each argument is one segment.`,
		Example: `  cfgblock select --indent 3 spine1.conf 'router bgp 65000.neighbor 10.0.0.1'
  cfgblock select --indent 3 spine1.conf 'router bgp 65000' 'neighbor 10.0.0.1'`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.parse(cmd, args[0])
			if err != nil {
				return err
			}
			var (
				keys  []string
				found bool
				path  = args[1]
			)
			if len(args) > 2 {
				keys, found = config.Select(res.Tree, args[1:])
				path = strings.Join(args[1:], a.separator)
			} else {
				keys, found = config.SelectDotted(res.Tree, args[1], a.separator)
			}
			if !found {
				return fmt.Errorf("%w: %q", config.ErrBlockNotFound, path)
			}
			return a.printer.Print(keys)
		},
	}
}

func (a *app) newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths FILE",
		Short: "List the dotted path of every block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.parse(cmd, args[0])
			if err != nil {
				return err
			}
			paths := res.Tree.Paths(a.separator)
			if paths == nil {
				paths = []string{}
			}
			return a.printer.Print(paths)
		},
	}
}

func (a *app) newFindAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "findall FILE REGEX",
		Short: "Print every match of a regular expression",
		Long: `Print every match of REGEX in FILE. When REGEX has capture groups
the groups of each match are printed instead of the whole match: tab
separated in text output, as one list per match in JSON and YAML.
The pattern is multi-line: ^ and $ match at line boundaries.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if a.format == outfmt.FormatJSON || a.format == outfmt.FormatYAML {
				groups, err := filters.FindAllGroups(text, args[1])
				if err != nil {
					return err
				}
				return a.printer.Print(groups)
			}
			out, err := filters.FindAll(text, args[1])
			if err != nil {
				return err
			}
			return a.printer.Print(out)
		},
	}
}

func (a *app) newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search FILE REGEX",
		Short: "Print the first match of a regular expression",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			m, err := filters.Search(text, args[1])
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("no match for %q", args[1])
			}
			if a.format == outfmt.FormatText {
				return a.printer.Print(append([]string{m.Text}, m.Groups...))
			}
			return a.printer.Print(m)
		},
	}
}

func (a *app) newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell [FILE...]",
		Short: "Browse configurations interactively",
		Long: `Start an interactive shell. Each FILE is loaded as a device named after
the file without its extension; more can be loaded with "load".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := configstore.New(0)
			for _, path := range args {
				if _, err := store.LoadFile(configstore.DeviceName(path), path, a.indent); err != nil {
					return err
				}
			}
			return cli.New(store, cli.Options{
				Indent:      a.indent,
				Separator:   a.separator,
				HistoryFile: historyFile(),
				Out:         cmd.OutOrStdout(),
			}).Run()
		},
	}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cfgblock_history")
}
