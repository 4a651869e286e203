package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/psaab/cfgblock/pkg/config"
	"github.com/psaab/cfgblock/pkg/logging"
	"github.com/psaab/cfgblock/pkg/outfmt"
)

// app holds the global flags and what PersistentPreRunE derives from them.
type app struct {
	indent    int
	separator string
	output    string
	query     string
	verbose   bool

	format  outfmt.Format
	printer *outfmt.Printer
	log     *logging.SyslogSlogHandler
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cfgblock",
		Short: "Parse indentation-structured configurations and select blocks",
		Long: `cfgblock reads device configurations where nesting is expressed by
indentation (EOS, IOS and similar) and prints the parsed tree or the
children of a block.

Paths are dotted ("router bgp 65000.neighbor 10.0.0.1") unless given as
separate arguments. FILE may be "-" for stdin.`,
		Version:           version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				a.log.Close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.IntVar(&a.indent, "indent", config.DefaultIndent, "columns per nesting level")
	pf.StringVar(&a.separator, "separator", config.DefaultSeparator, "dotted path separator")
	pf.StringVarP(&a.output, "output", "o", string(outfmt.FormatText), "output format: text|json|yaml|table")
	pf.StringVar(&a.query, "query", "", "jq expression applied to JSON output")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		a.newParseCmd(),
		a.newSelectCmd(),
		a.newFindAllCmd(),
		a.newSearchCmd(),
		a.newPathsCmd(),
		a.newShellCmd(),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.indent < 1 {
		return fmt.Errorf("--indent must be at least 1, got %d", a.indent)
	}
	if a.separator == "" {
		return errors.New("--separator must not be empty")
	}
	var err error
	a.format, err = outfmt.ParseFormat(a.output)
	if err != nil {
		return err
	}
	a.printer, err = outfmt.NewPrinter(cmd.OutOrStdout(), a.format, a.query)
	if err != nil {
		return err
	}

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	a.log, err = logging.Setup(cmd.ErrOrStderr(), logging.Options{Level: level})
	return err
}

// readInput reads a file, or stdin when source is "-". Leading
// whitespace is significant and is kept.
func readInput(source string, stdin io.Reader) (string, error) {
	if source == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", source, err)
	}
	return string(data), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "cfgblock %s\n", version)
			return err
		},
	}
}
