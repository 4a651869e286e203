package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/psaab/cfgblock/pkg/config"
	"github.com/psaab/cfgblock/pkg/grpcapi"
	"github.com/psaab/cfgblock/pkg/outfmt"
)

type dialFunc func(addr string) (*grpc.ClientConn, error)

type ctl struct {
	addr      string
	timeout   time.Duration
	indent    int
	separator string
	output    string
	query     string

	dial    dialFunc
	conn    *grpc.ClientConn
	client  *grpcapi.Client
	format  outfmt.Format
	printer *outfmt.Printer
}

func newRootCmd(dial dialFunc) *cobra.Command {
	c := &ctl{dial: dial}
	root := &cobra.Command{
		Use:           "cfgblockctl",
		Short:         "Query a cfgblockd server over gRPC",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.connect(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.conn != nil {
				return c.conn.Close()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.addr, "addr", "127.0.0.1:8471", "cfgblockd gRPC address")
	pf.DurationVar(&c.timeout, "timeout", 10*time.Second, "per-request timeout")
	pf.IntVar(&c.indent, "indent", config.DefaultIndent, "columns per nesting level for uploaded text")
	pf.StringVar(&c.separator, "separator", config.DefaultSeparator, "dotted path separator")
	pf.StringVarP(&c.output, "output", "o", string(outfmt.FormatText), "output format: text|json|yaml|table")
	pf.StringVar(&c.query, "query", "", "jq expression applied to JSON output")

	root.AddCommand(
		c.newDevicesCmd(),
		c.newSelectCmd(),
		c.newParseCmd(),
		c.newFilterCmd(),
		c.newLoadCmd(),
	)
	return root
}

func (c *ctl) connect(cmd *cobra.Command) error {
	var err error
	c.format, err = outfmt.ParseFormat(c.output)
	if err != nil {
		return err
	}
	c.printer, err = outfmt.NewPrinter(cmd.OutOrStdout(), c.format, c.query)
	if err != nil {
		return err
	}
	c.conn, err = c.dial(c.addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.addr, err)
	}
	c.client = grpcapi.NewClient(c.conn)
	return nil
}

func (c *ctl) requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.timeout)
}

// rpcError strips the gRPC status wrapper down to its message and code.
func rpcError(err error) error {
	if st, ok := status.FromError(err); ok {
		return fmt.Errorf("%s (%s)", st.Message(), st.Code())
	}
	return err
}

func readInput(source string, stdin io.Reader) (string, error) {
	if source == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", source, err)
	}
	return string(data), nil
}

func (c *ctl) newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List stored devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.requestContext(cmd)
			defer cancel()
			devs, err := c.client.ListDevices(ctx)
			if err != nil {
				return rpcError(err)
			}
			if c.format == outfmt.FormatJSON || c.format == outfmt.FormatYAML {
				return c.printer.Print(devs)
			}
			t := outfmt.Table{Headers: []string{"DEVICE", "INDENT", "BLOCKS", "ANOMALIES", "DIGEST", "LOADED", "SOURCE"}}
			for _, d := range devs {
				digest := fmt.Sprint(d["digest"])
				if len(digest) > 12 {
					digest = digest[:12]
				}
				t.Rows = append(t.Rows, []string{
					fmt.Sprint(d["name"]),
					fmt.Sprint(d["indent"]),
					fmt.Sprint(d["blocks"]),
					fmt.Sprint(d["anomalies"]),
					digest,
					fmt.Sprint(d["loaded_at"]),
					fmt.Sprint(d["source"]),
				})
			}
			// Text output keeps the header row.
			p, err := outfmt.NewPrinter(cmd.OutOrStdout(), outfmt.FormatTable, "")
			if err != nil {
				return err
			}
			return p.Print(t)
		},
	}
}

func (c *ctl) newSelectCmd() *cobra.Command {
	var device, file string
	cmd := &cobra.Command{
		Use:   "select PATH [SEGMENT...]",
		Short: "Print the child keys of a block",
		Long: `Print the child keys of a block of a stored device (--device), or of a
local file parsed by the server (--file). A single PATH is dotted; more
arguments are taken as individual segments.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (device == "") == (file == "") {
				return errors.New("exactly one of --device or --file is required")
			}
			req := grpcapi.SelectRequest{
				Device:    device,
				Path:      args,
				Separator: c.separator,
				Indent:    c.indent,
			}
			if file != "" {
				text, err := readInput(file, cmd.InOrStdin())
				if err != nil {
					return err
				}
				req.Text = text
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()
			keys, err := c.client.Select(ctx, req)
			if err != nil {
				return rpcError(err)
			}
			return c.printer.Print(keys)
		},
	}
	cmd.Flags().StringVarP(&device, "device", "d", "", "stored device name")
	cmd.Flags().StringVarP(&file, "file", "f", "", "configuration file to send (- for stdin)")
	return cmd
}

func (c *ctl) newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse a file on the server and print its block paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()
			res, err := c.client.Parse(ctx, text, c.indent)
			if err != nil {
				return rpcError(err)
			}
			for _, v := range res.GetFields()["errors"].GetListValue().GetValues() {
				e := v.GetStructValue().AsMap()
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: line %v: %v: %q\n", e["line"], e["error"], e["text"])
			}
			if c.format == outfmt.FormatJSON || c.format == outfmt.FormatYAML {
				return c.printer.Print(res.AsMap())
			}
			var paths []string
			for _, p := range res.GetFields()["paths"].GetListValue().GetValues() {
				var segs []string
				for _, s := range p.GetListValue().GetValues() {
					segs = append(segs, s.GetStringValue())
				}
				paths = append(paths, strings.Join(segs, c.separator))
			}
			return c.printer.Print(paths)
		},
	}
}

func (c *ctl) newFilterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filter NAME FILE ARG",
		Short: "Run a named filter (config_block, re_findall, re_search) on the server",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()
			out, err := c.client.ApplyFilter(ctx, args[0], text, args[2], c.indent)
			if err != nil {
				return rpcError(err)
			}
			return c.printer.Print(out)
		},
	}
}

func (c *ctl) newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load DEVICE FILE",
		Short: "Store a configuration file on the server as DEVICE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()
			dev, err := c.client.PutDevice(ctx, args[0], text, c.indent)
			if err != nil {
				return rpcError(err)
			}
			if c.format == outfmt.FormatText {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "loaded %v: %v blocks, %v anomalies\n",
					dev["name"], dev["blocks"], dev["anomalies"])
				return err
			}
			return c.printer.Print(dev)
		},
	}
}
