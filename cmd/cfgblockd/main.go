// cfgblockd serves parsed device configurations over HTTP and gRPC.
//
// It loads every configuration file in a directory at startup (and again
// on SIGHUP) and answers block selection queries against them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/psaab/cfgblock/pkg/daemon"
)

func main() {
	optsFile := flag.String("config", daemon.DefaultOptionsFile, "daemon options file (YAML)")
	configDir := flag.String("config-dir", "", "directory of device configuration files")
	pattern := flag.String("pattern", "", "file name pattern within -config-dir")
	indent := flag.Int("indent", 0, "columns per nesting level")
	httpAddr := flag.String("http-addr", "", "HTTP API listen address")
	grpcAddr := flag.String("grpc-addr", "", "gRPC API listen address")
	noHTTP := flag.Bool("no-http", false, "disable the HTTP API")
	noGRPC := flag.Bool("no-grpc", false, "disable the gRPC API")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	opts, err := loadOptions(*optsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cfgblockd: %v\n", err)
		os.Exit(1)
	}

	// Flags given on the command line override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config-dir":
			opts.ConfigDir = *configDir
		case "pattern":
			opts.Pattern = *pattern
		case "indent":
			opts.Indent = *indent
		case "http-addr":
			opts.HTTPAddr = *httpAddr
		case "grpc-addr":
			opts.GRPCAddr = *grpcAddr
		}
	})
	if *noHTTP {
		opts.HTTPAddr = ""
	}
	if *noGRPC {
		opts.GRPCAddr = ""
	}
	if *debug {
		opts.Log.Level = "debug"
	}

	if err := daemon.New(opts).Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "cfgblockd: %v\n", err)
		os.Exit(1)
	}
}

// loadOptions reads path. A missing default file means built-in defaults.
func loadOptions(path string) (daemon.Options, error) {
	opts, err := daemon.LoadOptions(path)
	if err != nil && path == daemon.DefaultOptionsFile && errors.Is(err, fs.ErrNotExist) {
		return daemon.DefaultOptions(), nil
	}
	return opts, err
}
