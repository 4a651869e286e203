// Package daemon implements the cfgblockd lifecycle.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/psaab/cfgblock/pkg/api"
	"github.com/psaab/cfgblock/pkg/configstore"
	"github.com/psaab/cfgblock/pkg/filters"
	"github.com/psaab/cfgblock/pkg/grpcapi"
	"github.com/psaab/cfgblock/pkg/logging"
)

// Daemon is the cfgblockd process.
type Daemon struct {
	opts    Options
	store   *configstore.Store
	filters *filters.Registry
}

// New creates a new Daemon.
func New(opts Options) *Daemon {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	return &Daemon{
		opts:    opts,
		store:   configstore.New(opts.HistorySize),
		filters: filters.Default(),
	}
}

// Store returns the daemon's device store.
func (d *Daemon) Store() *configstore.Store {
	return d.store
}

// Run starts the daemon and blocks until ctx is cancelled, a signal
// arrives or a server fails. SIGHUP reloads the configuration directory.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.opts.Validate(); err != nil {
		return err
	}
	logHandler, err := logging.Setup(d.opts.LogOutput, logging.Options{
		Level:  d.opts.Log.Level,
		Format: d.opts.Log.Format,
		Syslog: d.opts.syslogTargets(),
	})
	if logHandler == nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logHandler.Close()
	if err != nil {
		slog.Warn("syslog forwarding incomplete", "err", err)
	}

	slog.Info("starting cfgblockd",
		"config_dir", d.opts.ConfigDir,
		"indent", d.opts.Indent,
		"pid", os.Getpid())

	d.reload()

	// Handle signals for clean shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	start := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	if d.opts.HTTPAddr != "" {
		cfg := api.Config{
			Addr:      d.opts.HTTPAddr,
			HTTPSAddr: d.opts.HTTPSAddr,
			TLS:       d.opts.TLS,
			Store:     d.store,
			Filters:   d.filters,
		}
		auth := api.AuthConfig{Users: d.opts.Auth.Users, APIKeys: d.opts.Auth.APIKeys}
		if auth.Enabled() {
			cfg.Auth = &auth
		}
		start("HTTP API", api.NewServer(cfg).Run)
	}
	if d.opts.GRPCAddr != "" {
		start("gRPC", grpcapi.NewServer(d.opts.GRPCAddr, grpcapi.Config{
			Store:   d.store,
			Filters: d.filters,
		}).Run)
	}

	var runErr error
loop:
	for {
		select {
		case <-hup:
			slog.Info("SIGHUP received, reloading configurations")
			d.reload()
		case err := <-errCh:
			runErr = err
			break loop
		case <-ctx.Done():
			slog.Info("signal received, shutting down")
			break loop
		}
	}

	// Cancel context to stop the servers, then wait for them.
	stop()
	wg.Wait()

	st := d.store.Stats()
	slog.Info("final statistics",
		"devices", len(d.store.Devices()),
		"parses", st.Parses,
		"lines", st.Lines,
		"anomalies", st.Anomalies,
		"lookups", st.Lookups,
		"misses", st.Misses)
	slog.Info("shutdown complete")
	return runErr
}

// reload loads every file in the configuration directory. Failures are
// logged; devices already in the store keep their last good snapshot.
func (d *Daemon) reload() {
	if d.opts.ConfigDir == "" {
		return
	}
	n, err := d.store.LoadDir(d.opts.ConfigDir, d.opts.Pattern, d.opts.Indent)
	if err != nil {
		slog.Warn("failed to load some configurations", "dir", d.opts.ConfigDir, "err", err)
	}
	slog.Info("configurations loaded", "dir", d.opts.ConfigDir, "devices", n)
}
