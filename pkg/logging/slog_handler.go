package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Options configures Setup.
type Options struct {
	Level  string // debug, info, warn, error (default info)
	Format string // text (default) or json
	Syslog []SyslogTarget
}

// ParseLevel converts a level name to an slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return l, nil
}

// Setup installs the default slog logger writing to w, forwarding to any
// configured syslog servers. Servers that cannot be dialed are skipped and
// reported in the returned error; the handler is usable either way.
func Setup(w io.Writer, opts Options) (*SyslogSlogHandler, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}
	var base slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		base = slog.NewTextHandler(w, hopts)
	case "json":
		base = slog.NewJSONHandler(w, hopts)
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	h := NewSyslogSlogHandler(base)
	var clients []*SyslogClient
	var errs []error
	for _, t := range opts.Syslog {
		c, err := NewSyslogClient(t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		clients = append(clients, c)
	}
	h.SetClients(clients)
	slog.SetDefault(slog.New(h))
	return h, errors.Join(errs...)
}

// SyslogSlogHandler is an slog.Handler that forwards log records to remote
// syslog servers in addition to a wrapped base handler (typically stderr).
type SyslogSlogHandler struct {
	base   slog.Handler
	shared *clientSet
	attrs  []slog.Attr
	groups []string
}

// clientSet is shared by a handler and every handler derived from it, so
// SetClients reaches loggers created earlier with With.
type clientSet struct {
	mu      sync.RWMutex
	clients []*SyslogClient
}

// NewSyslogSlogHandler wraps a base slog.Handler with syslog forwarding.
func NewSyslogSlogHandler(base slog.Handler) *SyslogSlogHandler {
	return &SyslogSlogHandler{base: base, shared: &clientSet{}}
}

// SetClients replaces the set of syslog clients. Old clients are closed.
func (h *SyslogSlogHandler) SetClients(clients []*SyslogClient) {
	h.shared.mu.Lock()
	old := h.shared.clients
	h.shared.clients = clients
	h.shared.mu.Unlock()

	for _, c := range old {
		c.Close()
	}
}

// Close closes all syslog clients.
func (h *SyslogSlogHandler) Close() {
	h.SetClients(nil)
}

// Enabled implements slog.Handler.
func (h *SyslogSlogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SyslogSlogHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.base.Handle(ctx, r)

	h.shared.mu.RLock()
	clients := h.shared.clients
	h.shared.mu.RUnlock()

	if len(clients) > 0 {
		severity := slogLevelToSyslog(r.Level)
		msg := formatRecord(r, h.attrs, h.groups)
		for _, c := range clients {
			if c.ShouldSend(severity) {
				c.Send(severity, msg)
			}
		}
	}

	return err
}

// WithAttrs implements slog.Handler.
func (h *SyslogSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SyslogSlogHandler{
		base:   h.base.WithAttrs(attrs),
		shared: h.shared,
		attrs:  append(append([]slog.Attr{}, h.attrs...), qualify(attrs, h.groups)...),
		groups: h.groups,
	}
}

// WithGroup implements slog.Handler.
func (h *SyslogSlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SyslogSlogHandler{
		base:   h.base.WithGroup(name),
		shared: h.shared,
		attrs:  h.attrs,
		groups: append(append([]string{}, h.groups...), name),
	}
}

func slogLevelToSyslog(level slog.Level) int {
	switch {
	case level >= slog.LevelError:
		return SyslogError
	case level >= slog.LevelWarn:
		return SyslogWarning
	case level >= slog.LevelInfo:
		return SyslogInfo
	default:
		return SyslogDebug
	}
}

func qualify(attrs []slog.Attr, groups []string) []slog.Attr {
	if len(groups) == 0 {
		return attrs
	}
	prefix := strings.Join(groups, ".") + "."
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return out
}

// formatRecord produces a compact key=value rendering of a log record.
func formatRecord(r slog.Record, preAttrs []slog.Attr, groups []string) string {
	var b strings.Builder
	b.WriteString(r.Message)

	for _, a := range preAttrs {
		fmt.Fprintf(&b, " %s=%s", a.Key, quoteValue(a.Value))
	}

	prefix := ""
	if len(groups) > 0 {
		prefix = strings.Join(groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s%s=%s", prefix, a.Key, quoteValue(a.Value))
		return true
	})

	return b.String()
}

// quoteValue quotes values containing spaces; configuration lines usually do.
func quoteValue(v slog.Value) string {
	s := v.Resolve().String()
	if strings.ContainsAny(s, " \t\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
