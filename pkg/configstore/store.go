// Package configstore holds the most recent parsed configuration of each
// device, with a bounded history of earlier snapshots.
package configstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/psaab/cfgblock/pkg/config"
)

// ErrUnknownDevice is returned for lookups of a device that was never loaded.
var ErrUnknownDevice = errors.New("unknown device")

// DefaultHistorySize is the number of earlier snapshots kept per device.
const DefaultHistorySize = 10

// Snapshot is one parsed configuration of a device.
type Snapshot struct {
	Device   string
	Source   string // file path or "api", "cli" etc.
	Indent   int
	Text     string
	Result   *config.ParseResult
	LoadedAt time.Time
	Digest   string // hex SHA-256 of Text
}

// Stats are cumulative store counters.
type Stats struct {
	Parses    uint64
	Lines     uint64
	Anomalies uint64
	Lookups   uint64
	Misses    uint64
}

// Store manages device snapshots. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	devices     map[string]*Snapshot
	history     map[string]*History
	historySize int

	parses    atomic.Uint64
	lines     atomic.Uint64
	anomalies atomic.Uint64
	lookups   atomic.Uint64
	misses    atomic.Uint64
}

// New creates a store keeping historySize earlier snapshots per device.
// historySize <= 0 selects DefaultHistorySize.
func New(historySize int) *Store {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Store{
		devices:     make(map[string]*Snapshot),
		history:     make(map[string]*History),
		historySize: historySize,
	}
}

// Put parses text and makes it the current snapshot for device.
// The previous snapshot moves to history unless the text is unchanged.
func (s *Store) Put(device, text string, indent int, source string) (*Snapshot, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return nil, fmt.Errorf("empty device name")
	}

	p := config.NewParser(config.WithIndent(indent))
	res := p.ParseText(text)
	sum := sha256.Sum256([]byte(text))
	snap := &Snapshot{
		Device:   device,
		Source:   source,
		Indent:   p.Indent(),
		Text:     text,
		Result:   res,
		LoadedAt: time.Now(),
		Digest:   hex.EncodeToString(sum[:]),
	}

	s.parses.Add(1)
	s.lines.Add(uint64(lineCount(text)))
	s.anomalies.Add(uint64(len(res.Errors)))

	for _, pe := range res.Errors {
		slog.Debug("configuration anomaly", "device", device, "err", pe)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.devices[device]; ok && (prev.Digest != snap.Digest || prev.Indent != snap.Indent) {
		h := s.history[device]
		if h == nil {
			h = NewHistory(s.historySize)
			s.history[device] = h
		}
		h.Push(prev)
	}
	s.devices[device] = snap

	slog.Info("configuration loaded",
		"device", device,
		"source", source,
		"blocks", res.Tree.Len(),
		"anomalies", len(res.Errors))
	return snap, nil
}

// LoadFile reads path and stores it as device.
func (s *Store) LoadFile(device, path string, indent int) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return s.Put(device, string(data), indent, path)
}

// LoadDir loads every file in dir matching pattern (a filepath.Match
// pattern, default "*.conf"). The device name is the file name without its
// extension. Files that fail to load are reported but do not stop the rest.
func (s *Store) LoadDir(dir, pattern string, indent int) (int, error) {
	if pattern == "" {
		pattern = "*.conf"
	}
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, fmt.Errorf("glob %s: %w", dir, err)
	}
	sort.Strings(paths)

	var errs []error
	n := 0
	for _, p := range paths {
		if fi, err := os.Stat(p); err != nil || fi.IsDir() {
			continue
		}
		device := DeviceName(p)
		if _, err := s.LoadFile(device, p, indent); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", device, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

func lineCount(text string) int {
	n := strings.Count(text, "\n")
	if text != "" && !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

// DeviceName derives a device name from a config file path.
func DeviceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Get returns the current snapshot for device.
func (s *Store) Get(device string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.devices[device]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, device)
	}
	return snap, nil
}

// Devices returns the loaded device names, sorted.
func (s *Store) Devices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.devices))
	for n := range s.devices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Remove forgets device and its history.
func (s *Store) Remove(device string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[device]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, device)
	}
	delete(s.devices, device)
	delete(s.history, device)
	return nil
}

// History returns the earlier snapshots of device, most recent first.
func (s *Store) History(device string) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.devices[device]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, device)
	}
	h := s.history[device]
	if h == nil {
		return nil, nil
	}
	return h.List(), nil
}

// Rollback returns the nth earlier snapshot of device (0 = most recent).
func (s *Store) Rollback(device string, n int) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[device]
	if h == nil {
		return nil, fmt.Errorf("rollback %d: no history for %s", n, device)
	}
	return h.Get(n)
}

// Select returns the child keys of the block at path in device's current
// configuration. A missing block yields config.ErrBlockNotFound.
func (s *Store) Select(device string, path []string) ([]string, error) {
	snap, err := s.Get(device)
	if err != nil {
		return nil, err
	}
	s.lookups.Add(1)
	keys, ok := config.Select(snap.Result.Tree, path)
	if !ok {
		s.misses.Add(1)
		return nil, fmt.Errorf("%w: %s", config.ErrBlockNotFound, strings.Join(path, config.DefaultSeparator))
	}
	return keys, nil
}

// SelectDotted is Select for a separator-joined path.
func (s *Store) SelectDotted(device, dotted, sep string) ([]string, error) {
	snap, err := s.Get(device)
	if err != nil {
		return nil, err
	}
	s.lookups.Add(1)
	keys, ok := config.SelectDotted(snap.Result.Tree, dotted, sep)
	if !ok {
		s.misses.Add(1)
		return nil, fmt.Errorf("%w: %s", config.ErrBlockNotFound, dotted)
	}
	return keys, nil
}

// Stats returns a copy of the store counters.
func (s *Store) Stats() Stats {
	return Stats{
		Parses:    s.parses.Load(),
		Lines:     s.lines.Load(),
		Anomalies: s.anomalies.Load(),
		Lookups:   s.lookups.Load(),
		Misses:    s.misses.Load(),
	}
}

// Snapshots returns the current snapshot of every device, sorted by name.
func (s *Store) Snapshots() []*Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Snapshot, 0, len(s.devices))
	for _, snap := range s.devices {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Device < out[j].Device })
	return out
}
