package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/psaab/cfgblock/pkg/grpcapi"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoadOptions(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfgblockd.yaml", `
config_dir: /srv/configs
indent: 3
http_addr: ":9000"
auth:
  api_keys: ["0123456789abcdef"]
log:
  level: debug
  syslog:
    - host: 192.0.2.10
      port: 5514
      facility: local3
`)
	opts, err := LoadOptions(p)
	require.NoError(t, err)

	assert.Equal(t, "/srv/configs", opts.ConfigDir)
	assert.Equal(t, 3, opts.Indent)
	assert.Equal(t, ":9000", opts.HTTPAddr)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultOptions().GRPCAddr, opts.GRPCAddr)
	assert.Equal(t, "*.conf", opts.Pattern)
	require.Len(t, opts.Log.Syslog, 1)
	assert.Equal(t, 5514, opts.Log.Syslog[0].Port)

	targets := opts.syslogTargets()
	require.Len(t, targets, 1)
	assert.Equal(t, "local3", targets[0].Facility)
}

func TestLoadOptionsEmptyFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "empty.yaml", "")
	opts, err := LoadOptions(p)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)
}

func TestLoadOptionsErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "indnet: 3\n", "field indnet not found"},
		{"bad indent", "indent: 0\n", "'Indent' must be at least 1"},
		{"bad addr", "http_addr: localhost\n", "'HTTPAddr' must be host:port"},
		{"bad level", "log: {level: loud}\n", "'Log.Level' must be one of"},
		{"missing syslog host", "log: {syslog: [{port: 514}]}\n", "'Log.Syslog[0].Host' is required"},
		{"bad syslog host", "log: {syslog: [{host: 'not a host'}]}\n", "must be a hostname or IP address"},
		{"short api key", "auth: {api_keys: [abc]}\n", "'Auth.APIKeys[0]' must be at least 16"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, dir, "opts.yaml", tt.content)
			_, err := LoadOptions(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadOptions(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// syncBuffer guards the log buffer shared with the daemon goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "spine1.conf", "router bgp 65000\n   neighbor 10.0.0.1\n      remote-as 65001\n")
	writeFile(t, dir, "leaf1.conf", "vlan 10\n   name web\n")
	writeFile(t, dir, "notes.txt", "ignored")

	opts := DefaultOptions()
	opts.ConfigDir = dir
	opts.Indent = 3
	opts.HTTPAddr = freeAddr(t)
	opts.GRPCAddr = freeAddr(t)
	var logs syncBuffer
	opts.LogOutput = &logs

	d := New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// HTTP
	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = http.Get("http://" + opts.HTTPAddr + "/api/v1/devices/spine1/block?path=router+bgp+65000")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var env struct {
		Success bool `json:"success"`
		Data    struct {
			Keys []string `json:"keys"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.Success)
	assert.Equal(t, []string{"neighbor 10.0.0.1"}, env.Data.Keys)

	// gRPC
	conn, err := grpc.NewClient(opts.GRPCAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := grpcapi.NewClient(conn)
	var devs []map[string]any
	require.Eventually(t, func() bool {
		devs, err = client.ListDevices(context.Background())
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	require.Len(t, devs, 2)
	assert.Equal(t, "leaf1", devs[0]["name"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.Contains(t, logs.String(), "shutdown complete")
	assert.Contains(t, logs.String(), "devices=2")
}

func TestRunReloadOnSIGHUP(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "spine1.conf", "router bgp 65000\n")

	opts := DefaultOptions()
	opts.ConfigDir = dir
	opts.HTTPAddr = freeAddr(t)
	opts.GRPCAddr = ""
	opts.LogOutput = &syncBuffer{}

	d := New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// Once the API answers, the SIGHUP handler is installed.
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + opts.HTTPAddr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, []string{"spine1"}, d.Store().Devices())

	writeFile(t, dir, "leaf1.conf", "vlan 10\n")
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGHUP))
	assert.Eventually(t, func() bool {
		return len(d.Store().Devices()) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestRunInvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Indent = 0
	err := New(opts).Run(context.Background())
	assert.ErrorContains(t, err, "'Indent' must be at least 1")
}

func TestRunListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	opts := DefaultOptions()
	opts.ConfigDir = ""
	opts.HTTPAddr = ln.Addr().String()
	opts.GRPCAddr = ""
	opts.LogOutput = &syncBuffer{}

	err = New(opts).Run(context.Background())
	assert.ErrorContains(t, err, "HTTP API")
}
