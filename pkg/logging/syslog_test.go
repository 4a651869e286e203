package logging

import (
	"bufio"
	"bytes"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"error", SyslogError},
		{"warning", SyslogWarning},
		{"WARN", SyslogWarning},
		{"info", SyslogInfo},
		{"debug", SyslogDebug},
		{"unknown", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := ParseSeverity(tt.name); got != tt.want {
			t.Errorf("ParseSeverity(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestParseFacility(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"user", FacilityUser},
		{"daemon", FacilityDaemon},
		{"local0", FacilityLocal0},
		{"local3", FacilityLocal0 + 3},
		{"LOCAL7", FacilityLocal7},
		{"local8", FacilityLocal0},
		{"unknown", FacilityLocal0},
		{"", FacilityLocal0},
	}
	for _, tt := range tests {
		if got := ParseFacility(tt.name); got != tt.want {
			t.Errorf("ParseFacility(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestShouldSend(t *testing.T) {
	tests := []struct {
		min  int
		sev  int
		want bool
	}{
		{0, SyslogDebug, true},
		{SyslogError, SyslogError, true},
		{SyslogError, SyslogWarning, false},
		{SyslogWarning, SyslogError, true},
		{SyslogWarning, SyslogInfo, false},
		{SyslogInfo, SyslogInfo, true},
		{SyslogInfo, SyslogDebug, false},
	}
	for _, tt := range tests {
		c := &SyslogClient{MinSeverity: tt.min}
		if got := c.ShouldSend(tt.sev); got != tt.want {
			t.Errorf("min=%d ShouldSend(%d) = %v, want %v", tt.min, tt.sev, got, tt.want)
		}
	}
}

func listenUDP(t *testing.T) (net.PacketConn, int) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pc.Close() })
	return pc, pc.LocalAddr().(*net.UDPAddr).Port
}

func readPacket(t *testing.T, pc net.PacketConn) string {
	t.Helper()
	pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatal(err)
	}
	return string(buf[:n])
}

func TestSyslogSendReceive(t *testing.T) {
	pc, port := listenUDP(t)

	client, err := NewSyslogClient(SyslogTarget{Host: "127.0.0.1", Port: port})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.Send(SyslogWarning, "test message"); err != nil {
		t.Fatal(err)
	}

	got := readPacket(t, pc)
	// Priority = facility*8 + severity = 16*8 + 4 = 132
	if !strings.HasPrefix(got, "<132>") {
		t.Errorf("unexpected priority prefix: %q", got)
	}
	if !strings.Contains(got, " cfgblockd[") || !strings.HasSuffix(got, "]: test message") {
		t.Errorf("message not found in %q", got)
	}
}

func TestSyslogFacilityAndTag(t *testing.T) {
	pc, port := listenUDP(t)

	client, err := NewSyslogClient(SyslogTarget{
		Host: "127.0.0.1", Port: port, Facility: "daemon", Tag: "cfgsync",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.Send(SyslogError, "error msg"); err != nil {
		t.Fatal(err)
	}
	got := readPacket(t, pc)
	// Priority = 3*8 + 3 = 27
	if !strings.HasPrefix(got, "<27>") || !strings.Contains(got, " cfgsync[") {
		t.Errorf("unexpected message for daemon+error: %q", got)
	}
}

func TestSyslogTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	msgCh := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		msgCh <- line
	}()

	client, err := NewSyslogClient(SyslogTarget{
		Network: "tcp", Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.Send(SyslogInfo, "tcp test"); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-msgCh:
		if !strings.HasPrefix(msg, "<134>") || !strings.HasSuffix(msg, ": tcp test\n") {
			t.Errorf("unexpected TCP message %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for TCP syslog message")
	}
}

func TestSyslogBadNetwork(t *testing.T) {
	if _, err := NewSyslogClient(SyslogTarget{Network: "tls", Host: "127.0.0.1"}); err == nil {
		t.Error("expected error for unsupported network")
	}
}

func TestHandlerForwards(t *testing.T) {
	pc, port := listenUDP(t)
	client, err := NewSyslogClient(SyslogTarget{Host: "127.0.0.1", Port: port, Severity: "warning"})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	h := NewSyslogSlogHandler(slog.NewTextHandler(&buf, nil))
	defer h.Close()
	logger := slog.New(h).With("device", "spine1")
	// Clients set after With still reach the derived logger.
	h.SetClients([]*SyslogClient{client})

	logger.Info("filtered out")
	logger.WithGroup("parse").Warn("configuration anomaly", "line", 7, "text", "remote-as 65001")

	got := readPacket(t, pc)
	want := `configuration anomaly device=spine1 parse.line=7 parse.text="remote-as 65001"`
	if !strings.HasSuffix(got, want) {
		t.Errorf("forwarded %q, want suffix %q", got, want)
	}
	if !strings.Contains(buf.String(), "filtered out") {
		t.Error("base handler missed info record")
	}
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for bad level")
	}
}

func TestSetup(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	h, err := Setup(&buf, Options{Level: "debug", Format: "json"})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	slog.Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("output = %q", buf.String())
	}

	if _, err := Setup(&buf, Options{Format: "xml"}); err == nil {
		t.Error("expected error for bad format")
	}
}
