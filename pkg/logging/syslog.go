// Package logging sets up structured logging for the cfgblock binaries,
// with optional forwarding to remote syslog servers.
package logging

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// Syslog severity levels (RFC 3164).
const (
	SyslogError   = 3
	SyslogWarning = 4
	SyslogInfo    = 6
	SyslogDebug   = 7
)

// Syslog facilities (RFC 3164).
const (
	FacilityUser   = 1
	FacilityDaemon = 3
	FacilityLocal0 = 16
	FacilityLocal7 = 23
)

// SyslogClient sends syslog messages (RFC 3164) over UDP or TCP.
type SyslogClient struct {
	conn        net.Conn
	network     string
	hostname    string
	tag         string
	facility    int
	MinSeverity int // 0 = no filter, else SyslogError(3)..SyslogDebug(7)
}

// SyslogTarget describes one remote syslog server.
type SyslogTarget struct {
	Network  string // "udp" (default) or "tcp"
	Host     string
	Port     int    // 0 = 514
	Facility string // see ParseFacility
	Severity string // minimum severity, see ParseSeverity
	Tag      string // program name, default "cfgblockd"
}

// NewSyslogClient creates a client connected to target.
func NewSyslogClient(target SyslogTarget) (*SyslogClient, error) {
	network := target.Network
	if network == "" {
		network = "udp"
	}
	if network != "udp" && network != "tcp" {
		return nil, fmt.Errorf("syslog network %q: must be udp or tcp", network)
	}
	port := target.Port
	if port == 0 {
		port = 514
	}
	addr := net.JoinHostPort(target.Host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout(network, addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial syslog %s: %w", addr, err)
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "cfgblockd"
	}
	tag := target.Tag
	if tag == "" {
		tag = "cfgblockd"
	}
	return &SyslogClient{
		conn:        conn,
		network:     network,
		hostname:    hostname,
		tag:         tag,
		facility:    ParseFacility(target.Facility),
		MinSeverity: ParseSeverity(target.Severity),
	}, nil
}

// Send sends a syslog message with the given severity. TCP messages are
// newline-framed.
func (s *SyslogClient) Send(severity int, msg string) error {
	priority := s.facility*8 + severity
	ts := time.Now().Format(time.Stamp) // "Jan _2 15:04:05"
	line := fmt.Sprintf("<%d>%s %s %s[%d]: %s", priority, ts, s.hostname, s.tag, os.Getpid(), msg)
	if s.network == "tcp" {
		line += "\n"
	}
	_, err := s.conn.Write([]byte(line))
	return err
}

// ShouldSend returns true if the severity passes this client's filter.
// Lower severity number = higher priority (error=3 < warning=4 < info=6).
func (s *SyslogClient) ShouldSend(severity int) bool {
	return s.MinSeverity == 0 || severity <= s.MinSeverity
}

// ParseSeverity converts a severity name to its numeric value.
// Returns 0 (no filter) for unrecognized names.
func ParseSeverity(name string) int {
	switch strings.ToLower(name) {
	case "error":
		return SyslogError
	case "warning", "warn":
		return SyslogWarning
	case "info":
		return SyslogInfo
	case "debug":
		return SyslogDebug
	default:
		return 0
	}
}

// ParseFacility converts a facility name (user, daemon, local0-local7) to
// its numeric value. Unrecognized names select local0.
func ParseFacility(name string) int {
	name = strings.ToLower(name)
	switch name {
	case "user":
		return FacilityUser
	case "daemon":
		return FacilityDaemon
	}
	if n, ok := strings.CutPrefix(name, "local"); ok && len(n) == 1 && n[0] >= '0' && n[0] <= '7' {
		return FacilityLocal0 + int(n[0]-'0')
	}
	return FacilityLocal0
}

// Close closes the underlying connection.
func (s *SyslogClient) Close() error {
	return s.conn.Close()
}
