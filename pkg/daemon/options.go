package daemon

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/psaab/cfgblock/pkg/configstore"
	"github.com/psaab/cfgblock/pkg/logging"
)

// DefaultOptionsFile is read when no -config flag is given.
const DefaultOptionsFile = "/etc/cfgblock/cfgblockd.yaml"

// Options configures the daemon.
type Options struct {
	// ConfigDir holds device configuration files, one per device.
	ConfigDir   string `yaml:"config_dir"`
	Pattern     string `yaml:"pattern"`
	Indent      int    `yaml:"indent" validate:"min=1,max=64"`
	HistorySize int    `yaml:"history_size" validate:"min=0,max=1000"`

	HTTPAddr  string      `yaml:"http_addr" validate:"omitempty,hostname_port"`
	HTTPSAddr string      `yaml:"https_addr" validate:"omitempty,hostname_port"`
	TLS       bool        `yaml:"tls"`
	GRPCAddr  string      `yaml:"grpc_addr" validate:"omitempty,hostname_port"`
	Auth      AuthOptions `yaml:"auth"`
	Log       LogOptions  `yaml:"log"`

	// LogOutput receives local log output (default os.Stderr).
	LogOutput io.Writer `yaml:"-" validate:"-"`
}

// AuthOptions enables API authentication when any credential is set.
type AuthOptions struct {
	Users   map[string]string `yaml:"users" validate:"dive,keys,required,endkeys,required"`
	APIKeys []string          `yaml:"api_keys" validate:"dive,min=16"`
}

// LogOptions configures logging.
type LogOptions struct {
	Level  string          `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string          `yaml:"format" validate:"omitempty,oneof=text json"`
	Syslog []SyslogOptions `yaml:"syslog" validate:"dive"`
}

// SyslogOptions is one remote syslog server.
type SyslogOptions struct {
	Host     string `yaml:"host" validate:"required,hostname|ip"`
	Port     int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Network  string `yaml:"network" validate:"omitempty,oneof=udp tcp"`
	Facility string `yaml:"facility" validate:"omitempty,oneof=user daemon local0 local1 local2 local3 local4 local5 local6 local7"`
	Severity string `yaml:"severity" validate:"omitempty,oneof=error warning info debug"`
}

// DefaultOptions returns the options used when no file is present.
func DefaultOptions() Options {
	return Options{
		ConfigDir:   "/etc/cfgblock/configs",
		Pattern:     "*.conf",
		Indent:      1,
		HistorySize: configstore.DefaultHistorySize,
		HTTPAddr:    "127.0.0.1:8470",
		GRPCAddr:    "127.0.0.1:8471",
		Log:         LogOptions{Level: "info", Format: "text"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadOptions reads a YAML options file over DefaultOptions and validates
// the result. Unknown keys are rejected.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read options: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return opts, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// Validate checks field constraints.
func (o *Options) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return fmt.Errorf("invalid options:\n  - %s", strings.Join(msgs, "\n  - "))
}

func formatFieldError(fe validator.FieldError) string {
	// Namespace is "Options.Log.Syslog[0].Host"; drop the root type.
	name := fe.Namespace()
	if _, rest, ok := strings.Cut(name, "."); ok {
		name = rest
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("'%s' is required", name)
	case "min":
		return fmt.Sprintf("'%s' must be at least %s, got '%v'", name, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("'%s' must be at most %s, got '%v'", name, fe.Param(), fe.Value())
	case "hostname_port":
		return fmt.Sprintf("'%s' must be host:port, got '%v'", name, fe.Value())
	case "oneof":
		return fmt.Sprintf("'%s' must be one of [%s], got '%v'", name, fe.Param(), fe.Value())
	case "hostname|ip":
		return fmt.Sprintf("'%s' must be a hostname or IP address, got '%v'", name, fe.Value())
	default:
		return fmt.Sprintf("'%s' failed validation '%s', got '%v'", name, fe.Tag(), fe.Value())
	}
}

func (o *Options) syslogTargets() []logging.SyslogTarget {
	out := make([]logging.SyslogTarget, 0, len(o.Log.Syslog))
	for _, s := range o.Log.Syslog {
		out = append(out, logging.SyslogTarget{
			Network:  s.Network,
			Host:     s.Host,
			Port:     s.Port,
			Facility: s.Facility,
			Severity: s.Severity,
		})
	}
	return out
}
