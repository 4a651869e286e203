// Package api implements the HTTP REST API and Prometheus metrics endpoint.
package api

import (
	"time"

	"github.com/psaab/cfgblock/pkg/config"
	"github.com/psaab/cfgblock/pkg/configstore"
)

// Response is the standard JSON response envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ParseRequest is the body of POST /api/v1/parse.
type ParseRequest struct {
	Text   string `json:"text"`
	Indent int    `json:"indent,omitempty"`
}

// ParseResponse holds a parsed tree and its anomalies.
type ParseResponse struct {
	Tree   *config.ConfigTree `json:"tree"`
	Errors []AnomalyInfo      `json:"errors"`
}

// AnomalyInfo describes one line that could not be placed in the tree.
type AnomalyInfo struct {
	Line      int      `json:"line"`
	Text      string   `json:"text"`
	Ancestors []string `json:"ancestors"`
	Error     string   `json:"error"`
}

// SelectRequest is the body of POST /api/v1/select. Path takes precedence
// over Dotted.
type SelectRequest struct {
	Text      string   `json:"text"`
	Path      []string `json:"path,omitempty"`
	Dotted    string   `json:"dotted,omitempty"`
	Separator string   `json:"separator,omitempty"`
	Indent    int      `json:"indent,omitempty"`
}

// SelectResponse lists the child keys of a selected block.
type SelectResponse struct {
	Found bool     `json:"found"`
	Keys  []string `json:"keys"`
}

// FilterRequest is the body of POST /api/v1/filter.
type FilterRequest struct {
	Name   string `json:"name"`
	Text   string `json:"text"`
	Arg    string `json:"arg"`
	Indent int    `json:"indent,omitempty"`
}

// FilterResponse is the output of a named filter.
type FilterResponse struct {
	Found  bool     `json:"found"`
	Result []string `json:"result"`
}

// DeviceInfo summarizes one stored device snapshot.
type DeviceInfo struct {
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Indent    int       `json:"indent"`
	Blocks    int       `json:"blocks"`
	Anomalies int       `json:"anomalies"`
	Digest    string    `json:"digest"`
	LoadedAt  time.Time `json:"loaded_at"`
}

func anomalies(res *config.ParseResult) []AnomalyInfo {
	out := make([]AnomalyInfo, 0, len(res.Errors))
	for _, pe := range res.Errors {
		out = append(out, AnomalyInfo{
			Line:      pe.Line,
			Text:      pe.Text,
			Ancestors: append([]string{}, pe.Ancestors...),
			Error:     pe.Err.Error(),
		})
	}
	return out
}

func deviceInfo(s *configstore.Snapshot) DeviceInfo {
	return DeviceInfo{
		Name:      s.Device,
		Source:    s.Source,
		Indent:    s.Indent,
		Blocks:    s.Result.Tree.Len(),
		Anomalies: len(s.Result.Errors),
		Digest:    s.Digest,
		LoadedAt:  s.LoadedAt,
	}
}
