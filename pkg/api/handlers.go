package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/psaab/cfgblock/pkg/config"
	"github.com/psaab/cfgblock/pkg/configstore"
	"github.com/psaab/cfgblock/pkg/filters"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

// writeStoreError maps store and lookup errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, configstore.ErrUnknownDevice),
		errors.Is(err, config.ErrBlockNotFound),
		errors.Is(err, filters.ErrUnknownFilter):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.startTime).Truncate(time.Second).String(),
	})
}

func (s *Server) parseHandler(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !s.decode(w, r, &req) {
		return
	}
	res := config.ParseText(req.Text, req.Indent)
	writeOK(w, ParseResponse{Tree: res.Tree, Errors: anomalies(res)})
}

func (s *Server) selectHandler(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Path) == 0 && req.Dotted == "" {
		writeError(w, http.StatusBadRequest, "path or dotted is required")
		return
	}
	sep := req.Separator
	if sep == "" {
		sep = config.DefaultSeparator
	}

	tree := config.ParseText(req.Text, req.Indent).Tree
	var (
		keys  []string
		found bool
	)
	if len(req.Path) > 0 {
		keys, found = config.Select(tree, req.Path)
	} else {
		keys, found = config.SelectDotted(tree, req.Dotted, sep)
	}
	if !found {
		writeJSON(w, http.StatusNotFound, Response{
			Success: false,
			Data:    SelectResponse{Found: false, Keys: []string{}},
			Error:   config.ErrBlockNotFound.Error(),
		})
		return
	}
	writeOK(w, SelectResponse{Found: true, Keys: keys})
}

func (s *Server) filterHandler(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, found, err := s.filters.Apply(req.Name, req.Text, req.Arg, req.Indent)
	if err != nil {
		if errors.Is(err, filters.ErrUnknownFilter) {
			writeStoreError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if out == nil {
		out = []string{}
	}
	writeOK(w, FilterResponse{Found: found, Result: out})
}

func (s *Server) filterNamesHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.filters.Names())
}

func (s *Server) devicesHandler(w http.ResponseWriter, _ *http.Request) {
	snaps := s.store.Snapshots()
	out := make([]DeviceInfo, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, deviceInfo(snap))
	}
	writeOK(w, out)
}

func (s *Server) putDeviceHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	indent := config.DefaultIndent
	if v := r.URL.Query().Get("indent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid indent %q", v))
			return
		}
		indent = n
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	snap, err := s.store.Put(name, string(body), indent, "api")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeOK(w, deviceInfo(snap))
}

func (s *Server) deleteDeviceHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Remove(r.PathValue("name")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w, map[string]string{"message": "device removed"})
}

func (s *Server) deviceTreeHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Get(r.PathValue("name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w, snap.Result.Tree)
}

func (s *Server) deviceBlockHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	sep := q.Get("separator")
	if sep == "" {
		sep = config.DefaultSeparator
	}
	keys, err := s.store.SelectDotted(r.PathValue("name"), path, sep)
	if err != nil {
		if errors.Is(err, config.ErrBlockNotFound) {
			writeJSON(w, http.StatusNotFound, Response{
				Success: false,
				Data:    SelectResponse{Found: false, Keys: []string{}},
				Error:   err.Error(),
			})
			return
		}
		writeStoreError(w, err)
		return
	}
	writeOK(w, SelectResponse{Found: true, Keys: keys})
}

func (s *Server) deviceErrorsHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Get(r.PathValue("name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w, anomalies(snap.Result))
}

func (s *Server) deviceHistoryHandler(w http.ResponseWriter, r *http.Request) {
	hist, err := s.store.History(r.PathValue("name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]DeviceInfo, 0, len(hist))
	for _, snap := range hist {
		out = append(out, deviceInfo(snap))
	}
	writeOK(w, out)
}

// deviceRollbackHandler re-applies an earlier snapshot (?n=0 is the most
// recent) as the current one.
func (s *Server) deviceRollbackHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	n := 0
	if v := r.URL.Query().Get("n"); v != "" {
		var err error
		if n, err = strconv.Atoi(v); err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid n %q", v))
			return
		}
	}
	if _, err := s.store.Get(name); err != nil {
		writeStoreError(w, err)
		return
	}
	prev, err := s.store.Rollback(name, n)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := s.store.Put(name, prev.Text, prev.Indent, fmt.Sprintf("rollback %d", n))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, deviceInfo(snap))
}
