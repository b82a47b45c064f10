package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/lms-scan/lms-scan/internal/daemon"
)

type statusResponse struct {
	DataBasePath string                      `json:"DataBasePath"`
	IsScanning   bool                        `json:"IsScanning"`
	WriteLocked  bool                        `json:"WriteLocked"`
	UpdateID     uint64                      `json:"UpdateID"`
	Categories   map[string]categoryResponse `json:"Categories"`
}

type categoryResponse struct {
	Dirs    []string `json:"dirs"`
	Parsers []string `json:"parsers"`
}

func toStatusResponse(st daemon.Status) statusResponse {
	cats := make(map[string]categoryResponse, len(st.Categories))
	for name, cat := range st.Categories {
		cats[name] = categoryResponse{Dirs: cat.Dirs, Parsers: cat.Parsers}
	}
	return statusResponse{
		DataBasePath: st.DataBasePath,
		IsScanning:   st.IsScanning,
		WriteLocked:  st.WriteLocked,
		UpdateID:     st.UpdateID,
		Categories:   cats,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStatusResponse(s.coord.Status()))
}

// handleStats reports per-category row counts (SPEC_FULL.md §4.2's
// ambient Stats() accessor), for dashboards and scripted polling that
// don't need the full scanning/write-lock status payload.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleHealthz is a liveness+readiness probe: 200 once the process is
// up and its database is reachable, 503 while the store can't be
// queried (startup migration still running, or the backing file is
// gone).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Healthy() {
		writeError(w, http.StatusServiceUnavailable, "not healthy")
		return
	}
	ready, err := s.svc.Ready()
	if !ready {
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("not ready: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var spec daemon.ScanRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := s.coord.Scan(spec); err != nil {
		writeRPCError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Stop(); err != nil {
		writeRPCError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWriteLockAcquire(w http.ResponseWriter, r *http.Request) {
	token := clientToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing X-Client-Token header")
		return
	}
	if err := s.coord.RequestWriteLock(token); err != nil {
		writeRPCError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWriteLockRelease(w http.ResponseWriter, r *http.Request) {
	token := clientToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing X-Client-Token header")
		return
	}
	if err := s.coord.ReleaseWriteLock(token); err != nil {
		writeRPCError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents is the SSE endpoint for ScanProgress signals and coalesced
// property-change notifications (spec.md §6). A client that sent
// X-Client-Token and holds the write-lock has it auto-released the moment
// this connection drops, per SPEC_FULL.md §6's "holder vanishes from the
// bus" mapping.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	token := clientToken(r)
	events, cancel := s.coord.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			if token != "" {
				s.coord.ReleaseWriteLock(token)
			}
			return
		case ev := <-events:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev daemon.Event) {
	switch {
	case ev.Progress != nil:
		payload, _ := json.Marshal(ev.Progress)
		fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload)
	case ev.PropertyChange != nil:
		payload, _ := json.Marshal(toStatusResponse(ev.PropertyChange.Status))
		fmt.Fprintf(w, "event: properties\ndata: %s\n\n", payload)
	}
}

func clientToken(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Client-Token"))
}

// writeRPCError maps a daemon.ErrorName to its HTTP status, per
// SPEC_FULL.md §6's "JSON body {"error": "..."} with a matching 4xx
// status" rule.
func writeRPCError(w http.ResponseWriter, err error) {
	status := http.StatusConflict
	name := err.Error()
	switch name {
	case string(daemon.ErrNotScanning), string(daemon.ErrNotLocked):
		status = http.StatusNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": name})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
