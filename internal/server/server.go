// Package server implements a thin net/http JSON introspection API over
// the DAT index and the most recent scan/sort reports, grown from the
// teacher's internal/server/server.go (which served a browsable ROM
// library UI backed by a per-user collection database).
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/golang/glog"

	"github.com/retronian/romsorter/internal/datindex"
	"github.com/retronian/romsorter/internal/model"
)

// IndexStatsProvider is the subset of *datindex.Index (or
// *datindex.ShardedIndex) the server needs for /api/coverage.
type IndexStatsProvider interface {
	Coverage() (datindex.CoverageReport, error)
}

// Server exposes index coverage plus the last completed scan/sort report
// over HTTP, for a CLI-invoked run to be inspected by another process.
type Server struct {
	index IndexStatsProvider
	port  int

	mu         sync.RWMutex
	lastScan   *model.ScanResult
	lastReport *model.SortReport
}

// New builds a Server bound to index (may be nil if no index was
// configured for this run) listening on port.
func New(index IndexStatsProvider, port int) *Server {
	return &Server{index: index, port: port}
}

// SetLastScan records the most recent scan result for /api/scan.
func (s *Server) SetLastScan(result model.ScanResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastScan = &result
}

// SetLastReport records the most recent sort report for /api/report.
func (s *Server) SetLastReport(report model.SortReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = &report
}

// Start blocks serving HTTP until the listener fails.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/coverage", s.handleCoverage)
	mux.HandleFunc("/api/scan", s.handleScan)
	mux.HandleFunc("/api/report", s.handleReport)

	addr := fmt.Sprintf(":%d", s.port)
	glog.Infof("server: listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		http.Error(w, "no DAT index configured for this run", http.StatusServiceUnavailable)
		return
	}
	report, err := s.index.Coverage()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastScan == nil {
		http.Error(w, "no scan has completed yet", http.StatusNotFound)
		return
	}
	writeJSON(w, s.lastScan)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastReport == nil {
		http.Error(w, "no sort execution has completed yet", http.StatusNotFound)
		return
	}
	writeJSON(w, s.lastReport)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("server: failed to encode response: %v", err)
	}
}
