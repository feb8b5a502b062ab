package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-drift/weave/pkg/core"
)

// debugServer manages the HTTP server for fiber tree inspection.
type debugServer struct {
	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
}

// StartDebugServer serves the diagnostics endpoints on port and returns the
// bound port (useful when port is 0). Calling it again while running
// returns the current port.
func (a *App) StartDebugServer(port int) (int, error) {
	a.debug.mu.Lock()
	defer a.debug.mu.Unlock()

	if a.debug.server != nil {
		return a.debug.listener.Addr().(*net.TCPAddr).Port, nil
	}

	// Bind first to fail fast on port conflicts.
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return 0, fmt.Errorf("debug server listen: %w", err)
	}

	server := &http.Server{Handler: a.debugMux(), ReadHeaderTimeout: 5 * time.Second}
	a.debug.server = server
	a.debug.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			a.debug.mu.Lock()
			a.debug.server = nil
			a.debug.listener = nil
			a.debug.mu.Unlock()
			a.logger.Error("debug server stopped", "err", err)
		}
	}()

	actual := listener.Addr().(*net.TCPAddr).Port
	a.logger.Info("debug server listening", "port", actual)
	return actual, nil
}

func (a *App) stopDebugServer() {
	a.debug.mu.Lock()
	server := a.debug.server
	a.debug.server = nil
	a.debug.listener = nil
	a.debug.mu.Unlock()

	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}

func (a *App) debugMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /fiber-tree", a.handleFiberTree)
	mux.HandleFunc("GET /cycles", a.handleCycles)
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /debug", a.handleDebug)
	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, fmt.Sprintf("json encode error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleFiberTree returns the current fiber tree as JSON.
func (a *App) handleFiberTree(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			http.Error(w, fmt.Sprintf("panic: %v", rec), http.StatusInternalServerError)
		}
	}()

	tree, ok := a.runtime.DescribeTree()
	if !ok {
		http.Error(w, "no fiber tree", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, tree)
}

// handleCycles returns recent cycle samples. Query parameters: limit keeps
// the newest N samples, min_ms keeps cycles at least that long, errors=true
// keeps failed cycles.
func (a *App) handleCycles(w http.ResponseWriter, r *http.Request) {
	resp := a.trace.Snapshot()
	applyCycleFilters(r, &resp)
	writeJSON(w, resp)
}

func (a *App) handleDebug(w http.ResponseWriter, r *http.Request) {
	var info struct {
		Runtime   string           `json:"runtime"`
		App       string           `json:"app"`
		State     string           `json:"state"`
		Host      string           `json:"host"`
		Err       string           `json:"err,omitempty"`
		LastCycle *core.CycleStats `json:"lastCycle,omitempty"`
	}
	info.Runtime = a.runtime.ID()
	info.App = a.cfg.AppName
	info.State = a.runtime.State().String()
	info.Host = a.cfg.Host
	if err := a.runtime.Err(); err != nil {
		info.Err = err.Error()
	}
	if last, ok := a.LastCycle(); ok {
		last.Err = nil
		info.LastCycle = &last
	}
	writeJSON(w, info)
}

func applyCycleFilters(r *http.Request, resp *CycleTimeline) {
	q := r.URL.Query()
	var filters []func(CycleSample) bool

	if v, err := strconv.ParseFloat(q.Get("min_ms"), 64); err == nil && v > 0 {
		filters = append(filters, func(s CycleSample) bool { return s.TotalMs >= v })
	}
	if v, err := strconv.ParseBool(q.Get("errors")); err == nil && v {
		filters = append(filters, func(s CycleSample) bool { return s.Error != "" })
	}

	if len(filters) > 0 {
		filtered := make([]CycleSample, 0, len(resp.Samples))
	outer:
		for _, sample := range resp.Samples {
			for _, f := range filters {
				if !f(sample) {
					continue outer
				}
			}
			filtered = append(filtered, sample)
		}
		resp.Samples = filtered
	}

	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && len(resp.Samples) > limit {
		resp.Samples = resp.Samples[len(resp.Samples)-limit:]
	}
}
