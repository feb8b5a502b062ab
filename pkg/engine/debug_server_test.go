package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-drift/weave/pkg/config"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/platform"
	"github.com/go-drift/weave/pkg/target"
)

func newTestApp(t *testing.T) (*App, *target.Memory) {
	t.Helper()
	cfg, err := config.Default().Resolve(t.TempDir())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	mem := target.NewMemory()
	app, err := New(mem, cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithHost(&platform.ManualHost{}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app, mem
}

// waitForServer polls the health endpoint until ready or timeout.
func waitForServer(port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := fmt.Sprintf("http://localhost:%d/health", port)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("server not ready after %v", timeout)
}

// waitForServerDown polls until the server stops responding or timeout.
func waitForServerDown(port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := fmt.Sprintf("http://localhost:%d/health", port)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err != nil {
			return nil
		}
		resp.Body.Close()
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("server still running after %v", timeout)
}

func get(t *testing.T, app *App, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	app.debugMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestDebugServer_StartStop(t *testing.T) {
	app, _ := newTestApp(t)
	port, err := app.StartDebugServer(0)
	if err != nil {
		t.Fatalf("failed to start debug server: %v", err)
	}

	if err := waitForServer(port, 2*time.Second); err != nil {
		t.Fatalf("server not ready: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", port))
	if err != nil {
		t.Fatalf("failed to reach health endpoint: %v", err)
	}
	defer resp.Body.Close()

	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if health["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", health["status"])
	}

	app.stopDebugServer()
	if err := waitForServerDown(port, 2*time.Second); err != nil {
		t.Errorf("server did not stop: %v", err)
	}
}

func TestDebugServer_FailFastOnPortConflict(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	app, _ := newTestApp(t)
	if _, err := app.StartDebugServer(ln.Addr().(*net.TCPAddr).Port); err == nil {
		t.Error("expected error for port already in use")
	}
}

func TestDebugServer_AlreadyRunningReturnsPort(t *testing.T) {
	app, _ := newTestApp(t)
	port1, err := app.StartDebugServer(0)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	port2, err := app.StartDebugServer(0)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if port1 != port2 {
		t.Errorf("second start returned port %d, want %d", port2, port1)
	}
}

func TestDebugServer_FiberTree(t *testing.T) {
	app, mem := newTestApp(t)

	if rec := get(t, app, "/fiber-tree"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before render: status %d, want 503", rec.Code)
	}

	app.Render(core.H("p", core.Props{"id": "x"}, "hi"), mem.NewContainer("main"))
	if err := app.Runtime().Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	rec := get(t, app, "/fiber-tree")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var tree core.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &tree); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tree.Type != string(core.RootTag) || len(tree.Children) != 1 || tree.Children[0].Type != "p" {
		t.Errorf("unexpected tree %+v", tree)
	}
}

func TestDebugServer_MethodNotAllowed(t *testing.T) {
	app, _ := newTestApp(t)
	rec := httptest.NewRecorder()
	app.debugMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health: status %d, want 405", rec.Code)
	}
}

func TestDebugServer_CyclesFilters(t *testing.T) {
	app, _ := newTestApp(t)
	for i, ms := range []int{2, 30, 4, 40} {
		s := core.CycleStats{
			Start:          time.UnixMilli(int64(i)),
			RenderDuration: time.Duration(ms) * time.Millisecond,
		}
		if i == 3 {
			s.Err = fmt.Errorf("boom")
		}
		app.ObserveCycle(s)
	}

	tests := []struct {
		query string
		want  []int64
	}{
		{"", []int64{0, 1, 2, 3}},
		{"?limit=2", []int64{2, 3}},
		{"?min_ms=10", []int64{1, 3}},
		{"?errors=true", []int64{3}},
		{"?min_ms=10&limit=1", []int64{3}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := get(t, app, "/cycles"+tt.query)
			var timeline CycleTimeline
			if err := json.Unmarshal(rec.Body.Bytes(), &timeline); err != nil {
				t.Fatalf("decode: %v", err)
			}
			var got []int64
			for _, s := range timeline.Samples {
				got = append(got, s.Timestamp)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("timestamps = %v, want %v", got, tt.want)
			}
			if timeline.SlowCycles != 2 {
				t.Errorf("SlowCycles = %d, want 2", timeline.SlowCycles)
			}
		})
	}
}

func TestDebugServer_DebugAndMetrics(t *testing.T) {
	app, mem := newTestApp(t)
	app.Render(core.H("div", nil), mem.NewContainer("main"))
	if err := app.Runtime().Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var info struct {
		Runtime string `json:"runtime"`
		State   string `json:"state"`
		Host    string `json:"host"`
	}
	if err := json.Unmarshal(get(t, app, "/debug").Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Runtime != app.Runtime().ID() || info.State != "idle" || info.Host != config.HostIdle {
		t.Errorf("unexpected debug info %+v", info)
	}

	rec := get(t, app, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status %d", rec.Code)
	}
	if body := rec.Body.String(); !containsLine(body, `weave_cycles_total{result="ok"} 1`) {
		t.Errorf("metrics output missing cycle counter:\n%s", body)
	}
}

func containsLine(body, line string) bool {
	for _, l := range strings.Split(body, "\n") {
		if l == line {
			return true
		}
	}
	return false
}
