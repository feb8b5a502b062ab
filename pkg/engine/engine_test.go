package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-drift/weave/pkg/config"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/platform"
	"github.com/go-drift/weave/pkg/target"
)

// waitForCycle polls until the app has observed a committed cycle.
func waitForCycle(t *testing.T, app *App, timeout time.Duration) core.CycleStats {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s, ok := app.LastCycle(); ok {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("no cycle observed after %v", timeout)
	return core.CycleStats{}
}

func TestNew_HostFromConfig(t *testing.T) {
	tests := []struct {
		host  string
		check func(platform.Host) bool
	}{
		{config.HostTimer, func(h platform.Host) bool { _, ok := h.(platform.TimerHost); return ok }},
		{config.HostLoop, func(h platform.Host) bool { _, ok := h.(*platform.Loop); return ok }},
		{config.HostIdle, func(h platform.Host) bool { _, ok := h.(platform.IdleHost); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			cfg, err := config.Default().Resolve(t.TempDir())
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			cfg.Host = tt.host
			mem := target.NewMemory()
			app, err := New(mem, cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !tt.check(app.host) {
				t.Fatalf("host = %T", app.host)
			}

			root := mem.NewContainer("main")
			app.Render(core.H("p", nil, "hosted"), root)
			s := waitForCycle(t, app, 2*time.Second)
			if s.Err != nil {
				t.Fatalf("cycle err: %v", s.Err)
			}
			if err := app.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if got, want := target.HTML(root), "<main><p>hosted</p></main>"; got != want {
				t.Errorf("HTML = %q, want %q", got, want)
			}
		})
	}
}

func TestClose_StopsLoopHost(t *testing.T) {
	cfg, err := config.Default().Resolve(t.TempDir())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	cfg.Host = config.HostLoop
	app, err := New(target.NewMemory(), cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	app.Close()
	select {
	case <-app.loopDone:
	case <-time.After(time.Second):
		t.Fatal("loop goroutine still running after Close")
	}
	if err := app.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
