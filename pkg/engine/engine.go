// Package engine wires configuration, the core runtime, its host and the
// diagnostics surfaces (cycle tracing, Prometheus metrics, debug server)
// into a single App.
package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/go-drift/weave/pkg/config"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/errors"
	"github.com/go-drift/weave/pkg/platform"
	"github.com/go-drift/weave/pkg/target"
)

// Option configures an App.
type Option func(*App)

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithHost replaces the host selected by scheduler.host.
func WithHost(h platform.Host) Option {
	return func(a *App) { a.host = h }
}

// WithRuntimeOptions passes extra options to core.NewRuntime.
func WithRuntimeOptions(opts ...core.Option) Option {
	return func(a *App) { a.runtimeOpts = append(a.runtimeOpts, opts...) }
}

// App is a runtime bound to a render target with its diagnostics.
type App struct {
	cfg         *config.Resolved
	logger      *slog.Logger
	host        platform.Host
	runtimeOpts []core.Option

	runtime *core.Runtime
	trace   *CycleTraceBuffer
	metrics *Metrics

	loop       *platform.Loop
	stopLoop   context.CancelFunc
	loopDone   chan struct{}
	debug      debugServer
	closeOnce  sync.Once
	lastMu     sync.Mutex
	lastCycle  core.CycleStats
	haveCycles bool
}

// New creates an App rendering into t. A nil cfg uses the defaults.
func New(t target.Target, cfg *config.Resolved, opts ...Option) (*App, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.Default().Resolve(""); err != nil {
			return nil, err
		}
	}
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = NewLogger(cfg, os.Stderr)
	}
	a.logger = a.logger.With("app", cfg.AppName)
	a.trace = NewCycleTraceBuffer(cfg.TraceSamples, cfg.SlowCycle)
	var handler errors.ErrorHandler = &errors.LogHandler{Logger: a.logger, Verbose: cfg.Verbose}
	if cfg.Metrics {
		a.metrics = NewMetrics()
		handler = errors.MultiHandler{handler, a.metrics}
	}
	errors.SetHandler(handler)
	if a.host == nil {
		a.host = a.newHost()
	}

	rtOpts := []core.Option{
		core.WithHost(a.host),
		core.WithLogger(a.logger),
		core.WithObserver(a),
	}
	a.runtime = core.NewRuntime(t, append(rtOpts, a.runtimeOpts...)...)

	if cfg.DebugServerPort > 0 {
		if _, err := a.StartDebugServer(cfg.DebugServerPort); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.logger.Debug("app created", "runtime", a.runtime.ID(), "host", cfg.Host)
	return a, nil
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(cfg *config.Resolved, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel, AddSource: cfg.Verbose}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (a *App) newHost() platform.Host {
	switch a.cfg.Host {
	case config.HostTimer:
		return platform.TimerHost{Delay: a.cfg.IdleDelay}
	case config.HostLoop:
		ctx, cancel := context.WithCancel(context.Background())
		a.loop = platform.NewLoop()
		a.stopLoop = cancel
		a.loopDone = make(chan struct{})
		go func() {
			defer close(a.loopDone)
			a.loop.Start(ctx)
		}()
		return a.loop
	default:
		return platform.IdleHost{Fallback: platform.TimerHost{Delay: a.cfg.IdleDelay}}
	}
}

// ObserveCycle feeds the trace buffer and metrics. It is registered as the
// runtime's cycle observer.
func (a *App) ObserveCycle(s core.CycleStats) {
	a.trace.Add(SampleFromStats(s), s.Total())
	if a.metrics != nil {
		a.metrics.ObserveCycle(s)
	}
	a.lastMu.Lock()
	a.lastCycle = s
	a.haveCycles = true
	a.lastMu.Unlock()

	if s.Total() > a.trace.Threshold() {
		a.logger.Warn("slow cycle",
			"render", s.RenderDuration,
			"commit", s.CommitDuration,
			"rendered", s.Rendered,
		)
	}
}

// LastCycle returns the most recently observed cycle.
func (a *App) LastCycle() (core.CycleStats, bool) {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	return a.lastCycle, a.haveCycles
}

// Render renders el into container.
func (a *App) Render(el *core.Fiber, container target.Node) {
	a.runtime.Render(el, container)
}

// Runtime returns the underlying runtime.
func (a *App) Runtime() *core.Runtime {
	return a.runtime
}

// Trace returns the cycle trace buffer.
func (a *App) Trace() *CycleTraceBuffer {
	return a.trace
}

// Metrics returns the metrics, or nil when disabled.
func (a *App) Metrics() *Metrics {
	return a.metrics
}

// Config returns the resolved configuration.
func (a *App) Config() *config.Resolved {
	return a.cfg
}

// Close stops the debug server and the loop host, if running.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.stopDebugServer()
		if a.stopLoop != nil {
			a.stopLoop()
			<-a.loopDone
		}
	})
	return nil
}
