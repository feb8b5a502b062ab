package engine

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/errors"
)

// Metrics exports cycle counters and durations on a private registry, so
// several apps in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	cycles    *prometheus.CounterVec
	units     prometheus.Counter
	mutations *prometheus.CounterVec
	effects   prometheus.Counter
	duration  *prometheus.HistogramVec
	reported  *prometheus.CounterVec
}

// NewMetrics creates and registers the weave collectors along with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weave",
			Name:      "cycles_total",
			Help:      "Render-and-commit cycles by result",
		}, []string{"result"}),
		units: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weave",
			Name:      "units_rendered_total",
			Help:      "Fibers performed by the work loop",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weave",
			Name:      "mutations_total",
			Help:      "Committed mutations by effect tag",
		}, []string{"tag"}),
		effects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weave",
			Name:      "effects_run_total",
			Help:      "Effect callbacks invoked during commit",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weave",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent per cycle phase",
			Buckets:   []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066, 0.1, 0.25},
		}, []string{"phase"}),
		reported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weave",
			Name:      "errors_total",
			Help:      "Errors reported to the error handler by kind",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.cycles, m.units, m.mutations, m.effects, m.duration, m.reported,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records one cycle.
func (m *Metrics) ObserveCycle(s core.CycleStats) {
	result := "ok"
	if s.Err != nil {
		result = "error"
	}
	m.cycles.WithLabelValues(result).Inc()
	m.units.Add(float64(s.Rendered))
	m.mutations.WithLabelValues(core.TagPlacement.String()).Add(float64(s.Placements))
	m.mutations.WithLabelValues(core.TagUpdate.String()).Add(float64(s.Updates))
	m.mutations.WithLabelValues(core.TagDeletion.String()).Add(float64(s.Deletions))
	m.effects.Add(float64(s.EffectsRun))
	m.duration.WithLabelValues("render").Observe(s.RenderDuration.Seconds())
	m.duration.WithLabelValues("commit").Observe(s.CommitDuration.Seconds())
}

// HandleError counts a reported error under its kind.
func (m *Metrics) HandleError(err *errors.FiberError) {
	m.reported.WithLabelValues(err.Kind.String()).Inc()
}

// HandlePanic counts a recovered panic.
func (m *Metrics) HandlePanic(*errors.PanicError) {
	m.reported.WithLabelValues(errors.KindPanic.String()).Inc()
}

// HandleRenderError counts a render failure.
func (m *Metrics) HandleRenderError(*errors.RenderError) {
	m.reported.WithLabelValues(errors.KindRender.String()).Inc()
}
