package core

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-drift/weave/pkg/errors"
	"github.com/go-drift/weave/pkg/platform"
	"github.com/go-drift/weave/pkg/target"
)

var (
	tracer = otel.Tracer("weave.core")
	meter  = otel.Meter("weave.core")

	unitsCounter, _ = meter.Int64Counter("weave.units_rendered",
		metric.WithDescription("Render units performed by the work loop"))
)

// maxFlushSteps bounds Flush against effects that schedule work on every
// commit. Work scheduled during render is bounded per Step by
// maxRendersPerCycle instead.
const maxFlushSteps = 1000

// ErrFlushLimit is returned by Flush when the runtime is still busy after
// maxFlushSteps cycles.
var ErrFlushLimit = errors.New("core: flush did not settle")

// maxRendersPerCycle bounds how often one component renders before a
// commit. A component that sets its own state on every render would
// otherwise keep Step, and the step lock, busy forever.
const maxRendersPerCycle = 50

// ErrRenderLoop is wrapped in the RenderError of a component that exceeded
// maxRendersPerCycle.
var ErrRenderLoop = errors.New("core: too many renders in one cycle")

// State is the work loop phase.
type State int32

const (
	StateIdle State = iota
	StateWorking
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateWorking:
		return "working"
	case StateCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// CycleStats describes one render-and-commit cycle.
type CycleStats struct {
	Start          time.Time
	Rendered       int
	Placements     int
	Updates        int
	Deletions      int
	EffectsRun     int
	RenderDuration time.Duration
	CommitDuration time.Duration
	Err            error
}

// Total returns the combined render and commit time.
func (s CycleStats) Total() time.Duration {
	return s.RenderDuration + s.CommitDuration
}

// CycleObserver is notified after every commit attempt.
type CycleObserver interface {
	ObserveCycle(CycleStats)
}

// ObserverFunc adapts a function to CycleObserver.
type ObserverFunc func(CycleStats)

// ObserveCycle calls f(s).
func (f ObserverFunc) ObserveCycle(s CycleStats) {
	f(s)
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithHost sets the host used to resume the work loop. Without a host the
// runtime is driven only by Step and Flush.
func WithHost(h platform.Host) Option {
	return func(r *Runtime) { r.host = h }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver registers a cycle observer.
func WithObserver(o CycleObserver) Option {
	return func(r *Runtime) { r.observer = o }
}

// WithClock replaces time.Now for cycle timing.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		if now != nil {
			r.now = now
		}
	}
}

// Runtime owns one fiber tree bound to a render target. It renders in
// units, resuming through the host between invocations, and commits all
// pending mutations once the work is exhausted.
//
// Step is serialized; Schedule and state setters may be called from any
// goroutine.
type Runtime struct {
	id       string
	target   target.Target
	host     platform.Host
	logger   *slog.Logger
	observer CycleObserver
	now      func() time.Time

	stepMu    sync.Mutex
	root      *Fiber
	cursor    *Fiber
	workRoot  *Fiber
	deletions []*Fiber
	dirty     bool
	commits   uint64
	renders   map[*Fiber]int
	halted    error
	stats     CycleStats
	state     atomic.Int32

	mu         sync.Mutex
	pending    []*Fiber
	pendingSet map[*Fiber]bool
	armed      bool
	parked     bool
}

// NewRuntime creates an idle runtime rendering into t.
func NewRuntime(t target.Target, opts ...Option) *Runtime {
	r := &Runtime{
		id:     uuid.NewString(),
		target: t,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("runtime", r.id)
	return r
}

// ID returns the runtime's instance id.
func (r *Runtime) ID() string {
	return r.id
}

// Target returns the render target.
func (r *Runtime) Target() target.Target {
	return r.target
}

// State returns the current work loop phase.
func (r *Runtime) State() State {
	return State(r.state.Load())
}

// Err returns the render error that halted the runtime, if any.
func (r *Runtime) Err() error {
	r.stepMu.Lock()
	defer r.stepMu.Unlock()
	return r.halted
}

// Root returns the fiber bound to the render container, or nil before the
// first Render.
func (r *Runtime) Root() *Fiber {
	r.stepMu.Lock()
	defer r.stepMu.Unlock()
	return r.root
}

// DescribeTree describes the current tree while holding the step lock. ok
// is false before the first Render.
func (r *Runtime) DescribeTree() (info Info, ok bool) {
	r.stepMu.Lock()
	defer r.stepMu.Unlock()
	if r.root == nil {
		return Info{}, false
	}
	return Describe(r.root), true
}

// Render makes el the sole child of container and schedules the root. A
// later Render into the same container diffs against the committed tree.
func (r *Runtime) Render(el *Fiber, container target.Node) {
	r.stepMu.Lock()
	if r.root == nil || r.root.handle != container {
		r.root = &Fiber{typ: RootTag, props: Props{}, handle: container}
	}
	var children []*Fiber
	if el != nil {
		children = []*Fiber{el}
	}
	r.root.SetChildren(children)
	root := r.root
	r.stepMu.Unlock()

	r.Schedule(root)
}

// Schedule marks f as needing a re-render and arms the host if the runtime
// was idle. Scheduling a fiber that is already pending is a no-op.
func (r *Runtime) Schedule(f *Fiber) {
	if f == nil {
		return
	}
	r.mu.Lock()
	if r.pendingSet[f] {
		r.mu.Unlock()
		return
	}
	if r.pendingSet == nil {
		r.pendingSet = make(map[*Fiber]bool)
	}
	r.pendingSet[f] = true
	r.pending = append(r.pending, f)
	r.mu.Unlock()

	r.arm()
}

// NeedsWork reports whether pending fibers, an unfinished traversal, or an
// uncommitted cycle remain.
func (r *Runtime) NeedsWork() bool {
	r.mu.Lock()
	hasPending := len(r.pending) > 0
	r.mu.Unlock()
	return hasPending || r.State() != StateIdle
}

// Wake re-arms the host after a commit error stopped it.
func (r *Runtime) Wake() {
	r.mu.Lock()
	r.parked = false
	r.mu.Unlock()
	if r.NeedsWork() {
		r.arm()
	}
}

func (r *Runtime) arm() {
	r.mu.Lock()
	if r.armed || r.parked || r.host == nil {
		r.mu.Unlock()
		return
	}
	r.armed = true
	r.mu.Unlock()
	r.host.Run(r.tick)
}

// tick is the host callback: one Step, then re-arm while work remains.
func (r *Runtime) tick() {
	r.mu.Lock()
	r.armed = false
	r.mu.Unlock()

	if err := r.Step(context.Background()); err != nil {
		errors.ReportAny("core.Step", err)
		r.mu.Lock()
		r.parked = true
		r.mu.Unlock()
		return
	}
	if r.NeedsWork() {
		r.arm()
	}
}

// Step performs every available unit of work and commits when traversal
// and the pending set are both exhausted. A commit that failed earlier is
// resumed without re-applying the mutations it already made.
func (r *Runtime) Step(ctx context.Context) (err error) {
	r.stepMu.Lock()
	defer r.stepMu.Unlock()
	if r.halted != nil {
		return r.halted
	}

	ctx, span := tracer.Start(ctx, "core.Step",
		trace.WithAttributes(attribute.String("weave.runtime", r.id)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	if r.State() == StateCommitting {
		return r.finishCycle(ctx)
	}

	if err := r.work(ctx); err != nil {
		r.halted = err
		r.cursor, r.workRoot, r.renders = nil, nil, nil
		r.state.Store(int32(StateIdle))
		r.stats.Err = err
		r.observe()
		r.logger.Error("render halted", "err", err)
		return err
	}
	if !r.dirty {
		r.state.Store(int32(StateIdle))
		return nil
	}
	r.commits++
	r.state.Store(int32(StateCommitting))
	return r.finishCycle(ctx)
}

func (r *Runtime) work(ctx context.Context) error {
	start := r.now()
	if r.stats.Start.IsZero() {
		r.stats.Start = start
	}
	rendered := 0
	defer func() {
		r.stats.RenderDuration += r.now().Sub(start)
		if rendered > 0 {
			unitsCounter.Add(ctx, int64(rendered))
		}
	}()

	for {
		if r.cursor == nil {
			r.cursor = r.popPending()
			r.workRoot = r.cursor
			if r.cursor == nil {
				return nil
			}
		}
		r.state.Store(int32(StateWorking))
		if err := r.performUnit(r.cursor); err != nil {
			return err
		}
		r.dirty = true
		rendered++
		r.stats.Rendered++
		r.cursor = r.nextUnit(r.cursor)
		if r.cursor != nil {
			r.dropPending(r.cursor)
		} else {
			r.workRoot = nil
		}
	}
}

// popPending returns the oldest pending fiber still attached to the tree.
func (r *Runtime) popPending() *Fiber {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.pending) > 0 {
		f := r.pending[0]
		r.pending[0] = nil
		r.pending = r.pending[1:]
		delete(r.pendingSet, f)
		if r.root != nil && f.attached(r.root) {
			return f
		}
		r.logger.Debug("skipping detached fiber", "fiber", f.String())
	}
	return nil
}

func (r *Runtime) dropPending(f *Fiber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.pendingSet[f] {
		return
	}
	delete(r.pendingSet, f)
	for i, p := range r.pending {
		if p == f {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			break
		}
	}
}

// nextUnit returns f's pre-order successor within the current work root.
func (r *Runtime) nextUnit(f *Fiber) *Fiber {
	if c := f.Child(); c != nil {
		return c
	}
	for cur := f; cur != nil && cur != r.workRoot; cur = cur.parent {
		if s := cur.Sibling(); s != nil {
			return s
		}
	}
	return nil
}

// performUnit renders a component or creates a host node, then reconciles
// the fiber's children.
func (r *Runtime) performUnit(f *Fiber) error {
	if c, ok := f.typ.(*Component); ok {
		if r.renders == nil {
			r.renders = make(map[*Fiber]int)
		}
		r.renders[f]++
		if r.renders[f] > maxRendersPerCycle {
			return &errors.RenderError{
				Component:  c.name,
				Err:        ErrRenderLoop,
				StackTrace: errors.CaptureStack(),
				Timestamp:  r.now(),
			}
		}
		if err := r.renderComponent(f, c); err != nil {
			return err
		}
	} else if f.handle == nil && f.typ != RootTag {
		if err := r.createHandle(f); err != nil {
			return &errors.RenderError{
				Component:  f.typ.String(),
				Err:        err,
				StackTrace: errors.CaptureStack(),
				Timestamp:  r.now(),
			}
		}
	}
	reconcile(f, &r.deletions)
	return nil
}

func (r *Runtime) renderComponent(f *Fiber, c *Component) (err error) {
	ctx := &RenderContext{fiber: f, sched: r.Schedule, active: true}
	defer func() {
		ctx.active = false
		if rec := recover(); rec != nil {
			re := &errors.RenderError{
				Component:  c.name,
				Recovered:  rec,
				StackTrace: errors.CaptureStack(),
				Timestamp:  r.now(),
			}
			if e, ok := rec.(error); ok {
				re.Err = e
			}
			err = re
		}
	}()

	f.hookCursor = 0
	out := c.render(ctx, f.props)
	if err := finishHooks(f); err != nil {
		return &errors.RenderError{
			Component:  c.name,
			Err:        err,
			StackTrace: errors.CaptureStack(),
			Timestamp:  r.now(),
		}
	}
	children := make([]*Fiber, 0, len(out))
	for _, child := range out {
		if child != nil {
			children = append(children, child)
		}
	}
	f.children = children
	return nil
}

func (r *Runtime) createHandle(f *Fiber) error {
	ns := f.Namespace()
	var (
		n   target.Node
		err error
	)
	if f.typ == TextTag {
		n, err = r.target.CreateText("")
	} else {
		n, err = r.target.CreateElement(f.typ.String(), ns)
	}
	if err != nil {
		return err
	}
	f.handle = n
	return target.Patch(r.target, n, ns, nil, f.props)
}

// finishCycle commits and closes the cycle. On failure the runtime stays
// in StateCommitting so the next Step resumes the commit.
func (r *Runtime) finishCycle(ctx context.Context) error {
	if err := r.commit(ctx); err != nil {
		r.stats.Err = err
		r.observe()
		r.stats.Err = nil
		r.logger.Warn("commit failed", "err", err)
		return err
	}
	r.dirty = false
	r.renders = nil
	r.state.Store(int32(StateIdle))
	r.logger.Debug("cycle committed",
		"rendered", r.stats.Rendered,
		"placements", r.stats.Placements,
		"updates", r.stats.Updates,
		"deletions", r.stats.Deletions,
		"effects", r.stats.EffectsRun,
	)
	r.observe()
	r.stats = CycleStats{}
	return nil
}

func (r *Runtime) observe() {
	if r.observer != nil {
		r.observer.ObserveCycle(r.stats)
	}
}

// Flush runs Step until the runtime is idle. It is the synchronous driver
// for tests and hosts without their own scheduling.
func (r *Runtime) Flush(ctx context.Context) error {
	for i := 0; i < maxFlushSteps; i++ {
		if err := r.Step(ctx); err != nil {
			return err
		}
		if !r.NeedsWork() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ErrFlushLimit
}
