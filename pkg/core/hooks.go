package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-drift/weave/pkg/errors"
	"github.com/go-drift/weave/pkg/target"
)

// RenderContext is bound to one fiber for the duration of one component
// render. Hooks take it explicitly and fail with ErrNoActiveRender once the
// render has returned.
type RenderContext struct {
	fiber  *Fiber
	sched  func(*Fiber)
	active bool
}

// Props returns the props the component was rendered with.
func (c *RenderContext) Props() Props {
	return c.fiber.props
}

// Children returns the children passed to the component by its caller.
func (c *RenderContext) Children() []*Fiber {
	return c.fiber.passed
}

type hookKind int

const (
	kindState hookKind = iota
	kindEffect
)

func (k hookKind) String() string {
	if k == kindEffect {
		return "effect"
	}
	return "state"
}

// nextSlot consumes the fiber's next hook slot, checking it against the
// shape recorded by the previous generation.
func (c *RenderContext) nextSlot(kind hookKind) (*Fiber, int) {
	if c == nil || !c.active || c.fiber == nil {
		name := ""
		if c != nil && c.fiber != nil {
			name = c.fiber.typ.String()
		}
		panic(&errors.HookError{Component: name, Slot: -1, Err: errors.ErrNoActiveRender})
	}
	f := c.fiber
	slot := f.hookCursor
	f.hookCursor++

	if ref := f.old; ref != nil && ref.rendered {
		if slot >= ref.hookCount {
			panic(&errors.HookError{
				Component: f.typ.String(),
				Slot:      slot,
				Detail:    fmt.Sprintf("previous render called %d hooks", ref.hookCount),
				Err:       errors.ErrHookOrder,
			})
		}
		prevKind := kindState
		if slotAt(ref.sideEffects, slot) != nil {
			prevKind = kindEffect
		}
		if prevKind != kind {
			panic(&errors.HookError{
				Component: f.typ.String(),
				Slot:      slot,
				Detail:    fmt.Sprintf("want %s, previous render had %s", kind, prevKind),
				Err:       errors.ErrHookOrder,
			})
		}
	}
	return f, slot
}

// finishHooks validates the hook count of a completed render and trims the
// slot lists to it.
func finishHooks(f *Fiber) error {
	if ref := f.old; ref != nil && ref.rendered && f.hookCursor != ref.hookCount {
		return &errors.HookError{
			Component: f.typ.String(),
			Slot:      f.hookCursor,
			Detail:    fmt.Sprintf("rendered %d hooks, previous render called %d", f.hookCursor, ref.hookCount),
			Err:       errors.ErrHookOrder,
		}
	}
	f.hookCount = f.hookCursor
	f.hookStates = resize(f.hookStates, f.hookCount)
	f.sideEffects = resize(f.sideEffects, f.hookCount)
	f.rendered = true
	return nil
}

func slotAt[T any](list []*T, i int) *T {
	if i < len(list) {
		return list[i]
	}
	return nil
}

func setSlot[T any](list *[]*T, i int, v *T) {
	*list = resize(*list, i+1)
	(*list)[i] = v
}

func resize[T any](list []*T, n int) []*T {
	if len(list) >= n {
		return list[:n]
	}
	return append(list, make([]*T, n-len(list))...)
}

// update is one queued state update: a literal replacement or a function
// of the accumulated value.
type update struct {
	replace bool
	value   any
	apply   func(any) any
}

// updateQueue is shared by every generation of one state slot so setters
// stay valid across renders. latest is the most recently resolved record.
type updateQueue struct {
	mu      sync.Mutex
	pending []update
	latest  *StateHook
	owner   *Fiber
	sched   func(*Fiber)
}

func (q *updateQueue) push(u update) {
	q.mu.Lock()
	q.pending = append(q.pending, u)
	owner, sched := q.owner, q.sched
	q.mu.Unlock()
	if owner != nil && sched != nil {
		sched(owner)
	}
}

// StateHook is the record of one UseState slot for one generation.
type StateHook struct {
	State any
	queue *updateQueue
}

// Pending returns the number of updates queued for the next resolution.
func (h *StateHook) Pending() int {
	h.queue.mu.Lock()
	defer h.queue.mu.Unlock()
	return len(h.queue.pending)
}

// Setter queues updates for a UseState slot. Setters never re-render
// synchronously; they schedule the owning fiber.
type Setter[T any] struct {
	q *updateQueue
}

// Set queues a literal value. At resolution it discards everything folded
// before it.
func (s Setter[T]) Set(v T) {
	s.q.push(update{replace: true, value: v})
}

// Update queues a function of the accumulated value.
func (s Setter[T]) Update(fn func(T) T) {
	s.q.push(update{apply: func(cur any) any {
		v, _ := cur.(T)
		return fn(v)
	}})
}

// UseState returns the slot's current value and its setter. The value is
// the last resolved state (initial on first render) with every queued
// update folded in order.
func UseState[T any](ctx *RenderContext, initial T) (T, Setter[T]) {
	f, slot := ctx.nextSlot(kindState)

	var q *updateQueue
	var base any = initial
	if prior := slotAt(f.hookStates, slot); prior != nil && prior.queue != nil {
		q = prior.queue
		base = prior.State
	} else {
		q = &updateQueue{}
	}

	q.mu.Lock()
	if q.latest != nil {
		base = q.latest.State
	}
	if _, ok := base.(T); !ok && base != nil {
		q.mu.Unlock()
		panic(&errors.HookError{
			Component: f.typ.String(),
			Slot:      slot,
			Detail:    fmt.Sprintf("state type changed from %T", base),
			Err:       errors.ErrHookOrder,
		})
	}
	pending := q.pending
	q.pending = nil
	state := base
	for _, u := range pending {
		if u.replace {
			state = u.value
		} else {
			state = u.apply(state)
		}
	}
	rec := &StateHook{State: state, queue: q}
	q.latest = rec
	q.owner = f
	q.sched = ctx.sched
	q.mu.Unlock()

	setSlot(&f.hookStates, slot, rec)
	v, _ := state.(T)
	return v, Setter[T]{q: q}
}

// Deps lists effect dependencies. A nil Deps re-runs the effect after every
// commit; an empty Deps runs it once.
type Deps []any

// EffectHook is the record of one effect slot for one generation.
type EffectHook struct {
	Deps    Deps
	Changed bool

	run     func(context.Context) (func(), <-chan func())
	cleanup func()
	waiting <-chan func()
	ranIn   uint64
}

// due reports whether the effect runs in the given commit. Effects without
// deps run once per commit, whichever fiber started it.
func (e *EffectHook) due(commit uint64) bool {
	return e.Changed || (e.Deps == nil && e.ranIn != commit)
}

// HasCleanup reports whether a cleanup from a previous run is pending.
func (e *EffectHook) HasCleanup() bool {
	return e.cleanup != nil
}

// UseEffect declares a side effect run after commit when deps changed. The
// returned function, if any, is the cleanup run before the next execution
// and when the fiber is deleted.
func UseEffect(ctx *RenderContext, effect func() func(), deps Deps) {
	useEffect(ctx, func(context.Context) (func(), <-chan func()) {
		return effect(), nil
	}, deps)
}

// UseAsyncEffect declares an effect whose completion is signalled on the
// returned channel, which delivers the cleanup (or nil) and may be closed.
// The effects pass waits for it before running the next effect.
func UseAsyncEffect(ctx *RenderContext, effect func(context.Context) <-chan func(), deps Deps) {
	useEffect(ctx, func(c context.Context) (func(), <-chan func()) {
		return nil, effect(c)
	}, deps)
}

func useEffect(ctx *RenderContext, run func(context.Context) (func(), <-chan func()), deps Deps) {
	f, slot := ctx.nextSlot(kindEffect)

	var prior *EffectHook
	if f.old != nil {
		prior = slotAt(f.old.sideEffects, slot)
	}
	rec := &EffectHook{
		Deps:    deps,
		Changed: prior == nil || deps == nil || prior.Deps == nil || !depsEqual(prior.Deps, deps),
		run:     run,
	}
	if prior != nil {
		rec.cleanup = prior.cleanup
	}
	setSlot(&f.sideEffects, slot, rec)
}

func depsEqual(a, b Deps) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !target.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
