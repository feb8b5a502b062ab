// Package platform provides the host scheduling primitives the runtime
// yields to between work cycles.
//
// A Host runs a callback once the host is otherwise idle. IdleHost prefers a
// native primitive registered with RegisterDispatch and falls back to a
// fixed-delay timer, so a scheduled callback always eventually fires.
package platform

import (
	"sync"
	"time"

	"github.com/go-drift/weave/pkg/errors"
)

// DefaultIdleDelay is the timer fallback delay used when no native idle
// primitive is registered.
const DefaultIdleDelay = time.Millisecond

// Host runs callbacks when the host is otherwise idle.
type Host interface {
	Run(callback func())
}

// HostFunc adapts a function to the Host interface.
type HostFunc func(callback func())

// Run calls f(callback).
func (f HostFunc) Run(callback func()) {
	f(callback)
}

// TimerHost runs each callback after a fixed delay on a timer goroutine.
type TimerHost struct {
	Delay time.Duration
}

// Run schedules callback after the configured delay.
func (h TimerHost) Run(callback func()) {
	if callback == nil {
		return
	}
	delay := h.Delay
	if delay <= 0 {
		delay = DefaultIdleDelay
	}
	time.AfterFunc(delay, func() {
		defer errors.Recover("platform.TimerHost")
		callback()
	})
}

// IdleHost uses the registered dispatch primitive when available and the
// timer fallback otherwise.
type IdleHost struct {
	Fallback TimerHost
}

// Run schedules callback through Dispatch, or the fallback timer.
func (h IdleHost) Run(callback func()) {
	if Dispatch(callback) {
		return
	}
	h.Fallback.Run(callback)
}

// ManualHost queues callbacks until Drain is called. It gives tests full
// control over when the runtime resumes.
type ManualHost struct {
	mu      sync.Mutex
	pending []func()
}

// Run queues callback.
func (h *ManualHost) Run(callback func()) {
	if callback == nil {
		return
	}
	h.mu.Lock()
	h.pending = append(h.pending, callback)
	h.mu.Unlock()
}

// Pending returns the number of queued callbacks.
func (h *ManualHost) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Drain runs the callbacks queued before the call and returns how many ran.
// Callbacks queued while draining wait for the next Drain.
func (h *ManualHost) Drain() int {
	h.mu.Lock()
	queued := h.pending
	h.pending = nil
	h.mu.Unlock()
	for _, fn := range queued {
		fn()
	}
	return len(queued)
}
