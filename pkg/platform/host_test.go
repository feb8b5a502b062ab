package platform

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatch_Unregistered(t *testing.T) {
	RegisterDispatch(nil)
	if Dispatch(func() {}) {
		t.Error("Dispatch should fail without a registered primitive")
	}
}

func TestIdleHost_PrefersDispatch(t *testing.T) {
	var queued []func()
	RegisterDispatch(func(cb func()) { queued = append(queued, cb) })
	defer RegisterDispatch(nil)

	ran := false
	IdleHost{}.Run(func() { ran = true })
	if len(queued) != 1 {
		t.Fatalf("expected callback to go through dispatch, queued %d", len(queued))
	}
	queued[0]()
	if !ran {
		t.Error("callback did not run")
	}
}

func TestIdleHost_FallsBackToTimer(t *testing.T) {
	RegisterDispatch(nil)
	done := make(chan struct{})
	IdleHost{Fallback: TimerHost{Delay: time.Millisecond}}.Run(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fallback timer never fired")
	}
}

func TestManualHost_DrainRunsOnlyQueued(t *testing.T) {
	h := &ManualHost{}
	count := 0
	h.Run(func() {
		count++
		h.Run(func() { count++ })
	})

	if n := h.Drain(); n != 1 {
		t.Errorf("Drain ran %d, want 1", n)
	}
	if h.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", h.Pending())
	}
	h.Drain()
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestLoop_RunsSeriallyAndStops(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Start(ctx) }()

	var inFlight, maxInFlight, total atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		l.Run(func() {
			n := inFlight.Add(1)
			if n > maxInFlight.Load() {
				maxInFlight.Store(n)
			}
			inFlight.Add(-1)
			if total.Add(1) == 50 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not run all callbacks")
	}
	if maxInFlight.Load() != 1 {
		t.Errorf("callbacks overlapped: max in flight %d", maxInFlight.Load())
	}

	cancel()
	if err := <-errc; err != context.Canceled {
		t.Errorf("Start returned %v, want context.Canceled", err)
	}
}

func TestLoop_RecoversPanics(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Start(ctx)

	done := make(chan struct{})
	l.Run(func() { panic("boom") })
	l.Run(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop stopped after a panicking callback")
	}
}

func TestLoop_Stop(t *testing.T) {
	l := NewLoop()
	errc := make(chan error, 1)
	started := make(chan struct{})
	go func() { errc <- l.Start(context.Background()) }()
	l.Run(func() { close(started) })
	<-started

	l.Stop()
	select {
	case err := <-errc:
		if err != context.Canceled {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not end the loop")
	}
}
