package platform

import (
	"context"
	"sync"

	"github.com/go-drift/weave/pkg/errors"
)

// ErrLoopRunning is returned when Start is called on a loop that is already running.
var ErrLoopRunning = errors.New("platform: loop is already running")

// Loop is a Host that runs every callback serially on the goroutine that
// called Start. Run may be called from any goroutine and never blocks.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	running bool
	cancel  context.CancelFunc
}

// NewLoop creates a stopped loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Run queues callback for the loop goroutine.
func (l *Loop) Run(callback func()) {
	if callback == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, callback)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Start processes callbacks until ctx is done or Stop is called. It
// returns ctx.Err() or context.Canceled after Stop.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrLoopRunning
	}
	l.running = true
	ctx, l.cancel = context.WithCancel(ctx)
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.cancel()
		l.cancel = nil
		l.mu.Unlock()
	}()

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			l.invoke(fn)
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Stop ends a running Start. Queued callbacks stay queued for the next Start.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (l *Loop) invoke(fn func()) {
	defer errors.Recover("platform.Loop")
	fn()
}
