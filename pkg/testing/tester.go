package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/target"
)

// ErrSettleTimeout is returned when PumpAndSettle exceeds its timeout.
var ErrSettleTimeout = errors.New("PumpAndSettle timed out: runtime did not settle")

// frameDuration is the fake time that elapses between settle iterations.
const frameDuration = 16 * time.Millisecond

// Tester mounts fibers into an in-memory target and drives the runtime
// synchronously. No host is installed, so nothing runs between Pump calls.
type Tester struct {
	mem       *target.Memory
	container *target.MemNode
	runtime   *core.Runtime
	clock     *FakeClock
	ctx       context.Context
}

// NewTester creates a tester with a fresh target and fake clock. Extra
// options are passed to core.NewRuntime after the tester's own.
func NewTester(opts ...core.Option) *Tester {
	clk := NewFakeClock()
	mem := target.NewMemory()
	base := []core.Option{
		core.WithClock(clk.Now),
		core.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return &Tester{
		mem:       mem,
		container: mem.NewContainer("root"),
		runtime:   core.NewRuntime(mem, append(base, opts...)...),
		clock:     clk,
		ctx:       context.Background(),
	}
}

// NewTesterWithT creates a tester that unmounts its tree via t.Cleanup and
// uses t.Context for pumping. This is the recommended constructor for tests.
func NewTesterWithT(t *testing.T, opts ...core.Option) *Tester {
	tester := NewTester(opts...)
	tester.ctx = t.Context()
	t.Cleanup(tester.Cleanup)
	return tester
}

// Cleanup unmounts the tree so effect cleanups run.
func (t *Tester) Cleanup() {
	if t.runtime.Root() == nil || t.runtime.Err() != nil {
		return
	}
	t.runtime.Render(nil, t.container)
	t.runtime.Flush(context.Background())
}

// Mount renders el into the tester's container and pumps until idle.
// Mounting again diffs against the committed tree.
func (t *Tester) Mount(el *core.Fiber) error {
	t.runtime.Render(el, t.container)
	return t.runtime.Flush(t.ctx)
}

// Pump runs a single work step and reports its error.
func (t *Tester) Pump() error {
	return t.runtime.Step(t.ctx)
}

// PumpAndSettle pumps until the runtime has no pending work, advancing the
// fake clock by one frame between iterations. It returns ErrSettleTimeout
// if work remains after timeout of fake time.
func (t *Tester) PumpAndSettle(timeout time.Duration) error {
	var elapsed time.Duration
	for elapsed < timeout {
		if err := t.Pump(); err != nil {
			return err
		}
		if !t.runtime.NeedsWork() && t.runtime.State() == core.StateIdle {
			return nil
		}
		t.clock.Advance(frameDuration)
		elapsed += frameDuration
	}
	return ErrSettleTimeout
}

// Fire dispatches event with payload to the host node of the first fiber
// matched by finder and returns the number of listeners invoked. It does
// not pump.
func (t *Tester) Fire(finder Finder, event string, payload any) (int, error) {
	node := t.Find(finder).Node()
	if node == nil {
		return 0, fmt.Errorf("fire %s: no host node for %s", event, finder.Description())
	}
	return t.mem.Dispatch(node, event, payload), nil
}

// Find evaluates a finder against the current fiber tree.
func (t *Tester) Find(finder Finder) FinderResult {
	root := t.runtime.Root()
	if root == nil {
		return FinderResult{finder: finder}
	}
	return FinderResult{fibers: finder.Evaluate(root), finder: finder}
}

// Runtime returns the runtime under test.
func (t *Tester) Runtime() *core.Runtime {
	return t.runtime
}

// Target returns the in-memory target.
func (t *Tester) Target() *target.Memory {
	return t.mem
}

// Container returns the render container.
func (t *Tester) Container() *target.MemNode {
	return t.container
}

// HTML serializes the container.
func (t *Tester) HTML() string {
	return target.HTML(t.container)
}

// Clock returns the fake clock driving cycle timing.
func (t *Tester) Clock() *FakeClock {
	return t.clock
}
