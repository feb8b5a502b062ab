package testing

import (
	"errors"
	"testing"
	"time"

	"github.com/go-drift/weave/pkg/core"
)

func TestTester_Mount(t *testing.T) {
	tester := NewTesterWithT(t)
	if err := tester.Mount(core.CreateElement(counter, core.Props{"id": "c"})); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	want := `<root><div id="c"><span>count 0</span><button>inc</button></div></root>`
	if got := tester.HTML(); got != want {
		t.Errorf("HTML = %q, want %q", got, want)
	}
	if tester.Runtime().State() != core.StateIdle {
		t.Errorf("State = %v, want idle", tester.Runtime().State())
	}
}

func TestTester_FireAndPump(t *testing.T) {
	tester := NewTesterWithT(t)
	if err := tester.Mount(core.CreateElement(counter, nil)); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	for range 2 {
		n, err := tester.Fire(ByTag("button"), "click", nil)
		if err != nil || n != 1 {
			t.Fatalf("Fire = %d, %v", n, err)
		}
	}
	if !tester.Runtime().NeedsWork() {
		t.Fatal("expected pending work after click")
	}
	if err := tester.Pump(); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	if !tester.Find(ByText("count 2")).Exists() {
		t.Errorf("expected count 2, got %q", tester.HTML())
	}
}

func TestTester_FireNoMatch(t *testing.T) {
	tester := NewTesterWithT(t)
	if err := tester.Mount(core.H("div", nil)); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if _, err := tester.Fire(ByTag("button"), "click", nil); err == nil {
		t.Error("expected error for missing node")
	}
}

func TestTester_PumpAndSettle(t *testing.T) {
	var set core.Setter[int]
	ticker := core.Define("Ticker", func(ctx *core.RenderContext, _ core.Props) *core.Fiber {
		n, s := core.UseState(ctx, 0)
		set = s
		core.UseEffect(ctx, func() func() {
			if n < 3 {
				set.Set(n + 1)
			}
			return nil
		}, core.Deps{n})
		return core.Text(n)
	})

	tester := NewTesterWithT(t)
	tester.Runtime().Render(core.CreateElement(ticker, nil), tester.Container())
	if err := tester.PumpAndSettle(time.Second); err != nil {
		t.Fatalf("PumpAndSettle: %v", err)
	}
	if got := tester.HTML(); got != "<root>3</root>" {
		t.Errorf("HTML = %q", got)
	}
}

func TestTester_PumpAndSettleTimeout(t *testing.T) {
	spinner := core.Define("Spinner", func(ctx *core.RenderContext, _ core.Props) *core.Fiber {
		n, set := core.UseState(ctx, 0)
		core.UseEffect(ctx, func() func() {
			set.Set(n + 1)
			return nil
		}, nil)
		return core.Text(n)
	})

	tester := NewTester()
	tester.Runtime().Render(core.CreateElement(spinner, nil), tester.Container())
	start := tester.Clock().Now()
	err := tester.PumpAndSettle(100 * time.Millisecond)
	if !errors.Is(err, ErrSettleTimeout) {
		t.Fatalf("PumpAndSettle err = %v, want ErrSettleTimeout", err)
	}
	if elapsed := tester.Clock().Now().Sub(start); elapsed < 100*time.Millisecond {
		t.Errorf("clock advanced %v, want at least 100ms", elapsed)
	}
}

func TestTester_CleanupRunsEffectCleanups(t *testing.T) {
	var cleaned bool
	comp := core.Define("Cleanup", func(ctx *core.RenderContext, _ core.Props) *core.Fiber {
		core.UseEffect(ctx, func() func() {
			return func() { cleaned = true }
		}, core.Deps{})
		return core.H("p", nil)
	})

	tester := NewTester()
	if err := tester.Mount(core.CreateElement(comp, nil)); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	tester.Cleanup()

	if !cleaned {
		t.Error("cleanup did not run")
	}
	if got := tester.HTML(); got != "<root></root>" {
		t.Errorf("HTML after cleanup = %q", got)
	}
}

func TestFakeClock_AutoAdvance(t *testing.T) {
	clk := NewFakeClock()
	start := clk.Now()
	clk.AutoAdvance(time.Millisecond)

	a, b := clk.Now(), clk.Now()
	if a != start || b.Sub(a) != time.Millisecond {
		t.Errorf("readings %v, %v from %v", a, b, start)
	}

	clk.AutoAdvance(0)
	clk.Advance(time.Second)
	if got := clk.Now().Sub(start); got != time.Second+2*time.Millisecond {
		t.Errorf("elapsed = %v", got)
	}
}

func TestTester_ClockDrivesCycleTiming(t *testing.T) {
	var stats []core.CycleStats
	tester := NewTesterWithT(t, core.WithObserver(core.ObserverFunc(func(s core.CycleStats) {
		stats = append(stats, s)
	})))
	tester.Clock().AutoAdvance(time.Millisecond)

	if err := tester.Mount(core.H("div", nil, "x")); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("observed %d cycles", len(stats))
	}
	if d := stats[0].RenderDuration; d <= 0 || d%time.Millisecond != 0 {
		t.Errorf("RenderDuration = %v, want whole fake milliseconds", d)
	}
}
