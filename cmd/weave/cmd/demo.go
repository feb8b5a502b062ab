package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-drift/weave/pkg/config"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/engine"
	"github.com/go-drift/weave/pkg/target"
)

func init() {
	RegisterCommand(&Command{
		Name:  "demo",
		Short: "Run a demo app against the in-memory target",
		Long: `Run a small ticking app against the in-memory target.

The app uses the current project's weave.yaml when run inside a module and
the defaults otherwise. It runs until the duration elapses or it is
interrupted, then prints the final fiber tree and a cycle summary.

Examples:
  weave demo                  Run for 5s
  weave demo 30s --port 9090  Run for 30s with the debug server on :9090`,
		Usage: "weave demo [duration] [--port N]",
		Run:   runDemo,
	})
}

type demoOptions struct {
	duration time.Duration
	port     int
}

func parseDemoArgs(args []string) (demoOptions, error) {
	opts := demoOptions{duration: 5 * time.Second, port: -1}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--port":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--port requires a value")
			}
			i++
			arg = "--port=" + args[i]
			fallthrough
		case strings.HasPrefix(arg, "--port="):
			port, err := strconv.Atoi(strings.TrimPrefix(arg, "--port="))
			if err != nil || port < 0 || port > 65535 {
				return opts, fmt.Errorf("invalid port %q", strings.TrimPrefix(arg, "--port="))
			}
			opts.port = port
		default:
			d, err := time.ParseDuration(arg)
			if err != nil || d <= 0 {
				return opts, fmt.Errorf("invalid duration %q", arg)
			}
			opts.duration = d
		}
	}
	return opts, nil
}

func loadDemoConfig() (*config.Resolved, error) {
	if root, err := config.FindProjectRoot("."); err == nil {
		return config.Resolve(root)
	}
	return config.Default().Resolve("")
}

// ticker re-renders every props["interval"] and keeps the last few ticks.
var ticker = core.Define("Ticker", func(ctx *core.RenderContext, props core.Props) *core.Fiber {
	ticks, setTicks := core.UseState(ctx, []string(nil))
	interval, _ := props["interval"].(time.Duration)

	core.UseEffect(ctx, func() func() {
		t := time.NewTicker(interval)
		done := make(chan struct{})
		go func() {
			for {
				select {
				case now := <-t.C:
					setTicks.Update(func(prev []string) []string {
						next := append([]string{now.Format("15:04:05.000")}, prev...)
						return next[:min(len(next), 5)]
					})
				case <-done:
					return
				}
			}
		}()
		return func() {
			t.Stop()
			close(done)
		}
	}, core.Deps{interval})

	items := make([]*core.Fiber, len(ticks))
	for i, ts := range ticks {
		items[i] = core.H("li", nil, ts)
	}
	return core.H("section", nil,
		core.H("h1", nil, "ticks: ", len(ticks)),
		core.H("ul", nil, items),
	)
})

func runDemo(args []string) error {
	opts, err := parseDemoArgs(args)
	if err != nil {
		return err
	}
	cfg, err := loadDemoConfig()
	if err != nil {
		return err
	}
	if opts.port >= 0 {
		cfg.DebugServerPort = opts.port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	mem := target.NewMemory()
	app, err := engine.New(mem, cfg, engine.WithLogger(engine.NewLogger(cfg, os.Stderr)))
	if err != nil {
		return err
	}
	defer app.Close()

	container := mem.NewContainer("main")
	app.Render(core.CreateElement(ticker, core.Props{"interval": 250 * time.Millisecond}), container)
	<-ctx.Done()

	// Unmount so the ticker goroutine stops, then give the host a moment
	// to commit the deletion.
	app.Render(nil, container)
	deadline := time.Now().Add(time.Second)
	for app.Runtime().NeedsWork() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if tree, ok := app.Runtime().DescribeTree(); ok {
		fmt.Fprintln(stdout, "Final tree:")
		printInfo(tree, 1)
	}
	printTimeline(app.Trace().Snapshot())
	return nil
}
