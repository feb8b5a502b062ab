package testing

import (
	"fmt"

	"github.com/go-drift/weave/pkg/core"
)

var counter = core.Define("Counter", func(ctx *core.RenderContext, props core.Props) *core.Fiber {
	n, set := core.UseState(ctx, 0)
	return core.H("div", core.Props{"id": props["id"]},
		core.H("span", nil, fmt.Sprintf("count %d", n)),
		core.H("button", core.Props{"onClick": func() { set.Update(func(v int) int { return v + 1 }) }}, "inc"),
	)
})

// fakeT records failures instead of aborting.
type fakeT struct {
	fatal  string
	errors []string
}

func (f *fakeT) Helper()      {}
func (f *fakeT) Name() string { return "TestFake" }

func (f *fakeT) Fatalf(format string, args ...any) {
	if f.fatal == "" {
		f.fatal = fmt.Sprintf(format, args...)
	}
}

func (f *fakeT) Errorf(format string, args ...any) {
	f.errors = append(f.errors, fmt.Sprintf(format, args...))
}
