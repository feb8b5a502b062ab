// Package core implements the fiber tree, the positional reconciler, the
// cooperative work loop and the hook subsystem.
//
// # Fibers
//
// A Fiber is one render unit: a host primitive (Tag), a text leaf
// (TextTag), or a component instance (*Component). Fibers are built with
// CreateElement, H and Text:
//
//	app := core.H("ul", core.Props{"className": "list"},
//	    core.H("li", nil, "one"),
//	    core.H("li", nil, 2),
//	)
//
// Child, Sibling and Key are derived from each fiber's parent and the
// parent's children; they are never stored independently.
//
// # Components and hooks
//
// Components are render functions bound to a name. Hooks take the
// RenderContext explicitly and must be called in the same order and number
// on every render of a component:
//
//	var Counter = core.Define("Counter", func(ctx *core.RenderContext, props core.Props) *core.Fiber {
//	    count, setCount := core.UseState(ctx, 0)
//	    core.UseEffect(ctx, func() func() {
//	        log.Println("count is", count)
//	        return nil
//	    }, core.Deps{count})
//	    return core.H("button", core.Props{
//	        "onClick": func() { setCount.Update(func(n int) int { return n + 1 }) },
//	    }, count)
//	})
//
// # Work loop
//
// Runtime renders in units and yields to its platform.Host between
// invocations of Step. Nothing is written to the render target until every
// pending unit has rendered; the commit then applies deletions, placements
// and updates, runs changed effects in tree order, and snapshots the tree
// as the previous generation for the next diff.
//
//	rt := core.NewRuntime(mem, core.WithHost(platform.IdleHost{}))
//	rt.Render(core.CreateElement(Counter, nil), container)
//
// Tests and hosts without scheduling drive the loop with Flush.
package core
