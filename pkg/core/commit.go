package core

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-drift/weave/pkg/errors"
	"github.com/go-drift/weave/pkg/target"
)

// commit applies the cycle's mutations in four passes: deletions,
// placements and updates, effects, snapshot. Every node's tag is cleared
// as soon as its mutation lands, so resuming after a failure continues
// where the failure happened.
func (r *Runtime) commit(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "core.Commit",
		trace.WithAttributes(
			attribute.String("weave.runtime", r.id),
			attribute.Int("weave.deletions", len(r.deletions)),
		),
	)
	start := r.now()
	defer func() {
		r.stats.CommitDuration += r.now().Sub(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	for len(r.deletions) > 0 {
		f := r.deletions[0]
		if err := r.commitDeletion(f); err != nil {
			return err
		}
		f.tag = TagNone
		r.deletions[0] = nil
		r.deletions = r.deletions[1:]
		r.stats.Deletions++
	}
	r.deletions = nil

	if err := walkErr(r.root, r.commitWork); err != nil {
		return err
	}
	if err := walkErr(r.root, func(f *Fiber) error { return r.runEffects(ctx, f) }); err != nil {
		return err
	}

	r.snapshot()
	return nil
}

func walkErr(f *Fiber, fn func(*Fiber) error) error {
	if err := fn(f); err != nil {
		return err
	}
	for _, c := range f.children {
		if err := walkErr(c, fn); err != nil {
			return err
		}
	}
	return nil
}

// commitDeletion runs every cleanup in the subtree, then detaches the
// subtree's topmost handles from the nearest handle-owning ancestor.
func (r *Runtime) commitDeletion(f *Fiber) error {
	if err := walkErr(f, r.runCleanups); err != nil {
		return err
	}
	parent := f.hostParent()
	if parent == nil {
		return nil
	}
	return r.detach(f, parent.handle)
}

func (r *Runtime) runCleanups(f *Fiber) error {
	for _, e := range f.sideEffects {
		if e == nil || e.cleanup == nil {
			continue
		}
		cleanup := e.cleanup
		e.cleanup = nil
		if err := invoke(cleanup); err != nil {
			return &errors.FiberError{Op: "core.cleanup", Kind: errors.KindEffect, Fiber: f.String(), Err: err}
		}
	}
	return nil
}

func (r *Runtime) detach(f *Fiber, parent target.Node) error {
	if f.handle != nil {
		if !r.target.Contains(parent, f.handle) {
			return nil
		}
		if err := r.target.RemoveChild(parent, f.handle); err != nil {
			return &errors.FiberError{Op: "core.commitDeletion", Kind: errors.KindCommit, Fiber: f.String(), Err: err}
		}
		return nil
	}
	for _, c := range f.children {
		if err := r.detach(c, parent); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) commitWork(f *Fiber) error {
	switch f.tag {
	case TagPlacement:
		if f.handle != nil {
			if err := r.place(f); err != nil {
				return &errors.FiberError{Op: "core.commitPlacement", Kind: errors.KindCommit, Fiber: f.String(), Err: err}
			}
		}
		r.stats.Placements++
	case TagUpdate:
		if f.handle != nil && f.old != nil {
			if err := target.Patch(r.target, f.handle, f.Namespace(), f.old.props, f.props); err != nil {
				return &errors.FiberError{Op: "core.commitUpdate", Kind: errors.KindCommit, Fiber: f.String(), Err: err}
			}
		}
		r.stats.Updates++
	}
	f.tag = TagNone
	return nil
}

func (r *Runtime) place(f *Fiber) error {
	parent := f.hostParent()
	if parent == nil {
		return fmt.Errorf("no host ancestor for %s", f)
	}
	if before := hostSibling(f); before != nil {
		return r.target.InsertBefore(parent.handle, f.handle, before)
	}
	return r.target.AppendChild(parent.handle, f.handle)
}

// hostSibling finds the handle of the first already-attached host node
// following f in the same host parent, or nil if f belongs at the end.
func hostSibling(f *Fiber) target.Node {
	node := f
siblings:
	for {
		for node.Sibling() == nil {
			if node.parent == nil || node.parent.handle != nil {
				return nil
			}
			node = node.parent
		}
		node = node.Sibling()
		for node.handle == nil {
			if node.tag == TagPlacement || len(node.children) == 0 {
				continue siblings
			}
			node = node.children[0]
		}
		if node.tag != TagPlacement {
			return node.handle
		}
	}
}

// runEffects runs f's due effects in slot order. An async effect
// blocks the pass until it signals; if ctx ends first the pass returns and
// the next Step resumes waiting on the same effect.
func (r *Runtime) runEffects(ctx context.Context, f *Fiber) error {
	for _, e := range f.sideEffects {
		if e == nil || (!e.due(r.commits) && e.waiting == nil) {
			continue
		}
		if e.waiting == nil && e.due(r.commits) {
			e.Changed = false
			e.ranIn = r.commits
			if e.cleanup != nil {
				cleanup := e.cleanup
				e.cleanup = nil
				if err := invoke(cleanup); err != nil {
					return &errors.FiberError{Op: "core.cleanup", Kind: errors.KindEffect, Fiber: f.String(), Err: err}
				}
			}
			var runErr error
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						runErr = fmt.Errorf("effect panicked: %v", rec)
					}
				}()
				e.cleanup, e.waiting = e.run(ctx)
			}()
			if runErr != nil {
				return &errors.FiberError{Op: "core.effect", Kind: errors.KindEffect, Fiber: f.String(), Err: runErr}
			}
			r.stats.EffectsRun++
		}
		if e.waiting != nil {
			select {
			case cleanup, ok := <-e.waiting:
				e.waiting = nil
				if ok {
					e.cleanup = cleanup
				}
			case <-ctx.Done():
				return &errors.FiberError{Op: "core.effect", Kind: errors.KindEffect, Fiber: f.String(), Err: ctx.Err()}
			}
		}
	}
	return nil
}

func invoke(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cleanup panicked: %v", rec)
		}
	}()
	fn()
	return nil
}

// snapshot clones the committed tree and makes each live fiber's old point
// at its counterpart in the clone.
func (r *Runtime) snapshot() {
	linkSnapshot(r.root, r.root.Clone())
}

func linkSnapshot(live, snap *Fiber) {
	live.old = snap
	live.tag = TagNone
	for i, c := range live.children {
		linkSnapshot(c, snap.children[i])
	}
}
