package core

import (
	"slices"
	"strconv"

	"github.com/go-drift/weave/pkg/target"
)

// Props maps attribute names to values. The reserved "children" entry is
// held in the fiber's children sequence, never in Props.
type Props = target.Props

// EffectTag is the pending mutation decided by reconciliation.
type EffectTag int

const (
	TagNone EffectTag = iota
	TagPlacement
	TagUpdate
	TagDeletion
)

func (t EffectTag) String() string {
	switch t {
	case TagPlacement:
		return "PLACEMENT"
	case TagUpdate:
		return "UPDATE"
	case TagDeletion:
		return "DELETION"
	default:
		return "NONE"
	}
}

// Fiber is one render unit: a host primitive, a text leaf, or a component
// instance.
//
// Navigation is derived: Child, Sibling and Key are computed from the parent
// back-reference and the parent's children sequence, which Renormalize keeps
// consistent after every structural edit.
type Fiber struct {
	typ      Type
	props    Props
	children []*Fiber
	passed   []*Fiber // children handed to a component by its caller
	parent   *Fiber
	key      int

	handle target.Node
	tag    EffectTag
	old    *Fiber

	hookStates  []*StateHook
	sideEffects []*EffectHook
	hookCursor  int
	hookCount   int
	rendered    bool
}

// Type returns the fiber's host tag or component.
func (f *Fiber) Type() Type {
	return f.typ
}

// Props returns the fiber's attributes. The map must not be mutated.
func (f *Fiber) Props() Props {
	return f.props
}

// Children returns the fiber's children in order.
func (f *Fiber) Children() []*Fiber {
	return f.children
}

// Handle returns the render-target node owned by this fiber, or nil.
func (f *Fiber) Handle() target.Node {
	return f.handle
}

// Tag returns the pending mutation tag.
func (f *Fiber) Tag() EffectTag {
	return f.tag
}

// Old returns the snapshot of this fiber from the previous generation.
func (f *Fiber) Old() *Fiber {
	return f.old
}

// Key returns the fiber's position within its parent's children.
func (f *Fiber) Key() int {
	return f.key
}

// Parent returns the owning fiber, or nil for a root.
func (f *Fiber) Parent() *Fiber {
	return f.parent
}

// Child returns the first child, or nil.
func (f *Fiber) Child() *Fiber {
	if len(f.children) == 0 {
		return nil
	}
	return f.children[0]
}

// Sibling returns the next fiber in the parent's children, or nil.
func (f *Fiber) Sibling() *Fiber {
	if f.parent == nil || f.key+1 >= len(f.parent.children) {
		return nil
	}
	return f.parent.children[f.key+1]
}

// PrevSibling returns the previous fiber in the parent's children, or nil.
func (f *Fiber) PrevSibling() *Fiber {
	if f.parent == nil || f.key == 0 || f.key > len(f.parent.children) {
		return nil
	}
	return f.parent.children[f.key-1]
}

// SetChildren installs children and renormalizes the subtree.
func (f *Fiber) SetChildren(children []*Fiber) {
	f.children = children
	f.Renormalize()
}

// Renormalize re-derives key and parent for every descendant.
func (f *Fiber) Renormalize() {
	for i, c := range f.children {
		c.parent = f
		c.key = i
		c.Renormalize()
	}
}

// Remove detaches f from its parent and re-keys the remaining siblings.
func (f *Fiber) Remove() {
	p := f.parent
	if p == nil {
		return
	}
	p.children = slices.DeleteFunc(slices.Clone(p.children), func(c *Fiber) bool { return c == f })
	for i, c := range p.children {
		c.key = i
	}
	f.parent = nil
}

// Namespace returns the namespace declared by the nearest fiber, f included,
// whose props carry an explicit xmlns.
func (f *Fiber) Namespace() string {
	for cur := f; cur != nil; cur = cur.parent {
		if ns, ok := cur.props[target.NamespaceKey].(string); ok && ns != "" {
			return ns
		}
	}
	return ""
}

// Clone returns a structural snapshot of the subtree rooted at f. The clone
// shares the render-target handle, duplicates the hook and effect lists,
// and rebuilds key and parent on cloned children. The clone has no old.
func (f *Fiber) Clone() *Fiber {
	c := f.cloneNode()
	c.parent = f.parent
	return c
}

func (f *Fiber) cloneNode() *Fiber {
	c := &Fiber{
		typ:         f.typ,
		props:       f.props.Clone(),
		passed:      f.passed,
		key:         f.key,
		handle:      f.handle,
		hookStates:  slices.Clone(f.hookStates),
		sideEffects: slices.Clone(f.sideEffects),
		hookCount:   f.hookCount,
		rendered:    f.rendered,
	}
	if len(f.children) > 0 {
		c.children = make([]*Fiber, len(f.children))
		for i, child := range f.children {
			cc := child.cloneNode()
			cc.parent = c
			cc.key = i
			c.children[i] = cc
		}
	}
	return c
}

// Walk visits f and its descendants in pre-order. Returning false from
// visit skips the fiber's children.
func (f *Fiber) Walk(visit func(*Fiber) bool) {
	if !visit(f) {
		return
	}
	for _, c := range f.children {
		c.Walk(visit)
	}
}

// String returns a short label such as "div#2".
func (f *Fiber) String() string {
	if f.typ == nil {
		return "<nil>#" + strconv.Itoa(f.key)
	}
	return f.typ.String() + "#" + strconv.Itoa(f.key)
}

func (f *Fiber) isComponent() bool {
	_, ok := f.typ.(*Component)
	return ok
}

// hostParent returns the nearest ancestor owning a render-target handle.
func (f *Fiber) hostParent() *Fiber {
	for p := f.parent; p != nil; p = p.parent {
		if p.handle != nil {
			return p
		}
	}
	return nil
}

// attached reports whether f is still reachable from root through the
// derived navigation.
func (f *Fiber) attached(root *Fiber) bool {
	cur := f
	for cur != root {
		p := cur.parent
		if p == nil || cur.key >= len(p.children) || p.children[cur.key] != cur {
			return false
		}
		cur = p
	}
	return true
}
