package core

import (
	"fmt"

	"github.com/go-drift/weave/pkg/target"
)

// Type identifies what a fiber renders. Values compare with ==: tags by
// name, components by identity.
type Type interface {
	String() string
}

// Tag names a host primitive kind such as "div".
type Tag string

func (t Tag) String() string {
	return string(t)
}

const (
	// TextTag marks text leaves; their value lives in the nodeValue prop.
	TextTag Tag = "#text"
	// RootTag marks the fiber bound to the render container.
	RootTag Tag = "#root"
)

// Component is a named render function. Two fibers have the same type only
// if they reference the same *Component.
type Component struct {
	name   string
	render func(*RenderContext, Props) []*Fiber
}

// Define creates a component rendering a single child. A nil result renders
// nothing.
func Define(name string, render func(ctx *RenderContext, props Props) *Fiber) *Component {
	return &Component{
		name: name,
		render: func(ctx *RenderContext, props Props) []*Fiber {
			if f := render(ctx, props); f != nil {
				return []*Fiber{f}
			}
			return nil
		},
	}
}

// DefineList creates a component rendering a sequence of children.
func DefineList(name string, render func(ctx *RenderContext, props Props) []*Fiber) *Component {
	return &Component{name: name, render: render}
}

func (c *Component) String() string {
	return c.name
}

// CreateElement builds a fiber literal. Children may be fibers, slices of
// fibers or values, or scalars; scalars become text leaves. Nil, false and
// empty-string children are dropped, and the remaining children are keyed
// sequentially.
//
//	core.CreateElement(core.Tag("ul"), nil,
//	    core.CreateElement(core.Tag("li"), nil, "one"),
//	    core.CreateElement(core.Tag("li"), nil, 2),
//	)
func CreateElement(typ Type, props Props, children ...any) *Fiber {
	if typ == nil {
		return nil
	}
	p := props.Clone()
	delete(p, target.ChildrenKey)
	f := &Fiber{typ: typ, props: p}
	flat := flattenChildren(nil, children)
	if _, ok := typ.(*Component); ok {
		f.passed = flat
	} else {
		f.children = flat
	}
	for i, c := range flat {
		c.key = i
		c.parent = f
	}
	return f
}

// H is shorthand for CreateElement with a host tag.
func H(tag string, props Props, children ...any) *Fiber {
	return CreateElement(Tag(tag), props, children...)
}

// Text creates a text leaf.
func Text(value any) *Fiber {
	return &Fiber{
		typ:   TextTag,
		props: Props{target.NodeValueKey: target.Stringify(value)},
	}
}

func flattenChildren(out []*Fiber, children []any) []*Fiber {
	for _, c := range children {
		switch v := c.(type) {
		case nil:
		case *Fiber:
			if v != nil {
				out = append(out, v)
			}
		case []*Fiber:
			for _, f := range v {
				if f != nil {
					out = append(out, f)
				}
			}
		case []any:
			out = flattenChildren(out, v)
		case bool:
			if v {
				out = append(out, Text(v))
			}
		case string:
			if v != "" {
				out = append(out, Text(v))
			}
		default:
			out = append(out, Text(fmt.Sprint(v)))
		}
	}
	return out
}
