// Package target defines the render-target adapter consumed by the weave
// runtime, the property patch applied to target nodes, and an in-memory
// target used by tests and headless hosts.
//
// The runtime never inspects a Node: handles are opaque, created and mutated
// only through a Target.
//
// # Patch Order
//
// Patch applies the minimal difference between two Props in a fixed order:
// stale listeners are removed, vanished properties cleared, new or changed
// properties set, and new or changed listeners added.
package target

import (
	"fmt"
	"slices"
	"strings"
)

// Reserved property names.
const (
	// ChildrenKey is the reserved props entry holding child fibers. It is
	// never patched onto a node.
	ChildrenKey = "children"
	// ClassNameKey is set as a property even on element targets.
	ClassNameKey = "className"
	// StyleKey holds either a CSS string or a map flattened into one.
	StyleKey = "style"
	// NamespaceKey declares an explicit namespace for a subtree.
	NamespaceKey = "xmlns"
	// NodeValueKey carries the text of a text node.
	NodeValueKey = "nodeValue"
)

// Node is an opaque render-target handle.
type Node any

// Props maps attribute names to values.
type Props map[string]any

// Keys returns the prop names in sorted order.
func (p Props) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns a shallow copy of p. A nil Props clones to an empty map.
func (p Props) Clone() Props {
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// String returns the value of name formatted as a string, or "" if absent.
func (p Props) String(name string) string {
	v, ok := p[name]
	if !ok || v == nil {
		return ""
	}
	return Stringify(v)
}

// Event is delivered to listeners registered through AddEventListener.
type Event struct {
	Type    string
	Target  Node
	Payload any
}

// EventHandler is the canonical listener signature. Targets also accept
// func() listeners.
type EventHandler func(Event)

// Target is the render-target adapter. Implementations create primitive
// nodes and apply property, listener, and structural mutations.
type Target interface {
	// CreateElement creates a primitive of the given kind. An empty
	// namespace selects the target's default namespace.
	CreateElement(kind, namespace string) (Node, error)
	// CreateText creates a text node.
	CreateText(value string) (Node, error)
	// IsElement reports whether n is an element (as opposed to a text node).
	IsElement(n Node) bool

	Property(n Node, name string) (any, bool)
	SetProperty(n Node, name string, value any) error
	SetAttribute(n Node, name, value string) error
	// RemoveProperty resets a property or attribute to its empty value.
	RemoveProperty(n Node, name string) error

	AddEventListener(n Node, event string, handler any) error
	RemoveEventListener(n Node, event string, handler any) error

	AppendChild(parent, child Node) error
	// InsertBefore inserts child into parent before the existing child
	// before. A nil before appends.
	InsertBefore(parent, child, before Node) error
	RemoveChild(parent, child Node) error
	// Contains reports whether n is ancestor or one of its descendants.
	Contains(ancestor, n Node) bool
}

// IsEvent reports whether name binds an event listener ("onClick").
func IsEvent(name string) bool {
	return len(name) > 2 && strings.HasPrefix(name, "on")
}

// IsProperty reports whether name is a plain property.
func IsProperty(name string) bool {
	return name != ChildrenKey && !IsEvent(name)
}

// EventType converts a listener prop name to its event type ("onClick" → "click").
func EventType(name string) string {
	return strings.ToLower(name[2:])
}

// Stringify formats a prop value for use as an attribute.
func Stringify(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
