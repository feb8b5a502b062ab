package target

import (
	"fmt"
	"html"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// TextKind is the Kind of text nodes created by Memory.
const TextKind = "#text"

// Op records one mutation applied by a Memory target.
type Op struct {
	// Kind is the adapter method, e.g. "create", "set", "append".
	Kind string
	// Node labels the node mutated (e.g. "div#3").
	Node string
	// Name is the property, attribute, event, or child label involved.
	Name string
	// Value is the formatted value written, if any.
	Value string
}

func (o Op) String() string {
	parts := []string{o.Kind, o.Node}
	if o.Name != "" {
		parts = append(parts, o.Name)
	}
	if o.Value != "" {
		parts = append(parts, strconv.Quote(o.Value))
	}
	return strings.Join(parts, " ")
}

// MemNode is a node of the in-memory render target.
type MemNode struct {
	Kind      string
	Namespace string
	Props     map[string]any
	Attrs     map[string]string
	Children  []*MemNode
	Parent    *MemNode

	id        int
	listeners map[string][]any
}

// Label returns a stable identifier such as "div#3".
func (n *MemNode) Label() string {
	return n.Kind + "#" + strconv.Itoa(n.id)
}

// IsText reports whether n is a text node.
func (n *MemNode) IsText() bool {
	return n.Kind == TextKind
}

// Text returns the node value of a text node, or the concatenated text of
// all descendant text nodes of an element.
func (n *MemNode) Text() string {
	if n.IsText() {
		return Stringify(n.Props[NodeValueKey])
	}
	var b strings.Builder
	for _, c := range n.Children {
		b.WriteString(c.Text())
	}
	return b.String()
}

// ListenerCount returns the number of listeners bound for event.
func (n *MemNode) ListenerCount(event string) int {
	return len(n.listeners[event])
}

// Memory is an in-memory Target. It records every applied mutation and
// supports failure injection. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	nextID int
	ops    []Op
	fail   func(Op) error
}

// NewMemory creates an empty in-memory target.
func NewMemory() *Memory {
	return &Memory{}
}

// NewContainer creates a detached element that is not recorded in the op
// log, for use as a render root.
func (m *Memory) NewContainer(kind string) *MemNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newNode(kind, "")
}

// Ops returns a copy of the recorded operations.
func (m *Memory) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ops)
}

// ResetOps clears the op log.
func (m *Memory) ResetOps() {
	m.mu.Lock()
	m.ops = nil
	m.mu.Unlock()
}

// FailWhen installs a failure injector. When fn returns an error for an
// operation, the operation is neither applied nor recorded and the error is
// returned to the caller. Pass nil to remove the injector.
func (m *Memory) FailWhen(fn func(Op) error) {
	m.mu.Lock()
	m.fail = fn
	m.mu.Unlock()
}

func (m *Memory) newNode(kind, namespace string) *MemNode {
	m.nextID++
	return &MemNode{
		Kind:      kind,
		Namespace: namespace,
		Props:     map[string]any{},
		Attrs:     map[string]string{},
		id:        m.nextID,
		listeners: map[string][]any{},
	}
}

// record must be called with m.mu held.
func (m *Memory) record(op Op) error {
	if m.fail != nil {
		if err := m.fail(op); err != nil {
			return err
		}
	}
	m.ops = append(m.ops, op)
	return nil
}

func asMem(n Node) (*MemNode, error) {
	mn, ok := n.(*MemNode)
	if !ok || mn == nil {
		return nil, fmt.Errorf("target: %T is not a memory node", n)
	}
	return mn, nil
}

func (m *Memory) CreateElement(kind, namespace string) (Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Op{Kind: "create", Node: kind, Value: namespace}); err != nil {
		return nil, err
	}
	n := m.newNode(kind, namespace)
	m.ops[len(m.ops)-1].Node = n.Label()
	return n, nil
}

func (m *Memory) CreateText(value string) (Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Op{Kind: "create", Node: TextKind, Value: value}); err != nil {
		return nil, err
	}
	n := m.newNode(TextKind, "")
	n.Props[NodeValueKey] = value
	m.ops[len(m.ops)-1].Node = n.Label()
	return n, nil
}

func (m *Memory) IsElement(n Node) bool {
	mn, err := asMem(n)
	return err == nil && !mn.IsText()
}

func (m *Memory) Property(n Node, name string) (any, bool) {
	mn, err := asMem(n)
	if err != nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := mn.Props[name]; ok {
		return v, true
	}
	v, ok := mn.Attrs[name]
	return v, ok
}

func (m *Memory) SetProperty(n Node, name string, value any) error {
	mn, err := asMem(n)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Op{Kind: "set", Node: mn.Label(), Name: name, Value: Stringify(value)}); err != nil {
		return err
	}
	mn.Props[name] = value
	return nil
}

func (m *Memory) SetAttribute(n Node, name, value string) error {
	mn, err := asMem(n)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Op{Kind: "attr", Node: mn.Label(), Name: name, Value: value}); err != nil {
		return err
	}
	mn.Attrs[name] = value
	return nil
}

func (m *Memory) RemoveProperty(n Node, name string) error {
	mn, err := asMem(n)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Op{Kind: "remove", Node: mn.Label(), Name: name}); err != nil {
		return err
	}
	delete(mn.Props, name)
	delete(mn.Attrs, name)
	return nil
}

func (m *Memory) AddEventListener(n Node, event string, handler any) error {
	mn, err := asMem(n)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Op{Kind: "listen", Node: mn.Label(), Name: event}); err != nil {
		return err
	}
	mn.listeners[event] = append(mn.listeners[event], handler)
	return nil
}

func (m *Memory) RemoveEventListener(n Node, event string, handler any) error {
	mn, err := asMem(n)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Op{Kind: "unlisten", Node: mn.Label(), Name: event}); err != nil {
		return err
	}
	list := mn.listeners[event]
	for i, h := range list {
		if sameHandler(h, handler) {
			mn.listeners[event] = slices.Delete(list, i, i+1)
			break
		}
	}
	return nil
}

// sameHandler matches listeners by code pointer, the closest a Go target
// can get to listener identity.
func sameHandler(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != reflect.Func || vb.Kind() != reflect.Func {
		return false
	}
	return va.Type() == vb.Type() && va.Pointer() == vb.Pointer()
}

func (m *Memory) AppendChild(parent, child Node) error {
	return m.InsertBefore(parent, child, nil)
}

func (m *Memory) InsertBefore(parent, child, before Node) error {
	p, err := asMem(parent)
	if err != nil {
		return err
	}
	c, err := asMem(child)
	if err != nil {
		return err
	}
	var ref *MemNode
	if before != nil {
		if ref, err = asMem(before); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	op := Op{Kind: "append", Node: p.Label(), Name: c.Label()}
	idx := len(p.Children)
	if ref != nil {
		idx = slices.Index(p.Children, ref)
		if idx < 0 {
			return fmt.Errorf("target: %s is not a child of %s", ref.Label(), p.Label())
		}
		op = Op{Kind: "insert", Node: p.Label(), Name: c.Label(), Value: ref.Label()}
	}
	if err := m.record(op); err != nil {
		return err
	}
	if c.Parent != nil {
		c.Parent.Children = slices.DeleteFunc(c.Parent.Children, func(x *MemNode) bool { return x == c })
		if c.Parent == p && ref != nil {
			idx = slices.Index(p.Children, ref)
		} else if c.Parent == p {
			idx = len(p.Children)
		}
	}
	p.Children = slices.Insert(p.Children, idx, c)
	c.Parent = p
	return nil
}

func (m *Memory) RemoveChild(parent, child Node) error {
	p, err := asMem(parent)
	if err != nil {
		return err
	}
	c, err := asMem(child)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := slices.Index(p.Children, c)
	if idx < 0 {
		return fmt.Errorf("target: %s is not a child of %s", c.Label(), p.Label())
	}
	if err := m.record(Op{Kind: "remove-child", Node: p.Label(), Name: c.Label()}); err != nil {
		return err
	}
	p.Children = slices.Delete(p.Children, idx, idx+1)
	c.Parent = nil
	return nil
}

func (m *Memory) Contains(ancestor, n Node) bool {
	a, err := asMem(ancestor)
	if err != nil {
		return false
	}
	c, err := asMem(n)
	if err != nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for cur := c; cur != nil; cur = cur.Parent {
		if cur == a {
			return true
		}
	}
	return false
}

// Dispatch fires event on n, invoking its listeners in registration order.
// It returns the number of listeners invoked.
func (m *Memory) Dispatch(n *MemNode, event string, payload any) int {
	m.mu.Lock()
	handlers := slices.Clone(n.listeners[event])
	m.mu.Unlock()

	ev := Event{Type: event, Target: n, Payload: payload}
	for _, h := range handlers {
		switch fn := h.(type) {
		case EventHandler:
			fn(ev)
		case func(Event):
			fn(ev)
		case func():
			fn()
		}
	}
	return len(handlers)
}

// HTML serializes n and its descendants. Attributes and properties are
// written in sorted order; listeners are omitted.
func HTML(n *MemNode) string {
	var b strings.Builder
	writeHTML(&b, n)
	return b.String()
}

func writeHTML(b *strings.Builder, n *MemNode) {
	if n.IsText() {
		b.WriteString(html.EscapeString(n.Text()))
		return
	}
	b.WriteByte('<')
	b.WriteString(n.Kind)
	attrs := make(map[string]string, len(n.Attrs)+len(n.Props))
	for k, v := range n.Props {
		if k == ClassNameKey {
			k = "class"
		}
		attrs[k] = Stringify(v)
	}
	for k, v := range n.Attrs {
		attrs[k] = v
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b.WriteString(" " + k + `="` + html.EscapeString(attrs[k]) + `"`)
	}
	b.WriteByte('>')
	for _, c := range n.Children {
		writeHTML(b, c)
	}
	b.WriteString("</" + n.Kind + ">")
}
