package core

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-drift/weave/pkg/target"
)

// Info is a serializable description of one fiber and its subtree, used by
// the debug server and tree snapshots. Old lists the committed generation's
// hooks when they differ from Hooks, which happens while a rendered cycle is
// not yet committed.
type Info struct {
	Type      string         `json:"type" yaml:"type"`
	Key       int            `json:"key" yaml:"key"`
	Component bool           `json:"component,omitempty" yaml:"component,omitempty"`
	Props     map[string]any `json:"props,omitempty" yaml:"props,omitempty"`
	Hooks     []string       `json:"hooks,omitempty" yaml:"hooks,omitempty"`
	Old       []string       `json:"old,omitempty" yaml:"old,omitempty"`
	Children  []Info         `json:"children,omitempty" yaml:"children,omitempty"`
}

// Describe returns the Info tree rooted at f. Function-valued props are
// rendered as "func" so the result is stable across runs.
func Describe(f *Fiber) Info {
	info := Info{
		Type:      f.typ.String(),
		Key:       f.key,
		Component: f.isComponent(),
	}
	if len(f.props) > 0 {
		info.Props = make(map[string]any, len(f.props))
		for _, k := range f.props.Keys() {
			info.Props[k] = describeValue(f.props[k])
		}
	}
	info.Hooks = describeHooks(f)
	if f.old != nil {
		if old := describeHooks(f.old); !slices.Equal(old, info.Hooks) {
			info.Old = old
		}
	}
	for _, c := range f.children {
		info.Children = append(info.Children, Describe(c))
	}
	return info
}

func describeHooks(f *Fiber) []string {
	var hooks []string
	for i := 0; i < f.hookCount; i++ {
		switch {
		case slotAt(f.sideEffects, i) != nil:
			hooks = append(hooks, "effect")
		case slotAt(f.hookStates, i) != nil:
			hooks = append(hooks, fmt.Sprintf("state=%v", f.hookStates[i].State))
		}
	}
	return hooks
}

func describeValue(v any) any {
	switch v := v.(type) {
	case nil, string, bool, int, int64, float64:
		return v
	case map[string]any:
		return describeMap(v)
	case target.Props:
		return describeMap(v)
	default:
		if reflect.ValueOf(v).Kind() == reflect.Func {
			return "func"
		}
		return fmt.Sprint(v)
	}
}

func describeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, e := range m {
		out[k] = describeValue(e)
	}
	return out
}

// Dump writes an indented outline of the subtree, one fiber per line.
func Dump(f *Fiber) string {
	var b strings.Builder
	dump(&b, f, 0)
	return b.String()
}

func dump(b *strings.Builder, f *Fiber, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(f.typ.String())
	if f.typ == TextTag {
		fmt.Fprintf(b, " %q", f.props.String(target.NodeValueKey))
	}
	if f.tag != TagNone {
		b.WriteString(" [" + f.tag.String() + "]")
	}
	b.WriteByte('\n')
	for _, c := range f.children {
		dump(b, c, depth+1)
	}
}
