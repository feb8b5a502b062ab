package core

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-drift/weave/pkg/errors"
	"github.com/go-drift/weave/pkg/target"
)

func TestDescribe(t *testing.T) {
	var set Setter[int]
	comp := Define("Counter", func(ctx *RenderContext, _ Props) *Fiber {
		n, s := UseState(ctx, 4)
		set = s
		UseEffect(ctx, func() func() { return nil }, Deps{})
		return H("b", Props{"onClick": func() {}, "style": map[string]any{"color": "red"}}, n)
	})
	rt, _, _ := mount(t, CreateElement(comp, nil))
	set.Set(5)
	flush(t, rt)

	got := Describe(rt.Root())
	want := Info{
		Type: "#root",
		Children: []Info{{
			Type:      "Counter",
			Component: true,
			Hooks:     []string{"state=5", "effect"},
			Children: []Info{{
				Type: "b",
				Props: map[string]any{
					"onClick": "func",
					"style":   map[string]any{"color": "red"},
				},
				Children: []Info{{
					Type:  "#text",
					Props: map[string]any{"nodeValue": "5"},
				}},
			}},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Describe mismatch (-want +got):\n%s", diff)
	}
}

func TestDescribe_UncommittedGeneration(t *testing.T) {
	var set Setter[int]
	comp := Define("Counter", func(ctx *RenderContext, _ Props) *Fiber {
		n, s := UseState(ctx, 1)
		set = s
		return Text(n)
	})
	rt, mem, _ := mount(t, CreateElement(comp, nil))

	boom := errors.New("boom")
	mem.FailWhen(func(op target.Op) error {
		if op.Kind == "set" {
			return boom
		}
		return nil
	})
	set.Set(2)
	if err := rt.Flush(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Flush err = %v, want boom", err)
	}

	counter := func() Info {
		info, ok := rt.DescribeTree()
		if !ok {
			t.Fatal("no tree")
		}
		return info.Children[0]
	}
	got := counter()
	if diff := cmp.Diff([]string{"state=2"}, got.Hooks); diff != "" {
		t.Errorf("live hooks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"state=1"}, got.Old); diff != "" {
		t.Errorf("committed hooks mismatch (-want +got):\n%s", diff)
	}

	mem.FailWhen(nil)
	if err := rt.Step(context.Background()); err != nil {
		t.Fatalf("resumed Step: %v", err)
	}
	if got := counter(); got.Old != nil {
		t.Errorf("Old = %v after commit, want nil", got.Old)
	}
}
