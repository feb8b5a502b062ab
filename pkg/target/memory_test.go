package target

import (
	"errors"
	"testing"
)

func TestMemory_InsertBeforeAndRemove(t *testing.T) {
	m := NewMemory()
	root := m.NewContainer("main")
	a, _ := m.CreateElement("a", "")
	b, _ := m.CreateElement("b", "")
	c, _ := m.CreateElement("c", "")

	if err := m.AppendChild(root, a); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendChild(root, c); err != nil {
		t.Fatal(err)
	}
	if err := m.InsertBefore(root, b, c); err != nil {
		t.Fatal(err)
	}
	if got, want := HTML(root), "<main><a></a><b></b><c></c></main>"; got != want {
		t.Errorf("HTML = %q, want %q", got, want)
	}

	if !m.Contains(root, b) || !m.Contains(root, root) {
		t.Error("Contains should include descendants and self")
	}
	if err := m.RemoveChild(root, b); err != nil {
		t.Fatal(err)
	}
	if m.Contains(root, b) {
		t.Error("removed node should not be contained")
	}
	if err := m.RemoveChild(root, b); err == nil {
		t.Error("removing a non-child should fail")
	}
}

func TestMemory_FailWhenSkipsOperation(t *testing.T) {
	m := NewMemory()
	root := m.NewContainer("main")
	a, _ := m.CreateElement("a", "")
	boom := errors.New("boom")
	m.FailWhen(func(op Op) error {
		if op.Kind == "append" {
			return boom
		}
		return nil
	})

	if err := m.AppendChild(root, a); !errors.Is(err, boom) {
		t.Fatalf("AppendChild err = %v, want %v", err, boom)
	}
	if len(root.Children) != 0 {
		t.Error("failed append must not be applied")
	}
	for _, op := range m.Ops() {
		if op.Kind == "append" {
			t.Error("failed append must not be recorded")
		}
	}

	m.FailWhen(nil)
	if err := m.AppendChild(root, a); err != nil {
		t.Fatal(err)
	}
	if len(root.Children) != 1 {
		t.Error("append should succeed once the injector is removed")
	}
}

func TestMemory_DispatchAndText(t *testing.T) {
	m := NewMemory()
	btn, _ := m.CreateElement("button", "")
	label, _ := m.CreateText("Go")
	if err := m.AppendChild(btn, label); err != nil {
		t.Fatal(err)
	}

	var got []string
	m.AddEventListener(btn, "click", func() { got = append(got, "plain") })
	m.AddEventListener(btn, "click", func(ev Event) { got = append(got, ev.Type) })

	if n := m.Dispatch(btn.(*MemNode), "click", nil); n != 2 {
		t.Errorf("Dispatch invoked %d listeners, want 2", n)
	}
	if len(got) != 2 || got[0] != "plain" || got[1] != "click" {
		t.Errorf("listener calls = %v", got)
	}
	if text := btn.(*MemNode).Text(); text != "Go" {
		t.Errorf("Text = %q, want %q", text, "Go")
	}
}

func TestHTML_EscapesAndSortsAttributes(t *testing.T) {
	m := NewMemory()
	div, _ := m.CreateElement("div", "")
	m.SetAttribute(div, "title", `a "b"`)
	m.SetProperty(div, ClassNameKey, "x")
	txt, _ := m.CreateText("1 < 2")
	m.AppendChild(div, txt)

	want := `<div class="x" title="a &#34;b&#34;">1 &lt; 2</div>`
	if got := HTML(div.(*MemNode)); got != want {
		t.Errorf("HTML = %q, want %q", got, want)
	}
}
