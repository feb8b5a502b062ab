package target

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func opStrings(ops []Op) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.String()
	}
	return out
}

func TestPatch_FreshElement(t *testing.T) {
	m := NewMemory()
	n, _ := m.CreateElement("div", "")
	m.ResetOps()

	click := func() {}
	err := Patch(m, n, "", nil, Props{
		"id":        "main",
		"className": "box",
		"style":     map[string]any{"backgroundColor": "red", "fontSize": "12px"},
		"onClick":   click,
		"hidden":    false,
	})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}

	want := []string{
		`set div#1 className "box"`,
		`attr div#1 id "main"`,
		`set div#1 style "background-color: red; font-size: 12px"`,
		`listen div#1 click`,
	}
	if diff := cmp.Diff(want, opStrings(m.Ops())); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestPatch_Order(t *testing.T) {
	m := NewMemory()
	n, _ := m.CreateElement("button", "")
	prev := Props{"title": "a", "gone": "x", "onClick": func() {}}
	if err := Patch(m, n, "", nil, prev); err != nil {
		t.Fatal(err)
	}
	m.ResetOps()

	next := Props{"title": "b", "onClick": func() {}}
	if err := Patch(m, n, "", prev, next); err != nil {
		t.Fatal(err)
	}

	want := []string{
		`unlisten button#1 click`,
		`remove button#1 gone`,
		`attr button#1 title "b"`,
		`listen button#1 click`,
	}
	if diff := cmp.Diff(want, opStrings(m.Ops())); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	if got := n.(*MemNode).ListenerCount("click"); got != 1 {
		t.Errorf("ListenerCount(click) = %d, want 1", got)
	}
}

func TestPatch_UnchangedIsNoop(t *testing.T) {
	m := NewMemory()
	n, _ := m.CreateElement("p", "")
	prev := Props{"id": "x", "style": map[string]string{"color": "red"}, "n": 3}
	if err := Patch(m, n, "", nil, prev); err != nil {
		t.Fatal(err)
	}
	m.ResetOps()

	next := Props{"id": "x", "style": map[string]string{"color": "red"}, "n": 3}
	if err := Patch(m, n, "", prev, next); err != nil {
		t.Fatal(err)
	}
	if ops := m.Ops(); len(ops) != 0 {
		t.Errorf("expected no ops, got %v", opStrings(ops))
	}
}

func TestPatch_BooleanFalseRemovesStaleAttribute(t *testing.T) {
	m := NewMemory()
	n, _ := m.CreateElement("input", "")
	prev := Props{"disabled": true}
	if err := Patch(m, n, "", nil, prev); err != nil {
		t.Fatal(err)
	}
	if got := n.(*MemNode).Attrs["disabled"]; got != "true" {
		t.Fatalf("disabled = %q, want %q", got, "true")
	}

	if err := Patch(m, n, "", prev, Props{"disabled": false}); err != nil {
		t.Fatal(err)
	}
	if _, ok := n.(*MemNode).Attrs["disabled"]; ok {
		t.Error("disabled attribute should be removed")
	}
}

func TestPatch_TextNodeSetsProperty(t *testing.T) {
	m := NewMemory()
	n, _ := m.CreateText("")
	m.ResetOps()

	if err := Patch(m, n, "", nil, Props{NodeValueKey: "Hello"}); err != nil {
		t.Fatal(err)
	}
	want := []string{`set #text#1 nodeValue "Hello"`}
	if diff := cmp.Diff(want, opStrings(m.Ops())); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestPatch_NamespacedTextNodeSetsProperty(t *testing.T) {
	m := NewMemory()
	n, _ := m.CreateText("")
	m.ResetOps()

	if err := Patch(m, n, "http://www.w3.org/2000/svg", nil, Props{NodeValueKey: "hi"}); err != nil {
		t.Fatal(err)
	}
	want := []string{`set #text#1 nodeValue "hi"`}
	if diff := cmp.Diff(want, opStrings(m.Ops())); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	if got := n.(*MemNode).Text(); got != "hi" {
		t.Errorf("Text = %q, want hi", got)
	}
}

func TestPatch_NamespaceUsesAttributes(t *testing.T) {
	m := NewMemory()
	n, _ := m.CreateElement("circle", "http://www.w3.org/2000/svg")
	m.ResetOps()

	if err := Patch(m, n, "http://www.w3.org/2000/svg", nil, Props{"className": "dot", "r": 4}); err != nil {
		t.Fatal(err)
	}
	want := []string{`attr circle#1 className "dot"`, `attr circle#1 r "4"`}
	if diff := cmp.Diff(want, opStrings(m.Ops())); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestCamelToKebab(t *testing.T) {
	tests := []struct{ in, want string }{
		{"color", "color"},
		{"backgroundColor", "background-color"},
		{"borderTopLeftRadius", "border-top-left-radius"},
	}
	for _, tt := range tests {
		if got := CamelToKebab(tt.in); got != tt.want {
			t.Errorf("CamelToKebab(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEqual(t *testing.T) {
	m := map[string]any{"a": 1}
	s := []int{1, 2}
	fn := func() {}
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"nil", nil, nil, true},
		{"nil vs value", nil, 1, false},
		{"ints", 1, 1, true},
		{"different types", 1, int64(1), false},
		{"strings", "a", "b", false},
		{"same map", m, m, true},
		{"equal maps", map[string]any{"a": 1}, map[string]any{"a": 1}, false},
		{"same slice", s, s, true},
		{"funcs", fn, fn, false},
		{"structs", struct{ X int }{1}, struct{ X int }{1}, true},
	}
	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: Equal = %v, want %v", tt.name, got, tt.want)
		}
	}
}
