package target

import (
	"reflect"
	"strings"
	"unicode"
)

// Patch applies the difference between prev and next to n. prev may be nil
// for a freshly created node. A non-empty namespace sets every element
// property as an attribute; text nodes always take properties.
func Patch(t Target, n Node, namespace string, prev, next Props) error {
	for _, name := range prev.Keys() {
		if !IsEvent(name) {
			continue
		}
		if nv, ok := next[name]; ok && Equal(prev[name], nv) {
			continue
		}
		if err := t.RemoveEventListener(n, EventType(name), prev[name]); err != nil {
			return err
		}
	}

	for _, name := range prev.Keys() {
		if !IsProperty(name) {
			continue
		}
		if _, ok := next[name]; ok {
			continue
		}
		if err := t.RemoveProperty(n, name); err != nil {
			return err
		}
	}

	for _, name := range next.Keys() {
		if !IsProperty(name) {
			continue
		}
		pv, had := prev[name]
		if had && propUnchanged(name, pv, next[name]) {
			continue
		}
		if err := setProperty(t, n, namespace, name, next[name], had); err != nil {
			return err
		}
	}

	for _, name := range next.Keys() {
		if !IsEvent(name) {
			continue
		}
		if pv, ok := prev[name]; ok && Equal(pv, next[name]) {
			continue
		}
		if err := t.AddEventListener(n, EventType(name), next[name]); err != nil {
			return err
		}
	}
	return nil
}

func propUnchanged(name string, prev, next any) bool {
	if name == StyleKey {
		return StyleString(prev) == StyleString(next)
	}
	return Equal(prev, next)
}

func setProperty(t Target, n Node, namespace, name string, value any, had bool) error {
	switch {
	case !t.IsElement(n):
		return t.SetProperty(n, name, value)
	case name == StyleKey:
		css := StyleString(value)
		if namespace != "" {
			return t.SetAttribute(n, name, css)
		}
		return t.SetProperty(n, name, css)
	case namespace != "":
		return t.SetAttribute(n, name, Stringify(value))
	case name == ClassNameKey:
		return t.SetProperty(n, name, value)
	default:
		if b, ok := value.(bool); ok && !b {
			if had {
				return t.RemoveProperty(n, name)
			}
			return nil
		}
		return t.SetAttribute(n, name, Stringify(value))
	}
}

// StyleString flattens a style value into a CSS declaration string. Maps
// produce "key: value; key: value" with camelCase keys converted to
// kebab-case, in sorted key order. Strings pass through.
func StyleString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case map[string]string:
		p := make(Props, len(s))
		for k, v := range s {
			p[k] = v
		}
		return StyleString(p)
	case map[string]any:
		return StyleString(Props(s))
	case Props:
		decls := make([]string, 0, len(s))
		for _, k := range s.Keys() {
			decls = append(decls, CamelToKebab(k)+": "+Stringify(s[k]))
		}
		return strings.Join(decls, "; ")
	default:
		return Stringify(v)
	}
}

// CamelToKebab converts "backgroundColor" to "background-color".
func CamelToKebab(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Equal compares two prop or dependency values. Functions are never equal
// because closures cannot be compared; maps, slices, channels and pointers
// compare by identity; other values compare with ==.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Func:
		return false
	case reflect.Map, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Comparable() && vb.Comparable() {
		return va.Equal(vb)
	}
	return false
}
