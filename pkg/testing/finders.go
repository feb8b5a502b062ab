package testing

import (
	"fmt"
	"strings"

	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/target"
)

// Finder locates fibers in the tree.
type Finder interface {
	// Evaluate returns all matching fibers under root (depth-first pre-order).
	Evaluate(root *core.Fiber) []*core.Fiber
	// Description returns a human-readable description for error messages.
	Description() string
}

// FinderResult wraps finder results with convenient accessors.
type FinderResult struct {
	fibers []*core.Fiber
	finder Finder
}

func (r FinderResult) describe() string {
	if r.finder == nil {
		return "unknown"
	}
	return r.finder.Description()
}

// First returns the first match. Panics if no matches.
func (r FinderResult) First() *core.Fiber {
	if len(r.fibers) == 0 {
		panic(fmt.Sprintf("Finder found no fibers: %s", r.describe()))
	}
	return r.fibers[0]
}

// FirstOrNil returns the first match, or nil if none.
func (r FinderResult) FirstOrNil() *core.Fiber {
	if len(r.fibers) == 0 {
		return nil
	}
	return r.fibers[0]
}

// At returns the match at index. Panics if out of range.
func (r FinderResult) At(index int) *core.Fiber {
	if index < 0 || index >= len(r.fibers) {
		panic(fmt.Sprintf("Finder index %d out of range (found %d): %s", index, len(r.fibers), r.describe()))
	}
	return r.fibers[index]
}

// All returns all matches in traversal order.
func (r FinderResult) All() []*core.Fiber {
	return r.fibers
}

// Count returns the number of matches.
func (r FinderResult) Count() int {
	return len(r.fibers)
}

// Exists returns true if at least one match was found.
func (r FinderResult) Exists() bool {
	return len(r.fibers) > 0
}

// Node returns the committed host node of the first match. For a component
// fiber that is the first host node below it. It returns nil if nothing
// matched or the match has no committed node.
func (r FinderResult) Node() *target.MemNode {
	f := r.FirstOrNil()
	for f != nil && f.Handle() == nil {
		f = f.Child()
	}
	if f == nil {
		return nil
	}
	n, _ := f.Handle().(*target.MemNode)
	return n
}

type predicateFinder struct {
	fn   func(*core.Fiber) bool
	desc string
}

func (f *predicateFinder) Evaluate(root *core.Fiber) []*core.Fiber {
	return collectMatches(root, f.fn)
}

func (f *predicateFinder) Description() string {
	return f.desc
}

// ByPredicate returns a finder that matches fibers satisfying fn.
func ByPredicate(fn func(*core.Fiber) bool) Finder {
	return &predicateFinder{fn: fn, desc: "ByPredicate(...)"}
}

// ByTag matches host element fibers with the given tag.
func ByTag(tag string) Finder {
	return &predicateFinder{
		fn:   func(f *core.Fiber) bool { return f.Type() == core.Tag(tag) },
		desc: fmt.Sprintf("ByTag(%q)", tag),
	}
}

// ByComponent matches fibers rendered by c.
func ByComponent(c *core.Component) Finder {
	return &predicateFinder{
		fn:   func(f *core.Fiber) bool { return f.Type() == core.Type(c) },
		desc: fmt.Sprintf("ByComponent(%s)", c),
	}
}

// ByText matches text fibers with exactly text as their value.
func ByText(text string) Finder {
	return &predicateFinder{
		fn:   func(f *core.Fiber) bool { v, ok := textOf(f); return ok && v == text },
		desc: fmt.Sprintf("ByText(%q)", text),
	}
}

// ByTextContaining matches text fibers whose value contains substring.
func ByTextContaining(substring string) Finder {
	return &predicateFinder{
		fn:   func(f *core.Fiber) bool { v, ok := textOf(f); return ok && strings.Contains(v, substring) },
		desc: fmt.Sprintf("ByTextContaining(%q)", substring),
	}
}

// ByProp matches fibers whose prop name stringifies to value.
func ByProp(name, value string) Finder {
	return &predicateFinder{
		fn: func(f *core.Fiber) bool {
			v, ok := f.Props()[name]
			return ok && target.Stringify(v) == value
		},
		desc: fmt.Sprintf("ByProp(%s=%q)", name, value),
	}
}

func textOf(f *core.Fiber) (string, bool) {
	if f.Type() != core.TextTag {
		return "", false
	}
	return target.Stringify(f.Props()[target.NodeValueKey]), true
}

// descendantFinder finds fibers matching 'matching' that are descendants
// of fibers matching 'of'.
type descendantFinder struct {
	of       Finder
	matching Finder
}

func (f *descendantFinder) Evaluate(root *core.Fiber) []*core.Fiber {
	var results []*core.Fiber
	seen := make(map[*core.Fiber]bool)
	for _, ancestor := range f.of.Evaluate(root) {
		for child := ancestor.Child(); child != nil; child = child.Sibling() {
			for _, match := range f.matching.Evaluate(child) {
				if !seen[match] {
					seen[match] = true
					results = append(results, match)
				}
			}
		}
	}
	return results
}

func (f *descendantFinder) Description() string {
	return fmt.Sprintf("Descendant(of: %s, matching: %s)", f.of.Description(), f.matching.Description())
}

// Descendant returns a finder that matches fibers satisfying 'matching'
// that are descendants of fibers matching 'of'.
func Descendant(of, matching Finder) Finder {
	return &descendantFinder{of: of, matching: matching}
}

// collectMatches performs a depth-first pre-order traversal, collecting
// fibers that satisfy the predicate.
func collectMatches(root *core.Fiber, predicate func(*core.Fiber) bool) []*core.Fiber {
	var results []*core.Fiber
	root.Walk(func(f *core.Fiber) bool {
		if predicate(f) {
			results = append(results, f)
		}
		return true
	})
	return results
}
