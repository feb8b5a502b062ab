package core

import "slices"

// reconcile diffs f's freshly produced children against the child chain of
// f.old, position by position, and replaces f's children with tagged
// fibers. Old fibers that lost their position are tagged DELETION and
// appended to deletions.
//
// Matching is purely positional: a reorder is observed as the deletion and
// re-placement of every shifted position, never as a move.
func reconcile(f *Fiber, deletions *[]*Fiber) {
	f.Renormalize()

	var oldChild *Fiber
	if f.old != nil {
		f.old.Renormalize()
		oldChild = f.old.Child()
	}

	elements := f.children
	next := make([]*Fiber, 0, len(elements))
	for _, el := range elements {
		var nf *Fiber
		sameType := oldChild != nil && oldChild.typ == el.typ
		if sameType {
			nf = &Fiber{
				typ:        el.typ,
				props:      el.props,
				children:   slices.Clone(el.children),
				passed:     el.passed,
				handle:     oldChild.handle,
				hookStates: slices.Clone(oldChild.hookStates),
				old:        oldChild,
				tag:        TagUpdate,
			}
		} else {
			nf = &Fiber{
				typ:      el.typ,
				props:    el.props,
				children: slices.Clone(el.children),
				passed:   el.passed,
				tag:      TagPlacement,
			}
			if oldChild != nil {
				markDeletion(oldChild, deletions)
			}
		}
		next = append(next, nf)
		if oldChild != nil {
			oldChild = oldChild.Sibling()
		}
	}
	for oldChild != nil {
		markDeletion(oldChild, deletions)
		oldChild = oldChild.Sibling()
	}

	f.SetChildren(next)
}

// markDeletion tags old for deletion once, even if its parent is
// reconciled more than once in a cycle.
func markDeletion(old *Fiber, deletions *[]*Fiber) {
	if old.tag == TagDeletion {
		return
	}
	old.tag = TagDeletion
	*deletions = append(*deletions, old)
}
