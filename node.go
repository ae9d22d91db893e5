package mutable

import "reflect"

// Notifier receives change signals from tracked children.
type Notifier interface {
	Changed()
}

// Node is a tracked container: a *Map, *List or *Record. The interface is
// sealed; nodes are only produced by Coerce and the New* constructors.
type Node interface {
	Notifier
	// Kind reports which container shape the node wraps.
	Kind() Kind
	// Type reports the declared Go type the node decoerces into.
	Type() reflect.Type
	// Parent returns the current notifier, or nil for a root or detached node.
	Parent() Notifier
	// Plain returns a fresh untracked copy of the node's value.
	Plain() any

	adopt(parent Notifier)
	release(parent Notifier)
}

// link is the non-owning upward reference shared by every node. Notifiers are
// compared by identity so they must be comparable (pointers in practice).
type link struct {
	parent Notifier
}

func (l *link) Parent() Notifier {
	return l.parent
}

// Changed propagates the change signal to the parent. A node without parent
// is either the top of a chain or detached; either way the signal stops here.
func (l *link) Changed() {
	if l.parent != nil {
		l.parent.Changed()
	}
}

func (l *link) adopt(parent Notifier) {
	l.parent = parent
}

// release detaches the node only when it is still wired to parent; a node
// that was moved elsewhere keeps its new wiring.
func (l *link) release(parent Notifier) {
	if l.parent == parent {
		l.parent = nil
	}
}

// Attached reports whether n currently has a parent notifier.
func Attached(n Node) bool {
	return n != nil && n.Parent() != nil
}

// holder is implemented by containers that can tell whether a node still
// occupies one of their slots.
type holder interface {
	holds(node Node) bool
}

// releaseValue detaches value from parent when value is a node that parent no
// longer holds. Callers remove the slot first, so a node moved to another key
// or index of the same container keeps its wiring.
func releaseValue(value any, parent Notifier) {
	node, ok := value.(Node)
	if !ok {
		return
	}
	if h, ok := parent.(holder); ok && h.holds(node) {
		return
	}
	node.release(parent)
}

func sameNode(value any, node Node) bool {
	candidate, ok := value.(Node)
	return ok && candidate == node
}
