package ast

import (
	"slices"
	"sort"

	"perlsense/internal/source"
)

// Index maps byte offsets to nodes. It is the preorder sequence of reachable
// nodes with their start offsets; since children lie inside their parent and
// siblings are ordered, starts are non-decreasing.
type Index struct {
	order  []NodeID
	starts []uint32
}

func buildIndex(t *Tree) Index {
	var idx Index
	if !t.Root.IsValid() {
		return idx
	}
	hint := int(t.Nodes.Len())
	idx.order = make([]NodeID, 0, hint)
	idx.starts = make([]uint32, 0, hint)

	stack := []NodeID{t.Root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.Node(id)
		if n == nil {
			continue
		}
		idx.order = append(idx.order, id)
		idx.starts = append(idx.starts, n.Span.Start)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return idx
}

// NodeAt returns the innermost node whose span contains off. Offsets not
// covered by any node (trailing trivia, end of file) resolve to the root.
func (t *Tree) NodeAt(off uint32) NodeID {
	starts := t.index.starts
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > off }) - 1
	if i < 0 {
		return t.Root
	}
	for id := t.index.order[i]; id.IsValid(); id = t.Parent(id) {
		if t.Span(id).Contains(off) {
			return id
		}
	}
	return t.Root
}

// Overlapping returns, in preorder, every node whose span overlaps sp.
func (t *Tree) Overlapping(sp source.Span) []NodeID {
	var out []NodeID
	if !t.Root.IsValid() {
		return out
	}
	t.Walk(t.Root, func(id NodeID, _ int) bool {
		nsp := t.Span(id)
		if id != t.Root && !nsp.Overlaps(sp) && !sp.Overlaps(nsp) {
			return false
		}
		if nsp.Overlaps(sp) || sp.Overlaps(nsp) {
			out = append(out, id)
		}
		return true
	})
	return out
}

// Enclosing returns the innermost node whose span contains all of sp.
func (t *Tree) Enclosing(sp source.Span) NodeID {
	id := t.NodeAt(sp.Start)
	for id.IsValid() && !t.Span(id).ContainsSpan(sp) {
		id = t.Parent(id)
	}
	if !id.IsValid() {
		return t.Root
	}
	return id
}

// PositionOf returns the preorder position of id, or -1.
func (t *Tree) PositionOf(id NodeID) int {
	sp := t.Span(id)
	starts := t.index.starts
	lo := sort.Search(len(starts), func(i int) bool { return starts[i] >= sp.Start })
	for i := lo; i < len(starts) && starts[i] == sp.Start; i++ {
		if t.index.order[i] == id {
			return i
		}
	}
	return slices.Index(t.index.order, id)
}
