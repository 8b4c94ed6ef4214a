package ast

import (
	"perlsense/internal/diag"
	"perlsense/internal/source"
)

// Tree is an immutable parse result. It is published only after the position
// index has been built, so readers may share it without locking.
type Tree struct {
	Root        NodeID
	Nodes       *Arena[Node]
	File        *source.File
	Diagnostics []diag.Diagnostic

	index Index
}

// Node returns the node for id. The result must be treated as read-only.
func (t *Tree) Node(id NodeID) *Node {
	return t.Nodes.Get(uint32(id))
}

func (t *Tree) Kind(id NodeID) Kind {
	if n := t.Node(id); n != nil {
		return n.Kind
	}
	return KindInvalid
}

func (t *Tree) Span(id NodeID) source.Span {
	if n := t.Node(id); n != nil {
		return n.Span
	}
	return source.Span{}
}

func (t *Tree) Parent(id NodeID) NodeID {
	if n := t.Node(id); n != nil {
		return n.Parent
	}
	return NoNodeID
}

func (t *Tree) Children(id NodeID) []NodeID {
	if n := t.Node(id); n != nil {
		return n.Children
	}
	return nil
}

// Source returns the text the tree was built from.
func (t *Tree) Source() []byte {
	if t.File == nil {
		return nil
	}
	return t.File.Content
}

// Text returns the source bytes covered by the node.
func (t *Tree) Text(id NodeID) string {
	sp := t.Span(id)
	src := t.Source()
	if int(sp.End) > len(src) || sp.Start > sp.End {
		return ""
	}
	return string(src[sp.Start:sp.End])
}

// Len is the number of nodes reachable from the root.
func (t *Tree) Len() int {
	return len(t.index.order)
}

// Preorder returns reachable node ids in document order. Read-only.
func (t *Tree) Preorder() []NodeID {
	return t.index.order
}

// Walk visits the subtree rooted at id in preorder. Returning false from fn
// skips the children of the current node.
func (t *Tree) Walk(id NodeID, fn func(id NodeID, depth int) bool) {
	t.walk(id, 0, fn)
}

func (t *Tree) walk(id NodeID, depth int, fn func(NodeID, int) bool) {
	n := t.Node(id)
	if n == nil {
		return
	}
	if !fn(id, depth) {
		return
	}
	for _, c := range n.Children {
		t.walk(c, depth+1, fn)
	}
}

// Ancestors returns the parent chain of id, innermost first, root last.
func (t *Tree) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	for p := t.Parent(id); p.IsValid(); p = t.Parent(p) {
		out = append(out, p)
	}
	return out
}

// SubtreeSize counts the nodes in the subtree rooted at id.
func (t *Tree) SubtreeSize(id NodeID) int {
	n := 0
	t.Walk(id, func(NodeID, int) bool {
		n++
		return true
	})
	return n
}

// HasErrors reports whether the tree carries an error diagnostic.
func (t *Tree) HasErrors() bool {
	for _, d := range t.Diagnostics {
		if d.Severity >= diag.SevError {
			return true
		}
	}
	return false
}

// Shape is the (kind, span) projection of one node, used to compare trees
// independently of arena layout.
type Shape struct {
	Kind  Kind
	Start uint32
	End   uint32
}

// Shapes returns the preorder shape sequence of the tree.
func (t *Tree) Shapes() []Shape {
	out := make([]Shape, 0, len(t.index.order))
	for _, id := range t.index.order {
		n := t.Node(id)
		out = append(out, Shape{Kind: n.Kind, Start: n.Span.Start, End: n.Span.End})
	}
	return out
}
