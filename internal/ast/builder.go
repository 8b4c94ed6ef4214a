package ast

import (
	"perlsense/internal/diag"
	"perlsense/internal/source"
)

// Builder accumulates nodes into an arena. Pointers returned by Get are
// invalidated by the next New, so callers re-fetch after allocating.
type Builder struct {
	Nodes *Arena[Node]
}

func NewBuilder(capHint uint) *Builder {
	if capHint == 0 {
		capHint = 1 << 8
	}
	return &Builder{Nodes: NewArena[Node](capHint)}
}

func (b *Builder) New(kind Kind, sp source.Span, text string) NodeID {
	return NodeID(b.Nodes.Allocate(Node{Kind: kind, Span: sp, Text: text}))
}

// NewError allocates an error placeholder carrying code.
func (b *Builder) NewError(sp source.Span, code diag.Code) NodeID {
	return NodeID(b.Nodes.Allocate(Node{Kind: KindError, Span: sp, Code: code}))
}

func (b *Builder) Get(id NodeID) *Node {
	return b.Nodes.Get(uint32(id))
}

// AddChild appends child to parent and links it back. The parent span is
// widened to cover the child. A zero-width leaf that would land before the
// end of the previous sibling is moved to that end, so recovery
// placeholders keep siblings ordered.
func (b *Builder) AddChild(parent, child NodeID) {
	if !child.IsValid() {
		return
	}
	p := b.Get(parent)
	c := b.Get(child)
	c.Parent = parent
	if n := len(p.Children); n > 0 && c.Span.Empty() && len(c.Children) == 0 {
		if end := b.Get(p.Children[n-1]).Span.End; c.Span.Start < end {
			c.Span.Start, c.Span.End = end, end
		}
	}
	sp := c.Span
	p.Children = append(p.Children, child)
	p.Span = p.Span.Cover(sp)
}

// Adopt appends several children at once.
func (b *Builder) Adopt(parent NodeID, children ...NodeID) {
	for _, c := range children {
		b.AddChild(parent, c)
	}
}

// Extend widens the node span to cover sp.
func (b *Builder) Extend(id NodeID, sp source.Span) {
	n := b.Get(id)
	n.Span = n.Span.Cover(sp)
}

// Graft deep-copies the subtree rooted at id from src into b, shifting every
// span (including heredoc payload spans) by delta. The copy has no parent.
func (b *Builder) Graft(src *Arena[Node], id NodeID, delta int64) NodeID {
	n := src.Get(uint32(id))
	if n == nil {
		return NoNodeID
	}
	cp := Node{
		Kind:    n.Kind,
		Span:    n.Span.Shift(delta),
		Text:    n.Text,
		Heredoc: n.Heredoc,
		Code:    n.Code,
	}
	if delta != 0 {
		cp.Heredoc = n.Heredoc.Shift(delta)
	}
	kids := n.Children
	nid := NodeID(b.Nodes.Allocate(cp))
	if len(kids) == 0 {
		return nid
	}
	copied := make([]NodeID, len(kids))
	for i, k := range kids {
		copied[i] = b.Graft(src, k, delta)
		b.Get(copied[i]).Parent = nid
	}
	b.Get(nid).Children = copied
	return nid
}

// Finish freezes the builder into a Tree and builds its position index.
// The builder must not be used afterwards.
func (b *Builder) Finish(root NodeID, file *source.File, diags []diag.Diagnostic) *Tree {
	t := &Tree{
		Root:        root,
		Nodes:       b.Nodes,
		File:        file,
		Diagnostics: diags,
	}
	t.index = buildIndex(t)
	b.Nodes = nil
	return t
}
