package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"perlsense/internal/ast"
)

// CheckTree runs the structural invariants every published tree must hold:
// 1) the root is a Program spanning the whole file
// 2) every child lies inside its parent and links back to it
// 3) siblings are ordered and do not overlap
// 4) heredoc bodies hang after their declaration
func CheckTree(t *ast.Tree) error {
	if t == nil || t.File == nil {
		return fmt.Errorf("nil tree or file")
	}
	root := t.Node(t.Root)
	if root == nil {
		return fmt.Errorf("root node not found")
	}
	if root.Kind != ast.KindProgram {
		return fmt.Errorf("root kind = %v, want Program", root.Kind)
	}
	lenContent, err := safecast.Conv[uint32](len(t.File.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}
	if root.Span.Start != 0 || root.Span.End != lenContent {
		return fmt.Errorf("root span %v does not cover file of %d bytes", root.Span, lenContent)
	}
	if root.Parent.IsValid() {
		return fmt.Errorf("root has parent %d", root.Parent)
	}

	var walkErr error
	t.Walk(t.Root, func(id ast.NodeID, _ int) bool {
		if walkErr != nil {
			return false
		}
		n := t.Node(id)
		if n.Span.File != t.File.ID {
			walkErr = fmt.Errorf("node %d (%v) span file mismatch: got=%d want=%d", id, n.Kind, n.Span.File, t.File.ID)
			return false
		}
		if n.Span.Start > n.Span.End || n.Span.End > lenContent {
			walkErr = fmt.Errorf("node %d (%v) has bad span %v", id, n.Kind, n.Span)
			return false
		}
		var prevEnd uint32
		for i, c := range n.Children {
			cn := t.Node(c)
			if cn == nil {
				walkErr = fmt.Errorf("node %d (%v) has dangling child %d", id, n.Kind, c)
				return false
			}
			if cn.Parent != id {
				walkErr = fmt.Errorf("child %d (%v) links to parent %d, want %d", c, cn.Kind, cn.Parent, id)
				return false
			}
			if !n.Span.ContainsSpan(cn.Span) {
				walkErr = fmt.Errorf("child %d (%v) span %v outside parent %d (%v) span %v", c, cn.Kind, cn.Span, id, n.Kind, n.Span)
				return false
			}
			if i > 0 && cn.Span.Start < prevEnd {
				walkErr = fmt.Errorf("child %d (%v) at %v overlaps previous sibling ending at %d", c, cn.Kind, cn.Span, prevEnd)
				return false
			}
			prevEnd = cn.Span.End
			if cn.Kind == ast.KindHeredocBody {
				if cn.Heredoc == nil || !cn.Heredoc.HasBody {
					walkErr = fmt.Errorf("heredoc body %d without payload", c)
					return false
				}
				if cn.Heredoc.DeclSpan.End > cn.Span.Start {
					walkErr = fmt.Errorf("heredoc body %d at %v precedes its declaration %v", c, cn.Span, cn.Heredoc.DeclSpan)
					return false
				}
			}
		}
		return true
	})
	return walkErr
}

// SameShape compares two trees by their preorder (kind, span) sequences
// and reports the first difference.
func SameShape(got, want *ast.Tree) error {
	a, b := got.Shapes(), want.Shapes()
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return fmt.Errorf("node #%d: got %v %d..%d, want %v %d..%d",
				i, a[i].Kind, a[i].Start, a[i].End, b[i].Kind, b[i].Start, b[i].End)
		}
	}
	if len(a) != len(b) {
		return fmt.Errorf("got %d nodes, want %d", len(a), len(b))
	}
	return nil
}
