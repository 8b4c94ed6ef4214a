package ast

import (
	"strconv"
	"strings"
)

// Sexp renders the tree as an indented s-expression:
//
//	(Program 0..11
//	  (ExprStmt 0..10
//	    (Assign "=" 0..9 ...)))
func (t *Tree) Sexp() string {
	var sb strings.Builder
	if t.Root.IsValid() {
		t.writeSexp(&sb, t.Root, 0)
	}
	return sb.String()
}

// SexpOf renders a single subtree.
func (t *Tree) SexpOf(id NodeID) string {
	var sb strings.Builder
	t.writeSexp(&sb, id, 0)
	return sb.String()
}

func (t *Tree) writeSexp(sb *strings.Builder, id NodeID, depth int) {
	n := t.Node(id)
	if n == nil {
		return
	}
	if depth > 0 {
		sb.WriteByte('\n')
		sb.WriteString(strings.Repeat("  ", depth))
	}
	sb.WriteByte('(')
	sb.WriteString(n.Kind.String())
	if label := nodeLabel(n); label != "" {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(label))
	}
	sb.WriteByte(' ')
	sb.WriteString(strconv.FormatUint(uint64(n.Span.Start), 10))
	sb.WriteString("..")
	sb.WriteString(strconv.FormatUint(uint64(n.Span.End), 10))
	for _, c := range n.Children {
		t.writeSexp(sb, c, depth+1)
	}
	sb.WriteByte(')')
	if depth == 0 {
		sb.WriteByte('\n')
	}
}

func nodeLabel(n *Node) string {
	switch n.Kind {
	case KindError:
		return n.Code.ID()
	case KindHeredoc, KindHeredocBody:
		if n.Heredoc != nil {
			return n.Heredoc.Decl.Terminator
		}
	}
	return n.Text
}
