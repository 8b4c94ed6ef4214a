package ast

import (
	"perlsense/internal/diag"
	"perlsense/internal/source"
	"perlsense/internal/token"
)

// Node is the single tagged tree node. Links are arena indices, never pointers.
type Node struct {
	Kind     Kind
	Span     source.Span
	Parent   NodeID
	Children []NodeID
	Text     string       // name, operator or literal text, see Kind
	Heredoc  *HeredocInfo // KindHeredoc and KindHeredocBody
	Code     diag.Code    // KindError
}

// HeredocInfo is the decoded heredoc carried by both the declaration node and
// the body node. Spans are absolute and shift with the node.
type HeredocInfo struct {
	Decl       token.Heredoc
	DeclSpan   source.Span
	BodySpan   source.Span
	TermSpan   source.Span
	Content    string
	Terminated bool
	HasBody    bool // false until the body has been collected
}

// Shift returns a copy with every span moved by delta.
func (h *HeredocInfo) Shift(delta int64) *HeredocInfo {
	if h == nil {
		return nil
	}
	cp := *h
	cp.DeclSpan = cp.DeclSpan.Shift(delta)
	cp.BodySpan = cp.BodySpan.Shift(delta)
	cp.TermSpan = cp.TermSpan.Shift(delta)
	return &cp
}

// HeredocFromBody converts a lexer body token payload.
func HeredocFromBody(b *token.BodyInfo) *HeredocInfo {
	info := &HeredocInfo{
		DeclSpan:   b.DeclSpan,
		BodySpan:   b.BodySpan,
		TermSpan:   b.TermSpan,
		Content:    b.Content,
		Terminated: b.Terminated,
		HasBody:    true,
	}
	if b.Decl != nil {
		info.Decl = *b.Decl
	}
	return info
}
