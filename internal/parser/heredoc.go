package parser

import (
	"slices"
	"sort"

	"perlsense/internal/ast"
	"perlsense/internal/token"
)

// placeBodies turns collected body tokens into KindHeredocBody nodes under
// owner and fills in the matching declaration nodes.
func (p *Parser) placeBodies(owner ast.NodeID, bodies []token.Token) {
	for _, tok := range bodies {
		info := ast.HeredocFromBody(tok.Body)
		id := p.b.New(ast.KindHeredocBody, tok.Span, "")
		p.b.Get(id).Heredoc = info
		p.insertSorted(owner, id)

		if decl, ok := p.decls[tok.Body.DeclSpan.Start]; ok {
			merged := *info
			p.b.Get(decl).Heredoc = &merged
			delete(p.decls, tok.Body.DeclSpan.Start)
		}
	}
}

// insertSorted puts id under the deepest descendant of owner whose span
// contains it, keeping children ordered. A body never straddles a token, so
// every node either contains it or is disjoint from it.
func (p *Parser) insertSorted(owner, id ast.NodeID) {
	sp := p.span(id)
	cur := owner
	for {
		next := ast.NoNodeID
		for _, c := range p.b.Get(cur).Children {
			if csp := p.span(c); !csp.Empty() && csp.ContainsSpan(sp) {
				next = c
				break
			}
		}
		if !next.IsValid() {
			break
		}
		cur = next
	}
	n := p.b.Get(cur)
	pos := sort.Search(len(n.Children), func(i int) bool {
		return p.span(n.Children[i]).Start >= sp.Start
	})
	n.Children = slices.Insert(n.Children, pos, id)
	n.Span = n.Span.Cover(sp)
	p.b.Get(id).Parent = cur
}
