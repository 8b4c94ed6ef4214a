package parser

import (
	"perlsense/internal/ast"
	"perlsense/internal/diag"
	"perlsense/internal/token"
)

// parseIf — if/unless (COND) BLOCK [elsif (COND) BLOCK]* [else BLOCK]
func (p *Parser) parseIf() ast.NodeID {
	kw := p.advance()
	n := p.b.New(ast.KindIf, kw.Span, kw.Text)
	p.b.AddChild(n, p.parseCondition())
	p.b.AddChild(n, p.parseBlock())
	for p.at(token.KwElsif) {
		e := p.advance()
		el := p.b.New(ast.KindElsif, e.Span, e.Text)
		p.b.AddChild(el, p.parseCondition())
		p.b.AddChild(el, p.parseBlock())
		p.b.AddChild(n, el)
	}
	if p.at(token.KwElse) {
		e := p.advance()
		el := p.b.New(ast.KindElse, e.Span, e.Text)
		p.b.AddChild(el, p.parseBlock())
		p.b.AddChild(n, el)
	}
	return n
}

// parseCondition — условие в скобках; без '(' даёт Error-узел нулевой ширины
func (p *Parser) parseCondition() ast.NodeID {
	if !p.at(token.LParen) {
		p.err(diag.SynExpectCondition, "expected '(' before condition")
		return p.b.NewError(p.here(), diag.SynExpectCondition)
	}
	return p.parseParenList()
}

// parseWhile — while/until (COND) BLOCK [continue BLOCK]
func (p *Parser) parseWhile() ast.NodeID {
	kw := p.advance()
	n := p.b.New(ast.KindWhile, kw.Span, kw.Text)
	p.b.AddChild(n, p.parseCondition())
	p.b.AddChild(n, p.parseBlock())
	if tok := p.peek(); tok.Kind == token.Ident && tok.Text == "continue" && p.peekN(1).Kind == token.LBrace {
		p.advance()
		p.b.AddChild(n, p.parseBlock())
	}
	return n
}

// parseFor различает три формы:
//
//	for my $x (LIST) BLOCK
//	for (LIST) BLOCK
//	for (INIT; COND; STEP) BLOCK
func (p *Parser) parseFor() ast.NodeID {
	kw := p.advance()
	switch tok := p.peek(); tok.Kind {
	case token.KwMy, token.KwOur, token.KwState, token.ScalarVar:
		n := p.b.New(ast.KindForeach, kw.Span, kw.Text)
		p.b.AddChild(n, p.parseLoopVar())
		p.b.AddChild(n, p.parseCondition())
		p.b.AddChild(n, p.parseBlock())
		return n
	case token.LParen:
	default:
		p.err(diag.SynExpectCondition, "expected '(' after '"+kw.Text+"'")
		n := p.b.New(ast.KindForeach, kw.Span, kw.Text)
		p.b.AddChild(n, p.b.NewError(p.here(), diag.SynExpectCondition))
		p.b.AddChild(n, p.parseBlock())
		return n
	}

	open := p.advance()
	init := ast.NoNodeID
	if !p.at_or(token.Semicolon, token.RParen) {
		init = p.parseExpr()
	}
	if !p.at(token.Semicolon) {
		n := p.b.New(ast.KindForeach, kw.Span, kw.Text)
		list := p.b.New(ast.KindList, open.Span, "(")
		p.adoptFlat(list, init)
		p.closeWith(list, token.RParen, open, diag.SynUnclosedParen, "unclosed '('")
		p.b.AddChild(n, list)
		p.b.AddChild(n, p.parseBlock())
		return n
	}

	// C-style: недостающие части — пустые List нулевой ширины
	n := p.b.New(ast.KindForC, kw.Span, kw.Text)
	if !init.IsValid() {
		init = p.b.New(ast.KindList, p.here(), "")
	}
	p.b.AddChild(n, init)
	p.advance() // ';'
	p.b.AddChild(n, p.forClause(token.Semicolon))
	p.expect(token.Semicolon, diag.SynExpectSemicolon, "expected ';' in for header")
	p.b.AddChild(n, p.forClause(token.RParen))
	p.closeWith(n, token.RParen, open, diag.SynUnclosedParen, "unclosed '('")
	p.b.AddChild(n, p.parseBlock())
	return n
}

func (p *Parser) forClause(end token.Kind) ast.NodeID {
	if p.at(end) {
		return p.b.New(ast.KindList, p.here(), "")
	}
	return p.parseExpr()
}

// parseLoopVar — "my $x" или просто "$x" перед списком foreach
func (p *Parser) parseLoopVar() ast.NodeID {
	tok := p.peek()
	if tok.Kind == token.ScalarVar {
		p.advance()
		return p.b.New(ast.KindVariable, tok.Span, tok.Text)
	}
	p.advance()
	decl := p.b.New(ast.KindVarDecl, tok.Span, tok.Text)
	if v := p.peek(); v.Kind == token.ScalarVar {
		p.advance()
		p.b.AddChild(decl, p.b.New(ast.KindVariable, v.Span, v.Text))
	} else {
		p.err(diag.SynExpectVariable, "expected loop variable")
	}
	return decl
}
