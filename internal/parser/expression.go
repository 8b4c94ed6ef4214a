package parser

import (
	"perlsense/internal/ast"
	"perlsense/internal/diag"
	"perlsense/internal/token"
)

// parseExpr — полное выражение, включая низкоприоритетные and/or/not
func (p *Parser) parseExpr() ast.NodeID {
	return p.parseBinary(precLowOr)
}

// parseBinary — Pratt-цикл по таблице приоритетов. Запятая и ?: разбираются
// отдельно, потому что дают не бинарный узел.
func (p *Parser) parseBinary(minPrec int) ast.NodeID {
	left := p.parseUnary()
	for {
		op := p.peek()
		prec, rightAssoc := p.getBinaryOperatorPrec(op.Kind)
		if prec < 0 || prec < minPrec {
			return left
		}
		switch op.Kind {
		case token.Comma, token.FatArrow:
			left = p.parseCommaList(left)
			continue
		case token.Question:
			left = p.parseTernary(left)
			continue
		}
		p.advance()
		next := prec + 1
		if rightAssoc {
			next = prec
		}
		rhs := p.parseBinary(next)
		n := p.b.New(binaryNodeKind(op.Kind), p.span(left), op.Text)
		p.b.Adopt(n, left, rhs)
		left = n
	}
}

// parseCommaList собирает "a, b => c," в один List без текста.
// Висячая запятая допустима.
func (p *Parser) parseCommaList(first ast.NodeID) ast.NodeID {
	list := p.b.New(ast.KindList, p.span(first), "")
	p.b.AddChild(list, first)
	for p.at_or(token.Comma, token.FatArrow) {
		p.b.Extend(list, p.advance().Span)
		if !canStartTerm(p.peek().Kind) {
			break
		}
		p.b.AddChild(list, p.parseBinary(precAssign))
	}
	return list
}

func (p *Parser) parseTernary(cond ast.NodeID) ast.NodeID {
	p.advance() // '?'
	then := p.parseBinary(precAssign)
	n := p.b.New(ast.KindTernary, p.span(cond), "?:")
	p.b.Adopt(n, cond, then)
	if _, ok := p.expect(token.Colon, diag.SynUnexpectedToken, "expected ':' in conditional expression"); !ok {
		return n
	}
	p.b.AddChild(n, p.parseBinary(precTernary))
	return n
}

func (p *Parser) parseUnary() ast.NodeID {
	tok := p.peek()
	kind := ast.KindUnary
	var operand int
	switch tok.Kind {
	case token.KwNot:
		operand = precComma
	case token.Bang, token.Tilde, token.Minus, token.Plus:
		operand = precUnary
	case token.Backslash:
		kind, operand = ast.KindRef, precUnary
	case token.PlusPlus, token.MinusMinus:
		operand = precIncDec
	default:
		return p.parsePostfix(p.parsePrimary())
	}
	p.advance()
	n := p.b.New(kind, tok.Span, tok.Text)
	p.b.AddChild(n, p.parseBinary(operand))
	return n
}

// parsePostfix — цепочки ->[..] ->{..} ->(..) ->meth(..), прямые индексы и ++/--.
func (p *Parser) parsePostfix(left ast.NodeID) ast.NodeID {
	for {
		tok := p.peek()
		switch tok.Kind {
		case token.Arrow:
			p.advance()
			switch nt := p.peek(); nt.Kind {
			case token.LBracket, token.LBrace:
				left = p.parseSubscript(left)
			case token.LParen:
				left = p.callWith(left, "->()")
			case token.Ident, token.ScalarVar:
				p.advance()
				m := p.b.New(ast.KindMethod, p.span(left), nt.Text)
				p.b.AddChild(m, left)
				p.b.Extend(m, nt.Span)
				if p.at(token.LParen) {
					p.b.AddChild(m, p.parseParenList())
				}
				left = m
			default:
				p.err(diag.SynExpectIdentifier, "expected method name or subscript after '->'")
				return left
			}
		case token.LBracket:
			if !subscriptable(p.b.Get(left).Kind, true) {
				return left
			}
			left = p.parseSubscript(left)
		case token.LBrace:
			if !subscriptable(p.b.Get(left).Kind, false) {
				return left
			}
			left = p.parseSubscript(left)
		case token.LParen:
			// $h->{cb}(1): вызов после индекса в цепочке
			if p.b.Get(left).Kind != ast.KindSubscript {
				return left
			}
			left = p.callWith(left, "->()")
		case token.PlusPlus, token.MinusMinus:
			p.advance()
			n := p.b.New(ast.KindPostfix, p.span(left), tok.Text)
			p.b.AddChild(n, left)
			p.b.Extend(n, tok.Span)
			left = n
		default:
			return left
		}
	}
}

// subscriptable — может ли за узлом сразу идти индекс. Список принимает
// только срез: (LIST)[1].
func subscriptable(k ast.Kind, bracket bool) bool {
	switch k {
	case ast.KindVariable, ast.KindSubscript, ast.KindDeref:
		return true
	case ast.KindList:
		return bracket
	}
	return false
}

func (p *Parser) parseSubscript(left ast.NodeID) ast.NodeID {
	open := p.advance()
	closer, code := token.RBracket, diag.SynUnclosedBracket
	if open.Kind == token.LBrace {
		closer, code = token.RBrace, diag.SynUnclosedBrace
	}
	n := p.b.New(ast.KindSubscript, p.span(left), open.Text)
	p.b.AddChild(n, left)
	if !p.at(closer) {
		p.b.AddChild(n, p.parseExpr())
	}
	p.closeWith(n, closer, open, code, "unclosed '"+open.Text+"'")
	return n
}

// callWith — вызов callee с аргументами в скобках
func (p *Parser) callWith(callee ast.NodeID, name string) ast.NodeID {
	call := p.b.New(ast.KindCall, p.span(callee), name)
	p.b.AddChild(call, callee)
	p.b.AddChild(call, p.parseParenList())
	return call
}

// parseParenList — "( ... )" как List с текстом "(". Запятые внутри
// не дают вложенного списка.
func (p *Parser) parseParenList() ast.NodeID {
	open := p.advance()
	n := p.b.New(ast.KindList, open.Span, "(")
	if !p.at(token.RParen) {
		p.adoptFlat(n, p.parseExpr())
	}
	p.closeWith(n, token.RParen, open, diag.SynUnclosedParen, "unclosed '('")
	return n
}

// adoptFlat добавляет expr в parent, раскрывая безымянный список через запятую.
func (p *Parser) adoptFlat(parent, expr ast.NodeID) {
	if !expr.IsValid() {
		return
	}
	n := p.b.Get(expr)
	if n.Kind == ast.KindList && n.Text == "" {
		kids := n.Children
		n.Children = nil
		p.b.Adopt(parent, kids...)
		p.b.Extend(parent, n.Span)
		return
	}
	p.b.AddChild(parent, expr)
}
