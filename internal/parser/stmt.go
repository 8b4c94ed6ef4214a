package parser

import (
	"strings"

	"perlsense/internal/ast"
	"perlsense/internal/diag"
	"perlsense/internal/token"
)

// parseStatement — одна инструкция. Пустая ';' узла не даёт.
func (p *Parser) parseStatement() ast.NodeID {
	tok := p.peek()
	switch tok.Kind {
	case token.Semicolon:
		p.advance()
		return ast.NoNodeID
	case token.LBrace:
		return p.parseBlock()
	case token.RBrace:
		// закрывающая скобка без пары (внутри блока до сюда не доходим)
		p.advance()
		p.report(diag.SynUnexpectedRBrace, diag.SevError, tok.Span, "unmatched '}'")
		return p.b.NewError(tok.Span, diag.SynUnexpectedRBrace)
	case token.KwSub:
		if p.peekN(1).Kind == token.Ident {
			return p.parseSubDecl()
		}
	case token.KwPackage:
		return p.parsePackageDecl()
	case token.KwUse, token.KwNo:
		return p.parseUseDecl()
	case token.KwIf, token.KwUnless:
		return p.parseIf()
	case token.KwWhile, token.KwUntil:
		return p.parseWhile()
	case token.KwFor, token.KwForeach:
		return p.parseFor()
	case token.DataSection:
		p.advance()
		return p.b.New(ast.KindDataSection, tok.Span, "")
	case token.Ident:
		next := p.peekN(1).Kind
		if phaseBlocks[tok.Text] && next == token.LBrace {
			return p.parsePhaseBlock()
		}
		if next == token.Colon && isLabel(tok.Text) {
			return p.parseLabeled()
		}
	}
	return p.parseExprStmt()
}

func isLabel(name string) bool {
	return !strings.Contains(name, "::")
}

// parseExprStmt — выражение, необязательный модификатор и ';'.
func (p *Parser) parseExprStmt() ast.NodeID {
	before := p.consumed
	expr := p.parseExpr()
	if p.consumed == before {
		// выражение даже не началось: пропускаем до границы инструкции
		return p.recover()
	}
	stmt := p.b.New(ast.KindExprStmt, p.span(expr), "")
	p.b.AddChild(stmt, expr)
	if isModifier(p.peek().Kind) {
		p.b.AddChild(stmt, p.parseModifier())
	}
	p.finishStatement(stmt)
	return stmt
}

func (p *Parser) parseModifier() ast.NodeID {
	kw := p.advance()
	mod := p.b.New(ast.KindModifier, kw.Span, kw.Text)
	p.b.AddChild(mod, p.parseExpr())
	return mod
}

// finishStatement съедает ';'. Перед '}' и в конце файла ';' необязательна.
func (p *Parser) finishStatement(stmt ast.NodeID) {
	tok := p.peek()
	switch tok.Kind {
	case token.Semicolon:
		p.advance()
		p.b.Extend(stmt, tok.Span)
	case token.RBrace, token.EOF:
	default:
		p.report(diag.SynExpectSemicolon, diag.SevError, p.here(), "expected ';' after statement")
		p.b.AddChild(stmt, p.recover())
	}
}

// parseBlock — '{' statements '}'. Без '{' возвращает Error-узел нулевой ширины.
func (p *Parser) parseBlock() ast.NodeID {
	open, ok := p.expect(token.LBrace, diag.SynExpectBlock, "expected '{'")
	if !ok {
		return p.b.NewError(open.Span, diag.SynExpectBlock)
	}
	blk := p.b.New(ast.KindBlock, open.Span, "")
	p.b.Adopt(blk, p.parseStatementList(token.RBrace, noStop)...)
	p.closeWith(blk, token.RBrace, open, diag.SynUnclosedBrace, "unclosed '{'")
	return blk
}

// closeWith съедает закрывающий токен и расширяет узел; иначе репортит
// незакрытую скобку на открывающей.
func (p *Parser) closeWith(id ast.NodeID, k token.Kind, open token.Token, code diag.Code, msg string) bool {
	if p.at(k) {
		p.b.Extend(id, p.advance().Span)
		return true
	}
	p.report(code, diag.SevError, open.Span, msg)
	return false
}

func (p *Parser) parseSubDecl() ast.NodeID {
	kw := p.advance()
	name := p.advance()
	sub := p.b.New(ast.KindSubDecl, kw.Span, name.Text)
	p.b.Extend(sub, name.Span)
	if p.at(token.LParen) {
		p.b.AddChild(sub, p.parseSignature())
	}
	// атрибуты: sub foo :lvalue :prototype($) { ... }
	for p.at(token.Colon) {
		p.b.Extend(sub, p.advance().Span)
		if !p.at(token.Ident) {
			p.err(diag.SynExpectIdentifier, "expected attribute name after ':'")
			break
		}
		attr := p.advance()
		p.b.AddChild(sub, p.b.New(ast.KindName, attr.Span, attr.Text))
		if p.at(token.LParen) {
			p.b.AddChild(sub, p.parseSignature())
		}
	}
	if p.at(token.Semicolon) {
		// предварительное объявление
		p.b.Extend(sub, p.advance().Span)
		return sub
	}
	p.b.AddChild(sub, p.parseBlock())
	return sub
}

// parseSignature keeps the parenthesised text raw: prototypes like ($$;@)
// do not tokenize into anything meaningful.
func (p *Parser) parseSignature() ast.NodeID {
	open := p.advance()
	sp := open.Span
	depth := 1
	for depth > 0 {
		tok := p.peek()
		if tok.Kind == token.EOF || tok.Kind == token.LBrace && depth == 1 {
			p.report(diag.SynUnclosedParen, diag.SevError, open.Span, "unclosed '(' in signature")
			break
		}
		switch tok.Kind {
		case token.LParen:
			depth++
		case token.RParen:
			depth--
		}
		p.advance()
		sp = sp.Cover(tok.Span)
	}
	return p.b.New(ast.KindSignature, sp, string(p.file.Content[sp.Start:sp.End]))
}

// BEGIN/END/... разбираются как sub без ключевого слова
func (p *Parser) parsePhaseBlock() ast.NodeID {
	name := p.advance()
	sub := p.b.New(ast.KindSubDecl, name.Span, name.Text)
	p.b.AddChild(sub, p.parseBlock())
	return sub
}

func (p *Parser) parsePackageDecl() ast.NodeID {
	kw := p.advance()
	pkg := p.b.New(ast.KindPackageDecl, kw.Span, "")
	if p.at(token.Ident) {
		name := p.advance()
		n := p.b.Get(pkg)
		n.Text = name.Text
		n.Span = n.Span.Cover(name.Span)
	} else {
		p.err(diag.SynExpectIdentifier, "expected package name")
	}
	if p.at_or(token.IntLit, token.FloatLit) {
		ver := p.advance()
		p.b.AddChild(pkg, p.b.New(ast.KindNumber, ver.Span, ver.Text))
	}
	if p.at(token.LBrace) {
		p.b.AddChild(pkg, p.parseBlock())
		return pkg
	}
	p.finishStatement(pkg)
	return pkg
}

func (p *Parser) parseUseDecl() ast.NodeID {
	kw := p.advance()
	use := p.b.New(ast.KindUseDecl, kw.Span, kw.Text)
	switch tok := p.peek(); tok.Kind {
	case token.Ident:
		p.advance()
		p.b.AddChild(use, p.b.New(ast.KindName, tok.Span, tok.Text))
	case token.IntLit, token.FloatLit:
		// use 5.010;
		p.advance()
		p.b.AddChild(use, p.b.New(ast.KindNumber, tok.Span, tok.Text))
		p.finishStatement(use)
		return use
	default:
		p.err(diag.SynExpectIdentifier, "expected module name after '"+kw.Text+"'")
	}
	if p.at_or(token.IntLit, token.FloatLit) {
		ver := p.advance()
		p.b.AddChild(use, p.b.New(ast.KindNumber, ver.Span, ver.Text))
	}
	if canStartTerm(p.peek().Kind) {
		p.b.AddChild(use, p.parseExpr())
	}
	p.finishStatement(use)
	return use
}

func (p *Parser) parseLabeled() ast.NodeID {
	label := p.advance()
	lbl := p.b.New(ast.KindLabeled, label.Span, label.Text)
	p.b.Extend(lbl, p.advance().Span) // ':'
	p.b.AddChild(lbl, p.parseStatement())
	return lbl
}
