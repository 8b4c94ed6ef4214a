package parser

import (
	"perlsense/internal/ast"
	"perlsense/internal/diag"
	"perlsense/internal/token"
)

// parsePrimary — атом выражения. Если атома нет, репортит и возвращает
// Error нулевой ширины, ничего не съедая.
func (p *Parser) parsePrimary() ast.NodeID {
	tok := p.peek()
	switch tok.Kind {
	case token.ScalarVar, token.ArrayVar, token.HashVar, token.ArrayLen:
		return p.leaf(ast.KindVariable)
	case token.Cast:
		p.advance()
		return p.parseDeref(tok)
	case token.IntLit, token.FloatLit:
		return p.leaf(ast.KindNumber)
	case token.StringLit, token.InterpStringLit, token.BacktickLit:
		return p.leaf(ast.KindString)
	case token.QuoteLike:
		return p.leaf(ast.KindQuoteLike)
	case token.RegexMatch:
		return p.leaf(ast.KindRegex)
	case token.Substitution:
		return p.leaf(ast.KindSubst)
	case token.Transliteration:
		return p.leaf(ast.KindTranslit)
	case token.HeredocStart:
		return p.parseHeredocDecl()
	case token.Invalid:
		// лексер уже отрепортил
		p.advance()
		return p.b.NewError(tok.Span, p.codeAt(tok.Span))
	case token.LParen:
		return p.parseParenList()
	case token.LBracket:
		return p.parseAnon(ast.KindAnonArray, token.RBracket, diag.SynUnclosedBracket)
	case token.LBrace:
		return p.parseAnon(ast.KindAnonHash, token.RBrace, diag.SynUnclosedBrace)
	case token.KwSub:
		p.advance()
		sub := p.b.New(ast.KindAnonSub, tok.Span, "")
		if p.at(token.LParen) {
			p.b.AddChild(sub, p.parseSignature())
		}
		p.b.AddChild(sub, p.parseBlock())
		return sub
	case token.KwDo, token.KwEval:
		p.advance()
		if p.at(token.LBrace) {
			n := p.b.New(ast.KindDoBlock, tok.Span, tok.Text)
			p.b.AddChild(n, p.parseBlock())
			return n
		}
		return p.namedUnaryCall(tok)
	case token.KwRequire:
		p.advance()
		return p.namedUnaryCall(tok)
	case token.KwMy, token.KwOur, token.KwState, token.KwLocal:
		return p.parseVarDecl()
	case token.KwReturn:
		p.advance()
		ret := p.b.New(ast.KindReturn, tok.Span, "")
		if canStartTerm(p.peek().Kind) {
			p.b.AddChild(ret, p.parseBinary(precComma))
		}
		return ret
	case token.KwLast, token.KwNext, token.KwRedo:
		p.advance()
		n := p.b.New(ast.KindLoopCtl, tok.Span, tok.Text)
		if label := p.peek(); label.Kind == token.Ident {
			p.advance()
			p.b.AddChild(n, p.b.New(ast.KindName, label.Span, label.Text))
		}
		return n
	case token.DotDotDot:
		return p.leaf(ast.KindName)
	case token.Ident:
		return p.parseIdentTerm()
	}
	at := p.getDiagnosticSpan()
	p.report(diag.SynExpectExpression, diag.SevError, at, "expected expression, found "+describe(tok))
	at.End = at.Start
	return p.b.NewError(at, diag.SynExpectExpression)
}

// leaf съедает токен и делает из него лист с исходным текстом
func (p *Parser) leaf(kind ast.Kind) ast.NodeID {
	tok := p.advance()
	return p.b.New(kind, tok.Span, tok.Text)
}

// parseHeredocDecl регистрирует объявление: тело придёт позже и допишет
// payload в placeBodies.
func (p *Parser) parseHeredocDecl() ast.NodeID {
	tok := p.advance()
	id := p.b.New(ast.KindHeredoc, tok.Span, tok.Text)
	info := &ast.HeredocInfo{DeclSpan: tok.Span}
	if tok.Heredoc != nil {
		info.Decl = *tok.Heredoc
	}
	p.b.Get(id).Heredoc = info
	p.decls[tok.Span.Start] = id
	return id
}

func (p *Parser) parseAnon(kind ast.Kind, closer token.Kind, code diag.Code) ast.NodeID {
	open := p.advance()
	n := p.b.New(kind, open.Span, "")
	if !p.at(closer) {
		p.adoptFlat(n, p.parseExpr())
	}
	p.closeWith(n, closer, open, code, "unclosed '"+open.Text+"'")
	return n
}

// parseDeref — ${...} @$x %{...} &name $$$x *STDOUT
func (p *Parser) parseDeref(cast token.Token) ast.NodeID {
	n := p.b.New(ast.KindDeref, cast.Span, cast.Text)
	switch tok := p.peek(); tok.Kind {
	case token.LBrace:
		open := p.advance()
		p.b.Extend(n, open.Span)
		if !p.at(token.RBrace) {
			p.b.AddChild(n, p.parseExpr())
		}
		p.closeWith(n, token.RBrace, open, diag.SynUnclosedBrace, "unclosed '{'")
	case token.ScalarVar:
		p.b.AddChild(n, p.leaf(ast.KindVariable))
	case token.Cast:
		p.advance()
		p.b.AddChild(n, p.parseDeref(tok))
	case token.Ident:
		p.b.AddChild(n, p.leaf(ast.KindName))
	default:
		p.err(diag.SynExpectVariable, "expected variable or block after '"+cast.Text+"'")
		return n
	}
	if cast.Text == "&" && p.at(token.LParen) {
		return p.callWith(n, "&")
	}
	return n
}

func (p *Parser) parseVarDecl() ast.NodeID {
	kw := p.advance()
	decl := p.b.New(ast.KindVarDecl, kw.Span, kw.Text)
	switch p.peek().Kind {
	case token.ScalarVar, token.ArrayVar, token.HashVar, token.LParen, token.Cast:
		p.b.AddChild(decl, p.parsePostfix(p.parsePrimary()))
	default:
		p.err(diag.SynExpectVariable, "expected variable after '"+kw.Text+"'")
	}
	return decl
}

// namedUnaryCall — встроенный с не более чем одним операндом
func (p *Parser) namedUnaryCall(name token.Token) ast.NodeID {
	call := p.b.New(ast.KindCall, name.Span, name.Text)
	if startsListArg(p.peek().Kind) {
		p.b.AddChild(call, p.parseBinary(precShift))
	}
	return call
}

// parseIdentTerm — голое слово: имя, вызов со скобками, блочный map/grep/sort,
// print с дескриптором, именованный унарный или списочный оператор.
func (p *Parser) parseIdentTerm() ast.NodeID {
	tok := p.advance()
	next := p.peek()
	switch {
	case next.Kind == token.FatArrow || next.Kind == token.Arrow:
		return p.b.New(ast.KindName, tok.Span, tok.Text)

	case next.Kind == token.LParen:
		call := p.b.New(ast.KindCall, tok.Span, tok.Text)
		p.b.AddChild(call, p.parseParenList())
		return call

	case blockListOps[tok.Text] && next.Kind == token.LBrace:
		call := p.b.New(ast.KindCall, tok.Span, tok.Text)
		p.b.AddChild(call, p.parseBlock())
		if p.at(token.Comma) {
			p.b.Extend(call, p.advance().Span)
		}
		if canStartTerm(p.peek().Kind) {
			p.b.AddChild(call, p.parseBinary(precComma))
		}
		return call

	case namedUnary[tok.Text]:
		return p.namedUnaryCall(tok)

	case printOps[tok.Text]:
		call := p.b.New(ast.KindCall, tok.Span, tok.Text)
		if fh := p.parseFilehandle(); fh.IsValid() {
			p.b.AddChild(call, fh)
		}
		if startsListArg(p.peek().Kind) {
			p.b.AddChild(call, p.parseBinary(precComma))
		}
		return call

	case startsListArg(next.Kind):
		call := p.b.New(ast.KindCall, tok.Span, tok.Text)
		p.b.AddChild(call, p.parseBinary(precComma))
		return call
	}
	return p.b.New(ast.KindName, tok.Span, tok.Text)
}

// parseFilehandle — "print {$fh} LIST", "print STDERR LIST", "print $fh LIST".
// Дескриптор без запятой за ним отличается от первого аргумента тем, что за
// ним сразу идёт ещё один терм.
func (p *Parser) parseFilehandle() ast.NodeID {
	tok := p.peek()
	switch tok.Kind {
	case token.LBrace:
		return p.parseBlock()
	case token.Ident:
		if isBareHandle(tok.Text) && startsListArg(p.peekN(1).Kind) {
			return p.leaf(ast.KindName)
		}
	case token.ScalarVar:
		if startsListArg(p.peekN(1).Kind) && p.peekN(1).Kind != token.Ident {
			return p.leaf(ast.KindVariable)
		}
	}
	return ast.NoNodeID
}

// isBareHandle — STDERR, LOG, FH: голые дескрипторы пишут заглавными
func isBareHandle(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c >= 'A' && c <= 'Z' || c == '_' || i > 0 && c >= '0' && c <= '9') {
			return false
		}
	}
	return name != ""
}
