package parser

import (
	"fmt"
	"slices"

	"perlsense/internal/ast"
	"perlsense/internal/diag"
	"perlsense/internal/source"
	"perlsense/internal/token"
)

// peek — следующий значимый токен. Тела heredoc, оказавшиеся первыми в
// потоке, перекладываются в p.bodies и парсеру не видны.
func (p *Parser) peek() token.Token {
	return p.peekN(0)
}

func (p *Parser) peekN(n int) token.Token {
	if p.cancelErr != nil {
		return p.eofToken()
	}
	for p.lx.Peek().Kind == token.HeredocBody {
		p.bodies = append(p.bodies, p.lx.Next())
	}
	seen := 0
	for i := 0; ; i++ {
		tok := p.lx.PeekN(i)
		if tok.Kind == token.HeredocBody {
			continue
		}
		if seen == n || tok.Kind == token.EOF {
			return tok
		}
		seen++
	}
}

// advance — съедает следующий токен и обновляет lastSpan
func (p *Parser) advance() token.Token {
	tok := p.peek()
	if p.cancelErr != nil || tok.Kind == token.EOF {
		return tok
	}
	p.lx.Next()
	p.lastSpan = tok.Span
	p.consumed++
	if err := p.opts.Cancel.Step(); err != nil {
		p.cancelErr = err
	}
	return tok
}

func (p *Parser) eofToken() token.Token {
	return token.Token{Kind: token.EOF, Span: p.here()}
}

func (p *Parser) at(k token.Kind) bool {
	return p.peek().Kind == k
}

func (p *Parser) at_or(kinds ...token.Kind) bool {
	return slices.Contains(kinds, p.peek().Kind)
}

// getDiagnosticSpan — возвращает лучший span для диагностики.
// На EOF указываем сразу после последнего токена.
func (p *Parser) getDiagnosticSpan() source.Span {
	peek := p.peek()
	if peek.Kind == token.EOF {
		return p.here()
	}
	return peek.Span
}

// expect — ожидаем конкретный токен. Если нет — репортим и возвращаем (invalid,false).
func (p *Parser) expect(k token.Kind, code diag.Code, msg string) (token.Token, bool) {
	if p.at(k) {
		return p.advance(), true
	}
	diagSpan := p.getDiagnosticSpan()
	p.report(code, diag.SevError, diagSpan, msg)
	return token.Token{Kind: token.Invalid, Span: p.here(), Text: p.peek().Text}, false
}

// репортует ошибку и передает текущий спан
func (p *Parser) err(code diag.Code, msg string) bool {
	return p.report(code, diag.SevError, p.getDiagnosticSpan(), msg)
}

func (p *Parser) report(code diag.Code, sev diag.Severity, sp source.Span, msg string) bool {
	if sev == diag.SevError {
		if p.opts.Enough() {
			return false // достигли максимального количества ошибок
		}
		p.opts.CurrentErrors++
	}
	return p.bag.Add(diag.New(sev, code, sp, msg))
}

// codeAt — код лексической диагностики для span (Invalid-токен уже отрепорчен лексером)
func (p *Parser) codeAt(sp source.Span) diag.Code {
	items := p.bag.Items()
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Primary.Start >= sp.Start && items[i].Primary.Start <= sp.End {
			return items[i].Code
		}
	}
	return diag.SynUnexpectedToken
}

// recover пропускает токены до границы инструкции: ';' (съедается), '}' на
// нулевой глубине, EOF или ключевое слово, начинающее инструкцию.
// Возвращает Error-узел над пропущенным, либо NoNodeID, если пропускать нечего.
func (p *Parser) recover() ast.NodeID {
	start := p.peek().Span
	end := start
	depth := 0
	consumed := false
	for {
		tok := p.peek()
		if tok.Kind == token.EOF {
			break
		}
		if depth == 0 && (tok.Kind == token.RBrace || tok.Kind.StartsStatement()) {
			break
		}
		switch tok.Kind {
		case token.LBrace:
			depth++
		case token.RBrace:
			depth--
		}
		p.advance()
		consumed = true
		end = tok.Span
		if depth == 0 && tok.Kind == token.Semicolon {
			break
		}
	}
	if !consumed {
		return ast.NoNodeID
	}
	return p.b.NewError(start.Cover(end), diag.SynUnexpectedToken)
}

func describe(tok token.Token) string {
	switch tok.Kind {
	case token.EOF:
		return "end of file"
	case token.Ident:
		return fmt.Sprintf("bareword %q", tok.Text)
	}
	return fmt.Sprintf("%q", tok.Text)
}
