package lexer

import (
	"fmt"

	"perlsense/internal/diag"
	"perlsense/internal/token"
)

// scanIdentOrKeyword сканирует bareword (с "::"), затем решает:
// __END__/__DATA__, quote-like оператор, ключевое слово или Ident.
// Token.Text — ровно исходный срез.
func (lx *Lexer) scanIdentOrKeyword() token.Token {
	start := lx.cursor.Mark()
	qualified := lx.scanQualifiedName()
	if lx.cursor.Off == uint32(start) {
		// не буква: одиночная руна, которую никто не знает
		lx.bumpRune()
		tok := lx.emit(token.Invalid, start)
		lx.errorf(diag.LexUnknownChar, tok.Span, fmt.Sprintf("unknown character %q", tok.Text))
		return tok
	}
	sp := lx.cursor.SpanFrom(start)
	text := lx.text(sp)

	if !qualified {
		switch text {
		case "__END__", "__DATA__":
			lx.cursor.BumpN(lx.cursor.Limit - lx.cursor.Off)
			return lx.emit(token.DataSection, start)
		}
		if kind, ok := token.LookupQuoteLike(text); ok && lx.quoteLikeAllowed(start) {
			return lx.scanQuoteLike(start, text, kind)
		}
		if k, ok := token.LookupKeyword(text); ok {
			if k == token.KwX && lx.expectTerm {
				return token.Token{Kind: token.Ident, Span: sp, Text: text}
			}
			return token.Token{Kind: k, Span: sp, Text: text}
		}
	}
	return token.Token{Kind: token.Ident, Span: sp, Text: text}
}

// scanQualifiedName consumes name("::"name)* with an optional leading or
// trailing "::". It reports whether a package separator was seen.
func (lx *Lexer) scanQualifiedName() (qualified bool) {
	for {
		if b0, b1, ok := lx.cursor.Peek2(); ok && b0 == ':' && b1 == ':' {
			lx.cursor.BumpN(2)
			qualified = true
			continue
		}
		r, sz := lx.peekRune()
		if sz == 0 {
			return qualified
		}
		if r < utf8RuneSelf {
			if !isIdentStartByte(byte(r)) {
				return qualified
			}
			lx.cursor.Bump()
			for isIdentContinueByte(lx.cursor.Peek()) {
				lx.cursor.Bump()
			}
			continue
		}
		if !isIdentStartRune(r) {
			return qualified
		}
		lx.bumpRune()
		for {
			r2, sz2 := lx.peekRune()
			if sz2 == 0 || (r2 < utf8RuneSelf && !isIdentContinueByte(byte(r2))) ||
				(r2 >= utf8RuneSelf && !isIdentContinueRune(r2)) {
				break
			}
			lx.bumpRune()
		}
	}
}

// quoteLikeAllowed decides whether q/qq/qw/qx/m/qr/s/tr/y at start opens a
// delimited construct. "$h->{s}", "s => 1", "-s $file" keep it a bareword.
func (lx *Lexer) quoteLikeAllowed(start Mark) bool {
	if lx.prev == token.Arrow {
		return false
	}
	if lx.prev == token.Minus && lx.prevEnd == uint32(start) {
		return false
	}
	ws := uint32(0)
	for isSpaceByte(lx.cursor.PeekAt(ws)) {
		ws++
	}
	d := lx.cursor.PeekAt(ws)
	if ws > 0 {
		return closingFor(d) != d
	}
	switch d {
	case 0, '=', ',', ';', ')', ']', '}', '>':
		return false
	}
	return !isIdentContinueByte(d) && d < utf8RuneSelf
}
