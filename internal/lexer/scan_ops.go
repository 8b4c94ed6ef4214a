package lexer

import (
	"fmt"

	"perlsense/internal/diag"
	"perlsense/internal/token"
)

// Жадность: сначала 3-символьные, затем 2-символьные, затем 1-символьные.
func (lx *Lexer) scanOperatorOrPunct() token.Token {
	start := lx.cursor.Mark()
	emit := func(k token.Kind) token.Token {
		return lx.emit(k, start)
	}

	switch {
	case lx.try3('*', '*', '='):
		return emit(token.StarStarAssign)
	case lx.try3('|', '|', '='):
		return emit(token.OrOrAssign)
	case lx.try3('&', '&', '='):
		return emit(token.AndAndAssign)
	case lx.try3('/', '/', '='):
		return emit(token.DefinedOrAssign)
	case lx.try3('<', '<', '='):
		return emit(token.ShlAssign)
	case lx.try3('>', '>', '='):
		return emit(token.ShrAssign)
	case lx.try3('<', '=', '>'):
		return emit(token.Spaceship)
	case lx.try3('.', '.', '.'):
		return emit(token.DotDotDot)
	}

	switch {
	case lx.try2('*', '*'):
		return emit(token.StarStar)
	case lx.try2('+', '='):
		return emit(token.PlusAssign)
	case lx.try2('-', '='):
		return emit(token.MinusAssign)
	case lx.try2('*', '='):
		return emit(token.StarAssign)
	case lx.try2('/', '='):
		return emit(token.SlashAssign)
	case lx.try2('%', '='):
		return emit(token.PercentAssign)
	case lx.try2('.', '='):
		return emit(token.DotAssign)
	case lx.try2('&', '='):
		return emit(token.AmpAssign)
	case lx.try2('|', '='):
		return emit(token.PipeAssign)
	case lx.try2('^', '='):
		return emit(token.CaretAssign)
	case lx.try2('=', '='):
		return emit(token.EqEq)
	case lx.try2('!', '='):
		return emit(token.BangEq)
	case lx.try2('<', '='):
		return emit(token.LtEq)
	case lx.try2('>', '='):
		return emit(token.GtEq)
	case lx.try2('<', '<'):
		return emit(token.Shl)
	case lx.try2('>', '>'):
		return emit(token.Shr)
	case lx.try2('&', '&'):
		return emit(token.AndAnd)
	case lx.try2('|', '|'):
		return emit(token.OrOr)
	case lx.try2('/', '/'):
		return emit(token.DefinedOr)
	case lx.try2('=', '~'):
		return emit(token.Match)
	case lx.try2('!', '~'):
		return emit(token.NotMatch)
	case lx.try2('+', '+'):
		return emit(token.PlusPlus)
	case lx.try2('-', '-'):
		return emit(token.MinusMinus)
	case lx.try2('=', '>'):
		return emit(token.FatArrow)
	case lx.try2('-', '>'):
		return emit(token.Arrow)
	case lx.try2('.', '.'):
		return emit(token.DotDot)
	}

	// односимвольные
	if k, ok := singleCharOps[lx.cursor.Peek()]; ok {
		lx.cursor.Bump()
		return emit(k)
	}

	// неизвестный символ — Invalid + диагностика, съедаем целую руну
	lx.bumpRune()
	if lx.cursor.Off == uint32(start) {
		lx.cursor.Bump()
	}
	tok := emit(token.Invalid)
	lx.errorf(diag.LexUnknownChar, tok.Span, fmt.Sprintf("unknown character %q", tok.Text))
	return tok
}

var singleCharOps = map[byte]token.Kind{
	'+': token.Plus, '-': token.Minus, '*': token.Star, '/': token.Slash,
	'%': token.Percent, '.': token.Dot, '=': token.Assign, '<': token.Lt,
	'>': token.Gt, '&': token.Amp, '|': token.Pipe, '^': token.Caret,
	'~': token.Tilde, '!': token.Bang, '\\': token.Backslash, '?': token.Question,
	':': token.Colon, ';': token.Semicolon, ',': token.Comma,
	'(': token.LParen, ')': token.RParen, '{': token.LBrace, '}': token.RBrace,
	'[': token.LBracket, ']': token.RBracket,
}
