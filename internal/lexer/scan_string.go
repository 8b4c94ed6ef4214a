package lexer

import (
	"fmt"

	"perlsense/internal/diag"
	"perlsense/internal/token"
)

// scanString сканирует '...', "..." и `...`. Строки могут быть многострочными.
// Внутри пропускаем экранирование "\x" целиком; интерполяцию не разбираем.
// Незакрытая строка тянется до EOF и репортится.
func (lx *Lexer) scanString(quote byte, kind token.Kind) token.Token {
	start := lx.cursor.Mark()
	lx.cursor.Bump() // открывающая кавычка
	for !lx.cursor.EOF() {
		switch lx.cursor.Bump() {
		case '\\':
			lx.cursor.Bump()
		case quote:
			return lx.emit(kind, start)
		}
	}
	tok := lx.emit(kind, start)
	lx.errorf(diag.LexUnterminatedString, tok.Span, "unterminated string literal")
	return tok
}

// closingFor returns the closing delimiter for open; non-bracket delimiters close themselves.
func closingFor(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	case '{':
		return '}'
	case '<':
		return '>'
	}
	return open
}

// scanQuoteLike scans q qq qw qx m qr s tr y after the operator word.
// s/tr/y take two parts: "s/a/b/" or "s{a}{b}" (with optional space between
// bracketed parts). Regex forms take trailing flag letters.
func (lx *Lexer) scanQuoteLike(start Mark, op string, kind token.Kind) token.Token {
	prevMode := lx.mode
	lx.mode = ModeQuoteLike
	defer func() { lx.mode = prevMode }()

	lx.skipSpaces()
	open := lx.cursor.Bump()
	closeDelim := closingFor(open)
	ok := lx.scanDelimited(open, closeDelim)

	if ok && (kind == token.Substitution || kind == token.Transliteration) {
		if open != closeDelim {
			// s{...}{...}, s{...}/.../, s(...) [...]
			lx.skipSpaces()
			open2 := lx.cursor.Bump()
			ok = open2 != 0 && lx.scanDelimited(open2, closingFor(open2))
		} else {
			ok = lx.scanDelimited(open, closeDelim)
		}
	}
	if !ok {
		tok := lx.emit(kind, start)
		lx.errorf(diag.LexUnterminatedQuote, tok.Span, fmt.Sprintf("unterminated %s%c...%c construct", op, open, closeDelim))
		return tok
	}
	if kind != token.QuoteLike {
		for isAlphaByte(lx.cursor.Peek()) {
			lx.cursor.Bump()
		}
	}
	return lx.emit(kind, start)
}

// scanDelimited consumes bytes up to and including the closing delimiter.
// The opening delimiter has already been consumed. Brackets nest.
func (lx *Lexer) scanDelimited(open, closeDelim byte) bool {
	depth := 1
	for !lx.cursor.EOF() {
		b := lx.cursor.Bump()
		switch {
		case b == '\\':
			lx.cursor.Bump()
		case b == closeDelim:
			depth--
			if depth == 0 {
				return true
			}
		case b == open && open != closeDelim:
			depth++
		}
	}
	return false
}

func (lx *Lexer) skipSpaces() {
	for isSpaceByte(lx.cursor.Peek()) {
		lx.cursor.Bump()
	}
}

// scanBareRegex scans "/pattern/flags" where a term is expected.
// Without a closing '/' the slash is treated as an operator.
func (lx *Lexer) scanBareRegex() (token.Token, bool) {
	start := lx.cursor.Mark()
	lx.cursor.Bump() // '/'
	inClass := false
	for !lx.cursor.EOF() {
		b := lx.cursor.Bump()
		switch {
		case b == '\\':
			lx.cursor.Bump()
		case b == '[':
			inClass = true
		case b == ']':
			inClass = false
		case b == '/' && !inClass:
			for isAlphaByte(lx.cursor.Peek()) {
				lx.cursor.Bump()
			}
			return lx.emit(token.RegexMatch, start), true
		}
	}
	lx.cursor.Reset(start)
	return token.Token{}, false
}

// scanReadline scans "<STDIN>", "<$fh>" and "<>" where a term is expected.
func (lx *Lexer) scanReadline() (token.Token, bool) {
	start := lx.cursor.Mark()
	lx.cursor.Bump() // '<'
	if lx.cursor.Peek() == '$' {
		lx.cursor.Bump()
	}
	lx.scanQualifiedName()
	if !lx.cursor.Eat('>') {
		lx.cursor.Reset(start)
		return token.Token{}, false
	}
	return lx.emit(token.QuoteLike, start), true
}
