package lexer

import (
	"strings"

	"perlsense/internal/token"
)

// punctuation variables: $_ идёт через обычное имя, здесь остальные.
const scalarPunct = "&`'+!@/\\,;.<>[]^-:?|\"0~=%"

// scanScalarSigil handles everything that starts with '$'.
func (lx *Lexer) scanScalarSigil() token.Token {
	start := lx.cursor.Mark()
	lx.cursor.Bump() // '$'
	b := lx.cursor.Peek()

	switch {
	case b == '#':
		b1 := lx.cursor.PeekAt(1)
		switch {
		case b1 == '{' || b1 == '$':
			lx.cursor.Bump()
			return lx.emit(token.Cast, start)
		case isIdentStartByte(b1) || b1 == ':':
			lx.cursor.Bump()
			if lx.scanVarName() {
				return lx.emit(token.ArrayLen, start)
			}
			lx.cursor.Reset(start + 2)
		}
		return lx.emit(token.ScalarVar, start)

	case lx.scanVarName():
		return lx.emit(token.ScalarVar, start)

	case isDec(b):
		for isDec(lx.cursor.Peek()) {
			lx.cursor.Bump()
		}
		return lx.emit(token.ScalarVar, start)

	case b == '{':
		return lx.emit(token.Cast, start)

	case b == '$':
		// $$ref, $${...}, $$$ref — разыменование; одиночный $$ — PID
		b1 := lx.cursor.PeekAt(1)
		if isIdentStartByte(b1) || b1 == '{' || b1 == '$' || b1 == ':' {
			return lx.emit(token.Cast, start)
		}
		lx.cursor.Bump()
		return lx.emit(token.ScalarVar, start)

	case b == '^':
		lx.cursor.Bump()
		if c := lx.cursor.Peek(); (c >= 'A' && c <= 'Z') || c == '_' || c == '[' || c == ']' {
			lx.cursor.Bump()
		}
		return lx.emit(token.ScalarVar, start)

	case b != 0 && strings.IndexByte(scalarPunct, b) >= 0:
		lx.cursor.Bump()
		return lx.emit(token.ScalarVar, start)
	}
	// одинокий '$' — как префикс разыменования, парсер разберётся
	return lx.emit(token.Cast, start)
}

// scanArraySigil handles '@'.
func (lx *Lexer) scanArraySigil() token.Token {
	start := lx.cursor.Mark()
	lx.cursor.Bump() // '@'
	switch b := lx.cursor.Peek(); {
	case lx.scanVarName():
		return lx.emit(token.ArrayVar, start)
	case b == '-' || b == '+':
		lx.cursor.Bump()
		return lx.emit(token.ArrayVar, start)
	}
	return lx.emit(token.Cast, start)
}

// scanHashSigil handles '%' in term position. ok == false means modulo.
func (lx *Lexer) scanHashSigil() (token.Token, bool) {
	start := lx.cursor.Mark()
	lx.cursor.Bump() // '%'
	switch b := lx.cursor.Peek(); {
	case lx.scanVarName():
		return lx.emit(token.HashVar, start), true
	case b == '$' || b == '{':
		return lx.emit(token.Cast, start), true
	case (b == '+' || b == '-' || b == '!') && !isSpaceByte(lx.cursor.PeekAt(1)):
		lx.cursor.Bump()
		return lx.emit(token.HashVar, start), true
	}
	lx.cursor.Reset(start)
	return token.Token{}, false
}

// scanCodeSigil handles '&' in term position: &$code, &{...}, &name.
func (lx *Lexer) scanCodeSigil() (token.Token, bool) {
	b1 := lx.cursor.PeekAt(1)
	if b1 != '$' && b1 != '{' && !isIdentStartByte(b1) && b1 != ':' {
		return token.Token{}, false
	}
	start := lx.cursor.Mark()
	lx.cursor.Bump()
	return lx.emit(token.Cast, start), true
}

// scanGlobSigil handles typeglobs: *STDOUT, *{"name"}.
func (lx *Lexer) scanGlobSigil() (token.Token, bool) {
	b1 := lx.cursor.PeekAt(1)
	if b1 != '{' && b1 != '$' && !isIdentStartByte(b1) {
		return token.Token{}, false
	}
	start := lx.cursor.Mark()
	lx.cursor.Bump()
	return lx.emit(token.Cast, start), true
}

// scanVarName consumes a possibly package-qualified variable name after a sigil.
// "$::x" and "$Foo::Bar::baz" are accepted; a lone "::" is not.
func (lx *Lexer) scanVarName() bool {
	mark := lx.cursor.Mark()
	b0 := lx.cursor.Peek()
	if b0 == ':' {
		if lx.cursor.PeekAt(1) != ':' || !isIdentStartByte(lx.cursor.PeekAt(2)) {
			return false
		}
	} else if !isIdentStartByte(b0) {
		if r, sz := lx.peekRune(); sz == 0 || r < utf8RuneSelf || !isIdentStartRune(r) {
			return false
		}
	}
	lx.scanQualifiedName()
	return lx.cursor.Off > uint32(mark)
}
