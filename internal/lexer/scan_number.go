package lexer

import (
	"perlsense/internal/diag"
	"perlsense/internal/token"
)

// Поддержка: 0, 123, 1_000, 017, 0o17, 0b101, 0x1F, 1.0, .5, 1., 1e-3, 1.0E+10.
// "1..10" — число, DotDot, число.
// Неверные формы (0x без цифр) — репорт, токен всё равно выдаём как IntLit.
func (lx *Lexer) scanNumber() token.Token {
	start := lx.cursor.Mark()
	kind := token.IntLit

	// ведущая точка — значит формат ".digits"
	if lx.cursor.Peek() == '.' {
		lx.cursor.Bump() // '.'
		kind = token.FloatLit
		lx.skipDigits(isDec)
		goto emitWithMaybeExp
	}

	// ведущий 0 и база?
	if lx.cursor.Peek() == '0' {
		var digit func(byte) bool
		switch lx.cursor.PeekAt(1) {
		case 'b', 'B':
			digit = func(b byte) bool { return b == '0' || b == '1' }
		case 'o', 'O':
			digit = func(b byte) bool { return b >= '0' && b <= '7' }
		case 'x', 'X':
			digit = isHex
		}
		if digit != nil {
			lx.cursor.BumpN(2)
			if !digit(lx.cursor.Peek()) {
				tok := lx.emit(token.IntLit, start)
				lx.errorf(diag.LexBadNumber, tok.Span, "expected digits after base prefix "+tok.Text)
				return tok
			}
			lx.skipDigits(digit)
			goto emit
		}
	}

	// десятичная целая часть (ведущий 0 — восьмеричная, для токена неважно)
	lx.skipDigits(isDec)

	// дробная часть
	if lx.cursor.Peek() == '.' {
		if b1 := lx.cursor.PeekAt(1); b1 == '.' {
			// это '..' — НЕ часть числа
			goto emit
		} else if isIdentStartByte(b1) && b1 != 'e' && b1 != 'E' {
			// 1.foo — конкатенация, а не "1."
			goto emit
		}
		lx.cursor.Bump() // '.'
		kind = token.FloatLit
		lx.skipDigits(isDec)
	}

emitWithMaybeExp:
	// экспонента — только если за e идут цифры
	if c := lx.cursor.Peek(); c == 'e' || c == 'E' {
		n := uint32(1)
		if s := lx.cursor.PeekAt(1); s == '+' || s == '-' {
			n = 2
		}
		if isDec(lx.cursor.PeekAt(n)) {
			kind = token.FloatLit
			lx.cursor.BumpN(n)
			lx.skipDigits(isDec)
		}
	}

emit:
	return lx.emit(kind, start)
}

// skipDigits consumes digits accepted by digit plus '_' separators.
func (lx *Lexer) skipDigits(digit func(byte) bool) {
	for {
		b := lx.cursor.Peek()
		if !digit(b) && b != '_' {
			return
		}
		lx.cursor.Bump()
	}
}
