package lexer

import (
	"slices"

	"perlsense/internal/source"
	"perlsense/internal/token"
)

// Mode is the lexical mode the lexer is in between two tokens.
type Mode uint8

const (
	// ModeNormal lexes ordinary code.
	ModeNormal Mode = iota
	// ModeQuoteLike is active while a delimited construct is being scanned.
	ModeQuoteLike
	// ModeHeredocBody means at least one heredoc body is pending; the next
	// line ending switches to body collection.
	ModeHeredocBody
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeQuoteLike:
		return "quote-like"
	case ModeHeredocBody:
		return "heredoc-body"
	}
	return "mode(?)"
}

// State is a snapshot of the lexer's context-sensitive state.
type State struct {
	Mode       Mode
	Offset     uint32
	Pending    []token.Heredoc
	ExpectTerm bool
}

// Clean reports whether a fresh lexer started at Offset would behave identically.
func (s State) Clean() bool {
	return s.Mode == ModeNormal && len(s.Pending) == 0
}

type pendingHeredoc struct {
	decl *token.Heredoc
	span source.Span
}

type Lexer struct {
	file    *source.File
	cursor  Cursor
	opts    Options
	look    []token.Token  // буфер просмотра вперёд
	hold    []token.Trivia // накопленные leading trivia
	mode    Mode
	pending []pendingHeredoc // объявленные, но ещё не собранные heredoc (FIFO)
	ready   []token.Token    // собранные тела heredoc, ждут выдачи
	// expectTerm is true when the next token starts a term, false when an
	// operator is expected. It disambiguates '/', '<<', '%', '&', 'x' and '<'.
	expectTerm bool
	prev       token.Kind
	prevEnd    uint32
}

func New(file *source.File, opts Options) *Lexer {
	cur := NewCursor(file)
	if opts.Start > cur.Limit {
		opts.Start = cur.Limit
	}
	cur.Off = opts.Start
	lx := &Lexer{
		file:       file,
		cursor:     cur,
		opts:       opts,
		expectTerm: true,
		prev:       token.Invalid,
	}
	if opts.Prev != token.Invalid {
		lx.prev = opts.Prev
		lx.expectTerm = expectsTermAfter(opts.Prev)
	}
	return lx
}

// Next возвращает следующий **значимый** токен с уже собранным Leading.
// После EOF всегда возвращает EOF.
func (lx *Lexer) Next() token.Token {
	if len(lx.look) > 0 {
		tok := lx.look[0]
		lx.look = lx.look[1:]
		return tok
	}
	return lx.lex()
}

// Peek возвращает следующий токен, не потребляя его.
func (lx *Lexer) Peek() token.Token {
	return lx.PeekN(0)
}

// PeekN returns the n-th upcoming token (0-based) without consuming it.
func (lx *Lexer) PeekN(n int) token.Token {
	for len(lx.look) <= n {
		lx.look = append(lx.look, lx.lex())
	}
	return lx.look[n]
}

// State returns the lexer state at the next unconsumed token. Lookahead
// tokens are accounted for: Offset is the start of the first buffered token.
func (lx *Lexer) State() State {
	st := State{
		Mode:       lx.mode,
		Offset:     lx.cursor.Off,
		ExpectTerm: lx.expectTerm,
	}
	if len(lx.look) > 0 {
		st.Offset = lx.look[0].Span.Start
	}
	for _, p := range lx.pending {
		st.Pending = append(st.Pending, *p.decl)
	}
	if len(lx.ready) > 0 && st.Mode == ModeNormal {
		st.Mode = ModeHeredocBody
	}
	return st
}

// Mode returns the current lexical mode.
func (lx *Lexer) Mode() Mode { return lx.mode }

// Offset is the cursor position, past any buffered lookahead.
func (lx *Lexer) Offset() uint32 { return lx.cursor.Off }

func (lx *Lexer) lex() token.Token {
	if tok, ok := lx.popReady(); ok {
		return tok
	}

	lx.collectLeadingTrivia()
	if tok, ok := lx.popReady(); ok {
		return tok
	}
	// "}" в конце строки закрывает блок-инструкцию: дальше снова терм
	if lx.prev == token.RBrace && holdHasNewline(lx.hold) {
		lx.expectTerm = true
	}

	if lx.cursor.EOF() {
		if len(lx.pending) > 0 {
			lx.flushUnterminated()
			if tok, ok := lx.popReady(); ok {
				return tok
			}
		}
		// Leading из hold не приклеиваем к EOF
		lx.hold = nil
		return token.Token{Kind: token.EOF, Span: lx.emptySpan()}
	}

	tok := lx.scanToken()
	tok.Leading = lx.hold
	lx.hold = nil
	lx.settle(tok)
	return tok
}

func (lx *Lexer) scanToken() token.Token {
	ch := lx.cursor.Peek()
	switch {
	case ch == '$':
		return lx.scanScalarSigil()
	case ch == '@':
		return lx.scanArraySigil()
	case ch == '%' && lx.expectTerm:
		if tok, ok := lx.scanHashSigil(); ok {
			return tok
		}
	case ch == '&' && lx.expectTerm:
		if tok, ok := lx.scanCodeSigil(); ok {
			return tok
		}
	case ch == '*' && lx.expectTerm:
		if tok, ok := lx.scanGlobSigil(); ok {
			return tok
		}
	case isIdentStartByte(ch):
		return lx.scanIdentOrKeyword()
	case ch >= utf8RuneSelf:
		return lx.scanIdentOrKeyword()
	case ch == ':' && lx.cursor.PeekAt(1) == ':' && isIdentStartByte(lx.cursor.PeekAt(2)):
		return lx.scanIdentOrKeyword()
	case isDec(ch):
		return lx.scanNumber()
	case ch == '.' && lx.isNumberAfterDot() && lx.expectTerm:
		return lx.scanNumber()
	case ch == '\'':
		return lx.scanString('\'', token.StringLit)
	case ch == '"':
		return lx.scanString('"', token.InterpStringLit)
	case ch == '`':
		return lx.scanString('`', token.BacktickLit)
	case ch == '/' && lx.expectTerm:
		if tok, ok := lx.scanBareRegex(); ok {
			return tok
		}
	case ch == '<' && lx.expectTerm:
		if lx.cursor.PeekAt(1) == '<' {
			if tok, ok := lx.scanHeredocDecl(); ok {
				return tok
			}
		} else if tok, ok := lx.scanReadline(); ok {
			return tok
		}
	}
	return lx.scanOperatorOrPunct()
}

// settle updates the term/operator expectation after tok.
func (lx *Lexer) settle(tok token.Token) {
	lx.prev = tok.Kind
	lx.prevEnd = tok.Span.End
	lx.expectTerm = expectsTermAfter(tok.Kind)
	if len(lx.pending) > 0 {
		lx.mode = ModeHeredocBody
	} else {
		lx.mode = ModeNormal
	}
}

func expectsTermAfter(k token.Kind) bool {
	switch k {
	case token.Ident:
		// bareword может быть вызовом функции: print /x/, split //
		return true
	case token.ScalarVar, token.ArrayVar, token.HashVar, token.ArrayLen,
		token.IntLit, token.FloatLit, token.StringLit, token.InterpStringLit,
		token.BacktickLit, token.QuoteLike, token.RegexMatch, token.Substitution,
		token.Transliteration, token.HeredocStart,
		token.RParen, token.RBracket, token.RBrace,
		token.PlusPlus, token.MinusMinus:
		return false
	default:
		return true
	}
}

func holdHasNewline(hold []token.Trivia) bool {
	for _, tr := range hold {
		if tr.Kind == token.TriviaNewline {
			return true
		}
	}
	return false
}

// popReady hands out collected bodies. A body always starts a new line, so
// the token after it is lexed as the start of a term.
func (lx *Lexer) popReady() (token.Token, bool) {
	if len(lx.ready) == 0 {
		return token.Token{}, false
	}
	tok := lx.ready[0]
	lx.ready = slices.Delete(lx.ready, 0, 1)
	lx.prev = tok.Kind
	lx.prevEnd = tok.Span.End
	lx.expectTerm = true
	if len(lx.ready) == 0 && len(lx.pending) == 0 {
		lx.mode = ModeNormal
	}
	return tok, true
}

func (lx *Lexer) emptySpan() source.Span {
	return source.Span{File: lx.file.ID, Start: lx.cursor.Off, End: lx.cursor.Off}
}

func (lx *Lexer) text(sp source.Span) string {
	return string(lx.file.Content[sp.Start:sp.End])
}

func (lx *Lexer) emit(k token.Kind, start Mark) token.Token {
	sp := lx.cursor.SpanFrom(start)
	return token.Token{Kind: k, Span: sp, Text: lx.text(sp)}
}

// PendingSince counts heredocs declared at or after off whose bodies have
// not been handed out yet: still pending, collected, or sitting in lookahead.
func (lx *Lexer) PendingSince(off uint32) int {
	n := 0
	for _, p := range lx.pending {
		if p.span.Start >= off {
			n++
		}
	}
	for _, tok := range lx.ready {
		if tok.Body != nil && tok.Body.DeclSpan.Start >= off {
			n++
		}
	}
	for _, tok := range lx.look {
		if tok.Kind == token.HeredocBody && tok.Body != nil && tok.Body.DeclSpan.Start >= off {
			n++
		}
	}
	return n
}
