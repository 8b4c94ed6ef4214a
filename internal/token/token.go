package token

import (
	"perlsense/internal/source"
)

// Token represents a single source token with its location and trivia.
type Token struct {
	Kind    Kind
	Span    source.Span
	Text    string
	Leading []Trivia
	Heredoc *Heredoc  // only for HeredocStart
	Body    *BodyInfo // only for HeredocBody
}

// QuoteStyle is the quoting used for a heredoc label.
type QuoteStyle uint8

const (
	// QuoteBare is an unquoted label: <<EOF.
	QuoteBare QuoteStyle = iota
	// QuoteDouble is <<"EOF".
	QuoteDouble
	// QuoteSingle is <<'EOF' or <<\EOF.
	QuoteSingle
	// QuoteBacktick is <<`EOF`.
	QuoteBacktick
)

func (s QuoteStyle) String() string {
	switch s {
	case QuoteBare:
		return "bare"
	case QuoteDouble:
		return "double"
	case QuoteSingle:
		return "single"
	case QuoteBacktick:
		return "backtick"
	}
	return "unknown"
}

// Interpolates reports whether the body is subject to variable interpolation.
func (s QuoteStyle) Interpolates() bool {
	return s != QuoteSingle
}

// Heredoc is the decoded declaration of a heredoc.
type Heredoc struct {
	Terminator string // label after escape processing
	Style      QuoteStyle
	Indented   bool // <<~
}

// BodyInfo is the collected body of a heredoc, carried by HeredocBody tokens.
type BodyInfo struct {
	Decl       *Heredoc
	DeclSpan   source.Span // span of the matching HeredocStart token
	Content    string      // body text, dedented for <<~
	BodySpan   source.Span // raw body lines, terminator line excluded
	TermSpan   source.Span // terminator line including its line ending; empty if missing
	Terminated bool
}

// IsLiteral reports whether the token is a numeric, string or quote-like literal.
func (t Token) IsLiteral() bool {
	switch t.Kind {
	case IntLit, FloatLit, StringLit, InterpStringLit, BacktickLit, QuoteLike, HeredocStart:
		return true
	default:
		return false
	}
}

// IsKeyword reports whether the token is a language keyword.
func (t Token) IsKeyword() bool {
	return t.Kind >= KwMy && t.Kind <= KwCmp
}

// IsPunctOrOp reports whether the token is a punctuation or operator.
func (t Token) IsPunctOrOp() bool {
	return t.Kind >= Plus && t.Kind < kindCount
}

// IsIdent reports whether the token is an identifier.
func (t Token) IsIdent() bool { return t.Kind == Ident }

// StartsStatement reports whether the token kind can only begin a statement.
// The parser uses it as a recovery point.
func (k Kind) StartsStatement() bool {
	switch k {
	case KwMy, KwOur, KwLocal, KwState, KwSub, KwPackage, KwUse, KwNo, KwIf,
		KwUnless, KwWhile, KwUntil, KwFor, KwForeach, KwReturn:
		return true
	default:
		return false
	}
}
