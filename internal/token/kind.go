package token

// Kind represents the category of a source token.
type Kind uint8

const (
	// Invalid indicates an erroneous token.
	Invalid Kind = iota
	// EOF marks the end of the source input.
	EOF

	// Ident represents a bareword, possibly package-qualified (Foo::Bar).
	Ident
	// KwMy represents the 'my' keyword.
	KwMy // my
	// KwOur represents the 'our' keyword.
	KwOur // our
	// KwLocal represents the 'local' keyword.
	KwLocal // local
	// KwState represents the 'state' keyword.
	KwState // state
	// KwSub represents the 'sub' keyword.
	KwSub // sub
	// KwPackage represents the 'package' keyword.
	KwPackage // package
	// KwUse represents the 'use' keyword.
	KwUse // use
	// KwNo represents the 'no' keyword.
	KwNo // no
	// KwRequire represents the 'require' keyword.
	KwRequire // require
	// KwIf represents the 'if' keyword.
	KwIf // if
	// KwElsif represents the 'elsif' keyword.
	KwElsif // elsif
	// KwElse represents the 'else' keyword.
	KwElse // else
	// KwUnless represents the 'unless' keyword.
	KwUnless // unless
	// KwWhile represents the 'while' keyword.
	KwWhile // while
	// KwUntil represents the 'until' keyword.
	KwUntil // until
	// KwFor represents the 'for' keyword.
	KwFor // for
	// KwForeach represents the 'foreach' keyword.
	KwForeach // foreach
	// KwReturn represents the 'return' keyword.
	KwReturn // return
	// KwLast represents the 'last' keyword.
	KwLast // last
	// KwNext represents the 'next' keyword.
	KwNext // next
	// KwRedo represents the 'redo' keyword.
	KwRedo // redo
	// KwDo represents the 'do' keyword.
	KwDo // do
	// KwEval represents the 'eval' keyword.
	KwEval // eval
	// KwAnd represents the low-precedence 'and' operator.
	KwAnd // and
	// KwOr represents the low-precedence 'or' operator.
	KwOr // or
	// KwNot represents the low-precedence 'not' operator.
	KwNot // not
	// KwXor represents the low-precedence 'xor' operator.
	KwXor // xor
	// KwX represents the repetition operator 'x'.
	KwX // x
	// KwEq represents the string equality operator 'eq'.
	KwEq // eq
	// KwNe represents the string inequality operator 'ne'.
	KwNe // ne
	// KwLt represents the string comparison operator 'lt'.
	KwLt // lt
	// KwGt represents the string comparison operator 'gt'.
	KwGt // gt
	// KwLe represents the string comparison operator 'le'.
	KwLe // le
	// KwGe represents the string comparison operator 'ge'.
	KwGe // ge
	// KwCmp represents the string three-way comparison 'cmp'.
	KwCmp // cmp

	// ScalarVar represents a scalar variable ($x, $_, $Foo::bar, $0).
	ScalarVar
	// ArrayVar represents an array variable (@x, @ARGV, @_).
	ArrayVar
	// HashVar represents a hash variable (%x, %ENV).
	HashVar
	// ArrayLen represents the last-index form of an array ($#x).
	ArrayLen
	// Cast represents a lone sigil used as a dereference prefix ($$ref, @{...}, %$h).
	Cast

	// IntLit represents an integer literal (decimal, hex, octal, binary).
	IntLit
	// FloatLit represents a floating point literal.
	FloatLit
	// StringLit represents a single-quoted string literal.
	StringLit
	// InterpStringLit represents a double-quoted, interpolating string literal.
	InterpStringLit
	// BacktickLit represents a back-quoted command literal.
	BacktickLit
	// QuoteLike represents q, qq, qw and qx constructs.
	QuoteLike
	// RegexMatch represents m//, qr// and a bare /pattern/.
	RegexMatch
	// Substitution represents s///.
	Substitution
	// Transliteration represents tr/// and y///.
	Transliteration
	// HeredocStart represents a heredoc declaration (<<EOF, <<"EOF", <<~EOF).
	HeredocStart
	// HeredocBody represents the collected body lines and terminator line of a heredoc.
	HeredocBody
	// DataSection represents __END__ or __DATA__ and everything after it.
	DataSection

	// Plus represents the plus operator token.
	Plus // +
	// Minus represents the minus operator token.
	Minus // -
	// Star represents the star operator token.
	Star // *
	// Slash represents the slash operator token.
	Slash // /
	// Percent represents the percent operator token.
	Percent // %
	// StarStar represents the exponent operator token.
	StarStar // **
	// Dot represents the concatenation operator token.
	Dot // .
	// Assign represents the assign operator token.
	Assign // =
	// PlusAssign represents the plus assign operator token.
	PlusAssign // +=
	// MinusAssign represents the minus assign operator token.
	MinusAssign // -=
	// StarAssign represents the star assign operator token.
	StarAssign // *=
	// SlashAssign represents the slash assign operator token.
	SlashAssign // /=
	// PercentAssign represents the percent assign operator token.
	PercentAssign // %=
	// StarStarAssign represents the exponent assign operator token.
	StarStarAssign // **=
	// DotAssign represents the concatenation assign operator token.
	DotAssign // .=
	// OrOrAssign represents the logical-or assign operator token.
	OrOrAssign // ||=
	// AndAndAssign represents the logical-and assign operator token.
	AndAndAssign // &&=
	// DefinedOrAssign represents the defined-or assign operator token.
	DefinedOrAssign // //=
	// AmpAssign represents the bitwise-and assign operator token.
	AmpAssign // &=
	// PipeAssign represents the bitwise-or assign operator token.
	PipeAssign // |=
	// CaretAssign represents the bitwise-xor assign operator token.
	CaretAssign // ^=
	// ShlAssign represents the shift-left assign operator token.
	ShlAssign // <<=
	// ShrAssign represents the shift-right assign operator token.
	ShrAssign // >>=
	// EqEq represents the numeric equality operator token.
	EqEq // ==
	// BangEq represents the numeric inequality operator token.
	BangEq // !=
	// Spaceship represents the numeric three-way comparison token.
	Spaceship // <=>
	// Lt represents the lt operator token.
	Lt // <
	// LtEq represents the lt eq operator token.
	LtEq // <=
	// Gt represents the gt operator token.
	Gt // >
	// GtEq represents the gt eq operator token.
	GtEq // >=
	// Shl represents the shl operator token.
	Shl // <<
	// Shr represents the shr operator token.
	Shr // >>
	// Amp represents the amp operator token.
	Amp // &
	// Pipe represents the pipe operator token.
	Pipe // |
	// Caret represents the caret operator token.
	Caret // ^
	// Tilde represents the bitwise negation token.
	Tilde // ~
	// AndAnd represents the and and operator token.
	AndAnd // &&
	// OrOr represents the or or operator token.
	OrOr // ||
	// DefinedOr represents the defined-or operator token.
	DefinedOr // //
	// Bang represents the bang operator token.
	Bang // !
	// Match represents the binding match operator token.
	Match // =~
	// NotMatch represents the negated binding match operator token.
	NotMatch // !~
	// Backslash represents the reference constructor token.
	Backslash // \
	// PlusPlus represents the increment operator token.
	PlusPlus // ++
	// MinusMinus represents the decrement operator token.
	MinusMinus // --
	// Question represents the question operator token.
	Question // ?
	// Colon represents the colon operator token.
	Colon // :
	// Semicolon represents the semicolon operator token.
	Semicolon // ;
	// Comma represents the comma operator token.
	Comma // ,
	// FatArrow represents the fat comma token.
	FatArrow // =>
	// Arrow represents the dereference arrow token.
	Arrow // ->
	// DotDot represents the range operator token.
	DotDot // ..
	// DotDotDot represents the yada-yada / flip-flop token.
	DotDotDot // ...
	// LParen represents the left parenthesis operator token.
	LParen // (
	// RParen represents the right parenthesis operator token.
	RParen // )
	// LBrace represents the left brace operator token.
	LBrace // {
	// RBrace represents the right brace operator token.
	RBrace // }
	// LBracket represents the left bracket operator token.
	LBracket // [
	// RBracket represents the right bracket operator token.
	RBracket // ]

	kindCount
)

var kindNames = [...]string{
	Invalid: "Invalid", EOF: "EOF", Ident: "Ident",
	KwMy: "my", KwOur: "our", KwLocal: "local", KwState: "state", KwSub: "sub",
	KwPackage: "package", KwUse: "use", KwNo: "no", KwRequire: "require",
	KwIf: "if", KwElsif: "elsif", KwElse: "else", KwUnless: "unless",
	KwWhile: "while", KwUntil: "until", KwFor: "for", KwForeach: "foreach",
	KwReturn: "return", KwLast: "last", KwNext: "next", KwRedo: "redo",
	KwDo: "do", KwEval: "eval", KwAnd: "and", KwOr: "or", KwNot: "not",
	KwXor: "xor", KwX: "x", KwEq: "eq", KwNe: "ne", KwLt: "lt", KwGt: "gt",
	KwLe: "le", KwGe: "ge", KwCmp: "cmp",
	ScalarVar: "ScalarVar", ArrayVar: "ArrayVar", HashVar: "HashVar", ArrayLen: "ArrayLen", Cast: "Cast",
	IntLit: "IntLit", FloatLit: "FloatLit", StringLit: "StringLit",
	InterpStringLit: "InterpStringLit", BacktickLit: "BacktickLit",
	QuoteLike: "QuoteLike", RegexMatch: "RegexMatch", Substitution: "Substitution",
	Transliteration: "Transliteration", HeredocStart: "HeredocStart",
	HeredocBody: "HeredocBody", DataSection: "DataSection",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%", StarStar: "**",
	Dot: ".", Assign: "=", PlusAssign: "+=", MinusAssign: "-=", StarAssign: "*=",
	SlashAssign: "/=", PercentAssign: "%=", StarStarAssign: "**=", DotAssign: ".=",
	OrOrAssign: "||=", AndAndAssign: "&&=", DefinedOrAssign: "//=",
	AmpAssign: "&=", PipeAssign: "|=", CaretAssign: "^=", ShlAssign: "<<=", ShrAssign: ">>=",
	EqEq: "==", BangEq: "!=", Spaceship: "<=>", Lt: "<", LtEq: "<=", Gt: ">",
	GtEq: ">=", Shl: "<<", Shr: ">>", Amp: "&", Pipe: "|", Caret: "^", Tilde: "~",
	AndAnd: "&&", OrOr: "||", DefinedOr: "//", Bang: "!", Match: "=~", NotMatch: "!~",
	Backslash: "\\", PlusPlus: "++", MinusMinus: "--", Question: "?", Colon: ":",
	Semicolon: ";", Comma: ",", FatArrow: "=>", Arrow: "->", DotDot: "..",
	DotDotDot: "...", LParen: "(", RParen: ")", LBrace: "{", RBrace: "}",
	LBracket: "[", RBracket: "]",
}

func (k Kind) String() string {
	if k < kindCount && kindNames[k] != "" {
		return kindNames[k]
	}
	return "Kind(?)"
}

// IsVariable reports whether k is a sigil-prefixed variable.
func (k Kind) IsVariable() bool {
	return k >= ScalarVar && k <= ArrayLen
}

// IsQuoted reports whether k is a string, quote-like or regex construct.
func (k Kind) IsQuoted() bool {
	return k >= StringLit && k <= Transliteration
}
