package parser

import (
	"perlsense/internal/ast"
	"perlsense/internal/token"
)

// Таблица приоритетов. Чем больше число, тем выше приоритет.
const (
	precLowOr          = 1  // or xor
	precLowAnd         = 2  // and
	precLowNot         = 3  // not (префиксный)
	precComma          = 4  // , =>
	precAssign         = 5  // = += -= ... (правоассоциативно)
	precTernary        = 6  // ?: (правоассоциативно)
	precRange          = 7  // .. ...
	precOrOr           = 8  // || //
	precAndAnd         = 9  // &&
	precBitOr          = 10 // | ^
	precBitAnd         = 11 // &
	precEquality       = 12 // == != <=> eq ne cmp
	precRelational     = 13 // < > <= >= lt gt le ge
	precShift          = 14 // << >>; операнд именованных унарных операторов
	precAdditive       = 15 // + - .
	precMultiplicative = 16 // * / % x
	precBind           = 17 // =~ !~
	precUnary          = 18 // ! ~ \ унарные + -
	precPow            = 19 // ** (правоассоциативно)
	precIncDec         = 20 // ++ --
)

// getBinaryOperatorPrec возвращает приоритет и ассоциативность оператора
// Возвращает (приоритет, правоассоциативный)
func (p *Parser) getBinaryOperatorPrec(kind token.Kind) (int, bool) {
	switch kind {
	case token.KwOr, token.KwXor:
		return precLowOr, false
	case token.KwAnd:
		return precLowAnd, false

	case token.Comma, token.FatArrow:
		return precComma, false

	case token.Question:
		return precTernary, true
	case token.DotDot, token.DotDotDot:
		return precRange, false

	// Логические операторы
	case token.OrOr, token.DefinedOr:
		return precOrOr, false
	case token.AndAnd:
		return precAndAnd, false

	// Битовые операторы
	case token.Pipe, token.Caret:
		return precBitOr, false
	case token.Amp:
		return precBitAnd, false

	// Сравнения
	case token.EqEq, token.BangEq, token.Spaceship, token.KwEq, token.KwNe, token.KwCmp:
		return precEquality, false
	case token.Lt, token.LtEq, token.Gt, token.GtEq, token.KwLt, token.KwLe, token.KwGt, token.KwGe:
		return precRelational, false

	case token.Shl, token.Shr:
		return precShift, false

	// Арифметические операторы
	case token.Plus, token.Minus, token.Dot:
		return precAdditive, false
	case token.Star, token.Slash, token.Percent, token.KwX:
		return precMultiplicative, false

	case token.Match, token.NotMatch:
		return precBind, false
	case token.StarStar:
		return precPow, true

	}
	// Присваивание (правоассоциативно)
	if isAssignOp(kind) {
		return precAssign, true
	}
	return -1, false // не бинарный оператор
}

func isAssignOp(kind token.Kind) bool {
	switch kind {
	case token.Assign, token.PlusAssign, token.MinusAssign, token.StarAssign,
		token.SlashAssign, token.PercentAssign, token.StarStarAssign, token.DotAssign,
		token.OrOrAssign, token.AndAndAssign, token.DefinedOrAssign, token.AmpAssign,
		token.PipeAssign, token.CaretAssign, token.ShlAssign, token.ShrAssign:
		return true
	}
	return false
}

// binaryNodeKind maps an infix operator token to the node kind it builds.
func binaryNodeKind(kind token.Kind) ast.Kind {
	switch kind {
	case token.KwOr, token.KwXor, token.KwAnd, token.OrOr, token.DefinedOr, token.AndAnd:
		return ast.KindLogical
	case token.DotDot, token.DotDotDot:
		return ast.KindRange
	}
	if isAssignOp(kind) {
		return ast.KindAssign
	}
	return ast.KindBinary
}

// canStartTerm reports whether a token may begin an operand.
func canStartTerm(k token.Kind) bool {
	switch k {
	case token.Ident, token.ScalarVar, token.ArrayVar, token.HashVar, token.ArrayLen, token.Cast,
		token.IntLit, token.FloatLit, token.StringLit, token.InterpStringLit, token.BacktickLit,
		token.QuoteLike, token.RegexMatch, token.Substitution, token.Transliteration,
		token.HeredocStart, token.Invalid,
		token.LParen, token.LBracket, token.LBrace,
		token.Backslash, token.Minus, token.Plus, token.Bang, token.Tilde,
		token.PlusPlus, token.MinusMinus, token.DotDotDot,
		token.KwMy, token.KwOur, token.KwLocal, token.KwState, token.KwSub,
		token.KwDo, token.KwEval, token.KwReturn, token.KwRequire, token.KwNot,
		token.KwLast, token.KwNext, token.KwRedo:
		return true
	}
	return false
}

// startsListArg is canStartTerm without the tokens that after a bareword
// read more naturally as infix operators: "foo - 1", "foo [..]", "foo {..}".
func startsListArg(k token.Kind) bool {
	switch k {
	case token.Minus, token.Plus, token.LBracket, token.LBrace,
		token.PlusPlus, token.MinusMinus, token.DotDotDot, token.LParen:
		return false
	}
	return canStartTerm(k)
}

// isModifier reports statement modifier keywords.
func isModifier(k token.Kind) bool {
	switch k {
	case token.KwIf, token.KwUnless, token.KwWhile, token.KwUntil, token.KwFor, token.KwForeach:
		return true
	}
	return false
}

// Именованные унарные операторы: операнд связывается сильнее сравнений.
var namedUnary = map[string]bool{
	"defined": true, "ref": true, "scalar": true, "lc": true, "uc": true,
	"lcfirst": true, "ucfirst": true, "length": true, "exists": true,
	"delete": true, "each": true, "keys": true, "values": true, "shift": true,
	"pop": true, "chr": true, "ord": true, "hex": true, "oct": true, "abs": true,
	"int": true, "sqrt": true, "log": true, "exp": true, "sin": true, "cos": true,
	"rand": true, "srand": true, "undef": true, "chdir": true, "rmdir": true,
	"readline": true, "close": true, "quotemeta": true, "fc": true, "exit": true,
	"umask": true, "sleep": true, "caller": true, "chroot": true, "lock": true,
}

// Встроенные со списком-блоком первым аргументом.
var blockListOps = map[string]bool{"map": true, "grep": true, "sort": true}

// Операторы вывода с необязательным дескриптором перед списком.
var printOps = map[string]bool{"print": true, "printf": true, "say": true}

// Фазовые блоки, разбираемые как объявления sub.
var phaseBlocks = map[string]bool{
	"BEGIN": true, "END": true, "INIT": true, "CHECK": true, "UNITCHECK": true,
}
