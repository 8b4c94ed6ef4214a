package token

var keywords = map[string]Kind{
	"my":      KwMy,
	"our":     KwOur,
	"local":   KwLocal,
	"state":   KwState,
	"sub":     KwSub,
	"package": KwPackage,
	"use":     KwUse,
	"no":      KwNo,
	"require": KwRequire,
	"if":      KwIf,
	"elsif":   KwElsif,
	"else":    KwElse,
	"unless":  KwUnless,
	"while":   KwWhile,
	"until":   KwUntil,
	"for":     KwFor,
	"foreach": KwForeach,
	"return":  KwReturn,
	"last":    KwLast,
	"next":    KwNext,
	"redo":    KwRedo,
	"do":      KwDo,
	"eval":    KwEval,
	"and":     KwAnd,
	"or":      KwOr,
	"not":     KwNot,
	"xor":     KwXor,
	"x":       KwX,
	"eq":      KwEq,
	"ne":      KwNe,
	"lt":      KwLt,
	"gt":      KwGt,
	"le":      KwLe,
	"ge":      KwGe,
	"cmp":     KwCmp,
}

// LookupKeyword возвращает тип и bool если это ключевое слово.
// Ключевые слова регистрозависимые — только lowercase версии распознаются.
func LookupKeyword(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	return k, ok
}

// quoteLikeOps are barewords that open a delimited construct when followed by a delimiter.
var quoteLikeOps = map[string]Kind{
	"q":  QuoteLike,
	"qq": QuoteLike,
	"qw": QuoteLike,
	"qx": QuoteLike,
	"m":  RegexMatch,
	"qr": RegexMatch,
	"s":  Substitution,
	"tr": Transliteration,
	"y":  Transliteration,
}

// LookupQuoteLike reports whether ident names a quote-like operator.
func LookupQuoteLike(ident string) (Kind, bool) {
	k, ok := quoteLikeOps[ident]
	return k, ok
}
