package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка
	UnknownCode Code = 0
	// Лексические
	LexInfo               Code = 1000
	LexUnknownChar        Code = 1001
	LexUnterminatedString Code = 1002
	LexBadNumber          Code = 1004
	LexUnterminatedQuote  Code = 1005

	// heredoc declarations and bodies
	LexHeredocInvalidEscape     Code = 1100
	LexHeredocUnterminatedLabel Code = 1101
	LexHeredocEmptyTerminator   Code = 1102
	LexHeredocTerminatorTooLong Code = 1103
	LexHeredocUnterminatedBody  Code = 1104
	LexHeredocTooDeep           Code = 1105
	LexHeredocMissingTerminator Code = 1106

	// Парсерные
	SynInfo             Code = 2000
	SynUnexpectedToken  Code = 2001
	SynUnclosedParen    Code = 2002
	SynUnclosedBrace    Code = 2003
	SynUnclosedBracket  Code = 2004
	SynExpectSemicolon  Code = 2005
	SynExpectExpression Code = 2006
	SynExpectIdentifier Code = 2007
	SynExpectBlock      Code = 2008
	SynExpectVariable   Code = 2009
	SynExpectCondition  Code = 2010
	SynUnexpectedRBrace Code = 2011
	SynTooManyErrors    Code = 2012

	// Инкрементальный движок (информационные)
	IncInfo             Code = 6000
	IncFallback         Code = 6001
	IncCancelled        Code = 6002
	IncDeadlineExceeded Code = 6003
)

var codeDescription = map[Code]string{
	UnknownCode:                 "Unknown error",
	LexInfo:                     "Lexical information",
	LexUnknownChar:              "Unknown character",
	LexUnterminatedString:       "Unterminated string literal",
	LexBadNumber:                "Invalid number literal",
	LexUnterminatedQuote:        "Unterminated quote-like construct",
	LexHeredocInvalidEscape:     "Invalid escape sequence in heredoc label",
	LexHeredocUnterminatedLabel: "Unterminated heredoc label",
	LexHeredocEmptyTerminator:   "Empty heredoc terminator",
	LexHeredocTerminatorTooLong: "Heredoc terminator too long",
	LexHeredocUnterminatedBody:  "Heredoc body without terminator",
	LexHeredocTooDeep:           "Too many pending heredocs",
	LexHeredocMissingTerminator: "Heredoc declaration without label",
	SynInfo:                     "Syntax information",
	SynUnexpectedToken:          "Unexpected token",
	SynUnclosedParen:            "Unclosed parenthesis",
	SynUnclosedBrace:            "Unclosed brace",
	SynUnclosedBracket:          "Unclosed bracket",
	SynExpectSemicolon:          "Expected semicolon",
	SynExpectExpression:         "Expected expression",
	SynExpectIdentifier:         "Expected identifier",
	SynExpectBlock:              "Expected block",
	SynExpectVariable:           "Expected variable",
	SynExpectCondition:          "Expected condition",
	SynUnexpectedRBrace:         "Unmatched closing brace",
	SynTooManyErrors:            "Too many syntax errors",
	IncInfo:                     "Incremental analysis information",
	IncFallback:                 "Incremental reparse fell back to a full parse",
	IncCancelled:                "Reparse cancelled",
	IncDeadlineExceeded:         "Reparse deadline exceeded",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LEX%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("INC%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
