package lexer

import (
	"fmt"
	"strings"

	"perlsense/internal/diag"
	"perlsense/internal/token"
)

const (
	// MaxTerminatorLen caps the decoded heredoc label length in bytes.
	MaxTerminatorLen = 256
	// DefaultMaxHeredocDepth caps the number of heredocs pending on one line.
	DefaultMaxHeredocDepth = 100
)

// ValidDoubleQuotedEscapes lists the escapes accepted inside <<"..." and <<`...` labels.
const ValidDoubleQuotedEscapes = `\n \t \r \" \\ \` + "`" + ` \$ \@`

// heredocState is a step of the declaration scanner.
type heredocState uint8

const (
	hdStart heredocState = iota
	hdSawFirstDelimiterChar
	hdCheckIndentModifier
	hdSkipLeadingWhitespace
	hdDetectQuoteStyle
	hdReadBareTerminator
	hdReadQuotedTerminator
	hdEscapeSequence
	hdComplete
	hdError
)

var heredocStateNames = [...]string{
	hdStart:                 "Start",
	hdSawFirstDelimiterChar: "SawFirstDelimiterChar",
	hdCheckIndentModifier:   "CheckIndentModifier",
	hdSkipLeadingWhitespace: "SkipLeadingWhitespace",
	hdDetectQuoteStyle:      "DetectQuoteStyle",
	hdReadBareTerminator:    "ReadBareTerminator",
	hdReadQuotedTerminator:  "ReadQuotedTerminator",
	hdEscapeSequence:        "EscapeSequence",
	hdComplete:              "Complete",
	hdError:                 "Error",
}

func (s heredocState) String() string {
	if int(s) < len(heredocStateNames) {
		return heredocStateNames[s]
	}
	return "Unknown"
}

// HeredocErrorKind classifies heredoc failures.
type HeredocErrorKind uint8

const (
	ErrInvalidEscape HeredocErrorKind = iota + 1
	ErrUnterminatedLabel
	ErrEmptyTerminator
	ErrTerminatorTooLong
	ErrUnterminatedBody
	ErrTooDeep
	ErrMissingLabel
)

// HeredocError describes a malformed heredoc declaration or body.
type HeredocError struct {
	Kind   HeredocErrorKind
	Offset uint32 // absolute byte offset of the problem
	Start  uint32 // absolute offset of the opening quote for ErrUnterminatedLabel
	Char   rune   // offending character for ErrInvalidEscape
	Valid  string // accepted escapes for ErrInvalidEscape
	Label  string // decoded label so far
}

func (e *HeredocError) Error() string {
	switch e.Kind {
	case ErrInvalidEscape:
		return fmt.Sprintf("invalid escape '\\%c' in heredoc label at offset %d (valid: %s)", e.Char, e.Offset, e.Valid)
	case ErrUnterminatedLabel:
		return fmt.Sprintf("unterminated heredoc label starting at offset %d: no closing quote before offset %d", e.Start, e.Offset)
	case ErrEmptyTerminator:
		return "heredoc terminator is empty"
	case ErrTerminatorTooLong:
		return fmt.Sprintf("heredoc terminator exceeds %d bytes", MaxTerminatorLen)
	case ErrUnterminatedBody:
		return fmt.Sprintf("heredoc body is missing terminator %q", e.Label)
	case ErrTooDeep:
		return fmt.Sprintf("too many heredocs pending on one line (%q)", e.Label)
	case ErrMissingLabel:
		return "heredoc declaration without label"
	}
	return "heredoc error"
}

// Code maps the error kind to a diagnostic code.
func (e *HeredocError) Code() diag.Code {
	switch e.Kind {
	case ErrInvalidEscape:
		return diag.LexHeredocInvalidEscape
	case ErrUnterminatedLabel:
		return diag.LexHeredocUnterminatedLabel
	case ErrEmptyTerminator:
		return diag.LexHeredocEmptyTerminator
	case ErrTerminatorTooLong:
		return diag.LexHeredocTerminatorTooLong
	case ErrUnterminatedBody:
		return diag.LexHeredocUnterminatedBody
	case ErrTooDeep:
		return diag.LexHeredocTooDeep
	case ErrMissingLabel:
		return diag.LexHeredocMissingTerminator
	}
	return diag.UnknownCode
}

// ScanHeredocDecl runs the declaration state machine over src, which must start
// with "<<". base is the absolute offset of src[0] and is only used in errors.
//
// It returns the decoded declaration and the number of bytes it covers.
// n == 0 with a nil error means src is not a heredoc (a shift operator).
// On error n still covers the malformed declaration so lexing can resume after it.
func ScanHeredocDecl(src []byte, base uint32) (decl token.Heredoc, n int, err *HeredocError) {
	var (
		state   = hdStart
		i       int
		skipped int
		quote   byte
		quoteAt int
		label   strings.Builder
	)
	fail := func(kind HeredocErrorKind, at int) {
		err = &HeredocError{Kind: kind, Offset: base + uint32(at)} // #nosec G115 -- at <= len(src)
		if kind == ErrUnterminatedLabel {
			err.Start = base + uint32(quoteAt) // #nosec G115 -- quoteAt < at
		}
		state = hdError
	}
	peek := func() byte {
		if i < len(src) {
			return src[i]
		}
		return 0
	}

	for state != hdComplete && state != hdError {
		switch state {
		case hdStart:
			if peek() != '<' {
				return token.Heredoc{}, 0, nil
			}
			i++
			state = hdSawFirstDelimiterChar

		case hdSawFirstDelimiterChar:
			if peek() != '<' {
				return token.Heredoc{}, 0, nil
			}
			i++
			state = hdCheckIndentModifier

		case hdCheckIndentModifier:
			if peek() == '~' {
				decl.Indented = true
				i++
			}
			state = hdSkipLeadingWhitespace

		case hdSkipLeadingWhitespace:
			for peek() == ' ' || peek() == '\t' {
				i++
				skipped++
			}
			state = hdDetectQuoteStyle

		case hdDetectQuoteStyle:
			quoteAt = i
			switch c := peek(); {
			case c == '"':
				decl.Style, quote = token.QuoteDouble, c
				i++
				state = hdReadQuotedTerminator
			case c == '\'':
				decl.Style, quote = token.QuoteSingle, c
				i++
				state = hdReadQuotedTerminator
			case c == '`':
				decl.Style, quote = token.QuoteBacktick, c
				i++
				state = hdReadQuotedTerminator
			case c == '\\' && skipped == 0 && isIdentStartByte(byteAt(src, i+1)):
				// <<\EOF behaves like <<'EOF'
				decl.Style = token.QuoteSingle
				i++
				state = hdReadBareTerminator
			case isIdentStartByte(c) && skipped == 0:
				decl.Style = token.QuoteBare
				state = hdReadBareTerminator
			default:
				if !decl.Indented {
					// "<< 2", "<<$x": shift operator
					return token.Heredoc{}, 0, nil
				}
				fail(ErrMissingLabel, i)
			}

		case hdReadBareTerminator:
			for isIdentContinueByte(peek()) {
				if label.Len() >= MaxTerminatorLen {
					for isIdentContinueByte(peek()) {
						i++
					}
					fail(ErrTerminatorTooLong, i)
					break
				}
				label.WriteByte(src[i])
				i++
			}
			if state != hdError {
				state = hdComplete
			}

		case hdReadQuotedTerminator:
			c := peek()
			switch {
			case i >= len(src) || c == '\n' || c == '\r':
				fail(ErrUnterminatedLabel, i)
			case c == quote:
				i++
				state = hdComplete
			case c == '\\':
				i++
				state = hdEscapeSequence
			default:
				label.WriteByte(c)
				i++
			}
			if state == hdReadQuotedTerminator && label.Len() > MaxTerminatorLen {
				i = skipToClose(src, i, quote)
				fail(ErrTerminatorTooLong, i)
			}

		case hdEscapeSequence:
			if i >= len(src) || src[i] == '\n' || src[i] == '\r' {
				fail(ErrUnterminatedLabel, i)
				break
			}
			e := src[i]
			if decl.Style == token.QuoteSingle {
				if e != '\'' && e != '\\' {
					label.WriteByte('\\')
				}
				label.WriteByte(e)
				i++
				state = hdReadQuotedTerminator
				break
			}
			decoded, ok := decodeDoubleQuotedEscape(e)
			if !ok {
				at := i - 1
				i = skipToClose(src, i, quote)
				fail(ErrInvalidEscape, at)
				err.Char = rune(e)
				err.Valid = ValidDoubleQuotedEscapes
				break
			}
			label.WriteByte(decoded)
			i++
			state = hdReadQuotedTerminator
		}
	}

	if err == nil && label.Len() == 0 {
		fail(ErrEmptyTerminator, i)
	}
	decl.Terminator = label.String()
	if err != nil {
		err.Label = decl.Terminator
	}
	return decl, i, err
}

// decodeDoubleQuotedEscape returns the byte an escape stands for in a
// double-quoted or back-quoted label. Exactly eight escapes are accepted.
func decodeDoubleQuotedEscape(e byte) (byte, bool) {
	switch e {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '"', '\\', '`', '$', '@':
		return e, true
	}
	return 0, false
}

// skipToClose returns the index just past the closing quote, or the line end.
func skipToClose(src []byte, i int, quote byte) int {
	for i < len(src) {
		switch src[i] {
		case quote:
			return i + 1
		case '\n', '\r':
			return i
		case '\\':
			i++
		}
		i++
	}
	return len(src)
}

func byteAt(src []byte, i int) byte {
	if i < len(src) {
		return src[i]
	}
	return 0
}

// MatchTerminator reports whether line (with or without its line ending) closes
// a heredoc with the given terminator. "\r\n" is normalised to "\n" in both
// operands before an exact comparison; a single trailing line ending is ignored.
// For indented heredocs leading spaces and tabs of the line are skipped.
func MatchTerminator(line, terminator string, indented bool) bool {
	line = stripLineEnding(strings.ReplaceAll(line, "\r\n", "\n"))
	terminator = strings.ReplaceAll(terminator, "\r\n", "\n")
	if indented {
		line = strings.TrimLeft(line, " \t")
	}
	return line == terminator
}

func stripLineEnding(s string) string {
	switch {
	case strings.HasSuffix(s, "\n"):
		return s[:len(s)-1]
	case strings.HasSuffix(s, "\r"):
		return s[:len(s)-1]
	}
	return s
}

// leadingWhitespace counts leading spaces and tabs.
func leadingWhitespace(s []byte) int {
	n := 0
	for n < len(s) && (s[n] == ' ' || s[n] == '\t') {
		n++
	}
	return n
}

// dedent removes the common leading whitespace of an indented heredoc body.
// The common prefix length is the minimum over the terminator line and every
// non-blank body line. Blank lines lose at most their own whitespace.
func dedent(lines [][]byte, termIndent int) string {
	common := termIndent
	for _, ln := range lines {
		content := trimLineEnding(ln)
		ws := leadingWhitespace(content)
		if ws == len(content) {
			continue
		}
		common = min(common, ws)
	}
	var sb strings.Builder
	for _, ln := range lines {
		strip := min(common, leadingWhitespace(ln))
		sb.Write(ln[strip:])
	}
	return sb.String()
}

func trimLineEnding(b []byte) []byte {
	n := len(b)
	if n > 0 && b[n-1] == '\n' {
		n--
	}
	if n > 0 && b[n-1] == '\r' {
		n--
	}
	return b[:n]
}
