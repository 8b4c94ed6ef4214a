package lexer

import (
	"bytes"

	"perlsense/internal/token"
)

// collectLeadingTrivia собирает подряд идущие trivia перед значимым токеном.
// - ' ', '\t', '\f' коалесцируются в один TriviaSpace
// - подряд идущие переводы строк (\n, \r\n, \r) коалесцируются в один TriviaNewline
// - # ... до конца строки -> TriviaComment
// - =word в начале строки ... =cut -> TriviaPod
// Если есть незакрытые heredoc, первый же перевод строки запускает сбор тел.
func (lx *Lexer) collectLeadingTrivia() {
	if lx.cursor.Off == 0 && bytes.HasPrefix(lx.file.Content, bom) {
		start := lx.cursor.Mark()
		lx.cursor.BumpN(uint32(len(bom)))
		lx.pushTrivia(token.TriviaSpace, start)
	}
	for !lx.cursor.EOF() {
		start := lx.cursor.Mark()
		b := lx.cursor.Peek()

		switch {
		case b == ' ' || b == '\t' || b == '\f':
			for {
				b2 := lx.cursor.Peek()
				if b2 != ' ' && b2 != '\t' && b2 != '\f' {
					break
				}
				lx.cursor.Bump()
			}
			lx.pushTrivia(token.TriviaSpace, start)

		case b == '\n' || b == '\r':
			if len(lx.pending) > 0 {
				lx.bumpLineEnding()
				lx.pushTrivia(token.TriviaNewline, start)
				lx.collectHeredocBodies()
				return
			}
			for lx.bumpLineEnding() {
			}
			lx.pushTrivia(token.TriviaNewline, start)

		case b == '#':
			lx.skipToLineEnd()
			lx.pushTrivia(token.TriviaComment, start)

		case b == '=' && lx.cursor.AtLineStart() && isAlphaByte(lx.cursor.PeekAt(1)):
			lx.scanPod()
			lx.pushTrivia(token.TriviaPod, start)

		default:
			// нет больше trivia
			return
		}
	}
}

var bom = []byte{0xEF, 0xBB, 0xBF}

func (lx *Lexer) pushTrivia(kind token.TriviaKind, start Mark) {
	sp := lx.cursor.SpanFrom(start)
	lx.hold = append(lx.hold, token.Trivia{Kind: kind, Span: sp, Text: lx.text(sp)})
}

// bumpLineEnding consumes one "\r\n", "\n" or "\r".
func (lx *Lexer) bumpLineEnding() bool {
	switch lx.cursor.Peek() {
	case '\r':
		lx.cursor.Bump()
		lx.cursor.Eat('\n')
		return true
	case '\n':
		lx.cursor.Bump()
		return true
	}
	return false
}

// skipToLineEnd stops before the line terminator.
func (lx *Lexer) skipToLineEnd() {
	for !lx.cursor.EOF() {
		b := lx.cursor.Peek()
		if b == '\n' || b == '\r' {
			return
		}
		lx.cursor.Bump()
	}
}

// scanPod consumes a POD block through the end of its "=cut" line.
// A block without "=cut" runs to the end of the file, which perl accepts.
func (lx *Lexer) scanPod() {
	for !lx.cursor.EOF() {
		lineStart := lx.cursor.Off
		lx.skipToLineEnd()
		line := lx.file.Content[lineStart:lx.cursor.Off]
		lx.bumpLineEnding()
		if isPodCut(line) {
			return
		}
	}
}

func isPodCut(line []byte) bool {
	if !bytes.HasPrefix(line, []byte("=cut")) {
		return false
	}
	return len(line) == 4 || !isAlphaByte(line[4])
}
