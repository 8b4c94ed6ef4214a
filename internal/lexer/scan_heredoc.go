package lexer

import (
	"fmt"

	"perlsense/internal/diag"
	"perlsense/internal/source"
	"perlsense/internal/token"
)

// scanHeredocDecl lexes "<<LABEL" and friends. ok == false means the bytes
// are a shift operator and the caller should fall back to scanOperatorOrPunct.
func (lx *Lexer) scanHeredocDecl() (token.Token, bool) {
	start := lx.cursor.Mark()
	decl, n, herr := ScanHeredocDecl(lx.cursor.Rest(), lx.cursor.Off)
	if n == 0 && herr == nil {
		return token.Token{}, false
	}
	lx.cursor.BumpN(uint32(n)) // #nosec G115 -- n <= len(Rest())

	if herr != nil {
		// тело не регистрируем: строки после объявления лексируются как код
		tok := lx.emit(token.Invalid, start)
		lx.reportHeredocError(herr, tok.Span)
		return tok, true
	}

	tok := lx.emit(token.HeredocStart, start)
	if len(lx.pending) >= lx.maxDepth() {
		tok.Kind = token.Invalid
		lx.reportHeredocError(&HeredocError{
			Kind:   ErrTooDeep,
			Offset: tok.Span.Start,
			Label:  decl.Terminator,
		}, tok.Span)
		return tok, true
	}
	d := decl
	tok.Heredoc = &d
	lx.pending = append(lx.pending, pendingHeredoc{decl: &d, span: tok.Span})
	return tok, true
}

func (lx *Lexer) reportHeredocError(herr *HeredocError, declSpan source.Span) {
	if lx.opts.Reporter == nil {
		return
	}
	d := diag.NewError(herr.Code(), declSpan, herr.Error())
	switch herr.Kind {
	case ErrInvalidEscape:
		at := source.Span{File: declSpan.File, Start: herr.Offset, End: min(herr.Offset+2, declSpan.End)}
		d = d.WithNote(at, fmt.Sprintf("valid escapes: %s", herr.Valid))
	case ErrTooDeep:
		d = d.WithNote(declSpan, fmt.Sprintf("at most %d heredocs may be pending", lx.maxDepth()))
	}
	lx.opts.Reporter.Report(d)
}

// collectHeredocBodies is called right after the line ending that closes the
// declaring line. All pending bodies are read in declaration order.
func (lx *Lexer) collectHeredocBodies() {
	pend := lx.pending
	lx.pending = nil
	for _, p := range pend {
		lx.ready = append(lx.ready, lx.collectBody(p))
	}
	lx.attachHoldToReady()
}

// flushUnterminated handles declarations whose line is the last one of the file.
func (lx *Lexer) flushUnterminated() {
	pend := lx.pending
	lx.pending = nil
	for _, p := range pend {
		lx.ready = append(lx.ready, lx.unterminatedBody(p, lx.cursor.Off, nil))
	}
	lx.attachHoldToReady()
}

func (lx *Lexer) attachHoldToReady() {
	if len(lx.ready) == 0 {
		return
	}
	lx.ready[0].Leading = lx.hold
	lx.hold = nil
	lx.mode = ModeHeredocBody
}

func (lx *Lexer) collectBody(p pendingHeredoc) token.Token {
	bodyStart := lx.cursor.Off
	content := lx.file.Content
	var lines [][]byte
	for !lx.cursor.EOF() {
		lineStart := lx.cursor.Off
		lx.skipToLineEnd()
		contentEnd := lx.cursor.Off
		lx.bumpLineEnding()
		line := content[lineStart:lx.cursor.Off]
		if !MatchTerminator(string(line), p.decl.Terminator, p.decl.Indented) {
			lines = append(lines, line)
			continue
		}
		fid := lx.file.ID
		body := &token.BodyInfo{
			Decl:       p.decl,
			DeclSpan:   p.span,
			BodySpan:   source.Span{File: fid, Start: bodyStart, End: lineStart},
			TermSpan:   source.Span{File: fid, Start: lineStart, End: lx.cursor.Off},
			Terminated: true,
		}
		body.Content = bodyContent(lines, p.decl.Indented, leadingWhitespace(content[lineStart:contentEnd]))
		sp := source.Span{File: fid, Start: bodyStart, End: lx.cursor.Off}
		return token.Token{Kind: token.HeredocBody, Span: sp, Text: lx.text(sp), Body: body}
	}
	return lx.unterminatedBody(p, bodyStart, lines)
}

func (lx *Lexer) unterminatedBody(p pendingHeredoc, bodyStart uint32, lines [][]byte) token.Token {
	fid := lx.file.ID
	end := lx.cursor.Off
	body := &token.BodyInfo{
		Decl:     p.decl,
		DeclSpan: p.span,
		BodySpan: source.Span{File: fid, Start: bodyStart, End: end},
		TermSpan: source.Span{File: fid, Start: end, End: end},
	}
	body.Content = bodyContent(lines, p.decl.Indented, 1<<30)
	lx.reportHeredocError(&HeredocError{
		Kind:   ErrUnterminatedBody,
		Offset: p.span.Start,
		Label:  p.decl.Terminator,
	}, p.span)
	sp := source.Span{File: fid, Start: bodyStart, End: end}
	return token.Token{Kind: token.HeredocBody, Span: sp, Text: lx.text(sp), Body: body}
}

func bodyContent(lines [][]byte, indented bool, termIndent int) string {
	if indented {
		return dedent(lines, termIndent)
	}
	n := 0
	for _, ln := range lines {
		n += len(ln)
	}
	buf := make([]byte, 0, n)
	for _, ln := range lines {
		buf = append(buf, ln...)
	}
	return string(buf)
}
