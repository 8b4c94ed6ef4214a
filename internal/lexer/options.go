package lexer

import (
	"perlsense/internal/diag"
	"perlsense/internal/source"
	"perlsense/internal/token"
)

type Options struct {
	Reporter diag.Reporter // может быть nil — тогда ошибки игнорируем (но продолжаем лексить)
	// MaxHeredocDepth caps heredocs pending on one line; 0 means DefaultMaxHeredocDepth.
	MaxHeredocDepth int
	// Start is the byte offset lexing begins at. Region lexing passes a statement start.
	Start uint32
	// Prev seeds the term/operator expectation as if a token of this kind
	// had just been lexed. Invalid means start of file.
	Prev token.Kind
}

func (lx *Lexer) report(code diag.Code, sev diag.Severity, sp source.Span, msg string) {
	if lx.opts.Reporter != nil {
		lx.opts.Reporter.Report(diag.New(sev, code, sp, msg))
	}
}

func (lx *Lexer) errorf(code diag.Code, sp source.Span, msg string) {
	lx.report(code, diag.SevError, sp, msg)
}

func (lx *Lexer) maxDepth() int {
	if lx.opts.MaxHeredocDepth > 0 {
		return lx.opts.MaxHeredocDepth
	}
	return DefaultMaxHeredocDepth
}
