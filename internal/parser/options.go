package parser

import (
	"perlsense/internal/ast"
	"perlsense/internal/cancel"
)

type Options struct {
	MaxErrors     uint // 0 = без ограничения
	CurrentErrors uint
	// MaxHeredocDepth is passed through to the lexer.
	MaxHeredocDepth int
	// Cancel is stepped once per consumed token. Nil disables cancellation.
	Cancel *cancel.Checker
}

// Enough - проверить, достигли ли мы максимального количества ошибок
func (o *Options) Enough() bool {
	if o.MaxErrors == 0 {
		return false
	}
	return o.CurrentErrors >= o.MaxErrors
}

// Region selects the statement list ParseRegion rebuilds.
type Region struct {
	Container ast.Kind // KindProgram or KindBlock
	Start     uint32   // first byte of the region in the new text
	Stop      uint32   // where the next retained statement (or the closer) begins
}
