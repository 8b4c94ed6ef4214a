package parser

import (
	"math"
	"slices"

	"perlsense/internal/ast"
	"perlsense/internal/diag"
	"perlsense/internal/lexer"
	"perlsense/internal/source"
	"perlsense/internal/token"
)

const noStop = math.MaxUint32

// Parser — состояние парсера на один проход (файл или регион)
type Parser struct {
	lx        *lexer.Lexer
	b         *ast.Builder
	file      *source.File
	bag       *diag.Bag
	opts      Options
	lastSpan  source.Span           // span последнего съеденного токена для лучшей диагностики
	bodies    []token.Token         // собранные тела heredoc, ждут владельца
	decls     map[uint32]ast.NodeID // начало объявления heredoc -> узел
	consumed  int                   // съеденные значимые токены
	cancelErr error
}

func newParser(file *source.File, opts Options, start uint32, prev token.Kind) *Parser {
	bag := diag.NewBag(0)
	p := &Parser{
		b:        ast.NewBuilder(uint(len(file.Content)/4 + 8)),
		file:     file,
		bag:      bag,
		opts:     opts,
		lastSpan: source.Span{File: file.ID, Start: start, End: start},
		decls:    make(map[uint32]ast.NodeID),
	}
	p.lx = lexer.New(file, lexer.Options{
		Reporter:        diag.BagReporter{Bag: bag},
		MaxHeredocDepth: opts.MaxHeredocDepth,
		Start:           start,
		Prev:            prev,
	})
	return p
}

// ParseFile builds the tree for the whole file. Syntax errors never fail the
// parse; they end up as KindError nodes plus diagnostics. The only error
// returned is the cancellation observed through opts.Cancel.
func ParseFile(file *source.File, opts Options) (*ast.Tree, error) {
	p := newParser(file, opts, 0, token.Invalid)
	whole := source.Span{File: file.ID, Start: 0, End: file.Len()}
	root := p.b.New(ast.KindProgram, whole, "")
	p.b.Adopt(root, p.parseStatementList(token.EOF, noStop)...)
	if p.cancelErr != nil {
		return nil, p.cancelErr
	}
	p.b.Get(root).Span = whole
	p.bag.Sort()
	return p.b.Finish(root, file, p.bag.Items()), nil
}

// Fragment is the result of ParseRegion: a detached statement list built
// directly in the coordinates of the new text.
type Fragment struct {
	Nodes       *ast.Arena[ast.Node]
	Stmts       []ast.NodeID
	Diagnostics []diag.Diagnostic
	Next        uint32      // start of the first token after the region
	Boundary    token.Token // that token as the region lexer saw it
	Clean       bool        // Next == Stop and no heredoc body crosses the boundary
	Tokens      int
}

// SeedKind is the token kind a region lexer starting at start assumes was
// just lexed: a statement list only ever resumes after '{', ';' or '}'.
func SeedKind(content []byte, start uint32) token.Kind {
	switch {
	case start == 0:
		return token.Invalid
	case int(start) <= len(content) && content[start-1] == '}':
		return token.RBrace
	default:
		return token.Semicolon
	}
}

// ParseRegion parses the statements of one container between r.Start and
// r.Stop. The caller decides what to do when the fragment is not Clean.
func ParseRegion(file *source.File, opts Options, r Region) (*Fragment, error) {
	p := newParser(file, opts, r.Start, SeedKind(file.Content, r.Start))
	closer := token.EOF
	if r.Container == ast.KindBlock {
		closer = token.RBrace
	}
	stmts := p.parseStatementList(closer, r.Stop)
	next := p.peek()
	if p.cancelErr != nil {
		return nil, p.cancelErr
	}
	p.bag.Sort()
	return &Fragment{
		Nodes:       p.b.Nodes,
		Stmts:       stmts,
		Diagnostics: p.bag.Items(),
		Next:        next.Span.Start,
		Boundary:    next,
		Clean:       next.Span.Start == r.Stop && len(p.bodies) == 0 && p.lx.PendingSince(0) == 0,
		Tokens:      p.consumed,
	}, nil
}

// parseStatementList — основной цикл списка инструкций: до closer, EOF или stop.
//
// Statements declaring heredocs own the bodies. When further statements
// start on the declaring line, they are collected into one unit until the
// bodies arrive and the unit becomes a KindStmtGroup.
func (p *Parser) parseStatementList(closer token.Kind, stop uint32) []ast.NodeID {
	var out, unit []ast.NodeID
	for {
		tok := p.peek()
		if tok.Kind == token.EOF || tok.Kind == closer || tok.Span.Start >= stop || p.cancelErr != nil {
			break
		}
		before := p.consumed
		id := p.parseStatement()
		if p.consumed == before {
			// защита от зацикливания
			bad := p.advance()
			p.report(diag.SynUnexpectedToken, diag.SevError, bad.Span, "unexpected "+describe(bad))
			id = p.b.NewError(bad.Span, diag.SynUnexpectedToken)
		}
		if id.IsValid() {
			unit = append(unit, id)
		}
		if len(unit) == 0 {
			continue
		}
		p.peek()
		if p.lx.PendingSince(p.span(unit[0]).Start) > 0 {
			continue
		}
		out = append(out, p.closeUnit(unit)...)
		unit = nil
	}
	if len(unit) > 0 && p.lx.PendingSince(p.span(unit[0]).Start) == 0 {
		unit = p.closeUnit(unit)
	}
	return append(out, unit...)
}

// closeUnit hands the collected bodies to the unit. Several statements
// sharing them are wrapped into a group.
func (p *Parser) closeUnit(unit []ast.NodeID) []ast.NodeID {
	owned := p.takeBodies(p.span(unit[0]).Start)
	if len(owned) == 0 {
		return unit
	}
	owner := unit[0]
	if len(unit) > 1 {
		owner = p.b.New(ast.KindStmtGroup, p.span(unit[0]), "")
		p.b.Adopt(owner, unit...)
	}
	p.placeBodies(owner, owned)
	return []ast.NodeID{owner}
}

// takeBodies removes from the stash the bodies declared at or after from.
// Bodies of outer statements stay for their owner.
func (p *Parser) takeBodies(from uint32) []token.Token {
	var owned []token.Token
	keep := p.bodies[:0]
	for _, b := range p.bodies {
		if b.Body != nil && b.Body.DeclSpan.Start >= from {
			owned = append(owned, b)
		} else {
			keep = append(keep, b)
		}
	}
	p.bodies = slices.Clip(keep)
	return owned
}

func (p *Parser) span(id ast.NodeID) source.Span {
	if n := p.b.Get(id); n != nil {
		return n.Span
	}
	return p.here()
}

// here — пустой span сразу после последнего съеденного токена
func (p *Parser) here() source.Span {
	return p.lastSpan.ZeroideToEnd()
}
