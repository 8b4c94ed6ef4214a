package reparse

import (
	"sort"

	"perlsense/internal/ast"
	"perlsense/internal/diag"
	"perlsense/internal/source"
	"perlsense/internal/token"
)

// region is a run of sibling statements of one container in the previous
// tree. sibs[lo:hi] are re-derived, the rest is retained.
type region struct {
	container ast.NodeID
	kind      ast.Kind
	sibs      []ast.NodeID
	lo, hi    int
	a, b      uint32 // affected range in old coordinates; grows when lifted
}

func (r region) count() int { return r.hi - r.lo }

// selector answers questions about the previous tree that decide where a
// region may start and stop.
type selector struct {
	old   *ast.Tree
	src   []byte
	diags []diag.Diagnostic // sorted by primary start
}

func newSelector(old *ast.Tree) *selector {
	return &selector{old: old, src: old.Source(), diags: old.Diagnostics}
}

// initial picks the innermost container around [a, b] and the siblings the
// edits touch.
func (s *selector) initial(a, b uint32) region {
	from := s.old.Enclosing(source.Span{File: s.old.File.ID, Start: a, End: b})
	return s.regionIn(s.containerFor(from, a, b), a, b)
}

// containerFor walks up from id to the first node whose statement list can be
// re-derived in isolation around [a, b]. The root always qualifies.
func (s *selector) containerFor(id ast.NodeID, a, b uint32) ast.NodeID {
	for ; id.IsValid(); id = s.old.Parent(id) {
		if s.eligible(id, a, b) {
			return id
		}
	}
	return s.old.Root
}

// eligible: the program, or a closed block whose interior holds [a, b] and
// which owns no heredoc body declared elsewhere.
func (s *selector) eligible(id ast.NodeID, a, b uint32) bool {
	n := s.old.Node(id)
	switch n.Kind {
	case ast.KindProgram:
		return true
	case ast.KindBlock:
	default:
		return false
	}
	sp := n.Span
	if sp.Len() < 2 || s.src[sp.Start] != '{' || s.src[sp.End-1] != '}' {
		return false
	}
	if a < sp.Start+1 || b > sp.End-1 {
		return false
	}
	if s.hasCodeAt(sp.Start, diag.SynUnclosedBrace) {
		return false
	}
	for _, c := range n.Children {
		if s.old.Kind(c) == ast.KindHeredocBody {
			return false
		}
	}
	return true
}

func (s *selector) regionIn(c ast.NodeID, a, b uint32) region {
	sibs := s.old.Children(c)
	lo := sort.Search(len(sibs), func(i int) bool { return s.old.Span(sibs[i]).End > a })
	hi := lo
	for hi < len(sibs) && s.old.Span(sibs[hi]).Start <= b {
		hi++
	}
	r := region{container: c, kind: s.old.Kind(c), sibs: sibs, lo: lo, hi: hi, a: a, b: b}
	s.settle(&r)
	return r
}

// settle pulls in a left neighbour whose parse may depend on what follows it,
// and a right neighbour that was parsed with errors.
func (s *selector) settle(r *region) {
	for r.lo > 0 && !s.closed(r.sibs[r.lo-1]) {
		r.lo--
	}
	for r.hi < len(r.sibs) && s.errorsIn(s.old.Span(r.sibs[r.hi])) {
		r.hi++
	}
}

// widen adds one sibling on each side.
func (s *selector) widen(r *region) bool {
	if r.lo == 0 && r.hi == len(r.sibs) {
		return false
	}
	r.lo = max(r.lo-1, 0)
	r.hi = min(r.hi+1, len(r.sibs))
	s.settle(r)
	return true
}

// lift moves the region to the enclosing container; the whole current
// container becomes the affected range.
func (s *selector) lift(r region) (region, bool) {
	if r.container == s.old.Root {
		return region{}, false
	}
	sp := s.old.Span(r.container)
	a, b := min(r.a, sp.Start), max(r.b, sp.End)
	return s.regionIn(s.containerFor(s.old.Parent(r.container), a, b), a, b), true
}

// bounds returns the region in old coordinates: from the end of the last
// retained left sibling (or the container interior start) to the start of the
// first retained right sibling (or the closing brace / end of file).
func (s *selector) bounds(r region) (start, stop uint32) {
	cs := s.old.Span(r.container)
	switch {
	case r.lo > 0:
		start = s.old.Span(r.sibs[r.lo-1]).End
	case r.kind == ast.KindBlock:
		start = cs.Start + 1
	}
	switch {
	case r.hi < len(r.sibs):
		stop = s.old.Span(r.sibs[r.hi]).Start
	case r.kind == ast.KindBlock:
		stop = cs.End - 1
	default:
		stop = uint32(len(s.src)) // #nosec G115 -- длина файла уже в uint32
	}
	return start, stop
}

// closed reports whether the statement's parse ended on its own terminator,
// so that nothing after it could have changed it.
func (s *selector) closed(id ast.NodeID) bool {
	n := s.old.Node(id)
	if s.errorsIn(n.Span) {
		return false
	}
	switch n.Kind {
	case ast.KindDataSection, ast.KindError, ast.KindHeredocBody:
		return false
	case ast.KindLabeled:
		if len(n.Children) == 0 {
			return false
		}
		return s.closed(n.Children[len(n.Children)-1])
	case ast.KindStmtGroup:
		last := ast.NoNodeID
		for _, c := range n.Children {
			cn := s.old.Node(c)
			if cn.Kind != ast.KindHeredocBody {
				last = c
			} else if !terminated(cn) {
				return false
			}
		}
		return last.IsValid() && s.closed(last)
	}
	end, ok := s.ownEnd(n)
	if !ok || end == 0 {
		return false
	}
	switch s.src[end-1] {
	case ';':
		return true
	case '}':
		switch n.Kind {
		case ast.KindSubDecl, ast.KindPackageDecl, ast.KindBlock, ast.KindForC, ast.KindForeach:
			return true
		}
	}
	return false
}

// ownEnd is where the statement's own tokens end, heredoc bodies it owns
// excluded. The ';' after the last child still counts.
func (s *selector) ownEnd(n *ast.Node) (uint32, bool) {
	end := n.Span.Start
	bodies := false
	for _, c := range n.Children {
		cn := s.old.Node(c)
		if cn.Kind == ast.KindHeredocBody {
			if !terminated(cn) {
				return 0, false
			}
			bodies = true
			continue
		}
		end = max(end, cn.Span.End)
	}
	if !bodies {
		return n.Span.End, true
	}
	i := end
	for i < n.Span.End && (s.src[i] == ' ' || s.src[i] == '\t') {
		i++
	}
	if i < n.Span.End && s.src[i] == ';' {
		return i + 1, true
	}
	return end, true
}

func terminated(n *ast.Node) bool {
	return n.Heredoc != nil && n.Heredoc.Terminated
}

// pendingAt reports a heredoc declared earlier on the line of off whose body
// has not started by off. A lexer starting at off would miss it.
func (s *selector) pendingAt(off uint32) bool {
	if off == 0 {
		return false
	}
	ls := off - 1
	for ls > 0 && s.src[ls-1] != '\n' {
		ls--
	}
	for _, id := range s.old.Overlapping(source.Span{File: s.old.File.ID, Start: ls, End: off}) {
		n := s.old.Node(id)
		if n.Kind != ast.KindHeredoc || n.Heredoc == nil {
			continue
		}
		h := n.Heredoc
		if h.DeclSpan.End <= off && (!h.HasBody || h.BodySpan.Start >= off) {
			return true
		}
	}
	return false
}

// crossing reports a heredoc declaration in the region whose body lies
// outside it, or a body in the region declared outside it.
func (s *selector) crossing(r region, start, stop uint32) bool {
	inside := func(sp source.Span) bool { return sp.Start >= start && sp.End <= stop }
	found := false
	for _, sib := range r.sibs[r.lo:r.hi] {
		s.old.Walk(sib, func(id ast.NodeID, _ int) bool {
			n := s.old.Node(id)
			switch {
			case n.Heredoc == nil:
			case n.Kind == ast.KindHeredoc && n.Heredoc.HasBody && !inside(n.Heredoc.BodySpan):
				found = true
			case n.Kind == ast.KindHeredocBody && !inside(n.Heredoc.DeclSpan):
				found = true
			}
			return !found
		})
		if found {
			return true
		}
	}
	return false
}

// errorsIn reports an error diagnostic inside sp. Zero-width diagnostics at
// sp.End count as inside.
func (s *selector) errorsIn(sp source.Span) bool {
	i := sort.Search(len(s.diags), func(i int) bool { return s.diags[i].Primary.Start >= sp.Start })
	for ; i < len(s.diags); i++ {
		p := s.diags[i].Primary
		if p.Start > sp.End || (p.Start == sp.End && !p.Empty()) {
			break
		}
		if s.diags[i].Severity >= diag.SevError {
			return true
		}
	}
	return false
}

func (s *selector) hasCodeAt(off uint32, code diag.Code) bool {
	i := sort.Search(len(s.diags), func(i int) bool { return s.diags[i].Primary.Start >= off })
	for ; i < len(s.diags) && s.diags[i].Primary.Start == off; i++ {
		if s.diags[i].Code == code {
			return true
		}
	}
	return false
}

// boundaryMatches checks the token the region lexer produced at stop
// against a lexer that starts fresh there. A retained right sibling was
// lexed error-free, so the fresh reading is the one it was built from.
func boundaryMatches(got token.Token, fresh token.Token) bool {
	return got.Kind == fresh.Kind && got.Span.End == fresh.Span.End
}
