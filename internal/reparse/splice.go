package reparse

import (
	"slices"

	"perlsense/internal/ast"
	"perlsense/internal/cancel"
	"perlsense/internal/diag"
	"perlsense/internal/parser"
	"perlsense/internal/source"
)

// splicer builds the new tree: the path from the root to the container is
// rebuilt with shifted ends, siblings off the path are copied (shifted when
// they follow the edits), and the fragment takes the place of the region.
type splicer struct {
	old         *ast.Tree
	file        *source.File
	delta       int64
	reg         region
	frag        *parser.Fragment
	start, stop uint32 // region in old coordinates
	chk         *cancel.Checker

	b           *ast.Builder
	reused      int
	bytesReused int
	rederived   int
}

func (s *splicer) build() (*ast.Tree, error) {
	hint := uint(s.old.Nodes.Len()) + uint(s.frag.Nodes.Len()) // #nosec G115 -- длины арен
	s.b = ast.NewBuilder(hint)

	path := append([]ast.NodeID{s.reg.container}, s.old.Ancestors(s.reg.container)...)
	slices.Reverse(path)

	root, err := s.rebuild(path)
	if err != nil {
		return nil, err
	}
	s.b.Get(root).Span = source.Span{File: s.file.ID, Start: 0, End: s.file.Len()}
	return s.b.Finish(root, s.file, s.diagnostics()), nil
}

// rebuild copies path[0] and descends along the path.
func (s *splicer) rebuild(path []ast.NodeID) (ast.NodeID, error) {
	id := path[0]
	n := s.old.Node(id)
	sp := n.Span
	sp.End = shift(sp.End, s.delta)
	nid := s.b.New(n.Kind, sp, n.Text)
	s.b.Get(nid).Code = n.Code

	if len(path) == 1 {
		return nid, s.fillContainer(nid)
	}
	next := path[1]
	after := s.old.Span(next).End
	for _, c := range n.Children {
		if c == next {
			child, err := s.rebuild(path[1:])
			if err != nil {
				return ast.NoNodeID, err
			}
			s.b.AddChild(nid, child)
			continue
		}
		var d int64
		if s.old.Span(c).Start >= after {
			d = s.delta
		}
		if err := s.retain(nid, c, d); err != nil {
			return ast.NoNodeID, err
		}
	}
	return nid, nil
}

func (s *splicer) fillContainer(nid ast.NodeID) error {
	r := s.reg
	for _, c := range r.sibs[:r.lo] {
		if err := s.retain(nid, c, 0); err != nil {
			return err
		}
	}
	for _, c := range s.frag.Stmts {
		before := s.b.Nodes.Len()
		s.b.AddChild(nid, s.b.Graft(s.frag.Nodes, c, 0))
		s.rederived += int(s.b.Nodes.Len() - before)
	}
	for _, c := range r.sibs[r.hi:] {
		if err := s.retain(nid, c, s.delta); err != nil {
			return err
		}
	}
	return nil
}

// retain copies an untouched subtree of the previous tree.
func (s *splicer) retain(parent, id ast.NodeID, delta int64) error {
	if err := s.chk.Step(); err != nil {
		return err
	}
	before := s.b.Nodes.Len()
	s.b.AddChild(parent, s.b.Graft(s.old.Nodes, id, delta))
	s.reused += int(s.b.Nodes.Len() - before)
	s.bytesReused += int(s.old.Span(id).Len())
	return nil
}

// diagnostics keeps the old diagnostics strictly outside the region, shifts
// those after it, and merges in the fragment's. Zero-width diagnostics on a
// region boundary are re-derived by the fragment. When the region runs up to
// the closer, diagnostics on the closer itself came from the last statement
// and are re-derived too.
func (s *splicer) diagnostics() []diag.Diagnostic {
	tail := s.reg.hi == len(s.reg.sibs)
	bag := diag.NewBag(0)
	for _, d := range s.old.Diagnostics {
		p := d.Primary
		switch {
		case p.End < s.start || (p.End == s.start && !p.Empty()):
			bag.Add(d)
		case p.Start > s.stop || (p.Start == s.stop && !p.Empty() && !tail):
			bag.Add(d.Shift(s.delta))
		}
	}
	for _, d := range s.frag.Diagnostics {
		bag.Add(d)
	}
	bag.Sort()
	return bag.Items()
}
