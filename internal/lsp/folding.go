package lsp

import (
	"encoding/json"
	"slices"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"perlsense/internal/ast"
)

func (s *Server) handleFoldingRange(msg *rpcMessage) error {
	var params protocol.FoldingRangeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	doc, ok := s.store.Get(params.TextDocument.URI)
	if !ok {
		return s.sendResponse(msg.ID, []protocol.FoldingRange{})
	}
	return s.sendResponse(msg.ID, foldingRanges(doc.CurrentTree()))
}

// foldingRanges folds multi-line blocks, heredoc bodies and runs of
// consecutive use/no statements. Ranges are ordered by start line.
func foldingRanges(tree *ast.Tree) []protocol.FoldingRange {
	out := []protocol.FoldingRange{}
	if tree == nil || !tree.Root.IsValid() {
		return out
	}
	lines := tree.File.Lines
	add := func(start, end uint32, kind protocol.FoldingRangeKind) {
		if end <= start {
			return
		}
		r := protocol.FoldingRange{StartLine: start, EndLine: end}
		if kind != "" {
			k := string(kind)
			r.Kind = &k
		}
		out = append(out, r)
	}
	lastLine := func(id ast.NodeID) uint32 {
		sp := tree.Span(id)
		return lines.LineOf(max(sp.End, sp.Start+1) - 1)
	}

	tree.Walk(tree.Root, func(id ast.NodeID, _ int) bool {
		n := tree.Node(id)
		switch n.Kind {
		case ast.KindBlock:
			add(lines.LineOf(n.Span.Start), lastLine(id), "")
			foldImports(tree, n.Children, lastLine, add)
		case ast.KindHeredocBody:
			add(lines.LineOf(n.Span.Start), lastLine(id), protocol.FoldingRangeKindRegion)
		case ast.KindProgram:
			foldImports(tree, n.Children, lastLine, add)
		}
		return true
	})
	for _, c := range tree.Children(tree.Root) {
		if tree.Kind(c) == ast.KindDataSection {
			add(lines.LineOf(tree.Span(c).Start), lastLine(c), protocol.FoldingRangeKindComment)
		}
	}

	slices.SortFunc(out, func(a, b protocol.FoldingRange) int {
		if a.StartLine != b.StartLine {
			return int(a.StartLine) - int(b.StartLine)
		}
		return int(a.EndLine) - int(b.EndLine)
	})
	return out
}

func foldImports(tree *ast.Tree, stmts []ast.NodeID, lastLine func(ast.NodeID) uint32, add func(uint32, uint32, protocol.FoldingRangeKind)) {
	lines := tree.File.Lines
	for i := 0; i < len(stmts); {
		if tree.Kind(stmts[i]) != ast.KindUseDecl {
			i++
			continue
		}
		j := i
		for j+1 < len(stmts) && tree.Kind(stmts[j+1]) == ast.KindUseDecl {
			j++
		}
		add(lines.LineOf(tree.Span(stmts[i]).Start), lastLine(stmts[j]), protocol.FoldingRangeKindImports)
		i = j + 1
	}
}
