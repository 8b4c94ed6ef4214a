package lspedit

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	"perlsense/internal/ast"
	"perlsense/internal/diag"
	"perlsense/internal/source"
)

func Position(tr *source.Tracker, off uint32) protocol.Position {
	p := tr.ByteToPosition(off)
	return protocol.Position{Line: p.Line, Character: p.Character}
}

func Range(tr *source.Tracker, sp source.Span) protocol.Range {
	start, end := tr.SpanRange(sp)
	return protocol.Range{
		Start: protocol.Position{Line: start.Line, Character: start.Character},
		End:   protocol.Position{Line: end.Line, Character: end.Character},
	}
}

// Offset maps an LSP position into the tracker's text, clamping like
// Tracker.PositionToByte.
func Offset(tr *source.Tracker, p protocol.Position) uint32 {
	return tr.PositionToByte(source.Position{Line: p.Line, Character: p.Character})
}

const diagnosticSource = "perlsense"

func severity(s diag.Severity) protocol.DiagnosticSeverity {
	switch s {
	case diag.SevError:
		return protocol.DiagnosticSeverityError
	case diag.SevWarning:
		return protocol.DiagnosticSeverityWarning
	default:
		return protocol.DiagnosticSeverityInformation
	}
}

// Diagnostics converts the tree's diagnostics for publishing; notes become
// related information in the same document. max <= 0 keeps all.
func Diagnostics(uri string, tree *ast.Tree, max int) []protocol.Diagnostic {
	tr := tree.File.Lines
	src := diagnosticSource
	items := tree.Diagnostics
	if max > 0 && len(items) > max {
		items = items[:max]
	}
	out := make([]protocol.Diagnostic, 0, len(items))
	for _, d := range items {
		sev := severity(d.Severity)
		pd := protocol.Diagnostic{
			Range:    Range(tr, d.Primary),
			Severity: &sev,
			Code:     &protocol.IntegerOrString{Value: d.Code.ID()},
			Source:   &src,
			Message:  d.Message,
		}
		for _, n := range d.Notes {
			pd.RelatedInformation = append(pd.RelatedInformation, protocol.DiagnosticRelatedInformation{
				Location: protocol.Location{URI: uri, Range: Range(tr, n.Span)},
				Message:  n.Msg,
			})
		}
		out = append(out, pd)
	}
	return out
}
