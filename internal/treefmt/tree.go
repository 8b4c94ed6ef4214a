package treefmt

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"perlsense/internal/ast"
	"perlsense/internal/diag"
	"perlsense/internal/reparse"
)

// Format selects a tree dump.
type Format uint8

const (
	FormatSexp Format = iota
	FormatJSON
	FormatMsgpack
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "sexp":
		return FormatSexp, nil
	case "json":
		return FormatJSON, nil
	case "msgpack", "mp":
		return FormatMsgpack, nil
	default:
		return FormatSexp, fmt.Errorf("unknown tree format %q (expected: sexp|json|msgpack)", s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	default:
		return "sexp"
	}
}

// NodeOut is the nested form of one node in JSON and msgpack dumps.
type NodeOut struct {
	Kind     string      `json:"kind" msgpack:"kind"`
	Start    uint32      `json:"start" msgpack:"start"`
	End      uint32      `json:"end" msgpack:"end"`
	Text     string      `json:"text,omitempty" msgpack:"text,omitempty"`
	Code     string      `json:"code,omitempty" msgpack:"code,omitempty"`
	Heredoc  *HeredocOut `json:"heredoc,omitempty" msgpack:"heredoc,omitempty"`
	Children []*NodeOut  `json:"children,omitempty" msgpack:"children,omitempty"`
}

type DiagnosticOut struct {
	Severity string `json:"severity" msgpack:"severity"`
	Code     string `json:"code" msgpack:"code"`
	Message  string `json:"message" msgpack:"message"`
	Start    uint32 `json:"start" msgpack:"start"`
	End      uint32 `json:"end" msgpack:"end"`
	Line     uint32 `json:"line" msgpack:"line"`     // с 1
	Column   uint32 `json:"column" msgpack:"column"` // с 1, в UTF-16
}

// Document is the top-level dump: the tree, its diagnostics and,
// when known, the stats of the cycle that produced it.
type Document struct {
	Path        string           `json:"path" msgpack:"path"`
	Bytes       int              `json:"bytes" msgpack:"bytes"`
	Nodes       int              `json:"nodes" msgpack:"nodes"`
	Root        *NodeOut         `json:"root" msgpack:"root"`
	Diagnostics []DiagnosticOut  `json:"diagnostics" msgpack:"diagnostics"`
	Truncated   int              `json:"truncated,omitempty" msgpack:"truncated,omitempty"` // diagnostics left out
	Metrics     *reparse.Metrics `json:"metrics,omitempty" msgpack:"metrics,omitempty"`
}

// Export builds the dump. maxDiags <= 0 keeps every diagnostic.
func Export(path string, tree *ast.Tree, maxDiags int, stats *reparse.Stats) *Document {
	doc := &Document{
		Path:  path,
		Bytes: len(tree.Source()),
		Nodes: tree.Len(),
		Root:  exportNode(tree, tree.Root),
	}
	diags := tree.Diagnostics
	if maxDiags > 0 && len(diags) > maxDiags {
		doc.Truncated = len(diags) - maxDiags
		diags = diags[:maxDiags]
	}
	doc.Diagnostics = make([]DiagnosticOut, 0, len(diags))
	for _, d := range diags {
		doc.Diagnostics = append(doc.Diagnostics, exportDiagnostic(tree, d))
	}
	if stats != nil {
		m := stats.Metrics()
		doc.Metrics = &m
	}
	return doc
}

func exportNode(tree *ast.Tree, id ast.NodeID) *NodeOut {
	n := tree.Node(id)
	out := &NodeOut{Kind: n.Kind.String(), Start: n.Span.Start, End: n.Span.End, Text: n.Text}
	if n.Kind == ast.KindError {
		out.Code = n.Code.ID()
	}
	if h := n.Heredoc; h != nil {
		term := h.Terminated
		out.Heredoc = &HeredocOut{Terminator: h.Decl.Terminator, Style: h.Decl.Style.String(), Indented: h.Decl.Indented}
		if h.HasBody {
			out.Heredoc.Terminated = &term
		}
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, exportNode(tree, c))
	}
	return out
}

func exportDiagnostic(tree *ast.Tree, d diag.Diagnostic) DiagnosticOut {
	pos := tree.File.Lines.ByteToPosition(d.Primary.Start)
	return DiagnosticOut{
		Severity: d.Severity.String(),
		Code:     d.Code.ID(),
		Message:  d.Message,
		Start:    d.Primary.Start,
		End:      d.Primary.End,
		Line:     pos.Line + 1,
		Column:   pos.Character + 1,
	}
}

// WriteTree writes the tree in format f. The s-expression form is followed
// by one line per diagnostic.
func WriteTree(w io.Writer, f Format, path string, tree *ast.Tree, maxDiags int, stats *reparse.Stats) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Export(path, tree, maxDiags, stats))
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.UseCompactInts(true)
		return enc.Encode(Export(path, tree, maxDiags, stats))
	default:
		if _, err := io.WriteString(w, tree.Sexp()); err != nil {
			return err
		}
		doc := Export(path, tree, maxDiags, nil)
		for _, d := range doc.Diagnostics {
			if _, err := fmt.Fprintf(w, "; %s:%d:%d: %s %s: %s\n", path, d.Line, d.Column, d.Severity, d.Code, d.Message); err != nil {
				return err
			}
		}
		if doc.Truncated > 0 {
			_, err := fmt.Fprintf(w, "; ... %d more\n", doc.Truncated)
			return err
		}
		return nil
	}
}

// ReadMsgpack decodes a dump written with FormatMsgpack.
func ReadMsgpack(r io.Reader) (*Document, error) {
	var doc Document
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode msgpack tree: %w", err)
	}
	return &doc, nil
}
