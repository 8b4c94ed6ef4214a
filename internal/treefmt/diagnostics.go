package treefmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"perlsense/internal/ast"
	"perlsense/internal/diag"
	"perlsense/internal/source"
)

type PrettyOpts struct {
	Max   int // 0 = все
	Width int // ширина строки контекста, 0 = без ограничения
}

// FormatDiagnostics prints
//
//	<path>:<line>:<col>: <SEV> <CODE>: <Message>
//	  <source line>
//	  ^~~~
//
// for each diagnostic of tree, followed by its notes.
func FormatDiagnostics(w io.Writer, path string, tree *ast.Tree, st *Styles, opts PrettyOpts) error {
	return FormatDiagnosticList(w, path, tree.File.Lines, tree.Diagnostics, st, opts)
}

// FormatDiagnosticList is FormatDiagnostics for diagnostics collected
// without a tree, e.g. by the lexer alone.
func FormatDiagnosticList(w io.Writer, path string, lines *source.Tracker, items []diag.Diagnostic, st *Styles, opts PrettyOpts) error {
	rest := 0
	if opts.Max > 0 && len(items) > opts.Max {
		rest = len(items) - opts.Max
		items = items[:opts.Max]
	}
	var sb strings.Builder
	for _, d := range items {
		writeDiagnostic(&sb, path, lines, d, st, opts.Width)
	}
	if rest > 0 {
		fmt.Fprintf(&sb, "%s\n", st.Dim.Render(fmt.Sprintf("... and %d more", rest)))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func severityStyle(st *Styles, s diag.Severity) string {
	switch s {
	case diag.SevError:
		return st.Error.Render("ERROR")
	case diag.SevWarning:
		return st.Warning.Render("WARNING")
	default:
		return st.Info.Render("INFO")
	}
}

func writeDiagnostic(sb *strings.Builder, path string, lines *source.Tracker, d diag.Diagnostic, st *Styles, width int) {
	src := lines.Source()
	pos := lines.ByteToPosition(d.Primary.Start)
	fmt.Fprintf(sb, "%s:%d:%d: %s %s: %s\n",
		st.Path.Render(path), pos.Line+1, pos.Character+1,
		severityStyle(st, d.Severity), st.Code.Render(d.Code.ID()), d.Message)

	lineStart, _ := lines.LineStart(pos.Line)
	lineText := string(src[lineStart:lines.ContentEnd(pos.Line)])
	lineText = strings.ReplaceAll(lineText, "\t", " ")
	// отступ каретки считается в ячейках терминала, а не в байтах
	prefix := lineText[:min(int(d.Primary.Start-lineStart), len(lineText))]
	col := runewidth.StringWidth(prefix)
	n := 1
	if end := min(d.Primary.End, lines.ContentEnd(pos.Line)); end > d.Primary.Start {
		n = max(runewidth.StringWidth(string(src[d.Primary.Start:end])), 1)
	}
	if width > 0 && col >= width {
		return // каретка за краем строки контекста
	}
	fmt.Fprintf(sb, "  %s\n", st.Source.Render(Truncate(lineText, width)))
	if width > 0 {
		n = min(n, width-col)
	}
	fmt.Fprintf(sb, "  %s%s\n", strings.Repeat(" ", col), st.Caret.Render("^"+strings.Repeat("~", n-1)))

	for _, note := range d.Notes {
		np := lines.ByteToPosition(note.Span.Start)
		fmt.Fprintf(sb, "  %s %d:%d: %s\n", st.Dim.Render("note:"), np.Line+1, np.Character+1, note.Msg)
	}
}
