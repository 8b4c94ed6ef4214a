package diag

import (
	"fmt"
	"slices"
	"strings"

	"perlsense/internal/source"
)

type shortDiagnostic struct {
	severity string
	code     string
	line     uint32
	column   uint32
	message  string
}

// FormatShort renders the diagnostics of file one per line as
// "severity CODE path:line:col message", sorted by position.
// Lines and columns are 1-based; columns count UTF-16 units like editors do.
// Diagnostics of other files are skipped.
func FormatShort(diags []Diagnostic, file *source.File, includeNotes bool) string {
	if file == nil || len(diags) == 0 {
		return ""
	}
	rendered := make([]shortDiagnostic, 0, len(diags))
	for i := range diags {
		d := &diags[i]
		if d.Primary.File != file.ID {
			continue
		}
		rendered = append(rendered, short(file, d.Severity.String(), d.Code, d.Primary, d.Message))
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			rendered = append(rendered, short(file, "note", d.Code, n.Span, n.Msg))
		}
	}
	slices.SortStableFunc(rendered, func(a, b shortDiagnostic) int {
		if a.line != b.line {
			return int(a.line) - int(b.line)
		}
		return int(a.column) - int(b.column)
	})
	var sb strings.Builder
	for i, r := range rendered {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s %s %s:%d:%d %s", r.severity, r.code, file.Path, r.line, r.column, r.message)
	}
	return sb.String()
}

func short(file *source.File, sev string, code Code, sp source.Span, msg string) shortDiagnostic {
	pos := file.Lines.ByteToPosition(sp.Start)
	return shortDiagnostic{
		severity: sev,
		code:     code.ID(),
		line:     pos.Line + 1,
		column:   pos.Character + 1,
		message:  strings.Join(strings.Fields(msg), " "),
	}
}
