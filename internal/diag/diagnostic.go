package diag

import (
	"perlsense/internal/source"
)

// Note is a secondary span with a short explanation.
type Note struct {
	Span source.Span
	Msg  string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	Notes    []Note
}

func New(sev Severity, code Code, primary source.Span, msg string) Diagnostic {
	return Diagnostic{Severity: sev, Code: code, Primary: primary, Message: msg}
}

func NewError(code Code, primary source.Span, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

// WithNote returns a copy with one more note; the receiver's notes are not shared.
func (d Diagnostic) WithNote(sp source.Span, msg string) Diagnostic {
	notes := make([]Note, len(d.Notes), len(d.Notes)+1)
	copy(notes, d.Notes)
	d.Notes = append(notes, Note{Span: sp, Msg: msg})
	return d
}

// Shift moves the primary span and the note spans by delta bytes.
// Diagnostics attached to reused subtrees are carried forward this way.
func (d Diagnostic) Shift(delta int64) Diagnostic {
	d.Primary = d.Primary.Shift(delta)
	if len(d.Notes) > 0 {
		notes := make([]Note, len(d.Notes))
		for i, n := range d.Notes {
			notes[i] = Note{Span: n.Span.Shift(delta), Msg: n.Msg}
		}
		d.Notes = notes
	}
	return d
}

// IsError reports SevError or above.
func (d Diagnostic) IsError() bool { return d.Severity >= SevError }
