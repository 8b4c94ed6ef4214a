// Package lspedit converts between LSP document changes and positions
// (UTF-16 based) and the byte edits and spans of the engine.
package lspedit

import (
	"errors"
	"fmt"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"perlsense/internal/document"
	"perlsense/internal/edits"
	"perlsense/internal/source"
)

// ErrBadRange is returned for a change whose range does not fit the text.
var ErrBadRange = errors.New("invalid change range")

// Converter turns a batch of content changes into edits. Each change is
// expressed against the text produced by the previous one, so the converter
// advances its own copy of the text and line tracker.
type Converter struct {
	text  []byte
	lines *source.Tracker
}

func NewConverter(text []byte) *Converter {
	return &Converter{text: text, lines: source.NewTracker(text)}
}

// Text is the text after every converted change.
func (c *Converter) Text() []byte { return c.text }

// Convert accepts protocol.TextDocumentContentChangeEvent (incremental) and
// protocol.TextDocumentContentChangeEventWhole (full sync), by value or pointer.
func (c *Converter) Convert(change any) (edits.Edit, error) {
	switch ch := change.(type) {
	case protocol.TextDocumentContentChangeEvent:
		if ch.Range == nil {
			return c.whole(ch.Text)
		}
		return c.ranged(*ch.Range, ch.Text)
	case *protocol.TextDocumentContentChangeEvent:
		return c.Convert(*ch)
	case protocol.TextDocumentContentChangeEventWhole:
		return c.whole(ch.Text)
	case *protocol.TextDocumentContentChangeEventWhole:
		return c.whole(ch.Text)
	default:
		return edits.Edit{}, fmt.Errorf("unsupported content change %T", change)
	}
}

func (c *Converter) whole(text string) (edits.Edit, error) {
	e, err := edits.Replace(0, c.lines.Len(), text)
	if err != nil {
		return edits.Edit{}, err
	}
	return c.advance(e)
}

func (c *Converter) ranged(r protocol.Range, text string) (edits.Edit, error) {
	start, err := c.offset(r.Start)
	if err != nil {
		return edits.Edit{}, fmt.Errorf("start: %w", err)
	}
	end, err := c.offset(r.End)
	if err != nil {
		return edits.Edit{}, fmt.Errorf("end: %w", err)
	}
	if end < start {
		return edits.Edit{}, fmt.Errorf("%w: end %d:%d before start %d:%d",
			ErrBadRange, r.End.Line, r.End.Character, r.Start.Line, r.Start.Character)
	}
	e, err := edits.Replace(start, end, text)
	if err != nil {
		return edits.Edit{}, err
	}
	return c.advance(e)
}

// offset maps a position; a line past the last one is an error, a character
// past the end of its line clamps like editors expect.
func (c *Converter) offset(p protocol.Position) (uint32, error) {
	if int(p.Line) >= c.lines.LineCount() {
		return 0, fmt.Errorf("%w: line %d of %d", ErrBadRange, p.Line, c.lines.LineCount())
	}
	return c.lines.PositionToByte(source.Position{Line: p.Line, Character: p.Character}), nil
}

func (c *Converter) advance(e edits.Edit) (edits.Edit, error) {
	set, text, err := edits.Fold(c.text, []edits.Edit{e})
	if err != nil {
		return edits.Edit{}, err
	}
	c.lines = c.lines.Apply(text, set.Changes())
	c.text = text
	return e, nil
}

// Convert is the one-shot form of Converter for a batch of changes.
func Convert(text []byte, changes []any) ([]edits.Edit, error) {
	c := NewConverter(text)
	out := make([]edits.Edit, 0, len(changes))
	for i, ch := range changes {
		e, err := c.Convert(ch)
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Apply converts changes against the document's current text and records
// them. On error nothing is recorded.
func Apply(doc *document.Document, changes []any) error {
	es, err := Convert(doc.Text(), changes)
	if err != nil {
		return err
	}
	return doc.ApplyEdits(es...)
}
