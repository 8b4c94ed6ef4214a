// Package edits records text edits and folds them into a single set in the
// coordinates of the last parsed text.
package edits

import (
	"errors"
	"fmt"

	"fortio.org/safecast"
)

// ErrOutOfBounds is returned for an edit whose range does not fit the text.
var ErrOutOfBounds = errors.New("edit out of bounds")

// Edit replaces the bytes [Start, OldEnd) with Text. NewEnd is where the
// replacement ends in the edited text: Start + len(Text).
type Edit struct {
	Start  uint32
	OldEnd uint32
	NewEnd uint32
	Text   string
}

// Replace builds an edit and fills in NewEnd.
func Replace(start, oldEnd uint32, text string) (Edit, error) {
	n, err := safecast.Conv[uint32](len(text))
	if err != nil {
		return Edit{}, fmt.Errorf("replacement of %d bytes: %w", len(text), err)
	}
	if oldEnd < start {
		return Edit{}, fmt.Errorf("range %d..%d: %w", start, oldEnd, ErrOutOfBounds)
	}
	return Edit{Start: start, OldEnd: oldEnd, NewEnd: start + n, Text: text}, nil
}

// Insert is Replace with an empty range.
func Insert(at uint32, text string) (Edit, error) {
	return Replace(at, at, text)
}

// Delete is Replace with an empty text.
func Delete(start, end uint32) (Edit, error) {
	return Replace(start, end, "")
}

// Delta is the change in text length.
func (e Edit) Delta() int64 {
	return int64(e.NewEnd) - int64(e.OldEnd)
}

// Noop reports an edit that changes nothing.
func (e Edit) Noop() bool {
	return e.Start == e.OldEnd && e.Text == ""
}

// Validate checks the edit against a text of textLen bytes.
func (e Edit) Validate(textLen uint32) error {
	if e.Start > e.OldEnd || e.OldEnd > textLen {
		return fmt.Errorf("range %d..%d in text of %d bytes: %w", e.Start, e.OldEnd, textLen, ErrOutOfBounds)
	}
	if e.NewEnd < e.Start || int(e.NewEnd-e.Start) != len(e.Text) {
		return fmt.Errorf("new end %d does not match %d bytes of text at %d: %w", e.NewEnd, len(e.Text), e.Start, ErrOutOfBounds)
	}
	return nil
}

func (e Edit) String() string {
	return fmt.Sprintf("%d..%d -> %q", e.Start, e.OldEnd, e.Text)
}

// apply returns a new slice; src is never modified.
func (e Edit) apply(src []byte) []byte {
	out := make([]byte, 0, len(src)+len(e.Text)-int(e.OldEnd-e.Start))
	out = append(out, src[:e.Start]...)
	out = append(out, e.Text...)
	return append(out, src[e.OldEnd:]...)
}
