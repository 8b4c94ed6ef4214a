package edits

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"perlsense/internal/source"
)

// EditSet is a folded sequence of edits in base coordinates: sorted, and no
// two edits overlap or touch. Applying the set to the base text yields the
// same text as applying the original edits one after another.
type EditSet struct {
	edits []Edit
}

// Fold folds seq, each edit given in coordinates of the text produced by the
// previous one, into a set over base. It also returns the resulting text.
func Fold(base []byte, seq []Edit) (EditSet, []byte, error) {
	var s EditSet
	cur := base
	for i, e := range seq {
		n, err := safecast.Conv[uint32](len(cur))
		if err != nil {
			return EditSet{}, nil, fmt.Errorf("text of %d bytes: %w", len(cur), err)
		}
		if err := e.Validate(n); err != nil {
			return EditSet{}, nil, fmt.Errorf("edit #%d: %w", i, err)
		}
		s.add(e, cur)
		cur = e.apply(cur)
	}
	return s, cur, nil
}

// shift is only used on offsets that stay inside the text by construction.
func shift(o uint32, d int64) uint32 {
	return uint32(int64(o) + d) // #nosec G115 -- результат внутри текста
}

func textLen(s string) uint32 {
	return uint32(len(s)) // #nosec G115 -- длина проверена Validate
}

// add folds e, given in coordinates of cur (base with s applied).
func (s *EditSet) add(e Edit, cur []byte) {
	if e.Noop() {
		return
	}
	// правки целиком левее e
	var deltaI int64
	i := 0
	for ; i < len(s.edits); i++ {
		ed := s.edits[i]
		if shift(ed.Start, deltaI)+textLen(ed.Text) >= e.Start {
			break
		}
		deltaI += ed.Delta()
	}
	// правки, пересекающиеся с e или касающиеся её
	run := deltaI
	j := i
	for ; j < len(s.edits); j++ {
		ed := s.edits[j]
		if shift(ed.Start, run) > e.OldEnd {
			break
		}
		run += ed.Delta()
	}

	if i == j {
		start := shift(e.Start, -deltaI)
		ne := Edit{Start: start, OldEnd: shift(e.OldEnd, -deltaI), NewEnd: start + textLen(e.Text), Text: e.Text}
		s.edits = slices.Insert(s.edits, i, ne)
		return
	}

	first, last := s.edits[i], s.edits[j-1]
	cs := shift(first.Start, deltaI)
	ce := shift(last.Start, run-last.Delta()) + textLen(last.Text)
	curStart := min(e.Start, cs)
	curEnd := max(e.OldEnd, ce)

	text := string(cur[curStart:e.Start]) + e.Text + string(cur[e.OldEnd:curEnd])
	m := Edit{
		Start:  first.Start - (cs - curStart),
		OldEnd: last.OldEnd + (curEnd - ce),
		Text:   text,
	}
	m.NewEnd = m.Start + textLen(text)
	if m.Noop() {
		s.edits = slices.Delete(s.edits, i, j)
		return
	}
	s.edits = slices.Replace(s.edits, i, j, m)
}

// Len is the number of folded edits.
func (s EditSet) Len() int { return len(s.edits) }

// Empty reports a set that changes nothing.
func (s EditSet) Empty() bool { return len(s.edits) == 0 }

// Edits returns a copy of the folded edits.
func (s EditSet) Edits() []Edit { return slices.Clone(s.edits) }

// Delta is the total change in text length.
func (s EditSet) Delta() int64 {
	var d int64
	for _, e := range s.edits {
		d += e.Delta()
	}
	return d
}

// Bounds returns the union of edited ranges in base coordinates.
func (s EditSet) Bounds() (start, oldEnd uint32, ok bool) {
	if len(s.edits) == 0 {
		return 0, 0, false
	}
	return s.edits[0].Start, s.edits[len(s.edits)-1].OldEnd, true
}

// NewBounds returns the union of replaced ranges in the edited text.
func (s EditSet) NewBounds() (start, newEnd uint32, ok bool) {
	start, oldEnd, ok := s.Bounds()
	if !ok {
		return 0, 0, false
	}
	return start, shift(oldEnd, s.Delta()), true
}

// Adjust maps a base offset into the edited text. Offsets at or after an
// edit's OldEnd move by the accumulated delta; offsets inside [Start, OldEnd)
// have no image and report false.
func (s EditSet) Adjust(o uint32) (uint32, bool) {
	var delta int64
	for _, e := range s.edits {
		if o < e.Start {
			break
		}
		if o < e.OldEnd {
			return 0, false
		}
		delta += e.Delta()
	}
	return shift(o, delta), true
}

// AdjustSpan maps a span that no edit touches. An insertion exactly at the
// span start moves the span; one exactly at its end does not.
func (s EditSet) AdjustSpan(sp source.Span) (source.Span, bool) {
	var delta int64
	for _, e := range s.edits {
		switch {
		case e.OldEnd <= sp.Start:
			delta += e.Delta()
		case e.Start >= sp.End:
			return sp.Shift(delta), true
		default:
			return sp, false
		}
	}
	return sp.Shift(delta), true
}

// DeltaBefore is the shift of every offset at or after o, assuming o lies
// after all edits that end before it.
func (s EditSet) DeltaBefore(o uint32) int64 {
	var delta int64
	for _, e := range s.edits {
		if e.OldEnd > o {
			break
		}
		delta += e.Delta()
	}
	return delta
}

// Apply produces the edited text from base.
func (s EditSet) Apply(base []byte) ([]byte, error) {
	out := make([]byte, 0, int64(len(base))+s.Delta())
	var prev uint32
	for _, e := range s.edits {
		if int(e.OldEnd) > len(base) {
			return nil, fmt.Errorf("edit %v on text of %d bytes: %w", e, len(base), ErrOutOfBounds)
		}
		out = append(out, base[prev:e.Start]...)
		out = append(out, e.Text...)
		prev = e.OldEnd
	}
	return append(out, base[prev:]...), nil
}

// Changes converts the set for source.Tracker.Apply.
func (s EditSet) Changes() []source.Change {
	out := make([]source.Change, len(s.edits))
	for i, e := range s.edits {
		out[i] = source.Change{Start: e.Start, OldEnd: e.OldEnd, NewLen: textLen(e.Text)}
	}
	return out
}
