package source

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"fortio.org/safecast"
)

// Tracker maps byte offsets to editor positions and back.
//
// It stores the byte offset of every line start. "\n", "\r\n" and a lone "\r"
// all terminate a line. Columns are counted in UTF-16 code units; terminator
// bytes are addressable as columns of their own line so that every rune
// boundary in the text has exactly one Position.
//
// A Tracker is immutable: Apply returns a new value and leaves the receiver
// usable by readers that still hold it.
type Tracker struct {
	src    []byte
	starts []uint32 // starts[0] == 0, strictly increasing
}

// NewTracker scans src once and records all line starts.
func NewTracker(src []byte) *Tracker {
	n := lenU32(src)
	starts := make([]uint32, 1, 1+len(src)/32)
	starts = appendLineStarts(starts, src, 1, uint64(n)+1)
	return &Tracker{src: src, starts: starts}
}

// Source returns the text the tracker was built over.
func (t *Tracker) Source() []byte { return t.src }

// Len returns the text length in bytes.
func (t *Tracker) Len() uint32 { return lenU32(t.src) }

// LineCount returns the number of lines; an empty text has one line.
func (t *Tracker) LineCount() int { return len(t.starts) }

// LineStarts returns the line start table. Callers must not modify it.
func (t *Tracker) LineStarts() []uint32 { return t.starts }

// LineStart returns the byte offset where line begins.
func (t *Tracker) LineStart(line uint32) (uint32, bool) {
	if int(line) >= len(t.starts) {
		return 0, false
	}
	return t.starts[line], true
}

// LineOf returns the 0-based line containing off (clamped to the text).
func (t *Tracker) LineOf(off uint32) uint32 {
	if n := t.Len(); off > n {
		off = n
	}
	idx := sort.Search(len(t.starts), func(i int) bool { return t.starts[i] > off }) - 1
	if idx < 0 {
		idx = 0
	}
	return uint32(idx) // #nosec G115 -- idx < len(starts) <= len(src)+1
}

// ContentEnd returns the offset where the terminator of line begins,
// or the end of text for the last line.
func (t *Tracker) ContentEnd(line uint32) uint32 {
	if int(line)+1 >= len(t.starts) {
		return t.Len()
	}
	next := t.starts[line+1]
	end := next - 1
	if t.src[end] == '\n' && end > t.starts[line] && t.src[end-1] == '\r' {
		end--
	}
	return end
}

// ByteToPosition converts a byte offset into a Position.
// Offsets past the end clamp to the end; an offset inside a multi-byte
// character is floored to the character start.
func (t *Tracker) ByteToPosition(off uint32) Position {
	if n := t.Len(); off > n {
		off = n
	}
	line := t.LineOf(off)
	i := t.starts[line]
	var col uint32
	for i < off {
		r, sz := utf8.DecodeRune(t.src[i:])
		next := i + uint32(sz) // #nosec G115 -- sz <= utf8.UTFMax
		if next > off {
			break
		}
		col += utf16Len(r)
		i = next
	}
	return Position{Line: line, Character: col, Offset: i}
}

// PositionToByte converts a Position into a byte offset. Offset is ignored.
// Lines past the end clamp to the end of text; a character past the end of its
// line clamps to the line content end. A character pointing into the middle of
// a surrogate pair is floored to the character start.
func (t *Tracker) PositionToByte(pos Position) uint32 {
	if int(pos.Line) >= len(t.starts) {
		return t.Len()
	}
	last := int(pos.Line)+1 == len(t.starts)
	limit := t.Len()
	if !last {
		limit = t.starts[pos.Line+1]
	}
	i := t.starts[pos.Line]
	var col uint32
	for i < limit && col < pos.Character {
		r, sz := utf8.DecodeRune(t.src[i:])
		w := utf16Len(r)
		if col+w > pos.Character {
			return i
		}
		col += w
		i += uint32(sz) // #nosec G115 -- sz <= utf8.UTFMax
	}
	if col < pos.Character || (!last && i >= limit) {
		return t.ContentEnd(pos.Line)
	}
	return i
}

// SpanRange converts a span into a start and end Position pair.
func (t *Tracker) SpanRange(sp Span) (start, end Position) {
	return t.ByteToPosition(sp.Start), t.ByteToPosition(sp.End)
}

// Apply returns the tracker for newSrc, which is the old text with changes
// applied. changes must be sorted, non-overlapping and in old-text coordinates.
//
// Line starts before the first change are kept, starts after the last change
// are shifted by the total delta, and only the window in between is rescanned.
// A line start at s depends on bytes s-2..s, which fixes the window bounds.
func (t *Tracker) Apply(newSrc []byte, changes []Change) *Tracker {
	if len(changes) == 0 {
		return &Tracker{src: newSrc, starts: t.starts}
	}
	first := changes[0].Start
	lastOldEnd := changes[len(changes)-1].OldEnd
	var delta int64
	for _, c := range changes {
		delta += c.Delta()
	}
	newLen := uint64(lenU32(newSrc))

	out := make([]uint32, 1, len(t.starts)+8)
	keepHi := sort.Search(len(t.starts), func(i int) bool { return t.starts[i] >= first })
	if keepHi > 1 {
		out = append(out, t.starts[1:keepHi]...)
	}

	from := uint64(first)
	if from < 1 {
		from = 1
	}
	hi := int64(lastOldEnd) + delta + 2
	if hi < 0 {
		hi = 0
	}
	to := uint64(hi)
	if to > newLen+1 {
		to = newLen + 1
	}
	out = appendLineStarts(out, newSrc, from, to)

	shiftFrom := uint64(lastOldEnd) + 2
	tail := sort.Search(len(t.starts), func(i int) bool { return uint64(t.starts[i]) >= shiftFrom })
	for _, s := range t.starts[tail:] {
		out = append(out, uint32(int64(s)+delta)) // #nosec G115 -- shifted starts stay within newSrc
	}
	return &Tracker{src: newSrc, starts: out}
}

// appendLineStarts appends every line start s with from <= s < to.
func appendLineStarts(dst []uint32, src []byte, from, to uint64) []uint32 {
	n := uint64(len(src))
	for s := from; s < to && s <= n; s++ {
		if isLineStart(src, s) {
			dst = append(dst, uint32(s)) // #nosec G115 -- s <= len(src)
		}
	}
	return dst
}

func isLineStart(src []byte, s uint64) bool {
	if s == 0 || s > uint64(len(src)) {
		return false
	}
	switch src[s-1] {
	case '\n':
		return true
	case '\r':
		return s == uint64(len(src)) || src[s] != '\n'
	}
	return false
}

func utf16Len(r rune) uint32 {
	if r >= 0x10000 && r <= utf8.MaxRune {
		return 2
	}
	return 1
}

func lenU32(b []byte) uint32 {
	n, err := safecast.Conv[uint32](len(b))
	if err != nil {
		panic(fmt.Errorf("source length overflow: %w", err))
	}
	return n
}
