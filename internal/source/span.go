package source

import (
	"fmt"
)

// Span is a half-open byte range inside one file.
type Span struct {
	File  FileID `json:"file" msgpack:"file"`
	Start uint32 `json:"start" msgpack:"start"` // в байтах включительно
	End   uint32 `json:"end" msgpack:"end"`     // в байтах не включительно
}

func (s Span) Empty() bool {
	return s.Start == s.End
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

// Cover returns the smallest span containing both s and other.
// Spans from different files are not merged.
func (s Span) Cover(other Span) Span {
	if s.File != other.File {
		return s
	}
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}

// Contains reports whether off lies in [Start, End).
func (s Span) Contains(off uint32) bool {
	return off >= s.Start && off < s.End
}

// ContainsSpan reports whether other lies entirely inside s.
func (s Span) ContainsSpan(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// Overlaps reports whether the two spans share at least one byte.
// An empty span overlaps s when it sits strictly inside s.
func (s Span) Overlaps(other Span) bool {
	if other.Empty() {
		return other.Start > s.Start && other.Start < s.End
	}
	return other.Start < s.End && s.Start < other.End
}

// ShiftLeft moves the span n bytes towards the start of the file.
// Shifting past zero leaves the span unchanged.
func (s Span) ShiftLeft(n uint32) Span {
	if n > s.Start {
		return s
	}
	return Span{
		File:  s.File,
		Start: s.Start - n,
		End:   s.End - n,
	}
}

func (s Span) ShiftRight(n uint32) Span {
	return Span{
		File:  s.File,
		Start: s.Start + n,
		End:   s.End + n,
	}
}

// Shift applies a signed delta, dispatching to ShiftLeft/ShiftRight.
func (s Span) Shift(delta int64) Span {
	switch {
	case delta > 0:
		return s.ShiftRight(uint32(delta))
	case delta < 0:
		return s.ShiftLeft(uint32(-delta))
	default:
		return s
	}
}

// ZeroideToEnd returns an empty span placed at s.End.
func (s Span) ZeroideToEnd() Span {
	return Span{File: s.File, Start: s.End, End: s.End}
}
