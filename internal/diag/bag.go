package diag

import (
	"slices"

	"fortio.org/safecast"
)

// Bag collects the diagnostics of one parse. Once full, further
// diagnostics are dropped.
type Bag struct {
	items []Diagnostic
	max   uint16
}

// NewBag creates a bag holding at most max diagnostics; max <= 0 means the uint16 limit.
func NewBag(max int) *Bag {
	limit, err := safecast.Conv[uint16](max)
	if err != nil || max <= 0 {
		limit = ^uint16(0)
	}
	return &Bag{
		items: make([]Diagnostic, 0, min(int(limit), 16)),
		max:   limit,
	}
}

// Add добавляет диагностику, учитывая лимит.
// Возвращает false, если диагностика не добавлена (достигнут лимит).
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= int(b.max) {
		return false
	}
	b.items = append(b.items, d)
	return true
}

// HasErrors возвращает true, если есть хотя бы одна диагностика с Severity >= Error
func (b *Bag) HasErrors() bool {
	return slices.ContainsFunc(b.items, Diagnostic.IsError)
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Items возвращает read-only slice диагностик.
// ВАЖНО: не модифицируйте возвращаемый срез! (он указывает на внутренний массив Bag)
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// Sort orders by file, start, end, severity (desc), code, so that output
// does not depend on the order producers reported in.
func (b *Bag) Sort() {
	slices.SortStableFunc(b.items, Compare)
}

// Compare is the order Sort uses.
func Compare(a, b Diagnostic) int {
	switch {
	case a.Primary.File != b.Primary.File:
		return cmpInt(a.Primary.File, b.Primary.File)
	case a.Primary.Start != b.Primary.Start:
		return cmpInt(a.Primary.Start, b.Primary.Start)
	case a.Primary.End != b.Primary.End:
		return cmpInt(a.Primary.End, b.Primary.End)
	case a.Severity != b.Severity:
		return cmpInt(b.Severity, a.Severity) // error first
	default:
		return cmpInt(a.Code, b.Code)
	}
}

func cmpInt[T ~uint8 | ~uint16 | ~uint32](a, b T) int {
	if a < b {
		return -1
	}
	return 1
}
