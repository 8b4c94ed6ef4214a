package edits

import (
	"fmt"
	"sync"

	"fortio.org/safecast"
)

type entry struct {
	seq  uint64
	edit Edit
}

// Ledger accumulates edits between reparse cycles. Recording is safe while a
// cycle folds an earlier mark: later edits stay pending for the next cycle.
type Ledger struct {
	mu      sync.Mutex
	base    []byte // текст последнего коммита
	text    []byte // текст со всеми записанными правками
	pending []entry
	seq     uint64
}

func NewLedger(text []byte) *Ledger {
	return &Ledger{base: text, text: text}
}

// Record validates e against the current text and appends it.
// It returns the sequence number of the edit.
func (l *Ledger) Record(e Edit) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, err := safecast.Conv[uint32](len(l.text))
	if err != nil {
		return 0, fmt.Errorf("text of %d bytes: %w", len(l.text), err)
	}
	if err := e.Validate(n); err != nil {
		return 0, err
	}
	l.seq++
	l.pending = append(l.pending, entry{seq: l.seq, edit: e})
	l.text = e.apply(l.text)
	return l.seq, nil
}

// Mark is the sequence number of the latest recorded edit.
func (l *Ledger) Mark() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Text is the current text including every pending edit. The slice is never
// modified in place.
func (l *Ledger) Text() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.text
}

// Base is the text as of the last commit.
func (l *Ledger) Base() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.base
}

// Pending is the number of edits not yet committed.
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Fold folds the pending edits up to and including mark over the base and
// returns the set together with the text it produces.
func (l *Ledger) Fold(mark uint64) (EditSet, []byte, error) {
	l.mu.Lock()
	base := l.base
	seq := l.upto(mark)
	l.mu.Unlock()
	return Fold(base, seq)
}

// Commit drops the edits up to mark; their result becomes the new base.
// Edits recorded after mark stay pending.
func (l *Ledger) Commit(mark uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	seq := l.upto(mark)
	if len(seq) == 0 {
		return nil
	}
	_, text, err := Fold(l.base, seq)
	if err != nil {
		return err
	}
	l.base = text
	l.pending = append(l.pending[:0:0], l.pending[len(seq):]...)
	return nil
}

// Reset replaces the whole text and forgets every pending edit.
func (l *Ledger) Reset(text []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base, l.text, l.pending = text, text, nil
}

func (l *Ledger) upto(mark uint64) []Edit {
	var out []Edit
	for _, e := range l.pending {
		if e.seq > mark {
			break
		}
		out = append(out, e.edit)
	}
	return out
}
