// Package checkpoint keeps the state a reparse cycle needs to undo itself.
package checkpoint

import (
	"sync"
	"time"

	"perlsense/internal/ast"
	"perlsense/internal/lexer"
)

// DefaultHistory is the number of checkpoints kept when none is configured.
const DefaultHistory = 8

// Checkpoint is taken right before local re-derivation.
type Checkpoint struct {
	Tree      *ast.Tree   // exposed tree at the start of the cycle
	Lexer     lexer.State // lexer state at the region boundary
	Mark      uint64      // ledger mark folded by the cycle
	Cursor    uint32      // region start in the new text
	Cycle     uint64
	Timestamp time.Time
}

// Manager is a bounded history of checkpoints. A checkpoint lives from the
// start of re-derivation until its cycle commits (Discard) or is cancelled
// (Rollback). The oldest is evicted first; rollback only ever uses the newest.
type Manager struct {
	mu      sync.Mutex
	history []Checkpoint
	limit   int
	evicted uint64
}

func NewManager(limit int) *Manager {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &Manager{limit: limit, history: make([]Checkpoint, 0, limit)}
}

// Push records cp, evicting the oldest entry when the history is full.
func (m *Manager) Push(cp Checkpoint) {
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == m.limit {
		copy(m.history, m.history[1:])
		m.history = m.history[:m.limit-1]
		m.evicted++
	}
	m.history = append(m.history, cp)
}

// Rollback removes and returns the newest checkpoint.
func (m *Manager) Rollback() (Checkpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return Checkpoint{}, false
	}
	cp := m.history[len(m.history)-1]
	m.history[len(m.history)-1] = Checkpoint{}
	m.history = m.history[:len(m.history)-1]
	return cp, true
}

// Discard removes the checkpoint of a committed cycle. It reports whether
// one was found.
func (m *Manager) Discard(cycle uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].Cycle != cycle {
			continue
		}
		copy(m.history[i:], m.history[i+1:])
		m.history[len(m.history)-1] = Checkpoint{}
		m.history = m.history[:len(m.history)-1]
		return true
	}
	return false
}

// Newest returns the newest checkpoint without removing it.
func (m *Manager) Newest() (Checkpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return Checkpoint{}, false
	}
	return m.history[len(m.history)-1], true
}

// History returns the checkpoints oldest first.
func (m *Manager) History() []Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Checkpoint, len(m.history))
	copy(out, m.history)
	return out
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// Evicted is the number of checkpoints dropped by the bound.
func (m *Manager) Evicted() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evicted
}

func (m *Manager) Limit() int { return m.limit }

// Clear drops the whole history, releasing the trees it references.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.history)
	m.history = m.history[:0]
}
