package checkpoint

import (
	"sync"
	"testing"
)

func TestManager_EvictsOldestFirst(t *testing.T) {
	m := NewManager(3)
	for i := uint64(1); i <= 5; i++ {
		m.Push(Checkpoint{Cycle: i})
	}
	if m.Len() != 3 || m.Evicted() != 2 {
		t.Fatalf("len %d evicted %d, want 3 and 2", m.Len(), m.Evicted())
	}
	var cycles []uint64
	for _, cp := range m.History() {
		cycles = append(cycles, cp.Cycle)
	}
	if len(cycles) != 3 || cycles[0] != 3 || cycles[2] != 5 {
		t.Fatalf("history cycles = %v, want [3 4 5]", cycles)
	}
}

func TestManager_RollbackUsesNewest(t *testing.T) {
	m := NewManager(0)
	if m.Limit() != DefaultHistory {
		t.Fatalf("limit = %d, want %d", m.Limit(), DefaultHistory)
	}
	if _, ok := m.Rollback(); ok {
		t.Fatalf("rollback on empty history succeeded")
	}
	m.Push(Checkpoint{Cycle: 1, Mark: 10})
	m.Push(Checkpoint{Cycle: 2, Mark: 20})

	newest, ok := m.Newest()
	if !ok || newest.Cycle != 2 {
		t.Fatalf("newest = %+v", newest)
	}
	cp, ok := m.Rollback()
	if !ok || cp.Cycle != 2 || cp.Mark != 20 {
		t.Fatalf("rollback = %+v, %v", cp, ok)
	}
	if cp.Timestamp.IsZero() {
		t.Fatalf("push did not stamp the checkpoint")
	}
	if m.Len() != 1 {
		t.Fatalf("len after rollback = %d", m.Len())
	}
	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("len after clear = %d", m.Len())
	}
}

func TestManager_Concurrent(t *testing.T) {
	m := NewManager(4)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				m.Push(Checkpoint{Cycle: uint64(i*100 + j)})
				if j%3 == 0 {
					m.Rollback()
				}
			}
		}()
	}
	wg.Wait()
	if m.Len() > 4 {
		t.Fatalf("history grew past its bound: %d", m.Len())
	}
}

func TestManager_DiscardCommittedCycle(t *testing.T) {
	m := NewManager(4)
	m.Push(Checkpoint{Cycle: 1})
	m.Push(Checkpoint{Cycle: 2})
	if !m.Discard(1) {
		t.Fatal("discard of cycle 1 failed")
	}
	if m.Discard(1) {
		t.Fatal("cycle 1 discarded twice")
	}
	newest, ok := m.Newest()
	if !ok || newest.Cycle != 2 || m.Len() != 1 {
		t.Fatalf("after discard: len %d newest %+v", m.Len(), newest)
	}
	if !m.Discard(2) || m.Len() != 0 {
		t.Fatalf("history not empty: %d", m.Len())
	}
}
