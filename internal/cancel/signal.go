package cancel

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

var (
	// ErrCancelled is returned by any step that observed a cancelled signal.
	ErrCancelled = errors.New("cancelled")
	// ErrDeadlineExceeded wraps ErrCancelled so callers can take one branch
	// while telemetry still sees a distinct cause.
	ErrDeadlineExceeded = fmt.Errorf("deadline exceeded: %w", ErrCancelled)
)

var nextID atomic.Uint64

// Signal is a cancellation flag shared by pointer between the party that
// cancels (dispatcher) and the party that observes (engine). The engine never
// sets it.
type Signal struct {
	id        uint64
	label     string
	created   time.Time
	cancelled atomic.Bool
	deadline  atomic.Int64 // unix nanos, 0 = нет дедлайна
}

func NewSignal(label string) *Signal {
	return &Signal{
		id:      nextID.Add(1),
		label:   label,
		created: time.Now(),
	}
}

// WithDeadline creates a signal that reports ErrDeadlineExceeded after d.
func WithDeadline(label string, d time.Time) *Signal {
	s := NewSignal(label)
	s.SetDeadline(d)
	return s
}

// WithTimeout is WithDeadline(now + timeout).
func WithTimeout(label string, timeout time.Duration) *Signal {
	return WithDeadline(label, time.Now().Add(timeout))
}

func (s *Signal) ID() uint64 { return s.id }

func (s *Signal) Label() string { return s.label }

// Elapsed is the time since the signal was created.
func (s *Signal) Elapsed() time.Duration { return time.Since(s.created) }

// Cancel sets the flag. Safe to call repeatedly and from any goroutine.
func (s *Signal) Cancel() {
	if s != nil {
		s.cancelled.Store(true)
	}
}

// SetDeadline replaces the deadline; the zero time removes it.
func (s *Signal) SetDeadline(d time.Time) {
	if d.IsZero() {
		s.deadline.Store(0)
		return
	}
	s.deadline.Store(d.UnixNano())
}

func (s *Signal) Deadline() (time.Time, bool) {
	ns := s.deadline.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}

// Cancelled reports whether the flag was set. It ignores the deadline and
// costs one atomic load.
func (s *Signal) Cancelled() bool {
	return s != nil && s.cancelled.Load()
}

// Err returns nil, ErrCancelled or ErrDeadlineExceeded. An explicit Cancel
// wins over an elapsed deadline. A nil signal is never cancelled.
func (s *Signal) Err() error {
	if s == nil {
		return nil
	}
	if s.cancelled.Load() {
		return ErrCancelled
	}
	if ns := s.deadline.Load(); ns != 0 && time.Now().UnixNano() >= ns {
		return ErrDeadlineExceeded
	}
	return nil
}

// FromContext bridges ctx into a Signal: the signal is cancelled when ctx is
// done and inherits its deadline. stop releases the bridge.
func FromContext(ctx context.Context, label string) (sig *Signal, stop func() bool) {
	sig = NewSignal(label)
	if d, ok := ctx.Deadline(); ok {
		sig.SetDeadline(d)
	}
	stop = context.AfterFunc(ctx, func() {
		if errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
			// дедлайн уже выставлен; Err сам вернёт ErrDeadlineExceeded
			if _, ok := sig.Deadline(); ok {
				return
			}
		}
		sig.Cancel()
	})
	return sig, stop
}

// IsDeadline reports whether err is the deadline flavour of cancellation.
func IsDeadline(err error) bool {
	return errors.Is(err, ErrDeadlineExceeded)
}
