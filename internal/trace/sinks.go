package trace

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

var globalSeq atomic.Uint64

func nextSeq() uint64 { return globalSeq.Add(1) }

// StreamTracer writes every event as soon as it is emitted.
type StreamTracer struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
	werr   error // первая ошибка записи, дальше молчим
}

func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	if format == FormatAuto {
		format = FormatText
	}
	return &StreamTracer{w: w, level: level, format: format}
}

// Emit never fails; the first write error is returned by Flush.
func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope, ev.Kind) {
		return
	}
	ev.Seq = nextSeq()
	data := FormatEvent(ev, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.werr != nil {
		return
	}
	if _, err := t.w.Write(data); err != nil {
		t.werr = err
	}
}

func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.werr != nil {
		return t.werr
	}
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close flushes and closes the writer; stdout and stderr stay open.
func (t *StreamTracer) Close() error {
	err := t.Flush()
	if c, ok := t.w.(io.Closer); ok && !isStdStream(t.w) {
		err = errors.Join(err, c.Close())
	}
	return err
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }

// RingTracer keeps the last events in memory. Replay dumps it when a cycle
// fails; tests read it with Snapshot and Find.
type RingTracer struct {
	mu     sync.RWMutex
	events []Event
	head   int  // next write position
	full   bool // has wrapped around
	level  Level
}

func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &RingTracer{events: make([]Event, capacity), level: level}
}

func (t *RingTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope, ev.Kind) {
		return
	}
	stored := *ev
	stored.Seq = nextSeq()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.events[t.head] = stored
	t.head = (t.head + 1) % len(t.events)
	if t.head == 0 {
		t.full = true
	}
}

// Snapshot returns the stored events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.full {
		return append([]Event(nil), t.events[:t.head]...)
	}
	out := make([]Event, 0, len(t.events))
	out = append(out, t.events[t.head:]...)
	return append(out, t.events[:t.head]...)
}

// Find returns the stored events named name, oldest first.
func (t *RingTracer) Find(name string) []Event {
	var out []Event
	for _, ev := range t.Snapshot() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// ForDoc returns the stored events of one document.
func (t *RingTracer) ForDoc(uri string) []Event {
	var out []Event
	for _, ev := range t.Snapshot() {
		if ev.Doc == uri {
			out = append(out, ev)
		}
	}
	return out
}

func (t *RingTracer) Dump(w io.Writer, format Format) error {
	for _, ev := range t.Snapshot() {
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }

// Tee sends every event to a stream and keeps it in a ring.
type Tee struct {
	Stream *StreamTracer
	Ring   *RingTracer
	level  Level
}

func NewTee(stream *StreamTracer, ring *RingTracer) *Tee {
	return &Tee{Stream: stream, Ring: ring, level: max(stream.Level(), ring.Level())}
}

// Emit hands each sink its own copy; sinks stamp Seq in place.
func (t *Tee) Emit(ev *Event) {
	cp := *ev
	t.Stream.Emit(&cp)
	t.Ring.Emit(ev)
}

func (t *Tee) Flush() error  { return t.Stream.Flush() }
func (t *Tee) Close() error  { return t.Stream.Close() }
func (t *Tee) Level() Level  { return t.level }
func (t *Tee) Enabled() bool { return t.level > LevelOff }

// RingOf returns the ring behind t, if any.
func RingOf(t Tracer) *RingTracer {
	switch t := t.(type) {
	case *RingTracer:
		return t
	case *Tee:
		return t.Ring
	}
	return nil
}
