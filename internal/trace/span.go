package trace

import (
	"sync/atomic"
	"time"
)

var globalSpans atomic.Uint64

// SpanContext is what a child span needs from its parent.
type SpanContext struct {
	ID  uint64
	Doc string
}

// Span tracks one begin/end pair. A span from a disabled tracer is inert.
// A span whose scope the level filters out is quiet: it emits no begin/end
// but still emits points, and children attach to its parent.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  SpanContext
	doc     string
	scope   Scope
	name    string
	started time.Time
	extra   map[string]string
	quiet   bool
}

// Begin starts a span under parent. The document of parent carries over
// unless doc is set.
func Begin(t Tracer, scope Scope, name string, parent SpanContext) *Span {
	s := &Span{tracer: t, parent: parent, doc: parent.Doc, scope: scope, name: name, started: time.Now()}
	if t == nil || !t.Enabled() {
		s.tracer = Nop
		return s
	}
	if !t.Level().ShouldEmit(scope, KindSpanBegin) {
		s.quiet = true
		return s
	}
	s.id = globalSpans.Add(1)
	s.emit(KindSpanBegin, s.name, "", nil)
	return s
}

// ForDoc sets the document of a span that started without one. Call it
// before the span ends; children started afterwards inherit it.
func (s *Span) ForDoc(uri string) *Span {
	if s != nil {
		s.doc = uri
	}
	return s
}

func (s *Span) live() bool {
	return s != nil && s.tracer != nil && s.tracer.Enabled()
}

func (s *Span) emit(kind Kind, name, detail string, extra map[string]string) {
	ev := &Event{
		Time:   time.Now(),
		Kind:   kind,
		Scope:  s.scope,
		Doc:    s.doc,
		Name:   name,
		Detail: detail,
		Extra:  extra,
	}
	if kind == KindPoint {
		ev.ParentID = s.ID()
	} else {
		ev.SpanID, ev.ParentID = s.id, s.parent.ID
	}
	s.tracer.Emit(ev)
}

// End emits the end event with the collected extras and returns the
// span's duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil {
		return 0
	}
	dur := time.Since(s.started)
	if s.live() && !s.quiet {
		s.emit(KindSpanEnd, s.name, detail, s.extra)
	}
	return dur
}

// WithExtra adds a key-value pair to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if !s.live() || s.quiet {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string)
	}
	s.extra[key] = value
	return s
}

// Point emits an instant event under this span.
func (s *Span) Point(name, detail string, extra map[string]string) {
	if s.live() {
		s.emit(KindPoint, name, detail, extra)
	}
}

// ID is the span id; a quiet span passes its parent's id through.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	if s.id == 0 {
		return s.parent.ID
	}
	return s.id
}

// Context is the parent context for spans started under s.
func (s *Span) Context() SpanContext {
	if s == nil {
		return SpanContext{}
	}
	return SpanContext{ID: s.ID(), Doc: s.doc}
}

// Child starts a span under s on the same tracer.
func (s *Span) Child(scope Scope, name string) *Span {
	if s == nil {
		return Begin(Nop, scope, name, SpanContext{})
	}
	return Begin(s.tracer, scope, name, s.Context())
}
