package trace

import "context"

type ctxKey struct{}

type spanCtxKey struct{}

// FromContext extracts the Tracer from context, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(ctxKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, ctxKey{}, t)
}

// CurrentSpan returns the context of the innermost span attached with
// WithSpan, zero if none.
func CurrentSpan(ctx context.Context) SpanContext {
	if ctx == nil {
		return SpanContext{}
	}
	sc, _ := ctx.Value(spanCtxKey{}).(SpanContext)
	return sc
}

// WithSpan makes s the parent of spans started from the returned context.
func WithSpan(ctx context.Context, s *Span) context.Context {
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, spanCtxKey{}, s.Context())
}

// Start begins a span under the context's current span and returns a
// context carrying it.
func Start(ctx context.Context, scope Scope, name string) (*Span, context.Context) {
	s := Begin(FromContext(ctx), scope, name, CurrentSpan(ctx))
	return s, WithSpan(ctx, s)
}

// StartDoc is Start for a span that belongs to document uri.
func StartDoc(ctx context.Context, scope Scope, name, uri string) (*Span, context.Context) {
	parent := CurrentSpan(ctx)
	parent.Doc = uri
	s := Begin(FromContext(ctx), scope, name, parent)
	return s, WithSpan(ctx, s)
}
