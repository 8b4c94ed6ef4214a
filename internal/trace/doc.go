// Package trace records what the analysis core does over time: store
// operations, per-document reparse cycles and the steps inside them.
//
// Sinks: Nop when off, StreamTracer (text or NDJSON), RingTracer (in
// memory, dumped by replay on failure) and Tee for both.
//
// Levels nest: error keeps only points (fallback, cancelled,
// deadline_exceeded), document adds store and document spans, cycle adds
// one span per reparse cycle, step adds the steps.
//
//	ctx = trace.WithTracer(ctx, tracer)
//	sp, ctx := trace.StartDoc(ctx, trace.ScopeDocument, "reparse", uri)
//	defer sp.End("")
//	step := sp.Child(trace.ScopeStep, "splice")
package trace
