package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"", LevelOff, true},
		{"off", LevelOff, true},
		{"ERROR", LevelError, true},
		{"document", LevelDocument, true},
		{"cycle", LevelCycle, true},
		{"debug", LevelStep, true},
		{"verbose", LevelOff, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestShouldEmit(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		kind  Kind
		want  bool
	}{
		{LevelOff, ScopeStore, KindPoint, false},
		{LevelError, ScopeStep, KindPoint, true},
		{LevelError, ScopeStore, KindSpanBegin, false},
		{LevelDocument, ScopeDocument, KindSpanEnd, true},
		{LevelDocument, ScopeCycle, KindSpanBegin, false},
		{LevelCycle, ScopeCycle, KindSpanBegin, true},
		{LevelCycle, ScopeStep, KindSpanBegin, false},
		{LevelStep, ScopeStep, KindSpanEnd, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope, tt.kind); got != tt.want {
			t.Errorf("%v.ShouldEmit(%v, %v) = %v, want %v", tt.level, tt.scope, tt.kind, got, tt.want)
		}
	}
}

func TestRingWrapsAround(t *testing.T) {
	r := NewRingTracer(3, LevelStep)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		r.Emit(&Event{Kind: KindPoint, Scope: ScopeCycle, Name: name})
	}
	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len = %d, want 3", len(snap))
	}
	for i, want := range []string{"c", "d", "e"} {
		if snap[i].Name != want {
			t.Errorf("snap[%d] = %q, want %q", i, snap[i].Name, want)
		}
	}
	if snap[0].Seq >= snap[1].Seq || snap[1].Seq >= snap[2].Seq {
		t.Errorf("sequence is not monotonic: %d %d %d", snap[0].Seq, snap[1].Seq, snap[2].Seq)
	}
	if got := r.Find("d"); len(got) != 1 {
		t.Errorf("Find(d) = %v", got)
	}
}

func TestQuietSpanKeepsPoints(t *testing.T) {
	r := NewRingTracer(16, LevelError)
	parent := Begin(r, ScopeDocument, "reparse", SpanContext{Doc: "file:///a.pl"})
	child := parent.Child(ScopeStep, "splice")
	child.WithExtra("k", "v")
	child.Point("fallback", "region_too_wide", nil)
	child.End("")
	parent.End("")

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("events = %+v, want only the point", snap)
	}
	if snap[0].Kind != KindPoint || snap[0].Detail != "region_too_wide" || snap[0].Doc != "file:///a.pl" {
		t.Errorf("unexpected event %+v", snap[0])
	}
}

func TestSpanParenting(t *testing.T) {
	r := NewRingTracer(16, LevelStep)
	ctx := WithTracer(context.Background(), r)
	tr := FromContext(ctx)

	doc, ctx := StartDoc(ctx, ScopeDocument, "reparse", "file:///b.pl")
	cycle, ctx := Start(ctx, ScopeCycle, "cycle")
	step := Begin(tr, ScopeStep, "commit", CurrentSpan(ctx))
	if d := step.WithExtra("nodes", "5").End("ok"); d <= 0 {
		t.Errorf("duration = %v", d)
	}
	cycle.End("")
	doc.End("")

	if got := len(r.ForDoc("file:///b.pl")); got != 6 {
		t.Errorf("events of b.pl = %d, want 6", got)
	}
	ends := 0
	for _, ev := range r.Snapshot() {
		if ev.Name == "cycle" && ev.ParentID != doc.ID() {
			t.Errorf("cycle parent = %d, want %d", ev.ParentID, doc.ID())
		}
		if ev.Name == "commit" {
			if ev.ParentID != cycle.ID() {
				t.Errorf("commit parent = %d, want %d", ev.ParentID, cycle.ID())
			}
			if ev.Kind == KindSpanEnd {
				ends++
				if ev.Extra["nodes"] != "5" || ev.Detail != "ok" {
					t.Errorf("end event = %+v", ev)
				}
			}
		}
	}
	if ends != 1 {
		t.Errorf("commit end events = %d, want 1", ends)
	}
}

func TestNopAndNilSpans(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatal("empty context should give Nop")
	}
	s := Begin(Nop, ScopeCycle, "cycle", SpanContext{})
	s.WithExtra("a", "b").Point("x", "", nil)
	s.Child(ScopeStep, "splice").End("")
	s.End("")
	var nilSpan *Span
	if nilSpan.ID() != 0 || nilSpan.End("") != 0 || nilSpan.Context() != (SpanContext{}) {
		t.Fatal("nil span must be inert")
	}
	nilSpan.Child(ScopeStep, "x").End("")
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr != Nop {
		t.Fatalf("New(off) = %v, %v", tr, err)
	}
}

func TestStreamFormats(t *testing.T) {
	ev := Event{
		Time:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Kind:   KindPoint,
		Scope:  ScopeCycle,
		Doc:    "file:///src/lib/Foo.pm",
		Name:   "fallback",
		Detail: "resync_failed",
		Extra:  map[string]string{"z": "1", "a": "2"},
	}

	var text bytes.Buffer
	NewStreamTracer(&text, LevelStep, FormatAuto).Emit(&ev)
	line := text.String()
	if !strings.HasPrefix(line, "03:04:05.000000") || !strings.Contains(line, "[Foo.pm] • fallback (resync_failed) {a=2, z=1}") {
		t.Errorf("text line = %q", line)
	}

	var nd bytes.Buffer
	st := NewStreamTracer(&nd, LevelStep, FormatNDJSON)
	st.Emit(&ev)
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(nd.Bytes(), &got); err != nil {
		t.Fatalf("ndjson: %v (%q)", err, nd.String())
	}
	if got["kind"] != "point" || got["scope"] != "cycle" || got["detail"] != "resync_failed" || got["doc"] != ev.Doc {
		t.Errorf("ndjson = %v", got)
	}
}

type failWriter struct{ n int }

func (w *failWriter) Write(p []byte) (int, error) {
	w.n++
	return 0, errWrite
}

var errWrite = &writeError{}

type writeError struct{}

func (*writeError) Error() string { return "write failed" }

func TestStreamReportsFirstWriteError(t *testing.T) {
	w := &failWriter{}
	st := NewStreamTracer(w, LevelStep, FormatText)
	st.Emit(&Event{Kind: KindPoint, Name: "a"})
	st.Emit(&Event{Kind: KindPoint, Name: "b"})
	if w.n != 1 {
		t.Errorf("writes after failure: %d", w.n)
	}
	if err := st.Flush(); err != errWrite {
		t.Errorf("Flush = %v", err)
	}
}

func TestNewBothModes(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelCycle, Mode: ModeBoth, Output: &buf, RingSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	ring := RingOf(tr)
	if _, ok := tr.(*Tee); !ok || ring == nil {
		t.Fatalf("ModeBoth gave %T", tr)
	}
	Begin(tr, ScopeCycle, "cycle", SpanContext{}).End("")
	Begin(tr, ScopeStep, "splice", SpanContext{}).End("")
	if len(ring.Snapshot()) != 2 || strings.Count(buf.String(), "\n") != 2 {
		t.Errorf("ring=%d stream=%q", len(ring.Snapshot()), buf.String())
	}
	if RingOf(Nop) != nil {
		t.Error("Nop has no ring")
	}
	if _, err := ParseMode("disk"); err == nil {
		t.Error("ParseMode should reject unknown modes")
	}
	if f, err := ParseFormat("json"); err != nil || f != FormatNDJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
}

func TestHeartbeat(t *testing.T) {
	r := NewRingTracer(64, LevelError)
	h := StartHeartbeat(r, time.Millisecond, func() map[string]string {
		return map[string]string{"docs": "2"}
	})
	deadline := time.Now().Add(2 * time.Second)
	for len(r.Find("heartbeat")) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	h.Stop()
	beats := r.Find("heartbeat")
	if len(beats) == 0 {
		t.Fatal("no heartbeat recorded")
	}
	if beats[0].Extra["docs"] != "2" || beats[0].Detail != "#1" {
		t.Fatalf("heartbeat = %+v", beats[0])
	}
	if StartHeartbeat(Nop, time.Millisecond, nil) != nil {
		t.Fatal("heartbeat on Nop should be nil")
	}
}
