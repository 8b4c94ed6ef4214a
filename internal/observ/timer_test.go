package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerPhases(t *testing.T) {
	tm := NewTimer()
	a := tm.Begin("affected_range")
	tm.End(a, "")
	b := tm.Begin("splice")
	tm.End(b, "5 nodes")
	tm.End(b, "again")
	tm.End(42, "")

	ph := tm.Phases()
	if len(ph) != 2 {
		t.Fatalf("phases = %d", len(ph))
	}
	if ph[0].Dur <= 0 || ph[1].Dur <= 0 {
		t.Errorf("durations must be positive: %v %v", ph[0].Dur, ph[1].Dur)
	}
	if ph[1].Note != "5 nodes" {
		t.Errorf("note = %q", ph[1].Note)
	}
	if tm.Total() != ph[0].Dur+ph[1].Dur {
		t.Errorf("total = %v", tm.Total())
	}

	rep := tm.Report()
	if len(rep.Phases) != 2 || rep.Phases[1].Name != "splice" || rep.TotalMS <= 0 {
		t.Errorf("report = %+v", rep)
	}
	sum := tm.Summary()
	if !strings.HasPrefix(sum, "timings:\n") || !strings.Contains(sum, "// 5 nodes") || !strings.Contains(sum, "total") {
		t.Errorf("summary = %q", sum)
	}
}

func TestEmptyTimer(t *testing.T) {
	tm := NewTimer()
	if r := tm.Report(); len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Errorf("report = %+v", r)
	}
	if DurationToMillis(1500*time.Microsecond) != 1.5 {
		t.Error("DurationToMillis")
	}
}
