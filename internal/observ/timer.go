package observ

import (
	"fmt"
	"strings"
	"time"
)

// Phase is one timed step of a reparse cycle.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer collects the steps of one cycle. Not safe for concurrent use; each
// cycle owns its timer.
type Timer struct {
	phases []Phase
}

func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 8)} }

// Begin starts a new phase and returns its index.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End finishes a phase by its index. Ending twice keeps the first duration.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	if p.Dur != 0 {
		return
	}
	p.Dur = max(time.Since(p.Start), 1)
	p.Note = note
}

// Phases returns a copy of the recorded phases.
func (t *Timer) Phases() []Phase {
	out := make([]Phase, len(t.phases))
	copy(out, t.phases)
	return out
}

// Total sums the finished phases.
func (t *Timer) Total() time.Duration {
	var total time.Duration
	for _, p := range t.phases {
		total += p.Dur
	}
	return total
}

// Summary returns a human-readable string summarizing all tracked phases.
func (t *Timer) Summary() string {
	report := t.Report()
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, p := range report.Phases {
		fmt.Fprintf(&sb, "  %-20s %7.3f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			sb.WriteString("  // " + p.Note)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "  %-20s %7.3f ms\n", "total", report.TotalMS)
	return sb.String()
}

// PhaseReport представляет сжатую информацию о фазе таймера для сериализации.
type PhaseReport struct {
	Name       string  `json:"name" msgpack:"name"`
	DurationMS float64 `json:"duration_ms" msgpack:"duration_ms"`
	Note       string  `json:"note,omitempty" msgpack:"note,omitempty"`
}

// Report описывает агрегированные данные таймера.
type Report struct {
	TotalMS float64       `json:"total_ms" msgpack:"total_ms"`
	Phases  []PhaseReport `json:"phases" msgpack:"phases"`
}

// Report формирует срез фаз и общую длительность в миллисекундах.
func (t *Timer) Report() Report {
	if len(t.phases) == 0 {
		return Report{}
	}
	report := Report{Phases: make([]PhaseReport, len(t.phases))}
	for i, phase := range t.phases {
		report.Phases[i] = PhaseReport{
			Name:       phase.Name,
			DurationMS: DurationToMillis(phase.Dur),
			Note:       phase.Note,
		}
	}
	report.TotalMS = DurationToMillis(t.Total())
	return report
}

func DurationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
