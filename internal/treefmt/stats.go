package treefmt

import (
	"fmt"
	"strconv"
	"strings"

	"perlsense/internal/observ"
	"perlsense/internal/reparse"
)

var statsColumns = []string{"CYCLE", "EDITS", "REUSED", "REDERIVED", "CONTAINER", "REGION", "RESULT", "TIME"}

// StatsTable renders one row per cycle. width > 0 truncates the RESULT column
// so that rows fit.
func StatsTable(stats []reparse.Stats, st *Styles, width int) string {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		container, region := s.Container.String(), fmt.Sprintf("%d..%d", s.Region.Start, s.Region.End)
		if s.Cancelled {
			container, region = "-", "-"
		}
		rows = append(rows, []string{
			strconv.FormatUint(s.Cycle, 10),
			strconv.Itoa(s.Edits),
			strconv.Itoa(s.NodesReused),
			strconv.Itoa(s.NodesRederived),
			container,
			region,
			result(s),
			fmt.Sprintf("%.3fms", observ.DurationToMillis(s.Duration)),
		})
	}
	widths := make([]int, len(statsColumns))
	for i, h := range statsColumns {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i, c := range r {
			widths[i] = max(widths[i], len(c))
		}
	}
	const resultCol = 6
	if width > 0 {
		total := 0
		for _, w := range widths {
			total += w + 2
		}
		if excess := total - width; excess > 0 {
			widths[resultCol] = max(len(statsColumns[resultCol]), widths[resultCol]-excess)
		}
	}

	var sb strings.Builder
	cells := make([]string, len(statsColumns))
	for i, h := range statsColumns {
		cells[i] = pad(h, widths[i])
	}
	sb.WriteString(st.Header.Render(strings.Join(cells, "  ")))
	sb.WriteByte('\n')
	sep := 0
	for _, w := range widths {
		sep += w + 2
	}
	sb.WriteString(st.Border.Render(strings.Repeat("-", sep-2)))
	sb.WriteByte('\n')
	for ri, r := range rows {
		for i, c := range r {
			cells[i] = pad(Truncate(c, widths[i]), widths[i])
		}
		line := strings.TrimRight(strings.Join(cells, "  "), " ")
		switch {
		case stats[ri].Fallback:
			line = st.Fallback.Render(line)
		case stats[ri].NodesReused > 0:
			line = st.Reused.Render(line)
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func result(s reparse.Stats) string {
	switch {
	case s.DeadlineExceeded:
		return "deadline exceeded"
	case s.Cancelled:
		return "cancelled"
	case s.Fallback:
		return "full: " + string(s.Reason)
	case s.Widenings > 0 || s.Lifts > 0:
		return fmt.Sprintf("local (widen %d, lift %d)", s.Widenings, s.Lifts)
	default:
		return "local"
	}
}

// Timings lists the step durations of one cycle.
func Timings(s reparse.Stats) string {
	var sb strings.Builder
	for _, p := range s.Steps {
		fmt.Fprintf(&sb, "  %-20s %8.3fms", p.Name, observ.DurationToMillis(p.Dur))
		if p.Note != "" {
			fmt.Fprintf(&sb, "  (%s)", p.Note)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-20s %8.3fms\n", "total", observ.DurationToMillis(s.Duration))
	return sb.String()
}
