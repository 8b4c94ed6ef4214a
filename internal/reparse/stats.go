package reparse

import (
	"time"

	"perlsense/internal/ast"
	"perlsense/internal/observ"
	"perlsense/internal/source"
)

// Step names one state of a reparse cycle. Cancellation is observed at the
// start of every step.
type Step uint8

const (
	StepAffected  Step = iota + 1 // union of edits, widened to whole statements
	StepReuse                     // retained siblings, fallback decision
	StepRederive                  // region parse with resync, widen, lift
	StepSplice                    // new arena from retained and fresh subtrees
	StepCommit                    // publish
)

// Steps lists the steps in execution order.
var Steps = [...]Step{StepAffected, StepReuse, StepRederive, StepSplice, StepCommit}

func (s Step) String() string {
	switch s {
	case StepAffected:
		return "affected_range"
	case StepReuse:
		return "reuse_decision"
	case StepRederive:
		return "local_rederivation"
	case StepSplice:
		return "splice"
	case StepCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// Reason explains a full reparse. The empty reason means the cycle was local.
type Reason string

const (
	ReasonNone    Reason = ""
	ReasonNoTree  Reason = "no_previous_tree"
	ReasonTooWide Reason = "region_too_wide"
	ReasonResync  Reason = "resync_failed"
)

// Stats describes one cycle. A cancelled cycle still reports the steps it ran.
type Stats struct {
	Cycle          uint64
	Edits          int // folded edits consumed
	NodesReused    int // nodes copied from the previous tree
	BytesReused    int // bytes covered by the reused top-level subtrees
	NodesRederived int // nodes produced by the region (or full) parse
	Fallback       bool
	Reason         Reason
	Widenings      int
	Lifts          int
	Container      ast.Kind    // container of the final region
	Region         source.Span // re-derived range in the new text
	Duration       time.Duration
	Steps          []observ.Phase

	Cancelled        bool
	DeadlineExceeded bool
}

// StepDuration returns the time spent in step, zero if it did not run.
func (s Stats) StepDuration(step Step) time.Duration {
	name := step.String()
	for _, p := range s.Steps {
		if p.Name == name {
			return p.Dur
		}
	}
	return 0
}

// Metrics is the compact per-cycle summary exported to clients.
type Metrics struct {
	NodesReused   int     `json:"nodes_reused" msgpack:"nodes_reused"`
	NodesReparsed int     `json:"nodes_reparsed" msgpack:"nodes_reparsed"`
	LastParseTime float64 `json:"last_parse_time" msgpack:"last_parse_time"` // ms
	Fallback      bool    `json:"fallback" msgpack:"fallback"`
	Reason        string  `json:"reason,omitempty" msgpack:"reason,omitempty"`
}

func (s Stats) Metrics() Metrics {
	return Metrics{
		NodesReused:   s.NodesReused,
		NodesReparsed: s.NodesRederived,
		LastParseTime: observ.DurationToMillis(s.Duration),
		Fallback:      s.Fallback,
		Reason:        string(s.Reason),
	}
}
