package trace

import (
	"fmt"
	"strings"
	"time"
)

// Tracer receives events. Emit must be safe for concurrent use: documents
// reparse on their own goroutines.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
	Enabled() bool
}

type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint     // fallback, cancelled, deadline_exceeded
	KindHeartbeat // liveness of a long-running server or replay
)

var kindNames = [...]string{"unknown", "begin", "end", "point", "heartbeat"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[0]
}

// Scope orders events from coarse to fine.
type Scope uint8

const (
	ScopeStore    Scope = iota + 1 // open, close, reparse of several documents
	ScopeDocument                  // one document
	ScopeCycle                     // one reparse cycle
	ScopeStep                      // one step of a cycle
)

var scopeNames = [...]string{"unknown", "store", "document", "cycle", "step"}

func (s Scope) String() string {
	if int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return scopeNames[0]
}

// Event is one trace record. Doc is the URI of the document the span
// belongs to; children inherit it.
type Event struct {
	Time     time.Time
	Seq      uint64 // stamped by the sink
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	Doc      string
	Name     string // "cycle", "splice", "fallback"
	Detail   string
	Extra    map[string]string
}

// Level controls verbosity. Points pass every level but off; heartbeats
// pass whenever tracing is on.
type Level uint8

const (
	LevelOff Level = iota
	LevelError
	LevelDocument
	LevelCycle
	LevelStep
)

var levelNames = [...]string{"off", "error", "document", "cycle", "step"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel accepts the level names plus "debug" for step.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(s)
	switch s {
	case "":
		return LevelOff, nil
	case "debug":
		return LevelStep, nil
	}
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil // #nosec G115 -- len(levelNames) < 256
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: %s)", s, strings.Join(levelNames[:], "|"))
}

// ShouldEmit reports whether an event of kind at scope passes this level.
func (l Level) ShouldEmit(scope Scope, kind Kind) bool {
	switch {
	case l == LevelOff:
		return false
	case kind == KindPoint || kind == KindHeartbeat:
		return true
	case l == LevelError:
		return false
	case l == LevelStep:
		return true
	default:
		// LevelDocument..LevelCycle line up with ScopeDocument..ScopeCycle
		return scope <= Scope(l-LevelDocument)+ScopeDocument
	}
}

type nopTracer struct{}

func (nopTracer) Emit(*Event)   {}
func (nopTracer) Flush() error  { return nil }
func (nopTracer) Close() error  { return nil }
func (nopTracer) Level() Level  { return LevelOff }
func (nopTracer) Enabled() bool { return false }

// Nop is used when tracing is off.
var Nop Tracer = nopTracer{}
