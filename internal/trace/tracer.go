package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// StorageMode picks the sinks New builds.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1
	ModeRing
	ModeBoth
)

var modeNames = map[StorageMode]string{ModeStream: "stream", ModeRing: "ring", ModeBoth: "both"}

func (m StorageMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

func ParseMode(s string) (StorageMode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return ModeRing, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
}

// DefaultRingSize is the ring capacity when Config.RingSize is zero.
const DefaultRingSize = 4096

type Config struct {
	Level      Level
	Mode       StorageMode
	Format     Format    // FormatAuto: по расширению OutputPath
	Output     io.Writer // wins over OutputPath
	OutputPath string    // file path, "stdout", "stderr" ("-" and "" mean stderr)
	RingSize   int
	// Heartbeat is the interval for StartHeartbeat; 0 disables it.
	Heartbeat time.Duration
}

// New builds the tracer cfg describes; LevelOff gives Nop.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	if cfg.Mode == ModeRing {
		return NewRingTracer(cfg.RingSize, cfg.Level), nil
	}
	if cfg.Mode != ModeStream && cfg.Mode != ModeBoth {
		return nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
	}

	format := cfg.Format
	if format == FormatAuto && (strings.HasSuffix(cfg.OutputPath, ".ndjson") || strings.HasSuffix(cfg.OutputPath, ".jsonl")) {
		format = FormatNDJSON
	}
	w, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}
	stream := NewStreamTracer(w, cfg.Level, format)
	if cfg.Mode == ModeStream {
		return stream, nil
	}
	return NewTee(stream, NewRingTracer(cfg.RingSize, cfg.Level)), nil
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	switch cfg.OutputPath {
	case "", "-", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, nil
}

func isStdStream(w io.Writer) bool {
	return w == os.Stdout || w == os.Stderr
}
