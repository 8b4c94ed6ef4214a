// Package config loads perlsense.toml (or a YAML equivalent) and turns it
// into options for the engine, the cancellation policy, tracing and logging.
package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"perlsense/internal/cancel"
	"perlsense/internal/checkpoint"
	"perlsense/internal/logging"
	"perlsense/internal/reparse"
	"perlsense/internal/trace"
)

// FileName is the config file searched for upward from the working directory.
const FileName = "perlsense.toml"

type Config struct {
	Engine EngineConfig `toml:"engine" yaml:"engine"`
	Cancel CancelConfig `toml:"cancel" yaml:"cancel"`
	Trace  TraceConfig  `toml:"trace" yaml:"trace"`
	Log    LogConfig    `toml:"log" yaml:"log"`
}

type EngineConfig struct {
	MaxRegionStatements int `toml:"max_region_statements" yaml:"max_region_statements"`
	MaxWidenings        int `toml:"max_widenings" yaml:"max_widenings"`
	CheckpointHistory   int `toml:"checkpoint_history" yaml:"checkpoint_history"`
	MaxHeredocDepth     int `toml:"max_heredoc_depth" yaml:"max_heredoc_depth"`
	// MaxDiagnostics caps what is shown, not what is collected; 0 shows all.
	MaxDiagnostics int `toml:"max_diagnostics" yaml:"max_diagnostics"`
	Jobs           int `toml:"jobs" yaml:"jobs"`
}

type CancelConfig struct {
	SmallThreshold  int      `toml:"small_threshold" yaml:"small_threshold"`
	LargeThreshold  int      `toml:"large_threshold" yaml:"large_threshold"`
	BatchSize       int      `toml:"batch_size" yaml:"batch_size"`
	DefaultDeadline Duration `toml:"default_deadline" yaml:"default_deadline"`
}

type TraceConfig struct {
	Level    string `toml:"level" yaml:"level"`
	Mode     string `toml:"mode" yaml:"mode"` // stream | ring | both
	Format   string `toml:"format" yaml:"format"`
	Output   string `toml:"output" yaml:"output"`
	RingSize int    `toml:"ring_size" yaml:"ring_size"`
	// Heartbeat is the liveness interval of `lsp` and `replay`; empty disables it.
	Heartbeat Duration `toml:"heartbeat" yaml:"heartbeat"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Duration reads "250ms"-style strings from both TOML and YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

func Default() Config {
	p := cancel.DefaultPolicy()
	return Config{
		Engine: EngineConfig{
			MaxRegionStatements: reparse.DefaultMaxRegionStatements,
			MaxWidenings:        reparse.DefaultMaxWidenings,
			CheckpointHistory:   checkpoint.DefaultHistory,
			MaxHeredocDepth:     100,
		},
		Cancel: CancelConfig{
			SmallThreshold: p.SmallThreshold,
			LargeThreshold: p.LargeThreshold,
			BatchSize:      p.BatchSize,
		},
		Trace: TraceConfig{
			Level:    "off",
			Mode:     "stream",
			Format:   "auto",
			Output:   "stderr",
			RingSize: trace.DefaultRingSize,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	nonNeg := func(name string, v int) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, v))
		}
	}
	nonNeg("engine.max_region_statements", c.Engine.MaxRegionStatements)
	nonNeg("engine.max_widenings", c.Engine.MaxWidenings)
	nonNeg("engine.checkpoint_history", c.Engine.CheckpointHistory)
	nonNeg("engine.max_heredoc_depth", c.Engine.MaxHeredocDepth)
	nonNeg("engine.max_diagnostics", c.Engine.MaxDiagnostics)
	nonNeg("engine.jobs", c.Engine.Jobs)
	nonNeg("cancel.small_threshold", c.Cancel.SmallThreshold)
	nonNeg("cancel.large_threshold", c.Cancel.LargeThreshold)
	nonNeg("cancel.batch_size", c.Cancel.BatchSize)
	nonNeg("trace.ring_size", c.Trace.RingSize)
	if c.Trace.Heartbeat.Duration < 0 {
		errs = append(errs, fmt.Errorf("trace.heartbeat must not be negative"))
	}
	if c.Cancel.LargeThreshold > 0 && c.Cancel.SmallThreshold > c.Cancel.LargeThreshold {
		errs = append(errs, fmt.Errorf("cancel.small_threshold (%d) exceeds cancel.large_threshold (%d)",
			c.Cancel.SmallThreshold, c.Cancel.LargeThreshold))
	}
	if c.Cancel.DefaultDeadline.Duration < 0 {
		errs = append(errs, fmt.Errorf("cancel.default_deadline must not be negative"))
	}
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		errs = append(errs, fmt.Errorf("trace.level: %w", err))
	}
	if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
		errs = append(errs, fmt.Errorf("trace.mode: %w", err))
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		errs = append(errs, fmt.Errorf("trace.format: %w", err))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if !logging.ValidFormat(c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func (c Config) Policy() cancel.Policy {
	return cancel.Policy{
		SmallThreshold: c.Cancel.SmallThreshold,
		LargeThreshold: c.Cancel.LargeThreshold,
		BatchSize:      c.Cancel.BatchSize,
	}.Normalize()
}

func (c Config) EngineOptions() reparse.Options {
	return reparse.Options{
		MaxRegionStatements: c.Engine.MaxRegionStatements,
		MaxWidenings:        c.Engine.MaxWidenings,
		MaxHeredocDepth:     c.Engine.MaxHeredocDepth,
		History:             c.Engine.CheckpointHistory,
		Policy:              c.Policy(),
	}
}

// TracerConfig converts the section; the caller checked Validate.
func (c Config) TracerConfig() trace.Config {
	lvl, _ := trace.ParseLevel(c.Trace.Level)
	mode, _ := trace.ParseMode(c.Trace.Mode)
	format, _ := trace.ParseFormat(c.Trace.Format)
	return trace.Config{
		Level:      lvl,
		Mode:       mode,
		Format:     format,
		OutputPath: c.Trace.Output,
		RingSize:   c.Trace.RingSize,
		Heartbeat:  c.Trace.Heartbeat.Duration,
	}
}
