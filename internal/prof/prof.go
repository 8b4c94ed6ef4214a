// Package prof wires runtime/pprof and runtime/trace to the CLI flags.
package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Options names output files; empty means disabled.
type Options struct {
	CPU   string
	Mem   string
	Trace string
}

func (o Options) Enabled() bool {
	return o.CPU != "" || o.Mem != "" || o.Trace != ""
}

// Session is an active set of profilers. Stop is idempotent.
type Session struct {
	opts      Options
	cpuFile   *os.File
	traceFile *os.File
	stopped   bool
}

// Start enables the requested profilers. On error everything already started
// is stopped again.
func Start(opts Options) (*Session, error) {
	s := &Session{opts: opts}
	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		s.cpuFile = f
	}
	if opts.Trace != "" {
		f, err := os.Create(opts.Trace)
		if err == nil {
			if err = trace.Start(f); err != nil {
				_ = f.Close()
			}
		}
		if err != nil {
			s.opts.Mem = ""
			_ = s.Stop()
			return nil, fmt.Errorf("runtime trace: %w", err)
		}
		s.traceFile = f
	}
	return s, nil
}

// Stop ends the trace and the CPU profile, then writes the heap profile.
func (s *Session) Stop() error {
	if s == nil || s.stopped {
		return nil
	}
	s.stopped = true
	var errs []error
	if s.traceFile != nil {
		trace.Stop()
		errs = append(errs, s.traceFile.Close())
		s.traceFile = nil
	}
	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		errs = append(errs, s.cpuFile.Close())
		s.cpuFile = nil
	}
	if s.opts.Mem != "" {
		errs = append(errs, writeMem(s.opts.Mem))
	}
	return errors.Join(errs...)
}

func writeMem(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("heap profile: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}
