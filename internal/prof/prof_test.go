package prof

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSessionWritesFiles(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		CPU:   filepath.Join(dir, "cpu.out"),
		Mem:   filepath.Join(dir, "mem.out"),
		Trace: filepath.Join(dir, "trace.out"),
	}
	if !opts.Enabled() {
		t.Fatal("options should be enabled")
	}
	s, err := Start(opts)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	sum := 0
	for i := range 100000 {
		sum += i
	}
	_ = sum
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	for _, p := range []string{opts.CPU, opts.Mem, opts.Trace} {
		fi, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if fi.Size() == 0 {
			t.Errorf("%s is empty", p)
		}
	}
}

func TestStartBadPath(t *testing.T) {
	dir := t.TempDir()
	_, err := Start(Options{CPU: filepath.Join(dir, "missing", "cpu.out")})
	if err == nil {
		t.Fatal("expected error for unwritable path")
	}
	// the profiler must be free again
	s, err := Start(Options{CPU: filepath.Join(dir, "cpu.out")})
	if err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestNilSessionStop(t *testing.T) {
	var s *Session
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if (Options{}).Enabled() {
		t.Fatal("empty options should be disabled")
	}
}
