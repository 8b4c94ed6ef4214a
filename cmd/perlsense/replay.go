package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"perlsense/internal/cancel"
	"perlsense/internal/document"
	"perlsense/internal/edits"
	"perlsense/internal/logging"
	"perlsense/internal/lspedit"
	"perlsense/internal/parser"
	"perlsense/internal/prof"
	"perlsense/internal/reparse"
	"perlsense/internal/testkit"
	"perlsense/internal/trace"
	"perlsense/internal/treefmt"
)

var replayCmd = &cobra.Command{
	Use:   "replay [flags] file.pl edits.json",
	Short: "Replay an edit script through the incremental reparser",
	Long: `Replay opens the file as a document, applies each cycle of the edit
script, reparses after every cycle and prints per-cycle statistics.

The script is a JSON array of cycles (or an object with a "cycles" array).
A cycle holds byte edits, LSP content changes, or both:

  [{"edits": [{"start": 8, "end": 9, "text": "10"}]},
   {"changes": [{"range": {"start": {"line": 1, "character": 0},
                           "end": {"line": 1, "character": 2}}, "text": "our"}]},
   {"edits": [{"start": 0, "end": 0, "text": "# x\n"}], "cancel": true}]

A cycle marked "cancel" is cancelled before it starts; its edits stay
pending and are folded into the next cycle.`,
	Args: cobra.ExactArgs(2),
	RunE: runReplay,
}

func init() {
	f := replayCmd.Flags()
	f.Duration("deadline", 0, "per-cycle deadline (0: config cancel.default_deadline)")
	f.Bool("timings", false, "print per-step timings of every cycle")
	f.Bool("verify", false, "check every published tree against a full parse")
	f.String("dump", "", "write the final tree to stdout (sexp|json|msgpack)")
	f.String("cpuprofile", "", "write a CPU profile to this file")
	f.String("memprofile", "", "write a heap profile to this file")
}

type scriptEdit struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
	Text  string `json:"text"`
}

type scriptCycle struct {
	Edits   []scriptEdit                              `json:"edits"`
	Changes []protocol.TextDocumentContentChangeEvent `json:"changes"`
	Cancel  bool                                      `json:"cancel"`
}

type script struct {
	Cycles []scriptCycle `json:"cycles"`
}

// readScript accepts both the bare array and the {"cycles": [...]} form.
func readScript(r io.Reader) ([]scriptCycle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var cycles []scriptCycle
		if err := json.Unmarshal(data, &cycles); err != nil {
			return nil, fmt.Errorf("decode edit script: %w", err)
		}
		return cycles, nil
	}
	var s script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode edit script: %w", err)
	}
	return s.Cycles, nil
}

type replayOptions struct {
	deadline time.Duration
	timings  bool
	verify   bool
	dump     string
}

func runReplay(cmd *cobra.Command, args []string) error {
	e := envFrom(cmd)
	flags := cmd.Flags()
	var opts replayOptions
	var err error
	if opts.deadline, err = flags.GetDuration("deadline"); err != nil {
		return fmt.Errorf("failed to get deadline flag: %w", err)
	}
	if opts.deadline <= 0 {
		opts.deadline = e.cfg.Cancel.DefaultDeadline.Duration
	}
	if opts.timings, err = flags.GetBool("timings"); err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	if opts.verify, err = flags.GetBool("verify"); err != nil {
		return fmt.Errorf("failed to get verify flag: %w", err)
	}
	if opts.dump, err = flags.GetString("dump"); err != nil {
		return fmt.Errorf("failed to get dump flag: %w", err)
	}
	cpu, _ := flags.GetString("cpuprofile")
	mem, _ := flags.GetString("memprofile")

	// #nosec G304 -- path is provided by the user
	text, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	// #nosec G304 -- path is provided by the user
	sf, err := os.Open(args[1])
	if err != nil {
		return fmt.Errorf("failed to open edit script: %w", err)
	}
	cycles, err := readScript(sf)
	_ = sf.Close()
	if err != nil {
		return err
	}

	session, err := prof.Start(prof.Options{CPU: cpu, Mem: mem})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Stop(); err != nil {
			logging.FromContext(cmd.Context()).Warn("profile", logging.FieldError, err)
		}
	}()

	r, err := newReplayer(cmd.Context(), args[0], text, e, opts)
	if err != nil {
		return err
	}
	hb := trace.StartHeartbeat(e.tracer, e.cfg.Trace.Heartbeat.Duration, storeProbe(r.store))
	stats, err := r.run(cmd.Context(), cycles, cmd.ErrOrStderr())
	hb.Stop()
	out := cmd.OutOrStdout()
	if len(stats) > 0 {
		fmt.Fprintln(out, treefmt.StatsTable(stats, e.styles, termWidth()))
	}
	if err != nil {
		dumpRing(cmd.ErrOrStderr(), e.tracer)
		return err
	}
	return r.finish(cmd, out)
}

// dumpRing writes the events kept in memory, if the tracer keeps any.
func dumpRing(w io.Writer, t trace.Tracer) {
	ring := trace.RingOf(t)
	if ring == nil {
		return
	}
	fmt.Fprintln(w, "# trace ring")
	_ = ring.Dump(w, trace.FormatText)
}

type replayer struct {
	path  string
	uri   string
	store *document.Store
	doc   *document.Document
	env   *env
	opts  replayOptions
}

func newReplayer(ctx context.Context, path string, text []byte, e *env, opts replayOptions) (*replayer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	r := &replayer{
		path: path,
		uri:  "file://" + filepath.ToSlash(abs),
		env:  e,
		opts: opts,
		store: document.NewStore(document.Options{
			Engine:   e.cfg.EngineOptions(),
			Jobs:     e.cfg.Engine.Jobs,
			Deadline: opts.deadline,
		}),
	}
	r.doc, err = r.store.Open(ctx, r.uri, text)
	if err != nil {
		return nil, err
	}
	if opts.verify {
		if err := r.verify(); err != nil {
			return nil, fmt.Errorf("initial parse: %w", err)
		}
	}
	return r, nil
}

// run replays the cycles in order. Interrupting ctx cancels the cycle in
// flight and stops the replay.
func (r *replayer) run(ctx context.Context, cycles []scriptCycle, errOut io.Writer) ([]reparse.Stats, error) {
	stopBridge := context.AfterFunc(ctx, func() { r.store.Cancel(r.uri) })
	defer stopBridge()

	log := logging.FromContext(ctx)
	all := make([]reparse.Stats, 0, len(cycles))
	for i, c := range cycles {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		if err := r.apply(c); err != nil {
			return all, fmt.Errorf("cycle %d: %w", i+1, err)
		}
		stats, err := r.reparse(ctx, c.Cancel)
		switch {
		case errors.Is(err, cancel.ErrCancelled):
			log.Info("cycle cancelled", logging.FieldCycle, i+1, logging.FieldError, err,
				"pending", r.doc.Pending())
		case err != nil:
			return all, fmt.Errorf("cycle %d: %w", i+1, err)
		}
		all = append(all, stats)
		if r.opts.timings && !stats.Cancelled {
			fmt.Fprintf(errOut, "cycle %d\n%s", i+1, treefmt.Timings(stats))
		}
		if r.opts.verify && err == nil {
			if verr := r.verify(); verr != nil {
				return all, fmt.Errorf("cycle %d: %w", i+1, verr)
			}
		}
	}
	return all, nil
}

func (r *replayer) apply(c scriptCycle) error {
	if len(c.Edits) > 0 {
		es := make([]edits.Edit, 0, len(c.Edits))
		for _, se := range c.Edits {
			ed, err := edits.Replace(se.Start, se.End, se.Text)
			if err != nil {
				return err
			}
			es = append(es, ed)
		}
		if err := r.store.Edit(r.uri, es...); err != nil {
			return err
		}
	}
	if len(c.Changes) > 0 {
		changes := make([]any, len(c.Changes))
		for i, ch := range c.Changes {
			changes[i] = ch
		}
		if err := lspedit.Apply(r.doc, changes); err != nil {
			return err
		}
	}
	return nil
}

func (r *replayer) reparse(ctx context.Context, cancelled bool) (reparse.Stats, error) {
	if !cancelled {
		return r.store.Reparse(ctx, r.uri)
	}
	sig := cancel.NewSignal(r.uri)
	sig.Cancel()
	return r.doc.Reparse(ctx, sig)
}

// verify compares the published tree with a fresh full parse of its text.
func (r *replayer) verify() error {
	tree := r.doc.CurrentTree()
	if err := testkit.CheckTree(tree); err != nil {
		return fmt.Errorf("tree invariants: %w", err)
	}
	full, err := parser.ParseFile(tree.File, parser.Options{MaxHeredocDepth: r.env.cfg.Engine.MaxHeredocDepth})
	if err != nil {
		return err
	}
	if err := testkit.SameShape(tree, full); err != nil {
		return fmt.Errorf("incremental tree differs from a full parse: %w", err)
	}
	return nil
}

func (r *replayer) finish(cmd *cobra.Command, out io.Writer) error {
	tree := r.doc.CurrentTree()
	if r.opts.dump != "" {
		f, err := treefmt.ParseFormat(r.opts.dump)
		if err != nil {
			return err
		}
		last := r.doc.LastStats()
		if err := treefmt.WriteTree(out, f, r.path, tree, r.env.cfg.Engine.MaxDiagnostics, &last); err != nil {
			return err
		}
	}
	if len(tree.Diagnostics) > 0 {
		opts := treefmt.PrettyOpts{Max: r.env.cfg.Engine.MaxDiagnostics, Width: termWidth()}
		if err := treefmt.FormatDiagnostics(cmd.ErrOrStderr(), r.path, tree, r.env.styles, opts); err != nil {
			return err
		}
	}
	if p := r.doc.Pending(); p > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d edit(s) still pending after the last cycle\n", p)
	}
	return nil
}
