// Package reparse rebuilds the tree of a document after edits, re-deriving
// only the statements the edits touch and reusing the rest of the previous
// tree. A cycle runs five named steps; cancellation observed in any of them
// leaves the published tree untouched.
package reparse

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"perlsense/internal/ast"
	"perlsense/internal/cancel"
	"perlsense/internal/checkpoint"
	"perlsense/internal/edits"
	"perlsense/internal/lexer"
	"perlsense/internal/logging"
	"perlsense/internal/observ"
	"perlsense/internal/parser"
	"perlsense/internal/source"
	"perlsense/internal/token"
	"perlsense/internal/trace"
)

// ErrTextMismatch means the edited text does not have the length the edit
// set promises for the previous tree's text.
var ErrTextMismatch = errors.New("edited text does not match the edit set")

const (
	DefaultMaxRegionStatements = 64
	DefaultMaxWidenings        = 2
)

type Options struct {
	// MaxRegionStatements caps the sibling statements one region may span
	// before the cycle falls back to a full parse.
	MaxRegionStatements int
	// MaxWidenings is how many times a region grows by one sibling on each
	// side before it is lifted to the enclosing container.
	MaxWidenings    int
	MaxHeredocDepth int
	History         int // checkpoint history, 0 = checkpoint.DefaultHistory
	Policy          cancel.Policy
	// OnStep runs at the start of every step, before the signal is polled.
	OnStep func(Step)
}

func (o Options) normalize() Options {
	if o.MaxRegionStatements <= 0 {
		o.MaxRegionStatements = DefaultMaxRegionStatements
	}
	if o.MaxWidenings < 0 {
		o.MaxWidenings = 0
	} else if o.MaxWidenings == 0 {
		o.MaxWidenings = DefaultMaxWidenings
	}
	o.Policy = o.Policy.Normalize()
	return o
}

// Request is one cycle's input.
type Request struct {
	Prev   *ast.Tree     // nil forces a full parse
	Edits  edits.EditSet // Prev's text -> Text
	Text   []byte
	FileID source.FileID
	Path   string
	Signal *cancel.Signal // nil: cancellation only through ctx
	Mark   uint64         // ledger mark folded into Edits
	// Commit publishes the new tree. It runs at most once, at the end of the
	// commit step; after it returns the cycle can no longer be cancelled.
	Commit func(*ast.Tree)
}

// Engine runs reparse cycles for one document. Cycles must not overlap; the
// document serializes them.
type Engine struct {
	opts        Options
	checkpoints *checkpoint.Manager
	cycles      atomic.Uint64
}

func New(opts Options) *Engine {
	opts = opts.normalize()
	return &Engine{opts: opts, checkpoints: checkpoint.NewManager(opts.History)}
}

func (e *Engine) Options() Options { return e.opts }

// Checkpoints exposes the history for inspection.
func (e *Engine) Checkpoints() *checkpoint.Manager { return e.checkpoints }

// Reparse runs one cycle. On success the new tree has been handed to
// req.Commit. A cancelled cycle returns cancel.ErrCancelled (or the deadline
// flavour) with Stats.Cancelled set; req.Commit is not called.
func (e *Engine) Reparse(ctx context.Context, req Request) (Stats, error) {
	sig := req.Signal
	if sig == nil && ctx.Done() != nil {
		var stop func() bool
		sig, stop = cancel.FromContext(ctx, "reparse")
		defer stop()
	}
	c := &cycle{
		e:     e,
		req:   req,
		sig:   sig,
		timer: observ.NewTimer(),
		log:   logging.FromContext(ctx),
	}
	c.stats.Cycle = e.cycles.Add(1)
	c.stats.Edits = req.Edits.Len()
	c.span = trace.Begin(trace.FromContext(ctx), trace.ScopeCycle, "cycle", trace.CurrentSpan(ctx)).
		WithExtra("cycle", strconv.FormatUint(c.stats.Cycle, 10))

	started := time.Now()
	err := c.exec()
	c.stats.Duration = time.Since(started)
	c.stats.Steps = c.timer.Phases()

	if err != nil {
		if errors.Is(err, cancel.ErrCancelled) {
			c.abort(err)
		}
		c.span.End(err.Error())
		return c.stats, err
	}
	if c.pushed {
		e.checkpoints.Discard(c.stats.Cycle)
		c.pushed = false
	}
	c.span.WithExtra("reused", strconv.Itoa(c.stats.NodesReused)).
		WithExtra("rederived", strconv.Itoa(c.stats.NodesRederived))
	c.span.End(string(c.stats.Reason))
	return c.stats, nil
}

// cycle holds the state that flows between steps.
type cycle struct {
	e     *Engine
	req   Request
	sig   *cancel.Signal
	stats Stats
	timer *observ.Timer
	span  *trace.Span
	log   *log.Logger

	file      *source.File
	sel       *selector
	reg       region
	start     uint32 // region in old coordinates
	stop      uint32
	unchanged bool
	frag      *parser.Fragment
	tree      *ast.Tree
	pushed    bool
}

func (c *cycle) exec() error {
	if err := c.run(StepAffected, c.affected); err != nil {
		return err
	}
	if err := c.run(StepReuse, c.reuse); err != nil {
		return err
	}
	c.checkpoint()
	if err := c.run(StepRederive, c.rederive); err != nil {
		return err
	}
	if err := c.run(StepSplice, c.splice); err != nil {
		return err
	}
	return c.run(StepCommit, c.commit)
}

// run wraps one step: hook, trace span, timing and the cancellation poll.
func (c *cycle) run(step Step, fn func() error) error {
	if c.e.opts.OnStep != nil {
		c.e.opts.OnStep(step)
	}
	sp := c.span.Child(trace.ScopeStep, step.String())
	idx := c.timer.Begin(step.String())
	err := c.sig.Err()
	if err == nil {
		err = fn()
	}
	note := ""
	if err != nil {
		note = err.Error()
	}
	c.timer.End(idx, note)
	sp.End(note)
	return err
}

// abort discards the work in progress. The published tree was never
// replaced; the checkpoint pushed by this cycle is dropped.
func (c *cycle) abort(err error) {
	c.stats.Cancelled = true
	c.stats.DeadlineExceeded = cancel.IsDeadline(err)
	if c.pushed {
		c.e.checkpoints.Rollback()
	}
	name := "cancelled"
	if c.stats.DeadlineExceeded {
		name = "deadline_exceeded"
	}
	c.span.Point(name, c.lastStep(), nil)
	c.log.Debug("reparse cancelled", logging.FieldCycle, c.stats.Cycle, logging.FieldStep, c.lastStep(), logging.FieldError, err)
}

func (c *cycle) lastStep() string {
	if n := len(c.stats.Steps); n > 0 {
		return c.stats.Steps[n-1].Name
	}
	return ""
}

// Step 1: union of the edits, widened to whole statements of the innermost
// container that can be re-derived on its own.
func (c *cycle) affected() error {
	prev := c.req.Prev
	if prev == nil {
		c.file = source.NewFile(c.req.FileID, c.req.Path, c.req.Text, source.FileVirtual)
		c.stats.Reason = ReasonNoTree
		return nil
	}
	if want := int64(len(prev.Source())) + c.req.Edits.Delta(); want != int64(len(c.req.Text)) {
		return fmt.Errorf("%w: %d bytes, want %d", ErrTextMismatch, len(c.req.Text), want)
	}
	a, b, ok := c.req.Edits.Bounds()
	if !ok {
		c.unchanged = true
		c.file = prev.File
		return nil
	}
	c.file = prev.File.Revise(c.req.Text, c.req.Edits.Changes())
	c.sel = newSelector(prev)
	c.reg = c.sel.initial(a, b)
	return nil
}

// Step 2: everything outside the region is retained. A region spanning too
// many statements is not worth splicing.
func (c *cycle) reuse() error {
	if c.stats.Reason != ReasonNone || c.unchanged {
		return nil
	}
	if c.reg.count() > c.e.opts.MaxRegionStatements {
		c.stats.Reason = ReasonTooWide
		return nil
	}
	c.start, c.stop = c.sel.bounds(c.reg)
	return nil
}

func (c *cycle) checkpoint() {
	cursor := c.start
	if c.stats.Reason != ReasonNone {
		cursor = 0
	}
	lx := lexer.New(c.file, lexer.Options{
		Start:           cursor,
		Prev:            parser.SeedKind(c.file.Content, cursor),
		MaxHeredocDepth: c.e.opts.MaxHeredocDepth,
	})
	c.e.checkpoints.Push(checkpoint.Checkpoint{
		Tree:   c.req.Prev,
		Lexer:  lx.State(),
		Mark:   c.req.Mark,
		Cursor: cursor,
		Cycle:  c.stats.Cycle,
	})
	c.pushed = true
}

func (c *cycle) parserOptions() parser.Options {
	return parser.Options{
		MaxHeredocDepth: c.e.opts.MaxHeredocDepth,
		Cancel:          c.e.opts.Policy.Checker(c.sig, cancel.Stream),
	}
}

// Step 3: parse the region alone. It must end exactly where the retained
// right sibling (or the closer) now starts, with nothing pending. Otherwise
// widen by one sibling, then lift to the enclosing container, and finally
// parse the whole file.
func (c *cycle) rederive() error {
	switch {
	case c.unchanged:
		c.tree = c.req.Prev
		return nil
	case c.stats.Reason != ReasonNone:
		return c.full()
	}
	delta := c.req.Edits.Delta()
	widenings := 0
	for {
		if c.reg.count() > c.e.opts.MaxRegionStatements {
			c.stats.Reason = ReasonTooWide
			return c.full()
		}
		c.start, c.stop = c.sel.bounds(c.reg)
		if !c.sel.pendingAt(c.start) && !c.sel.crossing(c.reg, c.start, c.stop) {
			stop := shift(c.stop, delta)
			frag, err := parser.ParseRegion(c.file, c.parserOptions(), parser.Region{
				Container: c.reg.kind,
				Start:     c.start,
				Stop:      stop,
			})
			if err != nil {
				return err
			}
			if frag.Clean && c.resynced(frag, stop) {
				c.frag = frag
				return nil
			}
		}
		if widenings < c.e.opts.MaxWidenings && c.sel.widen(&c.reg) {
			widenings++
			c.stats.Widenings++
			continue
		}
		next, ok := c.sel.lift(c.reg)
		if !ok {
			c.stats.Reason = ReasonResync
			return c.full()
		}
		widenings = 0
		c.stats.Lifts++
		c.reg = next
	}
}

// resynced checks the boundary token against a fresh lexer when a retained
// sibling follows the region.
func (c *cycle) resynced(frag *parser.Fragment, stop uint32) bool {
	if c.reg.hi >= len(c.reg.sibs) {
		return true
	}
	fresh := lexer.New(c.file, lexer.Options{Start: stop, Prev: token.Semicolon}).Next()
	return boundaryMatches(frag.Boundary, fresh)
}

func (c *cycle) full() error {
	tree, err := parser.ParseFile(c.file, c.parserOptions())
	if err != nil {
		return err
	}
	c.tree = tree
	c.stats.Fallback = true
	c.stats.NodesRederived = tree.Len()
	c.stats.Container = ast.KindProgram
	c.stats.Region = tree.Span(tree.Root)
	c.span.Point("fallback", string(c.stats.Reason), map[string]string{
		"widenings": strconv.Itoa(c.stats.Widenings),
		"lifts":     strconv.Itoa(c.stats.Lifts),
	})
	c.log.Debug("reparse fell back to a full parse",
		logging.FieldCycle, c.stats.Cycle, logging.FieldReason, c.stats.Reason, logging.FieldPath, c.req.Path)
	return nil
}

// Step 4: build the new arena.
func (c *cycle) splice() error {
	switch {
	case c.unchanged:
		c.stats.NodesReused = c.tree.Len()
		c.stats.BytesReused = len(c.tree.Source())
		return nil
	case c.tree != nil:
		return nil // full parse
	}
	sp := &splicer{
		old:   c.req.Prev,
		file:  c.file,
		delta: c.req.Edits.Delta(),
		reg:   c.reg,
		frag:  c.frag,
		start: c.start,
		stop:  c.stop,
		chk:   c.e.opts.Policy.Checker(c.sig, len(c.reg.sibs)),
	}
	tree, err := sp.build()
	if err != nil {
		return err
	}
	c.tree = tree
	c.stats.NodesReused = sp.reused
	c.stats.BytesReused = sp.bytesReused
	c.stats.NodesRederived = sp.rederived
	c.stats.Container = c.reg.kind
	c.stats.Region = source.Span{File: c.file.ID, Start: c.start, End: shift(c.stop, sp.delta)}
	return nil
}

// Step 5: publish.
func (c *cycle) commit() error {
	if c.req.Commit != nil {
		c.req.Commit(c.tree)
	}
	return nil
}

// shift is only applied to offsets after every edit.
func shift(o uint32, d int64) uint32 {
	return uint32(int64(o) + d) // #nosec G115 -- смещение внутри нового текста
}
