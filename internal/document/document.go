// Package document ties the edit ledger, the reparse engine and the published
// tree of one open file together, and keeps a store of open documents.
package document

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"fortio.org/safecast"

	"perlsense/internal/ast"
	"perlsense/internal/cancel"
	"perlsense/internal/diag"
	"perlsense/internal/edits"
	"perlsense/internal/logging"
	"perlsense/internal/reparse"
	"perlsense/internal/source"
)

// ErrClosed is returned for operations on a document removed from its store.
var ErrClosed = errors.New("document closed")

// Document is one open file. Edits may be recorded from any goroutine;
// reparse cycles are serialized. Readers get the published tree without
// taking the lock.
type Document struct {
	uri string
	id  source.FileID

	mu     sync.Mutex // один цикл за раз
	ledger *edits.Ledger
	engine *reparse.Engine

	tree    atomic.Pointer[ast.Tree]
	stats   atomic.Pointer[reparse.Stats]
	version atomic.Int32
	closed  atomic.Bool
}

// Open parses text in full and publishes the first tree.
func Open(ctx context.Context, uri string, id source.FileID, text []byte, opts reparse.Options) (*Document, error) {
	d := &Document{
		uri:    uri,
		id:     id,
		ledger: edits.NewLedger(text),
		engine: reparse.New(opts),
	}
	stats, err := d.engine.Reparse(ctx, reparse.Request{
		Text:   text,
		FileID: id,
		Path:   uri,
		Commit: d.publish,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	d.stats.Store(&stats)
	return d, nil
}

func (d *Document) publish(t *ast.Tree) { d.tree.Store(t) }

func (d *Document) URI() string { return d.uri }

func (d *Document) FileID() source.FileID { return d.id }

// Version is the client's document version, if it sends one.
func (d *Document) Version() int32 { return d.version.Load() }

func (d *Document) SetVersion(v int32) { d.version.Store(v) }

// ApplyEdit records e against the current text (published tree plus every
// pending edit). The tree is not touched until the next Reparse.
func (d *Document) ApplyEdit(e edits.Edit) (uint64, error) {
	if d.closed.Load() {
		return 0, ErrClosed
	}
	return d.ledger.Record(e)
}

// ApplyEdits records edits in order and stops at the first invalid one.
func (d *Document) ApplyEdits(es ...edits.Edit) error {
	for i, e := range es {
		if _, err := d.ApplyEdit(e); err != nil {
			return fmt.Errorf("edit %d (%s): %w", i, e, err)
		}
	}
	return nil
}

// ReplaceText records a whole-text replacement.
func (d *Document) ReplaceText(text string) error {
	n, err := safecast.Conv[uint32](len(d.ledger.Text()))
	if err != nil {
		return err
	}
	e, err := edits.Replace(0, n, text)
	if err != nil {
		return err
	}
	_, err = d.ApplyEdit(e)
	return err
}

// Reparse folds the pending edits and runs one cycle. A cancelled cycle
// leaves the published tree and the pending edits as they were; the next
// cycle folds them again.
func (d *Document) Reparse(ctx context.Context, sig *cancel.Signal) (reparse.Stats, error) {
	if d.closed.Load() {
		return reparse.Stats{}, ErrClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ledger.Pending() == 0 {
		return d.LastStats(), nil
	}
	mark := d.ledger.Mark()
	set, text, err := d.ledger.Fold(mark)
	if err != nil {
		return reparse.Stats{}, err
	}
	stats, err := d.engine.Reparse(ctx, reparse.Request{
		Prev:   d.tree.Load(),
		Edits:  set,
		Text:   text,
		FileID: d.id,
		Path:   d.uri,
		Signal: sig,
		Mark:   mark,
		Commit: d.publish,
	})
	if err != nil {
		return stats, err
	}
	if err := d.ledger.Commit(mark); err != nil {
		return stats, err
	}
	d.stats.Store(&stats)
	logging.FromContext(ctx).Debug("reparsed",
		logging.FieldURI, d.uri, logging.FieldCycle, stats.Cycle, logging.FieldEdits, stats.Edits,
		"reused", stats.NodesReused, "rederived", stats.NodesRederived, logging.FieldDur, stats.Duration)
	return stats, nil
}

// CurrentTree is the last published tree; never nil after Open.
func (d *Document) CurrentTree() *ast.Tree { return d.tree.Load() }

// Tracker maps between byte offsets and line/UTF-16 positions of the
// published tree's text.
func (d *Document) Tracker() *source.Tracker {
	return d.CurrentTree().File.Lines
}

// LastStats are the stats of the last completed cycle.
func (d *Document) LastStats() reparse.Stats {
	if s := d.stats.Load(); s != nil {
		return *s
	}
	return reparse.Stats{}
}

// Text is the text with every recorded edit, parsed or not.
func (d *Document) Text() []byte { return d.ledger.Text() }

// Pending is the number of edits the published tree does not reflect yet.
func (d *Document) Pending() int { return d.ledger.Pending() }

func (d *Document) Diagnostics() []diag.Diagnostic {
	return d.CurrentTree().Diagnostics
}

// Checkpoints exposes the engine's history for inspection by tests and the CLI.
func (d *Document) Checkpoints() int { return d.engine.Checkpoints().Len() }

func (d *Document) close() { d.closed.Store(true) }
