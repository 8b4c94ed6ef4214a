package document

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"perlsense/internal/cancel"
	"perlsense/internal/edits"
	"perlsense/internal/logging"
	"perlsense/internal/reparse"
	"perlsense/internal/source"
	"perlsense/internal/trace"
)

// ErrNotOpen is returned for a URI the store does not hold.
var ErrNotOpen = errors.New("document not open")

type Options struct {
	Engine reparse.Options
	// Jobs bounds ReparseAll; 0 means one worker per document.
	Jobs int
	// Deadline is attached to every cycle the store starts; 0 disables it.
	Deadline time.Duration
}

// Store manages all open documents. Cycles of different documents run
// concurrently; a newer Reparse of a document cancels the one in flight.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]*Document
	nextID source.FileID

	opts     Options
	inflight *cancel.Registry
}

func NewStore(opts Options) *Store {
	return &Store{
		docs:     make(map[string]*Document),
		nextID:   1,
		opts:     opts,
		inflight: cancel.NewRegistry(),
	}
}

// Open parses text and stores the document, replacing an earlier one under
// the same URI.
func (s *Store) Open(ctx context.Context, uri string, text []byte) (*Document, error) {
	sp, ctx := trace.StartDoc(ctx, trace.ScopeDocument, "open", uri)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.mu.Unlock()

	doc, err := Open(ctx, uri, id, text, s.opts.Engine)
	if err != nil {
		sp.End(err.Error())
		return nil, err
	}
	s.mu.Lock()
	old := s.docs[uri]
	s.docs[uri] = doc
	s.mu.Unlock()
	if old != nil {
		old.close()
		s.inflight.Cancel(uri)
	}
	sp.End("")
	logging.FromContext(ctx).Info("document opened", logging.FieldURI, uri, "bytes", len(text),
		"diagnostics", len(doc.Diagnostics()))
	return doc, nil
}

// Close drops the document and cancels its cycle in flight.
func (s *Store) Close(ctx context.Context, uri string) bool {
	s.mu.Lock()
	doc, ok := s.docs[uri]
	delete(s.docs, uri)
	s.mu.Unlock()
	if !ok {
		return false
	}
	doc.close()
	s.inflight.Cancel(uri)
	logging.FromContext(ctx).Info("document closed", logging.FieldURI, uri)
	return true
}

func (s *Store) Get(uri string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

// URIs returns the open documents, sorted.
func (s *Store) URIs() []string {
	s.mu.RLock()
	uris := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	s.mu.RUnlock()
	slices.Sort(uris)
	return uris
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *Store) lookup(uri string) (*Document, error) {
	doc, ok := s.Get(uri)
	if !ok {
		return nil, fmt.Errorf("%s: %w", uri, ErrNotOpen)
	}
	return doc, nil
}

// Edit records edits for uri; they are folded by the next Reparse.
func (s *Store) Edit(uri string, es ...edits.Edit) error {
	doc, err := s.lookup(uri)
	if err != nil {
		return err
	}
	return doc.ApplyEdits(es...)
}

// Reparse runs one cycle of uri under a fresh signal registered for it.
func (s *Store) Reparse(ctx context.Context, uri string) (reparse.Stats, error) {
	doc, err := s.lookup(uri)
	if err != nil {
		return reparse.Stats{}, err
	}
	sig := cancel.NewSignal(uri)
	if s.opts.Deadline > 0 {
		sig.SetDeadline(time.Now().Add(s.opts.Deadline))
	}
	s.inflight.Register(uri, sig)
	defer s.inflight.Done(uri, sig)

	sp, ctx := trace.StartDoc(ctx, trace.ScopeDocument, "reparse", uri)
	stats, err := doc.Reparse(ctx, sig)
	switch {
	case err == nil:
		sp.End(string(stats.Reason))
	case errors.Is(err, cancel.ErrCancelled):
		sp.End(err.Error())
		logging.FromContext(ctx).Debug("reparse cancelled", logging.FieldURI, uri, logging.FieldError, err)
	default:
		sp.End(err.Error())
		logging.FromContext(ctx).Error("reparse failed", logging.FieldURI, uri, logging.FieldError, err)
	}
	return stats, err
}

// Cancel cancels the cycle in flight for uri, if any.
func (s *Store) Cancel(uri string) bool {
	return s.inflight.Cancel(uri)
}

// Inflight exposes the registry metrics.
func (s *Store) Inflight() *cancel.Metrics { return s.inflight.Metrics() }

// ReparseAll runs a cycle for every open document. Cancelled
// cycles are not errors; their edits stay pending. The first other error
// stops the remaining work.
func (s *Store) ReparseAll(ctx context.Context) (map[string]reparse.Stats, error) {
	uris := s.URIs()
	out := make(map[string]reparse.Stats, len(uris))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if s.opts.Jobs > 0 {
		g.SetLimit(s.opts.Jobs)
	}
	for _, uri := range uris {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			stats, err := s.Reparse(gctx, uri)
			switch {
			case errors.Is(err, ErrNotOpen), errors.Is(err, ErrClosed):
				return nil // закрыт, пока ждали очереди
			case errors.Is(err, cancel.ErrCancelled):
				return nil
			case err != nil:
				return err
			}
			mu.Lock()
			out[uri] = stats
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return out, err
}
