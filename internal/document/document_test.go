package document

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perlsense/internal/ast"
	"perlsense/internal/cancel"
	"perlsense/internal/edits"
	"perlsense/internal/parser"
	"perlsense/internal/reparse"
	"perlsense/internal/source"
	"perlsense/internal/testkit"
)

func mustEdit(t *testing.T, start, end uint32, text string) edits.Edit {
	t.Helper()
	e, err := edits.Replace(start, end, text)
	require.NoError(t, err)
	return e
}

func requireFullShape(t *testing.T, tree *ast.Tree) {
	t.Helper()
	require.NoError(t, testkit.CheckTree(tree))
	want, err := parser.ParseFile(source.NewFile(tree.File.ID, "x.pl", tree.Source(), source.FileVirtual), parser.Options{})
	require.NoError(t, err)
	require.NoError(t, testkit.SameShape(tree, want))
}

func TestDocument_OpenEditReparse(t *testing.T) {
	ctx := context.Background()
	doc, err := Open(ctx, "file:///a.pl", 1, []byte("my $x = 1;\nmy $y = 2;\n"), reparse.Options{})
	require.NoError(t, err)

	first := doc.CurrentTree()
	require.NotNil(t, first)
	assert.Equal(t, reparse.ReasonNoTree, doc.LastStats().Reason)

	_, err = doc.ApplyEdit(mustEdit(t, 8, 9, "10"))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Pending())
	assert.Same(t, first, doc.CurrentTree(), "edits must not touch the published tree")
	assert.Equal(t, "my $x = 10;\nmy $y = 2;\n", string(doc.Text()))

	stats, err := doc.Reparse(ctx, nil)
	require.NoError(t, err)
	assert.False(t, stats.Fallback)
	assert.GreaterOrEqual(t, stats.NodesReused, 1)
	assert.Equal(t, 0, doc.Pending())
	assert.Equal(t, stats, doc.LastStats())
	assert.Equal(t, "my $x = 10;\nmy $y = 2;\n", string(doc.CurrentTree().Source()))
	requireFullShape(t, doc.CurrentTree())

	pos := doc.Tracker().ByteToPosition(12)
	assert.Equal(t, uint32(1), pos.Line)
	assert.Equal(t, uint32(0), pos.Character)
}

func TestDocument_ReparseWithoutEdits(t *testing.T) {
	ctx := context.Background()
	doc, err := Open(ctx, "file:///a.pl", 1, []byte("print 1;\n"), reparse.Options{})
	require.NoError(t, err)
	before := doc.LastStats()
	stats, err := doc.Reparse(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, before.Cycle, stats.Cycle)
}

func TestDocument_CancelledCycleKeepsEdits(t *testing.T) {
	ctx := context.Background()
	var text []byte
	for i := range 200 {
		text = fmt.Appendf(text, "my $v%d = %d;\n", i, i)
	}
	var sig *cancel.Signal
	doc, err := Open(ctx, "file:///big.pl", 1, text, reparse.Options{
		OnStep: func(s reparse.Step) {
			if s == reparse.StepRederive && sig != nil {
				sig.Cancel()
			}
		},
	})
	require.NoError(t, err)
	sig = cancel.NewSignal("t")
	prev := doc.CurrentTree()
	checkpoints := doc.Checkpoints()

	require.NoError(t, doc.ReplaceText("my $only = 1;\n"))
	stats, err := doc.Reparse(ctx, sig)
	require.ErrorIs(t, err, cancel.ErrCancelled)
	assert.True(t, stats.Cancelled)
	assert.Same(t, prev, doc.CurrentTree())
	assert.Equal(t, 1, doc.Pending(), "a cancelled cycle keeps its edits")
	assert.Equal(t, checkpoints, doc.Checkpoints())

	// следующий цикл со свежим сигналом подхватывает ту же правку
	sig = nil
	stats, err = doc.Reparse(ctx, cancel.NewSignal("t2"))
	require.NoError(t, err)
	assert.Equal(t, "my $only = 1;\n", string(doc.CurrentTree().Source()))
	assert.Equal(t, 0, doc.Pending())
	assert.Equal(t, 1, stats.Edits)
}

func TestDocument_InvalidEdit(t *testing.T) {
	doc, err := Open(context.Background(), "file:///a.pl", 1, []byte("1;"), reparse.Options{})
	require.NoError(t, err)
	err = doc.ApplyEdits(mustEdit(t, 0, 1, "2"), mustEdit(t, 5, 9, "x"))
	require.ErrorIs(t, err, edits.ErrOutOfBounds)
	assert.Equal(t, 1, doc.Pending())
}

func TestDocument_ConcurrentEditsAndReads(t *testing.T) {
	ctx := context.Background()
	doc, err := Open(ctx, "file:///a.pl", 1, []byte("my $x = 1;\n"), reparse.Options{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 50 {
			// всегда вставка в начало: валидна при любом текущем тексте
			_, err := doc.ApplyEdit(mustEdit(t, 0, 0, "print 1;\n"))
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for range 50 {
			_, err := doc.Reparse(ctx, nil)
			assert.NoError(t, err)
			assert.NotNil(t, doc.CurrentTree())
		}
	}()
	wg.Wait()

	_, err = doc.Reparse(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Pending())
	assert.Equal(t, string(doc.Text()), string(doc.CurrentTree().Source()))
	assert.Len(t, doc.CurrentTree().Children(doc.CurrentTree().Root), 51)
	requireFullShape(t, doc.CurrentTree())
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore(Options{})
	_, err := s.Open(ctx, "file:///b.pl", []byte("print 2;\n"))
	require.NoError(t, err)
	a, err := s.Open(ctx, "file:///a.pl", []byte("print 1;\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"file:///a.pl", "file:///b.pl"}, s.URIs())
	assert.NotEqual(t, a.FileID(), func() source.FileID { d, _ := s.Get("file:///b.pl"); return d.FileID() }())

	require.NoError(t, s.Edit("file:///a.pl", mustEdit(t, 6, 7, "42")))
	stats, err := s.Reparse(ctx, "file:///a.pl")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Edits)
	assert.Equal(t, "print 42;\n", string(a.CurrentTree().Source()))

	assert.True(t, s.Close(ctx, "file:///a.pl"))
	assert.False(t, s.Close(ctx, "file:///a.pl"))
	_, err = s.Reparse(ctx, "file:///a.pl")
	require.ErrorIs(t, err, ErrNotOpen)
	require.ErrorIs(t, s.Edit("file:///a.pl"), ErrNotOpen)
	_, err = a.ApplyEdit(mustEdit(t, 0, 0, "x"))
	require.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.Cancel("file:///b.pl"), "nothing in flight")
}

func TestStore_Deadline(t *testing.T) {
	ctx := context.Background()
	s := NewStore(Options{Deadline: 1})
	_, err := s.Open(ctx, "file:///a.pl", []byte("print 1;\n"))
	require.NoError(t, err)
	require.NoError(t, s.Edit("file:///a.pl", mustEdit(t, 6, 7, "2")))
	_, err = s.Reparse(ctx, "file:///a.pl")
	require.True(t, errors.Is(err, cancel.ErrDeadlineExceeded), "err = %v", err)
	doc, _ := s.Get("file:///a.pl")
	assert.Equal(t, 1, doc.Pending())
}

func TestStore_ReparseAll(t *testing.T) {
	ctx := context.Background()
	s := NewStore(Options{Jobs: 2})
	for i := range 6 {
		uri := fmt.Sprintf("file:///%d.pl", i)
		_, err := s.Open(ctx, uri, []byte("my $a = 1;\nmy $b = 2;\n"))
		require.NoError(t, err)
		require.NoError(t, s.Edit(uri, mustEdit(t, 8, 9, "3")))
	}
	out, err := s.ReparseAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 6)
	for uri, st := range out {
		assert.False(t, st.Fallback, uri)
		doc, ok := s.Get(uri)
		require.True(t, ok)
		assert.Equal(t, "my $a = 3;\nmy $b = 2;\n", string(doc.CurrentTree().Source()))
	}
	assert.EqualValues(t, 6, s.Inflight().Completed.Load())
}
