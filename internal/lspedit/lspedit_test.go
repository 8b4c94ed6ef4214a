package lspedit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"perlsense/internal/document"
	"perlsense/internal/edits"
	"perlsense/internal/reparse"
	"perlsense/internal/source"
)

func rng(l1, c1, l2, c2 uint32) *protocol.Range {
	return &protocol.Range{
		Start: protocol.Position{Line: l1, Character: c1},
		End:   protocol.Position{Line: l2, Character: c2},
	}
}

func TestConvert_Sequential(t *testing.T) {
	text := []byte("my $x = 1;\nmy $y = 2;\n")
	changes := []any{
		// "1" -> "10"
		protocol.TextDocumentContentChangeEvent{Range: rng(0, 8, 0, 9), Text: "10"},
		// строка 1 уже в координатах после первой правки
		&protocol.TextDocumentContentChangeEvent{Range: rng(1, 0, 1, 2), Text: "our"},
		// вставка новой последней строки
		protocol.TextDocumentContentChangeEvent{Range: rng(2, 0, 2, 0), Text: "print;\n"},
	}
	es, err := Convert(text, changes)
	require.NoError(t, err)
	require.Len(t, es, 3)
	assert.Equal(t, edits.Edit{Start: 8, OldEnd: 9, NewEnd: 10, Text: "10"}, es[0])
	assert.Equal(t, edits.Edit{Start: 12, OldEnd: 14, NewEnd: 15, Text: "our"}, es[1])
	assert.Equal(t, uint32(24), es[2].Start)

	_, got, err := edits.Fold(text, es)
	require.NoError(t, err)
	assert.Equal(t, "my $x = 10;\nour $y = 2;\nprint;\n", string(got))
}

func TestConvert_UTF16(t *testing.T) {
	// "é" — 2 байта, 1 UTF-16 единица; "😀" — 4 байта, 2 единицы
	text := []byte("my $s = \"é😀x\";\n")
	c := NewConverter(text)
	e, err := c.Convert(protocol.TextDocumentContentChangeEvent{Range: rng(0, 12, 0, 13), Text: "y"})
	require.NoError(t, err)
	assert.Equal(t, uint32(15), e.Start)
	assert.Equal(t, "my $s = \"é😀y\";\n", string(c.Text()))
}

func TestConvert_WholeAndErrors(t *testing.T) {
	c := NewConverter([]byte("abc\n"))
	e, err := c.Convert(protocol.TextDocumentContentChangeEventWhole{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, edits.Edit{Start: 0, OldEnd: 4, NewEnd: 1, Text: "x"}, e)

	e, err = c.Convert(protocol.TextDocumentContentChangeEvent{Text: "yz"})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), e.OldEnd)
	assert.Equal(t, "yz", string(c.Text()))

	_, err = c.Convert(protocol.TextDocumentContentChangeEvent{Range: rng(5, 0, 5, 0)})
	require.ErrorIs(t, err, ErrBadRange)
	_, err = c.Convert(protocol.TextDocumentContentChangeEvent{Range: rng(0, 2, 0, 1)})
	require.ErrorIs(t, err, ErrBadRange)
	_, err = c.Convert("nope")
	require.Error(t, err)
	assert.Equal(t, "yz", string(c.Text()), "failed changes leave the text alone")
}

func TestApply_Document(t *testing.T) {
	ctx := context.Background()
	doc, err := document.Open(ctx, "file:///a.pl", 1, []byte("my $x = 1;\nmy $y = 2;\n"), reparse.Options{})
	require.NoError(t, err)

	require.NoError(t, Apply(doc, []any{
		protocol.TextDocumentContentChangeEvent{Range: rng(0, 8, 0, 9), Text: "10"},
	}))
	require.Error(t, Apply(doc, []any{
		protocol.TextDocumentContentChangeEvent{Range: rng(0, 0, 0, 0), Text: "#"},
		protocol.TextDocumentContentChangeEvent{Range: rng(9, 0, 9, 0), Text: "#"},
	}))
	assert.Equal(t, 1, doc.Pending())

	stats, err := doc.Reparse(ctx, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.NodesReused, 1)

	tr := doc.Tracker()
	assert.Equal(t, protocol.Position{Line: 1, Character: 3}, Position(tr, 15))
	assert.Equal(t, uint32(15), Offset(tr, protocol.Position{Line: 1, Character: 3}))
	r := Range(tr, source.Span{Start: 12, End: 22})
	assert.Equal(t, protocol.Position{Line: 1, Character: 0}, r.Start)
	assert.Equal(t, protocol.Position{Line: 1, Character: 10}, r.End)
}

func TestDiagnostics(t *testing.T) {
	doc, err := document.Open(context.Background(), "file:///bad.pl", 1, []byte("my $x = (1;\nprint 2;\n"), reparse.Options{})
	require.NoError(t, err)
	tree := doc.CurrentTree()
	require.NotEmpty(t, tree.Diagnostics)

	out := Diagnostics("file:///bad.pl", tree, 0)
	require.Len(t, out, len(tree.Diagnostics))
	first := out[0]
	require.NotNil(t, first.Severity)
	assert.Equal(t, protocol.DiagnosticSeverityError, *first.Severity)
	assert.Equal(t, "perlsense", *first.Source)
	assert.Equal(t, tree.Diagnostics[0].Code.ID(), first.Code.Value)
	assert.Equal(t, uint32(0), first.Range.Start.Line)

	assert.Len(t, Diagnostics("file:///bad.pl", tree, 1), 1)
}
