package reparse

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
	"time"

	"perlsense/internal/ast"
	"perlsense/internal/cancel"
	"perlsense/internal/edits"
	"perlsense/internal/parser"
	"perlsense/internal/source"
	"perlsense/internal/testkit"
	"perlsense/internal/trace"
)

const fileID source.FileID = 1

func fullParse(t *testing.T, text []byte) *ast.Tree {
	t.Helper()
	tree, err := parser.ParseFile(source.NewFile(fileID, "test.pl", text, source.FileVirtual), parser.Options{})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	return tree
}

// step folds seq against prev's text and runs one cycle.
func step(t *testing.T, e *Engine, prev *ast.Tree, seq ...edits.Edit) (*ast.Tree, Stats) {
	t.Helper()
	set, text, err := edits.Fold(prev.Source(), seq)
	if err != nil {
		t.Fatalf("Fold: %v", err)
	}
	var got *ast.Tree
	stats, err := e.Reparse(context.Background(), Request{
		Prev:   prev,
		Edits:  set,
		Text:   text,
		FileID: fileID,
		Path:   "test.pl",
		Commit: func(tr *ast.Tree) { got = tr },
	})
	if err != nil {
		t.Fatalf("Reparse: %v", err)
	}
	if got == nil {
		t.Fatal("commit was not called")
	}
	return got, stats
}

// sameAsFull checks the incremental tree against a fresh parse of its text:
// both hold the tree invariants, have the same shape and the same
// diagnostics.
func sameAsFull(t *testing.T, got *ast.Tree) {
	t.Helper()
	if err := testkit.CheckTree(got); err != nil {
		t.Fatalf("invariants: %v\n%s", err, got.Sexp())
	}
	want := fullParse(t, got.Source())
	if err := testkit.CheckTree(want); err != nil {
		t.Fatalf("full parse invariants: %v\nsource:\n%q\n%s", err, want.Source(), want.Sexp())
	}
	if err := testkit.SameShape(got, want); err != nil {
		t.Fatalf("incremental tree differs from full parse: %v\nsource:\n%s\ngot:\n%s\nwant:\n%s",
			err, got.Source(), got.Sexp(), want.Sexp())
	}
	if g, w := diagKeys(got), diagKeys(want); !slices.Equal(g, w) {
		t.Fatalf("diagnostics differ from full parse\nsource:\n%q\ngot:  %v\nwant: %v", got.Source(), g, w)
	}
}

// diagKeys: код и span каждой диагностики, отсортированные
func diagKeys(tree *ast.Tree) []string {
	out := make([]string, 0, len(tree.Diagnostics))
	for _, d := range tree.Diagnostics {
		out = append(out, fmt.Sprintf("%s@%d..%d", d.Code.ID(), d.Primary.Start, d.Primary.End))
	}
	slices.Sort(out)
	return out
}

func replaceText(t *testing.T, text []byte, old, repl string) edits.Edit {
	t.Helper()
	i := strings.Index(string(text), old)
	if i < 0 {
		t.Fatalf("%q not found in %q", old, text)
	}
	e, err := edits.Replace(uint32(i), uint32(i+len(old)), repl) // #nosec G115 -- тестовые тексты малы
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestReparse_ReusesUntouchedStatement(t *testing.T) {
	prev := fullParse(t, []byte("my $x = 1;\nmy $y = 2;\n"))
	e := New(Options{})

	edit, err := edits.Replace(8, 9, "10")
	if err != nil {
		t.Fatal(err)
	}
	tree, stats := step(t, e, prev, edit)
	sameAsFull(t, tree)

	if stats.Fallback {
		t.Fatalf("unexpected fallback: %s", stats.Reason)
	}
	if stats.NodesReused < 1 {
		t.Fatalf("NodesReused = %d, want >= 1", stats.NodesReused)
	}
	if stats.NodesReused != 5 || stats.NodesRederived != 5 {
		t.Errorf("reused/rederived = %d/%d, want 5/5", stats.NodesReused, stats.NodesRederived)
	}
	if stats.Container != ast.KindProgram {
		t.Errorf("container = %v", stats.Container)
	}
	if stats.Region.Start != 0 || stats.Region.End != 12 {
		t.Errorf("region = %d..%d, want 0..12", stats.Region.Start, stats.Region.End)
	}

	kids := tree.Children(tree.Root)
	if len(kids) != 2 {
		t.Fatalf("top-level statements = %d\n%s", len(kids), tree.Sexp())
	}
	oldSecond := prev.Children(prev.Root)[1]
	if got, want := tree.Text(kids[1]), prev.Text(oldSecond); got != want {
		t.Errorf("reused statement text = %q, want %q", got, want)
	}
	if got := tree.Span(kids[1]).Start; got != prev.Span(oldSecond).Start+1 {
		t.Errorf("reused statement not shifted: starts at %d", got)
	}
	for _, name := range []string{"affected_range", "reuse_decision", "local_rederivation", "splice", "commit"} {
		found := false
		for _, p := range stats.Steps {
			if p.Name == name {
				found = true
			}
		}
		if !found {
			t.Errorf("step %s missing from stats", name)
		}
	}

	m := stats.Metrics()
	if m.NodesReused != 5 || m.NodesReparsed != 5 || m.Fallback || m.LastParseTime <= 0 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestReparse_NoPreviousTree(t *testing.T) {
	e := New(Options{})
	var got *ast.Tree
	stats, err := e.Reparse(context.Background(), Request{
		Text:   []byte("print 1;\n"),
		FileID: fileID,
		Commit: func(tr *ast.Tree) { got = tr },
	})
	if err != nil {
		t.Fatal(err)
	}
	if !stats.Fallback || stats.Reason != ReasonNoTree {
		t.Fatalf("stats = %+v", stats)
	}
	if got == nil || stats.NodesRederived != got.Len() || stats.NodesReused != 0 {
		t.Fatalf("full parse stats = %+v", stats)
	}
	sameAsFull(t, got)
}

func TestReparse_UnchangedKeepsTree(t *testing.T) {
	prev := fullParse(t, []byte("my $x = 1;\n"))
	e := New(Options{})
	tree, stats := step(t, e, prev)
	if tree != prev {
		t.Fatal("an empty edit set must publish the previous tree")
	}
	if stats.Fallback || stats.NodesReused != prev.Len() || stats.NodesRederived != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestReparse_TooWide(t *testing.T) {
	prev := fullParse(t, []byte("my $a = 1;\nmy $b = 2;\nmy $c = 3;\n"))
	e := New(Options{MaxRegionStatements: 1})
	// удаление задевает две инструкции
	del, err := edits.Delete(8, 19)
	if err != nil {
		t.Fatal(err)
	}
	tree, stats := step(t, e, prev, del)
	if !stats.Fallback || stats.Reason != ReasonTooWide {
		t.Fatalf("stats = %+v", stats)
	}
	sameAsFull(t, tree)
}

func TestReparse_TextMismatch(t *testing.T) {
	prev := fullParse(t, []byte("my $x = 1;\n"))
	set, _, err := edits.Fold(prev.Source(), []edits.Edit{replaceText(t, prev.Source(), "1", "22")})
	if err != nil {
		t.Fatal(err)
	}
	called := false
	_, err = New(Options{}).Reparse(context.Background(), Request{
		Prev:   prev,
		Edits:  set,
		Text:   prev.Source(),
		FileID: fileID,
		Commit: func(*ast.Tree) { called = true },
	})
	if !errors.Is(err, ErrTextMismatch) || called {
		t.Fatalf("err = %v, commit called = %v", err, called)
	}
}

func TestReparse_BlockContainer(t *testing.T) {
	src := "sub f {\n    my $a = 1;\n    my $b = 2;\n}\nprint 3;\n"
	prev := fullParse(t, []byte(src))
	e := New(Options{})
	tree, stats := step(t, e, prev, replaceText(t, prev.Source(), "2;", "20;"))
	sameAsFull(t, tree)
	if stats.Fallback || stats.Container != ast.KindBlock {
		t.Fatalf("stats = %+v", stats)
	}
	// sub f целиком, его первая инструкция и print 3 переиспользованы
	if stats.NodesReused <= stats.NodesRederived {
		t.Errorf("reused %d, rederived %d", stats.NodesReused, stats.NodesRederived)
	}
}

func TestReparse_CancelAtEveryStep(t *testing.T) {
	src := []byte("my $x = 1;\nmy $y = 2;\n")
	for _, at := range Steps {
		t.Run(at.String(), func(t *testing.T) {
			prev := fullParse(t, src)
			sig := cancel.NewSignal("test")
			var seen []Step
			e := New(Options{OnStep: func(s Step) {
				seen = append(seen, s)
				if s == at {
					sig.Cancel()
				}
			}})
			set, text, err := edits.Fold(src, []edits.Edit{replaceText(t, src, "1", "10")})
			if err != nil {
				t.Fatal(err)
			}
			before := e.Checkpoints().Len()
			called := false
			stats, err := e.Reparse(context.Background(), Request{
				Prev:   prev,
				Edits:  set,
				Text:   text,
				FileID: fileID,
				Signal: sig,
				Commit: func(*ast.Tree) { called = true },
			})
			if !errors.Is(err, cancel.ErrCancelled) {
				t.Fatalf("err = %v, want ErrCancelled", err)
			}
			if called {
				t.Fatal("commit ran in a cancelled cycle")
			}
			if !stats.Cancelled || stats.DeadlineExceeded {
				t.Fatalf("stats = %+v", stats)
			}
			if e.Checkpoints().Len() != before {
				t.Fatalf("checkpoint history %d -> %d", before, e.Checkpoints().Len())
			}
			if seen[len(seen)-1] != at {
				t.Fatalf("cycle went past %v: %v", at, seen)
			}
			// previous tree untouched
			sameAsFull(t, prev)
			if string(prev.Source()) != string(src) {
				t.Fatal("previous tree source modified")
			}
		})
	}
}

func TestReparse_Deadline(t *testing.T) {
	prev := fullParse(t, []byte("my $x = 1;\n"))
	set, text, err := edits.Fold(prev.Source(), []edits.Edit{replaceText(t, prev.Source(), "1", "2")})
	if err != nil {
		t.Fatal(err)
	}
	req := Request{Prev: prev, Edits: set, Text: text, FileID: fileID}

	req.Signal = cancel.WithDeadline("d", time.Now().Add(-time.Second))
	stats, err := New(Options{}).Reparse(context.Background(), req)
	if !errors.Is(err, cancel.ErrDeadlineExceeded) || !stats.DeadlineExceeded || !stats.Cancelled {
		t.Fatalf("signal deadline: err=%v stats=%+v", err, stats)
	}

	req.Signal = nil
	ctx, stop := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer stop()
	stats, err = New(Options{}).Reparse(ctx, req)
	if !errors.Is(err, cancel.ErrDeadlineExceeded) || !stats.DeadlineExceeded {
		t.Fatalf("context deadline: err=%v stats=%+v", err, stats)
	}
}

const program = `package Foo;
use strict;

sub greet {
    my ($name) = @_;
    print "hello $name\n";
    return 1;
}

my $x = 1;
if ($x) {
    greet("a");
} else {
    greet("b");
}
print <<EOT;
body $x
EOT
my @list = map { $_ * 2 } (1, 2, 3);
`

func TestReparse_MatchesFullParse(t *testing.T) {
	type change struct{ old, repl string }
	steps := []struct {
		name      string
		change    change
		container ast.Kind // 0: не проверяется
	}{
		{"sub body statement", change{"return 1;", "return 2;"}, ast.KindBlock},
		{"insert into sub", change{"return 2;", "return 2;\n    my $z = 3;"}, ast.KindBlock},
		{"if condition", change{"if ($x)", "if ($x > 1)"}, ast.KindProgram},
		{"heredoc body", change{"body $x", "body $y"}, ast.KindProgram},
		{"unbalanced brace", change{`greet("a");`, `greet("a"); {`}, 0},
		{"brace removed", change{`greet("a"); {`, `greet("a");`}, 0},
		{"map block", change{"$_ * 2", "$_ * 3"}, ast.KindBlock},
		{"append", change{"(1, 2, 3);\n", "(1, 2, 3);\nprint 1;\n"}, ast.KindProgram},
		{"drop package line", change{"package Foo;\n", ""}, ast.KindProgram},
		{"open string", change{`"hello $name\n"`, `"hello $name\n`}, 0},
		{"close string", change{`"hello $name\n`, `"hello $name\n"`}, 0},
		{"heredoc terminator", change{"\nEOT\n", "\nEOX\n"}, 0},
		{"heredoc terminator back", change{"\nEOX\n", "\nEOT\n"}, 0},
	}

	prev := fullParse(t, []byte(program))
	e := New(Options{})
	for _, st := range steps {
		tree, stats := step(t, e, prev, replaceText(t, prev.Source(), st.change.old, st.change.repl))
		t.Logf("%s: fallback=%v reason=%s reused=%d rederived=%d container=%v",
			st.name, stats.Fallback, stats.Reason, stats.NodesReused, stats.NodesRederived, stats.Container)
		sameAsFull(t, tree)
		if st.container != 0 && (stats.Fallback || stats.Container != st.container) {
			t.Errorf("%s: container %v fallback %v (%s)", st.name, stats.Container, stats.Fallback, stats.Reason)
		}
		prev = tree
	}
}

// Typing a statement character by character passes through many broken
// intermediate texts.
func TestReparse_TypingCharByChar(t *testing.T) {
	prev := fullParse(t, []byte(program))
	e := New(Options{})
	at := strings.Index(program, "my $x = 1;")
	for i, ch := range "my %h = (a => <<A, b => 2);\nx\nA\n" {
		ins, err := edits.Insert(uint32(at+i), string(ch)) // #nosec G115 -- тестовые тексты малы
		if err != nil {
			t.Fatal(err)
		}
		tree, _ := step(t, e, prev, ins)
		sameAsFull(t, tree)
		prev = tree
	}
}

var snippets = []string{
	"my $v = 1;\n",
	"print \"x\";\n",
	"if ($v) {\n",
	"}\n",
	"} else {\n",
	"sub s {\n",
	"print <<E;\n",
	"E\n",
	"foo(1, 2);\n",
	"my @a = (1,\n",
	"2);\n",
	"# comment\n",
	"for my $i (1..3) { print $i; }\n",
	"$h{key} = [1, 2];\n",
	"\n",
	"'unterminated\n",
	"s/a/b/g;\n",
}

func TestReparse_RandomLineEdits(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed*7919))
			var lines []string
			for range 12 {
				lines = append(lines, snippets[rng.IntN(len(snippets))])
			}
			prev := fullParse(t, []byte(strings.Join(lines, "")))
			e := New(Options{MaxRegionStatements: 8})
			for range 25 {
				text := prev.Source()
				starts := lineStarts(text)
				li := rng.IntN(len(starts))
				lineEnd := uint32(len(text)) // #nosec G115 -- тестовые тексты малы
				if li+1 < len(starts) {
					lineEnd = starts[li+1]
				}
				var ed edits.Edit
				var err error
				snip := snippets[rng.IntN(len(snippets))]
				switch rng.IntN(3) {
				case 0:
					ed, err = edits.Insert(starts[li], snip)
				case 1:
					ed, err = edits.Delete(starts[li], lineEnd)
				default:
					ed, err = edits.Replace(starts[li], lineEnd, snip)
				}
				if err != nil {
					t.Fatal(err)
				}
				tree, _ := step(t, e, prev, ed)
				sameAsFull(t, tree)
				prev = tree
			}
		})
	}
}

var pieces = []string{
	"{", "}", "(", ")", "\"", "'", "<<", "<<E;\n", "E\n",
	"\r\n", "\n", ";", " ", "x", "my $a = 1;", "if ($a) ",
}

// Several byte-level edits per cycle, each against the text left by the
// previous one.
func TestReparse_RandomByteEdits(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed*104729))
			prev := fullParse(t, []byte(program))
			e := New(Options{MaxRegionStatements: 8})
			for range 20 {
				text := prev.Source()
				var seq []edits.Edit
				for range 1 + rng.IntN(3) {
					ed := randomByteEdit(t, rng, len(text))
					seq = append(seq, ed)
					_, next, err := edits.Fold(text, []edits.Edit{ed})
					if err != nil {
						t.Fatal(err)
					}
					text = next
				}
				tree, _ := step(t, e, prev, seq...)
				sameAsFull(t, tree)
				prev = tree
			}
		})
	}
}

func randomByteEdit(t *testing.T, rng *rand.Rand, n int) edits.Edit {
	t.Helper()
	at := rng.IntN(n + 1)
	end := min(at+1+rng.IntN(4), n)
	piece := pieces[rng.IntN(len(pieces))]
	var ed edits.Edit
	var err error
	switch op := rng.IntN(4); {
	case op == 0 && end > at:
		ed, err = edits.Delete(uint32(at), uint32(end)) // #nosec G115 -- тестовые тексты малы
	case op == 1 && end > at:
		ed, err = edits.Replace(uint32(at), uint32(end), piece) // #nosec G115 -- тестовые тексты малы
	default:
		ed, err = edits.Insert(uint32(at), piece) // #nosec G115 -- тестовые тексты малы
	}
	if err != nil {
		t.Fatal(err)
	}
	return ed
}

// Правка перед незакрытым выражением в конце блока не должна множить
// диагностику на закрывающей скобке.
func TestReparse_BlockCloserDiagnosticNotDuplicated(t *testing.T) {
	prev := fullParse(t, []byte("sub f {\n  my $y = 1;\n  return $y +\n}\n"))
	want := len(prev.Diagnostics)
	if want == 0 {
		t.Fatalf("expected a diagnostic for the dangling operator")
	}
	e := New(Options{})
	for i := range 4 {
		at := strings.Index(string(prev.Source()), "return")
		ins, err := edits.Insert(uint32(at), " ") // #nosec G115 -- тестовые тексты малы
		if err != nil {
			t.Fatal(err)
		}
		tree, stats := step(t, e, prev, ins)
		if stats.Fallback || stats.Container != ast.KindBlock {
			t.Fatalf("edit %d: fallback %v container %v (%s)", i, stats.Fallback, stats.Container, stats.Reason)
		}
		if got := len(tree.Diagnostics); got != want {
			t.Fatalf("edit %d: %d diagnostics, want %d: %v", i, got, want, diagKeys(tree))
		}
		sameAsFull(t, tree)
		prev = tree
	}

	// исправленное выражение убирает диагностику
	fix := replaceText(t, prev.Source(), "$y +", "$y + 1;")
	tree, _ := step(t, e, prev, fix)
	sameAsFull(t, tree)
	if len(tree.Diagnostics) != 0 {
		t.Fatalf("stale diagnostics after fix: %v", diagKeys(tree))
	}
}

func TestReparse_CommitDiscardsCheckpoint(t *testing.T) {
	prev := fullParse(t, []byte(program))
	e := New(Options{})
	for i := range 3 {
		tree, _ := step(t, e, prev, replaceText(t, prev.Source(), "return 1;", "return 1;"+strings.Repeat(" ", i+1)))
		if n := e.Checkpoints().Len(); n != 0 {
			t.Fatalf("cycle %d left %d checkpoints", i+1, n)
		}
		prev = tree
	}
}

func lineStarts(text []byte) []uint32 {
	out := []uint32{0}
	for i, c := range text {
		if c == '\n' && i+1 < len(text) {
			out = append(out, uint32(i+1)) // #nosec G115 -- тестовые тексты малы
		}
	}
	return out
}

func TestReparse_FoldedEditsMatchSequential(t *testing.T) {
	prev := fullParse(t, []byte(program))
	e := New(Options{})
	text := prev.Source()
	e1 := replaceText(t, text, "return 1;", "return 10;")
	_, mid, err := edits.Fold(text, []edits.Edit{e1})
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	e2 := replaceText(t, mid, "greet(\"b\")", "greet(\"c\")")

	tree, stats := step(t, e, prev, e1, e2)
	if stats.Edits < 1 {
		t.Fatalf("edits = %d", stats.Edits)
	}
	sameAsFull(t, tree)
	if !strings.Contains(string(tree.Source()), "return 10;") || !strings.Contains(string(tree.Source()), `greet("c")`) {
		t.Fatalf("source = %s", tree.Source())
	}
}

func TestReparse_TraceEvents(t *testing.T) {
	ring := trace.NewRingTracer(256, trace.LevelStep)
	ctx := trace.WithTracer(context.Background(), ring)

	prev := fullParse(t, []byte("my $x = 1;\n"))
	set, text, err := edits.Fold(prev.Source(), []edits.Edit{replaceText(t, prev.Source(), "1", "2")})
	if err != nil {
		t.Fatal(err)
	}
	e := New(Options{})
	doc, dctx := trace.StartDoc(ctx, trace.ScopeDocument, "reparse", "file:///x.pl")
	if _, err := e.Reparse(dctx, Request{Prev: prev, Edits: set, Text: text, FileID: fileID}); err != nil {
		t.Fatal(err)
	}
	doc.End("")
	if _, err := e.Reparse(ctx, Request{Text: text, FileID: fileID}); err != nil {
		t.Fatal(err)
	}

	docEvents := ring.ForDoc("file:///x.pl")
	if len(docEvents) == 0 || len(docEvents) == len(ring.Snapshot()) {
		t.Fatalf("doc events = %d of %d", len(docEvents), len(ring.Snapshot()))
	}
	for _, ev := range docEvents {
		if ev.Name == "splice" && ev.ParentID == 0 {
			t.Fatalf("step span without parent: %+v", ev)
		}
	}

	for _, name := range []string{"cycle", "affected_range", "splice", "commit"} {
		if len(ring.Find(name)) == 0 {
			t.Errorf("no %q events", name)
		}
	}
	points := ring.Find("fallback")
	if len(points) != 1 || points[0].Kind != trace.KindPoint || points[0].Detail != string(ReasonNoTree) {
		t.Fatalf("fallback points = %+v", points)
	}
}
