package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"perlsense/internal/config"
	"perlsense/internal/logging"
	"perlsense/internal/token"
	"perlsense/internal/trace"
	"perlsense/internal/treefmt"
	"perlsense/internal/ui"
)

func testEnv() *env {
	return &env{
		cfg:    config.Default(),
		styles: treefmt.NewStyles(false),
		logger: logging.Default(),
		tracer: trace.Nop,
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadScript(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		cycles int
	}{
		{"array", `[{"edits":[{"start":1,"end":2,"text":"x"}]},{"cancel":true}]`, 2},
		{"object", `{"cycles":[{"changes":[{"text":"whole"}]}]}`, 1},
		{"empty", `[]`, 0},
	}
	for _, tc := range cases {
		got, err := readScript(strings.NewReader(tc.input))
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(got) != tc.cycles {
			t.Fatalf("%s: got %d cycles, want %d", tc.name, len(got), tc.cycles)
		}
	}
	if _, err := readScript(strings.NewReader(`{"cycles": 3}`)); err == nil {
		t.Fatal("expected decode error")
	}

	got, err := readScript(strings.NewReader(`[{"changes":[{"range":{"start":{"line":1,"character":0},"end":{"line":1,"character":2}},"text":"our"}]}]`))
	if err != nil {
		t.Fatal(err)
	}
	ch := got[0].Changes[0]
	if ch.Range == nil || ch.Range.Start.Line != 1 || ch.Range.End.Character != 2 || ch.Text != "our" {
		t.Fatalf("unexpected change %+v", ch)
	}
}

func TestResolveColor(t *testing.T) {
	for _, tc := range []struct {
		flag string
		want bool
	}{
		{"on", true},
		{"always", true},
		{"off", false},
		{"never", false},
	} {
		got, err := resolveColor(tc.flag, os.Stdout)
		if err != nil || got != tc.want {
			t.Fatalf("resolveColor(%q) = %v, %v", tc.flag, got, err)
		}
	}
	if _, err := resolveColor("rainbow", os.Stdout); err == nil {
		t.Fatal("expected error for unknown value")
	}
}

func TestCollectPerlFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.pl", "1;\n")
	writeFile(t, root, "lib/A.pm", "package A;\n1;\n")
	writeFile(t, root, "t/basic.t", "ok(1);\n")
	writeFile(t, root, "README.md", "# readme\n")
	writeFile(t, root, ".git/hook.pl", "1;\n")

	got, err := collectPerlFiles(root)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(root, "b.pl"),
		filepath.Join(root, "lib/A.pm"),
		filepath.Join(root, "t/basic.t"),
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("got %v, want %v", got, want)
	}

	single, err := collectPerlFiles(want[0])
	if err != nil || len(single) != 1 {
		t.Fatalf("single file: %v, %v", single, err)
	}
	if _, err := collectPerlFiles(filepath.Join(root, "missing")); err == nil {
		t.Fatal("expected error for a missing path")
	}
}

func TestTokenizeFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "h.pl", "print <<EOT;\nhi\nEOT\nmy $s = \"open;\n")
	res, err := tokenizeFile(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(res.Tokens); n == 0 || res.Tokens[n-1].Kind != token.EOF {
		t.Fatalf("token stream must end with EOF, got %d tokens", n)
	}
	if !res.Bag.HasErrors() {
		t.Fatal("unterminated string should be reported")
	}
}

func TestParseFiles_KeepsOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.pl", "b.pl", "c.pl", "d.pl"} {
		writeFile(t, root, name, "my $"+strings.TrimSuffix(name, ".pl")+" = 1;\n")
	}
	writeFile(t, root, "broken.pl", "if ($x {\n")
	paths, err := collectPerlFiles(root)
	if err != nil {
		t.Fatal(err)
	}
	events := make(chan ui.Event, 2*len(paths))
	results, err := parseFiles(context.Background(), paths, 2, testEnv(), treefmt.FormatSexp, events)
	if err != nil {
		t.Fatal(err)
	}
	close(events)
	final := map[ui.Status]int{}
	for ev := range events {
		final[ev.Status]++
	}
	if final[ui.StatusParsing] != len(paths) || final[ui.StatusDone] != len(paths)-1 || final[ui.StatusFailed] != 1 {
		t.Fatalf("unexpected progress events: %v", final)
	}
	if len(results) != len(paths) {
		t.Fatalf("got %d results", len(results))
	}
	broken := 0
	for i, r := range results {
		if r.path != paths[i] {
			t.Fatalf("result %d is %s, want %s", i, r.path, paths[i])
		}
		if !bytes.HasPrefix(r.out, []byte("(")) {
			t.Fatalf("%s: not an s-expression: %q", r.path, r.out)
		}
		if hasErrors(r.tree) {
			broken++
		}
	}
	if broken != 1 {
		t.Fatalf("files with errors = %d, want 1", broken)
	}

	ctx, cancelCtx := context.WithCancel(context.Background())
	cancelCtx()
	if _, err := parseFiles(ctx, paths, 1, testEnv(), treefmt.FormatSexp, nil); err == nil {
		t.Fatal("cancelled context should fail the parse")
	}
}

func TestReplay(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x.pl", "my $x = 1;\nmy $y = 2;\n")
	cycles, err := readScript(strings.NewReader(`[
		{"edits": [{"start": 8, "end": 9, "text": "10"}]},
		{"changes": [{"range": {"start": {"line": 1, "character": 0}, "end": {"line": 1, "character": 2}}, "text": "our"}]},
		{"edits": [{"start": 0, "end": 0, "text": "# c\n"}], "cancel": true},
		{}
	]`))
	if err != nil {
		t.Fatal(err)
	}

	text, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	r, err := newReplayer(ctx, path, text, testEnv(), replayOptions{verify: true})
	if err != nil {
		t.Fatal(err)
	}
	var errOut bytes.Buffer
	stats, err := r.run(ctx, cycles, &errOut)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 4 {
		t.Fatalf("got %d cycles of stats", len(stats))
	}
	if stats[0].Fallback || stats[0].NodesReused == 0 {
		t.Fatalf("first cycle should be local with reuse: %+v", stats[0])
	}
	if !stats[2].Cancelled || stats[2].DeadlineExceeded {
		t.Fatalf("third cycle should be cancelled: %+v", stats[2])
	}
	if stats[3].Cancelled || stats[3].Edits == 0 {
		t.Fatalf("last cycle should fold the retained edit: %+v", stats[3])
	}
	if got, want := string(r.doc.Text()), "# c\nmy $x = 10;\nour $y = 2;\n"; got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}
	if r.doc.Pending() != 0 {
		t.Fatalf("pending = %d", r.doc.Pending())
	}

	table := treefmt.StatsTable(stats, testEnv().styles, 0)
	if !strings.Contains(table, "cancelled") {
		t.Fatalf("stats table lacks the cancelled row:\n%s", table)
	}
}

func TestReplay_BadEdit(t *testing.T) {
	ctx := context.Background()
	r, err := newReplayer(ctx, "x.pl", []byte("1;\n"), testEnv(), replayOptions{})
	if err != nil {
		t.Fatal(err)
	}
	cycles := []scriptCycle{{Edits: []scriptEdit{{Start: 10, End: 20, Text: "x"}}}}
	if _, err := r.run(ctx, cycles, &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "cycle 1") {
		t.Fatalf("expected a cycle 1 error, got %v", err)
	}
}
