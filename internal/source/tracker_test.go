package source

import (
	"math/rand"
	"slices"
	"testing"
	"unicode/utf8"
)

func TestTracker_LineStarts(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []uint32
	}{
		{"empty", "", []uint32{0}},
		{"no terminator", "abc", []uint32{0}},
		{"lf", "a\nb\n", []uint32{0, 2, 4}},
		{"crlf", "a\r\nb\r\n", []uint32{0, 3, 6}},
		{"lone cr", "a\rb\rc", []uint32{0, 2, 4}},
		{"mixed", "a\r\n\rb\nc\r", []uint32{0, 3, 4, 7, 9}},
		{"blank lines", "\n\n\n", []uint32{0, 1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewTracker([]byte(tt.src)).LineStarts()
			if !slices.Equal(got, tt.want) {
				t.Fatalf("line starts = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTracker_ByteToPosition(t *testing.T) {
	// "😀" is 4 bytes / 2 UTF-16 units, "é" is 2 bytes / 1 unit
	src := "ab\r\né😀x\ny"
	tr := NewTracker([]byte(src))
	tests := []struct {
		off  uint32
		line uint32
		char uint32
	}{
		{0, 0, 0},
		{2, 0, 2},
		{3, 0, 3}, // the \n of \r\n stays on line 0
		{4, 1, 0},
		{6, 1, 1},
		{10, 1, 3},
		{11, 1, 4},
		{12, 2, 0},
		{13, 2, 1},
		{99, 2, 1}, // clamped
	}
	for _, tt := range tests {
		got := tr.ByteToPosition(tt.off)
		if got.Line != tt.line || got.Character != tt.char {
			t.Errorf("ByteToPosition(%d) = %d:%d, want %d:%d", tt.off, got.Line, got.Character, tt.line, tt.char)
		}
	}
}

func TestTracker_MidRuneFloors(t *testing.T) {
	tr := NewTracker([]byte("x😀y"))
	for off := uint32(2); off < 5; off++ {
		got := tr.ByteToPosition(off)
		if got.Offset != 1 || got.Character != 1 {
			t.Fatalf("ByteToPosition(%d) = %+v, want floor to offset 1", off, got)
		}
	}
	// character 2 points at the low surrogate of 😀
	if got := tr.PositionToByte(Position{Line: 0, Character: 2}); got != 1 {
		t.Fatalf("PositionToByte inside surrogate pair = %d, want 1", got)
	}
	if got := tr.PositionToByte(Position{Line: 0, Character: 3}); got != 5 {
		t.Fatalf("PositionToByte after pair = %d, want 5", got)
	}
}

func TestTracker_PositionClamping(t *testing.T) {
	tr := NewTracker([]byte("abc\r\nde"))
	tests := []struct {
		pos  Position
		want uint32
	}{
		{Position{Line: 0, Character: 99}, 3},
		{Position{Line: 1, Character: 99}, 7},
		{Position{Line: 7, Character: 0}, 7},
		{Position{Line: 0, Character: 5}, 3},
	}
	for _, tt := range tests {
		if got := tr.PositionToByte(tt.pos); got != tt.want {
			t.Errorf("PositionToByte(%+v) = %d, want %d", tt.pos, got, tt.want)
		}
	}
}

func TestTracker_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"my $x = 1;\nmy $y = 2;\n",
		"a\r\nb\rc\n\r\n",
		"print <<EOF;\nпривет мир\nEOF\n",
		"😀😀\r\n\t日本語\r",
		"\xff\xfe broken \xc3",
	}
	for _, in := range inputs {
		tr := NewTracker([]byte(in))
		for off := 0; off <= len(in); off++ {
			if off < len(in) && !isBoundary(in, off) {
				continue
			}
			o := uint32(off)
			pos := tr.ByteToPosition(o)
			if back := tr.PositionToByte(pos); back != o {
				t.Fatalf("%q: round trip %d -> %+v -> %d", in, o, pos, back)
			}
		}
	}
}

// isBoundary mirrors how the tracker walks a line: rune decoding from line start.
func isBoundary(s string, off int) bool {
	i := 0
	for i < off {
		_, sz := utf8.DecodeRuneInString(s[i:])
		i += sz
	}
	return i == off
}

func TestTracker_ApplyMatchesFreshBuild(t *testing.T) {
	tests := []struct {
		name    string
		old     string
		changes []Change
		texts   []string
	}{
		{"insert newline", "abc", []Change{{Start: 1, OldEnd: 1, NewLen: 1}}, []string{"\n"}},
		{"delete line", "a\nb\nc\n", []Change{{Start: 1, OldEnd: 3}}, nil},
		{"split crlf", "a\r\nb", []Change{{Start: 2, OldEnd: 2, NewLen: 1}}, []string{"x"}},
		{"join cr and lf", "a\rx\nb", []Change{{Start: 2, OldEnd: 3}}, nil},
		{"edit at start", "\n\nabc", []Change{{Start: 0, OldEnd: 1, NewLen: 2}}, []string{"\r\n"}},
		{"two edits", "l1\nl2\nl3\nl4\n", []Change{
			{Start: 0, OldEnd: 2, NewLen: 5},
			{Start: 9, OldEnd: 11, NewLen: 0},
		}, []string{"x\ny\nz", ""}},
		{"append at end", "abc\r", []Change{{Start: 4, OldEnd: 4, NewLen: 1}}, []string{"\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			texts := tt.texts
			if texts == nil {
				texts = make([]string, len(tt.changes))
			}
			newSrc := applyChanges(tt.old, tt.changes, texts)
			got := NewTracker([]byte(tt.old)).Apply([]byte(newSrc), tt.changes)
			want := NewTracker([]byte(newSrc))
			if !slices.Equal(got.LineStarts(), want.LineStarts()) {
				t.Fatalf("incremental %v, fresh %v (new text %q)", got.LineStarts(), want.LineStarts(), newSrc)
			}
		})
	}
}

func TestTracker_ApplyRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []string{"a", "b", "\n", "\r", "\r\n", "é", " "}
	gen := func(n int) string {
		var out string
		for range n {
			out += alphabet[rng.Intn(len(alphabet))]
		}
		return out
	}
	for iter := range 500 {
		old := gen(rng.Intn(30))
		start := uint32(rng.Intn(len(old) + 1))
		end := start + uint32(rng.Intn(len(old)-int(start)+1))
		text := gen(rng.Intn(5))
		changes := []Change{{Start: start, OldEnd: end, NewLen: uint32(len(text))}}
		newSrc := applyChanges(old, changes, []string{text})
		got := NewTracker([]byte(old)).Apply([]byte(newSrc), changes)
		want := NewTracker([]byte(newSrc))
		if !slices.Equal(got.LineStarts(), want.LineStarts()) {
			t.Fatalf("iter %d: old %q edit [%d,%d)->%q: incremental %v, fresh %v",
				iter, old, start, end, text, got.LineStarts(), want.LineStarts())
		}
	}
}

func applyChanges(old string, changes []Change, texts []string) string {
	out := ""
	prev := uint32(0)
	for i, c := range changes {
		out += old[prev:c.Start] + texts[i]
		prev = c.OldEnd
	}
	return out + old[prev:]
}
