package parser

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"perlsense/internal/ast"
	"perlsense/internal/cancel"
	"perlsense/internal/diag"
	"perlsense/internal/source"
	"perlsense/internal/testkit"
)

func testFile(src string) *source.File {
	return source.NewFile(1, "test.pl", []byte(src), source.FileVirtual)
}

func parse(t *testing.T, src string) *ast.Tree {
	t.Helper()
	tree, err := ParseFile(testFile(src), Options{})
	if err != nil {
		t.Fatalf("ParseFile(%q): %v", src, err)
	}
	if err := testkit.CheckTree(tree); err != nil {
		t.Fatalf("tree invariants broken for %q: %v\n%s", src, err, tree.Sexp())
	}
	return tree
}

func diagnosticsSummary(diags []diag.Diagnostic) string {
	if len(diags) == 0 {
		return "<none>"
	}
	lines := make([]string, len(diags))
	for i, d := range diags {
		lines[i] = fmt.Sprintf("[%s] %s", d.Code.ID(), d.Message)
	}
	return strings.Join(lines, "; ")
}

func hasCode(diags []diag.Diagnostic, code diag.Code) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

func childKinds(tree *ast.Tree, id ast.NodeID) []ast.Kind {
	kids := tree.Children(id)
	out := make([]ast.Kind, len(kids))
	for i, c := range kids {
		out[i] = tree.Kind(c)
	}
	return out
}

func assertChildKinds(t *testing.T, tree *ast.Tree, id ast.NodeID, want ...ast.Kind) {
	t.Helper()
	got := childKinds(tree, id)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("children of %v = %v, want %v\n%s", tree.Kind(id), got, want, tree.Sexp())
	}
}

func find(tree *ast.Tree, kind ast.Kind) ast.NodeID {
	for _, id := range tree.Preorder() {
		if tree.Kind(id) == kind {
			return id
		}
	}
	return ast.NoNodeID
}

func TestParseFile_SimpleAssignment(t *testing.T) {
	tree := parse(t, "my $x = 1;\n")
	want := `(Program 0..11
  (ExprStmt 0..10
    (Assign "=" 0..9
      (VarDecl "my" 0..5
        (Variable "$x" 3..5))
      (Number "1" 8..9))))
`
	if got := tree.Sexp(); got != want {
		t.Fatalf("sexp mismatch:\n got:\n%s\nwant:\n%s", got, want)
	}
	if len(tree.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %s", diagnosticsSummary(tree.Diagnostics))
	}
}

func TestParseFile_Expressions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ast.Kind
		text string
	}{
		{"precedence", "$a + $b * $c;", ast.KindBinary, "+"},
		{"logical", "$a || $b && $c;", ast.KindLogical, "||"},
		{"low or", "open($fh) or die;", ast.KindLogical, "or"},
		{"ternary", "$a ? $b : $c;", ast.KindTernary, "?:"},
		{"range", "1..3;", ast.KindRange, ".."},
		{"unary", "!$x;", ast.KindUnary, "!"},
		{"ref", "\\@list;", ast.KindRef, "\\"},
		{"postfix", "$i++;", ast.KindPostfix, "++"},
		{"method", "Foo->new(1);", ast.KindMethod, "new"},
		{"subscript", "$h{key};", ast.KindSubscript, "{"},
		{"arrow subscript", "$r->[0];", ast.KindSubscript, "["},
		{"call parens", "foo(1, 2);", ast.KindCall, "foo"},
		{"list op", "push @a, 1;", ast.KindCall, "push"},
		{"deref", "@{$r};", ast.KindDeref, "@"},
		{"anon hash", "my $h = { a => 1 };", ast.KindAssign, "="},
		{"anon sub", "my $f = sub { 1 };", ast.KindAssign, "="},
		{"bind", "$s =~ s/a/b/;", ast.KindBinary, "=~"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := parse(t, tt.src)
			stmts := tree.Children(tree.Root)
			if len(stmts) != 1 || tree.Kind(stmts[0]) != ast.KindExprStmt {
				t.Fatalf("want one ExprStmt, got %v\n%s", childKinds(tree, tree.Root), tree.Sexp())
			}
			expr := tree.Children(stmts[0])[0]
			if tree.Kind(expr) != tt.kind || tree.Node(expr).Text != tt.text {
				t.Fatalf("expr = %v %q, want %v %q\n%s", tree.Kind(expr), tree.Node(expr).Text, tt.kind, tt.text, tree.Sexp())
			}
			if len(tree.Diagnostics) != 0 {
				t.Fatalf("unexpected diagnostics: %s", diagnosticsSummary(tree.Diagnostics))
			}
		})
	}
}

func TestParseFile_PrecedenceShape(t *testing.T) {
	tree := parse(t, "$a + $b * $c;")
	add := tree.Children(tree.Children(tree.Root)[0])[0]
	assertChildKinds(t, tree, add, ast.KindVariable, ast.KindBinary)
	mul := tree.Children(add)[1]
	if tree.Node(mul).Text != "*" {
		t.Fatalf("right operand = %q, want '*'", tree.Node(mul).Text)
	}
}

func TestParseFile_StatementModifier(t *testing.T) {
	tree := parse(t, "print \"hi\" if $x;\n")
	stmt := tree.Children(tree.Root)[0]
	assertChildKinds(t, tree, stmt, ast.KindCall, ast.KindModifier)
	mod := tree.Children(stmt)[1]
	if tree.Node(mod).Text != "if" {
		t.Fatalf("modifier = %q", tree.Node(mod).Text)
	}
}

func TestParseFile_Control(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ast.Kind
		kids []ast.Kind
	}{
		{"if chain", "if ($x) { f(); } elsif ($y) { g(); } else { h(); }\n",
			ast.KindIf, []ast.Kind{ast.KindList, ast.KindBlock, ast.KindElsif, ast.KindElse}},
		{"unless", "unless ($x) { f(); }\n",
			ast.KindIf, []ast.Kind{ast.KindList, ast.KindBlock}},
		{"foreach my", "for my $i (1..3) { }\n",
			ast.KindForeach, []ast.Kind{ast.KindVarDecl, ast.KindList, ast.KindBlock}},
		{"foreach topic", "foreach (@list) { print; }\n",
			ast.KindForeach, []ast.Kind{ast.KindList, ast.KindBlock}},
		{"c style", "for (my $i = 0; $i < 3; $i++) { }\n",
			ast.KindForC, []ast.Kind{ast.KindAssign, ast.KindBinary, ast.KindPostfix, ast.KindBlock}},
		{"c style empty", "for (;;) { last; }\n",
			ast.KindForC, []ast.Kind{ast.KindList, ast.KindList, ast.KindList, ast.KindBlock}},
		{"while continue", "while (1) { last; } continue { }\n",
			ast.KindWhile, []ast.Kind{ast.KindList, ast.KindBlock, ast.KindBlock}},
		{"sub", "sub foo ($x, $y) { return $x + $y }\n",
			ast.KindSubDecl, []ast.Kind{ast.KindSignature, ast.KindBlock}},
		{"forward sub", "sub foo;\n", ast.KindSubDecl, []ast.Kind{}},
		{"phase block", "BEGIN { 1; }\n", ast.KindSubDecl, []ast.Kind{ast.KindBlock}},
		{"package", "package Foo::Bar 1.0;\n", ast.KindPackageDecl, []ast.Kind{ast.KindNumber}},
		{"package block", "package Foo { 1; }\n", ast.KindPackageDecl, []ast.Kind{ast.KindBlock}},
		{"use", "use strict;\n", ast.KindUseDecl, []ast.Kind{ast.KindName}},
		{"use list", "use POSIX qw(floor);\n", ast.KindUseDecl, []ast.Kind{ast.KindName, ast.KindQuoteLike}},
		{"labeled", "OUTER: while (1) { next OUTER; }\n", ast.KindLabeled, []ast.Kind{ast.KindWhile}},
		{"bare block", "{ my $x; }\n", ast.KindBlock, []ast.Kind{ast.KindExprStmt}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := parse(t, tt.src)
			stmts := tree.Children(tree.Root)
			if len(stmts) != 1 || tree.Kind(stmts[0]) != tt.kind {
				t.Fatalf("top level = %v, want [%v]\n%s", childKinds(tree, tree.Root), tt.kind, tree.Sexp())
			}
			assertChildKinds(t, tree, stmts[0], tt.kids...)
			if len(tree.Diagnostics) != 0 {
				t.Fatalf("unexpected diagnostics: %s", diagnosticsSummary(tree.Diagnostics))
			}
		})
	}
}

func TestParseFile_SignatureIsRaw(t *testing.T) {
	tree := parse(t, "sub foo ($$;@) { }\n")
	sig := find(tree, ast.KindSignature)
	if got := tree.Node(sig).Text; got != "($$;@)" {
		t.Fatalf("signature text = %q", got)
	}
}

func TestParseFile_DataSection(t *testing.T) {
	tree := parse(t, "f();\n__END__\nanything ) goes\n")
	assertChildKinds(t, tree, tree.Root, ast.KindExprStmt, ast.KindDataSection)
}

func TestParseFile_HeredocOwnedByStatement(t *testing.T) {
	src := "print <<EOF;\nhello\nEOF\nmy $y;\n"
	tree := parse(t, src)
	assertChildKinds(t, tree, tree.Root, ast.KindExprStmt, ast.KindExprStmt)

	first := tree.Children(tree.Root)[0]
	assertChildKinds(t, tree, first, ast.KindCall, ast.KindHeredocBody)
	if sp := tree.Span(first); sp.Start != 0 || sp.End != 23 {
		t.Fatalf("statement span = %v, want 0..23", sp)
	}
	decl := tree.Node(find(tree, ast.KindHeredoc))
	if decl.Heredoc == nil || !decl.Heredoc.HasBody || decl.Heredoc.Content != "hello\n" {
		t.Fatalf("declaration payload = %+v", decl.Heredoc)
	}
	if decl.Heredoc.Decl.Terminator != "EOF" {
		t.Fatalf("terminator = %q", decl.Heredoc.Decl.Terminator)
	}
	second := tree.Children(tree.Root)[1]
	if tree.Span(second).Start != 23 {
		t.Fatalf("second statement starts at %d, want 23", tree.Span(second).Start)
	}
}

func TestParseFile_HeredocSharedLineGroup(t *testing.T) {
	src := "f(<<A); g(<<B);\na\nA\nb\nB\nh();\n"
	tree := parse(t, src)
	assertChildKinds(t, tree, tree.Root, ast.KindStmtGroup, ast.KindExprStmt)
	group := tree.Children(tree.Root)[0]
	assertChildKinds(t, tree, group,
		ast.KindExprStmt, ast.KindExprStmt, ast.KindHeredocBody, ast.KindHeredocBody)
}

func TestParseFile_HeredocBodyInsideArguments(t *testing.T) {
	src := "f(<<A,\nx\nA\n2);\n"
	tree := parse(t, src)
	body := find(tree, ast.KindHeredocBody)
	if !body.IsValid() {
		t.Fatalf("no heredoc body\n%s", tree.Sexp())
	}
	parent := tree.Parent(body)
	if tree.Kind(parent) != ast.KindList {
		t.Fatalf("body parent = %v, want List\n%s", tree.Kind(parent), tree.Sexp())
	}
	assertChildKinds(t, tree, parent, ast.KindHeredoc, ast.KindHeredocBody, ast.KindNumber)
}

func TestParseFile_HeredocInBlock(t *testing.T) {
	src := "if ($x) {\n  print <<T;\nbody\nT\n}\n"
	tree := parse(t, src)
	body := find(tree, ast.KindHeredocBody)
	if tree.Kind(tree.Parent(body)) != ast.KindExprStmt {
		t.Fatalf("body parent = %v\n%s", tree.Kind(tree.Parent(body)), tree.Sexp())
	}
	blk := find(tree, ast.KindBlock)
	if src[tree.Span(blk).End-1] != '}' {
		t.Fatalf("block span %v does not end at its brace", tree.Span(blk))
	}
}

func TestParseFile_UnterminatedHeredoc(t *testing.T) {
	tree := parse(t, "print <<EOF;\nno end\n")
	if !hasCode(tree.Diagnostics, diag.LexHeredocUnterminatedBody) {
		t.Fatalf("missing unterminated body diagnostic: %s", diagnosticsSummary(tree.Diagnostics))
	}
	body := tree.Node(find(tree, ast.KindHeredocBody))
	if body == nil || body.Heredoc.Terminated {
		t.Fatalf("want unterminated body node\n%s", tree.Sexp())
	}
}

func TestParseFile_Recovery(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		code  diag.Code
		kinds []ast.Kind
	}{
		{"missing operand", "my $x = ;\nmy $y = 2;\n", diag.SynExpectExpression,
			[]ast.Kind{ast.KindExprStmt, ast.KindExprStmt}},
		{"missing semicolon", "my $x = 1\nmy $y = 2;\n", diag.SynExpectSemicolon,
			[]ast.Kind{ast.KindExprStmt, ast.KindExprStmt}},
		{"stray brace", "}\nmy $y;\n", diag.SynUnexpectedRBrace,
			[]ast.Kind{ast.KindError, ast.KindExprStmt}},
		{"unclosed block", "sub f {\n  1;\n", diag.SynUnclosedBrace,
			[]ast.Kind{ast.KindSubDecl}},
		{"garbage", ") ) ;\nf();\n", diag.SynExpectExpression,
			[]ast.Kind{ast.KindError, ast.KindExprStmt}},
		{"missing condition", "if $x { 1 }\n", diag.SynExpectCondition,
			[]ast.Kind{ast.KindIf}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := parse(t, tt.src)
			if !hasCode(tree.Diagnostics, tt.code) {
				t.Fatalf("missing %s: %s", tt.code.ID(), diagnosticsSummary(tree.Diagnostics))
			}
			if !tree.HasErrors() {
				t.Fatalf("HasErrors = false")
			}
			got := childKinds(tree, tree.Root)
			if len(got) < len(tt.kinds) {
				t.Fatalf("top level = %v, want prefix %v\n%s", got, tt.kinds, tree.Sexp())
			}
			for i, k := range tt.kinds {
				if got[i] != k {
					t.Fatalf("top level = %v, want prefix %v\n%s", got, tt.kinds, tree.Sexp())
				}
			}
		})
	}
}

// Заглушки нулевой ширины не должны ломать порядок соседей.
func TestParseFile_RecoveryKeepsSiblingsOrdered(t *testing.T) {
	srcs := []string{
		"for (1; 2 }\n",
		"for (1; 2; }\n",
		"for (;;\n",
		"while (1 }\n",
		"if (\n",
		"if ($x) 1;\n",
		"for my $x 1 {\n",
		"sub f {\n  my $y = 1;\n  return $y +\n}\n",
		"my $x = (1 + ;\n",
		"{ { ) }\n",
	}
	for _, src := range srcs {
		parse(t, src) // CheckTree внутри
	}

	tree := parse(t, "for (1; 2 }\n")
	loop := find(tree, ast.KindForC)
	if !loop.IsValid() {
		t.Fatalf("no ForC node\n%s", tree.Sexp())
	}
	kids := tree.Children(loop)
	last := tree.Node(kids[len(kids)-1])
	if last.Kind != ast.KindError || last.Code != diag.SynExpectBlock {
		t.Fatalf("last child = %v %s, want missing-block error\n%s", last.Kind, last.Code.ID(), tree.Sexp())
	}
	prev := tree.Span(kids[len(kids)-2])
	if last.Span.Start != prev.End || !last.Span.Empty() {
		t.Fatalf("missing-block placeholder at %v, want empty span at %d\n%s", last.Span, prev.End, tree.Sexp())
	}
}

func TestParseFile_MaxErrors(t *testing.T) {
	src := strings.Repeat(") ;\n", 20)
	tree, err := ParseFile(testFile(src), Options{MaxErrors: 3})
	if err != nil {
		t.Fatal(err)
	}
	errs := 0
	for _, d := range tree.Diagnostics {
		if d.Severity >= diag.SevError {
			errs++
		}
	}
	if errs != 3 {
		t.Fatalf("got %d errors, want 3: %s", errs, diagnosticsSummary(tree.Diagnostics))
	}
}

func TestParseFile_Cancelled(t *testing.T) {
	src := strings.Repeat("my $x = 1;\n", 200)
	sig := cancel.NewSignal("parse")
	sig.Cancel()
	chk := cancel.DefaultPolicy().Checker(sig, cancel.Stream)
	tree, err := ParseFile(testFile(src), Options{Cancel: chk})
	if !errors.Is(err, cancel.ErrCancelled) {
		t.Fatalf("err = %v, want cancelled", err)
	}
	if tree != nil {
		t.Fatalf("cancelled parse returned a tree")
	}
	if chk.Items() != cancel.DefaultBatchSize {
		t.Fatalf("parser stepped %d tokens after cancellation, want %d", chk.Items(), cancel.DefaultBatchSize)
	}
}

func TestParseRegion_Program(t *testing.T) {
	src := "my $a = 1;\nmy $b = 2;\nmy $c = 3;\n"
	file := testFile(src)

	frag, err := ParseRegion(file, Options{}, Region{Container: ast.KindProgram, Start: 11, Stop: 22})
	if err != nil {
		t.Fatal(err)
	}
	if !frag.Clean || frag.Next != 22 || len(frag.Stmts) != 1 {
		t.Fatalf("fragment = clean %v next %d stmts %d", frag.Clean, frag.Next, len(frag.Stmts))
	}
	if sp := frag.Nodes.Get(uint32(frag.Stmts[0])).Span; sp.Start != 11 || sp.End != 21 {
		t.Fatalf("statement span = %v, want 11..21", sp)
	}

	// стоп посреди инструкции: парсер перешагивает границу
	frag, err = ParseRegion(file, Options{}, Region{Container: ast.KindProgram, Start: 11, Stop: 16})
	if err != nil {
		t.Fatal(err)
	}
	if frag.Clean {
		t.Fatalf("region ending mid-statement reported clean (next %d)", frag.Next)
	}
}

func TestParseRegion_Block(t *testing.T) {
	src := "sub f {\n  a();\n  b();\n}\n"
	frag, err := ParseRegion(testFile(src), Options{}, Region{Container: ast.KindBlock, Start: 15, Stop: 22})
	if err != nil {
		t.Fatal(err)
	}
	if !frag.Clean || len(frag.Stmts) != 1 {
		t.Fatalf("fragment = clean %v next %d stmts %d", frag.Clean, frag.Next, len(frag.Stmts))
	}
	if sp := frag.Nodes.Get(uint32(frag.Stmts[0])).Span; sp.Start != 17 || sp.End != 21 {
		t.Fatalf("statement span = %v, want 17..21", sp)
	}
}

func TestParseRegion_PendingHeredocIsNotClean(t *testing.T) {
	src := "f(<<A);\nA\n"
	// регион обрывается до тела: тело пересекает границу
	frag, err := ParseRegion(testFile(src), Options{}, Region{Container: ast.KindProgram, Start: 0, Stop: 7})
	if err != nil {
		t.Fatal(err)
	}
	if frag.Clean {
		t.Fatalf("fragment with a pending body reported clean")
	}
}

func TestParseFile_NodeAtFindsInnermost(t *testing.T) {
	src := "foo($x + 1);\n"
	tree := parse(t, src)
	id := tree.NodeAt(4)
	if tree.Kind(id) != ast.KindVariable {
		t.Fatalf("NodeAt(4) = %v, want Variable\n%s", tree.Kind(id), tree.Sexp())
	}
}
