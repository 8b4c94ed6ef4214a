package treefmt

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"perlsense/internal/source"
	"perlsense/internal/token"
)

type TokenOutput struct {
	Kind    string      `json:"kind"`
	Text    string      `json:"text,omitempty"`
	Span    source.Span `json:"span"`
	Leading []string    `json:"leading,omitempty"`
	Heredoc *HeredocOut `json:"heredoc,omitempty"`
}

type HeredocOut struct {
	Terminator string `json:"terminator" msgpack:"terminator"`
	Style      string `json:"style" msgpack:"style"`
	Indented   bool   `json:"indented,omitempty" msgpack:"indented,omitempty"`
	Terminated *bool  `json:"terminated,omitempty" msgpack:"terminated,omitempty"`
}

func tokenOutput(tok token.Token) TokenOutput {
	out := TokenOutput{Kind: tok.Kind.String(), Text: tok.Text, Span: tok.Span}
	for _, tr := range tok.Leading {
		out.Leading = append(out.Leading, tr.Kind.String())
	}
	switch {
	case tok.Heredoc != nil:
		out.Heredoc = &HeredocOut{Terminator: tok.Heredoc.Terminator, Style: tok.Heredoc.Style.String(), Indented: tok.Heredoc.Indented}
	case tok.Body != nil && tok.Body.Decl != nil:
		term := tok.Body.Terminated
		out.Heredoc = &HeredocOut{Terminator: tok.Body.Decl.Terminator, Style: tok.Body.Decl.Style.String(),
			Indented: tok.Body.Decl.Indented, Terminated: &term}
	}
	return out
}

// FormatTokensPretty выводит токены в человекочитаемом формате: номер, вид,
// текст (обрезанный до width ячеек) и позиция line:col (с 1).
func FormatTokensPretty(w io.Writer, tokens []token.Token, lines *source.Tracker, width int) error {
	for i, tok := range tokens {
		start, end := lines.SpanRange(tok.Span)
		var sb strings.Builder
		fmt.Fprintf(&sb, "%3d: %-15s", i+1, tok.Kind.String())
		if tok.Text != "" {
			sb.WriteByte(' ')
			sb.WriteString(Truncate(fmt.Sprintf("%q", tok.Text), width))
		}
		fmt.Fprintf(&sb, " at %d:%d-%d:%d", start.Line+1, start.Character+1, end.Line+1, end.Character+1)
		if len(tok.Leading) > 0 {
			kinds := make([]string, len(tok.Leading))
			for j, tr := range tok.Leading {
				kinds[j] = tr.Kind.String()
			}
			fmt.Fprintf(&sb, " (leading: %s)", strings.Join(kinds, ", "))
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
		if tok.Kind == token.EOF {
			break
		}
	}
	return nil
}

// FormatTokensJSON выводит токены в JSON формате
func FormatTokensJSON(w io.Writer, tokens []token.Token) error {
	output := make([]TokenOutput, 0, len(tokens))
	for _, tok := range tokens {
		output = append(output, tokenOutput(tok))
		if tok.Kind == token.EOF {
			break
		}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
