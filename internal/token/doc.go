// Package token defines lexical token kinds, trivia and heredoc payloads.
// Invariants:
//   - Token.Text is exactly the source bytes covered by Token.Span.
//   - Variables keep their sigil in Text ($x, @list, %map, $#list).
//   - A HeredocStart token carries its parsed declaration in Heredoc; the
//     matching HeredocBody token arrives later, after the newline that ends
//     the declaring line, and carries Body.
//   - Whitespace, newlines, comments and POD never appear in the main token
//     stream; they are attached as leading Trivia.
package token
