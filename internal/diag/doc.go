// Package diag defines the diagnostic model shared by the lexer, the parser
// and the incremental engine.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//     Ranges: LEX 1000s, SYN 2000s, INC 6000s.
//   - Message – short, actionable text.
//   - Primary – the byte span the finding is about.
//   - Notes – optional secondary spans with extra context.
//
// The lexer emits through the Reporter interface; Bag is the default sink.
// FormatShort gives the one-line-per-diagnostic form used by golden tests
// and `parse --diag-format short`.
// Lexical and grammatical problems never stop analysis: every diagnostic is
// paired with an error placeholder node in the tree.
//
// Diagnostics belong to the tree that produced them. When the incremental
// engine reuses a subtree it carries the subtree's diagnostics forward with
// Diagnostic.Shift.
package diag
