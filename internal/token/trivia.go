package token

import "perlsense/internal/source"

type TriviaKind uint8

const (
	TriviaSpace TriviaKind = iota
	TriviaNewline
	TriviaComment // # ... до конца строки
	TriviaPod     // =head1 ... =cut
)

func (k TriviaKind) String() string {
	switch k {
	case TriviaSpace:
		return "Space"
	case TriviaNewline:
		return "Newline"
	case TriviaComment:
		return "Comment"
	case TriviaPod:
		return "Pod"
	}
	return "Trivia(?)"
}

type Trivia struct {
	Kind TriviaKind
	Span source.Span
	Text string
}
