package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"perlsense/internal/diag"
	"perlsense/internal/lexer"
	"perlsense/internal/logging"
	"perlsense/internal/source"
	"perlsense/internal/token"
	"perlsense/internal/treefmt"
)

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize [flags] file.pl",
	Short: "Tokenize a Perl source file",
	Long:  `Tokenize runs the heredoc-aware lexer over a file and prints its tokens`,
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenize,
}

func init() {
	tokenizeCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

type tokenizeResult struct {
	File   *source.File
	Tokens []token.Token
	Bag    *diag.Bag
	Errors int
}

// tokenizeFile lexes the whole file; lexical errors end up in the bag.
func tokenizeFile(path string, maxHeredocDepth int) (*tokenizeResult, error) {
	fs := source.NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}
	file := fs.Get(id)
	bag := diag.NewBag(0)
	counter := &diag.Counter{Next: diag.BagReporter{Bag: bag}}
	lx := lexer.New(file, lexer.Options{
		Reporter:        counter,
		MaxHeredocDepth: maxHeredocDepth,
	})
	var toks []token.Token
	for {
		tok := lx.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	bag.Sort()
	return &tokenizeResult{File: file, Tokens: toks, Bag: bag, Errors: counter.Errors()}, nil
}

func runTokenize(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	e := envFrom(cmd)

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unknown format: %s", format)
	}

	result, err := tokenizeFile(filePath, e.cfg.Engine.MaxHeredocDepth)
	if err != nil {
		return fmt.Errorf("tokenization failed: %w", err)
	}
	logging.FromContext(cmd.Context()).Debug("tokenized", logging.FieldPath, filePath,
		"tokens", len(result.Tokens), "errors", result.Errors)

	// Выводим диагностику в stderr, если есть
	if result.Bag.Len() > 0 {
		opts := treefmt.PrettyOpts{Max: e.cfg.Engine.MaxDiagnostics}
		if err := treefmt.FormatDiagnosticList(cmd.ErrOrStderr(), filePath, result.File.Lines, result.Bag.Items(), e.styles, opts); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		return treefmt.FormatTokensJSON(out, result.Tokens)
	}
	return treefmt.FormatTokensPretty(out, result.Tokens, result.File.Lines, termWidth())
}
