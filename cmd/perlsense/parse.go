package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"perlsense/internal/ast"
	"perlsense/internal/cancel"
	"perlsense/internal/diag"
	"perlsense/internal/logging"
	"perlsense/internal/parser"
	"perlsense/internal/source"
	"perlsense/internal/trace"
	"perlsense/internal/treefmt"
	"perlsense/internal/ui"
)

var parseCmd = &cobra.Command{
	Use:   "parse [flags] <file.pl|directory>",
	Short: "Parse Perl sources and dump their syntax trees",
	Long: `Parse builds the syntax tree of a file, or of every Perl file under a
directory (in parallel), and prints it as an s-expression, JSON or msgpack`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().String("format", "sexp", "output format (sexp|json|msgpack)")
	parseCmd.Flags().Int("jobs", 0, "max parallel files (0: config value, then GOMAXPROCS)")
	parseCmd.Flags().Bool("diagnostics", true, "print diagnostics to stderr")
	parseCmd.Flags().String("diag-format", "pretty", "diagnostics format (pretty|short)")
	parseCmd.Flags().Bool("progress", false, "show per-file progress on a terminal (directories only)")
}

// perlExts are the extensions collected from a directory.
var perlExts = []string{".pl", ".pm", ".t", ".psgi"}

type parsedFile struct {
	path string
	tree *ast.Tree
	out  []byte
}

func runParse(cmd *cobra.Command, args []string) error {
	e := envFrom(cmd)
	formatStr, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format, err := treefmt.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if jobs <= 0 {
		jobs = e.cfg.Engine.Jobs
	}
	showDiags, err := cmd.Flags().GetBool("diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get diagnostics flag: %w", err)
	}
	diagFormat, err := cmd.Flags().GetString("diag-format")
	if err != nil {
		return fmt.Errorf("failed to get diag-format flag: %w", err)
	}
	if diagFormat != "pretty" && diagFormat != "short" {
		return fmt.Errorf("unknown diagnostics format %q (want pretty or short)", diagFormat)
	}

	paths, err := collectPerlFiles(args[0])
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no Perl files found in %s", args[0])
	}

	progress, err := cmd.Flags().GetBool("progress")
	if err != nil {
		return fmt.Errorf("failed to get progress flag: %w", err)
	}

	start := time.Now()
	var results []parsedFile
	if progress && len(paths) > 1 && isTerminal(os.Stderr) {
		results, err = parseFilesWithUI(cmd.Context(), args[0], paths, jobs, e, format)
	} else {
		results, err = parseFiles(cmd.Context(), paths, jobs, e, format, nil)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	withErrors := 0
	for _, r := range results {
		if _, err := out.Write(r.out); err != nil {
			return err
		}
		if hasErrors(r.tree) {
			withErrors++
		}
		if !showDiags || len(r.tree.Diagnostics) == 0 {
			continue
		}
		if diagFormat == "short" {
			if _, err := fmt.Fprintln(cmd.ErrOrStderr(), diag.FormatShort(r.tree.Diagnostics, r.tree.File, true)); err != nil {
				return err
			}
			continue
		}
		opts := treefmt.PrettyOpts{Max: e.cfg.Engine.MaxDiagnostics, Width: termWidth()}
		if err := treefmt.FormatDiagnostics(cmd.ErrOrStderr(), r.path, r.tree, e.styles, opts); err != nil {
			return err
		}
	}
	logging.FromContext(cmd.Context()).Info("parsed",
		"files", len(results), "with_errors", withErrors, logging.FieldDur, time.Since(start))
	return nil
}

// collectPerlFiles returns root itself for a file, or the Perl files below a
// directory in lexical order.
func collectPerlFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if slices.Contains(perlExts, strings.ToLower(filepath.Ext(path))) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// parseFiles parses and renders every path; results keep the input order.
// A non-nil events channel receives per-file status changes.
func parseFiles(ctx context.Context, paths []string, jobs int, e *env, format treefmt.Format, events chan<- ui.Event) ([]parsedFile, error) {
	sp, ctx := trace.Start(ctx, trace.ScopeStore, "parse_files")
	sp.WithExtra("files", strconv.Itoa(len(paths)))
	defer sp.End("")

	results := make([]parsedFile, len(paths))
	fileSet := source.NewFileSet()
	files := make([]*source.File, len(paths))
	for i, p := range paths {
		id, err := fileSet.Load(p)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", p, err)
		}
		files[i] = fileSet.Get(id)
	}

	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report(gctx, events, ui.Event{File: paths[i], Status: ui.StatusParsing})
			tree, err := parseOne(gctx, file, e)
			if err != nil {
				report(ctx, events, ui.Event{File: paths[i], Status: ui.StatusAborted})
				return fmt.Errorf("%s: %w", paths[i], err)
			}
			report(gctx, events, finalEvent(paths[i], tree))
			var buf bytes.Buffer
			if err := treefmt.WriteTree(&buf, format, paths[i], tree, e.cfg.Engine.MaxDiagnostics, nil); err != nil {
				return fmt.Errorf("%s: %w", paths[i], err)
			}
			results[i] = parsedFile{path: paths[i], tree: tree, out: buf.Bytes()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, cancel.ErrCancelled) {
			sp.Point("cancelled", err.Error(), nil)
		}
		return nil, err
	}
	return results, nil
}

func report(ctx context.Context, events chan<- ui.Event, ev ui.Event) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func finalEvent(path string, tree *ast.Tree) ui.Event {
	n := 0
	for _, d := range tree.Diagnostics {
		if d.IsError() {
			n++
		}
	}
	if n > 0 {
		return ui.Event{File: path, Status: ui.StatusFailed, Diags: n}
	}
	return ui.Event{File: path, Status: ui.StatusDone}
}

func parseOne(ctx context.Context, file *source.File, e *env) (*ast.Tree, error) {
	sig, stop := cancel.FromContext(ctx, file.Path)
	defer stop()
	return parser.ParseFile(file, parser.Options{
		MaxHeredocDepth: e.cfg.Engine.MaxHeredocDepth,
		Cancel:          e.cfg.Policy().Checker(sig, cancel.Stream),
	})
}

func hasErrors(tree *ast.Tree) bool {
	return finalEvent("", tree).Status == ui.StatusFailed
}
