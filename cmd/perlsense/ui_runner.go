package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"perlsense/internal/treefmt"
	"perlsense/internal/ui"
)

type parseOutcome struct {
	results []parsedFile
	err     error
}

// parseFilesWithUI runs parseFiles under a progress view drawn on stderr.
func parseFilesWithUI(ctx context.Context, title string, paths []string, jobs int, e *env, format treefmt.Format) ([]parsedFile, error) {
	events := make(chan ui.Event, 256)
	outcomeCh := make(chan parseOutcome, 1)

	go func() {
		res, err := parseFiles(ctx, paths, jobs, e, format, events)
		outcomeCh <- parseOutcome{results: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, paths, events)
	// SIGINT остаётся у signal.NotifyContext в main
	program := tea.NewProgram(model,
		tea.WithOutput(os.Stderr),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
		tea.WithContext(ctx),
	)
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if outcome.err != nil {
		return nil, outcome.err
	}
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, nil
}
