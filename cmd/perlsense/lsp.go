package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"perlsense/internal/document"
	"perlsense/internal/lsp"
	"perlsense/internal/trace"
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Run the perlsense language server over stdio",
	Long: `Lsp serves text synchronization, diagnostics and folding ranges over
stdio. Every change cancels the reparse in flight for its document.`,
	Args: cobra.NoArgs,
	RunE: runLSP,
}

func init() {
	lspCmd.Flags().Duration("debounce", 0, "delay between a change and its reparse (0: default)")
}

func runLSP(cmd *cobra.Command, _ []string) error {
	e := envFrom(cmd)
	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return fmt.Errorf("failed to get debounce flag: %w", err)
	}
	store := document.NewStore(document.Options{
		Engine:   e.cfg.EngineOptions(),
		Jobs:     e.cfg.Engine.Jobs,
		Deadline: e.cfg.Cancel.DefaultDeadline.Duration,
	})
	hb := trace.StartHeartbeat(e.tracer, e.cfg.Trace.Heartbeat.Duration, storeProbe(store))
	defer hb.Stop()

	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		Store:          store,
		Debounce:       debounce,
		MaxDiagnostics: e.cfg.Engine.MaxDiagnostics,
	})
	if err := server.Run(cmd.Context()); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}

// storeProbe reports open documents and reparse traffic with each heartbeat.
func storeProbe(store *document.Store) trace.Probe {
	return func() map[string]string {
		m := store.Inflight()
		return map[string]string{
			"docs":      strconv.Itoa(store.Len()),
			"reparses":  strconv.FormatUint(m.Registered.Load(), 10),
			"cancelled": strconv.FormatUint(m.Cancelled.Load(), 10),
		}
	}
}
