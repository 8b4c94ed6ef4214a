package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"perlsense/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "perlsense",
	Short: "Incremental Perl analysis core",
	Long: `perlsense tokenizes and parses Perl sources and replays edit scripts
through the incremental reparse engine`,
	SilenceUsage:      true,
	PersistentPreRunE: setupEnv,
	PersistentPostRun: func(cmd *cobra.Command, _ []string) { teardownEnv(cmd) },
}

// main registers subcommands and global flags and runs the root command.
// Ctrl-C cancels the context, which a running replay observes as cancellation.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(tokenizeCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: nearest "+configFileHint+")")
	pf.String("log-level", "", "log level (debug|info|warn|error), overrides the config")
	pf.String("trace", "", "trace level (off|error|document|cycle|step), overrides the config")
	pf.String("trace-output", "", "trace output: a file path, stdout or stderr")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Int("max-diagnostics", 0, "maximum number of diagnostics to show (0: config value)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
