package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"perlsense/internal/config"
	"perlsense/internal/logging"
	"perlsense/internal/trace"
	"perlsense/internal/treefmt"
)

const configFileHint = config.FileName

// env is what every subcommand shares: the effective config and the ambient
// logger and tracer. It travels in the command context.
type env struct {
	cfg        config.Config
	configPath string // "" when only defaults apply
	color      bool
	styles     *treefmt.Styles
	logger     *log.Logger
	tracer     trace.Tracer
}

type envKey struct{}

func envFrom(cmd *cobra.Command) *env {
	if ctx := cmd.Context(); ctx != nil {
		if e, ok := ctx.Value(envKey{}).(*env); ok {
			return e
		}
	}
	// команда вызвана без PersistentPreRunE
	return &env{cfg: config.Default(), styles: treefmt.NewStyles(false), logger: logging.Default(), tracer: trace.Nop}
}

func setupEnv(cmd *cobra.Command, _ []string) error {
	pf := cmd.Root().PersistentFlags()

	explicit, _ := pf.GetString("config")
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	cfg, path, err := config.Resolve(explicit, wd)
	if err != nil {
		return err
	}
	if err := applyFlagOverrides(cmd, &cfg); err != nil {
		return err
	}

	colorFlag, _ := pf.GetString("color")
	useColor, err := resolveColor(colorFlag, os.Stdout)
	if err != nil {
		return err
	}
	color.NoColor = !useColor

	logger := logging.NewWithOptions(os.Stderr, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logging.SetDefault(logger)
	if path != "" {
		logger.Debug("config loaded", logging.FieldPath, path)
	}

	tracer, err := trace.New(cfg.TracerConfig())
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}

	e := &env{
		cfg:        cfg,
		configPath: path,
		color:      useColor,
		styles:     treefmt.NewStyles(useColor),
		logger:     logger,
		tracer:     tracer,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithLogger(ctx, logger)
	ctx = trace.WithTracer(ctx, tracer)
	ctx = context.WithValue(ctx, envKey{}, e)
	cmd.SetContext(ctx)
	return nil
}

// applyFlagOverrides copies explicitly set global flags over the config and
// validates the result again.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	pf := cmd.Root().PersistentFlags()
	if pf.Changed("log-level") {
		cfg.Log.Level, _ = pf.GetString("log-level")
	}
	if pf.Changed("trace") {
		cfg.Trace.Level, _ = pf.GetString("trace")
	}
	if pf.Changed("trace-output") {
		cfg.Trace.Output, _ = pf.GetString("trace-output")
		// вывод без уровня: включаем трассировку циклов
		if lvl, err := trace.ParseLevel(cfg.Trace.Level); err == nil && lvl == trace.LevelOff {
			cfg.Trace.Level = trace.LevelCycle.String()
		}
	}
	if pf.Changed("max-diagnostics") {
		cfg.Engine.MaxDiagnostics, _ = pf.GetInt("max-diagnostics")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func teardownEnv(cmd *cobra.Command) {
	ctx := cmd.Context()
	if ctx == nil {
		return
	}
	e, ok := ctx.Value(envKey{}).(*env)
	if !ok {
		return
	}
	if err := e.tracer.Flush(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
	}
	if err := e.tracer.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
	}
}

// resolveColor maps --color to a decision; auto follows the terminal and
// NO_COLOR.
func resolveColor(flag string, f *os.File) (bool, error) {
	switch strings.ToLower(flag) {
	case "on", "always":
		return true, nil
	case "off", "never":
		return false, nil
	case "auto", "":
		return os.Getenv("NO_COLOR") == "" && isTerminal(f), nil
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", flag)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) // #nosec G115 -- дескриптор файла
}

// termWidth is the stdout width for tables and snippets, 0 when unknown.
func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd())) // #nosec G115 -- дескриптор файла
	if err != nil {
		return 0
	}
	return w
}
