package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/richhaase/autose/internal/api"
	"github.com/richhaase/autose/internal/config"
	"github.com/richhaase/autose/internal/domain"
	"github.com/richhaase/autose/internal/history"
	"github.com/richhaase/autose/internal/logger"
	"github.com/richhaase/autose/internal/task"
	"github.com/richhaase/autose/internal/terminal"
)

// exitCodeError is a wrapper type for returning exit codes via error interface.
type exitCodeError struct {
	code domain.ExitCode
}

func (e exitCodeError) Error() string {
	switch e.code {
	case domain.ExitError:
		return "command failed with error"
	case domain.ExitInterrupted:
		return "command was interrupted"
	default:
		return fmt.Sprintf("exit code %d", e.code)
	}
}

func exitCode(code domain.ExitCode) error {
	if code == domain.ExitSuccess {
		return nil
	}
	return exitCodeError{code: code}
}

// app holds everything a command needs once configuration is resolved.
type app struct {
	ctx   context.Context
	cfg   config.ResolvedConfig
	log   *terminal.Logger
	fs    afero.Fs
	tasks *task.Client
}

// commonFlagState records which global flags were given on the command line.
func commonFlagState(cmd *cobra.Command) (config.FlagState, config.ResolvedConfig) {
	flags := cmd.Flags()
	state := config.FlagState{
		APIURLSet:    flags.Changed("api-url"),
		APIKeySet:    flags.Changed("api-key"),
		OutputDirSet: flags.Changed("output-dir"),
		LogLevelSet:  verbose,
	}
	values := config.ResolvedConfig{
		APIURL:    apiURL,
		APIKey:    apiKey,
		OutputDir: outputDir,
	}
	if verbose {
		values.LogLevel = logger.DebugLevel
	}
	return state, values
}

// loadConfig resolves configuration from defaults, .autose.yaml, .env and the
// environment, and the given flags.
func loadConfig(log *terminal.Logger, state config.FlagState, values config.ResolvedConfig) (config.ResolvedConfig, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfg := &config.Config{}
	if !noConfig {
		result, err := config.LoadWithWarnings()
		if err != nil {
			return config.ResolvedConfig{}, fmt.Errorf("config error: %w", err)
		}
		cfg = result.Config
		for _, w := range result.Warnings {
			log.Logf(terminal.StyleWarning, "Config: %s", w)
		}
	}

	envState, envWarnings := config.LoadEnvState()
	for _, w := range envWarnings {
		log.Logf(terminal.StyleWarning, "Env: %s", w)
	}

	resolved := config.Resolve(cfg, envState, state, values)
	if errs := resolved.ValidateAll(); len(errs) > 0 {
		return config.ResolvedConfig{}, errors.New(strings.Join(errs, "; "))
	}
	return resolved, nil
}

// newApp resolves configuration and wires the task client for cmd.
func newApp(cmd *cobra.Command, state config.FlagState, values config.ResolvedConfig) (*app, error) {
	if plain || !terminal.IsStdoutTTY() {
		terminal.DisableColors()
	}
	log := terminal.NewLoggerTo(cmd.ErrOrStderr())

	cfg, err := loadConfig(log, state, values)
	if err != nil {
		return nil, err
	}

	diag := logger.New(&logger.Config{Level: cfg.LogLevel})
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.ContextWithLogger(ctx, diag)
	diag.Debug("configuration resolved", "api_url", cfg.APIURL, "output_dir", cfg.OutputDir)

	backend, err := api.NewClient(api.Options{
		BaseURL:        cfg.APIURL,
		APIKey:         cfg.APIKey,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         diag,
	})
	if err != nil {
		return nil, err
	}

	fs := afero.NewOsFs()
	tasks := task.NewClient(task.Options{
		Backend:   backend,
		Out:       cmd.OutOrStdout(),
		Logger:    log,
		Renderer:  terminal.NewRenderer(plain),
		Fs:        fs,
		OutputDir: cfg.OutputDir,
		History: history.Options{
			MaxAttempts: cfg.MaxAttempts,
			Delay:       cfg.RetryDelay,
		},
	})

	return &app{ctx: ctx, cfg: cfg, log: log, fs: fs, tasks: tasks}, nil
}

// finish maps an operation error to what the CLI reports.
func (a *app) finish(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) && a.ctx.Err() != nil {
		return exitCode(domain.ExitInterrupted)
	}
	return err
}
