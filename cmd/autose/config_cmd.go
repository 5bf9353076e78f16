package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/richhaase/autose/internal/config"
	"github.com/richhaase/autose/internal/git"
	"github.com/richhaase/autose/internal/terminal"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage autose configuration",
		Long:  "View, initialize, and validate autose configuration files and environment variables.",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display resolved configuration",
		Long:  "Show the fully resolved configuration from defaults, config file, environment variables and flags.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &config.Config{}
			source := "(none)"
			if !noConfig {
				result, err := config.LoadWithWarnings()
				if err != nil {
					return fmt.Errorf("config error: %w", err)
				}
				cfg = result.Config
				if result.Path != "" {
					source = result.Path
				}
			}

			envState, _ := config.LoadEnvState()
			state, values := commonFlagState(cmd)
			resolved := config.Resolve(cfg, envState, state, values)

			apiKeyShown := "(default)"
			if resolved.APIKey != config.Defaults.APIKey {
				apiKeyShown = "(set)"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Resolved configuration:")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  %-24s %s\n", "config_file:", source)
			fmt.Fprintf(out, "  %-24s %s\n", "api_url:", resolved.APIURL)
			fmt.Fprintf(out, "  %-24s %s\n", "api_key:", apiKeyShown)
			fmt.Fprintf(out, "  %-24s %s\n", "dev_model:", resolved.DevModel)
			fmt.Fprintf(out, "  %-24s %s\n", "lint_model:", resolved.LintModel)
			fmt.Fprintf(out, "  %-24s %s\n", "output_dir:", resolved.OutputDir)
			fmt.Fprintf(out, "  %-24s %s\n", "log_level:", resolved.LogLevel)
			fmt.Fprintf(out, "  %-24s %s\n", "request_timeout:", resolved.RequestTimeout)
			fmt.Fprintf(out, "  %-24s %d\n", "history.max_attempts:", resolved.MaxAttempts)
			fmt.Fprintf(out, "  %-24s %s\n", "history.retry_delay:", resolved.RetryDelay)

			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate a starter .autose.yaml file",
		Long:  "Create a commented .autose.yaml configuration file in the git repository root.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Write to git repo root (same location runtime loading uses)
			repoRoot, err := git.GetRoot()
			if err != nil {
				return fmt.Errorf("not in a git repository: %w", err)
			}
			configPath := filepath.Join(repoRoot, config.ConfigFileName)

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%s already exists; remove it first or edit it directly", configPath)
			}

			if err := os.WriteFile(configPath, []byte(config.StarterFile), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", configPath, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s with default settings (commented out).\n", configPath)
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and environment variables",
		Long:  "Load and validate the config file and environment variables, reporting any warnings or errors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !terminal.IsStdoutTTY() {
				terminal.DisableColors()
			}
			logger := terminal.NewLogger()
			var errors []string
			var warnings []string

			// Load and validate config file (don't early-return so env var issues are also reported)
			cfg := &config.Config{}
			result, err := config.LoadWithWarnings()
			if err != nil {
				errors = append(errors, fmt.Sprintf("config file: %v", err))
			}
			if result != nil {
				cfg = result.Config
				warnings = append(warnings, result.Warnings...)
			}

			// Unparseable env values are ignored at runtime but reported as
			// errors here.
			envState, envWarnings := config.LoadEnvState()
			errors = append(errors, envWarnings...)

			// A broken config file resolves to defaults so its errors are not
			// reported twice.
			resolved := config.Resolve(cfg, envState, config.FlagState{}, config.Defaults)
			errors = append(errors, resolved.ValidateAll()...)

			for _, w := range warnings {
				logger.Logf(terminal.StyleWarning, "Config: %s", w)
			}
			for _, e := range errors {
				logger.Logf(terminal.StyleError, "%s", e)
			}

			if len(errors) > 0 {
				return fmt.Errorf("configuration has %d error(s)", len(errors))
			}

			if len(warnings) > 0 {
				logger.Log("Configuration is valid (with warnings).", terminal.StyleSuccess)
			} else {
				logger.Log("Configuration is valid.", terminal.StyleSuccess)
			}

			return nil
		},
	}
}
