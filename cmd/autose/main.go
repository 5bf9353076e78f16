// Package main provides the CLI entry point for autose.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/richhaase/autose/internal/api"
	"github.com/richhaase/autose/internal/domain"
	"github.com/richhaase/autose/internal/terminal"
)

var (
	apiURL    string
	apiKey    string
	outputDir string
	verbose   bool
	plain     bool
	noConfig  bool
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := terminal.NewLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr)
			logger.Log("Interrupted, shutting down...", terminal.StyleWarning)
			cancel()
		case <-ctx.Done():
		}
	}()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Check if this is an exit code wrapper (not a real error)
		var exitErr exitCodeError
		if errors.As(err, &exitErr) {
			return exitErr.code.Int()
		}
		if ctx.Err() != nil {
			return domain.ExitInterrupted.Int()
		}
		logger.Logf(terminal.StyleError, "Error: %v", err)
		return domain.ExitError.Int()
	}
	return domain.ExitSuccess.Int()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "autose",
		Short: "Submit code-review and change-generation tasks to the autose backend",
		Long: `Submit lint, dev and cover tasks to the autose backend, follow their
progress as it streams in, and download the resulting patches.

Exit codes:
  0 - Success (a task that is not done yet also exits 0)
  1 - Error
  130 - Interrupted`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       buildVersionString(),
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	// Defaults are resolved via config.Resolve with precedence: flag > env > config > default
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&apiURL, "api-url", api.DefaultBaseURL,
		"Backend URL (env: API_URL)")
	flags.StringVar(&apiKey, "api-key", "unknown",
		"API key sent with every request (env: API_KEY)")
	flags.StringVarP(&outputDir, "output-dir", "o", ".",
		"Directory where <task-id>.diff patches are saved (env: AUTOSE_OUTPUT_DIR)")
	flags.BoolVarP(&verbose, "verbose", "v", false,
		"Print diagnostic logs (same as AUTOSE_LOG_LEVEL=debug)")
	flags.BoolVar(&plain, "plain", false,
		"Disable colors and Markdown styling")
	flags.BoolVar(&noConfig, "no-config", false,
		"Skip loading .autose.yaml config file")

	rootCmd.AddCommand(
		newDevCmd(),
		newFollowCmd(),
		newDownloadPatchCmd(),
		newLintCmd(),
		newTopicsCmd(),
		newConfigCmd(),
	)

	setGroupedUsage(rootCmd)
	return rootCmd
}
