package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/richhaase/autose/internal/api"
	"github.com/richhaase/autose/internal/domain"
	"github.com/richhaase/autose/internal/git"
	"github.com/richhaase/autose/internal/terminal"
)

func newLintCmd() *cobra.Command {
	var (
		diffMode bool
		model    string
	)

	cmd := &cobra.Command{
		Use:   "lint [file]",
		Short: "Review a file or the uncommitted changes of a repository",
		Long: `Send code to the backend for review and print the risks it reports.

Without --diff-mode the whole file is reviewed. With --diff-mode the
uncommitted changes (git diff HEAD) are reviewed, limited to [file] when
one is given. The repository name is sent as the review topic.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var file string
			if len(args) == 1 {
				file = args[0]
			}
			if !diffMode && file == "" {
				return errors.New("you should provide a file name to lint, or use --diff-mode")
			}

			state, values := commonFlagState(cmd)
			state.LintModelSet = cmd.Flags().Changed("model")
			values.LintModel = model

			a, err := newApp(cmd, state, values)
			if err != nil {
				return err
			}

			topic, code, err := lintInput(a, diffMode, file)
			if err != nil {
				return err
			}
			if code == "" {
				a.log.Log("No changes to lint.", terminal.StyleInfo)
				return nil
			}

			return a.finish(a.tasks.Lint(a.ctx, api.LintRequest{
				Code:  code,
				Topic: topic,
				Model: a.cfg.LintModel,
			}))
		},
	}

	cmd.Flags().BoolVar(&diffMode, "diff-mode", false, "Lint uncommitted changes instead of a whole file")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model for lint requests: "+strings.Join(domain.LintModels, ", ")+" (env: AUTOSE_LINT_MODEL)")

	return cmd
}

// lintInput returns the review topic and the code to send.
func lintInput(a *app, diffMode bool, file string) (string, string, error) {
	if diffMode {
		topic, err := git.GetProjectName(a.ctx, "")
		if err != nil {
			return "", "", fmt.Errorf("diff mode is only supported inside a git repository: %w", err)
		}
		diff, err := git.GetDiff(a.ctx, "", file)
		if err != nil {
			return "", "", err
		}
		return topic, diff, nil
	}

	// Outside a repository the topic is left empty.
	topic, _ := git.GetProjectName(a.ctx, "")
	data, err := afero.ReadFile(a.fs, file)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", file, err)
	}
	return topic, string(data), nil
}

func newTopicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List the lint topics the backend supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, values := commonFlagState(cmd)
			a, err := newApp(cmd, state, values)
			if err != nil {
				return err
			}
			return a.finish(a.tasks.Topics(a.ctx))
		},
	}
}
