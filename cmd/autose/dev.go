package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/richhaase/autose/internal/domain"
	"github.com/richhaase/autose/internal/task"
)

func newDevCmd() *cobra.Command {
	var (
		followID string
		patchID  string
		model    string
	)

	cmd := &cobra.Command{
		Use:   "dev [description-file]",
		Short: "Submit a dev or cover task and wait for its patch",
		Long: `Submit the task described by a YAML file, follow its history while the
backend works on it, then save the resulting patch as <task-id>.diff.

A description with a "description" field is a dev task; one with
"source_file" and "test_file" is a cover task.

  repo: git@example.com:team/service.git
  token: <repository access token>
  description: add retries to the payment client

Use --follow or --patch to attach to a task that was submitted earlier.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if followID == "" && patchID == "" && len(args) == 0 {
				return cmd.Help()
			}

			state, values := commonFlagState(cmd)
			state.DevModelSet = cmd.Flags().Changed("model")
			values.DevModel = model

			a, err := newApp(cmd, state, values)
			if err != nil {
				return err
			}

			switch {
			case patchID != "":
				return a.finish(a.tasks.DownloadPatchAny(a.ctx, patchID))
			case followID != "":
				return a.finish(a.tasks.FollowAny(a.ctx, followID))
			}

			desc, err := task.LoadDescription(a.fs, args[0])
			if err != nil {
				return err
			}
			return a.finish(a.tasks.SubmitAndWait(a.ctx, desc, a.cfg.DevModel))
		},
	}

	cmd.Flags().StringVarP(&followID, "follow", "f", "", "Follow the history of an existing task")
	cmd.Flags().StringVarP(&patchID, "patch", "p", "", "Download the patch of an existing task")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model for dev tasks: "+strings.Join(domain.DevModels, ", ")+" (env: AUTOSE_DEV_MODEL)")
	cmd.MarkFlagsMutuallyExclusive("follow", "patch")

	return cmd
}
