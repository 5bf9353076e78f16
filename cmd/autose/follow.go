package main

import (
	"github.com/spf13/cobra"
)

func newFollowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow <task-id>",
		Short: "Stream the history of a task",
		Long: `Stream the history of a dev or cover task until the backend closes it.
Lost connections are retried; when retries run out the task keeps running
on the backend and can be followed again later.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, values := commonFlagState(cmd)
			a, err := newApp(cmd, state, values)
			if err != nil {
				return err
			}
			return a.finish(a.tasks.FollowAny(a.ctx, args[0]))
		},
	}
}

func newDownloadPatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download-patch <task-id>",
		Short: "Save the patch of a finished task",
		Long: `Save the patch of a finished task as <task-id>.diff in the output
directory. A task that is still running is reported and nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, values := commonFlagState(cmd)
			a, err := newApp(cmd, state, values)
			if err != nil {
				return err
			}
			return a.finish(a.tasks.DownloadPatchAny(a.ctx, args[0]))
		},
	}
}
