package main

import (
	"fmt"

	"github.com/4thel00z/barwatch/internal"
	"github.com/spf13/cobra"
)

func NewLogCmd(logUC func() *internal.LogUseCase) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show memory history",
		Long:  `Show the commits of the memory record, newest first.`,
		RunE:  makeLogRunner(logUC),
	}

	cmd.Flags().IntP("number", "n", 10, "Limit number of commits")
	cmd.Flags().Bool("oneline", false, "Show each commit on one line")
	return cmd
}

func makeLogRunner(logUC func() *internal.LogUseCase) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("number")
		oneline, _ := cmd.Flags().GetBool("oneline")

		out, err := logUC().Execute(cmd.Context(), internal.LogInput{
			Limit: limit, Scope: stateHint(cmd),
		})
		if err != nil {
			return fmt.Errorf("get log: %w", err)
		}

		if wantJSON(cmd) {
			return outputCommitsJSON(cmd, out.Commits)
		}

		for _, c := range out.Commits {
			if oneline {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", shortHash(c.Hash), c.Message)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "commit %s\n", c.Hash)
				fmt.Fprintf(cmd.OutOrStdout(), "Date:   %s\n\n", c.Timestamp.Format("Mon Jan 2 15:04:05 2006 -0700"))
				fmt.Fprintf(cmd.OutOrStdout(), "    %s\n\n", c.Message)
			}
		}
		return nil
	}
}

func outputCommitsJSON(cmd *cobra.Command, commits []internal.CommitOutput) error {
	out := make([]map[string]any, 0, len(commits))
	for _, c := range commits {
		out = append(out, map[string]any{
			"hash":      c.Hash,
			"message":   c.Message,
			"timestamp": c.Timestamp,
		})
	}
	return writeJSON(cmd, out)
}
