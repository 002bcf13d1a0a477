package main

import (
	"errors"
	"fmt"

	"github.com/4thel00z/barwatch/internal"
	"github.com/spf13/cobra"
)

func NewCommitCmd(commit func() *internal.CommitUseCase) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Snapshot the memory record",
		Long:  `Commit manual edits of memory.json to the history store.`,
		Args:  cobra.NoArgs,
		RunE:  makeCommitRunner(commit),
	}

	cmd.Flags().StringP("message", "m", "", "Commit message")
	return cmd
}

func makeCommitRunner(commit func() *internal.CommitUseCase) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		message, _ := cmd.Flags().GetString("message")

		out, err := commit().Execute(cmd.Context(), internal.CommitInput{
			Message: message, Scope: stateHint(cmd),
		})
		if errors.Is(err, internal.ErrNothingToCommit) {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to commit.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", shortHash(out.Hash), out.Message)
		return nil
	}
}
