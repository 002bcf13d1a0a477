package main

import (
	"fmt"

	"github.com/4thel00z/barwatch/internal"
	"github.com/spf13/cobra"
)

func NewRevertCmd(hist func() *internal.HistoryService) *cobra.Command {
	return &cobra.Command{
		Use:   "revert <ref>",
		Short: "Restore the memory record from a commit",
		Long:  `Reset memory.json and the history to a previous commit. Later commits are dropped.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := hist().Revert(cmd.Context(), args[0], stateHint(cmd)); err != nil {
				return fmt.Errorf("revert: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Memory restored to %s\n", shortHash(args[0]))
			return nil
		},
	}
}
