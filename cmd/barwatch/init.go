package main

import (
	"fmt"

	"github.com/4thel00z/barwatch/internal"
	"github.com/spf13/cobra"
)

func NewInitCmd(initUC func() *internal.InitUseCase) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a state directory",
		Long: `Create a .barwatch directory holding config.yaml, an empty memory record,
the memes folder and the history store.`,
		RunE: makeInitRunner(initUC),
	}

	cmd.Flags().Bool("global", false, "Initialize global state (~/.barwatch)")
	cmd.Flags().Bool("force", false, "Recreate missing pieces of an existing state directory")
	return cmd
}

func makeInitRunner(initUC func() *internal.InitUseCase) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		isGlobal, _ := cmd.Flags().GetBool("global")
		force, _ := cmd.Flags().GetBool("force")

		hint := stateHint(cmd)
		if isGlobal {
			hint = "global"
		}

		out, err := initUC().Execute(cmd.Context(), internal.InitInput{Scope: hint, Force: force})
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		if !out.Created {
			return fmt.Errorf("already initialized at %s (use --force to repair)", out.Path)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Initialized barwatch state at %s\n", out.Path)
		return nil
	}
}
