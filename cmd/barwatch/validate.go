package main

import (
	"fmt"
	"strings"

	"github.com/4thel00z/barwatch/internal"
	"github.com/spf13/cobra"
)

func NewValidateCmd(validate func() *internal.ValidateUseCase) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <text>",
		Short: "Check a caption against the posting rules",
		Long: `Apply the length, sentence, scaffold-label and date rules to a caption.
Exits non-zero when the caption would be rejected.`,
		Args: cobra.MinimumNArgs(1),
		RunE: makeValidateRunner(validate),
	}

	cmd.Flags().Bool("has-fact", false, "Allow dates backed by a sourced news fact")
	return cmd
}

func makeValidateRunner(validate func() *internal.ValidateUseCase) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		hasFact, _ := cmd.Flags().GetBool("has-fact")

		out, err := validate().Execute(cmd.Context(), internal.ValidateInput{
			Text:    strings.Join(args, " "),
			HasFact: hasFact,
			Scope:   stateHint(cmd),
		})
		if err != nil {
			return fmt.Errorf("validate: %w", err)
		}

		if wantJSON(cmd) {
			if err := writeJSON(cmd, out); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d chars, %d sentences)\n", out.Verdict, out.Length, out.Sentences)
			if out.Repaired != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "repaired: %s\n", out.Repaired)
			}
		}

		if !out.Verdict.OK {
			return fmt.Errorf("caption rejected: %s", out.Verdict.Reason)
		}
		return nil
	}
}
