package main

import (
	"fmt"

	"github.com/4thel00z/barwatch/internal"
	"github.com/spf13/cobra"
)

func NewBankCmd(bank func() *internal.BankService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Preview today's tweet bank pick",
		Long: `Print the tweet the bank would post today, for the calendar phase or
a forced one, followed by the size of every phase pool.`,
		Args: cobra.NoArgs,
		RunE: makeBankRunner(bank),
	}

	cmd.Flags().String("phase", "", "Phase to pick from instead of the calendar one")
	return cmd
}

func makeBankRunner(bank func() *internal.BankService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		phase, _ := cmd.Flags().GetString("phase")
		if err := checkPhase(phase); err != nil {
			return err
		}
		hint := stateHint(cmd)

		picked, err := bank().Preview(internal.Phase(phase), hint)
		if err != nil {
			return fmt.Errorf("preview: %w", err)
		}
		sizes, err := bank().PoolSizes(hint)
		if err != nil {
			return fmt.Errorf("pool sizes: %w", err)
		}

		if wantJSON(cmd) {
			return writeJSON(cmd, map[string]any{
				"tweet": picked,
				"pools": sizes,
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "[%s]\n    %s\n\nPools:\n", picked.Phase, picked.Text)
		for _, p := range internal.Phases {
			fmt.Fprintf(out, "  %-16s %d\n", p, sizes[p])
		}
		return nil
	}
}
