package main

import (
	"errors"
	"fmt"

	"github.com/4thel00z/barwatch/internal"
	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("health check failed")

func NewHealthCmd(health func() *internal.HealthService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check credentials and state before a scheduled run",
		Long: `Report missing credentials, provider and calendar problems.
With --verify the Twitter credentials are checked against the API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verify, _ := cmd.Flags().GetBool("verify")

			checks, err := health().Check(cmd.Context(), verify, stateHint(cmd))
			if err != nil {
				return fmt.Errorf("health: %w", err)
			}

			if wantJSON(cmd) {
				if err := writeJSON(cmd, checks); err != nil {
					return err
				}
			} else {
				for _, c := range checks {
					mark := "ok  "
					if !c.OK {
						mark = "FAIL"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s", mark, c.Name)
					if c.Detail != "" {
						fmt.Fprintf(cmd.OutOrStdout(), ": %s", c.Detail)
					}
					fmt.Fprintln(cmd.OutOrStdout())
				}
			}

			if !internal.Healthy(checks) {
				return errUnhealthy
			}
			return nil
		},
	}

	cmd.Flags().Bool("verify", false, "Call the Twitter API to verify credentials")
	return cmd
}
