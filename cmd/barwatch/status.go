package main

import (
	"fmt"

	"github.com/4thel00z/barwatch/internal"
	"github.com/spf13/cobra"
)

func NewStatusCmd(status func() *internal.StatusService) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show exam phase, memory and last post",
		Args:  cobra.NoArgs,
		RunE:  makeStatusRunner(status),
	}
}

func makeStatusRunner(status func() *internal.StatusService) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		r, err := status().Status(cmd.Context(), stateHint(cmd))
		if err != nil {
			return fmt.Errorf("get status: %w", err)
		}

		if wantJSON(cmd) {
			return writeJSON(cmd, r)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "State:    %s\n", r.Scope)
		fmt.Fprintf(out, "Mode:     %s", r.Mode)
		if r.DryRun {
			fmt.Fprint(out, " (dry run)")
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Provider: %s\n", orNone(r.Provider))
		fmt.Fprintf(out, "Images:   %s\n", r.ImageSource)
		fmt.Fprintf(out, "Phase:    %s\n", r.Phase)

		switch r.Phase {
		case internal.PhaseCountdown, internal.PhaseExamWeek:
			fmt.Fprintf(out, "          %d days until the exam\n", r.DaysUntilExam)
		case internal.PhaseResultsPending:
			fmt.Fprintf(out, "          %d weeks since the exam, %d days until results\n", r.WeeksSinceExam, r.DaysUntilResults)
		}

		fmt.Fprintf(out, "Memory:   %d captions, %d images, last structure %s\n",
			r.RecentCaptions, r.UsedImages, orNone(r.LastStructure))

		if r.LastPost != nil {
			id := r.LastPost.TweetID
			if r.LastPost.DryRun {
				id = "dry run"
			}
			fmt.Fprintf(out, "Last post: %s (%s)\n    %s\n",
				r.LastPost.PostedAt.Format("2006-01-02 15:04"), id, r.LastPost.Text)
		}
		return nil
	}
}
