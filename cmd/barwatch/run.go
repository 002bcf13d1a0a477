package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/4thel00z/barwatch/internal"
	"github.com/spf13/cobra"
)

func NewRunCmd(run func() *internal.RunUseCase) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one bot cycle",
		Long: `Gather news, decide what to say, pick an image and post it.
With --dry-run nothing is sent; the tweet and the memory changes are printed.`,
		Args: cobra.NoArgs,
		RunE: makeRunRunner(run),
	}

	cmd.Flags().Bool("dry-run", false, "Do not post, print what would be posted")
	cmd.Flags().String("mode", "", "Content mode (llm|bank), overrides config")
	cmd.Flags().String("phase", "", "Force a tweet bank phase")
	cmd.Flags().Bool("no-image", false, "Post text only")
	return cmd
}

func makeRunRunner(run func() *internal.RunUseCase) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		mode, _ := cmd.Flags().GetString("mode")
		phase, _ := cmd.Flags().GetString("phase")
		noImage, _ := cmd.Flags().GetBool("no-image")

		if mode != "" && mode != internal.ModeLLM && mode != internal.ModeBank {
			return fmt.Errorf("unknown mode %q (llm|bank)", mode)
		}
		if err := checkPhase(phase); err != nil {
			return err
		}

		report, err := run().Execute(cmd.Context(), internal.RunCommandInput{
			Scope:     stateHint(cmd),
			Mode:      mode,
			Phase:     internal.Phase(phase),
			DryRun:    dryRun,
			SkipImage: noImage,
		})
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}

		if wantJSON(cmd) {
			return writeJSON(cmd, report)
		}
		printRunReport(cmd, report)
		return nil
	}
}

func checkPhase(phase string) error {
	if phase == "" || slices.Contains(internal.Phases, internal.Phase(phase)) {
		return nil
	}

	names := make([]string, len(internal.Phases))
	for i, p := range internal.Phases {
		names[i] = string(p)
	}
	return fmt.Errorf("unknown phase %q (%s)", phase, strings.Join(names, "|"))
}

func printRunReport(cmd *cobra.Command, r *internal.RunReport) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "run %s (%s", r.RunID, r.Mode)
	if r.Phase != "" {
		fmt.Fprintf(out, ", phase %s", r.Phase)
	}
	if r.Breaking {
		fmt.Fprint(out, ", breaking news")
	}
	fmt.Fprintln(out, ")")

	if r.Skipped {
		status := ""
		if r.Analysis != nil {
			status = string(r.Analysis.Status)
		}
		fmt.Fprintf(out, "Nothing to post (status %s)\n", status)
		return
	}

	fmt.Fprintf(out, "\n    %s\n\n", r.Text)
	if r.MediaPath != "" {
		fmt.Fprintf(out, "Image: %s\n", r.MediaPath)
	}

	switch {
	case r.Post == nil:
	case r.Post.DryRun:
		fmt.Fprintln(out, "Dry run, nothing posted.")
	default:
		fmt.Fprintf(out, "Posted %s\n", r.Post.ID)
	}

	if r.MemoryDiff != "" {
		fmt.Fprintf(out, "\nMemory changes:\n%s", r.MemoryDiff)
	}
}
