package main

import (
	"fmt"
	"strings"

	"github.com/4thel00z/barwatch/internal"
	"github.com/spf13/cobra"
)

func NewMemoryCmd(
	mem func() *internal.MemoryService,
	hist func() *internal.HistoryService,
) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect the anti-repetition memory",
		Long:  `Show, check against, diff and reset the record of recent captions, images, metaphors and structures.`,
	}

	cmd.AddCommand(
		newMemoryShowCmd(mem),
		newMemoryCheckCmd(mem),
		newMemoryDiffCmd(hist),
		newMemoryResetCmd(mem),
	)

	return cmd
}

func newMemoryShowCmd(mem func() *internal.MemoryService) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the memory record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			record, err := mem().Show(stateHint(cmd))
			if err != nil {
				return fmt.Errorf("show memory: %w", err)
			}

			if wantJSON(cmd) {
				return writeJSON(cmd, record)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Last structure: %s\n", orNone(record.LastStructure))
			printList(cmd, "Recent captions", record.RecentCaptions)
			printList(cmd, "Used images", record.UsedImages)
			printList(cmd, "Metaphors", record.MetaphorsUsed)
			printList(cmd, "Hashtag combos", record.HashtagCombos)
			return nil
		},
	}
}

func newMemoryCheckCmd(mem func() *internal.MemoryService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <caption>",
		Short: "Report how a caption would repeat recent posts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			structure, _ := cmd.Flags().GetString("structure")
			metaphor, _ := cmd.Flags().GetString("metaphor")
			hashtags, _ := cmd.Flags().GetString("hashtags")
			image, _ := cmd.Flags().GetString("image")

			report, err := mem().Check(strings.Join(args, " "), internal.CaptionMeta{
				Structure:    structure,
				Metaphor:     metaphor,
				HashtagCombo: hashtags,
				ImageID:      image,
			}, stateHint(cmd))
			if err != nil {
				return fmt.Errorf("check memory: %w", err)
			}

			if wantJSON(cmd) {
				return writeJSON(cmd, report)
			}

			if !report.IsRepetitive {
				fmt.Fprintln(cmd.OutOrStdout(), "No repetition.")
				return nil
			}
			for _, issue := range report.Issues {
				fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", issue)
			}
			return nil
		},
	}

	cmd.Flags().String("structure", "", "Caption structure")
	cmd.Flags().String("metaphor", "", "Metaphor used")
	cmd.Flags().String("hashtags", "", "Hashtag combo")
	cmd.Flags().String("image", "", "Image identifier")
	return cmd
}

func newMemoryDiffCmd(hist func() *internal.HistoryService) *cobra.Command {
	return &cobra.Command{
		Use:   "diff [ref]",
		Short: "Show memory changes",
		Long:  `Show uncommitted memory changes, or the changes since a specific commit.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := ""
			if len(args) > 0 {
				ref = args[0]
			}

			diff, err := hist().Diff(cmd.Context(), ref, stateHint(cmd))
			if err != nil {
				return fmt.Errorf("get diff: %w", err)
			}

			if diff == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes.")
				return nil
			}

			fmt.Fprint(cmd.OutOrStdout(), diff)
			return nil
		},
	}
}

func newMemoryResetCmd(mem func() *internal.MemoryService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the memory record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return fmt.Errorf("refusing to reset memory without --yes")
			}

			if err := mem().Reset(cmd.Context(), stateHint(cmd)); err != nil {
				return fmt.Errorf("reset memory: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Memory reset.")
			return nil
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "Confirm the reset")
	return cmd
}

func printList(cmd *cobra.Command, title string, items []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%d):\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(out, "  - %s\n", item)
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
