package main

import (
	"fmt"

	"github.com/4thel00z/barwatch/internal"
	"github.com/spf13/cobra"
)

func NewPostsCmd(posts func() *internal.PostsService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List recent posts from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("number")

			entries, err := posts().Recent(cmd.Context(), limit, stateHint(cmd))
			if err != nil {
				return fmt.Errorf("list posts: %w", err)
			}

			if wantJSON(cmd) {
				return writeJSON(cmd, entries)
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No posts yet.")
				return nil
			}

			for _, e := range entries {
				id := e.TweetID
				if e.DryRun {
					id = "dry-run"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s %-16s %s\n    %s\n",
					e.PostedAt.Format("2006-01-02 15:04"), e.Mode, e.Phase, id, e.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntP("number", "n", 20, "Limit number of posts")
	return cmd
}
