package main

import (
	"fmt"

	"github.com/4thel00z/barwatch/internal"
	"github.com/spf13/cobra"
)

func NewNewsCmd(news func() *internal.NewsService) *cobra.Command {
	return &cobra.Command{
		Use:   "news",
		Short: "Gather news without posting",
		Long:  `Run the news search and the headline scraper and print what a run would see.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := news().Gather(cmd.Context(), stateHint(cmd))
			if err != nil {
				return fmt.Errorf("gather news: %w", err)
			}

			if wantJSON(cmd) {
				return writeJSON(cmd, r)
			}

			out := cmd.OutOrStdout()
			if r.Breaking != "" {
				fmt.Fprintf(out, "BREAKING: %s\n\n", r.Breaking)
			}

			fmt.Fprintf(out, "Facts (%d):\n", len(r.Search.Facts))
			for _, f := range r.Search.Facts {
				fmt.Fprintf(out, "  - [%s] %s (%s)\n", f.Type, f.Text, f.Source)
			}

			printList(cmd, "Search headlines", r.Search.Headlines)
			fmt.Fprintf(out, "Scraped %d/%d sources\n", r.Scrape.SuccessfulSources, r.Scrape.TotalSources)
			printList(cmd, "Keyword matches", r.Matches.Matches)
			return nil
		},
	}
}
