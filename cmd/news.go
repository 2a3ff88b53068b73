package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/news"
	"github.com/bnema/chfctl/internal/ui/styles"
)

var (
	newsPage int
	newsJSON bool
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Show the latest Star Citizen comm-links",
	Long: `List comm-link transmissions from the RSI website.

Examples:
  chfctl news
  chfctl news --page 2
  chfctl news --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		items, err := news.NewFetcher(cfg.NewsURL, getLogger()).Fetch(ctx, newsPage)
		if err != nil {
			return err
		}

		if newsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		if len(items) == 0 {
			fmt.Println("No news found")
			return nil
		}
		fmt.Println(styles.Title.Render(news.Source))
		fmt.Println()
		for _, it := range items {
			fmt.Printf("%s %s\n", styles.Bullet, styles.CharacterName.Render(it.Title))
			if it.Description != "" {
				fmt.Printf("  %s\n", truncate(it.Description, 100))
			}
			fmt.Printf("  %s\n", styles.MutedText.Render(it.Link))
		}
		return nil
	},
}

func init() {
	newsCmd.Flags().IntVar(&newsPage, "page", 1, "Listing page (1-based)")
	newsCmd.Flags().BoolVar(&newsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(newsCmd)
}
