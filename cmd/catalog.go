package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/catalog"
	"github.com/bnema/chfctl/internal/characters"
	catalogui "github.com/bnema/chfctl/internal/ui/catalog"
	"github.com/bnema/chfctl/internal/ui/progress"
	"github.com/bnema/chfctl/internal/ui/styles"
)

var catalogCmd = &cobra.Command{
	Use:     "catalog",
	Aliases: []string{"browse", "explore"},
	Short:   "Browse the community character catalog",
	Long: `Browse characters published on the community catalog.

A full sync is cached locally for 24 hours. New characters are marked
[NEW] for 7 days after publication.

Examples:
  chfctl catalog                       # Interactive TUI
  chfctl catalog --refresh             # Force a full sync first
  chfctl catalog list --search zara    # Search one page, plain text
  chfctl catalog list --json           # Cached catalog as JSON
  chfctl catalog sync                  # Refresh the cache`,
	RunE: func(cmd *cobra.Command, args []string) error {
		refresh, _ := cmd.Flags().GetBool("refresh")

		ctx, cancel := signalContext()
		defer cancel()

		repo := getRepository()
		model := catalogui.NewBrowserModel(ctx, getCatalogCache(), getCatalogClient(), repo, getInstaller(repo), refresh)
		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running TUI: %w", err)
		}
		return nil
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog characters (non-interactive)",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		page, _ := cmd.Flags().GetInt("page")
		refresh, _ := cmd.Flags().GetBool("refresh")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		sortBy, _ := cmd.Flags().GetString("sort")

		ctx, cancel := signalContext()
		defer cancel()

		client := getCatalogClient()
		cache := getCatalogCache()

		var entries []characters.Character
		if search != "" || page > 0 {
			if page <= 0 {
				page = 1
			}
			var err error
			entries, err = client.Page(ctx, page, search)
			if err != nil {
				return err
			}
		} else {
			var err error
			entries, err = cache.Get(ctx, client, refresh, nil)
			if err != nil {
				return err
			}
		}

		if installed, err := getRepository().List(); err == nil {
			characters.MarkInstalled(entries, installed)
		}
		order, err := parseSortOrder(sortBy)
		if err != nil {
			return err
		}
		characters.Sort(entries, order)

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		return outputCatalogTable(entries, cache.Info(), search == "" && page == 0)
	},
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the whole catalog into the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		progress.PrintTitle("Syncing Catalog")
		start := time.Now()

		entries, err := getCatalogCache().Get(ctx, getCatalogClient(), true, func(first, last int) {
			progress.PrintDetail(fmt.Sprintf("Fetching pages %d-%d", first, last))
		})
		if err != nil {
			progress.PrintError(err.Error())
			return err
		}
		if ctx.Err() != nil {
			progress.PrintWarning("Sync interrupted, partial catalog kept")
		}
		progress.PrintSuccess(fmt.Sprintf("%d characters cached in %s", len(entries), time.Since(start).Round(time.Second)))
		return nil
	},
}

func parseSortOrder(s string) (characters.SortOrder, error) {
	switch s {
	case "", "name":
		return characters.SortByName, nil
	case "downloads":
		return characters.SortByDownloads, nil
	case "likes":
		return characters.SortByLikes, nil
	case "recent":
		return characters.SortByRecent, nil
	}
	return 0, fmt.Errorf("unknown sort order %q (name, downloads, likes, recent)", s)
}

// outputCatalogTable prints entries as an aligned table
func outputCatalogTable(entries []characters.Character, info catalog.Info, fromCache bool) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "NAME\tAUTHOR\tDOWNLOADS\tLIKES\tSTATUS")
	_, _ = fmt.Fprintln(w, "----\t------\t---------\t-----\t------")

	newCount := 0
	for i := range entries {
		c := &entries[i]
		status := ""
		if c.IsNew() {
			status = "NEW"
			newCount++
		}
		if c.IsInstalled() {
			if status != "" {
				status += ", "
			}
			status += "installed"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncate(c.Name, 40),
			truncate(c.Author, 24),
			strconv.Itoa(c.Downloads),
			strconv.Itoa(c.Likes),
			status,
		)
	}
	_ = w.Flush()

	fmt.Println()
	summary := fmt.Sprintf("Total: %d characters", len(entries))
	if newCount > 0 {
		summary += fmt.Sprintf(" (%d new)", newCount)
	}
	fmt.Println(summary)

	if fromCache && info.IsStale {
		days := int(info.Age.Hours() / 24)
		fmt.Println(styles.FormatWarning(fmt.Sprintf("Cache is %d day(s) old. Use --refresh to update.", days)))
	}
	return nil
}

func init() {
	catalogCmd.Flags().BoolP("refresh", "r", false, "Force a full catalog sync")

	catalogListCmd.Flags().StringP("search", "s", "", "Search term (queries the catalog directly)")
	catalogListCmd.Flags().IntP("page", "p", 0, "Fetch a single page instead of the cached catalog")
	catalogListCmd.Flags().BoolP("refresh", "r", false, "Force a full catalog sync")
	catalogListCmd.Flags().Bool("json", false, "Output as JSON")
	catalogListCmd.Flags().String("sort", "name", "Sort by name, downloads, likes or recent")

	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogSyncCmd)
	rootCmd.AddCommand(catalogCmd)
}
