package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/characters"
	"github.com/bnema/chfctl/internal/ui/library"
	"github.com/bnema/chfctl/internal/ui/styles"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed characters",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		sortBy, _ := cmd.Flags().GetString("sort")

		repo := getRepository()
		installed, err := repo.List()
		if err != nil {
			return fmt.Errorf("failed to list characters: %w", err)
		}
		order, err := parseSortOrder(sortBy)
		if err != nil {
			return err
		}
		characters.Sort(installed, order)

		if jsonOutput {
			type row struct {
				characters.Character
				File        string `json:"file"`
				InstalledAt string `json:"installed_at,omitempty"`
			}
			rows := make([]row, len(installed))
			for i, c := range installed {
				rows[i] = row{Character: c, File: c.LocalFilename}
				if !c.InstalledAt.IsZero() {
					rows[i].InstalledAt = c.InstalledAt.Format("2006-01-02T15:04:05Z07:00")
				}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		if len(installed) == 0 {
			fmt.Println("No characters installed")
			fmt.Println("\nInstall one with: chfctl install <name|url|file>")
			return nil
		}

		collections := getCollections()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			styles.Title.Render("NAME"),
			styles.Title.Render("FILE"),
			styles.Title.Render("AUTHOR"),
			styles.Title.Render("INSTALLED"),
			styles.Title.Render("COLLECTIONS"),
		)
		for _, c := range installed {
			installedAt := "-"
			if !c.InstalledAt.IsZero() {
				installedAt = c.InstalledAt.Format("2006-01-02")
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				truncate(c.Name, 36),
				c.LocalFilename,
				orDash(c.Author),
				installedAt,
				orDash(strings.Join(collections.CollectionsContaining(c.Name), ", ")),
			)
		}
		_ = w.Flush()

		fmt.Printf("\n%d character(s) installed\n", len(installed))
		fmt.Printf("Character directory: %s\n", repo.Dir())
		return nil
	},
}

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage installed characters interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		repo := getRepository()
		if err := repo.EnsureDir(); err != nil {
			return err
		}
		model := library.NewModel(ctx, repo, getInstaller(repo), getBackups())
		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running TUI: %w", err)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("json", false, "Output as JSON")
	listCmd.Flags().String("sort", "name", "Sort by name, downloads, likes or recent")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(libraryCmd)
}
