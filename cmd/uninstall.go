package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/ui/styles"
)

var (
	uninstallForce    bool
	uninstallNoBackup bool
)

var uninstallCmd = &cobra.Command{
	Use:     "uninstall <file|name>",
	Aliases: []string{"rm", "remove"},
	Short:   "Remove an installed character",
	Long: `Remove a character file together with its metadata and thumbnail.

By default a snapshot is taken first, so the character can be restored
with "chfctl snapshot restore".

Examples:
  chfctl uninstall zara.chf
  chfctl uninstall "Zara Kiro" --force
  chfctl uninstall zara --no-backup`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := getRepository()
		c, err := findInstalled(repo, args[0])
		if err != nil {
			return err
		}

		if !uninstallForce {
			fmt.Printf("Remove character %s?\n", styles.Highlighted.Render(c.Name))
			fmt.Printf("  File: %s\n", repo.Path(c.LocalFilename))
			if uninstallNoBackup {
				fmt.Println(styles.FormatWarning("No snapshot will be created!"))
			} else {
				fmt.Println("  A snapshot will be created.")
			}
			fmt.Println()
			if !confirm("Confirm?") {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		name := c.Name
		removed, err := getInstaller(repo).Uninstall(c, !uninstallNoBackup)
		if err != nil {
			return fmt.Errorf("failed to uninstall: %w", err)
		}
		if !removed {
			fmt.Println(styles.FormatWarning(name + " was not found on disk"))
			return nil
		}

		if uninstallNoBackup {
			fmt.Println(styles.FormatSuccess(name + " removed"))
		} else {
			fmt.Println(styles.FormatSuccess(name + " removed (snapshot created)"))
		}
		return nil
	},
}

func init() {
	uninstallCmd.Flags().BoolVarP(&uninstallForce, "force", "f", false, "Skip confirmation prompt")
	uninstallCmd.Flags().BoolVar(&uninstallNoBackup, "no-backup", false, "Skip the snapshot")
	rootCmd.AddCommand(uninstallCmd)
}
