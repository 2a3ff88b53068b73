package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/logger"
	"github.com/bnema/chfctl/internal/ui/progress"
)

var (
	cleanAll   bool
	cleanForce bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove cached data (keeps characters)",
	Long: `Remove the catalog cache and the log file.

With --all the data directory (snapshots, backups and collections) is
removed too. Characters in the game folder are never touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cleanAll {
			progress.PrintTitle("Full Clean")
			progress.PrintWarning("Removing snapshots, backups and collections")
			if !cleanForce && !confirm("Remove " + paths.DataDir + "?") {
				fmt.Println("Cancelled.")
				return nil
			}
		} else {
			progress.PrintTitle("Cleaning Cache")
		}

		// the log file lives in the cache directory
		logger.Close()

		progress.PrintInProgress("Removing cache")
		if err := os.RemoveAll(paths.CacheDir); err != nil {
			progress.PrintError("Failed to clean: " + err.Error())
			return err
		}
		progress.PrintComplete("Cache directory removed")

		if cleanAll {
			if err := os.RemoveAll(paths.DataDir); err != nil {
				progress.PrintError("Failed to clean: " + err.Error())
				return err
			}
			progress.PrintComplete("Data directory removed")
		}

		progress.PrintDetail("Characters preserved at: " + cfg.GamePath)
		progress.PrintNewline()
		progress.PrintSuccess("Clean complete")
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVarP(&cleanAll, "all", "a", false, "Also remove snapshots, backups and collections")
	cleanCmd.Flags().BoolVarP(&cleanForce, "force", "f", false, "Skip confirmation prompt")
	rootCmd.AddCommand(cleanCmd)
}
