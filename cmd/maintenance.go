package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/ui/progress"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Reconcile character files and metadata",
	Long: `Scan the character directory once and fix inconsistencies:
  - metadata without a .chf file is deleted
  - a .chf file without metadata gets a recovered sidecar

Running repair twice in a row changes nothing the second time.
Use "chfctl recover" to fetch real metadata from the catalog instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		progress.PrintTitle("Repairing Character Folder")

		result, err := getRepository().Repair()
		if err != nil {
			progress.PrintError(err.Error())
			return err
		}

		for _, f := range result.OrphanedMetadata {
			progress.PrintComplete("Removed orphan metadata " + f)
		}
		for _, f := range result.RecoveredMetadata {
			progress.PrintComplete("Recovered metadata for " + f)
		}
		for _, f := range result.Failures {
			progress.PrintError(f)
		}

		if result.IssuesFound() == 0 {
			progress.PrintSuccess(fmt.Sprintf("No issues found (%d files scanned)", result.TotalScanned))
			return nil
		}
		progress.PrintSummary("%d issue(s) handled, %d files scanned", result.IssuesFound(), result.TotalScanned)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check character files for empty or unreadable payloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, err := getRepository().ValidateIntegrity()
		if err != nil {
			return err
		}
		if len(issues) == 0 {
			progress.PrintSuccess("All character files look valid")
			return nil
		}
		for _, issue := range issues {
			progress.PrintError(issue.Filename + ": " + issue.Problem)
		}
		return fmt.Errorf("%d invalid file(s)", len(issues))
	},
}

var dedupeDelete bool

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find characters with identical content",
	Long: `Group .chf files by content hash. With --delete, the first file of
each group is kept and the others are removed with their metadata.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := getRepository()
		groups, err := repo.FindDuplicates()
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			progress.PrintSuccess("No duplicates found")
			return nil
		}

		for _, g := range groups {
			progress.PrintWarning(fmt.Sprintf("%d identical files", len(g.Files)))
			for i, f := range g.Files {
				if i == 0 {
					progress.PrintDetail(f + " (kept)")
				} else {
					progress.PrintDetail(f)
				}
			}
		}

		if !dedupeDelete {
			progress.PrintSummary("Run with --delete to remove the extra copies")
			return nil
		}
		removed, failed := repo.RemoveDuplicates(groups)
		progress.PrintSummary("%d removed, %d failed", removed, failed)
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Fetch missing metadata from the catalog",
	Long: `For every .chf file without metadata, search the catalog by the
file name and write the first hit's metadata as the sidecar.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		repo := getRepository()
		progress.PrintTitle("Recovering Metadata")
		progress.PrintInProgress("Searching catalog")

		result, err := getInstaller(repo).RecoverMetadata(ctx, getCatalogClient())
		if err != nil {
			progress.PrintError(err.Error())
			return err
		}

		for _, f := range result.Recovered {
			progress.PrintComplete("Recovered " + f)
		}
		for _, f := range result.NotFound {
			progress.PrintWarning("No catalog match for " + f)
		}
		for _, f := range result.Failures {
			progress.PrintError(f)
		}
		progress.PrintSummary("%d scanned, %d recovered, %d not found, %d failed",
			result.Scanned, len(result.Recovered), len(result.NotFound), len(result.Failures))
		return nil
	},
}

func init() {
	dedupeCmd.Flags().BoolVar(&dedupeDelete, "delete", false, "Remove duplicate copies")

	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(recoverCmd)
}
