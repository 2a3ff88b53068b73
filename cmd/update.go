package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/transfer"
	"github.com/bnema/chfctl/internal/ui/progress"
	"github.com/bnema/chfctl/internal/ui/styles"
	"github.com/bnema/chfctl/internal/updater"
)

var updateCheckOnly bool

var updateCmd = &cobra.Command{
	Use:     "self-update",
	Aliases: []string{"upgrade"},
	Short:   "Update chfctl to the latest release",
	Long: `Check update_manifest_url for a newer release, then download it,
verify its SHA-256 and replace the running binary.

Examples:
  chfctl self-update --check
  chfctl self-update`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		u := updater.New(cfg.UpdateManifestURL, version, getLogger())
		res, err := u.Check(ctx)
		if err != nil {
			return err
		}
		if !res.Available {
			fmt.Println(styles.FormatSuccess("chfctl " + res.Current + " is up to date"))
			return nil
		}

		fmt.Printf("Update available: %s %s %s\n", res.Current, styles.Arrow, res.Manifest.LatestVersion)
		for _, line := range res.Manifest.Changelog {
			progress.PrintDetail(line)
		}
		if updateCheckOnly {
			return nil
		}

		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate executable: %w", err)
		}

		err = progress.Run(ctx, "Updating chfctl",
			[]string{"Downloading " + res.Manifest.LatestVersion},
			[]progress.Task{func(ctx context.Context, report transfer.Progress) error {
				return u.Apply(ctx, res.Manifest, exe, report)
			}},
		)
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess("Updated to " + res.Manifest.LatestVersion))
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateCheckOnly, "check", false, "Only report whether an update exists")
	rootCmd.AddCommand(updateCmd)
}
