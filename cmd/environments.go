package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/ui/progress"
)

var deployPTUList bool

var deployPTUCmd = &cobra.Command{
	Use:   "deploy-ptu",
	Short: "Copy characters to the PTU, EPTU and TECH-PREVIEW clients",
	Long: `Copy every character and its metadata from the configured folder into
the test clients installed next to it (StarCitizen/PTU, EPTU,
TECH-PREVIEW), plus custom_ptu_path when set.

Examples:
  chfctl deploy-ptu --list    # show the folders that would receive copies
  chfctl deploy-ptu`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := getRepository()

		if deployPTUList {
			envs := repo.Environments(cfg.CustomPTUPath)
			if len(envs) == 0 {
				fmt.Println("No PTU/EPTU/TECH-PREVIEW installation found")
				return nil
			}
			for _, env := range envs {
				fmt.Printf("%-14s %s\n", env.Name, env.Dir)
			}
			return nil
		}

		progress.PrintTitle("Deploying to test environments")
		res, err := repo.MirrorToEnvironments(cfg.CustomPTUPath)
		if err != nil {
			return err
		}
		if len(res.Environments) == 0 {
			progress.PrintWarning("No PTU/EPTU/TECH-PREVIEW installation found")
			return nil
		}
		for _, env := range res.Environments {
			progress.PrintComplete(env.Name)
			progress.PrintDetail(env.Dir)
		}
		for _, f := range res.Failures {
			progress.PrintError(f)
		}
		progress.PrintSummary("%d character(s) copied to %d environment(s)", res.Copied, len(res.Environments))
		if len(res.Failures) > 0 {
			return fmt.Errorf("%d file(s) could not be copied", len(res.Failures))
		}
		return nil
	},
}

func init() {
	deployPTUCmd.Flags().BoolVar(&deployPTUList, "list", false, "Only list the target folders")
	rootCmd.AddCommand(deployPTUCmd)
}
