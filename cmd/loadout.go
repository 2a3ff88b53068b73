package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/collections"
	"github.com/bnema/chfctl/internal/ui/progress"
	"github.com/bnema/chfctl/internal/ui/styles"
)

var loadoutCmd = &cobra.Command{
	Use:   "loadout",
	Short: "Deploy, export and import collections",
	Long: `A loadout is a collection made active: its characters stay in the
character folder and every other character is moved into per-collection
storage folders.

Examples:
  chfctl loadout deploy Pirates
  chfctl loadout export Pirates pirates.scpack
  chfctl loadout import ~/Downloads/pirates.scpack`,
}

var loadoutDeployCmd = &cobra.Command{
	Use:   "deploy <collection>",
	Short: "Make a collection the active set of characters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := getRepository()
		d := getDeployer(repo, getCollections())

		progress.PrintTitle("Deploying " + args[0])
		deployed, stored, err := d.Deploy(args[0])
		if err != nil {
			return err
		}
		progress.PrintComplete(fmt.Sprintf("%d character(s) moved to storage", stored))
		progress.PrintComplete(fmt.Sprintf("%d character(s) deployed", deployed))
		progress.PrintNewline()
		progress.PrintSuccess("Loadout " + args[0] + " is active")
		return nil
	},
}

var loadoutExportCmd = &cobra.Command{
	Use:   "export <collection> [file]",
	Short: "Write a collection pack (" + collections.PackExt + ")",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := args[0] + collections.PackExt
		if len(args) == 2 {
			out = args[1]
		}

		repo := getRepository()
		count, err := getDeployer(repo, getCollections()).Export(args[0], out)
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("%d file(s) exported to %s", count, out)))
		return nil
	},
}

var loadoutImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Install the characters of a collection pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := getRepository()
		if err := repo.EnsureDir(); err != nil {
			return err
		}
		res, err := getDeployer(repo, getCollections()).Import(args[0])
		if err != nil {
			return err
		}

		fmt.Println(styles.FormatSuccess(fmt.Sprintf("%d character(s) imported (%d files)", res.Characters, res.Files)))
		if res.Collection != "" {
			progress.PrintDetail("Collection: " + res.Collection)
		}
		return nil
	},
}

func init() {
	loadoutCmd.AddCommand(loadoutDeployCmd)
	loadoutCmd.AddCommand(loadoutExportCmd)
	loadoutCmd.AddCommand(loadoutImportCmd)
	rootCmd.AddCommand(loadoutCmd)
}
