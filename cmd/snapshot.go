package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/characters"
	"github.com/bnema/chfctl/internal/ui/styles"
)

// ManualSnapshotReason labels snapshots taken on request
const ManualSnapshotReason = "Manual"

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Aliases: []string{"snap"},
	Short:   "Manage per-character snapshots",
	Long: `Snapshots are copies of a character file (and its metadata) taken
before it is replaced or removed. The newest 10 are kept per character.

Examples:
  chfctl snapshot list zara
  chfctl snapshot create zara
  chfctl snapshot restore zara              # newest snapshot
  chfctl snapshot restore zara --index 2    # third newest`,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list <file|name>",
	Short: "Show the snapshot history of a character",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stem := snapshotStem(args[0])
		history, err := getBackups().ListSnapshots(stem)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Printf("No snapshots for %s\n", stem)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "#\tTIMESTAMP\tREASON\tRESTORES TO")
		for i, e := range history {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, e.Timestamp, e.Reason, e.RestoreName())
		}
		return w.Flush()
	},
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create <file|name>",
	Short: "Snapshot an installed character now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := getRepository()
		c, err := findInstalled(repo, args[0])
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		name, err := getBackups().CreateSnapshot(repo.Path(c.LocalFilename), reason)
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess("Snapshot " + name + " created"))
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <file|name>",
	Short: "Restore a character from its snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, _ := cmd.Flags().GetInt("index")
		stem := snapshotStem(args[0])
		repo := getRepository()
		backups := getBackups()

		if err := repo.EnsureDir(); err != nil {
			return err
		}

		var (
			restored string
			err      error
		)
		if index == 0 {
			restored, err = backups.RestoreLatest(stem, repo.Dir())
		} else {
			history, herr := backups.ListSnapshots(stem)
			if herr != nil {
				return herr
			}
			if index < 0 || index >= len(history) {
				return fmt.Errorf("snapshot index %d out of range (0-%d)", index, len(history)-1)
			}
			restored, err = backups.RestoreSnapshot(stem, history[index], repo.Dir())
		}
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess("Restored " + restored))
		return nil
	},
}

// snapshotStem maps a filename, stem or installed name to the snapshot folder
func snapshotStem(arg string) string {
	if c, err := findInstalled(getRepository(), arg); err == nil {
		return characters.Stem(c.LocalFilename)
	}
	return characters.Stem(arg)
}

func init() {
	snapshotCreateCmd.Flags().String("reason", ManualSnapshotReason, "Reason recorded in the history")
	snapshotRestoreCmd.Flags().Int("index", 0, "History position to restore (0 is newest)")

	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	rootCmd.AddCommand(snapshotCmd)
}
