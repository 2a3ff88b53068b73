package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/cloudsync"
	"github.com/bnema/chfctl/internal/ui/progress"
	"github.com/bnema/chfctl/internal/ui/styles"
)

var (
	syncInit    bool
	syncHistory int
)

var errNoSyncPath = errors.New("cloud_sync_path is not configured")

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror characters into the cloud sync folder",
	Long: `Copy every character and metadata file into cloud_sync_path. When the
folder is a git repository the changes are committed.

Examples:
  chfctl sync --init        # create the folder and a git repository
  chfctl sync
  chfctl sync --history 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getSyncer()
		if err != nil {
			return err
		}

		if syncHistory > 0 {
			lines, err := s.History(syncHistory)
			if err != nil {
				return err
			}
			for _, l := range lines {
				progress.PrintDetail(l)
			}
			return nil
		}

		if syncInit {
			if err := s.Init(); err != nil {
				return err
			}
			progress.PrintComplete("Sync repository ready at " + s.Dir())
		}

		res, err := s.Sync(cfg.GamePath)
		if err != nil {
			return err
		}
		printSyncResult(res)
		return nil
	},
}

func getSyncer() (*cloudsync.Syncer, error) {
	if cfg.CloudSyncPath == "" {
		return nil, errNoSyncPath
	}
	return cloudsync.New(cfg.CloudSyncPath, getLogger()), nil
}

func printSyncResult(res *cloudsync.Result) {
	msg := fmt.Sprintf("%d file(s) copied", res.Copied)
	if res.Committed {
		msg += ", committed " + res.Commit
	}
	fmt.Println(styles.FormatSuccess(msg))
}

func init() {
	syncCmd.Flags().BoolVar(&syncInit, "init", false, "Create the sync folder and initialise a git repository")
	syncCmd.Flags().IntVar(&syncHistory, "history", 0, "Show the last N sync commits instead of syncing")
	rootCmd.AddCommand(syncCmd)
}
