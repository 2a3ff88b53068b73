package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/ui/progress"
	"github.com/bnema/chfctl/internal/watcher"
)

var (
	watchSync       bool
	watchAutoBackup bool
	watchDebounce   time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the character folder for changes",
	Long: `Report character files as they appear, change or disappear in the
character folder until interrupted.

Examples:
  chfctl watch
  chfctl watch --sync             # mirror to cloud_sync_path on change
  chfctl watch --auto-backup      # rotating zip backup on change`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchSync && cfg.CloudSyncPath == "" {
			return errNoSyncPath
		}

		ctx, cancel := signalContext()
		defer cancel()

		w := watcher.New(cfg.GamePath, watchDebounce, getLogger())
		progress.PrintTitle("Watching " + cfg.GamePath)

		return w.Run(ctx, func(files []string) {
			progress.PrintInProgress("Changed: " + strings.Join(files, ", "))
			if watchAutoBackup {
				if path, err := getBackups().AutoBackup(cfg.GamePath); err != nil {
					progress.PrintError("Backup failed: " + err.Error())
				} else {
					progress.PrintComplete("Backup written to " + path)
				}
			}
			if watchSync {
				s, _ := getSyncer()
				if res, err := s.Sync(cfg.GamePath); err != nil {
					progress.PrintError("Sync failed: " + err.Error())
				} else {
					printSyncResult(res)
				}
			}
		})
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchSync, "sync", false, "Mirror to the cloud sync folder after each change")
	watchCmd.Flags().BoolVar(&watchAutoBackup, "auto-backup", false, "Write a rotating backup after each change")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "Quiet period before reporting a burst of changes")
	rootCmd.AddCommand(watchCmd)
}
