package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/backup"
	"github.com/bnema/chfctl/internal/ui/progress"
	"github.com/bnema/chfctl/internal/ui/styles"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Full zip backups of the character folder",
	Long: `Create and restore zip archives of every character file and its
metadata.

Examples:
  chfctl backup create ~/chf-backup.zip
  chfctl backup restore ~/chf-backup.zip
  chfctl backup auto          # rotating automatic backup (keeps 5)
  chfctl backup list`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create [zip]",
	Short: "Write a full backup archive",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backups := getBackups()
		zipPath := filepath.Join(backups.Dir(), "Backup_"+time.Now().Format(backup.TimestampFormat)+".zip")
		if len(args) == 1 {
			zipPath = args[0]
		}

		count, err := backups.CreateFullBackup(cfg.GamePath, zipPath)
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("%d file(s) archived to %s", count, zipPath)))
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <zip>",
	Short: "Extract a backup archive into the character folder",
	Long: `Extract a backup archive into the character folder. Existing files
with the same name are overwritten; entries with unsafe paths are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force && !confirm(fmt.Sprintf("Restore %s into %s, overwriting files with the same name?", args[0], cfg.GamePath)) {
			fmt.Println("Cancelled.")
			return nil
		}

		repo := getRepository()
		if err := repo.EnsureDir(); err != nil {
			return err
		}
		count, err := getBackups().RestoreFullBackup(args[0], repo.Dir())
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("%d file(s) restored", count)))
		return nil
	},
}

var backupAutoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Write a rotating automatic backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := getBackups().AutoBackup(cfg.GamePath)
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess("Automatic backup written to " + path))
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List automatic backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := getBackups().ListAutoBackups()
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Println("No automatic backups")
			return nil
		}
		for _, p := range paths {
			progress.PrintDetail(p)
		}
		return nil
	},
}

func init() {
	backupRestoreCmd.Flags().BoolP("force", "f", false, "Skip confirmation prompt")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupAutoCmd)
	backupCmd.AddCommand(backupListCmd)
	rootCmd.AddCommand(backupCmd)
}
