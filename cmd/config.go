package cmd

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/config"
	"github.com/bnema/chfctl/internal/ui/progress"
	"github.com/bnema/chfctl/internal/ui/styles"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the configuration",
	Long: `Show or change the configuration file.

Examples:
  chfctl config show
  chfctl config set-game-dir "~/Games/star-citizen/drive_c/.../CustomCharacters"
  chfctl config set-overlay false`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		progress.PrintDetail("Config file: " + paths.ConfigFile)
		progress.PrintDetail("Data dir:    " + paths.DataDir)
		progress.PrintDetail("Cache dir:   " + paths.CacheDir)
		progress.PrintNewline()
		return config.Write(os.Stdout, cfg)
	},
}

var configSetGameDirCmd = &cobra.Command{
	Use:   "set-game-dir <path>",
	Short: "Set the CustomCharacters directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ValidateGamePath(args[0]); err != nil {
			return err
		}
		cfg.GamePath = args[0]
		if err := config.Save(paths.ConfigFile, cfg); err != nil {
			return err
		}
		progress.PrintSuccess("Character directory set to " + args[0])
		return nil
	},
}

var configSetOverlayCmd = &cobra.Command{
	Use:   "set-overlay <true|false> [dir]",
	Short: "Toggle the stream overlay files",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := strconv.ParseBool(args[0])
		if err != nil {
			return err
		}
		cfg.OverlayEnabled = enabled
		if len(args) == 2 {
			cfg.OverlayPath = args[1]
		}
		if err := config.Save(paths.ConfigFile, cfg); err != nil {
			return err
		}
		state := "disabled"
		if enabled {
			state = "enabled (" + cfg.OverlayPath + ")"
		}
		progress.PrintSuccess("Overlay " + styles.Highlighted.Render(state))
		return nil
	},
}

var configSetSyncCmd = &cobra.Command{
	Use:   "set-sync-dir <path>",
	Short: "Set the cloud sync folder (empty string disables)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.CloudSyncPath = args[0]
		if err := config.Save(paths.ConfigFile, cfg); err != nil {
			return err
		}
		progress.PrintSuccess("Cloud sync folder set to " + orDash(args[0]))
		return nil
	},
}

var configSetPTUCmd = &cobra.Command{
	Use:   "set-ptu-dir <path>",
	Short: "Set an extra CustomCharacters folder for deploy-ptu (empty string disables)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] != "" {
			if err := config.ValidateGamePath(args[0]); err != nil {
				return err
			}
		}
		cfg.CustomPTUPath = args[0]
		if err := config.Save(paths.ConfigFile, cfg); err != nil {
			return err
		}
		progress.PrintSuccess("Custom PTU folder set to " + orDash(args[0]))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetGameDirCmd)
	configCmd.AddCommand(configSetOverlayCmd)
	configCmd.AddCommand(configSetSyncCmd)
	configCmd.AddCommand(configSetPTUCmd)
	rootCmd.AddCommand(configCmd)
}
