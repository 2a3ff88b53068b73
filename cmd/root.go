package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/config"
	"github.com/bnema/chfctl/internal/logger"
	"github.com/bnema/chfctl/internal/ui/styles"
)

// Version info set via ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
)

var (
	verbose bool
	gameDir string

	cfg   *config.Config
	paths config.Paths
)

var rootCmd = &cobra.Command{
	Use:     "chfctl",
	Short:   "Star Citizen custom character manager",
	Version: version + " (" + commit + ")",
	Long: `A Go CLI tool to browse, install and manage Star Citizen custom
characters (.chf files) on Linux.

Quick start:
  chfctl catalog          Browse the community catalog
  chfctl install <name>   Install a character from the catalog
  chfctl list             Show installed characters`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		paths = config.ResolvePaths()
		if err := logger.Init(paths.CacheDir, verbose); err != nil {
			return err
		}

		c, err := config.Load(paths.ConfigFile, getLogger())
		if err != nil {
			return err
		}
		if gameDir != "" {
			c.GamePath = gameDir
		}
		cfg = c
		getLogger().Debug("Configuration loaded", "config", paths.ConfigFile, "game_path", cfg.GamePath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString(styles.FormatError(err.Error()) + "\n")
		logger.Close()
		os.Exit(1)
	}
}

// getLogger returns the logger built by the persistent pre-run
func getLogger() *log.Logger {
	return logger.Log
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringVar(&gameDir, "game-dir", "", "CustomCharacters directory (overrides config)")
}
