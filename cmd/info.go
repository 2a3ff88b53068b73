package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/characters"
	"github.com/bnema/chfctl/internal/ui/styles"
)

var infoCmd = &cobra.Command{
	Use:   "info <file|name>",
	Short: "Show details of an installed character",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := getRepository()
		c, err := findInstalled(repo, args[0])
		if err != nil {
			return err
		}

		fmt.Println(styles.CharacterName.Render(c.Name))
		fmt.Println()
		fmt.Printf("File:        %s\n", repo.Path(c.LocalFilename))
		fmt.Printf("Author:      %s\n", orDash(c.Author))
		if len(c.Tags) > 0 {
			fmt.Printf("Tags:        %s\n", strings.Join(c.Tags, ", "))
		}
		if c.Downloads > 0 || c.Likes > 0 {
			fmt.Printf("Downloads:   %d\n", c.Downloads)
			fmt.Printf("Likes:       %d\n", c.Likes)
		}
		if !c.InstalledAt.IsZero() {
			fmt.Printf("Installed:   %s\n", c.InstalledAt.Format("2006-01-02 15:04"))
		}
		if c.URLDetail != "" {
			fmt.Printf("Page:        %s\n", c.URLDetail)
		}
		if c.DownloadURL != "" {
			fmt.Printf("Source:      %s\n", c.DownloadURL)
		}
		if c.ImageURL != "" {
			fmt.Printf("Image:       %s\n", c.ImageURL)
		}
		if in := getCollections().CollectionsContaining(c.Name); len(in) > 0 {
			fmt.Printf("Collections: %s\n", strings.Join(in, ", "))
		}
		if history, err := getBackups().ListSnapshots(characters.Stem(c.LocalFilename)); err == nil && len(history) > 0 {
			fmt.Printf("Snapshots:   %d (latest %s, %s)\n", len(history), history[0].Timestamp, history[0].Reason)
		}
		if c.Description != "" {
			fmt.Printf("\n%s\n", c.Description)
		}
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <file|name>",
	Short: "Edit the metadata of an installed character",
	Long: `Edit the metadata sidecar of an installed character. Only the
flags given are changed; other keys in the sidecar are kept.

Examples:
  chfctl edit zara --name "Zara Kiro" --tags pilot,outlaw
  chfctl edit zara --description ""`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := getRepository()
		c, err := findInstalled(repo, args[0])
		if err != nil {
			return err
		}

		var u characters.MetadataUpdate
		flags := cmd.Flags()
		if flags.Changed("name") {
			v, _ := flags.GetString("name")
			u.Name = &v
		}
		if flags.Changed("author") {
			v, _ := flags.GetString("author")
			u.Author = &v
		}
		if flags.Changed("description") {
			v, _ := flags.GetString("description")
			u.Description = &v
		}
		if flags.Changed("tags") {
			v, _ := flags.GetStringSlice("tags")
			u.Tags = v
			if u.Tags == nil {
				u.Tags = []string{}
			}
		}
		if u.Name == nil && u.Author == nil && u.Description == nil && u.Tags == nil {
			return fmt.Errorf("nothing to change: use --name, --author, --description or --tags")
		}

		if err := repo.UpdateMetadata(c.LocalFilename, u); err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess("Metadata updated for " + c.LocalFilename))
		return nil
	},
}

var thumbnailCmd = &cobra.Command{
	Use:   "thumbnail <file|name> <image>",
	Short: "Set a custom thumbnail (PNG or JPEG)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := getRepository()
		c, err := findInstalled(repo, args[0])
		if err != nil {
			return err
		}
		dst, err := repo.SaveThumbnail(c.LocalFilename, args[1])
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess("Thumbnail saved to " + dst))
		return nil
	},
}

func init() {
	editCmd.Flags().String("name", "", "Display name")
	editCmd.Flags().String("author", "", "Author")
	editCmd.Flags().String("description", "", "Description")
	editCmd.Flags().StringSlice("tags", nil, "Comma-separated tags (replaces existing)")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(thumbnailCmd)
}
