package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/catalog"
	"github.com/bnema/chfctl/internal/characters"
	"github.com/bnema/chfctl/internal/installer"
	"github.com/bnema/chfctl/internal/transfer"
	"github.com/bnema/chfctl/internal/ui/progress"
	"github.com/bnema/chfctl/internal/ui/styles"
)

var (
	installPlain  bool
	installAuthor string
)

var errNoMatch = errors.New("no catalog character matches")

var installCmd = &cobra.Command{
	Use:     "install <name|url|file>",
	Aliases: []string{"i", "add"},
	Short:   "Install a character",
	Long: `Install a character into the CustomCharacters directory.

The argument is resolved in this order:
  - an existing local .chf file is copied in (renamed on collision)
  - an http(s) URL is downloaded directly
  - anything else is searched in the catalog (exact name first)

An existing file with the same name is snapshotted before it is replaced.

Examples:
  chfctl install "Zara Kiro"
  chfctl install "Zara" --author Kiro
  chfctl install https://example.com/files/zara.chf
  chfctl install ~/Downloads/zara.chf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]
		repo := getRepository()
		inst := getInstaller(repo)

		if info, err := os.Stat(target); err == nil && !info.IsDir() {
			filename, err := inst.InstallFromFile(target)
			if err != nil {
				return err
			}
			fmt.Println(styles.FormatSuccess("Installed " + filename))
			return nil
		}

		ctx, cancel := signalContext()
		defer cancel()

		var (
			resolved *characters.Character
			names    []string
			tasks    []progress.Task
		)

		isURL := strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
		if !isURL {
			client := getCatalogClient()
			names = append(names, "Searching catalog")
			tasks = append(tasks, func(ctx context.Context, _ transfer.Progress) error {
				c, err := searchCatalog(ctx, client, target, installAuthor)
				resolved = c
				return err
			})
		}

		names = append(names, "Downloading character")
		tasks = append(tasks, func(ctx context.Context, report transfer.Progress) error {
			inst.Progress = report
			if isURL {
				c, err := inst.InstallFromURL(ctx, target)
				resolved = c
				return err
			}
			return inst.Install(ctx, resolved)
		})

		title := "Installing " + target
		var err error
		if installPlain {
			err = runPlain(ctx, names, tasks)
		} else {
			err = progress.Run(ctx, title, names, tasks)
		}
		if err != nil {
			if k := installer.KindOf(err); k != 0 {
				getLogger().Debug("Install failed", "kind", k.String(), "error", err)
			}
			return err
		}

		if resolved != nil {
			fmt.Println(styles.FormatSuccess(fmt.Sprintf("Installed %s as %s", resolved.Name, resolved.LocalFilename)))
		}
		return nil
	},
}

// searchCatalog returns the catalog entry named name. An exact
// (case-insensitive) name match wins over the first search hit.
func searchCatalog(ctx context.Context, client *catalog.Client, name, author string) (*characters.Character, error) {
	hits, err := client.Page(ctx, 1, name)
	if err != nil {
		return nil, err
	}

	var candidates []characters.Character
	for _, h := range hits {
		if author == "" || strings.EqualFold(h.Author, author) {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w %q", errNoMatch, name)
	}
	for i := range candidates {
		if strings.EqualFold(strings.TrimSpace(candidates[i].Name), strings.TrimSpace(name)) {
			return &candidates[i], nil
		}
	}
	return &candidates[0], nil
}

// runPlain executes tasks with line-based output
func runPlain(ctx context.Context, names []string, tasks []progress.Task) error {
	for i, task := range tasks {
		progress.PrintInProgress(names[i])
		var last int64
		err := task(ctx, func(done, total int64) {
			if done-last >= 1024*1024 || (total > 0 && done == total) {
				last = done
				progress.PrintDetail(progress.FormatBytes(done))
			}
		})
		if err != nil {
			progress.PrintError(names[i] + ": " + err.Error())
			return err
		}
		progress.PrintComplete(names[i])
	}
	return nil
}

func init() {
	installCmd.Flags().BoolVar(&installPlain, "plain", false, "Plain line output instead of the progress view")
	installCmd.Flags().StringVar(&installAuthor, "author", "", "Only match catalog entries by this author")
	rootCmd.AddCommand(installCmd)
}
