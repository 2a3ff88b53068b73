package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bnema/chfctl/internal/ui/styles"
)

var collectionCmd = &cobra.Command{
	Use:     "collection",
	Aliases: []string{"col"},
	Short:   "Group characters into named collections",
	Long: `Collections are named lists of character names, used by
"chfctl loadout" to decide which characters are active.

Examples:
  chfctl collection create Pirates
  chfctl collection add Pirates "Zara Kiro" "Nova Prime"
  chfctl collection show Pirates
  chfctl collection rename Pirates Outlaws`,
}

var collectionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		summaries := getCollections().Summaries()
		if len(summaries) == 0 {
			fmt.Println("No collections")
			fmt.Println("\nCreate one with: chfctl collection create <name>")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "COLLECTION\tCHARACTERS")
		for _, s := range summaries {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", s.Name, s.Members)
		}
		return w.Flush()
	},
}

var collectionShowCmd = &cobra.Command{
	Use:   "show <collection>",
	Short: "List the characters of a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		members, ok := getCollections().Members(args[0])
		if !ok {
			return fmt.Errorf("collection %q not found", args[0])
		}
		fmt.Println(styles.Title.Render(args[0]))
		if len(members) == 0 {
			fmt.Println("\n(empty)")
			return nil
		}

		installed := map[string]bool{}
		if list, err := getRepository().List(); err == nil {
			for _, c := range list {
				installed[strings.ToLower(c.Name)] = true
			}
		}
		fmt.Println()
		for _, m := range members {
			if installed[strings.ToLower(m)] {
				fmt.Printf("  %s %s\n", styles.CheckMark, m)
			} else {
				fmt.Printf("  %s %s %s\n", styles.Bullet, m, styles.MutedText.Render("(not in character folder)"))
			}
		}
		return nil
	},
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create <collection>",
	Short: "Create an empty collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		created, err := getCollections().Create(args[0])
		if err != nil {
			return err
		}
		if !created {
			fmt.Println(styles.FormatWarning("Collection " + args[0] + " already exists"))
			return nil
		}
		fmt.Println(styles.FormatSuccess("Collection " + args[0] + " created"))
		return nil
	},
}

var collectionDeleteCmd = &cobra.Command{
	Use:   "delete <collection>",
	Short: "Delete a collection (characters are kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deleted, err := getCollections().Delete(args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("collection %q not found", args[0])
		}
		fmt.Println(styles.FormatSuccess("Collection " + args[0] + " deleted"))
		return nil
	},
}

var collectionRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		renamed, err := getCollections().Rename(args[0], args[1])
		if err != nil {
			return err
		}
		if !renamed {
			return fmt.Errorf("cannot rename %q to %q (missing source or name taken)", args[0], args[1])
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Collection %s renamed to %s", args[0], args[1])))
		return nil
	},
}

var collectionAddCmd = &cobra.Command{
	Use:   "add <collection> <character>...",
	Short: "Add characters to a collection",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := getCollections()
		repo := getRepository()
		for _, item := range args[1:] {
			// installed characters are stored under their display name
			if c, err := findInstalled(repo, item); err == nil {
				item = c.Name
			}
			if err := m.AddMember(args[0], item); err != nil {
				return err
			}
			fmt.Println(styles.FormatSuccess(fmt.Sprintf("%s added to %s", item, args[0])))
		}
		return nil
	},
}

var collectionRemoveCmd = &cobra.Command{
	Use:   "remove <collection> <character>...",
	Short: "Remove characters from a collection",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := getCollections()
		for _, item := range args[1:] {
			if err := m.RemoveMember(args[0], item); err != nil {
				return err
			}
			fmt.Println(styles.FormatSuccess(fmt.Sprintf("%s removed from %s", item, args[0])))
		}
		return nil
	},
}

func init() {
	collectionCmd.AddCommand(collectionListCmd)
	collectionCmd.AddCommand(collectionShowCmd)
	collectionCmd.AddCommand(collectionCreateCmd)
	collectionCmd.AddCommand(collectionDeleteCmd)
	collectionCmd.AddCommand(collectionRenameCmd)
	collectionCmd.AddCommand(collectionAddCmd)
	collectionCmd.AddCommand(collectionRemoveCmd)
	rootCmd.AddCommand(collectionCmd)
}
