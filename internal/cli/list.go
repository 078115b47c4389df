package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var showShadowed bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents visible from the current root",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, root, err := startCore()
			if err != nil {
				return err
			}
			defer c.Stop()

			view, err := c.ListAgents(cmd.Context(), root)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIER\tCAPABILITIES\tSOURCE")
			for _, id := range view.AgentIDs() {
				meta := view.Winners[id]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, meta.Tier, joinList(meta.Capabilities), meta.SourcePath)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if showShadowed && len(view.Shadowed) > 0 {
				fmt.Println()
				fmt.Println("Shadowed sources:")
				ids := make([]string, 0, len(view.Shadowed))
				for id := range view.Shadowed {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					for _, src := range view.Shadowed[id] {
						fmt.Printf("  %s\t%s\t%s\n", id, src.Tier, src.Path)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showShadowed, "shadowed", false, "also print shadowed sources")
	return cmd
}

func joinList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	out := items[0]
	for _, s := range items[1:] {
		out += "," + s
	}
	return out
}
