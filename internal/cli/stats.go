package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print cache and reporter statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, root, err := startCore()
			if err != nil {
				return err
			}
			defer c.Stop()

			// Warm the view so the numbers reflect a real discovery pass.
			if _, err := c.ListAgents(cmd.Context(), root); err != nil {
				return err
			}

			out, err := json.MarshalIndent(c.Stats(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
