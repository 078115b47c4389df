package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoadCmd() *cobra.Command {
	var metaOnly bool

	cmd := &cobra.Command{
		Use:   "load <agent-id>",
		Short: "Load an agent's prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, root, err := startCore()
			if err != nil {
				return err
			}
			defer c.Stop()

			prompt, err := c.LoadAgent(cmd.Context(), args[0], root)
			if err != nil {
				return err
			}

			fmt.Printf("id: %s\n", prompt.ID)
			fmt.Printf("tier: %s\n", prompt.Metadata.Tier)
			fmt.Printf("source: %s\n", prompt.Metadata.SourcePath)
			fmt.Printf("content_hash: %s\n", prompt.ContentHash)
			if !metaOnly {
				fmt.Println()
				fmt.Println(prompt.Body)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&metaOnly, "meta", false, "print metadata only")
	return cmd
}
