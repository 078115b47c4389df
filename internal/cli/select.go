package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"agentdir/internal/selector"
)

func newSelectCmd() *cobra.Command {
	var (
		capabilities []string
		specialized  []string
		explicit     string
	)

	cmd := &cobra.Command{
		Use:   "select <task description>",
		Short: "Select the best agent for a task description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, root, err := startCore()
			if err != nil {
				return err
			}
			defer c.Stop()

			hints := &selector.Hints{
				AgentID:              explicit,
				RequiredCapabilities: capabilities,
				Specializations:      specialized,
			}
			outcome, prompt, err := c.SelectAgent(cmd.Context(), strings.Join(args, " "), root, hints)
			if err != nil {
				return err
			}

			if outcome.FallbackUsed {
				fmt.Println("no agent matched; caller decides fallback")
				return nil
			}

			fmt.Printf("chosen: %s (score %.2f)\n", outcome.Chosen, outcome.Score)
			if len(outcome.MatchedKeywords) > 0 {
				fmt.Printf("keywords: %s\n", strings.Join(outcome.MatchedKeywords, ", "))
			}
			if len(outcome.MatchedCapabilities) > 0 {
				fmt.Printf("capabilities: %s\n", strings.Join(outcome.MatchedCapabilities, ", "))
			}
			fmt.Printf("source: %s\n", prompt.Metadata.SourcePath)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&capabilities, "capability", nil, "required capability tag (repeatable)")
	cmd.Flags().StringSliceVar(&specialized, "specialization", nil, "specialization hint (repeatable)")
	cmd.Flags().StringVar(&explicit, "agent", "", "explicit agent id override")
	return cmd
}
