package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memory-engine/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "decisions [query]",
		Short: "Search decisions, newest first",
		Long:  "Search decisions by text in the decision and its context. Without a query, list the most recent.",
		Run:   runDecisions,
	}
	cmd.Flags().IntP("limit", "l", engine.DefaultDecisionLimit, "Max results")

	logCmd := &cobra.Command{
		Use:   "log [decision]",
		Short: "Record a decision",
		Args:  cobra.MinimumNArgs(1),
		Run:   runDecisionLog,
	}
	logCmd.Flags().String("context", "", "What prompted the decision")
	logCmd.Flags().String("rationale", "", "Why this option won")
	logCmd.Flags().StringP("alternatives", "a", "", "Comma-separated rejected alternatives")

	cmd.AddCommand(logCmd)
	RootCmd.AddCommand(cmd)
}

func runDecisions(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	e, _ := openEngine(cmd)
	defer e.Close()

	found, err := e.SearchDecisions(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		exitErr("decisions", err)
	}
	printJSON(cmd, found)
}

func runDecisionLog(cmd *cobra.Command, args []string) {
	why, _ := cmd.Flags().GetString("context")
	rationale, _ := cmd.Flags().GetString("rationale")
	alternatives, _ := cmd.Flags().GetString("alternatives")

	e, _ := openEngine(cmd)
	defer e.Close()

	d, err := e.LogDecision(cmd.Context(), engine.DecisionParams{
		Decision:     strings.Join(args, " "),
		Context:      why,
		Rationale:    rationale,
		Alternatives: splitList(alternatives),
	})
	if err != nil {
		exitErr("log decision", err)
	}
	printJSON(cmd, d)
}
