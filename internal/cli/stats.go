package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/memory-engine/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory statistics",
		Run:   runStats,
	}

	cmd.Flags().StringP("scope", "s", "all", "Scope: profile, global or all")

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	scope, _ := cmd.Flags().GetString("scope")

	e, _ := openEngine(cmd)
	defer e.Close()

	stats, err := e.Stats(cmd.Context(), model.Scope(scope))
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(cmd, stats)
}
