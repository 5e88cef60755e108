package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/memory-engine/internal/engine"
	"github.com/rcliao/memory-engine/internal/model"
)

func init() {
	maintainCmd := &cobra.Command{
		Use:   "maintain",
		Short: "Find duplicates, merge them and prune stale memories",
		Long:  "Maintenance commands preview by default. Pass --apply to change anything.",
	}

	similarCmd := &cobra.Command{
		Use:   "similar <id>",
		Short: "List the memories most similar to one memory",
		Args:  cobra.ExactArgs(1),
		Run:   runSimilar,
	}
	similarCmd.Flags().IntP("limit", "l", engine.DefaultSimilarLimit, "Max results")

	mergeCmd := &cobra.Command{
		Use:   "merge <id>",
		Short: "Fold near-duplicates into a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runMerge,
	}
	mergeCmd.Flags().Float64("threshold", engine.DefaultMergeThreshold, "Similarity threshold in (0,1]")
	mergeCmd.Flags().Bool("apply", false, "Delete the duplicates")

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove memories that were never accessed",
		Run:   runPrune,
	}
	pruneCmd.Flags().Int("days", engine.DefaultPruneDays, "Minimum age in days")
	pruneCmd.Flags().StringP("scope", "s", "profile", "Scope: profile, global or all")
	pruneCmd.Flags().Bool("apply", false, "Delete the candidates")

	maintainCmd.AddCommand(similarCmd, mergeCmd, pruneCmd)
	RootCmd.AddCommand(maintainCmd)
}

func runSimilar(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	e, _ := openEngine(cmd)
	defer e.Close()

	res, err := e.FindSimilar(cmd.Context(), args[0], limit)
	if err != nil {
		exitErr("similar", err)
	}
	printJSON(cmd, res)
}

func runMerge(cmd *cobra.Command, args []string) {
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	apply, _ := cmd.Flags().GetBool("apply")

	e, _ := openEngine(cmd)
	defer e.Close()

	res, err := e.Merge(cmd.Context(), args[0], engine.MergeParams{Threshold: threshold, DryRun: !apply})
	if err != nil {
		exitErr("merge", err)
	}
	printJSON(cmd, res)
}

func runPrune(cmd *cobra.Command, args []string) {
	days, _ := cmd.Flags().GetInt("days")
	scope, _ := cmd.Flags().GetString("scope")
	apply, _ := cmd.Flags().GetBool("apply")

	e, _ := openEngine(cmd)
	defer e.Close()

	res, err := e.Prune(cmd.Context(), engine.PruneParams{Days: days, Scope: model.Scope(scope), DryRun: !apply})
	if err != nil {
		exitErr("prune", err)
	}
	printJSON(cmd, res)
}
