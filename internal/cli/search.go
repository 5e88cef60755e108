package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memory-engine/internal/engine"
	"github.com/rcliao/memory-engine/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories",
		Long:  "Rank memories by meaning, keyword overlap, usage and recency. Falls back to text matching without embeddings. Every hit counts as an access.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringSlice("kind", nil, "Filter by kind (repeatable)")
	cmd.Flags().IntP("limit", "l", engine.DefaultSearchLimit, "Max results")
	cmd.Flags().StringP("scope", "s", "all", "Scope: profile, global or all")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	kinds, _ := cmd.Flags().GetStringSlice("kind")
	limit, _ := cmd.Flags().GetInt("limit")
	scope, _ := cmd.Flags().GetString("scope")
	query := strings.Join(args, " ")

	e, _ := openEngine(cmd)
	defer e.Close()

	p := engine.SearchParams{Query: query, Limit: limit, Scope: model.Scope(scope)}
	for _, k := range kinds {
		p.Kinds = append(p.Kinds, model.Kind(k))
	}
	res, err := e.Search(cmd.Context(), p)
	if err != nil {
		exitErr("search", err)
	}
	printJSON(cmd, res)
}
