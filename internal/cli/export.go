package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/memory-engine/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON",
		Long:  "Export memories as a JSON array. Vectors are not exported; import embeds again.",
		Run:   runExport,
	}

	cmd.Flags().StringP("scope", "s", "all", "Scope: profile, global or all")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	scope, _ := cmd.Flags().GetString("scope")

	e, _ := openEngine(cmd)
	defer e.Close()

	memories, err := e.Export(cmd.Context(), model.Scope(scope))
	if err != nil {
		exitErr("export", err)
	}
	printJSON(cmd, memories)
}
