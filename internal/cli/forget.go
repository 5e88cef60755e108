package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "forget <id>",
		Short: "Delete a memory and its links",
		Args:  cobra.ExactArgs(1),
		Run:   runForget,
	}

	cmd.Flags().StringP("reason", "r", "", "Why the memory is no longer true")

	RootCmd.AddCommand(cmd)
}

func runForget(cmd *cobra.Command, args []string) {
	reason, _ := cmd.Flags().GetString("reason")

	e, _ := openEngine(cmd)
	defer e.Close()

	res, err := e.Forget(cmd.Context(), args[0], reason)
	if err != nil {
		exitErr("forget", err)
	}
	printJSON(cmd, res)
}
