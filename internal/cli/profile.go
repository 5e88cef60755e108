package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the current profile and every known profile",
		Run:   runProfile,
	}

	RootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) {
	e, _ := openEngine(cmd)
	defer e.Close()

	info, err := e.ProfileInfo(cmd.Context())
	if err != nil {
		exitErr("profile", err)
	}
	printJSON(cmd, info)
}
