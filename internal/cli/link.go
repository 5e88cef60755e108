package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/memory-engine/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "link <source> [target]",
		Short: "Create, list or remove links between memories",
		Long:  "With a target, create (or with --rm remove) the link source -> target. With only a source, list its incoming and outgoing links.",
		Args:  cobra.RangeArgs(1, 2),
		Run:   runLink,
	}

	cmd.Flags().StringP("rel", "r", engine.DefaultRelationship, "Relationship: related_to, depends_on, supersedes, example_of")
	cmd.Flags().Bool("rm", false, "Remove the link")

	RootCmd.AddCommand(cmd)
}

func runLink(cmd *cobra.Command, args []string) {
	rel, _ := cmd.Flags().GetString("rel")
	rm, _ := cmd.Flags().GetBool("rm")

	e, _ := openEngine(cmd)
	defer e.Close()
	ctx := cmd.Context()

	if len(args) == 1 {
		if rm {
			exitErr("link", fmt.Errorf("--rm needs a target"))
		}
		n, err := e.Links(ctx, args[0])
		if err != nil {
			exitErr("link", err)
		}
		printJSON(cmd, n)
		return
	}

	if rm {
		if err := e.Unlink(ctx, args[0], args[1]); err != nil {
			exitErr("unlink", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"source":%q,"target":%q}`+"\n", args[0], args[1])
		return
	}

	l, err := e.Link(ctx, args[0], args[1], rel)
	if err != nil {
		exitErr("link", err)
	}
	printJSON(cmd, l)
}
