package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memory-engine/internal/engine"
)

func init() {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Track a unit of work",
	}

	beginCmd := &cobra.Command{
		Use:   "begin [description]",
		Short: "Start a task session and show related memories and decisions",
		Args:  cobra.MinimumNArgs(1),
		Run:   runTaskBegin,
	}

	checkpointCmd := &cobra.Command{
		Use:   "checkpoint [note]",
		Short: "Log progress on the active task",
		Args:  cobra.MinimumNArgs(1),
		Run:   runTaskCheckpoint,
	}
	checkpointCmd.Flags().StringP("importance", "i", "normal", "Importance: low, normal, high, critical")
	checkpointCmd.Flags().String("phase", "", "Move the session to this phase")

	endCmd := &cobra.Command{
		Use:   "end [summary]",
		Short: "End the active task",
		Long:  "End the active task. Without --fulfilled the session stays open and the summary is reported as remaining work.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runTaskEnd,
	}
	endCmd.Flags().Bool("fulfilled", false, "The original request is fully satisfied")
	endCmd.Flags().Bool("verified", false, "The result was verified")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active task",
		Run:   runTaskStatus,
	}

	taskCmd.AddCommand(beginCmd, checkpointCmd, endCmd, statusCmd)
	RootCmd.AddCommand(taskCmd)
}

func runTaskBegin(cmd *cobra.Command, args []string) {
	e, _ := openEngine(cmd)
	defer e.Close()

	res, err := e.BeginTask(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		exitErr("begin", err)
	}
	printJSON(cmd, res)
}

func runTaskCheckpoint(cmd *cobra.Command, args []string) {
	importance, _ := cmd.Flags().GetString("importance")
	phase, _ := cmd.Flags().GetString("phase")

	e, _ := openEngine(cmd)
	defer e.Close()

	res, err := e.Checkpoint(cmd.Context(), engine.CheckpointParams{
		Note:       strings.Join(args, " "),
		Importance: importance,
		Phase:      phase,
	})
	if err != nil {
		exitErr("checkpoint", err)
	}
	printJSON(cmd, res)
}

func runTaskEnd(cmd *cobra.Command, args []string) {
	fulfilled, _ := cmd.Flags().GetBool("fulfilled")
	verified, _ := cmd.Flags().GetBool("verified")

	e, _ := openEngine(cmd)
	defer e.Close()

	res, err := e.EndTask(cmd.Context(), engine.EndParams{
		Summary:   strings.Join(args, " "),
		Fulfilled: fulfilled,
		Verified:  verified,
	})
	if err != nil {
		exitErr("end", err)
	}
	printJSON(cmd, res)
}

func runTaskStatus(cmd *cobra.Command, args []string) {
	e, _ := openEngine(cmd)
	defer e.Close()

	res, err := e.TaskStatus(cmd.Context())
	if err != nil {
		exitErr("status", err)
	}
	printJSON(cmd, res)
}
