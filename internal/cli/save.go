package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memory-engine/internal/engine"
	"github.com/rcliao/memory-engine/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "save [content]",
		Short: "Save a memory",
		Long:  "Save a memory. Content can be a positional arg or piped via stdin.",
		Run:   runSave,
	}

	cmd.Flags().String("title", "", "Short label (required)")
	cmd.Flags().StringP("kind", "k", "semantic", "Kind: semantic, procedural, episodic, skill")
	cmd.Flags().StringP("category", "c", "", "Free-form category")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags (default: derived from the text)")
	cmd.Flags().Float64("confidence", 1.0, "Confidence in [0,1]")
	cmd.Flags().StringP("scope", "s", "profile", "Scope: profile or global")

	cmd.MarkFlagRequired("title")

	RootCmd.AddCommand(cmd)
}

func runSave(cmd *cobra.Command, args []string) {
	title, _ := cmd.Flags().GetString("title")
	kind, _ := cmd.Flags().GetString("kind")
	category, _ := cmd.Flags().GetString("category")
	tags, _ := cmd.Flags().GetString("tags")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	scope, _ := cmd.Flags().GetString("scope")

	// Get content: positional arg first, then check stdin
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		content = readStdin(cmd)
	}
	if strings.TrimSpace(content) == "" {
		exitErr("save", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	e, _ := openEngine(cmd)
	defer e.Close()

	m, err := e.Save(cmd.Context(), engine.SaveParams{
		Kind:       model.Kind(kind),
		Category:   category,
		Title:      title,
		Content:    strings.TrimSpace(content),
		Tags:       splitList(tags),
		Confidence: &confidence,
		Scope:      model.Scope(scope),
	})
	if err != nil {
		exitErr("save", err)
	}
	printJSON(cmd, m)
}

func readStdin(cmd *cobra.Command) string {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return ""
		}
	}
	b, err := io.ReadAll(in)
	if err != nil {
		exitErr("read stdin", err)
	}
	return string(b)
}
