// Package cli implements the memory-engine CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memory-engine/internal/config"
	"github.com/rcliao/memory-engine/internal/embedding"
	"github.com/rcliao/memory-engine/internal/engine"
	"github.com/rcliao/memory-engine/internal/logging"
	"github.com/rcliao/memory-engine/internal/profile"
)

var (
	homeFlag    string
	profileFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memory-engine",
	Short: "Persistent memory for coding agents",
	Long:  "Per-project memory with semantic search, task sessions and a decision log. Serves MCP over stdio; every tool is also a command.",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "Data directory (default: $MEMORY_ENGINE_HOME or ~/.memory-engine)")
	RootCmd.PersistentFlags().StringVarP(&profileFlag, "profile", "p", "", "Profile name (default: $MEMORY_ENGINE_PROFILE or detected from the working directory)")
}

func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.LoadHome(homeFlag)
	if err != nil {
		exitErr("load config", err)
	}
	logging.Init(cfg.Log, cmd.ErrOrStderr())
	if err := cfg.EnsureDirectories(); err != nil {
		exitErr("create data dir", err)
	}
	return cfg
}

func resolveProfile(cfg *config.Config) profile.Profile {
	r := profile.NewResolver(cfg.Markers)
	if profileFlag != "" {
		r.Getenv = func(key string) string {
			if key == profile.EnvVar {
				return profileFlag
			}
			return os.Getenv(key)
		}
	}
	return r.Resolve()
}

func openEngine(cmd *cobra.Command) (*engine.Engine, *config.Config) {
	cfg := loadConfig(cmd)
	emb := cfg.Embedding
	if w := embedding.ProviderWarning(emb.Provider); w != "" {
		logging.For("cli").Warn(w)
	}
	svc := embedding.NewService(embedding.NewLoader(emb, cfg.ModelsDir()), embedding.ServiceOptions{
		Provider:      emb.Provider,
		MaxAttempts:   emb.MaxAttempts,
		InitialDelay:  emb.InitialDelay,
		MaxInputChars: emb.MaxInputChars,
	})

	e, err := engine.New(engine.Options{
		Profile:     resolveProfile(cfg),
		ProfilesDir: cfg.ProfilesDir(),
		DataDir:     cfg.DataDir,
		Embedder:    svc,
	})
	if err != nil {
		exitErr("open engine", err)
	}
	return e, cfg
}

func printJSON(cmd *cobra.Command, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func splitList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
