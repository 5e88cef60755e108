package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/memory-engine/internal/engine"
	"github.com/rcliao/memory-engine/internal/logging"
	"github.com/rcliao/memory-engine/internal/tools"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the memory tools over MCP stdio",
		Long:  "Serve every memory tool over MCP on stdin/stdout. Logs go to stderr.",
		Run:   runServe,
	}

	cmd.Flags().String("metrics-addr", "", "Expose Prometheus metrics on this address, e.g. 127.0.0.1:9464 (default: $MEMORY_ENGINE_METRICS_ADDR)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("metrics-addr")

	e, cfg := openEngine(cmd)
	defer e.Close()
	if addr == "" {
		addr = cfg.MetricsAddr
	}
	logger := logging.For("serve")

	metrics := tools.NewMetrics()
	metrics.Register(engineCollectors(e)...)
	srv := tools.NewServer(tools.NewDispatcher(e, metrics))

	p := e.Profile()
	logger.Info("serving MCP on stdio", "profile", p.Name, "source", p.Source, "data_dir", cfg.DataDir,
		"embedding", cfg.Embedding.Provider)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("metrics listening", "addr", addr)
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return hs.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return tools.ServeStdio(ctx, srv, cmd.InOrStdin(), cmd.OutOrStdout())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		exitErr("serve", err)
	}
	logger.Info("stopped")
}

func engineCollectors(e *engine.Engine) []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "memory_engine_cache_builds_total",
			Help: "Memory snapshot rebuilds since start",
		}, func() float64 { return float64(e.CacheBuilds()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "memory_engine_embedding_ready",
			Help: "1 when semantic search is available",
		}, func() float64 {
			if e.EmbeddingReady() {
				return 1
			}
			return 0
		}),
	}
}
