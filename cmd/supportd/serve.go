package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/azomlabs/supportd/config"
	"github.com/azomlabs/supportd/internal/knowledge"
	"github.com/azomlabs/supportd/internal/llm"
	"github.com/azomlabs/supportd/internal/memory"
	"github.com/azomlabs/supportd/internal/mode"
	"github.com/azomlabs/supportd/internal/orchestrator"
	"github.com/azomlabs/supportd/internal/ratelimit"
	"github.com/azomlabs/supportd/internal/retrieval"
	"github.com/azomlabs/supportd/internal/safety"
	srv "github.com/azomlabs/supportd/internal/server"
	"github.com/azomlabs/supportd/internal/telemetry"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the support assistant HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			logger := log.New(log.Writer(), "[SUPPORTD] ", log.LstdFlags)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			kn, err := knowledge.NewService(cfg.Knowledge.DataDir)
			if err != nil {
				return err
			}
			defer kn.Close()
			kn.StartRefresh(ctx, cfg.Knowledge.RefreshCron)

			factory := llm.NewFactory(cfg.LLM)
			defer factory.Close()

			var embedder retrieval.Embedder
			if cfg.Retrieval.VectorEnabled {
				if oc := factory.Embedder(); oc != nil {
					embedder = oc
				} else {
					logger.Printf("no embedding credentials, vector retrieval disabled")
				}
			}
			engine := retrieval.NewEngine(ctx, kn.Corpus, embedder)

			var moderator safety.ModerationClient
			if cfg.Safety.ModerationEnabled {
				client, err := factory.Client(mode.Full)
				if err != nil {
					return err
				}
				moderator = client
			}
			validator, err := safety.NewValidator(safety.Config{
				MinInputChars: cfg.Safety.MinInputChars,
				MaxInputChars: cfg.Safety.MaxInputChars,
				PolicyFile:    cfg.Safety.PolicyFile,
			}, moderator)
			if err != nil {
				return err
			}

			store, err := memory.NewStore(cfg.Memory)
			if err != nil {
				return err
			}
			defer store.Close()

			metrics := telemetry.New()
			orch := orchestrator.New(engine, validator, factory, store, metrics, orchestrator.Options{
				TopK:          cfg.Retrieval.TopK,
				VectorEnabled: cfg.Retrieval.VectorEnabled,
			})

			var limiter *ratelimit.Limiter
			if cfg.RateLimit.Enabled {
				limiter = ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window())
				defer limiter.Close()
			}

			logger.Printf("listening on %s", cfg.Server.Address)
			return srv.New(cfg, orch, kn, limiter, metrics).Run(ctx)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.json)")
	return serve
}
