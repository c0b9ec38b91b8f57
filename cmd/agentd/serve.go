package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/relayagent/agentd/internal/config"
	"github.com/relayagent/agentd/internal/coordinator"
	"github.com/relayagent/agentd/internal/engine"
	"github.com/relayagent/agentd/internal/httpapi"
	"github.com/relayagent/agentd/internal/llm"
	"github.com/relayagent/agentd/internal/logging"
	"github.com/relayagent/agentd/internal/store"
	"github.com/relayagent/agentd/internal/telemetry"
	"github.com/relayagent/agentd/internal/tools"
)

func serveCmd() *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agentd HTTP/SSE server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), listenAddr)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "override the configured server.listen_addr")
	return cmd
}

func buildRegistry(explore tools.ExploreFunc) *coordinator.Registry {
	reg := coordinator.New()
	for _, h := range tools.ReadOnlyToolSet() {
		reg.Register(h)
	}
	reg.Register(tools.WriteToFile{})
	reg.Register(tools.ReplaceInFile{})
	reg.Register(tools.Explore{Run: explore})
	return reg
}

// buildAdapterResolver maps a provider name to a configured llm.Adapter
// (§4.H). Only providers with a non-empty API key are wired; an unknown
// or unconfigured provider name is rejected synchronously by
// engine.Engine.Run (errkind.InvalidParameters).
func buildAdapterResolver(cfg config.AIConfig) engine.AdapterResolver {
	adapters := map[string]llm.Adapter{}
	if cfg.AnthropicAPIKey != "" {
		adapters["anthropic"] = llm.NewAnthropicAdapter(cfg.AnthropicAPIKey)
	}
	if cfg.OpenAIAPIKey != "" {
		adapters["openai"] = llm.NewOpenAIAdapter(cfg.OpenAIAPIKey, "")
	}
	return func(provider string) (llm.Adapter, bool) {
		a, ok := adapters[provider]
		return a, ok
	}
}

func toLLMAIConfig(cfg config.AIConfig) llm.AIConfig {
	return llm.AIConfig{
		Provider: cfg.Provider, Model: cfg.Model,
		Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens, TopP: cfg.TopP,
		FrequencyPenalty: cfg.FrequencyPenalty, PresencePenalty: cfg.PresencePenalty,
		MaxIterations: cfg.MaxIterations, MaxContextTokens: cfg.MaxContextTokens,
	}
}

func runServe(ctx context.Context, listenOverride string) error {
	log := logging.Default()

	shutdownTelemetry, err := telemetry.Setup(ctx)
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	listenAddr := cfg.Server.ListenAddr
	if listenOverride != "" {
		listenAddr = listenOverride
	}

	adapters := buildAdapterResolver(cfg.AI)
	defaultAdapter, hasDefault := adapters(cfg.AI.Provider)
	var explore tools.ExploreFunc
	if hasDefault {
		explore = engine.NewExploreRunner(defaultAdapter, toLLMAIConfig(cfg.AI))
	}

	reg := buildRegistry(explore)
	st := store.New()
	srv := httpapi.NewServer(reg, st, adapters, toLLMAIConfig(cfg.AI))
	srv.Log = log

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	watcher, err := config.Watch(resolveConfigPath(), log)
	if err == nil {
		go func() {
			for newCfg := range watcher.C {
				log.Info("config reloaded", "listen_addr", newCfg.Server.ListenAddr)
				srv.Defaults = toLLMAIConfig(newCfg.AI)
			}
		}()
		defer watcher.Close()
	}

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-runCtx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
