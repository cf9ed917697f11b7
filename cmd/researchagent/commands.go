package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/researchagent/internal/config"
	"github.com/haasonsaas/researchagent/internal/gateway"
	"github.com/haasonsaas/researchagent/internal/mcp"
	"github.com/haasonsaas/researchagent/internal/observability"
	"github.com/haasonsaas/researchagent/internal/providers"
	"github.com/haasonsaas/researchagent/internal/sessions"
	"github.com/haasonsaas/researchagent/internal/tools/sandbox"
	"github.com/haasonsaas/researchagent/internal/tools/sandbox/firecracker"
	"github.com/haasonsaas/researchagent/internal/tools/websearch"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "researchagent",
		Short: "Two-mode conversational research agent backend",
		Long:  "researchagent runs the Chat/Agent research backend: the React loop, session registry, tool bridge, and streaming chat API.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	root.AddCommand(newServeCmd(), newSessionsCmd(), newMCPCmd(), newDoctorCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat("researchagent.yaml"); err == nil {
			path = "researchagent.yaml"
		}
	}
	return config.Load(path)
}

// buildRegistry assembles the composition root: provider, search vendor,
// sandbox backend, MCP bridge, and the session registry over them (spec §9
// "Global mutable service singletons" redesign: explicit roots, no
// process globals).
func buildRegistry(cfg *config.Config, logger *observability.Logger) (*sessions.Registry, *mcp.Bridge, error) {
	metrics := observability.NewMetrics()
	tracer, _ := observability.NewTracer(observability.TraceConfig{
		ServiceName: "researchagent",
		Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	})

	var provider providers.LLMProvider
	var err error
	switch {
	case cfg.LLM.Anthropic.APIKey != "":
		provider, err = providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       cfg.LLM.Anthropic.APIKey,
			BaseURL:      cfg.LLM.Anthropic.BaseURL,
			DefaultModel: cfg.LLM.DefaultModel,
		})
	case cfg.LLM.OpenAI.APIKey != "":
		provider, err = providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       cfg.LLM.OpenAI.APIKey,
			BaseURL:      cfg.LLM.OpenAI.BaseURL,
			DefaultModel: cfg.LLM.DefaultModel,
		})
	default:
		err = fmt.Errorf("no model provider API key configured")
	}
	if err != nil {
		return nil, nil, err
	}

	var vendor websearch.Vendor
	if cfg.Tools.WebSearch.APIKey != "" {
		vendor = websearch.NewHTTPVendor(cfg.Tools.WebSearch.BaseURL, cfg.Tools.WebSearch.APIKey)
	}

	var sandboxFactory sandbox.RunnerFactory
	if cfg.Tools.Sandbox.FirecrackerKernelImage != "" {
		fcCfg := firecracker.DefaultConfig()
		fcCfg.KernelImagePath = cfg.Tools.Sandbox.FirecrackerKernelImage
		fcCfg.RootFSPath = cfg.Tools.Sandbox.FirecrackerRootfs
		sandboxFactory = func(ctx context.Context) (sandbox.Runner, error) {
			return firecracker.New(ctx, fcCfg)
		}
	}

	var serverConfigs []*mcp.ServerConfig
	for name, sc := range cfg.MCP.Servers {
		serverConfigs = append(serverConfigs, &mcp.ServerConfig{
			Name:      name,
			Transport: mcp.TransportType(sc.Transport),
			Command:   sc.Command,
			Args:      sc.Args,
			Env:       sc.Env,
			Address:   sc.Address,
		})
	}
	bridge, err := mcp.NewBridge(serverConfigs, logger)
	if err != nil {
		return nil, nil, err
	}

	var summaries sessions.SummaryStore
	if store, err := sessions.OpenSQLite(filepath.Join(cfg.DataBaseDir, "sessions.db")); err == nil {
		summaries = store
	} else {
		logger.Warn(context.Background(), "summary store unavailable, continuing file-only", "error", err)
	}

	registry, err := sessions.NewRegistry(cfg, sessions.Deps{
		Provider:       provider,
		SearchVendor:   vendor,
		SandboxFactory: sandboxFactory,
		Bridge:         bridge,
		Logger:         logger,
		Metrics:        metrics,
		Tracer:         tracer,
		Summaries:      summaries,
	})
	if err != nil {
		return nil, nil, err
	}
	return registry, bridge, nil
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := observability.NewLogger(observability.LogConfig{Level: cfg.LogLevel})

			registry, bridge, err := buildRegistry(cfg, logger)
			if err != nil {
				return err
			}
			defer registry.Close()
			defer bridge.Close()

			reaper := sessions.NewReaper(registry, cfg.Session.IdleTimeout, logger)
			if err := reaper.Start(); err != nil {
				return err
			}
			defer reaper.Stop()

			server := &http.Server{
				Addr:    addr,
				Handler: gateway.NewServer(registry, logger).Handler(),
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info(cmd.Context(), "server listening", "addr", addr)
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.Info(cmd.Context(), "shutting down", "signal", sig.String())
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(ctx)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
