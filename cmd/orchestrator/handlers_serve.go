package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nexus-agent/orchestrator/internal/agent"
	agentcontext "github.com/nexus-agent/orchestrator/internal/agent/context"
	"github.com/nexus-agent/orchestrator/internal/agent/providers"
	"github.com/nexus-agent/orchestrator/internal/config"
	llmcontext "github.com/nexus-agent/orchestrator/internal/context"
	"github.com/nexus-agent/orchestrator/internal/history/store"
	"github.com/nexus-agent/orchestrator/internal/observability"
	"github.com/nexus-agent/orchestrator/internal/orchestrator"
	"github.com/nexus-agent/orchestrator/internal/server"
	"github.com/nexus-agent/orchestrator/internal/tools/exec"
	"github.com/nexus-agent/orchestrator/internal/tools/files"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// runServe implements the serve command: load configuration, wire the
// history store, tool surface, LLM provider and orchestrator, then serve
// the turn endpoint until a shutdown signal arrives.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel := cfg.Observability.Logging.Level
	if debug {
		logLevel = "debug"
	}
	structLogger := observability.NewLogger(observability.LogConfig{
		Level:     logLevel,
		Format:    cfg.Observability.Logging.Format,
		Output:    os.Stderr,
		AddSource: debug,
	})
	slog.SetDefault(structLogger.Slog())

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	slog.Info("configuration loaded",
		"http_port", cfg.Server.HTTPPort,
		"llm_provider", cfg.LLM.DefaultProvider,
		"database_configured", cfg.Server.DatabaseURL != "",
	)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if closer, ok := st.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	if pg, ok := st.(interface {
		SetMetrics(*observability.Metrics)
	}); ok && metrics != nil {
		pg.SetMetrics(metrics)
	}

	registry, execManager := buildToolRegistry(cfg)

	provider, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}

	var packer *agentcontext.Packer
	var summarizer *agentcontext.Summarizer
	if cfg.Session.Compaction.Enabled {
		maxChars := cfg.Session.Compaction.MaxChars
		if maxChars <= 0 {
			if window, ok := llmcontext.GetModelContextWindow(cfg.LLM.DefaultModel); ok {
				// Reserve roughly a quarter of the window for the system
				// prompt, tool schemas and the model's own response.
				maxChars = window * 3 / 4 * 4
			}
			slog.Info("derived context char budget from model window", "model", cfg.LLM.DefaultModel, "max_chars", maxChars)
		}
		packer = agentcontext.NewPacker(agentcontext.PackOptions{
			MaxMessages:        cfg.Session.Compaction.MaxMessages,
			MaxChars:           maxChars,
			MaxToolResultChars: cfg.Session.Compaction.MaxToolResultChars,
			IncludeSummary:     true,
		})
		summarizer = agentcontext.NewSummarizer(
			&providerSummaryAdapter{provider: provider, model: cfg.LLM.DefaultModel},
			agentcontext.SummarizationConfig{
				MaxMsgsBeforeSummary: cfg.Session.Compaction.MaxMsgsBeforeSummary,
				KeepRecentMessages:   cfg.Session.Compaction.KeepRecentMessages,
				MaxSummaryLength:     cfg.Session.Compaction.MaxSummaryLength,
			},
		)
	}

	orch := orchestrator.New(st, registry, provider, packer, summarizer, cfg.LLM.DefaultModel, cfg.LLM.System)
	orch.Metrics = metrics

	auth := server.AuthConfig{Secret: cfg.Server.Auth.Secret}
	srv := server.New(orch, st, auth, slog.Default())
	srv.Metrics = metrics
	srv.StructLogger = structLogger

	mux := srv.Mux()
	if metrics != nil {
		path := cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, promhttp.Handler())
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if metrics != nil {
		go reportQueueDepth(runCtx, execManager, metrics)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("orchestration server started", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-runCtx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	slog.Info("shutdown signal received, draining connections")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("orchestration server stopped gracefully")
	return nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	dsn := strings.TrimSpace(cfg.Server.DatabaseURL)
	if dsn == "" {
		slog.Info("no database url configured, using in-memory history store")
		return store.NewMemoryStore(), nil
	}
	return store.NewPostgresStoreFromDSN(dsn, store.DefaultConfig())
}

func buildToolRegistry(cfg *config.Config) (*agent.ToolRegistry, *exec.Manager) {
	registry := agent.NewToolRegistry()

	roots := cfg.Tools.Sandbox.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}
	workspace := roots[0]

	filesCfg := files.Config{Workspace: workspace}
	registry.Register(files.NewReadTool(filesCfg))
	registry.Register(files.NewWriteTool(filesCfg))
	registry.Register(files.NewEditTool(filesCfg))
	registry.Register(files.NewListTool(filesCfg))
	registry.Register(files.NewSearchTool(filesCfg))
	registry.Register(files.NewWorkingDirectoryTool(filesCfg))
	registry.Register(files.NewFileExistsTool(filesCfg))

	execManager := exec.NewManager(workspace)
	registry.Register(exec.NewRunCommandTool(execManager))
	registry.Register(exec.NewRunGitCommandTool(execManager))
	registry.Register(exec.NewRunTestsTool(execManager))
	registry.Register(exec.NewStartBackgroundProcessTool(execManager))
	registry.Register(exec.NewStopBackgroundProcessTool(execManager))
	registry.Register(exec.NewListBackgroundProcessesTool(execManager))

	return registry, execManager
}

// reportQueueDepth polls the exec manager's per-conversation command
// lanes and publishes their depth as the command-queue depth gauge, until ctx
// is cancelled.
func reportQueueDepth(ctx context.Context, execManager *exec.Manager, metrics *observability.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, stats := range execManager.QueueStats() {
				metrics.SetCommandQueueDepth(string(stats.Lane), stats.Pending+stats.Active)
			}
		}
	}
}

func buildProvider(cfg *config.Config) (agent.LLMProvider, error) {
	switch cfg.LLM.DefaultProvider {
	case "openai":
		if cfg.LLM.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai api key is required")
		}
		return providers.NewOpenAIProvider(cfg.LLM.OpenAI.APIKey), nil
	case "anthropic", "":
		if cfg.LLM.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("anthropic api key is required")
		}
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       cfg.LLM.Anthropic.APIKey,
			MaxRetries:   cfg.LLM.Anthropic.MaxRetries,
			RetryDelay:   cfg.LLM.Anthropic.RetryDelay,
			DefaultModel: cfg.LLM.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.DefaultProvider)
	}
}
