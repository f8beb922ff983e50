package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/askflow-ai/askflow/internal/agent"
	"github.com/askflow-ai/askflow/internal/catalog"
	"github.com/askflow-ai/askflow/internal/governance"
	"github.com/askflow-ai/askflow/internal/observability"
	"github.com/askflow-ai/askflow/internal/relevance"
	"github.com/askflow-ai/askflow/internal/server"
	"github.com/askflow-ai/askflow/internal/store"
	"github.com/askflow-ai/askflow/internal/tools"
	"github.com/askflow-ai/askflow/pkg/config"
)

func main() {
	configPath := ""
	if _, err := os.Stat(config.ConfigFileName); err == nil {
		configPath = config.ConfigFileName
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger()

	st, err := store.NewStore(cfg.Memory.Path)
	if err != nil {
		log.Fatal(err)
	}

	cat, err := catalog.NewSQLiteCatalogFromDB(st.DB)
	if err != nil {
		log.Fatal(err)
	}

	runner, err := tools.NewSQLiteRunner(cfg.Data.Path)
	if err != nil {
		log.Fatal(err)
	}

	// Initialize LLM (using default enabled provider)
	pName, pCfg := cfg.DefaultProvider()
	if pName == "" {
		log.Fatal("No enabled provider found in config")
	}

	var llm *openai.LLM
	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		log.Fatalf("Provider %s not yet implemented in main", pName)
	}
	if err != nil {
		log.Fatal(err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		log.Fatal(err)
	}
	resolver := relevance.NewResolver(embedder, cat, cat, cfg.Agent.RelevanceTopK)

	var webSearch tools.Tool
	if ws, err := tools.NewWebSearchTool(); err != nil {
		log.Printf("Warning: Failed to initialize web search tool: %v", err)
	} else {
		webSearch = ws
	}

	coordinator := agent.NewCoordinator(agent.Deps{
		Store:             st,
		Graph:             cat,
		Resolver:          resolver,
		Model:             llm,
		Runner:            runner,
		Policy:            governance.NewReadOnlyPolicyEngine(),
		Prompts:           agent.NewPromptManager(cfg.Agent.PromptDir),
		Logger:            logger,
		SandboxURL:        cfg.Sandbox.URL,
		SandboxTimeout:    cfg.Sandbox.Timeout,
		WebSearch:         webSearch,
		MaxIterations:     cfg.Agent.MaxIterations,
		MaxRevisions:      cfg.Agent.MaxRevisions,
		ResultBudget:      cfg.Agent.ToolResultBudget,
		QueryRowCap:       cfg.Agent.QueryRowCap,
		HistoryDepth:      cfg.Agent.HistoryDepth,
		HeartbeatInterval: cfg.Agent.HeartbeatInterval,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(st, coordinator).Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("askflow listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
