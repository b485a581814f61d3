// Package app wires configuration, storage, the model client and the
// HTTP server into one runnable unit.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askpath/askpath/db"
	"github.com/askpath/askpath/internal/api"
	"github.com/askpath/askpath/internal/config"
	"github.com/askpath/askpath/internal/faq"
	"github.com/askpath/askpath/internal/graph"
	"github.com/askpath/askpath/internal/knowledge"
	"github.com/askpath/askpath/internal/llm"
	"github.com/askpath/askpath/internal/log"
	"github.com/askpath/askpath/internal/observability"
	"github.com/askpath/askpath/internal/pipeline"
	"github.com/askpath/askpath/internal/session"
)

// App holds every long-lived component and their teardown order.
type App struct {
	Config *config.Config
	Logger log.Logger

	Pool      *pgxpool.Pool
	Graph     *graph.Store
	FAQ       *faq.Store
	Knowledge *knowledge.Store
	Sessions  *session.Store
	LLM       *llm.Client
	Pipeline  *pipeline.Orchestrator
	Server    *http.Server

	otelShutdown func(context.Context) error
}

// Setup builds the full application. Migrations run before the pool is
// opened so the schema is current by the time any store touches it.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if logger == nil {
		logger = log.New(log.Config{})
	}

	// Tracing hooks into Genkit's TracerProvider, so it must be wired
	// before genkit.Init.
	otelShutdown, err := observability.Setup(ctx, observability.Config{
		AgentHost:   cfg.TraceAgentHost,
		Environment: cfg.TraceEnvironment,
		ServiceName: cfg.TraceServiceName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		pool.Close()
		return nil, fmt.Errorf("initializing genkit with %s provider", cfg.Provider)
	}
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		pool.Close()
		return nil, fmt.Errorf("embedder %q not available", cfg.EmbedderModel)
	}

	graphStore, err := graph.NewStore(pool, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating graph store: %w", err)
	}
	faqStore, err := faq.NewStore(pool, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating faq store: %w", err)
	}
	knowledgeStore, err := knowledge.NewStore(pool, embedder, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}
	sessionStore := session.NewStore(pool, logger)

	llmClient, err := llm.NewClient(g, llm.Config{
		ModelName:   cfg.ModelName,
		Temperature: float64(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.LLMTimeout(),
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	orchestrator := pipeline.NewOrchestrator([]pipeline.Tier{
		pipeline.NewGraphTier(graphStore, logger),
		pipeline.NewFAQTier(faqStore, logger),
		pipeline.NewRAGTier(knowledgeStore, llmClient, cfg.RetrievalTopK, logger),
	}, logger)

	server := api.NewServer(api.ServerConfig{
		Addr:        cfg.ListenAddr,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateRPS:     cfg.RateRPS,
		RateBurst:   cfg.RateBurst,
	}, api.Handlers{
		Chat:      api.NewChatHandler(orchestrator, sessionStore, logger),
		Sessions:  api.NewSessionHandler(sessionStore, logger),
		FAQ:       api.NewFAQHandler(faqStore, logger),
		Graph:     api.NewGraphHandler(graphStore, logger),
		Documents: api.NewDocumentHandler(knowledgeStore, logger),
		Health:    api.NewHealthHandler(pool),
	}, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		Graph:     graphStore,
		FAQ:       faqStore,
		Knowledge: knowledgeStore,
		Sessions:  sessionStore,
		LLM:       llmClient,
		Pipeline:  orchestrator,
		Server:    server,

		otelShutdown: otelShutdown,
	}, nil
}

// Close releases everything Setup acquired.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Logger.Warn("flushing traces", "error", err)
		}
	}
}

// provideDBPool migrates the schema, then opens a bounded pgx pool and
// verifies connectivity with a short ping.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing pool config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("database pool ready",
		"host", cfg.PostgresHost,
		"database", cfg.PostgresDBName)
	return pool, nil
}
