package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rulesmith/rulesmith/db"
	"github.com/rulesmith/rulesmith/internal/analysis"
	"github.com/rulesmith/rulesmith/internal/chat"
	"github.com/rulesmith/rulesmith/internal/config"
	"github.com/rulesmith/rulesmith/internal/drools"
	"github.com/rulesmith/rulesmith/internal/knowledge"
	"github.com/rulesmith/rulesmith/internal/llm"
	"github.com/rulesmith/rulesmith/internal/observability"
	"github.com/rulesmith/rulesmith/internal/persist"
	"github.com/rulesmith/rulesmith/internal/rag"
	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/session"
	"github.com/rulesmith/rulesmith/internal/versioning"
	"github.com/rulesmith/rulesmith/internal/workflow"
)

// Options adjusts Setup per entry point.
type Options struct {
	// Logger is used by every component; nil falls back to slog.Default().
	Logger *slog.Logger

	// Tracing registers the OTLP exporter on Genkit's tracer provider
	// when the config enables it. Serve mode passes true; one-shot CLI
	// commands leave it off so they exit without an export flush.
	Tracing bool
}

// Setup builds the full application from configuration.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, opts Options) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", slog.String("error", err.Error()))
			}
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Tracing must be registered before genkit.Init so the provider
	// already carries the exporter when the first span starts.
	if opts.Tracing && cfg.Tracing.Enabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.Tracing.Endpoint,
			Environment: cfg.Tracing.Environment,
			ServiceName: cfg.Tracing.ServiceName,
		})
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.traceShutdown = shutdown
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	batch := rag.NewBatchEmbedder(embedder, logger)

	kb, pool, dbCleanup, err := provideKnowledgeBase(ctx, cfg, batch, logger)
	if err != nil {
		return nil, err
	}
	a.KB = kb
	a.Pool = pool
	a.dbCleanup = dbCleanup

	// Session data layout under the data directory.
	a.Persist = persist.NewManager(filepath.Join(cfg.DataDir, "sessions"), logger)
	a.Versions = versioning.NewManager(filepath.Join(cfg.DataDir, "versions"), logger)
	a.Sessions = session.NewStore()
	a.Rules = rules.NewStore()
	a.ArtifactsDir = filepath.Join(cfg.DataDir, "artifacts")

	oracle := llm.New(g, cfg.FullModelName(), logger,
		llm.WithDefaultTemperature(cfg.Temperature),
		llm.WithMaxOutputTokens(cfg.MaxTokens))

	parser := rules.NewParser(oracle, kb, logger, rules.WithTopK(cfg.RAGTopK))
	extractor := rules.NewTableExtractor(oracle, logger)
	analyzer := analysis.NewAnalyzer(oracle, kb, logger)
	decider := analysis.NewOrchestrator(logger,
		analysis.NewFileDecisionLog(filepath.Join(cfg.DataDir, "logs", "orchestration.log"), logger))
	generator := drools.NewGenerator(oracle, logger,
		drools.WithTemperature(cfg.GeneratorTemperature))

	engine, err := workflow.New(workflow.Config{
		Parser:    parser,
		Analyzer:  analyzer,
		Generator: generator,
		Decider:   decider,
		Store:     a.Rules,
		Versions:  a.Versions,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("building workflow engine: %w", err)
	}

	svc, err := chat.New(chat.Config{
		Engine:       engine,
		Sessions:     a.Sessions,
		Parser:       parser,
		Extractor:    extractor,
		Analyzer:     analyzer,
		Decider:      decider,
		Generator:    generator,
		Store:        a.Rules,
		Versions:     a.Versions,
		Persist:      a.Persist,
		KB:           kb,
		Logger:       logger,
		ArtifactsDir: a.ArtifactsDir,
	})
	if err != nil {
		return nil, fmt.Errorf("building chat service: %w", err)
	}
	a.Chat = svc

	hydrate(a)

	return a, nil
}

// provideKnowledgeBase selects the knowledge store for the configured
// storage backend. The postgres backend also returns the pool and its
// cleanup; the file backend returns them nil.
func provideKnowledgeBase(ctx context.Context, cfg *config.Config, batch *rag.BatchEmbedder, logger *slog.Logger) (knowledge.Base, *pgxpool.Pool, func(), error) {
	chunking := knowledge.WithChunking(cfg.ChunkSize, cfg.ChunkOverlap)

	if cfg.StorageBackend == config.StoragePostgres {
		pool, cleanup, err := provideDBPool(ctx, cfg, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		store, err := knowledge.NewPGStore(pool, batch, logger, chunking)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("creating pgvector store: %w", err)
		}
		logger.Info("knowledge base on postgres backend",
			slog.String("host", cfg.PostgresHost),
			slog.String("database", cfg.PostgresDBName))
		return store, pool, cleanup, nil
	}

	return knowledge.NewStore(batch, logger, chunking), nil, nil, nil
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	cleanup := func() {
		pool.Close()
	}

	return pool, cleanup, nil
}

// hydrate restores persisted session state: the extracted rules always,
// the knowledge-base snapshot only on the file backend. The pgvector
// store is durable on its own and never hydrates from a snapshot.
func hydrate(a *App) {
	if ok, msg := a.Persist.LoadRules(a.Rules); ok {
		a.Logger.Info("restored rules", slog.String("message", msg))
	} else {
		a.Logger.Debug("no rules restored", slog.String("message", msg))
	}

	snap, isSnapshotter := a.KB.(persist.Snapshotter)
	if !isSnapshotter {
		return
	}
	if ok, msg := a.Persist.LoadKnowledgeBase(snap); ok {
		a.Logger.Info("restored knowledge base", slog.String("message", msg))
	} else {
		a.Logger.Debug("no knowledge base restored", slog.String("message", msg))
	}
}
