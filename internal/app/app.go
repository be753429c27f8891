// Package app assembles the application: configuration, Genkit and the
// model client, the knowledge base on the configured storage backend,
// the agents, the workflow engine, and the chat service in front of
// them. Entry points call Setup once, use the App's services, and Close
// on the way out.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rulesmith/rulesmith/internal/chat"
	"github.com/rulesmith/rulesmith/internal/config"
	"github.com/rulesmith/rulesmith/internal/knowledge"
	"github.com/rulesmith/rulesmith/internal/persist"
	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/session"
	"github.com/rulesmith/rulesmith/internal/versioning"
)

// App is the assembled application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit *genkit.Genkit
	Pool   *pgxpool.Pool // nil on the file storage backend

	KB       knowledge.Base
	Rules    *rules.Store
	Sessions *session.Store
	Versions *versioning.Manager
	Persist  *persist.Manager
	Chat     *chat.Service

	// ArtifactsDir is where confirmed generation writes DRL/GDST pairs
	// and where the download endpoint serves them from.
	ArtifactsDir string

	traceShutdown func(context.Context) error
	dbCleanup     func()
}

// Close releases the application's resources: pending trace spans are
// flushed and the database pool is closed. Safe to call on a partially
// built App.
func (a *App) Close() error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("shutting down application")

	if a.traceShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.traceShutdown(ctx); err != nil {
			logger.Warn("shutting down trace exporter", slog.String("error", err.Error()))
		}
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
		logger.Info("database pool closed")
	}

	return nil
}
