package app

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"meridian/internal/config"
	"meridian/internal/db"
	"meridian/internal/engine"
	"meridian/internal/logging"
	"meridian/internal/metrics"
	"meridian/internal/migrate"
	"meridian/internal/publish"
)

// Options control how a workspace is opened.
type Options struct {
	Workspace string
	// LogWriter defaults to stderr.
	LogWriter io.Writer
	// LogLevel overrides log.level from the workspace config when set.
	LogLevel string
}

// App bundles the engine and the resources it owns for one workspace.
type App struct {
	Engine engine.Engine
	Config *config.Config
	Log    zerolog.Logger
	DB     *sql.DB
}

// Open migrates the workspace database, loads meridian.yml when present and
// wires logging, metrics and snapshot publishing into an engine.
func Open(opts Options) (*App, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(opts.LogWriter, level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	version, err := migrate.Migrate(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Debug().Str("db", db.Path(opts.Workspace)).Int("schema_version", version).Msg("workspace opened")

	e := engine.New(conn, cfg)
	e.Log = logging.Component(logger, "engine")
	e.Metrics = metrics.New()
	if cfg.KafkaEnabled() {
		e.Publisher = publish.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing snapshots to kafka")
	}
	return &App{Engine: e, Config: cfg, Log: logger, DB: conn}, nil
}

// Webhooks returns a dispatcher for the configured webhooks.
func (a *App) Webhooks() *publish.WebhookDispatcher {
	return publish.NewWebhookDispatcher(a.Engine.Repo, a.Config.Webhooks, logging.Component(a.Log, "webhooks"))
}

// Close flushes the publisher and closes the database.
func (a *App) Close() error {
	var errs []error
	if a.Engine.Publisher != nil {
		errs = append(errs, a.Engine.Publisher.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
