package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/formworks-hq/formworks/internal/cli/config"
	"github.com/formworks-hq/formworks/internal/cli/ui"
	"github.com/formworks-hq/formworks/internal/database"
	"github.com/formworks-hq/formworks/internal/fieldtypes"
	"github.com/formworks-hq/formworks/internal/forms"
	"github.com/formworks-hq/formworks/internal/hooks"
	"github.com/formworks-hq/formworks/internal/metadata"
	"github.com/formworks-hq/formworks/internal/provision"
	"github.com/formworks-hq/formworks/internal/session"
	"github.com/formworks-hq/formworks/internal/submission"
	"github.com/formworks-hq/formworks/internal/transaction"
)

// app carries the wired engine components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *sql.DB
	dialect  database.Dialect
	store    *metadata.Store
	registry *fieldtypes.Registry
	dispatch *hooks.Dispatcher
	orch     *forms.Orchestrator
	pipeline *submission.Pipeline
	lister   *submission.Lister
}

// newApp loads config, connects storage, and wires the engine.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.New(ui.ConfigError(err.Error(),
			[]string{"set database.url in formworks.yml"}, false))
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	db, dialect, err := database.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := metadata.Bootstrap(ctx, db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping metadata tables: %w", err)
	}

	store := metadata.NewStore(db, dialect)
	registry := fieldtypes.DefaultRegistry()
	dispatch := hooks.NewDispatcher()
	txm := transaction.NewManager(db)
	prov := provision.New(db, dialect)
	orch := forms.New(txm, dialect, store, prov, registry, dispatch, logger)

	var sessions session.Store
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		sessions = session.NewRedisStore(client)
	}

	pipelineCfg := submission.Config{
		MultiValueDelimiter:  cfg.Submission.MultiValueDelimiter,
		QueryStringSeparator: cfg.Submission.QueryStringSeparator,
		DateFormat:           cfg.Submission.DateFormat,
		CaptchaParkTTL:       cfg.Submission.CaptchaParkTTL,
	}
	pipeline := submission.NewPipeline(db, dialect, store, registry, dispatch,
		sessions, nil, nil, pipelineCfg, logger)
	lister := submission.NewLister(db, dialect, store)

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		dialect:  dialect,
		store:    store,
		registry: registry,
		dispatch: dispatch,
		orch:     orch,
		pipeline: pipeline,
		lister:   lister,
	}, nil
}

func (a *app) Close() {
	a.db.Close()
	a.logger.Sync()
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
