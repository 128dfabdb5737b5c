package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/postdex/internal/config"
	dbRedis "github.com/kailas-cloud/postdex/internal/db/redis"
	"github.com/kailas-cloud/postdex/internal/domain/entity"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
	"github.com/kailas-cloud/postdex/internal/extract"
	logpkg "github.com/kailas-cloud/postdex/internal/logger"
	"github.com/kailas-cloud/postdex/internal/metrics"
	"github.com/kailas-cloud/postdex/internal/repository/content"
	"github.com/kailas-cloud/postdex/internal/repository/engine"
	"github.com/kailas-cloud/postdex/internal/usecase/builder"
	healthuc "github.com/kailas-cloud/postdex/internal/usecase/health"
	"github.com/kailas-cloud/postdex/internal/usecase/iterator"
	"github.com/kailas-cloud/postdex/internal/usecase/reindex"
)

// backend is what the composition root needs from an engine.
type backend interface {
	reindex.Engine
	healthuc.Pinger
	StoredSchema(ctx context.Context, index string) ([]byte, error)
}

// app is the wired object graph shared by every command.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	content *content.Store
	engine  backend
	cursors *iterator.FileCursorStore
	indexer *reindex.Service
	health  *healthuc.Service
	closers []func()
}

func newApp(ctx context.Context, env string, cfg config.Config) (a *app, err error) {
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// Register metrics explicitly (no init())
	metrics.Register()

	a.content, err = content.Open(cfg.Content.DSN)
	if err != nil {
		return nil, fmt.Errorf("open content store: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.content.Close() })

	a.engine, err = a.openEngine(ctx)
	if err != nil {
		return nil, err
	}

	// AttachmentExtractor stays nil: no file-text provider is configured.
	extractors := extract.Defaults(extract.NewMetaFilter(cfg.Index.MetaAllow, cfg.Index.MetaDeny), nil)
	posts, err := builder.NewPostBuilder(a.content, extractors, []extract.Deriver{extract.SimilarContent{}})
	if err != nil {
		return nil, fmt.Errorf("create post builder: %w", err)
	}
	posts.WithStatusBlacklist(statuses(cfg.Index.StatusBlacklist)).
		WithDisabledTenants(cfg.Reindex.DisabledTenants).
		WithIndexMedia(*cfg.Index.IndexMedia)

	registry, err := builder.NewRegistry(posts)
	if err != nil {
		return nil, fmt.Errorf("create builder registry: %w", err)
	}

	a.cursors, err = iterator.NewFileCursorStore(cfg.Reindex.CursorPath)
	if err != nil {
		return nil, err
	}

	a.indexer = reindex.New(registry, a.engine, a.content, a.cursors).
		WithWorkers(cfg.Reindex.Workers).
		WithPageSize(cfg.Reindex.BatchSize).
		WithRateLimit(cfg.Reindex.RateLimit, cfg.Reindex.RateBurst).
		WithFilter(iterator.Filter{ExcludeStatuses: posts.Blacklist()})
	a.health = healthuc.New(a.content, a.engine)

	logger.Info("Application wired",
		zap.String("engine", cfg.Engine.Driver),
		zap.String("index", a.schemaOptions().Name),
		zap.Int("workers", cfg.Reindex.Workers),
		zap.Strings("doc_types", registry.Types()),
	)
	return a, nil
}

func (a *app) openEngine(ctx context.Context) (backend, error) {
	switch a.cfg.Engine.Driver {
	case config.EngineRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    a.cfg.Database.Addrs,
			Username: a.cfg.Database.Username,
			Password: a.cfg.Database.Password,
			DB:       a.cfg.Database.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		a.closers = append(a.closers, store.Close)

		timeout := time.Duration(a.cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		a.logger.Info("Connected to redis", zap.Strings("addrs", a.cfg.Database.Addrs))
		return engine.NewRedis(store, a.cfg.Engine.KeyPrefix), nil
	case config.EngineBleve:
		b, err := engine.NewBleve(a.cfg.Engine.BlevePath)
		if err != nil {
			return nil, fmt.Errorf("open bleve index: %w", err)
		}
		a.closers = append(a.closers, func() { _ = b.Close() })
		if err := b.Ping(ctx); errors.Is(err, engine.ErrNoIndex) {
			a.logger.Warn("Bleve index not created yet, run the schema command first",
				zap.String("path", a.cfg.Engine.BlevePath))
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown engine driver %q", a.cfg.Engine.Driver)
	}
}

// schemaOptions overlays the configured index settings on the defaults.
func (a *app) schemaOptions() schema.Options {
	return schemaOptions(a.cfg.Index)
}

func schemaOptions(ic config.IndexConfig) schema.Options {
	opts := schema.DefaultOptions()
	if ic.Name != "" {
		opts.Name = ic.Name
	}
	if ic.Lang != "" {
		opts.Lang = ic.Lang
	}
	if ic.Shards > 0 {
		opts.Shards = ic.Shards
	}
	if ic.Replicas > 0 {
		opts.Replicas = ic.Replicas
	}
	return opts
}

func statuses(names []string) []entity.Status {
	if len(names) == 0 {
		return nil
	}
	out := make([]entity.Status, len(names))
	for i, n := range names {
		out[i] = entity.Status(n)
	}
	return out
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}
