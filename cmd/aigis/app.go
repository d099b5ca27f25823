package main

import (
	"context"

	"github.com/koustreak/aigis/internal/agent"
	"github.com/koustreak/aigis/internal/artifact"
	"github.com/koustreak/aigis/internal/config"
	"github.com/koustreak/aigis/internal/database"
	"github.com/koustreak/aigis/internal/database/postgres"
	"github.com/koustreak/aigis/internal/database/sqlite"
	"github.com/koustreak/aigis/internal/enginecache"
	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/filestore"
	"github.com/koustreak/aigis/internal/filestore/minio"
	"github.com/koustreak/aigis/internal/logger"
	"github.com/koustreak/aigis/internal/metrics"
	"github.com/koustreak/aigis/internal/query"
	"github.com/koustreak/aigis/internal/resolver"
	"github.com/koustreak/aigis/internal/schema"
	"github.com/koustreak/aigis/internal/secret"
	"github.com/koustreak/aigis/internal/tenant"
	pgstore "github.com/koustreak/aigis/internal/tenant/postgres"
	litestore "github.com/koustreak/aigis/internal/tenant/sqlite"
)

// schemaEnsurer is implemented by credential stores living in the
// application database, where custom schemas are created.
type schemaEnsurer interface {
	EnsureTenantSchema(ctx context.Context, schema string) error
}

// app holds every long-lived component of one process.
type app struct {
	cfg       config.Config
	log       *logger.Logger
	metrics   *metrics.Prometheus
	cache     *enginecache.Cache
	store     tenant.Store
	service   *tenant.Service
	resolver  *resolver.Resolver
	executor  *query.Executor
	files     filestore.Store // nil when object storage is off
	artifacts *artifact.Store // nil when object storage is off
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.New(&cfg.Log)
	logger.SetGlobal(log)
	prom := metrics.NewPrometheus()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cache := enginecache.New(openers(cfg, log), enginecache.WithLogger(log), enginecache.WithMetrics(prom))
	cipher := secret.AESGCM{}
	res := resolver.New(store, cipher, cfg.MasterKey, cache,
		resolver.WithLogger(log),
		resolver.WithMetrics(prom),
		resolver.WithIntrospector(schema.NewIntrospector(log)),
	)

	a := &app{
		cfg:      cfg,
		log:      log,
		metrics:  prom,
		cache:    cache,
		store:    store,
		service:  tenant.NewService(store, cipher, cfg.MasterKey, log),
		resolver: res,
		executor: query.NewExecutor(res, query.WithLogger(log), query.WithMetrics(prom)),
	}

	if cfg.ObjectStoreEnabled() {
		files, err := minio.New(ctx, &cfg.ObjectStore)
		if err != nil {
			store.Close()
			return nil, err
		}
		a.files = files
		a.artifacts = artifact.New(files, cfg.ObjectStore.DefaultBucket)
		if err := a.artifacts.Prepare(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config) (tenant.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return litestore.Open(ctx, cfg.Store.SQLitePath)
	case "postgres":
		return pgstore.New(ctx, pgstore.Config{
			Target:         appTarget(cfg.AppDB),
			ConnectTimeout: cfg.ConnectTimeout,
		})
	default:
		return nil, errs.Newf(errs.ErrKindConfiguration, "unknown store driver %q", cfg.Store.Driver)
	}
}

// openers routes each connection kind to its engine constructor. Custom
// connections are served by the postgres opener against the application
// database.
func openers(cfg config.Config, log *logger.Logger) database.Router {
	opts := database.Options{
		PoolSize:        cfg.Pool.Size,
		MaxOverflow:     cfg.Pool.MaxOverflow,
		AcquireTimeout:  cfg.Pool.Timeout,
		ConnectTimeout:  cfg.ConnectTimeout,
		MaxConnLifetime: cfg.Pool.MaxLifetime,
		MaxConnIdleTime: cfg.Pool.MaxIdleTime,
		Echo:            cfg.Echo,
		Logger:          log,
	}
	pg := postgres.NewOpener(appTarget(cfg.AppDB), opts)
	return database.Router{
		database.KindSQLite:   sqlite.NewOpener(opts),
		database.KindPostgres: pg,
		database.KindCustom:   pg,
	}
}

func appTarget(c config.AppDBConfig) database.PostgresTarget {
	return database.PostgresTarget{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.User,
		Password: c.Password,
		Database: c.Database,
		SSLMode:  c.SSLMode,
	}
}

// tool returns the agent adapter for the given SQL author.
func (a *app) tool(author agent.SQLAuthor) *agent.Tool {
	opts := []agent.Option{agent.WithLogger(a.log)}
	if a.artifacts != nil {
		opts = append(opts, agent.WithArtifacts(a.artifacts))
	}
	return agent.NewTool(a.resolver, a.executor, author, opts...)
}

func (a *app) close() {
	if err := a.cache.DisposeAll(); err != nil {
		a.log.WarnWith("engine disposal failed", err, nil)
	}
	if a.files != nil {
		_ = a.files.Close()
	}
	a.store.Close()
}
