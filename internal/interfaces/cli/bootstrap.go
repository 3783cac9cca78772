package cli

import (
	"context"
	"fmt"

	"github.com/turtacn/RigorAudit/internal/application/audit"
	"github.com/turtacn/RigorAudit/internal/config"
	"github.com/turtacn/RigorAudit/internal/infrastructure/database/postgres"
	"github.com/turtacn/RigorAudit/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/RigorAudit/internal/infrastructure/database/redis"
	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/RigorAudit/internal/infrastructure/search/opensearch"
	"github.com/turtacn/RigorAudit/internal/infrastructure/storage/minio"
	extractor "github.com/turtacn/RigorAudit/internal/intelligence/feature_extractor"
	"github.com/turtacn/RigorAudit/internal/intelligence/narrative"
	"github.com/turtacn/RigorAudit/internal/intelligence/rigor_engine"
	"github.com/turtacn/RigorAudit/internal/interfaces/http/handlers"
)

// Runtime holds the wired application and the backends it opened.
type Runtime struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AuditMetrics
	Service   audit.Service

	// Set only when the matching backend is enabled.
	DB      *postgres.Connection
	Cache   *redis.AuditCache
	Archive *minio.Archive

	Checkers []handlers.HealthChecker

	closers []func() error
}

// BootstrapOptions selects what Bootstrap connects to.
type BootstrapOptions struct {
	// Backends connects the enabled database, cache, archive and index.
	// Without it the service runs extraction, evaluation and enhancement only.
	Backends bool
	// Namespace prefixes every metric name. Defaults to "rigor".
	Namespace string
}

// Bootstrap wires the audit service from cfg. An enabled backend that cannot
// be reached is a startup error; disabled backends are left out.
func Bootstrap(ctx context.Context, cfg *config.Config, logger logging.Logger, opts BootstrapOptions) (*Runtime, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.Namespace == "" {
		opts.Namespace = "rigor"
	}

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            opts.Namespace,
		EnableGoMetrics:      true,
		EnableProcessMetrics: true,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	metrics := prometheus.NewAuditMetrics(collector)

	rt := &Runtime{Config: cfg, Logger: logger, Collector: collector, Metrics: metrics}

	enhancer, err := narrative.NewFromConfig(enhancerConfig(cfg.Enhancer), logger)
	if err != nil {
		return nil, fmt.Errorf("enhancer: %w", err)
	}

	deps := audit.Deps{
		Extractor: extractor.NewExtractor(extractor.MustDefaultTaxonomy(),
			extractor.WithConfig(extractor.ExtractorConfig{
				ContextWindow: cfg.Audit.ContextWindow,
				MaxExamples:   cfg.Audit.MaxExamples,
			}),
			extractor.WithMetrics(metrics)),
		Engine:       rigor_engine.NewEngine(),
		Narrator:     narrative.NewGenerator(enhancer),
		Metrics:      metrics,
		Logger:       logger,
		MaxTextBytes: cfg.Audit.MaxTextBytes,
	}

	if opts.Backends {
		if err := rt.connect(ctx, &deps); err != nil {
			rt.Close()
			return nil, err
		}
	}

	svc, err := audit.NewService(deps)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

func (rt *Runtime) connect(ctx context.Context, deps *audit.Deps) error {
	cfg := rt.Config
	log := rt.Logger

	if cfg.Database.Enabled {
		pgCfg := postgresConfig(cfg.Database)
		if cfg.Database.AutoMigrate {
			if err := postgres.MigrateUp(pgCfg, log); err != nil {
				return fmt.Errorf("postgres migrations: %w", err)
			}
		}
		conn, err := postgres.NewConnection(pgCfg, log)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		rt.DB = conn
		rt.closers = append(rt.closers, conn.Close)
		deps.Repository = repositories.NewAuditRepository(conn.DB(), log)
		rt.addCheck("postgres", conn.HealthCheck)
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(&redis.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}, log)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rt.closers = append(rt.closers, client.Close)
		cache := redis.NewRedisCache(client, log,
			redis.WithPrefix(cfg.Redis.KeyPrefix),
			redis.WithDefaultTTL(cfg.Audit.CacheTTL))
		rt.Cache = redis.NewAuditCache(cache, cfg.Audit.CacheTTL)
		deps.Cache = rt.Cache
		rt.addCheck("redis", client.Ping)
	}

	if cfg.MinIO.Enabled {
		client, err := minio.NewClient(minio.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
		}, log)
		if err != nil {
			return fmt.Errorf("minio: %w", err)
		}
		rt.closers = append(rt.closers, client.Close)
		rt.Archive = minio.NewArchive(client, log)
		deps.Archive = rt.Archive
		rt.addCheck("minio", client.HealthCheck)
	}

	if cfg.OpenSearch.Enabled {
		client, err := opensearch.NewClient(opensearch.ClientConfig{
			Addresses:          cfg.OpenSearch.Addresses,
			Username:           cfg.OpenSearch.User,
			Password:           cfg.OpenSearch.Password,
			InsecureSkipVerify: cfg.OpenSearch.InsecureSkipVerify,
		}, log)
		if err != nil {
			return fmt.Errorf("opensearch: %w", err)
		}
		rt.closers = append(rt.closers, client.Close)
		indexer := opensearch.NewIndexer(client, opensearch.IndexerConfig{Index: cfg.OpenSearch.Index}, log)
		if err := indexer.EnsureIndex(ctx); err != nil {
			return fmt.Errorf("opensearch index %s: %w", cfg.OpenSearch.Index, err)
		}
		deps.Indexer = indexer
		deps.Searcher = opensearch.NewSearcher(client, cfg.OpenSearch.Index, log)
		rt.addCheck("opensearch", client.Ping)
	}

	return nil
}

func (rt *Runtime) addCheck(name string, fn func(ctx context.Context) error) {
	rt.Checkers = append(rt.Checkers, handlers.CheckFunc{Component: name, Fn: fn})
}

// Close releases every opened backend in reverse order.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.Logger.Warn("Close failed", logging.Err(err))
		}
	}
	rt.closers = nil
}

func postgresConfig(c config.DatabaseConfig) postgres.PostgresConfig {
	return postgres.PostgresConfig{
		Host:            c.Host,
		Port:            c.Port,
		Database:        c.DBName,
		Username:        c.User,
		Password:        c.Password,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
	}
}

func enhancerConfig(c config.EnhancerConfig) narrative.Config {
	return narrative.Config{
		Enabled:         c.Enabled,
		BaseURL:         c.BaseURL,
		Model:           c.Model,
		APIKey:          c.APIKey,
		Temperature:     c.Temperature,
		MaxOutputTokens: c.MaxOutputTokens,
		Timeout:         c.Timeout,
		MaxTextRunes:    c.MaxTextRunes,
	}
}
