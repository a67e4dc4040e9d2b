package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/auth"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/entrystore"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/indexer/consumer"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/searcher/executor"
	queryhandler "github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults plus FG_* env when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("fuzzyd exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("fuzzyd stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting fuzzyd",
		"port", cfg.Server.Port,
		"depth", cfg.Index.Depth,
		"representation", cfg.Index.Representation,
		"kafka", cfg.Kafka.Enabled,
		"postgres", cfg.Postgres.Enabled,
		"cache", cfg.Cache.Backend,
	)

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	engine, err := indexer.NewEngine(cfg.Index, m)
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}
	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		s := engine.Stats()
		return health.ComponentHealth{
			Status: health.StatusUp,
			Details: map[string]any{
				"keys":           s.Keys,
				"representation": s.Representation,
				"epoch":          s.Epoch,
				"generation":     s.Generation,
			},
		}
	})

	g, ctx := errgroup.WithContext(ctx)

	var (
		entryLog  *entrystore.Store
		snapshots *snapshot.Store
		keys      *apikey.Store
	)
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		checker.Register("postgres", health.Ping(db.Ping))

		entryLog = entrystore.New(db)
		if err := entryLog.Migrate(ctx); err != nil {
			return err
		}
		if err := replay(ctx, cfg.Postgres.ReplayTimeout, entryLog, engine, m); err != nil {
			return err
		}
		snapshots = snapshot.NewStore(db)
		if err := snapshots.Migrate(ctx); err != nil {
			return err
		}
		if cfg.Auth.Enabled {
			keys = apikey.NewStore(db)
			if err := keys.Migrate(ctx); err != nil {
				return err
			}
		}
	}
	engine.StartStatsLoop(ctx, 15*time.Second)

	var queryCache *cache.QueryCache
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisClient.Close()
		backend := cache.NewRedisBackend(redisClient, cfg.Cache.TTL, m)
		queryCache = cache.New(backend, m)
		checker.RegisterOptional("redis", func(ctx context.Context) health.ComponentHealth {
			if backend.BreakerOpen() {
				return health.ComponentHealth{Status: health.StatusDown, Message: "circuit open"}
			}
			return health.Ping(redisClient.Ping)(ctx)
		})
	case config.CacheBackendLRU:
		backend, err := cache.NewLRUBackend(cfg.Cache.LRUSize, cfg.Cache.TTL)
		if err != nil {
			return err
		}
		queryCache = cache.New(backend, m)
	}
	if queryCache != nil {
		slog.Info("query cache enabled", "backend", cfg.Cache.Backend, "ttl", cfg.Cache.TTL)
	}

	aggregator, err := analytics.NewAggregator(cfg.Analytics.TrackedQueries)
	if err != nil {
		return err
	}

	pubOpts := publisher.Options{Metrics: m}
	if entryLog != nil {
		pubOpts.Log = entryLog
	}
	var sink analytics.Sink = aggregator.Sink()
	if cfg.Kafka.Enabled {
		entryProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EntryIngest)
		defer entryProducer.Close()
		pubOpts.Events = entryProducer

		entryOpts := entryConsumerOptions(cfg.Kafka, entryLog != nil)
		entryConsumer := consumer.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.EntryIngest, entryOpts,
			consumer.HandleMessage(engine, m, nil)))
		g.Go(func() error { return entryConsumer.Start(ctx) })

		if cfg.Analytics.Enabled {
			queryProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
			defer queryProducer.Close()
			sink = analytics.KafkaSink(queryProducer)

			queryConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents,
				kafka.ConsumerOptions{GroupID: cfg.Kafka.ConsumerGroup + "-analytics-" + uuid.NewString()},
				analytics.HandleEvent(aggregator))
			g.Go(func() error { return queryConsumer.Start(ctx) })
		}
	}

	var tracker queryhandler.Tracker
	if cfg.Analytics.Enabled {
		collector := analytics.NewCollector(sink, cfg.Analytics.BufferSize, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		if snapshots != nil {
			snapshots.StartPeriodicSave(ctx, aggregator.Stats, cfg.Analytics.SnapshotInterval)
		}
	}

	pub := publisher.New(engine, pubOpts)
	exec := executor.New(engine, cfg.Index.QueryTimeout)

	var adminGuard func(http.Handler) http.Handler
	if keys != nil {
		adminGuard = auth.RequireAPIKey(keys)
	}

	mux := http.NewServeMux()
	ingesthandler.New(pub, m).Register(mux)
	queryhandler.New(exec, engine, queryhandler.Options{
		AdminGuard:       adminGuard,
		Cache:            queryCache,
		Tracker:          tracker,
		Metrics:          m,
		DefaultLimit:     cfg.Index.DefaultLimit,
		MaxResults:       cfg.Index.MaxResults,
		BoundedByDefault: cfg.Index.BoundedByDefault,
	}).Register(mux)
	var lister analytics.SnapshotLister
	if snapshots != nil {
		lister = snapshots
	}
	analytics.NewHandler(aggregator, lister).Register(mux)
	if keys != nil {
		auth.NewHandler(keys, adminGuard).Register(mux)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := []func(http.Handler) http.Handler{middleware.Recover, middleware.RequestID, middleware.Tracing}
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = append(chain, middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins)))
	}
	if cfg.Auth.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Auth.RateLimit, cfg.Auth.RateWindow)
		limiter.StartCleanup(ctx, 5*time.Minute)
		chain = append(chain, auth.RateLimit(limiter))
	}
	// Metrics must wrap the mux directly to see the matched route pattern.
	chain = append(chain, middleware.Timeout(cfg.Server.WriteTimeout), middleware.Metrics(m))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, chain...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("fuzzyd listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// replay loads the durable entry log into the engine before serving.
func replay(ctx context.Context, timeout time.Duration, store *entrystore.Store, engine *indexer.Engine, m *metrics.Metrics) error {
	start := time.Now()
	var applied int
	err := resilience.WithTimeout(ctx, timeout, "entry replay", func(ctx context.Context) error {
		n, err := store.Replay(ctx, func(e entrystore.Entry) error {
			if engine.Insert(e.Key, e.Text, e.Bounded) {
				applied++
				m.EntriesIndexedTotal.WithLabelValues("replay").Inc()
			}
			return nil
		})
		slog.Debug("entry log scanned", "rows", n)
		return err
	})
	if err != nil {
		return fmt.Errorf("replaying entry log: %w", err)
	}
	slog.Info("entry log replayed", "applied", applied, "duration", time.Since(start))
	return nil
}

// entryConsumerOptions gives every process its own consumer group so that each
// replica's index sees every entry. With a durable log the index was just
// replayed and only new entries are needed; without one the topic is the only
// copy of the corpus and is read from the start.
func entryConsumerOptions(cfg config.KafkaConfig, replayed bool) kafka.ConsumerOptions {
	return kafka.ConsumerOptions{
		GroupID:       cfg.ConsumerGroup + "-" + uuid.NewString(),
		FromBeginning: !replayed,
	}
}
