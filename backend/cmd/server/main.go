package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lookbook/backend/internal/api"
	"lookbook/backend/internal/cache"
	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/docstore/mongostore"
	"lookbook/backend/internal/docstore/neo4jstore"
	"lookbook/backend/internal/events"
	"lookbook/backend/internal/social"
	"lookbook/backend/pkg/config"
	"lookbook/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...",
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("redis_cache", cfg.RedisAddr != ""),
		zap.Bool("nats_events", cfg.NatsURL != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	log.Info("Server exited")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	privacy, closeCache, err := openPrivacyCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	publisher, closePublisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	engine := social.New(social.Options{
		Store:                          store,
		Publisher:                      publisher,
		PrivacyCache:                   privacy,
		FeedCacheTTL:                   cfg.FeedCacheTTL,
		FeedPageSize:                   cfg.FeedPageSize,
		OwnerLookupConcurrency:         cfg.OwnerLookupConcurrency,
		DedupeInteractionNotifications: cfg.DedupeInteractionNotifications,
		CascadeOnPrivacyChange:         cfg.CascadeOnPrivacyChange,
		Logger:                         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(engine, log.Named("api"), cfg.IsProduction()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", zap.Error(err))
			return err
		}
		return nil
	})
	return g.Wait()
}

// openStore connects the configured document store backend.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (docstore.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Warn("Using in-memory document store; data is lost on restart")
		return docstore.NewMemoryStore(), func() {}, nil

	case config.BackendMongo:
		store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(context.Background()); err != nil {
				log.Warn("Failed to close MongoDB client", zap.Error(err))
			}
		}, nil

	case config.BackendNeo4j:
		store, err := neo4jstore.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, nil, fmt.Errorf("ensure neo4j schema: %w", err)
		}
		return store, func() {
			if err := store.Close(context.Background()); err != nil {
				log.Warn("Failed to close Neo4j driver", zap.Error(err))
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// openPrivacyCache uses redis when configured so replicas share privacy
// verdicts, and an in-process cache otherwise.
func openPrivacyCache(ctx context.Context, cfg *config.Config) (cache.PrivacyCache, func(), error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryPrivacyCache(cfg.PrivacyCacheTTL), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
	}
	return cache.NewRedisPrivacyCache(client, cfg.PrivacyCacheTTL), func() { _ = client.Close() }, nil
}

func openPublisher(cfg *config.Config) (events.Publisher, func(), error) {
	if cfg.NatsURL == "" {
		return events.NopPublisher{}, func() {}, nil
	}
	pub, err := events.Connect(cfg.NatsURL)
	if err != nil {
		return nil, nil, err
	}
	return pub, func() { _ = pub.Close() }, nil
}
