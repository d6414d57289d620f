package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/availo-hq/availo/libs/config"
	"github.com/availo-hq/availo/libs/db"
	"github.com/availo-hq/availo/libs/httpx"
	"github.com/availo-hq/availo/libs/kafkax"
	otelx "github.com/availo-hq/availo/libs/otel"
	"github.com/availo-hq/availo/libs/runtime"
	"github.com/availo-hq/availo/services/availability-service/internal/busy"
	"github.com/availo-hq/availo/services/availability-service/internal/cache"
	"github.com/availo-hq/availo/services/availability-service/internal/consumer"
	"github.com/availo-hq/availo/services/availability-service/internal/handlers"
	"github.com/availo-hq/availo/services/availability-service/internal/provider"
	"github.com/availo-hq/availo/services/availability-service/internal/resolve"
	"github.com/availo-hq/availo/services/availability-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "availability-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		logger.Info("feed cache enabled (redis)", "redis_addr", addr)
	} else {
		logger.Info("feed cache disabled; every request resolves fresh")
	}
	feedCache := cache.NewFeedCache(rdb,
		config.Duration("FEED_CACHE_TTL", time.Minute),
		config.String("FEED_CACHE_PREFIX", "feed"),
		logger,
	)

	registry := provider.DefaultRegistry(config.Duration("ICS_HTTP_TIMEOUT", 5*time.Second))
	aggregator := busy.NewAggregator(registry, logger, config.Duration("BUSY_FETCH_TIMEOUT", 3*time.Second))
	reader := storage.NewReader(pool)
	resolver := resolve.New(reader, reader, aggregator, logger, nil)
	feedHandler := handlers.NewFeedHandler(resolver, feedCache, logger)

	if topic := strings.TrimSpace(config.String("KAFKA_CONSUME_TOPIC", "settings.changed.v1")); topic != "" && rdb != nil {
		eventConsumer := consumer.New(logger, feedCache, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "availability-service"),
			Topic:   topic,
		})
		go eventConsumer.Run(ctx)
	}

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/public/availability", feedHandler.Get)

	// The widget embeds on arbitrary origins, so the public feed is CORS-open.
	var rateLimitMW httpx.Middleware
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if rdb != nil {
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
		rateLimitMW,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "availability")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
