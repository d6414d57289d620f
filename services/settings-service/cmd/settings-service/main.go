package main

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/availo-hq/availo/libs/auth"
	"github.com/availo-hq/availo/libs/config"
	"github.com/availo-hq/availo/libs/db"
	"github.com/availo-hq/availo/libs/httpx"
	"github.com/availo-hq/availo/libs/kafkax"
	otelx "github.com/availo-hq/availo/libs/otel"
	"github.com/availo-hq/availo/libs/runtime"
	"github.com/availo-hq/availo/services/settings-service/internal/handlers"
	"github.com/availo-hq/availo/services/settings-service/internal/outbox"
	"github.com/availo-hq/availo/services/settings-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "settings-service")
	port, err := config.Port("PORT", "8081")
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

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	settingsHandler := handlers.NewSettingsHandler(repo, outboxRepo, logger)
	connectionsHandler := handlers.NewConnectionsHandler(repo, outboxRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	jwtSecret := config.String("JWT_SECRET", "dev-secret")
	mux.Handle("/api/v1/settings", requireOwner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			settingsHandler.Get(w, r)
		case http.MethodPut:
			settingsHandler.Update(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}), jwtSecret))
	mux.Handle("/api/v1/settings/connections", requireOwner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			connectionsHandler.List(w, r)
		case http.MethodPost:
			connectionsHandler.Create(w, r)
		case http.MethodDelete:
			connectionsHandler.Delete(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}), jwtSecret))
	mux.Handle("/api/v1/settings/connections/active", requireOwner(http.HandlerFunc(connectionsHandler.SetActive), jwtSecret))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "settings")
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

// requireOwner verifies the Bearer token and pins the owner identity onto the
// request. Any client-supplied X-Owner-Id is discarded.
func requireOwner(next http.Handler, jwtSecret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}
		claims, err := auth.ParseAndVerifyHS256(token, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		ownerID := claims.OwnerID
		if ownerID == "" {
			ownerID = claims.Sub
		}
		if ownerID == "" {
			http.Error(w, "token carries no owner identity", http.StatusUnauthorized)
			return
		}
		r.Header.Del("X-Owner-Id")
		r.Header.Set("X-Owner-Id", ownerID)
		next.ServeHTTP(w, r)
	})
}
