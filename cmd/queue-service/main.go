package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"patientportal/queue-service/internal/audit"
	"patientportal/queue-service/internal/config"
	"patientportal/queue-service/internal/httpapi"
	"patientportal/queue-service/internal/queue"
	"patientportal/queue-service/internal/store/postgres"
	"patientportal/queue-service/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	log := slog.Default()

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, "queue-service", cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		log.Error("schema setup failed", "error", err)
		os.Exit(1)
	}

	st := postgres.NewStore(pool)
	auditSink := audit.NewLogger(log, st)
	service := queue.NewService(st, auditSink, log, queue.Options{
		Location:                 cfg.Location,
		QueueCloseHour:           cfg.QueueCloseHour,
		DefaultAvgServiceMinutes: cfg.DefaultAvgServiceMinutes,
		MaxReissueCount:          cfg.MaxReissueCount,
		ReissueProximity:         cfg.ReissueProximity,
		MaxAdvanceStep:           cfg.MaxAdvanceStep,
	})

	handler := httpapi.NewHandler(service)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:   cfg.RateLimitPerMinute,
		IPBurst:       cfg.RateLimitBurst,
		UserPerMinute: cfg.UserRateLimitPerMinute,
		UserBurst:     cfg.UserRateLimitBurst,
	})

	api := otelhttp.NewHandler(
		httpapi.LoggingMiddleware(log,
			httpapi.IdentityMiddleware(
				limiter.Middleware(handler.Routes()))),
		"queue-service",
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("queue-service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", "error", err)
	}
}
