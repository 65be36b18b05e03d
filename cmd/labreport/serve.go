package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	catalogHandler "github.com/jwalitptl/labreport/internal/handler/catalog"
	"github.com/jwalitptl/labreport/internal/handler/health"
	promHandler "github.com/jwalitptl/labreport/internal/handler/prometheus"
	reportHandler "github.com/jwalitptl/labreport/internal/handler/report"
	sequenceHandler "github.com/jwalitptl/labreport/internal/handler/sequence"
	"github.com/jwalitptl/labreport/internal/middleware"
	"github.com/jwalitptl/labreport/internal/router"
	internalWorker "github.com/jwalitptl/labreport/internal/worker"
	"github.com/jwalitptl/labreport/pkg/messaging"
	"github.com/jwalitptl/labreport/pkg/messaging/redis"
	"github.com/jwalitptl/labreport/pkg/worker"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the report API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath)
		},
	}
}

func runServer(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	broker, err := a.broker()
	if err != nil {
		return err
	}
	if a.redis == nil {
		defer broker.Close()
	}

	publisher := worker.NewEventPublisher(broker, worker.EventPublisherConfig{
		QueueSize:     cfg.Events.QueueSize,
		RetryAttempts: cfg.Events.RetryAttempts,
		RetryDelay:    cfg.Events.RetryDelay,
	}, a.log, a.metrics)

	pubCtx, cancelPub := context.WithCancel(context.Background())
	pubDone := make(chan struct{})
	go func() {
		defer close(pubDone)
		publisher.Start(pubCtx)
	}()
	defer func() {
		cancelPub()
		<-pubDone
	}()

	svc, cat, err := a.reportService(publisher)
	if err != nil {
		return err
	}

	sweeper := internalWorker.NewDraftSweeper(a.drafts, cfg.Drafts.CleanupInterval, a.metrics,
		a.log.Zerolog().With().Str("component", "drafts").Logger())
	go sweeper.Start(pubCtx)

	if err := middleware.RegisterValidation(); err != nil {
		return err
	}

	var metricsH gin.HandlerFunc
	if cfg.Monitoring.PrometheusEnabled {
		metricsH = promHandler.New(a.registry).Handler()
	}

	r := router.NewRouter(
		reportHandler.NewHandler(svc),
		catalogHandler.NewHandler(cat, cfg.Lab.Doctors),
		sequenceHandler.NewHandler(a.seq, a.seqRepo.Backend()),
		health.NewHandler(a.healthChecks()),
		metricsH,
		router.RouterConfig{
			Mode:        cfg.Server.Mode,
			RateLimit:   rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:   cfg.RateLimit.Burst,
			RateEnabled: cfg.RateLimit.Enabled,
			CORSConfig:  a.corsConfig(),
			SizeLimit: middleware.SizeLimitConfig{
				MaxBodySize:   cfg.Server.MaxBodyBytes,
				MaxHeaderSize: cfg.Server.MaxHeaderBytes,
				ErrorMessage:  "Request size exceeds limit",
			},
			Timeout:     middleware.TimeoutConfig{Duration: cfg.Server.WriteTimeout},
			MetricsPath: cfg.Monitoring.MetricsPath,
			Metrics:     a.metrics,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server listening", "addr", srv.Addr, "sequence_backend", a.seqRepo.Backend())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.log.Info("server exited properly")
	return nil
}

// broker publishes export events to Redis when events are enabled and to the
// log otherwise.
func (a *app) broker() (messaging.Broker, error) {
	zl := a.log.Zerolog()
	if !a.cfg.Events.Enabled {
		return messaging.NewLogBroker(zl), nil
	}

	// Share the sequencer's connection when it already uses Redis
	if a.redis != nil {
		return redis.NewWithClient(a.redis, zl), nil
	}
	return redis.NewRedisBroker(redis.Config{
		URL:          a.cfg.Redis.URL,
		MaxRetries:   a.cfg.Redis.MaxRetries,
		RetryBackoff: a.cfg.Redis.RetryBackoff,
		PoolSize:     a.cfg.Redis.PoolSize,
		MinIdleConns: a.cfg.Redis.MinIdleConns,
	}, zl)
}

func (a *app) healthChecks() map[string]health.Checker {
	checks := map[string]health.Checker{
		"sequence": health.CheckerFunc(func(ctx context.Context) error {
			_, err := a.seq.Current(ctx)
			return err
		}),
	}
	if a.db != nil {
		checks["database"] = health.CheckerFunc(func(ctx context.Context) error {
			return a.db.PingContext(ctx)
		})
	}
	if a.redis != nil {
		checks["redis"] = health.CheckerFunc(func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	return checks
}

func (a *app) corsConfig() middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	sec := a.cfg.Security
	if len(sec.AllowedOrigins) > 0 {
		cors.AllowOrigins = sec.AllowedOrigins
	}
	if len(sec.AllowedMethods) > 0 {
		cors.AllowMethods = sec.AllowedMethods
	}
	if len(sec.AllowedHeaders) > 0 {
		cors.AllowHeaders = sec.AllowedHeaders
	}
	return cors
}
