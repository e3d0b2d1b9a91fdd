package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hermes/internal/adapters/ai"
	"hermes/internal/adapters/clickhouse"
	"hermes/internal/adapters/config"
	"hermes/internal/adapters/errors/noop"
	sentrytracker "hermes/internal/adapters/errors/sentry"
	"hermes/internal/adapters/kafka"
	"hermes/internal/adapters/postgres"
	redisadapter "hermes/internal/adapters/redis"
	"hermes/internal/adapters/telegram"
	"hermes/internal/agents"
	"hermes/internal/metrics"
	chrepo "hermes/internal/repository/clickhouse"
	pgrepo "hermes/internal/repository/postgres"
	featuresvc "hermes/internal/services/features"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hermes: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	query := flag.String("query", "I want a discount or I'm leaving!", "customer query for one-shot mode")
	userID := flag.String("user", "user_102", "user identifier for one-shot mode")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return errors.Wrap(err, "failed to init logger")
	}
	defer logger.Sync()

	tracker, err := buildTracker(cfg)
	if err != nil {
		return err
	}
	logger.SetErrorTracker(tracker)
	defer tracker.Flush(context.Background())

	logger.Infof("Starting %s (%s)", cfg.App.Name, cfg.App.Env)

	// Cold store (analytical profiles)
	ch, err := clickhouse.NewClient(cfg.ClickHouse)
	if err != nil {
		return errors.Wrap(err, "failed to connect to clickhouse")
	}
	defer ch.Close()

	// Hot store (live cart sessions)
	pg, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		return errors.Wrap(err, "failed to connect to postgres")
	}
	defer pg.Close()

	featureService := featuresvc.NewService(
		chrepo.NewAnalyticsRepository(ch.Conn()),
		pgrepo.NewSessionRepository(pg.DB()),
	)

	limiter, closeLimiter, err := buildLimiter(cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	gateway := agents.NewGateway(agents.GatewayConfig{
		Client:        ai.NewClient(cfg.Inference),
		Limiter:       limiter,
		FallbackModel: cfg.Inference.DefaultModel,
		Temperature:   cfg.Inference.Temperature,
	})

	var audit agents.AuditSink
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		defer producer.Close()
		audit = producer
	}

	negotiator := agents.NewNegotiator(agents.NegotiatorConfig{
		Gateway:    gateway,
		Features:   featureService,
		Audit:      audit,
		AuditTopic: cfg.Kafka.AuditTopic,
		Rules:      cfg.Negotiation,
	})

	if cfg.Telegram.Enabled {
		return serve(cfg, negotiator)
	}

	return oneShot(negotiator, *query, *userID)
}

// oneShot runs a single negotiation turn and prints the reply to stdout.
func oneShot(negotiator *agents.Negotiator, query, userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reply, err := negotiator.Negotiate(ctx, query, userID)
	if err != nil {
		return err
	}

	fmt.Println(reply)
	return nil
}

// serve runs the Telegram bot and the metrics endpoint until interrupted.
func serve(cfg *config.Config, negotiator *agents.Negotiator) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsServer := &http.Server{
		Addr:    cfg.App.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logger.Infof("Metrics listening on %s", cfg.App.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server failed: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	bot, err := telegram.NewBot(cfg.Telegram.BotToken, negotiator)
	if err != nil {
		return err
	}

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Shutting down")
	return nil
}

func buildTracker(cfg *config.Config) (errors.Tracker, error) {
	if cfg.ErrorTracking.Enabled && cfg.ErrorTracking.SentryDSN != "" {
		tracker, err := sentrytracker.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
		if err != nil {
			return nil, errors.Wrap(err, "failed to init sentry")
		}
		return tracker, nil
	}
	return noop.New(), nil
}

// buildLimiter picks the Redis-backed limiter when Redis is enabled, so that
// replicas share the endpoint quota, and falls back to an in-process bucket.
func buildLimiter(cfg *config.Config) (ai.RateLimiter, func(), error) {
	if !cfg.Redis.Enabled {
		return ai.NewLocalLimiter(cfg.Inference.ReqPerMinute, cfg.Inference.Burst), func() {}, nil
	}

	rdb, err := redisadapter.NewClient(cfg.Redis)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to redis")
	}

	limiter := ai.NewRedisLimiter(rdb.Client(), cfg.App.Name, cfg.Inference.ReqPerMinute, cfg.Inference.Burst)
	return limiter, func() { _ = rdb.Close() }, nil
}
