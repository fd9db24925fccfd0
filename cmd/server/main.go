package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/answer"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/api"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/assistant"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/events"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/index"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/store"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults only when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	instanceID := uuid.NewString()
	slog.Info("starting support assistant",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"answer_provider", cfg.Answer.Provider,
		"instance", instanceID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	st := store.New(db)
	idx := index.New(st, index.WithMetrics(m))
	st.OnChange(func(context.Context, store.Change) { idx.Invalidate() })

	checker := health.NewChecker()
	checker.Register("record_store", health.Ping(st.Ping, false))

	var opts []assistant.Option
	if m != nil {
		opts = append(opts, assistant.WithMetrics(m))
	}

	if cfg.Redis.Addr != "" {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, answer caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			opts = append(opts, assistant.WithCache(assistant.NewAnswerCache(redisClient, cfg.Redis.CacheTTL, m)))
			checker.Register("redis", health.Ping(redisClient.Ping, true))
			slog.Info("answer cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var consumerDone chan struct{}
	if len(cfg.Kafka.Brokers) > 0 {
		topic := cfg.Kafka.Topics.RecordChanges
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		st.OnChange(events.NewPublisher(producer, instanceID, m).OnChange)

		// Every replica must see every change, so each joins its own group.
		group := cfg.Kafka.ConsumerGroup + "-" + instanceID
		consumer := kafka.NewConsumer(cfg.Kafka, topic, group, events.Handler(idx, instanceID, m))
		consumerDone = make(chan struct{})
		go func() {
			defer close(consumerDone)
			if err := consumer.Start(ctx); err != nil {
				slog.Error("record change consumer error", "error", err)
			}
		}()
		slog.Info("record change events enabled", "topic", topic, "group", group)
	}

	aggregator := analytics.NewAggregator()
	collector := analytics.NewCollector(aggregator, cfg.Analytics.BufferSize)
	collector.Start(ctx)
	opts = append(opts, assistant.WithTracker(collector))
	st.OnChange(analytics.ChangeListener(collector, m))

	snapshots := analytics.NewSnapshotStore(db)
	var snapshotsDone <-chan struct{}
	if cfg.Analytics.SnapshotInterval > 0 {
		snapshotsDone = snapshots.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
	}

	composers, err := answer.FromConfig(cfg.Answer, m)
	if err != nil {
		slog.Error("failed to configure answer composer", "error", err)
		os.Exit(1)
	}
	svc := assistant.NewService(idx, composers, cfg.Retrieval, opts...)

	deps := api.Deps{
		Health:    checker,
		Analytics: analytics.NewHandler(aggregator, snapshots),
		Metrics:   m,
	}
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimitPerMinute, time.Minute)
		go limiter.Run(ctx)
		deps.Limiter = limiter
	}
	if cfg.Tracing.Enabled {
		deps.SpanLogger = logger.WithComponent("tracing")
	}
	router := api.NewRouter(api.NewHandler(st, svc, idx, *cfg), deps)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("support assistant listening", "addr", server.Addr)
	failed := false
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		failed = true
		stop()
	}

	if consumerDone != nil {
		<-consumerDone
	}
	collector.Close()
	if snapshotsDone != nil {
		<-snapshotsDone
	}
	slog.Info("support assistant stopped")
	if failed {
		os.Exit(1)
	}
}
