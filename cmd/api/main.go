package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kidshovel/marketplace-back/internal/cache"
	"github.com/kidshovel/marketplace-back/internal/config"
	httpserver "github.com/kidshovel/marketplace-back/internal/http"
	"github.com/kidshovel/marketplace-back/internal/http/handlers"
	"github.com/kidshovel/marketplace-back/internal/notify"
	"github.com/kidshovel/marketplace-back/internal/payment"
	"github.com/kidshovel/marketplace-back/internal/queue"
	"github.com/kidshovel/marketplace-back/internal/ratelimit"
	"github.com/kidshovel/marketplace-back/internal/repository"
	"github.com/kidshovel/marketplace-back/internal/service"
	"github.com/kidshovel/marketplace-back/internal/worker"
)

func main() {
	logger := log.New(os.Stdout, "[kidshovel] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, storeCloser := setupStore(ctx, cfg, logger)
	defer storeCloser()

	producer, consumer, limiter, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	dispatcher := notify.NewDispatcher(producer, logger)

	summaryCache := cache.NewSummaryCache(cache.Config{})

	jobsService := service.NewJobsService(store, dispatcher, logger)
	ratingsService := service.NewRatingsService(store, dispatcher, summaryCache, logger)
	earningsService := service.NewEarningsService(store, summaryCache)
	paymentsService := payment.NewService(store, payment.NoopGateway{}, logger)

	api := handlers.NewAPI(jobsService, ratingsService, earningsService, paymentsService)

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	if cfg.WorkerEnabled {
		window := time.Duration(cfg.NotificationWindowHours) * time.Hour
		processor := worker.NewProcessor(consumer, notify.NewLogSender(logger), limiter, window, logger)
		go processor.Start(ctx)
		logger.Printf("notification worker enabled and started")
	} else {
		logger.Printf("notification worker disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func setupStore(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.Store, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory store")
		return repository.NewMemoryStore(), func() {}
	}

	pgStore, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres store, fallback to memory: %v", err)
		return repository.NewMemoryStore(), func() {}
	}
	logger.Printf("postgres store initialized")
	return pgStore, func() {
		pgStore.Close()
	}
}

func setupQueue(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (queue.Producer, queue.Consumer, ratelimit.NotificationLimiter, func()) {
	var (
		baseProducer queue.Producer
		consumer     queue.Consumer
		limiter      ratelimit.NotificationLimiter
		baseCloser   = func() {}
	)

	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using local queue fallback")
		local := queue.NewLocalQueue(512, 3, logger)
		baseProducer = local
		consumer = local
		limiter = ratelimit.NewMemoryLimiter()
	} else {
		streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			Stream:      cfg.RedisStream,
			DLQStream:   cfg.RedisDLQ,
			Group:       cfg.RedisGroup,
			Consumer:    cfg.RedisConsumer,
			MaxAttempts: 3,
		})
		if err != nil {
			logger.Printf("failed to initialize redis streams queue, fallback to local: %v", err)
			local := queue.NewLocalQueue(512, 3, logger)
			baseProducer = local
			consumer = local
			limiter = ratelimit.NewMemoryLimiter()
		} else {
			logger.Printf("redis streams queue initialized")
			baseProducer = streams
			consumer = streams
			// Share the connection so the notification window holds across
			// instances.
			limiter = ratelimit.NewRedisLimiter(streams.Client())
			baseCloser = func() {
				_ = streams.Close()
			}
		}
	}

	producer := baseProducer
	batchingCloser := func() {}
	if cfg.QueueBatchingEnabled {
		batching := queue.NewBatchingProducer(ctx, baseProducer, queue.BatchingConfig{
			MaxBatchSize:       cfg.QueueBatchSize,
			FlushInterval:      time.Duration(cfg.QueueBatchFlushMS) * time.Millisecond,
			FlushTimeout:       time.Duration(cfg.QueueBatchFlushTimeoutMS) * time.Millisecond,
			QueueCapacity:      cfg.QueueBatchQueueCapacity,
			MaxInFlightBatches: cfg.QueueBatchMaxInFlight,
		})
		producer = batching
		batchingCloser = batching.Close
		logger.Printf(
			"queue batching enabled size=%d flush_ms=%d queue_capacity=%d max_in_flight=%d",
			cfg.QueueBatchSize,
			cfg.QueueBatchFlushMS,
			cfg.QueueBatchQueueCapacity,
			cfg.QueueBatchMaxInFlight,
		)
	}

	return producer, consumer, limiter, func() {
		batchingCloser()
		baseCloser()
	}
}
