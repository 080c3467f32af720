package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/esports-wager-settlement/internal/settlement/cache"
	"github.com/radieske/esports-wager-settlement/internal/settlement/consumer"
	"github.com/radieske/esports-wager-settlement/internal/settlement/notify"
	"github.com/radieske/esports-wager-settlement/internal/settlement/service"
	"github.com/radieske/esports-wager-settlement/internal/settlement/store"
	sharedcache "github.com/radieske/esports-wager-settlement/internal/shared/cache"
	"github.com/radieske/esports-wager-settlement/internal/shared/config"
	"github.com/radieske/esports-wager-settlement/internal/shared/db"
	"github.com/radieske/esports-wager-settlement/internal/shared/kafka"
	"github.com/radieske/esports-wager-settlement/internal/shared/logger"
	"github.com/radieske/esports-wager-settlement/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// O worker divide o storage com o settlement-service, então só Postgres faz sentido
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	st := store.NewPostgres(pg)
	if err := st.Migrate(ctx); err != nil {
		log.Fatal("apply schema", zap.Error(err))
	}

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	eventsWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlementEvents)
	defer eventsWriter.Close()
	dlqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchConcludedDLQ)
	defer dlqWriter.Close()

	// Consumer group do worker (commit manual após a cascata)
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMatchConcluded, "settlement-worker")
	defer reader.Close()

	reg := metrics.NewRegistry()
	m := metrics.NewSettlement(reg)

	notifier := notify.NewMulti(log,
		notify.NewRedis(redisClient, cfg.RedisPubSubChannel),
		notify.NewKafka(eventsWriter),
	)
	engine := service.NewEngine(log, st, notifier)
	engine.Cache = cache.New(redisClient, cfg.WagerViewTTL)
	engine.Hooks = service.MetricHooks(m)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Engine:     engine,
		DLQ:        dlqWriter,
		Retries:    3,
		Backoff:    300 * time.Millisecond,
		OnConsumed: func() { m.WorkerMessages.WithLabelValues("consumed").Inc() },
		OnSettled:  func() { m.WorkerMessages.WithLabelValues("settled").Inc() },
		OnError:    func(stage string) { m.WorkerErrors.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, reg, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	defer metricsSrv.Close()

	// varredura de recuperação: na subida e a cada RECOVERY_INTERVAL
	go engine.RunRecovery(ctx, cfg.RecoveryInterval)

	log.Info("settlement-worker started",
		zap.String("consume", cfg.TopicMatchConcluded),
		zap.String("dlq", cfg.TopicMatchConcludedDLQ),
		zap.Duration("recovery_interval", cfg.RecoveryInterval),
	)
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("settlement-worker stopped")
}
