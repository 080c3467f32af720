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

	"github.com/radieske/esports-wager-settlement/internal/settlement/cache"
	"github.com/radieske/esports-wager-settlement/internal/settlement/consumer"
	httpapi "github.com/radieske/esports-wager-settlement/internal/settlement/http"
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
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("store", cfg.StoreDriver))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// storage do motor
	st, health, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	if cfg.SeedFile != "" {
		if err := seed(ctx, st, cfg.SeedFile); err != nil {
			log.Fatal("seed failed", zap.String("file", cfg.SeedFile), zap.Error(err))
		}
		log.Info("fixtures loaded", zap.String("file", cfg.SeedFile))
	}

	// Redis: cache de views e Pub/Sub para o broadcast. Em memória é opcional.
	var redisClient *redis.Client
	if rc, err := sharedcache.ConnectRedis(cfg.RedisAddr); err == nil {
		redisClient = rc
		defer redisClient.Close()
		log.Info("redis connected")
	} else if cfg.StoreDriver != "memory" {
		log.Fatal("failed to connect redis", zap.Error(err))
	} else {
		log.Warn("redis unavailable, running without cache and broadcast", zap.Error(err))
	}

	// Kafka: espelho das notificações e fila de conclusões assíncronas
	eventsWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlementEvents)
	defer eventsWriter.Close()
	queueWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchConcluded)
	defer queueWriter.Close()

	targets := []notify.Publisher{notify.NewKafka(eventsWriter)}
	if redisClient != nil {
		targets = append(targets, notify.NewRedis(redisClient, cfg.RedisPubSubChannel))
	}

	engine := service.NewEngine(log, st, notify.NewMulti(log, targets...))
	reg := metrics.NewRegistry()
	engine.Hooks = service.MetricHooks(metrics.NewSettlement(reg))
	if redisClient != nil {
		engine.Cache = cache.New(redisClient, cfg.WagerViewTTL)
	}

	// sobe servidor de métricas e health
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, reg, func(ctx context.Context) error {
		if err := health(ctx); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	api := &httpapi.API{
		Log:         log,
		Engine:      engine,
		Queue:       consumer.NewQueue(queueWriter),
		CORSOrigins: cfg.CORSOrigins,
	}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

// openStore escolhe o storage pelo STORE_DRIVER; postgres aplica o schema na subida
func openStore(ctx context.Context, cfg config.Config) (store.Store, metrics.HealthFunc, func(), error) {
	if cfg.StoreDriver == "memory" {
		return store.NewMemory(), func(context.Context) error { return nil }, func() {}, nil
	}
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	st := store.NewPostgres(pg)
	if err := st.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, nil, err
	}
	return st, pg.PingContext, func() { pg.Close() }, nil
}

func seed(ctx context.Context, st store.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return store.Seed(ctx, st, f)
}
