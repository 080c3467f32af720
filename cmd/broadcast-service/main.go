package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/esports-wager-settlement/internal/broadcast/ws"
	sharedcache "github.com/radieske/esports-wager-settlement/internal/shared/cache"
	"github.com/radieske/esports-wager-settlement/internal/shared/config"
	"github.com/radieske/esports-wager-settlement/internal/shared/logger"
	"github.com/radieske/esports-wager-settlement/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	relayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_messages_total", Help: "envelopes recebidos do Pub/Sub por tópico",
	}, []string{"topic"})
	reg := metrics.NewRegistry()
	reg.MustRegister(relayed)

	origins := map[string]bool{}
	for _, o := range cfg.CORSOrigins {
		origins[o] = true
	}
	hub := ws.NewHub(log, func(r *http.Request) bool {
		return origins["*"] || origins[r.Header.Get("Origin")]
	})
	ws.StartRedisSubscriber(ctx, log, redisClient, cfg.RedisPubSubChannel, hub, func(topic string) {
		relayed.WithLabelValues(topic).Inc()
	})

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, reg, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	r := chi.NewRouter()
	r.Get("/ws", hub.HandleWS)
	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("ws listening", zap.String("addr", srv.Addr), zap.String("channel", cfg.RedisPubSubChannel))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ws server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("broadcast-service stopped")
}
