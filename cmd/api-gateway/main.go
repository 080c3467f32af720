package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/esports-wager-settlement/internal/gateway"
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

	h, err := gateway.Router(log, gateway.Targets{
		Settlement: cfg.SettlementURL,
		Broadcast:  cfg.BroadcastURL,
	}, cfg.CORSOrigins)
	if err != nil {
		log.Fatal("gateway config", zap.Error(err))
	}

	// gateway não tem dependências próprias; saúde dos upstreams fica com cada serviço
	reg := metrics.NewRegistry()
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, reg, func(context.Context) error { return nil })

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("api-gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("settlement", cfg.SettlementURL),
			zap.String("broadcast", cfg.BroadcastURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("gateway failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
