package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"social-pipeline/internal/app"
	"social-pipeline/internal/infra/config"
	applog "social-pipeline/internal/infra/log"
	"social-pipeline/internal/infra/metrics"
	"social-pipeline/internal/usecase/pipeline"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось собрать конвейер")
	}
	defer a.Close()
	if a.Queue == nil {
		logger.Fatal().Msg("worker: очередь не настроена (REDIS_ADDR или QUEUE_BACKEND=rabbitmq)")
	}

	go a.Dedup.Run(ctx)

	var ledger pipeline.JobLedger
	if a.Repo != nil {
		ledger = a.Repo
	} else {
		logger.Warn().Msg("worker: PG_DSN не задан, повторная доставка может повторить действия")
	}
	consumer := pipeline.NewConsumer(a.Queue, a.Pipeline, ledger, cfg.Pipeline.Workers, logger)
	if err := consumer.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: потребитель остановлен с ошибкой")
	}
	logger.Info().Msg("worker: остановка")
}
