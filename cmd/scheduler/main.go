package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"social-pipeline/internal/app"
	"social-pipeline/internal/infra/config"
	applog "social-pipeline/internal/infra/log"
	"social-pipeline/internal/infra/metrics"
)

type depthReporter interface {
	Pending(ctx context.Context) (queued, inFlight int64, err error)
}

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	cfg.Telegram.Token = ""
	a, err := app.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось подключить инфраструктуру")
	}
	defer a.Close()

	depth, _ := a.Queue.(depthReporter)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	lastPrune := time.Time{}
	for {
		if depth != nil {
			reportDepth(ctx, logger, depth, cfg.Queue.EventsKey)
		}
		if a.Repo != nil && time.Since(lastPrune) >= time.Hour {
			removed, err := a.Repo.PruneEventJobs(ctx, cfg.Pipeline.JobRetention)
			if err != nil {
				logger.Error().Err(err).Msg("scheduler: не удалось очистить журнал задач")
			} else {
				logger.Info().Int64("removed", removed).Msg("scheduler: журнал задач очищен")
				lastPrune = time.Now()
			}
		}
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановка")
			return
		case <-ticker.C:
		}
	}
}

func reportDepth(ctx context.Context, logger zerolog.Logger, depth depthReporter, queue string) {
	queued, inFlight, err := depth.Pending(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("scheduler: не удалось получить размер очереди")
		return
	}
	metrics.SetQueueDepth(queue, queued, inFlight)
	if inFlight > 0 {
		logger.Debug().Int64("queued", queued).Int64("in_flight", inFlight).Msg("scheduler: состояние очереди")
	}
}
