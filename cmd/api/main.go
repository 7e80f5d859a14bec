package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"social-pipeline/internal/adapters/httpapi"
	"social-pipeline/internal/app"
	"social-pipeline/internal/infra/config"
	httpinfra "social-pipeline/internal/infra/http"
	applog "social-pipeline/internal/infra/log"
	"social-pipeline/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось собрать конвейер")
	}
	defer a.Close()
	if cfg.Pipeline.InlineProcess {
		go a.Dedup.Run(ctx)
	}

	deps := httpapi.Deps{
		Pipeline:  a.Pipeline,
		Queue:     a.Queue,
		Dedup:     a.Dedup,
		Execution: a.Execution,
	}
	if a.Repo != nil {
		deps.Audit = a.Repo
	}
	handlers, err := httpapi.New(deps, httpapi.Config{
		Inline:       cfg.Pipeline.InlineProcess,
		IngestSecret: cfg.Webhooks.IngestSecret,
		Brand:        app.Brand(cfg),
	}, applog.Component(logger, "api"))
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось создать обработчики")
	}

	srv := httpinfra.NewServer(logger)
	handlers.Mount(srv.Router, cfg.APIToken)

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
