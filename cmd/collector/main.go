package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"social-pipeline/internal/adapters/mtproto"
	"social-pipeline/internal/adapters/repo"
	"social-pipeline/internal/app"
	"social-pipeline/internal/infra/config"
	applog "social-pipeline/internal/infra/log"
	"social-pipeline/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	if cfg.PGDSN == "" {
		logger.Fatal().Msg("collector: не указан PG_DSN для хранения MTProto-сессии")
	}
	// Bot API сборщику не нужен, токен используется только для авторизации MTProto.
	botToken := cfg.Telegram.Token
	cfg.Telegram.Token = ""
	a, err := app.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: не удалось подключить инфраструктуру")
	}
	defer a.Close()
	if a.Queue == nil {
		logger.Fatal().Msg("collector: очередь не настроена (REDIS_ADDR или QUEUE_BACKEND=rabbitmq)")
	}

	listener, err := mtproto.NewListener(mtproto.Config{
		APIID:              cfg.Telegram.APIID,
		APIHash:            cfg.Telegram.APIHash,
		BotToken:           botToken,
		Channels:           cfg.Telegram.Channels,
		MaxEventsPerSecond: cfg.MTProto.MaxEventsRPS,
		Brand:              app.Brand(cfg),
	}, repo.NewSessionStorage(a.Repo, cfg.MTProto.SessionName), a.Queue, applog.Component(logger, "collector"))
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: некорректная конфигурация MTProto")
	}

	logger.Info().Strs("channels", cfg.Telegram.Channels).Msg("collector: старт")
	if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("collector: остановлен с ошибкой")
	}
	logger.Info().Msg("collector: остановка")
}
