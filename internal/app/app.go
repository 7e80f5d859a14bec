// Package app собирает компоненты конвейера из конфигурации окружения.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"social-pipeline/internal/adapters/analyzer"
	"social-pipeline/internal/adapters/audit"
	"social-pipeline/internal/adapters/bot"
	"social-pipeline/internal/adapters/crm"
	"social-pipeline/internal/adapters/generator"
	"social-pipeline/internal/adapters/poster"
	"social-pipeline/internal/adapters/repo"
	"social-pipeline/internal/adapters/telegram"
	"social-pipeline/internal/adapters/ticketing"
	"social-pipeline/internal/adapters/webhook"
	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/cache"
	"social-pipeline/internal/infra/config"
	"social-pipeline/internal/infra/db"
	applog "social-pipeline/internal/infra/log"
	"social-pipeline/internal/infra/openai"
	"social-pipeline/internal/infra/queue"
	"social-pipeline/internal/infra/rest"
	"social-pipeline/internal/usecase/dedup"
	"social-pipeline/internal/usecase/execution"
	"social-pipeline/internal/usecase/pipeline"
	"social-pipeline/internal/usecase/priority"
	"social-pipeline/internal/usecase/routing"
)

// App содержит собранный конвейер и его инфраструктуру.
type App struct {
	Pipeline  *pipeline.Service
	Dedup     *dedup.Engine
	Execution *execution.Service
	Queue     domain.EventQueue
	Repo      *repo.Postgres
	Redis     *redis.Client
	Bot       *tgbotapi.BotAPI

	closers []func()
}

// Close освобождает соединения в обратном порядке.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Brand возвращает контекст бренда из конфигурации.
func Brand(cfg config.AppConfig) domain.BrandContext {
	return domain.BrandContext{Name: cfg.Brand.Name, Voice: cfg.Brand.Voice}
}

// Connect подключает хранилища, очередь и Bot API без сборки конвейера.
func Connect(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*App, error) {
	a := &App{}
	if err := a.connect(ctx, cfg, logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Build подключает хранилища и внешние сервисы и собирает конвейер.
func Build(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*App, error) {
	a, err := Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.assemble(cfg, logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) connect(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) error {
	if cfg.PGDSN != "" {
		pool, err := db.Connect(ctx, cfg.PGDSN, int32(cfg.Pipeline.MaxConcurrency*2))
		if err != nil {
			return fmt.Errorf("подключение к Postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.Repo = repo.NewPostgres(pool)
		if err := a.Repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("миграция схемы: %w", err)
		}
	}
	if cfg.RedisAddr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, func() { _ = a.Redis.Close() })
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.Redis.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("подключение к Redis: %w", err)
		}
	}
	switch cfg.Queue.Backend {
	case "rabbitmq":
		if cfg.Queue.RabbitURL == "" {
			return errors.New("не указан адрес RabbitMQ (RABBITMQ_URL)")
		}
		q, err := queue.NewRabbitEventQueue(cfg.Queue.RabbitURL, cfg.Queue.EventsKey, cfg.Queue.Prefetch, cfg.Queue.MaxRedeliveries)
		if err != nil {
			return fmt.Errorf("очередь RabbitMQ: %w", err)
		}
		a.closers = append(a.closers, func() { _ = q.Close() })
		a.Queue = q
	case "redis":
		if a.Redis != nil {
			a.Queue = queue.NewRedisEventQueue(a.Redis, cfg.Queue.EventsKey, cfg.Queue.MaxRedeliveries)
		}
	default:
		return fmt.Errorf("неизвестный бэкенд очереди %q", cfg.Queue.Backend)
	}
	if cfg.Telegram.Token != "" {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("создание бота: %w", err)
		}
		a.Bot = botAPI
	}
	logger.Info().
		Bool("postgres", a.Repo != nil).
		Bool("redis", a.Redis != nil).
		Bool("queue", a.Queue != nil).
		Bool("telegram", a.Bot != nil).
		Msg("инфраструктура подключена")
	return nil
}

func (a *App) assemble(cfg config.AppConfig, logger zerolog.Logger) error {
	a.Dedup = dedup.NewEngine(dedup.Config{
		TimeWindow:         cfg.Dedup.Window,
		MaxCacheSize:       cfg.Dedup.MaxCacheSize,
		SweepInterval:      cfg.Dedup.SweepInterval,
		TimestampTolerance: cfg.Dedup.Tolerance,
	}, applog.Component(logger, "dedup"))

	prioCfg := priority.DefaultConfig()
	prioCfg.EscalationThreshold = cfg.Priority.EscalationThreshold
	scorer, err := priority.NewService(prioCfg)
	if err != nil {
		return err
	}

	routeCfg := routing.DefaultConfig()
	routeCfg.AutoResponseThreshold = cfg.Routing.AutoThreshold
	routeCfg.SuggestionThreshold = cfg.Routing.SuggestionThreshold
	routeCfg.HumanReviewPriority = cfg.Routing.HumanReviewPriority
	routeCfg.BoostFollowers = cfg.Routing.BoostFollowers
	router, err := routing.NewService(routeCfg)
	if err != nil {
		return err
	}

	execDeps, err := a.executionDeps(cfg, logger)
	if err != nil {
		return err
	}
	a.Execution, err = execution.NewService(execDeps, execution.Config{
		ActionTimeout:        cfg.Execution.ActionTimeout,
		TemplateFallback:     cfg.Generator.TemplateFallback,
		OpportunityThreshold: cfg.Execution.OpportunityThreshold,
	}, execution.NewStats(), applog.Component(logger, "execution"))
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Dedup:    a.Dedup,
		Scorer:   scorer,
		Router:   router,
		Executor: a.Execution,
		Analyzer: eventAnalyzer(cfg, logger),
	}
	sinks := audit.Multi{audit.NewLogSink(logger)}
	if a.Repo != nil {
		sinks = append(sinks, a.Repo)
		deps.Results = a.Repo
	}
	deps.Audit = sinks
	if a.Redis != nil {
		deps.Pending = cache.NewRedisPendingStore(a.Redis, "pending_actions", cfg.Pipeline.ApprovalTTL)
	}
	if a.Bot != nil && cfg.Telegram.OperatorChatID != 0 {
		deps.Notifier = bot.NewNotifier(a.Bot, cfg.Telegram.OperatorChatID)
	}
	a.Pipeline, err = pipeline.NewService(deps, pipeline.Config{MaxConcurrency: cfg.Pipeline.MaxConcurrency}, logger)
	return err
}

func (a *App) executionDeps(cfg config.AppConfig, logger zerolog.Logger) (execution.Deps, error) {
	deps := execution.Deps{Templates: generator.NewTemplates(nil)}
	switch {
	case cfg.OpenAI.APIKey != "":
		client := openai.NewClient(openai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			Timeout:    cfg.OpenAI.Timeout,
			MaxRetries: 2,
		})
		deps.Generator = generator.NewOpenAI(client, client.Model())
	case cfg.Generator.URL != "":
		client, err := rest.New(rest.Config{Name: "generator", BaseURL: cfg.Generator.URL}, logger)
		if err != nil {
			return execution.Deps{}, fmt.Errorf("генератор ответов (GENERATOR_URL): %w", err)
		}
		deps.Generator = generator.NewHTTP(client, "")
	}

	var fallback domain.PlatformPoster
	if cfg.Poster.URL != "" {
		client, err := rest.New(rest.Config{Name: "poster", BaseURL: cfg.Poster.URL, Token: cfg.Poster.Token}, logger)
		if err != nil {
			return execution.Deps{}, fmt.Errorf("публикация (POSTER_URL): %w", err)
		}
		fallback = poster.NewHTTP(client, cfg.Poster.RPS)
	}
	registry := poster.NewRegistry(fallback)
	if a.Bot != nil {
		registry.Register(domain.PlatformTelegram, telegram.NewPoster(a.Bot))
	}
	deps.Poster = registry

	tickets, err := rest.New(rest.Config{Name: "tickets", BaseURL: cfg.Tickets.URL, Token: cfg.Tickets.Token}, logger)
	if err != nil {
		return execution.Deps{}, fmt.Errorf("тикеты (TICKETS_URL): %w", err)
	}
	deps.Tickets = ticketing.NewClient(tickets, cfg.Tickets.AccountID, cfg.Tickets.InboxID, applog.Component(logger, "tickets"))
	crmClient, err := rest.New(rest.Config{Name: "crm", BaseURL: cfg.CRM.URL, Token: cfg.CRM.Token}, logger)
	if err != nil {
		return execution.Deps{}, fmt.Errorf("CRM (CRM_URL): %w", err)
	}
	deps.CRM = crm.NewClient(crmClient)

	if len(cfg.Webhooks.URLs) > 0 {
		deps.Webhooks = webhook.NewDispatcher(webhook.Config{
			URLs:       cfg.Webhooks.URLs,
			Secret:     cfg.Webhooks.Secret,
			MaxRetries: uint64(cfg.Webhooks.MaxRetries),
			MaxElapsed: cfg.Webhooks.MaxElapsed,
		}, applog.Component(logger, "webhooks"))
	}

	limits := map[domain.ActionType]execution.Limit{
		domain.ActionRespond:  {PerHour: cfg.Execution.RespondPerHour, PerDay: cfg.Execution.RespondPerDay},
		domain.ActionEscalate: {PerHour: cfg.Execution.EscalatePerHour, PerDay: cfg.Execution.EscalatePerDay},
		domain.ActionCreate:   {PerHour: cfg.Execution.CreatePerHour, PerDay: cfg.Execution.CreatePerDay},
	}
	if a.Redis != nil {
		shared := make(map[domain.ActionType]cache.Limit, len(limits))
		for t, l := range limits {
			shared[t] = cache.Limit{PerHour: l.PerHour, PerDay: l.PerDay}
		}
		deps.Limiter = cache.NewRedisRateLimiter(a.Redis, "action_limits", shared, nil)
	} else {
		deps.Limiter = execution.NewMemoryRateLimiter(limits, nil)
	}
	return deps, nil
}

func eventAnalyzer(cfg config.AppConfig, logger zerolog.Logger) domain.EventAnalyzer {
	heuristic := analyzer.NewHeuristic()
	if cfg.OpenAI.APIKey == "" {
		return heuristic
	}
	client := openai.NewClient(openai.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.Model,
		Timeout:    cfg.OpenAI.Timeout,
		MaxRetries: 2,
	})
	return analyzer.NewFallback(analyzer.NewLLM(client, client.Model()), heuristic, applog.Component(logger, "analyzer"))
}
