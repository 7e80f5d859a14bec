package mtproto

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/metrics"
)

// Config задаёт параметры подключения сборщика.
type Config struct {
	APIID    int
	APIHash  string
	BotToken string
	Channels []string
	// MaxEventsPerSecond ограничивает поток событий в очередь.
	MaxEventsPerSecond int
	Brand              domain.BrandContext
}

// Listener получает обновления Telegram через MTProto и ставит события в очередь.
type Listener struct {
	cfg      Config
	queue    domain.EventQueue
	storage  session.Storage
	log      zerolog.Logger
	channels map[string]struct{}
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewListener создаёт сборщик. Пустой список каналов принимает все.
func NewListener(cfg Config, storage session.Storage, queue domain.EventQueue, log zerolog.Logger) (*Listener, error) {
	if cfg.APIID == 0 || cfg.APIHash == "" {
		return nil, errors.New("mtproto: не заданы api_id и api_hash")
	}
	if cfg.BotToken == "" {
		return nil, errors.New("mtproto: не задан токен бота")
	}
	l := &Listener{
		cfg:      cfg,
		queue:    queue,
		storage:  storage,
		log:      log,
		channels: make(map[string]struct{}, len(cfg.Channels)),
		limiter:  rate.NewLimiter(rate.Inf, 0),
		now:      time.Now,
	}
	for _, ch := range cfg.Channels {
		if alias := normalizeAlias(ch); alias != "" {
			l.channels[alias] = struct{}{}
		}
	}
	if cfg.MaxEventsPerSecond > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(cfg.MaxEventsPerSecond), cfg.MaxEventsPerSecond)
	}
	return l, nil
}

// Run подключается к Telegram и обрабатывает обновления до отмены контекста.
func (l *Listener) Run(ctx context.Context) error {
	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		return l.handle(ctx, u.Message, e)
	})
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		return l.handle(ctx, u.Message, e)
	})

	client := telegram.NewClient(l.cfg.APIID, l.cfg.APIHash, telegram.Options{
		SessionStorage: l.storage,
		UpdateHandler:  dispatcher,
	})
	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("mtproto: статус авторизации: %w", err)
		}
		if !status.Authorized {
			if _, err := client.Auth().Bot(ctx, l.cfg.BotToken); err != nil {
				return fmt.Errorf("mtproto: авторизация бота: %w", err)
			}
		}
		l.log.Info().Int("channels", len(l.channels)).Msg("сборщик подключён к Telegram")
		<-ctx.Done()
		return ctx.Err()
	})
}

func (l *Listener) handle(ctx context.Context, raw tg.MessageClass, ents tg.Entities) error {
	msg, ok := raw.(*tg.Message)
	if !ok {
		return nil
	}
	if !l.accepts(msg, ents) {
		return nil
	}
	event, ok := ConvertMessage(msg, ents)
	if !ok {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	job := domain.EventJob{
		ID:         uuid.NewString(),
		Event:      event,
		Brand:      l.cfg.Brand,
		Source:     domain.EventSourceCollector,
		ReceivedAt: l.now().UTC(),
	}
	start := time.Now()
	err := l.queue.Enqueue(ctx, job)
	metrics.ObserveNetworkRequest("mtproto", "enqueue_event", string(event.Kind), start, err)
	if err != nil {
		// Ошибка не возвращается в gotd, иначе обработка обновлений остановится.
		l.log.Error().Err(err).Str("event", event.Key()).Msg("не удалось поставить событие в очередь")
		return nil
	}
	l.log.Debug().Str("event", event.Key()).Str("kind", string(event.Kind)).Msg("событие собрано")
	return nil
}

// accepts проверяет, относится ли сообщение к отслеживаемым каналам.
func (l *Listener) accepts(msg *tg.Message, ents tg.Entities) bool {
	if len(l.channels) == 0 {
		return true
	}
	peer, ok := msg.PeerID.(*tg.PeerChannel)
	if !ok {
		return true
	}
	ch, ok := ents.Channels[peer.ChannelID]
	if !ok {
		return false
	}
	_, tracked := l.channels[normalizeAlias(ch.Username)]
	return tracked
}

func normalizeAlias(alias string) string {
	alias = strings.TrimSpace(alias)
	alias = strings.TrimPrefix(alias, "https://t.me/")
	return strings.ToLower(strings.TrimPrefix(alias, "@"))
}
