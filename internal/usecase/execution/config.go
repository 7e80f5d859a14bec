package execution

import (
	"errors"
	"time"

	"social-pipeline/internal/domain"
)

// Config задаёт таймауты и пороги исполнения действий.
type Config struct {
	ActionTimeout     time.Duration
	GenerationTimeout time.Duration
	PostTimeout       time.Duration
	TicketTimeout     time.Duration
	CRMTimeout        time.Duration
	WebhookTimeout    time.Duration

	// TemplateFallback включает шаблоны при ошибке генерации через ИИ.
	TemplateFallback     bool
	Temperature          float64
	DefaultMaxLength     int
	OpportunityThreshold float64
}

// DefaultConfig возвращает настройки по умолчанию.
func DefaultConfig() Config {
	return Config{
		ActionTimeout:        30 * time.Second,
		GenerationTimeout:    15 * time.Second,
		PostTimeout:          10 * time.Second,
		TicketTimeout:        10 * time.Second,
		CRMTimeout:           10 * time.Second,
		WebhookTimeout:       15 * time.Second,
		TemplateFallback:     true,
		Temperature:          0.7,
		DefaultMaxLength:     280,
		OpportunityThreshold: 70,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = def.ActionTimeout
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = def.GenerationTimeout
	}
	if c.PostTimeout <= 0 {
		c.PostTimeout = def.PostTimeout
	}
	if c.TicketTimeout <= 0 {
		c.TicketTimeout = def.TicketTimeout
	}
	if c.CRMTimeout <= 0 {
		c.CRMTimeout = def.CRMTimeout
	}
	if c.WebhookTimeout <= 0 {
		c.WebhookTimeout = def.WebhookTimeout
	}
	if c.DefaultMaxLength <= 0 {
		c.DefaultMaxLength = def.DefaultMaxLength
	}
	if c.OpportunityThreshold <= 0 {
		c.OpportunityThreshold = def.OpportunityThreshold
	}
	return c
}

// Deps — внешние зависимости исполнителя.
type Deps struct {
	Generator domain.ResponseGenerator
	Templates domain.TemplateEngine
	Poster    domain.PlatformPoster
	Tickets   domain.TicketClient
	CRM       domain.CRMClient
	// Webhooks и Limiter необязательны.
	Webhooks domain.WebhookDispatcher
	Limiter  domain.RateLimiter
}

func (d Deps) validate() error {
	if d.Generator == nil && d.Templates == nil {
		return errors.New("execution: нужен генератор ответа или шаблоны")
	}
	if d.Poster == nil {
		return errors.New("execution: не задан клиент публикации")
	}
	if d.Tickets == nil {
		return errors.New("execution: не задан клиент тикетов")
	}
	if d.CRM == nil {
		return errors.New("execution: не задан клиент CRM")
	}
	return nil
}
