package domain

import (
	"context"
	"time"
)

// GenerationRequest описывает запрос к генератору ответа.
type GenerationRequest struct {
	Prompt      string
	MaxLength   int
	Temperature float64
	Tone        string
	Template    string
	Platform    Platform
	Intent      IntentType
	Sentiment   SentimentLabel
	Brand       string
	Author      string
}

// ResponseGenerator строит текст ответа через внешний ИИ.
type ResponseGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// TemplateEngine строит текст ответа по шаблонам без внешних вызовов.
type TemplateEngine interface {
	Render(req GenerationRequest) (string, error)
}

// PostRequest описывает публикацию ответа на платформе.
type PostRequest struct {
	Platform Platform
	TargetID string
	Content  string
}

// PostResult — результат публикации.
type PostResult struct {
	PostID string
}

// PlatformPoster публикует ответы на платформе.
type PlatformPoster interface {
	Post(ctx context.Context, req PostRequest) (PostResult, error)
}

// TicketRequest описывает тикет поддержки.
type TicketRequest struct {
	Subject     string
	Description string
	Priority    TicketPriority
	Team        string
	Requester   Author
	Platform    Platform
	SourceURL   string
	EventKey    string
	DecisionID  string
	Tags        []string
}

// TicketClient создаёт тикеты поддержки.
type TicketClient interface {
	CreateTicket(ctx context.Context, req TicketRequest) (string, error)
}

// Lead описывает лид в CRM.
type Lead struct {
	Name     string
	Handle   string
	Platform Platform
	Score    float64
	Source   string
	Intent   IntentType
	Notes    string
	EventKey string
}

// Opportunity описывает сделку в CRM.
type Opportunity struct {
	LeadID   string
	Name     string
	Score    float64
	Stage    string
	EventKey string
}

// CRMClient создаёт записи в CRM.
type CRMClient interface {
	CreateLead(ctx context.Context, lead Lead) (string, error)
	CreateOpportunity(ctx context.Context, opp Opportunity) (string, error)
}

// WebhookEvent — тело уведомления для внешних подписчиков.
type WebhookEvent struct {
	Type       string         `json:"type"`
	EventKey   string         `json:"event_key"`
	DecisionID string         `json:"decision_id"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// WebhookDispatcher рассылает уведомления подписчикам.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, event WebhookEvent) []WebhookDelivery
}

// RateLimiter ограничивает частоту действий по типу.
// Allow резервирует слот и возвращает false, если лимит исчерпан.
type RateLimiter interface {
	Allow(ctx context.Context, actionType ActionType) (bool, error)
}

// EventAnalyzer оценивает тональность и намерение события.
type EventAnalyzer interface {
	Analyze(ctx context.Context, event SocialEvent) (SentimentResult, IntentResult, error)
}

// PendingApproval — действие, ожидающее решения оператора.
type PendingApproval struct {
	Token     string          `json:"token"`
	EventID   string          `json:"event_id"`
	Action    Action          `json:"action"`
	Decision  RoutingDecision `json:"decision"`
	Job       EventJob        `json:"job"`
	CreatedAt time.Time       `json:"created_at"`
}

// PendingStore хранит ожидающие одобрения действия.
type PendingStore interface {
	Save(ctx context.Context, pending PendingApproval) error
	Take(ctx context.Context, token string) (PendingApproval, error)
}

// ApprovalNotifier сообщает операторам об ожидающих действиях.
type ApprovalNotifier interface {
	NotifyPending(ctx context.Context, pending PendingApproval) error
}
