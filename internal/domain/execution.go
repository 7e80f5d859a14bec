package domain

import "time"

// ActionStatus — статус исполнения действия.
type ActionStatus string

const (
	ActionStatusSuccess ActionStatus = "success"
	ActionStatusFailed  ActionStatus = "failed"
	ActionStatusPartial ActionStatus = "partial"
	ActionStatusPending ActionStatus = "pending"
	// ActionStatusSkipped — действие не выполнялось из-за лимита частоты.
	ActionStatusSkipped ActionStatus = "skipped"
)

// ResponseSource — откуда взят текст ответа.
type ResponseSource string

const (
	ResponseSourceAI       ResponseSource = "ai"
	ResponseSourceTemplate ResponseSource = "template"
)

// ResponseOutcome — результат действия respond.
type ResponseOutcome struct {
	Content      string         `json:"content"`
	Source       ResponseSource `json:"source"`
	Personalized bool           `json:"personalized"`
	Posted       bool           `json:"posted"`
	PostID       string         `json:"post_id,omitempty"`
	PostError    string         `json:"post_error,omitempty"`
}

// TicketPriority — приоритет тикета поддержки.
type TicketPriority string

const (
	TicketPriorityUrgent TicketPriority = "urgent"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityLow    TicketPriority = "low"
)

// TicketOutcome — результат действия escalate.
type TicketOutcome struct {
	TicketID string         `json:"ticket_id"`
	Priority TicketPriority `json:"priority"`
}

// CRMOutcome — результат действия create.
type CRMOutcome struct {
	LeadID        string  `json:"lead_id"`
	LeadScore     float64 `json:"lead_score"`
	OpportunityID string  `json:"opportunity_id,omitempty"`
}

// WebhookDelivery — результат доставки одного вебхука.
type WebhookDelivery struct {
	URL        string `json:"url"`
	Delivered  bool   `json:"delivered"`
	StatusCode int    `json:"status_code,omitempty"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error,omitempty"`
}

// ExecutionPayload — данные, специфичные для вида действия.
type ExecutionPayload struct {
	Response *ResponseOutcome  `json:"response,omitempty"`
	Ticket   *TicketOutcome    `json:"ticket,omitempty"`
	CRM      *CRMOutcome       `json:"crm,omitempty"`
	Webhooks []WebhookDelivery `json:"webhooks,omitempty"`
	Note     string            `json:"note,omitempty"`
}

// ExecutionMetadata связывает результат с событием и решением.
type ExecutionMetadata struct {
	EventKey   string       `json:"event_key"`
	EventID    string       `json:"event_id"`
	DecisionID string       `json:"decision_id"`
	Params     ActionParams `json:"params,omitempty"`
}

// ActionExecutionResult — результат исполнения одного действия.
type ActionExecutionResult struct {
	ActionID   string            `json:"action_id"`
	ActionType ActionType        `json:"action_type"`
	Status     ActionStatus      `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Duration   time.Duration     `json:"duration"`
	Payload    ExecutionPayload  `json:"payload"`
	Error      string            `json:"error,omitempty"`
	Metadata   ExecutionMetadata `json:"metadata"`
}
