package execution

import (
	"sync"
	"time"

	"social-pipeline/internal/domain"
)

// TypeCounters — счётчики исполнения по виду действия.
type TypeCounters struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
	Partial int64 `json:"partial"`
	Pending int64 `json:"pending"`
	Skipped int64 `json:"skipped"`
}

// ResponseCounters — счётчики генерации ответов.
type ResponseCounters struct {
	AI           int64 `json:"ai"`
	Template     int64 `json:"template"`
	Personalized int64 `json:"personalized"`
}

// StatsSnapshot — срез метрик исполнения.
type StatsSnapshot struct {
	TotalExecuted     int64                              `json:"total_executed"`
	SuccessRate       float64                            `json:"success_rate"`
	AvgExecutionTime  time.Duration                      `json:"avg_execution_time"`
	ByType            map[domain.ActionType]TypeCounters `json:"by_type"`
	Responses         ResponseCounters                   `json:"responses"`
	TicketsCreated    int64                              `json:"tickets_created"`
	LeadsCreated      int64                              `json:"leads_created"`
	Opportunities     int64                              `json:"opportunities"`
	WebhooksDelivered int64                              `json:"webhooks_delivered"`
	WebhooksFailed    int64                              `json:"webhooks_failed"`
	RateLimited       int64                              `json:"rate_limited"`
}

// Stats накапливает метрики исполнителя. Безопасен для конкурентного использования.
// Отложенные и пропущенные по лимиту действия не входят в executed и SuccessRate.
type Stats struct {
	mu            sync.Mutex
	executed      int64
	success       int64
	totalDuration time.Duration
	byType        map[domain.ActionType]TypeCounters
	responses     ResponseCounters
	tickets       int64
	leads         int64
	opportunities int64
	hooksOK       int64
	hooksFailed   int64
	rateLimited   int64
}

// NewStats создаёт пустой агрегатор.
func NewStats() *Stats {
	s := &Stats{}
	s.Reset()
	return s
}

func (s *Stats) record(res domain.ActionExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.byType[res.ActionType]
	c.Total++
	switch res.Status {
	case domain.ActionStatusSuccess:
		s.executed++
		s.success++
		s.totalDuration += res.Duration
		c.Success++
	case domain.ActionStatusFailed:
		s.executed++
		s.totalDuration += res.Duration
		c.Failed++
	case domain.ActionStatusPartial:
		s.executed++
		s.totalDuration += res.Duration
		c.Partial++
	case domain.ActionStatusPending:
		c.Pending++
	case domain.ActionStatusSkipped:
		c.Skipped++
		s.rateLimited++
	}
	s.byType[res.ActionType] = c
}

func (s *Stats) recordResponse(source domain.ResponseSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch source {
	case domain.ResponseSourceAI:
		s.responses.AI++
	case domain.ResponseSourceTemplate:
		s.responses.Template++
	}
}

func (s *Stats) recordPersonalized() {
	s.mu.Lock()
	s.responses.Personalized++
	s.mu.Unlock()
}

func (s *Stats) recordTicket() {
	s.mu.Lock()
	s.tickets++
	s.mu.Unlock()
}

func (s *Stats) recordLead() {
	s.mu.Lock()
	s.leads++
	s.mu.Unlock()
}

func (s *Stats) recordOpportunity() {
	s.mu.Lock()
	s.opportunities++
	s.mu.Unlock()
}

func (s *Stats) recordWebhook(delivered bool) {
	s.mu.Lock()
	if delivered {
		s.hooksOK++
	} else {
		s.hooksFailed++
	}
	s.mu.Unlock()
}

// Snapshot возвращает копию текущих значений.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		TotalExecuted:     s.executed,
		ByType:            make(map[domain.ActionType]TypeCounters, len(s.byType)),
		Responses:         s.responses,
		TicketsCreated:    s.tickets,
		LeadsCreated:      s.leads,
		Opportunities:     s.opportunities,
		WebhooksDelivered: s.hooksOK,
		WebhooksFailed:    s.hooksFailed,
		RateLimited:       s.rateLimited,
	}
	if s.executed > 0 {
		snap.SuccessRate = float64(s.success) / float64(s.executed)
		snap.AvgExecutionTime = s.totalDuration / time.Duration(s.executed)
	}
	for k, v := range s.byType {
		snap.ByType[k] = v
	}
	return snap
}

// Reset обнуляет накопленные значения.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executed = 0
	s.success = 0
	s.totalDuration = 0
	s.byType = make(map[domain.ActionType]TypeCounters)
	s.responses = ResponseCounters{}
	s.tickets = 0
	s.leads = 0
	s.opportunities = 0
	s.hooksOK = 0
	s.hooksFailed = 0
	s.rateLimited = 0
}
