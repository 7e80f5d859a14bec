package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/metrics"
)

// ErrUnknownAction возвращается для действия без известных параметров.
var ErrUnknownAction = errors.New("неизвестный тип параметров действия")

// Request — решение маршрутизации вместе с контекстом события.
type Request struct {
	Decision  domain.RoutingDecision
	Event     domain.SocialEvent
	EventID   string
	Sentiment domain.SentimentResult
	Intent    domain.IntentResult
	Brand     domain.BrandContext
}

// Service исполняет действия решения против внешних систем.
type Service struct {
	cfg   Config
	deps  Deps
	stats *Stats
	log   zerolog.Logger
	now   func() time.Time
}

// NewService создаёт исполнителя. Ошибка возвращается при неполных зависимостях.
func NewService(deps Deps, cfg Config, stats *Stats, log zerolog.Logger) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if stats == nil {
		stats = NewStats()
	}
	return &Service{
		cfg:   cfg.withDefaults(),
		deps:  deps,
		stats: stats,
		log:   log.With().Str("component", "execution").Logger(),
		now:   time.Now,
	}, nil
}

// Stats возвращает срез метрик исполнения.
func (s *Service) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// ResetStats обнуляет метрики исполнения.
func (s *Service) ResetStats() {
	s.stats.Reset()
}

// Execute исполняет действия решения по порядку и возвращает по результату на действие.
// Ошибка одного действия не прерывает остальные. При отмене ctx возвращаются уже полученные результаты.
func (s *Service) Execute(ctx context.Context, req Request) []domain.ActionExecutionResult {
	results := make([]domain.ActionExecutionResult, 0, len(req.Decision.Actions))
	for _, action := range req.Decision.Actions {
		if err := ctx.Err(); err != nil {
			s.log.Warn().Err(err).
				Str("decision_id", req.Decision.ID).
				Int("done", len(results)).
				Int("total", len(req.Decision.Actions)).
				Msg("исполнение прервано")
			break
		}
		results = append(results, s.ExecuteAction(ctx, req, action))
	}
	return results
}

// ExecuteAction исполняет одно действие и обновляет метрики.
func (s *Service) ExecuteAction(ctx context.Context, req Request, action domain.Action) domain.ActionExecutionResult {
	res := s.run(ctx, req, action)
	res.FinishedAt = s.now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)

	s.stats.record(res)
	metrics.ObserveAction(string(res.ActionType), string(res.Status), res.Duration)

	ev := s.log.Info()
	if res.Status == domain.ActionStatusFailed {
		ev = s.log.Error()
	}
	ev.Str("event_id", req.EventID).
		Str("decision_id", req.Decision.ID).
		Str("action_id", action.ID).
		Str("action_type", string(action.Type)).
		Str("status", string(res.Status)).
		Dur("duration", res.Duration).
		Str("error", res.Error).
		Msg("действие исполнено")
	return res
}

func (s *Service) run(ctx context.Context, req Request, action domain.Action) (res domain.ActionExecutionResult) {
	res = domain.ActionExecutionResult{
		ActionID:   action.ID,
		ActionType: action.Type,
		StartedAt:  s.now(),
		Metadata: domain.ExecutionMetadata{
			EventKey:   req.Event.Key(),
			EventID:    req.EventID,
			DecisionID: req.Decision.ID,
			Params:     action.Params,
		},
	}
	defer func() {
		if r := recover(); r != nil {
			res.Status = domain.ActionStatusFailed
			res.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	if action.RequiresApproval && !action.Approved() {
		res.Status = domain.ActionStatusPending
		res.Payload.Note = "ожидает одобрения оператора"
		return res
	}
	if !action.Automated && !action.Approved() && !handOff(action.Type) {
		res.Status = domain.ActionStatusPending
		res.Payload.Note = "ручное действие, ожидает оператора"
		return res
	}

	if s.deps.Limiter != nil {
		allowed, err := s.deps.Limiter.Allow(ctx, action.Type)
		if err != nil {
			s.log.Warn().Err(err).Str("action_type", string(action.Type)).Msg("лимитер недоступен, действие выполняется без проверки")
		} else if !allowed {
			res.Status = domain.ActionStatusSkipped
			res.Payload.Note = "превышен лимит частоты"
			return res
		}
	}

	actx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()

	var err error
	switch p := action.Params.(type) {
	case domain.RespondParams:
		res.Status, err = s.respond(actx, req, p, &res.Payload)
	case domain.EscalateParams:
		res.Status, err = s.escalate(actx, req, p, &res.Payload)
	case domain.CreateParams:
		res.Status, err = s.create(actx, req, p, &res.Payload)
	case domain.MonitorParams:
		res.Status, res.Payload.Note = domain.ActionStatusSuccess, fmt.Sprintf("наблюдение %s", p.Window)
	case domain.EngageParams:
		res.Status, res.Payload.Note = domain.ActionStatusSuccess, fmt.Sprintf("взаимодействие %s", p.Kind)
	case domain.SuppressParams:
		res.Status, res.Payload.Note = domain.ActionStatusSuccess, fmt.Sprintf("реакция подавлена: %s", p.Reason)
	default:
		res.Status, err = domain.ActionStatusFailed, ErrUnknownAction
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// handOff сообщает, что действие передаёт событие человеку и исполняется без флага Automated.
func handOff(t domain.ActionType) bool {
	return t == domain.ActionEscalate || t == domain.ActionMonitor
}
