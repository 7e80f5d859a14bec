package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/metrics"
	"social-pipeline/internal/usecase/execution"
	"social-pipeline/internal/usecase/priority"
	"social-pipeline/internal/usecase/routing"
)

// ErrNoAnalysis возвращается, если задача пришла без анализа, а анализатор не настроен.
var ErrNoAnalysis = errors.New("нет анализа тональности и намерения")

// Исходы обработки события.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Deduplicator отсеивает повторы событий.
type Deduplicator interface {
	Process(event domain.SocialEvent) domain.DedupResult
}

// Scorer считает приоритет события.
type Scorer interface {
	Score(in priority.Input) (domain.PriorityScore, error)
}

// Router выбирает маршрут и действия.
type Router interface {
	Route(in routing.Input) domain.RoutingDecision
}

// Executor исполняет действия решения.
type Executor interface {
	Execute(ctx context.Context, req execution.Request) []domain.ActionExecutionResult
	ExecuteAction(ctx context.Context, req execution.Request, action domain.Action) domain.ActionExecutionResult
}

// ResultStore сохраняет результаты исполнения действий.
type ResultStore interface {
	SaveActionResults(ctx context.Context, results []domain.ActionExecutionResult) error
}

// Deps — компоненты конвейера. Analyzer, Audit, Results, Pending и Notifier необязательны.
type Deps struct {
	Dedup    Deduplicator
	Scorer   Scorer
	Router   Router
	Executor Executor
	Analyzer domain.EventAnalyzer
	Audit    domain.AuditSink
	Results  ResultStore
	Pending  domain.PendingStore
	Notifier domain.ApprovalNotifier
}

// Config задаёт параметры конвейера.
type Config struct {
	MaxConcurrency int
	AnalyzeTimeout time.Duration
	AuditTimeout   time.Duration
}

// DefaultConfig возвращает настройки по умолчанию.
func DefaultConfig() Config {
	return Config{MaxConcurrency: 8, AnalyzeTimeout: 20 * time.Second, AuditTimeout: 5 * time.Second}
}

// Result — итог обработки одного события.
type Result struct {
	Outcome  string                         `json:"outcome"`
	EventID  string                         `json:"event_id,omitempty"`
	Dedup    domain.DedupResult             `json:"dedup"`
	Priority *domain.PriorityScore          `json:"priority,omitempty"`
	Decision *domain.RoutingDecision        `json:"decision,omitempty"`
	Results  []domain.ActionExecutionResult `json:"results,omitempty"`
	Pending  []string                       `json:"pending_tokens,omitempty"`
}

// Service связывает дедупликацию, приоритет, маршрутизацию и исполнение.
type Service struct {
	deps  Deps
	cfg   Config
	log   zerolog.Logger
	stats *Stats
	now   func() time.Time
}

// NewService создаёт конвейер.
func NewService(deps Deps, cfg Config, log zerolog.Logger) (*Service, error) {
	if deps.Dedup == nil || deps.Scorer == nil || deps.Router == nil || deps.Executor == nil {
		return nil, errors.New("pipeline: не заданы обязательные компоненты")
	}
	def := DefaultConfig()
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.AnalyzeTimeout <= 0 {
		cfg.AnalyzeTimeout = def.AnalyzeTimeout
	}
	if cfg.AuditTimeout <= 0 {
		cfg.AuditTimeout = def.AuditTimeout
	}
	return &Service{
		deps:  deps,
		cfg:   cfg,
		log:   log.With().Str("component", "pipeline").Logger(),
		stats: NewStats(),
		now:   time.Now,
	}, nil
}

// Stats возвращает счётчики конвейера.
func (s *Service) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// Process проводит событие через все стадии.
// Ошибка возвращается для невалидных входных данных и сбоя анализа; ошибки действий отражаются в результатах.
func (s *Service) Process(ctx context.Context, job domain.EventJob) (Result, error) {
	log := s.log.With().Str("event_key", job.Event.Key()).Str("job_id", job.ID).Logger()

	if err := domain.ValidateEvent(job.Event); err != nil {
		s.reject(ctx, job, err)
		return Result{Outcome: OutcomeRejected}, err
	}
	sentiment, intent, err := s.analysis(ctx, job)
	if err != nil {
		s.stats.record(OutcomeFailed, "")
		metrics.IncPipeline(OutcomeFailed)
		return Result{Outcome: OutcomeFailed}, err
	}
	if err := domain.ValidateAnalysis(sentiment, intent); err != nil {
		s.reject(ctx, job, err)
		return Result{Outcome: OutcomeRejected}, err
	}

	dedup := s.deps.Dedup.Process(job.Event)
	res := Result{EventID: dedup.UniqueID, Dedup: dedup}
	if dedup.IsDuplicate {
		res.Outcome = OutcomeDuplicate
		s.stats.record(OutcomeDuplicate, "")
		metrics.IncPipeline(OutcomeDuplicate)
		s.audit(ctx, domain.AuditRecord{
			Event:      domain.AuditEventDuplicate,
			EventKey:   job.Event.Key(),
			EventID:    dedup.UniqueID,
			Confidence: dedup.Confidence,
			Metadata:   map[string]any{"duplicate_of": dedup.DuplicateOf, "method": string(dedup.Method)},
		})
		log.Debug().Str("duplicate_of", dedup.DuplicateOf).Msg("дубликат отброшен")
		return res, nil
	}

	score, err := s.deps.Scorer.Score(priority.Input{
		Event:     job.Event,
		Sentiment: sentiment,
		Intent:    intent,
		Brand:     job.Brand,
		Now:       s.now(),
	})
	if err != nil {
		s.reject(ctx, job, err)
		res.Outcome = OutcomeRejected
		return res, err
	}
	res.Priority = &score
	metrics.ObservePriority(string(domain.NormalizePlatform(job.Event.Platform)), score.Overall, score.Rules.AutoEscalate)

	decision := s.deps.Router.Route(routing.Input{Event: job.Event, Sentiment: sentiment, Intent: intent, Priority: score})
	res.Decision = &decision
	overrides := make([]string, 0, len(decision.Metadata.Overrides))
	for _, o := range decision.Metadata.Overrides {
		overrides = append(overrides, o.Rule)
	}
	metrics.ObserveRouting(string(decision.Route), overrides)
	s.audit(ctx, domain.AuditRecord{
		Event:         domain.AuditEventDecision,
		EventKey:      job.Event.Key(),
		EventID:       dedup.UniqueID,
		DecisionID:    decision.ID,
		Route:         decision.Route,
		Confidence:    decision.Confidence,
		PriorityScore: score.Overall,
		Metadata:      map[string]any{"reasoning": decision.Reasoning, "overrides": overrides, "auto_escalate": score.Rules.AutoEscalate},
	})

	req := execution.Request{
		Decision:  decision,
		Event:     job.Event,
		EventID:   dedup.UniqueID,
		Sentiment: sentiment,
		Intent:    intent,
		Brand:     job.Brand,
	}
	res.Results = s.deps.Executor.Execute(ctx, req)
	s.saveResults(ctx, res.Results)
	res.Pending = s.storePending(ctx, job, req, res.Results)
	res.Outcome = OutcomeProcessed

	s.audit(ctx, domain.AuditRecord{
		Event:         domain.AuditEventExecution,
		EventKey:      job.Event.Key(),
		EventID:       dedup.UniqueID,
		DecisionID:    decision.ID,
		Route:         decision.Route,
		Confidence:    decision.Confidence,
		PriorityScore: score.Overall,
		Metadata:      map[string]any{"results": summarize(res.Results)},
	})
	s.stats.record(OutcomeProcessed, decision.Route)
	metrics.IncPipeline(OutcomeProcessed)

	log.Info().
		Str("event_id", dedup.UniqueID).
		Str("decision_id", decision.ID).
		Str("route", string(decision.Route)).
		Float64("confidence", decision.Confidence).
		Float64("priority", score.Overall).
		Int("actions", len(res.Results)).
		Msg("событие обработано")
	return res, nil
}

// BatchItem — результат обработки одной задачи пакета.
type BatchItem struct {
	Result Result
	Err    error
}

// ProcessBatch обрабатывает задачи параллельно, не более MaxConcurrency одновременно.
// Порядок результатов совпадает с порядком задач.
func (s *Service) ProcessBatch(ctx context.Context, jobs []domain.EventJob) []BatchItem {
	items := make([]BatchItem, len(jobs))
	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				items[i] = BatchItem{Result: Result{Outcome: OutcomeFailed}, Err: err}
				return nil
			}
			res, err := s.Process(ctx, job)
			items[i] = BatchItem{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func (s *Service) analysis(ctx context.Context, job domain.EventJob) (domain.SentimentResult, domain.IntentResult, error) {
	if job.Analyzed() {
		return *job.Sentiment, *job.Intent, nil
	}
	if s.deps.Analyzer == nil {
		return domain.SentimentResult{}, domain.IntentResult{}, ErrNoAnalysis
	}
	actx, cancel := context.WithTimeout(ctx, s.cfg.AnalyzeTimeout)
	defer cancel()
	sentiment, intent, err := s.deps.Analyzer.Analyze(actx, job.Event)
	if err != nil {
		return domain.SentimentResult{}, domain.IntentResult{}, fmt.Errorf("анализ события: %w", err)
	}
	return sentiment, intent, nil
}

func (s *Service) reject(ctx context.Context, job domain.EventJob, err error) {
	s.stats.record(OutcomeRejected, "")
	metrics.IncPipeline(OutcomeRejected)
	s.log.Warn().Err(err).Str("event_key", job.Event.Key()).Msg("событие отклонено")
	s.audit(ctx, domain.AuditRecord{
		Event:    domain.AuditEventRejected,
		EventKey: job.Event.Key(),
		Metadata: map[string]any{"error": err.Error(), "source": string(job.Source)},
	})
}

// storePending сохраняет ожидающие одобрения действия и уведомляет операторов.
func (s *Service) storePending(ctx context.Context, job domain.EventJob, req execution.Request, results []domain.ActionExecutionResult) []string {
	if s.deps.Pending == nil {
		return nil
	}
	var tokens []string
	for i, r := range results {
		if r.Status != domain.ActionStatusPending {
			continue
		}
		pending := domain.PendingApproval{
			Token:     uuid.NewString(),
			EventID:   req.EventID,
			Action:    req.Decision.Actions[i],
			Decision:  req.Decision,
			Job:       job,
			CreatedAt: s.now().UTC(),
		}
		pending.Job.Sentiment = &req.Sentiment
		pending.Job.Intent = &req.Intent
		if err := s.deps.Pending.Save(ctx, pending); err != nil {
			s.log.Error().Err(err).Str("action_id", r.ActionID).Msg("не удалось сохранить ожидающее действие")
			continue
		}
		tokens = append(tokens, pending.Token)
		if s.deps.Notifier == nil {
			continue
		}
		if err := s.deps.Notifier.NotifyPending(ctx, pending); err != nil {
			s.log.Warn().Err(err).Str("token", pending.Token).Msg("не удалось уведомить операторов")
		}
	}
	return tokens
}

// audit пишет запись в журнал; ошибки журнала не прерывают обработку.
func (s *Service) audit(ctx context.Context, record domain.AuditRecord) {
	if s.deps.Audit == nil {
		return
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = s.now().UTC()
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.AuditTimeout)
	defer cancel()
	if err := s.deps.Audit.Append(actx, record); err != nil {
		s.log.Warn().Err(err).Str("audit_event", record.Event).Str("event_key", record.EventKey).Msg("запись аудита не сохранена")
	}
}

func (s *Service) saveResults(ctx context.Context, results []domain.ActionExecutionResult) {
	if s.deps.Results == nil || len(results) == 0 {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.AuditTimeout)
	defer cancel()
	if err := s.deps.Results.SaveActionResults(sctx, results); err != nil {
		s.log.Warn().Err(err).Int("results", len(results)).Msg("результаты действий не сохранены")
	}
}

func summarize(results []domain.ActionExecutionResult) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		item := map[string]any{
			"action_id":   r.ActionID,
			"action_type": string(r.ActionType),
			"status":      string(r.Status),
			"duration_ms": r.Duration.Milliseconds(),
		}
		if r.Error != "" {
			item["error"] = r.Error
		}
		out = append(out, item)
	}
	return out
}

// ResetStats обнуляет счётчики конвейера.
func (s *Service) ResetStats() {
	s.stats.Reset()
}
