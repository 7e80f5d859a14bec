package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"social-pipeline/internal/domain"
	httpinfra "social-pipeline/internal/infra/http"
	"social-pipeline/internal/usecase/dedup"
	"social-pipeline/internal/usecase/execution"
	"social-pipeline/internal/usecase/pipeline"
)

const (
	maxBodyBytes = 1 << 20
	maxBatchSize = 100
)

// Pipeline — операции конвейера, доступные через API.
type Pipeline interface {
	Process(ctx context.Context, job domain.EventJob) (pipeline.Result, error)
	ProcessBatch(ctx context.Context, jobs []domain.EventJob) []pipeline.BatchItem
	Approve(ctx context.Context, token, operator string) (domain.ActionExecutionResult, error)
	Reject(ctx context.Context, token, operator string) (domain.PendingApproval, error)
	Stats() pipeline.StatsSnapshot
	ResetStats()
}

// DedupStats — счётчики дедупликации.
type DedupStats interface {
	Stats() dedup.StatsSnapshot
	ResetStats()
}

// ExecutionStats — счётчики исполнения действий.
type ExecutionStats interface {
	Stats() execution.StatsSnapshot
	ResetStats()
}

// AuditReader читает журнал аудита по событию.
type AuditReader interface {
	ListAudit(ctx context.Context, eventKey string, limit int) ([]domain.AuditRecord, error)
}

// Deps — зависимости обработчиков. Queue, Audit, Dedup и Execution необязательны.
type Deps struct {
	Pipeline  Pipeline
	Queue     domain.EventQueue
	Dedup     DedupStats
	Execution ExecutionStats
	Audit     AuditReader
}

// Config задаёт режим приёма событий.
type Config struct {
	// Inline обрабатывает события в запросе вместо постановки в очередь.
	Inline bool
	// IngestSecret проверяет подпись входящих вебхуков платформ.
	IngestSecret string
	Brand        domain.BrandContext
}

// Handlers обслуживает REST API конвейера.
type Handlers struct {
	deps Deps
	cfg  Config
	log  zerolog.Logger
	now  func() time.Time
}

// New создаёт обработчики.
func New(deps Deps, cfg Config, log zerolog.Logger) (*Handlers, error) {
	if deps.Pipeline == nil {
		return nil, errors.New("httpapi: не задан конвейер")
	}
	if !cfg.Inline && deps.Queue == nil {
		return nil, errors.New("httpapi: без очереди нужен режим inline")
	}
	return &Handlers{deps: deps, cfg: cfg, log: log, now: time.Now}, nil
}

// Mount регистрирует маршруты. Вебхуки платформ защищены подписью, остальное токеном.
func (h *Handlers) Mount(r chi.Router, apiToken string) {
	r.Post("/api/v1/ingest/{platform}", h.ingestWebhook)
	r.Group(func(protected chi.Router) {
		protected.Use(httpinfra.TokenAuthMiddleware(apiToken))
		protected.Post("/api/v1/events", h.submitEvent)
		protected.Post("/api/v1/events/batch", h.submitBatch)
		protected.Get("/api/v1/events/{key}/audit", h.eventAudit)
		protected.Get("/api/v1/stats", h.stats)
		protected.Post("/api/v1/stats/reset", h.resetStats)
		protected.Post("/api/v1/approvals/{token}/approve", h.approve)
		protected.Post("/api/v1/approvals/{token}/reject", h.reject)
	})
}

type acceptedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (h *Handlers) submitEvent(w http.ResponseWriter, r *http.Request) {
	var job domain.EventJob
	if err := decodeBody(w, r, &job); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	h.accept(w, r, job, domain.EventSourceAPI)
}

func (h *Handlers) ingestWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "не удалось прочитать тело")
		return
	}
	if h.cfg.IngestSecret != "" && !httpinfra.VerifySignature(h.cfg.IngestSecret, body, r.Header.Get(httpinfra.SignatureHeader)) {
		httpinfra.WriteError(w, http.StatusUnauthorized, "неверная подпись")
		return
	}
	var event domain.SocialEvent
	if err := json.Unmarshal(body, &event); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	if event.Platform == "" {
		event.Platform = domain.Platform(chi.URLParam(r, "platform"))
	}
	h.accept(w, r, domain.EventJob{Event: event}, domain.EventSourceWebhook)
}

func (h *Handlers) accept(w http.ResponseWriter, r *http.Request, job domain.EventJob, source domain.EventJobSource) {
	h.prepare(&job, source)
	if err := domain.ValidateEvent(job.Event); err != nil {
		httpinfra.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if h.cfg.Inline {
		res, err := h.deps.Pipeline.Process(r.Context(), job)
		if err != nil {
			h.writeProcessError(w, err)
			return
		}
		httpinfra.WriteJSON(w, http.StatusOK, res)
		return
	}
	if err := h.deps.Queue.Enqueue(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("event_key", job.Event.Key()).Msg("не удалось поставить событие в очередь")
		httpinfra.WriteError(w, http.StatusServiceUnavailable, "очередь недоступна")
		return
	}
	httpinfra.WriteJSON(w, http.StatusAccepted, acceptedResponse{JobID: job.ID, Status: "queued"})
}

type batchRequest struct {
	Jobs []domain.EventJob `json:"jobs"`
}

type batchItem struct {
	JobID  string           `json:"job_id"`
	Result *pipeline.Result `json:"result,omitempty"`
	Status string           `json:"status,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func (h *Handlers) submitBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	if len(req.Jobs) == 0 {
		httpinfra.WriteError(w, http.StatusBadRequest, "пустой пакет")
		return
	}
	if len(req.Jobs) > maxBatchSize {
		httpinfra.WriteError(w, http.StatusRequestEntityTooLarge, "слишком большой пакет")
		return
	}
	for i := range req.Jobs {
		h.prepare(&req.Jobs[i], domain.EventSourceAPI)
	}

	items := make([]batchItem, len(req.Jobs))
	if h.cfg.Inline {
		for i, item := range h.deps.Pipeline.ProcessBatch(r.Context(), req.Jobs) {
			items[i] = batchItem{JobID: req.Jobs[i].ID, Result: &item.Result}
			if item.Err != nil {
				items[i].Error = item.Err.Error()
			}
		}
		httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}
	for i, job := range req.Jobs {
		items[i] = batchItem{JobID: job.ID}
		if err := domain.ValidateEvent(job.Event); err != nil {
			items[i].Status, items[i].Error = pipeline.OutcomeRejected, err.Error()
			continue
		}
		if err := h.deps.Queue.Enqueue(r.Context(), job); err != nil {
			items[i].Status, items[i].Error = pipeline.OutcomeFailed, "очередь недоступна"
			continue
		}
		items[i].Status = "queued"
	}
	httpinfra.WriteJSON(w, http.StatusAccepted, map[string]any{"items": items})
}

type statsResponse struct {
	Pipeline  pipeline.StatsSnapshot   `json:"pipeline"`
	Dedup     *dedup.StatsSnapshot     `json:"dedup,omitempty"`
	Execution *execution.StatsSnapshot `json:"execution,omitempty"`
}

func (h *Handlers) stats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{Pipeline: h.deps.Pipeline.Stats()}
	if h.deps.Dedup != nil {
		snap := h.deps.Dedup.Stats()
		resp.Dedup = &snap
	}
	if h.deps.Execution != nil {
		snap := h.deps.Execution.Stats()
		resp.Execution = &snap
	}
	httpinfra.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handlers) resetStats(w http.ResponseWriter, _ *http.Request) {
	h.deps.Pipeline.ResetStats()
	if h.deps.Dedup != nil {
		h.deps.Dedup.ResetStats()
	}
	if h.deps.Execution != nil {
		h.deps.Execution.ResetStats()
	}
	w.WriteHeader(http.StatusNoContent)
}

type auditEntry struct {
	Event         string         `json:"event"`
	EventKey      string         `json:"event_key"`
	EventID       string         `json:"event_id,omitempty"`
	DecisionID    string         `json:"decision_id,omitempty"`
	Route         domain.Route   `json:"route,omitempty"`
	Confidence    float64        `json:"confidence,omitempty"`
	PriorityScore float64        `json:"priority_score,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

func (h *Handlers) eventAudit(w http.ResponseWriter, r *http.Request) {
	if h.deps.Audit == nil {
		httpinfra.WriteError(w, http.StatusNotImplemented, "журнал аудита не настроен")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.deps.Audit.ListAudit(r.Context(), chi.URLParam(r, "key"), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось прочитать аудит")
		httpinfra.WriteError(w, http.StatusInternalServerError, "не удалось прочитать аудит")
		return
	}
	out := make([]auditEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, auditEntry(rec))
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"records": out})
}

type operatorRequest struct {
	Operator string `json:"operator"`
}

func (h *Handlers) approve(w http.ResponseWriter, r *http.Request) {
	operator := h.operator(w, r)
	res, err := h.deps.Pipeline.Approve(r.Context(), chi.URLParam(r, "token"), operator)
	if err != nil {
		h.writeApprovalError(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, res)
}

func (h *Handlers) reject(w http.ResponseWriter, r *http.Request) {
	operator := h.operator(w, r)
	pending, err := h.deps.Pipeline.Reject(r.Context(), chi.URLParam(r, "token"), operator)
	if err != nil {
		h.writeApprovalError(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"status": "rejected", "action_id": pending.Action.ID})
}

func (h *Handlers) operator(w http.ResponseWriter, r *http.Request) string {
	var req operatorRequest
	if r.ContentLength != 0 {
		_ = decodeBody(w, r, &req)
	}
	if op := strings.TrimSpace(req.Operator); op != "" {
		return op
	}
	return "api"
}

func (h *Handlers) prepare(job *domain.EventJob, source domain.EventJobSource) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Source == "" {
		job.Source = source
	}
	if job.ReceivedAt.IsZero() {
		job.ReceivedAt = h.now().UTC()
	}
	if job.Brand.Name == "" {
		job.Brand = h.cfg.Brand
	}
}

func (h *Handlers) writeProcessError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		httpinfra.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, pipeline.ErrNoAnalysis):
		httpinfra.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("ошибка обработки события")
		httpinfra.WriteError(w, http.StatusBadGateway, "не удалось обработать событие")
	}
}

func (h *Handlers) writeApprovalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPendingNotFound):
		httpinfra.WriteError(w, http.StatusNotFound, "ожидающее действие не найдено")
	case errors.Is(err, pipeline.ErrApprovalsDisabled):
		httpinfra.WriteError(w, http.StatusNotImplemented, err.Error())
	default:
		h.log.Error().Err(err).Msg("ошибка обработки решения оператора")
		httpinfra.WriteError(w, http.StatusInternalServerError, "внутренняя ошибка")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
