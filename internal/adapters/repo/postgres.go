package repo

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/metrics"
)

//go:embed schema.sql
var schemaSQL string

// Postgres хранит журнал аудита, результаты действий и состояние задач.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.AuditSink = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт таблицы, если их ещё нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, schemaSQL)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", "schema", start, err)
	if err != nil {
		return fmt.Errorf("создание схемы: %w", err)
	}
	return nil
}

// Append добавляет запись в журнал аудита.
func (p *Postgres) Append(ctx context.Context, record domain.AuditRecord) error {
	if record.Event == "" {
		return errors.New("пустой тип записи аудита")
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now().UTC()
	}
	payload, err := encodeMetadata(record.Metadata)
	if err != nil {
		return err
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO audit_log (event, event_key, event_id, decision_id, route, confidence, priority_score, metadata, occurred_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9)
`, record.Event, record.EventKey, record.EventID, record.DecisionID, string(record.Route),
		record.Confidence, record.PriorityScore, payload, record.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "audit_log_insert", "audit_log", start, err)
	return err
}

// ListAudit возвращает записи аудита события от новых к старым.
func (p *Postgres) ListAudit(ctx context.Context, eventKey string, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT event, event_key, event_id, decision_id, route, confidence, priority_score, metadata, occurred_at
FROM audit_log
WHERE event_key = $1
ORDER BY occurred_at DESC, id DESC
LIMIT $2
`, eventKey, limit)
	metrics.ObserveNetworkRequest("postgres", "audit_log_list", "audit_log", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var (
			rec        domain.AuditRecord
			decisionID sql.NullString
			route      sql.NullString
			payload    []byte
		)
		if err := rows.Scan(&rec.Event, &rec.EventKey, &rec.EventID, &decisionID, &route,
			&rec.Confidence, &rec.PriorityScore, &payload, &rec.OccurredAt); err != nil {
			return nil, err
		}
		rec.DecisionID = decisionID.String
		rec.Route = domain.Route(route.String)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveActionResults сохраняет результаты исполнения действий одним батчем.
func (p *Postgres) SaveActionResults(ctx context.Context, results []domain.ActionExecutionResult) error {
	if len(results) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, res := range results {
		payload, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal result %s: %w", res.ActionID, err)
		}
		batch.Queue(`
INSERT INTO action_results (action_id, action_type, status, event_id, decision_id, result, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (action_id) DO UPDATE
SET status = EXCLUDED.status,
    result = EXCLUDED.result,
    finished_at = EXCLUDED.finished_at
`, res.ActionID, string(res.ActionType), string(res.Status), res.Metadata.EventID, res.Metadata.DecisionID,
			payload, res.StartedAt, res.FinishedAt)
	}

	start := time.Now()
	err := p.pool.SendBatch(ctx, batch).Close()
	metrics.ObserveNetworkRequest("postgres", "action_results_upsert", "action_results", start, err)
	return err
}

// EnsureEventJob регистрирует попытку обработки задачи и сообщает, была ли она уже завершена.
func (p *Postgres) EnsureEventJob(ctx context.Context, jobID string) (bool, int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		done     sql.NullTime
		attempts int
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO event_jobs (job_id, attempts, updated_at)
VALUES ($1, 1, now())
ON CONFLICT (job_id) DO UPDATE
    SET attempts = event_jobs.attempts + 1,
        updated_at = now()
RETURNING done_at, attempts
`, jobID).Scan(&done, &attempts)
	metrics.ObserveNetworkRequest("postgres", "event_jobs_upsert", "event_jobs", start, err)
	if err != nil {
		return false, 0, err
	}
	return done.Valid, attempts, nil
}

// MarkEventJobDone помечает задачу завершённой с указанным исходом.
func (p *Postgres) MarkEventJobDone(ctx context.Context, jobID, outcome string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE event_jobs
SET done_at = COALESCE(done_at, now()),
    outcome = $2,
    updated_at = now()
WHERE job_id = $1
`, jobID, outcome)
	metrics.ObserveNetworkRequest("postgres", "event_jobs_mark_done", "event_jobs", start, err)
	return err
}

func encodeMetadata(meta map[string]any) ([]byte, error) {
	if len(meta) == 0 {
		return []byte("{}"), nil
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal audit metadata: %w", err)
	}
	return payload, nil
}

// PruneEventJobs удаляет завершённые задачи старше olderThan и возвращает их число.
func (p *Postgres) PruneEventJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM event_jobs WHERE done_at IS NOT NULL AND done_at < now() - make_interval(secs => $1)`, olderThan.Seconds())
	metrics.ObserveNetworkRequest("postgres", "event_jobs_prune", "event_jobs", start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
