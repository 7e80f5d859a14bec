package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"social-pipeline/internal/domain"
)

// Processor проводит задачу через конвейер.
type Processor interface {
	Process(ctx context.Context, job domain.EventJob) (Result, error)
}

// JobLedger учитывает попытки обработки задач, чтобы повторная доставка не исполняла действия дважды.
type JobLedger interface {
	EnsureEventJob(ctx context.Context, jobID string) (done bool, attempts int, err error)
	MarkEventJobDone(ctx context.Context, jobID, outcome string) error
}

// Consumer читает задачи из очереди и обрабатывает их несколькими воркерами.
type Consumer struct {
	queue      domain.EventQueue
	proc       Processor
	ledger     JobLedger
	workers    int
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewConsumer создаёт потребителя очереди. ledger может быть nil.
func NewConsumer(queue domain.EventQueue, proc Processor, ledger JobLedger, workers int, log zerolog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		queue:      queue,
		proc:       proc,
		ledger:     ledger,
		workers:    workers,
		retryDelay: time.Second,
		log:        log.With().Str("component", "consumer").Logger(),
	}
}

// Run обрабатывает задачи до отмены контекста.
func (c *Consumer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.workers; i++ {
		g.Go(func() error {
			c.loop(ctx)
			return nil
		})
	}
	c.log.Info().Int("workers", c.workers).Msg("потребитель очереди запущен")
	return g.Wait()
}

func (c *Consumer) loop(ctx context.Context) {
	for {
		job, ack, err := c.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error().Err(err).Msg("не удалось получить задачу")
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
			continue
		}
		c.Handle(ctx, job, ack)
	}
}

// Handle обрабатывает одну задачу и подтверждает её доставку.
// Ошибки валидации подтверждаются сразу, сбои анализа возвращают задачу в очередь.
func (c *Consumer) Handle(ctx context.Context, job domain.EventJob, ack domain.AckFunc) {
	log := c.log.With().Str("job_id", job.ID).Str("event_key", job.Event.Key()).Int("attempts", job.Attempts).Logger()

	if c.ledger != nil && job.ID != "" {
		done, attempts, err := c.ledger.EnsureEventJob(ctx, job.ID)
		if err != nil {
			log.Error().Err(err).Msg("не удалось зарегистрировать задачу")
			c.ack(log, ack, false)
			return
		}
		if done {
			log.Debug().Int("ledger_attempts", attempts).Msg("задача уже обработана")
			c.ack(log, ack, true)
			return
		}
	}

	res, err := c.proc.Process(ctx, job)
	if err != nil && retryable(err) && ctx.Err() == nil {
		log.Warn().Err(err).Msg("обработка не удалась, задача вернётся в очередь")
		c.ack(log, ack, false)
		return
	}
	if err != nil && ctx.Err() != nil {
		c.ack(log, ack, false)
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("задача отклонена")
	}
	if c.ledger != nil && job.ID != "" {
		if err := c.ledger.MarkEventJobDone(context.WithoutCancel(ctx), job.ID, res.Outcome); err != nil {
			log.Error().Err(err).Msg("не удалось отметить задачу завершённой")
		}
	}
	c.ack(log, ack, true)
}

func (c *Consumer) ack(log zerolog.Logger, ack domain.AckFunc, success bool) {
	if ack == nil {
		return
	}
	if err := ack(success); err != nil {
		log.Error().Err(err).Bool("success", success).Msg("не удалось подтвердить задачу")
	}
}

func retryable(err error) bool {
	var verr *domain.ValidationError
	if errors.As(err, &verr) || errors.Is(err, ErrNoAnalysis) {
		return false
	}
	return true
}
