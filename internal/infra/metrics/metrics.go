package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	DedupEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dedup_events_total",
		Help: "Количество событий, прошедших дедупликацию",
	}, []string{"platform", "method", "duplicate"})
	DedupDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dedup_duration_seconds",
		Help:    "Длительность проверки события на дубликат",
		Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
	})
	DedupCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dedup_cache_size",
		Help: "Число отпечатков в кэше дедупликации",
	})

	PriorityScore = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "priority_score",
		Help:    "Распределение итоговых оценок приоритета",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	}, []string{"platform"})
	PriorityEscalations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "priority_auto_escalations_total",
		Help: "Количество событий с автоматической эскалацией",
	})

	RoutingDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routing_decisions_total",
		Help: "Количество решений маршрутизации по маршрутам",
	}, []string{"route"})
	RoutingOverrides = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routing_overrides_total",
		Help: "Сработавшие правила переопределения маршрута",
	}, []string{"rule"})

	ActionExecutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "action_executions_total",
		Help: "Результаты выполнения действий",
	}, []string{"type", "status"})
	ActionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "action_duration_seconds",
		Help:    "Длительность выполнения действий",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	PipelineEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_events_total",
		Help: "События, обработанные конвейером, по исходу",
	}, []string{"outcome"})
	QueueRedeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_redeliveries_total",
		Help: "Задачи, вернувшиеся в очередь или отброшенные после исчерпания попыток",
	}, []string{"queue", "outcome"})
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_depth",
		Help: "Задачи в очереди и в обработке",
	}, []string{"queue", "state"})
	ApprovalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "approvals_total",
		Help: "Решения модераторов по действиям, ожидающим одобрения",
	}, []string{"decision"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Состояние предохранителя внешнего клиента: 0 closed, 1 half-open, 2 open",
	}, []string{"name"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		DedupEventsTotal,
		DedupDuration,
		DedupCacheSize,
		PriorityScore,
		PriorityEscalations,
		RoutingDecisions,
		RoutingOverrides,
		ActionExecutions,
		ActionDuration,
		PipelineEvents,
		QueueRedeliveries,
		QueueDepth,
		ApprovalsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
		CircuitBreakerState,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// Handler возвращает HTTP обработчик для /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveDedup записывает исход проверки на дубликат.
func ObserveDedup(platform, method string, duplicate bool, latency time.Duration) {
	if platform == "" {
		platform = "unknown"
	}
	DedupEventsTotal.WithLabelValues(platform, method, strconv.FormatBool(duplicate)).Inc()
	DedupDuration.Observe(latency.Seconds())
}

// SetDedupCacheSize обновляет размер кэша дедупликации.
func SetDedupCacheSize(size int) {
	DedupCacheSize.Set(float64(size))
}

// ObservePriority записывает итоговую оценку приоритета.
func ObservePriority(platform string, overall float64, escalate bool) {
	if platform == "" {
		platform = "unknown"
	}
	PriorityScore.WithLabelValues(platform).Observe(overall)
	if escalate {
		PriorityEscalations.Inc()
	}
}

// ObserveRouting записывает маршрут и сработавшие переопределения.
func ObserveRouting(route string, overrides []string) {
	RoutingDecisions.WithLabelValues(route).Inc()
	for _, rule := range overrides {
		RoutingOverrides.WithLabelValues(rule).Inc()
	}
}

// ObserveAction записывает результат выполнения действия.
func ObserveAction(actionType, status string, duration time.Duration) {
	ActionExecutions.WithLabelValues(actionType, status).Inc()
	ActionDuration.WithLabelValues(actionType).Observe(duration.Seconds())
}

// IncPipeline увеличивает счётчик исходов конвейера.
func IncPipeline(outcome string) {
	PipelineEvents.WithLabelValues(outcome).Inc()
}

// IncRedelivery учитывает повтор (requeued) или отброс (dropped) задачи.
func IncRedelivery(queue, outcome string) {
	QueueRedeliveries.WithLabelValues(queue, outcome).Inc()
}

// SetQueueDepth записывает число задач в очереди и в обработке.
func SetQueueDepth(queue string, queued, inFlight int64) {
	QueueDepth.WithLabelValues(queue, "queued").Set(float64(queued))
	QueueDepth.WithLabelValues(queue, "in_flight").Set(float64(inFlight))
}

// IncApproval увеличивает счётчик решений модераторов.
func IncApproval(decision string) {
	ApprovalsTotal.WithLabelValues(decision).Inc()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// SetBreakerState записывает состояние предохранителя.
func SetBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}
