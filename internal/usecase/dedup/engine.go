package dedup

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/metrics"
)

// Config задаёт параметры движка дедупликации.
type Config struct {
	// TimeWindow — время жизни отпечатка в кэше.
	TimeWindow time.Duration
	// MaxCacheSize — верхняя граница числа отпечатков.
	MaxCacheSize int
	// SweepInterval — период фоновой очистки.
	SweepInterval time.Duration
	// TimestampTolerance — симметричное окно поиска по времени события.
	TimestampTolerance time.Duration
	// SimilarityThreshold — порог похожести для совпадения по окну.
	SimilarityThreshold float64
	// Rules — платформенные правила; nil означает DefaultRules.
	Rules map[domain.Platform][]PlatformRule
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		TimeWindow:          30 * time.Minute,
		MaxCacheSize:        10000,
		SweepInterval:       time.Minute,
		TimestampTolerance:  30 * time.Second,
		SimilarityThreshold: 0.8,
	}
}

// Engine классифицирует события как новые или дубликаты.
type Engine struct {
	cfg   Config
	log   zerolog.Logger
	stats *Stats
	now   func() time.Time
	seq   atomic.Uint64

	mu    sync.Mutex
	cache *index
}

// Option настраивает Engine.
type Option func(*Engine)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithStats подключает внешний агрегатор метрик.
func WithStats(stats *Stats) Option {
	return func(e *Engine) { e.stats = stats }
}

// NewEngine создаёт движок дедупликации.
func NewEngine(cfg Config, log zerolog.Logger, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.TimeWindow <= 0 {
		cfg.TimeWindow = def.TimeWindow
	}
	if cfg.MaxCacheSize <= 0 {
		cfg.MaxCacheSize = def.MaxCacheSize
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.TimestampTolerance <= 0 {
		cfg.TimestampTolerance = def.TimestampTolerance
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules(cfg.TimeWindow)
	}
	e := &Engine{
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		cache: newIndex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.stats == nil {
		e.stats = NewStats()
	}
	return e
}

// Process присваивает событию идентификатор и проверяет его на дубликат.
// Проверки идут от дешёвых и надёжных к дорогим: точное совпадение, хеш контента,
// окно по времени, платформенные правила.
func (e *Engine) Process(event domain.SocialEvent) domain.DedupResult {
	start := time.Now()
	now := e.now()
	platform := domain.NormalizePlatform(event.Platform)
	id := e.uniqueID(platform, event, now)
	fp := newFingerprint(id, event, now)

	e.mu.Lock()
	res := e.detect(event, fp)
	if !res.IsDuplicate {
		e.store(fp)
	}
	size := e.cache.len()
	e.mu.Unlock()

	latency := time.Since(start)
	e.stats.record(platform, res, latency)
	metrics.ObserveDedup(string(platform), string(res.Method), res.IsDuplicate, latency)
	metrics.SetDedupCacheSize(size)

	if res.IsDuplicate {
		e.log.Debug().
			Str("event_key", event.Key()).
			Str("duplicate_of", res.DuplicateOf).
			Str("method", string(res.Method)).
			Float64("confidence", res.Confidence).
			Msg("dedup: найден дубликат")
	}
	return res
}

func (e *Engine) uniqueID(platform domain.Platform, event domain.SocialEvent, now time.Time) string {
	seq := e.seq.Add(1)
	return fmt.Sprintf("%s_%d_%d_%s_%s", platform, now.UnixMilli(), seq, shortHash([]byte(event.NativeID)), payloadHash(event))
}

func (e *Engine) detect(event domain.SocialEvent, fp Fingerprint) domain.DedupResult {
	res := domain.DedupResult{UniqueID: fp.ID, Method: domain.DetectionNone}

	if existing, ok := e.cache.byNativeKey(fp.Platform, fp.NativeID); ok {
		return duplicate(res, existing.ID, 1.0, domain.DetectionExact)
	}
	if original, ok := e.cache.OldestByContentHash(fp.ContentHash); ok {
		return duplicate(res, original.ID, 0.95, domain.DetectionContentHash)
	}
	if match, ok := e.matchWindow(fp); ok {
		return duplicate(res, match.ID, match.Confidence, domain.DetectionTimestampWindow)
	}
	for _, rule := range e.cfg.Rules[fp.Platform] {
		if match, ok := rule.Match(event, fp, e.cache); ok {
			return duplicate(res, match.ID, match.Confidence, domain.DetectionPlatformRule)
		}
	}
	return res
}

func (e *Engine) matchWindow(fp Fingerprint) (Match, bool) {
	tol := e.cfg.TimestampTolerance
	var best Match
	var bestFP Fingerprint
	found := false
	for _, candidate := range e.cache.Window(fp.Platform, fp.Timestamp.Add(-tol), fp.Timestamp.Add(tol)) {
		score := similarity(fp, candidate)
		if score <= e.cfg.SimilarityThreshold {
			continue
		}
		if !found || score > best.Confidence || (score == best.Confidence && olderThan(candidate, bestFP)) {
			best = Match{ID: candidate.ID, Confidence: math.Round(score*1000) / 1000}
			bestFP = candidate
			found = true
		}
	}
	return best, found
}

func duplicate(res domain.DedupResult, of string, confidence float64, method domain.DetectionMethod) domain.DedupResult {
	res.IsDuplicate = true
	res.DuplicateOf = of
	res.Confidence = confidence
	res.Method = method
	return res
}

// store сохраняет отпечаток и синхронно ограничивает размер кэша. Вызывается под e.mu.
func (e *Engine) store(fp Fingerprint) {
	e.cache.insert(fp)
	if e.cache.len() <= e.cfg.MaxCacheSize {
		return
	}
	removed := e.cache.evictOlderThan(fp.CreatedAt.Add(-e.cfg.TimeWindow))
	removed += e.cache.evictOldest(e.cfg.MaxCacheSize)
	e.stats.recordEvicted(removed)
}

// Sweep удаляет отпечатки старше окна дедупликации.
func (e *Engine) Sweep() int {
	cutoff := e.now().Add(-e.cfg.TimeWindow)
	e.mu.Lock()
	removed := e.cache.evictOlderThan(cutoff)
	size := e.cache.len()
	e.mu.Unlock()
	e.stats.recordEvicted(removed)
	metrics.SetDedupCacheSize(size)
	if removed > 0 {
		e.log.Debug().Int("removed", removed).Int("size", size).Msg("dedup: очистка кэша")
	}
	return removed
}

// Run периодически очищает кэш до отмены контекста.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep()
		}
	}
}

// Size возвращает текущее число отпечатков в кэше.
func (e *Engine) Size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.len()
}

// Stats возвращает срез метрик вместе с размером кэша.
func (e *Engine) Stats() StatsSnapshot {
	snap := e.stats.Snapshot()
	snap.CacheSize = e.Size()
	return snap
}

// ResetStats обнуляет метрики движка.
func (e *Engine) ResetStats() {
	e.stats.Reset()
}
