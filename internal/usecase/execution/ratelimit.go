package execution

import (
	"context"
	"sync"
	"time"

	"social-pipeline/internal/domain"
)

// Limit — ограничение частоты для вида действия. Ноль означает отсутствие ограничения.
type Limit struct {
	PerHour int
	PerDay  int
}

// DefaultLimits возвращает лимиты по умолчанию.
func DefaultLimits() map[domain.ActionType]Limit {
	return map[domain.ActionType]Limit{
		domain.ActionRespond:  {PerHour: 60, PerDay: 500},
		domain.ActionEscalate: {PerHour: 30, PerDay: 200},
		domain.ActionCreate:   {PerHour: 100, PerDay: 1000},
		domain.ActionEngage:   {PerHour: 120, PerDay: 1000},
	}
}

type window struct {
	hour      int64
	day       int64
	hourCount int
	dayCount  int
}

// MemoryRateLimiter считает действия в текущем часе и сутках внутри процесса.
type MemoryRateLimiter struct {
	limits map[domain.ActionType]Limit
	now    func() time.Time

	mu      sync.Mutex
	windows map[domain.ActionType]*window
}

var _ domain.RateLimiter = (*MemoryRateLimiter)(nil)

// NewMemoryRateLimiter создаёт лимитер с указанными ограничениями.
func NewMemoryRateLimiter(limits map[domain.ActionType]Limit, now func() time.Time) *MemoryRateLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryRateLimiter{limits: limits, now: now, windows: make(map[domain.ActionType]*window)}
}

// Allow резервирует слот для действия, если лимиты не исчерпаны.
func (l *MemoryRateLimiter) Allow(_ context.Context, actionType domain.ActionType) (bool, error) {
	limit, ok := l.limits[actionType]
	if !ok || (limit.PerHour <= 0 && limit.PerDay <= 0) {
		return true, nil
	}
	now := l.now().UTC()
	hour := now.Unix() / 3600
	day := now.Unix() / 86400

	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.windows[actionType]
	if w == nil {
		w = &window{}
		l.windows[actionType] = w
	}
	if w.hour != hour {
		w.hour, w.hourCount = hour, 0
	}
	if w.day != day {
		w.day, w.dayCount = day, 0
	}
	if limit.PerHour > 0 && w.hourCount >= limit.PerHour {
		return false, nil
	}
	if limit.PerDay > 0 && w.dayCount >= limit.PerDay {
		return false, nil
	}
	w.hourCount++
	w.dayCount++
	return true, nil
}
