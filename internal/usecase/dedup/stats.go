package dedup

import (
	"sync"
	"time"

	"social-pipeline/internal/domain"
)

// PlatformCounters — счётчики дедупликации по платформе.
type PlatformCounters struct {
	Processed  int64 `json:"processed"`
	Duplicates int64 `json:"duplicates"`
}

// StatsSnapshot — срез метрик движка дедупликации.
type StatsSnapshot struct {
	TotalProcessed    int64                                `json:"total_processed"`
	DuplicatesFound   int64                                `json:"duplicates_found"`
	UniqueEvents      int64                                `json:"unique_events"`
	DeduplicationRate float64                              `json:"deduplication_rate"`
	AvgProcessingTime time.Duration                        `json:"avg_processing_time"`
	ByPlatform        map[domain.Platform]PlatformCounters `json:"by_platform"`
	ByMethod          map[domain.DetectionMethod]int64     `json:"by_method"`
	CacheSize         int                                  `json:"cache_size"`
	Evicted           int64                                `json:"evicted"`
}

// Stats накапливает метрики движка. Безопасен для конкурентного использования.
type Stats struct {
	mu           sync.Mutex
	processed    int64
	duplicates   int64
	totalLatency time.Duration
	evicted      int64
	byPlatform   map[domain.Platform]PlatformCounters
	byMethod     map[domain.DetectionMethod]int64
}

// NewStats создаёт пустой агрегатор.
func NewStats() *Stats {
	s := &Stats{}
	s.Reset()
	return s
}

func (s *Stats) record(platform domain.Platform, res domain.DedupResult, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	s.totalLatency += latency
	counters := s.byPlatform[platform]
	counters.Processed++
	if res.IsDuplicate {
		s.duplicates++
		counters.Duplicates++
		s.byMethod[res.Method]++
	}
	s.byPlatform[platform] = counters
}

func (s *Stats) recordEvicted(n int) {
	if n == 0 {
		return
	}
	s.mu.Lock()
	s.evicted += int64(n)
	s.mu.Unlock()
}

// Snapshot возвращает копию текущих значений.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		TotalProcessed:  s.processed,
		DuplicatesFound: s.duplicates,
		UniqueEvents:    s.processed - s.duplicates,
		Evicted:         s.evicted,
		ByPlatform:      make(map[domain.Platform]PlatformCounters, len(s.byPlatform)),
		ByMethod:        make(map[domain.DetectionMethod]int64, len(s.byMethod)),
	}
	if s.processed > 0 {
		snap.DeduplicationRate = float64(s.duplicates) / float64(s.processed)
		snap.AvgProcessingTime = s.totalLatency / time.Duration(s.processed)
	}
	for k, v := range s.byPlatform {
		snap.ByPlatform[k] = v
	}
	for k, v := range s.byMethod {
		snap.ByMethod[k] = v
	}
	return snap
}

// Reset обнуляет накопленные значения.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = 0
	s.duplicates = 0
	s.totalLatency = 0
	s.evicted = 0
	s.byPlatform = make(map[domain.Platform]PlatformCounters)
	s.byMethod = make(map[domain.DetectionMethod]int64)
}
