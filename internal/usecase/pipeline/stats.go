package pipeline

import (
	"sync"

	"social-pipeline/internal/domain"
)

// StatsSnapshot — счётчики исходов конвейера.
type StatsSnapshot struct {
	Processed  int64                  `json:"processed"`
	Duplicates int64                  `json:"duplicates"`
	Rejected   int64                  `json:"rejected"`
	Failed     int64                  `json:"failed"`
	ByRoute    map[domain.Route]int64 `json:"by_route"`
	Approved   int64                  `json:"approved"`
	Declined   int64                  `json:"declined"`
}

// Stats накапливает счётчики конвейера.
type Stats struct {
	mu   sync.Mutex
	snap StatsSnapshot
}

// NewStats создаёт пустой агрегатор.
func NewStats() *Stats {
	s := &Stats{}
	s.Reset()
	return s
}

func (s *Stats) record(outcome string, route domain.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch outcome {
	case OutcomeProcessed:
		s.snap.Processed++
		s.snap.ByRoute[route]++
	case OutcomeDuplicate:
		s.snap.Duplicates++
	case OutcomeRejected:
		s.snap.Rejected++
	case OutcomeFailed:
		s.snap.Failed++
	}
}

func (s *Stats) recordApproval(approved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if approved {
		s.snap.Approved++
	} else {
		s.snap.Declined++
	}
}

// Snapshot возвращает копию счётчиков.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snap
	out.ByRoute = make(map[domain.Route]int64, len(s.snap.ByRoute))
	for k, v := range s.snap.ByRoute {
		out.ByRoute[k] = v
	}
	return out
}

// Reset обнуляет счётчики.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = StatsSnapshot{ByRoute: make(map[domain.Route]int64)}
}
