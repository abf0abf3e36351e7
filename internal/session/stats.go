package session

import (
	"sync"

	"github.com/noah-isme/clinic-dashboard/internal/models"
)

// Stats holds aggregate counters populated as a side effect of stats fetches.
type Stats struct {
	mu       sync.RWMutex
	users    models.UserStats
	analyses models.AnalysisStats
}

// NewStats returns zeroed counters.
func NewStats() *Stats {
	return &Stats{}
}

// SetUserStats replaces the user counters.
func (s *Stats) SetUserStats(stats models.UserStats) {
	s.mu.Lock()
	s.users = stats
	s.mu.Unlock()
}

// SetAnalysisStats replaces the analysis counters.
func (s *Stats) SetAnalysisStats(stats models.AnalysisStats) {
	s.mu.Lock()
	s.analyses = stats
	s.mu.Unlock()
}

// Snapshot copies every counter.
func (s *Stats) Snapshot() models.StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.StatsSnapshot{UserStats: s.users, AnalysisStats: s.analyses}
}

// Reset zeroes every counter.
func (s *Stats) Reset() {
	s.mu.Lock()
	s.users = models.UserStats{}
	s.analyses = models.AnalysisStats{}
	s.mu.Unlock()
}
