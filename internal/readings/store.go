// Package readings caches recent environmental samples for the status and
// history views, so API reads never touch the sensor.
package readings

import (
	"sync"
	"time"

	"boxguard/internal/model"
)

type Store struct {
	mu        sync.RWMutex
	latest    model.EnvironmentalSample
	has       bool
	history   []model.EnvironmentalSample
	limit     int
	updatedAt time.Time
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{limit: limit}
}

func (s *Store) Update(sample model.EnvironmentalSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = sample
	s.has = true
	s.updatedAt = time.Now().UTC()
	if len(s.history) < s.limit {
		s.history = append(s.history, sample)
		return
	}
	copy(s.history, s.history[1:])
	s.history[len(s.history)-1] = sample
}

func (s *Store) Latest() (model.EnvironmentalSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.has
}

func (s *Store) History(limit int) []model.EnvironmentalSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]model.EnvironmentalSample, 0, limit)
	start := len(s.history) - limit
	for i := start; i < len(s.history); i++ {
		out = append(out, s.history[i])
	}
	return out
}

func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
