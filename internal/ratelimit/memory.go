package ratelimit

import (
	"context"
	"sync"
	"time"
)

type record struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps one record per identifier in process memory. Records
// are created lazily on the first request of a window.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record
	max     int
	window  time.Duration
	now     func() time.Time
}

func NewMemoryStore(max int, window time.Duration) *MemoryStore {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryStore{
		records: make(map[string]*record),
		max:     max,
		window:  window,
		now:     time.Now,
	}
}

func (s *MemoryStore) Take(_ context.Context, id string) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := s.records[id]
	if rec == nil || now.After(rec.resetAt) {
		rec = &record{count: 1, resetAt: now.Add(s.window)}
		s.records[id] = rec
		return s.decision(true, rec), nil
	}

	if rec.count >= s.max {
		return s.decision(false, rec), nil
	}

	rec.count++
	return s.decision(true, rec), nil
}

func (s *MemoryStore) Peek(_ context.Context, id string) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := s.records[id]
	if rec == nil || now.After(rec.resetAt) {
		return Decision{Allowed: true, Limit: s.max, Remaining: s.max, ResetAt: now}, nil
	}
	return s.decision(rec.count < s.max, rec), nil
}

// Sweep removes records whose window has passed and returns how many.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, rec := range s.records {
		if now.After(rec.resetAt) {
			delete(s.records, id)
			n++
		}
	}
	return n
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MemoryStore) decision(allowed bool, rec *record) Decision {
	return Decision{
		Allowed:   allowed,
		Limit:     s.max,
		Remaining: max(0, s.max-rec.count),
		ResetAt:   rec.resetAt,
	}
}
