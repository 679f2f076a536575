// Package idempotency stores Idempotency-Key claims for payment capture.
package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
)

type entry struct {
	resultID  string
	expiresAt time.Time
}

// MemoryStore implements repositories.IdempotencyStore with a map. Suitable
// for single-instance deployments and tests.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]entry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryStore creates the store and starts a goroutine that evicts expired
// keys every sweepEvery. A zero sweepEvery disables the sweeper.
func NewMemoryStore(sweepEvery time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries:  make(map[string]entry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	if sweepEvery > 0 {
		s.wg.Add(1)
		go s.cleanupLoop(sweepEvery)
	}
	return s
}

func (s *MemoryStore) live(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok || s.now().After(e.expiresAt) {
		return entry{}, false
	}
	return e, true
}

func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.entries[key] = entry{expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Complete(_ context.Context, key, resultID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{resultID: resultID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.resultID == "" {
		delete(s.entries, key)
	}
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	return e.resultID, ok, nil
}

// Close stops the sweeper. Safe to call multiple times.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *MemoryStore) cleanupLoop(every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries held, expired or not.
func (s *MemoryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ repositories.IdempotencyStore = (*MemoryStore)(nil)
