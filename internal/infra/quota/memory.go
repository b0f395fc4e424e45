package quota

import (
	"context"
	"sync"

	"quizrush/internal/pkg/errs"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
)

// MemoryStore satisfies the same atomic contract as RedisStore for tests
// and single-process setups.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[uuid.UUID]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[uuid.UUID]int64),
	}
}

var _ shared.QuotaStore = (*MemoryStore)(nil)

func (s *MemoryStore) Initialize(_ context.Context, quizID uuid.UUID, slots int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[quizID] = slots
	return nil
}

func (s *MemoryStore) Decrement(_ context.Context, quizID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := s.counters[quizID] - 1
	if value < 0 {
		// Decrement and compensation collapse into one step under the
		// mutex, matching the externally observable Redis behavior.
		return value, errs.ErrSlotsExhausted
	}
	s.counters[quizID] = value
	return value, nil
}

func (s *MemoryStore) Increment(_ context.Context, quizID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[quizID]++
	return s.counters[quizID], nil
}

func (s *MemoryStore) Read(_ context.Context, quizID uuid.UUID) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.counters[quizID]
	return value, ok, nil
}
