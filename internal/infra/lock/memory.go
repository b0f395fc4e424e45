package lock

import (
	"context"
	"sync"
	"time"

	"quizrush/internal/pkg/errs"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
)

type holder struct {
	token  string
	expiry time.Time
}

// MemoryLock satisfies the DistributedLock contract in-process: at most
// one holder per key, lease auto-expiry, bounded acquisition wait,
// owner-checked release.
type MemoryLock struct {
	mu      sync.Mutex
	holders map[string]holder
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{
		holders: make(map[string]holder),
	}
}

var _ shared.DistributedLock = (*MemoryLock)(nil)

func (l *MemoryLock) TryAcquire(ctx context.Context, key string, wait, leaseTime time.Duration) (shared.Lease, error) {
	deadline := time.Now().Add(wait)

	for {
		if token, ok := l.tryOnce(key, leaseTime); ok {
			return &memoryLease{lock: l, key: key, token: token}, nil
		}

		if time.Now().After(deadline) {
			return nil, errs.ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, errs.Wrap(ctx.Err(), "lock acquisition cancelled")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (l *MemoryLock) tryOnce(key string, leaseTime time.Duration) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, held := l.holders[key]
	if held && time.Now().Before(h.expiry) {
		return "", false
	}

	token := uuid.NewString()
	l.holders[key] = holder{token: token, expiry: time.Now().Add(leaseTime)}
	return token, true
}

type memoryLease struct {
	lock  *MemoryLock
	key   string
	token string
}

// Release is idempotent and only removes the holder entry if this lease
// still owns it; an expired lease taken over by another caller is left
// untouched.
func (le *memoryLease) Release(_ context.Context) error {
	le.lock.mu.Lock()
	defer le.lock.mu.Unlock()

	if h, held := le.lock.holders[le.key]; held && h.token == le.token {
		delete(le.lock.holders, le.key)
	}
	return nil
}
