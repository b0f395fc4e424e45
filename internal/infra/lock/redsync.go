package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"quizrush/internal/pkg/errs"
	"quizrush/internal/usecase/shared"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const retryDelay = 100 * time.Millisecond

// RedsyncLock grants leases backed by Redis. The lease auto-expires after
// leaseTime, so a crashed holder never leaves a permanent deadlock, and
// the critical section holds no pooled database connection.
type RedsyncLock struct {
	rs     *redsync.Redsync
	logger *slog.Logger
}

func NewRedsyncLock(client *redis.Client, logger *slog.Logger) *RedsyncLock {
	pool := goredis.NewPool(client)
	return &RedsyncLock{
		rs:     redsync.New(pool),
		logger: logger,
	}
}

var _ shared.DistributedLock = (*RedsyncLock)(nil)

func (l *RedsyncLock) TryAcquire(ctx context.Context, key string, wait, leaseTime time.Duration) (shared.Lease, error) {
	tries := int(wait/retryDelay) + 1

	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(leaseTime),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(retryDelay),
	)

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if err := mutex.LockContext(waitCtx); err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(ctx.Err(), "lock acquisition cancelled")
		}
		if errors.Is(err, redsync.ErrFailed) || waitCtx.Err() != nil {
			return nil, errs.Mark(err, errs.ErrLockTimeout)
		}
		return nil, errs.Wrap(err, "failed to acquire lock")
	}

	return &redsyncLease{mutex: mutex, logger: l.logger}, nil
}

type redsyncLease struct {
	mutex  *redsync.Mutex
	logger *slog.Logger
}

// Release is idempotent: a lease that already expired or was released is
// not an error.
func (le *redsyncLease) Release(ctx context.Context) error {
	ok, err := le.mutex.UnlockContext(ctx)
	if err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) {
			return nil
		}
		return errs.Wrap(err, "failed to release lock")
	}
	if !ok {
		le.logger.Debug("lease already expired at release", "key", le.mutex.Name())
	}
	return nil
}
