//go:build unit

package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"quizrush/internal/infra/lock"
	"quizrush/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLock_TryAcquire(t *testing.T) {
	ctx := context.Background()

	t.Run("success: second acquire waits for release", func(t *testing.T) {
		l := lock.NewMemoryLock()

		lease, err := l.TryAcquire(ctx, "lock:quiz:a", 100*time.Millisecond, time.Second)
		require.NoError(t, err)

		_, err = l.TryAcquire(ctx, "lock:quiz:a", 50*time.Millisecond, time.Second)
		assert.ErrorIs(t, err, errs.ErrLockTimeout)

		require.NoError(t, lease.Release(ctx))

		lease2, err := l.TryAcquire(ctx, "lock:quiz:a", 100*time.Millisecond, time.Second)
		require.NoError(t, err)
		require.NoError(t, lease2.Release(ctx))
	})

	t.Run("success: distinct keys do not contend", func(t *testing.T) {
		l := lock.NewMemoryLock()

		leaseA, err := l.TryAcquire(ctx, "lock:quiz:a", 50*time.Millisecond, time.Second)
		require.NoError(t, err)
		leaseB, err := l.TryAcquire(ctx, "lock:quiz:b", 50*time.Millisecond, time.Second)
		require.NoError(t, err)

		require.NoError(t, leaseA.Release(ctx))
		require.NoError(t, leaseB.Release(ctx))
	})

	t.Run("success: expired lease can be taken over", func(t *testing.T) {
		l := lock.NewMemoryLock()

		stale, err := l.TryAcquire(ctx, "lock:quiz:a", 50*time.Millisecond, 20*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(30 * time.Millisecond)

		fresh, err := l.TryAcquire(ctx, "lock:quiz:a", 50*time.Millisecond, time.Second)
		require.NoError(t, err)

		// The stale holder's release must not free the new holder's lease.
		require.NoError(t, stale.Release(ctx))
		_, err = l.TryAcquire(ctx, "lock:quiz:a", 30*time.Millisecond, time.Second)
		assert.ErrorIs(t, err, errs.ErrLockTimeout)

		require.NoError(t, fresh.Release(ctx))
	})

	t.Run("success: release is idempotent", func(t *testing.T) {
		l := lock.NewMemoryLock()

		lease, err := l.TryAcquire(ctx, "lock:quiz:a", 50*time.Millisecond, time.Second)
		require.NoError(t, err)

		assert.NoError(t, lease.Release(ctx))
		assert.NoError(t, lease.Release(ctx))
	})

	t.Run("error: cancelled context stops waiting", func(t *testing.T) {
		l := lock.NewMemoryLock()

		lease, err := l.TryAcquire(ctx, "lock:quiz:a", 50*time.Millisecond, time.Second)
		require.NoError(t, err)
		defer func() { _ = lease.Release(ctx) }()

		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = l.TryAcquire(cancelCtx, "lock:quiz:a", time.Second, time.Second)
		assert.Error(t, err)
	})
}

// Holders never overlap: a counter guarded only by the lock sees no
// lost updates across concurrent acquirers.
func TestMemoryLock_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	l := lock.NewMemoryLock()

	const workers = 20

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			lease, err := l.TryAcquire(ctx, "lock:quiz:a", 5*time.Second, time.Second)
			if err != nil {
				return
			}
			defer func() { _ = lease.Release(ctx) }()

			v := counter
			time.Sleep(time.Millisecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}
