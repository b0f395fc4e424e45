//go:build unit

package commands_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quizrush/internal/infra/quota"
	"quizrush/internal/infra/stream"
	"quizrush/internal/pkg/clock"
	"quizrush/internal/usecase/commands"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, shared.SubmissionEvent) error {
	return errors.New("broker unavailable")
}

func TestSubmitAsync(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMockClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	t.Run("success: pre-claims a slot and publishes the event", func(t *testing.T) {
		store := quota.NewMemoryStore()
		ms := stream.NewMemoryStream("quiz:submissions")
		quizID, memberID := uuid.New(), uuid.New()
		require.NoError(t, store.Initialize(ctx, quizID, 5))

		uc := commands.NewAsyncSubmitCommands(store, ms, clk, discardLogger())

		requestID, err := uc.SubmitAsync(ctx, quizID, memberID)
		require.NoError(t, err)
		assert.NotEmpty(t, requestID)

		remaining, _, err := store.Read(ctx, quizID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), remaining)

		batch, err := ms.ReadBatch(ctx, 10)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.Equal(t, requestID, batch[0].Event.RequestID)
		assert.Equal(t, quizID, batch[0].Event.QuizID)
		assert.Equal(t, memberID, batch[0].Event.MemberID)
	})

	t.Run("error: exhausted counter fails fast without publishing", func(t *testing.T) {
		store := quota.NewMemoryStore()
		ms := stream.NewMemoryStream("quiz:submissions")
		quizID := uuid.New()
		require.NoError(t, store.Initialize(ctx, quizID, 0))

		uc := commands.NewAsyncSubmitCommands(store, ms, clk, discardLogger())

		_, err := uc.SubmitAsync(ctx, quizID, uuid.New())
		assert.ErrorIs(t, err, commands.ErrSlotsExhausted)
		assert.Zero(t, ms.PendingCount())
	})

	t.Run("error: publish failure rolls the quota claim back", func(t *testing.T) {
		store := quota.NewMemoryStore()
		quizID := uuid.New()
		require.NoError(t, store.Initialize(ctx, quizID, 5))

		uc := commands.NewAsyncSubmitCommands(store, failingPublisher{}, clk, discardLogger())

		_, err := uc.SubmitAsync(ctx, quizID, uuid.New())
		require.Error(t, err)

		remaining, _, err := store.Read(ctx, quizID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), remaining, "failed publish must return the pre-claimed slot")
	})
}

// With S slots and N > S concurrent submitters, exactly S events reach
// the stream.
func TestSubmitAsync_ConcurrentSubmitters(t *testing.T) {
	const (
		slots      = 20
		submitters = 80
	)

	ctx := context.Background()
	store := quota.NewMemoryStore()
	ms := stream.NewMemoryStream("quiz:submissions")
	quizID := uuid.New()
	require.NoError(t, store.Initialize(ctx, quizID, slots))

	uc := commands.NewAsyncSubmitCommands(store, ms, clock.NewRealClock(), discardLogger())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.SubmitAsync(ctx, quizID, uuid.New())

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, commands.ErrSlotsExhausted):
				exhausted++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, slots, succeeded)
	assert.Equal(t, submitters-slots, exhausted)
	assert.Equal(t, slots, ms.PendingCount())

	remaining, _, err := store.Read(ctx, quizID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)
}
