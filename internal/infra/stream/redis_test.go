//go:build unit

package stream_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"quizrush/internal/infra/stream"
	"quizrush/internal/pkg/config"
	"quizrush/internal/usecase/shared"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisFixture(t *testing.T) (*redis.Client, config.PipelineConfig) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.PipelineConfig{
		Stream:           "quiz:submissions",
		DeadLetterStream: "quiz:submissions:dlq",
		Group:            "quizrush",
		Consumer:         "consumer-1",
		BatchSize:        10,
		BlockTimeout:     10 * time.Millisecond,
		MaxAttempts:      3,
		RetryBackoff:     time.Millisecond,
	}
	return client, cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisReader_CrashBeforeAck(t *testing.T) {
	ctx := context.Background()

	t.Run("success: unacked batch survives a consumer restart", func(t *testing.T) {
		client, cfg := newRedisFixture(t)
		pub := stream.NewRedisPublisher(client, cfg)

		ev := shared.NewSubmissionEvent(uuid.New(), uuid.New(), time.Now())
		require.NoError(t, pub.Publish(ctx, ev))

		first := stream.NewRedisReader(client, cfg, quietLogger())
		require.NoError(t, first.EnsureGroup(ctx))
		batch, err := first.ReadBatch(ctx, cfg.BatchSize)
		require.NoError(t, err)
		require.Len(t, batch, 1)

		// Crash before ack: a fresh reader with the same group and
		// consumer name must see the stranded delivery again.
		restarted := stream.NewRedisReader(client, cfg, quietLogger())
		require.NoError(t, restarted.EnsureGroup(ctx))
		redelivered, err := restarted.ReadBatch(ctx, cfg.BatchSize)
		require.NoError(t, err)
		require.Len(t, redelivered, 1)
		assert.Equal(t, ev.RequestID, redelivered[0].Event.RequestID)
		assert.Equal(t, batch[0].EntryID, redelivered[0].EntryID)
	})

	t.Run("success: recovery drains pending entries before new ones", func(t *testing.T) {
		client, cfg := newRedisFixture(t)
		pub := stream.NewRedisPublisher(client, cfg)

		pending := shared.NewSubmissionEvent(uuid.New(), uuid.New(), time.Now())
		require.NoError(t, pub.Publish(ctx, pending))

		first := stream.NewRedisReader(client, cfg, quietLogger())
		require.NoError(t, first.EnsureGroup(ctx))
		batch, err := first.ReadBatch(ctx, cfg.BatchSize)
		require.NoError(t, err)
		require.Len(t, batch, 1)

		// Published while the first consumer was down with an unacked
		// delivery in flight.
		fresh := shared.NewSubmissionEvent(uuid.New(), uuid.New(), time.Now())
		require.NoError(t, pub.Publish(ctx, fresh))

		restarted := stream.NewRedisReader(client, cfg, quietLogger())
		require.NoError(t, restarted.EnsureGroup(ctx))

		redelivered, err := restarted.ReadBatch(ctx, cfg.BatchSize)
		require.NoError(t, err)
		require.Len(t, redelivered, 1)
		assert.Equal(t, pending.RequestID, redelivered[0].Event.RequestID)
		require.NoError(t, restarted.Ack(ctx, redelivered[0].EntryID))

		next, err := restarted.ReadBatch(ctx, cfg.BatchSize)
		require.NoError(t, err)
		require.Len(t, next, 1)
		assert.Equal(t, fresh.RequestID, next[0].Event.RequestID)
	})

	t.Run("success: acked entries are not redelivered", func(t *testing.T) {
		client, cfg := newRedisFixture(t)
		pub := stream.NewRedisPublisher(client, cfg)

		ev := shared.NewSubmissionEvent(uuid.New(), uuid.New(), time.Now())
		require.NoError(t, pub.Publish(ctx, ev))

		first := stream.NewRedisReader(client, cfg, quietLogger())
		require.NoError(t, first.EnsureGroup(ctx))
		batch, err := first.ReadBatch(ctx, cfg.BatchSize)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		require.NoError(t, first.Ack(ctx, batch[0].EntryID))

		restarted := stream.NewRedisReader(client, cfg, quietLogger())
		require.NoError(t, restarted.EnsureGroup(ctx))
		redelivered, err := restarted.ReadBatch(ctx, cfg.BatchSize)
		require.NoError(t, err)
		assert.Empty(t, redelivered)
	})
}

func TestRedisDeadLetterSink_Publish(t *testing.T) {
	ctx := context.Background()
	client, cfg := newRedisFixture(t)
	sink := stream.NewRedisDeadLetterSink(client, cfg)

	rec := shared.DeadLetterRecord{
		Event:         shared.NewSubmissionEvent(uuid.New(), uuid.New(), time.Now()),
		ErrorMessage:  "member not found",
		ErrorKind:     "NOT_FOUND",
		FailedAt:      time.Now(),
		RetryAttempts: 3,
		Stream:        cfg.Stream,
		EntryID:       "1-0",
	}
	require.NoError(t, sink.PublishDeadLetter(ctx, rec))

	length, err := client.XLen(ctx, cfg.DeadLetterStream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}
