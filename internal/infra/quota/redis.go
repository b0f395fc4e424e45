package quota

import (
	"context"
	"log/slog"
	"time"

	"quizrush/internal/pkg/config"
	"quizrush/internal/pkg/errs"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one integer counter per quiz under a multi-day TTL.
// Correctness of "never over-allocate" on the async path rests solely on
// DECR/INCR being atomic; no lock is taken here.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisStore(client *redis.Client, cfg config.QuotaConfig, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
		logger: logger,
	}
}

var _ shared.QuotaStore = (*RedisStore)(nil)

func (s *RedisStore) key(quizID uuid.UUID) string {
	return s.prefix + quizID.String()
}

func (s *RedisStore) Initialize(ctx context.Context, quizID uuid.UUID, slots int64) error {
	if err := s.client.Set(ctx, s.key(quizID), slots, s.ttl).Err(); err != nil {
		return errs.Wrap(err, "failed to initialize quota counter")
	}
	s.logger.Info("quota counter initialized", "quiz_id", quizID, "slots", slots)
	return nil
}

// Decrement atomically takes one slot. A result below zero means the
// counter was already exhausted: the decrement is compensated in the same
// logical operation and the pre-call value is restored.
func (s *RedisStore) Decrement(ctx context.Context, quizID uuid.UUID) (int64, error) {
	key := s.key(quizID)

	value, err := s.client.Decr(ctx, key).Result()
	if err != nil {
		return 0, errs.Wrap(err, "failed to decrement quota counter")
	}

	if value < 0 {
		restored, incErr := s.client.Incr(ctx, key).Result()
		if incErr != nil {
			// Compensation failure leaves the counter negative until
			// reconciliation overwrites it from the ledger.
			s.logger.Error("quota compensation failed",
				"quiz_id", quizID, "error", incErr)
			return value, errs.Wrap(incErr, "failed to compensate exhausted quota counter")
		}
		s.logger.Warn("quota exhausted, decrement compensated",
			"quiz_id", quizID, "restored", restored)
		return value, errs.ErrSlotsExhausted
	}

	return value, nil
}

func (s *RedisStore) Increment(ctx context.Context, quizID uuid.UUID) (int64, error) {
	value, err := s.client.Incr(ctx, s.key(quizID)).Result()
	if err != nil {
		return 0, errs.Wrap(err, "failed to increment quota counter")
	}
	s.logger.Info("quota counter restored", "quiz_id", quizID, "remaining", value)
	return value, nil
}

func (s *RedisStore) Read(ctx context.Context, quizID uuid.UUID) (int64, bool, error) {
	value, err := s.client.Get(ctx, s.key(quizID)).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errs.Wrap(err, "failed to read quota counter")
	}
	return value, true, nil
}
