package commands

import (
	"context"
	"errors"
	"log/slog"

	"quizrush/internal/pkg/clock"
	"quizrush/internal/pkg/errs"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
)

// AsyncSubmitCommands is the asynchronous pipeline producer: it
// pre-claims a slot on the quota counter, publishes the submission
// request and returns without waiting for persistence.
type AsyncSubmitCommands interface {
	SubmitAsync(ctx context.Context, quizID, memberID uuid.UUID) (string, error)
}

type asyncSubmitUseCaseImpl struct {
	quota     shared.QuotaStore
	publisher shared.EventPublisher
	clock     clock.Clock
	logger    *slog.Logger
}

func NewAsyncSubmitCommands(
	quota shared.QuotaStore,
	publisher shared.EventPublisher,
	clk clock.Clock,
	logger *slog.Logger,
) AsyncSubmitCommands {
	return &asyncSubmitUseCaseImpl{
		quota:     quota,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
	}
}

// SubmitAsync fails fast with ErrSlotsExhausted before emitting anything
// when the counter is spent. If the publish itself fails, the quota
// decrement is rolled back so the slot is not lost.
func (u *asyncSubmitUseCaseImpl) SubmitAsync(ctx context.Context, quizID, memberID uuid.UUID) (string, error) {
	if _, err := u.quota.Decrement(ctx, quizID); err != nil {
		if errors.Is(err, errs.ErrSlotsExhausted) {
			return "", ErrSlotsExhausted
		}
		return "", errs.Wrap(err, "failed to pre-claim quota slot")
	}

	ev := shared.NewSubmissionEvent(quizID, memberID, u.clock.Now())

	if err := u.publisher.Publish(ctx, ev); err != nil {
		if _, incErr := u.quota.Increment(ctx, quizID); incErr != nil {
			// Both the publish and the compensation failed; the counter
			// is now short one slot until reconciliation runs.
			u.logger.Error("quota rollback after publish failure failed",
				"request_id", ev.RequestID, "quiz_id", quizID, "error", incErr)
		}
		u.logger.Error("submission event publish failed",
			"request_id", ev.RequestID, "quiz_id", quizID, "member_id", memberID, "error", err)
		return "", errs.Wrap(err, "failed to publish submission event")
	}

	u.logger.Debug("submission event published",
		"request_id", ev.RequestID, "quiz_id", quizID, "member_id", memberID)
	return ev.RequestID, nil
}
