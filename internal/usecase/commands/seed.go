package commands

import (
	"context"
	"fmt"
	"log/slog"

	"quizrush/internal/domain/member"
	"quizrush/internal/domain/quiz"
	"quizrush/internal/pkg/errs"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
)

var ErrInvalidSeedRequest = errs.New("invalid seed request")

type SeedResult struct {
	QuizID    uuid.UUID
	MemberIDs []uuid.UUID
}

// SeedCommands creates a quiz with its full slot capacity, a batch of
// members, and initializes the quota counter. This is the
// operator-facing setup for a promotion run.
type SeedCommands interface {
	SeedQuiz(ctx context.Context, title string, totalSlots, memberCount int) (*SeedResult, error)
}

type seedUseCaseImpl struct {
	quizRepo   QuizRepository
	memberRepo MemberRepository
	quota      shared.QuotaStore
	logger     *slog.Logger
}

func NewSeedCommands(
	quizRepo QuizRepository,
	memberRepo MemberRepository,
	quota shared.QuotaStore,
	logger *slog.Logger,
) SeedCommands {
	return &seedUseCaseImpl{
		quizRepo:   quizRepo,
		memberRepo: memberRepo,
		quota:      quota,
		logger:     logger,
	}
}

func (u *seedUseCaseImpl) SeedQuiz(ctx context.Context, title string, totalSlots, memberCount int) (*SeedResult, error) {
	if memberCount < 0 {
		return nil, ErrInvalidSeedRequest
	}

	q, err := quiz.NewQuiz(uuid.New(), title, totalSlots, totalSlots)
	if err != nil {
		return nil, errs.Mark(err, ErrInvalidSeedRequest)
	}

	if err := u.quizRepo.Create(ctx, q); err != nil {
		return nil, errs.Wrap(err, "failed to persist quiz")
	}

	members := make([]*member.Member, 0, memberCount)
	memberIDs := make([]uuid.UUID, 0, memberCount)
	for i := 0; i < memberCount; i++ {
		m, err := member.NewMember(uuid.New(), fmt.Sprintf("member-%03d", i+1))
		if err != nil {
			return nil, errs.Wrap(err, "failed to build member")
		}
		members = append(members, m)
		memberIDs = append(memberIDs, m.ID())
	}
	if len(members) > 0 {
		if err := u.memberRepo.CreateBatch(ctx, members); err != nil {
			return nil, errs.Wrap(err, "failed to persist members")
		}
	}

	if err := u.quota.Initialize(ctx, q.ID(), int64(totalSlots)); err != nil {
		return nil, errs.Wrap(err, "failed to initialize quota counter")
	}

	u.logger.Info("quiz seeded",
		"quiz_id", q.ID(), "total_slots", totalSlots, "members", memberCount)

	return &SeedResult{QuizID: q.ID(), MemberIDs: memberIDs}, nil
}
