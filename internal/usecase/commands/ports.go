package commands

import (
	"context"

	"quizrush/internal/domain/member"
	"quizrush/internal/domain/quiz"
	"quizrush/internal/domain/submission"
	"quizrush/internal/infra/db"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
)

// Ledger repository ports consumed by the command side. The dbtx
// parameter scopes a call to the caller's transaction; passing the
// TxManager's DB() handle runs it standalone.

type QuizRepository interface {
	Create(ctx context.Context, q *quiz.Quiz) error
	FindByID(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*shared.QuizSnapshot, error)
	FindByIDForUpdate(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*shared.QuizSnapshot, error)
	DecrementSlots(ctx context.Context, dbtx db.DBTX, id uuid.UUID, n int) error
	SetRemainingSlots(ctx context.Context, dbtx db.DBTX, id uuid.UUID, remaining int) error
}

type MemberRepository interface {
	CreateBatch(ctx context.Context, members []*member.Member) error
	FindByID(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*shared.MemberSnapshot, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, dbtx db.DBTX, sub *submission.Submission) error
}
