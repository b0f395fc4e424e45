package queries

import (
	"context"

	"quizrush/internal/infra"
	"quizrush/internal/pkg/errs"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
)

var ErrSubmissionNotFound = errs.New("submission not found")

// Read model (DTO for read side)
type SubmissionView struct {
	ID        uuid.UUID `json:"id"`
	RequestID string    `json:"request_id"`
	MemberID  uuid.UUID `json:"member_id"`
	QuizID    uuid.UUID `json:"quiz_id"`
	Status    string    `json:"status"`
}

type SubmissionReadStore interface {
	FindByRequestID(ctx context.Context, requestID string) (*shared.SubmissionSnapshot, error)
}

type SubmissionQueries interface {
	GetByRequestID(ctx context.Context, requestID string) (*SubmissionView, error)
}

type submissionQueriesImpl struct {
	readStore SubmissionReadStore
}

func NewSubmissionQueries(readStore SubmissionReadStore) SubmissionQueries {
	return &submissionQueriesImpl{readStore: readStore}
}

func (q *submissionQueriesImpl) GetByRequestID(ctx context.Context, requestID string) (*SubmissionView, error) {
	snap, err := q.readStore.FindByRequestID(ctx, requestID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, errs.Wrap(err, "failed to load submission")
	}

	return &SubmissionView{
		ID:        snap.ID,
		RequestID: snap.RequestID,
		MemberID:  snap.MemberID,
		QuizID:    snap.QuizID,
		Status:    snap.Status,
	}, nil
}
