//go:build unit

package queries_test

import (
	"context"
	"testing"

	"quizrush/internal/domain/submission"
	"quizrush/internal/usecase/queries"
	"quizrush/tests/common/fake"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionQueries_GetByRequestID(t *testing.T) {
	ctx := context.Background()

	t.Run("success: returns the stored view", func(t *testing.T) {
		ledger := fake.NewLedger()
		q := queries.NewSubmissionQueries(ledger.Submissions())

		sub, err := submission.NewSubmission(uuid.NewString(), uuid.New(), uuid.New(), submission.StatusCompleted)
		require.NoError(t, err)
		require.NoError(t, ledger.Submissions().Create(ctx, nil, sub))

		view, err := q.GetByRequestID(ctx, sub.RequestID())
		require.NoError(t, err)

		want := &queries.SubmissionView{
			ID:        sub.ID(),
			RequestID: sub.RequestID(),
			MemberID:  sub.MemberID(),
			QuizID:    sub.QuizID(),
			Status:    "COMPLETED",
		}
		if diff := cmp.Diff(want, view); diff != "" {
			t.Errorf("view mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("error: unknown request id", func(t *testing.T) {
		q := queries.NewSubmissionQueries(fake.NewLedger().Submissions())

		_, err := q.GetByRequestID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, queries.ErrSubmissionNotFound)
	})
}
