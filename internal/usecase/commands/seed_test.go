//go:build unit

package commands_test

import (
	"context"
	"testing"

	"quizrush/internal/infra/quota"
	"quizrush/internal/usecase/commands"
	"quizrush/tests/common/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedQuiz(t *testing.T) {
	ctx := context.Background()

	t.Run("success: quiz, members, and counter all come up together", func(t *testing.T) {
		ledger := fake.NewLedger()
		store := quota.NewMemoryStore()
		uc := commands.NewSeedCommands(ledger.Quizzes(), ledger.Members(), store, discardLogger())

		result, err := uc.SeedQuiz(ctx, "Launch Promo", 50, 10)
		require.NoError(t, err)
		assert.Len(t, result.MemberIDs, 10)
		assert.Equal(t, 50, ledger.RemainingSlots(result.QuizID))

		counter, ok, err := store.Read(ctx, result.QuizID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(50), counter)
	})

	t.Run("success: zero members", func(t *testing.T) {
		ledger := fake.NewLedger()
		uc := commands.NewSeedCommands(ledger.Quizzes(), ledger.Members(), quota.NewMemoryStore(), discardLogger())

		result, err := uc.SeedQuiz(ctx, "Launch Promo", 5, 0)
		require.NoError(t, err)
		assert.Empty(t, result.MemberIDs)
	})

	t.Run("error: invalid inputs", func(t *testing.T) {
		ledger := fake.NewLedger()
		uc := commands.NewSeedCommands(ledger.Quizzes(), ledger.Members(), quota.NewMemoryStore(), discardLogger())

		_, err := uc.SeedQuiz(ctx, "", 5, 1)
		assert.ErrorIs(t, err, commands.ErrInvalidSeedRequest)

		_, err = uc.SeedQuiz(ctx, "Launch Promo", 0, 1)
		assert.ErrorIs(t, err, commands.ErrInvalidSeedRequest)

		_, err = uc.SeedQuiz(ctx, "Launch Promo", 5, -1)
		assert.ErrorIs(t, err, commands.ErrInvalidSeedRequest)
	})
}
