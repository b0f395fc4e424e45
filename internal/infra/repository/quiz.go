package repository

import (
	"context"
	"errors"

	"quizrush/internal/domain/quiz"
	"quizrush/internal/infra"
	"quizrush/internal/infra/db"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type QuizRepository struct {
	pool *pgxpool.Pool
}

func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

const quizColumns = "id, title, total_slots, remaining_slots"

func (r *QuizRepository) Create(ctx context.Context, q *quiz.Quiz) error {
	_, err := r.pool.Exec(ctx,
		"INSERT INTO quizzes (id, title, total_slots, remaining_slots) VALUES ($1, $2, $3, $4)",
		q.ID(), q.Title(), q.TotalSlots(), q.RemainingSlots())
	if err != nil {
		return infra.WrapRepoErr("failed to create quiz", err)
	}
	return nil
}

func (r *QuizRepository) FindByID(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*shared.QuizSnapshot, error) {
	row := dbtx.QueryRow(ctx,
		"SELECT "+quizColumns+" FROM quizzes WHERE id = $1", id)
	return scanQuiz(row, "failed to find quiz by ID")
}

// FindByIDForUpdate takes a row-level exclusive lock held for the rest
// of the enclosing transaction; the caller owns a pooled connection for
// that whole duration.
func (r *QuizRepository) FindByIDForUpdate(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*shared.QuizSnapshot, error) {
	row := dbtx.QueryRow(ctx,
		"SELECT "+quizColumns+" FROM quizzes WHERE id = $1 FOR UPDATE", id)
	return scanQuiz(row, "failed to find quiz by ID with lock")
}

func (r *QuizRepository) FindAll(ctx context.Context) ([]*shared.QuizSnapshot, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+quizColumns+" FROM quizzes ORDER BY created_at")
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find all quizzes", err)
	}
	defer rows.Close()

	var result []*shared.QuizSnapshot
	for rows.Next() {
		var s shared.QuizSnapshot
		if err := rows.Scan(&s.ID, &s.Title, &s.TotalSlots, &s.RemainingSlots); err != nil {
			return nil, infra.WrapRepoErr("failed to scan quiz row", err)
		}
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate quiz rows", err)
	}
	return result, nil
}

// DecrementSlots claims n slots, guarded so the counter never goes
// negative. KindConflict signals there were fewer than n slots left.
func (r *QuizRepository) DecrementSlots(ctx context.Context, dbtx db.DBTX, id uuid.UUID, n int) error {
	tag, err := dbtx.Exec(ctx,
		"UPDATE quizzes SET remaining_slots = remaining_slots - $2, updated_at = now() WHERE id = $1 AND remaining_slots >= $2",
		id, n)
	if err != nil {
		return infra.WrapRepoErr("failed to decrement quiz slots", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("insufficient remaining slots", nil, infra.KindConflict)
	}
	return nil
}

// SetRemainingSlots overwrites the counter unconditionally. Used by
// reconciliation (store-authoritative direction) and by the unguarded
// allocation variant.
func (r *QuizRepository) SetRemainingSlots(ctx context.Context, dbtx db.DBTX, id uuid.UUID, remaining int) error {
	tag, err := dbtx.Exec(ctx,
		"UPDATE quizzes SET remaining_slots = $2, updated_at = now() WHERE id = $1",
		id, remaining)
	if err != nil {
		return infra.WrapRepoErr("failed to set quiz remaining slots", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("quiz not found", nil, infra.KindNotFound)
	}
	return nil
}

func scanQuiz(row pgx.Row, msg string) (*shared.QuizSnapshot, error) {
	var s shared.QuizSnapshot
	if err := row.Scan(&s.ID, &s.Title, &s.TotalSlots, &s.RemainingSlots); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("quiz not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr(msg, err)
	}
	return &s, nil
}
