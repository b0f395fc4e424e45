package repository

import (
	"context"
	"errors"

	"quizrush/internal/domain/submission"
	"quizrush/internal/infra"
	"quizrush/internal/infra/db"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubmissionRepository struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

const insertSubmission = `INSERT INTO submissions (id, request_id, member_id, quiz_id, status)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (request_id) DO NOTHING`

// Create persists one submission. The unique index on request_id is the
// idempotency anchor: a replayed request_id inserts nothing and reports
// KindDuplicateKey.
func (r *SubmissionRepository) Create(ctx context.Context, dbtx db.DBTX, sub *submission.Submission) error {
	tag, err := dbtx.Exec(ctx, insertSubmission,
		sub.ID(), sub.RequestID(), sub.MemberID(), sub.QuizID(), string(sub.Status()))
	if err != nil {
		return infra.WrapRepoErr("failed to create submission", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("submission request_id already exists", nil, infra.KindDuplicateKey)
	}
	return nil
}

// CreateBatch persists a batch in one round trip. Conflicting request_ids
// are skipped, not errors; the returned request ids are the rows that
// actually landed, so the caller can tell an insert from a replay.
func (r *SubmissionRepository) CreateBatch(ctx context.Context, dbtx db.DBTX, subs []*submission.Submission) ([]string, error) {
	batch := &pgx.Batch{}
	for _, sub := range subs {
		batch.Queue(insertSubmission,
			sub.ID(), sub.RequestID(), sub.MemberID(), sub.QuizID(), string(sub.Status()))
	}

	var sender interface {
		SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	}
	switch v := dbtx.(type) {
	case pgx.Tx:
		sender = v
	default:
		sender = r.pool
	}

	res := sender.SendBatch(ctx, batch)
	defer res.Close()

	inserted := make([]string, 0, len(subs))
	for _, sub := range subs {
		tag, err := res.Exec()
		if err != nil {
			return inserted, infra.WrapRepoErr("failed to create submissions batch", err)
		}
		if tag.RowsAffected() > 0 {
			inserted = append(inserted, sub.RequestID())
		}
	}
	return inserted, nil
}

func (r *SubmissionRepository) FindByRequestID(ctx context.Context, requestID string) (*shared.SubmissionSnapshot, error) {
	var s shared.SubmissionSnapshot
	err := r.pool.QueryRow(ctx,
		"SELECT id, request_id, member_id, quiz_id, status FROM submissions WHERE request_id = $1",
		requestID).
		Scan(&s.ID, &s.RequestID, &s.MemberID, &s.QuizID, &s.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("submission not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find submission by request ID", err)
	}
	return &s, nil
}

func (r *SubmissionRepository) ExistsByRequestID(ctx context.Context, requestID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM submissions WHERE request_id = $1)", requestID).
		Scan(&exists)
	if err != nil {
		return false, infra.WrapRepoErr("failed to check submission existence", err)
	}
	return exists, nil
}

func (r *SubmissionRepository) CountByQuizID(ctx context.Context, quizID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT count(*) FROM submissions WHERE quiz_id = $1", quizID).
		Scan(&count)
	if err != nil {
		return 0, infra.WrapRepoErr("failed to count submissions", err)
	}
	return count, nil
}
