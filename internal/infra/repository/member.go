package repository

import (
	"context"
	"errors"

	"quizrush/internal/domain/member"
	"quizrush/internal/infra"
	"quizrush/internal/infra/db"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MemberRepository struct {
	pool *pgxpool.Pool
}

func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

func (r *MemberRepository) Create(ctx context.Context, m *member.Member) error {
	_, err := r.pool.Exec(ctx,
		"INSERT INTO members (id, display_name) VALUES ($1, $2)",
		m.ID(), m.DisplayName())
	if err != nil {
		return infra.WrapRepoErr("failed to create member", err)
	}
	return nil
}

func (r *MemberRepository) CreateBatch(ctx context.Context, members []*member.Member) error {
	batch := &pgx.Batch{}
	for _, m := range members {
		batch.Queue("INSERT INTO members (id, display_name) VALUES ($1, $2)",
			m.ID(), m.DisplayName())
	}

	res := r.pool.SendBatch(ctx, batch)
	defer res.Close()

	for range members {
		if _, err := res.Exec(); err != nil {
			return infra.WrapRepoErr("failed to create members batch", err)
		}
	}
	return nil
}

func (r *MemberRepository) FindByID(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*shared.MemberSnapshot, error) {
	var s shared.MemberSnapshot
	err := dbtx.QueryRow(ctx,
		"SELECT id, display_name FROM members WHERE id = $1", id).
		Scan(&s.ID, &s.DisplayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("member not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find member by ID", err)
	}
	return &s, nil
}
