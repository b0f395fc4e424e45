package worker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"quizrush/internal/infra"
	"quizrush/internal/infra/db"
	"quizrush/internal/pkg/config"
	"quizrush/internal/pkg/errs"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
)

type SyncSource string

const (
	SourceDB    SyncSource = "db"
	SourceRedis SyncSource = "redis"
)

var ErrUnknownSyncSource = errs.New("unknown sync source")

func ParseSyncSource(s string) (SyncSource, error) {
	switch SyncSource(strings.ToLower(s)) {
	case SourceDB:
		return SourceDB, nil
	case SourceRedis:
		return SourceRedis, nil
	default:
		return "", errs.Mark(errs.Newf("unknown sync source %q", s), ErrUnknownSyncSource)
	}
}

type ReconcileQuizRepository interface {
	FindByID(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*shared.QuizSnapshot, error)
	FindAll(ctx context.Context) ([]*shared.QuizSnapshot, error)
	SetRemainingSlots(ctx context.Context, dbtx db.DBTX, id uuid.UUID, remaining int) error
}

// Reconciler converges the quota counters and the ledger's
// remaining_slots columns. The scheduled direction treats the ledger as
// authoritative because every claim is written there durably; the
// counter is a cache that can lag or get lost. The reverse direction
// exists for operator-driven recovery after a ledger restore.
// Both directions are idempotent: syncing twice in a row changes
// nothing the second time.
type Reconciler struct {
	quota    shared.QuotaStore
	quizRepo ReconcileQuizRepository
	tx       shared.TxManager
	cfg      config.ReconcileConfig
	logger   *slog.Logger
}

func NewReconciler(
	quota shared.QuotaStore,
	quizRepo ReconcileQuizRepository,
	tx shared.TxManager,
	cfg config.ReconcileConfig,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		quota:    quota,
		quizRepo: quizRepo,
		tx:       tx,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run periodically pushes ledger state into the quota counters until
// the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("reconciler started", "interval", r.cfg.Interval)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler shutting down")
			return
		case <-ticker.C:
			synced, err := r.SyncDBToRedis(ctx)
			if err != nil {
				r.logger.Error("scheduled reconciliation failed", "error", err)
				continue
			}
			if synced > 0 {
				r.logger.Info("scheduled reconciliation corrected counters", "synced", synced)
			}
		}
	}
}

// SyncDBToRedis walks every quiz and overwrites the quota counter
// wherever it is missing or differs from the ledger. Returns how many
// counters were written.
func (r *Reconciler) SyncDBToRedis(ctx context.Context) (int, error) {
	quizzes, err := r.quizRepo.FindAll(ctx)
	if err != nil {
		return 0, errs.Wrap(err, "failed to list quizzes for reconciliation")
	}

	synced := 0
	for _, q := range quizzes {
		wrote, err := r.syncQuizToRedis(ctx, q)
		if err != nil {
			r.logger.Error("failed to sync quiz counter",
				"quiz_id", q.ID, "error", err)
			continue
		}
		if wrote {
			synced++
		}
	}
	return synced, nil
}

func (r *Reconciler) syncQuizToRedis(ctx context.Context, q *shared.QuizSnapshot) (bool, error) {
	current, present, err := r.quota.Read(ctx, q.ID)
	if err != nil {
		return false, errs.Wrap(err, "failed to read quota counter")
	}

	if present && current == int64(q.RemainingSlots) {
		return false, nil
	}

	if present {
		r.reportMismatch(q.ID, int64(q.RemainingSlots), current, SourceDB)
	} else {
		r.logger.Info("quota counter absent, restoring from ledger",
			"quiz_id", q.ID, "remaining", q.RemainingSlots)
	}

	if err := r.quota.Initialize(ctx, q.ID, int64(q.RemainingSlots)); err != nil {
		return false, errs.Wrap(err, "failed to write quota counter")
	}
	return true, nil
}

// SyncRedisToDB overwrites ledger remaining_slots from the quota
// counters. Quizzes with no counter are left untouched; a missing
// counter carries no information about slot usage.
func (r *Reconciler) SyncRedisToDB(ctx context.Context) (int, error) {
	quizzes, err := r.quizRepo.FindAll(ctx)
	if err != nil {
		return 0, errs.Wrap(err, "failed to list quizzes for reconciliation")
	}

	synced := 0
	for _, q := range quizzes {
		current, present, err := r.quota.Read(ctx, q.ID)
		if err != nil {
			r.logger.Error("failed to read quota counter", "quiz_id", q.ID, "error", err)
			continue
		}
		if !present || current == int64(q.RemainingSlots) {
			continue
		}

		r.reportMismatch(q.ID, int64(q.RemainingSlots), current, SourceRedis)

		err = r.tx.Within(ctx, func(ctx context.Context, dbtx db.DBTX) error {
			return r.quizRepo.SetRemainingSlots(ctx, dbtx, q.ID, int(current))
		})
		if err != nil {
			r.logger.Error("failed to write ledger remaining slots",
				"quiz_id", q.ID, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// SyncForQuiz reconciles a single quiz in the requested direction.
func (r *Reconciler) SyncForQuiz(ctx context.Context, quizID uuid.UUID, source SyncSource) error {
	q, err := r.quizRepo.FindByID(ctx, r.tx.DB(), quizID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return errs.Mark(err, errs.ErrQuizNotFound)
		}
		return errs.Wrap(err, "failed to load quiz for reconciliation")
	}

	switch source {
	case SourceDB:
		if _, err := r.syncQuizToRedis(ctx, q); err != nil {
			return err
		}
		return nil
	case SourceRedis:
		current, present, err := r.quota.Read(ctx, quizID)
		if err != nil {
			return errs.Wrap(err, "failed to read quota counter")
		}
		if !present {
			return errs.Newf("no quota counter for quiz %s", quizID)
		}
		if current == int64(q.RemainingSlots) {
			return nil
		}
		r.reportMismatch(quizID, int64(q.RemainingSlots), current, SourceRedis)
		return r.tx.Within(ctx, func(ctx context.Context, dbtx db.DBTX) error {
			return r.quizRepo.SetRemainingSlots(ctx, dbtx, quizID, int(current))
		})
	default:
		return errs.Mark(errs.Newf("unknown sync source %q", source), ErrUnknownSyncSource)
	}
}

// ReportMismatch walks every quiz and logs the counters that diverge
// from the ledger without correcting anything. Returns how many
// quizzes diverged. Quizzes with no counter are counted as checked but
// not as mismatched.
func (r *Reconciler) ReportMismatch(ctx context.Context) (int, error) {
	quizzes, err := r.quizRepo.FindAll(ctx)
	if err != nil {
		return 0, errs.Wrap(err, "failed to list quizzes for mismatch report")
	}

	mismatched := 0
	for _, q := range quizzes {
		current, present, err := r.quota.Read(ctx, q.ID)
		if err != nil {
			r.logger.Error("failed to read quota counter", "quiz_id", q.ID, "error", err)
			continue
		}
		if !present {
			r.logger.Info("quota counter absent", "quiz_id", q.ID,
				"db_remaining", q.RemainingSlots)
			continue
		}
		if current != int64(q.RemainingSlots) {
			mismatched++
			r.reportMismatch(q.ID, int64(q.RemainingSlots), current, SourceDB)
		}
	}

	r.logger.Info("mismatch report finished",
		"checked", len(quizzes), "mismatched", mismatched)
	return mismatched, nil
}

// reportMismatch only logs. Alerting on divergence is an operational
// concern layered on top of these log lines.
func (r *Reconciler) reportMismatch(quizID uuid.UUID, dbValue, redisValue int64, winner SyncSource) {
	r.logger.Warn("slot count mismatch between ledger and counter",
		"quiz_id", quizID, "db_remaining", dbValue, "redis_remaining", redisValue,
		"authoritative", string(winner))
}
