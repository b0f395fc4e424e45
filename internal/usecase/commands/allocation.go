package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"quizrush/internal/domain/submission"
	"quizrush/internal/infra"
	"quizrush/internal/infra/db"
	"quizrush/internal/pkg/config"
	"quizrush/internal/pkg/errs"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
)

// The cross-layer sentinels are re-exported so handlers and command
// callers match one error value regardless of which layer raised it.
var (
	ErrQuizNotFound   = errs.ErrQuizNotFound
	ErrMemberNotFound = errs.New("member not found")
	ErrSlotsExhausted = errs.ErrSlotsExhausted
	ErrLockTimeout    = errs.ErrLockTimeout
)

type AllocationResult struct {
	SubmissionID uuid.UUID
	RequestID    string
	Status       submission.Status
}

// AllocationCommands is the synchronous slot-allocation path. The three
// variants share one contract and differ only in what serializes the
// read-check-decrement-write critical section:
//
//   - AllocateWithLock: a distributed lease, so the critical section
//     holds no pooled ledger connection beyond two short round trips.
//   - AllocateWithRowLock: a ledger row lock, which pins a pooled
//     connection for the whole critical section and starves unrelated
//     work under contention.
//   - AllocateUnguarded: nothing, deliberately reproducing the oversell
//     race for demonstration.
type AllocationCommands interface {
	AllocateWithLock(ctx context.Context, quizID, memberID uuid.UUID) (*AllocationResult, error)
	AllocateWithRowLock(ctx context.Context, quizID, memberID uuid.UUID) (*AllocationResult, error)
	AllocateUnguarded(ctx context.Context, quizID, memberID uuid.UUID) (*AllocationResult, error)
}

type allocationUseCaseImpl struct {
	lock            shared.DistributedLock
	tx              shared.TxManager
	quizRepo        QuizRepository
	memberRepo      MemberRepository
	submissionRepo  SubmissionRepository
	lockCfg         config.LockConfig
	processingDelay time.Duration
	logger          *slog.Logger
}

func NewAllocationCommands(
	lock shared.DistributedLock,
	tx shared.TxManager,
	quizRepo QuizRepository,
	memberRepo MemberRepository,
	submissionRepo SubmissionRepository,
	lockCfg config.LockConfig,
	logger *slog.Logger,
) AllocationCommands {
	return &allocationUseCaseImpl{
		lock:           lock,
		tx:             tx,
		quizRepo:       quizRepo,
		memberRepo:     memberRepo,
		submissionRepo: submissionRepo,
		lockCfg:        lockCfg,
		logger:         logger,
	}
}

// NewAllocationCommandsWithDelay injects an artificial processing delay
// into the critical section. Used to widen race windows in load
// experiments; production wiring passes zero.
func NewAllocationCommandsWithDelay(
	lock shared.DistributedLock,
	tx shared.TxManager,
	quizRepo QuizRepository,
	memberRepo MemberRepository,
	submissionRepo SubmissionRepository,
	lockCfg config.LockConfig,
	delay time.Duration,
	logger *slog.Logger,
) AllocationCommands {
	uc := &allocationUseCaseImpl{
		lock:            lock,
		tx:              tx,
		quizRepo:        quizRepo,
		memberRepo:      memberRepo,
		submissionRepo:  submissionRepo,
		lockCfg:         lockCfg,
		processingDelay: delay,
		logger:          logger,
	}
	return uc
}

func (u *allocationUseCaseImpl) lockKey(quizID uuid.UUID) string {
	return u.lockCfg.KeyPrefix + quizID.String()
}

func (u *allocationUseCaseImpl) AllocateWithLock(ctx context.Context, quizID, memberID uuid.UUID) (*AllocationResult, error) {
	lease, err := u.lock.TryAcquire(ctx, u.lockKey(quizID), u.lockCfg.WaitTimeout, u.lockCfg.LeaseTime)
	if err != nil {
		if errors.Is(err, errs.ErrLockTimeout) {
			return nil, ErrLockTimeout
		}
		return nil, errs.Wrap(err, "failed to acquire allocation lock")
	}
	// Release on every exit path: success, business rejection, error.
	defer func() {
		if releaseErr := lease.Release(ctx); releaseErr != nil {
			u.logger.Warn("failed to release allocation lock",
				"quiz_id", quizID, "error", releaseErr)
		}
	}()

	return u.allocateGuarded(ctx, quizID, memberID, false)
}

func (u *allocationUseCaseImpl) AllocateWithRowLock(ctx context.Context, quizID, memberID uuid.UUID) (*AllocationResult, error) {
	return u.allocateGuarded(ctx, quizID, memberID, true)
}

// allocateGuarded runs read-check-decrement-write in one ledger
// transaction. With rowLock the quiz read takes FOR UPDATE; without it
// the caller is expected to hold the distributed lease.
func (u *allocationUseCaseImpl) allocateGuarded(ctx context.Context, quizID, memberID uuid.UUID, rowLock bool) (*AllocationResult, error) {
	var result *AllocationResult

	err := u.tx.Within(ctx, func(ctx context.Context, dbtx db.DBTX) error {
		var (
			quizSnap *shared.QuizSnapshot
			err      error
		)
		if rowLock {
			quizSnap, err = u.quizRepo.FindByIDForUpdate(ctx, dbtx, quizID)
		} else {
			quizSnap, err = u.quizRepo.FindByID(ctx, dbtx, quizID)
		}
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				return ErrQuizNotFound
			}
			return errs.Wrap(err, "failed to load quiz")
		}

		if _, err := u.memberRepo.FindByID(ctx, dbtx, memberID); err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				return ErrMemberNotFound
			}
			return errs.Wrap(err, "failed to load member")
		}

		if quizSnap.RemainingSlots <= 0 {
			return ErrSlotsExhausted
		}

		u.sleepProcessingDelay(ctx)

		if err := u.quizRepo.DecrementSlots(ctx, dbtx, quizID, 1); err != nil {
			if infra.IsKind(err, infra.KindConflict) {
				return ErrSlotsExhausted
			}
			return errs.Wrap(err, "failed to claim winner slot")
		}

		sub, err := submission.NewSubmission(uuid.NewString(), memberID, quizID, submission.StatusCompleted)
		if err != nil {
			return errs.Wrap(err, "failed to build submission")
		}
		if err := u.submissionRepo.Create(ctx, dbtx, sub); err != nil {
			return errs.Wrap(err, "failed to persist submission")
		}

		result = &AllocationResult{
			SubmissionID: sub.ID(),
			RequestID:    sub.RequestID(),
			Status:       sub.Status(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AllocateUnguarded reads, waits, then blindly writes back the
// decremented value. Concurrent callers overwrite each other and the
// submission count outruns the counter decrease: the race the guarded
// variants exist to prevent.
func (u *allocationUseCaseImpl) AllocateUnguarded(ctx context.Context, quizID, memberID uuid.UUID) (*AllocationResult, error) {
	dbtx := u.tx.DB()

	quizSnap, err := u.quizRepo.FindByID(ctx, dbtx, quizID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, errs.Wrap(err, "failed to load quiz")
	}

	if _, err := u.memberRepo.FindByID(ctx, dbtx, memberID); err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, errs.Wrap(err, "failed to load member")
	}

	if quizSnap.RemainingSlots <= 0 {
		return nil, ErrSlotsExhausted
	}

	u.sleepProcessingDelay(ctx)

	if err := u.quizRepo.SetRemainingSlots(ctx, dbtx, quizID, quizSnap.RemainingSlots-1); err != nil {
		return nil, errs.Wrap(err, "failed to write back remaining slots")
	}

	sub, err := submission.NewSubmission(uuid.NewString(), memberID, quizID, submission.StatusCompleted)
	if err != nil {
		return nil, errs.Wrap(err, "failed to build submission")
	}
	if err := u.submissionRepo.Create(ctx, dbtx, sub); err != nil {
		return nil, errs.Wrap(err, "failed to persist submission")
	}

	return &AllocationResult{
		SubmissionID: sub.ID(),
		RequestID:    sub.RequestID(),
		Status:       sub.Status(),
	}, nil
}

func (u *allocationUseCaseImpl) sleepProcessingDelay(ctx context.Context) {
	if u.processingDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(u.processingDelay):
	}
}
