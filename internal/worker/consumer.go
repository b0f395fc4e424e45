package worker

import (
	"context"
	"log/slog"
	"time"

	"quizrush/internal/domain/submission"
	"quizrush/internal/infra"
	"quizrush/internal/infra/db"
	"quizrush/internal/pkg/clock"
	"quizrush/internal/pkg/config"
	"quizrush/internal/pkg/errs"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// Ledger ports consumed by the pipeline workers.

type QuizRepository interface {
	FindByID(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*shared.QuizSnapshot, error)
	FindByIDForUpdate(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*shared.QuizSnapshot, error)
	DecrementSlots(ctx context.Context, dbtx db.DBTX, id uuid.UUID, n int) error
}

type MemberRepository interface {
	FindByID(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*shared.MemberSnapshot, error)
}

type SubmissionRepository interface {
	CreateBatch(ctx context.Context, dbtx db.DBTX, subs []*submission.Submission) ([]string, error)
	ExistsByRequestID(ctx context.Context, requestID string) (bool, error)
}

// Consumer drains the submission-request stream in bounded batches.
// Each event is resolved independently to either a persisted submission
// or a dead letter; the batch's read position is acknowledged only after
// the durable writes, so a crash mid-batch redelivers the whole batch
// (at-least-once). The request_id dedup check keeps redelivered events
// from claiming a second slot, and slots are only claimed for rows the
// batch insert actually landed.
type Consumer struct {
	reader         shared.EventReader
	deadLetters    shared.DeadLetterSink
	tx             shared.TxManager
	quizRepo       QuizRepository
	memberRepo     MemberRepository
	submissionRepo SubmissionRepository
	cfg            config.PipelineConfig
	clock          clock.Clock
	logger         *slog.Logger
	breaker        *gobreaker.CircuitBreaker
}

func NewConsumer(
	reader shared.EventReader,
	deadLetters shared.DeadLetterSink,
	tx shared.TxManager,
	quizRepo QuizRepository,
	memberRepo MemberRepository,
	submissionRepo SubmissionRepository,
	cfg config.PipelineConfig,
	clk clock.Clock,
	logger *slog.Logger,
) *Consumer {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "consumer-persist",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
	})
	return &Consumer{
		reader:         reader,
		deadLetters:    deadLetters,
		tx:             tx,
		quizRepo:       quizRepo,
		memberRepo:     memberRepo,
		submissionRepo: submissionRepo,
		cfg:            cfg,
		clock:          clk,
		logger:         logger,
		breaker:        breaker,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("submission consumer started",
		"group", c.cfg.Group, "consumer", c.cfg.Consumer, "batch_size", c.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("submission consumer shutting down")
			return
		default:
		}

		batch, err := c.reader.ReadBatch(ctx, c.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("failed to read submission batch", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if len(batch) == 0 {
			continue
		}

		if err := c.ProcessBatch(ctx, batch); err != nil {
			// No ack: the whole batch will be redelivered.
			c.logger.Error("batch processing failed, leaving batch unacked",
				"batch_size", len(batch), "error", err)
		}
	}
}

// ProcessBatch resolves every event, then runs the batch writes, then
// acknowledges. The write-before-ack ordering is the at-least-once
// contract; do not reorder.
func (c *Consumer) ProcessBatch(ctx context.Context, batch []shared.Delivery) error {
	var (
		toPersist []*submission.Submission
		entryIDs  = make([]string, 0, len(batch))
		succeeded int
		failed    int
		skipped   int
	)

	for _, d := range batch {
		entryIDs = append(entryIDs, d.EntryID)

		if d.DecodeErr != nil {
			failed++
			c.sendToDeadLetter(ctx, d, d.DecodeErr, "MALFORMED", 0)
			continue
		}

		duplicate, err := c.submissionRepo.ExistsByRequestID(ctx, d.Event.RequestID)
		if err != nil {
			c.logger.Warn("dedup check failed, relying on unique index",
				"request_id", d.Event.RequestID, "error", err)
		}
		if duplicate {
			skipped++
			c.logger.Debug("duplicate request id, skipping redelivered event",
				"request_id", d.Event.RequestID, "entry_id", d.EntryID)
			continue
		}

		sub, attempts, err := c.buildWithRetry(ctx, d.Event)
		if err != nil {
			failed++
			c.logger.Error("submission processing failed after retries",
				"request_id", d.Event.RequestID, "quiz_id", d.Event.QuizID,
				"member_id", d.Event.MemberID, "attempts", attempts,
				"stream", d.Stream, "entry_id", d.EntryID, "error", err)

			c.sendToDeadLetter(ctx, d, err, classifyKind(err), attempts)

			if failedSub := c.buildFailedSubmission(ctx, d.Event); failedSub != nil {
				toPersist = append(toPersist, failedSub)
			}
			continue
		}

		if err := sub.Complete(); err != nil {
			return errs.Wrap(err, "completed transition must succeed from pending")
		}
		toPersist = append(toPersist, sub)
		succeeded++
	}

	if err := c.persistBatch(ctx, toPersist); err != nil {
		return err
	}

	if err := c.reader.Ack(ctx, entryIDs...); err != nil {
		return errs.Wrap(err, "failed to acknowledge batch")
	}

	c.logger.Info("submission batch processed",
		"total", len(batch), "succeeded", succeeded, "failed", failed, "skipped", skipped)
	return nil
}

// buildWithRetry looks up the referenced rows and constructs a PENDING
// submission, retrying with doubling backoff up to the attempt budget.
func (c *Consumer) buildWithRetry(ctx context.Context, ev shared.SubmissionEvent) (*submission.Submission, int, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.cfg.RetryBackoff << (attempt - 2)
			select {
			case <-ctx.Done():
				return nil, attempt - 1, errs.Wrap(ctx.Err(), "batch processing cancelled")
			case <-time.After(backoff):
			}
		}

		sub, err := c.buildOnce(ctx, ev)
		if err == nil {
			return sub, attempt, nil
		}
		lastErr = err
	}

	return nil, c.cfg.MaxAttempts, lastErr
}

func (c *Consumer) buildOnce(ctx context.Context, ev shared.SubmissionEvent) (*submission.Submission, error) {
	dbtx := c.tx.DB()

	if _, err := c.quizRepo.FindByID(ctx, dbtx, ev.QuizID); err != nil {
		return nil, errs.Wrap(err, "failed to resolve quiz")
	}
	if _, err := c.memberRepo.FindByID(ctx, dbtx, ev.MemberID); err != nil {
		return nil, errs.Wrap(err, "failed to resolve member")
	}

	sub, err := submission.NewSubmission(ev.RequestID, ev.MemberID, ev.QuizID, submission.StatusPending)
	if err != nil {
		return nil, errs.Wrap(err, "failed to build submission")
	}
	return sub, nil
}

// buildFailedSubmission best-effort records a FAILED row for a
// dead-lettered event, when the referenced rows can still be resolved.
// It claims no slot.
func (c *Consumer) buildFailedSubmission(ctx context.Context, ev shared.SubmissionEvent) *submission.Submission {
	dbtx := c.tx.DB()

	if _, err := c.quizRepo.FindByID(ctx, dbtx, ev.QuizID); err != nil {
		return nil
	}
	if _, err := c.memberRepo.FindByID(ctx, dbtx, ev.MemberID); err != nil {
		return nil
	}

	sub, err := submission.NewSubmission(ev.RequestID, ev.MemberID, ev.QuizID, submission.StatusFailed)
	if err != nil {
		c.logger.Error("failed to build failed-submission record",
			"request_id", ev.RequestID, "error", err)
		return nil
	}
	return sub
}

// persistBatch writes all submissions and all quiz counter updates in
// one transaction, behind a circuit breaker as protection against a
// struggling ledger. Slots are claimed only for rows the insert landed:
// a request_id that conflicted belongs to an already-processed event and
// already holds its slot.
func (c *Consumer) persistBatch(ctx context.Context, subs []*submission.Submission) error {
	if len(subs) == 0 {
		return nil
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.tx.Within(ctx, func(ctx context.Context, dbtx db.DBTX) error {
			insertedIDs, err := c.submissionRepo.CreateBatch(ctx, dbtx, subs)
			if err != nil {
				return errs.Wrap(err, "failed to persist submission batch")
			}
			if len(insertedIDs) < len(subs) {
				c.logger.Warn("some submissions conflicted on request_id, claiming no slots for them",
					"expected", len(subs), "inserted", len(insertedIDs))
			}

			for quizID, n := range claimsForInserted(subs, insertedIDs) {
				if err := c.claimSlots(ctx, dbtx, quizID, n); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return errs.Wrap(err, "batch persist failed")
	}
	return nil
}

// claimsForInserted counts one slot per landed COMPLETED row, grouped by
// quiz. FAILED rows are recorded without a claim.
func claimsForInserted(subs []*submission.Submission, insertedIDs []string) map[uuid.UUID]int {
	byRequest := make(map[string]*submission.Submission, len(subs))
	for _, sub := range subs {
		byRequest[sub.RequestID()] = sub
	}

	claims := make(map[uuid.UUID]int)
	for _, id := range insertedIDs {
		sub, ok := byRequest[id]
		if !ok {
			continue
		}
		if sub.Status() == submission.StatusCompleted {
			claims[sub.QuizID()]++
		}
	}
	return claims
}

// claimSlots decrements under a row lock, clamped to what is actually
// left. A shortfall means the quota counter and the ledger diverged;
// reconciliation owns fixing that, here it is only surfaced.
func (c *Consumer) claimSlots(ctx context.Context, dbtx db.DBTX, quizID uuid.UUID, n int) error {
	snap, err := c.quizRepo.FindByIDForUpdate(ctx, dbtx, quizID)
	if err != nil {
		return errs.Wrap(err, "failed to lock quiz row for claim")
	}

	claim := n
	if snap.RemainingSlots < claim {
		c.logger.Warn("ledger has fewer slots than batch claims",
			"quiz_id", quizID, "claims", n, "remaining", snap.RemainingSlots)
		claim = snap.RemainingSlots
	}
	if claim == 0 {
		return nil
	}

	if err := c.quizRepo.DecrementSlots(ctx, dbtx, quizID, claim); err != nil {
		return errs.Wrap(err, "failed to claim winner slots")
	}
	return nil
}

func (c *Consumer) sendToDeadLetter(ctx context.Context, d shared.Delivery, cause error, kind string, attempts int) {
	rec := shared.DeadLetterRecord{
		Event:         d.Event,
		ErrorMessage:  cause.Error(),
		ErrorKind:     kind,
		FailedAt:      c.clock.Now(),
		RetryAttempts: attempts,
		Stream:        d.Stream,
		EntryID:       d.EntryID,
	}
	if err := c.deadLetters.PublishDeadLetter(ctx, rec); err != nil {
		c.logger.Error("failed to publish dead letter record",
			"request_id", d.Event.RequestID, "entry_id", d.EntryID, "error", err)
		return
	}
	c.logger.Info("event dead-lettered",
		"request_id", d.Event.RequestID, "stream", d.Stream, "entry_id", d.EntryID, "kind", kind)
}

func classifyKind(err error) string {
	switch {
	case infra.IsKind(err, infra.KindNotFound):
		return string(infra.KindNotFound)
	case infra.IsKind(err, infra.KindDuplicateKey):
		return string(infra.KindDuplicateKey)
	case infra.IsKind(err, infra.KindConflict):
		return string(infra.KindConflict)
	default:
		return string(infra.KindTransient)
	}
}
