package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// QuotaStore is the fast-path atomic counter for remaining winner slots.
// It is a cache, never authoritative; the ledger wins on reconciliation.
// Decrement on an exhausted counter compensates internally and returns
// errs.ErrSlotsExhausted; no reader ever observes the negative excursion
// as a stored value.
type QuotaStore interface {
	Initialize(ctx context.Context, quizID uuid.UUID, slots int64) error
	Decrement(ctx context.Context, quizID uuid.UUID) (int64, error)
	Increment(ctx context.Context, quizID uuid.UUID) (int64, error)
	Read(ctx context.Context, quizID uuid.UUID) (int64, bool, error)
}

// Lease is a held distributed lock. Release is idempotent; releasing a
// lease that already expired is not an error.
type Lease interface {
	Release(ctx context.Context) error
}

// DistributedLock grants short-lived mutual-exclusion leases keyed by
// quiz. TryAcquire failing within wait surfaces errs.ErrLockTimeout,
// which signals contention, not a fault. The lease auto-expires after
// leaseTime if the holder disappears.
type DistributedLock interface {
	TryAcquire(ctx context.Context, key string, wait, leaseTime time.Duration) (Lease, error)
}

// EventPublisher emits submission-request events keyed by quiz id so
// per-quiz ordering is preserved by the transport.
type EventPublisher interface {
	Publish(ctx context.Context, ev SubmissionEvent) error
}

// Delivery is one event as read from the transport, together with its
// position for acknowledgment and dead-letter attribution. DecodeErr is
// set when the payload could not be parsed; such deliveries are
// dead-lettered without retries.
type Delivery struct {
	Stream    string
	EntryID   string
	Event     SubmissionEvent
	DecodeErr error
}

// EventReader consumes submission-request events in bounded batches with
// batch-granularity acknowledgment. Unacknowledged entries are
// redelivered, so processing is at-least-once.
type EventReader interface {
	ReadBatch(ctx context.Context, max int) ([]Delivery, error)
	Ack(ctx context.Context, entryIDs ...string) error
}

// DeadLetterSink is the terminal parking location for events that
// exhausted their retry budget. Records are write-once and never flow
// back into the live pipeline.
type DeadLetterSink interface {
	PublishDeadLetter(ctx context.Context, rec DeadLetterRecord) error
}
