package shared

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionEvent is the wire payload of one asynchronous allocation
// request. RequestID is the idempotency token and stays stable across
// redeliveries of the same event.
type SubmissionEvent struct {
	RequestID string    `json:"requestId"`
	QuizID    uuid.UUID `json:"quizId"`
	MemberID  uuid.UUID `json:"memberId"`
	Timestamp int64     `json:"timestamp"`
}

func NewSubmissionEvent(quizID, memberID uuid.UUID, now time.Time) SubmissionEvent {
	return SubmissionEvent{
		RequestID: uuid.NewString(),
		QuizID:    quizID,
		MemberID:  memberID,
		Timestamp: now.UnixMilli(),
	}
}

// DeadLetterRecord snapshots a failed event plus the failure context and
// the transport position it was read from.
type DeadLetterRecord struct {
	Event         SubmissionEvent `json:"originalEvent"`
	ErrorMessage  string          `json:"errorMessage"`
	ErrorKind     string          `json:"errorKind"`
	FailedAt      time.Time       `json:"failedAt"`
	RetryAttempts int             `json:"retryAttempts"`
	Stream        string          `json:"stream"`
	EntryID       string          `json:"entryId"`
}
