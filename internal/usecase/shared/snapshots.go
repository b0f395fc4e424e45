package shared

import "github.com/google/uuid"

// Flat read-side snapshots of ledger rows.

type QuizSnapshot struct {
	ID             uuid.UUID
	Title          string
	TotalSlots     int
	RemainingSlots int
}

type MemberSnapshot struct {
	ID          uuid.UUID
	DisplayName string
}

type SubmissionSnapshot struct {
	ID        uuid.UUID
	RequestID string
	MemberID  uuid.UUID
	QuizID    uuid.UUID
	Status    string
}
