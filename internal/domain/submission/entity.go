package submission

import (
	"errors"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

var (
	ErrEmptyRequestID   = errors.New("request id cannot be empty")
	ErrInvalidStatus    = errors.New("invalid submission status")
	ErrTerminalStatus   = errors.New("submission already in a terminal status")
	ErrUnknownStatusStr = errors.New("unknown submission status string")
)

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(s), nil
	default:
		return "", ErrUnknownStatusStr
	}
}

// Submission records one allocation attempt. RequestID is the
// client-supplied idempotency token, stable across redeliveries.
// Status transitions are one-way: PENDING may move to any terminal
// status, terminal statuses never change again.
type Submission struct {
	id        uuid.UUID
	requestID string
	memberID  uuid.UUID
	quizID    uuid.UUID
	status    Status
}

func NewSubmission(requestID string, memberID, quizID uuid.UUID, status Status) (*Submission, error) {
	if requestID == "" {
		return nil, ErrEmptyRequestID
	}
	switch status {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
	default:
		return nil, ErrInvalidStatus
	}

	return &Submission{
		id:        uuid.New(),
		requestID: requestID,
		memberID:  memberID,
		quizID:    quizID,
		status:    status,
	}, nil
}

// Restore rebuilds a persisted submission without generating a new id.
func Restore(id uuid.UUID, requestID string, memberID, quizID uuid.UUID, status Status) *Submission {
	return &Submission{
		id:        id,
		requestID: requestID,
		memberID:  memberID,
		quizID:    quizID,
		status:    status,
	}
}

func (s *Submission) Complete() error {
	return s.transition(StatusCompleted)
}

func (s *Submission) Fail() error {
	return s.transition(StatusFailed)
}

func (s *Submission) Cancel() error {
	return s.transition(StatusCancelled)
}

func (s *Submission) transition(to Status) error {
	if s.status.IsTerminal() {
		if s.status == to {
			return nil
		}
		return ErrTerminalStatus
	}
	s.status = to
	return nil
}

func (s *Submission) ID() uuid.UUID       { return s.id }
func (s *Submission) RequestID() string   { return s.requestID }
func (s *Submission) MemberID() uuid.UUID { return s.memberID }
func (s *Submission) QuizID() uuid.UUID   { return s.quizID }
func (s *Submission) Status() Status      { return s.status }
