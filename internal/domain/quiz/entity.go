package quiz

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrEmptyTitle        = errors.New("quiz title cannot be empty")
	ErrTitleTooLong      = errors.New("quiz title is too long (max 200 characters)")
	ErrInvalidTotalSlots = errors.New("total winner slots must be positive")
	ErrInvalidRemaining  = errors.New("remaining winner slots out of range")
	ErrNoRemainingSlots  = errors.New("no winner slots remaining")
)

const (
	MaxTitleLength = 200
)

// Quiz is the limited-reward resource. TotalSlots is immutable after
// creation; RemainingSlots only ever decreases through ClaimSlot.
type Quiz struct {
	id             uuid.UUID
	title          string
	totalSlots     int
	remainingSlots int
}

func NewQuiz(id uuid.UUID, title string, totalSlots, remainingSlots int) (*Quiz, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if len(title) > MaxTitleLength {
		return nil, ErrTitleTooLong
	}
	if totalSlots <= 0 {
		return nil, ErrInvalidTotalSlots
	}
	if remainingSlots < 0 || remainingSlots > totalSlots {
		return nil, ErrInvalidRemaining
	}

	return &Quiz{
		id:             id,
		title:          title,
		totalSlots:     totalSlots,
		remainingSlots: remainingSlots,
	}, nil
}

// ClaimSlot takes exactly one slot. A claim against an exhausted quiz is
// rejected, never silently clamped.
func (q *Quiz) ClaimSlot() error {
	if q.remainingSlots <= 0 {
		return ErrNoRemainingSlots
	}
	q.remainingSlots--
	return nil
}

func (q *Quiz) HasRemainingSlots() bool {
	return q.remainingSlots > 0
}

func (q *Quiz) ID() uuid.UUID       { return q.id }
func (q *Quiz) Title() string       { return q.title }
func (q *Quiz) TotalSlots() int     { return q.totalSlots }
func (q *Quiz) RemainingSlots() int { return q.remainingSlots }
