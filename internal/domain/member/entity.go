package member

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrEmptyDisplayName   = errors.New("member display name cannot be empty")
	ErrDisplayNameTooLong = errors.New("member display name is too long (max 100 characters)")
)

const (
	MaxDisplayNameLength = 100
)

// Member is immutable once created; submissions reference it, never mutate it.
type Member struct {
	id          uuid.UUID
	displayName string
}

func NewMember(id uuid.UUID, displayName string) (*Member, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, ErrEmptyDisplayName
	}
	if len(displayName) > MaxDisplayNameLength {
		return nil, ErrDisplayNameTooLong
	}

	return &Member{
		id:          id,
		displayName: displayName,
	}, nil
}

func (m *Member) ID() uuid.UUID       { return m.id }
func (m *Member) DisplayName() string { return m.displayName }
