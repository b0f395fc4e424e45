package stream

import (
	"context"
	"fmt"
	"sync"

	"quizrush/internal/usecase/shared"
)

// MemoryStream is an in-process transport with the same at-least-once,
// batch-acknowledged semantics as the Redis stream: read entries stay
// pending until acked and are redelivered to the next ReadBatch call
// if they were not.
type MemoryStream struct {
	mu      sync.Mutex
	name    string
	seq     int
	entries []memoryEntry
	dead    []shared.DeadLetterRecord
}

type memoryEntry struct {
	id    string
	event shared.SubmissionEvent
	acked bool
	read  bool
}

func NewMemoryStream(name string) *MemoryStream {
	return &MemoryStream{name: name}
}

var (
	_ shared.EventPublisher = (*MemoryStream)(nil)
	_ shared.EventReader    = (*MemoryStream)(nil)
	_ shared.DeadLetterSink = (*MemoryStream)(nil)
)

func (m *MemoryStream) Publish(_ context.Context, ev shared.SubmissionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	m.entries = append(m.entries, memoryEntry{
		id:    fmt.Sprintf("%d-0", m.seq),
		event: ev,
	})
	return nil
}

func (m *MemoryStream) ReadBatch(_ context.Context, max int) ([]shared.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []shared.Delivery
	for i := range m.entries {
		if m.entries[i].acked || m.entries[i].read {
			continue
		}
		m.entries[i].read = true
		out = append(out, shared.Delivery{
			Stream:  m.name,
			EntryID: m.entries[i].id,
			Event:   m.entries[i].event,
		})
		if len(out) == max {
			break
		}
	}
	return out, nil
}

func (m *MemoryStream) Ack(_ context.Context, entryIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range entryIDs {
		for i := range m.entries {
			if m.entries[i].id == id {
				m.entries[i].acked = true
			}
		}
	}
	return nil
}

// Redeliver marks all unacked entries as unread again, simulating a
// consumer crash before acknowledgment.
func (m *MemoryStream) Redeliver() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if !m.entries[i].acked {
			m.entries[i].read = false
		}
	}
}

func (m *MemoryStream) PublishDeadLetter(_ context.Context, rec shared.DeadLetterRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dead = append(m.dead, rec)
	return nil
}

func (m *MemoryStream) DeadLetters() []shared.DeadLetterRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]shared.DeadLetterRecord, len(m.dead))
	copy(out, m.dead)
	return out
}

// PendingCount reports entries not yet acknowledged.
func (m *MemoryStream) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for i := range m.entries {
		if !m.entries[i].acked {
			n++
		}
	}
	return n
}
