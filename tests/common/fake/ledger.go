package fake

import (
	"context"
	"sync"

	"quizrush/internal/domain/member"
	"quizrush/internal/domain/quiz"
	"quizrush/internal/domain/submission"
	"quizrush/internal/infra"
	"quizrush/internal/infra/db"
	"quizrush/internal/usecase/shared"

	"github.com/google/uuid"
)

type quizRow struct {
	title          string
	totalSlots     int
	remainingSlots int
}

type submissionRow struct {
	id       uuid.UUID
	memberID uuid.UUID
	quizID   uuid.UUID
	status   string
}

// Ledger is an in-memory stand-in for the Postgres ledger. Its
// Quizzes/Members/Submissions views implement the repository ports the
// commands, workers and queries consume. Row locks taken by
// FindByIDForUpdate are held until the surrounding TxManager body
// finishes, matching FOR UPDATE semantics.
type Ledger struct {
	mu       sync.Mutex
	quizzes  map[uuid.UUID]*quizRow
	members  map[uuid.UUID]string
	subs     map[string]*submissionRow
	rowLocks map[uuid.UUID]*sync.Mutex
}

func NewLedger() *Ledger {
	return &Ledger{
		quizzes:  make(map[uuid.UUID]*quizRow),
		members:  make(map[uuid.UUID]string),
		subs:     make(map[string]*submissionRow),
		rowLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (l *Ledger) Quizzes() *QuizRepo           { return &QuizRepo{l: l} }
func (l *Ledger) Members() *MemberRepo         { return &MemberRepo{l: l} }
func (l *Ledger) Submissions() *SubmissionRepo { return &SubmissionRepo{l: l} }

// --- quiz repository ---

type QuizRepo struct {
	l *Ledger
}

func (r *QuizRepo) Create(_ context.Context, q *quiz.Quiz) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	r.l.quizzes[q.ID()] = &quizRow{
		title:          q.Title(),
		totalSlots:     q.TotalSlots(),
		remainingSlots: q.RemainingSlots(),
	}
	return nil
}

func (r *QuizRepo) FindByID(_ context.Context, _ db.DBTX, id uuid.UUID) (*shared.QuizSnapshot, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	return r.l.snapshotLocked(id)
}

func (r *QuizRepo) FindByIDForUpdate(ctx context.Context, _ db.DBTX, id uuid.UUID) (*shared.QuizSnapshot, error) {
	r.l.mu.Lock()
	rowLock, ok := r.l.rowLocks[id]
	if !ok {
		if _, exists := r.l.quizzes[id]; !exists {
			r.l.mu.Unlock()
			return nil, infra.WrapRepoErr("quiz not found", nil, infra.KindNotFound)
		}
		rowLock = &sync.Mutex{}
		r.l.rowLocks[id] = rowLock
	}
	r.l.mu.Unlock()

	rowLock.Lock()
	onTxEnd(ctx, rowLock.Unlock)

	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	return r.l.snapshotLocked(id)
}

func (r *QuizRepo) FindAll(_ context.Context) ([]*shared.QuizSnapshot, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	out := make([]*shared.QuizSnapshot, 0, len(r.l.quizzes))
	for id, row := range r.l.quizzes {
		out = append(out, &shared.QuizSnapshot{
			ID:             id,
			Title:          row.title,
			TotalSlots:     row.totalSlots,
			RemainingSlots: row.remainingSlots,
		})
	}
	return out, nil
}

func (r *QuizRepo) DecrementSlots(_ context.Context, _ db.DBTX, id uuid.UUID, n int) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	row, ok := r.l.quizzes[id]
	if !ok {
		return infra.WrapRepoErr("quiz not found", nil, infra.KindNotFound)
	}
	if row.remainingSlots < n {
		return infra.WrapRepoErr("insufficient remaining slots", nil, infra.KindConflict)
	}
	row.remainingSlots -= n
	return nil
}

func (r *QuizRepo) SetRemainingSlots(_ context.Context, _ db.DBTX, id uuid.UUID, remaining int) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	row, ok := r.l.quizzes[id]
	if !ok {
		return infra.WrapRepoErr("quiz not found", nil, infra.KindNotFound)
	}
	row.remainingSlots = remaining
	return nil
}

func (l *Ledger) snapshotLocked(id uuid.UUID) (*shared.QuizSnapshot, error) {
	row, ok := l.quizzes[id]
	if !ok {
		return nil, infra.WrapRepoErr("quiz not found", nil, infra.KindNotFound)
	}
	return &shared.QuizSnapshot{
		ID:             id,
		Title:          row.title,
		TotalSlots:     row.totalSlots,
		RemainingSlots: row.remainingSlots,
	}, nil
}

// --- member repository ---

type MemberRepo struct {
	l *Ledger
}

func (r *MemberRepo) CreateBatch(_ context.Context, members []*member.Member) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	for _, m := range members {
		r.l.members[m.ID()] = m.DisplayName()
	}
	return nil
}

func (r *MemberRepo) FindByID(_ context.Context, _ db.DBTX, id uuid.UUID) (*shared.MemberSnapshot, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	name, ok := r.l.members[id]
	if !ok {
		return nil, infra.WrapRepoErr("member not found", nil, infra.KindNotFound)
	}
	return &shared.MemberSnapshot{ID: id, DisplayName: name}, nil
}

// --- submission repository ---

type SubmissionRepo struct {
	l *Ledger
}

func (r *SubmissionRepo) Create(_ context.Context, _ db.DBTX, sub *submission.Submission) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	if _, exists := r.l.subs[sub.RequestID()]; exists {
		return infra.WrapRepoErr("duplicate request id", nil, infra.KindDuplicateKey)
	}
	r.l.subs[sub.RequestID()] = &submissionRow{
		id:       sub.ID(),
		memberID: sub.MemberID(),
		quizID:   sub.QuizID(),
		status:   string(sub.Status()),
	}
	return nil
}

func (r *SubmissionRepo) CreateBatch(_ context.Context, _ db.DBTX, subs []*submission.Submission) ([]string, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	inserted := make([]string, 0, len(subs))
	for _, sub := range subs {
		if _, exists := r.l.subs[sub.RequestID()]; exists {
			continue
		}
		r.l.subs[sub.RequestID()] = &submissionRow{
			id:       sub.ID(),
			memberID: sub.MemberID(),
			quizID:   sub.QuizID(),
			status:   string(sub.Status()),
		}
		inserted = append(inserted, sub.RequestID())
	}
	return inserted, nil
}

func (r *SubmissionRepo) FindByRequestID(_ context.Context, requestID string) (*shared.SubmissionSnapshot, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	row, ok := r.l.subs[requestID]
	if !ok {
		return nil, infra.WrapRepoErr("submission not found", nil, infra.KindNotFound)
	}
	return &shared.SubmissionSnapshot{
		ID:        row.id,
		RequestID: requestID,
		MemberID:  row.memberID,
		QuizID:    row.quizID,
		Status:    row.status,
	}, nil
}

func (r *SubmissionRepo) ExistsByRequestID(_ context.Context, requestID string) (bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	_, ok := r.l.subs[requestID]
	return ok, nil
}

// --- test helpers ---

func (l *Ledger) SeedQuiz(id uuid.UUID, title string, total, remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quizzes[id] = &quizRow{title: title, totalSlots: total, remainingSlots: remaining}
}

func (l *Ledger) SeedMember(id uuid.UUID, displayName string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.members[id] = displayName
}

func (l *Ledger) RemainingSlots(id uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if row, ok := l.quizzes[id]; ok {
		return row.remainingSlots
	}
	return -1
}

func (l *Ledger) SubmissionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

func (l *Ledger) CountByStatus(status string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, row := range l.subs {
		if row.status == status {
			n++
		}
	}
	return n
}

func (l *Ledger) SubmissionStatus(requestID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	row, ok := l.subs[requestID]
	if !ok {
		return "", false
	}
	return row.status, true
}
