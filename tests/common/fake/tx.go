package fake

import (
	"context"
	"time"

	"quizrush/internal/infra/db"
	"quizrush/internal/pkg/errs"
	"quizrush/internal/usecase/shared"
)

var ErrPoolExhausted = errs.New("connection pool exhausted")

type txKey struct{}

type txState struct {
	cleanups []func()
}

// TxManager runs transaction bodies directly against the in-memory
// ledger. With a capacity it models a bounded connection pool: Within
// takes a pool slot for the whole body and fails with ErrPoolExhausted
// when none frees up within acquireTimeout, which is how pool
// starvation is reproduced without a real database.
type TxManager struct {
	sem            chan struct{}
	acquireTimeout time.Duration
}

func NewTxManager() *TxManager {
	return &TxManager{}
}

func NewPooledTxManager(capacity int, acquireTimeout time.Duration) *TxManager {
	return &TxManager{
		sem:            make(chan struct{}, capacity),
		acquireTimeout: acquireTimeout,
	}
}

var _ shared.TxManager = (*TxManager)(nil)

func (m *TxManager) Within(ctx context.Context, fn func(ctx context.Context, dbtx db.DBTX) error) error {
	if m.sem != nil {
		select {
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
		case <-time.After(m.acquireTimeout):
			return ErrPoolExhausted
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	st := &txState{}
	ctx = context.WithValue(ctx, txKey{}, st)
	defer func() {
		for i := len(st.cleanups) - 1; i >= 0; i-- {
			st.cleanups[i]()
		}
	}()

	return fn(ctx, nil)
}

func (m *TxManager) DB() db.DBTX {
	return nil
}

// onTxEnd defers fn to the end of the surrounding Within body, or runs
// it immediately when there is none.
func onTxEnd(ctx context.Context, fn func()) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		st.cleanups = append(st.cleanups, fn)
		return
	}
	fn()
}
