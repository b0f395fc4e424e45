package shared

import (
	"context"

	"quizrush/internal/infra/db"
)

// TxManager scopes ledger work to one transaction. Repositories receive
// the transaction handle explicitly, so the same repository code runs
// inside and outside a transaction.
type TxManager interface {
	Within(ctx context.Context, fn func(ctx context.Context, dbtx db.DBTX) error) error
	// DB returns the non-transactional handle for single-statement work.
	DB() db.DBTX
}
