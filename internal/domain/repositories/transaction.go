package repositories

import "context"

// TxFn runs within a relational transaction.
type TxFn func(ctx context.Context) error

// TransactionManager runs functions under explicit begin/commit/rollback.
type TransactionManager interface {
	// ExecTx executes fn within a transaction, committing on success and
	// rolling back on any error.
	ExecTx(ctx context.Context, fn TxFn) error
}
