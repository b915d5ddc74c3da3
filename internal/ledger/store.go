package ledger

import (
	"context"
	"time"
)

// PendingInput describes a transaction to be created in the pending state.
type PendingInput struct {
	WalletID     string
	Type         TransactionType
	Amount       int64
	ReferenceID  string
	RelatedTxnID string
	Description  string
}

// Tx is the write surface available inside one atomic unit of work. Every
// mutation performed through it either commits as a whole or is discarded as
// a whole when the enclosing function returns an error.
type Tx interface {
	// LockWallet acquires a pessimistic row lock on the user's wallet,
	// creating it with a zero balance if it does not exist yet.
	LockWallet(ctx context.Context, userID string) (Wallet, error)

	// LockWalletByID locks an existing wallet row by wallet id.
	LockWalletByID(ctx context.Context, walletID string) (Wallet, error)

	// AdjustBalance applies a signed delta to a locked wallet row and returns
	// the resulting balance.
	AdjustBalance(ctx context.Context, walletID string, delta int64) (int64, error)

	// CreatePending inserts a pending transaction. A reference id already
	// present in the store fails with ErrDuplicateTransaction.
	CreatePending(ctx context.Context, in PendingInput) (Transaction, error)

	// Complete transitions a pending transaction to success or failed. A
	// failure cause is appended to the stored description. Terminal
	// transactions fail with ErrTransactionNotPending.
	Complete(ctx context.Context, txnID string, status TransactionStatus, cause string) (Transaction, error)

	GetTransaction(ctx context.Context, txnID string) (Transaction, error)

	// SumRefunds returns the total of successful refunds already issued
	// against the original transaction.
	SumRefunds(ctx context.Context, originalTxnID string) (int64, error)

	// PendingSpendTotal returns the sum of absolute amounts of currently
	// pending spends on the wallet.
	PendingSpendTotal(ctx context.Context, walletID string) (int64, error)

	// CountRecent counts the user's transactions created at or after since.
	CountRecent(ctx context.Context, userID string, since time.Time) (int, error)

	CreateJob(ctx context.Context, job Job) (Job, error)
	GetJobByTxn(ctx context.Context, txnID string) (Job, error)
	FailJob(ctx context.Context, jobID, reason string) error
}

// Store is the contract implemented by ledger backends (Postgres, in-memory).
type Store interface {
	// RunInTx executes fn within one atomic unit of work. Returning an error
	// from fn rolls back every change made through the Tx.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetWalletByUser(ctx context.Context, userID string) (Wallet, error)
	GetTransaction(ctx context.Context, txnID string) (Transaction, error)

	// ListWalletTransactions pages a single wallet's entries, newest first,
	// optionally filtered by status.
	ListWalletTransactions(ctx context.Context, walletID string, status TransactionStatus, p Page) ([]Transaction, int, error)

	// ListUserTransactions pages the user's history, newest first, applying
	// type/status/date filters. The second return value is the total number
	// of matching rows.
	ListUserTransactions(ctx context.Context, userID string, f TransactionFilter, p Page) ([]Transaction, int, error)

	// SummarizeUserTransactions aggregates the filtered window.
	SummarizeUserTransactions(ctx context.Context, userID string, f TransactionFilter) (HistorySummary, error)

	// ValidateIntegrity scans for orphan transactions, stale pending entries
	// and negative balances. Reporting only; never called by the write path.
	ValidateIntegrity(ctx context.Context) (IntegrityReport, error)

	// ListFailedBefore returns failed transactions created before the cutoff,
	// oldest first. Used by the cleanup audit; nothing is deleted.
	ListFailedBefore(ctx context.Context, cutoff time.Time) ([]Transaction, error)
}
