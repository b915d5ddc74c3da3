package ledger

import (
	"context"
	"log/slog"
	"time"
)

const (
	suspiciousWindow      = 5 * time.Minute
	suspiciousRecentCount = 10
)

// Auditor emits one structured audit record per mutating ledger call, success
// or failure, and carries the advisory suspicious-activity heuristic.
type Auditor struct {
	logger *slog.Logger
}

// NewAuditor constructs an auditor writing to the given structured logger.
func NewAuditor(logger *slog.Logger) *Auditor {
	return &Auditor{logger: logger}
}

// Operation records the outcome of a ledger operation. Failures carry the error.
func (a *Auditor) Operation(_ context.Context, op, userID string, amount int64, txnID string, err error) {
	if a == nil || a.logger == nil {
		return
	}
	attrs := []any{
		slog.String("operation", op),
		slog.String("user_id", userID),
		slog.Int64("amount", amount),
	}
	if txnID != "" {
		attrs = append(attrs, slog.String("txn_id", txnID))
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
		a.logger.Error("ledger operation failed", attrs...)
		return
	}
	a.logger.Info("ledger operation", attrs...)
}

// DetectSuspicious flags bursts of activity (more than 10 transactions in the
// trailing five minutes) or a single amount above 80% of the maximum. Advisory
// only: a flagged operation is logged and proceeds unchanged.
func (a *Auditor) DetectSuspicious(userID string, recentCount int, amount int64, limits Limits) bool {
	burst := recentCount > suspiciousRecentCount
	large := limits.MaxAmount > 0 && amount*5 > limits.MaxAmount*4
	if !burst && !large {
		return false
	}
	if a != nil && a.logger != nil {
		a.logger.Warn("suspicious wallet activity",
			slog.String("user_id", userID),
			slog.Int("recent_transactions", recentCount),
			slog.Int64("amount", amount),
			slog.Bool("burst", burst),
			slog.Bool("large_amount", large),
		)
	}
	return true
}

// NegativeBalance records an admin adjustment driving a wallet below zero.
func (a *Auditor) NegativeBalance(userID string, balance int64) {
	if a == nil || a.logger == nil {
		return
	}
	a.logger.Warn("wallet balance is negative after admin adjustment",
		slog.String("user_id", userID),
		slog.Int64("balance", balance),
	)
}

// FailedTransaction records one failed entry found by the cleanup audit.
func (a *Auditor) FailedTransaction(txn Transaction) {
	if a == nil || a.logger == nil {
		return
	}
	a.logger.Info("stale failed transaction",
		slog.String("txn_id", txn.ID),
		slog.String("wallet_id", txn.WalletID),
		slog.String("type", string(txn.Type)),
		slog.Int64("amount", txn.Amount),
		slog.Time("created_at", txn.CreatedAt),
	)
}
