package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seer-points/seer_points/internal/notification"
)

// Service orchestrates wallet mutations. Every public operation validates its
// inputs, then runs a single unit of work that locks the affected wallet rows,
// creates a pending transaction, mutates balances and marks the transaction
// terminal. An error anywhere inside the unit of work discards every change.
//
// The Service exclusively owns mutation of wallet balances and transaction
// statuses; no other component writes these fields.
type Service struct {
	store    Store
	limits   Limits
	auditor  *Auditor
	notifier notification.Notifier
}

// NewService builds the ledger service. The notifier may be nil.
func NewService(store Store, limits Limits, auditor *Auditor, notifier notification.Notifier) *Service {
	return &Service{store: store, limits: limits, auditor: auditor, notifier: notifier}
}

// Limits returns the policy the service was constructed with.
func (s *Service) Limits() Limits {
	return s.limits
}

// SpendInput captures a paid fortune draw debit.
type SpendInput struct {
	UserID      string
	Amount      int64
	JobType     string
	Description string
}

// Spend debits the user's wallet and creates the paid job in one unit of work.
// An insufficient balance leaves no transaction, no job and no balance change.
func (s *Service) Spend(ctx context.Context, in SpendInput) (Transaction, Job, error) {
	if err := s.validateSpend(in); err != nil {
		s.auditor.Operation(ctx, "spend", in.UserID, in.Amount, "", err)
		return Transaction{}, Job{}, err
	}

	var txn Transaction
	var job Job
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.LockWallet(ctx, in.UserID)
		if err != nil {
			return err
		}
		s.flagSuspicious(ctx, tx, in.UserID, in.Amount)
		if err := ValidateBalance(w.Balance, in.Amount); err != nil {
			return err
		}
		txn, err = tx.CreatePending(ctx, PendingInput{
			WalletID:    w.ID,
			Type:        TypeSpend,
			Amount:      -in.Amount,
			ReferenceID: NewReferenceID(),
			Description: in.Description,
		})
		if err != nil {
			return err
		}
		if _, err := tx.AdjustBalance(ctx, w.ID, -in.Amount); err != nil {
			return failPending(ctx, tx, txn.ID, err)
		}
		job, err = tx.CreateJob(ctx, Job{
			UserID:     in.UserID,
			TxnID:      txn.ID,
			Type:       in.JobType,
			Status:     JobPending,
			PointsUsed: in.Amount,
		})
		if err != nil {
			return failPending(ctx, tx, txn.ID, err)
		}
		txn, err = tx.Complete(ctx, txn.ID, StatusSuccess, "")
		return err
	})
	s.auditor.Operation(ctx, "spend", in.UserID, in.Amount, txn.ID, err)
	if err != nil {
		return Transaction{}, Job{}, err
	}
	return txn, job, nil
}

func (s *Service) validateSpend(in SpendInput) error {
	if err := ValidateUserID(in.UserID); err != nil {
		return err
	}
	if err := s.limits.ValidateAmount(in.Amount); err != nil {
		return err
	}
	if in.JobType == "" {
		return validationErrorf("job_type", "must not be empty")
	}
	return nil
}

// DepositInput captures a points purchase credit. ReferenceID is the caller's
// idempotency key; one is generated when absent.
type DepositInput struct {
	UserID      string
	Amount      int64
	ReferenceID string
	Description string
}

// Deposit credits the user's wallet, creating it on first use. Replaying a
// reference id fails with ErrDuplicateTransaction and leaves the balance
// untouched, which makes deposits safely client-retryable.
func (s *Service) Deposit(ctx context.Context, in DepositInput) (Transaction, error) {
	if err := ValidateUserID(in.UserID); err != nil {
		s.auditor.Operation(ctx, "deposit", in.UserID, in.Amount, "", err)
		return Transaction{}, err
	}
	if err := s.limits.ValidateAmount(in.Amount); err != nil {
		s.auditor.Operation(ctx, "deposit", in.UserID, in.Amount, "", err)
		return Transaction{}, err
	}
	if in.ReferenceID == "" {
		in.ReferenceID = NewReferenceID()
	} else if err := ValidateReferenceID(in.ReferenceID); err != nil {
		s.auditor.Operation(ctx, "deposit", in.UserID, in.Amount, "", err)
		return Transaction{}, err
	}

	var txn Transaction
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.LockWallet(ctx, in.UserID)
		if err != nil {
			return err
		}
		s.flagSuspicious(ctx, tx, in.UserID, in.Amount)
		txn, err = tx.CreatePending(ctx, PendingInput{
			WalletID:    w.ID,
			Type:        TypeDeposit,
			Amount:      in.Amount,
			ReferenceID: in.ReferenceID,
			Description: in.Description,
		})
		if err != nil {
			return err
		}
		if _, err := tx.AdjustBalance(ctx, w.ID, in.Amount); err != nil {
			return failPending(ctx, tx, txn.ID, err)
		}
		txn, err = tx.Complete(ctx, txn.ID, StatusSuccess, "")
		return err
	})
	s.auditor.Operation(ctx, "deposit", in.UserID, in.Amount, txn.ID, err)
	if err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// RefundInput describes a refund of a successful spend. A zero Amount refunds
// the full original magnitude.
type RefundInput struct {
	TxnID  string
	Amount int64
	Reason string
}

// Refund credits the wallet by the refunded amount and forces the spend's job
// to failed with the refund reason. The sum of all refunds issued against one
// original transaction never exceeds its magnitude.
func (s *Service) Refund(ctx context.Context, in RefundInput) (Transaction, Transaction, error) {
	if in.TxnID == "" {
		err := validationErrorf("txn_id", "must not be empty")
		s.auditor.Operation(ctx, "refund", "", in.Amount, in.TxnID, err)
		return Transaction{}, Transaction{}, err
	}
	if in.Reason == "" {
		err := validationErrorf("reason", "must not be empty")
		s.auditor.Operation(ctx, "refund", "", in.Amount, in.TxnID, err)
		return Transaction{}, Transaction{}, err
	}

	var refund, original Transaction
	var owner Wallet
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		original, err = tx.GetTransaction(ctx, in.TxnID)
		if err != nil {
			return err
		}
		if original.Type != TypeSpend {
			return validationErrorf("txn_id", "only spend transactions can be refunded")
		}
		if original.Status != StatusSuccess {
			return validationErrorf("txn_id", "only successful transactions can be refunded")
		}

		owner, err = tx.LockWalletByID(ctx, original.WalletID)
		if err != nil {
			return err
		}

		magnitude := -original.Amount
		amount := in.Amount
		if amount == 0 {
			amount = magnitude
		}
		if amount < 0 {
			return validationErrorf("amount", "must be positive")
		}
		refunded, err := tx.SumRefunds(ctx, original.ID)
		if err != nil {
			return err
		}
		if amount > magnitude-refunded {
			return validationErrorf("amount", "refund exceeds remaining refundable amount %d", magnitude-refunded)
		}

		refund, err = tx.CreatePending(ctx, PendingInput{
			WalletID:     owner.ID,
			Type:         TypeRefund,
			Amount:       amount,
			ReferenceID:  NewReferenceID(),
			RelatedTxnID: original.ID,
			Description:  "refund: " + in.Reason,
		})
		if err != nil {
			return err
		}
		if _, err := tx.AdjustBalance(ctx, owner.ID, amount); err != nil {
			return failPending(ctx, tx, refund.ID, err)
		}

		job, err := tx.GetJobByTxn(ctx, original.ID)
		switch {
		case err == nil:
			if err := tx.FailJob(ctx, job.ID, in.Reason); err != nil {
				return failPending(ctx, tx, refund.ID, err)
			}
		case !errors.Is(err, ErrJobNotFound):
			return failPending(ctx, tx, refund.ID, err)
		}

		refund, err = tx.Complete(ctx, refund.ID, StatusSuccess, "")
		return err
	})
	s.auditor.Operation(ctx, "refund", owner.UserID, refund.Amount, refund.ID, err)
	if err != nil {
		return Transaction{}, Transaction{}, err
	}
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindRefundCredit,
			Destination: owner.UserID,
			Body:        fmt.Sprintf("You were refunded %d points: %s", refund.Amount, in.Reason),
		})
	}
	return refund, original, nil
}

// TransferInput moves points between two users.
type TransferInput struct {
	FromUserID  string
	ToUserID    string
	Amount      int64
	Description string
}

// Transfer debits the sender and credits the receiver in one unit of work.
// Both wallets are locked in ascending user-id order regardless of direction
// so two opposite transfers can never deadlock each other.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (Transaction, Transaction, error) {
	if err := s.validateTransfer(in); err != nil {
		s.auditor.Operation(ctx, "transfer", in.FromUserID, in.Amount, "", err)
		return Transaction{}, Transaction{}, err
	}

	refBase := NewReferenceID()
	var debit, credit Transaction
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		from, to, err := lockPair(ctx, tx, in.FromUserID, in.ToUserID)
		if err != nil {
			return err
		}
		s.flagSuspicious(ctx, tx, in.FromUserID, in.Amount)
		if err := ValidateBalance(from.Balance, in.Amount); err != nil {
			return err
		}

		debit, err = tx.CreatePending(ctx, PendingInput{
			WalletID:    from.ID,
			Type:        TypeSpend,
			Amount:      -in.Amount,
			ReferenceID: refBase + ":out",
			Description: in.Description,
		})
		if err != nil {
			return err
		}
		credit, err = tx.CreatePending(ctx, PendingInput{
			WalletID:     to.ID,
			Type:         TypeDeposit,
			Amount:       in.Amount,
			ReferenceID:  refBase + ":in",
			RelatedTxnID: debit.ID,
			Description:  in.Description,
		})
		if err != nil {
			return failPending(ctx, tx, debit.ID, err)
		}
		if _, err := tx.AdjustBalance(ctx, from.ID, -in.Amount); err != nil {
			return failPending(ctx, tx, debit.ID, err)
		}
		if _, err := tx.AdjustBalance(ctx, to.ID, in.Amount); err != nil {
			return failPending(ctx, tx, debit.ID, err)
		}
		if debit, err = tx.Complete(ctx, debit.ID, StatusSuccess, ""); err != nil {
			return err
		}
		credit, err = tx.Complete(ctx, credit.ID, StatusSuccess, "")
		return err
	})
	s.auditor.Operation(ctx, "transfer", in.FromUserID, in.Amount, debit.ID, err)
	if err != nil {
		return Transaction{}, Transaction{}, err
	}
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferCredit,
			Destination: in.ToUserID,
			Body:        fmt.Sprintf("You received %d points from user %s", in.Amount, in.FromUserID),
		})
	}
	return debit, credit, nil
}

func (s *Service) validateTransfer(in TransferInput) error {
	if err := ValidateUserID(in.FromUserID); err != nil {
		return err
	}
	if err := ValidateUserID(in.ToUserID); err != nil {
		return err
	}
	if in.FromUserID == in.ToUserID {
		return validationErrorf("to_user_id", "cannot transfer to yourself")
	}
	if err := s.limits.ValidateAmount(in.Amount); err != nil {
		return err
	}
	if in.Amount > s.limits.TransferCap {
		return validationErrorf("amount", "transfers are capped at %d points", s.limits.TransferCap)
	}
	return nil
}

// lockPair locks both wallets in ascending user-id order and returns them as
// (sender, receiver). The fixed acquisition order is the deadlock-avoidance
// invariant for concurrent opposite-direction transfers.
func lockPair(ctx context.Context, tx Tx, fromUserID, toUserID string) (Wallet, Wallet, error) {
	first, second := fromUserID, toUserID
	if second < first {
		first, second = second, first
	}
	w1, err := tx.LockWallet(ctx, first)
	if err != nil {
		return Wallet{}, Wallet{}, err
	}
	w2, err := tx.LockWallet(ctx, second)
	if err != nil {
		return Wallet{}, Wallet{}, err
	}
	if w1.UserID == fromUserID {
		return w1, w2, nil
	}
	return w2, w1, nil
}

// AdjustInput is an out-of-band balance correction by an administrator.
type AdjustInput struct {
	UserID      string
	Amount      int64
	Reason      string
	AdminUserID string
}

// AdminAdjust applies a signed correction without the balance-sufficiency
// check. A negative adjustment may drive the balance below zero; that is
// logged as a warning, not treated as an error.
func (s *Service) AdminAdjust(ctx context.Context, in AdjustInput) (Transaction, error) {
	if err := s.validateAdjust(in); err != nil {
		s.auditor.Operation(ctx, "admin_adjust", in.UserID, in.Amount, "", err)
		return Transaction{}, err
	}

	typ := TypeDeposit
	if in.Amount < 0 {
		typ = TypeSpend
	}

	var txn Transaction
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.LockWallet(ctx, in.UserID)
		if err != nil {
			return err
		}
		txn, err = tx.CreatePending(ctx, PendingInput{
			WalletID:    w.ID,
			Type:        typ,
			Amount:      in.Amount,
			ReferenceID: NewReferenceID(),
			Description: fmt.Sprintf("admin adjustment by %s: %s", in.AdminUserID, in.Reason),
		})
		if err != nil {
			return err
		}
		balance, err := tx.AdjustBalance(ctx, w.ID, in.Amount)
		if err != nil {
			return failPending(ctx, tx, txn.ID, err)
		}
		if balance < 0 {
			s.auditor.NegativeBalance(in.UserID, balance)
		}
		txn, err = tx.Complete(ctx, txn.ID, StatusSuccess, "")
		return err
	})
	s.auditor.Operation(ctx, "admin_adjust", in.UserID, in.Amount, txn.ID, err)
	if err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

func (s *Service) validateAdjust(in AdjustInput) error {
	if err := ValidateUserID(in.UserID); err != nil {
		return err
	}
	if in.Amount == 0 {
		return validationErrorf("amount", "adjustment must be non-zero")
	}
	if in.Reason == "" {
		return validationErrorf("reason", "must not be empty")
	}
	if in.AdminUserID == "" {
		return validationErrorf("admin_user_id", "must not be empty")
	}
	return nil
}

// Balance returns the wallet's balance snapshot, creating the wallet with a
// zero balance on first touch.
func (s *Service) Balance(ctx context.Context, userID string) (BalanceView, error) {
	if err := ValidateUserID(userID); err != nil {
		return BalanceView{}, err
	}
	var view BalanceView
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.LockWallet(ctx, userID)
		if err != nil {
			return err
		}
		pending, err := tx.PendingSpendTotal(ctx, w.ID)
		if err != nil {
			return err
		}
		view = BalanceView{
			UserID:           userID,
			Balance:          w.Balance,
			PendingAmount:    pending,
			AvailableBalance: w.Balance - pending,
		}
		return nil
	})
	if err != nil {
		return BalanceView{}, err
	}
	return view, nil
}

// History returns one page of the user's transaction history plus summary
// metrics computed over the whole filtered window.
func (s *Service) History(ctx context.Context, userID string, f TransactionFilter, p Page) (HistoryPage, error) {
	if err := ValidateUserID(userID); err != nil {
		return HistoryPage{}, err
	}
	txns, total, err := s.store.ListUserTransactions(ctx, userID, f, p)
	if err != nil {
		return HistoryPage{}, err
	}
	summary, err := s.store.SummarizeUserTransactions(ctx, userID, f)
	if err != nil {
		return HistoryPage{}, err
	}
	return HistoryPage{Transactions: txns, Total: total, Summary: summary}, nil
}

// Transaction fetches a single ledger entry.
func (s *Service) Transaction(ctx context.Context, txnID string) (Transaction, error) {
	return s.store.GetTransaction(ctx, txnID)
}

// Integrity runs the consistency scan over the store.
func (s *Service) Integrity(ctx context.Context) (IntegrityReport, error) {
	return s.store.ValidateIntegrity(ctx)
}

// CleanupFailed audits failed transactions older than the cutoff and returns
// how many were found. Nothing is deleted.
func (s *Service) CleanupFailed(ctx context.Context, olderThan time.Time) (int, error) {
	txns, err := s.store.ListFailedBefore(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	for _, txn := range txns {
		s.auditor.FailedTransaction(txn)
	}
	return len(txns), nil
}

// flagSuspicious runs the advisory heuristic against the user's recent
// activity. Errors and flags never alter the operation.
func (s *Service) flagSuspicious(ctx context.Context, tx Tx, userID string, amount int64) {
	count, err := tx.CountRecent(ctx, userID, time.Now().UTC().Add(-suspiciousWindow))
	if err != nil {
		return
	}
	s.auditor.DetectSuspicious(userID, count, amount, s.limits)
}

// failPending records the failure cause on the pending transaction before the
// surrounding unit of work is rolled back.
func failPending(ctx context.Context, tx Tx, txnID string, cause error) error {
	_, _ = tx.Complete(ctx, txnID, StatusFailed, cause.Error())
	return cause
}
