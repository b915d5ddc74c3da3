package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestRunInTxRollsBackOnError(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	user := uuid.NewString()
	walletID := SeedWallet(store, user, 500)

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.AdjustBalance(ctx, walletID, -200); err != nil {
			return err
		}
		if _, err := tx.CreatePending(ctx, PendingInput{WalletID: walletID, Type: TypeSpend, Amount: -200, ReferenceID: "r-rollback"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	w, err := store.GetWalletByUser(ctx, user)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if w.Balance != 500 {
		t.Fatalf("balance mutated despite rollback: %d", w.Balance)
	}
	if _, total, _ := store.ListWalletTransactions(ctx, walletID, "", Page{}); total != 0 {
		t.Fatalf("transaction survived rollback: %d", total)
	}
}

func TestCreatePendingRejectsDuplicateReference(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	walletID := SeedWallet(store, uuid.NewString(), 0)

	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.CreatePending(ctx, PendingInput{WalletID: walletID, Type: TypeDeposit, Amount: 100, ReferenceID: "dup"})
		return err
	})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	err = store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.CreatePending(ctx, PendingInput{WalletID: walletID, Type: TypeDeposit, Amount: 100, ReferenceID: "dup"})
		return err
	})
	if !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
}

func TestCompleteIsTerminal(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	walletID := SeedWallet(store, uuid.NewString(), 0)

	var txnID string
	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		txn, err := tx.CreatePending(ctx, PendingInput{WalletID: walletID, Type: TypeDeposit, Amount: 100, ReferenceID: "once"})
		if err != nil {
			return err
		}
		txnID = txn.ID
		if _, err := tx.Complete(ctx, txn.ID, StatusSuccess, ""); err != nil {
			return err
		}
		_, err = tx.Complete(ctx, txn.ID, StatusFailed, "again")
		if !errors.Is(err, ErrTransactionNotPending) {
			t.Fatalf("expected ErrTransactionNotPending, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unit of work: %v", err)
	}

	txn, err := store.GetTransaction(ctx, txnID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if txn.Status != StatusSuccess {
		t.Fatalf("status = %s, want success", txn.Status)
	}
}

func TestCompleteFailedAppendsCause(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	walletID := SeedWallet(store, uuid.NewString(), 0)

	var txn Transaction
	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		created, err := tx.CreatePending(ctx, PendingInput{WalletID: walletID, Type: TypeSpend, Amount: -50, ReferenceID: "fail-cause", Description: "draw"})
		if err != nil {
			return err
		}
		txn, err = tx.Complete(ctx, created.ID, StatusFailed, "backend unavailable")
		return err
	})
	if err != nil {
		t.Fatalf("unit of work: %v", err)
	}
	if txn.Description != "draw | backend unavailable" {
		t.Fatalf("description = %q", txn.Description)
	}
}
