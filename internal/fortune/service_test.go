package fortune

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/seer-points/seer_points/internal/ledger"
	"github.com/seer-points/seer_points/internal/logging"
)

func newTestLedger(store ledger.Store) *ledger.Service {
	return ledger.NewService(store, ledger.DefaultLimits(), ledger.NewAuditor(logging.Discard()), nil)
}

func TestDrawSpendsPointsAndCreatesJob(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(newTestLedger(store), nil)

	ctx := context.Background()
	user := uuid.NewString()
	ledger.SeedWallet(store, user, 1_000)

	res, err := svc.Draw(ctx, DrawInput{UserID: user, Category: "tarot", Question: "will it rain"})
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if res.Transaction.Amount != -120 {
		t.Fatalf("expected tarot price debit of 120, got %d", res.Transaction.Amount)
	}
	if res.Job.Type != "fortune:tarot" || res.Job.Status != ledger.JobPending {
		t.Fatalf("unexpected job: %+v", res.Job)
	}
	if res.Reading.Text == "" {
		t.Fatal("expected a provisional reading")
	}

	w, err := store.GetWalletByUser(ctx, user)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if w.Balance != 880 {
		t.Fatalf("balance = %d, want 880", w.Balance)
	}
}

func TestDrawUnknownCategory(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(newTestLedger(store), nil)

	ctx := context.Background()
	user := uuid.NewString()
	ledger.SeedWallet(store, user, 1_000)

	var unknown *ErrUnknownCategory
	if _, err := svc.Draw(ctx, DrawInput{UserID: user, Category: "palmistry"}); !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}

	w, _ := store.GetWalletByUser(ctx, user)
	if w.Balance != 1_000 {
		t.Fatalf("balance changed on rejected draw: %d", w.Balance)
	}
}

func TestDrawInsufficientBalance(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(newTestLedger(store), nil)

	ctx := context.Background()
	user := uuid.NewString()
	ledger.SeedWallet(store, user, 50)

	if _, err := svc.Draw(ctx, DrawInput{UserID: user, Category: "poem"}); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestStaticInterpreterDeterministic(t *testing.T) {
	interp := StaticInterpreter{}
	a, _ := interp.Interpret(context.Background(), "tarot", "same question")
	b, _ := interp.Interpret(context.Background(), "tarot", "same question")
	if a != b {
		t.Fatalf("readings differ: %+v vs %+v", a, b)
	}
}
