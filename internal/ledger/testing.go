package ledger

import (
	"time"

	"github.com/google/uuid"
)

// SeedWallet is a test helper that provisions a wallet with the given balance
// when using the in-memory store. It returns the wallet id.
func SeedWallet(s Store, userID string, balance int64) string {
	mem, ok := s.(*memoryStore)
	if !ok {
		return ""
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	if id, exists := mem.state.walletByUser[userID]; exists {
		w := mem.state.wallets[id]
		w.Balance = balance
		mem.state.wallets[id] = w
		return id
	}
	w := Wallet{ID: uuid.NewString(), UserID: userID, Balance: balance, UpdatedAt: mem.now()}
	mem.state.wallets[w.ID] = w
	mem.state.walletByUser[userID] = w.ID
	return w.ID
}

// SetClock overrides the in-memory store's time source in tests.
func SetClock(s Store, now func() time.Time) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.now = now
	}
}
