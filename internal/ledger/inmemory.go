package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryState struct {
	wallets      map[string]Wallet // keyed by wallet id
	walletByUser map[string]string // user id -> wallet id
	txns         map[string]Transaction
	txnOrder     []string // creation order
	jobs         map[string]Job
	jobByTxn     map[string]string
}

func newMemoryState() *memoryState {
	return &memoryState{
		wallets:      make(map[string]Wallet),
		walletByUser: make(map[string]string),
		txns:         make(map[string]Transaction),
		jobs:         make(map[string]Job),
		jobByTxn:     make(map[string]string),
	}
}

func (st *memoryState) clone() *memoryState {
	next := &memoryState{
		wallets:      make(map[string]Wallet, len(st.wallets)),
		walletByUser: make(map[string]string, len(st.walletByUser)),
		txns:         make(map[string]Transaction, len(st.txns)),
		txnOrder:     append([]string(nil), st.txnOrder...),
		jobs:         make(map[string]Job, len(st.jobs)),
		jobByTxn:     make(map[string]string, len(st.jobByTxn)),
	}
	for k, v := range st.wallets {
		next.wallets[k] = v
	}
	for k, v := range st.walletByUser {
		next.walletByUser[k] = v
	}
	for k, v := range st.txns {
		next.txns[k] = v
	}
	for k, v := range st.jobs {
		next.jobs[k] = v
	}
	for k, v := range st.jobByTxn {
		next.jobByTxn[k] = v
	}
	return next
}

type memoryStore struct {
	mu       sync.Mutex
	state    *memoryState
	staleAge time.Duration
	now      func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit
// tests. Each unit of work runs against a staged copy of the state which is
// swapped in only on success, so rollback semantics match the Postgres store.
func NewInMemory() Store {
	return &memoryStore{
		state:    newMemoryState(),
		staleAge: DefaultLimits().StalePendingAge,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryStore) RunInTx(_ context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(context.Background(), &memoryTx{state: staged, now: s.now}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

type memoryTx struct {
	state *memoryState
	now   func() time.Time
}

func (t *memoryTx) LockWallet(_ context.Context, userID string) (Wallet, error) {
	if id, ok := t.state.walletByUser[userID]; ok {
		return t.state.wallets[id], nil
	}
	w := Wallet{ID: uuid.NewString(), UserID: userID, Balance: 0, UpdatedAt: t.now()}
	t.state.wallets[w.ID] = w
	t.state.walletByUser[userID] = w.ID
	return w, nil
}

func (t *memoryTx) LockWalletByID(_ context.Context, walletID string) (Wallet, error) {
	w, ok := t.state.wallets[walletID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (t *memoryTx) AdjustBalance(_ context.Context, walletID string, delta int64) (int64, error) {
	w, ok := t.state.wallets[walletID]
	if !ok {
		return 0, ErrWalletNotFound
	}
	w.Balance += delta
	w.UpdatedAt = t.now()
	t.state.wallets[walletID] = w
	return w.Balance, nil
}

func (t *memoryTx) CreatePending(_ context.Context, in PendingInput) (Transaction, error) {
	if in.ReferenceID != "" {
		for _, existing := range t.state.txns {
			if existing.ReferenceID == in.ReferenceID {
				return Transaction{}, ErrDuplicateTransaction
			}
		}
	}
	if _, ok := t.state.wallets[in.WalletID]; !ok {
		return Transaction{}, ErrWalletNotFound
	}
	txn := Transaction{
		ID:           uuid.NewString(),
		WalletID:     in.WalletID,
		Type:         in.Type,
		Amount:       in.Amount,
		ReferenceID:  in.ReferenceID,
		RelatedTxnID: in.RelatedTxnID,
		Status:       StatusPending,
		Description:  in.Description,
		CreatedAt:    t.now(),
	}
	t.state.txns[txn.ID] = txn
	t.state.txnOrder = append(t.state.txnOrder, txn.ID)
	return txn, nil
}

func (t *memoryTx) Complete(_ context.Context, txnID string, status TransactionStatus, cause string) (Transaction, error) {
	txn, ok := t.state.txns[txnID]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	if txn.Status != StatusPending {
		return Transaction{}, ErrTransactionNotPending
	}
	txn.Status = status
	if status == StatusFailed && cause != "" {
		txn.Description += " | " + cause
	}
	t.state.txns[txnID] = txn
	return txn, nil
}

func (t *memoryTx) GetTransaction(_ context.Context, txnID string) (Transaction, error) {
	txn, ok := t.state.txns[txnID]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return txn, nil
}

func (t *memoryTx) SumRefunds(_ context.Context, originalTxnID string) (int64, error) {
	var total int64
	for _, txn := range t.state.txns {
		if txn.Type == TypeRefund && txn.Status == StatusSuccess && txn.RelatedTxnID == originalTxnID {
			total += txn.Amount
		}
	}
	return total, nil
}

func (t *memoryTx) PendingSpendTotal(_ context.Context, walletID string) (int64, error) {
	var total int64
	for _, txn := range t.state.txns {
		if txn.WalletID == walletID && txn.Type == TypeSpend && txn.Status == StatusPending {
			total += -txn.Amount
		}
	}
	return total, nil
}

func (t *memoryTx) CountRecent(_ context.Context, userID string, since time.Time) (int, error) {
	walletID, ok := t.state.walletByUser[userID]
	if !ok {
		return 0, nil
	}
	count := 0
	for _, txn := range t.state.txns {
		if txn.WalletID == walletID && !txn.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (t *memoryTx) CreateJob(_ context.Context, job Job) (Job, error) {
	job.ID = uuid.NewString()
	job.CreatedAt = t.now()
	t.state.jobs[job.ID] = job
	t.state.jobByTxn[job.TxnID] = job.ID
	return job, nil
}

func (t *memoryTx) GetJobByTxn(_ context.Context, txnID string) (Job, error) {
	id, ok := t.state.jobByTxn[txnID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return t.state.jobs[id], nil
}

func (t *memoryTx) FailJob(_ context.Context, jobID, reason string) error {
	job, ok := t.state.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = JobFailed
	job.FailReason = reason
	t.state.jobs[jobID] = job
	return nil
}

func (s *memoryStore) GetWalletByUser(_ context.Context, userID string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.state.walletByUser[userID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return s.state.wallets[id], nil
}

func (s *memoryStore) GetTransaction(_ context.Context, txnID string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.state.txns[txnID]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return txn, nil
}

// newestFirst returns transaction ids in reverse creation order.
func (st *memoryState) newestFirst() []string {
	ids := make([]string, len(st.txnOrder))
	for i, id := range st.txnOrder {
		ids[len(st.txnOrder)-1-i] = id
	}
	return ids
}

func (s *memoryStore) ListWalletTransactions(_ context.Context, walletID string, status TransactionStatus, p Page) ([]Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	match := func(txn Transaction) bool {
		return txn.WalletID == walletID && (status == "" || txn.Status == status)
	}
	return s.state.pageTransactions(match, p)
}

func (s *memoryStore) ListUserTransactions(_ context.Context, userID string, f TransactionFilter, p Page) ([]Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	walletID := s.state.walletByUser[userID]
	match := func(txn Transaction) bool {
		return txn.WalletID == walletID && walletID != "" && f.matches(txn)
	}
	return s.state.pageTransactions(match, p)
}

func (st *memoryState) pageTransactions(match func(Transaction) bool, p Page) ([]Transaction, int, error) {
	p = p.Normalize()
	var filtered []Transaction
	for _, id := range st.newestFirst() {
		if txn := st.txns[id]; match(txn) {
			filtered = append(filtered, txn)
		}
	}
	total := len(filtered)
	start := p.offset()
	if start >= total {
		return nil, total, nil
	}
	end := start + p.Size
	if end > total {
		end = total
	}
	return filtered[start:end], total, nil
}

func (s *memoryStore) SummarizeUserTransactions(_ context.Context, userID string, f TransactionFilter) (HistorySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	walletID := s.state.walletByUser[userID]
	var summary HistorySummary
	succeeded := 0
	for _, txn := range s.state.txns {
		if walletID == "" || txn.WalletID != walletID || !f.matches(txn) {
			continue
		}
		summary.Count++
		amount := txn.Amount
		if amount < 0 {
			amount = -amount
		}
		summary.Volume += amount
		if txn.Status == StatusSuccess {
			succeeded++
		}
	}
	if summary.Count > 0 {
		summary.AverageAmount = float64(summary.Volume) / float64(summary.Count)
		summary.SuccessRate = float64(succeeded) / float64(summary.Count)
	}
	return summary, nil
}

func (s *memoryStore) ValidateIntegrity(_ context.Context) (IntegrityReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := IntegrityReport{CheckedAt: s.now()}
	cutoff := report.CheckedAt.Add(-s.staleAge)

	for _, id := range s.state.newestFirst() {
		txn := s.state.txns[id]
		if _, ok := s.state.wallets[txn.WalletID]; !ok {
			report.Issues = append(report.Issues, IntegrityIssue{
				Kind:   IssueOrphanTransaction,
				Ref:    txn.ID,
				Detail: "transaction references a wallet that no longer exists",
			})
		}
		if txn.Status == StatusPending && txn.CreatedAt.Before(cutoff) {
			report.Issues = append(report.Issues, IntegrityIssue{
				Kind:   IssueStalePending,
				Ref:    txn.ID,
				Detail: "pending since " + txn.CreatedAt.Format(time.RFC3339),
			})
		}
	}
	for _, w := range s.state.wallets {
		if w.Balance < 0 {
			report.Issues = append(report.Issues, IntegrityIssue{
				Kind:   IssueNegativeBalance,
				Ref:    w.ID,
				Detail: "user " + w.UserID + " balance is negative",
			})
		}
	}

	report.OK = len(report.Issues) == 0
	return report, nil
}

func (s *memoryStore) ListFailedBefore(_ context.Context, cutoff time.Time) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var txns []Transaction
	for _, id := range s.state.txnOrder {
		txn := s.state.txns[id]
		if txn.Status == StatusFailed && txn.CreatedAt.Before(cutoff) {
			txns = append(txns, txn)
		}
	}
	return txns, nil
}
