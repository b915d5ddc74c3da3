package ledger

import "time"

// TransactionType classifies the direction and purpose of a ledger entry.
// Transfers are recorded as a spend leg plus a deposit leg, not a distinct type.
type TransactionType string

const (
	TypeDeposit TransactionType = "deposit"
	TypeSpend   TransactionType = "spend"
	TypeRefund  TransactionType = "refund"
)

// TransactionStatus is the lifecycle state of a ledger entry. Pending entries
// transition to exactly one terminal state and are immutable thereafter.
type TransactionStatus string

const (
	StatusPending TransactionStatus = "pending"
	StatusSuccess TransactionStatus = "success"
	StatusFailed  TransactionStatus = "failed"
)

// JobStatus is the lifecycle state of a paid fortune job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Wallet holds the point balance for one user. There is at most one active
// wallet per user; it is created lazily on first touch.
type Wallet struct {
	ID        string
	UserID    string
	Balance   int64
	UpdatedAt time.Time
}

// Transaction is a single signed balance movement. Positive amounts credit the
// wallet, negative amounts debit it.
type Transaction struct {
	ID           string
	WalletID     string
	Type         TransactionType
	Amount       int64
	ReferenceID  string
	RelatedTxnID string
	Status       TransactionStatus
	Description  string
	CreatedAt    time.Time
}

// Job is the unit of paid work created as a side effect of a spend. It is
// transitioned to completed/failed by the fortune processing subsystem; a
// refund of the originating transaction forces it failed.
type Job struct {
	ID         string
	UserID     string
	TxnID      string
	Type       string
	Status     JobStatus
	PointsUsed int64
	FailReason string
	CreatedAt  time.Time
}

// TransactionFilter narrows history queries. Zero values mean "no filter".
type TransactionFilter struct {
	Type   TransactionType
	Status TransactionStatus
	From   time.Time
	To     time.Time
}

func (f TransactionFilter) matches(t Transaction) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// Page describes pagination for history queries.
type Page struct {
	Number int
	Size   int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize clamps the page request to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}

// HistorySummary aggregates the filtered transaction window.
type HistorySummary struct {
	Count         int
	Volume        int64
	AverageAmount float64
	SuccessRate   float64
}

// HistoryPage is one page of transaction history plus window metrics.
type HistoryPage struct {
	Transactions []Transaction
	Total        int
	Summary      HistorySummary
}

// BalanceView is the balance snapshot returned to callers. PendingAmount is
// the sum of absolute amounts of currently pending spends.
type BalanceView struct {
	UserID           string
	Balance          int64
	PendingAmount    int64
	AvailableBalance int64
}

// Integrity issue kinds reported by the consistency scan.
const (
	IssueOrphanTransaction = "orphan_transaction"
	IssueStalePending      = "stale_pending"
	IssueNegativeBalance   = "negative_balance"
)

// IntegrityIssue is one anomaly found by the consistency scan.
type IntegrityIssue struct {
	Kind   string
	Ref    string
	Detail string
}

// IntegrityReport is the outcome of a consistency scan over the store. It is
// produced for health checks and never consulted by the write path.
type IntegrityReport struct {
	OK        bool
	Issues    []IntegrityIssue
	CheckedAt time.Time
}
