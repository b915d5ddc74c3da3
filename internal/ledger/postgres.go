package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgLockNotAvailable = "55P03"
	pgUniqueViolation  = "23505"
)

// PostgresStore persists wallets, transactions and jobs in PostgreSQL. Each
// unit of work maps to one database transaction with a bounded lock timeout.
type PostgresStore struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
	staleAge    time.Duration
}

// NewPostgresStore constructs a Postgres-backed ledger store using the lock
// timeout and stale-pending age from the supplied limits.
func NewPostgresStore(db *pgxpool.Pool, limits Limits) *PostgresStore {
	return &PostgresStore{db: db, lockTimeout: limits.LockTimeout, staleAge: limits.StalePendingAge}
}

// RunInTx executes fn inside a single database transaction.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return mapPgError(err)
	}
	return tx.Commit(ctx)
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable:
			return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
		case pgUniqueViolation:
			return ErrDuplicateTransaction
		}
	}
	return err
}

type pgTx struct {
	tx pgx.Tx
}

const walletColumns = `id, user_id, balance, updated_at`

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	var id, userID uuid.UUID
	if err := row.Scan(&id, &userID, &w.Balance, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	w.ID = id.String()
	w.UserID = userID.String()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func (t *pgTx) LockWallet(ctx context.Context, userID string) (Wallet, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, validationErrorf("user_id", "must be a UUID")
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO wallets (id, user_id, balance, updated_at)
        VALUES ($1, $2, 0, NOW()) ON CONFLICT (user_id) DO NOTHING`, uuid.New(), uid)
	if err != nil {
		return Wallet{}, err
	}
	row := t.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, uid)
	w, err := scanWallet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	return w, err
}

func (t *pgTx) LockWalletByID(ctx context.Context, walletID string) (Wallet, error) {
	wid, err := uuid.Parse(walletID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := t.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, wid)
	w, err := scanWallet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	return w, err
}

func (t *pgTx) AdjustBalance(ctx context.Context, walletID string, delta int64) (int64, error) {
	var balance int64
	err := t.tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $2, updated_at = NOW()
        WHERE id = $1 RETURNING balance`, walletID, delta).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrWalletNotFound
	}
	return balance, err
}

const transactionColumns = `id, wallet_id, type, amount, reference_id, related_txn_id, status, description, created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var txn Transaction
	var id, walletID uuid.UUID
	var refID, relatedID *string
	if err := row.Scan(&id, &walletID, &txn.Type, &txn.Amount, &refID, &relatedID, &txn.Status, &txn.Description, &txn.CreatedAt); err != nil {
		return Transaction{}, err
	}
	txn.ID = id.String()
	txn.WalletID = walletID.String()
	if refID != nil {
		txn.ReferenceID = *refID
	}
	if relatedID != nil {
		txn.RelatedTxnID = *relatedID
	}
	txn.CreatedAt = txn.CreatedAt.UTC()
	return txn, nil
}

func (t *pgTx) CreatePending(ctx context.Context, in PendingInput) (Transaction, error) {
	if in.ReferenceID != "" {
		var existing uuid.UUID
		err := t.tx.QueryRow(ctx, `SELECT id FROM transactions WHERE reference_id = $1`, in.ReferenceID).Scan(&existing)
		if err == nil {
			return Transaction{}, ErrDuplicateTransaction
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, err
		}
	}

	row := t.tx.QueryRow(ctx, `INSERT INTO transactions
        (id, wallet_id, type, amount, reference_id, related_txn_id, status, description, created_at)
        VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, NOW())
        RETURNING `+transactionColumns,
		uuid.New(), in.WalletID, in.Type, in.Amount, in.ReferenceID, in.RelatedTxnID, StatusPending, in.Description)
	txn, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, mapPgError(err)
	}
	return txn, nil
}

func (t *pgTx) Complete(ctx context.Context, txnID string, status TransactionStatus, cause string) (Transaction, error) {
	row := t.tx.QueryRow(ctx, `UPDATE transactions
        SET status = $2,
            description = CASE WHEN $2 = 'failed' AND $3 <> ''
                THEN description || ' | ' || $3 ELSE description END
        WHERE id = $1 AND status = 'pending'
        RETURNING `+transactionColumns, txnID, status, cause)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := t.GetTransaction(ctx, txnID); getErr != nil {
			return Transaction{}, getErr
		}
		return Transaction{}, ErrTransactionNotPending
	}
	return txn, err
}

func (t *pgTx) GetTransaction(ctx context.Context, txnID string) (Transaction, error) {
	tid, err := uuid.Parse(txnID)
	if err != nil {
		return Transaction{}, ErrTransactionNotFound
	}
	row := t.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, tid)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	return txn, err
}

func (t *pgTx) SumRefunds(ctx context.Context, originalTxnID string) (int64, error) {
	var total int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM transactions
        WHERE related_txn_id = $1 AND type = 'refund' AND status = 'success'`, originalTxnID).Scan(&total)
	return total, err
}

func (t *pgTx) PendingSpendTotal(ctx context.Context, walletID string) (int64, error) {
	var total int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(-amount), 0) FROM transactions
        WHERE wallet_id = $1 AND type = 'spend' AND status = 'pending'`, walletID).Scan(&total)
	return total, err
}

func (t *pgTx) CountRecent(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM transactions t
        INNER JOIN wallets w ON w.id = t.wallet_id
        WHERE w.user_id = $1 AND t.created_at >= $2`, userID, since).Scan(&count)
	return count, err
}

const jobColumns = `id, user_id, txn_id, job_type, status, points_used, fail_reason, created_at`

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	var id, userID, txnID uuid.UUID
	var failReason *string
	if err := row.Scan(&id, &userID, &txnID, &j.Type, &j.Status, &j.PointsUsed, &failReason, &j.CreatedAt); err != nil {
		return Job{}, err
	}
	j.ID = id.String()
	j.UserID = userID.String()
	j.TxnID = txnID.String()
	if failReason != nil {
		j.FailReason = *failReason
	}
	j.CreatedAt = j.CreatedAt.UTC()
	return j, nil
}

func (t *pgTx) CreateJob(ctx context.Context, job Job) (Job, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO jobs
        (id, user_id, txn_id, job_type, status, points_used, fail_reason, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NOW())
        RETURNING `+jobColumns,
		uuid.New(), job.UserID, job.TxnID, job.Type, job.Status, job.PointsUsed, job.FailReason)
	return scanJob(row)
}

func (t *pgTx) GetJobByTxn(ctx context.Context, txnID string) (Job, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE txn_id = $1`, txnID)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	return j, err
}

func (t *pgTx) FailJob(ctx context.Context, jobID, reason string) error {
	_, err := t.tx.Exec(ctx, `UPDATE jobs SET status = 'failed', fail_reason = $2 WHERE id = $1`, jobID, reason)
	return err
}

func (s *PostgresStore) GetWalletByUser(ctx context.Context, userID string) (Wallet, error) {
	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	w, err := scanWallet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	return w, err
}

func (s *PostgresStore) GetTransaction(ctx context.Context, txnID string) (Transaction, error) {
	tid, err := uuid.Parse(txnID)
	if err != nil {
		return Transaction{}, ErrTransactionNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, tid)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	return txn, err
}

func (s *PostgresStore) ListWalletTransactions(ctx context.Context, walletID string, status TransactionStatus, p Page) ([]Transaction, int, error) {
	where, args := transactionPredicate(`wallet_id = $1`, []any{walletID}, TransactionFilter{Status: status})
	return s.listTransactions(ctx, where, args, p)
}

func (s *PostgresStore) ListUserTransactions(ctx context.Context, userID string, f TransactionFilter, p Page) ([]Transaction, int, error) {
	where, args := transactionPredicate(`wallet_id IN (SELECT id FROM wallets WHERE user_id = $1)`, []any{userID}, f)
	return s.listTransactions(ctx, where, args, p)
}

func transactionPredicate(base string, args []any, f TransactionFilter) (string, []any) {
	where := base
	if f.Type != "" {
		args = append(args, f.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		where += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	return where, args
}

func (s *PostgresStore) listTransactions(ctx context.Context, where string, args []any, p Page) ([]Transaction, int, error) {
	p = p.Normalize()

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		transactionColumns, where, p.Size, p.offset())
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txns = append(txns, txn)
	}
	return txns, total, rows.Err()
}

func (s *PostgresStore) SummarizeUserTransactions(ctx context.Context, userID string, f TransactionFilter) (HistorySummary, error) {
	where, args := transactionPredicate(`wallet_id IN (SELECT id FROM wallets WHERE user_id = $1)`, []any{userID}, f)
	row := s.db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(ABS(amount)), 0),
        COALESCE(AVG(ABS(amount)), 0),
        COALESCE(AVG(CASE WHEN status = 'success' THEN 1.0 ELSE 0.0 END), 0)
        FROM transactions WHERE `+where, args...)

	var summary HistorySummary
	if err := row.Scan(&summary.Count, &summary.Volume, &summary.AverageAmount, &summary.SuccessRate); err != nil {
		return HistorySummary{}, err
	}
	return summary, nil
}

func (s *PostgresStore) ValidateIntegrity(ctx context.Context) (IntegrityReport, error) {
	report := IntegrityReport{CheckedAt: time.Now().UTC()}

	rows, err := s.db.Query(ctx, `SELECT t.id FROM transactions t
        LEFT JOIN wallets w ON w.id = t.wallet_id WHERE w.id IS NULL`)
	if err != nil {
		return IntegrityReport{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return IntegrityReport{}, err
		}
		report.Issues = append(report.Issues, IntegrityIssue{
			Kind:   IssueOrphanTransaction,
			Ref:    id.String(),
			Detail: "transaction references a wallet that no longer exists",
		})
	}
	if err := rows.Err(); err != nil {
		return IntegrityReport{}, err
	}

	cutoff := report.CheckedAt.Add(-s.staleAge)
	staleRows, err := s.db.Query(ctx, `SELECT id, created_at FROM transactions
        WHERE status = 'pending' AND created_at < $1`, cutoff)
	if err != nil {
		return IntegrityReport{}, err
	}
	defer staleRows.Close()
	for staleRows.Next() {
		var id uuid.UUID
		var createdAt time.Time
		if err := staleRows.Scan(&id, &createdAt); err != nil {
			return IntegrityReport{}, err
		}
		report.Issues = append(report.Issues, IntegrityIssue{
			Kind:   IssueStalePending,
			Ref:    id.String(),
			Detail: fmt.Sprintf("pending since %s", createdAt.UTC().Format(time.RFC3339)),
		})
	}
	if err := staleRows.Err(); err != nil {
		return IntegrityReport{}, err
	}

	negRows, err := s.db.Query(ctx, `SELECT id, user_id, balance FROM wallets WHERE balance < 0`)
	if err != nil {
		return IntegrityReport{}, err
	}
	defer negRows.Close()
	for negRows.Next() {
		var id, userID uuid.UUID
		var balance int64
		if err := negRows.Scan(&id, &userID, &balance); err != nil {
			return IntegrityReport{}, err
		}
		report.Issues = append(report.Issues, IntegrityIssue{
			Kind:   IssueNegativeBalance,
			Ref:    id.String(),
			Detail: fmt.Sprintf("user %s balance is %d", userID, balance),
		})
	}
	if err := negRows.Err(); err != nil {
		return IntegrityReport{}, err
	}

	report.OK = len(report.Issues) == 0
	return report, nil
}

func (s *PostgresStore) ListFailedBefore(ctx context.Context, cutoff time.Time) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE status = 'failed' AND created_at < $1 ORDER BY created_at`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}
