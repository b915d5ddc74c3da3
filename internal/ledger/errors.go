package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientBalance occurs when a wallet lacks the points required to
	// cover a spend or transfer at lock time.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateTransaction indicates the provided reference id is already
	// stored and therefore the operation must not be applied again.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrWalletNotFound indicates no wallet row exists for the identifier.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound indicates no transaction row exists for the identifier.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrTransactionNotPending indicates an attempt to complete a transaction
	// that has already reached a terminal status.
	ErrTransactionNotPending = errors.New("transaction is not pending")

	// ErrJobNotFound indicates no job references the transaction.
	ErrJobNotFound = errors.New("job not found")

	// ErrLockTimeout indicates a wallet row lock could not be acquired within
	// the configured bound. The operation is safe to retry.
	ErrLockTimeout = errors.New("wallet lock timed out")
)

// ValidationError reports a malformed or out-of-policy input. It is always
// raised before any mutation takes place.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationErrorf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
