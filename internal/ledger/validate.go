package ledger

import "time"

// Limits is the ledger policy injected at construction time. There is no
// process-wide configuration state.
type Limits struct {
	MinAmount       int64
	MaxAmount       int64
	TransferCap     int64
	StalePendingAge time.Duration
	LockTimeout     time.Duration
}

// DefaultLimits returns the policy used when no explicit configuration is given.
func DefaultLimits() Limits {
	return Limits{
		MinAmount:       1,
		MaxAmount:       1_000_000,
		TransferCap:     100_000,
		StalePendingAge: 24 * time.Hour,
		LockTimeout:     3 * time.Second,
	}
}

const (
	maxUserIDLength      = 64
	maxReferenceIDLength = 128
)

// ValidateAmount checks an operation magnitude against the configured bounds.
// Callers supply the sign separately.
func (l Limits) ValidateAmount(amount int64) error {
	if amount < l.MinAmount {
		return validationErrorf("amount", "must be at least %d points", l.MinAmount)
	}
	if amount > l.MaxAmount {
		return validationErrorf("amount", "must not exceed %d points", l.MaxAmount)
	}
	return nil
}

// ValidateBalance fails when the current balance cannot cover the required amount.
func ValidateBalance(current, required int64) error {
	if current < required {
		return ErrInsufficientBalance
	}
	return nil
}

// ValidateUserID checks a user identifier is present and bounded.
func ValidateUserID(id string) error {
	if id == "" {
		return validationErrorf("user_id", "must not be empty")
	}
	if len(id) > maxUserIDLength {
		return validationErrorf("user_id", "must not exceed %d characters", maxUserIDLength)
	}
	return nil
}

// ValidateReferenceID checks a caller-supplied idempotency key is present and bounded.
func ValidateReferenceID(ref string) error {
	if ref == "" {
		return validationErrorf("reference_id", "must not be empty")
	}
	if len(ref) > maxReferenceIDLength {
		return validationErrorf("reference_id", "must not exceed %d characters", maxReferenceIDLength)
	}
	return nil
}
