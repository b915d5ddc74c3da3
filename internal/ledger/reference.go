package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewReferenceID produces a globally unique reference id for operations where
// the caller supplied none. The time component keeps generated ids roughly
// sortable; the random suffix guarantees uniqueness.
func NewReferenceID() string {
	return fmt.Sprintf("ref-%d-%s", time.Now().UTC().UnixMilli(), uuid.NewString()[:8])
}
