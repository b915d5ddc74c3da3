package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/seer-points/seer_points/internal/ledger"
)

// Handler exposes the operator endpoints: manual balance adjustments,
// the ledger integrity scan, and the failed-transaction sweep.
type Handler struct {
	service *ledger.Service
}

// NewHandler builds an admin handler.
func NewHandler(service *ledger.Service) *Handler {
	return &Handler{service: service}
}

type adjustRequest struct {
	UserID      string `json:"user_id"`
	Amount      int64  `json:"amount"`
	Reason      string `json:"reason"`
	AdminUserID string `json:"admin_user_id"`
}

type cleanupRequest struct {
	OlderThan string `json:"older_than"`
}

// Adjust applies a signed manual correction to a user wallet.
func (h *Handler) Adjust(c *fiber.Ctx) error {
	var req adjustRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	txn, err := h.service.AdminAdjust(c.UserContext(), ledger.AdjustInput{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Reason:      req.Reason,
		AdminUserID: req.AdminUserID,
	})
	if err != nil {
		var vErr *ledger.ValidationError
		switch {
		case errors.As(err, &vErr):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrLockTimeout):
			return fiber.NewError(http.StatusServiceUnavailable, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": txn.ID,
		"wallet_id":      txn.WalletID,
		"type":           string(txn.Type),
		"amount":         txn.Amount,
		"status":         string(txn.Status),
		"description":    txn.Description,
	})
}

// Integrity runs the consistency scan and reports any issues found.
func (h *Handler) Integrity(c *fiber.Ctx) error {
	report, err := h.service.Integrity(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	issues := make([]fiber.Map, 0, len(report.Issues))
	for _, issue := range report.Issues {
		issues = append(issues, fiber.Map{
			"kind":   issue.Kind,
			"ref":    issue.Ref,
			"detail": issue.Detail,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"checked_at": report.CheckedAt,
		"ok":         report.OK,
		"issues":     issues,
	})
}

// Cleanup audits failed transactions older than the cutoff. The records
// themselves are retained.
func (h *Handler) Cleanup(c *fiber.Ctx) error {
	var req cleanupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	if req.OlderThan != "" {
		parsed, err := time.Parse(time.RFC3339, req.OlderThan)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid older_than: "+err.Error())
		}
		cutoff = parsed
	}
	count, err := h.service.CleanupFailed(c.UserContext(), cutoff)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"cutoff":  cutoff,
		"audited": count,
	})
}
