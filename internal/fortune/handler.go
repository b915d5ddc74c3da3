package fortune

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/seer-points/seer_points/internal/ledger"
)

// Handler exposes the paid draw endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a fortune handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type drawRequest struct {
	UserID   string `json:"user_id"`
	Category string `json:"category"`
	Question string `json:"question"`
}

type drawResponse struct {
	TransactionID string `json:"transaction_id"`
	JobID         string `json:"job_id"`
	JobStatus     string `json:"job_status"`
	PointsUsed    int64  `json:"points_used"`
	Reading       string `json:"reading,omitempty"`
	ReadingSource string `json:"reading_source,omitempty"`
}

// Draw charges the wallet and returns the created job plus a provisional reading.
func (h *Handler) Draw(c *fiber.Ctx) error {
	var req drawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Draw(c.UserContext(), DrawInput{
		UserID:   req.UserID,
		Category: req.Category,
		Question: req.Question,
	})
	if err != nil {
		var unknown *ErrUnknownCategory
		var vErr *ledger.ValidationError
		switch {
		case errors.As(err, &unknown), errors.As(err, &vErr):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrInsufficientBalance):
			return fiber.NewError(http.StatusPaymentRequired, err.Error())
		case errors.Is(err, ledger.ErrLockTimeout):
			return fiber.NewError(http.StatusServiceUnavailable, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(drawResponse{
		TransactionID: result.Transaction.ID,
		JobID:         result.Job.ID,
		JobStatus:     string(result.Job.Status),
		PointsUsed:    result.Job.PointsUsed,
		Reading:       result.Reading.Text,
		ReadingSource: result.Reading.Source,
	})
}
