package wallet

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/seer-points/seer_points/internal/ledger"
)

// Handler exposes wallet HTTP endpoints over the ledger service.
type Handler struct {
	service *ledger.Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *ledger.Service) *Handler {
	return &Handler{service: service}
}

type depositRequest struct {
	Amount      int64  `json:"amount"`
	ReferenceID string `json:"reference_id"`
	Description string `json:"description"`
}

type transferRequest struct {
	FromUserID  string `json:"from_user_id"`
	ToUserID    string `json:"to_user_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type refundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type transactionResponse struct {
	ID           string    `json:"id"`
	WalletID     string    `json:"wallet_id"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	ReferenceID  string    `json:"reference_id,omitempty"`
	RelatedTxnID string    `json:"related_txn_id,omitempty"`
	Status       string    `json:"status"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type historyResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Total        int                   `json:"total"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
	Summary      summaryResponse       `json:"summary"`
}

type summaryResponse struct {
	Count         int     `json:"count"`
	Volume        int64   `json:"volume"`
	AverageAmount float64 `json:"average_amount"`
	SuccessRate   float64 `json:"success_rate"`
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		WalletID:     t.WalletID,
		Type:         string(t.Type),
		Amount:       t.Amount,
		ReferenceID:  t.ReferenceID,
		RelatedTxnID: t.RelatedTxnID,
		Status:       string(t.Status),
		Description:  t.Description,
		CreatedAt:    t.CreatedAt,
	}
}

// statusFor maps ledger errors onto HTTP status codes.
func statusFor(err error) int {
	var vErr *ledger.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrTransactionNotPending):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrWalletNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ledger.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrLockTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func serviceError(err error) error {
	return fiber.NewError(statusFor(err), err.Error())
}

// Deposit credits points to a user wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	txn, err := h.service.Deposit(c.UserContext(), ledger.DepositInput{
		UserID:      c.Params("userId"),
		Amount:      req.Amount,
		ReferenceID: req.ReferenceID,
		Description: req.Description,
	})
	if err != nil {
		return serviceError(err)
	}
	return c.Status(http.StatusCreated).JSON(toTransactionResponse(txn))
}

// Transfer moves points between two user wallets.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	debit, credit, err := h.service.Transfer(c.UserContext(), ledger.TransferInput{
		FromUserID:  req.FromUserID,
		ToUserID:    req.ToUserID,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		return serviceError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"debit":  toTransactionResponse(debit),
		"credit": toTransactionResponse(credit),
	})
}

// Refund reverses a successful spend, wholly or in part.
func (h *Handler) Refund(c *fiber.Ctx) error {
	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	refund, original, err := h.service.Refund(c.UserContext(), ledger.RefundInput{
		TxnID:  c.Params("txnId"),
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		return serviceError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"refund":   toTransactionResponse(refund),
		"original": toTransactionResponse(original),
	})
}

// Balance returns the wallet balance for a user, including pending spends.
func (h *Handler) Balance(c *fiber.Ctx) error {
	view, err := h.service.Balance(c.UserContext(), c.Params("userId"))
	if err != nil {
		return serviceError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id":   view.UserID,
		"balance":   view.Balance,
		"pending":   view.PendingAmount,
		"available": view.AvailableBalance,
	})
}

// History lists a user's transactions with filters, paging and a summary.
func (h *Handler) History(c *fiber.Ctx) error {
	userID := c.Params("userId")
	filter := ledger.TransactionFilter{
		Type:   ledger.TransactionType(c.Query("type")),
		Status: ledger.TransactionStatus(c.Query("status")),
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid from: "+err.Error())
		}
		filter.From = from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid to: "+err.Error())
		}
		filter.To = to
	}
	page := ledger.Page{
		Number: queryInt(c, "page", 1),
		Size:   queryInt(c, "page_size", 0),
	}.Normalize()

	result, err := h.service.History(c.UserContext(), userID, filter, page)
	if err != nil {
		return serviceError(err)
	}

	transactions := make([]transactionResponse, 0, len(result.Transactions))
	for _, t := range result.Transactions {
		transactions = append(transactions, toTransactionResponse(t))
	}
	return c.Status(http.StatusOK).JSON(historyResponse{
		Transactions: transactions,
		Total:        result.Total,
		Page:         page.Number,
		PageSize:     page.Size,
		Summary: summaryResponse{
			Count:         result.Summary.Count,
			Volume:        result.Summary.Volume,
			AverageAmount: result.Summary.AverageAmount,
			SuccessRate:   result.Summary.SuccessRate,
		},
	})
}

// Transaction fetches a single transaction by id.
func (h *Handler) Transaction(c *fiber.Ctx) error {
	txn, err := h.service.Transaction(c.UserContext(), c.Params("txnId"))
	if err != nil {
		return serviceError(err)
	}
	return c.Status(http.StatusOK).JSON(toTransactionResponse(txn))
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
