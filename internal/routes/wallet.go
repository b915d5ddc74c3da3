package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/seer-points/seer_points/internal/wallet"
)

// RegisterWalletRoutes wires the points wallet endpoints. Balance mutations
// go through the rate limiter; reads do not.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, limit fiber.Handler) {
	r.Post("/wallets/:userId/deposits", limit, h.Deposit)
	r.Post("/transfers", limit, h.Transfer)
	r.Post("/transactions/:txnId/refund", limit, h.Refund)
	r.Get("/wallets/:userId/balance", h.Balance)
	r.Get("/wallets/:userId/transactions", h.History)
	r.Get("/transactions/:txnId", h.Transaction)
}
