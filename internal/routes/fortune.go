package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/seer-points/seer_points/internal/fortune"
)

// RegisterFortuneRoutes wires the paid fortune draw endpoint.
func RegisterFortuneRoutes(r fiber.Router, h *fortune.Handler, limit fiber.Handler) {
	r.Post("/fortunes", limit, h.Draw)
}
