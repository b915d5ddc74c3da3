package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/seer-points/seer_points/internal/admin"
)

// RegisterAdminRoutes wires the operator endpoints behind the admin guard.
func RegisterAdminRoutes(r fiber.Router, h *admin.Handler, guard fiber.Handler) {
	grp := r.Group("/admin", guard)
	grp.Post("/adjustments", h.Adjust)
	grp.Get("/integrity", h.Integrity)
	grp.Post("/cleanup", h.Cleanup)
}
