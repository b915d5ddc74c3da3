package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const adminKeyHeader = "X-Admin-Key"

// AdminAuth guards operator endpoints. The configured value is a bcrypt hash
// of the shared admin key; an empty hash disables the admin surface entirely.
func AdminAuth(keyHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if keyHash == "" {
			return fiber.NewError(http.StatusForbidden, "admin endpoints disabled")
		}
		key := strings.TrimSpace(c.Get(adminKeyHeader))
		if key == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing admin key")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid admin key")
		}
		return c.Next()
	}
}
