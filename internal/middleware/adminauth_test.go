package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

func adminApp(t *testing.T, keyHash string) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Use(AdminAuth(keyHash))
	app.Get("/admin/integrity", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestAdminAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	app := adminApp(t, string(hash))

	cases := []struct {
		name string
		key  string
		want int
	}{
		{"valid key", "open-sesame", fiber.StatusOK},
		{"wrong key", "guess", fiber.StatusUnauthorized},
		{"missing key", "", fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/admin/integrity", nil)
			if tc.key != "" {
				req.Header.Set(adminKeyHeader, tc.key)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestAdminAuthDisabledWithoutHash(t *testing.T) {
	app := adminApp(t, "")

	req := httptest.NewRequest(fiber.MethodGet, "/admin/integrity", nil)
	req.Header.Set(adminKeyHeader, "anything")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected %d got %d", fiber.StatusForbidden, resp.StatusCode)
	}
}
