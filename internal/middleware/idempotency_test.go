package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/seer-points/seer_points/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *atomic.Int64, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	logger := logging.Discard()
	app.Use(Idempotency(cache, time.Minute, logger))

	var hits atomic.Int64
	app.Post("/deposits", func(c *fiber.Ctx) error {
		hits.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
	})
	app.Post("/transfers", func(c *fiber.Ctx) error {
		hits.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"moved": true})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, &hits, cleanup
}

func postJSON(t *testing.T, app *fiber.App, path, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	rec := httptest.NewRecorder()
	rec.Code = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	rec.Body.Write(body)
	return rec
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	app, hits, cleanup := setupTestApp(t)
	defer cleanup()

	for i := 0; i < 2; i++ {
		rec := postJSON(t, app, "/deposits", "")
		if rec.Code != fiber.StatusCreated {
			t.Fatalf("expected %d got %d", fiber.StatusCreated, rec.Code)
		}
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", got)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, hits, cleanup := setupTestApp(t)
	defer cleanup()

	first := postJSON(t, app, "/deposits", "abc123")
	if first.Code != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, first.Code)
	}

	second := postJSON(t, app, "/deposits", "abc123")
	if second.Code != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("expected cached payload %s got %s", first.Body.String(), second.Body.String())
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected handler to run once, ran %d times", got)
	}

	var decoded map[string]any
	if err := json.Unmarshal(second.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
}

func TestIdempotencyKeyScopedByPath(t *testing.T) {
	app, hits, cleanup := setupTestApp(t)
	defer cleanup()

	deposit := postJSON(t, app, "/deposits", "shared-key")
	transfer := postJSON(t, app, "/transfers", "shared-key")

	if deposit.Body.String() == transfer.Body.String() {
		t.Fatalf("responses should differ across endpoints, both were %s", deposit.Body.String())
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected both handlers to run, ran %d times", got)
	}
}
