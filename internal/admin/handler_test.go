package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/seer-points/seer_points/internal/ledger"
)

func newTestApp(t *testing.T) (*fiber.App, ledger.Store) {
	t.Helper()
	store := ledger.NewInMemory()
	svc := ledger.NewService(store, ledger.DefaultLimits(), nil, nil)
	h := NewHandler(svc)

	app := fiber.New()
	app.Post("/admin/adjustments", h.Adjust)
	app.Get("/admin/integrity", h.Integrity)
	app.Post("/admin/cleanup", h.Cleanup)
	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	if len(raw) > 0 && json.Unmarshal(raw, &decoded) != nil {
		decoded = map[string]any{"_raw": string(raw)}
	}
	return resp.StatusCode, decoded
}

func TestAdjustEndpointDebitsBelowZero(t *testing.T) {
	app, store := newTestApp(t)
	user := uuid.NewString()
	ledger.SeedWallet(store, user, 100)

	status, body := doJSON(t, app, fiber.MethodPost, "/admin/adjustments",
		fmt.Sprintf(`{"user_id":%q,"amount":-300,"reason":"chargeback","admin_user_id":"ops-1"}`, user))
	if status != fiber.StatusCreated {
		t.Fatalf("expected %d got %d: %v", fiber.StatusCreated, status, body)
	}

	w, err := store.GetWalletByUser(context.Background(), user)
	if err != nil {
		t.Fatalf("wallet lookup: %v", err)
	}
	if w.Balance != -200 {
		t.Fatalf("expected balance -200 got %d", w.Balance)
	}
}

func TestAdjustEndpointRequiresReason(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := doJSON(t, app, fiber.MethodPost, "/admin/adjustments",
		fmt.Sprintf(`{"user_id":%q,"amount":50,"admin_user_id":"ops-1"}`, uuid.NewString()))
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestIntegrityEndpointReportsNegativeBalance(t *testing.T) {
	app, store := newTestApp(t)
	user := uuid.NewString()
	ledger.SeedWallet(store, user, -50)

	status, body := doJSON(t, app, fiber.MethodGet, "/admin/integrity", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, status)
	}
	if body["ok"].(bool) {
		t.Fatalf("expected scan to flag the negative balance: %v", body)
	}
	issues := body["issues"].([]any)
	if len(issues) != 1 {
		t.Fatalf("expected one issue got %d", len(issues))
	}
	if kind := issues[0].(map[string]any)["kind"]; kind != ledger.IssueNegativeBalance {
		t.Fatalf("expected %q issue got %v", ledger.IssueNegativeBalance, kind)
	}
}

func TestCleanupEndpointDefaultsCutoff(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodPost, "/admin/cleanup", `{}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, status)
	}
	if body["audited"].(float64) != 0 {
		t.Fatalf("expected zero audited transactions got %v", body["audited"])
	}
}
