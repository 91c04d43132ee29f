package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redlantern/bookkeeper/internal/domain"
	"github.com/redlantern/bookkeeper/internal/handler"
	"github.com/redlantern/bookkeeper/internal/infra/cache"
	"github.com/redlantern/bookkeeper/internal/infra/observability"
	"github.com/redlantern/bookkeeper/internal/infra/sqlitekv"
	"github.com/redlantern/bookkeeper/internal/infra/uploads"
	"github.com/redlantern/bookkeeper/internal/records"
	"github.com/redlantern/bookkeeper/internal/service"

	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	kv, err := sqlitekv.Open(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	cols := records.New(kv)
	metrics := observability.NewMetrics()

	authSvc := service.NewAuthService(cols, cache.New[domain.Session](time.Minute), "test-secret", time.Hour, logger)
	if err := authSvc.SeedDefaultAdmin(context.Background(), "admin", "secret"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	uploadStore, err := uploads.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("upload store: %v", err)
	}

	return handler.NewRouter(
		kv,
		authSvc,
		service.NewExpenseService(cols, metrics, logger),
		service.NewIncomeService(cols, metrics, logger),
		service.NewBalanceService(cols, metrics, logger),
		uploadStore,
		metrics,
		logger,
	)
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, router http.Handler, username, password string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result domain.LoginResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return result.Token
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/v1/expenses", "/v1/income", "/v1/balances", "/v1/users"} {
		rec := doJSON(t, router, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 without token, got %d", path, rec.Code)
		}
	}
}

func TestLoginBadCredentials(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestExpenseLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router, "admin", "secret")

	rec := doJSON(t, router, http.MethodPost, "/v1/expenses", token, domain.ExpenseInput{
		Date:     "2025-07-01",
		Amount:   42,
		Category: "Cash",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.Expense
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode expense: %v", err)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/expenses?month=2025-07", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), created.ID) {
		t.Error("listed expenses do not contain the created record")
	}

	rec = doJSON(t, router, http.MethodPut, "/v1/expenses/"+created.ID+"/reimbursed", token, map[string]bool{"isReimbursed": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("reimburse: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodDelete, "/v1/expenses/"+created.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/v1/expenses/"+created.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestBalancesOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router, "admin", "secret")

	rec := doJSON(t, router, http.MethodPost, "/v1/income", token, domain.IncomeInput{
		Date: "2025-07-01",
		Room: "K2",
		Bill: 300,
		Paid: 300,
		PaymentMethods: []domain.PaymentMethod{
			{Type: "Card", Amount: 300},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create income: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPut, "/v1/balances/overrides/Cash", token, map[string]float64{"amount": 1000})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set override: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/balances", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get balances: expected 200, got %d", rec.Code)
	}
	var sheet domain.BalanceSheet
	if err := json.Unmarshal(rec.Body.Bytes(), &sheet); err != nil {
		t.Fatalf("decode sheet: %v", err)
	}
	if sheet.Balances["Card"].Final != 300 {
		t.Errorf("Card: expected 300, got %v", sheet.Balances["Card"].Final)
	}
	if sheet.Balances["Cash"].Final != 1000 {
		t.Errorf("Cash: expected overridden 1000, got %v", sheet.Balances["Cash"].Final)
	}

	rec = doJSON(t, router, http.MethodPut, "/v1/balances/overrides/Bitcoin", token, map[string]float64{"amount": 1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown payment type: expected 400, got %d", rec.Code)
	}
}

func TestNonAdminForbiddenOnAdminRoutes(t *testing.T) {
	router := newTestRouter(t)
	adminToken := login(t, router, "admin", "secret")

	rec := doJSON(t, router, http.MethodPost, "/v1/users", adminToken, map[string]any{
		"username": "alice",
		"password": "pw",
		"isAdmin":  false,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	aliceToken := login(t, router, "alice", "pw")

	rec = doJSON(t, router, http.MethodGet, "/v1/users", aliceToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("list users as member: expected 403, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/expenses/export", aliceToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("export as member: expected 403, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/metrics/summary", aliceToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("metrics summary as member: expected 403, got %d", rec.Code)
	}
}

func TestExpenseExportDownload(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router, "admin", "secret")

	rec := doJSON(t, router, http.MethodPost, "/v1/expenses", token, domain.ExpenseInput{
		Date:     "2025-07-01",
		Amount:   10,
		Category: "Cash",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/expenses/export", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected text/csv content type, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "expenses-") {
		t.Errorf("expected expenses- filename in disposition, got %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "Date,Amount,VAT,Category") {
		t.Errorf("unexpected CSV body: %q", rec.Body.String())
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router, "admin", "secret")

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/logout", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/auth/me", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestStoreFailureDuringAuthIsNotUnauthorized(t *testing.T) {
	logger := zap.NewNop()

	kv, err := sqlitekv.Open(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	cols := records.New(kv)
	metrics := observability.NewMetrics()
	authSvc := service.NewAuthService(cols, cache.New[domain.Session](time.Minute), "test-secret", time.Hour, logger)
	if err := authSvc.SeedDefaultAdmin(context.Background(), "admin", "secret"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	uploadStore, err := uploads.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("upload store: %v", err)
	}
	router := handler.NewRouter(
		kv,
		authSvc,
		service.NewExpenseService(cols, metrics, logger),
		service.NewIncomeService(cols, metrics, logger),
		service.NewBalanceService(cols, metrics, logger),
		uploadStore,
		metrics,
		logger,
	)

	token := login(t, router, "admin", "secret")

	// Kill the store so resolving the session fails. The failure must not
	// masquerade as a credential rejection.
	kv.Close()

	rec := doJSON(t, router, http.MethodGet, "/v1/auth/me", token, nil)
	if rec.Code == http.StatusUnauthorized {
		t.Fatalf("store failure reported as 401: %s", rec.Body.String())
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for store failure, got %d", rec.Code)
	}
}
