package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/ticketline/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing (in-memory storage)
func testConfig() *config.Config {
	return &config.Config{
		Port:          "0",
		Env:           "development",
		LogLevel:      "error",
		IssuerID:      "cd-tickets",
		CommissionBps: 500,
		RateLimitRPS:  10000,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/readyz", nil)
	s.router.ServeHTTP(w, req)

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/healthz",
		"GET:/readyz",
		"GET:/metrics",
		"GET:/v1/ws",
		"POST:/v1/accounts",
		"GET:/v1/accounts/:identity",
		"POST:/v1/tickets",
		"GET:/v1/tickets/:id",
		"POST:/v1/tickets/:id/price",
		"POST:/v1/tickets/:id/transfer",
		"POST:/v1/tickets/:id/release",
		"POST:/v1/tickets/:id/approve",
		"POST:/v1/tickets/:id/transfer-second",
		"POST:/v1/tickets/:id/settle",
		"GET:/v1/owners/:identity/quantity",
		"POST:/v1/ledger/:identity/deposit",
		"GET:/v1/ledger/:identity",
		"GET:/v1/ledger/:identity/history",
		"GET:/v1/reconciliation",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

// TestMarketplaceEndToEnd drives a full resale through the HTTP surface.
func TestMarketplaceEndToEnd(t *testing.T) {
	s := newTestServer(t)

	do := func(method, path, callerID, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if callerID != "" {
			req.Header.Set("X-Caller-ID", callerID)
		}
		s.router.ServeHTTP(w, req)
		return w
	}

	// Register both parties
	w := do("POST", "/v1/accounts", "", `{"identity":"aaron.ko","firstName":"Aaron","lastName":"Ko"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("account create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	do("POST", "/v1/accounts", "", `{"identity":"tim.ko","firstName":"Tim","lastName":"Ko"}`)

	// Fund them
	do("POST", "/v1/ledger/aaron.ko/deposit", "", `{"amount":10,"reference":"dep-1"}`)
	do("POST", "/v1/ledger/tim.ko/deposit", "", `{"amount":10,"reference":"dep-2"}`)

	// Issuer mints, userOne buys for 1, releases to issuer
	w = do("POST", "/v1/tickets", "cd-tickets", `{"eventName":"CD Release Party","seat":"A-1","price":1}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("ticket create: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = do("POST", "/v1/tickets/0/transfer", "aaron.ko", `{"seller":"cd-tickets","payment":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("transfer: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = do("POST", "/v1/tickets/0/release", "aaron.ko", "")
	if w.Code != http.StatusOK {
		t.Fatalf("release: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Resale at a revised price
	do("POST", "/v1/tickets/0/price", "aaron.ko", `{"price":2}`)
	w = do("POST", "/v1/tickets/0/approve", "tim.ko", `{"payment":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = do("POST", "/v1/tickets/0/transfer-second", "aaron.ko", `{"buyer":"tim.ko"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("transfer-second: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = do("POST", "/v1/tickets/0/settle", "aaron.ko", "")
	if w.Code != http.StatusOK {
		t.Fatalf("settle: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Issuer ends up with primary payment plus commission
	w = do("GET", "/v1/ledger/cd-tickets", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("balance: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Balance struct {
			Available int64 `json:"available"`
		} `json:"balance"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Balance.Available != 2 {
		t.Errorf("Expected issuer balance 2, got %d", resp.Balance.Available)
	}
}

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/nonexistent", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	s.router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID response header")
	}

	// Upstream-provided IDs are preserved
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", "upstream-123")
	s.router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "upstream-123" {
		t.Errorf("Expected upstream request ID to be preserved, got %q", got)
	}
}
