package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/handler"
	"github.com/fintrack/vault-api-go/internal/infra/cache"
	"github.com/fintrack/vault-api-go/internal/infra/client"
	"github.com/fintrack/vault-api-go/internal/infra/localstore"
	"github.com/fintrack/vault-api-go/internal/infra/observability"
	"github.com/fintrack/vault-api-go/internal/infra/resilience"
	"github.com/fintrack/vault-api-go/internal/infra/supabase"
	"github.com/fintrack/vault-api-go/internal/infra/syncstore"
	"github.com/fintrack/vault-api-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Mock PostgREST server
// ============================================================

// mockPostgrest is a tiny in-memory PostgREST stand-in: tables of JSON
// rows with eq-filter support, enough for the queries the store issues.
type mockPostgrest struct {
	mu     sync.Mutex
	tables map[string][]map[string]any
	fail   atomic.Bool
}

func newMockPostgrest() *mockPostgrest {
	return &mockPostgrest{tables: make(map[string][]map[string]any)}
}

func (m *mockPostgrest) count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// filters extracts col=eq.value pairs from the query string.
func filters(r *http.Request) map[string]string {
	out := make(map[string]string)
	for key, vals := range r.URL.Query() {
		switch key {
		case "select", "order", "limit", "on_conflict":
			continue
		}
		if len(vals) > 0 && strings.HasPrefix(vals[0], "eq.") {
			out[key] = strings.TrimPrefix(vals[0], "eq.")
		}
	}
	return out
}

func matches(row map[string]any, f map[string]string) bool {
	for col, want := range f {
		if stringify(row[col]) != want {
			return false
		}
	}
	return true
}

func (m *mockPostgrest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.fail.Load() {
		http.Error(w, `{"message":"service unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	f := filters(r)

	m.mu.Lock()
	defer m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		out := []map[string]any{}
		for _, row := range m.tables[table] {
			if matches(row, f) {
				out = append(out, row)
			}
		}
		json.NewEncoder(w).Encode(out)

	case http.MethodPost:
		var row map[string]any
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.tables[table] = append(m.tables[table], row)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]map[string]any{row})

	case http.MethodPatch:
		var updates map[string]any
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := []map[string]any{}
		for _, row := range m.tables[table] {
			if matches(row, f) {
				for k, v := range updates {
					row[k] = v
				}
				out = append(out, row)
			}
		}
		json.NewEncoder(w).Encode(out)

	case http.MethodDelete:
		kept := m.tables[table][:0]
		for _, row := range m.tables[table] {
			if !matches(row, f) {
				kept = append(kept, row)
			}
		}
		m.tables[table] = kept
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ============================================================
// Test app wiring
// ============================================================

type testApp struct {
	router http.Handler
	sync   *syncstore.Sync
	mock   *mockPostgrest
}

func newTestApp(t *testing.T, advisorURL string) *testApp {
	t.Helper()

	mock := newMockPostgrest()
	server := httptest.NewServer(mock)
	t.Cleanup(server.Close)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cb := resilience.NewCircuitBreaker("integration")
	rcfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 10}
	httpClient := &http.Client{Timeout: 5 * time.Second}

	remote := supabase.NewClient(httpClient, server.URL, "anon-key", "service-key", cb, rcfg, logger)
	local := localstore.New()
	syn := syncstore.New(remote, local, metrics, logger)
	viewCache := cache.New[any](time.Minute)

	advisorClient := client.NewAdvisorClient(httpClient, advisorURL, cb, rcfg)

	authSvc := service.NewAuthService(syn, syn, "integration-secret", 15*time.Minute, 7*24*time.Hour, logger)
	svcs := handler.Services{
		Auth:    authSvc,
		Vault:   service.NewVaultService(syn, syn, viewCache, metrics, logger),
		Summary: service.NewSummaryService(syn, syn, viewCache, metrics, logger),
		Planner: service.NewPlannerService(syn, viewCache, logger),
		Advisor: service.NewAdvisorService(syn, syn, advisorClient, metrics, logger),
		Admin:   service.NewAdminService(syn, syn, syn, local, viewCache, logger),
		Sync:    syn,
	}

	return &testApp{
		router: handler.NewRouter(svcs, metrics, logger),
		sync:   syn,
		mock:   mock,
	}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
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
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) register(t *testing.T, email string) (token, userID string) {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/v1/auth/register", "", domain.RegisterRequest{
		Email:    email,
		Name:     "Integration User",
		Password: "correct-horse-battery",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	return resp.AccessToken, resp.User.ID
}

// ============================================================
// Tests
// ============================================================

func TestIntegration_FullFlow(t *testing.T) {
	advisorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(domain.AdviceResponse{Advice: "shift delivery spend into your trip fund"})
	}))
	defer advisorServer.Close()

	app := newTestApp(t, advisorServer.URL)
	token, userID := app.register(t, "full@example.com")

	if n := app.mock.count("users"); n != 1 {
		t.Fatalf("expected 1 user row in remote store, got %d", n)
	}

	// Record an entry; the remote store must see both the row and the
	// conditional reward write.
	rec := app.do(t, http.MethodPost, fmt.Sprintf("/v1/users/%s/transactions", userID), token,
		domain.CreateTransactionRequest{Amount: 2500, Type: domain.TypeIncome, Category: "salary", Channel: "bank"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create entry: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var entry domain.EntryResult
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.CoinsEarned != domain.CoinsPerEntry || entry.Streak != 1 {
		t.Errorf("unexpected rewards: earned=%d streak=%d", entry.CoinsEarned, entry.Streak)
	}
	if n := app.mock.count("transactions"); n != 1 {
		t.Errorf("expected 1 transaction row in remote store, got %d", n)
	}

	rec = app.do(t, http.MethodGet, fmt.Sprintf("/v1/users/%s/summary", userID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var summary domain.VaultSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.NetLiquidity != 2500 {
		t.Errorf("expected net liquidity 2500, got %v", summary.NetLiquidity)
	}
	if summary.Coins != domain.StartingCoins+domain.CoinsPerEntry {
		t.Errorf("expected %d coins, got %d", domain.StartingCoins+domain.CoinsPerEntry, summary.Coins)
	}

	rec = app.do(t, http.MethodGet, fmt.Sprintf("/v1/users/%s/advice", userID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("advice: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var advice domain.AdviceResult
	if err := json.Unmarshal(rec.Body.Bytes(), &advice); err != nil {
		t.Fatalf("decode advice: %v", err)
	}
	if advice.Advice == "" || advice.Error != "" {
		t.Errorf("unexpected advice result: %+v", advice)
	}

	rec = app.do(t, http.MethodGet, "/v1/sync/status", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync status: expected 200, got %d", rec.Code)
	}
	var status domain.SyncStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode sync status: %v", err)
	}
	if !status.Online || status.PendingOps != 0 {
		t.Errorf("expected online with no pending ops, got %+v", status)
	}
}

func TestIntegration_AdvisorOutageDegradesInline(t *testing.T) {
	advisorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer advisorServer.Close()

	app := newTestApp(t, advisorServer.URL)
	token, userID := app.register(t, "degraded@example.com")

	rec := app.do(t, http.MethodGet, fmt.Sprintf("/v1/users/%s/advice", userID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("advice during outage: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var advice domain.AdviceResult
	if err := json.Unmarshal(rec.Body.Bytes(), &advice); err != nil {
		t.Fatalf("decode advice: %v", err)
	}
	if advice.Error == "" || advice.Advice != "" {
		t.Errorf("expected inline error message, got %+v", advice)
	}
}

func TestIntegration_RemoteOutageWriteBehind(t *testing.T) {
	advisorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.AdviceResponse{})
	}))
	defer advisorServer.Close()

	app := newTestApp(t, advisorServer.URL)
	token, userID := app.register(t, "outage@example.com")

	// Remote goes dark. Entries must keep landing in the mirror.
	app.mock.fail.Store(true)

	rec := app.do(t, http.MethodPost, fmt.Sprintf("/v1/users/%s/transactions", userID), token,
		domain.CreateTransactionRequest{Amount: 75, Type: domain.TypeExpense, Category: "food", Channel: "card"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("offline entry: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.do(t, http.MethodGet, fmt.Sprintf("/v1/users/%s/summary", userID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("offline summary: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var summary domain.VaultSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.NetLiquidity != -75 {
		t.Errorf("expected net liquidity -75 from mirror, got %v", summary.NetLiquidity)
	}

	rec = app.do(t, http.MethodGet, "/v1/sync/status", token, nil)
	var status domain.SyncStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode sync status: %v", err)
	}
	if status.Online {
		t.Error("expected offline status during outage")
	}
	if status.PendingOps == 0 {
		t.Error("expected queued writes during outage")
	}

	// Remote recovers; the readiness probe replays the queue.
	app.mock.fail.Store(false)
	rec = app.do(t, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", rec.Code)
	}

	rec = app.do(t, http.MethodGet, "/v1/sync/status", token, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode sync status: %v", err)
	}
	if !status.Online || status.PendingOps != 0 {
		t.Errorf("expected online with drained queue after recovery, got %+v", status)
	}
	if n := app.mock.count("transactions"); n != 1 {
		t.Errorf("expected replayed transaction in remote store, got %d rows", n)
	}
}
