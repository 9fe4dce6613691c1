package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"agentmarket.ledger/internal/adapters/repository/memory"
	"agentmarket.ledger/internal/core/services"
)

const (
	providerAddr  = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	requesterAddr = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	treasuryAddr  = "0x00000000000000000000000000000000000000fe"
)

type fixture struct {
	server *Server
	store  *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	events := memory.NewEventLog()

	registry := services.NewRegistryService(store, events, 100)
	hiring := services.NewHiringService(store, events, events, treasuryAddr, 200, 5)
	stats := services.NewStatsService(store)
	accounts := services.NewAccountService(store)
	hub := NewHub(events)

	// Health service is backed by live DB and Redis handles; the endpoints
	// that use it are not exercised here.
	server := NewServer(registry, hiring, stats, accounts, nil, events, hub)
	return &fixture{server: server, store: store}
}

func (f *fixture) do(t *testing.T, method, path, caller string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("X-Caller-Address", caller)
	}
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) register(t *testing.T, caller, name string, capabilities []string) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/agents", caller, map[string]interface{}{
		"name":         name,
		"endpoint_url": "https://example.agent",
		"capabilities": capabilities,
		"mcp_version":  "1.0",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", name, rec.Code, rec.Body.String())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestRegisterEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/agents", providerAddr, map[string]interface{}{
		"name":         "Oracle Prime",
		"capabilities": []string{"price-feed"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}

	var agent struct {
		WalletAddress   string `json:"wallet_address"`
		ReputationScore int64  `json:"reputation_score"`
		IsActive        bool   `json:"is_active"`
	}
	decode(t, rec, &agent)
	if agent.WalletAddress != providerAddr || agent.ReputationScore != 100 || !agent.IsActive {
		t.Errorf("unexpected agent payload: %+v", agent)
	}
}

func TestRegisterWithoutCaller(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/agents", "", map[string]interface{}{"name": "Nobody"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	var resp struct {
		Error string `json:"error"`
	}
	decode(t, rec, &resp)
	if resp.Error != "Unauthorized" {
		t.Errorf("error code = %q, want Unauthorized", resp.Error)
	}
}

func TestRegisterDuplicateEndpoint(t *testing.T) {
	f := newFixture(t)
	f.register(t, providerAddr, "Oracle Prime", nil)

	rec := f.do(t, http.MethodPost, "/api/agents", providerAddr, map[string]interface{}{"name": "Again"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	decode(t, rec, &resp)
	if resp.Error != "AlreadyRegistered" {
		t.Errorf("error code = %q, want AlreadyRegistered", resp.Error)
	}
}

func TestGetAgentEndpoint(t *testing.T) {
	f := newFixture(t)
	f.register(t, providerAddr, "Oracle Prime", []string{"price-feed"})

	rec := f.do(t, http.MethodGet, "/api/agents/"+providerAddr, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/agents/"+requesterAddr, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown agent: status = %d, want 404", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	f := newFixture(t)
	f.register(t, providerAddr, "Oracle Prime", []string{"price-feed", "oracle"})
	f.register(t, requesterAddr, "Strategy Bot", []string{"trading"})

	rec := f.do(t, http.MethodGet, "/api/agents/search?capability=oracle", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Addresses []string `json:"addresses"`
		Count     int      `json:"count"`
	}
	decode(t, rec, &resp)
	if resp.Count != 1 || len(resp.Addresses) != 1 || resp.Addresses[0] != providerAddr {
		t.Errorf("unexpected search result: %+v", resp)
	}
}

func TestHireFlow(t *testing.T) {
	f := newFixture(t)
	f.register(t, providerAddr, "Oracle Prime", []string{"price-feed"})

	hire := map[string]interface{}{"agent_address": providerAddr, "amount": 1000}

	// Unfunded hire answers 402.
	rec := f.do(t, http.MethodPost, "/api/hires", requesterAddr, hire)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("unfunded hire: status = %d, want 402; body %s", rec.Code, rec.Body.String())
	}

	// Fund and retry.
	rec = f.do(t, http.MethodPost, "/api/accounts/"+requesterAddr+"/deposit", "", map[string]interface{}{"amount": 3000})
	if rec.Code != http.StatusOK {
		t.Fatalf("deposit: status = %d, want 200", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/hires", requesterAddr, hire)
	if rec.Code != http.StatusOK {
		t.Fatalf("hire: status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	var receipt struct {
		GrossAmount   int64 `json:"gross_amount"`
		ProtocolFee   int64 `json:"protocol_fee"`
		NetPayment    int64 `json:"net_payment"`
		NewReputation int64 `json:"new_reputation"`
	}
	decode(t, rec, &receipt)
	if receipt.ProtocolFee != 20 || receipt.NetPayment != 980 || receipt.NewReputation != 105 {
		t.Errorf("unexpected receipt: %+v", receipt)
	}

	// The settled hire shows up on the feed.
	rec = f.do(t, http.MethodGet, "/api/hires/feed", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("feed: status = %d, want 200", rec.Code)
	}
	var feed struct {
		Total int64 `json:"total"`
	}
	decode(t, rec, &feed)
	if feed.Total != 1 {
		t.Errorf("feed total = %d, want 1", feed.Total)
	}

	// And in the protocol stats.
	rec = f.do(t, http.MethodGet, "/api/stats", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status = %d, want 200", rec.Code)
	}
	var stats struct {
		TotalAgents      int64 `json:"total_agents"`
		CumulativeVolume int64 `json:"cumulative_volume"`
	}
	decode(t, rec, &stats)
	if stats.TotalAgents != 1 || stats.CumulativeVolume != 1000 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHireInactiveAgentEndpoint(t *testing.T) {
	f := newFixture(t)
	f.register(t, providerAddr, "Oracle Prime", nil)

	rec := f.do(t, http.MethodPost, "/api/agents/deactivate", providerAddr, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: status = %d, want 200", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/accounts/"+requesterAddr+"/deposit", "", map[string]interface{}{"amount": 3000})
	if rec.Code != http.StatusOK {
		t.Fatalf("deposit: status = %d, want 200", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/hires", requesterAddr, map[string]interface{}{
		"agent_address": providerAddr,
		"amount":        1000,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("hire of inactive agent: status = %d, want 409; body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Error string `json:"error"`
	}
	decode(t, rec, &resp)
	if resp.Error != "AgentInactive" {
		t.Errorf("error code = %q, want AgentInactive", resp.Error)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/accounts/"+requesterAddr, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance: status = %d, want 200", rec.Code)
	}
	var resp struct {
		Balance int64 `json:"balance"`
	}
	decode(t, rec, &resp)
	if resp.Balance != 0 {
		t.Errorf("fresh account balance = %d, want 0", resp.Balance)
	}

	// Non-positive deposits are rejected.
	rec = f.do(t, http.MethodPost, "/api/accounts/"+requesterAddr+"/deposit", "", map[string]interface{}{"amount": -5})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("negative deposit: status = %d, want 402", rec.Code)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	f := newFixture(t)
	f.register(t, providerAddr, "Oracle Prime", nil)
	f.register(t, requesterAddr, "Strategy Bot", nil)

	rec := f.do(t, http.MethodGet, "/api/agents/leaderboard?limit=1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard: status = %d, want 200", rec.Code)
	}
	var agents []struct {
		WalletAddress string `json:"wallet_address"`
	}
	decode(t, rec, &agents)
	if len(agents) != 1 {
		t.Fatalf("leaderboard size = %d, want 1", len(agents))
	}
}

func TestIsRegisteredEndpoint(t *testing.T) {
	f := newFixture(t)
	f.register(t, providerAddr, "Oracle Prime", nil)

	rec := f.do(t, http.MethodGet, "/api/agents/"+providerAddr+"/registered", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Registered bool `json:"registered"`
	}
	decode(t, rec, &resp)
	if !resp.Registered {
		t.Error("expected registered = true")
	}

	rec = f.do(t, http.MethodGet, "/api/agents/"+requesterAddr+"/registered", "", nil)
	decode(t, rec, &resp)
	if resp.Registered {
		t.Error("expected registered = false")
	}
}
