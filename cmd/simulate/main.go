// Command simulate drives one full marketplace cycle against a running
// ledger: register two agents, trip the pay-or-retry path, fund the hirer,
// settle a hire and an agent-to-agent hire, then read back the results.
package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

type client struct {
	baseURL string
	http    *http.Client
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "ledger base URL")
	amount := flag.Int64("amount", 1000, "hire amount in base units")
	flag.Parse()

	c := &client{baseURL: *baseURL, http: &http.Client{Timeout: 10 * time.Second}}

	provider := randomAddress()
	requester := randomAddress()

	log.Printf("provider:  %s", provider)
	log.Printf("requester: %s", requester)

	// 1. Register both sides.
	c.mustCall(http.StatusCreated, "register provider", http.MethodPost, "/api/agents", provider, map[string]interface{}{
		"name":         "Oracle Prime",
		"endpoint_url": "https://oracle.example.agent",
		"capabilities": []string{"price-feed", "oracle"},
		"mcp_version":  "1.0",
	})
	c.mustCall(http.StatusCreated, "register requester", http.MethodPost, "/api/agents", requester, map[string]interface{}{
		"name":         "Strategy Bot",
		"endpoint_url": "https://strategy.example.agent",
		"capabilities": []string{"trading"},
		"mcp_version":  "1.0",
	})

	// 2. Hire with an empty account. The ledger must answer 402 and leave
	// every balance and counter untouched.
	status := c.call("hire without funds", http.MethodPost, "/api/hires", requester, map[string]interface{}{
		"agent_address": provider,
		"amount":        *amount,
	})
	if status != http.StatusPaymentRequired {
		log.Fatalf("expected 402 for unfunded hire, got %d", status)
	}
	log.Printf("unfunded hire correctly rejected with 402")

	// 3. Fund the requester and retry.
	c.mustCall(http.StatusOK, "deposit", http.MethodPost, "/api/accounts/"+requester+"/deposit", "", map[string]interface{}{
		"amount": *amount * 3,
	})
	c.mustCall(http.StatusOK, "hire", http.MethodPost, "/api/hires", requester, map[string]interface{}{
		"agent_address": provider,
		"amount":        *amount,
	})

	// 4. Agent-to-agent: the requester is itself a registered agent, so the
	// dedicated path works and tracks its spending.
	c.mustCall(http.StatusOK, "agent-to-agent hire", http.MethodPost, "/api/hires/agent", requester, map[string]interface{}{
		"agent_address": provider,
		"amount":        *amount,
	})

	// 5. Read back the provider and the protocol stats.
	var agent struct {
		ReputationScore int64 `json:"reputation_score"`
		CompletedJobs   int64 `json:"completed_jobs"`
		TotalEarnings   int64 `json:"total_earnings"`
	}
	c.mustGet("provider state", "/api/agents/"+provider, &agent)
	log.Printf("provider after 2 hires: reputation=%d jobs=%d earnings=%d",
		agent.ReputationScore, agent.CompletedJobs, agent.TotalEarnings)

	var stats struct {
		TotalAgents      int64 `json:"total_agents"`
		ActiveAgents     int64 `json:"active_agents"`
		CumulativeVolume int64 `json:"cumulative_volume"`
	}
	c.mustGet("protocol stats", "/api/stats", &stats)
	log.Printf("protocol: agents=%d active=%d volume=%d",
		stats.TotalAgents, stats.ActiveAgents, stats.CumulativeVolume)

	log.Printf("simulation complete")
}

func (c *client) call(what, method, path, caller string, payload interface{}) int {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("%s: marshal: %v", what, err)
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("%s: build request: %v", what, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("X-Caller-Address", caller)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s: %v", what, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func (c *client) mustCall(want int, what, method, path, caller string, payload interface{}) {
	if status := c.call(what, method, path, caller, payload); status != want {
		log.Fatalf("%s: expected %d, got %d", what, want, status)
	}
	log.Printf("%s: ok", what)
}

func (c *client) mustGet(what, path string, out interface{}) {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		log.Fatalf("%s: %v", what, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("%s: expected 200, got %d", what, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Fatalf("%s: decode: %v", what, err)
	}
}

func randomAddress() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("random address: %v", err)
	}
	return fmt.Sprintf("0x%s", hex.EncodeToString(buf))
}
