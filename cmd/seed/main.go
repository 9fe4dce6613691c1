// Command seed populates a running ledger with a roster of demo agents so
// the marketplace looks like a busy city instead of an empty lot.
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

type profile struct {
	Name         string   `json:"name"`
	EndpointURL  string   `json:"endpoint_url"`
	Capabilities []string `json:"capabilities"`
	MCPVersion   string   `json:"mcp_version"`
}

var roster = []profile{
	// DeFi & Trading
	{Name: "DeFi Arbitrage Bot", Capabilities: []string{"defi", "arbitrage", "trading"}, EndpointURL: "https://api.defi-arb.agent"},
	{Name: "Yield Optimizer Pro", Capabilities: []string{"yield-farming", "defi", "optimization"}, EndpointURL: "https://api.yield-opt.agent"},
	{Name: "Cronos Price Oracle", Capabilities: []string{"price-feed", "oracle", "data-analysis"}, EndpointURL: "https://oracle.cronos.agent"},
	{Name: "Liquidity Manager", Capabilities: []string{"liquidity", "amm", "defi"}, EndpointURL: "https://api.liq-mgr.agent"},
	{Name: "Smart Order Router", Capabilities: []string{"trading", "routing", "dex"}, EndpointURL: "https://api.order-router.agent"},

	// AI & ML
	{Name: "GPT-5 Gateway", Capabilities: []string{"nlp", "text-generation", "ai"}, EndpointURL: "https://api.gpt5-gateway.agent"},
	{Name: "DALL-E Image Generator", Capabilities: []string{"image-generation", "ai", "creative"}, EndpointURL: "https://api.dalle-gen.agent"},
	{Name: "Sentiment Analyzer", Capabilities: []string{"sentiment", "nlp", "data-analysis"}, EndpointURL: "https://api.sentiment.agent"},
	{Name: "Code Reviewer Bot", Capabilities: []string{"code-review", "ai", "development"}, EndpointURL: "https://api.code-review.agent"},
	{Name: "Translation Engine", Capabilities: []string{"translation", "nlp", "localization"}, EndpointURL: "https://api.translate.agent"},

	// Data & Analytics
	{Name: "On-Chain Analytics", Capabilities: []string{"blockchain", "analytics", "data-analysis"}, EndpointURL: "https://api.chain-analytics.agent"},
	{Name: "Market Intelligence", Capabilities: []string{"market-data", "research", "data-analysis"}, EndpointURL: "https://api.market-intel.agent"},
	{Name: "Social Trend Tracker", Capabilities: []string{"social-media", "trends", "monitoring"}, EndpointURL: "https://api.social-trends.agent"},
	{Name: "Whale Watcher", Capabilities: []string{"whale-tracking", "blockchain", "alerts"}, EndpointURL: "https://api.whale-watch.agent"},

	// Automation & Integration
	{Name: "Discord Bot Builder", Capabilities: []string{"discord", "automation", "bots"}, EndpointURL: "https://api.discord-bot.agent"},
	{Name: "Telegram Notifier", Capabilities: []string{"telegram", "notifications", "messaging"}, EndpointURL: "https://api.tg-notify.agent"},
	{Name: "GitHub Actions Runner", Capabilities: []string{"ci-cd", "automation", "github"}, EndpointURL: "https://api.gh-actions.agent"},
	{Name: "API Aggregator", Capabilities: []string{"api", "aggregation", "integration"}, EndpointURL: "https://api.aggregator.agent"},

	// Security & Compliance
	{Name: "Smart Contract Auditor", Capabilities: []string{"security", "audit", "smart-contracts"}, EndpointURL: "https://api.sc-audit.agent"},
	{Name: "Rug Pull Detector", Capabilities: []string{"security", "detection", "defi"}, EndpointURL: "https://api.rug-detect.agent"},
	{Name: "KYC/AML Validator", Capabilities: []string{"compliance", "kyc", "verification"}, EndpointURL: "https://api.kyc-aml.agent"},

	// Creative & Content
	{Name: "NFT Art Generator", Capabilities: []string{"nft", "art", "creative"}, EndpointURL: "https://api.nft-art.agent"},
	{Name: "Content Writer Pro", Capabilities: []string{"writing", "content", "marketing"}, EndpointURL: "https://api.content-writer.agent"},
	{Name: "Video Summarizer", Capabilities: []string{"video", "summarization", "ai"}, EndpointURL: "https://api.video-sum.agent"},

	// Specialized
	{Name: "Legal Document Analyzer", Capabilities: []string{"legal", "document-analysis", "compliance"}, EndpointURL: "https://api.legal-doc.agent"},
	{Name: "Medical Diagnosis Assistant", Capabilities: []string{"healthcare", "diagnosis", "ai"}, EndpointURL: "https://api.med-assist.agent"},
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "ledger base URL")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	log.Printf("Seeding %d agents into %s", len(roster), *baseURL)

	var registered, skipped, failed int
	for i, agent := range roster {
		address := randomAddress()
		agent.MCPVersion = "1.0"

		body, err := json.Marshal(agent)
		if err != nil {
			log.Fatalf("marshal profile: %v", err)
		}

		req, err := http.NewRequest(http.MethodPost, *baseURL+"/api/agents", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("build request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Caller-Address", address)

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("[%d/%d] %s: %v", i+1, len(roster), agent.Name, err)
			failed++
			continue
		}
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			log.Printf("[%d/%d] %s registered as %s", i+1, len(roster), agent.Name, address)
			registered++
		case http.StatusConflict:
			log.Printf("[%d/%d] %s already registered", i+1, len(roster), agent.Name)
			skipped++
		default:
			log.Printf("[%d/%d] %s failed with status %d", i+1, len(roster), agent.Name, resp.StatusCode)
			failed++
		}

		// Gentle pacing, same reason a chain seeder backs off: rate limits.
		time.Sleep(100 * time.Millisecond)
	}

	log.Printf("Seeding complete: %d registered, %d skipped, %d failed", registered, skipped, failed)
}

func randomAddress() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("random address: %v", err)
	}
	return fmt.Sprintf("0x%s", hex.EncodeToString(buf))
}
