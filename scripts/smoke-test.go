//go:build ignore

// smoke-test.go - Hits the read-only gateway endpoints against a running instance
//
// Usage:
//   go run scripts/smoke-test.go
//
// Set GATEWAY_URL to target a non-local instance (default http://localhost:8080).

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	baseURL := os.Getenv("GATEWAY_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	fmt.Printf("=== Gateway smoke test (%s) ===\n", baseURL)
	fmt.Println()

	body, err := get(baseURL + "/health")
	if err != nil {
		fmt.Printf("✗ Gateway unreachable: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Health: %s\n", body)

	body, err = get(baseURL + "/api/v1/fees/quote?amount=100")
	if err != nil {
		fmt.Printf("✗ Fee quote failed: %v\n", err)
	} else {
		var quote struct {
			Fee       string `json:"fee"`
			NetAmount string `json:"netAmount"`
		}
		json.Unmarshal(body, &quote)
		fmt.Printf("✓ Fee quote for 100: fee=%s net=%s\n", quote.Fee, quote.NetAmount)
	}

	body, err = get(baseURL + "/api/v1/fees/treasury")
	if err != nil {
		fmt.Printf("✗ Treasury lookup failed: %v\n", err)
	} else {
		var treasury struct {
			TreasuryAddress string `json:"treasuryAddress"`
		}
		json.Unmarshal(body, &treasury)
		fmt.Printf("✓ Treasury address: %s\n", treasury.TreasuryAddress)
	}

	body, err = get(baseURL + "/api/v1/swap/rates")
	if err != nil {
		fmt.Printf("✗ Swap rates failed: %v\n", err)
	} else {
		fmt.Printf("✓ Swap rates: %s\n", body)
	}

	body, err = get(baseURL + "/api/v1/bridge/stats")
	if err != nil {
		fmt.Printf("✗ Bridge stats failed: %v\n", err)
	} else {
		var stats struct {
			TotalBridges int64  `json:"totalBridges"`
			TotalBridged string `json:"totalBridged"`
			TotalFees    string `json:"totalFees"`
		}
		json.Unmarshal(body, &stats)
		fmt.Printf("✓ Bridge stats: bridges=%d volume=%s fees=%s\n",
			stats.TotalBridges, stats.TotalBridged, stats.TotalFees)
	}

	fmt.Println()
	fmt.Println("Done.")
}

func get(url string) ([]byte, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
