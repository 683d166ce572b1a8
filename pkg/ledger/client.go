// Package ledger provides the HTTP client for the native blockchain service.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexchain-labs/asset-gateway/internal/metrics"
	"github.com/nexchain-labs/asset-gateway/pkg/config"
)

const (
	defaultRequestTimeout = 15 * time.Second

	// Limit error-body reads so we don't accidentally slurp huge responses.
	maxErrBodyBytes = 4096
)

// Client talks to the native blockchain service over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient creates a ledger service client
func NewClient(cfg *config.LedgerConfig, logger *zap.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	logger.Info("Ledger client configured",
		zap.String("base_url", cfg.BaseURL),
		zap.Duration("request_timeout", timeout))

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger,
	}
}

// Balance returns the spendable balance of an address
func (c *Client) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	var out struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if err := c.call(ctx, "balance", http.MethodGet, "/balance/"+address, nil, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Balance, nil
}

// SendTransaction submits a transfer. The debit is applied atomically by the
// ledger service, which is the authority on overdrafts.
func (c *Client) SendTransaction(ctx context.Context, req *SendRequest) (*Transaction, error) {
	var out struct {
		Success     bool         `json:"success"`
		Transaction *Transaction `json:"transaction"`
		Error       string       `json:"error,omitempty"`
	}
	if err := c.call(ctx, "send_transaction", http.MethodPost, "/transactions", req, &out); err != nil {
		return nil, err
	}
	if !out.Success || out.Transaction == nil {
		return nil, fmt.Errorf("ledger rejected transaction: %s", out.Error)
	}
	return out.Transaction, nil
}

// MintTokens asks the ledger to create amount at address, tagged with reason
func (c *Client) MintTokens(ctx context.Context, address string, amount decimal.Decimal, reason string) (*MintResult, error) {
	body := map[string]any{
		"address": address,
		"amount":  amount,
		"reason":  reason,
	}
	var out struct {
		Success         bool   `json:"success"`
		TransactionHash string `json:"transactionHash"`
		Error           string `json:"error,omitempty"`
	}
	if err := c.call(ctx, "mint_tokens", http.MethodPost, "/mint", body, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("ledger rejected mint: %s", out.Error)
	}
	return &MintResult{TransactionHash: out.TransactionHash}, nil
}

// TransactionHistory returns all history rows involving an address
func (c *Client) TransactionHistory(ctx context.Context, address string) ([]HistoryEntry, error) {
	var out struct {
		Transactions []HistoryEntry `json:"transactions"`
	}
	if err := c.call(ctx, "transaction_history", http.MethodGet, "/history/"+address, nil, &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

// BlockchainInfo returns the current chain snapshot
func (c *Client) BlockchainInfo(ctx context.Context) (*BlockchainInfo, error) {
	var out BlockchainInfo
	if err := c.call(ctx, "blockchain_info", http.MethodGet, "/chain", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PendingTransactions returns transactions accepted but not yet in a block
func (c *Client) PendingTransactions(ctx context.Context) ([]Transaction, error) {
	var out struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := c.call(ctx, "pending_transactions", http.MethodGet, "/pending", nil, &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

// VerifyBridgeTransaction asks the ledger backend to verify a claimed deposit
// on an external chain
func (c *Client) VerifyBridgeTransaction(ctx context.Context, req *VerifyRequest) (*Verification, error) {
	var out Verification
	if err := c.call(ctx, "verify_bridge_transaction", http.MethodPost, "/bridge/verify", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health probes the ledger service health endpoint
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, "health", http.MethodGet, "/health", nil, nil)
}

// call performs one HTTP round trip with the uniform request deadline applied
func (c *Client) call(ctx context.Context, operation, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	timer := prometheus.NewTimer(metrics.LedgerRequestDuration.WithLabelValues(operation))
	defer timer.ObserveDuration()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("ledger", "request").Inc()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("call ledger %s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		metrics.ErrorsTotal.WithLabelValues("ledger", "status").Inc()
		return readHTTPError(resp, operation)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
	}
	return nil
}

func readHTTPError(resp *http.Response, operation string) error {
	limited := io.LimitReader(resp.Body, maxErrBodyBytes)

	b, err := io.ReadAll(limited)
	if err != nil {
		return fmt.Errorf("ledger %s returned %d and body read failed: %w", operation, resp.StatusCode, err)
	}

	// The ledger wraps errors as {"error": "..."}; fall back to the raw body.
	var payload struct {
		Error string `json:"error"`
	}
	if jsonErr := json.Unmarshal(b, &payload); jsonErr == nil && payload.Error != "" {
		return fmt.Errorf("ledger %s returned %d: %s", operation, resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("ledger %s returned %d: %s", operation, resp.StatusCode, string(b))
}
