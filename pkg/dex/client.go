// Package dex provides the HTTP client for the remote market-making service.
package dex

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
	maxErrBodyBytes       = 4096

	apiKeyHeader = "X-API-Key"
)

// ErrNotConfigured is returned when no market-maker endpoint is configured
var ErrNotConfigured = errors.New("dex service not configured")

// SwapRequest asks the market maker to settle a swap
type SwapRequest struct {
	TokenIn      string          `json:"tokenIn"`
	TokenOut     string          `json:"tokenOut"`
	AmountIn     decimal.Decimal `json:"amountIn"`
	MinAmountOut decimal.Decimal `json:"minAmountOut"`
	UserAddress  string          `json:"userAddress"`
}

// SwapResult is the market maker's settlement report
type SwapResult struct {
	Success     bool            `json:"success"`
	AmountOut   decimal.Decimal `json:"amountOut"`
	Fee         decimal.Decimal `json:"fee"`
	PriceImpact decimal.Decimal `json:"priceImpact"`
	Error       string          `json:"error,omitempty"`
}

// Quote is an indicative amount-out for a proposed swap
type Quote struct {
	AmountOut   decimal.Decimal `json:"amountOut"`
	PriceImpact decimal.Decimal `json:"priceImpact"`
}

// TransferRequest asks the market maker to deliver an asset on another chain
type TransferRequest struct {
	Token       string          `json:"token"`
	Amount      decimal.Decimal `json:"amount"`
	Recipient   string          `json:"recipient"`
	TargetChain string          `json:"targetChain"`
}

// TransferResult reports a cross-chain delivery request
type TransferResult struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Client talks to the remote market-making service over HTTP
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient creates a market-maker client. A client with an empty base URL is
// valid; every call returns ErrNotConfigured so callers can fall back.
func NewClient(cfg *config.DEXConfig, logger *zap.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	if cfg.BaseURL != "" {
		logger.Info("DEX client configured",
			zap.String("base_url", cfg.BaseURL),
			zap.Duration("request_timeout", timeout))
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger,
	}
}

// Configured reports whether a market-maker endpoint is set
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Health checks the market-maker service
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.call(ctx, "health", http.MethodGet, "/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "ok" && out.Status != "healthy" {
		return fmt.Errorf("dex service unhealthy: %s", out.Status)
	}
	return nil
}

// SpotPrice returns the current rate between two assets
func (c *Client) SpotPrice(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	var out struct {
		Success   bool            `json:"success"`
		SpotPrice decimal.Decimal `json:"spotPrice"`
		Error     string          `json:"error,omitempty"`
	}
	path := fmt.Sprintf("/price/%s/%s", base, quote)
	if err := c.call(ctx, "spot_price", http.MethodGet, path, nil, &out); err != nil {
		return decimal.Zero, err
	}
	if !out.Success {
		return decimal.Zero, fmt.Errorf("dex price lookup failed: %s", out.Error)
	}
	return out.SpotPrice, nil
}

// QuoteAmountOut returns the indicative output for swapping amountIn
func (c *Client) QuoteAmountOut(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (*Quote, error) {
	var out Quote
	path := fmt.Sprintf("/quote/%s/%s/%s", tokenIn, tokenOut, amountIn.String())
	if err := c.call(ctx, "quote", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Swap asks the market maker to price and settle a swap
func (c *Client) Swap(ctx context.Context, req *SwapRequest) (*SwapResult, error) {
	var out SwapResult
	if err := c.call(ctx, "swap", http.MethodPost, "/swap", req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("dex swap failed: %s", out.Error)
	}
	return &out, nil
}

// RequestTransfer asks the market maker to deliver an asset on another chain.
// This is the best-effort destination leg of a cross-chain swap.
func (c *Client) RequestTransfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	var out TransferResult
	if err := c.call(ctx, "transfer", http.MethodPost, "/transfer", req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("dex transfer failed: %s", out.Error)
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, operation, method, path string, body, out any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	timer := prometheus.NewTimer(metrics.DexRequestDuration.WithLabelValues(operation))
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
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("dex", "request").Inc()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("call dex %s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		metrics.ErrorsTotal.WithLabelValues("dex", "status").Inc()
		limited := io.LimitReader(resp.Body, maxErrBodyBytes)
		b, readErr := io.ReadAll(limited)
		if readErr != nil {
			return fmt.Errorf("dex %s returned %d and body read failed: %w", operation, resp.StatusCode, readErr)
		}
		return fmt.Errorf("dex %s returned %d: %s", operation, resp.StatusCode, string(b))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
	}
	return nil
}
