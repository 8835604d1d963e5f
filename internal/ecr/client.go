package ecr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"splitpay/internal/config"
	"splitpay/internal/domain"
)

const (
	apiKeyHeader    = "X-API-Key"
	maxResponseBody = 1 << 20
)

// SaleRequest is the payload for starting one terminal sale.
type SaleRequest struct {
	TerminalID         string           `json:"terminal_id"`
	StationID          string           `json:"station_id"`
	CashierID          string           `json:"cashier_id"`
	SessionID          string           `json:"session_id"`
	Reference          int64            `json:"reference"`
	PrecedingReference int64            `json:"preceding_reference"`
	Amount             domain.TaxAmount `json:"amount"`
	PrintReceipt       bool             `json:"print_receipt"`
}

// Response is a raw vendor response. Interpretation of the body is left to
// the caller since its shape varies between success and error modes.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the vendor answered with a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client talks to the vendor ECR terminal API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Client. Outgoing calls are traced as external
// segments when the request context carries a New Relic transaction.
func NewClient(cfg config.ECRConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newrelic.NewRoundTripper(http.DefaultTransport),
		},
	}
}

// StartCardSale starts a card sale on the terminal.
func (c *Client) StartCardSale(ctx context.Context, req SaleRequest) (*Response, error) {
	return c.post(ctx, "/transactions/card", req)
}

// StartMobileWalletSale starts a mobile-wallet sale on the terminal.
func (c *Client) StartMobileWalletSale(ctx context.Context, req SaleRequest) (*Response, error) {
	return c.post(ctx, "/transactions/mobile-wallet", req)
}

// TransactionStatus fetches the current status of a terminal transaction.
func (c *Client) TransactionStatus(ctx context.Context, transactionID, sessionID string) (*Response, error) {
	endpoint := fmt.Sprintf("%s/transactions/%s?session_id=%s",
		c.baseURL, url.PathEscape(transactionID), url.QueryEscape(sessionID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	return c.do(httpReq)
}

func (c *Client) post(ctx context.Context, path string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq)
}

func (c *Client) do(req *http.Request) (*Response, error) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read %s response after %s: %w", req.URL.Path, time.Since(start), err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
