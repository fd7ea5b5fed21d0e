package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Config holds custody provider API configuration.
type Config struct {
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url"`
	WalletID      string        `yaml:"wallet_id"`
	PlatformAccount string      `yaml:"platform_account"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Client is a thin HTTP client for the custody provider's REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a custody API client.
func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

func (c *Client) getBalance(ctx context.Context, asset string) (*balanceResponse, error) {
	endpoint := fmt.Sprintf("/v1/wallets/%s/balance?asset=%s", c.cfg.WalletID, url.QueryEscape(asset))
	var resp balanceResponse
	if err := c.doRequest(ctx, http.MethodGet, endpoint, "", nil, &resp); err != nil {
		return nil, fmt.Errorf("get balance failed: %w", err)
	}
	return &resp, nil
}

func (c *Client) transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	endpoint := fmt.Sprintf("/v1/wallets/%s/transfers", c.cfg.WalletID)
	var resp TransferResult
	if err := c.doRequest(ctx, http.MethodPost, endpoint, req.IdempotencyKey, req, &resp); err != nil {
		return nil, fmt.Errorf("transfer failed: %w", err)
	}
	return &resp, nil
}

func (c *Client) estimateFee(ctx context.Context, req FeeRequest) (*FeeEstimate, error) {
	endpoint := fmt.Sprintf("/v1/wallets/%s/transfers/estimate", c.cfg.WalletID)
	var resp FeeEstimate
	if err := c.doRequest(ctx, http.MethodPost, endpoint, "", req, &resp); err != nil {
		return nil, fmt.Errorf("estimate fee failed: %w", err)
	}
	return &resp, nil
}

func (c *Client) transferStatus(ctx context.Context, providerRef string) (*statusResponse, error) {
	endpoint := fmt.Sprintf("/v1/wallets/%s/transfers/%s", c.cfg.WalletID, url.PathEscape(providerRef))
	var resp statusResponse
	if err := c.doRequest(ctx, http.MethodGet, endpoint, "", nil, &resp); err != nil {
		return nil, fmt.Errorf("get transfer status failed: %w", err)
	}
	return &resp, nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint, idempotencyKey string, body, response any) error {
	fullURL := c.cfg.BaseURL + endpoint

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", c.cfg.APIKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	c.log.Debug("custody API request", "method", method, "url", fullURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	c.log.Debug("custody API response", "status_code", resp.StatusCode, "body_size", len(respBody))

	if resp.StatusCode >= 400 {
		var errResp APIError
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			errResp.StatusCode = resp.StatusCode
			return &errResp
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if response != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
