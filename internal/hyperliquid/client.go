package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// Client provides access to the Hyperliquid REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// APIError represents an error response from the Hyperliquid API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hyperliquid api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// doRequest performs a JSON POST against the given path.
func (c *Client) doRequest(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}

	return respBody, nil
}

// doWithRetry performs a request with exponential backoff retry.
func (c *Client) doWithRetry(ctx context.Context, path string, payload any) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, path, payload)
		if err == nil {
			return body, nil
		}

		lastErr = err

		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// info performs an /info request with retries and decodes the result.
func (c *Client) info(ctx context.Context, payload any, result any) error {
	body, err := c.doWithRetry(ctx, "/info", payload)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

// GetAllMids returns mid prices for every coin in the universe.
func (c *Client) GetAllMids(ctx context.Context) (AllMids, error) {
	var mids AllMids
	if err := c.info(ctx, map[string]string{"type": "allMids"}, &mids); err != nil {
		return nil, err
	}
	return mids, nil
}

// GetMetaAndAssetCtxs returns the perpetuals universe and per-asset
// market context. The two slices are index-aligned.
func (c *Client) GetMetaAndAssetCtxs(ctx context.Context) (Meta, []AssetCtx, error) {
	var raw []json.RawMessage
	if err := c.info(ctx, map[string]string{"type": "metaAndAssetCtxs"}, &raw); err != nil {
		return Meta{}, nil, err
	}
	if len(raw) != 2 {
		return Meta{}, nil, fmt.Errorf("metaAndAssetCtxs: expected 2 elements, got %d", len(raw))
	}

	var meta Meta
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return Meta{}, nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	var ctxs []AssetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return Meta{}, nil, fmt.Errorf("unmarshal asset contexts: %w", err)
	}
	return meta, ctxs, nil
}

// GetCandleSnapshot returns OHLCV candles for coin over [start, end].
func (c *Client) GetCandleSnapshot(ctx context.Context, coin, interval string, start, end time.Time) ([]Candle, error) {
	payload := map[string]any{
		"type": "candleSnapshot",
		"req": map[string]any{
			"coin":      coin,
			"interval":  interval,
			"startTime": start.UnixMilli(),
			"endTime":   end.UnixMilli(),
		},
	}
	var candles []Candle
	if err := c.info(ctx, payload, &candles); err != nil {
		return nil, err
	}
	return candles, nil
}

// GetClearinghouseState returns the perpetuals account state for a user.
func (c *Client) GetClearinghouseState(ctx context.Context, user string) (*ClearinghouseState, error) {
	payload := map[string]string{"type": "clearinghouseState", "user": user}
	var state ClearinghouseState
	if err := c.info(ctx, payload, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetReferralState returns the referral rewards standing for a user.
func (c *Client) GetReferralState(ctx context.Context, user string) (*ReferralState, error) {
	payload := map[string]string{"type": "referral", "user": user}
	var state ReferralState
	if err := c.info(ctx, payload, &state); err != nil {
		return nil, err
	}
	return &state, nil
}
