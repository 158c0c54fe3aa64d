// Package messaging moves rendered patient texts from the automation engine
// to the third-party messaging gateway. Delivery is at-least-once; the
// sent-flags and the send journal provide the idempotent local bookkeeping.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/clinova/dentalsync/pkg/logging"
)

// GatewayConfig controls how the gateway client behaves.
type GatewayConfig struct {
	BaseURL    string
	APIKey     string
	FromNumber string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
}

// GatewayClient wraps the messaging gateway's send endpoint with bounded
// timeouts and retries on transient transport failures.
type GatewayClient struct {
	baseURL    string
	apiKey     string
	fromNumber string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
}

// NewGatewayClient creates a configured gateway client.
func NewGatewayClient(cfg GatewayConfig, logger *logging.Logger) (*GatewayClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("messaging: gateway API key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("messaging: gateway base URL is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	return &GatewayClient{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		fromNumber: strings.TrimSpace(cfg.FromNumber),
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}, nil
}

// SendText sends a rendered text body to a destination phone number.
func (c *GatewayClient) SendText(ctx context.Context, to, body string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("messaging: destination phone is required")
	}
	payload, err := json.Marshal(struct {
		From string `json:"from"`
		To   string `json:"to"`
		Text string `json:"text"`
	}{
		From: c.fromNumber,
		To:   to,
		Text: body,
	})
	if err != nil {
		return fmt.Errorf("messaging: marshal send request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lastErr = c.post(ctx, payload)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		c.logger.Warn("messaging: transient gateway failure, retrying",
			"attempt", attempt, "max", c.maxRetries, "error", lastErr)
		if attempt < c.maxRetries {
			select {
			case <-time.After(c.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (c *GatewayClient) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("messaging: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messaging: gateway request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &gatewayError{status: resp.StatusCode, body: string(snippet)}
}

type gatewayError struct {
	status int
	body   string
}

func (e *gatewayError) Error() string {
	return fmt.Sprintf("messaging: gateway returned %d: %s", e.status, e.body)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var gwErr *gatewayError
	if errors.As(err, &gwErr) {
		return gwErr.status == http.StatusTooManyRequests || gwErr.status >= 500
	}
	// http.Client wraps transport errors in *url.Error; treat those as
	// transient unless the context was cancelled outright.
	return strings.Contains(err.Error(), "messaging: gateway request:")
}
