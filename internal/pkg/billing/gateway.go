package billing

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
)

// Gateway mints payable orders at the payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, in GatewayOrderRequest) (*GatewayOrder, error)
}

// GatewayOrderRequest is the order creation payload. Amount is in minor units.
type GatewayOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// GatewayOrder is the provider's view of a created order.
type GatewayOrder struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// RazorpayClient talks to the Razorpay orders API with HTTP basic auth.
type RazorpayClient struct {
	KeyID      string
	KeySecret  string
	APIBaseURL string

	HTTPClient *http.Client
}

func NewRazorpayClient(cfg Config) *RazorpayClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = defaultRazorpayAPIBaseURL
	}
	return &RazorpayClient{
		KeyID:      cfg.KeyID,
		KeySecret:  cfg.KeySecret,
		APIBaseURL: base,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateOrder creates an auto-captured order and returns the gateway order id.
func (c *RazorpayClient) CreateOrder(ctx context.Context, in GatewayOrderRequest) (*GatewayOrder, error) {
	if strings.TrimSpace(c.KeyID) == "" || strings.TrimSpace(c.KeySecret) == "" {
		return nil, ErrGatewayNotConfigured
	}
	if in.Amount <= 0 {
		return nil, errors.New("order amount must be positive")
	}

	payload := map[string]interface{}{
		"amount":          in.Amount,
		"currency":        in.Currency,
		"receipt":         in.Receipt,
		"payment_capture": 1,
	}
	if len(in.Notes) > 0 {
		payload["notes"] = in.Notes
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.APIBaseURL, "/") + "/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("razorpay order creation failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var out GatewayOrder
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("razorpay order creation returned empty id")
	}
	return &out, nil
}
