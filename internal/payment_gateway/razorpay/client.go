package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrIndeterminate marks a gateway call whose outcome is unknown: the request
// may have reached the gateway before the failure. Callers must not retry with
// a fresh order, which could double-charge; the case goes to manual
// reconciliation.
var ErrIndeterminate = errors.New("razorpay: order creation outcome unknown")

// Client talks to the Razorpay Orders API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
}

// NewClient creates a gateway client with a bounded request timeout.
func NewClient(baseURL, keyID, keySecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		keyID:      keyID,
		keySecret:  keySecret,
	}
}

// KeyID returns the publishable key identifier for the checkout client. The
// key secret is never exposed.
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder registers an intended charge with the gateway.
func (c *Client) CreateOrder(ctx context.Context, reqData CreateOrderRequest) (*Order, error) {
	endpoint := "/v1/orders"

	bodyBytes, err := json.Marshal(reqData)
	if err != nil {
		return nil, fmt.Errorf("razorpay: failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("razorpay: failed to create request: %w", err)
	}

	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// A transport failure after the request was sent leaves the remote
		// outcome unknown.
		return nil, fmt.Errorf("%w: %v", ErrIndeterminate, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var errResp ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Description != "" {
			return nil, fmt.Errorf("razorpay: order creation rejected: %s (%s)", errResp.Error.Description, errResp.Error.Code)
		}
		return nil, fmt.Errorf("razorpay: unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("razorpay: failed to decode successful response: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("razorpay: order id missing in response")
	}

	return &order, nil
}

// GetOrder fetches the current gateway state of an order, used by manual
// reconciliation.
func (c *Client) GetOrder(ctx context.Context, gatewayOrderID string) (*Order, error) {
	endpoint := fmt.Sprintf("/v1/orders/%s", gatewayOrderID)

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay: failed to create status request: %w", err)
	}

	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay: failed to perform status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("razorpay: unexpected status code on status check: %d, body: %s", resp.StatusCode, string(body))
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("razorpay: failed to decode status response: %w", err)
	}

	return &order, nil
}
