package callinoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.callinoo.com"
	responseBodyReadLimit int64 = 2048
)

var errTokenRequired = errors.New("callinoo token is required")

// Client wraps the Callinoo supplier API used to provision Telegram Premium.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Callinoo client given an API token.
func NewClient(token string, opts ...Option) (*Client, error) {
	trimmedToken := strings.TrimSpace(token)
	if trimmedToken == "" {
		return nil, errTokenRequired
	}

	client := &Client{
		token:      trimmedToken,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// PremiumOrder is the supplier-side provisioning result.
type PremiumOrder struct {
	OrderID        string `json:"order_id"`
	ActivationLink string `json:"activation_link"`
	Status         string `json:"status"`
}

// Balance is the supplier account credit.
type Balance struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// CreatePremium provisions a Telegram Premium subscription for the username.
func (c *Client) CreatePremium(ctx context.Context, username string, periodMonths int) (*PremiumOrder, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "callinoo client not configured")
	}
	trimmed := strings.TrimPrefix(strings.TrimSpace(username), "@")
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}
	if periodMonths <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "period must be positive")
	}

	body := map[string]any{
		"username": trimmed,
		"months":   periodMonths,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal provisioning request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("telegram/premium/create"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build provisioning request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	var order PremiumOrder
	if err := c.do(httpReq, &order); err != nil {
		return nil, err
	}
	if order.ActivationLink == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "provisioning response missing activation link")
	}
	return &order, nil
}

// GetOrderStatus fetches the supplier status for a provisioning order.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*PremiumOrder, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "callinoo client not configured")
	}
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL("telegram/premium/orders/"+url.PathEscape(trimmed)), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build order status request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	var order PremiumOrder
	if err := c.do(httpReq, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetBalance fetches the remaining supplier credit.
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "callinoo client not configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL("balance"), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build balance request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	var balance Balance
	if err := c.do(httpReq, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute callinoo request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "callinoo request failed")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode callinoo response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
