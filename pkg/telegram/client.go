package telegram

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

	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.telegram.org"
	defaultMaxRetries           = 3
	initialBackoff              = 500 * time.Millisecond
	responseBodyReadLimit int64 = 1024
)

var errBotTokenRequired = errors.New("telegram bot token is required")

// Client sends messages through the Telegram Bot API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
	maxRetries uint64
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

// WithBaseURL overrides the Bot API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithMaxRetries overrides how many times a send is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = uint64(n)
		}
	}
}

// NewClient builds the Telegram sender given a bot token.
func NewClient(botToken string, opts ...Option) (*Client, error) {
	trimmedToken := strings.TrimSpace(botToken)
	if trimmedToken == "" {
		return nil, errBotTokenRequired
	}

	client := &Client{
		botToken:   trimmedToken,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: defaultMaxRetries,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// SendMessage delivers text to a chat, retrying transient failures with
// exponential backoff.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "telegram client not configured")
	}
	if chatID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "chat id is required")
	}
	if strings.TrimSpace(text) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message text is required")
	}

	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal telegram message")
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(initialBackoff))
	sendErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return c.send(ctx, payload)
	})
	if sendErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, sendErr, "send telegram message")
	}
	return nil
}

func (c *Client) send(ctx context.Context, payload []byte) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(c.baseURL, "/"), c.botToken)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	statusErr := fmt.Errorf("telegram status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return retry.RetryableError(statusErr)
	}
	return statusErr
}
