package telegram

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

const defaultAPIBase = "https://api.telegram.org"

// Client talks to the Telegram Bot API for outbound sends and webhook
// management. Every call is a bounded HTTP request; the core treats delivery
// as best-effort and never retries in-line.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(token, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultAPIBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// SendMessage delivers a text message to a chat with HTML parse mode.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	return c.send(ctx, chatID, text, 0)
}

// SendReply delivers a text message quoting the given provider message.
func (c *Client) SendReply(ctx context.Context, chatID, text string, replyTo int64) error {
	return c.send(ctx, chatID, text, replyTo)
}

func (c *Client) send(ctx context.Context, chatID, text string, replyTo int64) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if replyTo != 0 {
		payload["reply_to_message_id"] = replyTo
	}
	if _, err := c.call(ctx, http.MethodPost, "sendMessage", payload); err != nil {
		return fmt.Errorf("telegram: send message to chat %s: %w", chatID, err)
	}
	c.logger.Info("message sent", "chat_id", chatID)
	return nil
}

// SetWebhook points the bot's webhook at the given public URL.
func (c *Client) SetWebhook(ctx context.Context, webhookURL string) error {
	payload := map[string]any{"url": webhookURL}
	if _, err := c.call(ctx, http.MethodPost, "setWebhook", payload); err != nil {
		return fmt.Errorf("telegram: set webhook: %w", err)
	}
	c.logger.Info("telegram webhook registered", "url", webhookURL)
	return nil
}

// DeleteWebhook removes the bot's webhook registration.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	if _, err := c.call(ctx, http.MethodPost, "deleteWebhook", nil); err != nil {
		return fmt.Errorf("telegram: delete webhook: %w", err)
	}
	c.logger.Info("telegram webhook deleted")
	return nil
}

// WebhookInfo returns the bot's current webhook registration as reported by
// the API.
func (c *Client) WebhookInfo(ctx context.Context) (map[string]any, error) {
	result, err := c.call(ctx, http.MethodGet, "getWebhookInfo", nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: webhook info: %w", err)
	}
	var info map[string]any
	if len(result) > 0 {
		if err := json.Unmarshal(result, &info); err != nil {
			return nil, fmt.Errorf("telegram: decode webhook info: %w", err)
		}
	}
	return info, nil
}

func (c *Client) call(ctx context.Context, method, apiMethod string, payload map[string]any) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, url.PathEscape(c.token), apiMethod)

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var api apiResponse
	if err := json.Unmarshal(data, &api); err != nil {
		return nil, fmt.Errorf("%s: unexpected response (status %d)", apiMethod, resp.StatusCode)
	}
	if !api.OK {
		return nil, fmt.Errorf("%s: api error: %s", apiMethod, api.Description)
	}
	return api.Result, nil
}
