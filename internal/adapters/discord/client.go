package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// maxHistoryPage is Discord's per-request message limit.
const maxHistoryPage = 100

// APIError is a non-2xx response from the REST API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord API error: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsForbidden reports whether err is a 403 from Discord.
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden
}

// Client is a Discord REST API client.
type Client struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Discord client.
func NewClient(botToken string) *Client {
	return NewClientWithBaseURL(botToken, DiscordAPIURL)
}

// NewClientWithBaseURL creates a Discord client against a custom base URL.
func NewClientWithBaseURL(botToken, baseURL string) *Client {
	return &Client{
		botToken: botToken,
		baseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doRequest sends an HTTP request to the Discord API and decodes the JSON
// response into out when out is non-nil.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bot "+c.botToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "DiscordBot (novabot, 1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// HistoryQuery selects a page of channel messages.
type HistoryQuery struct {
	After  string
	Before string
	Limit  int
}

// GetChannelMessages fetches up to 100 messages. Discord returns them newest
// first.
func (c *Client) GetChannelMessages(ctx context.Context, channelID string, q HistoryQuery) ([]Message, error) {
	params := url.Values{}
	limit := q.Limit
	if limit <= 0 || limit > maxHistoryPage {
		limit = maxHistoryPage
	}
	params.Set("limit", strconv.Itoa(limit))
	if q.After != "" {
		params.Set("after", q.After)
	}
	if q.Before != "" {
		params.Set("before", q.Before)
	}

	var msgs []Message
	endpoint := fmt.Sprintf("/channels/%s/messages?%s", channelID, params.Encode())
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &msgs); err != nil {
		return nil, fmt.Errorf("get channel messages: %w", err)
	}
	return msgs, nil
}

// GetMessage fetches a single message.
func (c *Client) GetMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	var msg Message
	if err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID), nil, &msg); err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &msg, nil
}

// SendMessage posts a message to a channel.
func (c *Client) SendMessage(ctx context.Context, channelID string, m MessageSend) (*Message, error) {
	var msg Message
	if err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", channelID), m, &msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &msg, nil
}

// EditMessage edits an existing message.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID string, m MessageEdit) error {
	if err := c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID), m, nil); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// CreateInteractionResponse answers an interaction within its 3s window.
func (c *Client) CreateInteractionResponse(ctx context.Context, interactionID, interactionToken string, resp InteractionResponse) error {
	endpoint := fmt.Sprintf("/interactions/%s/%s/callback", interactionID, interactionToken)
	if err := c.doRequest(ctx, http.MethodPost, endpoint, resp, nil); err != nil {
		return fmt.Errorf("create interaction response: %w", err)
	}
	return nil
}

// CreateFollowupMessage sends a follow-up through the interaction webhook.
func (c *Client) CreateFollowupMessage(ctx context.Context, applicationID, interactionToken string, data InteractionResponseData) (*Message, error) {
	var msg Message
	endpoint := fmt.Sprintf("/webhooks/%s/%s", applicationID, interactionToken)
	if err := c.doRequest(ctx, http.MethodPost, endpoint, data, &msg); err != nil {
		return nil, fmt.Errorf("create followup: %w", err)
	}
	return &msg, nil
}

// AddReaction reacts to a message as the bot.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	endpoint := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/@me", channelID, messageID, url.PathEscape(emoji))
	if err := c.doRequest(ctx, http.MethodPut, endpoint, nil, nil); err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	return nil
}

// BulkOverwriteCommands replaces the application's commands, per guild when
// guildID is set and globally otherwise.
func (c *Client) BulkOverwriteCommands(ctx context.Context, applicationID, guildID string, cmds []ApplicationCommand) error {
	endpoint := fmt.Sprintf("/applications/%s/commands", applicationID)
	if guildID != "" {
		endpoint = fmt.Sprintf("/applications/%s/guilds/%s/commands", applicationID, guildID)
	}
	if err := c.doRequest(ctx, http.MethodPut, endpoint, cmds, nil); err != nil {
		return fmt.Errorf("overwrite commands: %w", err)
	}
	return nil
}

// GetGatewayURL returns the WebSocket gateway URL.
func (c *Client) GetGatewayURL(ctx context.Context) (string, error) {
	var result struct {
		URL string `json:"url"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/gateway/bot", nil, &result); err != nil {
		return "", fmt.Errorf("get gateway: %w", err)
	}
	return result.URL, nil
}
