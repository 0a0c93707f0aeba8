// Package telegram is a minimal Telegram Bot API client: webhook update
// types and message sending. Only the surface the bot uses is modeled.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// Update is one incoming webhook payload.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// User is the sender of a message.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Chat identifies where to send the reply.
type Chat struct {
	ID int64 `json:"id"`
}

// Sender sends messages to a chat. Implemented by Client; narrowed to an
// interface so handlers can be tested without the network.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Client talks to the Telegram Bot API over HTTP.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage sends a plain-text message to the chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("telegram.SendMessage: encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram.SendMessage: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram.SendMessage: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("telegram.SendMessage: reading response: %w", err)
	}

	var api apiResponse
	if err := json.Unmarshal(payload, &api); err != nil {
		return fmt.Errorf("telegram.SendMessage: decoding response (status %d): %w", resp.StatusCode, err)
	}
	if !api.OK {
		return fmt.Errorf("telegram.SendMessage: api error (status %d): %s", resp.StatusCode, api.Description)
	}
	return nil
}

// Ensure Client implements Sender.
var _ Sender = (*Client)(nil)
