package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client is a minimal long-polling client for the bot platform's HTTP API.
// It is deliberately thin glue: all business behaviour lives behind the
// Update/Reply/Sender contract.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
	offset  int64
}

// NewClient creates a platform API client
func NewClient(baseURL, token string, pollTimeout int, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		// Read timeout must exceed the long-poll hold time.
		http:   &http.Client{Timeout: time.Duration(pollTimeout+10) * time.Second},
		logger: logger,
	}
}

type wireUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

type wireMessage struct {
	MessageID int64    `json:"message_id"`
	From      wireUser `json:"from"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}

type wireCallback struct {
	ID      string       `json:"id"`
	From    wireUser     `json:"from"`
	Message *wireMessage `json:"message"`
	Data    string       `json:"data"`
}

type wireUpdate struct {
	UpdateID int64         `json:"update_id"`
	Message  *wireMessage  `json:"message"`
	Callback *wireCallback `json:"callback_query"`
}

type wireResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Poll long-polls the platform for the next batch of updates. The offset is
// advanced internally, so each update is delivered once.
func (c *Client) Poll(ctx context.Context, timeout int) ([]Update, error) {
	payload := map[string]interface{}{
		"offset":          c.offset,
		"timeout":         timeout,
		"allowed_updates": []string{"message", "callback_query"},
	}

	var raw []wireUpdate
	if err := c.call(ctx, "getUpdates", payload, &raw); err != nil {
		return nil, err
	}

	updates := make([]Update, 0, len(raw))
	for _, wu := range raw {
		if wu.UpdateID >= c.offset {
			c.offset = wu.UpdateID + 1
		}
		if u, ok := decodeWireUpdate(wu); ok {
			updates = append(updates, u)
		}
	}

	return updates, nil
}

func decodeWireUpdate(wu wireUpdate) (Update, bool) {
	switch {
	case wu.Message != nil && wu.Message.Text != "":
		return Update{
			UserID:    wu.Message.From.ID,
			Username:  displayName(wu.Message.From),
			ChatID:    wu.Message.Chat.ID,
			MessageID: wu.Message.MessageID,
			Text:      wu.Message.Text,
		}, true
	case wu.Callback != nil && wu.Callback.Message != nil:
		return Update{
			UserID:    wu.Callback.From.ID,
			Username:  displayName(wu.Callback.From),
			ChatID:    wu.Callback.Message.Chat.ID,
			MessageID: wu.Callback.Message.MessageID,
			Action:    wu.Callback.Data,
			ActionID:  wu.Callback.ID,
		}, true
	}
	return Update{}, false
}

func displayName(u wireUser) string {
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return fmt.Sprintf("User%d", u.ID)
}

// Send posts a new message
func (c *Client) Send(ctx context.Context, chatID int64, reply Reply) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    reply.Text,
	}
	if markup := keyboardMarkup(reply); markup != nil {
		payload["reply_markup"] = markup
	}
	return c.call(ctx, "sendMessage", payload, nil)
}

// Edit replaces an existing message's text and keyboard
func (c *Client) Edit(ctx context.Context, chatID, messageID int64, reply Reply) error {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       reply.Text,
	}
	if markup := keyboardMarkup(reply); markup != nil {
		payload["reply_markup"] = markup
	}
	return c.call(ctx, "editMessageText", payload, nil)
}

// Ack acknowledges a handled button press so the client stops its spinner
func (c *Client) Ack(ctx context.Context, actionID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]interface{}{
		"callback_query_id": actionID,
	}, nil)
}

func keyboardMarkup(reply Reply) map[string]interface{} {
	if len(reply.Buttons) == 0 {
		return nil
	}

	rows := make([][]map[string]string, 0, len(reply.Buttons))
	for _, row := range reply.Buttons {
		wireRow := make([]map[string]string, 0, len(row))
		for _, b := range row {
			wireRow = append(wireRow, map[string]string{
				"text":          b.Label,
				"callback_data": b.Action,
			})
		}
		rows = append(rows, wireRow)
	}

	return map[string]interface{}{"inline_keyboard": rows}
}

func (c *Client) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var parsed wireResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", method, err)
	}
	if !parsed.OK {
		return fmt.Errorf("%s rejected: %s", method, parsed.Description)
	}

	if out != nil {
		if err := json.Unmarshal(parsed.Result, out); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", method, err)
		}
	}

	return nil
}
