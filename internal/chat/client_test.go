package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

type apiCall struct {
	method  string
	payload map[string]interface{}
}

// fakePlatform records API calls and serves scripted getUpdates batches.
type fakePlatform struct {
	t       *testing.T
	calls   []apiCall
	updates []json.RawMessage
}

func (p *fakePlatform) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/getUpdates" &&
			r.URL.Path != "/bottest-token/sendMessage" &&
			r.URL.Path != "/bottest-token/editMessageText" &&
			r.URL.Path != "/bottest-token/answerCallbackQuery" {
			p.t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}

		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			p.t.Errorf("failed to decode request: %v", err)
		}
		method := r.URL.Path[len("/bottest-token/"):]
		p.calls = append(p.calls, apiCall{method: method, payload: payload})

		result := json.RawMessage(`true`)
		if method == "getUpdates" {
			batch := p.updates
			p.updates = nil
			data, _ := json.Marshal(batch)
			result = data
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": result})
	}
}

func newTestClient(t *testing.T) (*Client, *fakePlatform) {
	t.Helper()
	platform := &fakePlatform{t: t}
	server := httptest.NewServer(platform.handler())
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-token", 1, zap.NewNop()), platform
}

func TestPoll_DecodesMessagesAndCallbacks(t *testing.T) {
	client, platform := newTestClient(t)
	platform.updates = []json.RawMessage{
		json.RawMessage(`{"update_id": 10, "message": {"message_id": 1,
			"from": {"id": 7, "username": "alice"}, "chat": {"id": 7}, "text": "/start"}}`),
		json.RawMessage(`{"update_id": 11, "callback_query": {"id": "cb-1",
			"from": {"id": 8, "first_name": "Bob"},
			"message": {"message_id": 2, "chat": {"id": 8}}, "data": "menu_shop"}}`),
		json.RawMessage(`{"update_id": 12}`),
	}

	updates, err := client.Poll(context.Background(), 1)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 decodable updates, got %d", len(updates))
	}

	msg := updates[0]
	if msg.UserID != 7 || msg.Username != "alice" || msg.Text != "/start" || msg.IsAction() {
		t.Errorf("unexpected message update: %+v", msg)
	}

	cb := updates[1]
	if cb.UserID != 8 || cb.Username != "Bob" || cb.Action != "menu_shop" || cb.ActionID != "cb-1" {
		t.Errorf("unexpected callback update: %+v", cb)
	}
	if !cb.IsAction() {
		t.Error("callback must report IsAction")
	}
}

func TestPoll_AdvancesOffset(t *testing.T) {
	client, platform := newTestClient(t)
	platform.updates = []json.RawMessage{
		json.RawMessage(`{"update_id": 41, "message": {"message_id": 1,
			"from": {"id": 7, "username": "alice"}, "chat": {"id": 7}, "text": "hi"}}`),
	}

	if _, err := client.Poll(context.Background(), 1); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if _, err := client.Poll(context.Background(), 1); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	second := platform.calls[1]
	if second.method != "getUpdates" {
		t.Fatalf("unexpected call: %+v", second)
	}
	if offset := second.payload["offset"].(float64); offset != 42 {
		t.Errorf("second poll offset = %v, want 42", offset)
	}
}

func TestSend_BuildsKeyboard(t *testing.T) {
	client, platform := newTestClient(t)

	reply := Reply{
		Text: "Select a product:",
		Buttons: [][]Button{
			Row(Button{Label: "Sample Product A", Action: "select_1"}),
		},
	}
	if err := client.Send(context.Background(), 7, reply); err != nil {
		t.Fatalf("Send: %v", err)
	}

	call := platform.calls[0]
	if call.method != "sendMessage" {
		t.Fatalf("unexpected method %s", call.method)
	}
	if call.payload["text"] != "Select a product:" || call.payload["chat_id"].(float64) != 7 {
		t.Errorf("unexpected payload: %v", call.payload)
	}
	markup, ok := call.payload["reply_markup"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing reply_markup: %v", call.payload)
	}
	rows := markup["inline_keyboard"].([]interface{})
	button := rows[0].([]interface{})[0].(map[string]interface{})
	if button["text"] != "Sample Product A" || button["callback_data"] != "select_1" {
		t.Errorf("unexpected button: %v", button)
	}
}

func TestSend_PlainTextOmitsKeyboard(t *testing.T) {
	client, platform := newTestClient(t)

	if err := client.Send(context.Background(), 7, Reply{Text: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, present := platform.calls[0].payload["reply_markup"]; present {
		t.Error("plain reply must not carry a keyboard")
	}
}

func TestEdit(t *testing.T) {
	client, platform := newTestClient(t)

	if err := client.Edit(context.Background(), 7, 99, Reply{Text: "updated"}); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	call := platform.calls[0]
	if call.method != "editMessageText" || call.payload["message_id"].(float64) != 99 {
		t.Errorf("unexpected call: %+v", call)
	}
}

func TestAck(t *testing.T) {
	client, platform := newTestClient(t)

	if err := client.Ack(context.Background(), "cb-1"); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	call := platform.calls[0]
	if call.method != "answerCallbackQuery" || call.payload["callback_query_id"] != "cb-1" {
		t.Errorf("unexpected call: %+v", call)
	}
}

func TestCall_PlatformRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "description": "bad request"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", 1, zap.NewNop())
	if err := client.Send(context.Background(), 7, Reply{Text: "hi"}); err == nil {
		t.Error("expected error for rejected call")
	}
}
