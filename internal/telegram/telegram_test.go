package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		payload, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(payload, &gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok": true}`)
	}))
	defer srv.Close()

	c := NewClient("test-token")
	c.baseURL = srv.URL

	if err := c.SendMessage(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("request path = %q, want /bottest-token/sendMessage", gotPath)
	}
	if gotBody.ChatID != 42 || gotBody.Text != "hello" {
		t.Errorf("request body = %+v, want chat 42 text hello", gotBody)
	}
}

func TestSendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"ok": false, "description": "chat not found"}`)
	}))
	defer srv.Close()

	c := NewClient("test-token")
	c.baseURL = srv.URL

	err := c.SendMessage(context.Background(), 42, "hello")
	if err == nil {
		t.Fatal("SendMessage returned nil error")
	}
}

func TestUpdateDecoding(t *testing.T) {
	raw := `{
		"update_id": 7,
		"message": {
			"message_id": 99,
			"from": {"id": 1234, "username": "tanvir"},
			"chat": {"id": 1234},
			"text": "spent 500 on groceries"
		}
	}`

	var u Update
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatalf("decoding update: %v", err)
	}
	if u.Message == nil || u.Message.From == nil {
		t.Fatal("message or sender missing after decode")
	}
	if u.Message.From.ID != 1234 || u.Message.Chat.ID != 1234 {
		t.Errorf("IDs = %d/%d, want 1234/1234", u.Message.From.ID, u.Message.Chat.ID)
	}
	if u.Message.Text != "spent 500 on groceries" {
		t.Errorf("Text = %q", u.Message.Text)
	}
}
