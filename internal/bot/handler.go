// Package bot exposes the Telegram webhook over HTTP and routes incoming
// messages into the engine.
package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tanvirk/ledgerbot/internal/logger"
	"github.com/tanvirk/ledgerbot/internal/telegram"
)

// handleTimeout bounds how long one message may occupy the engine,
// planner round-trip included.
const handleTimeout = 90 * time.Second

// MessageHandler processes one chat message and returns the reply.
// Implemented by engine.Engine.
type MessageHandler interface {
	HandleMessage(ctx context.Context, userID, text string) (string, error)
}

// WebhookHandler receives Telegram updates.
type WebhookHandler struct {
	engine        MessageHandler
	sender        telegram.Sender
	allowedUserID int64
	log           zerolog.Logger
}

// NewWebhookHandler creates the webhook handler. allowedUserID of 0
// allows any sender; this is a personal bot, so production always sets it.
func NewWebhookHandler(engine MessageHandler, sender telegram.Sender, allowedUserID int64, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		engine:        engine,
		sender:        sender,
		allowedUserID: allowedUserID,
		log:           log,
	}
}

// HandleUpdate handles POST /webhook. Telegram retries non-200 responses,
// so anything already handed to the engine acknowledges with 200 even
// when the reply fails.
func (h *WebhookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.log.Warn().Err(err).Msg("Undecodable webhook payload")
		WriteError(w, http.StatusBadRequest, "Invalid update payload")
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		// Edits, stickers, joins. Acknowledge and move on.
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if h.allowedUserID != 0 && msg.From.ID != h.allowedUserID {
		h.log.Warn().
			Int64("user_id", msg.From.ID).
			Str("username", msg.From.Username).
			Msg("Message from unauthorized user dropped")
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handleTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx, h.log.With().
		Int64("chat_id", msg.Chat.ID).
		Int64("update_id", update.UpdateID).
		Logger())

	reply, err := h.engine.HandleMessage(ctx, strconv.FormatInt(msg.From.ID, 10), msg.Text)
	if err != nil {
		h.log.Error().Err(err).Msg("Message handling failed")
		reply = "Something went wrong on my side. Please try again."
	}

	if err := h.sender.SendMessage(ctx, msg.Chat.ID, reply); err != nil {
		h.log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Sending reply failed")
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleHealth handles GET /healthz.
func (h *WebhookHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Router wires the handler's routes with logging and panic recovery.
func (h *WebhookHandler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.HandleUpdate(w, r)
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.HandleHealth(w, r)
	})

	var handler http.Handler = mux
	handler = Logger(h.log)(handler)
	handler = Recovery(h.log)(handler)
	return handler
}
