// Package webchat serves the booking conversation over a websocket for the
// browser chat window, with a plain HTTP fallback.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/clinic-intake/internal/conversation"
	"github.com/wolfman30/clinic-intake/internal/redact"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Conversations is implemented by *conversation.Service.
type Conversations interface {
	Start(ctx context.Context, text string) (conversation.Turn, error)
	Message(ctx context.Context, conversationID, text string) (conversation.Turn, error)
	Get(ctx context.Context, conversationID string) (conversation.State, error)
}

// Handler manages web chat connections and messages.
type Handler struct {
	conversations Conversations
	transcript    TranscriptStore
	logger        *logging.Logger
}

// InboundMessage is what the chat window sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the chat window.
type OutboundMessage struct {
	Type            string           `json:"type"` // "message", "typing", "history", "session", "error", "pong"
	Text            string           `json:"text,omitempty"`
	Role            string           `json:"role,omitempty"` // "assistant" or "user"
	ConversationID  string           `json:"conversation_id,omitempty"`
	Step            string           `json:"step,omitempty"`
	BookingComplete bool             `json:"booking_complete,omitempty"`
	Timestamp       string           `json:"timestamp,omitempty"`
	Messages        []HistoryMessage `json:"messages,omitempty"`
}

// NewHandler creates a web chat handler. A nil transcript keeps no history.
func NewHandler(conversations Conversations, transcript TranscriptStore, logger *logging.Logger) *Handler {
	if conversations == nil {
		panic("webchat: conversations cannot be nil")
	}
	if transcript == nil {
		transcript = nopTranscript{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{conversations: conversations, transcript: transcript, logger: logger}
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
// ?conversation=<id> resumes an existing conversation.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	convID := strings.TrimSpace(r.URL.Query().Get("conversation"))

	if convID != "" {
		state, err := h.conversations.Get(ctx, convID)
		if err != nil {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "conversation not found"})
			return
		}
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", ConversationID: convID, Step: string(state.Step)})
		if history, err := h.transcript.List(ctx, convID, 50); err == nil && len(history) > 0 {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: history})
		}
	} else {
		turn, err := h.conversations.Start(ctx, "")
		if err != nil {
			h.logger.Error("webchat: failed to start conversation", "error", err)
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
			return
		}
		convID = turn.ConversationID
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", ConversationID: convID, Step: string(turn.Step)})
		h.record(ctx, convID, "assistant", turn.Message)
		_ = websocket.JSON.Send(conn, assistantMessage(turn))
	}

	h.logger.Info("webchat: connection opened", "conversation_id", convID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "conversation_id", convID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})
		out := h.process(ctx, convID, msg.Text)
		_ = websocket.JSON.Send(conn, out)
	}
}

func (h *Handler) process(ctx context.Context, convID, text string) OutboundMessage {
	h.record(ctx, convID, "user", text)
	turn, err := h.conversations.Message(ctx, convID, text)
	if err != nil {
		h.logger.Error("webchat: failed to process message", "conversation_id", convID, "text", redact.Preview(text, 80), "error", err)
		return OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."}
	}
	h.record(ctx, convID, "assistant", turn.Message)
	return assistantMessage(turn)
}

func (h *Handler) record(ctx context.Context, convID, role, text string) {
	err := h.transcript.Append(ctx, convID, HistoryMessage{
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Warn("webchat: failed to append transcript", "conversation_id", convID, "error", err)
	}
}

func assistantMessage(turn conversation.Turn) OutboundMessage {
	return OutboundMessage{
		Type:            "message",
		Role:            "assistant",
		Text:            turn.Message,
		ConversationID:  turn.ConversationID,
		Step:            string(turn.Step),
		BookingComplete: turn.BookingComplete,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
}

// HandleMessage is the HTTP fallback for sending messages. Without a
// conversation_id a new conversation is started with the text.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID string `json:"conversation_id"`
		Text           string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	var out OutboundMessage
	if req.ConversationID == "" {
		turn, err := h.conversations.Start(r.Context(), req.Text)
		if err != nil {
			h.logger.Error("webchat: failed to start conversation", "error", err)
			http.Error(w, "failed to start conversation", http.StatusInternalServerError)
			return
		}
		h.record(r.Context(), turn.ConversationID, "user", req.Text)
		h.record(r.Context(), turn.ConversationID, "assistant", turn.Message)
		out = assistantMessage(turn)
	} else {
		if _, err := h.conversations.Get(r.Context(), req.ConversationID); errors.Is(err, conversation.ErrConversationNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		out = h.process(r.Context(), req.ConversationID, req.Text)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// HandleHistory returns the transcript for a conversation.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	convID := r.URL.Query().Get("conversation")
	if convID == "" {
		http.Error(w, "conversation parameter required", http.StatusBadRequest)
		return
	}

	msgs, err := h.transcript.List(r.Context(), convID, 100)
	if err != nil {
		h.logger.Error("webchat: failed to load history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []HistoryMessage{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": msgs})
}
