package conversation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// MessageRequest is the body of a start or message call.
type MessageRequest struct {
	Message string `json:"message"`
}

// Handler wires HTTP requests to the conversation service.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts the conversation endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/conversations", h.Start)
	r.Post("/conversations/{id}/messages", h.Message)
	r.Get("/conversations/{id}", h.Get)
}

// Start handles POST /conversations. An empty body starts with the greeting.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Error("failed to decode start request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	turn, err := h.service.Start(r.Context(), req.Message)
	if err != nil {
		h.logger.Error("failed to start conversation", "error", err)
		http.Error(w, "Failed to start conversation", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, turn)
}

// Message handles POST /conversations/{id}/messages.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	turn, err := h.service.Message(r.Context(), chi.URLParam(r, "id"), req.Message)
	if errors.Is(err, ErrConversationNotFound) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to process message", "error", err)
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, turn)
}

// Get handles GET /conversations/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrConversationNotFound) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load conversation", "error", err)
		http.Error(w, "Failed to load conversation", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
