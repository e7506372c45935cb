package handler

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/openclaw/whatsapp-bridge-go/internal/errors"
	"github.com/openclaw/whatsapp-bridge-go/internal/hub"
	"github.com/openclaw/whatsapp-bridge-go/internal/service"
	"github.com/openclaw/whatsapp-bridge-go/internal/store"
)

// APIHandler serves the small REST surface next to the websocket channel.
type APIHandler struct {
	supervisor *service.Supervisor
	responder  *service.Responder
	store      *store.ConversationStore
	hub        *hub.Hub
}

func NewAPIHandler(supervisor *service.Supervisor, responder *service.Responder, convStore *store.ConversationStore, h *hub.Hub) *APIHandler {
	return &APIHandler{
		supervisor: supervisor,
		responder:  responder,
		store:      convStore,
		hub:        h,
	}
}

// Status reports the connection session, bot mode and store counters.
func (h *APIHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.supervisor.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"connection":    status,
		"botMode":       h.responder.Mode(),
		"conversations": h.store.Len(),
		"observers":     h.hub.ClientCount(),
	})
}

type sendRequest struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

// Send is the REST twin of the send-manual-message observer command; it also
// suppresses the conversation's pending automatic reply.
func (h *APIHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", err.Error()))
		return
	}
	if req.ChatID == "" {
		writeError(w, apperrors.MissingRequired("chatId"))
		return
	}
	if req.Text == "" {
		writeError(w, apperrors.MissingRequired("text"))
		return
	}

	h.responder.Cancel(req.ChatID)
	if err := h.supervisor.Send(r.Context(), req.ChatID, req.Text); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
