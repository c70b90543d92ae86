package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stagesync/stagesync/internal/models"
)

// WebSocketHandler handles upgrade requests for live event connections.
type WebSocketHandler struct {
	hub *Hub
}

func NewWebSocketHandler(hub *Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleLiveConnection joins a client to its (event, role) channel. Role and
// event id come from query parameters; jury connections also carry their jury
// id so score notifications can be attributed.
func (h *WebSocketHandler) HandleLiveConnection(w http.ResponseWriter, r *http.Request) {
	eventIDStr := r.URL.Query().Get("event_id")
	if eventIDStr == "" {
		http.Error(w, "event_id is required", http.StatusBadRequest)
		return
	}
	eventID, err := uuid.Parse(eventIDStr)
	if err != nil {
		http.Error(w, "invalid event_id format", http.StatusBadRequest)
		return
	}

	role := r.URL.Query().Get("role")
	if role == "" {
		role = string(models.RoleAudience)
	}
	if !models.ValidRole(role) {
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}
	juryID := r.URL.Query().Get("jury_id")

	ch := Channel{EventID: eventID, Role: models.Role(role)}
	if err := h.hub.Join(w, r, ch, juryID); err != nil {
		log.Error().
			Err(err).
			Str("event_id", eventID.String()).
			Str("role", role).
			Msg("failed to join live channel")
		// Upgrade already wrote the HTTP error response.
	}
}

// HandleConnectionStats reports active connection counts.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.hub.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to write stats response")
	}
}

// RegisterRoutes registers the websocket routes on the mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/live", h.HandleLiveConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
