package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stagesync/stagesync/internal/live"
	"github.com/stagesync/stagesync/internal/livestate"
	"github.com/stagesync/stagesync/internal/models"
)

// Handler exposes the operator control surface as JSON over HTTP. Every
// mutating route drives the orchestrator; soft state-machine rejections come
// back as 409 with the unchanged state and a reason, so the console can show
// them as explained no-ops.
type Handler struct {
	orch *live.Orchestrator
}

func NewHandler(orch *live.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// RegisterRoutes registers the control routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/events/{eventID}/live", h.handleGoLive)
	mux.HandleFunc("DELETE /api/events/{eventID}/live", h.handleEndLive)
	mux.HandleFunc("GET /api/events/{eventID}/state", h.handleGetState)
	mux.HandleFunc("POST /api/events/{eventID}/stage", h.handleSetStage)
	mux.HandleFunc("POST /api/events/{eventID}/team", h.handleSetTeam)
	mux.HandleFunc("POST /api/events/{eventID}/team/advance", h.handleAdvanceTeam)
	mux.HandleFunc("POST /api/events/{eventID}/timer/start", h.handleStartTimer)
	mux.HandleFunc("POST /api/events/{eventID}/timer/pause", h.handlePauseTimer)
	mux.HandleFunc("POST /api/events/{eventID}/timer/resume", h.handleResumeTimer)
	mux.HandleFunc("POST /api/events/{eventID}/timer/reset", h.handleResetTimer)
	mux.HandleFunc("POST /api/events/{eventID}/round/randomize", h.handleRandomizeRound)
	mux.HandleFunc("POST /api/events/{eventID}/animation/trigger", h.handleTriggerAnimation)
	mux.HandleFunc("POST /api/events/{eventID}/animation/advance", h.handleAdvanceAnimation)
	mux.HandleFunc("POST /api/events/{eventID}/awards/lock", h.handleLockAwards)
	mux.HandleFunc("POST /api/events/{eventID}/scores/submitted", h.handleScoreSubmitted)
}

func (h *Handler) handleGoLive(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFrom(w, r)
	if !ok {
		return
	}
	state, err := h.orch.GoLive(r.Context(), eventID)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (h *Handler) handleEndLive(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFrom(w, r)
	if !ok {
		return
	}
	if err := h.orch.EndLive(r.Context(), eventID); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFrom(w, r)
	if !ok {
		return
	}
	state, err := h.orch.FullState(r.Context(), eventID)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type setStageRequest struct {
	StageID uuid.UUID `json:"stage_id"`
}

func (h *Handler) handleSetStage(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFrom(w, r)
	if !ok {
		return
	}
	var req setStageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := h.orch.SetCurrentStage(r.Context(), eventID, req.StageID)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type setTeamRequest struct {
	TeamID uuid.UUID `json:"team_id"`
}

func (h *Handler) handleSetTeam(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFrom(w, r)
	if !ok {
		return
	}
	var req setTeamRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := h.orch.SetCurrentTeam(r.Context(), eventID, req.TeamID)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleAdvanceTeam(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFrom(w, r)
	if !ok {
		return
	}
	state, err := h.orch.AdvanceToNextTeam(r.Context(), eventID)
	if err != nil {
		writeError(w, err, state)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type startTimerRequest struct {
	Type            models.TimerType `json:"type"`
	DurationSeconds int              `json:"duration_seconds"`
	Label           string           `json:"label,omitempty"`
}

func (h *Handler) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFrom(w, r)
	if !ok {
		return
	}
	var req startTimerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DurationSeconds <= 0 {
		http.Error(w, "duration_seconds must be positive", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		req.Type = models.TimerTypePresentation
	}
	ts, err := h.orch.StartTimer(r.Context(), eventID, req.Type, req.DurationSeconds, req.Label)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (h *Handler) handlePauseTimer(w http.ResponseWriter, r *http.Request) {
	h.timerTransition(w, r, h.orch.PauseTimer)
}

func (h *Handler) handleResumeTimer(w http.ResponseWriter, r *http.Request) {
	h.timerTransition(w, r, h.orch.ResumeTimer)
}

func (h *Handler) handleResetTimer(w http.ResponseWriter, r *http.Request) {
	h.timerTransition(w, r, h.orch.ResetTimer)
}

func (h *Handler) timerTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, eventID uuid.UUID) (models.TimerState, error)) {
	eventID, ok := eventIDFrom(w, r)
	if !ok {
		return
	}
	ts, err := op(r.Context(), eventID)
	if err != nil {
		writeError(w, err, ts)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

type randomizeRoundRequest struct {
	Round int `json:"round"`
}

func (h *Handler) handleRandomizeRound(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFrom(w, r)
	if !ok {
		return
	}
	var req randomizeRoundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	teams, err := h.orch.RandomizeRound(r.Context(), eventID, req.Round)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"round": req.Round, "team_order": teams})
}

type triggerAnimationRequest struct {
	Animation  string         `json:"animation"`
	TotalSteps int            `json:"total_steps"`
	Params     map[string]any `json:"params,omitempty"`
}

func (h *Handler) handleTriggerAnimation(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFrom(w, r)
	if !ok {
		return
	}
	var req triggerAnimationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Animation == "" || req.TotalSteps < 0 {
		http.Error(w, "animation and a non-negative total_steps are required", http.StatusBadRequest)
		return
	}
	anim, err := h.orch.TriggerAnimation(r.Context(), eventID, req.Animation, req.TotalSteps, req.Params)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, anim)
}

func (h *Handler) handleAdvanceAnimation(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFrom(w, r)
	if !ok {
		return
	}
	anim, err := h.orch.AdvanceAnimation(r.Context(), eventID)
	if err != nil {
		writeError(w, err, anim)
		return
	}
	writeJSON(w, http.StatusOK, anim)
}

func (h *Handler) handleLockAwards(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFrom(w, r)
	if !ok {
		return
	}
	state, err := h.orch.LockAwards(r.Context(), eventID)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type scoreSubmittedRequest struct {
	TeamID uuid.UUID `json:"team_id"`
	JuryID string    `json:"jury_id"`
}

func (h *Handler) handleScoreSubmitted(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFrom(w, r)
	if !ok {
		return
	}
	var req scoreSubmittedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.orch.NotifyScoreSubmitted(r.Context(), eventID, req.TeamID, req.JuryID); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func eventIDFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("eventID"))
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

// errorResponse is what the operator console renders for rejected commands.
// Soft rejections carry the unchanged state so the console stays in sync.
type errorResponse struct {
	Error string `json:"error"`
	State any    `json:"state,omitempty"`
}

func writeError(w http.ResponseWriter, err error, state any) {
	switch {
	case errors.Is(err, livestate.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case live.InvalidTransition(err):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), State: state})
	case errors.Is(err, livestate.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "state store unavailable"})
	default:
		log.Error().Err(err).Msg("command failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
