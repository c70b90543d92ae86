package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stagesync/stagesync/internal/models"
)

// Type names a live event delivered to connected clients.
type Type string

const (
	TypeFullStateUpdate  Type = "FullStateUpdate"
	TypeStageChanged     Type = "StageChanged"
	TypeTeamSelected     Type = "TeamSelected"
	TypeTimerSync        Type = "TimerSync"
	TypeTimerWarning     Type = "TimerWarning"
	TypeTimerCompleted   Type = "TimerCompleted"
	TypeAnimationTrigger Type = "AnimationTrigger"
	TypeAnimationStep    Type = "AnimationStep"
	TypeRoundRandomized  Type = "RoundRandomized"
	TypeScoreSubmitted   Type = "ScoreSubmitted"
)

// Envelope is the wire format for every live event, both on the bus and on
// client websockets. Role, when set, scopes delivery to connections of that
// role only.
type Envelope struct {
	ID        string          `json:"id"`
	EventID   string          `json:"event_id"`
	Type      Type            `json:"type"`
	Role      models.Role     `json:"role,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New builds an envelope for the given live event, marshalling the payload.
func New(eventID uuid.UUID, typ Type, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return &Envelope{
		ID:        uuid.New().String(),
		EventID:   eventID.String(),
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// FullStatePayload carries the complete live state, sent on join and on any
// resynchronization request.
type FullStatePayload struct {
	State *models.LiveState `json:"state"`
}

// StageChangedPayload is sent when the operator selects a new stage. The
// animation state it carries is the implicit seed derived from the stage type.
type StageChangedPayload struct {
	StageID   string                `json:"stage_id"`
	StageType models.StageType      `json:"stage_type"`
	Animation models.AnimationState `json:"animation_state"`
}

// TeamSelectedPayload is sent when a team becomes the current presenter.
type TeamSelectedPayload struct {
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name,omitempty"`
}

// TimerSyncPayload carries the full timer state plus the server-side remaining
// time at emission, so clients can render without trusting their own clocks.
type TimerSyncPayload struct {
	Timer       models.TimerState `json:"timer_state"`
	RemainingMs int64             `json:"remaining_ms"`
	ServerTime  int64             `json:"server_time"` // unix ms
}

// TimerWarningPayload is sent once per threshold per timer run.
type TimerWarningPayload struct {
	ThresholdMs int64 `json:"threshold_ms"`
	RemainingMs int64 `json:"remaining_ms"`
}

// TimerCompletedPayload is sent exactly once when a running timer hits zero.
type TimerCompletedPayload struct {
	Type  models.TimerType `json:"type"`
	Label string           `json:"label,omitempty"`
}

// AnimationPayload is shared by AnimationTrigger and AnimationStep.
type AnimationPayload struct {
	Animation models.AnimationState `json:"animation_state"`
}

// RoundRandomizedPayload carries the new presentation order for a round.
type RoundRandomizedPayload struct {
	Round     int      `json:"round"`
	TeamOrder []string `json:"team_order"`
}

// ScoreSubmittedPayload notifies operators that a jury member has scored a
// team. It is always role-scoped to operators.
type ScoreSubmittedPayload struct {
	TeamID      string    `json:"team_id"`
	JuryID      string    `json:"jury_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}
