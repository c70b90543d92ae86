package models

import (
	"time"

	"github.com/google/uuid"
)

// TimerType defines what the current timer is counting down for.
type TimerType string

const (
	TimerTypePresentation TimerType = "presentation"
	TimerTypeQA           TimerType = "qa"
	TimerTypeBreak        TimerType = "break"
	TimerTypeCustom       TimerType = "custom"
)

// TimerStatus defines the status of the event timer.
type TimerStatus string

const (
	TimerStatusIdle      TimerStatus = "idle"
	TimerStatusRunning   TimerStatus = "running"
	TimerStatusPaused    TimerStatus = "paused"
	TimerStatusCompleted TimerStatus = "completed"
)

// TimerState holds the authoritative timer for an event. Remaining time is
// always derived from ServerStartTime at read time; it is never stored as a
// decrementing counter, so any number of readers converge on the same value
// for the same instant.
type TimerState struct {
	Type              TimerType   `json:"type"`
	Status            TimerStatus `json:"status"`
	DurationMs        int64       `json:"duration_ms"`
	ServerStartTime   int64       `json:"server_start_time"` // unix ms, 0 when idle
	PausedRemainingMs *int64      `json:"paused_remaining_ms,omitempty"`
	Label             string      `json:"label,omitempty"`
}

// Remaining returns the milliseconds left on the timer at the given instant.
// Never negative. For a paused timer it returns the frozen remainder.
func (t TimerState) Remaining(now time.Time) int64 {
	switch t.Status {
	case TimerStatusRunning:
		elapsed := now.UnixMilli() - t.ServerStartTime
		if remaining := t.DurationMs - elapsed; remaining > 0 {
			return remaining
		}
		return 0
	case TimerStatusPaused:
		if t.PausedRemainingMs != nil {
			return *t.PausedRemainingMs
		}
		return 0
	default:
		return 0
	}
}

// AnimationState tracks a step-indexed reveal sequence (jury reveal, awards
// podium). Params are passed through to clients untouched.
type AnimationState struct {
	CurrentAnimation *string        `json:"current_animation"`
	Step             int            `json:"step"`
	TotalSteps       int            `json:"total_steps"`
	Params           map[string]any `json:"params,omitempty"`
}

// RoundState tracks the presentation order for the current round.
type RoundState struct {
	CurrentRound     int         `json:"current_round"`
	TeamOrder        []uuid.UUID `json:"team_order"`
	CurrentTeamIndex int         `json:"current_team_index"`
	TeamsCompleted   []uuid.UUID `json:"teams_completed"`
}

// Completed reports whether the given team has already been marked done in
// this round.
func (r RoundState) Completed(teamID uuid.UUID) bool {
	for _, id := range r.TeamsCompleted {
		if id == teamID {
			return true
		}
	}
	return false
}

// LiveState is the authoritative live state of one event. Exactly one exists
// per event while the event is live.
type LiveState struct {
	EventID        uuid.UUID      `json:"event_id"`
	CurrentStageID *uuid.UUID     `json:"current_stage_id"`
	CurrentTeamID  *uuid.UUID     `json:"current_team_id"`
	Timer          TimerState     `json:"timer_state"`
	Animation      AnimationState `json:"animation_state"`
	Round          RoundState     `json:"round_state"`
	AwardsLocked   bool           `json:"awards_locked"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewLiveState returns the default state an event starts with when it goes
// live.
func NewLiveState(eventID uuid.UUID) *LiveState {
	return &LiveState{
		EventID: eventID,
		Timer: TimerState{
			Type:   TimerTypePresentation,
			Status: TimerStatusIdle,
		},
		Animation: AnimationState{},
		Round: RoundState{
			TeamOrder:      []uuid.UUID{},
			TeamsCompleted: []uuid.UUID{},
		},
	}
}

// Role identifies which audience a connection belongs to. Broadcasts can be
// scoped to a single role.
type Role string

const (
	RoleOperator Role = "operator"
	RoleAudience Role = "audience"
	RoleJury     Role = "jury"
)

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleOperator, RoleAudience, RoleJury:
		return true
	}
	return false
}
