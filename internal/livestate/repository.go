package livestate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/stagesync/stagesync/internal/models"
	"github.com/stagesync/stagesync/internal/sqlutil"
)

// Repository is the durable tier: one row per event in Postgres, with the
// timer/animation/round sub-states as JSONB columns. Sub-states are decoded at
// the read boundary into typed structs so format drift fails fast.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateLiveState inserts the default row for an event going live. Inserting
// twice for the same event is an error; exactly one live state exists per
// event.
func (r *Repository) CreateLiveState(ctx context.Context, state *models.LiveState) error {
	timerJSON, animJSON, roundJSON, err := marshalSubStates(state)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO live_states (event_id, current_stage_id, current_team_id, timer_state, animation_state, round_state, awards_locked, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		state.EventID, sqlutil.ToNullUUID(state.CurrentStageID), sqlutil.ToNullUUID(state.CurrentTeamID),
		timerJSON, animJSON, roundJSON, state.AwardsLocked,
	)
	if err != nil {
		return fmt.Errorf("%w: create live state: %v", ErrUnavailable, err)
	}
	return nil
}

// GetLiveState loads the full row for an event.
func (r *Repository) GetLiveState(ctx context.Context, eventID uuid.UUID) (*models.LiveState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT event_id, current_stage_id, current_team_id, timer_state, animation_state, round_state, awards_locked, updated_at
		FROM live_states WHERE event_id = $1`, eventID)

	var (
		state     models.LiveState
		stageID   uuid.NullUUID
		teamID    uuid.NullUUID
		timerJSON []byte
		animJSON  []byte
		roundJSON []byte
	)
	err := row.Scan(&state.EventID, &stageID, &teamID, &timerJSON, &animJSON, &roundJSON, &state.AwardsLocked, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get live state: %v", ErrUnavailable, err)
	}

	state.CurrentStageID = sqlutil.FromNullUUID(stageID)
	state.CurrentTeamID = sqlutil.FromNullUUID(teamID)
	if err := json.Unmarshal(timerJSON, &state.Timer); err != nil {
		return nil, fmt.Errorf("decode timer state: %w", err)
	}
	if err := json.Unmarshal(animJSON, &state.Animation); err != nil {
		return nil, fmt.Errorf("decode animation state: %w", err)
	}
	if err := json.Unmarshal(roundJSON, &state.Round); err != nil {
		return nil, fmt.Errorf("decode round state: %w", err)
	}
	return &state, nil
}

// DeleteLiveState removes the row when the event is torn down.
func (r *Repository) DeleteLiveState(ctx context.Context, eventID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM live_states WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("%w: delete live state: %v", ErrUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTimerState overwrites the whole timer sub-state object.
func (r *Repository) UpdateTimerState(ctx context.Context, eventID uuid.UUID, timer models.TimerState) error {
	return r.updateJSONField(ctx, eventID, "timer_state", timer)
}

// UpdateAnimationState overwrites the whole animation sub-state object.
func (r *Repository) UpdateAnimationState(ctx context.Context, eventID uuid.UUID, anim models.AnimationState) error {
	return r.updateJSONField(ctx, eventID, "animation_state", anim)
}

// UpdateRoundState overwrites the whole round sub-state object.
func (r *Repository) UpdateRoundState(ctx context.Context, eventID uuid.UUID, round models.RoundState) error {
	return r.updateJSONField(ctx, eventID, "round_state", round)
}

// UpdateCurrentStage sets (or clears) the current stage reference.
func (r *Repository) UpdateCurrentStage(ctx context.Context, eventID uuid.UUID, stageID *uuid.UUID) error {
	return r.exec(ctx, eventID, `UPDATE live_states SET current_stage_id = $2, updated_at = now() WHERE event_id = $1`, sqlutil.ToNullUUID(stageID))
}

// UpdateCurrentTeam sets (or clears) the current team reference.
func (r *Repository) UpdateCurrentTeam(ctx context.Context, eventID uuid.UUID, teamID *uuid.UUID) error {
	return r.exec(ctx, eventID, `UPDATE live_states SET current_team_id = $2, updated_at = now() WHERE event_id = $1`, sqlutil.ToNullUUID(teamID))
}

// UpdateAwardsLocked sets the awards latch.
func (r *Repository) UpdateAwardsLocked(ctx context.Context, eventID uuid.UUID, locked bool) error {
	return r.exec(ctx, eventID, `UPDATE live_states SET awards_locked = $2, updated_at = now() WHERE event_id = $1`, locked)
}

func (r *Repository) updateJSONField(ctx context.Context, eventID uuid.UUID, column string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", column, err)
	}
	// column comes from a fixed call-site set, never from input.
	query := fmt.Sprintf(`UPDATE live_states SET %s = $2, updated_at = now() WHERE event_id = $1`, column)
	return r.exec(ctx, eventID, query, b)
}

func (r *Repository) exec(ctx context.Context, eventID uuid.UUID, query string, arg any) error {
	res, err := r.db.ExecContext(ctx, query, eventID, arg)
	if err != nil {
		return fmt.Errorf("%w: update live state: %v", ErrUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalSubStates(state *models.LiveState) (timer, anim, round []byte, err error) {
	if timer, err = json.Marshal(state.Timer); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal timer state: %w", err)
	}
	if anim, err = json.Marshal(state.Animation); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal animation state: %w", err)
	}
	if round, err = json.Marshal(state.Round); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal round state: %w", err)
	}
	return timer, anim, round, nil
}
