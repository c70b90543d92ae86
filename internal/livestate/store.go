package livestate

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stagesync/stagesync/internal/models"
)

// FastCache is the low-latency tier read on hot paths (scheduler ticks).
type FastCache interface {
	SetTimer(ctx context.Context, eventID uuid.UUID, t models.TimerState) error
	GetTimer(ctx context.Context, eventID uuid.UUID) (models.TimerState, bool, error)
	SetAnimation(ctx context.Context, eventID uuid.UUID, a models.AnimationState) error
	GetAnimation(ctx context.Context, eventID uuid.UUID) (models.AnimationState, bool, error)
	SetRound(ctx context.Context, eventID uuid.UUID, r models.RoundState) error
	GetRound(ctx context.Context, eventID uuid.UUID) (models.RoundState, bool, error)
	SetStage(ctx context.Context, eventID uuid.UUID, stageID *uuid.UUID) error
	GetStage(ctx context.Context, eventID uuid.UUID) (*uuid.UUID, bool, error)
	SetTeam(ctx context.Context, eventID uuid.UUID, teamID *uuid.UUID) error
	GetTeam(ctx context.Context, eventID uuid.UUID) (*uuid.UUID, bool, error)
	SetAwardsLocked(ctx context.Context, eventID uuid.UUID, locked bool) error
	GetAwardsLocked(ctx context.Context, eventID uuid.UUID) (bool, bool, error)
	Purge(ctx context.Context, eventID uuid.UUID) error
}

// DurableStore is the canonical tier read on full reload and restart.
type DurableStore interface {
	CreateLiveState(ctx context.Context, state *models.LiveState) error
	GetLiveState(ctx context.Context, eventID uuid.UUID) (*models.LiveState, error)
	DeleteLiveState(ctx context.Context, eventID uuid.UUID) error
	UpdateTimerState(ctx context.Context, eventID uuid.UUID, timer models.TimerState) error
	UpdateAnimationState(ctx context.Context, eventID uuid.UUID, anim models.AnimationState) error
	UpdateRoundState(ctx context.Context, eventID uuid.UUID, round models.RoundState) error
	UpdateCurrentStage(ctx context.Context, eventID uuid.UUID, stageID *uuid.UUID) error
	UpdateCurrentTeam(ctx context.Context, eventID uuid.UUID, teamID *uuid.UUID) error
	UpdateAwardsLocked(ctx context.Context, eventID uuid.UUID, locked bool) error
}

// Store is the dual-write facade over the fast and durable tiers. Every
// mutation writes the cache first and the durable store second; both must
// succeed or the mutation fails. Sub-states are written as whole objects, so
// the writes are idempotent and replays are safe. Reads prefer cached values
// and fall back to the durable row, so a cache miss never produces a result
// worse than the last durably persisted value.
type Store struct {
	cache FastCache
	repo  DurableStore
}

func NewStore(cache FastCache, repo DurableStore) *Store {
	return &Store{cache: cache, repo: repo}
}

// Create initializes both tiers for an event going live.
func (s *Store) Create(ctx context.Context, state *models.LiveState) error {
	if err := s.writeAllCacheFields(ctx, state); err != nil {
		return err
	}
	return s.repo.CreateLiveState(ctx, state)
}

// Delete tears down both tiers when the event is deleted.
func (s *Store) Delete(ctx context.Context, eventID uuid.UUID) error {
	if err := s.cache.Purge(ctx, eventID); err != nil {
		return err
	}
	return s.repo.DeleteLiveState(ctx, eventID)
}

// GetFull reconstructs the complete live state: durable row as the base,
// overlaid with any fresher cached fields.
func (s *Store) GetFull(ctx context.Context, eventID uuid.UUID) (*models.LiveState, error) {
	state, err := s.repo.GetLiveState(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if t, found, err := s.cache.GetTimer(ctx, eventID); err == nil && found {
		state.Timer = t
	}
	if a, found, err := s.cache.GetAnimation(ctx, eventID); err == nil && found {
		state.Animation = a
	}
	if r, found, err := s.cache.GetRound(ctx, eventID); err == nil && found {
		state.Round = r
	}
	if id, found, err := s.cache.GetStage(ctx, eventID); err == nil && found {
		state.CurrentStageID = id
	}
	if id, found, err := s.cache.GetTeam(ctx, eventID); err == nil && found {
		state.CurrentTeamID = id
	}
	if locked, found, err := s.cache.GetAwardsLocked(ctx, eventID); err == nil && found {
		state.AwardsLocked = locked
	}
	return state, nil
}

// GetTimer is the scheduler hot path: cache first, durable fallback. A miss
// backfills the cache best-effort.
func (s *Store) GetTimer(ctx context.Context, eventID uuid.UUID) (models.TimerState, error) {
	t, found, err := s.cache.GetTimer(ctx, eventID)
	if err != nil {
		return models.TimerState{}, err
	}
	if found {
		return t, nil
	}

	state, err := s.repo.GetLiveState(ctx, eventID)
	if err != nil {
		return models.TimerState{}, err
	}
	if err := s.cache.SetTimer(ctx, eventID, state.Timer); err != nil {
		log.Warn().Err(err).Str("event_id", eventID.String()).Msg("timer cache backfill failed")
	}
	return state.Timer, nil
}

// PutTimer writes the timer sub-state through both tiers.
func (s *Store) PutTimer(ctx context.Context, eventID uuid.UUID, t models.TimerState) error {
	if err := s.cache.SetTimer(ctx, eventID, t); err != nil {
		return err
	}
	return s.repo.UpdateTimerState(ctx, eventID, t)
}

// PutAnimation writes the animation sub-state through both tiers.
func (s *Store) PutAnimation(ctx context.Context, eventID uuid.UUID, a models.AnimationState) error {
	if err := s.cache.SetAnimation(ctx, eventID, a); err != nil {
		return err
	}
	return s.repo.UpdateAnimationState(ctx, eventID, a)
}

// PutRound writes the round sub-state through both tiers.
func (s *Store) PutRound(ctx context.Context, eventID uuid.UUID, r models.RoundState) error {
	if err := s.cache.SetRound(ctx, eventID, r); err != nil {
		return err
	}
	return s.repo.UpdateRoundState(ctx, eventID, r)
}

// PutStage writes the current stage reference through both tiers.
func (s *Store) PutStage(ctx context.Context, eventID uuid.UUID, stageID *uuid.UUID) error {
	if err := s.cache.SetStage(ctx, eventID, stageID); err != nil {
		return err
	}
	return s.repo.UpdateCurrentStage(ctx, eventID, stageID)
}

// PutTeam writes the current team reference through both tiers.
func (s *Store) PutTeam(ctx context.Context, eventID uuid.UUID, teamID *uuid.UUID) error {
	if err := s.cache.SetTeam(ctx, eventID, teamID); err != nil {
		return err
	}
	return s.repo.UpdateCurrentTeam(ctx, eventID, teamID)
}

// PutAwardsLocked writes the awards latch through both tiers.
func (s *Store) PutAwardsLocked(ctx context.Context, eventID uuid.UUID, locked bool) error {
	if err := s.cache.SetAwardsLocked(ctx, eventID, locked); err != nil {
		return err
	}
	return s.repo.UpdateAwardsLocked(ctx, eventID, locked)
}

func (s *Store) writeAllCacheFields(ctx context.Context, state *models.LiveState) error {
	if err := s.cache.SetTimer(ctx, state.EventID, state.Timer); err != nil {
		return err
	}
	if err := s.cache.SetAnimation(ctx, state.EventID, state.Animation); err != nil {
		return err
	}
	if err := s.cache.SetRound(ctx, state.EventID, state.Round); err != nil {
		return err
	}
	if err := s.cache.SetStage(ctx, state.EventID, state.CurrentStageID); err != nil {
		return err
	}
	if err := s.cache.SetTeam(ctx, state.EventID, state.CurrentTeamID); err != nil {
		return err
	}
	return s.cache.SetAwardsLocked(ctx, state.EventID, state.AwardsLocked)
}
