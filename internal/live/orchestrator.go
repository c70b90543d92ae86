package live

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/stagesync/stagesync/internal/events"
	"github.com/stagesync/stagesync/internal/models"
)

// StateStore is what the engine needs from the dual-tier persistence layer.
// Implemented by livestate.Store.
type StateStore interface {
	Create(ctx context.Context, state *models.LiveState) error
	Delete(ctx context.Context, eventID uuid.UUID) error
	GetFull(ctx context.Context, eventID uuid.UUID) (*models.LiveState, error)
	GetTimer(ctx context.Context, eventID uuid.UUID) (models.TimerState, error)
	PutTimer(ctx context.Context, eventID uuid.UUID, t models.TimerState) error
	PutAnimation(ctx context.Context, eventID uuid.UUID, a models.AnimationState) error
	PutRound(ctx context.Context, eventID uuid.UUID, r models.RoundState) error
	PutStage(ctx context.Context, eventID uuid.UUID, stageID *uuid.UUID) error
	PutTeam(ctx context.Context, eventID uuid.UUID, teamID *uuid.UUID) error
	PutAwardsLocked(ctx context.Context, eventID uuid.UUID, locked bool) error
}

// Orchestrator is the control layer for one logical instance: it receives
// operator commands, runs the relevant state machine, persists the result
// (cache first, then durable) and only then fans the change out. A failed
// write never broadcasts.
type Orchestrator struct {
	store       StateStore
	teams       TeamsService
	stages      StagesService
	scoring     ScoringService
	broadcaster Broadcaster
	scheduler   *SyncScheduler
	timers      TimerEngine
	clock       clockwork.Clock
}

func NewOrchestrator(store StateStore, teams TeamsService, stages StagesService, scoring ScoringService, broadcaster Broadcaster, scheduler *SyncScheduler, clock clockwork.Clock) *Orchestrator {
	return &Orchestrator{
		store:       store,
		teams:       teams,
		stages:      stages,
		scoring:     scoring,
		broadcaster: broadcaster,
		scheduler:   scheduler,
		timers:      NewTimerEngine(clock),
		clock:       clock,
	}
}

// GoLive creates the live state for an event with default sub-states.
func (o *Orchestrator) GoLive(ctx context.Context, eventID uuid.UUID) (*models.LiveState, error) {
	state := models.NewLiveState(eventID)
	if err := o.store.Create(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// EndLive tears the live state down when the event is deleted.
func (o *Orchestrator) EndLive(ctx context.Context, eventID uuid.UUID) error {
	o.scheduler.Cancel(eventID)
	return o.store.Delete(ctx, eventID)
}

// FullState returns the current authoritative state for an event.
func (o *Orchestrator) FullState(ctx context.Context, eventID uuid.UUID) (*models.LiveState, error) {
	return o.store.GetFull(ctx, eventID)
}

// SetCurrentStage makes a stage current and applies the stage-type animation
// seeding rule: a jury reveal stage seeds one step per jury member, an awards
// stage seeds the podium, anything else clears the animation.
func (o *Orchestrator) SetCurrentStage(ctx context.Context, eventID, stageID uuid.UUID) (*models.LiveState, error) {
	stage, err := o.stages.GetStage(ctx, stageID)
	if err != nil {
		return nil, fmt.Errorf("resolve stage: %w", err)
	}

	anim, err := seedAnimationForStage(ctx, o.scoring, eventID, stage.Type)
	if err != nil {
		return nil, err
	}

	if err := o.store.PutStage(ctx, eventID, &stageID); err != nil {
		return nil, err
	}
	if err := o.store.PutAnimation(ctx, eventID, anim); err != nil {
		return nil, err
	}

	o.emit(eventID, events.TypeStageChanged, events.StageChangedPayload{
		StageID:   stageID.String(),
		StageType: stage.Type,
		Animation: anim,
	})
	return o.store.GetFull(ctx, eventID)
}

// SetCurrentTeam makes a team the current presenter. The team must belong to
// the event.
func (o *Orchestrator) SetCurrentTeam(ctx context.Context, eventID, teamID uuid.UUID) (*models.LiveState, error) {
	team, err := o.teams.GetTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("resolve team: %w", err)
	}
	if team.EventID != eventID {
		return nil, ErrTeamNotInEvent
	}

	if err := o.store.PutTeam(ctx, eventID, &teamID); err != nil {
		return nil, err
	}
	if err := o.teams.UpdateTeamStatus(ctx, teamID, models.TeamStatusPresenting); err != nil {
		// Status is a collaborator-side convenience; the live state is already
		// committed.
		log.Warn().Err(err).Str("team_id", teamID.String()).Msg("update team status failed")
	}

	o.emit(eventID, events.TypeTeamSelected, events.TeamSelectedPayload{
		TeamID:   teamID.String(),
		TeamName: team.Name,
	})
	return o.store.GetFull(ctx, eventID)
}

// AdvanceToNextTeam marks the current team done and selects the next one in
// the round order. Returns ErrRoundExhausted (with the completed set already
// persisted) when the order has run out.
func (o *Orchestrator) AdvanceToNextTeam(ctx context.Context, eventID uuid.UUID) (*models.LiveState, error) {
	state, err := o.store.GetFull(ctx, eventID)
	if err != nil {
		return nil, err
	}

	round, next, advErr := AdvanceRound(state.Round, state.CurrentTeamID)
	if state.CurrentTeamID != nil {
		if err := o.teams.UpdateTeamStatus(ctx, *state.CurrentTeamID, models.TeamStatusCompleted); err != nil {
			log.Warn().Err(err).Str("team_id", state.CurrentTeamID.String()).Msg("update team status failed")
		}
	}
	if err := o.store.PutRound(ctx, eventID, round); err != nil {
		return nil, err
	}

	if advErr != nil {
		// Soft failure: the round is over. The completed set still advanced,
		// so clients get the refreshed state.
		o.broadcastFullState(ctx, eventID)
		state.Round = round
		return state, advErr
	}
	return o.SetCurrentTeam(ctx, eventID, *next)
}

// StartTimer starts a fresh timer run and schedules the sync tick for the
// event. Always allowed; overwrites any prior timer.
func (o *Orchestrator) StartTimer(ctx context.Context, eventID uuid.UUID, typ models.TimerType, durationSec int, label string) (models.TimerState, error) {
	ts := o.timers.Start(typ, durationSec, label)
	if err := o.store.PutTimer(ctx, eventID, ts); err != nil {
		return models.TimerState{}, err
	}
	o.emitTimerSync(eventID, ts)
	o.scheduler.Schedule(eventID)
	return ts, nil
}

// PauseTimer freezes the running timer and cancels the sync tick.
func (o *Orchestrator) PauseTimer(ctx context.Context, eventID uuid.UUID) (models.TimerState, error) {
	cur, err := o.store.GetTimer(ctx, eventID)
	if err != nil {
		return models.TimerState{}, err
	}
	ts, err := o.timers.Pause(cur)
	if err != nil {
		return cur, err
	}
	if err := o.store.PutTimer(ctx, eventID, ts); err != nil {
		return models.TimerState{}, err
	}
	o.scheduler.Cancel(eventID)
	o.emitTimerSync(eventID, ts)
	return ts, nil
}

// ResumeTimer restarts a paused timer with its frozen remainder and
// reschedules the sync tick.
func (o *Orchestrator) ResumeTimer(ctx context.Context, eventID uuid.UUID) (models.TimerState, error) {
	cur, err := o.store.GetTimer(ctx, eventID)
	if err != nil {
		return models.TimerState{}, err
	}
	ts, err := o.timers.Resume(cur)
	if err != nil {
		return cur, err
	}
	if err := o.store.PutTimer(ctx, eventID, ts); err != nil {
		return models.TimerState{}, err
	}
	o.emitTimerSync(eventID, ts)
	o.scheduler.Schedule(eventID)
	return ts, nil
}

// ResetTimer returns the timer to idle and cancels the sync tick.
func (o *Orchestrator) ResetTimer(ctx context.Context, eventID uuid.UUID) (models.TimerState, error) {
	ts := o.timers.Reset()
	if err := o.store.PutTimer(ctx, eventID, ts); err != nil {
		return models.TimerState{}, err
	}
	o.scheduler.Cancel(eventID)
	o.emitTimerSync(eventID, ts)
	return ts, nil
}

// RandomizeRound shuffles the teams assigned to a round into a fresh
// presentation order and returns the teams in that order. The current
// presenter is cleared along with the old order; the next advance starts
// the new order from the top.
func (o *Orchestrator) RandomizeRound(ctx context.Context, eventID uuid.UUID, round int) ([]models.Team, error) {
	teams, err := o.teams.TeamsByRound(ctx, eventID, round)
	if err != nil {
		return nil, fmt.Errorf("fetch teams for round %d: %w", round, err)
	}
	if len(teams) == 0 {
		return nil, ErrNoTeamsInRound
	}

	rs := RandomizeRound(round, teams)
	if err := o.store.PutRound(ctx, eventID, rs); err != nil {
		return nil, err
	}
	if err := o.store.PutTeam(ctx, eventID, nil); err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}
	ordered := make([]models.Team, len(rs.TeamOrder))
	orderIDs := make([]string, len(rs.TeamOrder))
	for i, id := range rs.TeamOrder {
		ordered[i] = byID[id]
		orderIDs[i] = id.String()
	}

	o.emit(eventID, events.TypeRoundRandomized, events.RoundRandomizedPayload{
		Round:     round,
		TeamOrder: orderIDs,
	})
	return ordered, nil
}

// TriggerAnimation starts a reveal sequence explicitly.
func (o *Orchestrator) TriggerAnimation(ctx context.Context, eventID uuid.UUID, animationID string, totalSteps int, params map[string]any) (models.AnimationState, error) {
	anim := TriggerAnimation(animationID, totalSteps, params)
	if err := o.store.PutAnimation(ctx, eventID, anim); err != nil {
		return models.AnimationState{}, err
	}
	o.emit(eventID, events.TypeAnimationTrigger, events.AnimationPayload{Animation: anim})
	return anim, nil
}

// AdvanceAnimation moves the active reveal forward one step.
func (o *Orchestrator) AdvanceAnimation(ctx context.Context, eventID uuid.UUID) (models.AnimationState, error) {
	state, err := o.store.GetFull(ctx, eventID)
	if err != nil {
		return models.AnimationState{}, err
	}
	anim, err := AdvanceAnimation(state.Animation)
	if err != nil {
		return state.Animation, err
	}
	if err := o.store.PutAnimation(ctx, eventID, anim); err != nil {
		return models.AnimationState{}, err
	}
	o.emit(eventID, events.TypeAnimationStep, events.AnimationPayload{Animation: anim})
	return anim, nil
}

// LockAwards flips the one-way awards latch. Locking an already locked event
// is a harmless no-op.
func (o *Orchestrator) LockAwards(ctx context.Context, eventID uuid.UUID) (*models.LiveState, error) {
	state, err := o.store.GetFull(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if state.AwardsLocked {
		return state, nil
	}
	if err := o.store.PutAwardsLocked(ctx, eventID, true); err != nil {
		return nil, err
	}
	state.AwardsLocked = true
	o.broadcastFullState(ctx, eventID)
	return state, nil
}

// NotifyScoreSubmitted relays a jury submission to operator consoles only.
// Rejected once awards are locked, so the scoring collaborator cannot commit
// a write past the latch.
func (o *Orchestrator) NotifyScoreSubmitted(ctx context.Context, eventID, teamID uuid.UUID, juryID string) error {
	state, err := o.store.GetFull(ctx, eventID)
	if err != nil {
		return err
	}
	if state.AwardsLocked {
		return ErrAwardsLocked
	}

	env, err := events.New(eventID, events.TypeScoreSubmitted, events.ScoreSubmittedPayload{
		TeamID:      teamID.String(),
		JuryID:      juryID,
		SubmittedAt: o.clock.Now().UTC(),
	})
	if err != nil {
		return err
	}
	o.broadcaster.BroadcastToRole(eventID, models.RoleOperator, env)
	return nil
}

// broadcastFullState pushes the freshly committed state to every role.
func (o *Orchestrator) broadcastFullState(ctx context.Context, eventID uuid.UUID) {
	state, err := o.store.GetFull(ctx, eventID)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("load state for full broadcast failed")
		return
	}
	o.emit(eventID, events.TypeFullStateUpdate, events.FullStatePayload{State: state})
}

func (o *Orchestrator) emitTimerSync(eventID uuid.UUID, ts models.TimerState) {
	now := o.clock.Now()
	o.emit(eventID, events.TypeTimerSync, events.TimerSyncPayload{
		Timer:       ts,
		RemainingMs: ts.Remaining(now),
		ServerTime:  now.UnixMilli(),
	})
}

func (o *Orchestrator) emit(eventID uuid.UUID, typ events.Type, payload any) {
	env, err := events.New(eventID, typ, payload)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID.String()).Str("type", string(typ)).Msg("build event failed")
		return
	}
	o.broadcaster.Broadcast(eventID, env)
}
