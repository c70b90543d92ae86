package live

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/stagesync/stagesync/internal/events"
	"github.com/stagesync/stagesync/internal/livestate"
	"github.com/stagesync/stagesync/internal/models"
)

// memStore is an in-memory StateStore for exercising the orchestrator and
// scheduler without Redis or Postgres. Error fields inject write failures.
type memStore struct {
	mu     sync.Mutex
	states map[uuid.UUID]*models.LiveState

	getErr          error
	putTimerErr     error
	putAnimationErr error
}

func newMemStore() *memStore {
	return &memStore{states: make(map[uuid.UUID]*models.LiveState)}
}

func (m *memStore) seed(state *models.LiveState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.states[state.EventID] = &cp
}

func (m *memStore) Create(ctx context.Context, state *models.LiveState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.states[state.EventID] = &cp
	return nil
}

func (m *memStore) Delete(ctx context.Context, eventID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[eventID]; !ok {
		return livestate.ErrNotFound
	}
	delete(m.states, eventID)
	return nil
}

func (m *memStore) GetFull(ctx context.Context, eventID uuid.UUID) (*models.LiveState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	state, ok := m.states[eventID]
	if !ok {
		return nil, livestate.ErrNotFound
	}
	cp := *state
	return &cp, nil
}

func (m *memStore) GetTimer(ctx context.Context, eventID uuid.UUID) (models.TimerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return models.TimerState{}, m.getErr
	}
	state, ok := m.states[eventID]
	if !ok {
		return models.TimerState{}, livestate.ErrNotFound
	}
	return state.Timer, nil
}

func (m *memStore) PutTimer(ctx context.Context, eventID uuid.UUID, t models.TimerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putTimerErr != nil {
		return m.putTimerErr
	}
	return m.mutate(eventID, func(s *models.LiveState) { s.Timer = t })
}

func (m *memStore) PutAnimation(ctx context.Context, eventID uuid.UUID, a models.AnimationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putAnimationErr != nil {
		return m.putAnimationErr
	}
	return m.mutate(eventID, func(s *models.LiveState) { s.Animation = a })
}

func (m *memStore) PutRound(ctx context.Context, eventID uuid.UUID, r models.RoundState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutate(eventID, func(s *models.LiveState) { s.Round = r })
}

func (m *memStore) PutStage(ctx context.Context, eventID uuid.UUID, stageID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutate(eventID, func(s *models.LiveState) { s.CurrentStageID = stageID })
}

func (m *memStore) PutTeam(ctx context.Context, eventID uuid.UUID, teamID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutate(eventID, func(s *models.LiveState) { s.CurrentTeamID = teamID })
}

func (m *memStore) PutAwardsLocked(ctx context.Context, eventID uuid.UUID, locked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutate(eventID, func(s *models.LiveState) { s.AwardsLocked = locked })
}

func (m *memStore) mutate(eventID uuid.UUID, fn func(*models.LiveState)) error {
	state, ok := m.states[eventID]
	if !ok {
		return livestate.ErrNotFound
	}
	fn(state)
	return nil
}

// recorded is one captured broadcast.
type recorded struct {
	eventID uuid.UUID
	env     *events.Envelope
	role    models.Role
	scoped  bool
}

// recorder is a Broadcaster that captures everything it is handed.
type recorder struct {
	mu   sync.Mutex
	sent []recorded
}

func (r *recorder) Broadcast(eventID uuid.UUID, env *events.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, recorded{eventID: eventID, env: env})
}

func (r *recorder) BroadcastToRole(eventID uuid.UUID, role models.Role, env *events.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, recorded{eventID: eventID, env: env, role: role, scoped: true})
}

func (r *recorder) ofType(typ events.Type) []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recorded
	for _, rec := range r.sent {
		if rec.env.Type == typ {
			out = append(out, rec)
		}
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type fakeTeams struct {
	mu            sync.Mutex
	teams         map[uuid.UUID]models.Team
	statusUpdates map[uuid.UUID]models.TeamStatus
}

func newFakeTeams(teams ...models.Team) *fakeTeams {
	f := &fakeTeams{
		teams:         make(map[uuid.UUID]models.Team),
		statusUpdates: make(map[uuid.UUID]models.TeamStatus),
	}
	for _, t := range teams {
		f.teams[t.ID] = t
	}
	return f
}

func (f *fakeTeams) GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[teamID]
	if !ok {
		return nil, errors.New("team not found")
	}
	return &t, nil
}

func (f *fakeTeams) TeamsByRound(ctx context.Context, eventID uuid.UUID, round int) ([]models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Team
	for _, t := range f.teams {
		if t.EventID == eventID && t.Round == round {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTeams) UpdateTeamStatus(ctx context.Context, teamID uuid.UUID, status models.TeamStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusUpdates[teamID] = status
	return nil
}

type fakeStages struct {
	stages map[uuid.UUID]models.Stage
}

func newFakeStages(stages ...models.Stage) *fakeStages {
	f := &fakeStages{stages: make(map[uuid.UUID]models.Stage)}
	for _, s := range stages {
		f.stages[s.ID] = s
	}
	return f
}

func (f *fakeStages) GetStage(ctx context.Context, stageID uuid.UUID) (*models.Stage, error) {
	s, ok := f.stages[stageID]
	if !ok {
		return nil, errors.New("stage not found")
	}
	return &s, nil
}

type fakeScoring struct {
	headcount int
	err       error
}

func (f *fakeScoring) JuryHeadcount(ctx context.Context, eventID uuid.UUID) (int, error) {
	return f.headcount, f.err
}
