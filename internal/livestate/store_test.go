package livestate

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagesync/stagesync/internal/models"
)

// opLog records the order of tier writes so tests can assert cache-first
// ordering.
type opLog struct {
	ops []string
}

func (l *opLog) record(op string) {
	l.ops = append(l.ops, op)
}

type fakeCache struct {
	log *opLog

	timer     *models.TimerState
	animation *models.AnimationState
	round     *models.RoundState
	stage     **uuid.UUID
	team      **uuid.UUID
	awards    *bool

	setErr error
}

func (f *fakeCache) SetTimer(ctx context.Context, eventID uuid.UUID, t models.TimerState) error {
	f.log.record("cache.SetTimer")
	if f.setErr != nil {
		return f.setErr
	}
	f.timer = &t
	return nil
}

func (f *fakeCache) GetTimer(ctx context.Context, eventID uuid.UUID) (models.TimerState, bool, error) {
	if f.timer == nil {
		return models.TimerState{}, false, nil
	}
	return *f.timer, true, nil
}

func (f *fakeCache) SetAnimation(ctx context.Context, eventID uuid.UUID, a models.AnimationState) error {
	f.log.record("cache.SetAnimation")
	if f.setErr != nil {
		return f.setErr
	}
	f.animation = &a
	return nil
}

func (f *fakeCache) GetAnimation(ctx context.Context, eventID uuid.UUID) (models.AnimationState, bool, error) {
	if f.animation == nil {
		return models.AnimationState{}, false, nil
	}
	return *f.animation, true, nil
}

func (f *fakeCache) SetRound(ctx context.Context, eventID uuid.UUID, r models.RoundState) error {
	f.log.record("cache.SetRound")
	if f.setErr != nil {
		return f.setErr
	}
	f.round = &r
	return nil
}

func (f *fakeCache) GetRound(ctx context.Context, eventID uuid.UUID) (models.RoundState, bool, error) {
	if f.round == nil {
		return models.RoundState{}, false, nil
	}
	return *f.round, true, nil
}

func (f *fakeCache) SetStage(ctx context.Context, eventID uuid.UUID, stageID *uuid.UUID) error {
	f.log.record("cache.SetStage")
	if f.setErr != nil {
		return f.setErr
	}
	f.stage = &stageID
	return nil
}

func (f *fakeCache) GetStage(ctx context.Context, eventID uuid.UUID) (*uuid.UUID, bool, error) {
	if f.stage == nil {
		return nil, false, nil
	}
	return *f.stage, true, nil
}

func (f *fakeCache) SetTeam(ctx context.Context, eventID uuid.UUID, teamID *uuid.UUID) error {
	f.log.record("cache.SetTeam")
	if f.setErr != nil {
		return f.setErr
	}
	f.team = &teamID
	return nil
}

func (f *fakeCache) GetTeam(ctx context.Context, eventID uuid.UUID) (*uuid.UUID, bool, error) {
	if f.team == nil {
		return nil, false, nil
	}
	return *f.team, true, nil
}

func (f *fakeCache) SetAwardsLocked(ctx context.Context, eventID uuid.UUID, locked bool) error {
	f.log.record("cache.SetAwardsLocked")
	if f.setErr != nil {
		return f.setErr
	}
	f.awards = &locked
	return nil
}

func (f *fakeCache) GetAwardsLocked(ctx context.Context, eventID uuid.UUID) (bool, bool, error) {
	if f.awards == nil {
		return false, false, nil
	}
	return *f.awards, true, nil
}

func (f *fakeCache) Purge(ctx context.Context, eventID uuid.UUID) error {
	f.log.record("cache.Purge")
	f.timer, f.animation, f.round, f.stage, f.team, f.awards = nil, nil, nil, nil, nil, nil
	return nil
}

type fakeRepo struct {
	log   *opLog
	state *models.LiveState

	getErr error
	updErr error
}

func (f *fakeRepo) CreateLiveState(ctx context.Context, state *models.LiveState) error {
	f.log.record("repo.CreateLiveState")
	cp := *state
	f.state = &cp
	return nil
}

func (f *fakeRepo) GetLiveState(ctx context.Context, eventID uuid.UUID) (*models.LiveState, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.state == nil {
		return nil, ErrNotFound
	}
	cp := *f.state
	return &cp, nil
}

func (f *fakeRepo) DeleteLiveState(ctx context.Context, eventID uuid.UUID) error {
	f.log.record("repo.DeleteLiveState")
	f.state = nil
	return nil
}

func (f *fakeRepo) UpdateTimerState(ctx context.Context, eventID uuid.UUID, timer models.TimerState) error {
	f.log.record("repo.UpdateTimerState")
	if f.updErr != nil {
		return f.updErr
	}
	f.state.Timer = timer
	return nil
}

func (f *fakeRepo) UpdateAnimationState(ctx context.Context, eventID uuid.UUID, anim models.AnimationState) error {
	f.log.record("repo.UpdateAnimationState")
	if f.updErr != nil {
		return f.updErr
	}
	f.state.Animation = anim
	return nil
}

func (f *fakeRepo) UpdateRoundState(ctx context.Context, eventID uuid.UUID, round models.RoundState) error {
	f.log.record("repo.UpdateRoundState")
	if f.updErr != nil {
		return f.updErr
	}
	f.state.Round = round
	return nil
}

func (f *fakeRepo) UpdateCurrentStage(ctx context.Context, eventID uuid.UUID, stageID *uuid.UUID) error {
	f.log.record("repo.UpdateCurrentStage")
	f.state.CurrentStageID = stageID
	return nil
}

func (f *fakeRepo) UpdateCurrentTeam(ctx context.Context, eventID uuid.UUID, teamID *uuid.UUID) error {
	f.log.record("repo.UpdateCurrentTeam")
	f.state.CurrentTeamID = teamID
	return nil
}

func (f *fakeRepo) UpdateAwardsLocked(ctx context.Context, eventID uuid.UUID, locked bool) error {
	f.log.record("repo.UpdateAwardsLocked")
	f.state.AwardsLocked = locked
	return nil
}

func newStoreFixture() (*Store, *fakeCache, *fakeRepo, *opLog) {
	log := &opLog{}
	cache := &fakeCache{log: log}
	repo := &fakeRepo{log: log}
	return NewStore(cache, repo), cache, repo, log
}

func TestPutTimerWritesCacheBeforeDurable(t *testing.T) {
	store, _, repo, log := newStoreFixture()
	eventID := uuid.New()
	repo.state = models.NewLiveState(eventID)

	ts := models.TimerState{Type: models.TimerTypePresentation, Status: models.TimerStatusRunning, DurationMs: 60_000}
	require.NoError(t, store.PutTimer(context.Background(), eventID, ts))
	assert.Equal(t, []string{"cache.SetTimer", "repo.UpdateTimerState"}, log.ops)
}

func TestPutTimerSkipsDurableWhenCacheFails(t *testing.T) {
	store, cache, repo, log := newStoreFixture()
	eventID := uuid.New()
	repo.state = models.NewLiveState(eventID)
	cache.setErr = assert.AnError

	err := store.PutTimer(context.Background(), eventID, models.TimerState{})
	require.Error(t, err)
	assert.Equal(t, []string{"cache.SetTimer"}, log.ops)
	assert.Equal(t, models.TimerStatusIdle, repo.state.Timer.Status)
}

func TestPutTimerFailsWhenDurableFails(t *testing.T) {
	store, _, repo, _ := newStoreFixture()
	eventID := uuid.New()
	repo.state = models.NewLiveState(eventID)
	repo.updErr = assert.AnError

	err := store.PutTimer(context.Background(), eventID, models.TimerState{Status: models.TimerStatusRunning})
	assert.Error(t, err)
}

func TestCreateWarmsCacheThenPersists(t *testing.T) {
	store, cache, repo, log := newStoreFixture()
	state := models.NewLiveState(uuid.New())

	require.NoError(t, store.Create(context.Background(), state))
	assert.Equal(t, "repo.CreateLiveState", log.ops[len(log.ops)-1])
	require.NotNil(t, cache.timer)
	require.NotNil(t, repo.state)
	assert.Equal(t, state.EventID, repo.state.EventID)
}

func TestDeletePurgesCacheThenDurable(t *testing.T) {
	store, _, repo, log := newStoreFixture()
	state := models.NewLiveState(uuid.New())
	require.NoError(t, store.Create(context.Background(), state))

	require.NoError(t, store.Delete(context.Background(), state.EventID))
	n := len(log.ops)
	assert.Equal(t, []string{"cache.Purge", "repo.DeleteLiveState"}, log.ops[n-2:])
	assert.Nil(t, repo.state)
}

func TestGetTimerPrefersCache(t *testing.T) {
	store, cache, repo, _ := newStoreFixture()
	eventID := uuid.New()
	repo.state = models.NewLiveState(eventID)

	cached := models.TimerState{Status: models.TimerStatusRunning, DurationMs: 90_000}
	cache.timer = &cached

	got, err := store.GetTimer(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, cached, got)
}

func TestGetTimerFallsBackToDurableAndBackfills(t *testing.T) {
	store, cache, repo, _ := newStoreFixture()
	eventID := uuid.New()
	state := models.NewLiveState(eventID)
	state.Timer = models.TimerState{Status: models.TimerStatusPaused}
	repo.state = state

	got, err := store.GetTimer(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, models.TimerStatusPaused, got.Status)
	require.NotNil(t, cache.timer)
	assert.Equal(t, models.TimerStatusPaused, cache.timer.Status)
}

func TestGetFullOverlaysCachedFieldsOnDurableBase(t *testing.T) {
	store, cache, repo, _ := newStoreFixture()
	eventID := uuid.New()
	repo.state = models.NewLiveState(eventID)

	fresh := models.TimerState{Status: models.TimerStatusRunning, DurationMs: 120_000}
	cache.timer = &fresh
	locked := true
	cache.awards = &locked

	state, err := store.GetFull(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, fresh, state.Timer)
	assert.True(t, state.AwardsLocked)
	// Fields without a cached value keep the durable base.
	assert.Nil(t, state.CurrentStageID)
}

func TestGetFullCachedNullRefOverridesDurable(t *testing.T) {
	store, cache, repo, _ := newStoreFixture()
	eventID := uuid.New()
	stageID := uuid.New()
	state := models.NewLiveState(eventID)
	state.CurrentStageID = &stageID
	repo.state = state

	// The cache knows the stage was cleared; a cached null is a value, not a
	// miss.
	var null *uuid.UUID
	cache.stage = &null

	got, err := store.GetFull(context.Background(), eventID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentStageID)
}

func TestGetFullNotFoundPassesThrough(t *testing.T) {
	store, _, _, _ := newStoreFixture()

	_, err := store.GetFull(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
