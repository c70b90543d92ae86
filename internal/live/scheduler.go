package live

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/stagesync/stagesync/internal/events"
	"github.com/stagesync/stagesync/internal/models"
)

// SchedulerConfig tunes the sync tick.
type SchedulerConfig struct {
	// TickInterval is how often a running timer is resynchronized.
	TickInterval time.Duration
	// WarningThresholdsMs are the remaining-time marks (in ms) at which a
	// warning broadcast fires, e.g. 60000, 30000, 10000.
	WarningThresholdsMs []int64
}

// DefaultSchedulerConfig returns the production tick settings.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickInterval:        time.Second,
		WarningThresholdsMs: []int64{60000, 30000, 10000},
	}
}

// SyncScheduler owns one recurring tick per event with a running timer. Each
// tick recomputes the remaining time from the fast cache, emits threshold
// warnings, and finalizes the timer when it hits zero. The tick registry is
// an explicit, mutex-guarded map owned by this value; scheduling is
// re-entrant (a new tick for an event first cancels the old one), so a timer
// run never has two tickers racing to complete it.
type SyncScheduler struct {
	store       StateStore
	broadcaster Broadcaster
	clock       clockwork.Clock
	cfg         SchedulerConfig
	timers      TimerEngine

	mu    sync.Mutex
	ticks map[uuid.UUID]*tick
}

type tick struct {
	cancel context.CancelFunc
}

func NewSyncScheduler(store StateStore, broadcaster Broadcaster, clock clockwork.Clock, cfg SchedulerConfig) *SyncScheduler {
	thresholds := append([]int64(nil), cfg.WarningThresholdsMs...)
	sort.Slice(thresholds, func(i, j int) bool { return thresholds[i] > thresholds[j] })
	cfg.WarningThresholdsMs = thresholds

	return &SyncScheduler{
		store:       store,
		broadcaster: broadcaster,
		clock:       clock,
		cfg:         cfg,
		timers:      NewTimerEngine(clock),
		ticks:       make(map[uuid.UUID]*tick),
	}
}

// Schedule starts the recurring tick for an event, cancelling any tick that
// is already running for it.
func (s *SyncScheduler) Schedule(eventID uuid.UUID) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &tick{cancel: cancel}

	s.mu.Lock()
	if old, ok := s.ticks[eventID]; ok {
		old.cancel()
		log.Debug().Str("event_id", eventID.String()).Msg("replaced existing sync tick")
	}
	s.ticks[eventID] = t
	s.mu.Unlock()

	go s.run(ctx, eventID, t)
}

// Cancel stops the tick for an event, if any. Safe to call when none exists.
func (s *SyncScheduler) Cancel(eventID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.ticks[eventID]; ok {
		t.cancel()
		delete(s.ticks, eventID)
	}
}

// Active reports whether the event currently has a tick scheduled.
func (s *SyncScheduler) Active(eventID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ticks[eventID]
	return ok
}

// Shutdown cancels every tick. Used on process exit.
func (s *SyncScheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.ticks {
		t.cancel()
		delete(s.ticks, id)
	}
}

// remove clears the registry entry for a tick that ended on its own, unless a
// newer tick has already replaced it.
func (s *SyncScheduler) remove(eventID uuid.UUID, t *tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.ticks[eventID]; ok && cur == t {
		delete(s.ticks, eventID)
	}
}

func (s *SyncScheduler) run(ctx context.Context, eventID uuid.UUID, t *tick) {
	defer s.remove(eventID, t)

	// Thresholds at or above the remaining time when the run starts are
	// treated as already fired: a resumed 50s timer must not warn about the
	// 60s mark, and "already fired" is tracked explicitly per run rather than
	// re-derived from narrow remaining-time bands each tick.
	ts, err := s.store.GetTimer(ctx, eventID)
	if err != nil {
		// Without the starting remainder the pre-skip cannot run, and a
		// resumed timer could warn about a mark above where it started.
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("sync tick initial read failed, cancelling tick")
		return
	}
	nextThreshold := 0
	r0 := ts.Remaining(s.clock.Now())
	for nextThreshold < len(s.cfg.WarningThresholdsMs) && s.cfg.WarningThresholdsMs[nextThreshold] >= r0 {
		nextThreshold++
	}

	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			done := s.handleTick(ctx, eventID, &nextThreshold)
			if done {
				return
			}
		}
	}
}

// handleTick performs one resynchronization pass. Returns true when the tick
// should stop (timer finished, no longer running, or the store failed).
func (s *SyncScheduler) handleTick(ctx context.Context, eventID uuid.UUID, nextThreshold *int) bool {
	ts, err := s.store.GetTimer(ctx, eventID)
	if err != nil {
		// Contain store failures inside the scheduler: log and cancel this
		// tick instead of retrying in a tight loop.
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("sync tick read failed, cancelling tick")
		return true
	}
	if ts.Status != models.TimerStatusRunning {
		return true
	}

	now := s.clock.Now()
	remaining := ts.Remaining(now)

	if remaining <= 0 {
		return s.completeTimer(ctx, eventID, ts)
	}

	s.emit(eventID, events.TypeTimerSync, events.TimerSyncPayload{
		Timer:       ts,
		RemainingMs: remaining,
		ServerTime:  now.UnixMilli(),
	})

	for *nextThreshold < len(s.cfg.WarningThresholdsMs) && remaining <= s.cfg.WarningThresholdsMs[*nextThreshold] {
		s.emit(eventID, events.TypeTimerWarning, events.TimerWarningPayload{
			ThresholdMs: s.cfg.WarningThresholdsMs[*nextThreshold],
			RemainingMs: remaining,
		})
		*nextThreshold++
	}
	return false
}

// completeTimer finalizes a run that reached zero: persist first, broadcast
// after, then cancel this tick. Always returns true.
func (s *SyncScheduler) completeTimer(ctx context.Context, eventID uuid.UUID, ts models.TimerState) bool {
	completed := s.timers.Complete(ts)
	if err := s.store.PutTimer(ctx, eventID, completed); err != nil {
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("persist completed timer failed, cancelling tick")
		return true
	}

	s.emit(eventID, events.TypeTimerSync, events.TimerSyncPayload{
		Timer:       completed,
		RemainingMs: 0,
		ServerTime:  s.clock.Now().UnixMilli(),
	})
	s.emit(eventID, events.TypeTimerCompleted, events.TimerCompletedPayload{
		Type:  completed.Type,
		Label: completed.Label,
	})

	log.Info().
		Str("event_id", eventID.String()).
		Str("timer_type", string(completed.Type)).
		Msg("timer completed")
	return true
}

func (s *SyncScheduler) emit(eventID uuid.UUID, typ events.Type, payload any) {
	env, err := events.New(eventID, typ, payload)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID.String()).Str("type", string(typ)).Msg("build event failed")
		return
	}
	s.broadcaster.Broadcast(eventID, env)
}
