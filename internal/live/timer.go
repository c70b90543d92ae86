package live

import (
	"github.com/jonboulle/clockwork"

	"github.com/stagesync/stagesync/internal/models"
)

// TimerEngine implements the timer state machine:
//
//	idle -> running -> {paused <-> running} -> completed
//
// with idle and completed reachable directly via Reset. All transitions are
// pure functions over TimerState; the clock is injected so tests can drive
// time explicitly.
type TimerEngine struct {
	clock clockwork.Clock
}

func NewTimerEngine(clock clockwork.Clock) TimerEngine {
	return TimerEngine{clock: clock}
}

// Start begins a new timer run, overwriting any prior timer. Always allowed.
func (e TimerEngine) Start(typ models.TimerType, durationSec int, label string) models.TimerState {
	return models.TimerState{
		Type:            typ,
		Status:          models.TimerStatusRunning,
		DurationMs:      int64(durationSec) * 1000,
		ServerStartTime: e.clock.Now().UnixMilli(),
		Label:           label,
	}
}

// Pause freezes a running timer, capturing the remaining time at the pause
// instant. Rejected with ErrTimerNotRunning otherwise; the input state is
// returned unchanged.
func (e TimerEngine) Pause(cur models.TimerState) (models.TimerState, error) {
	if cur.Status != models.TimerStatusRunning {
		return cur, ErrTimerNotRunning
	}
	remaining := cur.Remaining(e.clock.Now())
	cur.Status = models.TimerStatusPaused
	cur.PausedRemainingMs = &remaining
	return cur, nil
}

// Resume restarts a paused timer. The remaining time becomes the new duration
// and the start instant is re-anchored to now, so the remaining-time formula
// keeps working unmodified.
func (e TimerEngine) Resume(cur models.TimerState) (models.TimerState, error) {
	if cur.Status != models.TimerStatusPaused || cur.PausedRemainingMs == nil {
		return cur, ErrTimerNotPaused
	}
	cur.Status = models.TimerStatusRunning
	cur.DurationMs = *cur.PausedRemainingMs
	cur.ServerStartTime = e.clock.Now().UnixMilli()
	cur.PausedRemainingMs = nil
	return cur, nil
}

// Reset unconditionally returns the timer to idle defaults.
func (e TimerEngine) Reset() models.TimerState {
	return models.TimerState{
		Type:   models.TimerTypePresentation,
		Status: models.TimerStatusIdle,
	}
}

// Complete marks a running timer as finished. Used by the scheduler when the
// remaining time reaches zero.
func (e TimerEngine) Complete(cur models.TimerState) models.TimerState {
	cur.Status = models.TimerStatusCompleted
	cur.PausedRemainingMs = nil
	return cur
}
