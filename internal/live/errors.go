package live

import "errors"

// Soft failures: the command is rejected, the current state is returned
// unchanged, and the caller gets the reason. None of these crash a request.
var (
	ErrTimerNotRunning   = errors.New("timer is not running")
	ErrTimerNotPaused    = errors.New("timer is not paused")
	ErrAnimationComplete = errors.New("animation already complete")
	ErrNoAnimation       = errors.New("no animation in progress")
	ErrRoundExhausted    = errors.New("round exhausted")
	ErrNoCurrentTeam     = errors.New("no current team selected")
	ErrAwardsLocked      = errors.New("awards are locked")
	ErrTeamNotInEvent    = errors.New("team does not belong to event")
	ErrNoTeamsInRound    = errors.New("no teams assigned to round")
)

// InvalidTransition reports whether err is one of the soft state-machine
// rejections, as opposed to a store or collaborator failure.
func InvalidTransition(err error) bool {
	for _, soft := range []error{
		ErrTimerNotRunning, ErrTimerNotPaused, ErrAnimationComplete, ErrNoAnimation,
		ErrRoundExhausted, ErrNoCurrentTeam, ErrAwardsLocked, ErrTeamNotInEvent, ErrNoTeamsInRound,
	} {
		if errors.Is(err, soft) {
			return true
		}
	}
	return false
}
