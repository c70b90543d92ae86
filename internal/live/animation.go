package live

import "github.com/stagesync/stagesync/internal/models"

// Animation identifiers known to clients. The engine treats them opaquely
// except where the stage seeding table references them.
const (
	AnimationJuryReveal = "jury_reveal"
	AnimationAwards     = "awards"
)

// AwardsPodiumSteps is the fixed step count for the awards podium reveal
// (third, second, first place).
const AwardsPodiumSteps = 3

// TriggerAnimation replaces the current animation state with a fresh sequence
// at step zero.
func TriggerAnimation(animationID string, totalSteps int, params map[string]any) models.AnimationState {
	return models.AnimationState{
		CurrentAnimation: &animationID,
		Step:             0,
		TotalSteps:       totalSteps,
		Params:           params,
	}
}

// AdvanceAnimation increments the step by exactly one. Rejected with
// ErrAnimationComplete at the final step and ErrNoAnimation when nothing is
// active; the input state is returned unchanged in both cases.
func AdvanceAnimation(cur models.AnimationState) (models.AnimationState, error) {
	if cur.CurrentAnimation == nil {
		return cur, ErrNoAnimation
	}
	if cur.Step >= cur.TotalSteps {
		return cur, ErrAnimationComplete
	}
	cur.Step++
	return cur, nil
}

// ClearAnimation returns the empty animation state. Stage transitions to
// stage types without a seed rule clear the animation implicitly.
func ClearAnimation() models.AnimationState {
	return models.AnimationState{}
}
