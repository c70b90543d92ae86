package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerAnimationStartsAtStepZero(t *testing.T) {
	anim := TriggerAnimation(AnimationJuryReveal, 5, map[string]any{"round": 2})
	require.NotNil(t, anim.CurrentAnimation)
	assert.Equal(t, AnimationJuryReveal, *anim.CurrentAnimation)
	assert.Equal(t, 0, anim.Step)
	assert.Equal(t, 5, anim.TotalSteps)
	assert.Equal(t, map[string]any{"round": 2}, anim.Params)
}

func TestAdvanceAnimationStepsExactlyOnce(t *testing.T) {
	anim := TriggerAnimation(AnimationAwards, 3, nil)

	for want := 1; want <= 3; want++ {
		next, err := AdvanceAnimation(anim)
		require.NoError(t, err)
		assert.Equal(t, want, next.Step)
		anim = next
	}

	// At the final step further advances are rejected and the state does not
	// move.
	got, err := AdvanceAnimation(anim)
	assert.ErrorIs(t, err, ErrAnimationComplete)
	assert.Equal(t, anim, got)

	got, err = AdvanceAnimation(anim)
	assert.ErrorIs(t, err, ErrAnimationComplete)
	assert.Equal(t, anim, got)
}

func TestAdvanceAnimationRejectedWhenNoneActive(t *testing.T) {
	cleared := ClearAnimation()
	got, err := AdvanceAnimation(cleared)
	assert.ErrorIs(t, err, ErrNoAnimation)
	assert.Equal(t, cleared, got)
}
