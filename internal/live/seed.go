package live

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/stagesync/stagesync/internal/models"
)

// seedRule describes how a stage type seeds animation state when it becomes
// current. The mapping is a business rule: making a stage reveal-capable is a
// data change here, not a new conditional in the orchestrator.
type seedRule struct {
	animation string
	// fixedSteps is used when stepsFromJury is false.
	fixedSteps    int
	stepsFromJury bool
}

// animationSeeds maps stage types to their animation seed. Stage types absent
// from the table clear the animation.
var animationSeeds = map[models.StageType]seedRule{
	models.StageTypeJuryReveal: {animation: AnimationJuryReveal, stepsFromJury: true},
	models.StageTypeAwards:     {animation: AnimationAwards, fixedSteps: AwardsPodiumSteps},
}

// seedAnimationForStage resolves the animation state a stage transition
// implies. Stage types without a rule return the cleared state.
func seedAnimationForStage(ctx context.Context, scoring ScoringService, eventID uuid.UUID, stageType models.StageType) (models.AnimationState, error) {
	rule, ok := animationSeeds[stageType]
	if !ok {
		return ClearAnimation(), nil
	}

	steps := rule.fixedSteps
	if rule.stepsFromJury {
		headcount, err := scoring.JuryHeadcount(ctx, eventID)
		if err != nil {
			return models.AnimationState{}, fmt.Errorf("jury headcount for animation seed: %w", err)
		}
		steps = headcount
	}
	return TriggerAnimation(rule.animation, steps, nil), nil
}
