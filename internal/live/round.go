package live

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/stagesync/stagesync/internal/models"
)

// RandomizeRound establishes the presentation order for a round with an
// unbiased Fisher-Yates shuffle of the given teams. The team index and the
// completed set reset with the new order. This is the only place order is
// established; it stays fixed until the next randomize call.
func RandomizeRound(round int, teams []models.Team) models.RoundState {
	order := make([]uuid.UUID, len(teams))
	for i, t := range teams {
		order[i] = t.ID
	}
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return models.RoundState{
		CurrentRound:     round,
		TeamOrder:        order,
		CurrentTeamIndex: 0,
		TeamsCompleted:   []uuid.UUID{},
	}
}

// AdvanceRound marks the current team done and moves the index forward.
// Returns the id of the next team to present, or ErrRoundExhausted when the
// order has run out (the completed set still grows in that case).
//
// A current team that is not part of TeamOrder is ignored: it belongs to a
// previous order and must not pollute this round's completed set. In that
// case, and when no team is presenting at all, the advance selects the team
// at the current index without moving it, so a fresh round starts at
// TeamOrder[0].
func AdvanceRound(cur models.RoundState, currentTeam *uuid.UUID) (models.RoundState, *uuid.UUID, error) {
	presenting := currentTeam != nil && inOrder(cur.TeamOrder, *currentTeam)
	if presenting {
		if !cur.Completed(*currentTeam) {
			cur.TeamsCompleted = append(cur.TeamsCompleted, *currentTeam)
		}
		if cur.CurrentTeamIndex < len(cur.TeamOrder) {
			cur.CurrentTeamIndex++
		}
	}
	if cur.CurrentTeamIndex >= len(cur.TeamOrder) {
		return cur, nil, ErrRoundExhausted
	}
	next := cur.TeamOrder[cur.CurrentTeamIndex]
	return cur, &next, nil
}

func inOrder(order []uuid.UUID, id uuid.UUID) bool {
	for _, o := range order {
		if o == id {
			return true
		}
	}
	return false
}
