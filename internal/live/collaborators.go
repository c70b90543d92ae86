package live

import (
	"context"

	"github.com/google/uuid"

	"github.com/stagesync/stagesync/internal/events"
	"github.com/stagesync/stagesync/internal/models"
)

// TeamsService is the view of the external teams collaborator this engine
// consumes. Team CRUD lives elsewhere.
type TeamsService interface {
	GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error)
	TeamsByRound(ctx context.Context, eventID uuid.UUID, round int) ([]models.Team, error)
	UpdateTeamStatus(ctx context.Context, teamID uuid.UUID, status models.TeamStatus) error
}

// StagesService resolves stages so the orchestrator can apply the stage-type
// animation seeding rule.
type StagesService interface {
	GetStage(ctx context.Context, stageID uuid.UUID) (*models.Stage, error)
}

// ScoringService is consumed for animation seeding only; the awards latch is
// enforced by the engine, scoring enforces it on its own write paths by
// consulting the live state.
type ScoringService interface {
	JuryHeadcount(ctx context.Context, eventID uuid.UUID) (int, error)
}

// Broadcaster fans committed state changes out to connected clients. The hub
// implements it directly for single-instance deployments; the NATS publisher
// implements it for multi-instance ones. Delivery is best-effort at-most-once;
// disconnected clients resynchronize on their next join.
type Broadcaster interface {
	Broadcast(eventID uuid.UUID, env *events.Envelope)
	BroadcastToRole(eventID uuid.UUID, role models.Role, env *events.Envelope)
}
