package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/stagesync/stagesync/internal/events"
	"github.com/stagesync/stagesync/internal/models"
)

// SubjectPrefix is the NATS subject root for live event fan-out. One subject
// per event keeps cross-event ordering irrelevant, matching the engine's
// guarantees.
const SubjectPrefix = "live.events"

func subjectFor(eventID uuid.UUID) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, eventID)
}

// Publisher fans committed state changes out over core NATS so every gateway
// instance can deliver them to its local connections. Delivery to clients is
// at-most-once; reconnecting clients resync via snapshot.
type Publisher struct {
	nc *nats.Conn
}

func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

// Broadcast publishes an event-wide envelope.
func (p *Publisher) Broadcast(eventID uuid.UUID, env *events.Envelope) {
	p.publish(eventID, env)
}

// BroadcastToRole publishes a role-scoped envelope; consumers honour the role
// tag when dispatching to their local hub.
func (p *Publisher) BroadcastToRole(eventID uuid.UUID, role models.Role, env *events.Envelope) {
	scoped := *env
	scoped.Role = role
	p.publish(eventID, &scoped)
}

func (p *Publisher) publish(eventID uuid.UUID, env *events.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("failed to marshal envelope for publish")
		return
	}
	if err := p.nc.Publish(subjectFor(eventID), data); err != nil {
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("failed to publish envelope")
	}
}
