package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/stagesync/stagesync/internal/events"
)

// ConsumerConfig holds NATS connection settings for the bus consumer.
type ConsumerConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConsumerConfig returns the production NATS settings.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1, // infinite
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer subscribes to the live event subjects and dispatches each
// envelope to the local hub, honouring role scoping.
type EventConsumer struct {
	hub *Hub
	nc  *nats.Conn
	sub *nats.Subscription
}

// ConnectNATS establishes a NATS connection with logging reconnect handlers.
func ConnectNATS(cfg ConsumerConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// NewEventConsumer subscribes the hub to every live event subject.
func NewEventConsumer(hub *Hub, nc *nats.Conn) (*EventConsumer, error) {
	ec := &EventConsumer{hub: hub, nc: nc}

	sub, err := nc.Subscribe(SubjectPrefix+".>", ec.handleMessage)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s.>: %w", SubjectPrefix, err)
	}
	ec.sub = sub

	log.Info().Str("subject", SubjectPrefix+".>").Msg("live event consumer subscribed")
	return ec, nil
}

func (ec *EventConsumer) handleMessage(msg *nats.Msg) {
	var env events.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal envelope")
		return
	}

	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("envelope carries invalid event id")
		return
	}

	ec.hub.Dispatch(eventID, &env)

	log.Debug().
		Str("event_id", env.EventID).
		Str("event_type", string(env.Type)).
		Msg("bus event dispatched to hub")
}

// Stop unsubscribes. The shared NATS connection is closed by the owner.
func (ec *EventConsumer) Stop() error {
	if ec.sub != nil {
		return ec.sub.Unsubscribe()
	}
	return nil
}
