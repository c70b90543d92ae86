package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/stagesync/stagesync/internal/clients"
	"github.com/stagesync/stagesync/internal/control"
	"github.com/stagesync/stagesync/internal/dbconfig"
	"github.com/stagesync/stagesync/internal/gateway"
	"github.com/stagesync/stagesync/internal/live"
	"github.com/stagesync/stagesync/internal/livestate"
	"github.com/stagesync/stagesync/internal/models"
)

type Services struct {
	Store        *livestate.Store
	Hub          *gateway.Hub
	Scheduler    *live.SyncScheduler
	Orchestrator *live.Orchestrator
	Control      *control.Handler
	WebSocket    *gateway.WebSocketHandler

	natsConn *nats.Conn
	consumer *gateway.EventConsumer
}

// snapshotStore serves join snapshots straight from the state store, keeping
// the hub independent of the orchestrator.
type snapshotStore struct {
	store *livestate.Store
}

func (s snapshotStore) FullState(ctx context.Context, eventID uuid.UUID) (*models.LiveState, error) {
	return s.store.GetFull(ctx, eventID)
}

func setupServices(config *Config, database *sql.DB, redisClient *redis.Client) (*Services, error) {
	// Storage layer: Redis cache in front of the Postgres repository.
	cache := livestate.NewCache(redisClient, config.cacheTTL())
	repo := livestate.NewRepository(database)
	store := livestate.NewStore(cache, repo)

	// Websocket fanout.
	hub := gateway.NewHub(config.connectionConfig(), snapshotStore{store: store})

	// Event delivery: NATS bridges instances when configured, otherwise the
	// hub broadcasts directly.
	var broadcaster live.Broadcaster = hub
	var natsConn *nats.Conn
	var consumer *gateway.EventConsumer
	if natsCfg := dbconfig.NewNATSConfigFromEnv(); natsCfg.URL != "" {
		consumerCfg := gateway.DefaultConsumerConfig()
		consumerCfg.URL = natsCfg.URL

		nc, err := gateway.ConnectNATS(consumerCfg)
		if err != nil {
			return nil, fmt.Errorf("setup NATS: %w", err)
		}

		ec, err := gateway.NewEventConsumer(hub, nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("setup NATS consumer: %w", err)
		}

		broadcaster = gateway.NewPublisher(nc)
		natsConn = nc
		consumer = ec
		log.Info().Str("url", natsCfg.URL).Msg("event bus enabled")
	}

	// Collaborator services on the event platform.
	platform := clients.NewPlatformClient(getEnv("PLATFORM_BASE_URL", config.Platform.BaseURL))
	if config.Platform.ServiceToken != "" {
		platform.SetHeader("Authorization", "Bearer "+config.Platform.ServiceToken)
	}

	clock := clockwork.NewRealClock()
	scheduler := live.NewSyncScheduler(store, broadcaster, clock, config.schedulerConfig())
	orchestrator := live.NewOrchestrator(store, platform, platform, platform, broadcaster, scheduler, clock)

	return &Services{
		Store:        store,
		Hub:          hub,
		Scheduler:    scheduler,
		Orchestrator: orchestrator,
		Control:      control.NewHandler(orchestrator),
		WebSocket:    gateway.NewWebSocketHandler(hub),
		natsConn:     natsConn,
		consumer:     consumer,
	}, nil
}

func (s *Services) Shutdown() {
	s.Scheduler.Shutdown()
	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			log.Warn().Err(err).Msg("failed to stop NATS consumer")
		}
	}
	if s.natsConn != nil {
		s.natsConn.Close()
	}
}
