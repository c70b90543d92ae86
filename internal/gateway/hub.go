package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/stagesync/stagesync/internal/events"
	"github.com/stagesync/stagesync/internal/models"
)

// Channel is a capability-tagged subscription key: every connection is a
// member of exactly one (event, role) channel. Event-wide broadcasts reach
// every role; role broadcasts match on the full key.
type Channel struct {
	EventID uuid.UUID
	Role    models.Role
}

// StateProvider supplies the full-state snapshot sent to a connection on join
// and on an explicit resync request. Implemented by the live orchestrator.
type StateProvider interface {
	FullState(ctx context.Context, eventID uuid.UUID) (*models.LiveState, error)
}

// Hub manages websocket connections for live events, keyed by (event, role)
// channel, and fans committed state changes out to them. Delivery is
// best-effort at-most-once per connected client; a client that misses a
// broadcast resynchronizes via the snapshot it receives on its next join.
type Hub struct {
	channels map[Channel]map[*Connection]bool
	mu       sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	states   StateProvider

	broadcastCh chan broadcastMessage
}

// Connection represents one websocket client. The send channel is never
// closed; teardown is signalled through done so that a broadcast racing a
// disconnect can still safely attempt a send.
type Connection struct {
	ID       string
	Channel  Channel
	JuryID   string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	doneOnce sync.Once
	hub      *Hub

	ConnectedAt time.Time
}

// ConnectionConfig holds websocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns the production websocket settings.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

type broadcastMessage struct {
	eventID  uuid.UUID
	env      *events.Envelope
	role     models.Role // empty: every role
	roleOnly bool
}

// NewHub creates a hub that snapshots joins from the given state provider.
func NewHub(config ConnectionConfig, states StateProvider) *Hub {
	return &Hub{
		channels: make(map[Channel]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		states:      states,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// Start processes broadcast messages until the context is cancelled.
func (h *Hub) Start(ctx context.Context) {
	log.Info().Msg("broadcast hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("broadcast hub shutting down")
			return
		case msg := <-h.broadcastCh:
			h.handleBroadcast(msg)
		}
	}
}

// Broadcast queues an event for every role subscribed to the event.
func (h *Hub) Broadcast(eventID uuid.UUID, env *events.Envelope) {
	select {
	case h.broadcastCh <- broadcastMessage{eventID: eventID, env: env}:
	default:
		log.Warn().Str("event_id", eventID.String()).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastToRole queues an event for a single role's channel.
func (h *Hub) BroadcastToRole(eventID uuid.UUID, role models.Role, env *events.Envelope) {
	select {
	case h.broadcastCh <- broadcastMessage{eventID: eventID, env: env, role: role, roleOnly: true}:
	default:
		log.Warn().
			Str("event_id", eventID.String()).
			Str("role", string(role)).
			Msg("broadcast channel full, dropping role message")
	}
}

// Dispatch routes an envelope coming off the bus, honouring its role scope.
func (h *Hub) Dispatch(eventID uuid.UUID, env *events.Envelope) {
	if env.Role != "" {
		h.BroadcastToRole(eventID, env.Role, env)
		return
	}
	h.Broadcast(eventID, env)
}

// Join upgrades an HTTP request to a websocket, registers the connection on
// its (event, role) channel and immediately sends it a full-state snapshot.
func (h *Hub) Join(w http.ResponseWriter, r *http.Request, ch Channel, juryID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return err
	}

	c := &Connection{
		ID:          uuid.New().String(),
		Channel:     ch,
		JuryID:      juryID,
		conn:        conn,
		send:        make(chan []byte, h.config.SendBufferSize),
		done:        make(chan struct{}),
		hub:         h,
		ConnectedAt: time.Now(),
	}
	h.register(c)

	go c.writePump()
	go c.readPump()

	// Resynchronization: the joining client gets current truth, not history.
	h.sendSnapshot(r.Context(), c)

	log.Info().
		Str("connection_id", c.ID).
		Str("event_id", ch.EventID.String()).
		Str("role", string(ch.Role)).
		Msg("websocket connection established")
	return nil
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channels[c.Channel] == nil {
		h.channels[c.Channel] = make(map[*Connection]bool)
	}
	h.channels[c.Channel][c] = true
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	removed := false
	if conns, ok := h.channels[c.Channel]; ok {
		if _, ok := conns[c]; ok {
			delete(conns, c)
			removed = true
			if len(conns) == 0 {
				delete(h.channels, c.Channel)
			}
		}
	}
	h.mu.Unlock()

	// Never close c.send: a broadcast that snapshotted this connection may
	// still be sending on it. The pumps exit on done instead.
	c.doneOnce.Do(func() { close(c.done) })

	if removed {
		log.Info().
			Str("connection_id", c.ID).
			Str("event_id", c.Channel.EventID.String()).
			Str("role", string(c.Channel.Role)).
			Msg("connection unregistered")
	}
}

// sendSnapshot delivers the current full state to a single connection.
func (h *Hub) sendSnapshot(ctx context.Context, c *Connection) {
	state, err := h.states.FullState(ctx, c.Channel.EventID)
	if err != nil {
		log.Error().
			Err(err).
			Str("event_id", c.Channel.EventID.String()).
			Msg("failed to load snapshot for joining client")
		return
	}
	env, err := events.New(c.Channel.EventID, events.TypeFullStateUpdate, events.FullStatePayload{State: state})
	if err != nil {
		log.Error().Err(err).Msg("failed to build snapshot event")
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal snapshot event")
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("snapshot dropped, send buffer full")
	}
}

func (h *Hub) handleBroadcast(msg broadcastMessage) {
	h.mu.RLock()
	var targets []*Connection
	for ch, conns := range h.channels {
		if ch.EventID != msg.eventID {
			continue
		}
		if msg.roleOnly && ch.Role != msg.role {
			continue
		}
		for c := range conns {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(msg.env)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, c := range targets {
		select {
		case <-c.done:
			// Disconnected after the snapshot above; nothing to deliver.
		case c.send <- data:
		default:
			// Slow or dead client; it must not block delivery to others.
			log.Warn().
				Str("connection_id", c.ID).
				Msg("connection send buffer full, closing connection")
			h.unregister(c)
			c.conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(msg.env.Type)).
		Str("event_id", msg.eventID.String()).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// Stats returns active connection counts per channel.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{Channels: make(map[string]int)}
	for ch, conns := range h.channels {
		s.TotalConnections += len(conns)
		s.Channels[ch.EventID.String()+"/"+string(ch.Role)] = len(conns)
	}
	return s
}

// Stats summarizes hub connection counts.
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	Channels         map[string]int `json:"channels"`
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			break
		}
		c.handleClientMessage(message)
		c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}

// ClientMessage is the tiny client-to-hub protocol. Clients never mutate
// state over the socket; they can request a resync or announce a leave.
type ClientMessage struct {
	Type string `json:"type"`
}

func (c *Connection) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug().Str("connection_id", c.ID).Msg("ignoring malformed client message")
		return
	}

	switch msg.Type {
	case "request-current-state":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.hub.sendSnapshot(ctx, c)
	case "leave":
		log.Info().
			Str("connection_id", c.ID).
			Str("event_id", c.Channel.EventID.String()).
			Msg("client requested leave")
		c.hub.unregister(c)
		c.conn.Close()
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("type", msg.Type).
			Msg("ignoring unknown client message")
	}
}
