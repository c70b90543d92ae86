package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagesync/stagesync/internal/events"
	"github.com/stagesync/stagesync/internal/models"
)

type staticStates struct {
	state *models.LiveState
}

func (s *staticStates) FullState(ctx context.Context, eventID uuid.UUID) (*models.LiveState, error) {
	return s.state, nil
}

type hubHarness struct {
	hub     *Hub
	server  *httptest.Server
	eventID uuid.UUID
}

func newHubHarness(t *testing.T) *hubHarness {
	t.Helper()
	eventID := uuid.New()
	state := models.NewLiveState(eventID)
	state.Timer = models.TimerState{Type: models.TimerTypePresentation, Status: models.TimerStatusRunning, DurationMs: 300_000}

	hub := NewHub(DefaultConnectionConfig(), &staticStates{state: state})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Start(ctx)
	t.Cleanup(cancel)

	handler := NewWebSocketHandler(hub)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &hubHarness{hub: hub, server: server, eventID: eventID}
}

func (h *hubHarness) dial(t *testing.T, role models.Role) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") +
		"/ws/live?event_id=" + h.eventID.String() + "&role=" + string(role)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) *events.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env events.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return &env
}

func TestJoinReceivesFullStateSnapshot(t *testing.T) {
	h := newHubHarness(t)
	conn := h.dial(t, models.RoleAudience)

	env := readEnvelope(t, conn)
	assert.Equal(t, events.TypeFullStateUpdate, env.Type)
	assert.Equal(t, h.eventID.String(), env.EventID)

	var payload events.FullStatePayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.NotNil(t, payload.State)
	assert.Equal(t, h.eventID, payload.State.EventID)
	assert.Equal(t, models.TimerStatusRunning, payload.State.Timer.Status)
}

func TestBroadcastReachesEveryRole(t *testing.T) {
	h := newHubHarness(t)
	operator := h.dial(t, models.RoleOperator)
	audience := h.dial(t, models.RoleAudience)
	readEnvelope(t, operator)
	readEnvelope(t, audience)

	env, err := events.New(h.eventID, events.TypeStageChanged, events.StageChangedPayload{StageID: uuid.NewString()})
	require.NoError(t, err)
	h.hub.Broadcast(h.eventID, env)

	assert.Equal(t, events.TypeStageChanged, readEnvelope(t, operator).Type)
	assert.Equal(t, events.TypeStageChanged, readEnvelope(t, audience).Type)
}

func TestRoleScopedBroadcastSkipsOtherRoles(t *testing.T) {
	h := newHubHarness(t)
	operator := h.dial(t, models.RoleOperator)
	audience := h.dial(t, models.RoleAudience)
	readEnvelope(t, operator)
	readEnvelope(t, audience)

	env, err := events.New(h.eventID, events.TypeScoreSubmitted, events.ScoreSubmittedPayload{JuryID: "jury-1"})
	require.NoError(t, err)
	h.hub.BroadcastToRole(h.eventID, models.RoleOperator, env)

	assert.Equal(t, events.TypeScoreSubmitted, readEnvelope(t, operator).Type)

	// The audience connection must not see the operator-only event.
	require.NoError(t, audience.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err = audience.ReadMessage()
	assert.Error(t, err)
}

func TestBroadcastScopedToEvent(t *testing.T) {
	h := newHubHarness(t)
	conn := h.dial(t, models.RoleAudience)
	readEnvelope(t, conn)

	otherEvent := uuid.New()
	env, err := events.New(otherEvent, events.TypeStageChanged, events.StageChangedPayload{})
	require.NoError(t, err)
	h.hub.Broadcast(otherEvent, env)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestRequestCurrentStateResendsSnapshot(t *testing.T) {
	h := newHubHarness(t)
	conn := h.dial(t, models.RoleAudience)
	readEnvelope(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "request-current-state"}))

	env := readEnvelope(t, conn)
	assert.Equal(t, events.TypeFullStateUpdate, env.Type)
}

func TestDispatchHonoursEnvelopeRole(t *testing.T) {
	h := newHubHarness(t)
	operator := h.dial(t, models.RoleOperator)
	jury := h.dial(t, models.RoleJury)
	readEnvelope(t, operator)
	readEnvelope(t, jury)

	env, err := events.New(h.eventID, events.TypeScoreSubmitted, events.ScoreSubmittedPayload{JuryID: "jury-2"})
	require.NoError(t, err)
	env.Role = models.RoleOperator
	h.hub.Dispatch(h.eventID, env)

	assert.Equal(t, events.TypeScoreSubmitted, readEnvelope(t, operator).Type)
	require.NoError(t, jury.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err = jury.ReadMessage()
	assert.Error(t, err)
}

func TestLeaveMessageUnregistersConnection(t *testing.T) {
	h := newHubHarness(t)
	conn := h.dial(t, models.RoleAudience)
	readEnvelope(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "leave"}))

	require.Eventually(t, func() bool {
		return h.hub.Stats().TotalConnections == 0
	}, 2*time.Second, 10*time.Millisecond)

	// The hub closes its side of the socket after a leave.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestBroadcastSurvivesConcurrentUnregister(t *testing.T) {
	hub := NewHub(DefaultConnectionConfig(), &staticStates{state: models.NewLiveState(uuid.New())})
	eventID := uuid.New()
	ch := Channel{EventID: eventID, Role: models.RoleAudience}

	env, err := events.New(eventID, events.TypeStageChanged, events.StageChangedPayload{})
	require.NoError(t, err)

	// An unregister landing between the fan-out snapshot and the send must
	// not crash the broadcast goroutine.
	for i := 0; i < 1000; i++ {
		c := &Connection{
			ID:      uuid.NewString(),
			Channel: ch,
			send:    make(chan []byte, 1),
			done:    make(chan struct{}),
			hub:     hub,
		}
		hub.register(c)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.handleBroadcast(broadcastMessage{eventID: eventID, env: env})
		}()
		go func() {
			defer wg.Done()
			hub.unregister(c)
		}()
		wg.Wait()
	}
	assert.Zero(t, hub.Stats().TotalConnections)
}

func TestBroadcastDeliversWhileAnotherClientDisconnects(t *testing.T) {
	h := newHubHarness(t)
	operator := h.dial(t, models.RoleOperator)
	audience := h.dial(t, models.RoleAudience)
	readEnvelope(t, operator)
	readEnvelope(t, audience)

	env, err := events.New(h.eventID, events.TypeStageChanged, events.StageChangedPayload{})
	require.NoError(t, err)

	go audience.Close()
	for i := 0; i < 50; i++ {
		h.hub.Broadcast(h.eventID, env)
	}
	for i := 0; i < 50; i++ {
		assert.Equal(t, events.TypeStageChanged, readEnvelope(t, operator).Type)
	}
}

func TestStatsCountsConnectionsPerChannel(t *testing.T) {
	h := newHubHarness(t)
	h.dial(t, models.RoleOperator)
	h.dial(t, models.RoleAudience)
	h.dial(t, models.RoleAudience)

	require.Eventually(t, func() bool {
		return h.hub.Stats().TotalConnections == 3
	}, 2*time.Second, 10*time.Millisecond)

	stats := h.hub.Stats()
	assert.Equal(t, 2, stats.Channels[h.eventID.String()+"/audience"])
	assert.Equal(t, 1, stats.Channels[h.eventID.String()+"/operator"])
}
