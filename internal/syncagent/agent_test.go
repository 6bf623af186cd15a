package syncagent

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelari/workbase-backend/internal/platform/logger"
	"github.com/avelari/workbase-backend/internal/realtime"
)

const testIdentity = "header.payload.signature"

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	require.NoError(t, err)
	t.Cleanup(log.Sync)
	return log
}

// newWSServer runs a scriptable websocket endpoint. handle is invoked once
// per accepted connection; the dial counter counts accepted upgrades.
func newWSServer(t *testing.T, handle func(ws *websocket.Conn)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var dials atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		dials.Add(1)
		defer ws.Close()
		handle(ws)
	}))
	t.Cleanup(srv.Close)
	return srv, &dials
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// acceptHandshake plays the server side of the auth exchange. Runs on the
// server goroutine, so it must not fail the test fatally.
func acceptHandshake(t *testing.T, ws *websocket.Conn) bool {
	_, raw, err := ws.ReadMessage()
	if err != nil {
		return false
	}
	frame, err := realtime.DecodeFrame(raw)
	if err != nil || frame.Type != realtime.TypeAuth {
		t.Errorf("expected auth frame, got %v (err %v)", frame.Type, err)
		return false
	}
	assert.Equal(t, testIdentity, frame.Identity)
	ack, err := realtime.EncodeAuthSuccess()
	if err != nil {
		return false
	}
	return ws.WriteMessage(websocket.TextMessage, ack) == nil
}

func testConfig(url string) Config {
	return Config{
		URL:              url,
		Identity:         testIdentity,
		HandshakeTimeout: 200 * time.Millisecond,
		ReconnectDelay:   100 * time.Millisecond,
		PingInterval:     -1,
	}
}

func awaitState(t *testing.T, states <-chan bool, want bool) {
	t.Helper()
	select {
	case got := <-states:
		require.Equal(t, want, got, "connection-state report")
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for connection-state %v", want)
	}
}

func TestAgentSynchronizesAndDispatchesFrames(t *testing.T) {
	projectID := uuid.New()
	notifID := uuid.New()

	srv, _ := newWSServer(t, func(ws *websocket.Conn) {
		if !acceptHandshake(t, ws) {
			return
		}
		change, err := realtime.EncodeDataChange(realtime.MutationEvent{
			Entity:    realtime.EntityTask,
			Operation: realtime.OpUpdate,
			Data: realtime.TaskSnapshot{
				ID:        uuid.New(),
				ProjectID: &projectID,
				Title:     "Prepare quarterly review",
				Status:    "open",
				UpdatedAt: time.Now().UTC(),
			},
			CommittedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Errorf("encode data change: %v", err)
			return
		}
		_ = ws.WriteMessage(websocket.TextMessage, change)

		notif, err := realtime.EncodeNotification(realtime.NotificationEvent{
			ID:        notifID,
			Target:    uuid.New(),
			Kind:      "task_assigned",
			Title:     "New task",
			Message:   "You were assigned a task",
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Errorf("encode notification: %v", err)
			return
		}
		_ = ws.WriteMessage(websocket.TextMessage, notif)

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	cache := NewQueryCache()
	agent := New(testConfig(wsURL(srv)), cache, testLogger(t))

	states := make(chan bool, 16)
	agent.OnStateChange("test", func(connected bool) { states <- connected })
	notifs := make(chan Notification, 16)
	agent.OnNotification("test", func(n Notification) { notifs <- n })

	require.NoError(t, agent.Start())
	t.Cleanup(agent.Stop)

	awaitState(t, states, true)
	assert.Equal(t, StateSynchronized, agent.State())

	require.Eventually(t, func() bool {
		return cache.IsStale("tasks") && cache.IsStale("project:"+projectID.String())
	}, 3*time.Second, 10*time.Millisecond, "data_change must invalidate the mapped keys")

	select {
	case n := <-notifs:
		assert.Equal(t, notifID, n.ID)
		assert.Equal(t, "task_assigned", n.Kind)
		assert.Equal(t, "New task", n.Title)
		assert.False(t, n.Read)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for notification observer")
	}
}

func TestAgentHandshakeTimeoutSchedulesExactlyOneReconnect(t *testing.T) {
	release := make(chan struct{})
	srv, dials := newWSServer(t, func(ws *websocket.Conn) {
		// Swallow the auth frame and never acknowledge it.
		_, _, _ = ws.ReadMessage()
		<-release
	})
	t.Cleanup(func() { close(release) })

	cfg := testConfig(wsURL(srv))
	cfg.HandshakeTimeout = 150 * time.Millisecond
	cfg.ReconnectDelay = 400 * time.Millisecond
	agent := New(cfg, nil, testLogger(t))

	states := make(chan bool, 16)
	agent.OnStateChange("test", func(connected bool) { states <- connected })

	require.NoError(t, agent.Start())
	t.Cleanup(agent.Stop)

	awaitState(t, states, false)

	agent.mu.Lock()
	assert.Equal(t, StateReconnectPending, agent.state)
	assert.NotNil(t, agent.reconnectTimer, "one retry must be armed")
	agent.mu.Unlock()

	require.Eventually(t, func() bool {
		return dials.Load() >= 2
	}, 3*time.Second, 20*time.Millisecond, "the armed retry must dial again")
}

func TestAgentStopCancelsPendingReconnect(t *testing.T) {
	release := make(chan struct{})
	srv, dials := newWSServer(t, func(ws *websocket.Conn) {
		_, _, _ = ws.ReadMessage()
		<-release
	})
	t.Cleanup(func() { close(release) })

	cfg := testConfig(wsURL(srv))
	cfg.HandshakeTimeout = 100 * time.Millisecond
	cfg.ReconnectDelay = 300 * time.Millisecond
	agent := New(cfg, nil, testLogger(t))

	require.NoError(t, agent.Start())
	require.Eventually(t, func() bool {
		return agent.State() == StateReconnectPending
	}, 3*time.Second, 10*time.Millisecond)

	agent.Stop()
	assert.Equal(t, StateDisconnected, agent.State())

	before := dials.Load()
	time.Sleep(2 * cfg.ReconnectDelay)
	assert.Equal(t, before, dials.Load(), "no dial may happen after Stop")

	agent.Stop() // second stop is a no-op
	assert.Equal(t, StateDisconnected, agent.State())
}

func TestAgentReconnectsAfterTransportLoss(t *testing.T) {
	var dropped atomic.Bool
	srv, dials := newWSServer(t, func(ws *websocket.Conn) {
		if !acceptHandshake(t, ws) {
			return
		}
		if dropped.CompareAndSwap(false, true) {
			return // first connection dies right after sync
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	agent := New(testConfig(wsURL(srv)), nil, testLogger(t))
	states := make(chan bool, 16)
	agent.OnStateChange("test", func(connected bool) { states <- connected })

	require.NoError(t, agent.Start())
	t.Cleanup(agent.Stop)

	awaitState(t, states, true)
	awaitState(t, states, false)
	awaitState(t, states, true)

	assert.GreaterOrEqual(t, dials.Load(), int32(2))
	assert.Equal(t, StateSynchronized, agent.State())
}

func TestAgentStartRequiresIdentity(t *testing.T) {
	agent := New(Config{URL: "ws://127.0.0.1:0/sync"}, nil, testLogger(t))
	require.Error(t, agent.Start())
	assert.Equal(t, StateDisconnected, agent.State())
}

func TestAgentStartTwiceFails(t *testing.T) {
	release := make(chan struct{})
	srv, _ := newWSServer(t, func(ws *websocket.Conn) {
		if !acceptHandshake(t, ws) {
			return
		}
		<-release
	})
	t.Cleanup(func() { close(release) })

	agent := New(testConfig(wsURL(srv)), nil, testLogger(t))
	states := make(chan bool, 16)
	agent.OnStateChange("test", func(connected bool) { states <- connected })

	require.NoError(t, agent.Start())
	t.Cleanup(agent.Stop)
	awaitState(t, states, true)

	require.Error(t, agent.Start())

	agent.Stop()
	require.Error(t, agent.Start(), "a stopped agent stays stopped")
}

func TestAgentObserverRegistrationIsIdempotent(t *testing.T) {
	agent := New(Config{URL: "ws://unused", Identity: testIdentity}, nil, testLogger(t))

	first, second := 0, 0
	agent.OnNotification("dashboard", func(Notification) { first++ })
	agent.OnNotification("dashboard", func(Notification) { second++ })

	frame, err := realtime.EncodeNotification(realtime.NotificationEvent{
		ID:        uuid.New(),
		Target:    uuid.New(),
		Kind:      "mention",
		Title:     "Mentioned in a comment",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	agent.dispatch(frame)
	assert.Equal(t, 0, first, "re-registration under the same name replaces")
	assert.Equal(t, 1, second)

	agent.RemoveNotificationObserver("dashboard")
	agent.RemoveNotificationObserver("dashboard") // removing twice is fine
	agent.dispatch(frame)
	assert.Equal(t, 1, second)

	calls := 0
	agent.OnStateChange("status-bar", func(bool) { calls++ })
	agent.OnStateChange("status-bar", func(bool) { calls += 10 })
	agent.notifyState(true)
	assert.Equal(t, 10, calls)

	agent.RemoveStateObserver("status-bar")
	agent.RemoveStateObserver("status-bar")
	agent.notifyState(false)
	assert.Equal(t, 10, calls)
}

func TestAgentPongRefreshesLastSeen(t *testing.T) {
	agent := New(Config{URL: "ws://unused", Identity: testIdentity}, nil, testLogger(t))
	require.True(t, agent.LastSeen().IsZero())

	pong, err := realtime.EncodePong()
	require.NoError(t, err)
	agent.dispatch(pong)

	assert.False(t, agent.LastSeen().IsZero())
}

func TestAgentDataChangeWithoutCacheIsHarmless(t *testing.T) {
	agent := New(Config{URL: "ws://unused", Identity: testIdentity}, nil, testLogger(t))

	frame, err := realtime.EncodeDataChange(realtime.MutationEvent{
		Entity:    realtime.EntityInvoice,
		Operation: realtime.OpCreate,
		Data: realtime.InvoiceSnapshot{
			ID:        uuid.New(),
			Number:    "INV-1042",
			Status:    "sent",
			UpdatedAt: time.Now().UTC(),
		},
		CommittedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	agent.dispatch(frame) // must not panic
}

func TestStateTransitionValidation(t *testing.T) {
	valid := []struct{ from, to State }{
		{StateDisconnected, StateConnecting},
		{StateConnecting, StateAuthenticating},
		{StateConnecting, StateReconnectPending},
		{StateAuthenticating, StateSynchronized},
		{StateAuthenticating, StateReconnectPending},
		{StateSynchronized, StateReconnectPending},
		{StateReconnectPending, StateConnecting},
		{StateConnecting, StateDisconnected},
		{StateSynchronized, StateDisconnected},
		{StateReconnectPending, StateDisconnected},
	}
	for _, tc := range valid {
		assert.NoError(t, tc.from.validateTransitionTo(tc.to), "%v -> %v", tc.from, tc.to)
	}

	invalid := []struct{ from, to State }{
		{StateDisconnected, StateAuthenticating},
		{StateDisconnected, StateSynchronized},
		{StateConnecting, StateSynchronized},
		{StateSynchronized, StateConnecting},
		{StateSynchronized, StateAuthenticating},
		{StateReconnectPending, StateSynchronized},
		{StateReconnectPending, StateAuthenticating},
	}
	for _, tc := range invalid {
		assert.Error(t, tc.from.validateTransitionTo(tc.to), "%v -> %v", tc.from, tc.to)
	}
}
