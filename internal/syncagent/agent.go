// Package syncagent keeps one client process synchronized with the
// backend's live event stream. The agent owns a single outbound
// WebSocket, authenticates it, dispatches inbound frames by type, and
// reconnects on a fixed delay until explicitly stopped.
package syncagent

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/avelari/workbase-backend/internal/platform/logger"
	"github.com/avelari/workbase-backend/internal/realtime"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultReconnectDelay   = 3 * time.Second
	defaultPingInterval     = 30 * time.Second
	writeTimeout            = 10 * time.Second
)

type Config struct {
	// URL of the live sync endpoint (ws:// or wss://).
	URL string
	// Identity is the access token presented in the auth handshake. The
	// surrounding application obtains and refreshes it; the agent only
	// carries it.
	Identity string

	HandshakeTimeout time.Duration
	ReconnectDelay   time.Duration
	// PingInterval spaces keep-alive pings while synchronized. Zero
	// picks the default; negative disables them.
	PingInterval time.Duration
}

// Notification is the client-side view of a pushed notification frame.
type Notification struct {
	ID        uuid.UUID
	Kind      string
	Title     string
	Message   string
	Data      json.RawMessage
	Timestamp time.Time
	Read      bool
}

type Agent struct {
	cfg   Config
	log   *logger.Logger
	cache Invalidator

	mu             sync.Mutex
	state          State
	identity       string
	ws             *websocket.Conn
	connDone       chan struct{}
	reconnectTimer *time.Timer
	stopped        bool
	lastSeen       time.Time

	stateObservers map[string]func(connected bool)
	notifObservers map[string]func(n Notification)
}

func New(cfg Config, cache Invalidator, log *logger.Logger) *Agent {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = defaultPingInterval
	}
	return &Agent{
		cfg:            cfg,
		log:            log.With("component", "SyncAgent"),
		cache:          cache,
		state:          StateDisconnected,
		identity:       cfg.Identity,
		stateObservers: make(map[string]func(bool)),
		notifObservers: make(map[string]func(Notification)),
	}
}

// Start opens the connection lifecycle. It returns immediately; progress
// is reported through state observers.
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return fmt.Errorf("agent is stopped")
	}
	if a.state != StateDisconnected {
		return fmt.Errorf("agent already started (state %v)", a.state)
	}
	if a.identity == "" {
		return fmt.Errorf("agent has no identity")
	}
	a.setStateLocked(StateConnecting)
	go a.connect()
	return nil
}

// Stop tears the agent down for good: the pending reconnect timer (if
// any) is cancelled immediately and the transport closed. Frames queued
// for send at that moment are best-effort only.
func (a *Agent) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	if a.reconnectTimer != nil {
		a.reconnectTimer.Stop()
		a.reconnectTimer = nil
	}
	wasLive := a.state == StateSynchronized
	a.setStateLocked(StateDisconnected)
	ws := a.ws
	a.ws = nil
	connDone := a.connDone
	a.connDone = nil
	a.mu.Unlock()

	if connDone != nil {
		close(connDone)
	}
	if ws != nil {
		_ = ws.Close()
	}
	if wasLive {
		a.notifyState(false)
	}
	a.log.Info("agent stopped")
}

func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// LastSeen reports when the server last acknowledged a keep-alive.
func (a *Agent) LastSeen() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSeen
}

// SetIdentity swaps the credential used on the next handshake. Clearing
// it stops the reconnect cycle at the next failure.
func (a *Agent) SetIdentity(identity string) {
	a.mu.Lock()
	a.identity = identity
	a.mu.Unlock()
}

// OnStateChange registers a connection-state observer under name.
// Re-registering the same name replaces the callback; registration and
// removal are idempotent.
func (a *Agent) OnStateChange(name string, fn func(connected bool)) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	a.stateObservers[name] = fn
	a.mu.Unlock()
}

func (a *Agent) RemoveStateObserver(name string) {
	a.mu.Lock()
	delete(a.stateObservers, name)
	a.mu.Unlock()
}

// OnNotification registers a notification observer under name, with the
// same replace/idempotency semantics as OnStateChange.
func (a *Agent) OnNotification(name string, fn func(n Notification)) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	a.notifObservers[name] = fn
	a.mu.Unlock()
}

func (a *Agent) RemoveNotificationObserver(name string) {
	a.mu.Lock()
	delete(a.notifObservers, name)
	a.mu.Unlock()
}

func (a *Agent) setStateLocked(newState State) {
	if err := a.state.validateTransitionTo(newState); err != nil {
		a.log.Error("BUG: agent state transition rejected", "error", err)
		return
	}
	a.state = newState
	a.log.Debug("agent state transitioned", "state", newState.String())
}

func (a *Agent) isStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

// connect dials, authenticates, then hands the transport to the read
// loop. Every failure path funnels into scheduleReconnect.
func (a *Agent) connect() {
	if a.isStopped() {
		return
	}
	dialer := websocket.Dialer{HandshakeTimeout: a.cfg.HandshakeTimeout}
	ws, resp, err := dialer.Dial(a.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		a.log.Warn("dial failed", "url", a.cfg.URL, "error", err)
		a.scheduleReconnect()
		a.notifyState(false)
		return
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		_ = ws.Close()
		return
	}
	a.ws = ws
	a.connDone = make(chan struct{})
	connDone := a.connDone
	identity := a.identity
	a.setStateLocked(StateAuthenticating)
	a.mu.Unlock()

	if err := a.handshake(ws, identity); err != nil {
		a.log.Warn("handshake failed", "error", err)
		a.teardown()
		a.scheduleReconnect()
		a.notifyState(false)
		return
	}

	a.mu.Lock()
	a.setStateLocked(StateSynchronized)
	a.lastSeen = time.Now()
	a.mu.Unlock()
	a.log.Info("synchronized")
	a.notifyState(true)

	go a.pingLoop(ws, connDone)
	a.readLoop(ws)
}

// handshake sends the auth frame and waits for the acknowledgement under
// the handshake deadline. No acknowledgement within the window is a
// failure; the server does not retry its side either.
func (a *Agent) handshake(ws *websocket.Conn, identity string) error {
	frame, err := realtime.EncodeAuth(identity)
	if err != nil {
		return fmt.Errorf("encode auth frame: %w", err)
	}
	deadline := time.Now().Add(a.cfg.HandshakeTimeout)
	_ = ws.SetWriteDeadline(deadline)
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send auth frame: %w", err)
	}
	_ = ws.SetReadDeadline(deadline)
	_, raw, err := ws.ReadMessage()
	if err != nil {
		return fmt.Errorf("await auth acknowledgement: %w", err)
	}
	ack, err := realtime.DecodeFrame(raw)
	if err != nil {
		return fmt.Errorf("decode auth acknowledgement: %w", err)
	}
	switch ack.Type {
	case realtime.TypeAuthSuccess:
	case realtime.TypeError:
		return fmt.Errorf("authentication rejected: %s", ack.Message)
	default:
		return fmt.Errorf("unexpected frame %q before acknowledgement", ack.Type)
	}
	_ = ws.SetReadDeadline(time.Time{})
	return nil
}

func (a *Agent) readLoop(ws *websocket.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if a.isStopped() {
				return
			}
			a.log.Warn("transport lost", "error", err)
			a.teardown()
			a.scheduleReconnect()
			a.notifyState(false)
			return
		}
		a.dispatch(raw)
	}
}

// dispatch routes one inbound frame by declared type.
func (a *Agent) dispatch(raw []byte) {
	frame, err := realtime.DecodeFrame(raw)
	if err != nil {
		a.log.Warn("dropping malformed frame", "error", err)
		return
	}
	switch frame.Type {
	case realtime.TypeDataChange:
		keys := InvalidationKeys(frame.Entity, frame.Data)
		if len(keys) == 0 {
			a.log.Warn("no invalidation mapping for entity", "entity", frame.Entity)
			return
		}
		a.log.Debug("invalidating cached queries",
			"entity", frame.Entity, "operation", frame.Operation, "keys", keys)
		if a.cache != nil {
			a.cache.Invalidate(keys)
		}
	case realtime.TypeNotification:
		n := Notification{
			ID:        frame.ID,
			Kind:      frame.NotificationType,
			Title:     frame.Title,
			Message:   frame.Message,
			Data:      frame.Data,
			Timestamp: frame.Timestamp,
			Read:      frame.Read,
		}
		for _, fn := range a.notificationObservers() {
			fn(n)
		}
	case realtime.TypePong:
		a.mu.Lock()
		a.lastSeen = time.Now()
		a.mu.Unlock()
	case realtime.TypeError:
		a.log.Warn("server reported error", "message", frame.Message)
	default:
		a.log.Debug("ignoring frame of unknown type", "type", frame.Type)
	}
}

func (a *Agent) pingLoop(ws *websocket.Conn, done <-chan struct{}) {
	if a.cfg.PingInterval <= 0 {
		return
	}
	frame, err := realtime.EncodePing()
	if err != nil {
		return
	}
	ticker := time.NewTicker(a.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}

// teardown closes the current transport without touching the reconnect
// schedule.
func (a *Agent) teardown() {
	a.mu.Lock()
	ws := a.ws
	a.ws = nil
	connDone := a.connDone
	a.connDone = nil
	a.mu.Unlock()

	if connDone != nil {
		close(connDone)
	}
	if ws != nil {
		_ = ws.Close()
	}
}

// scheduleReconnect arms the single retry timer. At most one attempt is
// ever pending; Stop cancels it, and a cleared identity ends the cycle.
func (a *Agent) scheduleReconnect() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	if a.identity == "" {
		a.log.Info("no identity held, staying disconnected")
		a.setStateLocked(StateDisconnected)
		return
	}
	if a.reconnectTimer != nil {
		return
	}
	a.setStateLocked(StateReconnectPending)
	a.log.Info("reconnect scheduled", "delay", a.cfg.ReconnectDelay.String())
	a.reconnectTimer = time.AfterFunc(a.cfg.ReconnectDelay, func() {
		a.mu.Lock()
		a.reconnectTimer = nil
		if a.stopped {
			a.mu.Unlock()
			return
		}
		a.setStateLocked(StateConnecting)
		a.mu.Unlock()
		a.connect()
	})
}

func (a *Agent) notifyState(connected bool) {
	for _, fn := range a.stateObserverSnapshot() {
		fn(connected)
	}
}

func (a *Agent) stateObserverSnapshot() []func(bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]func(bool), 0, len(a.stateObservers))
	for _, fn := range a.stateObservers {
		out = append(out, fn)
	}
	return out
}

func (a *Agent) notificationObservers() []func(Notification) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]func(Notification), 0, len(a.notifObservers))
	for _, fn := range a.notifObservers {
		out = append(out, fn)
	}
	return out
}
