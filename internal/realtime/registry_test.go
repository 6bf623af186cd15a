package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/avelari/workbase-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func newTestConn(t *testing.T, userID uuid.UUID) *Conn {
	t.Helper()
	return NewConn(userID, nil, mustTestLogger(t))
}

func recvFrame(t *testing.T, c *Conn, timeout time.Duration) InboundFrame {
	t.Helper()
	select {
	case raw := <-c.send:
		f, err := DecodeFrame(raw)
		if err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return f
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for frame")
	}
	return InboundFrame{}
}

func assertNoFrame(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func TestRegistryAllowsMultipleConnectionsPerIdentity(t *testing.T) {
	reg := NewRegistry(mustTestLogger(t))
	user := uuid.New()
	other := uuid.New()

	first := newTestConn(t, user)
	second := newTestConn(t, user)
	third := newTestConn(t, other)
	reg.Register(first)
	reg.Register(second)
	reg.Register(third)

	if got := len(reg.ConnectionsFor(user)); got != 2 {
		t.Fatalf("connections for user: want=2 got=%d", got)
	}
	if got := len(reg.ConnectionsFor(other)); got != 1 {
		t.Fatalf("connections for other: want=1 got=%d", got)
	}
	if got := reg.Len(); got != 3 {
		t.Fatalf("registry len: want=3 got=%d", got)
	}
	if got := len(reg.AllConnections()); got != 3 {
		t.Fatalf("all connections: want=3 got=%d", got)
	}
}

func TestRegistryDeregisterIsIdempotent(t *testing.T) {
	reg := NewRegistry(mustTestLogger(t))
	user := uuid.New()
	c := newTestConn(t, user)
	reg.Register(c)

	reg.Deregister(c.ID)
	reg.Deregister(c.ID)
	reg.Deregister(uuid.New())

	if got := reg.Len(); got != 0 {
		t.Fatalf("registry len after deregister: want=0 got=%d", got)
	}
	if conns := reg.ConnectionsFor(user); len(conns) != 0 {
		t.Fatalf("connections for user after deregister: want=0 got=%d", len(conns))
	}
}

func TestRegistryConcurrentRegisterDeregisterIterate(t *testing.T) {
	reg := NewRegistry(mustTestLogger(t))
	log := mustTestLogger(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := uuid.New()
			for j := 0; j < 50; j++ {
				c := NewConn(user, nil, log)
				reg.Register(c)
				_ = reg.ConnectionsFor(user)
				_ = reg.AllConnections()
				reg.Deregister(c.ID)
			}
		}()
	}
	wg.Wait()

	if got := reg.Len(); got != 0 {
		t.Fatalf("registry len after churn: want=0 got=%d", got)
	}
}

func TestRegistryCloseAllClosesEveryConnection(t *testing.T) {
	reg := NewRegistry(mustTestLogger(t))
	conns := []*Conn{
		newTestConn(t, uuid.New()),
		newTestConn(t, uuid.New()),
		newTestConn(t, uuid.New()),
	}
	for _, c := range conns {
		reg.Register(c)
	}

	reg.CloseAll()

	if got := reg.Len(); got != 0 {
		t.Fatalf("registry len after CloseAll: want=0 got=%d", got)
	}
	for i, c := range conns {
		if !c.Closed() {
			t.Fatalf("conn %d not closed after CloseAll", i)
		}
		if err := c.Enqueue([]byte("{}")); err == nil {
			t.Fatalf("conn %d enqueue after close: want error got nil", i)
		}
	}
}
