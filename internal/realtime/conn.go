package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/avelari/workbase-backend/internal/platform/logger"
)

const (
	writeTimeout = 10 * time.Second
	sendBuffer   = 32
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is one live, authenticated transport session. It exists only while
// the socket is open; nothing about it is persisted. Writes go through a
// buffered send channel drained by WritePump, so enqueuing never blocks
// on the peer.
type Conn struct {
	ID     uuid.UUID
	UserID uuid.UUID

	ws   *websocket.Conn
	log  *logger.Logger
	send chan []byte
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	lastSeen time.Time
}

func NewConn(userID uuid.UUID, ws *websocket.Conn, log *logger.Logger) *Conn {
	id := uuid.New()
	return &Conn{
		ID:       id,
		UserID:   userID,
		ws:       ws,
		log:      log.With("connID", id, "userID", userID),
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		lastSeen: time.Now(),
	}
}

// Enqueue hands a frame to the write pump. A closed connection or a full
// buffer is a delivery failure the caller must treat like any transport
// error.
func (c *Conn) Enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// Touch records inbound keep-alive traffic.
func (c *Conn) Touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *Conn) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// Close is idempotent. Frames still sitting in the send buffer are
// dropped; in-flight traffic at teardown is best-effort only.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// WritePump drains the send buffer onto the socket until the connection
// closes or a write fails. Run it in its own goroutine, one per Conn.
func (c *Conn) WritePump() {
	defer c.Close()
	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("write failed", "error", err)
				return
			}
		}
	}
}
