package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/avelari/workbase-backend/internal/platform/logger"
	"github.com/avelari/workbase-backend/internal/realtime"
	"github.com/avelari/workbase-backend/internal/services"
)

const defaultAuthTimeout = 5 * time.Second

// SyncHandler owns the live sync endpoint. The route is public at the
// HTTP layer; authentication happens in-band. The first frame on a new
// socket must be an auth frame carrying an access token, delivered
// within AuthTimeout, or the connection is refused with an error frame
// and closed.
type SyncHandler struct {
	log         *logger.Logger
	registry    *realtime.Registry
	authService services.AuthService
	authTimeout time.Duration
	upgrader    websocket.Upgrader
}

func NewSyncHandler(
	log *logger.Logger,
	registry *realtime.Registry,
	authService services.AuthService,
	authTimeout time.Duration,
) *SyncHandler {
	if authTimeout <= 0 {
		authTimeout = defaultAuthTimeout
	}
	return &SyncHandler{
		log:         log.With("handler", "SyncHandler"),
		registry:    registry,
		authService: authService,
		authTimeout: authTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser origins are vetted by the CORS layer in front;
			// the agent sends no Origin header at all.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (sh *SyncHandler) Serve(c *gin.Context) {
	ws, err := sh.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		sh.log.Debug("upgrade failed", "error", err)
		return
	}

	conn, ok := sh.handshake(ws)
	if !ok {
		_ = ws.Close()
		return
	}

	// The ack must be queued before the connection becomes visible to
	// the dispatcher: a broadcast racing the handshake would otherwise
	// put a data_change frame ahead of auth_success, and clients treat
	// any pre-ack frame as a failed handshake.
	if frame, err := realtime.EncodeAuthSuccess(); err == nil {
		_ = conn.Enqueue(frame)
	}
	sh.registry.Register(conn)
	go conn.WritePump()

	sh.readLoop(conn, ws)
}

// handshake reads exactly one frame under the auth deadline and
// verifies the token it carries. Every failure sends a closing error
// frame directly on the socket since no write pump exists yet.
func (sh *SyncHandler) handshake(ws *websocket.Conn) (*realtime.Conn, bool) {
	deadline := time.Now().Add(sh.authTimeout)
	_ = ws.SetReadDeadline(deadline)
	_, raw, err := ws.ReadMessage()
	if err != nil {
		sh.refuse(ws, "authentication timed out")
		return nil, false
	}
	frame, err := realtime.DecodeFrame(raw)
	if err != nil || frame.Type != realtime.TypeAuth {
		sh.refuse(ws, "expected auth frame")
		return nil, false
	}
	userID, err := sh.authService.VerifyToken(frame.Identity)
	if err != nil {
		sh.refuse(ws, "invalid token")
		return nil, false
	}
	_ = ws.SetReadDeadline(time.Time{})
	return realtime.NewConn(userID, ws, sh.log), true
}

func (sh *SyncHandler) refuse(ws *websocket.Conn, reason string) {
	if frame, err := realtime.EncodeError(reason); err == nil {
		_ = ws.SetWriteDeadline(time.Now().Add(sh.authTimeout))
		_ = ws.WriteMessage(websocket.TextMessage, frame)
	}
	sh.log.Debug("connection refused", "reason", reason)
}

// readLoop drains inbound frames until the peer goes away, answering
// keep-alives and ignoring everything it does not recognize. On exit
// the connection is removed from the registry and closed; from that
// moment the dispatcher no longer sees it.
func (sh *SyncHandler) readLoop(conn *realtime.Conn, ws *websocket.Conn) {
	defer func() {
		sh.registry.Deregister(conn.ID)
		conn.Close()
	}()
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		frame, err := realtime.DecodeFrame(raw)
		if err != nil {
			sh.log.Debug("dropping malformed frame", "error", err)
			continue
		}
		switch frame.Type {
		case realtime.TypePing:
			conn.Touch()
			if pong, err := realtime.EncodePong(); err == nil {
				_ = conn.Enqueue(pong)
			}
		default:
			sh.log.Debug("ignoring frame of unexpected type", "type", frame.Type)
		}
	}
}
