package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/avelari/workbase-backend/internal/platform/logger"
)

// Registry tracks which identities currently hold open, authenticated
// connections. It is the single shared mutable structure of the live
// layer and is safe for concurrent register/deregister/iterate. One
// registry exists per process; there is no cross-process fan-out.
type Registry struct {
	mu     sync.RWMutex
	log    *logger.Logger
	conns  map[uuid.UUID]*Conn
	byUser map[uuid.UUID]map[uuid.UUID]*Conn
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		log:    log.With("component", "Registry"),
		conns:  make(map[uuid.UUID]*Conn),
		byUser: make(map[uuid.UUID]map[uuid.UUID]*Conn),
	}
}

// Register adds c. It never replaces an existing entry: one identity may
// hold any number of simultaneous connections.
func (r *Registry) Register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[c.ID] = c
	userConns, ok := r.byUser[c.UserID]
	if !ok {
		userConns = make(map[uuid.UUID]*Conn)
		r.byUser[c.UserID] = userConns
	}
	userConns[c.ID] = c

	r.log.Debug("connection registered", "connID", c.ID, "userID", c.UserID, "total", len(r.conns))
}

// Deregister removes the connection. Unknown ids are a no-op, so it is
// safe to call from every teardown path that might race another.
func (r *Registry) Deregister(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(r.conns, connID)
	if userConns, ok := r.byUser[c.UserID]; ok {
		delete(userConns, connID)
		if len(userConns) == 0 {
			delete(r.byUser, c.UserID)
		}
	}

	r.log.Debug("connection deregistered", "connID", connID, "userID", c.UserID, "total", len(r.conns))
}

func (r *Registry) ConnectionsFor(userID uuid.UUID) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userConns, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	out := make([]*Conn, 0, len(userConns))
	for _, c := range userConns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) AllConnections() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll closes every live connection and empties the registry. Called
// once at process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[uuid.UUID]*Conn)
	r.byUser = make(map[uuid.UUID]map[uuid.UUID]*Conn)
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	r.log.Info("all connections closed", "count", len(conns))
}
