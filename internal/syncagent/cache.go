package syncagent

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/avelari/workbase-backend/internal/realtime"
)

// Invalidator marks client-held cached query results stale. The agent
// never reads or refreshes caches itself; it only signals staleness.
type Invalidator interface {
	Invalidate(keys []string)
}

// InvalidationKeys maps a mutation event to the cached query results it
// stales. Pure function of (entity, payload): identical inputs always
// yield the identical key list, in a fixed order.
//
// The widenings are deliberate: client edits roll up into company and
// project dashboards, company edits into client lists, and a task bound
// to a project also stales that project's detail view.
func InvalidationKeys(entity realtime.Entity, payload json.RawMessage) []string {
	switch entity {
	case realtime.EntityProject:
		return []string{"projects"}
	case realtime.EntityTask:
		keys := []string{"tasks"}
		if ref := projectRef(payload); ref != nil {
			keys = append(keys, "project:"+ref.String())
		}
		return keys
	case realtime.EntityClient:
		return []string{"clients", "companies", "projects"}
	case realtime.EntityCompany:
		return []string{"companies", "clients"}
	case realtime.EntityUser:
		return []string{"users"}
	case realtime.EntityInvoice:
		return []string{"invoices"}
	case realtime.EntityExpense:
		return []string{"expenses"}
	case realtime.EntityTicket:
		return []string{"support-tickets"}
	case realtime.EntityPayment:
		return []string{"payments"}
	case realtime.EntityNotification:
		return []string{"notifications"}
	default:
		return nil
	}
}

func projectRef(payload json.RawMessage) *uuid.UUID {
	if len(payload) == 0 {
		return nil
	}
	var ref struct {
		ProjectID *uuid.UUID `json:"project_id"`
	}
	if err := json.Unmarshal(payload, &ref); err != nil {
		return nil
	}
	return ref.ProjectID
}

// QueryCache is a minimal Invalidator for hosts without their own cache
// layer: it remembers which keys are stale until the host refreshes them.
type QueryCache struct {
	mu    sync.Mutex
	stale map[string]bool
}

func NewQueryCache() *QueryCache {
	return &QueryCache{stale: make(map[string]bool)}
}

func (c *QueryCache) Invalidate(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.stale[k] = true
	}
}

func (c *QueryCache) IsStale(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale[key]
}

// MarkFresh clears a key after the host re-ran the query behind it.
func (c *QueryCache) MarkFresh(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stale, key)
}

// StaleKeys returns the currently stale keys in no particular order.
func (c *QueryCache) StaleKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.stale))
	for k := range c.stale {
		out = append(out, k)
	}
	return out
}
