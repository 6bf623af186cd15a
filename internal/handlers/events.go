package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avelari/workbase-backend/internal/realtime"
	"github.com/avelari/workbase-backend/internal/requestdata"
	"github.com/avelari/workbase-backend/internal/services"
)

// EventHandler accepts change events from trusted sidecar processes
// (importers, billing jobs) that mutate entities outside the service
// layer and still need connected dashboards to hear about it. The
// authenticated caller is the origin, so its own connections are
// excluded from the fan-out like any other mutation.
type EventHandler struct {
	publisher services.Publisher
}

func NewEventHandler(publisher services.Publisher) *EventHandler {
	return &EventHandler{publisher: publisher}
}

func (eh *EventHandler) Ingest(c *gin.Context) {
	var req struct {
		Entity    realtime.Entity    `json:"entity"`
		Operation realtime.Operation `json:"operation"`
		Data      json.RawMessage    `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if !req.Entity.Valid() {
		RespondError(c, http.StatusBadRequest, "unknown_entity",
			fmt.Errorf("unknown entity %q", req.Entity))
		return
	}
	if !req.Operation.Valid() {
		RespondError(c, http.StatusBadRequest, "unknown_operation",
			fmt.Errorf("unknown operation %q", req.Operation))
		return
	}
	snapshot, err := realtime.DecodeSnapshot(req.Entity, req.Data)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}
	origin := requestdata.UserID(c.Request.Context())
	eh.publisher.Publish(realtime.MutationEvent{
		Entity:      req.Entity,
		Operation:   req.Operation,
		Data:        snapshot,
		Origin:      origin,
		CommittedAt: time.Now().UTC(),
	}, origin)
	RespondOK(c, gin.H{"accepted": true})
}
