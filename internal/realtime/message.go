package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message types recognized on the live connection. Both ends of the wire
// speak this envelope: every frame is a JSON object whose "type" field
// names one of these.
const (
	TypeAuth         = "auth"
	TypeAuthSuccess  = "auth_success"
	TypeDataChange   = "data_change"
	TypeNotification = "notification"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeError        = "error"
)

// InboundFrame is the decode side of the envelope. Type discriminates;
// the remaining fields are populated per type and zero otherwise.
type InboundFrame struct {
	Type string `json:"type"`

	// auth
	Identity string `json:"identity"`

	// data_change
	Operation Operation       `json:"operation"`
	Entity    Entity          `json:"entity"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`

	// notification
	ID               uuid.UUID `json:"id"`
	NotificationType string    `json:"notificationType"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	Read             bool      `json:"read"`
}

func DecodeFrame(raw []byte) (InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return InboundFrame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "" {
		return InboundFrame{}, fmt.Errorf("frame missing type")
	}
	return f, nil
}

func EncodeAuth(identity string) ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		Identity string `json:"identity"`
	}{TypeAuth, identity})
}

func EncodeAuthSuccess() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
	}{TypeAuthSuccess})
}

func EncodeDataChange(ev MutationEvent) ([]byte, error) {
	return json.Marshal(struct {
		Type      string    `json:"type"`
		Operation Operation `json:"operation"`
		Entity    Entity    `json:"entity"`
		Data      Snapshot  `json:"data"`
		Timestamp time.Time `json:"timestamp"`
	}{TypeDataChange, ev.Operation, ev.Entity, ev.Data, ev.CommittedAt})
}

func EncodeNotification(ev NotificationEvent) ([]byte, error) {
	return json.Marshal(struct {
		Type             string          `json:"type"`
		ID               uuid.UUID       `json:"id"`
		NotificationType string          `json:"notificationType"`
		Title            string          `json:"title"`
		Message          string          `json:"message"`
		Data             json.RawMessage `json:"data,omitempty"`
		Timestamp        time.Time       `json:"timestamp"`
		Read             bool            `json:"read"`
	}{TypeNotification, ev.ID, ev.Kind, ev.Title, ev.Message, ev.Data, ev.CreatedAt, ev.Read})
}

func EncodePing() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
	}{TypePing})
}

func EncodePong() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
	}{TypePong})
}

func EncodeError(message string) ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{TypeError, message})
}
