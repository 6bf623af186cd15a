package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/avelari/workbase-backend/internal/data/aggregates"
	"github.com/avelari/workbase-backend/internal/data/repos"
	types "github.com/avelari/workbase-backend/internal/domain"
	"github.com/avelari/workbase-backend/internal/platform/apierr"
	"github.com/avelari/workbase-backend/internal/platform/dbctx"
	"github.com/avelari/workbase-backend/internal/platform/logger"
	"github.com/avelari/workbase-backend/internal/realtime"
	"github.com/avelari/workbase-backend/internal/requestdata"
)

// NotificationService persists notifications and pushes them to the
// target's live connections. The row is always written first; a target
// with no open connections simply pulls it later.
type NotificationService interface {
	Notify(ctx context.Context, targetID uuid.UUID, kind, title, message string, data map[string]any) (*types.Notification, error)
	ListMine(ctx context.Context, limit int) ([]*types.Notification, error)
	MarkRead(ctx context.Context, ids []uuid.UUID) error
	UnreadCount(ctx context.Context) (int64, error)
}

type notificationService struct {
	log      *logger.Logger
	runner   aggregates.TxRunner
	repo     repos.NotificationRepo
	delivery Deliverer
}

func NewNotificationService(
	log *logger.Logger,
	runner aggregates.TxRunner,
	repo repos.NotificationRepo,
	delivery Deliverer,
) NotificationService {
	return &notificationService{
		log:      log.With("service", "NotificationService"),
		runner:   runner,
		repo:     repo,
		delivery: delivery,
	}
}

func (s *notificationService) Notify(ctx context.Context, targetID uuid.UUID, kind, title, message string, data map[string]any) (*types.Notification, error) {
	if targetID == uuid.Nil {
		return nil, apierr.BadRequest("missing_target", fmt.Errorf("missing target user"))
	}
	if kind == "" || title == "" {
		return nil, apierr.BadRequest("missing_fields", fmt.Errorf("missing kind or title"))
	}

	var payload datatypes.JSON
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal notification data: %w", err)
		}
		payload = datatypes.JSON(raw)
	}

	row := &types.Notification{
		UserID:  targetID,
		Kind:    kind,
		Title:   title,
		Message: message,
		Data:    payload,
	}
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		_, err := s.repo.Create(dbc, []*types.Notification{row})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	// Push after the row is durable. Zero live connections is fine; the
	// client will pull on its next visit.
	s.delivery.Deliver(notificationEvent(row))
	return row, nil
}

func (s *notificationService) ListMine(ctx context.Context, limit int) ([]*types.Notification, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	return s.repo.ListByUser(dbctx.Context{Ctx: ctx}, userID, limit)
}

func (s *notificationService) MarkRead(ctx context.Context, ids []uuid.UUID) error {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	if len(ids) == 0 {
		return nil
	}
	return s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		return s.repo.MarkRead(dbc, userID, ids)
	})
}

func (s *notificationService) UnreadCount(ctx context.Context) (int64, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return 0, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	return s.repo.UnreadCount(dbctx.Context{Ctx: ctx}, userID)
}

func notificationEvent(row *types.Notification) realtime.NotificationEvent {
	return realtime.NotificationEvent{
		ID:        row.ID,
		Target:    row.UserID,
		Kind:      row.Kind,
		Title:     row.Title,
		Message:   row.Message,
		Data:      json.RawMessage(row.Data),
		CreatedAt: row.CreatedAt,
		Read:      row.Read,
	}
}
