package repos

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/avelari/workbase-backend/internal/domain"
	"github.com/avelari/workbase-backend/internal/platform/dbctx"
	"github.com/avelari/workbase-backend/internal/platform/logger"
)

type NotificationRepo interface {
	Create(dbc dbctx.Context, rows []*types.Notification) ([]*types.Notification, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Notification, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.Notification, error)
	MarkRead(dbc dbctx.Context, userID uuid.UUID, ids []uuid.UUID) error
	UnreadCount(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type notificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNotificationRepo(db *gorm.DB, log *logger.Logger) NotificationRepo {
	return &notificationRepo{db: db, log: log.With("repo", "NotificationRepo")}
}

func (r *notificationRepo) Create(dbc dbctx.Context, rows []*types.Notification) ([]*types.Notification, error) {
	if len(rows) == 0 {
		return []*types.Notification{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *notificationRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Notification, error) {
	if len(ids) == 0 {
		return []*types.Notification{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Notification
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Notification{}).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *notificationRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.Notification, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Notification
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Notification{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead is scoped to the owning user so one user cannot flip another
// user's rows by guessing ids.
func (r *notificationRepo) MarkRead(dbc dbctx.Context, userID uuid.UUID, ids []uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("missing user_id")
	}
	if len(ids) == 0 {
		return nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("read", true).Error
}

func (r *notificationRepo) UnreadCount(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("missing user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
