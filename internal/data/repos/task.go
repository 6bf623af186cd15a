package repos

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/avelari/workbase-backend/internal/domain"
	"github.com/avelari/workbase-backend/internal/platform/dbctx"
	"github.com/avelari/workbase-backend/internal/platform/logger"
)

type TaskRepo interface {
	Create(dbc dbctx.Context, rows []*types.Task) ([]*types.Task, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Task, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.Task, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	LatestUpdatedAtByProject(dbc dbctx.Context, projectID uuid.UUID) (*time.Time, error)
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, log *logger.Logger) TaskRepo {
	return &taskRepo{db: db, log: log.With("repo", "TaskRepo")}
}

func (r *taskRepo) Create(dbc dbctx.Context, rows []*types.Task) ([]*types.Task, error) {
	if len(rows) == 0 {
		return []*types.Task{}, nil
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

func (r *taskRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Task, error) {
	if len(ids) == 0 {
		return []*types.Task{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Task
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Task{}).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *taskRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.Task, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("missing project_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Task
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Task{}).
		Where("project_id = ?", projectID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *taskRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.Task{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *taskRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.Task{}).Error
}

// LatestUpdatedAtByProject is the full-recompute query behind the project
// activity maintainer. Soft-deleted tasks are excluded by gorm's default
// scope; nil means the project has no remaining tasks.
func (r *taskRepo) LatestUpdatedAtByProject(dbc dbctx.Context, projectID uuid.UUID) (*time.Time, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("missing project_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var row struct {
		Latest *time.Time
	}
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Task{}).
		Select("MAX(updated_at) AS latest").
		Where("project_id = ?", projectID).
		Scan(&row).Error; err != nil {
		return nil, err
	}
	return row.Latest, nil
}
