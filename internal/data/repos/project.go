package repos

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/avelari/workbase-backend/internal/domain"
	"github.com/avelari/workbase-backend/internal/platform/dbctx"
	"github.com/avelari/workbase-backend/internal/platform/logger"
)

type ProjectRepo interface {
	Create(dbc dbctx.Context, rows []*types.Project) ([]*types.Project, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Project, error)
	ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.Project, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Project, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SetLastActivity(dbc dbctx.Context, id uuid.UUID, ts time.Time) error
	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, log *logger.Logger) ProjectRepo {
	return &projectRepo{db: db, log: log.With("repo", "ProjectRepo")}
}

func (r *projectRepo) Create(dbc dbctx.Context, rows []*types.Project) ([]*types.Project, error) {
	if len(rows) == 0 {
		return []*types.Project{}, nil
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

func (r *projectRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Project, error) {
	if len(ids) == 0 {
		return []*types.Project{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Project
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Project{}).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *projectRepo) ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.Project, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("missing owner_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Project
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Project{}).
		Where("owner_id = ?", ownerID).
		Order("last_activity_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// LockByID takes a row lock so last_activity_at maintenance serializes
// against concurrent task writes touching the same project.
func (r *projectRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Project, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID requires dbc.Tx")
	}
	var out types.Project
	if err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *projectRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Project{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SetLastActivity writes the derived column only. UpdateColumn keeps
// updated_at untouched, which matters: last_activity_at moving is not an
// edit of the project row itself.
func (r *projectRepo) SetLastActivity(dbc dbctx.Context, id uuid.UUID, ts time.Time) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.Project{}).
		Where("id = ?", id).
		UpdateColumn("last_activity_at", ts.UTC()).Error
}

func (r *projectRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.Project{}).Error
}
