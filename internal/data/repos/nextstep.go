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

type NextStepRepo interface {
	Create(dbc dbctx.Context, rows []*types.OpportunityNextStep) ([]*types.OpportunityNextStep, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.OpportunityNextStep, error)
	ListByOpportunity(dbc dbctx.Context, opportunityID uuid.UUID) ([]*types.OpportunityNextStep, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	LatestUpdatedAtByOpportunity(dbc dbctx.Context, opportunityID uuid.UUID) (*time.Time, error)
}

type nextStepRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNextStepRepo(db *gorm.DB, log *logger.Logger) NextStepRepo {
	return &nextStepRepo{db: db, log: log.With("repo", "NextStepRepo")}
}

func (r *nextStepRepo) Create(dbc dbctx.Context, rows []*types.OpportunityNextStep) ([]*types.OpportunityNextStep, error) {
	if len(rows) == 0 {
		return []*types.OpportunityNextStep{}, nil
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

func (r *nextStepRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.OpportunityNextStep, error) {
	if len(ids) == 0 {
		return []*types.OpportunityNextStep{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.OpportunityNextStep
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.OpportunityNextStep{}).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *nextStepRepo) ListByOpportunity(dbc dbctx.Context, opportunityID uuid.UUID) ([]*types.OpportunityNextStep, error) {
	if opportunityID == uuid.Nil {
		return nil, fmt.Errorf("missing opportunity_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.OpportunityNextStep
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.OpportunityNextStep{}).
		Where("opportunity_id = ?", opportunityID).
		Order("updated_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *nextStepRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.OpportunityNextStep{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *nextStepRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.OpportunityNextStep{}).Error
}

// LatestUpdatedAtByOpportunity feeds the opportunity activity recompute.
// Nil means no next steps remain.
func (r *nextStepRepo) LatestUpdatedAtByOpportunity(dbc dbctx.Context, opportunityID uuid.UUID) (*time.Time, error) {
	if opportunityID == uuid.Nil {
		return nil, fmt.Errorf("missing opportunity_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var row struct {
		Latest *time.Time
	}
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.OpportunityNextStep{}).
		Select("MAX(updated_at) AS latest").
		Where("opportunity_id = ?", opportunityID).
		Scan(&row).Error; err != nil {
		return nil, err
	}
	return row.Latest, nil
}
