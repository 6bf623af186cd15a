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

type CommunicationRepo interface {
	Create(dbc dbctx.Context, rows []*types.OpportunityCommunication) ([]*types.OpportunityCommunication, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.OpportunityCommunication, error)
	ListByOpportunity(dbc dbctx.Context, opportunityID uuid.UUID) ([]*types.OpportunityCommunication, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	LatestOccurredAtByOpportunity(dbc dbctx.Context, opportunityID uuid.UUID) (*time.Time, error)
}

type communicationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCommunicationRepo(db *gorm.DB, log *logger.Logger) CommunicationRepo {
	return &communicationRepo{db: db, log: log.With("repo", "CommunicationRepo")}
}

func (r *communicationRepo) Create(dbc dbctx.Context, rows []*types.OpportunityCommunication) ([]*types.OpportunityCommunication, error) {
	if len(rows) == 0 {
		return []*types.OpportunityCommunication{}, nil
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

func (r *communicationRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.OpportunityCommunication, error) {
	if len(ids) == 0 {
		return []*types.OpportunityCommunication{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.OpportunityCommunication
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.OpportunityCommunication{}).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *communicationRepo) ListByOpportunity(dbc dbctx.Context, opportunityID uuid.UUID) ([]*types.OpportunityCommunication, error) {
	if opportunityID == uuid.Nil {
		return nil, fmt.Errorf("missing opportunity_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.OpportunityCommunication
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.OpportunityCommunication{}).
		Where("opportunity_id = ?", opportunityID).
		Order("occurred_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *communicationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.OpportunityCommunication{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *communicationRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.OpportunityCommunication{}).Error
}

// LatestOccurredAtByOpportunity feeds the opportunity activity recompute.
// Communications contribute when they happened, not when they were logged.
func (r *communicationRepo) LatestOccurredAtByOpportunity(dbc dbctx.Context, opportunityID uuid.UUID) (*time.Time, error) {
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
		Model(&types.OpportunityCommunication{}).
		Select("MAX(occurred_at) AS latest").
		Where("opportunity_id = ?", opportunityID).
		Scan(&row).Error; err != nil {
		return nil, err
	}
	return row.Latest, nil
}
