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

type OpportunityRepo interface {
	Create(dbc dbctx.Context, rows []*types.Opportunity) ([]*types.Opportunity, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Opportunity, error)
	ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.Opportunity, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Opportunity, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SetLastActivity(dbc dbctx.Context, id uuid.UUID, ts time.Time) error
}

type opportunityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOpportunityRepo(db *gorm.DB, log *logger.Logger) OpportunityRepo {
	return &opportunityRepo{db: db, log: log.With("repo", "OpportunityRepo")}
}

func (r *opportunityRepo) Create(dbc dbctx.Context, rows []*types.Opportunity) ([]*types.Opportunity, error) {
	if len(rows) == 0 {
		return []*types.Opportunity{}, nil
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

func (r *opportunityRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Opportunity, error) {
	if len(ids) == 0 {
		return []*types.Opportunity{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Opportunity
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Opportunity{}).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *opportunityRepo) ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.Opportunity, error) {
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
	var out []*types.Opportunity
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Opportunity{}).
		Where("owner_id = ?", ownerID).
		Order("last_activity_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// LockByID serializes concurrent next-step and communication writes
// touching the same opportunity.
func (r *opportunityRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Opportunity, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID requires dbc.Tx")
	}
	var out types.Opportunity
	if err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *opportunityRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Opportunity{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SetLastActivity writes only the derived column; see ProjectRepo.
func (r *opportunityRepo) SetLastActivity(dbc dbctx.Context, id uuid.UUID, ts time.Time) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.Opportunity{}).
		Where("id = ?", id).
		UpdateColumn("last_activity_at", ts.UTC()).Error
}
