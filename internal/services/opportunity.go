package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avelari/workbase-backend/internal/data/aggregates"
	"github.com/avelari/workbase-backend/internal/data/repos"
	types "github.com/avelari/workbase-backend/internal/domain"
	"github.com/avelari/workbase-backend/internal/platform/apierr"
	"github.com/avelari/workbase-backend/internal/platform/dbctx"
	"github.com/avelari/workbase-backend/internal/platform/logger"
	"github.com/avelari/workbase-backend/internal/requestdata"
)

type CreateOpportunityInput struct {
	Name     string     `json:"name"`
	Stage    string     `json:"stage"`
	Amount   float64    `json:"amount"`
	ClientID *uuid.UUID `json:"client_id"`
}

type CreateNextStepInput struct {
	OpportunityID uuid.UUID  `json:"opportunity_id"`
	Description   string     `json:"description"`
	DueDate       *time.Time `json:"due_date"`
}

type UpdateNextStepInput struct {
	Description *string `json:"description"`
	Done        *bool   `json:"done"`
}

type LogCommunicationInput struct {
	OpportunityID uuid.UUID `json:"opportunity_id"`
	Kind          string    `json:"kind"`
	Summary       string    `json:"summary"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// OpportunityService owns the CRM pipeline mutations. Next steps and
// communications are the child relations feeding the opportunity's
// last_activity_at; every mutation here runs the maintainer in its own
// transaction. These views are pull-based in the host app, so child
// mutations do not broadcast.
type OpportunityService interface {
	CreateOpportunity(ctx context.Context, in CreateOpportunityInput) (*types.Opportunity, error)
	ListMine(ctx context.Context, limit int) ([]*types.Opportunity, error)

	CreateNextStep(ctx context.Context, in CreateNextStepInput) (*types.OpportunityNextStep, error)
	UpdateNextStep(ctx context.Context, id uuid.UUID, in UpdateNextStepInput) (*types.OpportunityNextStep, error)
	DeleteNextStep(ctx context.Context, id uuid.UUID) error
	ListNextSteps(ctx context.Context, opportunityID uuid.UUID) ([]*types.OpportunityNextStep, error)

	LogCommunication(ctx context.Context, in LogCommunicationInput) (*types.OpportunityCommunication, error)
	DeleteCommunication(ctx context.Context, id uuid.UUID) error
	ListCommunications(ctx context.Context, opportunityID uuid.UUID) ([]*types.OpportunityCommunication, error)
}

type opportunityService struct {
	log            *logger.Logger
	runner         aggregates.TxRunner
	opportunities  repos.OpportunityRepo
	nextSteps      repos.NextStepRepo
	communications repos.CommunicationRepo
	activity       aggregates.ActivityMaintainer
}

func NewOpportunityService(
	log *logger.Logger,
	runner aggregates.TxRunner,
	opportunities repos.OpportunityRepo,
	nextSteps repos.NextStepRepo,
	communications repos.CommunicationRepo,
	activity aggregates.ActivityMaintainer,
) OpportunityService {
	return &opportunityService{
		log:            log.With("service", "OpportunityService"),
		runner:         runner,
		opportunities:  opportunities,
		nextSteps:      nextSteps,
		communications: communications,
		activity:       activity,
	}
}

func (s *opportunityService) CreateOpportunity(ctx context.Context, in CreateOpportunityInput) (*types.Opportunity, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apierr.BadRequest("missing_opportunity_name", fmt.Errorf("missing opportunity name"))
	}

	row := &types.Opportunity{
		OwnerID:  userID,
		ClientID: in.ClientID,
		Name:     in.Name,
		Amount:   in.Amount,
	}
	if in.Stage != "" {
		row.Stage = in.Stage
	}
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		_, err := s.opportunities.Create(dbc, []*types.Opportunity{row})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create opportunity: %w", err)
	}
	return row, nil
}

func (s *opportunityService) ListMine(ctx context.Context, limit int) ([]*types.Opportunity, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	return s.opportunities.ListByOwner(dbctx.Context{Ctx: ctx}, userID, limit)
}

func (s *opportunityService) CreateNextStep(ctx context.Context, in CreateNextStepInput) (*types.OpportunityNextStep, error) {
	if requestdata.UserID(ctx) == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.OpportunityID == uuid.Nil || in.Description == "" {
		return nil, apierr.BadRequest("missing_fields", fmt.Errorf("missing opportunity or description"))
	}

	row := &types.OpportunityNextStep{
		OpportunityID: in.OpportunityID,
		Description:   in.Description,
		DueDate:       in.DueDate,
	}
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.nextSteps.Create(dbc, []*types.OpportunityNextStep{row}); err != nil {
			return err
		}
		return s.activity.OnChildUpserted(dbc, in.OpportunityID, row.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("create next step: %w", err)
	}
	return row, nil
}

func (s *opportunityService) UpdateNextStep(ctx context.Context, id uuid.UUID, in UpdateNextStepInput) (*types.OpportunityNextStep, error) {
	if requestdata.UserID(ctx) == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	updates := map[string]interface{}{}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if desc == "" {
			return nil, apierr.BadRequest("empty_description", fmt.Errorf("description cannot be empty"))
		}
		updates["description"] = desc
	}
	if in.Done != nil {
		updates["done"] = *in.Done
	}
	if len(updates) == 0 {
		return nil, apierr.BadRequest("empty_update", fmt.Errorf("nothing to update"))
	}

	var row *types.OpportunityNextStep
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		if err := s.nextSteps.UpdateFields(dbc, id, updates); err != nil {
			return err
		}
		rows, err := s.nextSteps.GetByIDs(dbc, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apierr.NotFound("next_step_not_found", fmt.Errorf("next step not found"))
		}
		row = rows[0]
		return s.activity.OnChildUpserted(dbc, row.OpportunityID, row.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("update next step: %w", err)
	}
	return row, nil
}

func (s *opportunityService) DeleteNextStep(ctx context.Context, id uuid.UUID) error {
	if requestdata.UserID(ctx) == uuid.Nil {
		return apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		rows, err := s.nextSteps.GetByIDs(dbc, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apierr.NotFound("next_step_not_found", fmt.Errorf("next step not found"))
		}
		if err := s.nextSteps.DeleteByIDs(dbc, []uuid.UUID{id}); err != nil {
			return err
		}
		return s.activity.OnChildDeleted(dbc, rows[0].OpportunityID)
	})
	if err != nil {
		return fmt.Errorf("delete next step: %w", err)
	}
	return nil
}

func (s *opportunityService) ListNextSteps(ctx context.Context, opportunityID uuid.UUID) ([]*types.OpportunityNextStep, error) {
	if requestdata.UserID(ctx) == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	return s.nextSteps.ListByOpportunity(dbctx.Context{Ctx: ctx}, opportunityID)
}

func (s *opportunityService) LogCommunication(ctx context.Context, in LogCommunicationInput) (*types.OpportunityCommunication, error) {
	if requestdata.UserID(ctx) == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	in.Kind = strings.TrimSpace(in.Kind)
	if in.OpportunityID == uuid.Nil || in.Kind == "" {
		return nil, apierr.BadRequest("missing_fields", fmt.Errorf("missing opportunity or kind"))
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = time.Now().UTC()
	}

	row := &types.OpportunityCommunication{
		OpportunityID: in.OpportunityID,
		Kind:          in.Kind,
		Summary:       in.Summary,
		OccurredAt:    in.OccurredAt,
	}
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.communications.Create(dbc, []*types.OpportunityCommunication{row}); err != nil {
			return err
		}
		// A communication contributes the time it happened, which may
		// predate every other child; the max keeps this safe.
		return s.activity.OnChildUpserted(dbc, in.OpportunityID, row.OccurredAt)
	})
	if err != nil {
		return nil, fmt.Errorf("log communication: %w", err)
	}
	return row, nil
}

func (s *opportunityService) DeleteCommunication(ctx context.Context, id uuid.UUID) error {
	if requestdata.UserID(ctx) == uuid.Nil {
		return apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		rows, err := s.communications.GetByIDs(dbc, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apierr.NotFound("communication_not_found", fmt.Errorf("communication not found"))
		}
		if err := s.communications.DeleteByIDs(dbc, []uuid.UUID{id}); err != nil {
			return err
		}
		return s.activity.OnChildDeleted(dbc, rows[0].OpportunityID)
	})
	if err != nil {
		return fmt.Errorf("delete communication: %w", err)
	}
	return nil
}

func (s *opportunityService) ListCommunications(ctx context.Context, opportunityID uuid.UUID) ([]*types.OpportunityCommunication, error) {
	if requestdata.UserID(ctx) == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	return s.communications.ListByOpportunity(dbctx.Context{Ctx: ctx}, opportunityID)
}
