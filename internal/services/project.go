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
	"github.com/avelari/workbase-backend/internal/realtime"
	"github.com/avelari/workbase-backend/internal/requestdata"
)

type CreateProjectInput struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ClientID    *uuid.UUID `json:"client_id"`
}

type UpdateProjectInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

type ProjectService interface {
	CreateProject(ctx context.Context, in CreateProjectInput) (*types.Project, error)
	UpdateProject(ctx context.Context, id uuid.UUID, in UpdateProjectInput) (*types.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error
	ListMine(ctx context.Context, limit int) ([]*types.Project, error)
}

type projectService struct {
	log       *logger.Logger
	runner    aggregates.TxRunner
	projects  repos.ProjectRepo
	publisher Publisher
}

func NewProjectService(
	log *logger.Logger,
	runner aggregates.TxRunner,
	projects repos.ProjectRepo,
	publisher Publisher,
) ProjectService {
	return &projectService{
		log:       log.With("service", "ProjectService"),
		runner:    runner,
		projects:  projects,
		publisher: publisher,
	}
}

// CreateProject persists the project and announces it to everyone,
// including the creator's own connections: a new project appearing in
// the workspace is visible to every dashboard.
func (s *projectService) CreateProject(ctx context.Context, in CreateProjectInput) (*types.Project, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apierr.BadRequest("missing_project_name", fmt.Errorf("missing project name"))
	}

	row := &types.Project{
		OwnerID:     userID,
		ClientID:    in.ClientID,
		Name:        in.Name,
		Description: in.Description,
	}
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		_, err := s.projects.Create(dbc, []*types.Project{row})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.publisher.PublishToAll(projectEvent(realtime.OpCreate, row, userID))
	return row, nil
}

func (s *projectService) UpdateProject(ctx context.Context, id uuid.UUID, in UpdateProjectInput) (*types.Project, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apierr.BadRequest("empty_project_name", fmt.Errorf("project name cannot be empty"))
		}
		updates["name"] = name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Status != nil {
		updates["status"] = *in.Status
	}
	if len(updates) == 0 {
		return nil, apierr.BadRequest("empty_update", fmt.Errorf("nothing to update"))
	}

	var row *types.Project
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		if err := s.projects.UpdateFields(dbc, id, updates); err != nil {
			return err
		}
		rows, err := s.projects.GetByIDs(dbc, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apierr.NotFound("project_not_found", fmt.Errorf("project not found"))
		}
		row = rows[0]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}

	s.publisher.Publish(projectEvent(realtime.OpUpdate, row, userID), userID)
	return row, nil
}

func (s *projectService) DeleteProject(ctx context.Context, id uuid.UUID) error {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}

	var row *types.Project
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		rows, err := s.projects.GetByIDs(dbc, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apierr.NotFound("project_not_found", fmt.Errorf("project not found"))
		}
		row = rows[0]
		return s.projects.SoftDeleteByIDs(dbc, []uuid.UUID{id})
	})
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	s.publisher.Publish(projectEvent(realtime.OpDelete, row, userID), userID)
	return nil
}

func (s *projectService) ListMine(ctx context.Context, limit int) ([]*types.Project, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	return s.projects.ListByOwner(dbctx.Context{Ctx: ctx}, userID, limit)
}

func projectEvent(op realtime.Operation, row *types.Project, origin uuid.UUID) realtime.MutationEvent {
	return realtime.MutationEvent{
		Entity:    realtime.EntityProject,
		Operation: op,
		Data: realtime.ProjectSnapshot{
			ID:             row.ID,
			ClientID:       row.ClientID,
			Name:           row.Name,
			Status:         row.Status,
			LastActivityAt: row.LastActivityAt,
			UpdatedAt:      row.UpdatedAt,
		},
		Origin:      origin,
		CommittedAt: time.Now().UTC(),
	}
}
