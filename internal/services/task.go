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

type CreateTaskInput struct {
	Title      string     `json:"title"`
	Notes      string     `json:"notes"`
	ProjectID  *uuid.UUID `json:"project_id"`
	AssigneeID *uuid.UUID `json:"assignee_id"`
	DueDate    *time.Time `json:"due_date"`
}

type UpdateTaskInput struct {
	Title      *string    `json:"title"`
	Notes      *string    `json:"notes"`
	Status     *string    `json:"status"`
	AssigneeID *uuid.UUID `json:"assignee_id"`
	DueDate    *time.Time `json:"due_date"`
}

// TaskService runs the full mutation pipeline: persist the child row and
// maintain the owning project's activity timestamp in one transaction,
// then broadcast the change to every other connected observer, then
// notify the assignee. Broadcast and notification happen strictly after
// commit; a rolled-back write must never leak to subscribers.
type TaskService interface {
	CreateTask(ctx context.Context, in CreateTaskInput) (*types.Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, in UpdateTaskInput) (*types.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*types.Task, error)
}

type taskService struct {
	log             *logger.Logger
	runner          aggregates.TxRunner
	tasks           repos.TaskRepo
	projectActivity aggregates.ActivityMaintainer
	publisher       Publisher
	notifications   NotificationService
}

func NewTaskService(
	log *logger.Logger,
	runner aggregates.TxRunner,
	tasks repos.TaskRepo,
	projectActivity aggregates.ActivityMaintainer,
	publisher Publisher,
	notifications NotificationService,
) TaskService {
	return &taskService{
		log:             log.With("service", "TaskService"),
		runner:          runner,
		tasks:           tasks,
		projectActivity: projectActivity,
		publisher:       publisher,
		notifications:   notifications,
	}
}

func (s *taskService) CreateTask(ctx context.Context, in CreateTaskInput) (*types.Task, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apierr.BadRequest("missing_task_title", fmt.Errorf("missing task title"))
	}

	row := &types.Task{
		ProjectID:  in.ProjectID,
		AssigneeID: in.AssigneeID,
		CreatorID:  userID,
		Title:      in.Title,
		Notes:      in.Notes,
		DueDate:    in.DueDate,
	}
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.tasks.Create(dbc, []*types.Task{row}); err != nil {
			return err
		}
		if row.ProjectID != nil {
			return s.projectActivity.OnChildUpserted(dbc, *row.ProjectID, row.UpdatedAt)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.publisher.Publish(taskEvent(realtime.OpCreate, row, userID), userID)
	s.notifyAssignment(ctx, row, userID)
	return row, nil
}

func (s *taskService) UpdateTask(ctx context.Context, id uuid.UUID, in UpdateTaskInput) (*types.Task, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	updates := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apierr.BadRequest("empty_task_title", fmt.Errorf("task title cannot be empty"))
		}
		updates["title"] = title
	}
	if in.Notes != nil {
		updates["notes"] = *in.Notes
	}
	if in.Status != nil {
		updates["status"] = *in.Status
	}
	if in.AssigneeID != nil {
		updates["assignee_id"] = *in.AssigneeID
	}
	if in.DueDate != nil {
		updates["due_date"] = *in.DueDate
	}
	if len(updates) == 0 {
		return nil, apierr.BadRequest("empty_update", fmt.Errorf("nothing to update"))
	}

	var (
		row             *types.Task
		assigneeChanged bool
	)
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		befores, err := s.tasks.GetByIDs(dbc, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(befores) == 0 {
			return apierr.NotFound("task_not_found", fmt.Errorf("task not found"))
		}
		before := befores[0]
		assigneeChanged = in.AssigneeID != nil &&
			(before.AssigneeID == nil || *before.AssigneeID != *in.AssigneeID)

		if err := s.tasks.UpdateFields(dbc, id, updates); err != nil {
			return err
		}
		afters, err := s.tasks.GetByIDs(dbc, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(afters) == 0 {
			return apierr.Internal("task_reload_failed", fmt.Errorf("task not found after update"))
		}
		row = afters[0]
		if row.ProjectID != nil {
			return s.projectActivity.OnChildUpserted(dbc, *row.ProjectID, row.UpdatedAt)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	s.publisher.Publish(taskEvent(realtime.OpUpdate, row, userID), userID)
	if assigneeChanged {
		s.notifyAssignment(ctx, row, userID)
	}
	return row, nil
}

func (s *taskService) DeleteTask(ctx context.Context, id uuid.UUID) error {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}

	var row *types.Task
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		rows, err := s.tasks.GetByIDs(dbc, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apierr.NotFound("task_not_found", fmt.Errorf("task not found"))
		}
		row = rows[0]
		if err := s.tasks.SoftDeleteByIDs(dbc, []uuid.UUID{id}); err != nil {
			return err
		}
		// The deleted task may or may not have held the maximum; only a
		// full recompute is safe here.
		if row.ProjectID != nil {
			return s.projectActivity.OnChildDeleted(dbc, *row.ProjectID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	s.publisher.Publish(taskEvent(realtime.OpDelete, row, userID), userID)
	return nil
}

func (s *taskService) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*types.Task, error) {
	if requestdata.UserID(ctx) == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", fmt.Errorf("not authenticated"))
	}
	return s.tasks.ListByProject(dbctx.Context{Ctx: ctx}, projectID, limit)
}

func (s *taskService) notifyAssignment(ctx context.Context, row *types.Task, actor uuid.UUID) {
	if s.notifications == nil || row.AssigneeID == nil || *row.AssigneeID == actor {
		return
	}
	data := map[string]any{"task_id": row.ID.String()}
	if row.ProjectID != nil {
		data["project_id"] = row.ProjectID.String()
	}
	if _, err := s.notifications.Notify(ctx, *row.AssigneeID,
		"task_assigned", "Task assigned to you", row.Title, data); err != nil {
		// The task mutation already committed; a failed notification is
		// logged, not surfaced.
		s.log.Warn("assignment notification failed", "taskID", row.ID, "error", err)
	}
}

func taskEvent(op realtime.Operation, row *types.Task, origin uuid.UUID) realtime.MutationEvent {
	return realtime.MutationEvent{
		Entity:    realtime.EntityTask,
		Operation: op,
		Data: realtime.TaskSnapshot{
			ID:         row.ID,
			ProjectID:  row.ProjectID,
			AssigneeID: row.AssigneeID,
			Title:      row.Title,
			Status:     row.Status,
			UpdatedAt:  row.UpdatedAt,
		},
		Origin:      origin,
		CommittedAt: time.Now().UTC(),
	}
}
