package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"

	aggtestutil "github.com/avelari/workbase-backend/internal/data/aggregates/testutil"
	"github.com/avelari/workbase-backend/internal/data/repos/testutil"
	types "github.com/avelari/workbase-backend/internal/domain"
	"github.com/avelari/workbase-backend/internal/platform/apierr"
	"github.com/avelari/workbase-backend/internal/platform/dbctx"
	"github.com/avelari/workbase-backend/internal/realtime"
)

func (f *serviceFixture) mustCreateProject(t *testing.T, owner uuid.UUID) *types.Project {
	t.Helper()
	row := &types.Project{OwnerID: owner, Name: "Rollout"}
	if _, err := f.projects.Create(dbctx.Context{Ctx: context.Background()}, []*types.Project{row}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return row
}

func TestCreateTaskMaintainsProjectActivityAndBroadcasts(t *testing.T) {
	f := newServiceFixture(t)
	actor := uuid.New()
	project := f.mustCreateProject(t, actor)

	task, err := f.taskService.CreateTask(authedCtx(actor), CreateTaskInput{
		Title:     "Ship the thing",
		ProjectID: &project.ID,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	// The project's derived timestamp follows the new task's updated_at.
	rows, err := f.projects.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{project.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("load project: rows=%d err=%v", len(rows), err)
	}
	if rows[0].LastActivityAt.Before(task.UpdatedAt) {
		t.Fatalf("last_activity_at = %v, want >= task updated_at %v", rows[0].LastActivityAt, task.UpdatedAt)
	}

	events := f.publisher.published()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.ToAll {
		t.Fatalf("task create must exclude the origin, not publish to all")
	}
	if ev.Exclude != actor {
		t.Fatalf("exclude = %v, want acting user %v", ev.Exclude, actor)
	}
	if ev.Event.Entity != realtime.EntityTask || ev.Event.Operation != realtime.OpCreate {
		t.Fatalf("event = %s/%s, want task/create", ev.Event.Entity, ev.Event.Operation)
	}
	snap, ok := ev.Event.Data.(realtime.TaskSnapshot)
	if !ok {
		t.Fatalf("payload is %T, want TaskSnapshot", ev.Event.Data)
	}
	if snap.ID != task.ID {
		t.Fatalf("snapshot id = %v, want %v", snap.ID, task.ID)
	}
}

func TestCreateTaskAssignmentNotifiesAssignee(t *testing.T) {
	f := newServiceFixture(t)
	actor := uuid.New()
	assignee := uuid.New()

	if _, err := f.taskService.CreateTask(authedCtx(actor), CreateTaskInput{
		Title:      "Review contract",
		AssigneeID: &assignee,
	}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	// Persisted row first, push second.
	rows, err := f.notifications.ListByUser(dbctx.Context{Ctx: context.Background()}, assignee, 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(rows) != 1 || rows[0].Kind != "task_assigned" {
		t.Fatalf("notifications = %+v, want one task_assigned row", rows)
	}
	if got := f.deliverer.delivered(); len(got) != 1 || got[0].Target != assignee {
		t.Fatalf("delivered = %+v, want one push to assignee", got)
	}
}

func TestCreateTaskSelfAssignmentDoesNotNotify(t *testing.T) {
	f := newServiceFixture(t)
	actor := uuid.New()

	if _, err := f.taskService.CreateTask(authedCtx(actor), CreateTaskInput{
		Title:      "My own todo",
		AssigneeID: &actor,
	}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if got := f.deliverer.delivered(); len(got) != 0 {
		t.Fatalf("delivered %d pushes for self-assignment, want 0", len(got))
	}
}

func TestDeleteTaskRecomputesAndBroadcastsDelete(t *testing.T) {
	f := newServiceFixture(t)
	actor := uuid.New()
	project := f.mustCreateProject(t, actor)

	first, err := f.taskService.CreateTask(authedCtx(actor), CreateTaskInput{Title: "first", ProjectID: &project.ID})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := f.taskService.DeleteTask(authedCtx(actor), first.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}

	events := f.publisher.published()
	if len(events) != 2 {
		t.Fatalf("published %d events, want create+delete", len(events))
	}
	if events[1].Event.Operation != realtime.OpDelete {
		t.Fatalf("second event op = %s, want delete", events[1].Event.Operation)
	}

	// With no tasks left the aggregate falls back to the project's own
	// updated_at rather than keeping the deleted task's time.
	rows, err := f.projects.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{project.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("load project: rows=%d err=%v", len(rows), err)
	}
	if !rows[0].LastActivityAt.Equal(rows[0].UpdatedAt) {
		t.Fatalf("last_activity_at = %v, want project's own updated_at %v",
			rows[0].LastActivityAt, rows[0].UpdatedAt)
	}
}

// A failed transaction must not leak an event to subscribers.
func TestFailedTransactionPublishesNothing(t *testing.T) {
	f := newServiceFixture(t)
	actor := uuid.New()

	runner := &aggtestutil.InjectedTxRunner{FailBegin: context.DeadlineExceeded}
	svc := NewTaskService(testutil.Logger(t), runner, f.tasks, nil, f.publisher, nil)

	if _, err := svc.CreateTask(authedCtx(actor), CreateTaskInput{Title: "doomed"}); err == nil {
		t.Fatalf("expected CreateTask to fail")
	}
	if got := f.publisher.published(); len(got) != 0 {
		t.Fatalf("published %d events after failed tx, want 0", len(got))
	}
}

func TestTaskMutationsRequireIdentity(t *testing.T) {
	f := newServiceFixture(t)
	if _, err := f.taskService.CreateTask(context.Background(), CreateTaskInput{Title: "nope"}); err == nil {
		t.Fatalf("expected unauthenticated create to fail")
	}
	if err := f.taskService.DeleteTask(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected unauthenticated delete to fail")
	}
}

// Client-caused failures carry an HTTP status for the handler layer;
// a missing task must surface as 404, not an opaque 500.
func TestUpdateMissingTaskReturnsNotFound(t *testing.T) {
	f := newServiceFixture(t)
	title := "renamed"

	_, err := f.taskService.UpdateTask(authedCtx(uuid.New()), uuid.New(), UpdateTaskInput{Title: &title})
	if err == nil {
		t.Fatalf("expected error for missing task")
	}
	ae, ok := apierr.From(err)
	if !ok {
		t.Fatalf("expected status-coded error, got %v", err)
	}
	if ae.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", ae.Status, http.StatusNotFound)
	}
}

func TestCreateTaskWithoutTitleIsBadRequest(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.taskService.CreateTask(authedCtx(uuid.New()), CreateTaskInput{Title: "   "})
	ae, ok := apierr.From(err)
	if !ok || ae.Status != http.StatusBadRequest {
		t.Fatalf("expected 400-coded error, got %v", err)
	}
}
