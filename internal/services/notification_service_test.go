package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/avelari/workbase-backend/internal/data/repos/testutil"
	"github.com/avelari/workbase-backend/internal/platform/dbctx"
	"github.com/avelari/workbase-backend/internal/realtime"
)

// A notification addressed to an identity with zero live connections is
// persisted and delivery is silently skipped.
func TestNotifyWithNoLiveConnectionsPersistsWithoutError(t *testing.T) {
	f := newServiceFixture(t)
	log := testutil.Logger(t)

	// Real registry and delivery, never registered a connection.
	registry := realtime.NewRegistry(log)
	delivery := realtime.NewNotificationDelivery(registry, log)
	svc := NewNotificationService(log, f.runner, f.notifications, delivery)

	target := uuid.New()
	row, err := svc.Notify(context.Background(), target, "invoice_paid", "Invoice paid", "INV-104 settled", nil)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	rows, err := f.notifications.ListByUser(dbctx.Context{Ctx: context.Background()}, target, 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != row.ID {
		t.Fatalf("persisted rows = %+v, want the notified row", rows)
	}
}

func TestNotifyPersistsBeforePush(t *testing.T) {
	f := newServiceFixture(t)
	target := uuid.New()

	row, err := f.notificationService.Notify(authedCtx(target), target,
		"task_assigned", "Task assigned to you", "Ship it", map[string]any{"task_id": uuid.New().String()})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if row.ID == uuid.Nil {
		t.Fatalf("row id not populated")
	}

	got := f.deliverer.delivered()
	if len(got) != 1 {
		t.Fatalf("delivered %d pushes, want 1", len(got))
	}
	if got[0].ID != row.ID || got[0].Target != target || got[0].Kind != "task_assigned" {
		t.Fatalf("pushed event %+v does not match persisted row", got[0])
	}
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	f := newServiceFixture(t)
	target := uuid.New()
	ctx := authedCtx(target)

	first, err := f.notificationService.Notify(ctx, target, "ticket_update", "Ticket updated", "", nil)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if _, err := f.notificationService.Notify(ctx, target, "ticket_update", "Ticket updated again", "", nil); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	count, err := f.notificationService.UnreadCount(ctx)
	if err != nil || count != 2 {
		t.Fatalf("UnreadCount = %d err=%v, want 2", count, err)
	}

	if err := f.notificationService.MarkRead(ctx, []uuid.UUID{first.ID}); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	count, err = f.notificationService.UnreadCount(ctx)
	if err != nil || count != 1 {
		t.Fatalf("UnreadCount after MarkRead = %d err=%v, want 1", count, err)
	}

	// Another identity cannot flip rows it does not own.
	if err := f.notificationService.MarkRead(authedCtx(uuid.New()), []uuid.UUID{first.ID}); err != nil {
		t.Fatalf("MarkRead as stranger: %v", err)
	}
	count, err = f.notificationService.UnreadCount(ctx)
	if err != nil || count != 1 {
		t.Fatalf("UnreadCount after foreign MarkRead = %d err=%v, want 1", count, err)
	}
}
