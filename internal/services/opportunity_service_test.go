package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/avelari/workbase-backend/internal/platform/dbctx"
)

func TestNextStepLifecycleMovesOpportunityActivity(t *testing.T) {
	f := newServiceFixture(t)
	owner := uuid.New()
	ctx := authedCtx(owner)

	opp, err := f.opportunityService.CreateOpportunity(ctx, CreateOpportunityInput{Name: "Acme renewal"})
	if err != nil {
		t.Fatalf("CreateOpportunity: %v", err)
	}

	step, err := f.opportunityService.CreateNextStep(ctx, CreateNextStepInput{
		OpportunityID: opp.ID,
		Description:   "send proposal",
	})
	if err != nil {
		t.Fatalf("CreateNextStep: %v", err)
	}

	rows, err := f.opportunities.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{opp.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("load opportunity: rows=%d err=%v", len(rows), err)
	}
	if rows[0].LastActivityAt.Before(step.UpdatedAt) {
		t.Fatalf("last_activity_at = %v, want >= step updated_at %v", rows[0].LastActivityAt, step.UpdatedAt)
	}

	if err := f.opportunityService.DeleteNextStep(ctx, step.ID); err != nil {
		t.Fatalf("DeleteNextStep: %v", err)
	}
	rows, err = f.opportunities.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{opp.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("reload opportunity: rows=%d err=%v", len(rows), err)
	}
	// No children remain: the recompute lands on the opportunity's own
	// updated_at, not on the deleted step's time and not on zero.
	if !rows[0].LastActivityAt.Equal(rows[0].UpdatedAt) {
		t.Fatalf("last_activity_at = %v, want own updated_at %v", rows[0].LastActivityAt, rows[0].UpdatedAt)
	}
}

func TestLogCommunicationContributesOccurredAt(t *testing.T) {
	f := newServiceFixture(t)
	owner := uuid.New()
	ctx := authedCtx(owner)

	opp, err := f.opportunityService.CreateOpportunity(ctx, CreateOpportunityInput{Name: "Globex expansion"})
	if err != nil {
		t.Fatalf("CreateOpportunity: %v", err)
	}

	// A communication from last week must not move the aggregate
	// backwards past fresher activity.
	lastWeek := time.Now().UTC().Add(-7 * 24 * time.Hour)
	if _, err := f.opportunityService.LogCommunication(ctx, LogCommunicationInput{
		OpportunityID: opp.ID,
		Kind:          "call",
		Summary:       "intro call",
		OccurredAt:    lastWeek,
	}); err != nil {
		t.Fatalf("LogCommunication: %v", err)
	}

	rows, err := f.opportunities.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{opp.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("load opportunity: rows=%d err=%v", len(rows), err)
	}
	if rows[0].LastActivityAt.Before(rows[0].UpdatedAt.Add(-time.Second)) {
		t.Fatalf("last_activity_at = %v regressed behind own updated_at %v", rows[0].LastActivityAt, rows[0].UpdatedAt)
	}

	steps, err := f.opportunityService.ListCommunications(ctx, opp.ID)
	if err != nil || len(steps) != 1 {
		t.Fatalf("ListCommunications: rows=%d err=%v", len(steps), err)
	}
}
