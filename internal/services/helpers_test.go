package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelari/workbase-backend/internal/data/aggregates"
	"github.com/avelari/workbase-backend/internal/data/repos"
	"github.com/avelari/workbase-backend/internal/data/repos/testutil"
	"github.com/avelari/workbase-backend/internal/platform/logger"
	"github.com/avelari/workbase-backend/internal/realtime"
	"github.com/avelari/workbase-backend/internal/requestdata"
)

type publishedEvent struct {
	Event   realtime.MutationEvent
	Exclude uuid.UUID
	ToAll   bool
}

// fakePublisher records fan-out calls instead of touching connections.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(ev realtime.MutationEvent, excludeIdentity uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Event: ev, Exclude: excludeIdentity})
}

func (p *fakePublisher) PublishToAll(ev realtime.MutationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Event: ev, ToAll: true})
}

func (p *fakePublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

type fakeDeliverer struct {
	mu     sync.Mutex
	events []realtime.NotificationEvent
}

func (d *fakeDeliverer) Deliver(ev realtime.NotificationEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

func (d *fakeDeliverer) delivered() []realtime.NotificationEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]realtime.NotificationEvent, len(d.events))
	copy(out, d.events)
	return out
}

type serviceFixture struct {
	db  *gorm.DB
	log *logger.Logger

	runner    aggregates.TxRunner
	publisher *fakePublisher
	deliverer *fakeDeliverer

	users          repos.UserRepo
	projects       repos.ProjectRepo
	tasks          repos.TaskRepo
	notifications  repos.NotificationRepo
	opportunities  repos.OpportunityRepo
	nextSteps      repos.NextStepRepo
	communications repos.CommunicationRepo

	notificationService NotificationService
	taskService         TaskService
	projectService      ProjectService
	opportunityService  OpportunityService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)

	f := &serviceFixture{
		db:             gdb,
		log:            log,
		runner:         aggregates.NewGormTxRunner(gdb),
		publisher:      &fakePublisher{},
		deliverer:      &fakeDeliverer{},
		users:          repos.NewUserRepo(gdb, log),
		projects:       repos.NewProjectRepo(gdb, log),
		tasks:          repos.NewTaskRepo(gdb, log),
		notifications:  repos.NewNotificationRepo(gdb, log),
		opportunities:  repos.NewOpportunityRepo(gdb, log),
		nextSteps:      repos.NewNextStepRepo(gdb, log),
		communications: repos.NewCommunicationRepo(gdb, log),
	}

	projectActivity := aggregates.NewProjectActivity(log, f.projects, f.tasks)
	opportunityActivity := aggregates.NewOpportunityActivity(log, f.opportunities, f.nextSteps, f.communications)

	f.notificationService = NewNotificationService(log, f.runner, f.notifications, f.deliverer)
	f.taskService = NewTaskService(log, f.runner, f.tasks, projectActivity, f.publisher, f.notificationService)
	f.projectService = NewProjectService(log, f.runner, f.projects, f.publisher)
	f.opportunityService = NewOpportunityService(log, f.runner, f.opportunities, f.nextSteps, f.communications, opportunityActivity)
	return f
}

func authedCtx(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: userID})
}
