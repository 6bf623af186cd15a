package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func taskCreatedEvent(origin uuid.UUID) MutationEvent {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return MutationEvent{
		Entity:    EntityTask,
		Operation: OpCreate,
		Data: TaskSnapshot{
			ID:        uuid.New(),
			Title:     "prepare quarterly review",
			Status:    "open",
			UpdatedAt: now,
		},
		Origin:      origin,
		CommittedAt: now,
	}
}

func TestPublishExcludesOriginIdentity(t *testing.T) {
	reg := NewRegistry(mustTestLogger(t))
	disp := NewDispatcher(reg, mustTestLogger(t))

	origin := uuid.New()
	observer := uuid.New()
	connA := newTestConn(t, origin)
	connB := newTestConn(t, observer)
	reg.Register(connA)
	reg.Register(connB)

	ev := taskCreatedEvent(origin)
	disp.Publish(ev, origin)

	frame := recvFrame(t, connB, time.Second)
	if frame.Type != TypeDataChange {
		t.Fatalf("frame type: want=%s got=%s", TypeDataChange, frame.Type)
	}
	if frame.Entity != EntityTask || frame.Operation != OpCreate {
		t.Fatalf("frame entity/op: got %s/%s", frame.Entity, frame.Operation)
	}
	assertNoFrame(t, connA)
}

func TestPublishExcludesEveryConnectionOfOrigin(t *testing.T) {
	reg := NewRegistry(mustTestLogger(t))
	disp := NewDispatcher(reg, mustTestLogger(t))

	origin := uuid.New()
	originDesktop := newTestConn(t, origin)
	originLaptop := newTestConn(t, origin)
	observer := newTestConn(t, uuid.New())
	reg.Register(originDesktop)
	reg.Register(originLaptop)
	reg.Register(observer)

	disp.Publish(taskCreatedEvent(origin), origin)

	recvFrame(t, observer, time.Second)
	assertNoFrame(t, originDesktop)
	assertNoFrame(t, originLaptop)
}

func TestPublishToAllIncludesOrigin(t *testing.T) {
	reg := NewRegistry(mustTestLogger(t))
	disp := NewDispatcher(reg, mustTestLogger(t))

	origin := uuid.New()
	connA := newTestConn(t, origin)
	connB := newTestConn(t, uuid.New())
	reg.Register(connA)
	reg.Register(connB)

	ev := MutationEvent{
		Entity:    EntityProject,
		Operation: OpCreate,
		Data: ProjectSnapshot{
			ID:        uuid.New(),
			Name:      "website relaunch",
			Status:    "active",
			UpdatedAt: time.Now().UTC(),
		},
		Origin:      origin,
		CommittedAt: time.Now().UTC(),
	}
	disp.PublishToAll(ev)

	if got := recvFrame(t, connA, time.Second); got.Entity != EntityProject {
		t.Fatalf("origin frame entity: want=%s got=%s", EntityProject, got.Entity)
	}
	if got := recvFrame(t, connB, time.Second); got.Entity != EntityProject {
		t.Fatalf("observer frame entity: want=%s got=%s", EntityProject, got.Entity)
	}
}

func TestPublishIsolatesFailedConnectionAndDeregistersIt(t *testing.T) {
	reg := NewRegistry(mustTestLogger(t))
	disp := NewDispatcher(reg, mustTestLogger(t))

	origin := uuid.New()
	healthy := newTestConn(t, uuid.New())
	broken := newTestConn(t, uuid.New())
	alsoHealthy := newTestConn(t, uuid.New())
	reg.Register(healthy)
	reg.Register(broken)
	reg.Register(alsoHealthy)

	broken.Close()

	disp.Publish(taskCreatedEvent(origin), origin)

	recvFrame(t, healthy, time.Second)
	recvFrame(t, alsoHealthy, time.Second)

	if got := reg.Len(); got != 2 {
		t.Fatalf("registry len after failed delivery: want=2 got=%d", got)
	}
	if conns := reg.ConnectionsFor(broken.UserID); len(conns) != 0 {
		t.Fatalf("broken connection still registered: %d", len(conns))
	}
}

func TestPublishFullSendBufferCountsAsFailure(t *testing.T) {
	reg := NewRegistry(mustTestLogger(t))
	disp := NewDispatcher(reg, mustTestLogger(t))

	stalled := newTestConn(t, uuid.New())
	reg.Register(stalled)
	for i := 0; i < sendBuffer; i++ {
		if err := stalled.Enqueue([]byte("{}")); err != nil {
			t.Fatalf("prefill enqueue %d: %v", i, err)
		}
	}

	disp.Publish(taskCreatedEvent(uuid.New()), uuid.New())

	if got := reg.Len(); got != 0 {
		t.Fatalf("registry len after buffer overflow: want=0 got=%d", got)
	}
	if !stalled.Closed() {
		t.Fatalf("stalled connection should be closed after drop")
	}
}
