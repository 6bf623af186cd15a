package syncagent

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelari/workbase-backend/internal/realtime"
)

func TestInvalidationKeysMapping(t *testing.T) {
	projectID := uuid.New()
	taskWithProject, err := json.Marshal(map[string]any{
		"id":         uuid.New().String(),
		"project_id": projectID.String(),
		"title":      "draft proposal",
	})
	require.NoError(t, err)

	cases := []struct {
		name    string
		entity  realtime.Entity
		payload json.RawMessage
		want    []string
	}{
		{"project", realtime.EntityProject, nil, []string{"projects"}},
		{"task without project", realtime.EntityTask, nil, []string{"tasks"}},
		{"task with project", realtime.EntityTask, taskWithProject, []string{"tasks", "project:" + projectID.String()}},
		{"client widens to companies and projects", realtime.EntityClient, nil, []string{"clients", "companies", "projects"}},
		{"company widens to clients", realtime.EntityCompany, nil, []string{"companies", "clients"}},
		{"user", realtime.EntityUser, nil, []string{"users"}},
		{"invoice", realtime.EntityInvoice, nil, []string{"invoices"}},
		{"expense", realtime.EntityExpense, nil, []string{"expenses"}},
		{"ticket", realtime.EntityTicket, nil, []string{"support-tickets"}},
		{"payment", realtime.EntityPayment, nil, []string{"payments"}},
		{"notification", realtime.EntityNotification, nil, []string{"notifications"}},
		{"unknown entity", realtime.Entity("report"), nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, InvalidationKeys(tc.entity, tc.payload))
		})
	}
}

func TestInvalidationKeysIsDeterministic(t *testing.T) {
	payload, err := json.Marshal(map[string]any{
		"id":         uuid.New().String(),
		"project_id": uuid.New().String(),
	})
	require.NoError(t, err)

	first := InvalidationKeys(realtime.EntityTask, payload)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, InvalidationKeys(realtime.EntityTask, payload))
	}
}

func TestInvalidationKeysIgnoresMalformedProjectRef(t *testing.T) {
	assert.Equal(t, []string{"tasks"}, InvalidationKeys(realtime.EntityTask, json.RawMessage(`{"project_id":42}`)))
	assert.Equal(t, []string{"tasks"}, InvalidationKeys(realtime.EntityTask, json.RawMessage(`not json`)))
}

func TestQueryCacheStaleness(t *testing.T) {
	cache := NewQueryCache()
	assert.False(t, cache.IsStale("tasks"))

	cache.Invalidate([]string{"tasks", "projects"})
	assert.True(t, cache.IsStale("tasks"))
	assert.True(t, cache.IsStale("projects"))
	assert.ElementsMatch(t, []string{"tasks", "projects"}, cache.StaleKeys())

	cache.MarkFresh("tasks")
	assert.False(t, cache.IsStale("tasks"))
	assert.True(t, cache.IsStale("projects"))
}

func TestQueryCacheConcurrentInvalidate(t *testing.T) {
	cache := NewQueryCache()
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				cache.Invalidate([]string{fmt.Sprintf("key-%d-%d", n, j)})
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	assert.Len(t, cache.StaleKeys(), 400)
}
