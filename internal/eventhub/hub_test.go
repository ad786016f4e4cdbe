package eventhub_test

import (
	"complaints/backend/internal/eventhub"
	"complaints/backend/internal/models"
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	eventhub.Audience
	RecvChannel chan models.ComplaintEvent
	closed      atomic.Bool
}

func newMockClient(audience eventhub.Audience, buffer int) *MockClient {
	return &MockClient{
		Audience:    audience,
		RecvChannel: make(chan models.ComplaintEvent, buffer),
	}
}

func (c *MockClient) GetUserID() string                            { return c.UserID }
func (c *MockClient) GetSendChannel() chan<- models.ComplaintEvent { return c.RecvChannel }
func (c *MockClient) Run()                                         {}
func (c *MockClient) Close()                                       { c.closed.Store(true) }

func startHub(t *testing.T) (*eventhub.Hub, context.CancelFunc, <-chan error) {
	t.Helper()
	hub := eventhub.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	return hub, cancel, done
}

func receive(t *testing.T, c *MockClient) (models.ComplaintEvent, bool) {
	t.Helper()
	select {
	case e := <-c.RecvChannel:
		return e, true
	case <-time.After(200 * time.Millisecond):
		return models.ComplaintEvent{}, false
	}
}

func TestAudience_Wants(t *testing.T) {
	event := models.ComplaintEvent{UserID: "citizen-1", EntityID: "entity-1"}

	assert.True(t, eventhub.Audience{Role: models.RoleAdmin}.Wants(event))
	assert.True(t, eventhub.Audience{Role: models.RoleEmployee, EntityID: "entity-1"}.Wants(event))
	assert.False(t, eventhub.Audience{Role: models.RoleEmployee, EntityID: "entity-2"}.Wants(event))
	assert.False(t, eventhub.Audience{Role: models.RoleEmployee}.Wants(event))
	assert.True(t, eventhub.Audience{UserID: "citizen-1", Role: models.RoleCitizen}.Wants(event))
	assert.False(t, eventhub.Audience{UserID: "citizen-2", Role: models.RoleCitizen}.Wants(event))
}

func TestHub_DispatchesToInterestedClients(t *testing.T) {
	// Arrange
	hub, cancel, done := startHub(t)
	employee := newMockClient(eventhub.Audience{UserID: "emp", Role: models.RoleEmployee, EntityID: "entity-1"}, 4)
	stranger := newMockClient(eventhub.Audience{UserID: "citizen-2", Role: models.RoleCitizen}, 4)
	require.True(t, hub.Register(employee))
	require.True(t, hub.Register(stranger))

	// Act
	hub.Publish(context.Background(), models.ComplaintEvent{
		Type:           models.EventComplaintCreated,
		TrackingNumber: "CMP-1",
		UserID:         "citizen-1",
		EntityID:       "entity-1",
	})

	// Assert
	got, ok := receive(t, employee)
	require.True(t, ok)
	assert.Equal(t, "CMP-1", got.TrackingNumber)
	_, ok = receive(t, stranger)
	assert.False(t, ok)

	cancel()
	assert.NoError(t, <-done)
	assert.True(t, employee.closed.Load())
	assert.True(t, stranger.closed.Load())
}

func TestHub_UnregisterClosesClient(t *testing.T) {
	hub, cancel, done := startHub(t)
	defer func() { cancel(); <-done }()
	client := newMockClient(eventhub.Audience{UserID: "adm", Role: models.RoleAdmin}, 1)
	require.True(t, hub.Register(client))

	hub.Unregister(client)

	assert.Eventually(t, client.closed.Load, time.Second, 5*time.Millisecond)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub, cancel, done := startHub(t)
	defer func() { cancel(); <-done }()
	slow := newMockClient(eventhub.Audience{UserID: "adm", Role: models.RoleAdmin}, 0)
	require.True(t, hub.Register(slow))

	hub.Publish(context.Background(), models.ComplaintEvent{TrackingNumber: "CMP-2"})

	assert.Eventually(t, slow.closed.Load, time.Second, 5*time.Millisecond)
}

func TestHub_StoppedHubDoesNotBlock(t *testing.T) {
	hub, cancel, done := startHub(t)
	cancel()
	<-done

	client := newMockClient(eventhub.Audience{UserID: "adm", Role: models.RoleAdmin}, 1)
	assert.False(t, hub.Register(client))
	hub.Unregister(client)
	hub.Publish(context.Background(), models.ComplaintEvent{})
}

func TestHub_ConsumeDecodesRedisMessages(t *testing.T) {
	// Arrange
	hub, cancel, done := startHub(t)
	defer func() { cancel(); <-done }()
	citizen := newMockClient(eventhub.Audience{UserID: "citizen-1", Role: models.RoleCitizen}, 4)
	require.True(t, hub.Register(citizen))

	payload, err := json.Marshal(models.ComplaintEvent{
		Type:           models.EventComplaintStatusChanged,
		TrackingNumber: "CMP-3",
		UserID:         "citizen-1",
		OldStatus:      models.StatusNew,
		NewStatus:      models.StatusInProgress,
	})
	require.NoError(t, err)

	msgs := make(chan *redis.Message, 2)
	msgs <- &redis.Message{Channel: "complaints:events", Payload: "not json"}
	msgs <- &redis.Message{Channel: "complaints:events", Payload: string(payload)}
	close(msgs)

	// Act
	hub.Consume(context.Background(), msgs)

	// Assert
	got, ok := receive(t, citizen)
	require.True(t, ok)
	assert.Equal(t, models.StatusInProgress, got.NewStatus)
	_, ok = receive(t, citizen)
	assert.False(t, ok)
}
