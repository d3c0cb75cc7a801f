package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maplebear/saf-portal/internal/domain"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakePublisher struct {
	channels []string
	fail     map[string]bool
}

func (p *fakePublisher) Publish(channel string, _ map[string]any) error {
	if p.fail[channel] {
		return errors.New("publish rejected")
	}
	p.channels = append(p.channels, channel)
	return nil
}

var testActor = domain.Actor{ID: "u1", Name: "Carla", Role: domain.RoleAgent}

func TestDispatcher_TypedHandlersRunBeforeCatchAll(t *testing.T) {
	dispatcher := NewInMemoryDispatcher(nil)
	var order []string

	dispatcher.SubscribeAll(func(context.Context, Event) error {
		order = append(order, "all")
		return nil
	})
	dispatcher.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		order = append(order, "failing")
		return errors.New("boom")
	})
	dispatcher.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		order = append(order, "typed")
		return nil
	})
	dispatcher.Subscribe(EventTicketRemoved, func(context.Context, Event) error {
		order = append(order, "other")
		return nil
	})

	err := dispatcher.Publish(context.Background(), NewEvent(EventTicketCreated, "t1", testActor, time.Now(), nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"failing", "typed", "all"}, order)
}

func TestKafkaForwarder_WritesKeyedJSON(t *testing.T) {
	writer := &fakeWriter{}
	forwarder := NewKafkaForwarder(writer, nil)
	dispatcher := NewInMemoryDispatcher(nil)
	forwarder.Register(dispatcher)

	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	event := NewEvent(EventTicketStatusChanged, "t42", testActor, at, TicketStatusChangedPayload{
		OldStatus: domain.TicketStatusPending,
		NewStatus: domain.TicketStatusInProgress,
	})
	require.NoError(t, dispatcher.Publish(context.Background(), event))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "t42", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "ticket_status_changed", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "ticket_status_changed", decoded["type"])
	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, "IN_PROGRESS", payload["new_status"])

	require.NoError(t, forwarder.Close())
	assert.True(t, writer.closed)
}

func TestKafkaForwarder_KeyFallsBackToEventID(t *testing.T) {
	writer := &fakeWriter{}
	forwarder := NewKafkaForwarder(writer, nil)
	event := NewEvent(EventAuditRecorded, "", testActor, time.Now(), nil)

	require.NoError(t, forwarder.Forward(context.Background(), event))
	assert.Equal(t, event.ID, string(writer.messages[0].Key))
}

func TestKafkaForwarder_WriteError(t *testing.T) {
	forwarder := NewKafkaForwarder(&fakeWriter{err: errors.New("broker down")}, nil)
	err := forwarder.Forward(context.Background(), NewEvent(EventTicketCreated, "t1", testActor, time.Now(), nil))
	assert.ErrorContains(t, err, "broker down")
}

func TestBroadcaster_PublishesPerRole(t *testing.T) {
	publisher := &fakePublisher{fail: map[string]bool{}}
	dispatcher := NewInMemoryDispatcher(nil)
	NewBroadcaster(publisher, nil).Register(dispatcher)

	ticketID := "t1"
	notification := domain.Notification{
		ID:          "n1",
		Type:        domain.NotificationApprovalNeeded,
		Message:     "Aprovação necessária",
		TicketID:    &ticketID,
		TargetRoles: []domain.Role{domain.RoleCoordinator, domain.RoleAdmin},
	}
	event := NewEvent(EventNotificationCreated, ticketID, domain.SystemActor, time.Now(), NotificationCreatedPayload{Notification: notification})
	require.NoError(t, dispatcher.Publish(context.Background(), event))

	assert.Equal(t, []string{"saf-notifications-coordinator", "saf-notifications-admin"}, publisher.channels)
}

func TestBroadcaster_ReportsFailedChannels(t *testing.T) {
	publisher := &fakePublisher{fail: map[string]bool{"saf-notifications-admin": true}}
	broadcaster := NewBroadcaster(publisher, nil)
	notification := domain.Notification{ID: "n1", TargetRoles: []domain.Role{domain.RoleCoordinator, domain.RoleAdmin}}

	err := broadcaster.handleNotificationCreated(context.Background(),
		NewEvent(EventNotificationCreated, "", domain.SystemActor, time.Now(), NotificationCreatedPayload{Notification: notification}))
	assert.EqualError(t, err, "1 of 2 channels failed")
	assert.Equal(t, []string{"saf-notifications-coordinator"}, publisher.channels)
}
