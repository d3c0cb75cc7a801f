package events

import (
	"context"
	"fmt"
	"strings"

	pubnub "github.com/pubnub/go/v7"
	"go.uber.org/zap"

	"github.com/maplebear/saf-portal/internal/domain"
)

// ChannelPrefix is prepended to the lowercased role to build a channel name.
const ChannelPrefix = "saf-notifications-"

// Publisher pushes a message to a realtime channel.
type Publisher interface {
	Publish(channel string, message map[string]any) error
}

type pubnubPublisher struct {
	pn *pubnub.PubNub
}

// NewPubNubPublisher builds a publisher from keys.
func NewPubNubPublisher(publishKey, subscribeKey, userID string) Publisher {
	cfg := pubnub.NewConfigWithUserId(pubnub.UserId(userID))
	cfg.PublishKey = publishKey
	cfg.SubscribeKey = subscribeKey
	return &pubnubPublisher{pn: pubnub.NewPubNub(cfg)}
}

func (p *pubnubPublisher) Publish(channel string, message map[string]any) error {
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return err
}

// Broadcaster pushes new notifications to one channel per target role.
type Broadcaster struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewBroadcaster wraps publisher.
func NewBroadcaster(publisher Publisher, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{publisher: publisher, logger: logger}
}

// Register subscribes to notification_created.
func (b *Broadcaster) Register(dispatcher Dispatcher) {
	dispatcher.Subscribe(EventNotificationCreated, b.handleNotificationCreated)
}

// RoleChannel returns the channel a role listens on.
func RoleChannel(role domain.Role) string {
	return ChannelPrefix + strings.ToLower(string(role))
}

func (b *Broadcaster) handleNotificationCreated(_ context.Context, event Event) error {
	payload, ok := event.Payload.(NotificationCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n := payload.Notification
	message := map[string]any{
		"type":       "notification",
		"id":         n.ID,
		"kind":       string(n.Type),
		"title":      n.Title,
		"message":    n.Message,
		"created_at": n.CreatedAt,
	}
	if n.TicketID != nil {
		message["ticket_id"] = *n.TicketID
	}
	var failed int
	for _, role := range n.TargetRoles {
		channel := RoleChannel(role)
		if err := b.publisher.Publish(channel, message); err != nil {
			failed++
			b.logger.Warn("realtime publish failed", zap.String("channel", channel), zap.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d channels failed", failed, len(n.TargetRoles))
	}
	return nil
}
