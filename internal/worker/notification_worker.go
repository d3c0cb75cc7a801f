package worker

import (
	"github.com/maplebear/saf-portal/internal/events"
	"github.com/maplebear/saf-portal/internal/service"
)

// Sink consumes domain events from the dispatcher.
type Sink interface {
	Register(dispatcher events.Dispatcher)
}

// StartNotificationWorker registers the notification triggers and every
// outbound sink (metrics, Kafka, PubNub) on dispatcher. Nil sinks are skipped.
func StartNotificationWorker(dispatcher events.Dispatcher, notifications *service.NotificationService, sinks ...Sink) {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if dispatcher == nil {
		return
	}
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		sink.Register(dispatcher)
	}
}
