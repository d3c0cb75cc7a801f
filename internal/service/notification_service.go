package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/events"
)

// NotificationService turns domain events into coordinator notifications.
type NotificationService struct {
	dispatcher  events.Dispatcher
	coordinator *CoordinatorService
	logger      *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, coordinator *CoordinatorService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:  dispatcher,
		coordinator: coordinator,
		logger:      logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAuditRecorded, n.handleAuditRecorded)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
}

func (n *NotificationService) handleAuditRecorded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AuditRecordedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	record := payload.Record
	if record.Status != domain.AuditStatusPending {
		return nil
	}
	input := NotificationInput{
		Type:          domain.NotificationApprovalNeeded,
		Message:       fmt.Sprintf("%s precisa de aprovação: %s", record.TargetEntity, record.Action),
		AuditRecordID: stringPtr(record.ID),
	}
	if id := ticketIDOf(&record); id != "" {
		input.TicketID = stringPtr(id)
	}
	_, err := n.coordinator.CreateNotification(ctx, input)
	return err
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	switch payload.NewStatus {
	case domain.TicketStatusResolved:
		if payload.NeedsApproval {
			return nil
		}
		_, err := n.coordinator.CreateNotification(ctx, NotificationInput{
			Type:     domain.NotificationEvaluationRequest,
			Message:  fmt.Sprintf("Ticket #%s de %s foi resolvido e aguarda avaliação", payload.TicketNumber, payload.AgentName),
			TicketID: stringPtr(event.TicketID),
		})
		return err
	case domain.TicketStatusApproved, domain.TicketStatusRejected:
		ticketID := event.TicketID
		if payload.AuditRecordID != "" {
			ticketID = ""
		}
		changed, err := n.coordinator.MarkRelatedRead(ctx, ticketID, payload.AuditRecordID, domain.NotificationApprovalNeeded)
		if err != nil {
			return err
		}
		n.logger.Debug("approval notifications cleared", zap.String("ticket_id", event.TicketID), zap.Int("count", changed))
	}
	return nil
}
