package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/persistence"
)

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	Type          *domain.NotificationType
	TicketID      *string
	AuditRecordID *string
	Role          *domain.Role
	UnreadOnly    bool
}

func (f NotificationFilter) matches(n *domain.Notification) bool {
	if f.UnreadOnly && n.IsRead {
		return false
	}
	if f.Type != nil && n.Type != *f.Type {
		return false
	}
	if f.TicketID != nil && (n.TicketID == nil || *n.TicketID != *f.TicketID) {
		return false
	}
	if f.AuditRecordID != nil && (n.AuditRecordID == nil || *n.AuditRecordID != *f.AuditRecordID) {
		return false
	}
	if f.Role != nil && !n.VisibleTo(*f.Role) {
		return false
	}
	return true
}

// NotificationRepository stores coordinator notifications.
type NotificationRepository interface {
	Load(ctx context.Context) error
	Create(ctx context.Context, notification *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, filter NotificationFilter) ([]domain.Notification, error)
	Count(ctx context.Context, filter NotificationFilter) (int, error)
	MarkRead(ctx context.Context, id string) error
	// MarkReadWhere marks every unread notification matching any of the
	// filters as read and returns how many changed.
	MarkReadWhere(ctx context.Context, filters ...NotificationFilter) (int, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type notificationRepository struct {
	items *collection[domain.Notification]
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(snapshots persistence.SnapshotStore, logger *zap.Logger) NotificationRepository {
	return &notificationRepository{
		items: newCollection(NotificationsKey, snapshots, logger,
			func(n *domain.Notification) string { return n.ID },
			cloneNotification),
	}
}

func cloneNotification(n domain.Notification) domain.Notification {
	out := n
	if n.TargetRoles != nil {
		out.TargetRoles = append([]domain.Role(nil), n.TargetRoles...)
	}
	if n.TicketID != nil {
		id := *n.TicketID
		out.TicketID = &id
	}
	if n.AuditRecordID != nil {
		id := *n.AuditRecordID
		out.AuditRecordID = &id
	}
	return out
}

func (r *notificationRepository) Load(ctx context.Context) error {
	return r.items.load(ctx)
}

func (r *notificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	return r.items.insert(ctx, *notification)
}

func (r *notificationRepository) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	notification, err := r.items.get(id)
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *notificationRepository) List(_ context.Context, filter NotificationFilter) ([]domain.Notification, error) {
	return r.items.filter(filter.matches), nil
}

func (r *notificationRepository) Count(_ context.Context, filter NotificationFilter) (int, error) {
	return r.items.count(filter.matches), nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string) error {
	if _, err := r.items.get(id); err != nil {
		return err
	}
	r.items.updateWhere(ctx, func(n *domain.Notification) bool {
		if n.ID != id || n.IsRead {
			return false
		}
		n.IsRead = true
		return true
	})
	return nil
}

func (r *notificationRepository) MarkReadWhere(ctx context.Context, filters ...NotificationFilter) (int, error) {
	if len(filters) == 0 {
		return 0, nil
	}
	changed := r.items.updateWhere(ctx, func(n *domain.Notification) bool {
		if n.IsRead {
			return false
		}
		for _, f := range filters {
			if f.matches(n) {
				n.IsRead = true
				return true
			}
		}
		return false
	})
	return changed, nil
}

func (r *notificationRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return r.items.removeWhere(ctx, func(n *domain.Notification) bool {
		return !n.CreatedAt.After(cutoff)
	}), nil
}
