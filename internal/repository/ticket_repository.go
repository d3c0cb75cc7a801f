package repository

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/persistence"
)

// TicketFilter captures ticket list parameters.
type TicketFilter struct {
	Statuses      []domain.TicketStatus
	AgentID       *string
	AgentName     *string
	TicketNumber  *string
	NeedsApproval *bool
	SearchTerm    *string
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Load(ctx context.Context) error
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	items *collection[domain.Ticket]
}

// NewTicketRepository instantiates an in-memory repository persisted through snapshots.
func NewTicketRepository(snapshots persistence.SnapshotStore, logger *zap.Logger) TicketRepository {
	return &ticketRepository{
		items: newCollection(TicketsKey, snapshots, logger,
			func(t *domain.Ticket) string { return t.ID },
			domain.Ticket.Clone),
	}
}

func (r *ticketRepository) Load(ctx context.Context) error {
	return r.items.load(ctx)
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.items.insert(ctx, *ticket)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	return r.items.replace(ctx, *ticket)
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	return r.items.remove(ctx, id)
}

func (r *ticketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, err := r.items.get(id)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	return r.items.filter(func(t *domain.Ticket) bool {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			return false
		}
		if filter.AgentID != nil && t.Agent.ID != *filter.AgentID {
			return false
		}
		if filter.AgentName != nil && !strings.EqualFold(t.Agent.Name, *filter.AgentName) {
			return false
		}
		if filter.TicketNumber != nil && t.TicketNumber != *filter.TicketNumber {
			return false
		}
		if filter.NeedsApproval != nil && t.NeedsApproval != *filter.NeedsApproval {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Description), search) &&
			!strings.Contains(strings.ToLower(t.TicketNumber), search) &&
			!strings.Contains(strings.ToLower(t.Agent.Name), search) {
			return false
		}
		return true
	}), nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}
