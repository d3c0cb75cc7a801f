package repository

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/persistence"
)

// AuditFilter captures audit panel filters.
type AuditFilter struct {
	ActionType *domain.AuditActionType
	Status     *domain.AuditStatus
	TargetID   *string
	Since      *time.Time
	SearchTerm *string
}

// AuditRepository stores audit entries.
type AuditRepository interface {
	Load(ctx context.Context) error
	Create(ctx context.Context, record *domain.AuditRecord) error
	// UpdateIf applies mutate atomically. A non-nil error from mutate
	// leaves the stored record untouched and is returned as is.
	UpdateIf(ctx context.Context, id string, mutate func(*domain.AuditRecord) error) (*domain.AuditRecord, error)
	GetByID(ctx context.Context, id string) (*domain.AuditRecord, error)
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditRecord, error)
}

type auditRepository struct {
	items *collection[domain.AuditRecord]
}

// NewAuditRepository builds repository.
func NewAuditRepository(snapshots persistence.SnapshotStore, logger *zap.Logger) AuditRepository {
	return &auditRepository{
		items: newCollection[domain.AuditRecord](AuditKey, snapshots, logger,
			func(a *domain.AuditRecord) string { return a.ID }, nil),
	}
}

func (r *auditRepository) Load(ctx context.Context) error {
	return r.items.load(ctx)
}

func (r *auditRepository) Create(ctx context.Context, record *domain.AuditRecord) error {
	return r.items.insert(ctx, *record)
}

func (r *auditRepository) UpdateIf(ctx context.Context, id string, mutate func(*domain.AuditRecord) error) (*domain.AuditRecord, error) {
	record, err := r.items.updateIf(ctx, id, mutate)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *auditRepository) GetByID(_ context.Context, id string) (*domain.AuditRecord, error) {
	record, err := r.items.get(id)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns matching records newest first, the order the audit panel shows.
func (r *auditRepository) List(_ context.Context, filter AuditFilter) ([]domain.AuditRecord, error) {
	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	matched := r.items.filter(func(a *domain.AuditRecord) bool {
		if filter.ActionType != nil && a.ActionType != *filter.ActionType {
			return false
		}
		if filter.Status != nil && a.Status != *filter.Status {
			return false
		}
		if filter.TargetID != nil && a.TargetID != *filter.TargetID {
			return false
		}
		if filter.Since != nil && a.Timestamp.Before(*filter.Since) {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Description), search) &&
			!strings.Contains(strings.ToLower(a.Actor.Name), search) &&
			!strings.Contains(strings.ToLower(a.TargetEntity), search) {
			return false
		}
		return true
	})
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched, nil
}
