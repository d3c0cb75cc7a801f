package repository

import (
	"context"

	"go.uber.org/zap"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/persistence"
)

// EvaluationFilter narrows evaluation listings.
type EvaluationFilter struct {
	TicketID      *string
	EvaluatorName *string
}

// EvaluationRepository stores coordinator evaluations.
type EvaluationRepository interface {
	Load(ctx context.Context) error
	Create(ctx context.Context, evaluation *domain.Evaluation) error
	Update(ctx context.Context, evaluation *domain.Evaluation) error
	GetByID(ctx context.Context, id string) (*domain.Evaluation, error)
	List(ctx context.Context, filter EvaluationFilter) ([]domain.Evaluation, error)
}

type evaluationRepository struct {
	items *collection[domain.Evaluation]
}

// NewEvaluationRepository builds repository.
func NewEvaluationRepository(snapshots persistence.SnapshotStore, logger *zap.Logger) EvaluationRepository {
	return &evaluationRepository{
		items: newCollection[domain.Evaluation](EvaluationsKey, snapshots, logger,
			func(e *domain.Evaluation) string { return e.ID }, nil),
	}
}

func (r *evaluationRepository) Load(ctx context.Context) error {
	return r.items.load(ctx)
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *domain.Evaluation) error {
	return r.items.insert(ctx, *evaluation)
}

func (r *evaluationRepository) Update(ctx context.Context, evaluation *domain.Evaluation) error {
	return r.items.replace(ctx, *evaluation)
}

func (r *evaluationRepository) GetByID(_ context.Context, id string) (*domain.Evaluation, error) {
	evaluation, err := r.items.get(id)
	if err != nil {
		return nil, err
	}
	return &evaluation, nil
}

func (r *evaluationRepository) List(_ context.Context, filter EvaluationFilter) ([]domain.Evaluation, error) {
	return r.items.filter(func(e *domain.Evaluation) bool {
		if filter.TicketID != nil && e.TicketID != *filter.TicketID {
			return false
		}
		if filter.EvaluatorName != nil && e.EvaluatorName != *filter.EvaluatorName {
			return false
		}
		return true
	}), nil
}
