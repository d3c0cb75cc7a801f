package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/persistence"
)

type failingSnapshots struct {
	saves int
}

func (f *failingSnapshots) Load(context.Context, string) ([]byte, error) {
	return nil, persistence.ErrSnapshotNotFound
}

func (f *failingSnapshots) Save(context.Context, string, []byte) error {
	f.saves++
	return errors.New("quota exceeded")
}

func (f *failingSnapshots) Ping(context.Context) error { return nil }

func sampleTicket(id, number string, created time.Time) domain.Ticket {
	due := created.Add(72 * time.Hour)
	return domain.Ticket{
		ID:           id,
		TicketNumber: number,
		Status:       domain.TicketStatusPending,
		Agent:        domain.Agent{ID: "a1", Name: "Ana Souza", ShortName: "Ana"},
		Description:  "Escola sem acesso ao portal",
		Tags:         []string{"acesso"},
		PendingSince: created,
		DueDate:      &due,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestTicketRepository_JSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	snapshots := persistence.NewMemorySnapshots()
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	repo := NewTicketRepository(snapshots, nil)
	first := sampleTicket("t1", "1001", created)
	second := sampleTicket("t2", "1002", created.Add(time.Hour))
	evalID := "e1"
	second.EvaluationID = &evalID
	second.NeedsApproval = true
	require.NoError(t, repo.Create(ctx, &first))
	require.NoError(t, repo.Create(ctx, &second))

	want, err := repo.ListWithFilter(ctx, TicketFilter{})
	require.NoError(t, err)

	reloaded := NewTicketRepository(snapshots, nil)
	require.NoError(t, reloaded.Load(ctx))
	got, err := reloaded.ListWithFilter(ctx, TicketFilter{})
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestTicketRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketRepository(persistence.NewMemorySnapshots(), nil)
	ticket := sampleTicket("t1", "1001", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, &ticket))

	fetched, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	fetched.Tags[0] = "mutated"
	fetched.Status = domain.TicketStatusResolved

	again, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "acesso", again.Tags[0])
	assert.Equal(t, domain.TicketStatusPending, again.Status)
}

func TestTicketRepository_Errors(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketRepository(persistence.NewMemorySnapshots(), nil)
	ticket := sampleTicket("t1", "1001", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, &ticket))

	assert.ErrorIs(t, repo.Create(ctx, &ticket), ErrDuplicateID)

	missing := sampleTicket("nope", "1", time.Now().UTC())
	assert.ErrorIs(t, repo.Update(ctx, &missing), ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "nope"), ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "t1"))
	_, err := repo.GetByID(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketRepository_Filter(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketRepository(persistence.NewMemorySnapshots(), nil)
	now := time.Now().UTC()

	a := sampleTicket("t1", "1001", now)
	b := sampleTicket("t2", "1001", now)
	b.Status = domain.TicketStatusInProgress
	b.Agent = domain.Agent{ID: "a2", Name: "Bruno Lima"}
	b.Description = "Voucher de exceção"
	for _, ticket := range []domain.Ticket{a, b} {
		ticket := ticket
		require.NoError(t, repo.Create(ctx, &ticket))
	}

	number := "1001"
	byNumber, err := repo.ListWithFilter(ctx, TicketFilter{TicketNumber: &number})
	require.NoError(t, err)
	assert.Len(t, byNumber, 2)

	inProgress, err := repo.ListWithFilter(ctx, TicketFilter{Statuses: []domain.TicketStatus{domain.TicketStatusInProgress}})
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, "t2", inProgress[0].ID)

	search := "VOUCHER"
	bySearch, err := repo.ListWithFilter(ctx, TicketFilter{SearchTerm: &search})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, "t2", bySearch[0].ID)

	agent := "a1"
	byAgent, err := repo.ListWithFilter(ctx, TicketFilter{AgentID: &agent})
	require.NoError(t, err)
	require.Len(t, byAgent, 1)
	assert.Equal(t, "t1", byAgent[0].ID)
}

func TestCollection_SaveFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	snapshots := &failingSnapshots{}
	repo := NewTicketRepository(snapshots, nil)
	ticket := sampleTicket("t1", "1001", time.Now().UTC())

	require.NoError(t, repo.Create(ctx, &ticket))
	_, err := repo.GetByID(ctx, "t1")
	assert.NoError(t, err)
	assert.Equal(t, 1, snapshots.saves)
}

func TestNotificationRepository_MarkReadAndSweep(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepository(persistence.NewMemorySnapshots(), nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticketID := "t1"

	old := domain.Notification{ID: "n1", Type: domain.NotificationOverdue, Message: "old", TicketID: &ticketID,
		TargetRoles: []domain.Role{domain.RoleCoordinator}, CreatedAt: now.AddDate(0, 0, -30)}
	fresh := domain.Notification{ID: "n2", Type: domain.NotificationApprovalNeeded, Message: "fresh", TicketID: &ticketID,
		TargetRoles: []domain.Role{domain.RoleCoordinator}, CreatedAt: now.AddDate(0, 0, -29)}
	require.NoError(t, repo.Create(ctx, &old))
	require.NoError(t, repo.Create(ctx, &fresh))

	require.NoError(t, repo.MarkRead(ctx, "n1"))
	require.NoError(t, repo.MarkRead(ctx, "n1"))
	assert.ErrorIs(t, repo.MarkRead(ctx, "missing"), ErrNotFound)

	unread, err := repo.Count(ctx, NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	agent := domain.RoleAgent
	visible, err := repo.List(ctx, NotificationFilter{Role: &agent})
	require.NoError(t, err)
	assert.Empty(t, visible)

	kind := domain.NotificationApprovalNeeded
	changed, err := repo.MarkReadWhere(ctx, NotificationFilter{Type: &kind, TicketID: &ticketID})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	removed, err := repo.DeleteCreatedBefore(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	left, err := repo.List(ctx, NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "n2", left[0].ID)
}

func TestAuditRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditRepository(persistence.NewMemorySnapshots(), nil)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a1", "a2", "a3"} {
		record := domain.AuditRecord{
			ID:         id,
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			ActionType: domain.AuditActionSystem,
			Action:     "sweep",
			Status:     domain.AuditStatusApproved,
			Details:    domain.AuditDetails{System: &domain.SystemChange{Info: id}},
		}
		require.NoError(t, repo.Create(ctx, &record))
	}

	records, err := repo.List(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"a3", "a2", "a1"}, []string{records[0].ID, records[1].ID, records[2].ID})

	since := base.Add(time.Minute)
	recent, err := repo.List(ctx, AuditFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestAuditRepository_UpdateIf(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditRepository(persistence.NewMemorySnapshots(), nil)
	record := domain.AuditRecord{
		ID:         "a1",
		ActionType: domain.AuditActionSystem,
		Action:     "sweep",
		Status:     domain.AuditStatusPending,
		Details:    domain.AuditDetails{System: &domain.SystemChange{Info: "x"}},
	}
	require.NoError(t, repo.Create(ctx, &record))

	refused := errors.New("already decided")
	settle := func(a *domain.AuditRecord) error {
		if a.Status != domain.AuditStatusPending {
			return refused
		}
		a.Status = domain.AuditStatusApproved
		return nil
	}

	updated, err := repo.UpdateIf(ctx, "a1", settle)
	require.NoError(t, err)
	assert.Equal(t, domain.AuditStatusApproved, updated.Status)

	_, err = repo.UpdateIf(ctx, "a1", func(a *domain.AuditRecord) error {
		a.Action = "changed"
		return settle(a)
	})
	assert.ErrorIs(t, err, refused)

	stored, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "sweep", stored.Action)
	assert.Equal(t, domain.AuditStatusApproved, stored.Status)

	_, err = repo.UpdateIf(ctx, "missing", settle)
	assert.ErrorIs(t, err, ErrNotFound)
}
