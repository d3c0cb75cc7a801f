package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maplebear/saf-portal/internal/domain"
)

const usersYAML = `
users:
  - id: u1
    name: Ana Costa
    email: ana@maplebear.com.br
    username: ana
    password_hash: "$2a$10$abcdefghijklmnopqrstuu"
    role: COORDINATOR
  - id: u2
    name: João Silva
    username: Joao
    role: AGENT
    agent_id: a2
`

func TestParseUsersAndLookup(t *testing.T) {
	users, err := ParseUsers([]byte(usersYAML))
	require.NoError(t, err)
	require.Len(t, users, 2)

	repo, err := NewUserRepository(users)
	require.NoError(t, err)
	ctx := context.Background()

	user, err := repo.GetByUsername(ctx, "joao")
	require.NoError(t, err)
	assert.Equal(t, "u2", user.ID)
	assert.Equal(t, domain.RoleAgent, user.Role)
	assert.Equal(t, "a2", user.AgentID)

	coordinator, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, coordinator.Actor().IsCoordinator())

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", all[0].ID)
}

func TestNewUserRepository_RejectsBadEntries(t *testing.T) {
	_, err := NewUserRepository([]domain.User{{ID: "u1", Username: "x", Role: "ROOT"}})
	assert.ErrorContains(t, err, "unknown role")

	_, err = NewUserRepository([]domain.User{
		{ID: "u1", Username: "x", Role: domain.RoleAgent},
		{ID: "u2", Username: "X", Role: domain.RoleAgent},
	})
	assert.ErrorContains(t, err, "used twice")
}
