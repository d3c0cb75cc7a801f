package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySnapshots_RoundTrip(t *testing.T) {
	store := NewMemorySnapshots()
	ctx := context.Background()

	_, err := store.Load(ctx, "saf-ticket-storage")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	payload := []byte(`[{"id":"t1"}]`)
	require.NoError(t, store.Save(ctx, "saf-ticket-storage", payload))
	payload[0] = 'x'

	got, err := store.Load(ctx, "saf-ticket-storage")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"t1"}]`, string(got))
}

func TestRedis_LoadMissingKey(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := &Redis{Client: db}

	mock.ExpectGet("saf-audit-storage").RedisNil()

	_, err := store.Load(context.Background(), "saf-audit-storage")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_SaveAndLoad(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := &Redis{Client: db}
	ctx := context.Background()
	payload := []byte(`[{"id":"n1","is_read":false}]`)

	mock.ExpectSet("saf-coordinator-notifications", payload, 0).SetVal("OK")
	mock.ExpectGet("saf-coordinator-notifications").SetVal(string(payload))

	require.NoError(t, store.Save(ctx, "saf-coordinator-notifications", payload))
	got, err := store.Load(ctx, "saf-coordinator-notifications")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_SaveError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := &Redis{Client: db}
	payload := []byte(`[]`)

	mock.ExpectSet("saf-ticket-storage", payload, 0).SetErr(errors.New("connection refused"))

	err := store.Save(context.Background(), "saf-ticket-storage", payload)
	assert.EqualError(t, err, "connection refused")
}

func TestNilBackendsReportNotConfigured(t *testing.T) {
	var r *Redis
	var p *Postgres
	ctx := context.Background()

	assert.Error(t, r.Ping(ctx))
	assert.Error(t, p.Ping(ctx))
	_, err := p.Load(ctx, "k")
	assert.Error(t, err)
}
