package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maplebear/saf-portal/internal/config"
	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/events"
	"github.com/maplebear/saf-portal/internal/sla"
	apperrors "github.com/maplebear/saf-portal/pkg/util/errorutil"
)

func TestNewLogger_FallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "chatty"}, config.AppConfig{Name: "saf-portal"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestMetrics_DashboardGauges(t *testing.T) {
	m := NewMetrics()
	m.SetTicketTiers(map[sla.Tier]int{sla.TierCritical: 3})
	m.SetOverdue(2)
	m.SetUnreadNotifications(5)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.ticketsByTier.WithLabelValues("CRITICAL")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ticketsByTier.WithLabelValues("NORMAL")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ticketsOverdue))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.unreadNotices))
}

func TestMetrics_CountsAuditDecisions(t *testing.T) {
	m := NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(nil)
	m.Register(dispatcher)

	record := domain.AuditRecord{ID: "a1", ActionType: domain.AuditActionTicket}
	for _, approved := range []bool{true, true, false} {
		event := events.NewEvent(events.EventAuditDecided, "t1", domain.SystemActor, time.Now(),
			events.AuditDecidedPayload{Record: record, Approved: approved})
		require.NoError(t, dispatcher.Publish(context.Background(), event))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.auditDecisions.WithLabelValues("ticket", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditDecisions.WithLabelValues("ticket", "rejected")))
}

func TestRequestLoggerAndHandler(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/metrics", m.Handler())
	app.Get("/tickets/:id", func(c *fiber.Ctx) error {
		if c.Params("id") == "missing" {
			return apperrors.NewNotFound("ticket", nil)
		}
		return c.SendStatus(http.StatusOK)
	})

	for _, id := range []string{"t1", "missing"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/tickets/"+id, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/tickets/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/tickets/:id", "404")))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "saf_http_requests_total")
}
