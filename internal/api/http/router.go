package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/maplebear/saf-portal/internal/api/http/handlers"
	"github.com/maplebear/saf-portal/internal/auth"
	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Notifications  *handlers.NotificationsHandler
	Coordinator    *handlers.CoordinatorHandler
	Audit          *handlers.AuditHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}

	app.Post("/auth/login", cfg.Auth.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAgent))
	api.Get("/me", cfg.Auth.Me)

	tickets := api.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/critical", cfg.Tickets.CriticalTickets)
	tickets.Get("/overdue", cfg.Tickets.OverdueTickets)
	tickets.Get("/summary", cfg.Tickets.Summary)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/move", cfg.Tickets.MoveTicket)
	tickets.Post("/:id/approval", cfg.Tickets.RequestApproval)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)

	api.Get("/notifications", cfg.Notifications.ListNotifications)
	api.Post("/notifications/:id/read", cfg.Notifications.MarkRead)

	audit := api.Group("/audit")
	audit.Get("/", cfg.Audit.ListRecords)
	audit.Get("/stats", cfg.Audit.Stats)
	audit.Post("/", cfg.Audit.CreateRecord)
	audit.Get("/:id", cfg.Audit.GetRecord)

	coordinatorOnly := auth.RequireRole(domain.RoleCoordinator)
	audit.Post("/:id/approve", coordinatorOnly, cfg.Audit.Approve)
	audit.Post("/:id/reject", coordinatorOnly, cfg.Audit.Reject)

	coordinator := api.Group("/coordinator", coordinatorOnly)
	coordinator.Post("/notifications", cfg.Coordinator.CreateNotification)
	coordinator.Delete("/notifications/old", cfg.Coordinator.ClearOldNotifications)
	coordinator.Post("/evaluations", cfg.Coordinator.CreateEvaluation)
	coordinator.Get("/evaluations", cfg.Coordinator.ListEvaluations)
	coordinator.Patch("/evaluations/:id", cfg.Coordinator.UpdateEvaluation)
	coordinator.Get("/metrics", cfg.Coordinator.Metrics)
	coordinator.Get("/dashboard", cfg.Coordinator.Dashboard)
}
