package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/http/handlers"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Incidents      *handlers.IncidentsHandler
	Analytics      *handlers.AnalyticsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	authProtected.Get("/profile", cfg.Auth.Profile)
	authProtected.Put("/profile", cfg.Auth.UpdateProfile)
	authProtected.Post("/password/change", cfg.Auth.ChangePassword)

	incidents := app.Group("/incidents", cfg.AuthMiddleware.Handle)
	incidents.Post("", cfg.Incidents.Create)
	incidents.Get("", cfg.Incidents.List)
	incidents.Get("/:ref", cfg.Incidents.Get)
	incidents.Patch("/:ref", auth.RequireStaff(), cfg.Incidents.Update)
	incidents.Delete("/:ref", auth.RequireAdmin(), cfg.Incidents.Delete)
	incidents.Post("/:ref/assign", auth.RequireStaff(), cfg.Incidents.Assign)
	incidents.Post("/:ref/resolve", auth.RequireStaff(), cfg.Incidents.Resolve)
	incidents.Post("/:ref/reopen", cfg.Incidents.Reopen)
	incidents.Post("/:ref/escalate", auth.RequireStaff(), cfg.Incidents.Escalate)
	incidents.Post("/:ref/comments", cfg.Incidents.AddComment)
	incidents.Get("/:ref/comments", cfg.Incidents.ListComments)
	incidents.Post("/:ref/attachments", cfg.Incidents.AddAttachments)
	incidents.Post("/:ref/knowledge-links", auth.RequireStaff(), cfg.Incidents.AddKnowledgeLink)

	users := app.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/team", auth.RequireStaff(), cfg.Users.TeamMembers)
	users.Get("/team/suggest", auth.RequireStaff(), cfg.Users.SuggestAssignee)
	approvers := auth.RequireRole(domain.RoleTeamLead, domain.RoleAdmin)
	users.Get("/registrations", approvers, cfg.Users.ListRegistrations)
	users.Post("/registrations/:id/approve", approvers, cfg.Users.ApproveRegistration)
	users.Post("/registrations/:id/reject", approvers, cfg.Users.RejectRegistration)
	users.Get("", auth.RequireAdmin(), cfg.Users.List)
	users.Get("/:id", auth.RequireAdmin(), cfg.Users.Get)
	users.Patch("/:id/active", auth.RequireAdmin(), cfg.Users.SetActive)

	dashboard := app.Group("/dashboard", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	dashboard.Get("/stats", cfg.Analytics.Dashboard)
	dashboard.Get("/charts", cfg.Analytics.Charts)
	dashboard.Get("/workload", cfg.Analytics.Workload)

	analytics := app.Group("/analytics", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	analytics.Get("/performance", cfg.Analytics.Performance)
	analytics.Get("/resolution-rate", cfg.Analytics.ResolutionRate)
	analytics.Get("/sla-compliance", cfg.Analytics.SLACompliance)
	analytics.Get("/sla-attention", cfg.Analytics.SLAAttention)
	analytics.Get("/sla-settings", cfg.Analytics.SLASettings)
	analytics.Get("/team-performance", cfg.Analytics.TeamPerformance)
}
