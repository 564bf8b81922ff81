package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/service"
)

// AnalyticsHandler exposes dashboard and reporting endpoints. Every
// windowed endpoint accepts ?window=7d|30d|90d|1y, defaulting to 30d.
type AnalyticsHandler struct {
	analytics  *service.AnalyticsService
	assignment *service.AssignmentService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService, assignment *service.AssignmentService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, assignment: assignment}
}

// Dashboard handles GET /dashboard/stats.
func (h *AnalyticsHandler) Dashboard(c *fiber.Ctx) error {
	stats, err := h.analytics.Dashboard(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Charts handles GET /dashboard/charts.
func (h *AnalyticsHandler) Charts(c *fiber.Ctx) error {
	data, err := h.analytics.Charts(c.Context(), c.Query("window"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": data})
}

// Workload handles GET /dashboard/workload.
func (h *AnalyticsHandler) Workload(c *fiber.Ctx) error {
	rows, err := h.assignment.Workload(c.Context(), parseInt(c.Query("limit"), 20))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rows})
}

// Performance handles GET /analytics/performance.
func (h *AnalyticsHandler) Performance(c *fiber.Ctx) error {
	report, err := h.analytics.Performance(c.Context(), c.Query("window"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// ResolutionRate handles GET /analytics/resolution-rate.
func (h *AnalyticsHandler) ResolutionRate(c *fiber.Ctx) error {
	report, err := h.analytics.ResolutionRate(c.Context(), c.Query("window"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// SLACompliance handles GET /analytics/sla-compliance.
func (h *AnalyticsHandler) SLACompliance(c *fiber.Ctx) error {
	report, err := h.analytics.SLACompliance(c.Context(), c.Query("window"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// SLAAttention handles GET /analytics/sla-attention.
func (h *AnalyticsHandler) SLAAttention(c *fiber.Ctx) error {
	items, err := h.analytics.SLAAttention(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

// SLASettings handles GET /analytics/sla-settings.
func (h *AnalyticsHandler) SLASettings(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.analytics.SLASettings()})
}

// TeamPerformance handles GET /analytics/team-performance.
func (h *AnalyticsHandler) TeamPerformance(c *fiber.Ctx) error {
	report, err := h.analytics.TeamPerformance(c.Context(), c.Query("window"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}
