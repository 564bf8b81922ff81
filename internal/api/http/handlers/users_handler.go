package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// UsersHandler exposes the user directory and registration approvals.
type UsersHandler struct {
	auth       *service.AuthService
	assignment *service.AssignmentService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, assignment *service.AssignmentService) *UsersHandler {
	return &UsersHandler{auth: authService, assignment: assignment}
}

// List handles GET /users (admin).
func (h *UsersHandler) List(c *fiber.Ctx) error {
	var roles []domain.Role
	if roleStr := c.Query("role"); roleStr != "" {
		for _, part := range strings.Split(roleStr, ",") {
			roles = append(roles, domain.Role(strings.TrimSpace(part)))
		}
	}
	var active *bool
	if activeStr := c.Query("active"); activeStr != "" {
		val := activeStr == "true"
		active = &val
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)

	users, err := h.auth.ListUsers(c.Context(), roles, active, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, userResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get handles GET /users/:id (admin).
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.auth.GetUser(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// SetActive handles PATCH /users/:id/active (admin).
func (h *UsersHandler) SetActive(c *fiber.Ctx) error {
	var req struct {
		Active bool `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.auth.SetActive(c.Context(), c.Params("id"), req.Active)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// TeamMembers handles GET /users/team (staff). Members are ordered by
// spare capacity so the least-loaded candidate comes first.
func (h *UsersHandler) TeamMembers(c *fiber.Ctx) error {
	members, err := h.assignment.TeamMembers(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": members})
}

// SuggestAssignee handles GET /users/team/suggest (staff).
func (h *UsersHandler) SuggestAssignee(c *fiber.Ctx) error {
	member, err := h.assignment.Suggest(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": member})
}

// ListRegistrations handles GET /users/registrations (admin).
func (h *UsersHandler) ListRegistrations(c *fiber.Ctx) error {
	var status *domain.RegistrationStatus
	if statusStr := c.Query("status"); statusStr != "" {
		val := domain.RegistrationStatus(statusStr)
		status = &val
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)

	requests, err := h.auth.ListRegistrations(c.Context(), status, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.RegistrationRequestResponse, 0, len(requests))
	for i := range requests {
		items = append(items, registrationResponse(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ApproveRegistration handles POST /users/registrations/:id/approve (admin).
func (h *UsersHandler) ApproveRegistration(c *fiber.Ctx) error {
	approver, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	user, err := h.auth.ApproveRegistration(c.Context(), approver, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// RejectRegistration handles POST /users/registrations/:id/reject (admin).
func (h *UsersHandler) RejectRegistration(c *fiber.Ctx) error {
	approver, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RejectRegistrationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	request, err := h.auth.RejectRegistration(c.Context(), approver, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": registrationResponse(request)})
}
