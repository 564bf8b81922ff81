package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// IncidentsHandler manages incident endpoints. The :ref parameter
// accepts either the UUID or the INC-XXXXXX reference.
type IncidentsHandler struct {
	service *service.IncidentService
}

// NewIncidentsHandler constructs handler.
func NewIncidentsHandler(incidentService *service.IncidentService) *IncidentsHandler {
	return &IncidentsHandler{service: incidentService}
}

// Create handles POST /incidents.
func (h *IncidentsHandler) Create(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateIncidentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	incident, err := h.service.Create(c.Context(), user.ID, service.IncidentCreateInput{
		Title:            req.Title,
		Description:      req.Description,
		Severity:         req.Severity,
		Category:         req.Category,
		Subcategory:      req.Subcategory,
		Urgency:          req.Urgency,
		Impact:           req.Impact,
		AffectedServices: req.AffectedServices,
		StepsToReproduce: req.StepsToReproduce,
		ExpectedBehavior: req.ExpectedBehavior,
		ActualBehavior:   req.ActualBehavior,
		Tags:             req.Tags,
		Attachments:      attachmentInputs(req.Attachments),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": incidentSummary(incident)})
}

// List handles GET /incidents.
func (h *IncidentsHandler) List(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	filter := parseIncidentQuery(c)
	incidents, total, err := h.service.List(c.Context(), user, filter)
	if err != nil {
		return err
	}
	items := make([]dto.IncidentSummary, 0, len(incidents))
	for i := range incidents {
		items = append(items, incidentSummary(&incidents[i]))
	}
	return c.JSON(fiber.Map{"data": dto.PagedIncidents{Items: items, Total: total}})
}

// Get handles GET /incidents/:ref.
func (h *IncidentsHandler) Get(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	detail, err := h.service.Get(c.Context(), user, c.Params("ref"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentDetail(detail)})
}

// Update handles PATCH /incidents/:ref. The body is a free-form object;
// only allow-listed fields are applied.
func (h *IncidentsHandler) Update(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	fields := map[string]any{}
	if err := c.BodyParser(&fields); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	incident, err := h.service.UpdateFields(c.Context(), user, c.Params("ref"), fields)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentSummary(incident)})
}

// Delete handles DELETE /incidents/:ref (admin).
func (h *IncidentsHandler) Delete(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.Delete(c.Context(), user, c.Params("ref")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Assign handles POST /incidents/:ref/assign (staff).
func (h *IncidentsHandler) Assign(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID == "" {
		return apperrors.NewValidationError("assignee_id required", nil)
	}
	incident, err := h.service.Assign(c.Context(), user, c.Params("ref"), req.AssigneeID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentSummary(incident)})
}

// Resolve handles POST /incidents/:ref/resolve (staff).
func (h *IncidentsHandler) Resolve(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	incident, err := h.service.Resolve(c.Context(), user, c.Params("ref"), service.ResolveInput{
		Notes:              req.Notes,
		RootCause:          req.RootCause,
		PreventiveMeasures: req.PreventiveMeasures,
		Category:           req.Category,
		TimeSpentHours:     req.TimeSpentHours,
		SatisfactionRating: req.SatisfactionRating,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentSummary(incident)})
}

// Reopen handles POST /incidents/:ref/reopen.
func (h *IncidentsHandler) Reopen(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ReopenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	incident, err := h.service.Reopen(c.Context(), user, c.Params("ref"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentSummary(incident)})
}

// Escalate handles POST /incidents/:ref/escalate (staff).
func (h *IncidentsHandler) Escalate(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.EscalateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.EscalateTo == "" {
		return apperrors.NewValidationError("escalate_to required", nil)
	}
	incident, err := h.service.Escalate(c.Context(), user, c.Params("ref"), req.EscalateTo, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentSummary(incident)})
}

// AddComment handles POST /incidents/:ref/comments.
func (h *IncidentsHandler) AddComment(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.service.AddComment(c.Context(), user, c.Params("ref"), req.Text, req.IsInternal, attachmentInputs(req.Attachments))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// ListComments handles GET /incidents/:ref/comments.
func (h *IncidentsHandler) ListComments(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	comments, err := h.service.ListComments(c.Context(), user, c.Params("ref"))
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddAttachments handles POST /incidents/:ref/attachments.
func (h *IncidentsHandler) AddAttachments(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req struct {
		Attachments []dto.AttachmentRequest `json:"attachments"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.Attachments) == 0 {
		return apperrors.NewValidationError("attachments required", nil)
	}
	attachments, err := h.service.AddAttachments(c.Context(), user, c.Params("ref"), attachmentInputs(req.Attachments))
	if err != nil {
		return err
	}
	items := make([]dto.AttachmentResponse, 0, len(attachments))
	for i := range attachments {
		items = append(items, attachmentResponse(&attachments[i]))
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": items})
}

// AddKnowledgeLink handles POST /incidents/:ref/knowledge-links (staff).
func (h *IncidentsHandler) AddKnowledgeLink(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.KnowledgeLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	incident, err := h.service.AddKnowledgeLink(c.Context(), user, c.Params("ref"), req.Title, req.URL)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"knowledge_links": incident.KnowledgeLinks}})
}

func parseIncidentQuery(c *fiber.Ctx) service.IncidentListFilter {
	filter := service.IncidentListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.Status(strings.TrimSpace(part)))
		}
	}
	if severityStr := c.Query("severity"); severityStr != "" {
		severity := domain.Severity(severityStr)
		filter.Severity = &severity
	}
	if category := c.Query("category"); category != "" {
		filter.Category = &category
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	if c.Query("unassigned") == "true" {
		filter.Unassigned = true
	}
	if search := c.Query("search"); search != "" {
		filter.Search = &search
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func attachmentInputs(requests []dto.AttachmentRequest) []service.AttachmentInput {
	inputs := make([]service.AttachmentInput, 0, len(requests))
	for _, req := range requests {
		inputs = append(inputs, service.AttachmentInput{
			StorageKey:   req.StorageKey,
			Filename:     req.Filename,
			OriginalName: req.OriginalName,
			MimeType:     req.MimeType,
			SizeBytes:    req.SizeBytes,
		})
	}
	return inputs
}

func incidentSummary(incident *domain.Incident) dto.IncidentSummary {
	return dto.IncidentSummary{
		ID:         incident.ID,
		IncidentID: incident.IncidentID,
		Title:      incident.Title,
		Severity:   incident.Severity,
		Status:     incident.Status,
		Priority:   incident.Priority,
		Category:   incident.Category,
		Urgency:    incident.Urgency,
		Impact:     incident.Impact,
		Reporter:   incident.Reporter,
		Assignee:   incident.Assignee,
		SLA:        incident.SLA,
		Tags:       incident.Tags,
		CreatedAt:  incident.CreatedAt,
		UpdatedAt:  incident.UpdatedAt,
	}
}

func incidentDetail(detail *service.IncidentDetail) dto.IncidentDetailResponse {
	incident := detail.Incident
	logs := make([]dto.WorkLogResponse, 0, len(detail.WorkLogs))
	for i := range detail.WorkLogs {
		logs = append(logs, workLogResponse(&detail.WorkLogs[i]))
	}
	comments := make([]dto.CommentResponse, 0, len(detail.Comments))
	for i := range detail.Comments {
		comments = append(comments, commentResponse(&detail.Comments[i]))
	}
	attachments := make([]dto.AttachmentResponse, 0, len(detail.Attachments))
	for i := range detail.Attachments {
		attachments = append(attachments, attachmentResponse(&detail.Attachments[i]))
	}
	return dto.IncidentDetailResponse{
		ID:               incident.ID,
		IncidentID:       incident.IncidentID,
		Title:            incident.Title,
		Description:      incident.Description,
		Severity:         incident.Severity,
		Status:           incident.Status,
		Priority:         incident.Priority,
		Category:         incident.Category,
		Subcategory:      incident.Subcategory,
		Urgency:          incident.Urgency,
		Impact:           incident.Impact,
		Reporter:         incident.Reporter,
		Assignee:         incident.Assignee,
		AffectedServices: incident.AffectedServices,
		StepsToReproduce: incident.StepsToReproduce,
		ExpectedBehavior: incident.ExpectedBehavior,
		ActualBehavior:   incident.ActualBehavior,
		Workaround:       incident.Workaround,
		Resolution:       incident.Resolution,
		SLA:              incident.SLA,
		SLAState:         detail.SLAState,
		Escalation:       incident.Escalation,
		Metrics:          incident.Metrics,
		Tags:             incident.Tags,
		KnowledgeLinks:   incident.KnowledgeLinks,
		AcknowledgedAt:   incident.AcknowledgedAt,
		ClosedAt:         incident.ClosedAt,
		CreatedAt:        incident.CreatedAt,
		UpdatedAt:        incident.UpdatedAt,
		WorkLogs:         logs,
		Comments:         comments,
		Attachments:      attachments,
	}
}

func workLogResponse(entry *domain.WorkLogEntry) dto.WorkLogResponse {
	return dto.WorkLogResponse{
		ID:                entry.ID,
		Action:            entry.Action,
		Description:       entry.Description,
		UserID:            entry.UserID,
		TimeSpentMinutes:  entry.TimeSpentMinutes,
		IsSystemGenerated: entry.IsSystemGenerated,
		CreatedAt:         entry.CreatedAt,
	}
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	attachments := make([]dto.AttachmentResponse, 0, len(comment.Attachments))
	for i := range comment.Attachments {
		attachments = append(attachments, attachmentResponse(&comment.Attachments[i]))
	}
	return dto.CommentResponse{
		ID:          comment.ID,
		Text:        comment.Text,
		AuthorID:    comment.AuthorID,
		AuthorName:  comment.AuthorName,
		IsInternal:  comment.IsInternal,
		Attachments: attachments,
		CreatedAt:   comment.CreatedAt,
	}
}

func attachmentResponse(att *domain.Attachment) dto.AttachmentResponse {
	return dto.AttachmentResponse{
		ID:           att.ID,
		Filename:     att.Filename,
		OriginalName: att.OriginalName,
		MimeType:     att.MimeType,
		SizeBytes:    att.SizeBytes,
		UploadedBy:   att.UploadedBy,
		UploadedAt:   att.UploadedAt,
	}
}
