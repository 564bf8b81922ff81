package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/sla"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// Clock supplies the current time. Injected so SLA math and transition
// timestamps are deterministic under test.
type Clock func() time.Time

// IncidentService coordinates incident workflows.
type IncidentService struct {
	incidents   repository.IncidentRepository
	workLogs    repository.WorkLogRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	users       repository.UserRepository
	dispatcher  events.Dispatcher
	policy      sla.Policy
	now         Clock
}

// IncidentDependencies bundles collaborators for the incident service.
type IncidentDependencies struct {
	IncidentRepo   repository.IncidentRepository
	WorkLogRepo    repository.WorkLogRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	UserRepo       repository.UserRepository
	Dispatcher     events.Dispatcher
	Policy         sla.Policy
	Clock          Clock
}

// NewIncidentService constructs the service.
func NewIncidentService(deps IncidentDependencies) *IncidentService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	policy := deps.Policy
	if policy.ResolutionTargets == nil {
		policy = sla.DefaultPolicy()
	}
	return &IncidentService{
		incidents:   deps.IncidentRepo,
		workLogs:    deps.WorkLogRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		users:       deps.UserRepo,
		dispatcher:  deps.Dispatcher,
		policy:      policy,
		now:         now,
	}
}

// IncidentCreateInput describes incident creation payload.
type IncidentCreateInput struct {
	Title            string
	Description      string
	Severity         domain.Severity
	Category         string
	Subcategory      string
	Urgency          domain.Urgency
	Impact           domain.Impact
	AffectedServices string
	StepsToReproduce string
	ExpectedBehavior string
	ActualBehavior   string
	Tags             []string
	Attachments      []AttachmentInput
}

// AttachmentInput defines attachment metadata supplied by the caller;
// the blob collaborator has already stored the bytes under StorageKey.
type AttachmentInput struct {
	StorageKey   string
	Filename     string
	OriginalName string
	MimeType     string
	SizeBytes    int64
}

// ResolveInput describes the resolution payload. TimeSpentHours is in
// hours; the work-log entry derived from it is stored in minutes.
type ResolveInput struct {
	Notes              string
	RootCause          string
	PreventiveMeasures string
	Category           string
	TimeSpentHours     float64
	SatisfactionRating *int
}

// IncidentDetail is the full read model for a single incident.
type IncidentDetail struct {
	Incident    *domain.Incident
	WorkLogs    []domain.WorkLogEntry
	Comments    []domain.Comment
	Attachments []domain.Attachment
	SLAState    sla.State
}

// workLogSpec is a pending audit entry, persisted only after the
// incident write succeeds.
type workLogSpec struct {
	action           string
	description      string
	userID           string
	timeSpentMinutes int
	system           bool
}

// Create files a new incident for a reporter. Severity is required and
// must map to an SLA target; creation fails closed otherwise.
func (s *IncidentService) Create(ctx context.Context, reporterID string, input IncidentCreateInput) (*domain.Incident, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}
	if strings.TrimSpace(input.Category) == "" {
		return nil, apperrors.NewValidationError("category required", nil)
	}
	if !input.Severity.IsValid() {
		return nil, apperrors.NewValidationError("unrecognized severity", map[string]any{"severity": input.Severity})
	}
	urgency := input.Urgency
	if urgency == "" {
		urgency = domain.UrgencyMedium
	}
	if !urgency.IsValid() {
		return nil, apperrors.NewValidationError("unrecognized urgency", map[string]any{"urgency": urgency})
	}
	impact := input.Impact
	if impact == "" {
		impact = domain.ImpactMedium
	}
	if !impact.IsValid() {
		return nil, apperrors.NewValidationError("unrecognized impact", map[string]any{"impact": impact})
	}

	reporter, err := s.users.GetByID(ctx, reporterID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("reporter", map[string]any{"user_id": reporterID})
		}
		return nil, apperrors.MapError(err)
	}

	now := s.now()
	slaInfo, err := s.policy.TargetsFor(input.Severity, now)
	if err != nil {
		return nil, err
	}

	incident := &domain.Incident{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Severity:    input.Severity,
		Status:      domain.StatusNew,
		Category:    input.Category,
		Subcategory: input.Subcategory,
		Urgency:     urgency,
		Impact:      impact,
		Priority:    domain.ComputePriority(input.Severity, impact),
		Reporter: domain.ReporterRef{
			UserID: reporter.ID,
			Name:   reporter.FullName(),
			Email:  reporter.Email,
			Phone:  reporter.Phone,
		},
		AffectedServices: input.AffectedServices,
		StepsToReproduce: input.StepsToReproduce,
		ExpectedBehavior: input.ExpectedBehavior,
		ActualBehavior:   input.ActualBehavior,
		SLA:              slaInfo,
		Tags:             input.Tags,
	}

	if err := s.incidents.Create(ctx, incident); err != nil {
		return nil, apperrors.MapError(err)
	}

	if err := s.appendWorkLog(ctx, incident.ID, workLogSpec{
		action:      "Incident created",
		description: fmt.Sprintf("Incident reported by %s", reporter.FullName()),
		userID:      reporter.ID,
		system:      true,
	}); err != nil {
		return nil, apperrors.MapError(err)
	}

	for _, att := range input.Attachments {
		record := &domain.Attachment{
			IncidentID:   incident.ID,
			StorageKey:   att.StorageKey,
			Filename:     att.Filename,
			OriginalName: att.OriginalName,
			MimeType:     att.MimeType,
			SizeBytes:    att.SizeBytes,
			UploadedBy:   reporter.ID,
		}
		if err := s.attachments.Create(ctx, record); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentCreated,
		IncidentID: incident.ID,
		ActorID:    reporter.ID,
		Payload: events.IncidentCreatedPayload{
			Reference: incident.IncidentID,
			Title:     incident.Title,
			Severity:  incident.Severity,
			Priority:  incident.Priority,
			Category:  incident.Category,
			SLATarget: incident.SLA.Target,
		},
	})
	return incident, nil
}

// Get loads the full incident detail and bumps the view counters.
// Internal comments are stripped for reporters.
func (s *IncidentService) Get(ctx context.Context, actor *domain.User, ref string) (*IncidentDetail, error) {
	incident, err := s.getIncident(ctx, ref)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.incidents.TouchView(ctx, incident.ID, now); err != nil {
		return nil, apperrors.MapError(err)
	}
	incident.Metrics.ViewCount++
	incident.Metrics.LastViewedAt = &now

	logs, err := s.workLogs.ListByIncident(ctx, incident.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	comments, err := s.visibleComments(ctx, actor, incident.ID)
	if err != nil {
		return nil, err
	}
	attachments, err := s.attachments.ListByIncident(ctx, incident.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return &IncidentDetail{
		Incident:    incident,
		WorkLogs:    logs,
		Comments:    comments,
		Attachments: attachments,
		SLAState:    s.policy.Evaluate(incident, now),
	}, nil
}

// IncidentListFilter describes listing filters.
type IncidentListFilter struct {
	Statuses    []domain.Status
	Severity    *domain.Severity
	Category    *string
	AssigneeID  *string
	Unassigned  bool
	ReporterID  *string
	Search      *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	SortBy      string
	SortOrder   string
	Limit       int
	Offset      int
}

// List returns incidents plus the total match count. Reporters only see
// their own incidents.
func (s *IncidentService) List(ctx context.Context, actor *domain.User, filter IncidentListFilter) ([]domain.Incident, int, error) {
	repoFilter := repository.IncidentFilter{
		Statuses:    filter.Statuses,
		Severity:    filter.Severity,
		Category:    filter.Category,
		AssigneeID:  filter.AssigneeID,
		Unassigned:  filter.Unassigned,
		ReporterID:  filter.ReporterID,
		Search:      filter.Search,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		SortBy:      filter.SortBy,
		SortOrder:   filter.SortOrder,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if actor != nil && actor.Role == domain.RoleReporter {
		repoFilter.ReporterID = &actor.ID
	}
	items, err := s.incidents.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	total, err := s.incidents.Count(ctx, repoFilter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return items, total, nil
}

// Assign hands an incident to an eligible active user. The assignee
// snapshot (name, assignedAt, assignedBy) is copied at this moment.
func (s *IncidentService) Assign(ctx context.Context, actor *domain.User, ref, assigneeID, notes string) (*domain.Incident, error) {
	if actor == nil || !actor.Role.IsAssignable() {
		return nil, apperrors.NewForbidden("insufficient role for assignment")
	}

	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("assignee", map[string]any{"user_id": assigneeID})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.IsActive {
		return nil, apperrors.NewInvalidTransition("assignee is inactive", map[string]any{"user_id": assigneeID})
	}
	if !assignee.Role.IsAssignable() {
		return nil, apperrors.NewInvalidTransition("user is not eligible for assignment", map[string]any{"role": assignee.Role})
	}

	incident, err := s.getIncident(ctx, ref)
	if err != nil {
		return nil, err
	}
	if incident.Status == domain.StatusResolved || incident.Status == domain.StatusClosed {
		return nil, apperrors.NewInvalidTransition("cannot assign a resolved or closed incident",
			map[string]any{"status": incident.Status})
	}

	now := s.now()
	incident.Assignee = &domain.AssigneeRef{
		UserID:     assignee.ID,
		Name:       assignee.FullName(),
		AssignedAt: now,
		AssignedBy: actor.ID,
	}

	entry := &workLogSpec{
		action:      fmt.Sprintf("Assigned to %s", assignee.FullName()),
		description: notes,
		userID:      actor.ID,
	}
	// Reassignment of an already-active incident keeps its status; a
	// fresh or reopened incident moves to assigned.
	if domain.CanTransition(incident.Status, domain.StatusAssigned) {
		if entry, err = s.applyStatus(incident, domain.StatusAssigned, now, entry); err != nil {
			return nil, err
		}
	}

	if err := s.persistWithLog(ctx, incident, entry); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentAssigned,
		IncidentID: incident.ID,
		ActorID:    actor.ID,
		Payload: events.IncidentAssignedPayload{
			AssigneeID:   assignee.ID,
			AssigneeName: assignee.FullName(),
			AssignedBy:   actor.ID,
			Notes:        notes,
		},
	})
	return incident, nil
}

// Resolve closes out the incident with a resolution block. Notes are
// mandatory; the rejection happens before any state is touched.
func (s *IncidentService) Resolve(ctx context.Context, actor *domain.User, ref string, input ResolveInput) (*domain.Incident, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if strings.TrimSpace(input.Notes) == "" {
		return nil, apperrors.NewValidationError("resolution notes required", nil)
	}
	if input.SatisfactionRating != nil && (*input.SatisfactionRating < 1 || *input.SatisfactionRating > 5) {
		return nil, apperrors.NewValidationError("satisfaction rating must be between 1 and 5", nil)
	}

	incident, err := s.getIncident(ctx, ref)
	if err != nil {
		return nil, err
	}
	if incident.Status == domain.StatusResolved {
		return nil, apperrors.NewInvalidTransition("incident is already resolved",
			map[string]any{"incident_id": incident.IncidentID})
	}

	now := s.now()
	entry, err := s.applyStatus(incident, domain.StatusResolved, now, &workLogSpec{
		action:           "Incident resolved",
		description:      input.Notes,
		userID:           actor.ID,
		timeSpentMinutes: int(input.TimeSpentHours * 60),
	})
	if err != nil {
		return nil, err
	}

	incident.Resolution = &domain.Resolution{
		Notes:              strings.TrimSpace(input.Notes),
		RootCause:          input.RootCause,
		PreventiveMeasures: input.PreventiveMeasures,
		Category:           input.Category,
		ResolvedBy:         actor.ID,
		ResolvedAt:         now,
		TimeSpentHours:     input.TimeSpentHours,
		SatisfactionRating: input.SatisfactionRating,
	}

	if err := s.persistWithLog(ctx, incident, entry); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentResolved,
		IncidentID: incident.ID,
		ActorID:    actor.ID,
		Payload: events.IncidentResolvedPayload{
			ResolvedBy:     actor.ID,
			ResolvedAt:     now,
			SLABreached:    s.policy.Evaluate(incident, now) == sla.StateBreached,
			TimeSpentHours: input.TimeSpentHours,
		},
	})
	return incident, nil
}

// Reopen brings a resolved or closed incident back into active work and
// increments the reopen counter.
func (s *IncidentService) Reopen(ctx context.Context, actor *domain.User, ref, reason string) (*domain.Incident, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}

	incident, err := s.getIncident(ctx, ref)
	if err != nil {
		return nil, err
	}

	now := s.now()
	spec := &workLogSpec{
		action:      "Incident reopened",
		description: reason,
		userID:      actor.ID,
	}
	entry, err := s.applyStatus(incident, domain.StatusReopened, now, spec)
	if err != nil {
		return nil, err
	}

	if err := s.persistWithLog(ctx, incident, entry); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentReopened,
		IncidentID: incident.ID,
		ActorID:    actor.ID,
		Payload: events.IncidentReopenedPayload{
			ReopenCount: incident.Metrics.ReopenCount,
			Reason:      reason,
		},
	})
	return incident, nil
}

// updatableFields is the allow-list for generic partial updates. Fields
// outside it are dropped without error.
var updatableFields = map[string]struct{}{
	"title":            {},
	"description":      {},
	"severity":         {},
	"category":         {},
	"subcategory":      {},
	"urgency":          {},
	"impact":           {},
	"status":           {},
	"affectedServices": {},
	"stepsToReproduce": {},
	"expectedBehavior": {},
	"actualBehavior":   {},
	"workaround":       {},
	"tags":             {},
}

// UpdateFields applies an allow-listed partial update. Priority is
// recomputed when severity or impact is in the changed set; the SLA
// target deliberately is not (fixed at creation unless re-triaged).
// A status value equal to the current one appends no work-log entry.
func (s *IncidentService) UpdateFields(ctx context.Context, actor *domain.User, ref string, fields map[string]any) (*domain.Incident, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}

	incident, err := s.getIncident(ctx, ref)
	if err != nil {
		return nil, err
	}

	var entry *workLogSpec
	oldStatus := incident.Status
	classificationChanged := false
	now := s.now()

	for name, raw := range fields {
		if _, ok := updatableFields[name]; !ok {
			continue
		}
		switch name {
		case "title":
			if v, ok := raw.(string); ok && strings.TrimSpace(v) != "" {
				incident.Title = strings.TrimSpace(v)
			}
		case "description":
			if v, ok := raw.(string); ok && strings.TrimSpace(v) != "" {
				incident.Description = strings.TrimSpace(v)
			}
		case "severity":
			v, ok := raw.(string)
			if !ok {
				continue
			}
			severity := domain.Severity(v)
			if !severity.IsValid() {
				return nil, apperrors.NewValidationError("unrecognized severity", map[string]any{"severity": v})
			}
			if severity != incident.Severity {
				incident.Severity = severity
				classificationChanged = true
			}
		case "impact":
			v, ok := raw.(string)
			if !ok {
				continue
			}
			impact := domain.Impact(v)
			if !impact.IsValid() {
				return nil, apperrors.NewValidationError("unrecognized impact", map[string]any{"impact": v})
			}
			if impact != incident.Impact {
				incident.Impact = impact
				classificationChanged = true
			}
		case "urgency":
			v, ok := raw.(string)
			if !ok {
				continue
			}
			urgency := domain.Urgency(v)
			if !urgency.IsValid() {
				return nil, apperrors.NewValidationError("unrecognized urgency", map[string]any{"urgency": v})
			}
			incident.Urgency = urgency
		case "status":
			v, ok := raw.(string)
			if !ok {
				continue
			}
			status := domain.Status(v)
			if !status.IsValid() {
				return nil, apperrors.NewValidationError("unrecognized status", map[string]any{"status": v})
			}
			if status != incident.Status {
				if entry, err = s.applyStatus(incident, status, now, nil); err != nil {
					return nil, err
				}
			}
		case "category":
			if v, ok := raw.(string); ok && v != "" {
				incident.Category = v
			}
		case "subcategory":
			if v, ok := raw.(string); ok {
				incident.Subcategory = v
			}
		case "affectedServices":
			if v, ok := raw.(string); ok {
				incident.AffectedServices = v
			}
		case "stepsToReproduce":
			if v, ok := raw.(string); ok {
				incident.StepsToReproduce = v
			}
		case "expectedBehavior":
			if v, ok := raw.(string); ok {
				incident.ExpectedBehavior = v
			}
		case "actualBehavior":
			if v, ok := raw.(string); ok {
				incident.ActualBehavior = v
			}
		case "workaround":
			if v, ok := raw.(string); ok {
				incident.Workaround = v
			}
		case "tags":
			incident.Tags = toStringSlice(raw)
		}
	}

	if classificationChanged {
		incident.Priority = domain.ComputePriority(incident.Severity, incident.Impact)
	}

	if err := s.persistWithLog(ctx, incident, entry); err != nil {
		return nil, err
	}

	if incident.Status != oldStatus {
		s.publishEvent(ctx, events.Event{
			Type:       events.EventIncidentStatusChanged,
			IncidentID: incident.ID,
			ActorID:    actor.ID,
			Payload: events.IncidentStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: incident.Status,
			},
		})
	}
	return incident, nil
}

// AddComment appends a discussion entry. Reporters can only post
// public comments.
func (s *IncidentService) AddComment(ctx context.Context, actor *domain.User, ref, text string, isInternal bool, attachments []AttachmentInput) (*domain.Comment, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("comment text required", nil)
	}
	if actor.Role == domain.RoleReporter {
		isInternal = false
	}

	incident, err := s.getIncident(ctx, ref)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		IncidentID: incident.ID,
		Text:       strings.TrimSpace(text),
		AuthorID:   actor.ID,
		AuthorName: actor.FullName(),
		IsInternal: isInternal,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	for _, att := range attachments {
		record := &domain.Attachment{
			IncidentID:   incident.ID,
			CommentID:    &comment.ID,
			StorageKey:   att.StorageKey,
			Filename:     att.Filename,
			OriginalName: att.OriginalName,
			MimeType:     att.MimeType,
			SizeBytes:    att.SizeBytes,
			UploadedBy:   actor.ID,
		}
		if err := s.attachments.Create(ctx, record); err != nil {
			return nil, apperrors.MapError(err)
		}
		comment.Attachments = append(comment.Attachments, *record)
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventCommentAdded,
		IncidentID: incident.ID,
		ActorID:    actor.ID,
		Payload: events.CommentAddedPayload{
			CommentID:  comment.ID,
			AuthorID:   actor.ID,
			IsInternal: isInternal,
		},
	})
	return comment, nil
}

// ListComments returns the discussion thread, internal entries stripped
// for reporters.
func (s *IncidentService) ListComments(ctx context.Context, actor *domain.User, ref string) ([]domain.Comment, error) {
	incident, err := s.getIncident(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.visibleComments(ctx, actor, incident.ID)
}

// AddAttachments records attachment metadata against an incident.
func (s *IncidentService) AddAttachments(ctx context.Context, actor *domain.User, ref string, inputs []AttachmentInput) ([]domain.Attachment, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	incident, err := s.getIncident(ctx, ref)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Attachment, 0, len(inputs))
	for _, att := range inputs {
		record := &domain.Attachment{
			IncidentID:   incident.ID,
			StorageKey:   att.StorageKey,
			Filename:     att.Filename,
			OriginalName: att.OriginalName,
			MimeType:     att.MimeType,
			SizeBytes:    att.SizeBytes,
			UploadedBy:   actor.ID,
		}
		if err := s.attachments.Create(ctx, record); err != nil {
			return nil, apperrors.MapError(err)
		}
		result = append(result, *record)
	}
	return result, nil
}

// Escalate hands the incident to a senior responder and records why.
func (s *IncidentService) Escalate(ctx context.Context, actor *domain.User, ref, escalateToID, reason string) (*domain.Incident, error) {
	if actor == nil || !actor.Role.IsAssignable() {
		return nil, apperrors.NewForbidden("insufficient role for escalation")
	}
	target, err := s.users.GetByID(ctx, escalateToID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("escalation target", map[string]any{"user_id": escalateToID})
		}
		return nil, apperrors.MapError(err)
	}
	if !target.IsActive || !target.Role.IsAssignable() {
		return nil, apperrors.NewInvalidTransition("user cannot receive escalations", map[string]any{"user_id": escalateToID})
	}

	incident, err := s.getIncident(ctx, ref)
	if err != nil {
		return nil, err
	}
	if incident.Status == domain.StatusResolved || incident.Status == domain.StatusClosed {
		return nil, apperrors.NewInvalidTransition("cannot escalate a resolved or closed incident",
			map[string]any{"status": incident.Status})
	}

	now := s.now()
	incident.Escalation = &domain.Escalation{
		IsEscalated: true,
		EscalatedAt: now,
		EscalatedBy: actor.ID,
		EscalatedTo: target.ID,
		Reason:      reason,
	}

	entry := &workLogSpec{
		action:      fmt.Sprintf("Escalated to %s", target.FullName()),
		description: reason,
		userID:      actor.ID,
	}
	if err := s.persistWithLog(ctx, incident, entry); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentEscalated,
		IncidentID: incident.ID,
		ActorID:    actor.ID,
		Payload: events.IncidentEscalatedPayload{
			EscalatedTo: target.ID,
			Reason:      reason,
		},
	})
	return incident, nil
}

// AddKnowledgeLink attaches a knowledge-base article reference.
func (s *IncidentService) AddKnowledgeLink(ctx context.Context, actor *domain.User, ref, title, url string) (*domain.Incident, error) {
	if actor == nil || !actor.Role.IsAssignable() {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(url) == "" {
		return nil, apperrors.NewValidationError("title and url required", nil)
	}
	incident, err := s.getIncident(ctx, ref)
	if err != nil {
		return nil, err
	}
	incident.KnowledgeLinks = append(incident.KnowledgeLinks, domain.KnowledgeLink{
		Title:   title,
		URL:     url,
		AddedBy: actor.ID,
		AddedAt: s.now(),
	})
	if err := s.persistWithLog(ctx, incident, nil); err != nil {
		return nil, err
	}
	return incident, nil
}

// Delete removes an incident permanently. Admin only.
func (s *IncidentService) Delete(ctx context.Context, actor *domain.User, ref string) error {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	incident, err := s.getIncident(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.incidents.Delete(ctx, incident.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("incident", map[string]any{"ref": ref})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// EvaluateSLA reports the read-time SLA state of an incident.
func (s *IncidentService) EvaluateSLA(incident *domain.Incident) sla.State {
	return s.policy.Evaluate(incident, s.now())
}

// applyStatus is the single transition path: every status change in the
// system funnels through here, so exactly one work-log entry is
// generated per change. A nil custom spec produces the default
// system-generated entry attributed to the assignee, else the reporter.
func (s *IncidentService) applyStatus(incident *domain.Incident, next domain.Status, now time.Time, custom *workLogSpec) (*workLogSpec, error) {
	if next == incident.Status {
		return nil, nil
	}
	if !domain.CanTransition(incident.Status, next) {
		return nil, apperrors.NewInvalidTransition(
			fmt.Sprintf("cannot move incident from %s to %s", incident.Status, next),
			map[string]any{"from": incident.Status, "to": next})
	}

	incident.Status = next

	switch next {
	case domain.StatusClosed:
		closed := now
		incident.ClosedAt = &closed
	case domain.StatusReopened:
		incident.ClosedAt = nil
		incident.Metrics.ReopenCount++
	case domain.StatusInProgress:
		if incident.AcknowledgedAt == nil {
			acked := now
			incident.AcknowledgedAt = &acked
		}
		if incident.SLA.FirstResponseAt == nil {
			responded := now
			incident.SLA.FirstResponseAt = &responded
		}
	}

	if custom != nil {
		return custom, nil
	}
	return &workLogSpec{
		action: fmt.Sprintf("Status changed to %s", next),
		userID: incident.ActorForSystemLog(),
		system: true,
	}, nil
}

// persistWithLog writes the incident and then the pending work-log
// entry. Preconditions have all passed by the time this is called:
// a rejected operation never produces partial writes.
func (s *IncidentService) persistWithLog(ctx context.Context, incident *domain.Incident, entry *workLogSpec) error {
	if err := s.incidents.Update(ctx, incident); err != nil {
		if errors.Is(err, repository.ErrRevisionConflict) {
			return apperrors.NewConflict("incident was modified concurrently, retry",
				map[string]any{"incident_id": incident.IncidentID})
		}
		return apperrors.MapError(err)
	}
	if entry == nil {
		return nil
	}
	return apperrors.MapError(s.appendWorkLog(ctx, incident.ID, *entry))
}

func (s *IncidentService) appendWorkLog(ctx context.Context, incidentID string, spec workLogSpec) error {
	return s.workLogs.Append(ctx, &domain.WorkLogEntry{
		IncidentID:        incidentID,
		Action:            spec.action,
		Description:       spec.description,
		UserID:            spec.userID,
		TimeSpentMinutes:  spec.timeSpentMinutes,
		IsSystemGenerated: spec.system,
	})
}

func (s *IncidentService) getIncident(ctx context.Context, ref string) (*domain.Incident, error) {
	incident, err := s.incidents.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("incident", map[string]any{"ref": ref})
		}
		return nil, apperrors.MapError(err)
	}
	return incident, nil
}

func (s *IncidentService) visibleComments(ctx context.Context, actor *domain.User, incidentID string) ([]domain.Comment, error) {
	comments, err := s.comments.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	filtered := make([]domain.Comment, 0, len(comments))
	for i := range comments {
		if actor != nil && actor.Role == domain.RoleReporter && comments[i].IsInternal {
			continue
		}
		attachments, err := s.attachments.ListByComment(ctx, comments[i].ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		comments[i].Attachments = attachments
		filtered = append(filtered, comments[i])
	}
	return filtered, nil
}

func (s *IncidentService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func toStringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result
	default:
		return nil
	}
}
