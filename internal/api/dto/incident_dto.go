package dto

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/sla"
)

// CreateIncidentRequest payload.
type CreateIncidentRequest struct {
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	Severity         domain.Severity     `json:"severity"`
	Category         string              `json:"category"`
	Subcategory      string              `json:"subcategory,omitempty"`
	Urgency          domain.Urgency      `json:"urgency,omitempty"`
	Impact           domain.Impact       `json:"impact,omitempty"`
	AffectedServices string              `json:"affected_services,omitempty"`
	StepsToReproduce string              `json:"steps_to_reproduce,omitempty"`
	ExpectedBehavior string              `json:"expected_behavior,omitempty"`
	ActualBehavior   string              `json:"actual_behavior,omitempty"`
	Tags             []string            `json:"tags,omitempty"`
	Attachments      []AttachmentRequest `json:"attachments,omitempty"`
}

// AttachmentRequest describes attachment metadata input.
type AttachmentRequest struct {
	StorageKey   string `json:"storage_key"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	MimeType     string `json:"mime_type"`
	SizeBytes    int64  `json:"size_bytes"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
	Notes      string `json:"notes,omitempty"`
}

// ResolveRequest payload.
type ResolveRequest struct {
	Notes              string  `json:"notes"`
	RootCause          string  `json:"root_cause,omitempty"`
	PreventiveMeasures string  `json:"preventive_measures,omitempty"`
	Category           string  `json:"category,omitempty"`
	TimeSpentHours     float64 `json:"time_spent_hours,omitempty"`
	SatisfactionRating *int    `json:"satisfaction_rating,omitempty"`
}

// ReopenRequest payload.
type ReopenRequest struct {
	Reason string `json:"reason,omitempty"`
}

// EscalateRequest payload.
type EscalateRequest struct {
	EscalateTo string `json:"escalate_to"`
	Reason     string `json:"reason,omitempty"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Text        string              `json:"text"`
	IsInternal  bool                `json:"is_internal,omitempty"`
	Attachments []AttachmentRequest `json:"attachments,omitempty"`
}

// KnowledgeLinkRequest payload.
type KnowledgeLinkRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// IncidentSummary is the list-view projection.
type IncidentSummary struct {
	ID         string              `json:"id"`
	IncidentID string              `json:"incident_id"`
	Title      string              `json:"title"`
	Severity   domain.Severity     `json:"severity"`
	Status     domain.Status       `json:"status"`
	Priority   domain.Priority     `json:"priority"`
	Category   string              `json:"category"`
	Urgency    domain.Urgency      `json:"urgency"`
	Impact     domain.Impact       `json:"impact"`
	Reporter   domain.ReporterRef  `json:"reporter"`
	Assignee   *domain.AssigneeRef `json:"assignee,omitempty"`
	SLA        domain.SLAInfo      `json:"sla"`
	Tags       []string            `json:"tags,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// IncidentDetailResponse provides the full incident view.
type IncidentDetailResponse struct {
	ID               string                 `json:"id"`
	IncidentID       string                 `json:"incident_id"`
	Title            string                 `json:"title"`
	Description      string                 `json:"description"`
	Severity         domain.Severity        `json:"severity"`
	Status           domain.Status          `json:"status"`
	Priority         domain.Priority        `json:"priority"`
	Category         string                 `json:"category"`
	Subcategory      string                 `json:"subcategory,omitempty"`
	Urgency          domain.Urgency         `json:"urgency"`
	Impact           domain.Impact          `json:"impact"`
	Reporter         domain.ReporterRef     `json:"reporter"`
	Assignee         *domain.AssigneeRef    `json:"assignee,omitempty"`
	AffectedServices string                 `json:"affected_services,omitempty"`
	StepsToReproduce string                 `json:"steps_to_reproduce,omitempty"`
	ExpectedBehavior string                 `json:"expected_behavior,omitempty"`
	ActualBehavior   string                 `json:"actual_behavior,omitempty"`
	Workaround       string                 `json:"workaround,omitempty"`
	Resolution       *domain.Resolution     `json:"resolution,omitempty"`
	SLA              domain.SLAInfo         `json:"sla"`
	SLAState         sla.State              `json:"sla_state"`
	Escalation       *domain.Escalation     `json:"escalation,omitempty"`
	Metrics          domain.IncidentMetrics `json:"metrics"`
	Tags             []string               `json:"tags,omitempty"`
	KnowledgeLinks   []domain.KnowledgeLink `json:"knowledge_links,omitempty"`
	AcknowledgedAt   *time.Time             `json:"acknowledged_at,omitempty"`
	ClosedAt         *time.Time             `json:"closed_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	WorkLogs         []WorkLogResponse      `json:"work_logs"`
	Comments         []CommentResponse      `json:"comments"`
	Attachments      []AttachmentResponse   `json:"attachments"`
}

// WorkLogResponse represents one audit-trail entry.
type WorkLogResponse struct {
	ID                string    `json:"id"`
	Action            string    `json:"action"`
	Description       string    `json:"description,omitempty"`
	UserID            string    `json:"user_id"`
	TimeSpentMinutes  int       `json:"time_spent_minutes,omitempty"`
	IsSystemGenerated bool      `json:"is_system_generated"`
	CreatedAt         time.Time `json:"created_at"`
}

// CommentResponse represents one discussion entry.
type CommentResponse struct {
	ID          string               `json:"id"`
	Text        string               `json:"text"`
	AuthorID    string               `json:"author_id"`
	AuthorName  string               `json:"author_name"`
	IsInternal  bool                 `json:"is_internal"`
	Attachments []AttachmentResponse `json:"attachments,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedBy   string    `json:"uploaded_by"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// PagedIncidents wraps list results with the total match count.
type PagedIncidents struct {
	Items []IncidentSummary `json:"items"`
	Total int               `json:"total"`
}
