package events

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIncidentCreated       EventType = "incident_created"
	EventIncidentAssigned      EventType = "incident_assigned"
	EventIncidentStatusChanged EventType = "incident_status_changed"
	EventIncidentResolved      EventType = "incident_resolved"
	EventIncidentReopened      EventType = "incident_reopened"
	EventIncidentEscalated     EventType = "incident_escalated"
	EventCommentAdded          EventType = "incident_comment_added"
	EventSLABreached           EventType = "sla_breached"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	IncidentID string      `json:"incident_id"`
	ActorID    string      `json:"actor_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// IncidentCreatedPayload payload.
type IncidentCreatedPayload struct {
	Reference string          `json:"reference"`
	Title     string          `json:"title"`
	Severity  domain.Severity `json:"severity"`
	Priority  domain.Priority `json:"priority"`
	Category  string          `json:"category"`
	SLATarget time.Time       `json:"sla_target"`
}

// IncidentAssignedPayload payload.
type IncidentAssignedPayload struct {
	AssigneeID   string `json:"assignee_id"`
	AssigneeName string `json:"assignee_name"`
	AssignedBy   string `json:"assigned_by"`
	Notes        string `json:"notes,omitempty"`
}

// IncidentStatusChangedPayload payload.
type IncidentStatusChangedPayload struct {
	OldStatus domain.Status `json:"old_status"`
	NewStatus domain.Status `json:"new_status"`
}

// IncidentResolvedPayload payload.
type IncidentResolvedPayload struct {
	ResolvedBy     string    `json:"resolved_by"`
	ResolvedAt     time.Time `json:"resolved_at"`
	SLABreached    bool      `json:"sla_breached"`
	TimeSpentHours float64   `json:"time_spent_hours,omitempty"`
}

// IncidentReopenedPayload payload.
type IncidentReopenedPayload struct {
	ReopenCount int    `json:"reopen_count"`
	Reason      string `json:"reason,omitempty"`
}

// IncidentEscalatedPayload payload.
type IncidentEscalatedPayload struct {
	EscalatedTo string `json:"escalated_to"`
	Reason      string `json:"reason,omitempty"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID  string `json:"comment_id"`
	AuthorID   string `json:"author_id"`
	IsInternal bool   `json:"is_internal"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	Reference  string          `json:"reference"`
	Severity   domain.Severity `json:"severity"`
	Target     time.Time       `json:"target"`
	BreachedAt time.Time       `json:"breached_at"`
	AssigneeID string          `json:"assignee_id,omitempty"`
}
