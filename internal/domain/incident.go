package domain

import "time"

// Severity classifies how serious an incident is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid checks the severity against the closed enum.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Urgency captures how quickly the reporter needs a fix.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// IsValid checks the urgency against the closed enum.
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	default:
		return false
	}
}

// Impact captures how widely an incident is felt.
type Impact string

const (
	ImpactLow      Impact = "low"
	ImpactMedium   Impact = "medium"
	ImpactHigh     Impact = "high"
	ImpactCritical Impact = "critical"
)

// IsValid checks the impact against the closed enum.
func (i Impact) IsValid() bool {
	switch i {
	case ImpactLow, ImpactMedium, ImpactHigh, ImpactCritical:
		return true
	default:
		return false
	}
}

// Priority is derived from severity and impact, never set directly.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Status enumerates incident lifecycle states.
type Status string

const (
	StatusNew        Status = "new"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in-progress"
	StatusPending    Status = "pending"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
	StatusReopened   Status = "reopened"
)

// IsValid checks the status against the closed enum.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusAssigned, StatusInProgress, StatusPending,
		StatusResolved, StatusClosed, StatusReopened:
		return true
	default:
		return false
	}
}

// ReporterRef is the reporter snapshot captured at creation time. The
// name/email/phone are copied, not joined, so the record stays accurate
// even if the user profile later changes.
type ReporterRef struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
}

// AssigneeRef is the assignee snapshot captured at assignment time.
type AssigneeRef struct {
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	AssignedAt time.Time `json:"assigned_at"`
	AssignedBy string    `json:"assigned_by"`
}

// Resolution records how an incident was fixed. TimeSpent is in hours.
type Resolution struct {
	Notes              string    `json:"notes"`
	RootCause          string    `json:"root_cause,omitempty"`
	PreventiveMeasures string    `json:"preventive_measures,omitempty"`
	Category           string    `json:"category,omitempty"`
	ResolvedBy         string    `json:"resolved_by"`
	ResolvedAt         time.Time `json:"resolved_at"`
	TimeSpentHours     float64   `json:"time_spent_hours,omitempty"`
	SatisfactionRating *int      `json:"satisfaction_rating,omitempty"`
}

// SLAInfo holds the deadline computed at creation and breach bookkeeping.
type SLAInfo struct {
	Target              time.Time  `json:"target"`
	FirstResponseTarget time.Time  `json:"first_response_target"`
	FirstResponseAt     *time.Time `json:"first_response_at,omitempty"`
	IsBreached          bool       `json:"is_breached"`
	BreachedAt          *time.Time `json:"breached_at,omitempty"`
}

// Escalation tracks hand off to a more senior responder.
type Escalation struct {
	IsEscalated bool      `json:"is_escalated"`
	EscalatedAt time.Time `json:"escalated_at"`
	EscalatedBy string    `json:"escalated_by"`
	EscalatedTo string    `json:"escalated_to"`
	Reason      string    `json:"reason,omitempty"`
}

// IncidentMetrics carries per-incident counters.
type IncidentMetrics struct {
	ViewCount    int        `json:"view_count"`
	ReopenCount  int        `json:"reopen_count"`
	LastViewedAt *time.Time `json:"last_viewed_at,omitempty"`
}

// KnowledgeLink points at a related knowledge-base article.
type KnowledgeLink struct {
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	AddedBy string    `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// Incident is the aggregate for IT incident reports.
type Incident struct {
	ID          string
	IncidentID  string // human-readable reference, e.g. INC-000123
	Title       string
	Description string
	Severity    Severity
	Status      Status
	Category    string
	Subcategory string
	Urgency     Urgency
	Impact      Impact
	Priority    Priority

	Reporter ReporterRef
	Assignee *AssigneeRef

	AffectedServices string
	StepsToReproduce string
	ExpectedBehavior string
	ActualBehavior   string
	Workaround       string

	Resolution *Resolution
	SLA        SLAInfo
	Escalation *Escalation
	Metrics    IncidentMetrics

	Tags           []string
	KnowledgeLinks []KnowledgeLink

	AcknowledgedAt *time.Time
	ClosedAt       *time.Time

	Revision  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsResolved reports whether the incident carries a resolution timestamp.
func (i *Incident) IsResolved() bool {
	return i.Resolution != nil && !i.Resolution.ResolvedAt.IsZero()
}

// ActorForSystemLog picks who a system-generated work-log entry is
// attributed to: the assignee if present, else the reporter.
func (i *Incident) ActorForSystemLog() string {
	if i.Assignee != nil {
		return i.Assignee.UserID
	}
	return i.Reporter.UserID
}
