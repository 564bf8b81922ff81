package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

// ErrRevisionConflict is returned when an update lost a concurrent
// read-modify-write race and must be retried from a fresh read.
var ErrRevisionConflict = errors.New("incident revision conflict")

// IncidentFilter captures list/search parameters.
type IncidentFilter struct {
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

// AnalyticsRow is the slim projection the metrics engine aggregates over.
type AnalyticsRow struct {
	Severity           domain.Severity
	Category           string
	Status             domain.Status
	CreatedAt          time.Time
	ResolvedAt         *time.Time
	AcknowledgedAt     *time.Time
	SLATarget          *time.Time
	ReopenCount        int
	SatisfactionRating *int
	TimeSpentHours     *float64
	ResolvedBy         *string
}

// WorkloadRow summarizes open assignments per user.
type WorkloadRow struct {
	UserID   string
	Name     string
	Total    int
	Critical int
	High     int
}

// IncidentRepository encapsulates incident persistence.
type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	Update(ctx context.Context, incident *domain.Incident) error
	GetByRef(ctx context.Context, ref string) (*domain.Incident, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error)
	Count(ctx context.Context, filter IncidentFilter) (int, error)
	TouchView(ctx context.Context, id string, viewedAt time.Time) error
	MarkBreached(ctx context.Context, id string, breachedAt time.Time) (bool, error)
	ListActiveWithTarget(ctx context.Context) ([]domain.Incident, error)
	ListAnalyticsRows(ctx context.Context, since time.Time) ([]AnalyticsRow, error)
	CountOpenByAssignee(ctx context.Context, userID string) (int, error)
	WorkloadByAssignee(ctx context.Context, limit int) ([]WorkloadRow, error)
}

type incidentRepository struct {
	pool *pgxpool.Pool
}

// NewIncidentRepository instantiates repository.
func NewIncidentRepository(pool *pgxpool.Pool) IncidentRepository {
	return &incidentRepository{pool: pool}
}

const incidentColumns = `
        id, incident_id, title, description, severity, status, category, subcategory,
        urgency, impact, priority, reporter, assignee, affected_services,
        steps_to_reproduce, expected_behavior, actual_behavior, workaround,
        resolution, sla, escalation, metrics, tags, knowledge_links,
        acknowledged_at, closed_at, revision, created_at, updated_at`

func (r *incidentRepository) Create(ctx context.Context, incident *domain.Incident) error {
	// incident_id comes from a dedicated sequence so the reference is
	// assigned exactly once, at first persistence.
	const query = `
        INSERT INTO incidents (
            incident_id, title, description, severity, status, category, subcategory,
            urgency, impact, priority, reporter, assignee, affected_services,
            steps_to_reproduce, expected_behavior, actual_behavior, workaround,
            resolution, sla, escalation, metrics, tags, knowledge_links,
            acknowledged_at, closed_at)
        VALUES ('INC-' || lpad(nextval('incident_ref_seq')::text, 6, '0'),
            $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
        RETURNING id, incident_id, revision, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		incident.Title,
		incident.Description,
		incident.Severity,
		incident.Status,
		incident.Category,
		incident.Subcategory,
		incident.Urgency,
		incident.Impact,
		incident.Priority,
		incident.Reporter,
		incident.Assignee,
		incident.AffectedServices,
		incident.StepsToReproduce,
		incident.ExpectedBehavior,
		incident.ActualBehavior,
		incident.Workaround,
		incident.Resolution,
		incident.SLA,
		incident.Escalation,
		incident.Metrics,
		incident.Tags,
		incident.KnowledgeLinks,
		incident.AcknowledgedAt,
		incident.ClosedAt,
	).Scan(&incident.ID, &incident.IncidentID, &incident.Revision, &incident.CreatedAt, &incident.UpdatedAt)
}

func (r *incidentRepository) Update(ctx context.Context, incident *domain.Incident) error {
	// Compare-and-swap on revision: a stale writer gets a conflict
	// instead of silently overwriting concurrent work-log side effects.
	const query = `
        UPDATE incidents SET
            title=$1, description=$2, severity=$3, status=$4, category=$5, subcategory=$6,
            urgency=$7, impact=$8, priority=$9, reporter=$10, assignee=$11,
            affected_services=$12, steps_to_reproduce=$13, expected_behavior=$14,
            actual_behavior=$15, workaround=$16, resolution=$17, sla=$18, escalation=$19,
            metrics=$20, tags=$21, knowledge_links=$22, acknowledged_at=$23, closed_at=$24,
            revision=revision+1, updated_at=NOW()
        WHERE id=$25 AND revision=$26
        RETURNING revision, updated_at`
	err := r.pool.QueryRow(ctx, query,
		incident.Title,
		incident.Description,
		incident.Severity,
		incident.Status,
		incident.Category,
		incident.Subcategory,
		incident.Urgency,
		incident.Impact,
		incident.Priority,
		incident.Reporter,
		incident.Assignee,
		incident.AffectedServices,
		incident.StepsToReproduce,
		incident.ExpectedBehavior,
		incident.ActualBehavior,
		incident.Workaround,
		incident.Resolution,
		incident.SLA,
		incident.Escalation,
		incident.Metrics,
		incident.Tags,
		incident.KnowledgeLinks,
		incident.AcknowledgedAt,
		incident.ClosedAt,
		incident.ID,
		incident.Revision,
	).Scan(&incident.Revision, &incident.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRevisionConflict
	}
	return err
}

// GetByRef resolves either the internal UUID or the human-readable
// reference (INC-000123).
func (r *incidentRepository) GetByRef(ctx context.Context, ref string) (*domain.Incident, error) {
	var query string
	if strings.HasPrefix(strings.ToUpper(ref), "INC-") {
		query = `SELECT ` + incidentColumns + ` FROM incidents WHERE incident_id=$1`
		ref = strings.ToUpper(ref)
	} else {
		query = `SELECT ` + incidentColumns + ` FROM incidents WHERE id=$1`
	}
	row := r.pool.QueryRow(ctx, query, ref)
	return scanIncident(row)
}

func (r *incidentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM incidents WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *incidentRepository) List(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error) {
	clauses, args := buildIncidentClauses(filter)

	sortBy := "created_at"
	switch filter.SortBy {
	case "updated_at", "severity", "priority", "status":
		sortBy = filter.SortBy
	}
	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		incidentColumns, strings.Join(clauses, " AND "), sortBy, order, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func (r *incidentRepository) Count(ctx context.Context, filter IncidentFilter) (int, error) {
	clauses, args := buildIncidentClauses(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM incidents WHERE %s`, strings.Join(clauses, " AND "))
	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *incidentRepository) TouchView(ctx context.Context, id string, viewedAt time.Time) error {
	const query = `
        UPDATE incidents SET metrics = jsonb_set(
            jsonb_set(metrics, '{view_count}', to_jsonb(COALESCE((metrics->>'view_count')::int, 0) + 1)),
            '{last_viewed_at}', to_jsonb($2::timestamptz))
        WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, id, viewedAt)
	return err
}

// MarkBreached flips the persisted breach flag once. Returns true only
// when this call did the marking, so the watcher emits a single event
// per incident no matter how often it runs.
func (r *incidentRepository) MarkBreached(ctx context.Context, id string, breachedAt time.Time) (bool, error) {
	const query = `
        UPDATE incidents SET sla = jsonb_set(
            jsonb_set(sla, '{is_breached}', 'true'::jsonb),
            '{breached_at}', to_jsonb($2::timestamptz))
        WHERE id=$1 AND COALESCE((sla->>'is_breached')::boolean, false) = false`
	cmd, err := r.pool.Exec(ctx, query, id, breachedAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *incidentRepository) ListActiveWithTarget(ctx context.Context) ([]domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents
        WHERE status IN ('new','assigned','in-progress','pending','reopened')
          AND sla->>'target' IS NOT NULL
        ORDER BY (sla->>'target')::timestamptz ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func (r *incidentRepository) ListAnalyticsRows(ctx context.Context, since time.Time) ([]AnalyticsRow, error) {
	const query = `
        SELECT severity, category, status, created_at,
               (resolution->>'resolved_at')::timestamptz,
               acknowledged_at,
               (sla->>'target')::timestamptz,
               COALESCE((metrics->>'reopen_count')::int, 0),
               (resolution->>'satisfaction_rating')::int,
               (resolution->>'time_spent_hours')::float8,
               resolution->>'resolved_by'
        FROM incidents
        WHERE created_at >= $1 OR (resolution->>'resolved_at')::timestamptz >= $1`
	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AnalyticsRow
	for rows.Next() {
		var row AnalyticsRow
		if err := rows.Scan(
			&row.Severity,
			&row.Category,
			&row.Status,
			&row.CreatedAt,
			&row.ResolvedAt,
			&row.AcknowledgedAt,
			&row.SLATarget,
			&row.ReopenCount,
			&row.SatisfactionRating,
			&row.TimeSpentHours,
			&row.ResolvedBy,
		); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *incidentRepository) CountOpenByAssignee(ctx context.Context, userID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM incidents
        WHERE assignee->>'user_id' = $1 AND status IN ('assigned','in-progress')`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *incidentRepository) WorkloadByAssignee(ctx context.Context, limit int) ([]WorkloadRow, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
        SELECT assignee->>'user_id', assignee->>'name', COUNT(*),
               COUNT(*) FILTER (WHERE severity = 'critical'),
               COUNT(*) FILTER (WHERE severity = 'high')
        FROM incidents
        WHERE status IN ('assigned','in-progress') AND assignee IS NOT NULL
        GROUP BY assignee->>'user_id', assignee->>'name'
        ORDER BY COUNT(*) DESC
        LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WorkloadRow
	for rows.Next() {
		var row WorkloadRow
		if err := rows.Scan(&row.UserID, &row.Name, &row.Total, &row.Critical, &row.High); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func buildIncidentClauses(filter IncidentFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Severity != nil {
		args = append(args, *filter.Severity)
		clauses = append(clauses, fmt.Sprintf("severity=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee->>'user_id'=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "assignee IS NULL")
	}
	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter->>'user_id'=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.Search)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(incident_id) LIKE %s)",
			placeholder, placeholder, placeholder))
	}
	return clauses, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*domain.Incident, error) {
	var incident domain.Incident
	if err := row.Scan(
		&incident.ID,
		&incident.IncidentID,
		&incident.Title,
		&incident.Description,
		&incident.Severity,
		&incident.Status,
		&incident.Category,
		&incident.Subcategory,
		&incident.Urgency,
		&incident.Impact,
		&incident.Priority,
		&incident.Reporter,
		&incident.Assignee,
		&incident.AffectedServices,
		&incident.StepsToReproduce,
		&incident.ExpectedBehavior,
		&incident.ActualBehavior,
		&incident.Workaround,
		&incident.Resolution,
		&incident.SLA,
		&incident.Escalation,
		&incident.Metrics,
		&incident.Tags,
		&incident.KnowledgeLinks,
		&incident.AcknowledgedAt,
		&incident.ClosedAt,
		&incident.Revision,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &incident, nil
}

func scanIncidents(rows pgx.Rows) ([]domain.Incident, error) {
	var result []domain.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *incident)
	}
	return result, rows.Err()
}
