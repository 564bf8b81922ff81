package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

// WorkLogRepository persists the append-only audit trail. There is no
// update or delete: entries are immutable once written.
type WorkLogRepository interface {
	Append(ctx context.Context, entry *domain.WorkLogEntry) error
	ListByIncident(ctx context.Context, incidentID string) ([]domain.WorkLogEntry, error)
}

type workLogRepository struct {
	pool *pgxpool.Pool
}

// NewWorkLogRepository instantiates repository.
func NewWorkLogRepository(pool *pgxpool.Pool) WorkLogRepository {
	return &workLogRepository{pool: pool}
}

func (r *workLogRepository) Append(ctx context.Context, entry *domain.WorkLogEntry) error {
	const query = `
        INSERT INTO work_logs (incident_id, action, description, user_id, time_spent_minutes, is_system_generated)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.IncidentID,
		entry.Action,
		entry.Description,
		entry.UserID,
		entry.TimeSpentMinutes,
		entry.IsSystemGenerated,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *workLogRepository) ListByIncident(ctx context.Context, incidentID string) ([]domain.WorkLogEntry, error) {
	const query = `
        SELECT id, incident_id, action, description, user_id, time_spent_minutes, is_system_generated, created_at
        FROM work_logs WHERE incident_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWorkLogs(rows)
}

func scanWorkLogs(rows pgx.Rows) ([]domain.WorkLogEntry, error) {
	var result []domain.WorkLogEntry
	for rows.Next() {
		var entry domain.WorkLogEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.IncidentID,
			&entry.Action,
			&entry.Description,
			&entry.UserID,
			&entry.TimeSpentMinutes,
			&entry.IsSystemGenerated,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
