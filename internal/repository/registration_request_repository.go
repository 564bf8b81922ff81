package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

// RegistrationRequestRepository stages IT-role signups awaiting approval.
type RegistrationRequestRepository interface {
	Create(ctx context.Context, request *domain.RegistrationRequest) error
	GetByID(ctx context.Context, id string) (*domain.RegistrationRequest, error)
	GetByEmail(ctx context.Context, email string) (*domain.RegistrationRequest, error)
	List(ctx context.Context, status *domain.RegistrationStatus, limit, offset int) ([]domain.RegistrationRequest, error)
	Update(ctx context.Context, request *domain.RegistrationRequest) error
}

type registrationRequestRepository struct {
	pool *pgxpool.Pool
}

// NewRegistrationRequestRepository instantiates repository.
func NewRegistrationRequestRepository(pool *pgxpool.Pool) RegistrationRequestRepository {
	return &registrationRequestRepository{pool: pool}
}

const registrationColumns = `
        id, first_name, last_name, email, password_hash, role, department, status,
        requested_at, processed_at, processed_by, rejection_reason`

func (r *registrationRequestRepository) Create(ctx context.Context, request *domain.RegistrationRequest) error {
	const query = `
        INSERT INTO registration_requests (first_name, last_name, email, password_hash, role, department, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, requested_at`
	return r.pool.QueryRow(ctx, query,
		request.FirstName,
		request.LastName,
		request.Email,
		request.PasswordHash,
		request.Role,
		request.Department,
		request.Status,
	).Scan(&request.ID, &request.RequestedAt)
}

func (r *registrationRequestRepository) GetByID(ctx context.Context, id string) (*domain.RegistrationRequest, error) {
	return r.fetchSingle(ctx, `SELECT `+registrationColumns+` FROM registration_requests WHERE id=$1`, id)
}

func (r *registrationRequestRepository) GetByEmail(ctx context.Context, email string) (*domain.RegistrationRequest, error) {
	return r.fetchSingle(ctx,
		`SELECT `+registrationColumns+` FROM registration_requests WHERE email=$1`, strings.ToLower(email))
}

func (r *registrationRequestRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.RegistrationRequest, error) {
	var request domain.RegistrationRequest
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&request.ID,
		&request.FirstName,
		&request.LastName,
		&request.Email,
		&request.PasswordHash,
		&request.Role,
		&request.Department,
		&request.Status,
		&request.RequestedAt,
		&request.ProcessedAt,
		&request.ProcessedBy,
		&request.RejectionReason,
	); err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *registrationRequestRepository) List(ctx context.Context, status *domain.RegistrationStatus, limit, offset int) ([]domain.RegistrationRequest, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if status != nil {
		args = append(args, *status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM registration_requests WHERE %s ORDER BY requested_at DESC LIMIT %d OFFSET %d`,
		registrationColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RegistrationRequest
	for rows.Next() {
		var request domain.RegistrationRequest
		if err := rows.Scan(
			&request.ID,
			&request.FirstName,
			&request.LastName,
			&request.Email,
			&request.PasswordHash,
			&request.Role,
			&request.Department,
			&request.Status,
			&request.RequestedAt,
			&request.ProcessedAt,
			&request.ProcessedBy,
			&request.RejectionReason,
		); err != nil {
			return nil, err
		}
		result = append(result, request)
	}
	return result, rows.Err()
}

func (r *registrationRequestRepository) Update(ctx context.Context, request *domain.RegistrationRequest) error {
	const query = `
        UPDATE registration_requests SET status=$1, processed_at=$2, processed_by=$3, rejection_reason=$4
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query,
		request.Status,
		request.ProcessedAt,
		request.ProcessedBy,
		request.RejectionReason,
		request.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
