package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

// AttachmentRepository stores attachment metadata. The bytes live with
// the blob collaborator.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	ListByIncident(ctx context.Context, incidentID string) ([]domain.Attachment, error)
	ListByComment(ctx context.Context, commentID string) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository instantiates repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (incident_id, comment_id, storage_key, filename, original_name, mime_type, size_bytes, uploaded_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, uploaded_at`
	return r.pool.QueryRow(ctx, query,
		attachment.IncidentID,
		attachment.CommentID,
		attachment.StorageKey,
		attachment.Filename,
		attachment.OriginalName,
		attachment.MimeType,
		attachment.SizeBytes,
		attachment.UploadedBy,
	).Scan(&attachment.ID, &attachment.UploadedAt)
}

func (r *attachmentRepository) ListByIncident(ctx context.Context, incidentID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, incident_id, comment_id, storage_key, filename, original_name, mime_type, size_bytes, uploaded_by, uploaded_at
        FROM attachments WHERE incident_id=$1 AND comment_id IS NULL ORDER BY uploaded_at ASC`
	return r.fetch(ctx, query, incidentID)
}

func (r *attachmentRepository) ListByComment(ctx context.Context, commentID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, incident_id, comment_id, storage_key, filename, original_name, mime_type, size_bytes, uploaded_by, uploaded_at
        FROM attachments WHERE comment_id=$1 ORDER BY uploaded_at ASC`
	return r.fetch(ctx, query, commentID)
}

func (r *attachmentRepository) fetch(ctx context.Context, query string, arg any) ([]domain.Attachment, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttachments(rows)
}

func scanAttachments(rows pgx.Rows) ([]domain.Attachment, error) {
	var result []domain.Attachment
	for rows.Next() {
		var att domain.Attachment
		if err := rows.Scan(
			&att.ID,
			&att.IncidentID,
			&att.CommentID,
			&att.StorageKey,
			&att.Filename,
			&att.OriginalName,
			&att.MimeType,
			&att.SizeBytes,
			&att.UploadedBy,
			&att.UploadedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, att)
	}
	return result, rows.Err()
}
