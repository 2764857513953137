package repository

import (
	"context"

	"github.com/croquete1/Fitness-Pro-sub002/internal/models"
)

type AttachmentRepository struct {
	db DBTX
}

func NewAttachmentRepository(db DBTX) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create inserts the metadata row for an already-uploaded binary and fills
// in the generated id and created_at.
func (r *AttachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	query := `
		INSERT INTO attachments (
			message_id, bucket, storage_path, file_name,
			content_type, size_bytes, is_ephemeral, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	return r.db.QueryRow(ctx, query,
		attachment.MessageID,
		attachment.Bucket,
		attachment.StoragePath,
		attachment.FileName,
		attachment.ContentType,
		attachment.SizeBytes,
		attachment.IsEphemeral,
		attachment.ExpiresAt,
	).Scan(&attachment.ID, &attachment.CreatedAt)
}

// ListByMessageIDs returns attachment rows grouped by message id, in
// insertion order within each message.
func (r *AttachmentRepository) ListByMessageIDs(
	ctx context.Context,
	messageIDs []int64,
) (map[int64][]models.Attachment, error) {
	grouped := make(map[int64][]models.Attachment)
	if len(messageIDs) == 0 {
		return grouped, nil
	}

	query := `
		SELECT id, message_id, bucket, storage_path, file_name,
		       content_type, size_bytes, is_ephemeral, expires_at, created_at
		FROM attachments
		WHERE message_id = ANY($1)
		ORDER BY message_id ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var attachment models.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.MessageID,
			&attachment.Bucket,
			&attachment.StoragePath,
			&attachment.FileName,
			&attachment.ContentType,
			&attachment.SizeBytes,
			&attachment.IsEphemeral,
			&attachment.ExpiresAt,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}

		grouped[attachment.MessageID] = append(grouped[attachment.MessageID], attachment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return grouped, nil
}
