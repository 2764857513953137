package repository

import (
	"context"

	"github.com/croquete1/Fitness-Pro-sub002/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(
	ctx context.Context,
	threadID int64,
	fromID int64,
	toID int64,
	body *string,
) (*models.Message, error) {
	query := `
		INSERT INTO messages (thread_id, from_id, to_id, body, status)
		VALUES ($1, $2, $3, $4, 'sent')
		RETURNING id, thread_id, from_id, to_id, body, status, sent_at, read_at
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, threadID, fromID, toID, body).Scan(
		&message.ID,
		&message.ThreadID,
		&message.FromID,
		&message.ToID,
		&message.Body,
		&message.Status,
		&message.SentAt,
		&message.ReadAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// Delete removes a message row. Attachment metadata rows go with it via
// the ON DELETE CASCADE on attachments.message_id. Used only by the send
// path's compensating rollback.
func (r *MessageRepository) Delete(ctx context.Context, messageID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM messages WHERE id = $1`, messageID)
	return err
}

// CountByThread returns how many messages the thread holds. The send path
// uses it to locate the newest page for the response.
func (r *MessageRepository) CountByThread(ctx context.Context, threadID int64) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE thread_id = $1
	`, threadID).Scan(&total)
	return total, err
}

// ListByThread returns one page of a thread's messages in ascending send
// order, plus the total count so callers can page from the tail.
func (r *MessageRepository) ListByThread(
	ctx context.Context,
	threadID int64,
	limit int,
	offset int,
) ([]models.Message, int, error) {
	total, err := r.CountByThread(ctx, threadID)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, thread_id, from_id, to_id, body, status, sent_at, read_at
		FROM messages
		WHERE thread_id = $1
		ORDER BY sent_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, threadID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.ThreadID,
			&message.FromID,
			&message.ToID,
			&message.Body,
			&message.Status,
			&message.SentAt,
			&message.ReadAt,
		); err != nil {
			return nil, 0, err
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// MarkThreadRead stamps read_at on every unread message addressed to the
// reader. Idempotent: already-read rows are untouched.
func (r *MessageRepository) MarkThreadRead(
	ctx context.Context,
	threadID int64,
	readerID int64,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE messages
		SET read_at = NOW(),
		    status = 'read'
		WHERE thread_id = $1
		  AND to_id = $2
		  AND read_at IS NULL
	`, threadID, readerID)
	return err
}
