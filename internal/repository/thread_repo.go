package repository

import (
	"context"
	"time"

	"github.com/croquete1/Fitness-Pro-sub002/internal/models"
)

type ThreadRepository struct {
	db DBTX
}

func NewThreadRepository(db DBTX) *ThreadRepository {
	return &ThreadRepository{db: db}
}

const threadColumns = `
	id, client_id, coach_id, last_message_at, last_message_preview,
	last_message_author_id, status, created_at, updated_at
`

func (r *ThreadRepository) Create(
	ctx context.Context,
	clientID int64,
	coachID int64,
) (*models.Thread, error) {
	query := `
		INSERT INTO threads (client_id, coach_id, status)
		VALUES ($1, $2, 'active')
		RETURNING ` + threadColumns

	return r.scanThread(r.db.QueryRow(ctx, query, clientID, coachID))
}

func (r *ThreadRepository) GetByID(ctx context.Context, threadID int64) (*models.Thread, error) {
	query := `
		SELECT ` + threadColumns + `
		FROM threads
		WHERE id = $1
	`

	return r.scanThread(r.db.QueryRow(ctx, query, threadID))
}

func (r *ThreadRepository) GetByPair(
	ctx context.Context,
	clientID int64,
	coachID int64,
) (*models.Thread, error) {
	query := `
		SELECT ` + threadColumns + `
		FROM threads
		WHERE client_id = $1 AND coach_id = $2
	`

	return r.scanThread(r.db.QueryRow(ctx, query, clientID, coachID))
}

// ListForParticipant returns every thread the viewer is on, newest activity
// first, each decorated with the viewer's unread count. Counterpart display
// data is merged in by the service layer.
func (r *ThreadRepository) ListForParticipant(
	ctx context.Context,
	viewerID int64,
) ([]models.ThreadSummary, error) {
	query := `
		SELECT
			t.id,
			t.client_id,
			t.coach_id,
			t.last_message_at,
			t.last_message_preview,
			t.last_message_author_id,
			t.status,
			t.created_at,
			t.updated_at,
			COALESCE(uc.unread_count, 0)
		FROM threads t
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE thread_id = t.id
			  AND to_id = $1
			  AND read_at IS NULL
		) uc ON TRUE
		WHERE t.client_id = $1 OR t.coach_id = $1
		ORDER BY t.last_message_at DESC NULLS LAST, t.id DESC
	`

	rows, err := r.db.Query(ctx, query, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ThreadSummary, 0)
	for rows.Next() {
		var summary models.ThreadSummary
		if err := rows.Scan(
			&summary.ID,
			&summary.ClientID,
			&summary.CoachID,
			&summary.LastMessageAt,
			&summary.LastMessagePreview,
			&summary.LastMessageAuthorID,
			&summary.Status,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}
		summary.HasThread = true
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// SetLastMessage refreshes the denormalized thread pointer after a send.
func (r *ThreadRepository) SetLastMessage(
	ctx context.Context,
	threadID int64,
	at time.Time,
	preview string,
	authorID int64,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE threads
		SET last_message_at = $2,
		    last_message_preview = $3,
		    last_message_author_id = $4,
		    updated_at = NOW()
		WHERE id = $1
	`, threadID, at, preview, authorID)
	return err
}

func (r *ThreadRepository) scanThread(row interface{ Scan(dest ...any) error }) (*models.Thread, error) {
	var thread models.Thread
	err := row.Scan(
		&thread.ID,
		&thread.ClientID,
		&thread.CoachID,
		&thread.LastMessageAt,
		&thread.LastMessagePreview,
		&thread.LastMessageAuthorID,
		&thread.Status,
		&thread.CreatedAt,
		&thread.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &thread, nil
}
