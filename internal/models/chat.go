package models

import "time"

const (
	ThreadStatusActive   = "active"
	ThreadStatusArchived = "archived"
)

const (
	MessageStatusDraft     = "draft"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

// Thread is the single conversation between one client and one coach.
// At most one row exists per (client_id, coach_id) pair.
type Thread struct {
	ID                  int64      `json:"id"`
	ClientID            int64      `json:"client_id"`
	CoachID             int64      `json:"coach_id"`
	LastMessageAt       *time.Time `json:"last_message_at,omitempty"`
	LastMessagePreview  *string    `json:"last_message_preview,omitempty"`
	LastMessageAuthorID *int64     `json:"last_message_author_id,omitempty"`
	Status              string     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Counterpart returns the other participant relative to viewerID, along
// with that participant's role on the thread.
func (t *Thread) Counterpart(viewerID int64) (int64, Role) {
	if viewerID == t.ClientID {
		return t.CoachID, RoleCoach
	}
	return t.ClientID, RoleClient
}

func (t *Thread) HasParticipant(viewerID int64) bool {
	return viewerID == t.ClientID || viewerID == t.CoachID
}

type Message struct {
	ID          int64        `json:"id"`
	ThreadID    int64        `json:"thread_id"`
	FromID      int64        `json:"from_id"`
	ToID        *int64       `json:"to_id,omitempty"`
	Body        *string      `json:"body,omitempty"`
	Status      string       `json:"status"`
	SentAt      time.Time    `json:"sent_at"`
	ReadAt      *time.Time   `json:"read_at,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	ID          int64      `json:"id"`
	MessageID   int64      `json:"message_id"`
	Bucket      string     `json:"bucket"`
	StoragePath string     `json:"storage_path"`
	FileName    string     `json:"file_name"`
	ContentType string     `json:"content_type"`
	SizeBytes   int64      `json:"size_bytes"`
	IsEphemeral bool       `json:"is_ephemeral"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// Derived at read time, never persisted. SignedURL is withheld once
	// ExpiresAt has passed.
	SignedURL *string `json:"signed_url,omitempty"`
	Expired   bool    `json:"expired"`
}

// Participant is display data for one conversation counterpart. HasThread
// is false for assigned counterparts whose thread has not been created yet;
// the UI uses those rows as "start a conversation" entry points.
type Participant struct {
	UserID    int64   `json:"user_id"`
	FullName  string  `json:"full_name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Role      Role    `json:"role"`
	HasThread bool    `json:"has_thread"`
	ThreadID  *int64  `json:"thread_id,omitempty"`
}

type ThreadSummary struct {
	Thread
	Counterpart Participant `json:"counterpart"`
	UnreadCount int         `json:"unread_count"`
	HasThread   bool        `json:"has_thread"`
}

// Inbox is the viewer's thread list: existing threads plus assigned
// counterparts who have no thread yet. Viewer carries the viewer's own
// display profile, fetched in the same batch as the counterparts.
type Inbox struct {
	Viewer       Participant     `json:"viewer"`
	Threads      []ThreadSummary `json:"threads"`
	Participants []Participant   `json:"participants"`
}

// ThreadView is the full payload for an open conversation, including the
// refreshed inbox so badge counts update in the same round trip.
type ThreadView struct {
	Thread     Thread         `json:"thread"`
	Messages   []Message      `json:"messages"`
	Pagination PaginationMeta `json:"pagination"`
	Inbox      Inbox          `json:"inbox"`
}
