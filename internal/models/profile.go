package models

import "time"

// Profile is the display profile the thread list decorates participants
// with. The full profile record is owned by the account subsystem; the
// messaging core only reads these columns.
type Profile struct {
	UserID    int64     `json:"user_id"`
	FullName  string    `json:"full_name"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	UpdatedAt time.Time `json:"updated_at"`
}
