package models

import "strings"

// Role is the normalized role tag derived from a raw token claim.
type Role string

const (
	RoleClient  Role = "CLIENT"
	RoleCoach   Role = "COACH"
	RoleAdmin   Role = "ADMIN"
	RoleUnknown Role = "UNKNOWN"
)

// ResolveRole maps a raw role claim to a normalized tag. It is total:
// unrecognized input maps to RoleUnknown, never an error.
func ResolveRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "client", "cliente", "user":
		return RoleClient
	case "coach", "trainer", "personal":
		return RoleCoach
	case "admin":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}
