package repository

import (
	"context"

	"github.com/croquete1/Fitness-Pro-sub002/internal/models"
)

// ProfileRepository reads the display data and assignment relationships
// owned by the account subsystem. The messaging core never writes here.
type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByUserIDs(
	ctx context.Context,
	userIDs []int64,
) (map[int64]models.Profile, error) {
	profiles := make(map[int64]models.Profile)
	if len(userIDs) == 0 {
		return profiles, nil
	}

	query := `
		SELECT user_id, full_name, avatar_url, role, updated_at
		FROM profiles
		WHERE user_id = ANY($1)
	`

	rows, err := r.db.Query(ctx, query, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var profile models.Profile
		if err := rows.Scan(
			&profile.UserID,
			&profile.FullName,
			&profile.AvatarURL,
			&profile.Role,
			&profile.UpdatedAt,
		); err != nil {
			return nil, err
		}
		profiles[profile.UserID] = profile
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}

// ListAssignedCounterpartIDs returns the ids the viewer could open a thread
// with: a client's assigned coaches, or a coach's assigned clients. Other
// roles have no assignment relationships.
func (r *ProfileRepository) ListAssignedCounterpartIDs(
	ctx context.Context,
	viewerID int64,
	role models.Role,
) ([]int64, error) {
	var query string
	switch role {
	case models.RoleClient:
		query = `
			SELECT coach_id
			FROM coach_assignments
			WHERE client_id = $1
			ORDER BY coach_id ASC
		`
	case models.RoleCoach:
		query = `
			SELECT client_id
			FROM coach_assignments
			WHERE coach_id = $1
			ORDER BY client_id ASC
		`
	default:
		return nil, nil
	}

	rows, err := r.db.Query(ctx, query, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}
